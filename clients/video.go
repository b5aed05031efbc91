package clients

import (
	"context"
	"fmt"

	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// VideoGenerator 图生视频
type VideoGenerator struct {
	fal   *FalClient
	app   string
	store Rehoster
	log   *zap.Logger
}

func NewVideoGenerator(fal *FalClient, app string, store Rehoster, log *zap.Logger) *VideoGenerator {
	return &VideoGenerator{fal: fal, app: app, store: store, log: log.Named("video")}
}

type videoArgs struct {
	Prompt         string  `json:"prompt"`
	ImageURL       string  `json:"image_url"`
	NegativePrompt string  `json:"negative_prompt"`
	CfgScale       float64 `json:"cfg_scale"`
}

type videoOutput struct {
	Video *falMedia `json:"video"`
}

// Generate 以 firstFrameURL 为首帧生成视频
func (g *VideoGenerator) Generate(ctx context.Context, firstFrameURL, prompt string) (*models.VideoResult, error) {
	var out videoOutput
	requestID, err := g.fal.RunWithID(ctx, g.app, videoArgs{
		Prompt:         prompt,
		ImageURL:       firstFrameURL,
		NegativePrompt: "blur, distort, and low quality",
		CfgScale:       0.5,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Video == nil || out.Video.URL == "" {
		return nil, fmt.Errorf("%w: video result missing url", models.ErrExternalFailure)
	}

	viewURL, err := g.store.Rehost(ctx, out.Video.URL, MediaVideo)
	if err != nil {
		return nil, fmt.Errorf("转存视频失败: %w", err)
	}
	g.log.Info("视频生成成功", zap.String("out_id", requestID), zap.String("view_url", viewURL))
	return &models.VideoResult{OutID: requestID, ViewURL: viewURL, DownloadURL: viewURL}, nil
}
