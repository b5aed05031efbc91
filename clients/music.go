package clients

import (
	"context"
	"fmt"

	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// MusicGenerator 歌词 + 风格 -> 歌曲
type MusicGenerator struct {
	fal   *FalClient
	app   string
	store Rehoster
	log   *zap.Logger
}

func NewMusicGenerator(fal *FalClient, app string, store Rehoster, log *zap.Logger) *MusicGenerator {
	return &MusicGenerator{fal: fal, app: app, store: store, log: log.Named("music")}
}

type musicArgs struct {
	Lyrics            string `json:"lyrics"`
	Prompt            string `json:"prompt"`
	ReferenceAudioURL string `json:"reference_audio_url,omitempty"`
}

type musicOutput struct {
	Audio *falMedia `json:"audio"`
}

// Generate 返回转存后的音频地址
func (g *MusicGenerator) Generate(ctx context.Context, req models.MusicRequest) (string, error) {
	var out musicOutput
	err := g.fal.Run(ctx, g.app, musicArgs{
		Lyrics:            req.Lyrics,
		Prompt:            req.Style,
		ReferenceAudioURL: req.ReferenceAudioURL,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Audio == nil || out.Audio.URL == "" {
		return "", fmt.Errorf("%w: music result missing url", models.ErrExternalFailure)
	}
	audioURL, err := g.store.Rehost(ctx, out.Audio.URL, MediaAudio)
	if err != nil {
		return "", fmt.Errorf("转存音频失败: %w", err)
	}
	g.log.Info("音乐生成成功", zap.String("audio_url", audioURL))
	return audioURL, nil
}
