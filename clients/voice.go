package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// PostFetcher 按链接取帖子正文
type PostFetcher interface {
	FetchPost(ctx context.Context, postURL string) (string, error)
}

// CloneJob 一次克隆：Text 为空时从 TwitterURL 取正文
type CloneJob struct {
	TaskID            string
	TwitterURL        string
	Text              string
	ReferenceAudioURL string
	Username          string
}

// VoiceCloner 文本 -> 克隆语音 -> 转存
type VoiceCloner struct {
	speaker Speaker
	posts   PostFetcher
	store   Rehoster
	voiceID string
	log     *zap.Logger
}

func NewVoiceCloner(speaker Speaker, posts PostFetcher, store Rehoster, voiceID string, log *zap.Logger) *VoiceCloner {
	return &VoiceCloner{speaker: speaker, posts: posts, store: store, voiceID: voiceID, log: log.Named("voice")}
}

func (v *VoiceCloner) Clone(ctx context.Context, job CloneJob) (*models.VoiceClip, error) {
	text := strings.TrimSpace(job.Text)
	if text == "" && job.TwitterURL != "" {
		post, err := v.posts.FetchPost(ctx, job.TwitterURL)
		if err != nil {
			return nil, err
		}
		text = post
	}
	if text == "" {
		return nil, fmt.Errorf("%w: 没有可朗读的文本", models.ErrInvalidInput)
	}

	audio, err := v.speaker.TextToSpeech(ctx, text, CloneSpeechParams{
		VoiceID:  v.voiceID,
		AudioURL: job.ReferenceAudioURL,
	})
	if err != nil {
		return nil, err
	}
	audioURL, err := v.store.UploadBytes(ctx, audio, MediaAudio, ".mp3")
	if err != nil {
		return nil, fmt.Errorf("上传克隆语音失败: %w", err)
	}
	v.log.Info("克隆语音完成", zap.String("task_id", job.TaskID), zap.String("audio_url", audioURL))
	return &models.VoiceClip{
		TaskID:     job.TaskID,
		AudioURL:   audioURL,
		Text:       text,
		TwitterURL: job.TwitterURL,
		Username:   job.Username,
		CreatedAt:  time.Now(),
	}, nil
}
