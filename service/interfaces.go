package service

import (
	"context"

	"DigitalHuman-server/clients"
	"DigitalHuman-server/models"
)

// TaskStore Task 文档存储
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	SaveTask(ctx context.Context, t *models.Task) error
}

// DigitalHumanStore 发布记录存储；Create 遇到同名记录返回 models.ErrNamingCollision
type DigitalHumanStore interface {
	GetDigitalHuman(ctx context.Context, digitalName string) (*models.DigitalHuman, error)
	CreateDigitalHuman(ctx context.Context, dh *models.DigitalHuman) error
	SaveDigitalHuman(ctx context.Context, dh *models.DigitalHuman) error
}

// Limiter 按 client+resource 计数，超出返回 models.ErrLimitExceeded
type Limiter interface {
	CheckAndRecord(ctx context.Context, clientKey, resource string) error
}

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, handle string) (*clients.SocialProfile, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, imgURLs []string, prompt string) (string, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, firstFrameURL, prompt string) (*models.VideoResult, error)
}

type LyricsGenerator interface {
	Generate(ctx context.Context, xLink, style string) (*models.LyricsResult, error)
}

type MusicGenerator interface {
	Generate(ctx context.Context, req models.MusicRequest) (string, error)
}

type VoiceCloner interface {
	Clone(ctx context.Context, job clients.CloneJob) (*models.VoiceClip, error)
}

// Notifier 阶段结束事件
type Notifier interface {
	StageFinished(ctx context.Context, event StageEvent) error
	Close() error
}

// Dispatcher 后台执行器：至多一次，不重试，不可取消
type Dispatcher interface {
	Dispatch(ctx context.Context, job StageJob) error
}

// JobRunner 执行一个后台阶段任务，由 Processor 实现
type JobRunner interface {
	Process(ctx context.Context, job StageJob) error
}

// Generators 后台阶段用到的外部生成能力
type Generators struct {
	Text   clients.TextGenerator
	Image  ImageGenerator
	Video  VideoGenerator
	Lyrics LyricsGenerator
	Music  MusicGenerator
	Voice  VoiceCloner
}
