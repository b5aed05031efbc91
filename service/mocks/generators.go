package mocks

import (
	"context"

	"DigitalHuman-server/clients"
	"DigitalHuman-server/models"
	"DigitalHuman-server/service"

	"github.com/stretchr/testify/mock"
)

type TextGenerator struct {
	mock.Mock
}

func (m *TextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type ImageGenerator struct {
	mock.Mock
}

func (m *ImageGenerator) Generate(ctx context.Context, imgURLs []string, prompt string) (string, error) {
	args := m.Called(ctx, imgURLs, prompt)
	return args.String(0), args.Error(1)
}

type VideoGenerator struct {
	mock.Mock
}

func (m *VideoGenerator) Generate(ctx context.Context, firstFrameURL, prompt string) (*models.VideoResult, error) {
	args := m.Called(ctx, firstFrameURL, prompt)
	res, _ := args.Get(0).(*models.VideoResult)
	return res, args.Error(1)
}

type LyricsGenerator struct {
	mock.Mock
}

func (m *LyricsGenerator) Generate(ctx context.Context, xLink, style string) (*models.LyricsResult, error) {
	args := m.Called(ctx, xLink, style)
	res, _ := args.Get(0).(*models.LyricsResult)
	return res, args.Error(1)
}

type MusicGenerator struct {
	mock.Mock
}

func (m *MusicGenerator) Generate(ctx context.Context, req models.MusicRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type VoiceCloner struct {
	mock.Mock
}

func (m *VoiceCloner) Clone(ctx context.Context, job clients.CloneJob) (*models.VoiceClip, error) {
	args := m.Called(ctx, job)
	clip, _ := args.Get(0).(*models.VoiceClip)
	return clip, args.Error(1)
}

type ProfileFetcher struct {
	mock.Mock
}

func (m *ProfileFetcher) FetchProfile(ctx context.Context, handle string) (*clients.SocialProfile, error) {
	args := m.Called(ctx, handle)
	p, _ := args.Get(0).(*clients.SocialProfile)
	return p, args.Error(1)
}

type Limiter struct {
	mock.Mock
}

func (m *Limiter) CheckAndRecord(ctx context.Context, clientKey, resource string) error {
	args := m.Called(ctx, clientKey, resource)
	return args.Error(0)
}

type Notifier struct {
	mock.Mock
}

func (m *Notifier) StageFinished(ctx context.Context, event service.StageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *Notifier) Close() error {
	args := m.Called()
	return args.Error(0)
}

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) Dispatch(ctx context.Context, job service.StageJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

var (
	_ clients.TextGenerator   = (*TextGenerator)(nil)
	_ service.ImageGenerator  = (*ImageGenerator)(nil)
	_ service.VideoGenerator  = (*VideoGenerator)(nil)
	_ service.LyricsGenerator = (*LyricsGenerator)(nil)
	_ service.MusicGenerator  = (*MusicGenerator)(nil)
	_ service.VoiceCloner     = (*VoiceCloner)(nil)
	_ service.ProfileFetcher  = (*ProfileFetcher)(nil)
	_ service.Limiter         = (*Limiter)(nil)
	_ service.Notifier        = (*Notifier)(nil)
	_ service.Dispatcher      = (*Dispatcher)(nil)
)
