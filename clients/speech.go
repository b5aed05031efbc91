package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// SpeechParams 各提供方自己的参数，按具体类型区分
type SpeechParams interface {
	speechProvider() string
}

// OpenAISpeechParams voice: alloy/echo/fable/onyx/nova/shimmer，speed 0.25~4.0
type OpenAISpeechParams struct {
	Voice          string
	Model          string
	ResponseFormat string
	Speed          float64
}

func (OpenAISpeechParams) speechProvider() string { return config.TTSProviderOpenAI }

// CloneSpeechParams 声音克隆参数
type CloneSpeechParams struct {
	VoiceID           string
	AudioURL          string
	ReferenceAudioURL string
	Prompt            string
	// Application 为空时使用默认的克隆应用
	Application string
}

func (CloneSpeechParams) speechProvider() string { return config.TTSProviderVoiceClone }

// Speaker 文本转语音
type Speaker interface {
	TextToSpeech(ctx context.Context, text string, params SpeechParams) ([]byte, error)
	TextToSpeechBase64(ctx context.Context, text string, params SpeechParams) (string, error)
}

// NewSpeaker 根据 tts.provider 选择实现；克隆缺少密钥时退回 OpenAI
func NewSpeaker(cfg config.TTSConfig, fal *FalClient, falCfg config.FalConfig, log *zap.Logger) (Speaker, error) {
	switch cfg.Provider {
	case config.TTSProviderVoiceClone:
		if falCfg.APIKey == "" {
			log.Warn("未配置 fal api_key，语音回退到 OpenAI")
			return newOpenAISpeakerFromConfig(cfg, log), nil
		}
		return NewCloneSpeaker(fal, falCfg.CloneApp, log), nil
	case config.TTSProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI TTS 需要 tts.openai_api_key")
		}
		return newOpenAISpeakerFromConfig(cfg, log), nil
	default:
		return nil, fmt.Errorf("未知的 TTS 提供方: %q", cfg.Provider)
	}
}

func newOpenAISpeakerFromConfig(cfg config.TTSConfig, log *zap.Logger) *OpenAISpeaker {
	openaiConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBase != "" {
		openaiConfig.BaseURL = cfg.OpenAIBase
	}
	return NewOpenAISpeaker(openai.NewClientWithConfig(openaiConfig), log)
}

type OpenAISpeaker struct {
	client *openai.Client
	log    *zap.Logger
}

func NewOpenAISpeaker(client *openai.Client, log *zap.Logger) *OpenAISpeaker {
	return &OpenAISpeaker{client: client, log: log.Named("tts_openai")}
}

func (s *OpenAISpeaker) TextToSpeech(ctx context.Context, text string, params SpeechParams) ([]byte, error) {
	p, ok := params.(OpenAISpeechParams)
	if !ok {
		// 克隆参数对 OpenAI 无意义，使用默认声音
		s.log.Info("OpenAI TTS 不支持该参数，忽略", zap.String("params", fmt.Sprintf("%T", params)))
		p = OpenAISpeechParams{}
	}
	p = p.withDefaults()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(p.Voice),
		ResponseFormat: openai.SpeechResponseFormat(p.ResponseFormat),
		Speed:          p.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExternalFailure, err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("读取语音数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 空语音", models.ErrExternalFailure)
	}
	s.log.Info("OpenAI TTS 转换成功", zap.Int("bytes", len(data)))
	return data, nil
}

func (s *OpenAISpeaker) TextToSpeechBase64(ctx context.Context, text string, params SpeechParams) (string, error) {
	return toBase64(s.TextToSpeech(ctx, text, params))
}

func (p OpenAISpeechParams) withDefaults() OpenAISpeechParams {
	if p.Voice == "" {
		p.Voice = "alloy"
	}
	if p.Model == "" {
		p.Model = "tts-1"
	}
	if p.ResponseFormat == "" {
		p.ResponseFormat = "mp3"
	}
	if p.Speed == 0 {
		p.Speed = 1.0
	}
	return p
}

// CloneSpeaker 通过 fal 队列做声音克隆
type CloneSpeaker struct {
	fal  *FalClient
	app  string
	http *http.Client
	log  *zap.Logger
}

func NewCloneSpeaker(fal *FalClient, app string, log *zap.Logger) *CloneSpeaker {
	return &CloneSpeaker{fal: fal, app: app, http: &http.Client{Timeout: 2 * time.Minute}, log: log.Named("tts_clone")}
}

type cloneVoiceSetting struct {
	VoiceID string `json:"voice_id"`
}

type cloneArgs struct {
	Text              string             `json:"text,omitempty"`
	VoiceSetting      *cloneVoiceSetting `json:"voice_setting,omitempty"`
	AudioURL          string             `json:"audio_url,omitempty"`
	Prompt            string             `json:"prompt,omitempty"`
	ReferenceAudioURL string             `json:"reference_audio_url,omitempty"`
}

type cloneOutput struct {
	Audio *falMedia `json:"audio"`
}

func (s *CloneSpeaker) TextToSpeech(ctx context.Context, text string, params SpeechParams) ([]byte, error) {
	p, _ := params.(CloneSpeechParams)
	args := cloneArgs{
		Text:              text,
		AudioURL:          p.AudioURL,
		Prompt:            p.Prompt,
		ReferenceAudioURL: p.ReferenceAudioURL,
	}
	if p.VoiceID != "" {
		args.VoiceSetting = &cloneVoiceSetting{VoiceID: p.VoiceID}
	}
	app := s.app
	if p.Application != "" {
		app = p.Application
	}

	var out cloneOutput
	if err := s.fal.Run(ctx, app, args, &out); err != nil {
		return nil, err
	}
	if out.Audio == nil || out.Audio.URL == "" {
		return nil, fmt.Errorf("%w: clone result missing audio url", models.ErrExternalFailure)
	}
	data, err := downloadBytes(ctx, s.http, out.Audio.URL)
	if err != nil {
		return nil, fmt.Errorf("下载克隆语音失败: %w", err)
	}
	s.log.Info("克隆语音转换成功", zap.Int("bytes", len(data)))
	return data, nil
}

func (s *CloneSpeaker) TextToSpeechBase64(ctx context.Context, text string, params SpeechParams) (string, error) {
	return toBase64(s.TextToSpeech(ctx, text, params))
}

func toBase64(data []byte, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
