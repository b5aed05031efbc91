package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// TextGenerator 纯文本生成（口号、歌词）
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// NewTextGenerator 根据 llm.provider 选择实现
func NewTextGenerator(cfg config.LLMConfig, log *zap.Logger) (TextGenerator, error) {
	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		openaiConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			openaiConfig.BaseURL = cfg.BaseURL
		}
		openaiConfig.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
		log.Info("使用 OpenAI 兼容文本模型", zap.String("base_url", openaiConfig.BaseURL), zap.String("model", cfg.Model))
		return NewOpenAITextGenerator(openai.NewClientWithConfig(openaiConfig), cfg.Model), nil
	case config.LLMProviderOllama:
		return NewOllamaTextGenerator(cfg.OllamaHost, cfg.Model, log)
	default:
		return nil, fmt.Errorf("未知的文本模型提供方: %q", cfg.Provider)
	}
}

type OpenAITextGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAITextGenerator(client *openai.Client, model string) *OpenAITextGenerator {
	return &OpenAITextGenerator{client: client, model: model}
}

func (g *OpenAITextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExternalFailure, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: 获得空响应", models.ErrExternalFailure)
	}
	return resp.Choices[0].Message.Content, nil
}

type OllamaTextGenerator struct {
	client *api.Client
	model  string
}

func NewOllamaTextGenerator(host, model string, log *zap.Logger) (*OllamaTextGenerator, error) {
	// api.NewClient 需要不带 /v1 的地址
	base := strings.TrimSuffix(strings.TrimSuffix(host, "/v1"), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("解析 Ollama 地址 '%s' 失败: %w", base, err)
	}
	log.Info("使用 Ollama 文本模型", zap.String("host", base), zap.String("model", model))
	return &OllamaTextGenerator{
		client: api.NewClient(parsed, &http.Client{Timeout: 2 * time.Minute}),
		model:  model,
	}, nil
}

func (g *OllamaTextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    g.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
	}
	var content strings.Builder
	err := g.client.Chat(ctx, req, func(r api.ChatResponse) error {
		content.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExternalFailure, err)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("%w: 获得空响应", models.ErrExternalFailure)
	}
	return content.String(), nil
}
