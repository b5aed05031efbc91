package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\((https?://[^\s)]+)\)`)

// ExtractImageURLs 从模型回答中取出 markdown 图片链接
func ExtractImageURLs(content string) []string {
	var urls []string
	for _, m := range markdownImagePattern.FindAllStringSubmatch(content, -1) {
		if len(m) > 1 && m[1] != "" {
			urls = append(urls, m[1])
		}
	}
	return urls
}

// ImageGenerator 参考图 + 提示词 -> 新图，走对话接口
type ImageGenerator struct {
	client *openai.Client
	model  string
	store  Rehoster
	http   *http.Client
	log    *zap.Logger
}

func NewImageGenerator(cfg config.ImageConfig, store Rehoster, log *zap.Logger) *ImageGenerator {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: 20 * time.Minute}
	return &ImageGenerator{
		client: openai.NewClientWithConfig(openaiConfig),
		model:  cfg.Model,
		store:  store,
		http:   &http.Client{Timeout: time.Minute},
		log:    log.Named("image"),
	}
}

// Generate 返回转存后的图片地址
func (g *ImageGenerator) Generate(ctx context.Context, imgURLs []string, prompt string) (string, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, u := range imgURLs {
		dataURL, err := g.toDataURL(ctx, u)
		if err != nil {
			return "", err
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
		})
	}

	g.log.Info("Generating...", zap.Int("refs", len(imgURLs)))
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExternalFailure, err)
	}

	for _, choice := range resp.Choices {
		for _, u := range ExtractImageURLs(choice.Message.Content) {
			hosted, err := g.store.Rehost(ctx, u, MediaImage)
			if err != nil {
				g.log.Warn("转存图片失败", zap.String("url", u), zap.Error(err))
				continue
			}
			return hosted, nil
		}
	}
	return "", fmt.Errorf("%w: 回答中没有图片", models.ErrExternalFailure)
}

func (g *ImageGenerator) toDataURL(ctx context.Context, imgURL string) (string, error) {
	data, err := downloadBytes(ctx, g.http, imgURL)
	if err != nil {
		return "", fmt.Errorf("下载参考图失败: %w", err)
	}
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
