package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// RecentPostFetcher 取最近的帖子
type RecentPostFetcher interface {
	FetchRecentPosts(ctx context.Context, handle string, n int) ([]string, error)
}

const lyricsPrompt = `You are a songwriter. Write a short song for the social media user @%s based on their recent posts.
Style: %s
Recent posts:
%s

Answer only with a JSON object: {"title": "<song title>", "lyrics": "<lyrics, lines separated by \n>"}`

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// LyricsGenerator 根据账号最近的帖子写歌词
type LyricsGenerator struct {
	posts RecentPostFetcher
	text  TextGenerator
	log   *zap.Logger
}

func NewLyricsGenerator(posts RecentPostFetcher, text TextGenerator, log *zap.Logger) *LyricsGenerator {
	return &LyricsGenerator{posts: posts, text: text, log: log.Named("lyrics")}
}

func (g *LyricsGenerator) Generate(ctx context.Context, xLink, style string) (*models.LyricsResult, error) {
	handle := models.UsernameFromLink(xLink)
	posts, err := g.posts.FetchRecentPosts(ctx, handle, 10)
	if err != nil {
		return nil, fmt.Errorf("获取帖子失败: %w", err)
	}
	if style == "" {
		style = "pop"
	}
	answer, err := g.text.GenerateText(ctx, fmt.Sprintf(lyricsPrompt, handle, style, strings.Join(posts, "\n---\n")))
	if err != nil {
		return nil, err
	}
	result := ParseLyrics(answer)
	if result.Lyrics == "" {
		return nil, fmt.Errorf("%w: 歌词为空", models.ErrExternalFailure)
	}
	g.log.Info("歌词生成成功", zap.String("handle", handle), zap.String("title", result.Title))
	return result, nil
}

// ParseLyrics 优先解析 JSON，失败时整段作为歌词
func ParseLyrics(answer string) *models.LyricsResult {
	if m := jsonObjectPattern.FindString(answer); m != "" {
		var parsed models.LyricsResult
		if err := json.Unmarshal([]byte(m), &parsed); err == nil && parsed.Lyrics != "" {
			return &parsed
		}
	}
	return &models.LyricsResult{Lyrics: strings.TrimSpace(answer)}
}
