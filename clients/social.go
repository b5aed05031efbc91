package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// SocialProfile 社交账号的公开资料
type SocialProfile struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Description  string `json:"desc"`
	AvatarURL    string `json:"avatar"`
	Avatar400URL string `json:"avatar_400x400"`
}

// SocialClient 社交平台只读接口
type SocialClient struct {
	baseURL string
	apiKey  string
	host    string
	http    *http.Client
	log     *zap.Logger
}

func NewSocialClient(cfg config.SocialConfig, log *zap.Logger) *SocialClient {
	return &SocialClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		host:    cfg.Host,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("social"),
	}
}

// FetchProfile 账号不存在或没有头像时返回 ErrNotFound
func (c *SocialClient) FetchProfile(ctx context.Context, handle string) (*SocialProfile, error) {
	var raw struct {
		Avatar string `json:"avatar"`
		Name   string `json:"name"`
		Desc   string `json:"desc"`
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/screenname.php", url.Values{"screenname": {handle}}, &raw); err != nil {
		return nil, err
	}
	if raw.Avatar == "" {
		return nil, fmt.Errorf("profile %s: %w", handle, models.ErrNotFound)
	}
	return &SocialProfile{
		Username:     handle,
		Name:         raw.Name,
		Description:  raw.Desc,
		AvatarURL:    raw.Avatar,
		Avatar400URL: strings.Replace(raw.Avatar, "_normal", "_400x400", 1),
	}, nil
}

// FetchPost 按帖子链接取正文
func (c *SocialClient) FetchPost(ctx context.Context, postURL string) (string, error) {
	id := PostIDFromURL(postURL)
	if id == "" {
		return "", fmt.Errorf("%w: 无法解析帖子链接 %s", models.ErrInvalidInput, postURL)
	}
	var raw struct {
		Text string `json:"text"`
	}
	if err := c.get(ctx, "/tweet.php", url.Values{"id": {id}}, &raw); err != nil {
		return "", err
	}
	if strings.TrimSpace(raw.Text) == "" {
		return "", fmt.Errorf("post %s: %w", id, models.ErrNotFound)
	}
	return raw.Text, nil
}

// FetchRecentPosts 最近 n 条帖子正文
func (c *SocialClient) FetchRecentPosts(ctx context.Context, handle string, n int) ([]string, error) {
	var raw struct {
		Timeline []struct {
			Text string `json:"text"`
		} `json:"timeline"`
	}
	if err := c.get(ctx, "/timeline.php", url.Values{"screenname": {handle}}, &raw); err != nil {
		return nil, err
	}
	posts := make([]string, 0, n)
	for _, t := range raw.Timeline {
		if len(posts) >= n {
			break
		}
		if strings.TrimSpace(t.Text) != "" {
			posts = append(posts, t.Text)
		}
	}
	return posts, nil
}

// PostIDFromURL https://x.com/foo/status/123?s=20 -> 123
func PostIDFromURL(postURL string) string {
	u, err := url.Parse(postURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segs {
		if s == "status" && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	return ""
}

func (c *SocialClient) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	c.log.Debug("Fetching", zap.String("path", path), zap.String("query", query.Encode()))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("social request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, models.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: social status code: %d", models.ErrExternalFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}
