package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"DigitalHuman-server/clients"

	"go.uber.org/zap"
)

const sloganMaxAttempts = 10

var sloganObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

var errSloganFormat = errors.New("slogan: no valid json object")

type Slogan struct {
	Slogan      string `json:"slogan"`
	Description string `json:"description"`
}

// SloganResult 解析结果；OK 为 false 时 Err 说明原因
type SloganResult struct {
	OK    bool
	Value Slogan
	Err   error
}

// ParseSlogan 从模型的自由文本里取第一个 JSON 对象，slogan/description 都要有
func ParseSlogan(text string) SloganResult {
	match := sloganObjectPattern.FindString(text)
	if match == "" {
		return SloganResult{Err: errSloganFormat}
	}
	var s Slogan
	if err := json.Unmarshal([]byte(match), &s); err != nil {
		return SloganResult{Err: fmt.Errorf("%w: %v", errSloganFormat, err)}
	}
	if strings.TrimSpace(s.Slogan) == "" || strings.TrimSpace(s.Description) == "" {
		return SloganResult{Err: fmt.Errorf("%w: missing slogan or description", errSloganFormat)}
	}
	return SloganResult{OK: true, Value: s}
}

// GenerateSlogan 最多尝试 sloganMaxAttempts 次，不退避；全部失败时返回最后一次的错误
func GenerateSlogan(ctx context.Context, text clients.TextGenerator, account, bio string, log *zap.Logger) SloganResult {
	last := SloganResult{Err: errSloganFormat}
	for attempt := 1; attempt <= sloganMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return SloganResult{Err: ctx.Err()}
		}
		answer, err := text.GenerateText(ctx, sloganPromptFor(account, bio))
		if err != nil {
			last = SloganResult{Err: err}
		} else {
			last = ParseSlogan(answer)
			if last.OK {
				return last
			}
		}
		log.Warn("口号生成失败", zap.Int("attempt", attempt), zap.String("account", account), zap.Error(last.Err))
	}
	return last
}
