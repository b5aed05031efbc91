package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/models"

	"go.uber.org/zap"
)

// 队列状态
const (
	falStatusInQueue    = "IN_QUEUE"
	falStatusInProgress = "IN_PROGRESS"
	falStatusCompleted  = "COMPLETED"
	falStatusError      = "ERROR"
)

// FalClient 异步队列协议：提交 -> 轮询状态 -> 取结果
type FalClient struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	timeout      time.Duration
	http         *http.Client
	log          *zap.Logger
}

func NewFalClient(cfg config.FalConfig, log *zap.Logger) *FalClient {
	return &FalClient{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		http:         &http.Client{Timeout: time.Minute},
		log:          log.Named("fal"),
	}
}

type falSubmitResponse struct {
	RequestID string `json:"request_id"`
}

type falStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// falMedia 视频/音频/图片结果中常见的 {"url": ...}
type falMedia struct {
	URL string `json:"url"`
}

// Run 提交并等待完成，结果解码到 out
func (c *FalClient) Run(ctx context.Context, app string, args any, out any) error {
	_, err := c.RunWithID(ctx, app, args, out)
	return err
}

// RunWithID 同 Run，额外返回 request_id
func (c *FalClient) RunWithID(ctx context.Context, app string, args any, out any) (string, error) {
	requestID, err := c.Submit(ctx, app, args)
	if err != nil {
		return "", err
	}
	c.log.Info("任务已提交，开始轮询结果", zap.String("app", app), zap.String("request_id", requestID))
	if err := c.wait(ctx, app, requestID); err != nil {
		return requestID, err
	}
	return requestID, c.Result(ctx, app, requestID, out)
}

// Submit POST {base}/{app}，返回 request_id
func (c *FalClient) Submit(ctx context.Context, app string, args any) (string, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}
	var resp falSubmitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+app, body, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("%w: response missing 'request_id'", models.ErrExternalFailure)
	}
	return resp.RequestID, nil
}

func (c *FalClient) Status(ctx context.Context, app, requestID string) (string, error) {
	var resp falStatusResponse
	if err := c.do(ctx, http.MethodGet, c.requestURL(app, requestID)+"/status", nil, &resp); err != nil {
		return "", err
	}
	if resp.Status == falStatusError {
		return resp.Status, fmt.Errorf("%w: fal reported failure: %s", models.ErrExternalFailure, resp.Error)
	}
	return resp.Status, nil
}

func (c *FalClient) Result(ctx context.Context, app, requestID string, out any) error {
	return c.do(ctx, http.MethodGet, c.requestURL(app, requestID), nil, out)
}

// wait 按固定间隔轮询直到完成、失败或超时
func (c *FalClient) wait(ctx context.Context, app, requestID string) error {
	timeout := time.After(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("%w: polling timeout", models.ErrExternalFailure)
		case <-ctx.Done():
			return fmt.Errorf("polling canceled: %w", ctx.Err())
		case <-ticker.C:
			status, err := c.Status(ctx, app, requestID)
			if err != nil {
				if errors.Is(err, models.ErrExternalFailure) {
					return err
				}
				// 网络错误继续轮询
				c.log.Warn("轮询网络错误(重试中)", zap.String("request_id", requestID), zap.Error(err))
				continue
			}
			switch status {
			case falStatusCompleted:
				return nil
			case falStatusInQueue, falStatusInProgress:
			default:
				c.log.Debug("未知状态，继续轮询", zap.String("status", status))
			}
		}
	}
}

func (c *FalClient) requestURL(app, requestID string) string {
	return fmt.Sprintf("%s/%s/requests/%s", c.baseURL, app, requestID)
}

func (c *FalClient) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
		return fmt.Errorf("%w: fal status code: %d, body: %s", models.ErrExternalFailure, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response failed: %w", err)
	}
	return nil
}
