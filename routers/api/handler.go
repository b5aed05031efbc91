package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"DigitalHuman-server/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// gin.Context 中的身份字段
const (
	CtxTenantID      = "tenant_id"
	CtxWalletAddress = "wallet_address"
)

// Service 编排层对外的操作
type Service interface {
	CreateTask(ctx context.Context, tenantID string) (*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	SaveBasicInfo(ctx context.Context, req models.BasicInfoRequest) (*models.Task, error)
	RequestCover(ctx context.Context, req models.CoverRequest) (*models.Task, error)
	RequestLyrics(ctx context.Context, req models.LyricsRequest) (*models.Task, error)
	RequestMusic(ctx context.Context, req models.MusicRequest) (*models.Task, error)
	RequestAudioBatch(ctx context.Context, req models.AudioRequest) (*models.Task, error)
	RequestVideo(ctx context.Context, req models.VideoRequest) (*models.Task, error)
	Publish(ctx context.Context, req models.PublishRequest) (*models.DigitalHuman, error)
	GetDigitalHuman(ctx context.Context, digitalName string) (*models.DigitalHuman, error)
	RequestCloneAudio(ctx context.Context, req models.CloneAudioRequest) error
}

type Handler struct {
	svc          Service
	pollInterval time.Duration
	log          *zap.Logger
}

func NewHandler(svc Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, pollInterval: time.Second, log: log.Named("api")}
}

// handleServiceError 把编排层错误映射为 HTTP 状态码
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, models.ErrNotReady), errors.Is(err, models.ErrNamingCollision):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": status})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": http.StatusBadRequest})
}

func tenantID(c *gin.Context) string {
	return c.GetString(CtxTenantID)
}

func walletAddress(c *gin.Context) string {
	return c.GetString(CtxWalletAddress)
}
