package api

import (
	"net/http"
	"time"

	"DigitalHuman-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 创建任务：POST /v1/api/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	task, err := h.svc.CreateTask(c.Request.Context(), tenantID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// 查询任务：GET /v1/api/tasks/:task_id
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *Handler) SaveBasicInfo(c *gin.Context) {
	var req models.BasicInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.TaskID = c.Param("task_id")
	if req.TenantID == "" {
		req.TenantID = tenantID(c)
	}
	h.respondTask(c)(h.svc.SaveBasicInfo(c.Request.Context(), req))
}

func (h *Handler) RequestCover(c *gin.Context) {
	var req models.CoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.TaskID = c.Param("task_id")
	if req.TenantID == "" {
		req.TenantID = tenantID(c)
	}
	h.respondTask(c)(h.svc.RequestCover(c.Request.Context(), req))
}

func (h *Handler) RequestLyrics(c *gin.Context) {
	var req models.LyricsRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	req.TaskID = c.Param("task_id")
	h.respondTask(c)(h.svc.RequestLyrics(c.Request.Context(), req))
}

func (h *Handler) RequestMusic(c *gin.Context) {
	var req models.MusicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.TaskID = c.Param("task_id")
	h.respondTask(c)(h.svc.RequestMusic(c.Request.Context(), req))
}

func (h *Handler) RequestAudioBatch(c *gin.Context) {
	var req models.AudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.TaskID = c.Param("task_id")
	h.respondTask(c)(h.svc.RequestAudioBatch(c.Request.Context(), req))
}

func (h *Handler) RequestVideo(c *gin.Context) {
	var req models.VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.TaskID = c.Param("task_id")
	h.respondTask(c)(h.svc.RequestVideo(c.Request.Context(), req))
}

// 阶段请求只返回当前快照，结果需要轮询或订阅 wss
func (h *Handler) respondTask(c *gin.Context) func(*models.Task, error) {
	return func(task *models.Task, err error) {
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"task": task})
	}
}

// 任务进度 WebSocket 推送：轮询存储，有变化就推送，所有阶段结束后关闭
func (h *Handler) TaskProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket升级失败", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	t, err := h.svc.GetTask(ctx, taskID)
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": err.Error()})
		return
	}
	if err := conn.WriteJSON(gin.H{"task": t}); err != nil {
		return
	}
	if !hasRunningStage(t) {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	prev := t.UpdatedAt

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur, err := h.svc.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if !cur.UpdatedAt.Equal(prev) {
			if err := conn.WriteJSON(gin.H{"task": cur}); err != nil {
				return
			}
			prev = cur.UpdatedAt
		}
		if !hasRunningStage(cur) {
			return
		}
	}
}

func hasRunningStage(t *models.Task) bool {
	running := func(status models.SubTaskStatus) bool { return status == models.SubTaskInProgress }
	if t.Cover != nil && running(t.Cover.Status) ||
		t.Lyrics != nil && running(t.Lyrics.Status) ||
		t.Music != nil && running(t.Music.Status) ||
		t.Audio != nil && running(t.Audio.Status) {
		return true
	}
	for _, v := range t.Videos {
		if v != nil && running(v.Status) {
			return true
		}
	}
	return false
}
