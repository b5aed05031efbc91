package api

import (
	"net/http"

	"DigitalHuman-server/models"

	"github.com/gin-gonic/gin"
)

// 发布：POST /v1/api/tasks/:task_id/publish，钱包地址来自调用方身份
func (h *Handler) Publish(c *gin.Context) {
	req := models.PublishRequest{
		TaskID:        c.Param("task_id"),
		WalletAddress: walletAddress(c),
	}
	dh, err := h.svc.Publish(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"digital_human": dh})
}

func (h *Handler) GetDigitalHuman(c *gin.Context) {
	dh, err := h.svc.GetDigitalHuman(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"digital_human": dh})
}

// 克隆语音在后台执行，这里只确认已受理
func (h *Handler) RequestCloneAudio(c *gin.Context) {
	var req models.CloneAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.DigitalName = c.Param("name")
	if err := h.svc.RequestCloneAudio(c.Request.Context(), req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"digital_name": req.DigitalName, "accepted": true})
}
