package routers

import (
	"net/http"

	"DigitalHuman-server/config"
	"DigitalHuman-server/routers/api"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func InitRouter(cfg config.ServerConfig, h *api.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log.Named("http")))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Tenant-Id", "X-Wallet-Address", "X-Request-Id")
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := Identity(cfg.JWTSecret, log)
	v1 := r.Group("/v1/api", identity)
	{
		v1.POST("/tasks", h.CreateTask)
		v1.GET("/tasks/:task_id", h.GetTask)
		v1.POST("/tasks/:task_id/basic-info", h.SaveBasicInfo)
		v1.POST("/tasks/:task_id/cover", h.RequestCover)
		v1.POST("/tasks/:task_id/lyrics", h.RequestLyrics)
		v1.POST("/tasks/:task_id/music", h.RequestMusic)
		v1.POST("/tasks/:task_id/audio", h.RequestAudioBatch)
		v1.POST("/tasks/:task_id/videos", h.RequestVideo)
		v1.POST("/tasks/:task_id/publish", h.Publish)
		v1.GET("/digital-humans/:name", h.GetDigitalHuman)
		v1.POST("/digital-humans/:name/clone-audio", h.RequestCloneAudio)
	}
	r.GET("/tasks/:task_id/wss", identity, h.TaskProgressWebSocket)
	return r
}
