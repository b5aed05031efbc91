package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DigitalHuman-server/clients"
	"DigitalHuman-server/config"
	"DigitalHuman-server/logger"
	"DigitalHuman-server/models"
	"DigitalHuman-server/routers"
	"DigitalHuman-server/routers/api"
	"DigitalHuman-server/service"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("服务退出", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	sqlDB, db, err := models.OpenDB(cfg.MySQL, log)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	log.Info("数据库已连接")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	store, err := clients.NewObjectStore(cfg.MinIO, log)
	if err != nil {
		return err
	}

	text, err := clients.NewTextGenerator(cfg.LLM, log)
	if err != nil {
		return err
	}
	fal := clients.NewFalClient(cfg.Fal, log)
	social := clients.NewSocialClient(cfg.Social, log)
	speaker, err := clients.NewSpeaker(cfg.TTS, fal, cfg.Fal, log)
	if err != nil {
		return err
	}
	gen := service.Generators{
		Text:   text,
		Image:  clients.NewImageGenerator(cfg.Image, store, log),
		Video:  clients.NewVideoGenerator(fal, cfg.Fal.VideoApp, store, log),
		Lyrics: clients.NewLyricsGenerator(social, text, log),
		Music:  clients.NewMusicGenerator(fal, cfg.Fal.MusicApp, store, log),
		Voice:  clients.NewVoiceCloner(speaker, social, store, cfg.TTS.VoiceID, log),
	}

	var notifier service.Notifier = service.NoopNotifier{}
	if cfg.RabbitMQ.URL != "" {
		n, err := service.NewRabbitMQNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return err
		}
		notifier = n
	}
	defer notifier.Close()

	tasks := models.NewTaskRepository(db)
	humans := models.NewDigitalHumanRepository(db)
	limiter := service.NewRedisLimiter(rdb, cfg.Redis.Prefix, cfg.Quota.DailyLimit, log)
	processor := service.NewProcessor(tasks, humans, gen, cfg.Templates, notifier, log)

	var (
		dispatcher  service.Dispatcher
		drain       func()
		asynqServer *asynq.Server
	)
	switch cfg.Queue.Mode {
	case config.QueueModeAsynq:
		d := service.NewAsynqDispatcher(cfg.Redis, 2*cfg.Fal.Timeout, log)
		asynqServer, err = service.StartAsynqServer(cfg.Redis, cfg.Queue.Concurrency, processor, log)
		if err != nil {
			return err
		}
		dispatcher = d
		drain = func() {
			asynqServer.Shutdown()
			_ = d.Close()
		}
	default:
		d := service.NewLocalDispatcher(processor, cfg.Queue.Concurrency, log)
		dispatcher = d
		drain = d.Close
	}

	svc := service.NewService(tasks, humans, limiter, social, dispatcher, log)
	gin.SetMode(gin.ReleaseMode)
	r := routers.InitRouter(cfg.Server, api.NewHandler(svc, log), log)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP 服务启动", zap.String("addr", cfg.Server.Port), zap.String("queue_mode", cfg.Queue.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-errCh:
		drain()
		return fmt.Errorf("HTTP 服务异常: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务关闭失败", zap.Error(err))
	}
	// 等待已提交的后台任务结束
	drain()
	log.Info("服务已停止")
	return nil
}
