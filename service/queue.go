package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"DigitalHuman-server/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeStageJob = "stage:generate"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// StageJob 一个后台阶段任务；SubTaskID 用于丢弃过期的结果
type StageJob struct {
	Stage       string `json:"stage"`
	TaskID      string `json:"task_id,omitempty"`
	SubTaskID   string `json:"sub_task_id,omitempty"`
	Key         string `json:"key,omitempty"`
	DigitalName string `json:"digital_name,omitempty"`
	Text        string `json:"text,omitempty"`
}

func (j StageJob) fields() []zap.Field {
	return []zap.Field{
		zap.String("stage", j.Stage),
		zap.String("task_id", j.TaskID),
		zap.String("sub_task_id", j.SubTaskID),
		zap.String("key", j.Key),
	}
}

// LocalDispatcher 进程内协程池
type LocalDispatcher struct {
	runner JobRunner
	log    *zap.Logger
	sem    chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewLocalDispatcher(runner JobRunner, concurrency int, log *zap.Logger) *LocalDispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LocalDispatcher{
		runner: runner,
		log:    log.Named("dispatcher"),
		sem:    make(chan struct{}, concurrency),
	}
}

// Dispatch 立即返回；任务在独立的 context 里跑完，不随请求取消
func (d *LocalDispatcher) Dispatch(_ context.Context, job StageJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("后台任务 panic", append(job.fields(), zap.Any("panic", r))...)
			}
		}()
		if err := d.runner.Process(context.Background(), job); err != nil {
			d.log.Error("后台任务失败", append(job.fields(), zap.Error(err))...)
		}
	}()
	return nil
}

// Wait 等待已提交的任务全部结束
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// Close 拒绝新任务并等待已有任务结束
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// AsynqDispatcher 通过 redis 入队，MaxRetry(0) 保证不重试
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
	log     *zap.Logger
}

func NewAsynqDispatcher(cfg config.RedisConfig, timeout time.Duration, log *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:  asynq.NewClient(redisOpt(cfg)),
		timeout: timeout,
		log:     log.Named("dispatcher"),
	}
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, job StageJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}
	task := asynq.NewTask(TypeStageJob, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(d.timeout),
		asynq.Retention(24*time.Hour),
	)
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	d.log.Info("任务已入队", append(job.fields(), zap.String("queue_id", info.ID))...)
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// StartAsynqServer 在本进程内消费队列
func StartAsynqServer(cfg config.RedisConfig, concurrency int, p *Processor, log *zap.Logger) (*asynq.Server, error) {
	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStageJob, p.HandleStageTask)

	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("could not start asynq server: %w", err)
	}
	log.Info("asynq 消费者已启动", zap.Int("concurrency", concurrency))
	return srv, nil
}
