package service

import (
	"context"
	"fmt"
	"time"

	"DigitalHuman-server/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter 每个 client+resource 每天最多 limit 次
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	now    func() time.Time
	log    *zap.Logger
}

func NewRedisLimiter(rdb *redis.Client, prefix string, limit int64, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, now: time.Now, log: log.Named("quota")}
}

func (l *RedisLimiter) key(clientKey, resource string) string {
	return fmt.Sprintf("%squota:%s:%s:%s", l.prefix, l.now().UTC().Format("20060102"), clientKey, resource)
}

// CheckAndRecord 先计数再判断，超限的那一次也会被记下
func (l *RedisLimiter) CheckAndRecord(ctx context.Context, clientKey, resource string) error {
	key := l.key(clientKey, resource)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("quota check failed: %w", err)
	}
	if l.limit > 0 && incr.Val() > l.limit {
		l.log.Warn("超出调用限额", zap.String("client", clientKey), zap.String("resource", resource), zap.Int64("count", incr.Val()))
		return fmt.Errorf("%w: %s %s", models.ErrLimitExceeded, clientKey, resource)
	}
	return nil
}

func quotaClient(taskID string) string {
	return "task-" + taskID
}

const (
	resourceImage  = "gen-img"
	resourceLyrics = "gen-lyrics"
	resourceMusic  = "gen_music"
)

func resourceVideo(key models.VideoKey) string {
	return "gen-video-" + string(key)
}
