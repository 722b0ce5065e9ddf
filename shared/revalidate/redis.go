package revalidate

import (
	"context"
	"time"

	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/logger"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// publisher is the part of *redis.Client used here
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes stale paths on a pub/sub channel the rendering tier subscribes to
type Redis struct {
	client  publisher
	channel string
	closer  func() error
}

func NewRedis(cfg config.Redis, channel string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, channel: channel, closer: client.Close}
}

// Invalidate runs detached from ctx cancellation, the request may already be finished
func (r *Redis) Invalidate(ctx context.Context, path string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	receivers, err := r.client.Publish(pubCtx, r.channel, path).Result()
	if err != nil {
		logger.Log.Warn("failed to publish invalidation", "path", path, "channel", r.channel, "error", err)
		return
	}
	logger.Log.Debug("path invalidated", "path", path, "receivers", receivers)
}

func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
