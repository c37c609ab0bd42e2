package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventRecorder records product analytics events. Recording is always
// best-effort: callers log failures and move on, a broken analytics sink
// must never block signup or login.
type EventRecorder interface {
	Record(ctx context.Context, event string) error
}

// RedisRecorder counts events in daily Redis keys.
type RedisRecorder struct {
	client redis.UniversalClient
}

// NewRedisRecorder creates an analytics recorder backed by Redis.
func NewRedisRecorder(client redis.UniversalClient) *RedisRecorder {
	return &RedisRecorder{client: client}
}

// Record increments today's counter for the event. Keys expire after 90
// days.
func (r *RedisRecorder) Record(ctx context.Context, event string) error {
	key := fmt.Sprintf("analytics:%s:%s", event, time.Now().UTC().Format("2006-01-02"))
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, 90*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record event %s: %w", event, err)
	}
	return nil
}
