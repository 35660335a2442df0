// Package notify publishes confirmed event changes to a redis stream so
// other services can follow the maintenance calendar.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"maintdash/internal/events"
	appLog "maintdash/internal/log"
)

// defaultMaxLen keeps the stream from growing without bound. Trimming is
// approximate.
const defaultMaxLen = 10000

type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedis connects to addr and checks the connection with PING.
func NewRedis(ctx context.Context, addr, stream string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	appLog.Info("change feed connected", "addr", addr, "stream", stream)
	return &Redis{client: client, stream: stream, maxLen: defaultMaxLen}, nil
}

// Notify appends {op, id, at} to the stream.
func (r *Redis) Notify(ctx context.Context, c events.Change) error {
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"op": c.Op,
			"id": c.ID,
			"at": c.At.UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	appLog.Debug("change published", "stream", r.stream, "entry", id, "op", c.Op)
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
