package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/releasegate/releasegate-backend/internal/platform/logger"
)

type redisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisNotifier publishes release events to a redis channel. Configured
// via REDIS_ADDR, REDIS_PASSWORD and RELEASE_EVENTS_CHANNEL.
func NewRedisNotifier(log *logger.Logger) (Notifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("RELEASE_EVENTS_CHANNEL"))
	if ch == "" {
		ch = "release-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisNotifier{
		log:     log.With("notifier", "redis"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (n *redisNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (n *redisNotifier) Close() error {
	return n.rdb.Close()
}
