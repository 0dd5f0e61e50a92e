// Package presence mirrors the registry's online/offline transitions
// into Redis. The in-process registry stays authoritative; the mirror
// only exists so other services can cheaply ask who is reachable.
package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:user:"

type Tracker struct {
	client *redis.Client
}

// NewTracker connects to Redis using a redis:// URL.
func NewTracker(url string) (*Tracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("connected to Redis")
	return &Tracker{client: client}, nil
}

func (t *Tracker) SetOnline(ctx context.Context, userID string) error {
	return t.client.Set(ctx, keyPrefix+userID, "1", 0).Err()
}

func (t *Tracker) SetOffline(ctx context.Context, userID string) error {
	return t.client.Del(ctx, keyPrefix+userID).Err()
}

func (t *Tracker) Close() error {
	return t.client.Close()
}
