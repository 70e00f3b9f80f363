package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck implements ports.HealthChecker for Redis. When an event
// stream is configured it also verifies that the stream key is usable.
type HealthCheck struct {
	client *goredis.Client
	stream string
}

// NewHealthCheck creates a Redis health checker. stream may be empty.
func NewHealthCheck(client *goredis.Client, stream string) *HealthCheck {
	return &HealthCheck{client: client, stream: stream}
}

// Ping checks connectivity and that the stream key, if any, is a stream.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if h.stream == "" {
		return nil
	}
	kind, err := h.client.Type(ctx, h.stream).Result()
	if err != nil {
		return fmt.Errorf("redis type %s: %w", h.stream, err)
	}
	if kind != "none" && kind != "stream" {
		return fmt.Errorf("event stream key %q holds a %s", h.stream, kind)
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "redis"
}
