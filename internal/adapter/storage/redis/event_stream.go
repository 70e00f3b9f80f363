package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"note-issuance-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 100_000

// EventStream implements ports.EventPublisher by appending events to a
// Redis stream. Consumers read it with XREAD or consumer groups.
type EventStream struct {
	client *goredis.Client
	stream string
	maxLen int64
}

// NewEventStream creates a publisher for the given stream key.
func NewEventStream(client *goredis.Client, stream string) *EventStream {
	return &EventStream{
		client: client,
		stream: stream,
		maxLen: defaultStreamMaxLen,
	}
}

// Publish appends evt to the stream, trimming it to maxLen entries.
func (s *EventStream) Publish(ctx context.Context, evt domain.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	err = s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]any{
			"id":         evt.ID.String(),
			"type":       string(evt.Type),
			"payload":    string(payload),
			"created_at": evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	return nil
}

// Name returns the sink name.
func (s *EventStream) Name() string {
	return "stream"
}
