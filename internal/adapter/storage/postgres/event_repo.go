package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"note-issuance-engine/internal/core/domain"
)

// EventRepo implements ports.EventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a PostgreSQL-backed event journal.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create appends an event to the journal.
func (r *EventRepo) Create(ctx context.Context, evt *domain.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO events (id, type, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ID, string(evt.Type), payload, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
