package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SerialCounterRepo implements ports.SerialCounterRepository.
type SerialCounterRepo struct {
	pool Pool
}

// NewSerialCounterRepo creates a new SerialCounterRepo.
func NewSerialCounterRepo(pool Pool) *SerialCounterRepo {
	return &SerialCounterRepo{pool: pool}
}

// Increment bumps the counter and returns the new value. The upsert takes
// the row lock, so concurrent issuers of the same key serialise here.
func (r *SerialCounterRepo) Increment(ctx context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error) {
	query := `INSERT INTO serial_counters (series_id, denomination_id, counter) VALUES ($1, $2, 1)
		ON CONFLICT (series_id, denomination_id) DO UPDATE SET counter = serial_counters.counter + 1
		RETURNING counter`

	var counter int64
	if err := tx.QueryRow(ctx, query, key.SeriesID, key.DenominationID).Scan(&counter); err != nil {
		return 0, fmt.Errorf("increment serial counter: %w", err)
	}
	return counter, nil
}

// Get returns the current counter, 0 if it was never used.
func (r *SerialCounterRepo) Get(ctx context.Context, key domain.SerialKey) (int64, error) {
	var counter int64
	err := r.pool.QueryRow(ctx,
		`SELECT counter FROM serial_counters WHERE series_id = $1 AND denomination_id = $2`,
		key.SeriesID, key.DenominationID,
	).Scan(&counter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get serial counter: %w", err)
	}
	return counter, nil
}

// GetForUpdate returns the counter with its row locked, creating the row at
// 0 when the key was never used so the lock always has something to hold.
func (r *SerialCounterRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error) {
	query := `INSERT INTO serial_counters (series_id, denomination_id, counter) VALUES ($1, $2, 0)
		ON CONFLICT (series_id, denomination_id) DO UPDATE SET counter = serial_counters.counter
		RETURNING counter`

	var counter int64
	if err := tx.QueryRow(ctx, query, key.SeriesID, key.DenominationID).Scan(&counter); err != nil {
		return 0, fmt.Errorf("lock serial counter: %w", err)
	}
	return counter, nil
}

// Set overwrites a counter.
func (r *SerialCounterRepo) Set(ctx context.Context, tx pgx.Tx, key domain.SerialKey, value int64) error {
	query := `INSERT INTO serial_counters (series_id, denomination_id, counter) VALUES ($1, $2, $3)
		ON CONFLICT (series_id, denomination_id) DO UPDATE SET counter = EXCLUDED.counter`
	if _, err := tx.Exec(ctx, query, key.SeriesID, key.DenominationID, value); err != nil {
		return fmt.Errorf("set serial counter: %w", err)
	}
	return nil
}
