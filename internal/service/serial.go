package service

import (
	"context"
	"fmt"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// SerialAllocator hands out serial numbers per (series, denomination).
type SerialAllocator struct {
	repo ports.SerialCounterRepository
}

// NewSerialAllocator creates an allocator over the counter repository.
func NewSerialAllocator(repo ports.SerialCounterRepository) *SerialAllocator {
	return &SerialAllocator{repo: repo}
}

// Next bumps the counter for the key and returns offset + counter.
func (a *SerialAllocator) Next(ctx context.Context, tx pgx.Tx, seriesID string, denom *domain.Denomination) (int64, error) {
	key := domain.SerialKey{SeriesID: seriesID, DenominationID: denom.ID}
	n, err := a.repo.Increment(ctx, tx, key)
	if err != nil {
		return 0, fmt.Errorf("increment serial %s/%d: %w", seriesID, denom.ID, err)
	}
	return denom.SerialOffset + n, nil
}
