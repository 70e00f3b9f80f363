package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// GrantLogRepo implements ports.GrantLogRepository.
type GrantLogRepo struct {
	pool Pool
}

// NewGrantLogRepo creates a new GrantLogRepo.
func NewGrantLogRepo(pool Pool) *GrantLogRepo {
	return &GrantLogRepo{pool: pool}
}

// Create inserts a grant log within a database transaction. A duplicate
// key fails the insert and so the whole grant.
func (r *GrantLogRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.GrantLog) error {
	query := `INSERT INTO grant_logs (key, token_ids, response_json, created_at) VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, log.Key, toInt64s(log.TokenIDs), log.ResponseJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert grant log: %w", err)
	}
	return nil
}

// Get fetches a grant log by key.
func (r *GrantLogRepo) Get(ctx context.Context, key string) (*domain.GrantLog, error) {
	query := `SELECT key, token_ids, response_json, created_at FROM grant_logs WHERE key = $1`

	log := &domain.GrantLog{}
	var ids []int64
	err := r.pool.QueryRow(ctx, query, key).Scan(&log.Key, &ids, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get grant log: %w", err)
	}
	log.TokenIDs = make([]uint64, len(ids))
	for i, id := range ids {
		log.TokenIDs[i] = uint64(id)
	}
	return log, nil
}

func toInt64s(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
