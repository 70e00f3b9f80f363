package postgres

import (
	"context"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RarityRepo implements ports.RarityRepository.
type RarityRepo struct {
	pool Pool
}

// NewRarityRepo creates a new RarityRepo.
func NewRarityRepo(pool Pool) *RarityRepo {
	return &RarityRepo{pool: pool}
}

const upsertRarity = `INSERT INTO rarity_tiers (level, name, weight_bps, bonus_bps)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (level) DO UPDATE SET
		name = EXCLUDED.name, weight_bps = EXCLUDED.weight_bps, bonus_bps = EXCLUDED.bonus_bps`

// Upsert creates or replaces one tier.
func (r *RarityRepo) Upsert(ctx context.Context, tx pgx.Tx, t *domain.RarityTier) error {
	if _, err := tx.Exec(ctx, upsertRarity, t.Level, t.Name, t.WeightBps, t.BonusBps); err != nil {
		return fmt.Errorf("upsert rarity tier %d: %w", t.Level, err)
	}
	return nil
}

// ReplaceAll swaps the whole tier set inside tx.
func (r *RarityRepo) ReplaceAll(ctx context.Context, tx pgx.Tx, tiers []domain.RarityTier) error {
	if _, err := tx.Exec(ctx, `DELETE FROM rarity_tiers`); err != nil {
		return fmt.Errorf("clear rarity tiers: %w", err)
	}
	for i := range tiers {
		if err := r.Upsert(ctx, tx, &tiers[i]); err != nil {
			return err
		}
	}
	return nil
}

// List returns the tiers in ascending level order.
func (r *RarityRepo) List(ctx context.Context) ([]domain.RarityTier, error) {
	rows, err := r.pool.Query(ctx, `SELECT level, name, weight_bps, bonus_bps FROM rarity_tiers ORDER BY level`)
	if err != nil {
		return nil, fmt.Errorf("list rarity tiers: %w", err)
	}
	defer rows.Close()

	var out []domain.RarityTier
	for rows.Next() {
		var t domain.RarityTier
		if err := rows.Scan(&t.Level, &t.Name, &t.WeightBps, &t.BonusBps); err != nil {
			return nil, fmt.Errorf("scan rarity tier: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
