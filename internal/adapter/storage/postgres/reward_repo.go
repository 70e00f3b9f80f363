package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// RewardRepo implements ports.RewardRepository.
type RewardRepo struct {
	pool Pool
}

// NewRewardRepo creates a new RewardRepo.
func NewRewardRepo(pool Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

// UpsertTier creates or replaces a reward tier.
func (r *RewardRepo) UpsertTier(ctx context.Context, tx pgx.Tx, tier *domain.RewardTier) error {
	query := `INSERT INTO reward_tiers (id, value) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value`
	if _, err := tx.Exec(ctx, query, int64(tier.ID), tier.Value); err != nil {
		return fmt.Errorf("upsert reward tier %d: %w", tier.ID, err)
	}
	return nil
}

// GetTier fetches a reward tier by id.
func (r *RewardRepo) GetTier(ctx context.Context, id uint32) (*domain.RewardTier, error) {
	tier := &domain.RewardTier{ID: id}
	err := r.pool.QueryRow(ctx, `SELECT value FROM reward_tiers WHERE id = $1`, int64(id)).Scan(&tier.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reward tier: %w", err)
	}
	return tier, nil
}

// SetLimit sets the reward supply limit of a denomination.
func (r *RewardRepo) SetLimit(ctx context.Context, tx pgx.Tx, denominationID uint8, limit int64) error {
	query := `INSERT INTO reward_supply (denomination_id, supply_limit) VALUES ($1, $2)
		ON CONFLICT (denomination_id) DO UPDATE SET supply_limit = EXCLUDED.supply_limit`
	if _, err := tx.Exec(ctx, query, denominationID, limit); err != nil {
		return fmt.Errorf("set reward limit: %w", err)
	}
	return nil
}

const selectSupply = `SELECT denomination_id, supply_limit, minted FROM reward_supply`

// ListSupply returns the reward supply rows without locking.
func (r *RewardRepo) ListSupply(ctx context.Context) (map[uint8]domain.RewardSupply, error) {
	rows, err := r.pool.Query(ctx, selectSupply)
	if err != nil {
		return nil, fmt.Errorf("list reward supply: %w", err)
	}
	return collectSupply(rows)
}

// ListSupplyForUpdate locks the settings row, then the supply rows. Every
// grant takes the settings lock first, so grants serialise even for
// denominations that have no supply row yet.
func (r *RewardRepo) ListSupplyForUpdate(ctx context.Context, tx pgx.Tx) (map[uint8]domain.RewardSupply, error) {
	if _, err := lockSettings(ctx, tx); err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectSupply+` FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("lock reward supply: %w", err)
	}
	return collectSupply(rows)
}

func collectSupply(rows pgx.Rows) (map[uint8]domain.RewardSupply, error) {
	defer rows.Close()
	out := make(map[uint8]domain.RewardSupply)
	for rows.Next() {
		var s domain.RewardSupply
		if err := rows.Scan(&s.DenominationID, &s.Limit, &s.Minted); err != nil {
			return nil, fmt.Errorf("scan reward supply: %w", err)
		}
		out[s.DenominationID] = s
	}
	return out, rows.Err()
}

// AddMinted bumps the reward minted counter of a denomination.
func (r *RewardRepo) AddMinted(ctx context.Context, tx pgx.Tx, denominationID uint8, n int64) error {
	query := `INSERT INTO reward_supply (denomination_id, minted) VALUES ($1, $2)
		ON CONFLICT (denomination_id) DO UPDATE SET minted = reward_supply.minted + EXCLUDED.minted`
	if _, err := tx.Exec(ctx, query, denominationID, n); err != nil {
		return fmt.Errorf("update reward minted: %w", err)
	}
	return nil
}

// GetSettings returns the global reward settings.
func (r *RewardRepo) GetSettings(ctx context.Context) (*domain.RewardSettings, error) {
	s := &domain.RewardSettings{}
	err := r.pool.QueryRow(ctx, `SELECT default_series_id, enabled FROM reward_settings WHERE id = 1`).
		Scan(&s.DefaultSeriesID, &s.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return nil, fmt.Errorf("get reward settings: %w", err)
	}
	return s, nil
}

// GetSettingsForUpdate reads the settings under the row lock.
func (r *RewardRepo) GetSettingsForUpdate(ctx context.Context, tx pgx.Tx) (*domain.RewardSettings, error) {
	return lockSettings(ctx, tx)
}

// lockSettingsQuery creates the singleton row when it is missing. The no-op
// update takes the row lock in both cases, which a plain SELECT ... FOR
// UPDATE on a missing row would not.
const lockSettingsQuery = `INSERT INTO reward_settings (id) VALUES (1)
	ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
	RETURNING default_series_id, enabled`

func lockSettings(ctx context.Context, tx pgx.Tx) (*domain.RewardSettings, error) {
	s := &domain.RewardSettings{}
	if err := tx.QueryRow(ctx, lockSettingsQuery).Scan(&s.DefaultSeriesID, &s.Enabled); err != nil {
		return nil, fmt.Errorf("lock reward settings: %w", err)
	}
	return s, nil
}

// SaveSettings overwrites the global reward settings.
func (r *RewardRepo) SaveSettings(ctx context.Context, tx pgx.Tx, s *domain.RewardSettings) error {
	query := `INSERT INTO reward_settings (id, default_series_id, enabled) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET default_series_id = EXCLUDED.default_series_id, enabled = EXCLUDED.enabled`
	if _, err := tx.Exec(ctx, query, s.DefaultSeriesID, s.Enabled); err != nil {
		return fmt.Errorf("save reward settings: %w", err)
	}
	return nil
}
