package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const settlementColumns = `id, token_id, redeemer, granter, rarity, value, reserve_paid, minted,
	status, last_error, created_at, updated_at, settled_at`

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create inserts a settlement within a database transaction.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		s.ID, int64(s.TokenID), s.Redeemer, s.Granter, s.Rarity,
		s.Value, s.ReservePaid, s.Minted, s.Status,
		s.LastError, s.CreatedAt, s.UpdatedAt, s.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// GetByID fetches a settlement by UUID.
func (r *SettlementRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	return scanSettlement(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a settlement with a row lock.
func (r *SettlementRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1 FOR UPDATE`
	return scanSettlement(tx.QueryRow(ctx, query, id))
}

// Update records payout progress.
func (r *SettlementRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	query := `UPDATE settlements SET reserve_paid = $1, minted = $2, status = $3, last_error = $4,
		settled_at = $5, updated_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query, s.ReservePaid, s.Minted, s.Status, s.LastError, s.SettledAt, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement not found: %s", s.ID)
	}
	return nil
}

// ListByStatus returns up to limit settlements in a status, oldest first.
func (r *SettlementRepo) ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE status = $1 ORDER BY created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return out, nil
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	s := &domain.Settlement{}
	var tokenID int64
	err := row.Scan(
		&s.ID, &tokenID, &s.Redeemer, &s.Granter, &s.Rarity,
		&s.Value, &s.ReservePaid, &s.Minted, &s.Status,
		&s.LastError, &s.CreatedAt, &s.UpdatedAt, &s.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan settlement: %w", err)
	}
	s.TokenID = uint64(tokenID)
	return s, nil
}
