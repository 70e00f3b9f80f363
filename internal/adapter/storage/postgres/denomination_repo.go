package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const denominationColumns = `id, name, value, media_path, serial_offset, active, updated_at`

// DenominationRepo implements ports.DenominationRepository.
type DenominationRepo struct {
	pool Pool
}

// NewDenominationRepo creates a new DenominationRepo.
func NewDenominationRepo(pool Pool) *DenominationRepo {
	return &DenominationRepo{pool: pool}
}

// Upsert creates or replaces a denomination.
func (r *DenominationRepo) Upsert(ctx context.Context, tx pgx.Tx, d *domain.Denomination) error {
	query := `INSERT INTO denominations (id, name, value, media_path, serial_offset, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, value = EXCLUDED.value, media_path = EXCLUDED.media_path,
			serial_offset = EXCLUDED.serial_offset, active = EXCLUDED.active, updated_at = NOW()
		RETURNING updated_at`

	err := tx.QueryRow(ctx, query, d.ID, d.Name, d.Value, d.MediaPath, d.SerialOffset, d.Active).Scan(&d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert denomination: %w", err)
	}
	return nil
}

// GetByID fetches a denomination by id.
func (r *DenominationRepo) GetByID(ctx context.Context, id uint8) (*domain.Denomination, error) {
	query := `SELECT ` + denominationColumns + ` FROM denominations WHERE id = $1`
	return scanDenomination(r.pool.QueryRow(ctx, query, id))
}

// List returns every denomination ordered by id.
func (r *DenominationRepo) List(ctx context.Context) ([]domain.Denomination, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+denominationColumns+` FROM denominations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list denominations: %w", err)
	}
	defer rows.Close()

	var out []domain.Denomination
	for rows.Next() {
		d, err := scanDenomination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDenomination(row pgx.Row) (*domain.Denomination, error) {
	d := &domain.Denomination{}
	err := row.Scan(&d.ID, &d.Name, &d.Value, &d.MediaPath, &d.SerialOffset, &d.Active, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan denomination: %w", err)
	}
	return d, nil
}
