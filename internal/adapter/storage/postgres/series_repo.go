package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const seriesColumns = `id, name, base_path, max_supply, minted, start_time, end_time, active, created_at, updated_at`

// SeriesRepo implements ports.SeriesRepository.
type SeriesRepo struct {
	pool Pool
}

// NewSeriesRepo creates a new SeriesRepo.
func NewSeriesRepo(pool Pool) *SeriesRepo {
	return &SeriesRepo{pool: pool}
}

// Upsert creates or replaces a series definition. The minted counter and
// creation time of an existing row are kept.
func (r *SeriesRepo) Upsert(ctx context.Context, tx pgx.Tx, s *domain.Series) error {
	query := `INSERT INTO series (id, name, base_path, max_supply, minted, start_time, end_time, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, base_path = EXCLUDED.base_path, max_supply = EXCLUDED.max_supply,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING minted, created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		s.ID, s.Name, s.BasePath, s.MaxSupply,
		nullTime(s.StartTime), nullTime(s.EndTime), s.Active,
	).Scan(&s.Minted, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert series: %w", err)
	}
	return nil
}

// GetByID fetches a series without locking.
func (r *SeriesRepo) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE id = $1`
	return scanSeries(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a series with a row lock. Issuance holds this
// lock while it checks capacity and bumps the minted counter.
func (r *SeriesRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM series WHERE id = $1 FOR UPDATE`
	return scanSeries(tx.QueryRow(ctx, query, id))
}

// List returns every series ordered by id.
func (r *SeriesRepo) List(ctx context.Context) ([]domain.Series, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+seriesColumns+` FROM series ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []domain.Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AddMinted bumps the minted counter.
func (r *SeriesRepo) AddMinted(ctx context.Context, tx pgx.Tx, id string, n int64) error {
	tag, err := tx.Exec(ctx, `UPDATE series SET minted = minted + $1, updated_at = NOW() WHERE id = $2`, n, id)
	if err != nil {
		return fmt.Errorf("update series minted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("series not found: %s", id)
	}
	return nil
}

func scanSeries(row pgx.Row) (*domain.Series, error) {
	s := &domain.Series{}
	var start, end *time.Time
	err := row.Scan(
		&s.ID, &s.Name, &s.BasePath, &s.MaxSupply, &s.Minted,
		&start, &end, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan series: %w", err)
	}
	if start != nil {
		s.StartTime = *start
	}
	if end != nil {
		s.EndTime = *end
	}
	return s, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
