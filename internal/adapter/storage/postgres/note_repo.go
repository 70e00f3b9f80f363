package postgres

import (
	"context"
	"errors"
	"fmt"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const noteColumns = `token_id, denomination_id, series_id, rarity, serial, issued_at`

// NoteRepo implements ports.NoteRepository.
type NoteRepo struct {
	pool Pool
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(pool Pool) *NoteRepo {
	return &NoteRepo{pool: pool}
}

// NextTokenID draws the next token id from the sequence. Ids drawn by a
// rolled back transaction are not reused.
func (r *NoteRepo) NextTokenID(ctx context.Context, tx pgx.Tx) (uint64, error) {
	var id int64
	if err := tx.QueryRow(ctx, `SELECT nextval('note_token_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next token id: %w", err)
	}
	return uint64(id), nil
}

// Create inserts a note within a database transaction.
func (r *NoteRepo) Create(ctx context.Context, tx pgx.Tx, n *domain.Note) error {
	query := `INSERT INTO notes (` + noteColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.Exec(ctx, query, int64(n.TokenID), n.DenominationID, n.SeriesID, n.Rarity, n.Serial, n.IssuedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetByID fetches a live note.
func (r *NoteRepo) GetByID(ctx context.Context, tokenID uint64) (*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE token_id = $1`
	return scanNote(r.pool.QueryRow(ctx, query, int64(tokenID)))
}

// GetByIDForUpdate fetches a live note with a row lock.
func (r *NoteRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, tokenID uint64) (*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE token_id = $1 FOR UPDATE`
	return scanNote(tx.QueryRow(ctx, query, int64(tokenID)))
}

// Update rewrites the mutable attributes of a note.
func (r *NoteRepo) Update(ctx context.Context, tx pgx.Tx, n *domain.Note) error {
	tag, err := tx.Exec(ctx, `UPDATE notes SET rarity = $1 WHERE token_id = $2`, n.Rarity, int64(n.TokenID))
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note not found: %d", n.TokenID)
	}
	return nil
}

// Delete removes a redeemed note.
func (r *NoteRepo) Delete(ctx context.Context, tx pgx.Tx, tokenID uint64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM notes WHERE token_id = $1`, int64(tokenID))
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note not found: %d", tokenID)
	}
	return nil
}

func scanNote(row pgx.Row) (*domain.Note, error) {
	n := &domain.Note{}
	var tokenID int64
	err := row.Scan(&tokenID, &n.DenominationID, &n.SeriesID, &n.Rarity, &n.Serial, &n.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	n.TokenID = uint64(tokenID)
	return n, nil
}
