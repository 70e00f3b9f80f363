package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TokenRegistry implements ports.OwnershipRegistry over the token_owners
// table. Calls run outside the caller's transaction, like an external
// registry would.
type TokenRegistry struct {
	pool Pool
}

// NewTokenRegistry creates a new TokenRegistry.
func NewTokenRegistry(pool Pool) *TokenRegistry {
	return &TokenRegistry{pool: pool}
}

// Mint assigns a new token to an account.
func (r *TokenRegistry) Mint(ctx context.Context, to string, tokenID uint64) error {
	if to == "" {
		return fmt.Errorf("mint token %d: empty recipient", tokenID)
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO token_owners (token_id, owner) VALUES ($1, $2) ON CONFLICT (token_id) DO NOTHING`,
		int64(tokenID), to,
	)
	if err != nil {
		return fmt.Errorf("mint token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mint token %d: already exists", tokenID)
	}
	return nil
}

// Burn destroys a token.
func (r *TokenRegistry) Burn(ctx context.Context, tokenID uint64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM token_owners WHERE token_id = $1`, int64(tokenID))
	if err != nil {
		return fmt.Errorf("burn token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("burn token %d: not found", tokenID)
	}
	return nil
}

// OwnerOf returns the holder of a token, or "" if it does not exist.
func (r *TokenRegistry) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT owner FROM token_owners WHERE token_id = $1`, int64(tokenID)).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("owner of token %d: %w", tokenID, err)
	}
	return owner, nil
}

// AssetLedger implements ports.BackingAsset over the asset_balances table.
type AssetLedger struct {
	pool Pool
}

// NewAssetLedger creates a new AssetLedger.
func NewAssetLedger(pool Pool) *AssetLedger {
	return &AssetLedger{pool: pool}
}

// BalanceOf returns an account balance, 0 for unknown accounts.
func (l *AssetLedger) BalanceOf(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `SELECT balance FROM asset_balances WHERE account = $1`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance of %s: %w", account, err)
	}
	return balance, nil
}

// TransferFrom moves units between accounts. The source row is locked
// for the duration of the check and both updates.
func (l *AssetLedger) TransferFrom(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer: invalid amount %d", amount)
	}

	dbTx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	var balance int64
	err = dbTx.QueryRow(ctx, `SELECT balance FROM asset_balances WHERE account = $1 FOR UPDATE`, from).Scan(&balance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock balance of %s: %w", from, err)
	}
	if balance < amount {
		return fmt.Errorf("transfer: insufficient balance in %s", from)
	}

	if _, err := dbTx.Exec(ctx, `UPDATE asset_balances SET balance = balance - $1 WHERE account = $2`, amount, from); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := credit(ctx, dbTx, to, amount); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

// Mint creates new units and records why.
func (l *AssetLedger) Mint(ctx context.Context, to string, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("mint: invalid amount %d", amount)
	}

	dbTx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := credit(ctx, dbTx, to, amount); err != nil {
		return err
	}
	if _, err := dbTx.Exec(ctx,
		`INSERT INTO asset_mints (account, amount, reason) VALUES ($1, $2, $3)`,
		to, amount, reason,
	); err != nil {
		return fmt.Errorf("record mint: %w", err)
	}
	return dbTx.Commit(ctx)
}

// Deposit credits an account without recording a mint. Operators use it
// to fund the reserve.
func (l *AssetLedger) Deposit(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit: invalid amount %d", amount)
	}
	dbTx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := credit(ctx, dbTx, account, amount); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

func credit(ctx context.Context, tx pgx.Tx, account string, amount int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO asset_balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = asset_balances.balance + EXCLUDED.balance`,
		account, amount,
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}
