package ports

import (
	"context"
	"math/big"
	"time"

	"note-issuance-engine/internal/core/domain"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/mock_collaborators.go -package=mocks

// OwnershipRegistry tracks which account holds each note token.
type OwnershipRegistry interface {
	Mint(ctx context.Context, to string, tokenID uint64) error
	Burn(ctx context.Context, tokenID uint64) error
	// OwnerOf returns "" when the token does not exist.
	OwnerOf(ctx context.Context, tokenID uint64) (string, error)
}

// BackingAsset is the fungible asset notes are redeemed for.
type BackingAsset interface {
	BalanceOf(ctx context.Context, account string) (int64, error)
	TransferFrom(ctx context.Context, from, to string, amount int64) error
	// Mint creates new units. Only used to cover a reserve shortfall.
	Mint(ctx context.Context, to string, amount int64, reason string) error
}

// MetadataRenderer turns resolved note attributes into a presentation payload.
type MetadataRenderer interface {
	Render(ctx context.Context, attrs domain.NoteAttributes) ([]byte, error)
}

// EventPublisher delivers events to one observer sink.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event) error
	Name() string
}

// EntropySource produces the wide seed a rarity roll is reduced from.
type EntropySource interface {
	Seed(ctx context.Context, caller string) (*big.Int, error)
}

// Clock abstracts wall time for series window checks.
type Clock interface {
	Now() time.Time
}
