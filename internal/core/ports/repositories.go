package ports

import (
	"context"

	"note-issuance-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Methods accepting pgx.Tx are used inside transaction blocks; the
// ForUpdate variants take row locks so concurrent mutations serialise.

// SeriesRepository persists series definitions and their minted counters.
type SeriesRepository interface {
	Upsert(ctx context.Context, tx pgx.Tx, s *domain.Series) error
	GetByID(ctx context.Context, id string) (*domain.Series, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Series, error)
	List(ctx context.Context) ([]domain.Series, error)
	AddMinted(ctx context.Context, tx pgx.Tx, id string, n int64) error
}

// DenominationRepository persists denomination definitions.
type DenominationRepository interface {
	Upsert(ctx context.Context, tx pgx.Tx, d *domain.Denomination) error
	GetByID(ctx context.Context, id uint8) (*domain.Denomination, error)
	List(ctx context.Context) ([]domain.Denomination, error)
}

// RarityRepository persists rarity tiers. List returns ascending level order.
type RarityRepository interface {
	Upsert(ctx context.Context, tx pgx.Tx, tier *domain.RarityTier) error
	ReplaceAll(ctx context.Context, tx pgx.Tx, tiers []domain.RarityTier) error
	List(ctx context.Context) ([]domain.RarityTier, error)
}

// RewardRepository persists reward tiers, per-denomination reward supply
// and the global reward settings.
type RewardRepository interface {
	UpsertTier(ctx context.Context, tx pgx.Tx, tier *domain.RewardTier) error
	GetTier(ctx context.Context, id uint32) (*domain.RewardTier, error)
	SetLimit(ctx context.Context, tx pgx.Tx, denominationID uint8, limit int64) error
	ListSupply(ctx context.Context) (map[uint8]domain.RewardSupply, error)
	ListSupplyForUpdate(ctx context.Context, tx pgx.Tx) (map[uint8]domain.RewardSupply, error)
	AddMinted(ctx context.Context, tx pgx.Tx, denominationID uint8, n int64) error
	GetSettings(ctx context.Context) (*domain.RewardSettings, error)
	// GetSettingsForUpdate reads the settings and holds them locked until tx ends.
	GetSettingsForUpdate(ctx context.Context, tx pgx.Tx) (*domain.RewardSettings, error)
	SaveSettings(ctx context.Context, tx pgx.Tx, settings *domain.RewardSettings) error
}

// NoteRepository persists live notes. Notes are deleted at redemption.
type NoteRepository interface {
	NextTokenID(ctx context.Context, tx pgx.Tx) (uint64, error)
	Create(ctx context.Context, tx pgx.Tx, note *domain.Note) error
	GetByID(ctx context.Context, tokenID uint64) (*domain.Note, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, tokenID uint64) (*domain.Note, error)
	Update(ctx context.Context, tx pgx.Tx, note *domain.Note) error
	Delete(ctx context.Context, tx pgx.Tx, tokenID uint64) error
}

// SerialCounterRepository persists the per (series, denomination) counters.
type SerialCounterRepository interface {
	// Increment bumps the counter and returns the new value.
	Increment(ctx context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error)
	Get(ctx context.Context, key domain.SerialKey) (int64, error)
	// GetForUpdate returns the counter locked for the rest of tx.
	GetForUpdate(ctx context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error)
	Set(ctx context.Context, tx pgx.Tx, key domain.SerialKey, value int64) error
}

// SettlementRepository persists redemption payout records.
type SettlementRepository interface {
	Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Settlement, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Settlement, error)
	Update(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error
	// ListByStatus returns up to limit settlements, oldest first.
	ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]domain.Settlement, error)
}

// GrantLogRepository is the durable layer of reward-grant idempotency.
type GrantLogRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.GrantLog) error
	Get(ctx context.Context, key string) (*domain.GrantLog, error)
}

// EventRepository journals emitted events.
type EventRepository interface {
	Create(ctx context.Context, evt *domain.Event) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories bundles every repository a storage backend provides.
type Repositories struct {
	Series        SeriesRepository
	Denominations DenominationRepository
	Rarities      RarityRepository
	Rewards       RewardRepository
	Notes         NoteRepository
	Serials       SerialCounterRepository
	Settlements   SettlementRepository
	GrantLogs     GrantLogRepository
	Events        EventRepository
	Transactor    DBTransactor
}
