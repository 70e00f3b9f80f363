package ports

import (
	"context"
	"time"

	"note-issuance-engine/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks note-issuance-engine/internal/core/ports CredentialStore,NonceStore,TokenService

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles holder JWT operations.
type TokenService interface {
	Generate(account string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Account string
}

// GrantCache is the Redis-layer reward-grant idempotency check (fast path).
type GrantCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, accessKey string, nonce string, ttl time.Duration) (bool, error)
}

// CredentialRole separates operator keys from granter keys.
type CredentialRole string

const (
	RoleOperator CredentialRole = "operator"
	RoleGranter  CredentialRole = "granter"
)

// Credential is a resolved HMAC key pair.
type Credential struct {
	AccessKey string
	Secret    string
	Account   string
	Role      CredentialRole
}

// CredentialStore resolves access keys for signed requests.
type CredentialStore interface {
	Lookup(ctx context.Context, accessKey string) (*Credential, error)
}

// Notifier fans events out to observers. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, evt domain.Event)
}

// --- Service Ports (Business Logic) ---

// ConfigService is the configuration surface of the engine.
type ConfigService interface {
	SetSeries(ctx context.Context, s domain.Series) (*domain.Series, error)
	SetDenomination(ctx context.Context, d domain.Denomination) (*domain.Denomination, error)
	SetRarityTier(ctx context.Context, tier domain.RarityTier) error
	SetRarityTiers(ctx context.Context, tiers []domain.RarityTier) error
	SetRewardTier(ctx context.Context, tier domain.RewardTier) error
	SetRewardTiers(ctx context.Context, ids []uint32, values []int64) error
	SetRewardSupplyLimit(ctx context.Context, denominationID uint8, limit int64) error
	SetDefaultRewardSeries(ctx context.Context, seriesID string) error
	SetRewardEnabled(ctx context.Context, enabled bool) error
	ResetSerialCounter(ctx context.Context, key domain.SerialKey, value int64) error
	CorrectNote(ctx context.Context, tokenID uint64, rarity uint8) (*domain.Note, error)
}

// IssueRequest holds validated input for note issuance.
type IssueRequest struct {
	To             string
	DenominationID uint8
	SeriesID       string
	Caller         string // identity mixed into replayable entropy
}

// IssuanceService issues notes.
type IssuanceService interface {
	Issue(ctx context.Context, req IssueRequest) (*domain.Note, error)
	IssueWithRarity(ctx context.Context, req IssueRequest, rarity uint8) (*domain.Note, error)
	IssueBatch(ctx context.Context, req IssueRequest, count int64) ([]domain.Note, error)
}

// GrantRequest holds validated input for a reward grant.
type GrantRequest struct {
	Granter     string
	To          string
	TierID      uint32
	ReferenceID string // optional; enables idempotent retries
}

// GrantBatchRequest grants tiers[i] to recipients[i].
type GrantBatchRequest struct {
	Granter    string
	Recipients []string
	TierIDs    []uint32
}

// GrantResult is the outcome of one reward grant.
type GrantResult struct {
	To     string        `json:"to"`
	TierID uint32        `json:"tier_id"`
	Plan   domain.Plan   `json:"plan"`
	Notes  []domain.Note `json:"notes"`
}

// RewardService issues notes from reward tiers via decomposition.
type RewardService interface {
	Preview(ctx context.Context, tierID uint32) (*domain.Plan, error)
	GrantReward(ctx context.Context, req GrantRequest) (*GrantResult, error)
	GrantRewardBatch(ctx context.Context, req GrantBatchRequest) ([]GrantResult, error)
	CanGrant(ctx context.Context, tierID uint32) (bool, error)
	RemainingGrants(ctx context.Context, tierID uint32) (int64, error)
}

// RedemptionService retires notes and settles their value.
type RedemptionService interface {
	Redeem(ctx context.Context, caller string, tokenID uint64) (*domain.Settlement, error)
	RedeemFor(ctx context.Context, granter, holder string, tokenID uint64) (*domain.Settlement, error)
	RetrySettlement(ctx context.Context, id uuid.UUID) (*domain.Settlement, error)
	ListSettlements(ctx context.Context, status domain.SettlementStatus, limit int) ([]domain.Settlement, error)
}

// NoteService resolves note attributes for presentation collaborators.
type NoteService interface {
	Attributes(ctx context.Context, tokenID uint64) (*domain.NoteAttributes, error)
	Describe(ctx context.Context, tokenID uint64) ([]byte, error)
}

// SeriesSupply is one row of the supply report.
type SeriesSupply struct {
	SeriesID  string `json:"series_id"`
	Minted    int64  `json:"minted"`
	MaxSupply int64  `json:"max_supply"`
	Active    bool   `json:"active"`
}

// SupplyReport aggregates counters for operators.
type SupplyReport struct {
	Series         []SeriesSupply        `json:"series"`
	RewardSupply   []domain.RewardSupply `json:"reward_supply"`
	ReserveBalance int64                 `json:"reserve_balance"`
	RewardSettings domain.RewardSettings `json:"reward_settings"`
}

// ReportingService defines operator reporting.
type ReportingService interface {
	SupplyReport(ctx context.Context) (*SupplyReport, error)
}
