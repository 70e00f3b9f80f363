package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementStatus represents the lifecycle state of a redemption payout.
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "PENDING"
	SettlementStatusSuccess SettlementStatus = "SUCCESS"
	SettlementStatusFailed  SettlementStatus = "FAILED"
)

// Settlement records the payout owed for one retired note.
type Settlement struct {
	ID          uuid.UUID        `json:"id"`
	TokenID     uint64           `json:"token_id"`
	Redeemer    string           `json:"redeemer"`
	Granter     string           `json:"granter,omitempty"` // set for delegated redemptions
	Rarity      uint8            `json:"rarity"`
	Value       int64            `json:"value"`
	ReservePaid int64            `json:"reserve_paid"`
	Minted      int64            `json:"minted"`
	Status      SettlementStatus `json:"status"`
	LastError   *string          `json:"last_error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"` // last claim or outcome write
	SettledAt   *time.Time       `json:"settled_at,omitempty"`
}

// Outstanding returns the amount still owed to the redeemer.
func (s *Settlement) Outstanding() int64 {
	return s.Value - s.ReservePaid - s.Minted
}

// IsTerminal returns true if nothing more is owed.
func (s *Settlement) IsTerminal() bool {
	return s.Status == SettlementStatusSuccess
}

// IsRetryable reports whether a payout can be resumed at now. FAILED
// settlements always can. A PENDING one can once it has not been touched
// for staleAfter, which covers a payout whose outcome was never recorded;
// staleAfter <= 0 disables that.
func (s *Settlement) IsRetryable(now time.Time, staleAfter time.Duration) bool {
	if s.Outstanding() <= 0 {
		return false
	}
	switch s.Status {
	case SettlementStatusFailed:
		return true
	case SettlementStatusPending:
		return staleAfter > 0 && !now.Before(s.UpdatedAt.Add(staleAfter))
	default:
		return false
	}
}
