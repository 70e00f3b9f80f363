package domain

import (
	"time"
)

// GrantLog records the outcome of a reward grant so a repeated grant with
// the same reference returns the original notes instead of issuing again.
type GrantLog struct {
	Key          string    `json:"key"` // Format: "granter:reference_id"
	TokenIDs     []uint64  `json:"token_ids"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildGrantKey constructs the standard grant idempotency key.
func BuildGrantKey(granter, referenceID string) string {
	return granter + ":" + referenceID
}
