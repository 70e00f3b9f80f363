package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an observable engine event.
type EventType string

const (
	EventNoteIssued       EventType = "NOTE_ISSUED"
	EventNoteRedeemed     EventType = "NOTE_REDEEMED"
	EventSettlementFailed EventType = "SETTLEMENT_FAILED"

	EventSeriesConfigured       EventType = "CONFIG_SERIES"
	EventDenominationConfigured EventType = "CONFIG_DENOMINATION"
	EventRarityConfigured       EventType = "CONFIG_RARITY"
	EventRewardTierConfigured   EventType = "CONFIG_REWARD_TIER"
	EventRewardLimitConfigured  EventType = "CONFIG_REWARD_LIMIT"
	EventRewardSeriesConfigured EventType = "CONFIG_REWARD_SERIES"
	EventRewardToggled          EventType = "CONFIG_REWARD_ENABLED"
	EventSerialReset            EventType = "CONFIG_SERIAL_RESET"
	EventNoteCorrected          EventType = "CONFIG_NOTE_CORRECTED"
)

// Event is the envelope delivered to observers.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent stamps a new event envelope.
func NewEvent(t EventType, payload map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// NoteIssuedEvent builds the issuance event for a note.
func NoteIssuedEvent(n *Note, recipient string) Event {
	return NewEvent(EventNoteIssued, map[string]any{
		"token_id":        n.TokenID,
		"recipient":       recipient,
		"denomination_id": n.DenominationID,
		"series_id":       n.SeriesID,
		"rarity":          n.Rarity,
		"serial":          n.Serial,
	})
}

// NoteRedeemedEvent builds the redemption event for a settlement.
func NoteRedeemedEvent(s *Settlement) Event {
	return NewEvent(EventNoteRedeemed, map[string]any{
		"token_id":      s.TokenID,
		"redeemer":      s.Redeemer,
		"value":         s.Value,
		"rarity":        s.Rarity,
		"reserve_paid":  s.ReservePaid,
		"minted":        s.Minted,
		"settlement_id": s.ID.String(),
	})
}
