package memory

import (
	"context"
	"fmt"
	"sync"

	"note-issuance-engine/internal/core/domain"
)

// EventJournal keeps emitted events in process. It is not part of the
// transactional state: events are journaled after commit.
type EventJournal struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewEventJournal creates an empty journal.
func NewEventJournal() *EventJournal {
	return &EventJournal{}
}

// Create implements ports.EventRepository.
func (j *EventJournal) Create(_ context.Context, evt *domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *evt)
	return nil
}

// Events returns a copy of the journal, oldest first.
func (j *EventJournal) Events() []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]domain.Event, len(j.events))
	copy(out, j.events)
	return out
}

// OfType returns the journaled events of one type.
func (j *EventJournal) OfType(t domain.EventType) []domain.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []domain.Event
	for _, e := range j.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// TokenRegistry is an in-process ownership registry.
type TokenRegistry struct {
	mu     sync.RWMutex
	owners map[uint64]string
}

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{owners: make(map[uint64]string)}
}

// Mint assigns a new token to an account.
func (r *TokenRegistry) Mint(_ context.Context, to string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if to == "" {
		return fmt.Errorf("mint token %d: empty recipient", tokenID)
	}
	if _, ok := r.owners[tokenID]; ok {
		return fmt.Errorf("mint token %d: already exists", tokenID)
	}
	r.owners[tokenID] = to
	return nil
}

// Burn destroys a token.
func (r *TokenRegistry) Burn(_ context.Context, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[tokenID]; !ok {
		return fmt.Errorf("burn token %d: not found", tokenID)
	}
	delete(r.owners, tokenID)
	return nil
}

// OwnerOf returns the holder of a token, or "" if it does not exist.
func (r *TokenRegistry) OwnerOf(_ context.Context, tokenID uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[tokenID], nil
}

// Transfer moves a token between accounts.
func (r *TokenRegistry) Transfer(_ context.Context, from, to string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[tokenID] != from {
		return fmt.Errorf("transfer token %d: %s is not the holder", tokenID, from)
	}
	r.owners[tokenID] = to
	return nil
}

// AssetLedger is an in-process backing-asset ledger.
type AssetLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
	minted   int64
}

// NewAssetLedger creates a ledger with opening balances.
func NewAssetLedger(opening map[string]int64) *AssetLedger {
	l := &AssetLedger{balances: make(map[string]int64, len(opening))}
	for k, v := range opening {
		l.balances[k] = v
	}
	return l
}

// BalanceOf returns an account balance.
func (l *AssetLedger) BalanceOf(_ context.Context, account string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// TransferFrom moves units between accounts.
func (l *AssetLedger) TransferFrom(_ context.Context, from, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return fmt.Errorf("transfer: invalid amount %d", amount)
	}
	if l.balances[from] < amount {
		return fmt.Errorf("transfer: insufficient balance in %s", from)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Mint creates new units.
func (l *AssetLedger) Mint(_ context.Context, to string, amount int64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return fmt.Errorf("mint: invalid amount %d", amount)
	}
	l.balances[to] += amount
	l.minted += amount
	return nil
}

// Deposit credits an account without counting it as minted.
func (l *AssetLedger) Deposit(_ context.Context, account string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return fmt.Errorf("deposit: invalid amount %d", amount)
	}
	l.balances[account] += amount
	return nil
}

// TotalMinted returns the units created by Mint.
func (l *AssetLedger) TotalMinted() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted
}
