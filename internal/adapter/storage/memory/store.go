// Package memory is the single-process storage backend. It implements every
// repository port plus the transactor, and ships development adapters for
// the ownership registry and the backing asset.
package memory

import (
	"context"
	"errors"
	"sync"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// state is one consistent copy of everything the engine persists.
type state struct {
	series       map[string]domain.Series
	denoms       map[uint8]domain.Denomination
	rarities     map[uint8]domain.RarityTier
	rewardTiers  map[uint32]domain.RewardTier
	rewardSupply map[uint8]domain.RewardSupply
	settings     domain.RewardSettings
	notes        map[uint64]domain.Note
	lastTokenID  uint64
	serials      map[domain.SerialKey]int64
	settlements  map[uuid.UUID]domain.Settlement
	grantLogs    map[string]domain.GrantLog
}

func newState() *state {
	return &state{
		series:       make(map[string]domain.Series),
		denoms:       make(map[uint8]domain.Denomination),
		rarities:     make(map[uint8]domain.RarityTier),
		rewardTiers:  make(map[uint32]domain.RewardTier),
		rewardSupply: make(map[uint8]domain.RewardSupply),
		notes:        make(map[uint64]domain.Note),
		serials:      make(map[domain.SerialKey]int64),
		settlements:  make(map[uuid.UUID]domain.Settlement),
		grantLogs:    make(map[string]domain.GrantLog),
	}
}

func (st *state) clone() *state {
	c := &state{
		series:       make(map[string]domain.Series, len(st.series)),
		denoms:       make(map[uint8]domain.Denomination, len(st.denoms)),
		rarities:     make(map[uint8]domain.RarityTier, len(st.rarities)),
		rewardTiers:  make(map[uint32]domain.RewardTier, len(st.rewardTiers)),
		rewardSupply: make(map[uint8]domain.RewardSupply, len(st.rewardSupply)),
		settings:     st.settings,
		notes:        make(map[uint64]domain.Note, len(st.notes)),
		lastTokenID:  st.lastTokenID,
		serials:      make(map[domain.SerialKey]int64, len(st.serials)),
		settlements:  make(map[uuid.UUID]domain.Settlement, len(st.settlements)),
		grantLogs:    make(map[string]domain.GrantLog, len(st.grantLogs)),
	}
	for k, v := range st.series {
		c.series[k] = v
	}
	for k, v := range st.denoms {
		c.denoms[k] = v
	}
	for k, v := range st.rarities {
		c.rarities[k] = v
	}
	for k, v := range st.rewardTiers {
		c.rewardTiers[k] = v
	}
	for k, v := range st.rewardSupply {
		c.rewardSupply[k] = v
	}
	for k, v := range st.notes {
		c.notes[k] = v
	}
	for k, v := range st.serials {
		c.serials[k] = v
	}
	for k, v := range st.settlements {
		c.settlements[k] = v
	}
	for k, v := range st.grantLogs {
		c.grantLogs[k] = v
	}
	return c
}

// Store holds committed state. Transactions are serialised by txMu and work
// on a private copy that replaces the committed state on Commit.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state

	journal *EventJournal
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState(), journal: NewEventJournal()}
}

// Repositories returns every repository backed by this store.
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Series:        &SeriesRepo{s: s},
		Denominations: &DenominationRepo{s: s},
		Rarities:      &RarityRepo{s: s},
		Rewards:       &RewardRepo{s: s},
		Notes:         &NoteRepo{s: s},
		Serials:       &SerialCounterRepo{s: s},
		Settlements:   &SettlementRepo{s: s},
		GrantLogs:     &GrantLogRepo{s: s},
		Events:        s.journal,
		Transactor:    s,
	}
}

// Journal exposes the event journal for inspection.
func (s *Store) Journal() *EventJournal {
	return s.journal
}

// Begin starts a transaction. It blocks until the previous one finishes.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.RLock()
	working := s.st.clone()
	s.mu.RUnlock()
	return &memoryTx{store: s, st: working}, nil
}

// read runs fn against committed state.
func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// working resolves the private state of an open transaction.
func (s *Store) working(tx pgx.Tx) (*state, error) {
	mt, ok := tx.(*memoryTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt.st, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the dependency name.
func (s *Store) Name() string {
	return "memory"
}

// memoryTx satisfies pgx.Tx. Only Commit and Rollback are meaningful.
type memoryTx struct {
	pgx.Tx
	store *Store
	st    *state
	done  bool
}

func (t *memoryTx) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("memory: nested transactions are not supported")
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	t.store.st = t.st
	t.store.mu.Unlock()
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

// Rollback discards the working copy. Calling it after Commit is a no-op.
func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.st = nil
	t.store.txMu.Unlock()
	return nil
}
