package memory

import (
	"context"
	"sync"
	"testing"

	"note-issuance-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foreignTx struct{ pgx.Tx }

func TestStore_CommitPublishesWorkingCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repos.Series.Upsert(ctx, tx, &domain.Series{ID: "AA", MaxSupply: 2, Active: true}))

	// Uncommitted writes are invisible outside the transaction.
	got, err := repos.Series.GetByID(ctx, "AA")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err = repos.Series.GetByID(ctx, "AA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.MaxSupply)
}

func TestStore_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	key := domain.SerialKey{SeriesID: "AA", DenominationID: 1}

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	n, err := repos.Serials.Increment(ctx, tx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback(ctx))

	v, err := repos.Serials.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	// A closed transaction cannot be written through.
	_, err = repos.Serials.Increment(ctx, tx, key)
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

func TestStore_RejectsForeignTx(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	err := repos.Notes.Create(ctx, &foreignTx{}, &domain.Note{TokenID: 1})
	assert.ErrorIs(t, err, errForeignTx)
}

func TestStore_SeriesUpsertKeepsMinted(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	tx, _ := store.Begin(ctx)
	require.NoError(t, repos.Series.Upsert(ctx, tx, &domain.Series{ID: "AA", Active: true}))
	require.NoError(t, repos.Series.AddMinted(ctx, tx, "AA", 5))
	require.NoError(t, repos.Series.Upsert(ctx, tx, &domain.Series{ID: "AA", Name: "renamed", Active: false}))
	require.NoError(t, tx.Commit(ctx))

	s, _ := repos.Series.GetByID(ctx, "AA")
	assert.Equal(t, int64(5), s.Minted)
	assert.Equal(t, "renamed", s.Name)
	assert.False(t, s.Active)
}

func TestStore_TransactionsSerialise(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	key := domain.SerialKey{SeriesID: "AA", DenominationID: 1}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := store.Begin(ctx)
			if err != nil {
				return
			}
			defer tx.Rollback(ctx) //nolint:errcheck
			if _, err := repos.Serials.Increment(ctx, tx, key); err != nil {
				return
			}
			_ = tx.Commit(ctx)
		}()
	}
	wg.Wait()

	v, err := repos.Serials.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)
}

func TestStore_RarityListAscending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()

	tx, _ := store.Begin(ctx)
	require.NoError(t, repos.Rarities.ReplaceAll(ctx, tx, []domain.RarityTier{
		{Level: 3, WeightBps: 500}, {Level: 1, WeightBps: 7000}, {Level: 2, WeightBps: 2500},
	}))
	require.NoError(t, tx.Commit(ctx))

	tiers, err := repos.Rarities.List(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, []uint8{1, 2, 3}, []uint8{tiers[0].Level, tiers[1].Level, tiers[2].Level})
}

func TestTokenRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewTokenRegistry()

	require.NoError(t, reg.Mint(ctx, "alice", 1))
	assert.Error(t, reg.Mint(ctx, "bob", 1))

	owner, _ := reg.OwnerOf(ctx, 1)
	assert.Equal(t, "alice", owner)

	assert.Error(t, reg.Transfer(ctx, "bob", "carol", 1))
	require.NoError(t, reg.Transfer(ctx, "alice", "bob", 1))
	owner, _ = reg.OwnerOf(ctx, 1)
	assert.Equal(t, "bob", owner)

	require.NoError(t, reg.Burn(ctx, 1))
	owner, _ = reg.OwnerOf(ctx, 1)
	assert.Empty(t, owner)
	assert.Error(t, reg.Burn(ctx, 1))
}

func TestAssetLedger(t *testing.T) {
	ctx := context.Background()
	l := NewAssetLedger(map[string]int64{"reserve": 600})

	assert.Error(t, l.TransferFrom(ctx, "reserve", "alice", 1000))
	require.NoError(t, l.TransferFrom(ctx, "reserve", "alice", 600))
	require.NoError(t, l.Mint(ctx, "alice", 500, "shortfall"))

	bal, _ := l.BalanceOf(ctx, "alice")
	assert.Equal(t, int64(1100), bal)
	bal, _ = l.BalanceOf(ctx, "reserve")
	assert.Equal(t, int64(0), bal)
	assert.Equal(t, int64(500), l.TotalMinted())
	assert.Error(t, l.Mint(ctx, "alice", 0, "zero"))
}

func TestEventJournal(t *testing.T) {
	ctx := context.Background()
	j := NewEventJournal()

	issued := domain.NewEvent(domain.EventNoteIssued, nil)
	redeemed := domain.NewEvent(domain.EventNoteRedeemed, nil)
	require.NoError(t, j.Create(ctx, &issued))
	require.NoError(t, j.Create(ctx, &redeemed))

	assert.Len(t, j.Events(), 2)
	assert.Len(t, j.OfType(domain.EventNoteRedeemed), 1)
}
