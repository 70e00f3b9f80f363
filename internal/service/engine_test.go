package service

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"note-issuance-engine/internal/adapter/storage/memory"
	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReserve = "reserve"

// fixedClock is a settable ports.Clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// scriptedEntropy returns queued seeds, then zero.
type scriptedEntropy struct {
	mu    sync.Mutex
	seeds []int64
}

func (e *scriptedEntropy) Seed(_ context.Context, _ string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.seeds) == 0 {
		return big.NewInt(0), nil
	}
	s := e.seeds[0]
	e.seeds = e.seeds[1:]
	return big.NewInt(s), nil
}

func (e *scriptedEntropy) Queue(seeds ...int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeds = append(e.seeds, seeds...)
}

// testEngine wires every service over the memory store.
type testEngine struct {
	store      *memory.Store
	repos      ports.Repositories
	registry   *memory.TokenRegistry
	ledger     *memory.AssetLedger
	clock      *fixedClock
	entropy    *scriptedEntropy
	decomposer *Decomposer
	config     *ConfigServiceImpl
	issuance   *IssuanceServiceImpl
	rewards    *RewardServiceImpl
	redemption *RedemptionServiceImpl
	notes      ports.NoteService
	reporting  ports.ReportingService
}

type engineOptions struct {
	registry ports.OwnershipRegistry
	asset    ports.BackingAsset
	renderer ports.MetadataRenderer
	cache    ports.GrantCache
}

func newTestEngine(t *testing.T, reserve int64) *testEngine {
	return newTestEngineWith(t, reserve, engineOptions{})
}

func newTestEngineWith(t *testing.T, reserve int64, opts engineOptions) *testEngine {
	t.Helper()
	e := &testEngine{
		store:    memory.NewStore(),
		registry: memory.NewTokenRegistry(),
		ledger:   memory.NewAssetLedger(map[string]int64{testReserve: reserve}),
		clock:    &fixedClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
		entropy:  &scriptedEntropy{},
	}
	e.repos = e.store.Repositories()

	var registry ports.OwnershipRegistry = e.registry
	if opts.registry != nil {
		registry = opts.registry
	}
	var asset ports.BackingAsset = e.ledger
	if opts.asset != nil {
		asset = opts.asset
	}

	log := newTestLogger()
	notifier := NewNotifier(log, NewJournalSink(e.repos.Events))

	e.decomposer = NewDecomposer(e.repos.Denominations)
	require.NoError(t, e.decomposer.Rebuild(context.Background()))

	e.config = NewConfigService(e.repos, e.decomposer, notifier, log)
	e.issuance = NewIssuanceService(e.repos, NewRaritySelector(e.repos.Rarities, e.entropy), registry, e.clock, notifier, log)
	e.rewards = NewRewardService(e.repos, opts.cache, e.decomposer, e.issuance, log)
	e.redemption = NewRedemptionService(e.repos, registry, asset, e.clock, notifier, SettlementOptions{
		ReserveAccount:  testReserve,
		MintReason:      "test shortfall",
		TrustedGranters: []string{"quest-engine"},
		StaleAfter:      testStaleAfter,
	}, log)
	e.notes = NewNoteService(e.repos, opts.renderer)
	e.reporting = NewReportingService(e.repos, asset, testReserve)
	return e
}

const testStaleAfter = 10 * time.Minute

// Denomination ids used across the tests.
const (
	bronze uint8 = 1
	silver uint8 = 2
	gold   uint8 = 3
)

// seed configures series AA, three denominations and a four-tier rarity set.
func (e *testEngine) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := e.config.SetSeries(ctx, domain.Series{ID: "AA", Name: "First Issue", BasePath: "ipfs://aa", Active: true})
	require.NoError(t, err)

	for _, d := range []domain.Denomination{
		{ID: bronze, Name: "Bronze", Value: 50, MediaPath: "bronze.png", SerialOffset: 0, Active: true},
		{ID: silver, Name: "Silver", Value: 250, MediaPath: "silver.png", SerialOffset: 100000, Active: true},
		{ID: gold, Name: "Gold", Value: 1000, MediaPath: "gold.png", SerialOffset: 200000, Active: true},
	} {
		_, err := e.config.SetDenomination(ctx, d)
		require.NoError(t, err)
	}

	require.NoError(t, e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, Name: "Common", WeightBps: 7000, BonusBps: 10000},
		{Level: 2, Name: "Uncommon", WeightBps: 2000, BonusBps: 10500},
		{Level: 3, Name: "Rare", WeightBps: 900, BonusBps: 11000},
		{Level: 4, Name: "Legendary", WeightBps: 100, BonusBps: 15000},
	}))
}

func (e *testEngine) enableRewards(t *testing.T, series string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.config.SetDefaultRewardSeries(ctx, series))
	require.NoError(t, e.config.SetRewardEnabled(ctx, true))
}

func (e *testEngine) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := e.ledger.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return b
}

func issueReq(to string, denom uint8, series string) ports.IssueRequest {
	return ports.IssueRequest{To: to, DenominationID: denom, SeriesID: series, Caller: "operator"}
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
