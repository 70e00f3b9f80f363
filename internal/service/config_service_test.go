package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"note-issuance-engine/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigService_SetRarityTiers_RejectsBadSum(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	err := e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, Name: "Common", WeightBps: 7000, BonusBps: 10000},
		{Level: 2, Name: "Uncommon", WeightBps: 2000, BonusBps: 10500},
		{Level: 3, Name: "Rare", WeightBps: 900, BonusBps: 11000},
	})
	assertAppError(t, err, "CFG_001")

	tiers, err := e.repos.Rarities.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tiers, "nothing is applied")
	assert.Empty(t, e.store.Journal().OfType(domain.EventRarityConfigured))
}

func TestConfigService_SetRarityTiers_ReplacesSet(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()

	require.NoError(t, e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 5, Name: "Mythic", WeightBps: 500, BonusBps: 20000},
		{Level: 1, Name: "Plain", WeightBps: 9500, BonusBps: 10000},
	}))

	tiers, err := e.repos.Rarities.List(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, uint8(1), tiers[0].Level)
	assert.Equal(t, uint8(5), tiers[1].Level)
}

func TestConfigService_SetRarityTiers_Validation(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	err := e.config.SetRarityTiers(ctx, nil)
	assertAppError(t, err, "CFG_000")

	err = e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, WeightBps: 5000},
		{Level: 1, WeightBps: 5000},
	})
	assertAppError(t, err, "CFG_004")

	err = e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, WeightBps: 12000},
	})
	assertAppError(t, err, "CFG_000")

	err = e.config.SetRarityTiers(ctx, []domain.RarityTier{
		{Level: 1, WeightBps: 10000, BonusBps: -1},
	})
	assertAppError(t, err, "CFG_000")
}

func TestConfigService_SetRarityTier_AllowsPartialSum(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.config.SetRarityTier(ctx, domain.RarityTier{Level: 2, Name: "Half", WeightBps: 5000, BonusBps: 10000}))

	tiers, _ := e.repos.Rarities.List(ctx)
	require.Len(t, tiers, 1)
	assert.Len(t, e.store.Journal().OfType(domain.EventRarityConfigured), 1)
}

func TestConfigService_SetSeries(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()
	now := e.clock.Now()

	_, err := e.config.SetSeries(ctx, domain.Series{})
	assertAppError(t, err, "CFG_000")

	_, err = e.config.SetSeries(ctx, domain.Series{ID: "BB", MaxSupply: -1})
	assertAppError(t, err, "CFG_003")

	_, err = e.config.SetSeries(ctx, domain.Series{ID: "BB", StartTime: now, EndTime: now})
	assertAppError(t, err, "CFG_000")

	_, err = e.issuance.IssueBatch(ctx, issueReq("alice", bronze, "AA"), 3)
	require.NoError(t, err)

	_, err = e.config.SetSeries(ctx, domain.Series{ID: "AA", MaxSupply: 2, Active: true})
	assertAppError(t, err, "CFG_000")

	// Reconfiguring keeps the minted counter.
	_, err = e.config.SetSeries(ctx, domain.Series{ID: "AA", Name: "Renamed", MaxSupply: 3, Active: true})
	require.NoError(t, err)
	series, _ := e.repos.Series.GetByID(ctx, "AA")
	assert.Equal(t, "Renamed", series.Name)
	assert.Equal(t, int64(3), series.Minted)

	assert.NotEmpty(t, e.store.Journal().OfType(domain.EventSeriesConfigured))
}

func TestConfigService_SetDenomination(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	_, err := e.config.SetDenomination(ctx, domain.Denomination{ID: 1, Value: -5})
	assertAppError(t, err, "CFG_003")

	_, err = e.config.SetDenomination(ctx, domain.Denomination{ID: 1, Value: 5, SerialOffset: -1})
	assertAppError(t, err, "CFG_003")

	_, err = e.config.SetDenomination(ctx, domain.Denomination{ID: 1, Name: "Penny", Value: 5, Active: true})
	require.NoError(t, err)
	require.Len(t, e.decomposer.Sorted(), 1)
	assert.Equal(t, int64(5), e.decomposer.Sorted()[0].Value)
}

func TestConfigService_RewardSettings(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()

	err := e.config.SetRewardTiers(ctx, []uint32{1, 2}, []int64{100})
	assertAppError(t, err, "CFG_002")

	err = e.config.SetRewardTiers(ctx, []uint32{1}, []int64{0})
	assertAppError(t, err, "CFG_003")

	require.NoError(t, e.config.SetRewardTier(ctx, domain.RewardTier{ID: 7, Value: 300}))
	tier, _ := e.repos.Rewards.GetTier(ctx, 7)
	require.NotNil(t, tier)
	assert.Equal(t, int64(300), tier.Value)

	err = e.config.SetRewardSupplyLimit(ctx, 99, 10)
	assertAppError(t, err, "ISS_006")
	err = e.config.SetRewardSupplyLimit(ctx, gold, -1)
	assertAppError(t, err, "CFG_003")
	require.NoError(t, e.config.SetRewardSupplyLimit(ctx, gold, 10))

	err = e.config.SetDefaultRewardSeries(ctx, "ZZ")
	assertAppError(t, err, "ISS_001")

	e.enableRewards(t, "AA")
	settings, _ := e.repos.Rewards.GetSettings(ctx)
	assert.Equal(t, domain.RewardSettings{DefaultSeriesID: "AA", Enabled: true}, *settings)

	supply, _ := e.repos.Rewards.ListSupply(ctx)
	assert.Equal(t, int64(10), supply[gold].Limit)
}

func TestConfigService_ResetSerialCounter(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()
	key := domain.SerialKey{SeriesID: "AA", DenominationID: silver}

	require.NoError(t, e.config.ResetSerialCounter(ctx, key, 41))
	note, err := e.issuance.Issue(ctx, issueReq("alice", silver, "AA"))
	require.NoError(t, err)
	assert.Equal(t, int64(100042), note.Serial)

	assertAppError(t, e.config.ResetSerialCounter(ctx, key, -1), "CFG_003")
	assertAppError(t, e.config.ResetSerialCounter(ctx, domain.SerialKey{SeriesID: "ZZ", DenominationID: silver}, 0), "ISS_001")
	assertAppError(t, e.config.ResetSerialCounter(ctx, domain.SerialKey{SeriesID: "AA", DenominationID: 99}, 0), "ISS_006")

	events := e.store.Journal().OfType(domain.EventSerialReset)
	require.Len(t, events, 1)
	assert.Equal(t, int64(41), events[0].Payload["value"])
	assert.Equal(t, int64(0), events[0].Payload["previous"])
}

func TestConfigService_ResetSerialCounter_ReportsCounterSeenInTx(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()
	key := domain.SerialKey{SeriesID: "AA", DenominationID: silver}

	for i := 0; i < 3; i++ {
		_, err := e.issuance.Issue(ctx, issueReq("alice", silver, "AA"))
		require.NoError(t, err)
	}
	require.NoError(t, e.config.ResetSerialCounter(ctx, key, 1))

	events := e.store.Journal().OfType(domain.EventSerialReset)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].Payload["previous"])
	assert.Equal(t, int64(1), events[0].Payload["value"])
}

func TestConfigService_ConcurrentSettingsUpdatesBothLand(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = e.config.SetRewardEnabled(ctx, true)
	}()
	go func() {
		defer wg.Done()
		errs[1] = e.config.SetDefaultRewardSeries(ctx, "AA")
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	settings, err := e.repos.Rewards.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RewardSettings{DefaultSeriesID: "AA", Enabled: true}, *settings)
}

func TestConfigService_CorrectNote(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()

	note, err := e.issuance.IssueWithRarity(ctx, issueReq("alice", gold, "AA"), 1)
	require.NoError(t, err)

	corrected, err := e.config.CorrectNote(ctx, note.TokenID, 4)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), corrected.Rarity)
	assert.Equal(t, note.Serial, corrected.Serial)

	stored, _ := e.repos.Notes.GetByID(ctx, note.TokenID)
	assert.Equal(t, uint8(4), stored.Rarity)

	_, err = e.config.CorrectNote(ctx, note.TokenID, 9)
	assertAppError(t, err, "ISS_008")
	_, err = e.config.CorrectNote(ctx, 999, 2)
	assertAppError(t, err, "RDM_001")

	events := e.store.Journal().OfType(domain.EventNoteCorrected)
	require.Len(t, events, 1)
	assert.Equal(t, uint8(1), events[0].Payload["previous_rarity"])
}

func TestConfigService_SeriesWindowRoundTrip(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	out, err := e.config.SetSeries(ctx, domain.Series{ID: "WW", StartTime: start, EndTime: start.Add(48 * time.Hour), Active: true})
	require.NoError(t, err)
	assert.Equal(t, "WW", out.ID)

	stored, _ := e.repos.Series.GetByID(ctx, "WW")
	assert.True(t, stored.StartTime.Equal(start))
	assert.True(t, stored.EndTime.Equal(start.Add(48*time.Hour)))
}
