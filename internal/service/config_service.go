package service

import (
	"context"
	"fmt"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ConfigServiceImpl implements ports.ConfigService. Every setter validates
// its whole input before writing, writes in one transaction and emits one
// configuration event per changed item after commit.
type ConfigServiceImpl struct {
	repos      ports.Repositories
	decomposer *Decomposer
	notifier   ports.Notifier
	log        zerolog.Logger
}

// NewConfigService creates a new ConfigServiceImpl.
func NewConfigService(repos ports.Repositories, decomposer *Decomposer, notifier ports.Notifier, log zerolog.Logger) *ConfigServiceImpl {
	return &ConfigServiceImpl{repos: repos, decomposer: decomposer, notifier: notifier, log: log}
}

// inTx runs fn in a transaction and commits it.
func (s *ConfigServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	dbTx, err := s.repos.Transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// SetSeries creates or replaces a series. The minted counter is kept.
func (s *ConfigServiceImpl) SetSeries(ctx context.Context, series domain.Series) (*domain.Series, error) {
	if series.ID == "" {
		return nil, apperror.Validation("series id is required")
	}
	if series.MaxSupply < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !series.StartTime.IsZero() && !series.EndTime.IsZero() && !series.EndTime.After(series.StartTime) {
		return nil, apperror.Validation("series end time must be after start time")
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := s.repos.Series.GetByIDForUpdate(ctx, tx, series.ID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock series: %w", err))
		}
		if existing != nil && series.Bounded() && series.MaxSupply < existing.Minted {
			return apperror.Validation(fmt.Sprintf("max supply %d is below minted count %d", series.MaxSupply, existing.Minted))
		}
		if err := s.repos.Series.Upsert(ctx, tx, &series); err != nil {
			return apperror.InternalError(fmt.Errorf("upsert series: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("series_id", series.ID).Int64("max_supply", series.MaxSupply).Bool("active", series.Active).Msg("series configured")
	s.notifier.Notify(ctx, domain.NewEvent(domain.EventSeriesConfigured, map[string]any{
		"series_id":  series.ID,
		"name":       series.Name,
		"base_path":  series.BasePath,
		"max_supply": series.MaxSupply,
		"active":     series.Active,
	}))
	return &series, nil
}

// SetDenomination creates or replaces a denomination and refreshes the
// decomposition order.
func (s *ConfigServiceImpl) SetDenomination(ctx context.Context, d domain.Denomination) (*domain.Denomination, error) {
	if d.Value < 0 || d.SerialOffset < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repos.Denominations.Upsert(ctx, tx, &d); err != nil {
			return apperror.InternalError(fmt.Errorf("upsert denomination: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.decomposer.Apply(d)

	s.log.Info().Uint8("denomination_id", d.ID).Int64("value", d.Value).Bool("active", d.Active).Msg("denomination configured")
	s.notifier.Notify(ctx, domain.NewEvent(domain.EventDenominationConfigured, map[string]any{
		"denomination_id": d.ID,
		"name":            d.Name,
		"value":           d.Value,
		"serial_offset":   d.SerialOffset,
		"active":          d.Active,
	}))
	return &d, nil
}

func validateRarityTier(t domain.RarityTier) error {
	if t.WeightBps < 0 || t.WeightBps > domain.BasisPoints {
		return apperror.Validation(fmt.Sprintf("rarity %d weight must be within 0..%d", t.Level, domain.BasisPoints))
	}
	if t.BonusBps < 0 {
		return apperror.Validation(fmt.Sprintf("rarity %d bonus must not be negative", t.Level))
	}
	return nil
}

// SetRarityTier replaces one tier. The set is not required to sum to 10000
// afterwards; a warning is logged when it does not.
func (s *ConfigServiceImpl) SetRarityTier(ctx context.Context, tier domain.RarityTier) error {
	if err := validateRarityTier(tier); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repos.Rarities.Upsert(ctx, tx, &tier); err != nil {
			return apperror.InternalError(fmt.Errorf("upsert rarity tier: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if tiers, err := s.repos.Rarities.List(ctx); err == nil {
		if sum := domain.TotalWeight(tiers); sum != domain.BasisPoints {
			s.log.Warn().Int64("weight_sum", sum).Msg("rarity weights do not sum to 10000, rolls past the sum fall back to the lowest tier")
		}
	}

	s.notifier.Notify(ctx, rarityEvent(tier))
	return nil
}

// SetRarityTiers replaces the whole tier set. The set must sum to exactly
// 10000 and is rejected as a whole otherwise.
func (s *ConfigServiceImpl) SetRarityTiers(ctx context.Context, tiers []domain.RarityTier) error {
	if len(tiers) == 0 {
		return apperror.Validation("at least one rarity tier is required")
	}
	seen := make(map[uint8]struct{}, len(tiers))
	for _, t := range tiers {
		if _, dup := seen[t.Level]; dup {
			return apperror.ErrDuplicateRarityLevel(t.Level)
		}
		seen[t.Level] = struct{}{}
		if err := validateRarityTier(t); err != nil {
			return err
		}
	}
	if sum := domain.TotalWeight(tiers); sum != domain.BasisPoints {
		return apperror.ErrRarityWeightSum(sum)
	}

	sorted := make([]domain.RarityTier, len(tiers))
	copy(sorted, tiers)
	domain.SortRarityTiers(sorted)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repos.Rarities.ReplaceAll(ctx, tx, sorted); err != nil {
			return apperror.InternalError(fmt.Errorf("replace rarity tiers: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Int("tiers", len(sorted)).Msg("rarity tiers configured")
	for _, t := range sorted {
		s.notifier.Notify(ctx, rarityEvent(t))
	}
	return nil
}

func rarityEvent(t domain.RarityTier) domain.Event {
	return domain.NewEvent(domain.EventRarityConfigured, map[string]any{
		"level":      t.Level,
		"name":       t.Name,
		"weight_bps": t.WeightBps,
		"bonus_bps":  t.BonusBps,
	})
}

// SetRewardTier maps one reward tier to a target value.
func (s *ConfigServiceImpl) SetRewardTier(ctx context.Context, tier domain.RewardTier) error {
	return s.SetRewardTiers(ctx, []uint32{tier.ID}, []int64{tier.Value})
}

// SetRewardTiers maps ids[i] to values[i]. All values are checked before
// any is written.
func (s *ConfigServiceImpl) SetRewardTiers(ctx context.Context, ids []uint32, values []int64) error {
	if len(ids) != len(values) {
		return apperror.ErrLengthMismatch()
	}
	if len(ids) == 0 {
		return apperror.Validation("at least one reward tier is required")
	}
	for _, v := range values {
		if v <= 0 {
			return apperror.ErrInvalidAmount()
		}
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range ids {
			if err := s.repos.Rewards.UpsertTier(ctx, tx, &domain.RewardTier{ID: ids[i], Value: values[i]}); err != nil {
				return apperror.InternalError(fmt.Errorf("upsert reward tier: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range ids {
		s.notifier.Notify(ctx, domain.NewEvent(domain.EventRewardTierConfigured, map[string]any{
			"tier_id": ids[i],
			"value":   values[i],
		}))
	}
	return nil
}

// SetRewardSupplyLimit caps decomposition-sourced issuance of a
// denomination. 0 removes the cap.
func (s *ConfigServiceImpl) SetRewardSupplyLimit(ctx context.Context, denominationID uint8, limit int64) error {
	if limit < 0 {
		return apperror.ErrInvalidAmount()
	}
	denom, err := s.repos.Denominations.GetByID(ctx, denominationID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get denomination: %w", err))
	}
	if denom == nil {
		return apperror.ErrDenominationNotFound(denominationID)
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repos.Rewards.SetLimit(ctx, tx, denominationID, limit); err != nil {
			return apperror.InternalError(fmt.Errorf("set reward limit: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, domain.NewEvent(domain.EventRewardLimitConfigured, map[string]any{
		"denomination_id": denominationID,
		"limit":           limit,
	}))
	return nil
}

// SetDefaultRewardSeries selects the series reward grants issue into.
func (s *ConfigServiceImpl) SetDefaultRewardSeries(ctx context.Context, seriesID string) error {
	series, err := s.repos.Series.GetByID(ctx, seriesID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get series: %w", err))
	}
	if series == nil {
		return apperror.ErrSeriesNotFound(seriesID)
	}

	err = s.updateSettings(ctx, func(rs *domain.RewardSettings) { rs.DefaultSeriesID = seriesID })
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, domain.NewEvent(domain.EventRewardSeriesConfigured, map[string]any{
		"series_id": seriesID,
	}))
	return nil
}

// SetRewardEnabled switches reward grants on or off.
func (s *ConfigServiceImpl) SetRewardEnabled(ctx context.Context, enabled bool) error {
	if err := s.updateSettings(ctx, func(rs *domain.RewardSettings) { rs.Enabled = enabled }); err != nil {
		return err
	}

	s.log.Info().Bool("enabled", enabled).Msg("reward system toggled")
	s.notifier.Notify(ctx, domain.NewEvent(domain.EventRewardToggled, map[string]any{
		"enabled": enabled,
	}))
	return nil
}

func (s *ConfigServiceImpl) updateSettings(ctx context.Context, mutate func(*domain.RewardSettings)) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		settings, err := s.repos.Rewards.GetSettingsForUpdate(ctx, tx)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get reward settings: %w", err))
		}
		mutate(settings)
		if err := s.repos.Rewards.SaveSettings(ctx, tx, settings); err != nil {
			return apperror.InternalError(fmt.Errorf("save reward settings: %w", err))
		}
		return nil
	})
}

// ResetSerialCounter overwrites a serial counter. Lowering it makes future
// notes reuse serials; the caller owns that decision.
func (s *ConfigServiceImpl) ResetSerialCounter(ctx context.Context, key domain.SerialKey, value int64) error {
	if value < 0 {
		return apperror.ErrInvalidAmount()
	}
	series, err := s.repos.Series.GetByID(ctx, key.SeriesID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get series: %w", err))
	}
	if series == nil {
		return apperror.ErrSeriesNotFound(key.SeriesID)
	}
	denom, err := s.repos.Denominations.GetByID(ctx, key.DenominationID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get denomination: %w", err))
	}
	if denom == nil {
		return apperror.ErrDenominationNotFound(key.DenominationID)
	}

	var previous int64
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if previous, err = s.repos.Serials.GetForUpdate(ctx, tx, key); err != nil {
			return apperror.InternalError(fmt.Errorf("get serial counter: %w", err))
		}
		if err := s.repos.Serials.Set(ctx, tx, key, value); err != nil {
			return apperror.InternalError(fmt.Errorf("set serial counter: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if value < previous {
		s.log.Warn().Str("series_id", key.SeriesID).Uint8("denomination_id", key.DenominationID).
			Int64("previous", previous).Int64("value", value).Msg("serial counter lowered, serials will repeat")
	}
	s.notifier.Notify(ctx, domain.NewEvent(domain.EventSerialReset, map[string]any{
		"series_id":       key.SeriesID,
		"denomination_id": key.DenominationID,
		"previous":        previous,
		"value":           value,
	}))
	return nil
}

// CorrectNote changes the rarity of an issued note.
func (s *ConfigServiceImpl) CorrectNote(ctx context.Context, tokenID uint64, rarity uint8) (*domain.Note, error) {
	tiers, err := s.repos.Rarities.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list rarity tiers: %w", err))
	}
	found := false
	for _, t := range tiers {
		if t.Level == rarity && t.Configured() {
			found = true
			break
		}
	}
	if !found {
		return nil, apperror.ErrRarityNotFound(rarity)
	}

	var (
		note     *domain.Note
		previous uint8
	)
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		n, err := s.repos.Notes.GetByIDForUpdate(ctx, tx, tokenID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock note: %w", err))
		}
		if n == nil {
			return apperror.ErrNoteNotFound(tokenID)
		}
		previous = n.Rarity
		n.Rarity = rarity
		if err := s.repos.Notes.Update(ctx, tx, n); err != nil {
			return apperror.InternalError(fmt.Errorf("update note: %w", err))
		}
		note = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint64("token_id", tokenID).Uint8("previous", previous).Uint8("rarity", rarity).Msg("note corrected")
	s.notifier.Notify(ctx, domain.NewEvent(domain.EventNoteCorrected, map[string]any{
		"token_id":        tokenID,
		"previous_rarity": previous,
		"rarity":          rarity,
	}))
	return note, nil
}
