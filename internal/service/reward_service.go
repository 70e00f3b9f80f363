package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const grantIdempotencyTTL = 24 * time.Hour

// RewardServiceImpl implements ports.RewardService.
type RewardServiceImpl struct {
	rewardRepo   ports.RewardRepository
	grantLogRepo ports.GrantLogRepository
	grantCache   ports.GrantCache
	transactor   ports.DBTransactor
	decomposer   *Decomposer
	issuer       *IssuanceServiceImpl
	log          zerolog.Logger
}

// NewRewardService creates a new RewardServiceImpl. grantCache may be nil
// when Redis is disabled; the database log alone then provides idempotency.
func NewRewardService(
	repos ports.Repositories,
	grantCache ports.GrantCache,
	decomposer *Decomposer,
	issuer *IssuanceServiceImpl,
	log zerolog.Logger,
) *RewardServiceImpl {
	return &RewardServiceImpl{
		rewardRepo:   repos.Rewards,
		grantLogRepo: repos.GrantLogs,
		grantCache:   grantCache,
		transactor:   repos.Transactor,
		decomposer:   decomposer,
		issuer:       issuer,
		log:          log,
	}
}

// Preview decomposes a tier against current reward supply without issuing.
func (s *RewardServiceImpl) Preview(ctx context.Context, tierID uint32) (*domain.Plan, error) {
	tier, err := s.tier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	supply, err := s.rewardRepo.ListSupply(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list reward supply: %w", err))
	}
	plan, err := s.decomposer.Plan(tier.Value, supply)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CanGrant reports whether the tier is fully expressible right now.
func (s *RewardServiceImpl) CanGrant(ctx context.Context, tierID uint32) (bool, error) {
	_, err := s.Preview(ctx, tierID)
	if apperror.IsKind(err, apperror.KindUnsatisfiable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemainingGrants estimates how many more grants of the tier fit under the
// reward supply limits. Returns 0 when the tier cannot be granted now.
func (s *RewardServiceImpl) RemainingGrants(ctx context.Context, tierID uint32) (int64, error) {
	tier, err := s.tier(ctx, tierID)
	if err != nil {
		return 0, err
	}
	supply, err := s.rewardRepo.ListSupply(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list reward supply: %w", err))
	}
	plan, err := s.decomposer.Plan(tier.Value, supply)
	if apperror.IsKind(err, apperror.KindUnsatisfiable) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return RemainingGrants(plan, supply), nil
}

// GrantReward decomposes the tier value and issues the resulting notes in
// the default reward series. A repeated ReferenceID returns the original
// result.
func (s *RewardServiceImpl) GrantReward(ctx context.Context, req ports.GrantRequest) (*ports.GrantResult, error) {
	if req.To == "" {
		return nil, apperror.Validation("recipient is required")
	}

	var grantKey string
	if req.ReferenceID != "" {
		grantKey = domain.BuildGrantKey(req.Granter, req.ReferenceID)
		if cached, err := s.lookupGrant(ctx, grantKey); err != nil || cached != nil {
			return cached, err
		}
	}

	results, err := s.grant(ctx, req.Granter, []string{req.To}, []uint32{req.TierID}, grantKey)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// GrantRewardBatch grants TierIDs[i] to Recipients[i]. All grants succeed
// together or none are issued.
func (s *RewardServiceImpl) GrantRewardBatch(ctx context.Context, req ports.GrantBatchRequest) ([]ports.GrantResult, error) {
	if len(req.Recipients) != len(req.TierIDs) {
		return nil, apperror.ErrLengthMismatch()
	}
	if len(req.Recipients) == 0 {
		return nil, apperror.Validation("at least one grant is required")
	}
	for _, to := range req.Recipients {
		if to == "" {
			return nil, apperror.Validation("recipient is required")
		}
	}
	return s.grant(ctx, req.Granter, req.Recipients, req.TierIDs, "")
}

func (s *RewardServiceImpl) grant(ctx context.Context, granter string, recipients []string, tierIDs []uint32, grantKey string) ([]ports.GrantResult, error) {
	settings, err := s.rewardRepo.GetSettings(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get reward settings: %w", err))
	}
	if !settings.Enabled {
		return nil, apperror.ErrRewardsDisabled()
	}
	if settings.DefaultSeriesID == "" {
		return nil, apperror.ErrDefaultSeriesUnset()
	}

	tiers := make([]*domain.RewardTier, len(tierIDs))
	for i, id := range tierIDs {
		if tiers[i], err = s.tier(ctx, id); err != nil {
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	supply, err := s.rewardRepo.ListSupplyForUpdate(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock reward supply: %w", err))
	}

	// Plan every grant before issuing anything. Each plan sees the supply
	// consumed by the ones before it.
	plans := make([]domain.Plan, len(tiers))
	for i, tier := range tiers {
		plan, err := s.decomposer.Plan(tier.Value, supply)
		if err != nil {
			return nil, err
		}
		consume(supply, plan)
		plans[i] = plan
	}
	if err := checkSupply(supply, plans); err != nil {
		return nil, err
	}

	minted := &mintLog{}
	results := make([]ports.GrantResult, len(tiers))
	for i, plan := range plans {
		notes, err := s.issuePlan(ctx, dbTx, minted, granter, recipients[i], settings.DefaultSeriesID, plan)
		if err != nil {
			s.issuer.compensate(ctx, minted)
			return nil, err
		}
		results[i] = ports.GrantResult{To: recipients[i], TierID: tiers[i].ID, Plan: plan, Notes: notes}
	}

	var respJSON []byte
	if grantKey != "" {
		if respJSON, err = s.saveGrantLog(ctx, dbTx, grantKey, &results[0]); err != nil {
			s.issuer.compensate(ctx, minted)
			return nil, err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.issuer.compensate(ctx, minted)
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if grantKey != "" && s.grantCache != nil {
		if err := s.grantCache.Set(ctx, grantKey, respJSON, grantIdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", grantKey).Msg("failed to cache grant in redis")
		}
	}

	for _, r := range results {
		s.log.Info().
			Str("granter", granter).
			Str("recipient", r.To).
			Uint32("tier_id", r.TierID).
			Int64("value", r.Plan.Target).
			Int64("notes", r.Plan.NoteCount()).
			Msg("reward granted")
		s.issuer.announce(ctx, r.To, r.Notes)
	}

	return results, nil
}

// issuePlan issues every plan entry and records reward supply consumption.
func (s *RewardServiceImpl) issuePlan(
	ctx context.Context,
	tx pgx.Tx,
	minted *mintLog,
	granter, to, seriesID string,
	plan domain.Plan,
) ([]domain.Note, error) {
	var notes []domain.Note
	for _, e := range plan.Entries {
		req := ports.IssueRequest{To: to, DenominationID: e.DenominationID, SeriesID: seriesID, Caller: granter}
		issued, err := s.issuer.issueInTx(ctx, tx, minted, req, e.Count, nil)
		if err != nil {
			return nil, err
		}
		if err := s.rewardRepo.AddMinted(ctx, tx, e.DenominationID, e.Count); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update reward minted: %w", err))
		}
		notes = append(notes, issued...)
	}
	return notes, nil
}

func (s *RewardServiceImpl) tier(ctx context.Context, id uint32) (*domain.RewardTier, error) {
	tier, err := s.rewardRepo.GetTier(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get reward tier: %w", err))
	}
	if tier == nil {
		return nil, apperror.ErrRewardTierNotFound(id)
	}
	return tier, nil
}

// lookupGrant checks Redis first, then the durable log.
func (s *RewardServiceImpl) lookupGrant(ctx context.Context, key string) (*ports.GrantResult, error) {
	if s.grantCache != nil {
		cached, err := s.grantCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis grant check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalGrant(cached)
		}
	}

	grantLog, err := s.grantLogRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db grant check: %w", err))
	}
	if grantLog != nil {
		return unmarshalGrant(grantLog.ResponseJSON)
	}
	return nil, nil
}

func (s *RewardServiceImpl) saveGrantLog(ctx context.Context, tx pgx.Tx, key string, result *ports.GrantResult) ([]byte, error) {
	respJSON, err := json.Marshal(result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal grant: %w", err))
	}
	tokenIDs := make([]uint64, len(result.Notes))
	for i, n := range result.Notes {
		tokenIDs[i] = n.TokenID
	}
	entry := &domain.GrantLog{
		Key:          key,
		TokenIDs:     tokenIDs,
		ResponseJSON: respJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.grantLogRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save grant log: %w", err))
	}
	return respJSON, nil
}

func unmarshalGrant(data []byte) (*ports.GrantResult, error) {
	var r ports.GrantResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached grant: %w", err))
	}
	return &r, nil
}

// checkSupply guards the reward limits of every planned denomination.
func checkSupply(supply map[uint8]domain.RewardSupply, plans []domain.Plan) error {
	for _, plan := range plans {
		for _, e := range plan.Entries {
			if sup := supply[e.DenominationID]; sup.Limited() && sup.Minted > sup.Limit {
				return apperror.ErrRewardSupplyExceeded(e.DenominationID)
			}
		}
	}
	return nil
}
