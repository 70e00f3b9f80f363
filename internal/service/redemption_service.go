package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxSettlementPage = 500

// SettlementOptions configures where redemption payouts come from.
type SettlementOptions struct {
	ReserveAccount  string
	MintReason      string
	TrustedGranters []string
	// StaleAfter lets RetrySettlement take over a PENDING settlement that
	// has not been updated for this long. Zero disables it.
	StaleAfter time.Duration
}

// RedemptionServiceImpl implements ports.RedemptionService.
//
// Notes are retired before they are paid for: the note row is deleted and
// the token burned in one transaction, then the payout runs. A payout that
// fails leaves a FAILED settlement whose outstanding amount RetrySettlement
// pays later.
type RedemptionServiceImpl struct {
	noteRepo       ports.NoteRepository
	denomRepo      ports.DenominationRepository
	rarityRepo     ports.RarityRepository
	settlementRepo ports.SettlementRepository
	transactor     ports.DBTransactor
	registry       ports.OwnershipRegistry
	asset          ports.BackingAsset
	clock          ports.Clock
	notifier       ports.Notifier
	opts           SettlementOptions
	trusted        map[string]struct{}
	log            zerolog.Logger
}

// NewRedemptionService creates a new RedemptionServiceImpl.
func NewRedemptionService(
	repos ports.Repositories,
	registry ports.OwnershipRegistry,
	asset ports.BackingAsset,
	clock ports.Clock,
	notifier ports.Notifier,
	opts SettlementOptions,
	log zerolog.Logger,
) *RedemptionServiceImpl {
	trusted := make(map[string]struct{}, len(opts.TrustedGranters))
	for _, g := range opts.TrustedGranters {
		trusted[g] = struct{}{}
	}
	return &RedemptionServiceImpl{
		noteRepo:       repos.Notes,
		denomRepo:      repos.Denominations,
		rarityRepo:     repos.Rarities,
		settlementRepo: repos.Settlements,
		transactor:     repos.Transactor,
		registry:       registry,
		asset:          asset,
		clock:          clock,
		notifier:       notifier,
		opts:           opts,
		trusted:        trusted,
		log:            log,
	}
}

// RedemptionValue returns floor(faceValue * bonusBps / 10000).
func RedemptionValue(faceValue, bonusBps int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(faceValue), big.NewInt(bonusBps))
	v.Quo(v, basisPoints)
	if !v.IsInt64() {
		return 0, apperror.ErrValueOverflow()
	}
	return v.Int64(), nil
}

// Redeem retires a note held by caller and pays its value to caller.
func (s *RedemptionServiceImpl) Redeem(ctx context.Context, caller string, tokenID uint64) (*domain.Settlement, error) {
	return s.redeem(ctx, caller, "", tokenID)
}

// RedeemFor lets a trusted granter redeem on behalf of holder.
func (s *RedemptionServiceImpl) RedeemFor(ctx context.Context, granter, holder string, tokenID uint64) (*domain.Settlement, error) {
	if _, ok := s.trusted[granter]; !ok {
		return nil, apperror.ErrUntrustedGranter()
	}
	return s.redeem(ctx, holder, granter, tokenID)
}

func (s *RedemptionServiceImpl) redeem(ctx context.Context, holder, granter string, tokenID uint64) (*domain.Settlement, error) {
	if holder == "" {
		return nil, apperror.ErrNotHolder()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	note, err := s.noteRepo.GetByIDForUpdate(ctx, dbTx, tokenID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock note: %w", err))
	}
	if note == nil {
		return nil, apperror.ErrNoteNotFound(tokenID)
	}

	owner, err := s.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return nil, apperror.ErrCollaborator("ownership registry", err)
	}
	if owner == "" {
		return nil, apperror.ErrNoteNotFound(tokenID)
	}
	if owner != holder {
		return nil, apperror.ErrNotHolder()
	}

	value, err := s.noteValue(ctx, note)
	if err != nil {
		return nil, err
	}

	settlement := &domain.Settlement{
		ID:        uuid.New(),
		TokenID:   tokenID,
		Redeemer:  holder,
		Granter:   granter,
		Rarity:    note.Rarity,
		Value:     value,
		Status:    domain.SettlementStatusPending,
		CreatedAt: s.clock.Now(),
	}
	settlement.UpdatedAt = settlement.CreatedAt

	if err := s.noteRepo.Delete(ctx, dbTx, tokenID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("delete note: %w", err))
	}
	if err := s.settlementRepo.Create(ctx, dbTx, settlement); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}
	if err := s.registry.Burn(ctx, tokenID); err != nil {
		return nil, apperror.ErrCollaborator("ownership registry", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		if mintErr := s.registry.Mint(ctx, holder, tokenID); mintErr != nil {
			s.log.Error().Err(mintErr).Uint64("token_id", tokenID).Msg("failed to restore token after aborted redemption")
		}
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// The note is gone; the payout and its record must finish even if the
	// caller goes away.
	return s.settle(context.WithoutCancel(ctx), settlement)
}

// RetrySettlement pays the outstanding amount of a failed settlement, or
// of a PENDING one left stale by an interrupted payout.
func (s *RedemptionServiceImpl) RetrySettlement(ctx context.Context, id uuid.UUID) (*domain.Settlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	settlement, err := s.settlementRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock settlement: %w", err))
	}
	if settlement == nil {
		return nil, apperror.ErrSettlementNotFound(id.String())
	}
	now := s.clock.Now()
	if !settlement.IsRetryable(now, s.opts.StaleAfter) {
		return nil, apperror.ErrSettlementNotRetryable(id.String())
	}

	// Claim the settlement so a concurrent retry cannot pay it twice.
	settlement.Status = domain.SettlementStatusPending
	settlement.UpdatedAt = now
	if err := s.settlementRepo.Update(ctx, dbTx, settlement); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim settlement: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return s.settle(context.WithoutCancel(ctx), settlement)
}

// ListSettlements returns settlements in a status, oldest first. limit is
// clamped to 1..500.
func (s *RedemptionServiceImpl) ListSettlements(ctx context.Context, status domain.SettlementStatus, limit int) ([]domain.Settlement, error) {
	switch status {
	case domain.SettlementStatusPending, domain.SettlementStatusSuccess, domain.SettlementStatusFailed:
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown settlement status %q", status))
	}
	if limit <= 0 || limit > maxSettlementPage {
		limit = maxSettlementPage
	}
	out, err := s.settlementRepo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	return out, nil
}

// noteValue applies the rarity bonus to the denomination face value. A
// rarity level no longer in the tier set pays face value.
func (s *RedemptionServiceImpl) noteValue(ctx context.Context, note *domain.Note) (int64, error) {
	denom, err := s.denomRepo.GetByID(ctx, note.DenominationID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get denomination: %w", err))
	}
	if denom == nil {
		return 0, apperror.ErrDenominationNotFound(note.DenominationID)
	}

	bonus, err := bonusFor(ctx, s.rarityRepo, note.Rarity)
	if err != nil {
		return 0, err
	}
	if bonus == nil {
		s.log.Warn().Uint64("token_id", note.TokenID).Uint8("rarity", note.Rarity).Msg("rarity tier missing, paying face value")
		return denom.Value, nil
	}
	return RedemptionValue(denom.Value, *bonus)
}

// settle pays the outstanding amount: reserve first, then fresh units for
// the shortfall. The settlement record is updated with what was paid.
func (s *RedemptionServiceImpl) settle(ctx context.Context, st *domain.Settlement) (*domain.Settlement, error) {
	payErr := s.pay(ctx, st)

	st.UpdatedAt = s.clock.Now()
	if payErr != nil {
		msg := payErr.Error()
		st.Status = domain.SettlementStatusFailed
		st.LastError = &msg
	} else {
		settledAt := st.UpdatedAt
		st.Status = domain.SettlementStatusSuccess
		st.LastError = nil
		st.SettledAt = &settledAt
	}

	if err := s.saveSettlement(ctx, st); err != nil {
		s.log.Error().Err(err).
			Str("settlement_id", st.ID.String()).
			Str("status", string(st.Status)).
			Int64("reserve_paid", st.ReservePaid).
			Int64("minted", st.Minted).
			Msg("failed to record settlement outcome")
	}

	if payErr != nil {
		s.log.Error().Err(payErr).
			Str("settlement_id", st.ID.String()).
			Uint64("token_id", st.TokenID).
			Int64("outstanding", st.Outstanding()).
			Msg("settlement failed")
		s.notifier.Notify(ctx, domain.NewEvent(domain.EventSettlementFailed, map[string]any{
			"settlement_id": st.ID.String(),
			"token_id":      st.TokenID,
			"redeemer":      st.Redeemer,
			"outstanding":   st.Outstanding(),
			"error":         payErr.Error(),
		}))
		return nil, apperror.ErrSettlementFailed(st.ID.String(), payErr)
	}

	s.log.Info().
		Str("settlement_id", st.ID.String()).
		Uint64("token_id", st.TokenID).
		Str("redeemer", st.Redeemer).
		Int64("value", st.Value).
		Int64("reserve_paid", st.ReservePaid).
		Int64("minted", st.Minted).
		Msg("note redeemed")
	s.notifier.Notify(ctx, domain.NoteRedeemedEvent(st))

	return st, nil
}

func (s *RedemptionServiceImpl) pay(ctx context.Context, st *domain.Settlement) error {
	owed := st.Outstanding()
	if owed <= 0 {
		return nil
	}

	reserve, err := s.asset.BalanceOf(ctx, s.opts.ReserveAccount)
	if err != nil {
		return fmt.Errorf("read reserve balance: %w", err)
	}

	fromReserve := owed
	if reserve < fromReserve {
		fromReserve = reserve
	}
	if fromReserve > 0 {
		if err := s.asset.TransferFrom(ctx, s.opts.ReserveAccount, st.Redeemer, fromReserve); err != nil {
			return fmt.Errorf("transfer from reserve: %w", err)
		}
		st.ReservePaid += fromReserve
	}

	if shortfall := st.Outstanding(); shortfall > 0 {
		if err := s.asset.Mint(ctx, st.Redeemer, shortfall, s.opts.MintReason); err != nil {
			return fmt.Errorf("mint shortfall: %w", err)
		}
		st.Minted += shortfall
	}
	return nil
}

func (s *RedemptionServiceImpl) saveSettlement(ctx context.Context, st *domain.Settlement) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settlementRepo.Update(ctx, dbTx, st); err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	return dbTx.Commit(ctx)
}

// bonusFor returns the bonus of a rarity level, or nil if the level is not
// in the tier set.
func bonusFor(ctx context.Context, repo ports.RarityRepository, level uint8) (*int64, error) {
	tiers, err := repo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list rarity tiers: %w", err))
	}
	for _, t := range tiers {
		if t.Level == level {
			bonus := t.BonusBps
			return &bonus, nil
		}
	}
	return nil, nil
}
