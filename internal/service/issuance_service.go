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

// IssuanceServiceImpl implements ports.IssuanceService.
type IssuanceServiceImpl struct {
	seriesRepo ports.SeriesRepository
	denomRepo  ports.DenominationRepository
	noteRepo   ports.NoteRepository
	serials    *SerialAllocator
	rarity     *RaritySelector
	registry   ports.OwnershipRegistry
	transactor ports.DBTransactor
	clock      ports.Clock
	notifier   ports.Notifier
	log        zerolog.Logger
}

// NewIssuanceService creates a new IssuanceServiceImpl.
func NewIssuanceService(
	repos ports.Repositories,
	rarity *RaritySelector,
	registry ports.OwnershipRegistry,
	clock ports.Clock,
	notifier ports.Notifier,
	log zerolog.Logger,
) *IssuanceServiceImpl {
	return &IssuanceServiceImpl{
		seriesRepo: repos.Series,
		denomRepo:  repos.Denominations,
		noteRepo:   repos.Notes,
		serials:    NewSerialAllocator(repos.Serials),
		rarity:     rarity,
		registry:   registry,
		transactor: repos.Transactor,
		clock:      clock,
		notifier:   notifier,
		log:        log,
	}
}

// mintLog tracks registry mints made inside an open transaction so they can
// be burned back if the transaction does not commit.
type mintLog struct {
	tokenIDs []uint64
}

// Issue issues one note with a rolled rarity.
func (s *IssuanceServiceImpl) Issue(ctx context.Context, req ports.IssueRequest) (*domain.Note, error) {
	notes, err := s.issue(ctx, req, 1, nil)
	if err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// IssueWithRarity issues one note with a fixed rarity level.
func (s *IssuanceServiceImpl) IssueWithRarity(ctx context.Context, req ports.IssueRequest, rarity uint8) (*domain.Note, error) {
	notes, err := s.issue(ctx, req, 1, &rarity)
	if err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// IssueBatch issues count notes, each with its own roll. Either all are
// issued or none.
func (s *IssuanceServiceImpl) IssueBatch(ctx context.Context, req ports.IssueRequest, count int64) ([]domain.Note, error) {
	if count <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.issue(ctx, req, count, nil)
}

func (s *IssuanceServiceImpl) issue(ctx context.Context, req ports.IssueRequest, count int64, rarity *uint8) ([]domain.Note, error) {
	if req.To == "" {
		return nil, apperror.Validation("recipient is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	minted := &mintLog{}
	notes, err := s.issueInTx(ctx, dbTx, minted, req, count, rarity)
	if err != nil {
		s.compensate(ctx, minted)
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.compensate(ctx, minted)
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.announce(ctx, req.To, notes)
	return notes, nil
}

// issueInTx checks every precondition against locked rows, then performs
// count single-note effects. Nothing is written before the checks pass.
func (s *IssuanceServiceImpl) issueInTx(
	ctx context.Context,
	tx pgx.Tx,
	minted *mintLog,
	req ports.IssueRequest,
	count int64,
	rarity *uint8,
) ([]domain.Note, error) {
	series, err := s.seriesRepo.GetByIDForUpdate(ctx, tx, req.SeriesID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock series: %w", err))
	}
	if series == nil {
		return nil, apperror.ErrSeriesNotFound(req.SeriesID)
	}

	now := s.clock.Now()
	switch {
	case !series.Active:
		return nil, apperror.ErrSeriesNotActive(series.ID)
	case series.NotStartedAt(now):
		return nil, apperror.ErrSeriesNotStarted(series.ID)
	case series.EndedAt(now):
		return nil, apperror.ErrSeriesEnded(series.ID)
	case !series.HasCapacity(count):
		return nil, apperror.ErrSeriesCapacityExceeded(series.ID)
	}

	denom, err := s.denomRepo.GetByID(ctx, req.DenominationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get denomination: %w", err))
	}
	if denom == nil {
		return nil, apperror.ErrDenominationNotFound(req.DenominationID)
	}
	if !denom.Active {
		return nil, apperror.ErrDenominationNotActive(denom.ID)
	}

	var (
		tiers []domain.RarityTier
		fixed *domain.RarityTier
	)
	if rarity != nil {
		fixed, err = s.configuredTier(ctx, *rarity)
	} else {
		tiers, err = s.rarity.Tiers(ctx)
	}
	if err != nil {
		return nil, err
	}

	notes := make([]domain.Note, 0, count)
	for i := int64(0); i < count; i++ {
		tier := fixed
		if tier == nil {
			rolled, err := s.rarity.Roll(ctx, tiers, req.Caller)
			if err != nil {
				return nil, err
			}
			tier = &rolled
		}

		serial, err := s.serials.Next(ctx, tx, series.ID, denom)
		if err != nil {
			return nil, apperror.InternalError(err)
		}

		tokenID, err := s.noteRepo.NextTokenID(ctx, tx)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("next token id: %w", err))
		}

		note := domain.Note{
			TokenID:        tokenID,
			DenominationID: denom.ID,
			SeriesID:       series.ID,
			Rarity:         tier.Level,
			Serial:         serial,
			IssuedAt:       now,
		}
		if err := s.noteRepo.Create(ctx, tx, &note); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create note: %w", err))
		}

		if err := s.registry.Mint(ctx, req.To, tokenID); err != nil {
			return nil, apperror.ErrCollaborator("ownership registry", err)
		}
		minted.tokenIDs = append(minted.tokenIDs, tokenID)

		notes = append(notes, note)
	}

	if err := s.seriesRepo.AddMinted(ctx, tx, series.ID, count); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update series minted: %w", err))
	}

	return notes, nil
}

// configuredTier resolves a rarity level. A zero weight counts as absent.
func (s *IssuanceServiceImpl) configuredTier(ctx context.Context, level uint8) (*domain.RarityTier, error) {
	tiers, err := s.rarity.repo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list rarity tiers: %w", err))
	}
	for i := range tiers {
		if tiers[i].Level == level && tiers[i].Configured() {
			return &tiers[i], nil
		}
	}
	return nil, apperror.ErrRarityNotFound(level)
}

// compensate burns tokens minted by a transaction that did not commit.
func (s *IssuanceServiceImpl) compensate(ctx context.Context, minted *mintLog) {
	for i := len(minted.tokenIDs) - 1; i >= 0; i-- {
		tokenID := minted.tokenIDs[i]
		if err := s.registry.Burn(ctx, tokenID); err != nil {
			s.log.Error().Err(err).Uint64("token_id", tokenID).Msg("failed to burn token of rolled back issuance")
		}
	}
	minted.tokenIDs = nil
}

func (s *IssuanceServiceImpl) announce(ctx context.Context, to string, notes []domain.Note) {
	for i := range notes {
		n := &notes[i]
		s.log.Info().
			Uint64("token_id", n.TokenID).
			Str("series_id", n.SeriesID).
			Uint8("denomination_id", n.DenominationID).
			Uint8("rarity", n.Rarity).
			Int64("serial", n.Serial).
			Msg("note issued")
		s.notifier.Notify(ctx, domain.NoteIssuedEvent(n, to))
	}
}
