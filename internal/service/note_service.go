package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
)

// noteService implements ports.NoteService.
type noteService struct {
	noteRepo   ports.NoteRepository
	seriesRepo ports.SeriesRepository
	denomRepo  ports.DenominationRepository
	rarityRepo ports.RarityRepository
	renderer   ports.MetadataRenderer
}

// NewNoteService creates a note service. renderer may be nil, in which
// case Describe reports the collaborator as unavailable.
func NewNoteService(repos ports.Repositories, renderer ports.MetadataRenderer) ports.NoteService {
	return &noteService{
		noteRepo:   repos.Notes,
		seriesRepo: repos.Series,
		denomRepo:  repos.Denominations,
		rarityRepo: repos.Rarities,
		renderer:   renderer,
	}
}

// Attributes resolves everything a presentation layer needs for a note.
func (s *noteService) Attributes(ctx context.Context, tokenID uint64) (*domain.NoteAttributes, error) {
	note, err := s.noteRepo.GetByID(ctx, tokenID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get note: %w", err))
	}
	if note == nil {
		return nil, apperror.ErrNoteNotFound(tokenID)
	}

	series, err := s.seriesRepo.GetByID(ctx, note.SeriesID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get series: %w", err))
	}
	if series == nil {
		return nil, apperror.ErrSeriesNotFound(note.SeriesID)
	}

	denom, err := s.denomRepo.GetByID(ctx, note.DenominationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get denomination: %w", err))
	}
	if denom == nil {
		return nil, apperror.ErrDenominationNotFound(note.DenominationID)
	}

	attrs := &domain.NoteAttributes{
		TokenID:          note.TokenID,
		SeriesID:         series.ID,
		SeriesName:       series.Name,
		DenominationID:   denom.ID,
		DenominationName: denom.Name,
		FaceValue:        denom.Value,
		Rarity:           note.Rarity,
		RedemptionValue:  denom.Value,
		Serial:           note.Serial,
		MediaPath:        mediaPath(series.BasePath, denom.MediaPath),
		IssuedAt:         note.IssuedAt,
	}

	tiers, err := s.rarityRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list rarity tiers: %w", err))
	}
	for _, t := range tiers {
		if t.Level != note.Rarity {
			continue
		}
		attrs.RarityName = t.Name
		if attrs.RedemptionValue, err = RedemptionValue(denom.Value, t.BonusBps); err != nil {
			return nil, err
		}
		break
	}

	return attrs, nil
}

// Describe hands the resolved attributes to the metadata renderer.
func (s *noteService) Describe(ctx context.Context, tokenID uint64) ([]byte, error) {
	if s.renderer == nil {
		return nil, apperror.ErrCollaborator("metadata renderer", errors.New("not configured"))
	}
	attrs, err := s.Attributes(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	out, err := s.renderer.Render(ctx, *attrs)
	if err != nil {
		return nil, apperror.ErrCollaborator("metadata renderer", err)
	}
	return out, nil
}

// mediaPath joins a series base path and a denomination media path with a
// single slash, leaving a URI scheme such as "ipfs://" intact.
func mediaPath(base, media string) string {
	if base == "" {
		return media
	}
	if media == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(media, "/")
}
