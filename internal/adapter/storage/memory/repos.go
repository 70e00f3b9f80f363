package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"note-issuance-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Series ---

// SeriesRepo implements ports.SeriesRepository.
type SeriesRepo struct{ s *Store }

func (r *SeriesRepo) Upsert(_ context.Context, tx pgx.Tx, s *domain.Series) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if existing, ok := st.series[s.ID]; ok {
		s.Minted = existing.Minted
		s.CreatedAt = existing.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	st.series[s.ID] = *s
	return nil
}

func (r *SeriesRepo) GetByID(_ context.Context, id string) (*domain.Series, error) {
	var out *domain.Series
	r.s.read(func(st *state) {
		if s, ok := st.series[id]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *SeriesRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id string) (*domain.Series, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return nil, err
	}
	s, ok := st.series[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SeriesRepo) List(_ context.Context) ([]domain.Series, error) {
	var out []domain.Series
	r.s.read(func(st *state) {
		for _, s := range st.series {
			out = append(out, s)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SeriesRepo) AddMinted(_ context.Context, tx pgx.Tx, id string, n int64) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	s, ok := st.series[id]
	if !ok {
		return fmt.Errorf("series %s not found", id)
	}
	s.Minted += n
	s.UpdatedAt = time.Now().UTC()
	st.series[id] = s
	return nil
}

// --- Denominations ---

// DenominationRepo implements ports.DenominationRepository.
type DenominationRepo struct{ s *Store }

func (r *DenominationRepo) Upsert(_ context.Context, tx pgx.Tx, d *domain.Denomination) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()
	st.denoms[d.ID] = *d
	return nil
}

func (r *DenominationRepo) GetByID(_ context.Context, id uint8) (*domain.Denomination, error) {
	var out *domain.Denomination
	r.s.read(func(st *state) {
		if d, ok := st.denoms[id]; ok {
			out = &d
		}
	})
	return out, nil
}

func (r *DenominationRepo) List(_ context.Context) ([]domain.Denomination, error) {
	var out []domain.Denomination
	r.s.read(func(st *state) {
		for _, d := range st.denoms {
			out = append(out, d)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Rarity tiers ---

// RarityRepo implements ports.RarityRepository.
type RarityRepo struct{ s *Store }

func (r *RarityRepo) Upsert(_ context.Context, tx pgx.Tx, tier *domain.RarityTier) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.rarities[tier.Level] = *tier
	return nil
}

func (r *RarityRepo) ReplaceAll(_ context.Context, tx pgx.Tx, tiers []domain.RarityTier) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.rarities = make(map[uint8]domain.RarityTier, len(tiers))
	for _, t := range tiers {
		st.rarities[t.Level] = t
	}
	return nil
}

func (r *RarityRepo) List(_ context.Context) ([]domain.RarityTier, error) {
	var out []domain.RarityTier
	r.s.read(func(st *state) {
		for _, t := range st.rarities {
			out = append(out, t)
		}
	})
	domain.SortRarityTiers(out)
	return out, nil
}

// --- Rewards ---

// RewardRepo implements ports.RewardRepository.
type RewardRepo struct{ s *Store }

func (r *RewardRepo) UpsertTier(_ context.Context, tx pgx.Tx, tier *domain.RewardTier) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.rewardTiers[tier.ID] = *tier
	return nil
}

func (r *RewardRepo) GetTier(_ context.Context, id uint32) (*domain.RewardTier, error) {
	var out *domain.RewardTier
	r.s.read(func(st *state) {
		if t, ok := st.rewardTiers[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (r *RewardRepo) SetLimit(_ context.Context, tx pgx.Tx, denominationID uint8, limit int64) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	sup := st.rewardSupply[denominationID]
	sup.DenominationID = denominationID
	sup.Limit = limit
	st.rewardSupply[denominationID] = sup
	return nil
}

func copySupply(src map[uint8]domain.RewardSupply) map[uint8]domain.RewardSupply {
	out := make(map[uint8]domain.RewardSupply, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (r *RewardRepo) ListSupply(_ context.Context) (map[uint8]domain.RewardSupply, error) {
	var out map[uint8]domain.RewardSupply
	r.s.read(func(st *state) { out = copySupply(st.rewardSupply) })
	return out, nil
}

func (r *RewardRepo) ListSupplyForUpdate(_ context.Context, tx pgx.Tx) (map[uint8]domain.RewardSupply, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return nil, err
	}
	return copySupply(st.rewardSupply), nil
}

func (r *RewardRepo) AddMinted(_ context.Context, tx pgx.Tx, denominationID uint8, n int64) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	sup := st.rewardSupply[denominationID]
	sup.DenominationID = denominationID
	sup.Minted += n
	st.rewardSupply[denominationID] = sup
	return nil
}

func (r *RewardRepo) GetSettings(_ context.Context) (*domain.RewardSettings, error) {
	var out domain.RewardSettings
	r.s.read(func(st *state) { out = st.settings })
	return &out, nil
}

func (r *RewardRepo) GetSettingsForUpdate(_ context.Context, tx pgx.Tx) (*domain.RewardSettings, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return nil, err
	}
	out := st.settings
	return &out, nil
}

func (r *RewardRepo) SaveSettings(_ context.Context, tx pgx.Tx, settings *domain.RewardSettings) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.settings = *settings
	return nil
}

// --- Notes ---

// NoteRepo implements ports.NoteRepository.
type NoteRepo struct{ s *Store }

func (r *NoteRepo) NextTokenID(_ context.Context, tx pgx.Tx) (uint64, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return 0, err
	}
	st.lastTokenID++
	return st.lastTokenID, nil
}

func (r *NoteRepo) Create(_ context.Context, tx pgx.Tx, note *domain.Note) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	if _, ok := st.notes[note.TokenID]; ok {
		return fmt.Errorf("note %d already exists", note.TokenID)
	}
	st.notes[note.TokenID] = *note
	return nil
}

func (r *NoteRepo) GetByID(_ context.Context, tokenID uint64) (*domain.Note, error) {
	var out *domain.Note
	r.s.read(func(st *state) {
		if n, ok := st.notes[tokenID]; ok {
			out = &n
		}
	})
	return out, nil
}

func (r *NoteRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, tokenID uint64) (*domain.Note, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return nil, err
	}
	n, ok := st.notes[tokenID]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *NoteRepo) Update(_ context.Context, tx pgx.Tx, note *domain.Note) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	if _, ok := st.notes[note.TokenID]; !ok {
		return fmt.Errorf("note %d not found", note.TokenID)
	}
	st.notes[note.TokenID] = *note
	return nil
}

func (r *NoteRepo) Delete(_ context.Context, tx pgx.Tx, tokenID uint64) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	delete(st.notes, tokenID)
	return nil
}

// --- Serial counters ---

// SerialCounterRepo implements ports.SerialCounterRepository.
type SerialCounterRepo struct{ s *Store }

func (r *SerialCounterRepo) Increment(_ context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return 0, err
	}
	st.serials[key]++
	return st.serials[key], nil
}

func (r *SerialCounterRepo) Get(_ context.Context, key domain.SerialKey) (int64, error) {
	var out int64
	r.s.read(func(st *state) { out = st.serials[key] })
	return out, nil
}

func (r *SerialCounterRepo) GetForUpdate(_ context.Context, tx pgx.Tx, key domain.SerialKey) (int64, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return 0, err
	}
	return st.serials[key], nil
}

func (r *SerialCounterRepo) Set(_ context.Context, tx pgx.Tx, key domain.SerialKey, value int64) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.serials[key] = value
	return nil
}

// --- Settlements ---

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct{ s *Store }

func (r *SettlementRepo) Create(_ context.Context, tx pgx.Tx, s *domain.Settlement) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	st.settlements[s.ID] = *s
	return nil
}

func (r *SettlementRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Settlement, error) {
	var out *domain.Settlement
	r.s.read(func(st *state) {
		if s, ok := st.settlements[id]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *SettlementRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Settlement, error) {
	st, err := r.s.working(tx)
	if err != nil {
		return nil, err
	}
	s, ok := st.settlements[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SettlementRepo) Update(_ context.Context, tx pgx.Tx, s *domain.Settlement) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	if _, ok := st.settlements[s.ID]; !ok {
		return fmt.Errorf("settlement %s not found", s.ID)
	}
	st.settlements[s.ID] = *s
	return nil
}

func (r *SettlementRepo) ListByStatus(_ context.Context, status domain.SettlementStatus, limit int) ([]domain.Settlement, error) {
	var out []domain.Settlement
	r.s.read(func(st *state) {
		for _, s := range st.settlements {
			if s.Status == status {
				out = append(out, s)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Grant logs ---

// GrantLogRepo implements ports.GrantLogRepository.
type GrantLogRepo struct{ s *Store }

func (r *GrantLogRepo) Create(_ context.Context, tx pgx.Tx, log *domain.GrantLog) error {
	st, err := r.s.working(tx)
	if err != nil {
		return err
	}
	if _, ok := st.grantLogs[log.Key]; ok {
		return fmt.Errorf("grant log %s already exists", log.Key)
	}
	st.grantLogs[log.Key] = *log
	return nil
}

func (r *GrantLogRepo) Get(_ context.Context, key string) (*domain.GrantLog, error) {
	var out *domain.GrantLog
	r.s.read(func(st *state) {
		if l, ok := st.grantLogs[key]; ok {
			out = &l
		}
	})
	return out, nil
}
