package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
)

// UnboundedGrants is returned by RemainingGrants when no denomination in
// the plan carries a reward supply limit.
const UnboundedGrants int64 = math.MaxInt64

// Decomposer expresses target values as denomination counts. It keeps the
// denominations sorted by descending value and only re-sorts when the
// configuration changes.
type Decomposer struct {
	repo ports.DenominationRepository

	mu     sync.RWMutex
	sorted []domain.Denomination
}

// NewDecomposer creates a decomposer. Call Rebuild before first use.
func NewDecomposer(repo ports.DenominationRepository) *Decomposer {
	return &Decomposer{repo: repo}
}

// Rebuild reloads every denomination from storage.
func (d *Decomposer) Rebuild(ctx context.Context) error {
	denoms, err := d.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list denominations: %w", err)
	}
	sortByValueDesc(denoms)

	d.mu.Lock()
	d.sorted = denoms
	d.mu.Unlock()
	return nil
}

// Apply folds one changed denomination into the sorted cache.
func (d *Decomposer) Apply(denom domain.Denomination) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make([]domain.Denomination, 0, len(d.sorted)+1)
	for _, existing := range d.sorted {
		if existing.ID != denom.ID {
			next = append(next, existing)
		}
	}
	next = append(next, denom)
	sortByValueDesc(next)
	d.sorted = next
}

// Sorted returns a copy of the cached order.
func (d *Decomposer) Sorted() []domain.Denomination {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Denomination, len(d.sorted))
	copy(out, d.sorted)
	return out
}

// Plan decomposes target against the cached denominations and the given
// reward supply.
func (d *Decomposer) Plan(target int64, supply map[uint8]domain.RewardSupply) (domain.Plan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Decompose(d.sorted, target, supply)
}

// Decompose is a single greedy pass over sorted (descending value). Each
// spendable denomination takes remaining/value notes, clamped to its
// remaining reward supply when limited. A non-zero remainder fails the
// whole decomposition; there is no backtracking.
func Decompose(sorted []domain.Denomination, target int64, supply map[uint8]domain.RewardSupply) (domain.Plan, error) {
	if target <= 0 {
		return domain.Plan{}, apperror.ErrInvalidAmount()
	}

	plan := domain.Plan{Target: target}
	remaining := target
	for i := range sorted {
		if remaining == 0 {
			break
		}
		denom := &sorted[i]
		if !denom.Spendable() {
			continue
		}

		count := remaining / denom.Value
		if sup, ok := supply[denom.ID]; ok && sup.Limited() {
			if left := sup.Remaining(); count > left {
				count = left
			}
		}
		if count == 0 {
			continue
		}

		remaining -= count * denom.Value
		plan.Entries = append(plan.Entries, domain.PlanEntry{
			DenominationID: denom.ID,
			Value:          denom.Value,
			Count:          count,
		})
	}

	if remaining > 0 {
		return domain.Plan{}, apperror.ErrUnsatisfiable(target)
	}
	return plan, nil
}

// RemainingGrants estimates how many more times plan can be granted: the
// minimum over limited denominations of floor(remaining / count).
func RemainingGrants(plan domain.Plan, supply map[uint8]domain.RewardSupply) int64 {
	grants := UnboundedGrants
	for _, e := range plan.Entries {
		sup, ok := supply[e.DenominationID]
		if !ok || !sup.Limited() {
			continue
		}
		if n := sup.Remaining() / e.Count; n < grants {
			grants = n
		}
	}
	return grants
}

// consume records a plan against a supply snapshot.
func consume(supply map[uint8]domain.RewardSupply, plan domain.Plan) {
	for _, e := range plan.Entries {
		sup := supply[e.DenominationID]
		sup.DenominationID = e.DenominationID
		sup.Minted += e.Count
		supply[e.DenominationID] = sup
	}
}

func sortByValueDesc(denoms []domain.Denomination) {
	sort.SliceStable(denoms, func(i, j int) bool {
		if denoms[i].Value != denoms[j].Value {
			return denoms[i].Value > denoms[j].Value
		}
		return denoms[i].ID < denoms[j].ID
	})
}
