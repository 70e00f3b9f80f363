package domain

// RewardTier maps an external tier id to a target backing-asset value.
type RewardTier struct {
	ID    uint32 `json:"id"`
	Value int64  `json:"value"`
}

// RewardSupply is the decomposition-specific cap and counter for one
// denomination. It is distinct from any cap on the series itself.
type RewardSupply struct {
	DenominationID uint8 `json:"denomination_id"`
	Limit          int64 `json:"limit"` // 0 = no limit
	Minted         int64 `json:"minted"`
}

// Limited reports whether a reward supply limit applies.
func (r RewardSupply) Limited() bool {
	return r.Limit > 0
}

// Remaining returns how many more reward notes may be minted, floored at zero.
// Only meaningful when Limited.
func (r RewardSupply) Remaining() int64 {
	if r.Minted >= r.Limit {
		return 0
	}
	return r.Limit - r.Minted
}

// RewardSettings holds the global reward switches.
type RewardSettings struct {
	DefaultSeriesID string `json:"default_series_id"`
	Enabled         bool   `json:"enabled"`
}

// PlanEntry is one line of a decomposition plan.
type PlanEntry struct {
	DenominationID uint8 `json:"denomination_id"`
	Value          int64 `json:"value"`
	Count          int64 `json:"count"`
}

// Plan is the (denomination, count) multiset expressing a target value,
// in descending value order.
type Plan struct {
	Target  int64       `json:"target"`
	Entries []PlanEntry `json:"entries"`
}

// Total returns the weighted sum of the plan.
func (p Plan) Total() int64 {
	var sum int64
	for _, e := range p.Entries {
		sum += e.Value * e.Count
	}
	return sum
}

// NoteCount returns the number of notes the plan issues.
func (p Plan) NoteCount() int64 {
	var n int64
	for _, e := range p.Entries {
		n += e.Count
	}
	return n
}

// Counts returns parallel denomination id and count slices.
func (p Plan) Counts() ([]uint8, []int64) {
	ids := make([]uint8, len(p.Entries))
	counts := make([]int64, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.DenominationID
		counts[i] = e.Count
	}
	return ids, counts
}
