package domain

import "sort"

// BasisPoints is the integer scale where 10000 = 100%.
const BasisPoints = 10000

// RarityTier is a discrete level assigned at issuance.
type RarityTier struct {
	Level     uint8  `json:"level"`
	Name      string `json:"name"`
	WeightBps int64  `json:"weight_bps"` // probability weight
	BonusBps  int64  `json:"bonus_bps"`  // value multiplier, 10000 = no bonus
}

// Configured reports whether the tier carries a non-zero weight. A zero
// weight is treated as "not configured".
func (r *RarityTier) Configured() bool {
	return r.WeightBps > 0
}

// SortRarityTiers orders tiers by ascending level in place.
func SortRarityTiers(tiers []RarityTier) {
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Level < tiers[j].Level })
}

// TotalWeight sums the weights of a tier set.
func TotalWeight(tiers []RarityTier) int64 {
	var sum int64
	for _, t := range tiers {
		sum += t.WeightBps
	}
	return sum
}
