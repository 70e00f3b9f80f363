package domain

import "time"

// Series is a named cohort of notes sharing a media base path and an
// optional supply cap and activity window.
type Series struct {
	ID        string    `json:"id"` // short code, e.g. "AA"
	Name      string    `json:"name"`
	BasePath  string    `json:"base_path"`
	MaxSupply int64     `json:"max_supply"` // 0 = unbounded
	Minted    int64     `json:"minted"`
	StartTime time.Time `json:"start_time,omitempty"` // zero = no lower bound
	EndTime   time.Time `json:"end_time,omitempty"`   // zero = no upper bound
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bounded reports whether the series carries a max supply.
func (s *Series) Bounded() bool {
	return s.MaxSupply > 0
}

// HasCapacity reports whether count more notes fit under the max supply.
func (s *Series) HasCapacity(count int64) bool {
	if !s.Bounded() {
		return true
	}
	return s.Minted+count <= s.MaxSupply
}

// NotStartedAt reports whether the series window has not opened at t.
func (s *Series) NotStartedAt(t time.Time) bool {
	return !s.StartTime.IsZero() && t.Before(s.StartTime)
}

// EndedAt reports whether the series window has closed at t.
func (s *Series) EndedAt(t time.Time) bool {
	return !s.EndTime.IsZero() && t.After(s.EndTime)
}
