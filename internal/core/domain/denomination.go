package domain

import "time"

// Denomination is a fixed backing-asset face value plus a serial offset.
//
// SerialOffset gives each denomination its own serial range inside a
// series. It must not change once notes of the denomination exist.
type Denomination struct {
	ID           uint8     `json:"id"`
	Name         string    `json:"name"`
	Value        int64     `json:"value"` // smallest unit of the backing asset
	MediaPath    string    `json:"media_path"`
	SerialOffset int64     `json:"serial_offset"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Spendable reports whether the denomination can take part in a decomposition.
func (d *Denomination) Spendable() bool {
	return d.Active && d.Value > 0
}
