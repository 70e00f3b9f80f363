package domain

import "time"

// Note is an individually numbered certificate redeemable for backing asset.
type Note struct {
	TokenID        uint64    `json:"token_id"`
	DenominationID uint8     `json:"denomination_id"`
	SeriesID       string    `json:"series_id"`
	Rarity         uint8     `json:"rarity"`
	Serial         int64     `json:"serial"`
	IssuedAt       time.Time `json:"issued_at"`
}

// SerialKey identifies one serial counter.
type SerialKey struct {
	SeriesID       string
	DenominationID uint8
}

// NoteAttributes are the resolved attributes handed to a metadata renderer.
type NoteAttributes struct {
	TokenID          uint64    `json:"token_id"`
	SeriesID         string    `json:"series_id"`
	SeriesName       string    `json:"series_name"`
	DenominationID   uint8     `json:"denomination_id"`
	DenominationName string    `json:"denomination_name"`
	FaceValue        int64     `json:"face_value"`
	Rarity           uint8     `json:"rarity"`
	RarityName       string    `json:"rarity_name"`
	RedemptionValue  int64     `json:"redemption_value"`
	Serial           int64     `json:"serial"`
	MediaPath        string    `json:"media_path"`
	IssuedAt         time.Time `json:"issued_at"`
}
