package dto

import "time"

// IssueRequest is the request body for operator note issuance.
// Rarity is optional; when set it replaces the weighted roll.
type IssueRequest struct {
	To             string `json:"to" binding:"required,max=128,safe_id"`
	DenominationID uint8  `json:"denomination_id"`
	SeriesID       string `json:"series_id" binding:"required,series_code"`
	Rarity         *uint8 `json:"rarity,omitempty" binding:"omitempty,gt=0"`
}

// IssueBatchRequest is the request body for batch issuance.
type IssueBatchRequest struct {
	To             string `json:"to" binding:"required,max=128,safe_id"`
	DenominationID uint8  `json:"denomination_id"`
	SeriesID       string `json:"series_id" binding:"required,series_code"`
	Count          int64  `json:"count" binding:"required,gt=0,lte=1000"`
}

// SeriesRequest configures a series. The series code comes from the path.
type SeriesRequest struct {
	Name      string     `json:"name" binding:"max=100"`
	BasePath  string     `json:"base_path" binding:"max=512,media_uri"`
	MaxSupply int64      `json:"max_supply" binding:"gte=0"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Active    bool       `json:"active"`
}

// DenominationRequest configures a denomination. The id comes from the path.
type DenominationRequest struct {
	Name         string `json:"name" binding:"max=100"`
	Value        int64  `json:"value" binding:"required,gt=0"`
	MediaPath    string `json:"media_path" binding:"max=256"`
	SerialOffset int64  `json:"serial_offset" binding:"gte=0"`
	Active       bool   `json:"active"`
}

// RarityTierRequest configures a single rarity tier. The level comes from the path.
type RarityTierRequest struct {
	Name      string `json:"name" binding:"max=64"`
	WeightBps int64  `json:"weight_bps" binding:"gte=0,lte=10000"`
	BonusBps  int64  `json:"bonus_bps" binding:"gte=0"`
}

// RarityTierEntry is one tier of a complete rarity set.
type RarityTierEntry struct {
	Level     uint8  `json:"level" binding:"required"`
	Name      string `json:"name" binding:"max=64"`
	WeightBps int64  `json:"weight_bps" binding:"gte=0,lte=10000"`
	BonusBps  int64  `json:"bonus_bps" binding:"gte=0"`
}

// RarityTiersRequest replaces the whole rarity tier set.
type RarityTiersRequest struct {
	Tiers []RarityTierEntry `json:"tiers" binding:"required,min=1,max=255,dive"`
}

// RewardTiersRequest sets reward tiers from parallel arrays.
type RewardTiersRequest struct {
	IDs    []uint32 `json:"ids" binding:"required,min=1"`
	Values []int64  `json:"values" binding:"required,min=1"`
}

// RewardTierRequest sets one reward tier. The id comes from the path.
type RewardTierRequest struct {
	Value int64 `json:"value" binding:"required,gt=0"`
}

// RewardSupplyRequest sets the reward supply limit of a denomination.
type RewardSupplyRequest struct {
	Limit int64 `json:"limit" binding:"gte=0"`
}

// RewardSettingsRequest updates the global reward switches. Absent
// fields are left unchanged.
type RewardSettingsRequest struct {
	DefaultSeriesID *string `json:"default_series_id,omitempty" binding:"omitempty,series_code"`
	Enabled         *bool   `json:"enabled,omitempty"`
}

// SerialResetRequest overrides a serial counter.
type SerialResetRequest struct {
	SeriesID       string `json:"series_id" binding:"required,series_code"`
	DenominationID uint8  `json:"denomination_id"`
	Value          int64  `json:"value" binding:"gte=0"`
}

// CorrectNoteRequest overrides the rarity of a live note.
type CorrectNoteRequest struct {
	Rarity uint8 `json:"rarity" binding:"required"`
}

// GrantRequest is the request body for a single reward grant.
type GrantRequest struct {
	To          string `json:"to" binding:"required,max=128,safe_id"`
	TierID      uint32 `json:"tier_id" binding:"required"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// GrantBatchRequest grants tier_ids[i] to recipients[i].
type GrantBatchRequest struct {
	Recipients []string `json:"recipients" binding:"required,min=1,max=100,dive,required,max=128,safe_id"`
	TierIDs    []uint32 `json:"tier_ids" binding:"required,min=1,max=100"`
}

// RedeemForRequest is a delegated redemption by a trusted granter.
type RedeemForRequest struct {
	Holder  string `json:"holder" binding:"required,max=128,safe_id"`
	TokenID uint64 `json:"token_id" binding:"required"`
}

// DepositRequest funds the settlement reserve.
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// HolderTokenRequest asks for a holder bearer token.
type HolderTokenRequest struct {
	Account string `json:"account" binding:"required,max=128,safe_id"`
}

// HolderTokenResponse is the response body for a holder token.
type HolderTokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CapacityResponse reports whether a reward tier can be granted.
type CapacityResponse struct {
	TierID    uint32 `json:"tier_id"`
	CanGrant  bool   `json:"can_grant"`
	Remaining int64  `json:"remaining"`
	Unbounded bool   `json:"unbounded"`
}

// DepositResponse reports the reserve balance after a deposit.
type DepositResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// SeriesURI binds the series code path parameter.
type SeriesURI struct {
	SeriesID string `uri:"series_id" binding:"required,series_code"`
}

// DenominationURI binds the denomination id path parameter.
type DenominationURI struct {
	ID uint8 `uri:"id"`
}

// RarityLevelURI binds the rarity level path parameter.
type RarityLevelURI struct {
	Level uint8 `uri:"level" binding:"required"`
}

// RewardTierURI binds the reward tier id path parameter.
type RewardTierURI struct {
	ID uint32 `uri:"id"`
}

// TokenURI binds the note token id path parameter.
type TokenURI struct {
	TokenID uint64 `uri:"token_id" binding:"required"`
}

// SettlementURI binds the settlement id path parameter.
type SettlementURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// SettlementListQuery filters the settlement listing. Status defaults to FAILED.
type SettlementListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING SUCCESS FAILED"`
	Limit  int    `form:"limit" binding:"omitempty,gte=0,lte=500"`
}
