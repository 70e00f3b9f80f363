package service

import (
	"context"
	"encoding/json"
	"fmt"

	"note-issuance-engine/internal/core/domain"
)

// JSONMetadataRenderer renders note attributes as a marketplace-style
// metadata document.
type JSONMetadataRenderer struct{}

// NewJSONMetadataRenderer creates a JSONMetadataRenderer.
func NewJSONMetadataRenderer() *JSONMetadataRenderer {
	return &JSONMetadataRenderer{}
}

type metadataTrait struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type metadataDocument struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	Attributes  []metadataTrait `json:"attributes"`
}

// Render implements ports.MetadataRenderer.
func (r *JSONMetadataRenderer) Render(_ context.Context, attrs domain.NoteAttributes) ([]byte, error) {
	rarity := attrs.RarityName
	if rarity == "" {
		rarity = fmt.Sprintf("Level %d", attrs.Rarity)
	}

	doc := metadataDocument{
		Name: fmt.Sprintf("%s %s #%d", attrs.SeriesID, attrs.DenominationName, attrs.Serial),
		Description: fmt.Sprintf("%s note from series %s, redeemable for %d.",
			attrs.DenominationName, seriesLabel(attrs), attrs.RedemptionValue),
		Image: attrs.MediaPath,
		Attributes: []metadataTrait{
			{TraitType: "Series", Value: attrs.SeriesID},
			{TraitType: "Denomination", Value: attrs.DenominationName},
			{TraitType: "Face Value", Value: attrs.FaceValue},
			{TraitType: "Rarity", Value: rarity},
			{TraitType: "Serial", Value: attrs.Serial},
			{TraitType: "Redemption Value", Value: attrs.RedemptionValue},
		},
	}
	return json.Marshal(doc)
}

func seriesLabel(attrs domain.NoteAttributes) string {
	if attrs.SeriesName == "" {
		return attrs.SeriesID
	}
	return attrs.SeriesName
}
