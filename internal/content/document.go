package content

import (
	"encoding/json"
	"time"
)

// EditableRegion pairs a page locator with serialized rich text.
type EditableRegion struct {
	Locator     string `json:"locator"`
	RichContent string `json:"richContent"`
}

// BusinessCard is the serialized form of a business card.
type BusinessCard struct {
	ID      string   `json:"id"`
	Image   ImageRef `json:"image"`
	AltText string   `json:"altText"`
}

// WorkCard is the serialized form of a work/project card.
type WorkCard struct {
	ID          string   `json:"id"`
	Image       ImageRef `json:"image"`
	AltText     string   `json:"altText"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Link        Link     `json:"link"`
}

// LogoCard is the serialized form of a logo card.
type LogoCard struct {
	ID      string   `json:"id"`
	Image   ImageRef `json:"image"`
	AltText string   `json:"altText"`
	Text    string   `json:"text"`
}

// SiteDocument is the persisted snapshot of every editable piece of the site.
//
// A nil collection slice means the field was absent from the source document
// and restoring it must leave the live collection untouched. Snapshots always
// carry non-nil slices.
type SiteDocument struct {
	EditableRegions []EditableRegion `json:"editableRegions"`
	AboutPhoto      ImageRef         `json:"aboutPhoto"`
	BusinessCards   []BusinessCard   `json:"businessCards"`
	WorkCards       []WorkCard       `json:"workCards"`
	LogoCards       []LogoCard       `json:"logoCards"`
	Timestamp       time.Time        `json:"timestamp"`
	LastUpdated     *time.Time       `json:"lastUpdated,omitempty"`
	Version         int64            `json:"version,omitempty"`
}

type legacyRegion struct {
	Selector string `json:"selector"`
	Content  string `json:"content"`
}

type legacyCard struct {
	ID          string `json:"id"`
	Src         string `json:"src"`
	Alt         string `json:"alt"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Text        string `json:"text"`
}

// wireDocument accepts both the current field names and the ones written by
// earlier page variants.
type wireDocument struct {
	EditableRegions []EditableRegion `json:"editableRegions"`
	AboutPhoto      ImageRef         `json:"aboutPhoto"`
	BusinessCards   []BusinessCard   `json:"businessCards"`
	WorkCards       []WorkCard       `json:"workCards"`
	LogoCards       []LogoCard       `json:"logoCards"`
	Timestamp       *time.Time       `json:"timestamp"`
	LastUpdated     *time.Time       `json:"lastUpdated"`
	Version         int64            `json:"version"`

	EditableContent []legacyRegion `json:"editableContent"`
	Bizcards        []legacyCard   `json:"bizcards"`
	Workcards       []legacyCard   `json:"workcards"`
	Logocards       []legacyCard   `json:"logocards"`
}

// UnmarshalJSON decodes current and legacy document shapes.
func (doc *SiteDocument) UnmarshalJSON(data []byte) error {
	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	decoded := SiteDocument{
		EditableRegions: wire.EditableRegions,
		AboutPhoto:      wire.AboutPhoto,
		BusinessCards:   wire.BusinessCards,
		WorkCards:       wire.WorkCards,
		LogoCards:       wire.LogoCards,
		LastUpdated:     wire.LastUpdated,
		Version:         wire.Version,
	}
	if wire.Timestamp != nil {
		decoded.Timestamp = *wire.Timestamp
	}

	if decoded.EditableRegions == nil && wire.EditableContent != nil {
		decoded.EditableRegions = make([]EditableRegion, 0, len(wire.EditableContent))
		for _, region := range wire.EditableContent {
			decoded.EditableRegions = append(decoded.EditableRegions, EditableRegion{
				Locator:     region.Selector,
				RichContent: region.Content,
			})
		}
	}
	if decoded.BusinessCards == nil && wire.Bizcards != nil {
		decoded.BusinessCards = make([]BusinessCard, 0, len(wire.Bizcards))
		for _, card := range wire.Bizcards {
			decoded.BusinessCards = append(decoded.BusinessCards, BusinessCard{
				ID:      card.ID,
				Image:   ImageRef(card.Src),
				AltText: card.Alt,
			})
		}
	}
	if decoded.WorkCards == nil && wire.Workcards != nil {
		decoded.WorkCards = make([]WorkCard, 0, len(wire.Workcards))
		for _, card := range wire.Workcards {
			decoded.WorkCards = append(decoded.WorkCards, WorkCard{
				ID:          card.ID,
				Image:       ImageRef(card.Src),
				AltText:     card.Alt,
				Title:       card.Title,
				Description: card.Description,
				Link:        LinkFromHref(card.Link),
			})
		}
	}
	if decoded.LogoCards == nil && wire.Logocards != nil {
		decoded.LogoCards = make([]LogoCard, 0, len(wire.Logocards))
		for _, card := range wire.Logocards {
			decoded.LogoCards = append(decoded.LogoCards, LogoCard{
				ID:      card.ID,
				Image:   ImageRef(card.Src),
				AltText: card.Alt,
				Text:    card.Text,
			})
		}
	}

	*doc = decoded
	return nil
}

// IsLegacyPayload reports whether raw JSON uses any pre-rename field names.
func IsLegacyPayload(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	for _, key := range []string{"editableContent", "bizcards", "workcards", "logocards"} {
		if _, ok := probe[key]; ok {
			return true
		}
	}
	return false
}

// DecodeDocument parses a JSON payload into a SiteDocument.
func DecodeDocument(data []byte) (SiteDocument, error) {
	var doc SiteDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return SiteDocument{}, err
	}
	return doc, nil
}

// EncodeDocument renders the document in the current shape.
func EncodeDocument(doc SiteDocument) ([]byte, error) {
	return json.Marshal(doc)
}
