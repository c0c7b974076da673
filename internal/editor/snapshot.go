package editor

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/page"
	"go.uber.org/zap"
)

// SkippedRegion is a region of a restored document that could not be applied.
type SkippedRegion struct {
	Locator string `json:"locator"`
	Reason  string `json:"reason"`
}

// RestoreReport summarizes a best-effort restore.
type RestoreReport struct {
	Collections     []content.CardKind `json:"collections"`
	RegionsRestored int                `json:"regionsRestored"`
	SkippedRegions  []SkippedRegion    `json:"skippedRegions"`
	AboutPhoto      bool               `json:"aboutPhotoRestored"`
}

// Snapshot serializes the page. Card ids are positional and independent of
// the default-name counters.
func (e *Editor) Snapshot() (content.SiteDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regions, err := e.document.Regions()
	if err != nil {
		return content.SiteDocument{}, err
	}
	doc := content.SiteDocument{
		EditableRegions: make([]content.EditableRegion, 0, len(regions)),
		AboutPhoto:      e.document.AboutPhoto(),
		BusinessCards:   []content.BusinessCard{},
		WorkCards:       []content.WorkCard{},
		LogoCards:       []content.LogoCard{},
		Timestamp:       e.clock().UTC(),
	}
	for _, region := range regions {
		doc.EditableRegions = append(doc.EditableRegions, content.EditableRegion{
			Locator:     region.Locator,
			RichContent: region.HTML,
		})
	}

	for index, card := range e.collections[content.CardKindBusiness].Cards() {
		doc.BusinessCards = append(doc.BusinessCards, content.BusinessCard{
			ID:      positionalID(content.CardKindBusiness, index),
			Image:   card.Image,
			AltText: card.AltText,
		})
	}
	for index, card := range e.collections[content.CardKindWork].Cards() {
		doc.WorkCards = append(doc.WorkCards, content.WorkCard{
			ID:          positionalID(content.CardKindWork, index),
			Image:       card.Image,
			AltText:     card.AltText,
			Title:       card.Title,
			Description: card.Description,
			Link:        card.Link,
		})
	}
	for index, card := range e.collections[content.CardKindLogo].Cards() {
		doc.LogoCards = append(doc.LogoCards, content.LogoCard{
			ID:      positionalID(content.CardKindLogo, index),
			Image:   card.Image,
			AltText: card.AltText,
			Text:    card.Text,
		})
	}
	return doc, nil
}

// Restore rebuilds every collection present in the document and applies
// each region whose locator still names exactly one editable element.
// Unmatched regions are skipped and reported.
func (e *Editor) Restore(doc content.SiteDocument) RestoreReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := RestoreReport{Collections: []content.CardKind{}, SkippedRegions: []SkippedRegion{}}

	if doc.BusinessCards != nil {
		entries := make([]cards.Entry, 0, len(doc.BusinessCards))
		for _, card := range doc.BusinessCards {
			entries = append(entries, cards.Entry{Image: card.Image, AltText: card.AltText})
		}
		e.collections[content.CardKindBusiness].Rebuild(entries)
		report.Collections = append(report.Collections, content.CardKindBusiness)
	}
	if doc.WorkCards != nil {
		entries := make([]cards.Entry, 0, len(doc.WorkCards))
		for _, card := range doc.WorkCards {
			entries = append(entries, cards.Entry{
				Image:       card.Image,
				AltText:     card.AltText,
				Title:       card.Title,
				Description: card.Description,
				Link:        sanitizeLink(card.Link),
			})
		}
		e.collections[content.CardKindWork].Rebuild(entries)
		report.Collections = append(report.Collections, content.CardKindWork)
	}
	if doc.LogoCards != nil {
		entries := make([]cards.Entry, 0, len(doc.LogoCards))
		for _, card := range doc.LogoCards {
			entries = append(entries, cards.Entry{Image: card.Image, AltText: card.AltText, Text: card.Text})
		}
		e.collections[content.CardKindLogo].Rebuild(entries)
		report.Collections = append(report.Collections, content.CardKindLogo)
	}

	for _, region := range doc.EditableRegions {
		if !e.document.HasRegion(region.Locator) {
			report.SkippedRegions = append(report.SkippedRegions, SkippedRegion{
				Locator: region.Locator,
				Reason:  page.ErrLocatorNotFound.Error(),
			})
			e.logger.Warn("region skipped on restore", zap.String("locator", region.Locator))
			continue
		}
		if err := e.document.SetRegion(region.Locator, e.policy.Sanitize(region.RichContent)); err != nil {
			report.SkippedRegions = append(report.SkippedRegions, SkippedRegion{Locator: region.Locator, Reason: err.Error()})
			continue
		}
		report.RegionsRestored++
	}

	if doc.AboutPhoto != "" {
		e.document.SetAboutPhoto(doc.AboutPhoto)
		report.AboutPhoto = true
	}

	for _, kind := range content.CardKinds {
		e.carousels[kind].Refresh()
	}
	e.logger.Info("content restored",
		zap.Int("regions_restored", report.RegionsRestored),
		zap.Int("regions_skipped", len(report.SkippedRegions)))
	e.observe("restore", nil)
	return report
}

func positionalID(kind content.CardKind, index int) string {
	return fmt.Sprintf("%s%d", kind.SnapshotPrefix(), index+1)
}

// sanitizeLink drops stored links that no longer parse as absolute URLs.
func sanitizeLink(link content.Link) content.Link {
	return content.LinkFromHref(link.String())
}
