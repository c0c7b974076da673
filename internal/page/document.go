// Package page owns the HTML skeleton of the portfolio: editable regions,
// card tracks, structural locators and rendering of the editor state.
package page

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/PuerkitoBio/goquery"
)

//go:embed skeleton.html
var defaultSkeleton []byte

// ErrInvalidSkeleton indicates a skeleton without the anchors the editor needs.
var ErrInvalidSkeleton = errors.New("page: invalid skeleton")

const (
	editableSelector   = ".editable"
	aboutPhotoSelector = ".about-photo img"
	aboutPhotoID       = "aboutPhoto"
	adminPanelID       = "adminPanel"
	toggleButtonID     = "toggleEdit"
	loadingSpinnerID   = "loadingSpinner"
	adminModeClass     = "admin-mode"
)

// TrackLayout names the elements that hold one collection.
type TrackLayout struct {
	TrackID    string
	SentinelID string
	CardClass  string
}

// Layouts maps every collection to its track in the skeleton.
var Layouts = map[content.CardKind]TrackLayout{
	content.CardKindBusiness: {TrackID: "biztrack", SentinelID: "addCard", CardClass: "bizcard"},
	content.CardKindWork:     {TrackID: "workstrack", SentinelID: "addWorkCard", CardClass: "work-card"},
	content.CardKindLogo:     {TrackID: "logostrack", SentinelID: "addLogoCard", CardClass: "logo-card"},
}

// Skeleton is the immutable page template.
type Skeleton struct {
	raw []byte
}

// DefaultSkeleton returns the embedded page.
func DefaultSkeleton() *Skeleton {
	skeleton, err := ParseSkeleton(defaultSkeleton)
	if err != nil {
		panic(fmt.Sprintf("embedded skeleton: %v", err))
	}
	return skeleton
}

// LoadSkeleton reads a skeleton from disk. An empty path selects the
// embedded page.
func LoadSkeleton(path string) (*Skeleton, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSkeleton(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("page: read skeleton: %w", err)
	}
	return ParseSkeleton(raw)
}

// ParseSkeleton validates raw HTML as a page skeleton.
func ParseSkeleton(raw []byte) (*Skeleton, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSkeleton, err)
	}
	required := []string{"#" + adminPanelID, "#" + toggleButtonID, aboutPhotoSelector}
	for _, layout := range Layouts {
		required = append(required, "#"+layout.TrackID, "#"+layout.TrackID+" > #"+layout.SentinelID)
	}
	for _, selector := range required {
		if doc.Find(selector).Length() != 1 {
			return nil, fmt.Errorf("%w: expected exactly one %q", ErrInvalidSkeleton, selector)
		}
	}
	copied := make([]byte, len(raw))
	copy(copied, raw)
	return &Skeleton{raw: copied}, nil
}

// NewDocument parses a fresh working copy of the skeleton.
func (s *Skeleton) NewDocument() (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.raw))
	if err != nil {
		return nil, fmt.Errorf("page: parse skeleton: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Document is the working page: editable regions and the about photo.
// Cards live in their collections and are only merged in by Render.
// A Document is not safe for concurrent use.
type Document struct {
	doc *goquery.Document
}

// Region is the serialized content of one editable element.
type Region struct {
	Locator string
	HTML    string
}

// Regions lists every editable element in document order.
func (d *Document) Regions() ([]Region, error) {
	var (
		regions  []Region
		firstErr error
	)
	d.doc.Find(editableSelector).Each(func(_ int, selection *goquery.Selection) {
		inner, err := selection.Html()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		regions = append(regions, Region{Locator: LocatorFor(selection.Get(0)), HTML: inner})
	})
	if firstErr != nil {
		return nil, fmt.Errorf("page: serialize region: %w", firstErr)
	}
	return regions, nil
}

// SetRegion replaces the inner HTML of the element the locator names.
func (d *Document) SetRegion(locator, fragment string) error {
	node, err := Resolve(d.doc.Get(0), locator)
	if err != nil {
		return err
	}
	d.doc.FindNodes(node).SetHtml(fragment)
	return nil
}

// HasRegion reports whether the locator names exactly one editable element.
func (d *Document) HasRegion(locator string) bool {
	node, err := Resolve(d.doc.Get(0), locator)
	if err != nil {
		return false
	}
	return d.doc.FindNodes(node).Is(editableSelector)
}

// AboutPhoto returns the about section image.
func (d *Document) AboutPhoto() content.ImageRef {
	src, _ := d.doc.Find(aboutPhotoSelector).First().Attr("src")
	return content.ImageRef(src)
}

// SetAboutPhoto replaces the about section image.
func (d *Document) SetAboutPhoto(ref content.ImageRef) {
	d.doc.Find(aboutPhotoSelector).First().SetAttr("src", ref.String())
}

// ExtractSeedCards removes the cards authored in the skeleton and returns
// them as collection entries, in track order.
func (d *Document) ExtractSeedCards() map[content.CardKind][]cards.Entry {
	seeds := make(map[content.CardKind][]cards.Entry, len(Layouts))
	for kind, layout := range Layouts {
		entries := []cards.Entry{}
		selection := d.doc.Find("#" + layout.TrackID + " > ." + layout.CardClass)
		selection.Each(func(_ int, card *goquery.Selection) {
			image := card.Find("img").First()
			src, _ := image.Attr("src")
			alt, _ := image.Attr("alt")
			entry := cards.Entry{Image: content.ImageRef(src), AltText: alt}
			switch kind {
			case content.CardKindWork:
				entry.Title = strings.TrimSpace(card.Find(".work-title").First().Text())
				entry.Description = strings.TrimSpace(card.Find(".work-description").First().Text())
				href, _ := card.Find(".work-btn").First().Attr("href")
				entry.Link = content.LinkFromHref(href)
			case content.CardKindLogo:
				entry.Text = strings.TrimSpace(card.Find(".logo-text").First().Text())
			}
			entries = append(entries, entry)
		})
		selection.Remove()
		seeds[kind] = entries
	}
	return seeds
}

// HTML serializes the working document.
func (d *Document) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}
