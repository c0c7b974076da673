package cards

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

var (
	// ErrEditModeDisabled rejects mutations attempted outside edit mode.
	ErrEditModeDisabled = errors.New("cards: edit mode is disabled")
	// ErrCardNotFound indicates the handle does not belong to the collection.
	ErrCardNotFound = errors.New("cards: card not found")
	// ErrUnknownField indicates a text field the card kind does not carry.
	ErrUnknownField = errors.New("cards: unknown field")
)

// Field names a text attribute of a card.
type Field string

const (
	FieldAltText     Field = "altText"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldText        Field = "text"
)

const (
	defaultWorkTitle       = "New project"
	defaultWorkDescription = "Project description: goals, stack and the approach that shipped it."
	defaultLogoText        = "New logo"
)

// Card is a rendered entity of a collection.
type Card struct {
	Handle           appstate.Handle
	Kind             content.CardKind
	Image            content.ImageRef
	AltText          string
	Title            string
	Description      string
	Link             content.Link
	OpenInNewContext bool
	Text             string
}

// Metadata carries optional values for a new card. Empty fields get defaults.
type Metadata struct {
	AltText     string
	Title       string
	Description string
	Text        string
	Link        content.Link
}

// Entry is one serialized card used to rebuild a collection.
type Entry struct {
	Image       content.ImageRef
	AltText     string
	Title       string
	Description string
	Link        content.Link
	Text        string
}

// Collection is an ordered set of cards of one kind.
type Collection struct {
	kind  content.CardKind
	state *appstate.State

	mu    sync.RWMutex
	cards []*Card
}

// NewCollection binds a collection to the shared application state.
func NewCollection(kind content.CardKind, state *appstate.State) *Collection {
	return &Collection{kind: kind, state: state}
}

// Len returns the number of cards.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

// Cards returns copies of the cards in display order.
func (c *Collection) Cards() []Card {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Card, 0, len(c.cards))
	for _, card := range c.cards {
		out = append(out, *card)
	}
	return out
}

// Find returns a copy of the card with the given handle.
func (c *Collection) Find(handle appstate.Handle) (Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if card := c.lookup(handle); card != nil {
		return *card, true
	}
	return Card{}, false
}

// Append adds a card after the existing ones. It always consumes the
// collection counter so default names are never reused.
func (c *Collection) Append(image content.ImageRef, metadata Metadata) appstate.Handle {
	sequence := c.state.NextSequence(c.kind)
	card := &Card{
		Handle:  c.state.NewHandle(),
		Kind:    c.kind,
		Image:   image,
		AltText: metadata.AltText,
	}

	switch c.kind {
	case content.CardKindBusiness:
		if card.AltText == "" {
			card.AltText = fmt.Sprintf("Business Card %d", sequence)
		}
	case content.CardKindWork:
		if card.AltText == "" {
			card.AltText = fmt.Sprintf("Work %d", sequence)
		}
		card.Title = firstNonEmpty(metadata.Title, defaultWorkTitle)
		card.Description = firstNonEmpty(metadata.Description, defaultWorkDescription)
		card.Link = metadata.Link
		card.OpenInNewContext = metadata.Link.IsSet()
	case content.CardKindLogo:
		if card.AltText == "" {
			card.AltText = fmt.Sprintf("Logo %d", sequence)
		}
		card.Text = firstNonEmpty(metadata.Text, defaultLogoText)
	}

	c.mu.Lock()
	c.cards = append(c.cards, card)
	c.mu.Unlock()
	return card.Handle
}

// ReplaceImage swaps the card image in place.
func (c *Collection) ReplaceImage(handle appstate.Handle, image content.ImageRef) error {
	if !c.state.EditMode() {
		return ErrEditModeDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	card := c.lookup(handle)
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, handle)
	}
	card.Image = image
	return nil
}

// EditText sets a text attribute of the card.
func (c *Collection) EditText(handle appstate.Handle, field Field, value string) error {
	if !c.state.EditMode() {
		return ErrEditModeDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	card := c.lookup(handle)
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, handle)
	}

	switch {
	case field == FieldAltText:
		card.AltText = value
	case field == FieldTitle && c.kind == content.CardKindWork:
		card.Title = value
	case field == FieldDescription && c.kind == content.CardKindWork:
		card.Description = value
	case field == FieldText && c.kind == content.CardKindLogo:
		card.Text = value
	default:
		return fmt.Errorf("%w: %s on %s card", ErrUnknownField, field, c.kind)
	}
	return nil
}

// EditLink validates and sets the card link. Empty input clears it; invalid
// input leaves the previous link untouched.
func (c *Collection) EditLink(handle appstate.Handle, rawLink string) error {
	if !c.state.EditMode() {
		return ErrEditModeDisabled
	}
	if c.kind != content.CardKindWork {
		return fmt.Errorf("%w: link on %s card", ErrUnknownField, c.kind)
	}
	link, err := content.ParseLink(rawLink)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	card := c.lookup(handle)
	if card == nil {
		return fmt.Errorf("%w: %d", ErrCardNotFound, handle)
	}
	card.Link = link
	card.OpenInNewContext = link.IsSet()
	return nil
}

// Remove deletes the card. Counters are not rewound.
func (c *Collection) Remove(handle appstate.Handle) error {
	if !c.state.EditMode() {
		return ErrEditModeDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.indexOf(handle)
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrCardNotFound, handle)
	}
	copy(c.cards[index:], c.cards[index+1:])
	c.cards[len(c.cards)-1] = nil
	c.cards = c.cards[:len(c.cards)-1]
	return nil
}

// Move places the card at the target position, clamped to the collection bounds.
func (c *Collection) Move(handle appstate.Handle, target int) error {
	if !c.state.EditMode() {
		return ErrEditModeDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.indexOf(handle)
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrCardNotFound, handle)
	}
	if target < 0 {
		target = 0
	}
	if target > len(c.cards)-1 {
		target = len(c.cards) - 1
	}
	card := c.cards[index]
	remaining := append(c.cards[:index:index], c.cards[index+1:]...)
	reordered := make([]*Card, 0, len(c.cards))
	reordered = append(reordered, remaining[:target]...)
	reordered = append(reordered, card)
	reordered = append(reordered, remaining[target:]...)
	c.cards = reordered
	return nil
}

// Rebuild discards every card and appends one per entry, in order. Counters
// are left untouched.
func (c *Collection) Rebuild(entries []Entry) {
	rebuilt := make([]*Card, 0, len(entries))
	for _, entry := range entries {
		card := &Card{
			Handle:  c.state.NewHandle(),
			Kind:    c.kind,
			Image:   entry.Image,
			AltText: entry.AltText,
		}
		switch c.kind {
		case content.CardKindWork:
			card.Title = entry.Title
			card.Description = entry.Description
			card.Link = entry.Link
			card.OpenInNewContext = entry.Link.IsSet()
		case content.CardKindLogo:
			card.Text = entry.Text
		}
		rebuilt = append(rebuilt, card)
	}

	c.mu.Lock()
	c.cards = rebuilt
	c.mu.Unlock()
}

func (c *Collection) lookup(handle appstate.Handle) *Card {
	index := c.indexOf(handle)
	if index < 0 {
		return nil
	}
	return c.cards[index]
}

func (c *Collection) indexOf(handle appstate.Handle) int {
	for index, card := range c.cards {
		if card.Handle == handle {
			return index
		}
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
