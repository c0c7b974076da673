package cards

import (
	"errors"
	"testing"

	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

func TestAppendAssignsDefaultsAndNeverReusesCounters(t *testing.T) {
	state := appstate.New(map[content.CardKind]int{content.CardKindBusiness: 7})
	state.ToggleEditMode()
	collection := NewCollection(content.CardKindBusiness, state)

	first := collection.Append("/uploads/a.png", Metadata{})
	second := collection.Append("/uploads/b.png", Metadata{})
	if err := collection.Remove(second); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	third := collection.Append("/uploads/c.png", Metadata{})

	cards := collection.Cards()
	if len(cards) != 2 {
		t.Fatalf("expected two cards, got %d", len(cards))
	}
	if cards[0].Handle != first || cards[0].AltText != "Business Card 7" {
		t.Fatalf("unexpected first card %#v", cards[0])
	}
	if cards[1].Handle != third || cards[1].AltText != "Business Card 9" {
		t.Fatalf("counter must not be reused after removal, got %#v", cards[1])
	}
}

func TestRemoveReleasesTrailingSlot(t *testing.T) {
	state := appstate.New(nil)
	state.ToggleEditMode()
	collection := NewCollection(content.CardKindLogo, state)
	first := collection.Append("/uploads/a.png", Metadata{})
	collection.Append("/uploads/b.png", Metadata{})
	third := collection.Append("/uploads/c.png", Metadata{})

	if err := collection.Remove(first); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if collection.Len() != 2 {
		t.Fatalf("expected two cards, got %d", collection.Len())
	}
	backing := collection.cards[:cap(collection.cards)]
	if backing[2] != nil {
		t.Fatalf("removed slot must not keep a card alive, got %#v", backing[2])
	}
	if cards := collection.Cards(); cards[1].Handle != third {
		t.Fatalf("remaining cards must keep their order, got %#v", cards)
	}
}

func TestAppendWorkAndLogoDefaults(t *testing.T) {
	state := appstate.New(nil)
	works := NewCollection(content.CardKindWork, state)
	logos := NewCollection(content.CardKindLogo, state)

	workHandle := works.Append("/uploads/w.png", Metadata{})
	logoHandle := logos.Append("/uploads/l.png", Metadata{Text: "Acme"})

	work, _ := works.Find(workHandle)
	if work.Title != defaultWorkTitle || work.AltText != "Work 1" || work.Link != content.NoLink {
		t.Fatalf("unexpected work defaults %#v", work)
	}
	if work.OpenInNewContext {
		t.Fatalf("a card without a link must not open a new context")
	}
	logo, _ := logos.Find(logoHandle)
	if logo.Text != "Acme" || logo.AltText != "Logo 1" {
		t.Fatalf("unexpected logo %#v", logo)
	}
}

func TestMutationsRequireEditMode(t *testing.T) {
	state := appstate.New(nil)
	collection := NewCollection(content.CardKindWork, state)
	handle := collection.Append("/uploads/w.png", Metadata{})

	checks := map[string]error{
		"replace-image": collection.ReplaceImage(handle, "/uploads/x.png"),
		"edit-text":     collection.EditText(handle, FieldTitle, "Changed"),
		"edit-link":     collection.EditLink(handle, "https://example.com"),
		"remove":        collection.Remove(handle),
		"move":          collection.Move(handle, 0),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrEditModeDisabled) {
			t.Fatalf("%s: expected edit mode error, got %v", name, err)
		}
	}

	card, _ := collection.Find(handle)
	if card.Image != "/uploads/w.png" || card.Title != defaultWorkTitle {
		t.Fatalf("card changed outside edit mode: %#v", card)
	}
}

func TestEditLink(t *testing.T) {
	state := appstate.New(nil)
	state.ToggleEditMode()
	collection := NewCollection(content.CardKindWork, state)
	handle := collection.Append("/uploads/w.png", Metadata{})

	if err := collection.EditLink(handle, "https://example.com"); err != nil {
		t.Fatalf("valid link rejected: %v", err)
	}
	card, _ := collection.Find(handle)
	if card.Link != "https://example.com" || !card.OpenInNewContext {
		t.Fatalf("expected link with new-context navigation, got %#v", card)
	}

	err := collection.EditLink(handle, "not a url")
	if !errors.Is(err, content.ErrInvalidURL) {
		t.Fatalf("expected invalid url error, got %v", err)
	}
	card, _ = collection.Find(handle)
	if card.Link != "https://example.com" {
		t.Fatalf("invalid input must keep the prior link, got %q", card.Link)
	}

	if err := collection.EditLink(handle, ""); err != nil {
		t.Fatalf("clearing failed: %v", err)
	}
	card, _ = collection.Find(handle)
	if card.Link.IsSet() || card.OpenInNewContext {
		t.Fatalf("expected link cleared, got %#v", card)
	}
}

func TestEditTextRejectsFieldsOfOtherKinds(t *testing.T) {
	state := appstate.New(nil)
	state.ToggleEditMode()
	business := NewCollection(content.CardKindBusiness, state)
	handle := business.Append("/uploads/b.png", Metadata{})

	if err := business.EditText(handle, FieldTitle, "Nope"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if err := business.EditText(handle, FieldAltText, "Front side"); err != nil {
		t.Fatalf("alt text edit failed: %v", err)
	}
	if err := business.EditLink(handle, "https://example.com"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("business cards carry no link, got %v", err)
	}
	if err := business.EditText(appstate.Handle(999), FieldAltText, "x"); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMoveReordersCards(t *testing.T) {
	state := appstate.New(nil)
	state.ToggleEditMode()
	collection := NewCollection(content.CardKindLogo, state)
	a := collection.Append("/a.png", Metadata{})
	b := collection.Append("/b.png", Metadata{})
	c := collection.Append("/c.png", Metadata{})

	if err := collection.Move(c, 0); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if err := collection.Move(a, 10); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	got := collection.Cards()
	want := []appstate.Handle{c, b, a}
	for index, handle := range want {
		if got[index].Handle != handle {
			t.Fatalf("position %d: got handle %d want %d", index, got[index].Handle, handle)
		}
	}
}

func TestRebuildPreservesOrderAndCounters(t *testing.T) {
	state := appstate.New(map[content.CardKind]int{content.CardKindWork: 5})
	collection := NewCollection(content.CardKindWork, state)
	collection.Append("/old.png", Metadata{})

	collection.Rebuild([]Entry{
		{Image: "/one.png", AltText: "One", Title: "First", Link: "https://one.example"},
		{Image: "/two.png", AltText: "Two", Title: "Second"},
	})

	cards := collection.Cards()
	if len(cards) != 2 || cards[0].Image != "/one.png" || cards[1].Image != "/two.png" {
		t.Fatalf("unexpected rebuilt cards %#v", cards)
	}
	if !cards[0].OpenInNewContext || cards[1].OpenInNewContext {
		t.Fatalf("new-context flag must follow the link state")
	}
	if next := state.PeekSequence(content.CardKindWork); next != 6 {
		t.Fatalf("rebuild must not consume counters, next is %d", next)
	}
}
