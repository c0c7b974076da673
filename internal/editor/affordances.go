package editor

import (
	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

// Interaction names rendered into data-actions attributes.
const (
	ActionOpenModal    = "open-modal"
	ActionOpenDetail   = "open-detail"
	ActionNavigate     = "navigate"
	ActionReplaceImage = "replace-image"
	ActionEditLink     = "edit-link"
	ActionAddCard      = "add-card"
)

// narrowWindowWidth matches the breakpoint below which business cards open a modal.
const narrowWindowWidth = 768

// Affordances lists the interactions each element offers.
type Affordances struct {
	Cards      map[appstate.Handle][]string
	Sentinels  map[content.CardKind][]string
	AboutPhoto []string
}

// DeriveAffordances computes interactions from state alone, so calling it
// again never accumulates duplicates.
func DeriveAffordances(editMode bool, collections map[content.CardKind][]cards.Card, windowWidth int) Affordances {
	affordances := Affordances{
		Cards:     make(map[appstate.Handle][]string),
		Sentinels: make(map[content.CardKind][]string, len(content.CardKinds)),
	}
	narrow := windowWidth > 0 && windowWidth <= narrowWindowWidth

	for _, kind := range content.CardKinds {
		for _, card := range collections[kind] {
			var actions []string
			switch kind {
			case content.CardKindBusiness:
				if narrow {
					actions = append(actions, ActionOpenModal)
				}
			case content.CardKindWork:
				actions = append(actions, ActionOpenDetail)
				if card.Link.IsSet() {
					actions = append(actions, ActionNavigate)
				}
			}
			if editMode {
				actions = append(actions, ActionReplaceImage)
				if kind == content.CardKindWork {
					actions = append(actions, ActionEditLink)
				}
			}
			affordances.Cards[card.Handle] = actions
		}
		if editMode {
			affordances.Sentinels[kind] = []string{ActionAddCard}
		}
	}
	if editMode {
		affordances.AboutPhoto = []string{ActionReplaceImage}
	}
	return affordances
}
