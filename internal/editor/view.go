package editor

import (
	"github.com/MarcoPoloResearchLab/folio/internal/appstate"
	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/page"
)

// CardState is the JSON view of one card.
type CardState struct {
	Handle           appstate.Handle  `json:"handle"`
	Image            content.ImageRef `json:"image"`
	AltText          string           `json:"altText"`
	Title            string           `json:"title,omitempty"`
	Description      string           `json:"description,omitempty"`
	Link             content.Link     `json:"link,omitempty"`
	OpenInNewContext bool             `json:"openInNewContext,omitempty"`
	Text             string           `json:"text,omitempty"`
	Actions          []string         `json:"actions"`
}

// CarouselState is the JSON view of one carousel.
type CarouselState struct {
	ItemCount    int `json:"itemCount"`
	CurrentIndex int `json:"currentIndex"`
	MaxSteps     int `json:"maxSteps"`
	Offset       int `json:"offset"`
	CardWidth    int `json:"cardWidth"`
	Viewport     int `json:"viewportWidth"`
	LeftPadding  int `json:"leftPadding"`
}

// State is the JSON view of the editor.
type State struct {
	EditMode          bool                               `json:"editMode"`
	Busy              bool                               `json:"busy"`
	WindowWidth       int                                `json:"windowWidth"`
	AboutPhoto        content.ImageRef                   `json:"aboutPhoto"`
	AboutPhotoActions []string                           `json:"aboutPhotoActions"`
	Collections       map[content.CardKind][]CardState   `json:"collections"`
	Carousels         map[content.CardKind]CarouselState `json:"carousels"`
	Sentinels         map[content.CardKind][]string      `json:"sentinels"`
	NextSequence      map[content.CardKind]int           `json:"nextSequence"`
}

// State returns a consistent view of the editor.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	editMode := e.state.EditMode()
	snapshot := e.cardsLocked()
	affordances := DeriveAffordances(editMode, snapshot, e.windowWidth)

	state := State{
		EditMode:          editMode,
		Busy:              e.Busy(),
		WindowWidth:       e.windowWidth,
		AboutPhoto:        e.document.AboutPhoto(),
		AboutPhotoActions: nonNil(affordances.AboutPhoto),
		Collections:       make(map[content.CardKind][]CardState, len(content.CardKinds)),
		Carousels:         make(map[content.CardKind]CarouselState, len(content.CardKinds)),
		Sentinels:         make(map[content.CardKind][]string, len(content.CardKinds)),
		NextSequence:      make(map[content.CardKind]int, len(content.CardKinds)),
	}
	for _, kind := range content.CardKinds {
		views := make([]CardState, 0, len(snapshot[kind]))
		for _, card := range snapshot[kind] {
			views = append(views, CardState{
				Handle:           card.Handle,
				Image:            card.Image,
				AltText:          card.AltText,
				Title:            card.Title,
				Description:      card.Description,
				Link:             card.Link,
				OpenInNewContext: card.OpenInNewContext,
				Text:             card.Text,
				Actions:          nonNil(affordances.Cards[card.Handle]),
			})
		}
		state.Collections[kind] = views

		controller := e.carousels[kind]
		geometry := controller.Geometry()
		state.Carousels[kind] = CarouselState{
			ItemCount:    len(snapshot[kind]),
			CurrentIndex: controller.Index(),
			MaxSteps:     controller.MaxSteps(),
			Offset:       controller.Offset(),
			CardWidth:    geometry.CardWidth,
			Viewport:     geometry.ViewportWidth,
			LeftPadding:  geometry.LeftPadding(),
		}
		state.Sentinels[kind] = nonNil(affordances.Sentinels[kind])
		state.NextSequence[kind] = e.state.PeekSequence(kind)
	}
	return state
}

// Render produces the page for the current state.
func (e *Editor) Render(showAdminPanel bool) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	editMode := e.state.EditMode()
	snapshot := e.cardsLocked()
	affordances := DeriveAffordances(editMode, snapshot, e.windowWidth)

	view := page.View{
		EditMode:          editMode,
		ShowAdminPanel:    showAdminPanel,
		Busy:              e.Busy(),
		Tracks:            make(map[content.CardKind]page.TrackView, len(content.CardKinds)),
		AboutPhotoActions: affordances.AboutPhoto,
	}
	for _, kind := range content.CardKinds {
		cardViews := make([]page.CardView, 0, len(snapshot[kind]))
		for _, card := range snapshot[kind] {
			cardViews = append(cardViews, page.CardView{Card: card, Actions: affordances.Cards[card.Handle]})
		}
		view.Tracks[kind] = page.TrackView{
			Cards:           cardViews,
			Offset:          e.carousels[kind].Offset(),
			SentinelActions: affordances.Sentinels[kind],
		}
	}
	return e.document.Render(view)
}

// Affordances derives the current interaction set.
func (e *Editor) Affordances() Affordances {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DeriveAffordances(e.state.EditMode(), e.cardsLocked(), e.windowWidth)
}

func (e *Editor) cardsLocked() map[content.CardKind][]cards.Card {
	snapshot := make(map[content.CardKind][]cards.Card, len(content.CardKinds))
	for _, kind := range content.CardKinds {
		snapshot[kind] = e.collections[kind].Cards()
	}
	return snapshot
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
