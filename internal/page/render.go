package page

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/internal/cards"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/PuerkitoBio/goquery"
)

const (
	enterEditLabel = "Enter edit mode"
	exitEditLabel  = "Exit edit mode"
	openProject    = "Open project"
)

// CardView is one card with the interactions it offers.
type CardView struct {
	cards.Card
	Actions []string
}

// TrackView is the rendered state of one carousel.
type TrackView struct {
	Cards           []CardView
	Offset          int
	SentinelActions []string
}

// View is everything Render needs besides the working document.
type View struct {
	EditMode          bool
	ShowAdminPanel    bool
	Busy              bool
	Tracks            map[content.CardKind]TrackView
	AboutPhotoActions []string
}

// Render produces the full page for the view. The working document is not
// modified.
func (d *Document) Render(view View) ([]byte, error) {
	source, err := d.HTML()
	if err != nil {
		return nil, fmt.Errorf("page: serialize working document: %w", err)
	}
	out, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("page: reparse working document: %w", err)
	}

	body := out.Find("body")
	if view.EditMode {
		body.AddClass(adminModeClass)
	} else {
		body.RemoveClass(adminModeClass)
	}
	out.Find("#" + adminPanelID).SetAttr("style", displayStyle(view.ShowAdminPanel))
	out.Find("#" + loadingSpinnerID).SetAttr("style", displayStyle(view.Busy))
	toggleLabel := enterEditLabel
	if view.EditMode {
		toggleLabel = exitEditLabel
	}
	out.Find("#" + toggleButtonID).SetText(toggleLabel)
	setActions(out.Find("#"+aboutPhotoID), view.AboutPhotoActions)

	for kind, layout := range Layouts {
		track := view.Tracks[kind]
		trackElement := out.Find("#" + layout.TrackID)
		sentinel := trackElement.Find("#" + layout.SentinelID)
		for _, card := range track.Cards {
			sentinel.BeforeHtml(cardMarkup(kind, card, view.EditMode))
		}
		trackElement.SetAttr("style", fmt.Sprintf("transform: translateX(-%dpx)", track.Offset))
		if view.EditMode {
			sentinel.RemoveAttr("hidden")
		} else {
			sentinel.SetAttr("hidden", "hidden")
		}
		setActions(sentinel, track.SentinelActions)
	}

	// Card markup is inserted above, so this covers regions and card text.
	out.Find(editableSelector).SetAttr("contenteditable", strconv.FormatBool(view.EditMode))

	rendered, err := goquery.OuterHtml(out.Selection)
	if err != nil {
		return nil, fmt.Errorf("page: render: %w", err)
	}
	return []byte(rendered), nil
}

func cardMarkup(kind content.CardKind, card CardView, editMode bool) string {
	var builder strings.Builder
	layout := Layouts[kind]
	class := layout.CardClass
	if kind == content.CardKindWork {
		class += " tilt"
	}
	fmt.Fprintf(&builder, `<div class="%s" data-handle="%d"%s>`, class, card.Handle, actionsAttr(card.Actions))
	image := fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(card.Image.String()), html.EscapeString(card.AltText))

	switch kind {
	case content.CardKindBusiness:
		builder.WriteString(image)
	case content.CardKindWork:
		builder.WriteString(image)
		builder.WriteString(`<div class="work-content">`)
		fmt.Fprintf(&builder, `<h3 class="work-title editable">%s</h3>`, html.EscapeString(card.Title))
		fmt.Fprintf(&builder, `<p class="work-description editable">%s</p>`, html.EscapeString(card.Description))
		// A card without a link offers no anchor at all.
		if card.Link.IsSet() {
			fmt.Fprintf(&builder, `<a href="%s" class="work-btn"`, html.EscapeString(card.Link.String()))
			if card.OpenInNewContext {
				builder.WriteString(` target="_blank" rel="noopener noreferrer"`)
			}
			builder.WriteString(">" + openProject + "</a>")
		}
		builder.WriteString(`</div>`)
	case content.CardKindLogo:
		builder.WriteString(`<div class="logo-image">` + image + `</div>`)
		fmt.Fprintf(&builder, `<div class="logo-text editable">%s</div>`, html.EscapeString(card.Text))
	}
	builder.WriteString(`</div>`)
	return builder.String()
}

func actionsAttr(actions []string) string {
	if len(actions) == 0 {
		return ""
	}
	return fmt.Sprintf(` data-actions="%s"`, html.EscapeString(strings.Join(actions, " ")))
}

func setActions(selection *goquery.Selection, actions []string) {
	if len(actions) == 0 {
		selection.RemoveAttr("data-actions")
		return
	}
	selection.SetAttr("data-actions", strings.Join(actions, " "))
}

func displayStyle(visible bool) string {
	if visible {
		return "display: block"
	}
	return "display: none"
}
