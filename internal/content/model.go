package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// CardKind enumerates the card collections rendered on the page.
type CardKind string

const (
	// CardKindBusiness identifies business card entities.
	CardKindBusiness CardKind = "business"
	// CardKindWork identifies work/project card entities.
	CardKindWork CardKind = "work"
	// CardKindLogo identifies logo card entities.
	CardKindLogo CardKind = "logo"
)

// CardKinds lists every collection in page order.
var CardKinds = []CardKind{CardKindBusiness, CardKindWork, CardKindLogo}

var (
	// ErrInvalidURL indicates that a non-empty link is not an absolute URL.
	ErrInvalidURL = errors.New("content: invalid url")
	// ErrInvalidCardKind indicates an unknown collection name.
	ErrInvalidCardKind = errors.New("content: invalid card kind")
)

// ParseCardKind validates raw input and returns a CardKind.
func ParseCardKind(rawInput string) (CardKind, error) {
	switch CardKind(strings.ToLower(strings.TrimSpace(rawInput))) {
	case CardKindBusiness:
		return CardKindBusiness, nil
	case CardKindWork:
		return CardKindWork, nil
	case CardKindLogo:
		return CardKindLogo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCardKind, rawInput)
	}
}

// String returns the underlying collection name.
func (kind CardKind) String() string {
	return string(kind)
}

// SnapshotPrefix returns the positional id prefix used in serialized documents.
func (kind CardKind) SnapshotPrefix() string {
	switch kind {
	case CardKindBusiness:
		return "biz"
	case CardKindWork:
		return "work"
	case CardKindLogo:
		return "logo"
	default:
		return string(kind)
	}
}

// ImageRef references image bytes: a server-relative path or a data URI.
type ImageRef string

// String returns the raw reference.
func (ref ImageRef) String() string {
	return string(ref)
}

// IsEmbedded reports whether the reference carries its own payload.
func (ref ImageRef) IsEmbedded() bool {
	return strings.HasPrefix(string(ref), "data:")
}

// Link is an absolute URL or NoLink.
type Link string

// NoLink marks a card that must not offer navigation.
const NoLink Link = ""

// ParseLink validates user input. Empty input clears the link. Only http,
// https and mailto links are accepted.
func ParseLink(rawInput string) (Link, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return NoLink, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return NoLink, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !parsed.IsAbs() || (parsed.Host == "" && parsed.Opaque == "") {
		return NoLink, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, trimmed)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if parsed.Host == "" {
			return NoLink, fmt.Errorf("%w: %q has no host", ErrInvalidURL, trimmed)
		}
	case "mailto":
	default:
		return NoLink, fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, parsed.Scheme)
	}
	return Link(parsed.String()), nil
}

// IsSet reports whether the link may be navigated.
func (link Link) IsSet() bool {
	return link != NoLink
}

// String returns the underlying URL.
func (link Link) String() string {
	return string(link)
}

// LinkFromHref reads an anchor href. Placeholder anchors ("#", ".../#") and
// anything that does not parse map to NoLink.
func LinkFromHref(raw string) Link {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "#" || strings.HasSuffix(trimmed, "/#") {
		return NoLink
	}
	link, err := ParseLink(trimmed)
	if err != nil {
		return NoLink
	}
	return link
}
