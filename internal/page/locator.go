package page

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrLocatorNotFound indicates a locator that does not match exactly one element.
var ErrLocatorNotFound = errors.New("page: locator not found")

const nthOfTypePrefix = ":nth-of-type("

// LocatorFor computes the structural locator of an element: "#id" when the
// element has an id, otherwise the lowercase tag followed by the class
// attribute split on single spaces, with an :nth-of-type(k) suffix when
// siblings share the same tag and class attribute.
func LocatorFor(node *html.Node) string {
	if id := attrValue(node, "id"); id != "" {
		return "#" + id
	}

	locator := strings.ToLower(node.Data)
	classAttr := attrValue(node, "class")
	if classAttr != "" {
		locator += "." + strings.Join(strings.Split(classAttr, " "), ".")
	}

	if position, groupSize := siblingPosition(node); groupSize > 1 {
		locator += nthOfTypePrefix + strconv.Itoa(position) + ")"
	}
	return locator
}

// Resolve finds the single element under root that the locator names.
func Resolve(root *html.Node, locator string) (*html.Node, error) {
	query, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	var matches []*html.Node
	walkElements(root, func(node *html.Node) {
		if query.matches(node) {
			matches = append(matches, node)
		}
	})
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w: %q matched %d elements", ErrLocatorNotFound, locator, len(matches))
	}
	return matches[0], nil
}

type locatorQuery struct {
	id       string
	tag      string
	classes  string
	position int
}

func parseLocator(locator string) (locatorQuery, error) {
	if locator == "" {
		return locatorQuery{}, fmt.Errorf("%w: empty locator", ErrLocatorNotFound)
	}
	if strings.HasPrefix(locator, "#") {
		if len(locator) == 1 {
			return locatorQuery{}, fmt.Errorf("%w: empty id", ErrLocatorNotFound)
		}
		return locatorQuery{id: locator[1:]}, nil
	}

	base := locator
	position := 0
	if index := strings.LastIndex(locator, nthOfTypePrefix); index >= 0 && strings.HasSuffix(locator, ")") {
		value, err := strconv.Atoi(locator[index+len(nthOfTypePrefix) : len(locator)-1])
		if err != nil || value < 1 {
			return locatorQuery{}, fmt.Errorf("%w: bad position in %q", ErrLocatorNotFound, locator)
		}
		base = locator[:index]
		position = value
	}

	tag, classes, _ := strings.Cut(base, ".")
	if tag == "" {
		return locatorQuery{}, fmt.Errorf("%w: missing tag in %q", ErrLocatorNotFound, locator)
	}
	return locatorQuery{tag: strings.ToLower(tag), classes: classes, position: position}, nil
}

func (q locatorQuery) matches(node *html.Node) bool {
	if q.id != "" {
		return attrValue(node, "id") == q.id
	}
	if strings.ToLower(node.Data) != q.tag {
		return false
	}
	if strings.Join(strings.Split(attrValue(node, "class"), " "), ".") != q.classes {
		return false
	}
	if q.position == 0 {
		return true
	}
	position, _ := siblingPosition(node)
	return position == q.position
}

// siblingPosition returns the 1-based position of node among the element
// children of its parent that share its tag and class attribute, and the
// size of that group.
func siblingPosition(node *html.Node) (int, int) {
	if node.Parent == nil {
		return 1, 1
	}
	classAttr := attrValue(node, "class")
	position, groupSize := 0, 0
	for sibling := node.Parent.FirstChild; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type != html.ElementNode || sibling.Data != node.Data || attrValue(sibling, "class") != classAttr {
			continue
		}
		groupSize++
		if sibling == node {
			position = groupSize
		}
	}
	return position, groupSize
}

func walkElements(node *html.Node, visit func(*html.Node)) {
	if node.Type == html.ElementNode {
		visit(node)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkElements(child, visit)
	}
}

func attrValue(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Namespace == "" && attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
