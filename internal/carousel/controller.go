// Package carousel computes clamped, viewport-aware positions for a
// horizontally translated strip of cards.
package carousel

import "sync"

const (
	// Gap is the horizontal spacing between cards, in pixels.
	Gap = 20

	narrowWindowWidth = 768
	narrowPadding     = 16
	widePadding       = 24
)

// ItemSource reports how many cards the carousel currently holds.
type ItemSource interface {
	Len() int
}

// Presenter applies the computed translation to the rendered track.
type Presenter interface {
	Translate(offset int)
}

// Geometry describes the measured layout of a carousel.
type Geometry struct {
	CardWidth     int
	ViewportWidth int
	// WindowWidth selects the left padding. Zero falls back to ViewportWidth.
	WindowWidth int
}

// LeftPadding returns the track padding for the geometry.
func (g Geometry) LeftPadding() int {
	width := g.WindowWidth
	if width <= 0 {
		width = g.ViewportWidth
	}
	if width <= narrowWindowWidth {
		return narrowPadding
	}
	return widePadding
}

// Controller owns the index of one carousel.
type Controller struct {
	items     ItemSource
	presenter Presenter

	mu           sync.Mutex
	geometry     Geometry
	currentIndex int
}

// New constructs a controller at index 0.
func New(items ItemSource, presenter Presenter, geometry Geometry) *Controller {
	return &Controller{items: items, presenter: presenter, geometry: geometry}
}

// Index returns the current index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentIndex
}

// Geometry returns the last measured geometry.
func (c *Controller) Geometry() Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geometry
}

// Offset returns the translation for the current index.
func (c *Controller) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetLocked()
}

// MaxSteps returns the largest valid index for the current geometry.
func (c *Controller) MaxSteps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxStepsLocked(c.items.Len())
}

// ClampIndex maps any requested index into [0, MaxSteps].
func (c *Controller) ClampIndex(requested int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clampLocked(requested)
}

// SetPosition renders the translation for the current index.
func (c *Controller) SetPosition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderLocked()
}

// Advance moves one step in the direction of step and renders.
func (c *Controller) Advance(step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case step > 0:
		c.currentIndex = c.clampLocked(c.currentIndex + 1)
	case step < 0:
		c.currentIndex = c.clampLocked(c.currentIndex - 1)
	}
	c.renderLocked()
}

// OnViewportChange records new measurements, re-clamps and renders.
func (c *Controller) OnViewportChange(geometry Geometry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.geometry = geometry
	c.currentIndex = c.clampLocked(c.currentIndex)
	c.renderLocked()
}

// Refresh re-clamps after the item count changed and renders.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentIndex = c.clampLocked(c.currentIndex)
	c.renderLocked()
}

func (c *Controller) clampLocked(requested int) int {
	count := c.items.Len()
	if count == 0 {
		return 0
	}
	maxSteps := c.maxStepsLocked(count)
	if requested < 0 {
		return 0
	}
	if requested > maxSteps {
		return maxSteps
	}
	return requested
}

func (c *Controller) maxStepsLocked(count int) int {
	if count == 0 {
		return 0
	}
	step := c.geometry.CardWidth + Gap
	if step <= 0 {
		return 0
	}
	totalCardsWidth := step*count - Gap
	availableWidth := c.geometry.ViewportWidth - c.geometry.LeftPadding()
	overflow := totalCardsWidth - availableWidth
	if overflow <= 0 {
		return 0
	}
	return (overflow + step - 1) / step
}

func (c *Controller) offsetLocked() int {
	return c.currentIndex * (c.geometry.CardWidth + Gap)
}

func (c *Controller) renderLocked() {
	if c.items.Len() == 0 || c.presenter == nil {
		return
	}
	c.presenter.Translate(c.offsetLocked())
}
