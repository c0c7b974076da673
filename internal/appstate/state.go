// Package appstate holds the mutable application state shared by the editor,
// the card collections and the carousels of a single editing session.
package appstate

import (
	"sync"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

// Handle identifies a live card for the lifetime of a session.
type Handle int64

// State owns the edit-mode flag, the per-collection id counters and the card
// handle sequence. Counters only move forward.
type State struct {
	mu         sync.RWMutex
	editMode   bool
	counters   map[content.CardKind]int
	nextHandle Handle
}

// New constructs a State whose counters start at the provided values.
// Missing or non-positive entries start at 1.
func New(initialCounters map[content.CardKind]int) *State {
	counters := make(map[content.CardKind]int, len(content.CardKinds))
	for _, kind := range content.CardKinds {
		start := initialCounters[kind]
		if start < 1 {
			start = 1
		}
		counters[kind] = start
	}
	return &State{counters: counters}
}

// EditMode reports whether inline editing is enabled.
func (s *State) EditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editMode
}

// ToggleEditMode flips the flag and returns the new value.
func (s *State) ToggleEditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = !s.editMode
	return s.editMode
}

// NextSequence returns the collection's next default-name number and advances it.
func (s *State) NextSequence(kind content.CardKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := s.counters[kind]
	if value < 1 {
		value = 1
	}
	s.counters[kind] = value + 1
	return value
}

// PeekSequence returns the next default-name number without consuming it.
func (s *State) PeekSequence(kind content.CardKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value := s.counters[kind]
	if value < 1 {
		return 1
	}
	return value
}

// NewHandle issues a session-unique card handle.
func (s *State) NewHandle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	return s.nextHandle
}
