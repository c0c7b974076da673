package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
)

const (
	EventEditMode        = "edit-mode"
	EventCardsChanged    = "cards-changed"
	EventRegionChanged   = "region-changed"
	EventContentSaved    = "content-saved"
	EventContentRestored = "content-restored"
	eventHeartbeat       = "heartbeat"

	defaultEventBuffer   = 16
	defaultHeartbeatTick = 25 * time.Second
)

// Event announces a change to the page so open admin tabs can refresh.
type Event struct {
	Type      string             `json:"type"`
	Kinds     []content.CardKind `json:"kinds,omitempty"`
	EditMode  *bool              `json:"editMode,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// EventDispatcher fans events out to every open stream. Slow subscribers
// drop events instead of blocking publishers.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      int64
	bufferSize  int
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]chan Event),
		bufferSize:  defaultEventBuffer,
	}
}

// Subscribe registers a stream that lives until ctx ends or cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	stream := make(chan Event, d.bufferSize)
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

func (d *EventDispatcher) Publish(event Event) {
	if event.Type == "" {
		return
	}
	d.mu.RLock()
	streams := make([]chan Event, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}

// Subscribers returns the number of open streams.
func (d *EventDispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
