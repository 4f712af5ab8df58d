// Package workspace implements the session orchestrator for the five-stage
// writing workflow: the stage machine, content seeding between stages, the
// autosave and coach-invocation schedulers, and the merge of coach responses
// back into session state.
package workspace

import (
	"log/slog"
	"sync"

	"github.com/piwrite/studio/internal/domain"
)

// EventType identifies a session event delivered to the editing surface.
type EventType string

const (
	// EventMessage carries a newly appended conversation turn.
	EventMessage EventType = "message"
	// EventSaving toggles the transient "saving" indicator.
	EventSaving EventType = "saving"
	// EventLoading toggles the transient "coach thinking" indicator.
	EventLoading EventType = "loading"
	// EventGaps replaces the displayed instructional gaps (deduplicated).
	EventGaps EventType = "gaps"
	// EventStandards replaces the displayed standards (deduplicated).
	EventStandards EventType = "standards"
	// EventSuggestions replaces the suggestion chips.
	EventSuggestions EventType = "suggestions"
	// EventStage announces a completed stage transition with the seeded
	// content.
	EventStage EventType = "stage"
	// EventContent announces a buffer overwrite originating from the coach
	// (prewriting only).
	EventContent EventType = "content"
	// EventWarning carries a non-fatal user-facing warning.
	EventWarning EventType = "warning"
)

// Event is one session notification. Only the fields relevant to its type
// are populated.
type Event struct {
	Type        EventType                  `json:"type"`
	Message     *domain.Message            `json:"message,omitempty"`
	Gaps        []domain.InstructionalGap  `json:"gaps,omitempty"`
	Standards   []domain.StandardReference `json:"standards,omitempty"`
	Suggestions []string                   `json:"suggestions,omitempty"`
	Stage       domain.Stage               `json:"stage,omitempty"`
	Content     string                     `json:"content,omitempty"`
	Active      bool                       `json:"active,omitempty"`
	Warning     string                     `json:"warning,omitempty"`
}

// eventHub fans session events out to subscribers (websocket connections).
// Publishing never blocks; a subscriber that stops draining loses events.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away.
func (h *eventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 64)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all current subscribers.
func (h *eventHub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping session event for slow subscriber", "subscriber", id, "event", ev.Type)
		}
	}
}

// Close terminates all subscriptions.
func (h *eventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
