// Package events fans session events out to live subscribers.
package events

import (
	"sync"
	"time"
)

// Event types streamed to the browser.
const (
	TypeStoreChange   = "store.change"
	TypeSurfaceRender = "surface.render"
	TypeNotification  = "notification"
	TypeWizardStep    = "wizard.step"
	TypeJob           = "job"
)

// Event is one message for a session.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription receives the events of one session.
type Subscription struct {
	C         <-chan Event
	ch        chan Event
	sessionID string
	hub       *Hub
	once      sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub delivers events without blocking publishers. A subscriber whose buffer
// is full is dropped and its channel closed.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers interest in sessionID's events.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, sessionID: sessionID, hub: h}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish sends an event to every subscriber of sessionID.
func (h *Hub) Publish(sessionID, typ string, payload any) {
	ev := Event{Type: typ, SessionID: sessionID, Payload: payload, Timestamp: time.Now().UnixMilli()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		select {
		case s.ch <- ev:
		default:
			h.removeLocked(s)
		}
	}
}

// Subscribers returns the number of subscribers of sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// CloseSession drops all subscribers of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		h.removeLocked(s)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscription) {
	set, ok := h.subs[s.sessionID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.sessionID)
	}
}
