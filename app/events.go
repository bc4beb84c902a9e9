package app

import (
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// EventHub fans contract change notifications out to connected dashboard
// streams. WatchContracts publishes into it; each SSE connection holds one
// subscription filtered to its user.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan ContractEvent]string
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan ContractEvent]string)}
}

// Subscribe registers a stream for one user's events. The returned channel
// is buffered; a subscriber that stops draining loses events rather than
// blocking the publisher.
func (h *EventHub) Subscribe(userID string) chan ContractEvent {
	ch := make(chan ContractEvent, 16)
	h.mu.Lock()
	h.subs[ch] = userID
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan ContractEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers an event to every subscriber owned by the event's user.
func (h *EventHub) Publish(ev ContractEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, userID := range h.subs {
		if userID != ev.UserID {
			continue
		}
		select {
		case ch <- ev:
		default:
			log.Printf("event dropped for slow subscriber user=%s contract=%s", ev.UserID, ev.ID)
		}
	}
}

// StreamContractEvents is a server-sent-events feed of the caller's contract
// changes, driving live dashboard refreshes.
func (s *Server) StreamContractEvents(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if s.hub == nil {
		respondError(c, gatewayError("event stream not available", nil))
		return
	}

	ch := s.hub.Subscribe(claims.Subject)
	defer s.hub.Unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("contract", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
