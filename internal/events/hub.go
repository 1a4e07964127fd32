package events

import (
	"context"
	"sync"

	"SchoolPayments/internal/models"
)

// Publisher delivers status events after a webhook has been applied.
type Publisher interface {
	Publish(ctx context.Context, ev models.StatusEvent) error
}

const subscriberBuffer = 8

// Hub fans status events out to subscribers keyed by custom_order_id. It
// holds no payment state; the store stays the source of truth.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

type Subscription struct {
	C   <-chan models.StatusEvent
	ch  chan models.StatusEvent
	key string
	hub *Hub
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(customOrderID string) *Subscription {
	ch := make(chan models.StatusEvent, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, key: customOrderID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[customOrderID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[customOrderID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.key]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
	close(s.ch)
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, ev models.StatusEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.CustomOrderID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers(customOrderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[customOrderID])
}
