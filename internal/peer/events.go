package peer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ternledger/tern-go/internal/model"
)

// subscriberBuffer bounds per-subscriber queueing. A subscriber that falls
// this far behind loses events rather than stalling execution.
const subscriberBuffer = 256

type subscriber struct {
	id     string
	filter model.EventFilter
	ch     chan model.Event
}

// hub fans ledger events out to websocket subscribers. Publish order is
// delivery order per subscriber; the hub never reorders.
type hub struct {
	mu   sync.Mutex
	subs map[string]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[string]*subscriber)}
}

func (h *hub) subscribe(filter model.EventFilter) *subscriber {
	sub := &subscriber{
		id:     uuid.NewString(),
		filter: filter,
		ch:     make(chan model.Event, subscriberBuffer),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *hub) publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is not draining; drop rather than block execution.
		}
	}
}

func (h *hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
