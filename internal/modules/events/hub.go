// README: Process-local fan-out of frames to the members of an order group.
package events

import (
	"sync"

	"go.uber.org/zap"

	"courier/internal/types"
)

const DefaultBuffer = 32

// Group names the fan-out group of an order.
func Group(orderID types.ID) string {
	return "order_" + orderID.String()
}

type Subscription struct {
	group string
	ch    chan []byte
}

// C yields frames until the subscription leaves the hub.
func (s *Subscription) C() <-chan []byte { return s.ch }

func (s *Subscription) Group() string { return s.group }

// Hub never blocks a publisher: a member whose buffer is full misses the frame.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{groups: map[string]map[*Subscription]struct{}{}, buffer: buffer, log: log}
}

func (h *Hub) Join(group string) *Subscription {
	sub := &Subscription{group: group, ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = map[*Subscription]struct{}{}
		h.groups[group] = members
	}
	members[sub] = struct{}{}
	return sub
}

// Leave removes the subscription and closes its channel. Calling it twice is
// harmless.
func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[sub.group]
	if !ok {
		return
	}
	if _, ok := members[sub]; !ok {
		return
	}
	delete(members, sub)
	close(sub.ch)
	if len(members) == 0 {
		delete(h.groups, sub.group)
	}
}

// Deliver hands frame to every member of group and returns how many took it.
func (h *Hub) Deliver(group string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.groups[group] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			h.log.Warn("subscriber buffer full, frame dropped", zap.String("group", group))
		}
	}
	return delivered
}

// Size reports the number of members in group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
