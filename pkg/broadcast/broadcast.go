// Package broadcast fans game snapshots out to per-room subscribers.
package broadcast

import (
	"sync"

	"github.com/cbodonnell/noughts/pkg/game/types"
)

// Subscriber receives the snapshots of one room. Delivery never blocks the
// publisher: a subscriber that falls behind only sees the latest snapshot.
type Subscriber struct {
	ch   chan *types.GameState
	lock sync.Mutex
}

func NewSubscriber() *Subscriber {
	return &Subscriber{
		ch: make(chan *types.GameState, 1),
	}
}

// C returns the channel snapshots are delivered on.
func (s *Subscriber) C() <-chan *types.GameState {
	return s.ch
}

// Offer delivers a snapshot, replacing one that has not been received yet.
func (s *Subscriber) Offer(state *types.GameState) {
	s.lock.Lock()
	defer s.lock.Unlock()
	select {
	case s.ch <- state:
		return
	default:
	}
	// drop the stale pending snapshot
	select {
	case <-s.ch:
	default:
	}
	s.ch <- state
}

// Close closes the delivery channel. Offer must not be called afterwards.
func (s *Subscriber) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	close(s.ch)
}

// Hub manages the subscribers of every room.
type Hub struct {
	subscribers map[string]map[*Subscriber]struct{}
	lock        sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber for a room.
func (h *Hub) Subscribe(roomID string) *Subscriber {
	h.lock.Lock()
	defer h.lock.Unlock()
	sub := NewSubscriber()
	if h.subscribers[roomID] == nil {
		h.subscribers[roomID] = make(map[*Subscriber]struct{})
	}
	h.subscribers[roomID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(roomID string, sub *Subscriber) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.subscribers[roomID][sub]; !ok {
		return
	}
	delete(h.subscribers[roomID], sub)
	if len(h.subscribers[roomID]) == 0 {
		delete(h.subscribers, roomID)
	}
	sub.Close()
}

// Publish offers a snapshot to every subscriber of its room.
func (h *Hub) Publish(state *types.GameState) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for sub := range h.subscribers[state.RoomID] {
		sub.Offer(state.Copy())
	}
}

// Count returns the number of subscribers of a room.
func (h *Hub) Count(roomID string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subscribers[roomID])
}
