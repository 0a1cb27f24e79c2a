package service

import (
	"sync"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
)

const subscriberBuffer = 4

// hub fans ticked snapshots out to live listeners of one session. Slow
// listeners miss ticks rather than stall the timer.
type hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan countdown.Snapshot
	nextID uint64
	last   countdown.Snapshot
	closed bool
	done   chan struct{}
}

func newHub(initial countdown.Snapshot) *hub {
	return &hub{
		subs: make(map[uint64]chan countdown.Snapshot),
		last: initial,
		done: make(chan struct{}),
	}
}

// subscribe registers a listener. The latest snapshot is delivered first; a
// closed hub returns a channel holding only that snapshot.
func (h *hub) subscribe() (uint64, <-chan countdown.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan countdown.Snapshot, subscriberBuffer)
	ch <- h.last
	if h.closed {
		close(ch)
		return 0, ch
	}
	h.nextID++
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *hub) unsubscribe(subID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[subID]; ok {
		delete(h.subs, subID)
		close(ch)
	}
}

// publish delivers s to every listener. The ready snapshot is the last one:
// listeners are released after it.
func (h *hub) publish(s countdown.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = s
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
			if s.Ready() {
				// Make room so the final snapshot is never the one dropped.
				select {
				case <-ch:
				default:
				}
				ch <- s
			}
		}
	}
	if s.Ready() {
		h.closeLocked()
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *hub) closeLocked() {
	if h.closed {
		return
	}
	h.closed = true
	for subID, ch := range h.subs {
		delete(h.subs, subID)
		close(ch)
	}
	close(h.done)
}
