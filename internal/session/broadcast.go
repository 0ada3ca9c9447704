package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// listenerChanSize is the bounded per-listener outbound queue depth, ported
// from the teacher's subscriberChanSize (session_manager.go).
const listenerChanSize = 64

// Broadcaster fans one session's output to a bounded history ring plus zero
// or more live listeners. It never blocks the PTY ingress reader: a
// listener that falls behind is evicted rather than slowing the fan-out,
// matching the teacher's broadcast()/Subscribe()/Unsubscribe() design.
type Broadcaster struct {
	history *History

	mu        sync.RWMutex
	listeners map[string]*Listener
}

// NewBroadcaster ties a Broadcaster to the History Store it feeds.
func NewBroadcaster(h *History) *Broadcaster {
	return &Broadcaster{
		history:   h,
		listeners: make(map[string]*Listener),
	}
}

// Publish appends data to history under `source` and pushes the resulting
// frame to every live listener via a non-blocking send. Listeners that
// can't keep up are evicted and their channel closed.
//
// The whole append-then-fan-out sequence runs under b.mu so it can never
// interleave with SubscribeWithReplay's register-then-snapshot sequence:
// a connecting listener either sees an entry in its history replay (because
// the entry was appended before the listener registered) or on its live
// channel (because it registered first), never both.
func (b *Broadcaster) Publish(data []byte, source SourceTag) HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.history.Append(data, source)
	frame := OutputFrame{Sequence: entry.Sequence, Data: entry.Data, Source: entry.Source}

	for _, l := range b.listeners {
		select {
		case l.Ch <- frame:
		default:
			logrus.Warnf("listener %s fell behind, evicting", l.ID)
			go b.evict(l.ID)
		}
	}
	return entry
}

// SubscribeWithReplay registers a new live listener and atomically (with
// respect to Publish) snapshots History, returning both. Because
// registration and the snapshot happen under the same lock Publish holds
// across its own append-and-fan-out, no entry can land in both the
// snapshot and the listener's live channel, and none can be missed between
// the two steps (spec.md §8 S6 / invariant I5).
func (b *Broadcaster) SubscribeWithReplay() (*Listener, []HistoryEntry) {
	l := &Listener{
		ID:   uuid.New().String(),
		Ch:   make(chan OutputFrame, listenerChanSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[l.ID] = l
	return l, b.history.Replay()
}

// Unsubscribe removes a listener and closes its channel. Safe to call more
// than once.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l.ID]
	if ok {
		delete(b.listeners, l.ID)
	}
	b.mu.Unlock()
	if ok {
		close(l.done)
		close(l.Ch)
	}
}

func (b *Broadcaster) evict(id string) {
	b.mu.Lock()
	l, ok := b.listeners[id]
	if ok {
		delete(b.listeners, id)
	}
	b.mu.Unlock()
	if ok {
		close(l.done)
		close(l.Ch)
	}
}

// ListenerCount reports the number of attached live listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
