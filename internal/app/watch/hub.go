// Package watch fans record changes out to per-owner subscribers and turns
// them into reactive query snapshots.
package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3E-Network/souschef/internal/app/metrics"
)

// Op is the kind of write that produced a change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one successful write.
type Change struct {
	OwnerID    string    `json:"owner_id"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
	// Origin identifies the process that made the write; see RedisBridge.
	Origin string `json:"origin,omitempty"`
}

// Publisher receives changes from stores.
type Publisher interface {
	Publish(Change)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Change)

func (f PublisherFunc) Publish(c Change) { f(c) }

// Nop discards changes.
var Nop Publisher = PublisherFunc(func(Change) {})

const defaultBuffer = 64

// Hub is an in-process change broker. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Subscription is a live feed of one owner's changes.
type Subscription struct {
	hub         *Hub
	owner       string
	collections map[string]bool
	ch          chan Change
	once        sync.Once
	done        chan struct{}
	dropped     atomic.Int64
}

// C returns the change channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Change { return s.ch }

// Dropped counts changes this subscriber missed because its buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Subscription) wants(collection string) bool {
	return len(s.collections) == 0 || s.collections[collection]
}

// Subscribe registers interest in owner's changes, optionally restricted to
// some collections. The subscription ends when ctx is cancelled, Close is
// called or the hub is closed.
func (h *Hub) Subscribe(ctx context.Context, owner string, collections ...string) *Subscription {
	sub := &Subscription{
		hub:         h,
		owner:       owner,
		collections: make(map[string]bool, len(collections)),
		ch:          make(chan Change, h.buffer),
		done:        make(chan struct{}),
	}
	for _, c := range collections {
		if c != "" {
			sub.collections[c] = true
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		sub.once.Do(func() { close(sub.done) })
		return sub
	}
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[*Subscription]struct{})
	}
	h.subs[owner][sub] = struct{}{}
	h.mu.Unlock()
	metrics.WatchSubscribed()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owned, ok := h.subs[sub.owner]
	if !ok {
		return
	}
	if _, ok := owned[sub]; !ok {
		return
	}
	delete(owned, sub)
	if len(owned) == 0 {
		delete(h.subs, sub.owner)
	}
	close(sub.ch)
	metrics.WatchUnsubscribed()
}

// Publish delivers c to every matching subscriber without blocking.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.subs[c.OwnerID] {
		if !sub.wants(c.Collection) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			sub.dropped.Add(1)
			metrics.WatchDropped()
		}
	}
}

// Subscribers returns the number of live subscriptions for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}

// Close ends every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0)
	for _, owned := range h.subs {
		for sub := range owned {
			subs = append(subs, sub)
		}
	}
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
