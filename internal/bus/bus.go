// Package bus is a typed, synchronous, in-process publish/subscribe hub.
// Subscribers only see events published while they are registered.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType names the kind of entity an event concerns.
type EventType string

const (
	EventVendor  EventType = "vendor"
	EventProduct EventType = "product"
	EventOrder   EventType = "order"
	EventUser    EventType = "user"
	EventCoupon  EventType = "coupon"
	EventSession EventType = "session"
)

// Session event targets.
const (
	SessionLoggedIn  = "logged-in"
	SessionLoggedOut = "logged-out"
	SessionCleared   = "cleared"
)

// Event describes one status change. Key is set for entities addressed by
// code rather than numeric id (coupons).
type Event struct {
	ID       uuid.UUID `json:"event_id"`
	Type     EventType `json:"type"`
	EntityID int64     `json:"id"`
	Key      string    `json:"key,omitempty"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	At       time.Time `json:"at"`
}

type Handler func(Event)

// Publisher is the narrow interface the workflows depend on.
type Publisher interface {
	Publish(Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events to current subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[EventType][]subscription), logger: logger}
}

// Subscribe registers h for events of type t. The returned func removes it
// and is safe to call more than once.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *Bus) remove(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.subs[t]
	kept := make([]subscription, 0, len(current))
	for _, s := range current {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, t)
		return
	}
	b.subs[t] = kept
}

// Publish stamps ev and hands it to every subscriber of ev.Type. Handlers
// run on the caller's goroutine; a panicking handler is logged and skipped.
func (b *Bus) Publish(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	targets := append([]subscription(nil), b.subs[ev.Type]...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				zap.String("type", string(ev.Type)),
				zap.Int64("id", ev.EntityID),
				zap.Any("panic", r))
		}
	}()
	s.handler(ev)
}

// Subscribers returns how many handlers are registered for t.
func (b *Bus) Subscribers(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}
