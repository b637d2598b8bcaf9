// Package events provides typed event buses, subscriptions that can be
// released as a group, and waiters that resolve on the first matching event.
package events

import (
	"sync"
)

// Subscription is a registration that can be released.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription
type SubscriptionFunc func()

// Unsubscribe calls f
func (f SubscriptionFunc) Unsubscribe() { f() }

// Source is anything handlers can subscribe to.
type Source[T any] interface {
	Subscribe(handler func(T)) Subscription
}

// Bus delivers events to its subscribers in subscription order.
//
// Fire calls handlers on the caller's goroutine. Handlers may subscribe or
// unsubscribe while an event is being delivered; changes take effect for the
// next event, except that an unsubscribed handler is never called again.
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []*handlerEntry[T]
	closed   bool
}

type handlerEntry[T any] struct {
	id     uint64
	fn     func(T)
	mu     sync.Mutex
	active bool
}

// NewBus creates an empty bus
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers handler. Subscribing to a closed bus returns a no-op
// subscription.
func (b *Bus[T]) Subscribe(handler func(T)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || handler == nil {
		return SubscriptionFunc(func() {})
	}

	b.nextID++
	entry := &handlerEntry[T]{id: b.nextID, fn: handler, active: true}
	b.handlers = append(b.handlers, entry)

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() { b.remove(entry) })
	})
}

func (b *Bus[T]) remove(entry *handlerEntry[T]) {
	entry.mu.Lock()
	entry.active = false
	entry.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == entry.id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Fire delivers event to every current subscriber
func (b *Bus[T]) Fire(event T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	snapshot := make([]*handlerEntry[T], len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	for _, h := range snapshot {
		h.mu.Lock()
		active := h.active
		h.mu.Unlock()
		if active {
			h.fn(event)
		}
	}
}

// Len returns the number of subscribers
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Unsubscribe closes the bus and drops every subscriber, so a Bus can be
// added to a Group.
func (b *Bus[T]) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handlers {
		h.mu.Lock()
		h.active = false
		h.mu.Unlock()
	}
	b.handlers = nil
	b.closed = true
}

// Group releases a set of subscriptions together.
type Group struct {
	mu       sync.Mutex
	subs     []Subscription
	released bool
}

// Add registers subs with the group. Adding to a released group releases subs
// immediately.
func (g *Group) Add(subs ...Subscription) {
	g.mu.Lock()
	if !g.released {
		g.subs = append(g.subs, subs...)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Unsubscribe releases every subscription in the order they were added.
func (g *Group) Unsubscribe() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.released = true
	g.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}
