package events

import (
	"context"
	"sync"
)

// Waiter captures the first event from a source that satisfies a predicate.
type Waiter[T any] struct {
	once   sync.Once
	done   chan struct{}
	result T
	sub    Subscription
	mu     sync.Mutex
}

// Watch subscribes to src before returning, so no event fired after Watch
// returns can be missed. The subscription is released on the first match;
// later events are not observed.
func Watch[T any](src Source[T], predicate func(T) bool) *Waiter[T] {
	w := &Waiter[T]{done: make(chan struct{})}

	// The handler may run before Subscribe returns, so the subscription is
	// published under the lock and released by whoever sees it second.
	w.mu.Lock()
	sub := src.Subscribe(func(event T) {
		select {
		case <-w.done:
			return
		default:
		}
		if !predicate(event) {
			return
		}
		w.once.Do(func() {
			w.result = event
			close(w.done)
			w.release()
		})
	})
	w.sub = sub
	matched := false
	select {
	case <-w.done:
		matched = true
	default:
	}
	w.mu.Unlock()
	if matched {
		sub.Unsubscribe()
	}
	return w
}

func (w *Waiter[T]) release() {
	if !w.mu.TryLock() {
		// Still inside Watch; it unsubscribes once it sees done.
		return
	}
	sub := w.sub
	w.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Done is closed once a matching event was observed
func (w *Waiter[T]) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until a matching event arrives or ctx is done. Canceling ctx
// releases the subscription.
func (w *Waiter[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-w.done:
		return w.result, nil
	case <-ctx.Done():
		w.Cancel()
		select {
		case <-w.done:
			return w.result, nil
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel releases the subscription without waiting
func (w *Waiter[T]) Cancel() {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// WaitFor resolves to the first event from src that satisfies predicate.
// It has no timeout of its own; pass a context with a deadline for that.
func WaitFor[T any](ctx context.Context, src Source[T], predicate func(T) bool) (T, error) {
	return Watch(src, predicate).Wait(ctx)
}
