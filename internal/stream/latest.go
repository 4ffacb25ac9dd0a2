package stream

import (
	"context"
	"sync"
)

// Latest broadcasts the most recent value of type T to its subscribers.
// The zero value is ready to use.
type Latest[T any] struct {
	// mu serializes publishing, subscribing and teardown.
	mu sync.Mutex
	// value is the last published value.
	value T
	// has reports whether value was ever published.
	has bool
	// subscribers are the live subscription channels, each with capacity 1.
	subscribers map[chan T]struct{}
}

// NewLatest returns a broadcaster that already holds initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{
		value: initial,
		has:   true,
	}
}

// Publish stores v and hands it to every subscriber, replacing any
// value a subscriber has not consumed yet.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v
	l.has = true

	for ch := range l.subscribers {
		replace(ch, v)
	}
}

// Value returns the last published value and whether one exists.
func (l *Latest[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.value, l.has
}

// Subscribe returns a channel that yields the current value (if any) and
// every subsequent one. The channel is closed once ctx is done.
func (l *Latest[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	l.mu.Lock()

	if l.subscribers == nil {
		l.subscribers = make(map[chan T]struct{})
	}

	l.subscribers[ch] = struct{}{}

	if l.has {
		ch <- l.value
	}

	l.mu.Unlock()

	context.AfterFunc(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.subscribers, ch)
		close(ch)
	})

	return ch
}

// Subscribers returns the number of live subscriptions.
func (l *Latest[T]) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.subscribers)
}

// replace drops a pending value from ch and sends v.
// Callers hold the broadcaster lock, so no other sender can refill ch in between.
func replace[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}

	ch <- v
}
