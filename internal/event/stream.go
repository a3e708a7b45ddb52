// Package event provides small typed publish/subscribe streams used for
// diagnostics and indexing notifications.
package event

import "sync"

// Stream is a typed fan-out channel registry. Publish never blocks: a
// subscriber whose buffer is full misses the value rather than stalling
// the publisher, which runs on the client's read loop.
type Stream[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

// NewStream creates an empty stream
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a listener and returns its channel together with a
// cancel function that removes exactly this listener. buffer is the channel
// capacity; a buffer of at least 1 avoids missing a single burst value.
func (s *Stream[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers v to every current subscriber without blocking
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// SubscriberCount returns the number of active listeners
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
