// Package latest provides a single-writer, multi-reader "current value"
// publisher. A new subscriber sees the most recent value immediately and
// never a backlog: unread values are replaced by newer ones.
package latest

import "sync"

// Value holds the current value and fans it out to subscribers.
type Value[T any] struct {
	mu     sync.RWMutex
	cur    T
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// Subscription receives values from a Value.
type Subscription[T any] struct {
	C <-chan T // capacity 1, always holds the newest unread value
	c chan T
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[*Subscription[T]]struct{}),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Store replaces the current value and notifies every subscriber.
// Store after Close only updates the value.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = x
	if v.closed {
		return
	}
	for s := range v.subs {
		s.offer(x)
	}
}

// Subscribe registers a subscriber primed with the current value.
// After Close it returns a subscription whose channel is already closed.
func (v *Value[T]) Subscribe() *Subscription[T] {
	c := make(chan T, 1)
	s := &Subscription[T]{C: c, c: c}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		close(c)
		return s
	}
	c <- v.cur
	v.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel. It is safe to call more
// than once.
func (v *Value[T]) Unsubscribe(s *Subscription[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.subs[s]; !ok {
		return
	}
	delete(v.subs, s)
	close(s.c)
}

// Close unsubscribes everyone. Later Subscribe calls get closed channels.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for s := range v.subs {
		close(s.c)
	}
	v.subs = make(map[*Subscription[T]]struct{})
}

// SubscriberCount returns the number of active subscribers.
func (v *Value[T]) SubscriberCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// offer must be called with the owning Value's lock held. Only the writer
// sends, so after the drain the buffer has room.
func (s *Subscription[T]) offer(x T) {
	select {
	case <-s.c:
	default:
	}
	select {
	case s.c <- x:
	default:
	}
}
