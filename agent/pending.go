package agent

import "sync"

// waiters tracks in-flight request/response pairs by correlation id. Each
// registered id gets its own buffered channel, so concurrent requests never
// wake each other's waiters.
type waiters[T any] struct {
	mu sync.Mutex
	m  map[string]chan T
}

func newWaiters[T any]() *waiters[T] {
	return &waiters[T]{m: make(map[string]chan T)}
}

// register creates a waiter for id and returns its channel. Registering the
// same id twice replaces the previous waiter.
func (w *waiters[T]) register(id string) <-chan T {
	ch := make(chan T, 1)
	w.mu.Lock()
	w.m[id] = ch
	w.mu.Unlock()
	return ch
}

// fulfill delivers v to the waiter for id, if one is registered, and removes
// it. Returns false when no waiter was pending.
func (w *waiters[T]) fulfill(id string, v T) bool {
	w.mu.Lock()
	ch, ok := w.m[id]
	if ok {
		delete(w.m, id)
	}
	w.mu.Unlock()
	if ok {
		ch <- v
	}
	return ok
}

// cancel drops the waiter for id, typically on timeout.
func (w *waiters[T]) cancel(id string) {
	w.mu.Lock()
	delete(w.m, id)
	w.mu.Unlock()
}

// pending returns the number of registered waiters.
func (w *waiters[T]) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.m)
}
