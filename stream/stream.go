package stream

import (
	"sync"
	"sync/atomic"
)

// Subscription is a subscriber's handle on a Stream
type Subscription struct {
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
	detach func()
}

func newSubscription() *Subscription {
	return &Subscription{done: make(chan struct{})}
}

// Unsubscribe stops deliveries to the subscriber. Safe to call more than once and
// from within the subscriber's own callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.detach != nil {
			s.detach()
		}
		close(s.done)
	})
}

// Done is closed once the subscription ends, by Unsubscribe or because the source stopped
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the subscription ended
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// Stream is a lazy multicast sequence. Operators return new streams, each
// subscriber sees every value published after it subscribed.
type Stream[T any] struct {
	subscribe func(onNext func(T)) *Subscription
}

// Subscribe calls onNext for every value until the subscription ends
func (s Stream[T]) Subscribe(onNext func(T)) *Subscription {
	return s.subscribe(onNext)
}

// Filter only lets through values matching keep
func (s Stream[T]) Filter(keep func(T) bool) Stream[T] {
	return Stream[T]{subscribe: func(onNext func(T)) *Subscription {
		return s.subscribe(func(v T) {
			if keep(v) {
				onNext(v)
			}
		})
	}}
}

// Map transforms every value of s with f
func Map[T, U any](s Stream[T], f func(T) U) Stream[U] {
	return Stream[U]{subscribe: func(onNext func(U)) *Subscription {
		return s.subscribe(func(v T) {
			onNext(f(v))
		})
	}}
}

type subscriber[T any] struct {
	sub    *Subscription
	onNext func(T)
}

// hub is the source of a Stream, fanning published values out to its subscribers
type hub[T any] struct {
	mu          sync.Mutex
	subscribers []subscriber[T]
	closed      bool
}

func newHub[T any]() *hub[T] {
	return &hub[T]{}
}

func (h *hub[T]) stream() Stream[T] {
	return Stream[T]{subscribe: h.subscribe}
}

func (h *hub[T]) subscribe(onNext func(T)) *Subscription {
	sub := newSubscription()
	sub.detach = func() { h.remove(sub) }

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.Unsubscribe()
		return sub
	}
	h.subscribers = append(h.subscribers, subscriber[T]{sub: sub, onNext: onNext})
	h.mu.Unlock()
	return sub
}

func (h *hub[T]) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subscribers {
		if s.sub == sub {
			h.subscribers = append(h.subscribers[:i:i], h.subscribers[i+1:]...)
			return
		}
	}
}

// publish delivers v to a snapshot of the subscribers, skipping those that unsubscribed meanwhile
func (h *hub[T]) publish(v T) {
	h.mu.Lock()
	subscribers := append([]subscriber[T](nil), h.subscribers...)
	h.mu.Unlock()
	for _, s := range subscribers {
		if !s.sub.Closed() {
			s.onNext(v)
		}
	}
}

// close ends every subscription. Later subscriptions end immediately.
func (h *hub[T]) close() {
	h.mu.Lock()
	h.closed = true
	subscribers := h.subscribers
	h.subscribers = nil
	h.mu.Unlock()
	for _, s := range subscribers {
		s.sub.Unsubscribe()
	}
}
