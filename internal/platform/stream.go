package platform

import (
	"sync"
	"sync/atomic"
)

// Subscription represents an active event subscription.
type Subscription struct {
	cancel   func()
	canceled atomic.Bool
}

// NewSubscription wraps a release function. The function runs at most once.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel stops receiving events on this subscription. Safe to call repeatedly.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	if s.canceled.CompareAndSwap(false, true) && s.cancel != nil {
		s.cancel()
	}
}

// IsCanceled returns true if this subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s != nil && s.canceled.Load()
}

type listener[T any] struct {
	handler func(T)
	sub     *Subscription
}

// stream is a multi-subscriber broadcast of a single event type.
type stream[T any] struct {
	mu        sync.Mutex
	listeners []*listener[T]
}

func (s *stream[T]) listen(handler func(T)) *Subscription {
	l := &listener[T]{handler: handler}
	l.sub = NewSubscription(func() { s.remove(l) })
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return l.sub
}

func (s *stream[T]) remove(target *listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == target {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// dispatch delivers v to a snapshot of the current listeners, so handlers may
// cancel subscriptions (their own included) while running.
func (s *stream[T]) dispatch(v T) int {
	s.mu.Lock()
	snapshot := make([]*listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	delivered := 0
	for _, l := range snapshot {
		if l.sub.IsCanceled() || l.handler == nil {
			continue
		}
		l.handler(v)
		delivered++
	}
	return delivered
}

func (s *stream[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
