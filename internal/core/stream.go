package core

import "sync"

// subscriber buffer; emissions to a full subscriber are dropped rather
// than blocking the emitting goroutine.
const streamBuffer = 64

// Stream is a hot fan-out of events. Subscribe returns a receive channel
// plus a cancel func that must be called when done, mirroring the
// (chan, cancel) subscription shape used by our signaling adapters.
type Stream[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new receiver. Optional seed values are queued
// before any future emission, so "current value first" subscriptions
// stay race-free when created under the owner's lock.
func (s *Stream[T]) Subscribe(seed ...T) (<-chan T, func()) {
	ch := make(chan T, streamBuffer)
	for _, v := range seed {
		ch <- v
	}
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Emit delivers v to every live subscriber without blocking.
func (s *Stream[T]) Emit(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Variable holds a current value and emits it on every actual change.
// The zero-effect Set is elided, so subscribers never see duplicates.
type Variable[T comparable] struct {
	mu     sync.Mutex
	value  T
	stream *Stream[T]
}

func NewVariable[T comparable](initial T) *Variable[T] {
	return &Variable[T]{value: initial, stream: NewStream[T]()}
}

func (v *Variable[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

func (v *Variable[T]) Set(next T) {
	v.mu.Lock()
	if v.value == next {
		v.mu.Unlock()
		return
	}
	v.value = next
	v.stream.Emit(next)
	v.mu.Unlock()
}

// Changes is edge-only: fires on transitions after the subscription.
func (v *Variable[T]) Changes() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stream.Subscribe()
}

// Value is current-value-first: the present value is delivered
// immediately, then every transition.
func (v *Variable[T]) Value() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stream.Subscribe(v.value)
}
