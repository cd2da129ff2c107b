package coop

import "sync/atomic"

// Shared is a reference-counted shared-ownership wrapper. Retain adds an
// owner, Release drops one, and when the last owner releases, the optional
// finalizer runs exactly once. Reading needs no lock; mutation of shared
// state belongs behind a [Lock].
type Shared[T any] struct {
	refs     atomic.Int64
	value    T
	finalize func(T)
}

// NewShared creates a shared value with one owner. finalize may be nil.
func NewShared[T any](v T, finalize func(T)) *Shared[T] {
	s := &Shared[T]{value: v, finalize: finalize}
	s.refs.Store(1)
	return s
}

// Retain adds an owner and returns s for chaining. Retaining a value whose
// last owner already released it is a bug.
func (s *Shared[T]) Retain() *Shared[T] {
	if s.refs.Add(1) <= 1 {
		panic("coop: retain of a released value")
	}
	return s
}

// Release drops one owner. When the count reaches zero the finalizer runs
// on the calling goroutine.
func (s *Shared[T]) Release() {
	n := s.refs.Add(-1)
	if n < 0 {
		panic("coop: release of a released value")
	}
	if n == 0 && s.finalize != nil {
		s.finalize(s.value)
	}
}

// Get returns the value. Valid only while the caller holds a reference.
func (s *Shared[T]) Get() T {
	if s.refs.Load() <= 0 {
		panic("coop: get of a released value")
	}
	return s.value
}

// Refs reports the current number of owners.
func (s *Shared[T]) Refs() int64 { return s.refs.Load() }
