// Package fetch populates independent page sections from the expense API.
//
// Each section owns a Slot. Tasks bound to slots are run either
// independently, where one failure leaves sibling sections untouched, or
// jointly, where one failure fails the whole batch. Results that arrive
// after the caller's context is cancelled are discarded.
package fetch

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of a slot.
type Snapshot[T any] struct {
	Data      T
	Err       error
	Loaded    bool
	UpdatedAt time.Time
}

// Slot holds the last successfully fetched value of one resource and the
// error of the most recent attempt, if it failed.
type Slot[T any] struct {
	mu   sync.RWMutex
	snap Snapshot[T]
	now  func() time.Time
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{now: time.Now}
}

// Set stores fresh data and clears any previous error.
func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot[T]{Data: v, Loaded: true, UpdatedAt: s.clock()}
}

// Fail records err while keeping the last good data.
func (s *Slot[T]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Err = err
}

// Snapshot returns a copy of the current state.
func (s *Slot[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Slot[T]) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
