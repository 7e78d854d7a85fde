// Package views shapes aggregates into chart-, table- and card-ready values
// for the dashboard pages.
package views

import (
	"time"

	"spendsight/internal/api"
	"spendsight/internal/fetch"
)

// Section is one independently loaded part of a page. Error holds banner
// text for the last failed refresh; Data may still hold older results.
type Section[T any] struct {
	Data      T          `json:"data"`
	Error     string     `json:"error,omitempty"`
	Loading   bool       `json:"loading"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// FromSnapshot builds a section from a slot snapshot. build only runs once
// data has been loaded.
func FromSnapshot[S, T any](snap fetch.Snapshot[S], build func(S) T) Section[T] {
	sec := Section[T]{
		Error:   api.Message(snap.Err),
		Loading: !snap.Loaded && snap.Err == nil,
	}
	if snap.Loaded {
		sec.Data = build(snap.Data)
		at := snap.UpdatedAt
		sec.UpdatedAt = &at
	}
	return sec
}

// Combine builds a section from two snapshots that must both be loaded. The
// first error wins.
func Combine[A, B, T any](a fetch.Snapshot[A], b fetch.Snapshot[B], build func(A, B) T) Section[T] {
	err := a.Err
	if err == nil {
		err = b.Err
	}
	sec := Section[T]{
		Error:   api.Message(err),
		Loading: (!a.Loaded || !b.Loaded) && err == nil,
	}
	if a.Loaded && b.Loaded {
		sec.Data = build(a.Data, b.Data)
		at := a.UpdatedAt
		if b.UpdatedAt.Before(at) {
			at = b.UpdatedAt
		}
		sec.UpdatedAt = &at
	}
	return sec
}
