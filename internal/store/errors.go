package store

import "errors"

var (
	// ErrNotFound is returned when a topic has no persisted file.
	ErrNotFound = errors.New("not found")
	// ErrPersistence wraps disk failures during a write. Writes are
	// atomic: when this is returned, nothing was replaced.
	ErrPersistence = errors.New("persistence failure")
)
