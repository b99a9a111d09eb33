package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict indicates a record changed or disappeared while a
	// mutation was in flight; callers should retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict, retry the operation")
)
