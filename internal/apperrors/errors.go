package apperrors

import "errors"

// Sentinel errors shared between the sync engine, the remote client and the
// API handlers. The async propagation path logs these and drops them; only
// the synchronous local-write path surfaces errors to callers.
var (
	// ErrEmptyTitle rejects a task title that is empty or whitespace.
	ErrEmptyTitle = errors.New("title must not be empty")

	// ErrNotAuthenticated means no usable bearer credential was available.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden means the caller's owner identity does not match the
	// stored record's owner.
	ErrForbidden = errors.New("forbidden: owner mismatch")

	// ErrNotFound means the remote record does not exist.
	ErrNotFound = errors.New("task not found")
)
