package promptsync

import "errors"

var (
	// ErrNotConfigured marks a precondition failure: the active remote
	// provider is missing credentials or resource identifiers. It aborts
	// the current sync cycle only, never the process.
	ErrNotConfigured = errors.New("remote provider not configured")

	// ErrRemoteNotFound signals an absent remote resource. The sync
	// engine treats it as "remote is empty", not as a failure.
	ErrRemoteNotFound = errors.New("remote resource not found")

	// ErrNotFound signals a record id that is not present locally.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists signals a duplicate category name.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation rejects a mutation before anything is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrSyncBusy is returned when a sync cycle is requested while
	// another one is still in flight.
	ErrSyncBusy = errors.New("sync already in progress")

	ErrInvalidInput = errors.New("invalid input")
)
