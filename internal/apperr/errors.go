// Package apperr defines the error taxonomy shared across the store.
package apperr

import "errors"

var (
	// ErrInvalidName means a document name failed the hierarchical-key
	// grammar; it is reported before any side effect occurs.
	ErrInvalidName = errors.New("invalid name")
	// ErrConflict means a create targeted a name that already exists.
	ErrConflict = errors.New("already exists")
	// ErrNotFound means an operation targeted a missing name.
	ErrNotFound = errors.New("not found")
	// ErrHistoryUnavailable means the embedded history repository is
	// missing or corrupt, or a history commit failed.
	ErrHistoryUnavailable = errors.New("history unavailable")
	// ErrStorageUnavailable means the metadata index is unreachable or corrupt.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Exit codes for the command surface, one per error kind.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitInvalidName        = 2
	ExitConflict           = 3
	ExitNotFound           = 4
	ExitHistoryUnavailable = 5
	ExitStorageUnavailable = 6
)

// ExitCode maps an error to its command-surface exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidName):
		return ExitInvalidName
	case errors.Is(err, ErrConflict):
		return ExitConflict
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrHistoryUnavailable):
		return ExitHistoryUnavailable
	case errors.Is(err, ErrStorageUnavailable):
		return ExitStorageUnavailable
	default:
		return ExitFailure
	}
}
