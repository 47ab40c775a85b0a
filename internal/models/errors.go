package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repository, service, and use-case layers.
// Each corresponds to one of the error kinds in spec.md §7; components
// check these with errors.Is rather than type-switching on concrete types.
var (
	// ErrNotFound is returned when a lookup by id/key finds no row.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a uniqueness violation the caller should
	// treat as idempotent (e.g. re-creating an existing mapping).
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is a business-rule violation raised at a use-case
	// boundary (spec.md §7 kind 4), e.g. a track entering a workflow
	// without an id, or an unknown service name.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTransientRemote wraps a retryable remote failure (timeout, 5xx,
	// rate limit) surfaced after the batch executor's retry budget runs
	// out (spec.md §7 kind 1).
	ErrTransientRemote = errors.New("transient remote failure")
	// ErrPermanentRemote wraps a non-retryable remote failure (spec.md §7
	// kind 2).
	ErrPermanentRemote = errors.New("permanent remote failure")
	// ErrMalformedInput marks a skippable bad record (spec.md §7 kind 3).
	ErrMalformedInput = errors.New("malformed input")
	// ErrStorageFatal marks a failure that aborts the current use-case
	// and rolls back its transaction (spec.md §7 kind 5).
	ErrStorageFatal = errors.New("storage fatal error")
	// ErrCancelled marks a use-case that returned partial results because
	// its context was cancelled (spec.md §7 kind 6).
	ErrCancelled = errors.New("operation cancelled")
	// ErrProviderUnavailable is returned by a matching provider that has
	// no live client configured (e.g. the MusicBrainz stub, see
	// SPEC_FULL.md S1).
	ErrProviderUnavailable = errors.New("matching provider unavailable")
)

// OperationResult is the uniform result every use-case returns across the
// use-case boundary (spec.md §7): components never raise past this point.
type OperationResult struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Imported  int      `json:"imported"`
	Exported  int      `json:"exported"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
	BatchID   string   `json:"batchId,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// AddError appends a formatted error message and leaves Success as it is
// (callers decide whether per-item errors are fatal to the overall
// operation and set Success themselves).
func (r *OperationResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
