/*
errors.go - Centralized error types for the execution engine

PURPOSE:
  All business-rule errors in one place for consistency and discoverability.
  Every error here is deterministic: retrying the same call yields the same
  failure, so nothing in this package retries internally. A failed operation
  always leaves the ledger unchanged (transactional rollback).

ERROR CATEGORIES:
  1. Not-found errors      - referenced order/service absent
  2. Permission errors     - the role gate rejected the actor
  3. Invalid-state errors  - transition attempted from a forbidden status
  4. Ledger errors         - open-record bookkeeping violations
  5. Quantity errors       - produced quantity exceeds what remains
  6. Storage errors        - transient backend failures (caller may retry)

USAGE:
  HTTP boundaries map these with the helpers:

    if execution.IsNotFound(err) { ... 404 ... }
    if execution.IsClientError(err) { ... 400/403/409 ... }
*/
package execution

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOrderNotFound is returned when a referenced order doesn't exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrServiceNotFound is returned when a referenced service doesn't exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrForbidden is returned when the permission gate rejects the actor
	// for the service's kind.
	ErrForbidden = errors.New("operator not authorized for this service kind")

	// ErrAlreadyFinished is returned when starting a finished service.
	// Finishing is terminal; nothing un-finishes a service.
	ErrAlreadyFinished = errors.New("service already finished")

	// ErrAlreadyInProgress is returned when starting a service that already
	// has an open execution record.
	ErrAlreadyInProgress = errors.New("service already in progress")

	// ErrNotInProgress is returned when pausing a service that is not
	// currently in progress.
	ErrNotInProgress = errors.New("service not in progress")

	// ErrServiceNotStarted is returned when finishing a service that has
	// never been started.
	ErrServiceNotStarted = errors.New("service not started")

	// ErrDuplicateOpenRecord is returned when an operator opens a second
	// record on a service before closing the first. This is the core
	// concurrency invariant.
	ErrDuplicateOpenRecord = errors.New("operator already has an open execution on this service")

	// ErrNoOpenRecord is returned when closing a record the actor never
	// opened (or already closed). Closes are write-once.
	ErrNoOpenRecord = errors.New("no open execution for operator on this service")

	// ErrQuantityExceedsRemaining is returned when a close reports more
	// produced quantity than the service has left.
	ErrQuantityExceedsRemaining = errors.New("quantity exceeds remaining")

	// ErrValidation is returned for malformed quantity/reason input.
	ErrValidation = errors.New("invalid input")

	// ErrOrderHasExecutions is returned when deleting an order whose services
	// already have ledger entries. Recorded production is immutable.
	ErrOrderHasExecutions = errors.New("order has execution records")

	// ErrStorageUnavailable wraps transient storage failures. Unlike every
	// other error here the caller may retry with its own backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// QuantityError details a remaining-quantity violation.
type QuantityError struct {
	ServiceID ServiceID
	Requested int
	Remaining int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("quantity %d exceeds remaining %d for service %s",
		e.Requested, e.Remaining, e.ServiceID)
}

func (e *QuantityError) Unwrap() error {
	return ErrQuantityExceedsRemaining
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing order or service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrServiceNotFound)
}

// IsInvalidState reports whether a transition was attempted from a lifecycle
// state that forbids it.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrAlreadyFinished) ||
		errors.Is(err, ErrAlreadyInProgress) ||
		errors.Is(err, ErrNotInProgress) ||
		errors.Is(err, ErrServiceNotStarted)
}

// IsClientError reports whether the error is a deterministic business-rule
// violation caused by the caller's input, as opposed to a storage fault.
func IsClientError(err error) bool {
	return IsInvalidState(err) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrDuplicateOpenRecord) ||
		errors.Is(err, ErrNoOpenRecord) ||
		errors.Is(err, ErrQuantityExceedsRemaining) ||
		errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
