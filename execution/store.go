/*
store.go - Persistence interfaces for services and execution records

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

WRITE-ONCE CONTRACT:
  Execution records are opened once and closed once:
  - OpenRecord(): the only insert
  - CloseRecord(): the only update, valid solely on a currently open record
  No other mutation of a record exists. Closed records are immutable.

TRANSACTION BOUNDARY:
  TxStore.WithTx executes a function within a single storage transaction.
  Every state-machine transition runs inside one: "read remaining, validate,
  close record, recompute status" must be atomic or two concurrent closes on
  different open records of the same service could each compute "remaining"
  against a stale total.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - execution/store: in-memory store for tests

SEE ALSO:
  - ledger.go: Higher-level ledger façade using Store
  - machine.go: Transitions built on TxStore
*/
package execution

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Service and execution record persistence
// =============================================================================

// Store handles persistence of services and their execution records.
type Store interface {
	// GetService returns a service by id, or nil when absent.
	GetService(ctx context.Context, id ServiceID) (*Service, error)

	// SetServiceStatus persists the derived lifecycle status. The status
	// column is a cached projection; callers must have recomputed it from
	// ledger truth inside the same transaction.
	SetServiceStatus(ctx context.Context, id ServiceID, status Status) error

	// OpenRecord inserts a new open execution record (EndedAt nil).
	// Fails with ErrDuplicateOpenRecord when the operator already has an
	// open record on the service.
	OpenRecord(ctx context.Context, rec ExecutionRecord) error

	// CloseRecord closes an open record, storing end time, produced
	// quantity and optional pause reason. Write-once: fails with
	// ErrNoOpenRecord when the record is absent or already closed.
	CloseRecord(ctx context.Context, id RecordID, endedAt time.Time, quantity int, reason string) error

	// FindOpenRecord returns the operator's open record on a service, or
	// nil when none exists.
	FindOpenRecord(ctx context.Context, serviceID ServiceID, operatorID OperatorID) (*ExecutionRecord, error)

	// ListRecords returns all execution records of a service, ordered by
	// start time descending.
	ListRecords(ctx context.Context, serviceID ServiceID) ([]ExecutionRecord, error)

	// SumClosedQuantity sums the stored quantities of the service's closed
	// records, skipping the record identified by exclude (pass "" to count
	// all). The exclusion keeps "remaining" correct while the caller's own
	// record is still nominally open mid-transaction.
	SumClosedQuantity(ctx context.Context, serviceID ServiceID, exclude RecordID) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RECORD FILTER - Cross-service ledger queries (reporting)
// =============================================================================

// RecordFilter selects execution records by operator and start-time window.
// Nil fields are unbounded.
type RecordFilter struct {
	OperatorID *OperatorID
	From       *time.Time
	To         *time.Time
}

// Matches reports whether a record falls inside the filter.
func (f RecordFilter) Matches(rec ExecutionRecord) bool {
	if f.OperatorID != nil && rec.OperatorID != *f.OperatorID {
		return false
	}
	if f.From != nil && rec.StartedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && rec.StartedAt.After(*f.To) {
		return false
	}
	return true
}
