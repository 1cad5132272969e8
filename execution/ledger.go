/*
ledger.go - Append/query façade over execution records

PURPOSE:
  The ledger is the single source of truth for "how much has been
  produced". Each entry is one open/close interval; quantities live only on
  closed entries. Status, remaining quantity and every report are derived by
  reading it back - there is no authoritative counter anywhere else.

CRITICAL INVARIANTS:
  1. At most one open record per (service, operator) at any time
  2. A close is write-once: no record is mutated after its close
  3. No record is ever deleted
  4. sum(closed quantities) never exceeds the service target

WHY A LEDGER?
  - Audit trail: every produced unit is traceable to an operator and interval
  - Correctness: "remaining" is always computed from recorded closes, so a
    concurrent close by another operator is visible to the next caller
  - Reporting: per-operator/per-kind rollups replay the same records

SEE ALSO:
  - store.go: Low-level persistence interface
  - machine.go: Transitions enforcing the invariants above
*/
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger provides the append/query operations of the execution log.
// All writes delegate to the underlying Store; when used inside
// TxStore.WithTx the Store argument is the transactional view.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// OpenRecord appends a new open entry for the operator on the service.
func (l *Ledger) OpenRecord(ctx context.Context, serviceID ServiceID, operatorID OperatorID, at time.Time) (ExecutionRecord, error) {
	rec := ExecutionRecord{
		ID:         RecordID(uuid.NewString()),
		ServiceID:  serviceID,
		OperatorID: operatorID,
		StartedAt:  at,
	}
	if err := l.store.OpenRecord(ctx, rec); err != nil {
		return ExecutionRecord{}, err
	}
	return rec, nil
}

// CloseRecord closes an open entry with the produced quantity and optional
// pause reason. Write-once; fails with ErrNoOpenRecord otherwise.
func (l *Ledger) CloseRecord(ctx context.Context, id RecordID, at time.Time, quantity int, reason string) error {
	return l.store.CloseRecord(ctx, id, at, quantity, reason)
}

// FindOpenRecord returns the operator's open entry on the service, or nil.
func (l *Ledger) FindOpenRecord(ctx context.Context, serviceID ServiceID, operatorID OperatorID) (*ExecutionRecord, error) {
	return l.store.FindOpenRecord(ctx, serviceID, operatorID)
}

// SumClosedQuantity totals closed quantities for a service, excluding the
// record identified by exclude ("" counts all).
func (l *Ledger) SumClosedQuantity(ctx context.Context, serviceID ServiceID, exclude RecordID) (int, error) {
	return l.store.SumClosedQuantity(ctx, serviceID, exclude)
}

// Records returns all entries of a service, newest start first.
func (l *Ledger) Records(ctx context.Context, serviceID ServiceID) ([]ExecutionRecord, error) {
	return l.store.ListRecords(ctx, serviceID)
}

// Remaining computes target minus everything already accounted for in closed
// records, never below zero. Pass the caller's own open record id as exclude
// while closing it.
func (l *Ledger) Remaining(ctx context.Context, svc *Service, exclude RecordID) (int, error) {
	total, err := l.store.SumClosedQuantity(ctx, svc.ID, exclude)
	if err != nil {
		return 0, err
	}
	remaining := svc.Target - total
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
