/*
machine.go - Service lifecycle state machine

PURPOSE:
  Implements the three transitions of a service's execution workflow:

    Start   opens an execution record for the acting operator
    Pause   closes the actor's open record with a produced quantity and
            an optional reason
    Finish  closes the actor's open record with a produced quantity

  Each transition runs inside a single storage transaction: authorize,
  validate against current ledger state, write, recompute status. A failed
  transition leaves the ledger unchanged.

STATUS DERIVATION:
  The lifecycle status is a pure function of the ledger:

    pending      no records exist
    finished     sum(closed quantities) reached the target (terminal)
    in_progress  at least one record is open
    paused       only closed records, with quantity remaining

  The persisted status column is a cached projection of this function,
  recomputed inside every transition's transaction. Never trust it as the
  authority; the machine always re-derives from records before validating.

QUANTITY ACCOUNTING:
  remaining = target - sum(other closed records' quantities). The actor's
  own open record is excluded from the sum while it is being closed. A
  zero-quantity close is legal: it closes the record and leaves remaining
  unchanged (an operator stepped away without completing any units).

CONCURRENCY:
  Two operators closing their own open records on the same service race
  legally: the remaining check reads the ledger total at the instant of the
  call inside the transaction, so the second close sees the first one's
  already-subtracted quantity.

SEE ALSO:
  - permission.go: Role gate applied before every transition
  - ledger.go: Record append/query operations
*/
package execution

import (
	"context"
	"fmt"
	"time"
)

// Machine executes service lifecycle transitions against a transactional
// store. It is stateless; openness and status are re-derived from the
// ledger on each call.
type Machine struct {
	store TxStore
	now   func() time.Time
}

func NewMachine(store TxStore) *Machine {
	return &Machine{store: store, now: time.Now}
}

// SetClock overrides the machine's clock. Tests only.
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

// DeriveStatus computes the lifecycle status from ledger truth.
// The finished check comes first so a service never reopens once the
// target is reached, regardless of stray open records.
func DeriveStatus(records []ExecutionRecord, target int) Status {
	if len(records) == 0 {
		return StatusPending
	}
	closed := 0
	open := false
	for _, r := range records {
		if r.Open() {
			open = true
			continue
		}
		closed += r.ClosedQuantity()
	}
	if closed >= target {
		return StatusFinished
	}
	if open {
		return StatusInProgress
	}
	return StatusPaused
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Start opens an execution record for the actor on the service.
//
// Preconditions: service exists; actor's roles pass the permission gate for
// the service kind; the actor has no open record on this service; derived
// status is neither finished nor in_progress.
func (m *Machine) Start(ctx context.Context, serviceID ServiceID, actor Actor) (*Service, error) {
	var result *Service
	err := m.store.WithTx(ctx, func(s Store) error {
		svc, records, err := m.loadForTransition(ctx, s, serviceID, actor)
		if err != nil {
			return err
		}

		// The actor's own open record is checked before the status gate:
		// a repeated Start by the same operator is a duplicate, not a
		// collision with someone else's work.
		ledger := NewLedger(s)
		existing, err := ledger.FindOpenRecord(ctx, serviceID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateOpenRecord
		}

		switch DeriveStatus(records, svc.Target) {
		case StatusFinished:
			return ErrAlreadyFinished
		case StatusInProgress:
			return ErrAlreadyInProgress
		}

		if _, err := ledger.OpenRecord(ctx, serviceID, actor.ID, m.now()); err != nil {
			return err
		}

		return m.recomputeStatus(ctx, s, svc, &result)
	})
	return result, err
}

// Pause closes the actor's open record with the produced quantity and an
// optional reason.
//
// Preconditions: derived status is in_progress; the actor has an open
// record; 0 <= quantity <= remaining.
func (m *Machine) Pause(ctx context.Context, serviceID ServiceID, actor Actor, quantity int, reason string) (*Service, error) {
	var result *Service
	err := m.store.WithTx(ctx, func(s Store) error {
		svc, records, err := m.loadForTransition(ctx, s, serviceID, actor)
		if err != nil {
			return err
		}

		if DeriveStatus(records, svc.Target) != StatusInProgress {
			return ErrNotInProgress
		}

		if err := m.closeOwnRecord(ctx, s, svc, actor, quantity, reason); err != nil {
			return err
		}

		return m.recomputeStatus(ctx, s, svc, &result)
	})
	return result, err
}

// Finish closes the actor's open record with the produced quantity. When
// the resulting remaining quantity is zero the service becomes finished;
// otherwise it reverts to paused awaiting a future Start by any eligible
// operator.
//
// Preconditions: derived status is not pending; the actor has an open
// record; 0 <= quantity <= remaining.
func (m *Machine) Finish(ctx context.Context, serviceID ServiceID, actor Actor, quantity int) (*Service, error) {
	var result *Service
	err := m.store.WithTx(ctx, func(s Store) error {
		svc, records, err := m.loadForTransition(ctx, s, serviceID, actor)
		if err != nil {
			return err
		}

		status := DeriveStatus(records, svc.Target)
		if status == StatusPending {
			return ErrServiceNotStarted
		}
		if status == StatusFinished {
			return ErrAlreadyFinished
		}

		if err := m.closeOwnRecord(ctx, s, svc, actor, quantity, ""); err != nil {
			return err
		}

		return m.recomputeStatus(ctx, s, svc, &result)
	})
	return result, err
}

// =============================================================================
// INTERNALS
// =============================================================================

// loadForTransition fetches the service, authorizes the actor and loads the
// ledger records every transition validates against.
func (m *Machine) loadForTransition(ctx context.Context, s Store, serviceID ServiceID, actor Actor) (*Service, []ExecutionRecord, error) {
	svc, err := s.GetService(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if svc == nil {
		return nil, nil, ErrServiceNotFound
	}

	if !CanOperate(actor.Roles, svc.Kind) {
		return nil, nil, ErrForbidden
	}

	records, err := s.ListRecords(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	return svc, records, nil
}

// closeOwnRecord validates the produced quantity against what remains and
// closes the actor's open record.
func (m *Machine) closeOwnRecord(ctx context.Context, s Store, svc *Service, actor Actor, quantity int, reason string) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}

	ledger := NewLedger(s)
	open, err := ledger.FindOpenRecord(ctx, svc.ID, actor.ID)
	if err != nil {
		return err
	}
	if open == nil {
		return ErrNoOpenRecord
	}

	remaining, err := ledger.Remaining(ctx, svc, open.ID)
	if err != nil {
		return err
	}
	if quantity > remaining {
		return &QuantityError{ServiceID: svc.ID, Requested: quantity, Remaining: remaining}
	}

	return ledger.CloseRecord(ctx, open.ID, m.now(), quantity, reason)
}

// recomputeStatus re-derives the status from ledger truth, persists the
// projection and captures the updated service for the caller.
func (m *Machine) recomputeStatus(ctx context.Context, s Store, svc *Service, out **Service) error {
	records, err := s.ListRecords(ctx, svc.ID)
	if err != nil {
		return err
	}
	status := DeriveStatus(records, svc.Target)
	if err := s.SetServiceStatus(ctx, svc.ID, status); err != nil {
		return err
	}

	updated := *svc
	updated.Status = status
	*out = &updated
	return nil
}
