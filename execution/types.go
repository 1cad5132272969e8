/*
Package execution provides the core production tracking engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  production orders ("pedidos") composed of billable services ("serviços"),
  each worked on by operators through a start/pause/finish workflow with
  partial-quantity accounting.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order: A customer production order grouping one or more services
  - Service: A billable unit of work with a target quantity and lifecycle status
  - ExecutionRecord: One open/close interval during which an operator worked
    on a service, with the quantity completed in that interval
  - Operator: The acting user, with role tags that double as service-kind
    authorizations

DESIGN PRINCIPLES:
  1. Ledger truth: a service's status is a pure function of its execution
     records, never independent state
  2. Write-once closes: a closed record is never mutated again
  3. Precision: uses decimal.Decimal for unit prices to avoid floating-point
     errors in monetary totals
  4. Type safety: strong typing for IDs prevents mixing service/operator IDs

SEE ALSO:
  - machine.go: Start/Pause/Finish state transitions and status derivation
  - ledger.go: Append/query interface over execution records
  - store.go: Persistence interfaces
*/
package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrderID string
type ServiceID string
type RecordID string
type OperatorID string

// =============================================================================
// LIFECYCLE STATUS
// =============================================================================

// Status is the lifecycle state of a service. It is a cached projection of
// the ledger: every transition recomputes it from execution records inside
// the same transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
)

// AdminRole is the privileged role: it grants every service-kind
// authorization, cross-operator report visibility and monetary-field access.
const AdminRole = "admin"

// =============================================================================
// ORDER - Customer production order ("pedido")
// =============================================================================

type Order struct {
	ID        OrderID
	Number    string // external order number, unique
	Customer  string
	CreatedAt time.Time
}

// =============================================================================
// SERVICE - Billable unit of work ("serviço")
// =============================================================================

type Service struct {
	ID        ServiceID
	OrderID   OrderID
	CatalogID string // optional catalog entry reference; empty when ad hoc
	Kind      string // service kind tag, lowercased (e.g. "corte")
	Target    int    // target quantity, > 0
	UnitPrice decimal.Decimal
	Notes     string
	Status    Status
	CreatedAt time.Time
}

// =============================================================================
// EXECUTION RECORD - One work interval ("execução")
// =============================================================================

// ExecutionRecord is one open/close interval of work on a service.
// Quantity is nil while the record is open and on legacy rows that predate
// quantity accounting; reports fall back to the service target for those.
type ExecutionRecord struct {
	ID          RecordID
	ServiceID   ServiceID
	OperatorID  OperatorID
	StartedAt   time.Time
	EndedAt     *time.Time // nil while open
	PauseReason string
	Quantity    *int // set once on close; >= 0
}

// Open reports whether the record has not been closed yet.
func (r ExecutionRecord) Open() bool { return r.EndedAt == nil }

// ClosedQuantity returns the stored quantity of a closed record, or 0 when
// none was recorded.
func (r ExecutionRecord) ClosedQuantity() int {
	if r.Open() || r.Quantity == nil {
		return 0
	}
	return *r.Quantity
}

// =============================================================================
// OPERATOR - Acting user (external collaborator, persisted for reporting)
// =============================================================================

type Operator struct {
	ID    OperatorID
	Name  string
	Email string
	Roles []string // role names double as service-kind authorizations
}

// Actor is the authenticated identity a transition acts on behalf of.
type Actor struct {
	ID    OperatorID
	Roles []string
}

// IsAdmin reports whether the role set contains the privileged role.
func IsAdmin(roles []string) bool {
	for _, r := range roles {
		if r == AdminRole {
			return true
		}
	}
	return false
}
