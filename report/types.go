/*
Package report builds per-operator, per-service-kind rollups from the
execution ledger, with role-gated monetary fields.

KEY CONCEPTS IN THIS FILE (types.go):
  - Params: time window, operator filter and requester identity/roles
  - Row: one ledger entry joined with its operator, service and order
  - Report / OperatorSummary / KindSummary / ExecutionEntry: the output
    shape, serialized with the field names clients depend on

VISIBILITY RULES:
  - A non-privileged requester only ever sees their own executions: any
    supplied operator filter is silently replaced by their identity
  - Monetary fields (precoUnitario, valorTotal, totalValor) are populated
    only when the requester's roles contain the privileged role; everyone
    else receives the same shape with those fields absent

SEE ALSO:
  - aggregator.go: Grouping, ordering and the monetary projection step
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/production-engine/execution"
)

// =============================================================================
// INPUT
// =============================================================================

// Params selects the ledger window and carries the requester's identity.
// Nil period bounds are unbounded past / now respectively. Period is the
// caller-facing preset name, echoed back in the report.
type Params struct {
	Period         string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	OperatorFilter *execution.OperatorID
	RequesterID    execution.OperatorID
	RequesterRoles []string
}

// Row is one execution record joined with the collaborators a report needs.
// Storage implementations return rows ordered by start time descending.
type Row struct {
	Record      execution.ExecutionRecord
	Operator    execution.Operator
	ServiceKind string
	Target      int
	UnitPrice   decimal.Decimal
	Notes       string
	OrderID     execution.OrderID
	OrderNumber string
	Customer    string
}

// Store is the read side the aggregator scans.
type Store interface {
	ExecutionRows(ctx context.Context, filter execution.RecordFilter) ([]Row, error)
}

// =============================================================================
// OUTPUT
// =============================================================================

type Report struct {
	Period    string            `json:"period"`
	StartDate *time.Time        `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Operators []OperatorSummary `json:"operadores"`
}

type OperatorSummary struct {
	UserID          string           `json:"userId"`
	Name            string           `json:"nome"`
	Roles           []string         `json:"funcoes"`
	TotalExecutions int              `json:"totalServicos"`
	TotalQuantity   int              `json:"totalQuantidade"`
	TotalValue      *float64         `json:"totalValor,omitempty"`
	ByKind          []KindSummary    `json:"porServico"`
	Executions      []ExecutionEntry `json:"execucoes"`
}

type KindSummary struct {
	Kind            string `json:"tipoServico"`
	TotalExecutions int    `json:"totalServicos"`
	TotalQuantity   int    `json:"totalQuantidade"`
}

type ExecutionEntry struct {
	ID          string     `json:"id"`
	ServiceID   string     `json:"servicoId"`
	OrderNumber string     `json:"pedidoNumero"`
	OrderID     string     `json:"pedidoId"`
	Customer    string     `json:"cliente"`
	Kind        string     `json:"tipoServico"`
	Quantity    int        `json:"quantidade"`
	UnitPrice   *float64   `json:"precoUnitario,omitempty"`
	TotalValue  *float64   `json:"valorTotal,omitempty"`
	StartedAt   time.Time  `json:"horaInicio"`
	EndedAt     *time.Time `json:"horaFim"`
	PauseReason string     `json:"motivoPausa,omitempty"`
	Notes       string     `json:"observacoes,omitempty"`
}
