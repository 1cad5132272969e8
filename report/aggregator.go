/*
aggregator.go - Ledger scan and per-operator rollup

PURPOSE:
  Scans execution records whose start timestamp falls inside the requested
  window and folds them into per-operator, per-service-kind summaries.

DETERMINISM:
  - Operators appear in first-seen order over the start-descending row
    stream (the operator of the most recent execution comes first)
  - Kinds within an operator are sorted ascending by name
  - Execution lists keep the start-descending row order

QUANTITY FALLBACK:
  Legacy records closed before quantity accounting existed carry no stored
  quantity. Those count as the service's full target quantity - a defined
  fallback, not a silent zero.

MONETARY PROJECTION:
  Aggregation always computes monetary totals with decimal arithmetic.
  Whether they appear in the output is decided afterwards by a single
  projection step keyed on the requester's roles, not by conditionals
  scattered through the loop.
*/
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/production-engine/execution"
)

// BuildReport scans the ledger window described by p and returns the
// per-operator rollup. A window with no matching records yields an empty
// operator list, not an error.
func BuildReport(ctx context.Context, store Store, p Params) (*Report, error) {
	filter := execution.RecordFilter{
		OperatorID: p.OperatorFilter,
		From:       p.PeriodStart,
		To:         p.PeriodEnd,
	}

	// Self-service visibility: a non-privileged requester is always pinned
	// to their own executions, whatever filter they supplied.
	privileged := execution.IsAdmin(p.RequesterRoles)
	if !privileged {
		self := p.RequesterID
		filter.OperatorID = &self
	}

	if filter.To == nil {
		now := time.Now()
		filter.To = &now
	}

	rows, err := store.ExecutionRows(ctx, filter)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Period:    p.Period,
		StartDate: p.PeriodStart,
		EndDate:   *filter.To,
		Operators: aggregate(rows),
	}

	if !privileged {
		redactMonetary(rep)
	}
	return rep, nil
}

// =============================================================================
// AGGREGATION
// =============================================================================

type operatorAccumulator struct {
	summary    OperatorSummary
	totalValue decimal.Decimal
	byKind     map[string]*KindSummary
}

func aggregate(rows []Row) []OperatorSummary {
	accs := make(map[execution.OperatorID]*operatorAccumulator)
	var order []execution.OperatorID

	for _, row := range rows {
		opID := row.Operator.ID
		acc, ok := accs[opID]
		if !ok {
			acc = &operatorAccumulator{
				summary: OperatorSummary{
					UserID: string(opID),
					Name:   row.Operator.Name,
					Roles:  row.Operator.Roles,
				},
				byKind: make(map[string]*KindSummary),
			}
			accs[opID] = acc
			order = append(order, opID)
		}

		quantity := quantityFor(row)
		value := row.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))

		acc.summary.TotalExecutions++
		acc.summary.TotalQuantity += quantity
		acc.totalValue = acc.totalValue.Add(value)

		kind, ok := acc.byKind[row.ServiceKind]
		if !ok {
			kind = &KindSummary{Kind: row.ServiceKind}
			acc.byKind[row.ServiceKind] = kind
		}
		kind.TotalExecutions++
		kind.TotalQuantity += quantity

		acc.summary.Executions = append(acc.summary.Executions, executionEntry(row, quantity, value))
	}

	operators := make([]OperatorSummary, 0, len(order))
	for _, opID := range order {
		acc := accs[opID]

		kinds := make([]KindSummary, 0, len(acc.byKind))
		for _, k := range acc.byKind {
			kinds = append(kinds, *k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i].Kind < kinds[j].Kind })
		acc.summary.ByKind = kinds

		total, _ := acc.totalValue.Float64()
		acc.summary.TotalValue = &total

		operators = append(operators, acc.summary)
	}
	return operators
}

// quantityFor returns the record's stored quantity, falling back to the
// service target for legacy rows that lack one.
func quantityFor(row Row) int {
	if row.Record.Quantity == nil {
		return row.Target
	}
	return *row.Record.Quantity
}

func executionEntry(row Row, quantity int, value decimal.Decimal) ExecutionEntry {
	price, _ := row.UnitPrice.Float64()
	total, _ := value.Float64()
	return ExecutionEntry{
		ID:          string(row.Record.ID),
		ServiceID:   string(row.Record.ServiceID),
		OrderNumber: row.OrderNumber,
		OrderID:     string(row.OrderID),
		Customer:    row.Customer,
		Kind:        row.ServiceKind,
		Quantity:    quantity,
		UnitPrice:   &price,
		TotalValue:  &total,
		StartedAt:   row.Record.StartedAt,
		EndedAt:     row.Record.EndedAt,
		PauseReason: row.Record.PauseReason,
		Notes:       row.Notes,
	}
}

// =============================================================================
// MONETARY PROJECTION
// =============================================================================

// redactMonetary strips every monetary field from the report in place.
// Non-privileged requesters receive the same shape with these fields absent.
func redactMonetary(rep *Report) {
	for i := range rep.Operators {
		op := &rep.Operators[i]
		op.TotalValue = nil
		for j := range op.Executions {
			op.Executions[j].UnitPrice = nil
			op.Executions[j].TotalValue = nil
		}
	}
}
