package execution_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/production-engine/execution"
	memstore "github.com/warp/production-engine/execution/store"
)

func TestLedgerSumExcludesGivenRecord(t *testing.T) {
	// GIVEN two closed records and one open record
	store := memstore.NewMemory()
	store.PutService(execution.Service{ID: "svc-1", Kind: "corte", Target: 100})
	ledger := execution.NewLedger(store)
	ctx := context.Background()

	r1, err := ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now().Add(-3*time.Hour))
	require.NoError(t, err)
	require.NoError(t, ledger.CloseRecord(ctx, r1.ID, time.Now().Add(-2*time.Hour), 30, ""))

	r2, err := ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, ledger.CloseRecord(ctx, r2.ID, time.Now(), 20, ""))

	_, err = ledger.OpenRecord(ctx, "svc-1", "op-b", time.Now())
	require.NoError(t, err)

	// THEN the full sum counts only closed records
	total, err := ledger.SumClosedQuantity(ctx, "svc-1", "")
	require.NoError(t, err)
	assert.Equal(t, 50, total)

	// AND excluding one record removes its quantity
	total, err = ledger.SumClosedQuantity(ctx, "svc-1", r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}

func TestLedgerRemainingClampsAtZero(t *testing.T) {
	store := memstore.NewMemory()
	svc := execution.Service{ID: "svc-1", Kind: "corte", Target: 10}
	store.PutService(svc)
	ledger := execution.NewLedger(store)
	ctx := context.Background()

	// Legacy data can overshoot the target; remaining never goes negative.
	r1, err := ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now())
	require.NoError(t, err)
	require.NoError(t, ledger.CloseRecord(ctx, r1.ID, time.Now(), 15, ""))

	remaining, err := ledger.Remaining(ctx, &svc, "")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestLedgerCloseIsWriteOnce(t *testing.T) {
	store := memstore.NewMemory()
	store.PutService(execution.Service{ID: "svc-1", Kind: "corte", Target: 10})
	ledger := execution.NewLedger(store)
	ctx := context.Background()

	rec, err := ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now())
	require.NoError(t, err)
	require.NoError(t, ledger.CloseRecord(ctx, rec.ID, time.Now(), 5, ""))

	err = ledger.CloseRecord(ctx, rec.ID, time.Now(), 7, "")
	assert.ErrorIs(t, err, execution.ErrNoOpenRecord)
}

func TestLedgerRejectsSecondOpenRecordPerOperator(t *testing.T) {
	store := memstore.NewMemory()
	store.PutService(execution.Service{ID: "svc-1", Kind: "corte", Target: 10})
	ledger := execution.NewLedger(store)
	ctx := context.Background()

	_, err := ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now())
	require.NoError(t, err)

	_, err = ledger.OpenRecord(ctx, "svc-1", "op-a", time.Now())
	assert.ErrorIs(t, err, execution.ErrDuplicateOpenRecord)

	// A different operator may still open one.
	_, err = ledger.OpenRecord(ctx, "svc-1", "op-b", time.Now())
	assert.NoError(t, err)
}

func TestRecordFilterMatches(t *testing.T) {
	now := time.Now()
	opA := execution.OperatorID("op-a")
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)

	rec := execution.ExecutionRecord{OperatorID: "op-a", StartedAt: now}

	assert.True(t, execution.RecordFilter{}.Matches(rec))
	assert.True(t, execution.RecordFilter{OperatorID: &opA, From: &from, To: &to}.Matches(rec))

	opB := execution.OperatorID("op-b")
	assert.False(t, execution.RecordFilter{OperatorID: &opB}.Matches(rec))

	early := now.Add(-2 * time.Hour)
	assert.False(t, execution.RecordFilter{To: &early}.Matches(rec))
	late := now.Add(2 * time.Hour)
	assert.False(t, execution.RecordFilter{From: &late}.Matches(rec))
}
