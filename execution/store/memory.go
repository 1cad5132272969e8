// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/production-engine/execution"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	services map[execution.ServiceID]execution.Service
	records  map[execution.ServiceID][]execution.ExecutionRecord
}

func NewMemory() *Memory {
	return &Memory{
		services: make(map[execution.ServiceID]execution.Service),
		records:  make(map[execution.ServiceID][]execution.ExecutionRecord),
	}
}

// PutService seeds a service. Test setup helper, not part of the Store
// contract.
func (m *Memory) PutService(svc execution.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc.Status == "" {
		svc.Status = execution.StatusPending
	}
	m.services[svc.ID] = svc
}

func (m *Memory) GetService(_ context.Context, id execution.ServiceID) (*execution.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (m *Memory) SetServiceStatus(_ context.Context, id execution.ServiceID, status execution.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setServiceStatusLocked(id, status)
}

func (m *Memory) setServiceStatusLocked(id execution.ServiceID, status execution.Status) error {
	svc, ok := m.services[id]
	if !ok {
		return execution.ErrServiceNotFound
	}
	svc.Status = status
	m.services[id] = svc
	return nil
}

func (m *Memory) OpenRecord(_ context.Context, rec execution.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openRecordLocked(rec)
}

func (m *Memory) openRecordLocked(rec execution.ExecutionRecord) error {
	for _, r := range m.records[rec.ServiceID] {
		if r.OperatorID == rec.OperatorID && r.Open() {
			return execution.ErrDuplicateOpenRecord
		}
	}
	m.records[rec.ServiceID] = append(m.records[rec.ServiceID], rec)
	return nil
}

func (m *Memory) CloseRecord(_ context.Context, id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeRecordLocked(id, endedAt, quantity, reason)
}

func (m *Memory) closeRecordLocked(id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	for serviceID, recs := range m.records {
		for i, r := range recs {
			if r.ID != id {
				continue
			}
			if !r.Open() {
				return execution.ErrNoOpenRecord
			}
			q := quantity
			end := endedAt
			r.EndedAt = &end
			r.Quantity = &q
			r.PauseReason = reason
			m.records[serviceID][i] = r
			return nil
		}
	}
	return execution.ErrNoOpenRecord
}

func (m *Memory) FindOpenRecord(_ context.Context, serviceID execution.ServiceID, operatorID execution.OperatorID) (*execution.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records[serviceID] {
		if r.OperatorID == operatorID && r.Open() {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListRecords(_ context.Context, serviceID execution.ServiceID) ([]execution.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]execution.ExecutionRecord, len(m.records[serviceID]))
	copy(result, m.records[serviceID])
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

func (m *Memory) SumClosedQuantity(_ context.Context, serviceID execution.ServiceID, exclude execution.RecordID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, r := range m.records[serviceID] {
		if r.ID == exclude || r.Open() {
			continue
		}
		total += r.ClosedQuantity()
	}
	return total, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(execution.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	svcCopy := make(map[execution.ServiceID]execution.Service, len(tm.services))
	for k, v := range tm.services {
		svcCopy[k] = v
	}
	recCopy := make(map[execution.ServiceID][]execution.ExecutionRecord, len(tm.records))
	for k, v := range tm.records {
		recCopy[k] = append([]execution.ExecutionRecord{}, v...)
	}
	return memorySnapshot{services: svcCopy, records: recCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.services = s.services
	tm.records = s.records
}

type memorySnapshot struct {
	services map[execution.ServiceID]execution.Service
	records  map[execution.ServiceID][]execution.ExecutionRecord
}

// txMemoryView routes calls to the parent without re-locking; the WithTx
// caller already holds the write lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetService(_ context.Context, id execution.ServiceID) (*execution.Service, error) {
	svc, ok := tv.parent.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (tv *txMemoryView) SetServiceStatus(_ context.Context, id execution.ServiceID, status execution.Status) error {
	return tv.parent.setServiceStatusLocked(id, status)
}

func (tv *txMemoryView) OpenRecord(_ context.Context, rec execution.ExecutionRecord) error {
	return tv.parent.openRecordLocked(rec)
}

func (tv *txMemoryView) CloseRecord(_ context.Context, id execution.RecordID, endedAt time.Time, quantity int, reason string) error {
	return tv.parent.closeRecordLocked(id, endedAt, quantity, reason)
}

func (tv *txMemoryView) FindOpenRecord(_ context.Context, serviceID execution.ServiceID, operatorID execution.OperatorID) (*execution.ExecutionRecord, error) {
	for _, r := range tv.parent.records[serviceID] {
		if r.OperatorID == operatorID && r.Open() {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) ListRecords(_ context.Context, serviceID execution.ServiceID) ([]execution.ExecutionRecord, error) {
	result := make([]execution.ExecutionRecord, len(tv.parent.records[serviceID]))
	copy(result, tv.parent.records[serviceID])
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

func (tv *txMemoryView) SumClosedQuantity(_ context.Context, serviceID execution.ServiceID, exclude execution.RecordID) (int, error) {
	total := 0
	for _, r := range tv.parent.records[serviceID] {
		if r.ID == exclude || r.Open() {
			continue
		}
		total += r.ClosedQuantity()
	}
	return total, nil
}
