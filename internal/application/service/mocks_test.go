package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// mockLogger records messages for assertions
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) HasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

// mockTxManager runs fn directly
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockExpenseLineRepo struct {
	lines   map[int64]*entity.ExpenseLine
	updates map[int64]string
}

func newMockExpenseLineRepo(lines ...*entity.ExpenseLine) *mockExpenseLineRepo {
	m := &mockExpenseLineRepo{lines: map[int64]*entity.ExpenseLine{}, updates: map[int64]string{}}
	for _, l := range lines {
		m.lines[l.ID] = l
	}
	return m
}

func (m *mockExpenseLineRepo) Create(ctx context.Context, line *entity.ExpenseLine) error {
	m.lines[line.ID] = line
	return nil
}

func (m *mockExpenseLineRepo) GetByID(ctx context.Context, id int64) (*entity.ExpenseLine, error) {
	return m.lines[id], nil
}

func (m *mockExpenseLineRepo) GetByDocumentNumber(ctx context.Context, documentNumber string) ([]*entity.ExpenseLine, error) {
	return nil, nil
}

func (m *mockExpenseLineRepo) UpdateVerificationStatus(ctx context.Context, id int64, status string) error {
	m.updates[id] = status
	return nil
}

func (m *mockExpenseLineRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	return nil, nil
}

type mockWorkOrderRepo struct {
	latestFunc      func(ctx context.Context, expenseLineID int64) (*entity.WorkOrder, error)
	countActiveFunc func(ctx context.Context, reimbursementID int64) (int, error)
}

func (m *mockWorkOrderRepo) Create(ctx context.Context, wo *entity.WorkOrder) error { return nil }

func (m *mockWorkOrderRepo) GetByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	return nil, nil
}

func (m *mockWorkOrderRepo) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.WorkOrder, error) {
	return nil, nil
}

func (m *mockWorkOrderRepo) Update(ctx context.Context, wo *entity.WorkOrder) error { return nil }

func (m *mockWorkOrderRepo) NextSeq(ctx context.Context) (int64, error) { return 1, nil }

func (m *mockWorkOrderRepo) CountActiveByReimbursementID(ctx context.Context, reimbursementID int64) (int, error) {
	if m.countActiveFunc != nil {
		return m.countActiveFunc(ctx, reimbursementID)
	}
	return 0, nil
}

func (m *mockWorkOrderRepo) GetByExpenseLineID(ctx context.Context, expenseLineID int64) ([]*entity.WorkOrder, error) {
	return nil, nil
}

func (m *mockWorkOrderRepo) LatestAuditByExpenseLine(ctx context.Context, expenseLineID int64) (*entity.WorkOrder, error) {
	if m.latestFunc != nil {
		return m.latestFunc(ctx, expenseLineID)
	}
	return nil, nil
}

type mockReimbursementRepo struct {
	reimbursements map[int64]*entity.Reimbursement
	updateErr      error
	statusWrites   int
}

func (m *mockReimbursementRepo) Create(ctx context.Context, r *entity.Reimbursement) error {
	m.reimbursements[r.ID] = r
	return nil
}

func (m *mockReimbursementRepo) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	r, ok := m.reimbursements[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *mockReimbursementRepo) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*entity.Reimbursement, error) {
	return nil, nil
}

func (m *mockReimbursementRepo) UpdateStatus(ctx context.Context, id int64, internalStatus, externalStatus string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.reimbursements[id]
	if !ok {
		return fmt.Errorf("reimbursement %d not found", id)
	}
	m.statusWrites++
	r.InternalStatus = internalStatus
	r.ExternalStatus = externalStatus
	r.LastExternalStatus = externalStatus
	return nil
}

func (m *mockReimbursementRepo) SetExternalStatus(ctx context.Context, id int64, externalStatus string) error {
	m.reimbursements[id].ExternalStatus = externalStatus
	return nil
}

func (m *mockReimbursementRepo) SetManualOverride(ctx context.Context, id int64, override bool, status, actor string, at time.Time) error {
	r := m.reimbursements[id]
	r.ManualOverride = override
	if status != "" {
		r.InternalStatus = status
	}
	r.ManualOverrideBy = actor
	r.ManualOverrideAt = &at
	return nil
}

func (m *mockReimbursementRepo) ListExternalChanged(ctx context.Context, afterID int64, limit int) ([]*entity.Reimbursement, error) {
	return nil, nil
}

func (m *mockReimbursementRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	return nil, nil
}

type mockStatusLogRepo struct {
	records []*entity.ReimbursementStatusRecord
}

func (m *mockStatusLogRepo) Create(ctx context.Context, record *entity.ReimbursementStatusRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *mockStatusLogRepo) GetByReimbursementID(ctx context.Context, reimbursementID int64) ([]*entity.ReimbursementStatusRecord, error) {
	return m.records, nil
}
