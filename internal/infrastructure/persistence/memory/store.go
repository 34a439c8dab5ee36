// Package memory provides an in-process implementation of the persistence
// ports. Transactions are serialised and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

type txMarker struct{}

type state struct {
	reimbursements map[int64]*entity.Reimbursement
	workOrders     map[int64]*entity.WorkOrder
	expenseLines   map[int64]*entity.ExpenseLine
	selections     map[int64]*entity.Selection
	categories     map[int64]*entity.ExpenseCategory
	problemTypes   map[int64]*entity.ProblemType
	statusChanges  []*entity.StatusChangeRecord
	statusLog      []*entity.ReimbursementStatusRecord

	nextID map[string]int64
	seq    int64
}

func newState() *state {
	return &state{
		reimbursements: make(map[int64]*entity.Reimbursement),
		workOrders:     make(map[int64]*entity.WorkOrder),
		expenseLines:   make(map[int64]*entity.ExpenseLine),
		selections:     make(map[int64]*entity.Selection),
		categories:     make(map[int64]*entity.ExpenseCategory),
		problemTypes:   make(map[int64]*entity.ProblemType),
		nextID:         make(map[string]int64),
	}
}

// clone deep-copies every table. Entities are copied by value.
func (s *state) clone() *state {
	c := newState()
	for id, v := range s.reimbursements {
		c.reimbursements[id] = cloneReimbursement(v)
	}
	for id, v := range s.workOrders {
		c.workOrders[id] = cloneWorkOrder(v)
	}
	for id, v := range s.expenseLines {
		c.expenseLines[id] = cloneExpenseLine(v)
	}
	for id, v := range s.selections {
		sel := *v
		c.selections[id] = &sel
	}
	for id, v := range s.categories {
		cat := *v
		c.categories[id] = &cat
	}
	for id, v := range s.problemTypes {
		pt := *v
		c.problemTypes[id] = &pt
	}
	for _, v := range s.statusChanges {
		rec := *v
		c.statusChanges = append(c.statusChanges, &rec)
	}
	for _, v := range s.statusLog {
		rec := *v
		c.statusLog = append(c.statusLog, &rec)
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	c.seq = s.seq
	return c
}

func (s *state) allocID(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Store holds every table of the engine in memory
type Store struct {
	// txMu is held exclusively for the length of a transaction and shared by
	// calls made outside one
	txMu  sync.RWMutex
	mu    sync.RWMutex
	data  *state
	clock port.Clock
}

// NewStore creates an empty store
func NewStore(clock port.Clock) *Store {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &Store{data: newState(), clock: clock}
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// WithTransaction implements port.TransactionManager. A nested call reuses the
// outer transaction. On error or panic the store is restored.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, txMarker{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txMarker{}).(*Store)
	return ok && owner == s
}

// join waits for any open transaction unless ctx belongs to it
func (s *Store) join(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

func (s *Store) lock(ctx context.Context) func() {
	release := s.join(ctx)
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		release()
	}
}

func (s *Store) rlock(ctx context.Context) func() {
	release := s.join(ctx)
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		release()
	}
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

// Repositories returns port implementations backed by the store
func (s *Store) Repositories() Repositories {
	return Repositories{
		Reimbursements: &ReimbursementRepository{store: s},
		WorkOrders:     &WorkOrderRepository{store: s},
		ExpenseLines:   &ExpenseLineRepository{store: s},
		Selections:     &SelectionRepository{store: s},
		Catalog:        &CatalogRepository{store: s},
		StatusChanges:  &StatusChangeRepository{store: s},
		StatusLog:      &StatusLogRepository{store: s},
	}
}

// Repositories is the set of memory-backed repositories
type Repositories struct {
	Reimbursements *ReimbursementRepository
	WorkOrders     *WorkOrderRepository
	ExpenseLines   *ExpenseLineRepository
	Selections     *SelectionRepository
	Catalog        *CatalogRepository
	StatusChanges  *StatusChangeRepository
	StatusLog      *StatusLogRepository
}

var _ port.TransactionManager = (*Store)(nil)

func cloneReimbursement(r *entity.Reimbursement) *entity.Reimbursement {
	if r == nil {
		return nil
	}
	c := *r
	if r.ManualOverrideAt != nil {
		at := *r.ManualOverrideAt
		c.ManualOverrideAt = &at
	}
	return &c
}

func cloneWorkOrder(wo *entity.WorkOrder) *entity.WorkOrder {
	if wo == nil {
		return nil
	}
	c := *wo
	if wo.ProblemTypeID != nil {
		id := *wo.ProblemTypeID
		c.ProblemTypeID = &id
	}
	if wo.ParentID != nil {
		id := *wo.ParentID
		c.ParentID = &id
	}
	return &c
}

func cloneExpenseLine(line *entity.ExpenseLine) *entity.ExpenseLine {
	if line == nil {
		return nil
	}
	c := *line
	if line.OccurredOn != nil {
		on := *line.OccurredOn
		c.OccurredOn = &on
	}
	return &c
}
