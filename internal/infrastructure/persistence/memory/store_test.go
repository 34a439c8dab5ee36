package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestStore() (*Store, Repositories) {
	s := NewStore(fixedClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)})
	return s, s.Repositories()
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	store, repos := newTestStore()
	ctx := context.Background()

	r := &entity.Reimbursement{InvoiceNumber: "BX001", DocumentName: "个人日常报销"}
	require.NoError(t, repos.Reimbursements.Create(ctx, r))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repos.Reimbursements.UpdateStatus(txCtx, r.ID, entity.ReimbursementStatusClosed, "已付款"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReimbursementStatusPending, got.InternalStatus)
	assert.Empty(t, got.ExternalStatus)
}

func TestStore_TransactionRollsBackOnPanic(t *testing.T) {
	store, repos := newTestStore()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.WithTransaction(ctx, func(txCtx context.Context) error {
			_ = repos.Reimbursements.Create(txCtx, &entity.Reimbursement{InvoiceNumber: "BX001"})
			panic("handler exploded")
		})
	})

	got, err := repos.Reimbursements.GetByInvoiceNumber(ctx, "BX001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_CallsOutsideTransactionWaitForIt(t *testing.T) {
	store, repos := newTestStore()
	ctx := context.Background()

	r := &entity.Reimbursement{InvoiceNumber: "BX001", DocumentName: "个人日常报销"}
	require.NoError(t, repos.Reimbursements.Create(ctx, r))

	type observed struct {
		reimb *entity.Reimbursement
		err   error
	}
	done := make(chan observed, 1)

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repos.Reimbursements.UpdateStatus(txCtx, r.ID, entity.ReimbursementStatusClosed, "已付款"))

		go func() {
			got, err := repos.Reimbursements.GetByID(ctx, r.ID)
			if err == nil {
				err = repos.Reimbursements.SetExternalStatus(ctx, r.ID, "审批中")
			}
			done <- observed{reimb: got, err: err}
		}()

		select {
		case <-done:
			t.Error("call outside the transaction completed before it ended")
		case <-time.After(50 * time.Millisecond):
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var got observed
	select {
	case got = <-done:
	case <-time.After(time.Second):
		t.Fatal("call outside the transaction never completed")
	}
	require.NoError(t, got.err)
	assert.Equal(t, entity.ReimbursementStatusPending, got.reimb.InternalStatus)

	after, err := repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReimbursementStatusPending, after.InternalStatus)
	assert.Equal(t, "审批中", after.ExternalStatus)
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	store, repos := newTestStore()
	ctx := context.Background()

	err := store.WithTransaction(ctx, func(outer context.Context) error {
		if err := store.WithTransaction(outer, func(inner context.Context) error {
			return repos.Reimbursements.Create(inner, &entity.Reimbursement{InvoiceNumber: "BX001"})
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)

	got, err := repos.Reimbursements.GetByInvoiceNumber(ctx, "BX001")
	require.NoError(t, err)
	assert.Nil(t, got, "inner write must roll back with the outer transaction")
}

func TestReimbursementRepository_ReturnsCopies(t *testing.T) {
	_, repos := newTestStore()
	ctx := context.Background()

	r := &entity.Reimbursement{InvoiceNumber: "BX001"}
	require.NoError(t, repos.Reimbursements.Create(ctx, r))

	got, err := repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	got.InternalStatus = entity.ReimbursementStatusClosed

	again, err := repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReimbursementStatusPending, again.InternalStatus)
}

func TestReimbursementRepository_ListExternalChanged(t *testing.T) {
	_, repos := newTestStore()
	ctx := context.Background()

	ids := make([]int64, 0, 4)
	for _, inv := range []string{"BX001", "BX002", "BX003", "BX004"} {
		r := &entity.Reimbursement{InvoiceNumber: inv}
		require.NoError(t, repos.Reimbursements.Create(ctx, r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, repos.Reimbursements.SetExternalStatus(ctx, ids[0], "审批中"))
	require.NoError(t, repos.Reimbursements.SetExternalStatus(ctx, ids[2], "已付款"))
	require.NoError(t, repos.Reimbursements.SetExternalStatus(ctx, ids[3], "已付款"))
	require.NoError(t, repos.Reimbursements.UpdateStatus(ctx, ids[3], entity.ReimbursementStatusClosed, "已付款"))

	page, err := repos.Reimbursements.ListExternalChanged(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = repos.Reimbursements.ListExternalChanged(ctx, page[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)
}

func TestWorkOrderRepository_LatestAuditByExpenseLine(t *testing.T) {
	_, repos := newTestStore()
	ctx := context.Background()

	r := &entity.Reimbursement{InvoiceNumber: "BX001"}
	require.NoError(t, repos.Reimbursements.Create(ctx, r))
	line := &entity.ExpenseLine{DocumentNumber: "BX001", MeetingType: "01"}
	require.NoError(t, repos.ExpenseLines.Create(ctx, line))

	create := func(variant, status string) *entity.WorkOrder {
		seq, err := repos.WorkOrders.NextSeq(ctx)
		require.NoError(t, err)
		wo := &entity.WorkOrder{ReimbursementID: r.ID, Variant: variant, Status: status, Seq: seq}
		require.NoError(t, repos.WorkOrders.Create(ctx, wo))
		require.NoError(t, repos.Selections.Create(ctx, &entity.Selection{WorkOrderID: wo.ID, ExpenseLineID: line.ID}))
		return wo
	}

	first := create(entity.VariantAudit, "approved")
	second := create(entity.VariantAudit, "rejected")
	create(entity.VariantCommunication, "open")

	latest, err := repos.WorkOrders.LatestAuditByExpenseLine(ctx, line.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	seq, err := repos.WorkOrders.NextSeq(ctx)
	require.NoError(t, err)
	first.Seq = seq
	require.NoError(t, repos.WorkOrders.Update(ctx, first))

	latest, err = repos.WorkOrders.LatestAuditByExpenseLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	active, err := repos.WorkOrders.CountActiveByReimbursementID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestSelectionRepository_CreateIsIdempotent(t *testing.T) {
	_, repos := newTestStore()
	ctx := context.Background()

	first := &entity.Selection{WorkOrderID: 1, ExpenseLineID: 2}
	require.NoError(t, repos.Selections.Create(ctx, first))
	require.NoError(t, repos.Selections.UpdateVerificationByWorkOrder(ctx, 1, entity.VerificationVerified, "ok"))

	again := &entity.Selection{WorkOrderID: 1, ExpenseLineID: 2}
	require.NoError(t, repos.Selections.Create(ctx, again))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, entity.VerificationVerified, again.VerificationStatus)

	got, err := repos.Selections.GetByExpenseLineID(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
