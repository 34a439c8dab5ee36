package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/event"
	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newReconcilerUnderTest(r *entity.Reimbursement, active int) (Reconciler, *mockReimbursementRepo, *mockStatusLogRepo, dispatcher.Dispatcher) {
	reimbursements := &mockReimbursementRepo{reimbursements: map[int64]*entity.Reimbursement{r.ID: r}}
	orders := &mockWorkOrderRepo{countActiveFunc: func(ctx context.Context, id int64) (int, error) {
		return active, nil
	}}
	log := &mockStatusLogRepo{}
	d := dispatcher.NewDispatcher()
	rec := NewReconciler(reimbursements, orders, log, &mockTxManager{}, d,
		rules.NewStatusPolicy(nil), fixedClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, nil)
	return rec, reimbursements, log, d
}

func TestReconciler_Reconcile(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		override bool
		external string
		active   int
		want     string
		logged   bool
	}{
		{"paid closes", entity.ReimbursementStatusProcessing, false, "已付款", 1, entity.ReimbursementStatusClosed, true},
		{"payment pending closes", entity.ReimbursementStatusPending, false, " 待付款 ", 0, entity.ReimbursementStatusClosed, true},
		{"active work order means processing", entity.ReimbursementStatusPending, false, "审批中", 2, entity.ReimbursementStatusProcessing, true},
		{"nothing active is pending", entity.ReimbursementStatusPending, false, "审批中", 0, entity.ReimbursementStatusPending, false},
		{"override wins", entity.ReimbursementStatusClosed, true, "审批中", 1, entity.ReimbursementStatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &entity.Reimbursement{ID: 1, InternalStatus: tt.current, ManualOverride: tt.override}
			rec, repo, log, d := newReconcilerUnderTest(r, tt.active)

			var published []*event.Event
			d.Subscribe(event.TypeReimbursementStatusChanged, "capture", func(ctx context.Context, evt *event.Event) error {
				published = append(published, evt)
				return nil
			})

			status, err := rec.Reconcile(context.Background(), 1, tt.external)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, 1, repo.statusWrites, "external status is always recorded")
			assert.Equal(t, repo.reimbursements[1].ExternalStatus, repo.reimbursements[1].LastExternalStatus)

			if tt.logged {
				require.Len(t, log.records, 1)
				assert.Equal(t, tt.current, log.records[0].PreviousStatus)
				assert.Equal(t, tt.want, log.records[0].NewStatus)
				assert.Equal(t, entity.SystemActor, log.records[0].ChangedBy)
				require.Len(t, published, 1)
				assert.Equal(t, tt.want, published[0].GetPayloadString(event.PayloadNewStatus))
			} else {
				assert.Empty(t, log.records)
				assert.Empty(t, published)
			}
		})
	}
}

func TestReconciler_Errors(t *testing.T) {
	r := &entity.Reimbursement{ID: 1, InternalStatus: "paid"}
	rec, repo, _, _ := newReconcilerUnderTest(r, 0)

	_, err := rec.Reconcile(context.Background(), 1, "已付款")
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.Zero(t, repo.statusWrites)

	_, err = rec.Reconcile(context.Background(), 2, "已付款")
	assert.ErrorIs(t, err, ErrNotFound)

	repo.reimbursements[1].InternalStatus = entity.ReimbursementStatusPending
	repo.updateErr = errors.New("disk full")
	_, err = rec.Reconcile(context.Background(), 1, "已付款")
	assert.ErrorContains(t, err, "disk full")
}

func TestReconciler_ManualOverride(t *testing.T) {
	r := &entity.Reimbursement{ID: 1, InternalStatus: entity.ReimbursementStatusProcessing, ExternalStatus: "审批中"}
	rec, repo, log, _ := newReconcilerUnderTest(r, 1)
	ctx := context.Background()

	require.NoError(t, rec.SetManualOverride(ctx, 1, entity.ReimbursementStatusClosed, "admin"))
	assert.True(t, repo.reimbursements[1].ManualOverride)
	assert.Equal(t, entity.ReimbursementStatusClosed, repo.reimbursements[1].InternalStatus)
	require.Len(t, log.records, 1)
	assert.Equal(t, entity.StatusSourceManual, log.records[0].Source)
	assert.Equal(t, "admin", log.records[0].ChangedBy)

	status, err := rec.Reconcile(ctx, 1, "审批中")
	require.NoError(t, err)
	assert.Equal(t, entity.ReimbursementStatusClosed, status)

	require.NoError(t, rec.ResetManualOverride(ctx, 1, "admin"))
	assert.False(t, repo.reimbursements[1].ManualOverride)
	assert.Equal(t, entity.ReimbursementStatusClosed, repo.reimbursements[1].InternalStatus)
	require.Len(t, log.records, 2)
	assert.Equal(t, entity.StatusSourceOverrideReset, log.records[1].Source)

	require.NoError(t, rec.ResetManualOverride(ctx, 1, "admin"))
	assert.Len(t, log.records, 2, "second reset is a no-op")
}
