package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/migrations"
	"github.com/garyjia/expense-audit/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) (*database.DB, *Repositories) {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.DefaultConfig(filepath.Join(t.TempDir(), "test.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return db, NewRepositories(db.DB, logger)
}

func seedReimbursement(t *testing.T, repos *Repositories, invoice string) *entity.Reimbursement {
	t.Helper()
	r := &entity.Reimbursement{
		InvoiceNumber: invoice,
		DocumentName:  "个人日常报销单",
		Amount:        decimal.RequireFromString("128.40"),
	}
	require.NoError(t, repos.Reimbursements.Create(context.Background(), r))
	return r
}

func TestReimbursementRepository(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	r := seedReimbursement(t, repos, "BX001")
	assert.NotZero(t, r.ID)

	got, err := repos.Reimbursements.GetByInvoiceNumber(ctx, "BX001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString("128.40").Equal(got.Amount))
	assert.Equal(t, entity.ReimbursementStatusPending, got.InternalStatus)
	assert.False(t, got.ManualOverride)
	assert.Nil(t, got.ManualOverrideAt)

	missing, err := repos.Reimbursements.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repos.Reimbursements.SetExternalStatus(ctx, r.ID, "审批中"))
	changed, err := repos.Reimbursements.ListExternalChanged(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "审批中", changed[0].ExternalStatus)
	assert.Empty(t, changed[0].LastExternalStatus)

	require.NoError(t, repos.Reimbursements.UpdateStatus(ctx, r.ID, entity.ReimbursementStatusProcessing, "审批中"))
	changed, err = repos.Reimbursements.ListExternalChanged(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, changed)

	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repos.Reimbursements.SetManualOverride(ctx, r.ID, true, entity.ReimbursementStatusClosed, "admin", at))
	got, err = repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.ManualOverride)
	assert.Equal(t, entity.ReimbursementStatusClosed, got.InternalStatus)
	assert.Equal(t, "admin", got.ManualOverrideBy)
	require.NotNil(t, got.ManualOverrideAt)
	assert.True(t, at.Equal(*got.ManualOverrideAt))

	require.NoError(t, repos.Reimbursements.SetManualOverride(ctx, r.ID, false, "", "admin", at))
	got, err = repos.Reimbursements.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.ManualOverride)
	assert.Equal(t, entity.ReimbursementStatusClosed, got.InternalStatus, "empty status leaves the internal status alone")

	assert.Error(t, repos.Reimbursements.UpdateStatus(ctx, 999, entity.ReimbursementStatusClosed, ""))

	ids, err := repos.Reimbursements.ListIDs(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{r.ID}, ids)
}

func TestWorkOrderRepository(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	r := seedReimbursement(t, repos, "BX001")
	line := &entity.ExpenseLine{DocumentNumber: "BX001", CategoryLabel: "交通费", MeetingType: "01", Amount: decimal.RequireFromString("20")}
	require.NoError(t, repos.ExpenseLines.Create(ctx, line))

	create := func(variant, status string) *entity.WorkOrder {
		seq, err := repos.WorkOrders.NextSeq(ctx)
		require.NoError(t, err)
		wo := &entity.WorkOrder{
			ReimbursementID: r.ID,
			Variant:         variant,
			Status:          status,
			Resolution:      entity.ResolutionPending,
			CreatedBy:       "auditor-1",
			Seq:             seq,
		}
		require.NoError(t, repos.WorkOrders.Create(ctx, wo))
		require.NoError(t, repos.Selections.Create(ctx, &entity.Selection{WorkOrderID: wo.ID, ExpenseLineID: line.ID}))
		return wo
	}

	first := create(entity.VariantAudit, "pending")
	second := create(entity.VariantAudit, "processing")
	comm := create(entity.VariantCommunication, "open")
	assert.Less(t, first.Seq, second.Seq)
	assert.Less(t, second.Seq, comm.Seq)

	latest, err := repos.WorkOrders.LatestAuditByExpenseLine(ctx, line.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID, "communication work orders never qualify")

	seq, err := repos.WorkOrders.NextSeq(ctx)
	require.NoError(t, err)
	first.Status = "approved"
	first.Resolution = entity.ResolutionApproved
	first.AuditComment = "ok"
	first.Seq = seq
	first.UpdatedAt = time.Now().UTC()
	require.NoError(t, repos.WorkOrders.Update(ctx, first))

	latest, err = repos.WorkOrders.LatestAuditByExpenseLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
	assert.Equal(t, "approved", latest.Status)
	assert.Equal(t, "ok", latest.AuditComment)
	assert.Nil(t, latest.ProblemTypeID)

	active, err := repos.WorkOrders.CountActiveByReimbursementID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	byLine, err := repos.WorkOrders.GetByExpenseLineID(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, byLine, 3)

	byReimbursement, err := repos.WorkOrders.GetByReimbursementID(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, byReimbursement, 3)

	none, err := repos.WorkOrders.LatestAuditByExpenseLine(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSelectionRepository(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	r := seedReimbursement(t, repos, "BX001")
	line := &entity.ExpenseLine{DocumentNumber: "BX001", MeetingType: "01"}
	require.NoError(t, repos.ExpenseLines.Create(ctx, line))
	wo := &entity.WorkOrder{ReimbursementID: r.ID, Variant: entity.VariantAudit, Status: "pending", Resolution: entity.ResolutionPending, CreatedBy: "a", Seq: 1}
	require.NoError(t, repos.WorkOrders.Create(ctx, wo))

	sel := &entity.Selection{WorkOrderID: wo.ID, ExpenseLineID: line.ID}
	require.NoError(t, repos.Selections.Create(ctx, sel))
	require.NoError(t, repos.Selections.UpdateVerificationByWorkOrder(ctx, wo.ID, entity.VerificationProblematic, "缺票"))

	again := &entity.Selection{WorkOrderID: wo.ID, ExpenseLineID: line.ID}
	require.NoError(t, repos.Selections.Create(ctx, again))
	assert.Equal(t, sel.ID, again.ID)
	assert.Equal(t, entity.VerificationProblematic, again.VerificationStatus)
	assert.Equal(t, "缺票", again.VerificationComment)

	byLine, err := repos.Selections.GetByExpenseLineID(ctx, line.ID)
	require.NoError(t, err)
	assert.Len(t, byLine, 1)
}

func TestExpenseLineRepository(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	on := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	line := &entity.ExpenseLine{DocumentNumber: "BX001", CategoryLabel: "住宿费", MeetingType: "02", Amount: decimal.RequireFromString("450.00"), OccurredOn: &on}
	require.NoError(t, repos.ExpenseLines.Create(ctx, line))
	require.NoError(t, repos.ExpenseLines.Create(ctx, &entity.ExpenseLine{DocumentNumber: "BX002"}))

	got, err := repos.ExpenseLines.GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VerificationPending, got.VerificationStatus)
	require.NotNil(t, got.OccurredOn)
	assert.True(t, on.Equal(*got.OccurredOn))
	assert.True(t, decimal.RequireFromString("450").Equal(got.Amount))

	require.NoError(t, repos.ExpenseLines.UpdateVerificationStatus(ctx, line.ID, entity.VerificationVerified))
	lines, err := repos.ExpenseLines.GetByDocumentNumber(ctx, "BX001")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, entity.VerificationVerified, lines[0].VerificationStatus)

	ids, err := repos.ExpenseLines.ListIDs(ctx, line.ID, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	assert.Error(t, repos.ExpenseLines.UpdateVerificationStatus(ctx, 999, entity.VerificationVerified))
}

func TestCatalogRepository(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	cat := &entity.ExpenseCategory{DocumentTypeCode: "A", MeetingTypeCode: "01", ExpenseTypeCode: "02", Name: "交通费"}
	require.NoError(t, repos.Catalog.CreateCategory(ctx, cat))
	pt := &entity.ProblemType{Code: "A0102-01", Title: "超标准乘车", DocumentTypeCode: "A", MeetingTypeCode: "01", ExpenseTypeCode: "02", StandardHandling: "超出部分自理", Active: true}
	require.NoError(t, repos.Catalog.CreateProblemType(ctx, pt))
	inactive := &entity.ProblemType{Code: "A0102-02", Title: "停用", DocumentTypeCode: "A", MeetingTypeCode: "01", ExpenseTypeCode: "02"}
	require.NoError(t, repos.Catalog.CreateProblemType(ctx, inactive))

	categories, err := repos.Catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "交通费", categories[0].Name)

	types, err := repos.Catalog.ListProblemTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.True(t, types[0].Active)
	assert.False(t, types[1].Active)

	got, err := repos.Catalog.GetProblemType(ctx, pt.ID)
	require.NoError(t, err)
	assert.Equal(t, "超出部分自理", got.StandardHandling)

	missing, err := repos.Catalog.GetProblemType(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatusLogs(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	r := seedReimbursement(t, repos, "BX001")
	wo := &entity.WorkOrder{ReimbursementID: r.ID, Variant: entity.VariantAudit, Status: "pending", Resolution: entity.ResolutionPending, CreatedBy: "a", Seq: 1}
	require.NoError(t, repos.WorkOrders.Create(ctx, wo))

	require.NoError(t, repos.StatusChanges.Create(ctx, &entity.StatusChangeRecord{WorkOrderID: wo.ID, NewStatus: "pending", Trigger: "create", ChangedBy: "a"}))
	require.NoError(t, repos.StatusChanges.Create(ctx, &entity.StatusChangeRecord{WorkOrderID: wo.ID, PreviousStatus: "pending", NewStatus: "approved", Trigger: "approve", ChangedBy: "a", Comment: "ok"}))

	changes, err := repos.StatusChanges.GetByWorkOrderID(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "approve", changes[1].Trigger)
	assert.Equal(t, "ok", changes[1].Comment)

	require.NoError(t, repos.StatusLog.Create(ctx, &entity.ReimbursementStatusRecord{
		ReimbursementID: r.ID,
		PreviousStatus:  entity.ReimbursementStatusPending,
		NewStatus:       entity.ReimbursementStatusClosed,
		ExternalStatus:  "已付款",
		Source:          entity.StatusSourceReconcile,
		ChangedBy:       entity.SystemActor,
	}))
	log, err := repos.StatusLog.GetByReimbursementID(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "已付款", log[0].ExternalStatus)

	assert.Error(t, repos.StatusLog.Create(ctx, &entity.ReimbursementStatusRecord{
		ReimbursementID: r.ID, PreviousStatus: "pending", NewStatus: "closed", Source: "cron", ChangedBy: "x",
	}), "unknown sources are rejected by the schema")
}

func TestTransactionRollback(t *testing.T) {
	db, repos := setupTestDB(t)
	ctx := context.Background()
	tx := sqlite.NewDB(db.DB, zap.NewNop())

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		assert.True(t, sqlite.InTransaction(txCtx))
		if err := repos.Reimbursements.Create(txCtx, &entity.Reimbursement{InvoiceNumber: "BX001"}); err != nil {
			return err
		}
		// Nested calls join the outer transaction
		return tx.WithTransaction(txCtx, func(inner context.Context) error {
			return repos.Reimbursements.Create(inner, &entity.Reimbursement{InvoiceNumber: "BX001"})
		})
	})
	require.Error(t, err, "duplicate invoice number")

	got, err := repos.Reimbursements.GetByInvoiceNumber(ctx, "BX001")
	require.NoError(t, err)
	assert.Nil(t, got, "the first insert rolls back with the failed one")
}
