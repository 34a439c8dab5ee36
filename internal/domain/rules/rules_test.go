package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentClassifier_Code(t *testing.T) {
	c := NewDocumentClassifier(nil, nil)

	tests := []struct {
		name     string
		document string
		wantCode string
		wantOK   bool
	}{
		{"personal daily", "2024年3月个人日常报销单", entity.DocumentTypePersonal, true},
		{"daily", "日常报销", entity.DocumentTypePersonal, true},
		{"academic meeting", "学术会议报销-北京", entity.DocumentTypeAcademic, true},
		{"academic wins over personal", "个人学术会议报销", entity.DocumentTypeAcademic, true},
		{"surrounding spaces", "  个人报销  ", entity.DocumentTypePersonal, true},
		{"unknown", "差旅报销", "", false},
		{"empty", "", "", false},
		{"blank", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := c.Code(tt.document)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestDocumentClassifier_CustomKeywords(t *testing.T) {
	c := NewDocumentClassifier([]string{"差旅", " "}, []string{"研讨会"})

	code, ok := c.Code("差旅报销")
	require.True(t, ok)
	assert.Equal(t, entity.DocumentTypePersonal, code)

	code, ok = c.Code("研讨会报销")
	require.True(t, ok)
	assert.Equal(t, entity.DocumentTypeAcademic, code)

	// Defaults are replaced, not extended
	_, ok = c.Code("个人报销")
	assert.False(t, ok)
}

func auditOrder(id, seq int64, status string, updated time.Time) *entity.WorkOrder {
	return &entity.WorkOrder{ID: id, Variant: entity.VariantAudit, Status: status, Seq: seq, UpdatedAt: updated}
}

func TestDeriveVerification(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		orders []*entity.WorkOrder
		want   string
	}{
		{"no work orders", nil, entity.VerificationPending},
		{"single approved", []*entity.WorkOrder{auditOrder(1, 1, "approved", base)}, entity.VerificationVerified},
		{"single rejected", []*entity.WorkOrder{auditOrder(1, 1, "rejected", base)}, entity.VerificationProblematic},
		{"single processing", []*entity.WorkOrder{auditOrder(1, 1, "processing", base)}, entity.VerificationPending},
		{
			name: "newer approved beats older rejected",
			orders: []*entity.WorkOrder{
				auditOrder(1, 1, "rejected", base),
				auditOrder(2, 2, "approved", base.Add(time.Minute)),
			},
			want: entity.VerificationVerified,
		},
		{
			name: "seq decides over updated_at",
			orders: []*entity.WorkOrder{
				auditOrder(1, 5, "rejected", base),
				auditOrder(2, 4, "approved", base.Add(time.Hour)),
			},
			want: entity.VerificationProblematic,
		},
		{
			name: "equal seq and time falls back to insertion order",
			orders: []*entity.WorkOrder{
				auditOrder(2, 3, "approved", base),
				auditOrder(1, 3, "rejected", base),
			},
			want: entity.VerificationVerified,
		},
		{
			name: "only communication and express",
			orders: []*entity.WorkOrder{
				{ID: 1, Variant: entity.VariantCommunication, Status: "resolved", Seq: 9},
				{ID: 2, Variant: entity.VariantExpressReceipt, Status: "completed", Seq: 10},
			},
			want: entity.VerificationPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveVerification(tt.orders))
		})
	}
}

func TestLatestQualifying_ExcludesNonAuditVariants(t *testing.T) {
	base := time.Now()
	audit := auditOrder(1, 1, "rejected", base)
	orders := []*entity.WorkOrder{
		audit,
		{ID: 2, Variant: entity.VariantCommunication, Status: "closed", Seq: 100, UpdatedAt: base.Add(time.Hour)},
		{ID: 3, Variant: entity.VariantExpressReceipt, Status: "completed", Seq: 101, UpdatedAt: base.Add(2 * time.Hour)},
		nil,
	}

	assert.Same(t, audit, LatestQualifying(orders))
	assert.Equal(t, entity.VerificationProblematic, DeriveVerification(orders))
}

func TestStatusPolicy_Decide(t *testing.T) {
	p := NewStatusPolicy(nil)

	tests := []struct {
		name     string
		current  string
		override bool
		external string
		active   int
		want     string
	}{
		{"override keeps current", entity.ReimbursementStatusClosed, true, "审批中", 3, entity.ReimbursementStatusClosed},
		{"override beats paid", entity.ReimbursementStatusPending, true, "已付款", 0, entity.ReimbursementStatusPending},
		{"paid closes", entity.ReimbursementStatusProcessing, false, "已付款", 2, entity.ReimbursementStatusClosed},
		{"payment pending closes", entity.ReimbursementStatusPending, false, "待付款", 0, entity.ReimbursementStatusClosed},
		{"paid with spaces", entity.ReimbursementStatusPending, false, " 已付款 ", 0, entity.ReimbursementStatusClosed},
		{"active work order", entity.ReimbursementStatusPending, false, "审批中", 1, entity.ReimbursementStatusProcessing},
		{"nothing active", entity.ReimbursementStatusProcessing, false, "审批中", 0, entity.ReimbursementStatusPending},
		{"empty external", entity.ReimbursementStatusClosed, false, "", 0, entity.ReimbursementStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decide(tt.current, tt.override, tt.external, tt.active))
		})
	}
}

func TestStatusPolicy_CustomPaidSet(t *testing.T) {
	p := NewStatusPolicy([]string{"PAID"})

	assert.True(t, p.IsPaid("PAID"))
	assert.False(t, p.IsPaid("已付款"))
}

func TestCheckResolution(t *testing.T) {
	tests := []struct {
		variant    string
		status     string
		resolution string
		wantErr    bool
	}{
		{entity.VariantAudit, "pending", entity.ResolutionPending, false},
		{entity.VariantAudit, "processing", entity.ResolutionPending, false},
		{entity.VariantAudit, "needs_communication", entity.ResolutionPending, false},
		{entity.VariantAudit, "approved", entity.ResolutionApproved, false},
		{entity.VariantAudit, "rejected", entity.ResolutionRejected, false},
		{entity.VariantAudit, "approved", entity.ResolutionRejected, true},
		{entity.VariantAudit, "approved", entity.ResolutionPending, true},
		{entity.VariantAudit, "processing", entity.ResolutionApproved, true},
		{entity.VariantAudit, "open", entity.ResolutionPending, true},
		{entity.VariantCommunication, "open", entity.ResolutionPending, false},
		{entity.VariantCommunication, "resolved", entity.ResolutionApproved, false},
		{entity.VariantCommunication, "unresolved", entity.ResolutionRejected, false},
		{entity.VariantCommunication, "closed", entity.ResolutionApproved, false},
		{entity.VariantCommunication, "closed", entity.ResolutionRejected, false},
		{entity.VariantCommunication, "closed", entity.ResolutionPending, true},
		{entity.VariantCommunication, "resolved", entity.ResolutionRejected, true},
		{entity.VariantExpressReceipt, "received", entity.ResolutionPending, false},
		{entity.VariantExpressReceipt, "completed", entity.ResolutionApproved, false},
		{entity.VariantExpressReceipt, "completed", entity.ResolutionRejected, true},
		{entity.VariantAudit, "approved", "maybe", true},
	}

	for _, tt := range tests {
		t.Run(tt.variant+"/"+tt.status+"/"+tt.resolution, func(t *testing.T) {
			err := CheckResolution(tt.variant, tt.status, tt.resolution)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInconsistentResolution), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResolutionFor(t *testing.T) {
	approve := workflow.Transition{Effects: []workflow.Effect{workflow.EffectResolveApproved}}
	reject := workflow.Transition{Effects: []workflow.Effect{workflow.EffectResolveRejected}}
	start := workflow.Transition{}

	assert.Equal(t, entity.ResolutionApproved, ResolutionFor(entity.ResolutionPending, approve))
	assert.Equal(t, entity.ResolutionRejected, ResolutionFor(entity.ResolutionPending, reject))
	assert.Equal(t, entity.ResolutionApproved, ResolutionFor(entity.ResolutionApproved, start))
}

func TestMergeProblemScopes(t *testing.T) {
	general := []*entity.ProblemType{
		{ID: 3, Code: "G02"},
		{ID: 1, Code: "G01"},
	}
	precise := []*entity.ProblemType{
		{ID: 7, Code: "P02"},
		{ID: 5, Code: "P01"},
		{ID: 1, Code: "G01"},
	}

	merged := MergeProblemScopes(precise, general)
	assert.Equal(t, []int64{1, 5, 7, 3}, ProblemTypeIDs(merged))

	onlyGeneral := MergeProblemScopes(nil, general)
	assert.Equal(t, []int64{1, 3}, ProblemTypeIDs(onlyGeneral))

	assert.Empty(t, MergeProblemScopes(nil, nil))
	assert.True(t, ContainsProblemType(merged, 7))
	assert.False(t, ContainsProblemType(merged, 9))
}
