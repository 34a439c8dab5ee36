package entity

// Internal status constants for Reimbursement
const (
	ReimbursementStatusPending    = "pending"
	ReimbursementStatusProcessing = "processing"
	ReimbursementStatusClosed     = "closed"
)

// Work order variant constants
const (
	VariantAudit          = "audit"
	VariantCommunication  = "communication"
	VariantExpressReceipt = "express_receipt"
)

// Work order resolution constants
const (
	ResolutionPending  = "pending"
	ResolutionApproved = "approved"
	ResolutionRejected = "rejected"
)

// Verification status constants for ExpenseLine and Selection
const (
	VerificationPending     = "pending"
	VerificationVerified    = "verified"
	VerificationProblematic = "problematic"
)

// Document type codes (first part of a context code)
const (
	DocumentTypePersonal = "A" // 个人日常报销
	DocumentTypeAcademic = "B" // 学术会议报销
)

// GeneralExpenseTypeCode marks catalog rows that apply to every expense type of a context
const GeneralExpenseTypeCode = "00"

// Reimbursement status record sources
const (
	StatusSourceReconcile     = "reconcile"
	StatusSourceManual        = "manual"
	StatusSourceOverrideReset = "override_reset"
)

// SystemActor is recorded as changed_by for cascaded writes without a human actor
const SystemActor = "system"

// IsValidReimbursementStatus reports whether s is a known internal status
func IsValidReimbursementStatus(s string) bool {
	switch s {
	case ReimbursementStatusPending, ReimbursementStatusProcessing, ReimbursementStatusClosed:
		return true
	default:
		return false
	}
}

// IsValidVariant reports whether v is a known work order variant
func IsValidVariant(v string) bool {
	switch v {
	case VariantAudit, VariantCommunication, VariantExpressReceipt:
		return true
	default:
		return false
	}
}
