package entity

import "time"

// WorkOrder is a task attached to a reimbursement. The Variant decides which
// transition table governs Status.
type WorkOrder struct {
	ID              int64  `json:"id"`
	ReimbursementID int64  `json:"reimbursement_id"`
	Variant         string `json:"variant"`
	Status          string `json:"status"`
	Resolution      string `json:"resolution"`

	ProblemTypeID *int64 `json:"problem_type_id,omitempty"`
	AuditComment  string `json:"audit_comment,omitempty"`
	Remark        string `json:"remark,omitempty"`

	// ParentID links a communication work order to the audit that opened it
	ParentID *int64 `json:"parent_id,omitempty"`

	// TrackingNumber is only used by express receipt work orders
	TrackingNumber string `json:"tracking_number,omitempty"`

	CreatedBy string `json:"created_by"`

	// Seq is a store-wide monotonic number bumped on every engine write.
	// It orders "latest" independently of clock granularity.
	Seq int64 `json:"seq"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAudit reports whether the work order can influence verification status
func (w *WorkOrder) IsAudit() bool {
	return w.Variant == VariantAudit
}

// HasProblem reports whether a problem type is attached
func (w *WorkOrder) HasProblem() bool {
	return w.ProblemTypeID != nil && *w.ProblemTypeID != 0
}
