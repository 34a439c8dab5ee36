package entity

import "time"

// StatusChangeRecord is the append-only audit trail of work order transitions
type StatusChangeRecord struct {
	ID             int64     `json:"id"`
	WorkOrderID    int64     `json:"work_order_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Trigger        string    `json:"trigger"`
	ChangedBy      string    `json:"changed_by"`
	Comment        string    `json:"comment,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

// ReimbursementStatusRecord is the append-only trail of internal status writes
// made by reconciliation or by a manual override
type ReimbursementStatusRecord struct {
	ID              int64     `json:"id"`
	ReimbursementID int64     `json:"reimbursement_id"`
	PreviousStatus  string    `json:"previous_status"`
	NewStatus       string    `json:"new_status"`
	ExternalStatus  string    `json:"external_status,omitempty"`
	Source          string    `json:"source"`
	ChangedBy       string    `json:"changed_by"`
	ChangedAt       time.Time `json:"changed_at"`
}
