package entity

import "fmt"

// ContextCode is the (document type, meeting type, expense type) triple that
// scopes classification catalog lookups
type ContextCode struct {
	DocumentType string `json:"document_type_code"`
	MeetingType  string `json:"meeting_type_code"`
	ExpenseType  string `json:"expense_type_code"`
}

// IsGeneral reports whether the code carries the general expense type sentinel
func (c ContextCode) IsGeneral() bool {
	return c.ExpenseType == GeneralExpenseTypeCode
}

// General returns the general code of the same document/meeting context
func (c ContextCode) General() ContextCode {
	return ContextCode{DocumentType: c.DocumentType, MeetingType: c.MeetingType, ExpenseType: GeneralExpenseTypeCode}
}

// String returns the dashed form, e.g. "A-01-00"
func (c ContextCode) String() string {
	return fmt.Sprintf("%s-%s-%s", c.DocumentType, c.MeetingType, c.ExpenseType)
}

// ExpenseCategory is a catalog entry naming an expense type within a context
type ExpenseCategory struct {
	ID               int64  `json:"id"`
	DocumentTypeCode string `json:"document_type_code"`
	MeetingTypeCode  string `json:"meeting_type_code"`
	ExpenseTypeCode  string `json:"expense_type_code"`
	Name             string `json:"name"`
}

// ContextCode returns the category's context code
func (c *ExpenseCategory) ContextCode() ContextCode {
	return ContextCode{DocumentType: c.DocumentTypeCode, MeetingType: c.MeetingTypeCode, ExpenseType: c.ExpenseTypeCode}
}

// ProblemType is a catalog entry describing a problem an auditor can raise.
// StandardHandling pre-fills the work order comment when the problem is attached.
type ProblemType struct {
	ID               int64  `json:"id"`
	Code             string `json:"code"`
	Title            string `json:"title"`
	DocumentTypeCode string `json:"document_type_code"`
	MeetingTypeCode  string `json:"meeting_type_code"`
	ExpenseTypeCode  string `json:"expense_type_code"`
	SOPDescription   string `json:"sop_description,omitempty"`
	StandardHandling string `json:"standard_handling,omitempty"`
	Active           bool   `json:"active"`
}

// ContextCode returns the problem type's context code
func (p *ProblemType) ContextCode() ContextCode {
	return ContextCode{DocumentType: p.DocumentTypeCode, MeetingType: p.MeetingTypeCode, ExpenseType: p.ExpenseTypeCode}
}
