package rules

import (
	"strings"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Default keyword sets used to classify a reimbursement by its document name
var (
	DefaultPersonalKeywords = []string{"个人报销", "日常报销", "个人日常"}
	DefaultAcademicKeywords = []string{"学术会议", "学术"}
)

// DocumentClassifier maps a reimbursement document name to a document type code
type DocumentClassifier struct {
	personal []string
	academic []string
}

// NewDocumentClassifier creates a classifier. Empty keyword sets fall back to the defaults.
func NewDocumentClassifier(personal, academic []string) *DocumentClassifier {
	if len(personal) == 0 {
		personal = DefaultPersonalKeywords
	}
	if len(academic) == 0 {
		academic = DefaultAcademicKeywords
	}
	return &DocumentClassifier{
		personal: normalizeKeywords(personal),
		academic: normalizeKeywords(academic),
	}
}

// Code returns the document type code for the name. The second value is false
// when the name matches neither set.
//
// Academic keywords are checked first: "个人学术会议报销" is an academic document.
func (c *DocumentClassifier) Code(documentName string) (string, bool) {
	name := strings.TrimSpace(documentName)
	if name == "" {
		return "", false
	}
	if containsAny(name, c.academic) {
		return entity.DocumentTypeAcademic, true
	}
	if containsAny(name, c.personal) {
		return entity.DocumentTypePersonal, true
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
