package service

import (
	"testing"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/domain/event"
	"github.com/stretchr/testify/assert"
)

func TestRegisterCascade(t *testing.T) {
	d := dispatcher.NewDispatcher()
	RegisterCascade(d, nil, nil, nil)

	names := func(t event.Type) []string {
		var out []string
		for _, h := range d.ListHandlers(t) {
			out = append(out, h.Name)
		}
		return out
	}

	assert.Equal(t, []string{HandlerRecomputeExpenseLines, HandlerReconcileReimbursement}, names(event.TypeWorkOrderCreated))
	assert.Equal(t, []string{HandlerRecomputeExpenseLines, HandlerReconcileReimbursement}, names(event.TypeWorkOrderStatusChanged))
	assert.Equal(t, []string{HandlerRecomputeExpenseLines}, names(event.TypeSelectionChanged))
	assert.Empty(t, names(event.TypeReimbursementStatusChanged))
}
