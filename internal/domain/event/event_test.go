package event

import (
	"testing"
	"time"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{"work order created", TypeWorkOrderCreated, "workorder.created"},
		{"work order status changed", TypeWorkOrderStatusChanged, "workorder.status_changed"},
		{"selection changed", TypeSelectionChanged, "workorder.selection_changed"},
		{"reimbursement status changed", TypeReimbursementStatusChanged, "reimbursement.status_changed"},
		{"override set", TypeManualOverrideSet, "reimbursement.override_set"},
		{"override reset", TypeManualOverrideReset, "reimbursement.override_reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
			if !tt.eventType.IsValid() {
				t.Errorf("Type.IsValid() = false for %v", tt.eventType)
			}
		})
	}
}

func TestType_IsValid_Unknown(t *testing.T) {
	for _, tt := range []Type{"", "instance.created", "WORKORDER.CREATED"} {
		if tt.IsValid() {
			t.Errorf("Type(%q).IsValid() = true, want false", tt)
		}
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		PayloadNewStatus: "approved",
	}

	event := NewEvent(TypeWorkOrderStatusChanged, 12, 34, payload)

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeWorkOrderStatusChanged {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeWorkOrderStatusChanged)
	}
	if event.ReimbursementID != 12 || event.WorkOrderID != 34 {
		t.Errorf("Event ids = (%d, %d), want (12, 34)", event.ReimbursementID, event.WorkOrderID)
	}
	if event.GetPayloadString(PayloadNewStatus) != "approved" {
		t.Errorf("Event Payload[%s] = %v", PayloadNewStatus, event.Payload[PayloadNewStatus])
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Error("Event CorrelationID should be set and distinct from ID")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypeWorkOrderCreated, 1, 2, nil)
	if event.Payload == nil {
		t.Fatal("Event Payload should default to an empty map")
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	event := NewEvent(TypeWorkOrderCreated, 1, 2, map[string]interface{}{
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
		"string":  "not a number",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"int64", 100},
		{"int", 50},
		{"float64", 75},
		{"string", 0},
		{"nonexistent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := event.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_GetPayloadIDs(t *testing.T) {
	ids := []int64{3, 1, 2}
	event := NewEvent(TypeSelectionChanged, 1, 2, map[string]interface{}{
		PayloadExpenseLineIDs: ids,
		"decoded":             []interface{}{float64(4), 5, int64(6), "x"},
		"wrong":               "1,2,3",
	})

	got := event.GetPayloadIDs(PayloadExpenseLineIDs)
	if len(got) != 3 || got[0] != 3 || got[2] != 2 {
		t.Errorf("GetPayloadIDs() = %v, want %v", got, ids)
	}

	// Returned slice is a copy
	got[0] = 99
	if ids[0] != 3 {
		t.Error("GetPayloadIDs() should not alias the payload slice")
	}

	decoded := event.GetPayloadIDs("decoded")
	if len(decoded) != 3 || decoded[0] != 4 || decoded[1] != 5 || decoded[2] != 6 {
		t.Errorf("GetPayloadIDs(decoded) = %v, want [4 5 6]", decoded)
	}

	if event.GetPayloadIDs("wrong") != nil || event.GetPayloadIDs("missing") != nil {
		t.Error("GetPayloadIDs() should return nil for unsupported or missing keys")
	}
}
