package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by the engine
type Event struct {
	ID              string                 `json:"id"`
	Type            Type                   `json:"type"`
	ReimbursementID int64                  `json:"reimbursement_id"`
	WorkOrderID     int64                  `json:"work_order_id,omitempty"`
	Payload         map[string]interface{} `json:"payload"`
	Timestamp       time.Time              `json:"timestamp"`
	CorrelationID   string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID, correlation ID and timestamp
func NewEvent(eventType Type, reimbursementID, workOrderID int64, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		ReimbursementID: reimbursementID,
		WorkOrderID:     workOrderID,
		Payload:         payload,
		Timestamp:       time.Now(),
		CorrelationID:   uuid.NewString(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadIDs retrieves a list of ids from the payload
func (e *Event) GetPayloadIDs(key string) []int64 {
	val, ok := e.Payload[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []int64:
		return append([]int64{}, v...)
	case []interface{}:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int64:
				ids = append(ids, n)
			case int:
				ids = append(ids, int64(n))
			case float64:
				ids = append(ids, int64(n))
			}
		}
		return ids
	}
	return nil
}
