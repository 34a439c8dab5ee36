package dispatcher

import (
	"context"

	"github.com/garyjia/expense-audit/internal/domain/event"
)

// Handler processes domain events. Handlers run inside the publisher's
// transaction; returning an error rolls the whole unit of work back.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
