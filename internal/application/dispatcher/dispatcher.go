package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-audit/internal/domain/event"
)

var (
	// ErrClosed is returned when dispatching on a closed dispatcher
	ErrClosed = errors.New("dispatcher is closed")

	// ErrCascadeTooDeep is returned when handlers keep publishing events past the depth limit
	ErrCascadeTooDeep = errors.New("event cascade too deep")
)

// DefaultMaxDepth bounds nested dispatches started from handlers
const DefaultMaxDepth = 8

// Dispatcher routes events to registered handlers synchronously, in
// registration order, on the caller's goroutine
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// SubscribeInfo registers a handler with its metadata
	SubscribeInfo(info HandlerInfo)

	// Dispatch sends the events in order to all registered handlers.
	// Returns the first error encountered; later handlers and events are skipped.
	Dispatch(ctx context.Context, events ...*event.Event) error

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects further dispatches
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type depthKey struct{}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger
	maxDepth int
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithMaxDepth sets the nested dispatch limit
func WithMaxDepth(depth int) Option {
	return func(d *eventDispatcher) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers a named handler for an event type
func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.SubscribeInfo(HandlerInfo{Name: name, EventType: eventType, Handler: handler})
}

// SubscribeInfo registers a handler with its metadata
func (d *eventDispatcher) SubscribeInfo(info HandlerInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info.Name == "" {
		info.Name = fmt.Sprintf("handler-%d", len(d.handlers[info.EventType]))
	}
	d.handlers[info.EventType] = append(d.handlers[info.EventType], info)

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", info.EventType,
			"handler_name", info.Name,
		)
	}
}

// Dispatch sends the events to all registered handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, events ...*event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= d.maxDepth {
		return fmt.Errorf("%w: depth %d", ErrCascadeTooDeep, depth)
	}
	nested := context.WithValue(ctx, depthKey{}, depth+1)

	for _, evt := range events {
		if evt == nil {
			continue
		}
		if err := d.dispatchOne(nested, evt, depth); err != nil {
			return err
		}
	}
	return nil
}

func (d *eventDispatcher) dispatchOne(ctx context.Context, evt *event.Event, depth int) error {
	d.mu.RLock()
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	if d.logger != nil {
		d.logger.Info("Dispatching event",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"reimbursement_id", evt.ReimbursementID,
			"work_order_id", evt.WorkOrderID,
			"depth", depth,
			"handler_count", len(handlers),
		)
	}

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// ListHandlers returns registered handlers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	handlers := d.handlers[eventType]
	result := make([]HandlerInfo, len(handlers))

	for i, h := range handlers {
		result[i] = HandlerInfo{
			Name:        h.Name,
			EventType:   h.EventType,
			Description: h.Description,
		}
	}

	return result
}

// Close shuts down the dispatcher
func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.Handler(ctx, evt)
}
