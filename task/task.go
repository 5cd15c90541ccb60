// Package task defines the background work queue used to decouple
// ingestion, routing, and delivery execution.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hookline/hookline/id"
)

// Kinds of background work.
const (
	KindRouteEvent      = "route_event"
	KindExecuteDelivery = "execute_delivery"
)

// Task is a unit of background work.
type Task interface {
	// Kind names the task type for dispatch.
	Kind() string
}

// RouteEvent asks the router to fan an event out to its connections.
type RouteEvent struct {
	EventID id.ID `json:"event_id"`
}

// Kind implements Task.
func (RouteEvent) Kind() string { return KindRouteEvent }

// ExecuteDelivery asks the executor to perform one delivery attempt.
type ExecuteDelivery struct {
	DeliveryID id.ID `json:"delivery_id"`
}

// Kind implements Task.
func (ExecuteDelivery) Kind() string { return KindExecuteDelivery }

// Queue schedules tasks for asynchronous execution. Implementations must
// be safe for concurrent use.
type Queue interface {
	// Enqueue schedules a task to run as soon as a worker is available.
	Enqueue(ctx context.Context, t Task) error

	// EnqueueAt schedules a task to run no earlier than the given time.
	EnqueueAt(ctx context.Context, t Task, at time.Time) error
}

// Handler processes one dequeued task.
type Handler interface {
	ProcessTask(ctx context.Context, t Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, t Task) error

// ProcessTask implements Handler.
func (f HandlerFunc) ProcessTask(ctx context.Context, t Task) error {
	return f(ctx, t)
}

// Mux dispatches tasks to handlers by kind.
type Mux struct {
	handlers map[string]Handler
}

// NewMux creates an empty task multiplexer.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers a handler for a task kind. Later registrations for the
// same kind replace earlier ones.
func (m *Mux) Handle(kind string, h Handler) {
	m.handlers[kind] = h
}

// HandleFunc registers a handler function for a task kind.
func (m *Mux) HandleFunc(kind string, f func(ctx context.Context, t Task) error) {
	m.Handle(kind, HandlerFunc(f))
}

// ProcessTask implements Handler by dispatching on the task's kind.
func (m *Mux) ProcessTask(ctx context.Context, t Task) error {
	h, ok := m.handlers[t.Kind()]
	if !ok {
		return fmt.Errorf("task: no handler registered for kind %q", t.Kind())
	}
	return h.ProcessTask(ctx, t)
}

// envelope is the serialized form used by persistent queues.
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes a task into its wire envelope.
func Marshal(t Task) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("task: marshal %s payload: %w", t.Kind(), err)
	}
	return json.Marshal(envelope{Kind: t.Kind(), Payload: payload})
}

// Unmarshal decodes a task from its wire envelope. Unknown kinds are an
// error so a queue never silently drops work.
func Unmarshal(data []byte) (Task, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("task: decode envelope: %w", err)
	}

	switch env.Kind {
	case KindRouteEvent:
		var t RouteEvent
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, fmt.Errorf("task: decode route_event: %w", err)
		}
		return t, nil
	case KindExecuteDelivery:
		var t ExecuteDelivery
		if err := json.Unmarshal(env.Payload, &t); err != nil {
			return nil, fmt.Errorf("task: decode execute_delivery: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("task: unknown task kind %q", env.Kind)
	}
}
