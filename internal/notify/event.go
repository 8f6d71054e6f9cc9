// Package notify carries task status events from the scheduler to whoever
// listens: the log, the event history store and an optional AMQP exchange.
package notify

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// StatusEvent reports the outcome of one task execution. Stage and Reason
// are set on failure only.
type StatusEvent struct {
	ID           int64     `json:"id,omitempty" yaml:"id,omitempty"`
	TaskID       string    `json:"task_id" yaml:"task_id"`
	WorkflowName string    `json:"workflow_name" yaml:"workflow_name"`
	Transport    string    `json:"transport" yaml:"transport"`
	Trigger      Trigger   `json:"trigger" yaml:"trigger"`
	Status       Status    `json:"status" yaml:"status"`
	Stage        string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	Reason       string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for" yaml:"scheduled_for"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
}

func (e StatusEvent) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

// Sink accepts status events. Publish must not block the caller.
type Sink interface {
	Publish(e StatusEvent)
}

// Subscriber handles events fanned out by a Hub.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, e StatusEvent) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	ID string
	Fn func(ctx context.Context, e StatusEvent) error
}

func (s SubscriberFunc) Name() string { return s.ID }
func (s SubscriberFunc) Handle(ctx context.Context, e StatusEvent) error {
	return s.Fn(ctx, e)
}

// Recorder is an in-memory Sink.
type Recorder struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *Recorder) Publish(e StatusEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusEvent(nil), r.events...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(StatusEvent) {}
