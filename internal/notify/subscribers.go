package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSubscriber writes every event to the log.
type LogSubscriber struct {
	Logger zerolog.Logger
}

func (LogSubscriber) Name() string { return "log" }

func (s LogSubscriber) Handle(_ context.Context, e StatusEvent) error {
	ev := s.Logger.Info()
	if e.Status == StatusFailure {
		ev = s.Logger.Warn().Str("stage", e.Stage).Str("reason", e.Reason)
	}
	ev.Str("task_id", e.TaskID).
		Str("workflow", e.WorkflowName).
		Str("trigger", string(e.Trigger)).
		Str("status", string(e.Status)).
		Time("scheduled_for", e.ScheduledFor).
		Dur("took", e.Duration()).
		Msg("task finished")
	return nil
}

// EventRecorder persists status events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e StatusEvent) (StatusEvent, error)
}

// StoreSubscriber appends events to the history store.
type StoreSubscriber struct {
	Store EventRecorder
}

func (StoreSubscriber) Name() string { return "store" }

func (s StoreSubscriber) Handle(ctx context.Context, e StatusEvent) error {
	_, err := s.Store.RecordEvent(ctx, e)
	return err
}
