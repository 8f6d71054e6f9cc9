package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/notify"
	"ada/internal/workflow"
)

// stageDispatch labels failures that escaped every pipeline stage, such as
// a panic inside a deliverer.
const stageDispatch = "dispatch"

// Deliverer routes a payload to its transport.
type Deliverer interface {
	Deliver(ctx context.Context, t domain.Transport, p workflow.Payload) error
}

// Runner executes a single scheduled task: preview, raw data, or a full run
// with delivery.
type Runner struct {
	pipeline  *workflow.Pipeline
	deliverer Deliverer
	sink      notify.Sink
	clock     clock.Clock
}

func NewRunner(p *workflow.Pipeline, d Deliverer, sink notify.Sink, clk clock.Clock) *Runner {
	if sink == nil {
		sink = notify.Discard{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Runner{pipeline: p, deliverer: d, sink: sink, clock: clk}
}

// Preview runs the pipeline without delivering.
func (r *Runner) Preview(ctx context.Context, t domain.ScheduledTask) (workflow.Payload, error) {
	return r.pipeline.Run(ctx, t.WorkflowName, t.Params, t.Transport)
}

// RawData returns what the workflow fetches for t, before formatting.
func (r *Runner) RawData(ctx context.Context, t domain.ScheduledTask) (workflow.RawData, error) {
	return r.pipeline.RawData(ctx, t.WorkflowName, t.Params)
}

// Run executes the pipeline and delivers the payload.
func (r *Runner) Run(ctx context.Context, t domain.ScheduledTask) (workflow.Payload, error) {
	payload, err := r.pipeline.Run(ctx, t.WorkflowName, t.Params, t.Transport)
	if err != nil {
		return nil, err
	}
	if err := r.deliverer.Deliver(ctx, t.Transport, payload); err != nil {
		return nil, &workflow.ExecutionError{Stage: workflow.StageDelivery, Err: err}
	}
	return payload, nil
}

// Trigger runs t and publishes exactly one status event for it, whatever
// the outcome.
func (r *Runner) Trigger(ctx context.Context, t domain.ScheduledTask, trigger notify.Trigger, scheduledFor time.Time) (payload workflow.Payload, err error) {
	started := r.clock.Now()
	if scheduledFor.IsZero() {
		scheduledFor = started
	}
	defer func() {
		stage := ""
		if rec := recover(); rec != nil {
			payload, err = nil, fmt.Errorf("panic: %v", rec)
			stage = stageDispatch
		}
		r.sink.Publish(statusEvent(t, trigger, scheduledFor, started, r.clock.Now(), stage, err))
	}()
	return r.Run(ctx, t)
}

func statusEvent(t domain.ScheduledTask, trigger notify.Trigger, scheduledFor, started, finished time.Time, stage string, err error) notify.StatusEvent {
	e := notify.StatusEvent{
		TaskID:       t.ID,
		WorkflowName: t.WorkflowName,
		Transport:    string(t.Transport),
		Trigger:      trigger,
		Status:       notify.StatusSuccess,
		ScheduledFor: scheduledFor,
		StartedAt:    started,
		FinishedAt:   finished,
	}
	if err == nil {
		return e
	}
	e.Status = notify.StatusFailure
	e.Stage = stage
	e.Reason = err.Error()
	var ee *workflow.ExecutionError
	if errors.As(err, &ee) {
		e.Stage, e.Reason = string(ee.Stage), ee.Err.Error()
	}
	if e.Stage == "" {
		e.Stage = stageDispatch
	}
	return e
}
