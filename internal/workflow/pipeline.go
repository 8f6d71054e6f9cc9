package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ada/internal/domain"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageValidation Stage = "validation"
	StageFetch      Stage = "fetch"
	StageFormat     Stage = "format"
	StageDelivery   Stage = "delivery"
)

var (
	ErrUnknownWorkflow      = errors.New("unknown workflow")
	ErrUnsupportedTransport = errors.New("transport not supported by workflow")
	ErrIncompatiblePayload  = errors.New("payload does not match requested transport")
	ErrTimeout              = errors.New("timed out")
)

// ExecutionError is the single failure type produced by a pipeline run.
type ExecutionError struct {
	Stage Stage
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) error {
	return &ExecutionError{Stage: stage, Err: err}
}

// StageOf returns the stage of an ExecutionError anywhere in err's chain.
func StageOf(err error) (Stage, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Stage, true
	}
	return "", false
}

// Pipeline runs workflows by name: validation, fetch, format.
type Pipeline struct {
	registry *Registry
	timeout  time.Duration
}

// NewPipeline returns a pipeline bounding each Fetch by timeout. A zero
// timeout leaves Fetch bounded only by the caller's context.
func NewPipeline(registry *Registry, timeout time.Duration) *Pipeline {
	return &Pipeline{registry: registry, timeout: timeout}
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// Run executes the workflow and returns a payload for transport. It stops at
// the first failing stage.
func (p *Pipeline) Run(ctx context.Context, name string, params domain.Params, transport domain.Transport) (Payload, error) {
	w, typed, err := p.prepare(name, params)
	if err != nil {
		return nil, err
	}

	raw, err := p.fetch(ctx, w, typed)
	if err != nil {
		return nil, err
	}

	if !Supports(w, transport) {
		return nil, fail(StageFormat, fmt.Errorf("%w: %s does not support %q", ErrUnsupportedTransport, name, transport))
	}
	payload, err := format(w, raw, transport)
	if err != nil {
		return nil, fail(StageFormat, err)
	}
	return payload, nil
}

// RawData runs validation and fetch only.
func (p *Pipeline) RawData(ctx context.Context, name string, params domain.Params) (RawData, error) {
	w, typed, err := p.prepare(name, params)
	if err != nil {
		return nil, err
	}
	return p.fetch(ctx, w, typed)
}

func (p *Pipeline) prepare(name string, params domain.Params) (Workflow, TypedParams, error) {
	w, ok := p.registry.Resolve(name)
	if !ok {
		return nil, nil, fail(StageValidation, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name))
	}
	typed, err := ValidateParams(w.Requirements(), params)
	if err != nil {
		return nil, nil, fail(StageValidation, err)
	}
	return w, typed, nil
}

type fetchResult struct {
	raw RawData
	err error
}

// fetch runs Fetch in its own goroutine so a workflow that ignores its
// context still yields a timeout on schedule.
func (p *Pipeline) fetch(ctx context.Context, w Workflow, params TypedParams) (RawData, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		raw, err := w.Fetch(ctx, params)
		done <- fetchResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fail(StageFetch, fmt.Errorf("%w: %v", ErrTimeout, res.err))
			}
			return nil, fail(StageFetch, res.err)
		}
		return res.raw, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fail(StageFetch, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err()))
		}
		return nil, fail(StageFetch, ctx.Err())
	}
}

// format runs Format and the payload transport check under one recover.
func format(w Workflow, raw RawData, transport domain.Transport) (payload Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	payload, err = w.Format(raw, transport)
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.Transport() != transport {
		return nil, fmt.Errorf("%w: wanted %q", ErrIncompatiblePayload, transport)
	}
	return payload, nil
}
