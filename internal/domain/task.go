package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Transport is the mechanism a formatted workflow result is delivered through.
type Transport string

const TransportEmail Transport = "email"

// AllTransports lists every transport the device knows how to deliver.
func AllTransports() []Transport { return []Transport{TransportEmail} }

// Valid reports whether t is a known transport.
func (t Transport) Valid() bool {
	for _, known := range AllTransports() {
		if t == known {
			return true
		}
	}
	return false
}

// Params are the workflow parameters stored with a task. Values are scalars
// (string, number, bool); they are checked against the workflow requirements
// only when the task runs.
type Params map[string]any

// ScheduledTask binds a workflow to a frequency, its params and a transport.
type ScheduledTask struct {
	ID           string    `json:"id" yaml:"id"`
	WorkflowName string    `json:"workflow_name" yaml:"workflow_name"`
	Frequency    Frequency `json:"frequency" yaml:"frequency"`
	Params       Params    `json:"params" yaml:"params"`
	Transport    Transport `json:"transport" yaml:"transport"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

func (t ScheduledTask) Matches(at time.Time) bool { return t.Frequency.Matches(at) }
func (t ScheduledTask) IsHourly() bool            { return t.Frequency.IsHourly() }
func (t ScheduledTask) IsDaily() bool             { return t.Frequency.IsDaily() }
func (t ScheduledTask) IsWeekly() bool            { return t.Frequency.IsWeekly() }

// TaskAttrs is a create or update request. Nil fields keep the base value;
// a non-nil Params replaces the stored params entirely.
type TaskAttrs struct {
	WorkflowName *string         `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	Frequency    *FrequencyAttrs `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Params       Params          `json:"params,omitempty" yaml:"params,omitempty"`
	Transport    *string         `json:"transport,omitempty" yaml:"transport,omitempty"`
}

// Catalog answers which workflows exist and which transports each supports.
type Catalog interface {
	Transports(workflowName string) ([]Transport, bool)
}

// ValidateTask applies attrs on top of base (the zero value for a new task)
// and validates the result against the catalog. Params are only checked for
// being scalars; their shape is validated by the workflow at run time.
func ValidateTask(base ScheduledTask, attrs TaskAttrs, catalog Catalog) (ScheduledTask, []FieldWarning, error) {
	t := base
	if attrs.WorkflowName != nil {
		t.WorkflowName = strings.TrimSpace(*attrs.WorkflowName)
	}
	if attrs.Transport != nil {
		t.Transport = Transport(strings.TrimSpace(*attrs.Transport))
	}
	if t.Transport == "" {
		t.Transport = TransportEmail
	}
	if attrs.Params != nil {
		t.Params = attrs.Params
	}
	if t.Params == nil {
		t.Params = Params{}
	}

	var errs FieldErrors

	freqAttrs := FrequencyAttrs{}
	if attrs.Frequency != nil {
		freqAttrs = *attrs.Frequency
	}
	freq, warnings, err := ValidateFrequency(t.Frequency, freqAttrs)
	if fe, ok := err.(FieldErrors); ok {
		errs = append(errs, fe.prefixed("frequency.")...)
	} else if err != nil {
		errs = append(errs, FieldError{Field: "frequency", Message: err.Error()})
	}
	t.Frequency = freq
	for i := range warnings {
		warnings[i].Field = "frequency." + warnings[i].Field
	}

	var (
		supported []Transport
		known     bool
	)
	if t.WorkflowName == "" {
		errs = append(errs, FieldError{Field: "workflow_name", Message: "is required"})
	} else if supported, known = catalog.Transports(t.WorkflowName); !known {
		errs = append(errs, FieldError{Field: "workflow_name", Message: fmt.Sprintf("unknown workflow %q", t.WorkflowName)})
	}

	switch {
	case !t.Transport.Valid():
		errs = append(errs, FieldError{Field: "transport", Message: fmt.Sprintf("unknown transport %q", t.Transport)})
	case known && !containsTransport(supported, t.Transport):
		errs = append(errs, FieldError{Field: "transport", Message: fmt.Sprintf("not supported by %s", t.WorkflowName)})
	}

	for k, v := range t.Params {
		if !isScalar(v) {
			errs = append(errs, FieldError{Field: "params." + k, Message: "must be a string, number or boolean"})
		}
	}

	if err := errs.OrNil(); err != nil {
		return t, warnings, err
	}
	return t, warnings, nil
}

func containsTransport(ts []Transport, t Transport) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}
