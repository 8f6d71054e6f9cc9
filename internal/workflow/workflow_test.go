package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ada/internal/domain"
)

type note struct {
	transport domain.Transport
	Body      string
}

func (n note) Transport() domain.Transport { return n.transport }

// echoWorkflow fetches its "location_id" back and formats it into a note.
type echoWorkflow struct {
	name       string
	transports []domain.Transport
	fetch      func(ctx context.Context, p TypedParams) (RawData, error)
	format     func(raw RawData, t domain.Transport) (Payload, error)
	fetched    int
}

func newEcho(name string) *echoWorkflow {
	return &echoWorkflow{name: name, transports: []domain.Transport{domain.TransportEmail}}
}

func (w *echoWorkflow) Name() string               { return w.name }
func (w *echoWorkflow) HumanName() string          { return "Echo" }
func (w *echoWorkflow) Requirements() Requirements { return Requirements{"location_id": TypeInteger} }
func (w *echoWorkflow) Transports() []domain.Transport {
	return w.transports
}

func (w *echoWorkflow) Fetch(ctx context.Context, p TypedParams) (RawData, error) {
	w.fetched++
	if w.fetch != nil {
		return w.fetch(ctx, p)
	}
	return p.Int("location_id"), nil
}

func (w *echoWorkflow) Format(raw RawData, t domain.Transport) (Payload, error) {
	if w.format != nil {
		return w.format(raw, t)
	}
	return note{transport: t, Body: fmt.Sprintf("location %d", raw.(int64))}, nil
}

func newPipeline(t *testing.T, ws ...Workflow) *Pipeline {
	t.Helper()
	r := NewRegistry()
	for _, w := range ws {
		require.NoError(t, r.Register(w))
	}
	return NewPipeline(r, 200*time.Millisecond)
}

func TestValidateParams_CoercesNumericString(t *testing.T) {
	typed, err := ValidateParams(Requirements{"location_id": TypeInteger}, domain.Params{"location_id": "42", "extra": true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), typed.Int("location_id"))
	_, kept := typed["extra"]
	assert.False(t, kept)
}

func TestValidateParams_MissingKey(t *testing.T) {
	_, err := ValidateParams(Requirements{"location_id": TypeInteger}, domain.Params{})
	var fe domain.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 1)
	assert.Equal(t, "location_id", fe[0].Field)
}

func TestValidateParams_ReportsEveryKey(t *testing.T) {
	req := Requirements{
		"user_id": TypeInteger,
		"ratio":   TypeFloat,
		"loud":    TypeBoolean,
		"tag":     TypeString,
	}
	_, err := ValidateParams(req, domain.Params{"user_id": "abc", "ratio": "x", "loud": "maybe", "tag": 3.0})
	var fe domain.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Len(t, fe, 4)
	for _, f := range []string{"user_id", "ratio", "loud", "tag"} {
		assert.True(t, fe.Has(f), f)
	}
}

func TestValidateParams_Coercions(t *testing.T) {
	tests := []struct {
		typ  ParamType
		in   any
		want any
		ok   bool
	}{
		{TypeInteger, 7.0, int64(7), true},
		{TypeInteger, 7.5, nil, false},
		{TypeInteger, " 12 ", int64(12), true},
		{TypeInteger, 1e19, nil, false},
		{TypeInteger, -1e19, nil, false},
		{TypeInteger, 1e300, nil, false},
		{TypeInteger, json.Number("1e19"), nil, false},
		{TypeInteger, json.Number("9007199254740993"), int64(9007199254740993), true},
		{TypeInteger, json.Number("7.0"), int64(7), true},
		{TypeFloat, "1.5", 1.5, true},
		{TypeFloat, 3, 3.0, true},
		{TypeBoolean, "true", true, true},
		{TypeBoolean, 1.0, nil, false},
		{TypeString, "uk/uk", "uk/uk", true},
		{TypeString, 1.0, nil, false},
	}
	for _, tt := range tests {
		typed, err := ValidateParams(Requirements{"k": tt.typ}, domain.Params{"k": tt.in})
		if !tt.ok {
			assert.Error(t, err, "%s %v", tt.typ, tt.in)
			continue
		}
		require.NoError(t, err, "%s %v", tt.typ, tt.in)
		assert.Equal(t, tt.want, typed["k"])
	}
}

func TestRegistry_RejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEcho("echo")))
	assert.Error(t, r.Register(newEcho("echo")), "duplicate")
	assert.Error(t, r.Register(newEcho("")), "empty name")

	bad := newEcho("pigeon")
	bad.transports = []domain.Transport{"carrier-pigeon"}
	assert.Error(t, r.Register(bad))

	ts, ok := r.Transports("echo")
	assert.True(t, ok)
	assert.Equal(t, []domain.Transport{domain.TransportEmail}, ts)
	_, ok = r.Transports("nope")
	assert.False(t, ok)
}

func TestRegistry_AllSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newEcho("b"), newEcho("a"), newEcho("c"))
	var names []string
	for _, w := range r.All() {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestPipeline_Success(t *testing.T) {
	w := newEcho("echo")
	p := newPipeline(t, w)
	payload, err := p.Run(context.Background(), "echo", domain.Params{"location_id": "42"}, domain.TransportEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.TransportEmail, payload.Transport())
	assert.Equal(t, 1, w.fetched)
}

func TestPipeline_UnknownWorkflow(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Run(context.Background(), "nope", nil, domain.TransportEmail)
	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageValidation, stage)
	assert.ErrorIs(t, err, ErrUnknownWorkflow)
}

func TestPipeline_InvalidParamsNeverFetch(t *testing.T) {
	w := newEcho("echo")
	p := newPipeline(t, w)
	_, err := p.Run(context.Background(), "echo", domain.Params{}, domain.TransportEmail)
	stage, _ := StageOf(err)
	assert.Equal(t, StageValidation, stage)
	assert.Zero(t, w.fetched)

	var fe domain.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Has("location_id"))
}

func TestPipeline_FetchFailure(t *testing.T) {
	w := newEcho("echo")
	w.fetch = func(context.Context, TypedParams) (RawData, error) { return nil, errors.New("api down") }
	formatted := false
	w.format = func(RawData, domain.Transport) (Payload, error) { formatted = true; return nil, nil }

	_, err := newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
	stage, _ := StageOf(err)
	assert.Equal(t, StageFetch, stage)
	assert.Contains(t, err.Error(), "api down")
	assert.False(t, formatted)
}

func TestPipeline_FetchTimeoutIgnoringContext(t *testing.T) {
	w := newEcho("slow")
	release := make(chan struct{})
	defer close(release)
	w.fetch = func(context.Context, TypedParams) (RawData, error) {
		<-release
		return int64(1), nil
	}

	start := time.Now()
	_, err := newPipeline(t, w).Run(context.Background(), "slow", domain.Params{"location_id": 1}, domain.TransportEmail)
	stage, _ := StageOf(err)
	assert.Equal(t, StageFetch, stage)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPipeline_FetchPanicIsFetchFailure(t *testing.T) {
	w := newEcho("boom")
	w.fetch = func(context.Context, TypedParams) (RawData, error) { panic("kaboom") }
	_, err := newPipeline(t, w).Run(context.Background(), "boom", domain.Params{"location_id": 1}, domain.TransportEmail)
	stage, _ := StageOf(err)
	assert.Equal(t, StageFetch, stage)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestPipeline_FormatFailures(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		w := newEcho("echo")
		w.format = func(RawData, domain.Transport) (Payload, error) { return nil, errors.New("bad template") }
		_, err := newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
		stage, _ := StageOf(err)
		assert.Equal(t, StageFormat, stage)
	})
	t.Run("panic", func(t *testing.T) {
		w := newEcho("echo")
		w.format = func(RawData, domain.Transport) (Payload, error) { panic("nil map") }
		_, err := newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
		stage, _ := StageOf(err)
		assert.Equal(t, StageFormat, stage)
	})
	t.Run("wrong payload transport", func(t *testing.T) {
		w := newEcho("echo")
		w.format = func(RawData, domain.Transport) (Payload, error) { return note{transport: "sms"}, nil }
		_, err := newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
		assert.ErrorIs(t, err, ErrIncompatiblePayload)
	})
	t.Run("typed nil payload", func(t *testing.T) {
		w := newEcho("echo")
		w.format = func(RawData, domain.Transport) (Payload, error) {
			var p *note
			return p, nil
		}
		var err error
		require.NotPanics(t, func() {
			_, err = newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
		})
		stage, ok := StageOf(err)
		require.True(t, ok)
		assert.Equal(t, StageFormat, stage)
	})
	t.Run("unsupported transport", func(t *testing.T) {
		w := newEcho("echo")
		w.transports = nil
		_, err := newPipeline(t, w).Run(context.Background(), "echo", domain.Params{"location_id": 1}, domain.TransportEmail)
		stage, _ := StageOf(err)
		assert.Equal(t, StageFormat, stage)
		assert.ErrorIs(t, err, ErrUnsupportedTransport)
	})
}

func TestPipeline_RawDataSkipsFormat(t *testing.T) {
	w := newEcho("echo")
	w.format = func(RawData, domain.Transport) (Payload, error) { panic("must not format") }
	raw, err := newPipeline(t, w).RawData(context.Background(), "echo", domain.Params{"location_id": "9"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), raw)
}
