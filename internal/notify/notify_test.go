package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id string, status Status) StatusEvent {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return StatusEvent{TaskID: id, WorkflowName: "send_news_by_tag", Transport: "email", Trigger: TriggerScheduled, Status: status, StartedAt: now, FinishedAt: now.Add(time.Second)}
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) Name() string { return "collector" }
func (c *collector) Handle(_ context.Context, e StatusEvent) error {
	c.mu.Lock()
	c.seen = append(c.seen, e.TaskID)
	c.mu.Unlock()
	return nil
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func TestHub_FanOutInOrder(t *testing.T) {
	h := NewHub(8).WithLogger(zerolog.Nop())
	a, b := &collector{}, &collector{}
	h.Subscribe(a)
	h.Subscribe(b)
	go h.Run(context.Background())

	h.Publish(event("1", StatusSuccess))
	h.Publish(event("2", StatusFailure))
	require.NoError(t, h.Close(context.Background()))

	assert.Equal(t, []string{"1", "2"}, a.ids())
	assert.Equal(t, []string{"1", "2"}, b.ids())
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(2).WithLogger(zerolog.Nop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(event("x", StatusSuccess))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Equal(t, uint64(8), h.Dropped())
}

func TestHub_SubscriberFailuresAreIsolated(t *testing.T) {
	h := NewHub(4).WithLogger(zerolog.Nop())
	h.Subscribe(SubscriberFunc{ID: "panics", Fn: func(context.Context, StatusEvent) error { panic("boom") }})
	h.Subscribe(SubscriberFunc{ID: "errors", Fn: func(context.Context, StatusEvent) error { return errors.New("nope") }})
	c := &collector{}
	h.Subscribe(c)
	go h.Run(context.Background())

	h.Publish(event("1", StatusSuccess))
	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, []string{"1"}, c.ids())
}

func TestHub_CancelDrainsQueue(t *testing.T) {
	h := NewHub(4).WithLogger(zerolog.Nop())
	c := &collector{}
	h.Subscribe(c)
	h.Publish(event("1", StatusSuccess))
	h.Publish(event("2", StatusSuccess))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)
	assert.ElementsMatch(t, []string{"1", "2"}, c.ids())
}

type recordingStore struct{ got []StatusEvent }

func (r *recordingStore) RecordEvent(_ context.Context, e StatusEvent) (StatusEvent, error) {
	r.got = append(r.got, e)
	e.ID = int64(len(r.got))
	return e, nil
}

func TestStoreAndLogSubscribers(t *testing.T) {
	st := &recordingStore{}
	require.NoError(t, StoreSubscriber{Store: st}.Handle(context.Background(), event("1", StatusSuccess)))
	assert.Len(t, st.got, 1)

	var buf bytes.Buffer
	failed := event("2", StatusFailure)
	failed.Stage, failed.Reason = "fetch", "api down"
	require.NoError(t, LogSubscriber{Logger: zerolog.New(&buf)}.Handle(context.Background(), failed))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"stage":"fetch"`)
}

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
	failNext  bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failNext {
		f.failNext = false
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

type fakeConnection struct{ ch *fakeChannel }

func (f fakeConnection) Channel() (amqpChannel, error) { return f.ch, nil }
func (f fakeConnection) Close() error                  { return nil }

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	dials := 0
	orig := dialAMQP
	dialAMQP = func(string) (amqpConnection, error) {
		dials++
		return fakeConnection{ch: ch}, nil
	}
	t.Cleanup(func() { dialAMQP = orig })

	p := NewAMQPPublisher("amqp://localhost", "ada.events")
	require.NoError(t, p.Handle(context.Background(), event("1", StatusSuccess)))
	require.NoError(t, p.Handle(context.Background(), event("2", StatusFailure)))
	assert.Equal(t, 1, dials)
	assert.Equal(t, []string{"ada.events:topic"}, ch.declared)
	assert.Equal(t, []string{"task.success", "task.failure"}, ch.keys)

	var decoded StatusEvent
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, "1", decoded.TaskID)
	assert.NotEmpty(t, ch.published[0].MessageId)

	ch.failNext = true
	assert.Error(t, p.Handle(context.Background(), event("3", StatusSuccess)))
	require.NoError(t, p.Handle(context.Background(), event("4", StatusSuccess)))
	assert.Equal(t, 2, dials)
	require.NoError(t, p.Close())
}
