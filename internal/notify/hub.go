package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize  = 256
	subscriberTimeout = 10 * time.Second
)

// Hub is a Sink with a bounded in-memory queue. Publish never blocks: when
// the queue is full the event is dropped and counted. A single goroutine
// started by Run fans queued events out to subscribers in order.
type Hub struct {
	queue   chan StatusEvent
	dropped atomic.Uint64
	logger  zerolog.Logger

	mu   sync.RWMutex
	subs []Subscriber

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		queue:  make(chan StatusEvent, queueSize),
		logger: log.Logger.With().Str("component", "notify").Logger(),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (h *Hub) WithLogger(l zerolog.Logger) *Hub {
	h.logger = l.With().Str("component", "notify").Logger()
	return h
}

func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	h.subs = append(h.subs, s)
	h.mu.Unlock()
}

func (h *Hub) Publish(e StatusEvent) {
	select {
	case <-h.closed:
		h.dropped.Add(1)
		return
	default:
	}
	select {
	case h.queue <- e:
	default:
		h.dropped.Add(1)
		h.logger.Warn().Str("task_id", e.TaskID).Msg("status event dropped, queue full")
	}
}

// Dropped returns how many events were discarded so far.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Run dispatches events until ctx is cancelled or Close is called, then
// drains what is already queued.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case e := <-h.queue:
			h.dispatch(ctx, e)
		case <-ctx.Done():
			h.drain(context.WithoutCancel(ctx))
			return
		case <-h.closed:
			h.drain(ctx)
			return
		}
	}
}

func (h *Hub) drain(ctx context.Context) {
	for {
		select {
		case e := <-h.queue:
			h.dispatch(ctx, e)
		default:
			return
		}
	}
}

// Close stops accepting events and waits for Run to drain the queue, or for
// ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.closeOnce.Do(func() { close(h.closed) })
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) dispatch(ctx context.Context, e StatusEvent) {
	h.mu.RLock()
	subs := append([]Subscriber(nil), h.subs...)
	h.mu.RUnlock()

	for _, s := range subs {
		if err := h.deliver(ctx, s, e); err != nil {
			h.logger.Error().Err(err).Str("subscriber", s.Name()).Str("task_id", e.TaskID).Msg("subscriber failed")
		}
	}
}

func (h *Hub) deliver(ctx context.Context, s Subscriber, e StatusEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, subscriberTimeout)
	defer cancel()
	return s.Handle(ctx, e)
}
