// Package transport routes formatted payloads to the mechanism that
// delivers them.
package transport

import (
	"context"
	"errors"
	"fmt"

	"ada/internal/domain"
	"ada/internal/workflow"
)

// ErrDelivery wraps every failure returned by Dispatcher.Deliver.
var ErrDelivery = errors.New("delivery failed")

// Deliverer sends one payload over a single transport.
type Deliverer interface {
	Deliver(ctx context.Context, p workflow.Payload) error
}

type Dispatcher struct {
	deliverers map[domain.Transport]Deliverer
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{deliverers: map[domain.Transport]Deliverer{}}
}

// Handle registers d for t, replacing any previous deliverer.
func (d *Dispatcher) Handle(t domain.Transport, dl Deliverer) *Dispatcher {
	d.deliverers[t] = dl
	return d
}

func (d *Dispatcher) Deliver(ctx context.Context, t domain.Transport, p workflow.Payload) error {
	dl, ok := d.deliverers[t]
	if !ok {
		return fmt.Errorf("%w: no deliverer for transport %q", ErrDelivery, t)
	}
	if p == nil {
		return fmt.Errorf("%w: nil payload", ErrDelivery)
	}
	if p.Transport() != t {
		return fmt.Errorf("%w: %q payload on %q transport", ErrDelivery, p.Transport(), t)
	}
	if err := dl.Deliver(ctx, p); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
