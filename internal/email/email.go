// Package email holds the email payload produced by workflows and the
// adapters that send it.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"ada/internal/domain"
	"ada/internal/workflow"
)

// Email is a transport-ready message. It is the payload every workflow
// formats for the email transport.
type Email struct {
	To       []string `json:"to" yaml:"to" validate:"required,min=1,dive,email"`
	CC       []string `json:"cc,omitempty" yaml:"cc,omitempty" validate:"dive,email"`
	BCC      []string `json:"bcc,omitempty" yaml:"bcc,omitempty" validate:"dive,email"`
	ReplyTo  string   `json:"reply_to,omitempty" yaml:"reply_to,omitempty" validate:"omitempty,email"`
	Subject  string   `json:"subject" yaml:"subject" validate:"required"`
	BodyHTML string   `json:"body_html" yaml:"body_html"`
	BodyText string   `json:"body_text" yaml:"body_text"`
}

func (Email) Transport() domain.Transport { return domain.TransportEmail }

var _ workflow.Payload = Email{}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// Validate checks recipients and subject, and that at least one body is set.
func (e Email) Validate() error {
	if err := structValidator().Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid email: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	if e.BodyHTML == "" && e.BodyText == "" {
		return errors.New("invalid email: empty body")
	}
	return nil
}

// Adapter sends an email synchronously.
type Adapter interface {
	Name() string
	Send(ctx context.Context, e Email) error
}

// Deliverer hands email payloads to an Adapter.
type Deliverer struct {
	adapter Adapter
}

func NewDeliverer(a Adapter) *Deliverer { return &Deliverer{adapter: a} }

func (d *Deliverer) Deliver(ctx context.Context, p workflow.Payload) error {
	var e Email
	switch v := p.(type) {
	case Email:
		e = v
	case *Email:
		if v == nil {
			return errors.New("nil email")
		}
		e = *v
	default:
		return fmt.Errorf("expected email payload, got %T", p)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := d.adapter.Send(ctx, e); err != nil {
		return fmt.Errorf("%s: %w", d.adapter.Name(), err)
	}
	return nil
}
