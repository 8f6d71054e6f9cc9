package email

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"ada/internal/httpclient"
)

const DefaultSendgridURL = "https://api.sendgrid.com/v3/mail/send"

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	CC      []sgAddress `json:"cc,omitempty"`
	BCC     []sgAddress `json:"bcc,omitempty"`
	Subject string      `json:"subject"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SendgridPayload is the v3 mail/send request body.
type SendgridPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	ReplyTo          *sgAddress          `json:"reply_to,omitempty"`
	Content          []sgContent         `json:"content"`
}

// Sender is the From identity used for every outgoing email.
type Sender struct {
	Email string
	Name  string
}

// ToSendgridPayload converts e into a body that can be POSTed to Sendgrid
// directly. Plain text content comes before HTML, as the API requires.
func ToSendgridPayload(e Email, from Sender) SendgridPayload {
	p := SendgridPayload{
		Personalizations: []sgPersonalization{{
			To:      addresses(e.To),
			CC:      addresses(e.CC),
			BCC:     addresses(e.BCC),
			Subject: e.Subject,
		}},
		From: sgAddress{Email: from.Email, Name: from.Name},
	}
	if e.ReplyTo != "" {
		p.ReplyTo = &sgAddress{Email: e.ReplyTo}
	}
	if e.BodyText != "" {
		p.Content = append(p.Content, sgContent{Type: "text/plain", Value: e.BodyText})
	}
	if e.BodyHTML != "" {
		p.Content = append(p.Content, sgContent{Type: "text/html", Value: e.BodyHTML})
	}
	return p
}

func addresses(emails []string) []sgAddress {
	if len(emails) == 0 {
		return nil
	}
	out := make([]sgAddress, len(emails))
	for i, e := range emails {
		out[i] = sgAddress{Email: e}
	}
	return out
}

type SendgridConfig struct {
	APIKey     string
	BaseURL    string
	From       Sender
	RatePerSec float64
}

// SendgridAdapter posts emails to the Sendgrid v3 API, throttled to
// RatePerSec sends per second.
type SendgridAdapter struct {
	client  *httpclient.Client
	url     string
	from    Sender
	limiter *rate.Limiter
}

func NewSendgridAdapter(cfg SendgridConfig, client *httpclient.Client) *SendgridAdapter {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultSendgridURL
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &SendgridAdapter{
		client:  client.With(httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey)),
		url:     url,
		from:    cfg.From,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (a *SendgridAdapter) Name() string { return "sendgrid" }

func (a *SendgridAdapter) Send(ctx context.Context, e Email) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return a.client.PostJSON(ctx, a.url, ToSendgridPayload(e, a.from), nil)
}
