// Package workflow defines the contract every automation implements and the
// pipeline that executes it.
//
// A workflow declares the parameters it needs, separates gathering data
// (Fetch) from presenting it (Format), and names the transports its Format
// can produce. All side effects (database reads, HTTP calls, reading the
// clock) belong in Fetch, which keeps Format pure and testable without mocks.
package workflow

import (
	"context"

	"ada/internal/domain"
)

// RawData is whatever a workflow's Fetch produces for its own Format.
type RawData any

// Payload is a transport-ready result.
type Payload interface {
	Transport() domain.Transport
}

type Workflow interface {
	// Name is the registry key, e.g. "send_news_by_tag".
	Name() string
	HumanName() string
	Requirements() Requirements
	Transports() []domain.Transport
	Fetch(ctx context.Context, params TypedParams) (RawData, error)
	Format(raw RawData, transport domain.Transport) (Payload, error)
}

// Supports reports whether w can format for transport.
func Supports(w Workflow, transport domain.Transport) bool {
	for _, t := range w.Transports() {
		if t == transport {
			return true
		}
	}
	return false
}
