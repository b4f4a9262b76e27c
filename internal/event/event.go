// Package event delivers structured audit events for trust lifecycle
// transitions. Every transition produces one event per involved wallet;
// delivery failures are reported to the caller but are never allowed to
// fail the operation that produced the event.
package event

import (
	"context"

	"github.com/google/uuid"
)

// Type identifies the kind of trust lifecycle event.
type Type string

const (
	TypeTrustRequest                      Type = "trust_request"
	TypeTrustRequestGranted               Type = "trust_request_granted"
	TypeTrustRequestCancelledByTarget     Type = "trust_request_cancelled_by_target"
	TypeTrustRequestCancelledByOriginator Type = "trust_request_cancelled_by_originator"
)

// Event is a single audit record addressed to one wallet.
type Event struct {
	WalletID uuid.UUID         `json:"wallet_id"`
	Type     Type              `json:"type"`
	Payload  map[string]string `json:"payload"`
}

// Notifier is the outbound audit sink consumed by the trust service.
type Notifier interface {
	LogEvent(ctx context.Context, ev Event) error
}
