// Package notify delivers click events to external channels. Delivery is
// best-effort: nothing in this package reports a failure back to the request
// that produced the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClickEvent describes one successful resolution of a short code.
type ClickEvent struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	LongURL   string    `json:"long_url"`
	ClientIP  string    `json:"client_ip"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink is an external channel that accepts click events.
type Sink interface {
	Name() string
	Notify(ctx context.Context, evt ClickEvent) error
}

// Discard accepts every event and does nothing. It stands in when no channel
// is configured.
type Discard struct{}

func (Discard) Name() string                             { return "discard" }
func (Discard) Notify(context.Context, ClickEvent) error { return nil }
