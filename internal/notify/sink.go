// Package notify delivers fire-and-forget user notifications. Failures are
// logged and never block or fail the core operation that triggered them.
package notify

import "context"

type Sink interface {
	Notify(ctx context.Context, userID string, eventType string, payload any)
}

// NopSink discards every notification. Used in tests and when no broker is
// configured.
type NopSink struct{}

func (NopSink) Notify(context.Context, string, string, any) {}
