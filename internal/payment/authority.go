// Package payment wraps the external payment authority. The core records the
// intent reference and status and treats everything else as opaque.
package payment

import "context"

type IntentStatus string

const (
	StatusPending  IntentStatus = "PENDING"
	StatusApproved IntentStatus = "APPROVED"
	StatusRejected IntentStatus = "REJECTED"
)

type Authority interface {
	CreateIntent(ctx context.Context, amount float64) (intentRef string, err error)
	IntentStatus(ctx context.Context, intentRef string) (IntentStatus, error)
}
