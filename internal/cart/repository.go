package cart

import (
	"context"

	"github.com/osanz/go_market/internal/domain"
)

// Repository defines the cart persistence operations. Consumers define this
// interface, not the MongoDB implementation.
//
// The surface is deliberately whole-aggregate: every mutation recomputes the
// totals and replaces the stored document in one upsert, so a mutated item
// list can never be observed alongside stale totals.
type Repository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}
