package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/osanz/go_market/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Repository persists order aggregates. UpdateOrder is a conditional write on
// the order's version; a concurrent mutation surfaces as
// domain.ErrVersionConflict and is retried by the service.
type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrdersByVendorID(ctx context.Context, vendorID int64) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	RunMigrations(*Credentials) error
	Close() error
}
