package domain

import (
	"context"

	"github.com/vladislavdragonenkov/salesorders/internal/query"
)

// OrderRepository describes the order lifecycle operations an HTTP layer calls into.
type OrderRepository interface {
	// List returns a page of orders; an empty slice when nothing matches.
	List(ctx context.Context, opts query.Options) ([]OrderSummary, error)
	// ListByCustomer is List scoped to one customer, sorted by shipped date unless overridden.
	ListByCustomer(ctx context.Context, customerID string, opts query.Options) ([]OrderSummary, error)
	// Get returns the order or ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// Details returns the order's line items in sequence order.
	Details(ctx context.Context, id int64) ([]OrderDetail, error)
	// GetWithDetails returns ErrOrderNotFound without querying details when the order is absent.
	GetWithDetails(ctx context.Context, id int64) (OrderWithDetails, error)
	// Create inserts the order and all details atomically and returns the generated id.
	Create(ctx context.Context, fields OrderFields, details []NewOrderDetail) (int64, error)
	// Update applies fields and reconciles details atomically.
	Update(ctx context.Context, id int64, fields OrderFields, details []DetailChange) error
	// Delete removes the order and its details; it reports the number of orders removed.
	Delete(ctx context.Context, id int64) (int64, error)
}

// CustomerRepository is the read side for customers.
type CustomerRepository interface {
	List(ctx context.Context, opts query.Options) ([]Customer, error)
	Get(ctx context.Context, id string) (CustomerDetails, error)
}

// SupplierRepository is the read side for suppliers.
type SupplierRepository interface {
	List(ctx context.Context, opts query.Options) ([]Supplier, error)
	Get(ctx context.Context, id int64) (SupplierDetails, error)
}

// OrderEvents receives notifications about committed order writes.
type OrderEvents interface {
	Publish(ctx context.Context, event OrderEvent) error
}
