package engine

import (
	"context"

	invapp "github.com/orderflow/inventory-engine/internal/inventory/application"
	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	orderapp "github.com/orderflow/inventory-engine/internal/order/application"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
)

// Publisher emits one domain event to the external bus. Delivery is
// best-effort: the engine logs failures and never unwinds committed
// state because of them.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// Invalidator is the slice of the cache facade the engine needs after a
// committed order mutation.
type Invalidator interface {
	Remove(ctx context.Context, keys ...string) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, in orderapp.CreateOrderInput) (orderdomain.Order, []invdomain.StockChange, error)
	GetOrder(ctx context.Context, id string) (orderdomain.Order, error)
	UpdateStatus(ctx context.Context, id string, next orderdomain.Status) (orderdomain.Order, error)
	CancelOrder(ctx context.Context, id string) (orderdomain.Order, []invdomain.StockChange, error)
}

type CatalogService interface {
	CreateProduct(ctx context.Context, in invapp.CreateProductInput) (invdomain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in invapp.UpdateProductInput) (invdomain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (invdomain.StockChange, error)
	DeactivateProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (invdomain.Product, error)
	GetProducts(ctx context.Context) ([]invdomain.Product, error)
	GetLowStockProducts(ctx context.Context) ([]invdomain.Product, error)
}
