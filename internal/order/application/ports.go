package application

import (
	"context"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	"github.com/orderflow/inventory-engine/internal/order/domain"
)

// OrderRepository executes each mutation as one atomic unit of work
// spanning the order rows and the stock ledger.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) ([]invdomain.StockChange, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error)
	Cancel(ctx context.Context, id string) (domain.Order, []invdomain.StockChange, error)
}
