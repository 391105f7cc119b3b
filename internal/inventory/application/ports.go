package application

import (
	"context"
	"time"

	"github.com/orderflow/inventory-engine/internal/inventory/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (domain.Product, error)
	GetAll(ctx context.Context) ([]domain.Product, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Deactivate(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int) (domain.StockChange, error)
}

// Cache is the optional read accelerator. Every method may fail without
// affecting correctness; callers log and move on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	RemoveByPattern(ctx context.Context, pattern string) error
}
