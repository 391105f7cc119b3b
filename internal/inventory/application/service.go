package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/orderflow/inventory-engine/internal/inventory/domain"
	"github.com/orderflow/inventory-engine/pkg/cache"
)

type Service struct {
	log   *slog.Logger
	repo  ProductRepository
	cache Cache
}

func NewService(log *slog.Logger, repo ProductRepository, c Cache) *Service {
	return &Service{log: log, repo: repo, cache: c}
}

type CreateProductInput struct {
	SKU               string
	Name              string
	Description       string
	Price             decimal.Decimal
	StockQuantity     int
	LowStockThreshold int
}

type UpdateProductInput struct {
	Name              *string
	Description       *string
	Price             *decimal.Decimal
	LowStockThreshold *int
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	p := domain.Product{
		SKU:               in.SKU,
		Name:              in.Name,
		Description:       in.Description,
		Price:             in.Price,
		StockQuantity:     in.StockQuantity,
		LowStockThreshold: in.LowStockThreshold,
		Active:            true,
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, p.ID)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in UpdateProductInput) (domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.Update(ctx, &p); err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

// AdjustStock applies a signed correction through the same ledger
// primitives that order creation uses.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (domain.StockChange, error) {
	ch, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return domain.StockChange{}, err
	}
	s.invalidate(ctx, id)
	return ch, nil
}

// DeactivateProduct hides the product and drops every cached list view,
// since any of them may still include the deactivated row.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Remove(ctx, cache.ProductKey(id)); err != nil {
		s.log.Warn("cache invalidation failed", "product_id", id, "err", err)
	}
	if err := s.cache.RemoveByPattern(ctx, cache.ProductListPattern); err != nil {
		s.log.Warn("cache invalidation failed", "pattern", cache.ProductListPattern, "err", err)
	}
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	key := cache.ProductKey(id)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var p domain.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		s.log.Warn("corrupt cache entry, reading from store", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("cache read failed, reading from store", "key", key, "err", err)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	s.fill(ctx, key, p)
	return p, nil
}

func (s *Service) GetProducts(ctx context.Context) ([]domain.Product, error) {
	if data, err := s.cache.Get(ctx, cache.AllProductsKey); err == nil {
		var products []domain.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("cache read failed, reading from store", "key", cache.AllProductsKey, "err", err)
	}

	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, cache.AllProductsKey, products)
	return products, nil
}

func (s *Service) GetLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) fill(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, 0); err != nil {
		s.log.Warn("cache fill failed", "key", key, "err", err)
	}
}

// invalidate drops both keys before the mutating call returns, so a
// subsequent read cannot observe stale data through the cache.
func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Remove(ctx, cache.ProductKey(id), cache.AllProductsKey); err != nil {
		s.log.Warn("cache invalidation failed", "product_id", id, "err", err)
	}
}
