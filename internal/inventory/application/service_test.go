package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/inventory-engine/internal/inventory/domain"
	"github.com/orderflow/inventory-engine/pkg/cache"
	"github.com/orderflow/inventory-engine/pkg/logging"
)

type fakeProductRepo struct {
	products map[int64]domain.Product
	nextID   int64
	reads    int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[int64]domain.Product{}}
}

func (f *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	for _, existing := range f.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicateSKU
		}
	}
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id int64) (domain.Product, error) {
	f.reads++
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) GetAll(ctx context.Context) ([]domain.Product, error) {
	f.reads++
	var out []domain.Product
	for _, p := range f.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		if p.Active && p.IsLowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, p *domain.Product) error {
	if _, ok := f.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProductRepo) Deactivate(ctx context.Context, id int64) error {
	p, ok := f.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Active = false
	f.products[id] = p
	return nil
}

func (f *fakeProductRepo) AdjustStock(ctx context.Context, id int64, delta int) (domain.StockChange, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.StockChange{}, domain.ErrProductNotFound
	}
	if delta < 0 && p.StockQuantity < -delta {
		return domain.StockChange{}, &domain.InsufficientStockError{ProductID: id, Requested: -delta, Available: p.StockQuantity}
	}
	old := p.StockQuantity
	p.StockQuantity += delta
	f.products[id] = p
	return domain.StockChange{
		ProductID:   id,
		ProductName: p.Name,
		Price:       p.Price,
		OldQuantity: old,
		NewQuantity: p.StockQuantity,
		Threshold:   p.LowStockThreshold,
	}, nil
}

// fakeCache is an in-memory Cache with scriptable failures.
type fakeCache struct {
	data    map[string][]byte
	failing bool
	removed []string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failing {
		return nil, errors.New("cache down")
	}
	v, ok := f.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if f.failing {
		return errors.New("cache down")
	}
	f.data[key] = val
	return nil
}

func (f *fakeCache) Remove(ctx context.Context, keys ...string) error {
	f.removed = append(f.removed, keys...)
	if f.failing {
		return errors.New("cache down")
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) RemoveByPattern(ctx context.Context, pattern string) error {
	f.removed = append(f.removed, pattern)
	if f.failing {
		return errors.New("cache down")
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
		}
	}
	return nil
}

func newTestService() (*Service, *fakeProductRepo, *fakeCache) {
	repo := newFakeProductRepo()
	c := newFakeCache()
	return NewService(logging.New(), repo, c), repo, c
}

func createInput(sku string) CreateProductInput {
	return CreateProductInput{
		SKU:               sku,
		Name:              "widget",
		Price:             decimal.RequireFromString("9.99"),
		StockQuantity:     10,
		LowStockThreshold: 3,
	}
}

func TestCreateProduct(t *testing.T) {
	svc, _, c := newTestService()

	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Contains(t, c.removed, cache.AllProductsKey)

	_, err = svc.CreateProduct(context.Background(), createInput("SKU-1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)

	bad := createInput("SKU-2")
	bad.Price = decimal.Zero
	_, err = svc.CreateProduct(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestGetProductReadThrough(t *testing.T) {
	svc, repo, c := newTestService()
	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	repo.reads = 0
	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "miss goes to the store")
	assert.Equal(t, p.ID, got.ID)

	got, err = svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "hit is served from cache")
	assert.Equal(t, p.SKU, got.SKU)

	// Corrupt entries fall through to the store.
	c.data[cache.ProductKey(p.ID)] = []byte("{not json")
	_, err = svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)
}

func TestGetProductCacheFailureIsNotFatal(t *testing.T) {
	svc, _, c := newTestService()
	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	c.failing = true
	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestUpdateProductInvalidates(t *testing.T) {
	svc, _, c := newTestService()
	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	// warm the cache
	_, err = svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)

	name := "renamed"
	updated, err := svc.UpdateProduct(context.Background(), p.ID, UpdateProductInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.NotContains(t, c.data, cache.ProductKey(p.ID))

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name, "read after update never sees stale data")
}

func TestAdjustStock(t *testing.T) {
	svc, _, c := newTestService()
	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	ch, err := svc.AdjustStock(context.Background(), p.ID, -7)
	require.NoError(t, err)
	assert.Equal(t, 10, ch.OldQuantity)
	assert.Equal(t, 3, ch.NewQuantity)
	assert.True(t, ch.LowStock())
	assert.Contains(t, c.removed, cache.ProductKey(p.ID))

	_, err = svc.AdjustStock(context.Background(), p.ID, -100)
	var ise *domain.InsufficientStockError
	assert.ErrorAs(t, err, &ise)
}

func TestDeactivateProduct(t *testing.T) {
	svc, repo, c := newTestService()
	p, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateProduct(context.Background(), p.ID))
	assert.False(t, repo.products[p.ID].Active)
	assert.Contains(t, c.removed, cache.ProductKey(p.ID))
	assert.Contains(t, c.removed, cache.ProductListPattern)

	err = svc.DeactivateProduct(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGetLowStockProducts(t *testing.T) {
	svc, _, _ := newTestService()
	low := createInput("SKU-LOW")
	low.StockQuantity = 2
	_, err := svc.CreateProduct(context.Background(), low)
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), createInput("SKU-OK"))
	require.NoError(t, err)

	products, err := svc.GetLowStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "SKU-LOW", products[0].SKU)
}

func TestGetProductsCachesList(t *testing.T) {
	svc, repo, c := newTestService()
	_, err := svc.CreateProduct(context.Background(), createInput("SKU-1"))
	require.NoError(t, err)

	repo.reads = 0
	_, err = svc.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	var cached []domain.Product
	require.NoError(t, json.Unmarshal(c.data[cache.AllProductsKey], &cached))
	assert.Len(t, cached, 1)

	_, err = svc.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)
}
