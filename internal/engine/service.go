package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	invapp "github.com/orderflow/inventory-engine/internal/inventory/application"
	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	orderapp "github.com/orderflow/inventory-engine/internal/order/application"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
	"github.com/orderflow/inventory-engine/pkg/cache"
)

const sideEffectTimeout = 10 * time.Second

// Engine is the composition root. It wraps order and catalog operations
// with post-commit side effects: event publication and cache
// invalidation, both best-effort and decoupled from the caller's
// transaction outcome.
type Engine struct {
	log     *slog.Logger
	orders  OrderService
	catalog CatalogService
	pub     Publisher
	inval   Invalidator

	wg sync.WaitGroup
}

func New(log *slog.Logger, orders OrderService, catalog CatalogService, pub Publisher, inval Invalidator) *Engine {
	return &Engine{log: log, orders: orders, catalog: catalog, pub: pub, inval: inval}
}

func (e *Engine) CreateOrder(ctx context.Context, in orderapp.CreateOrderInput) (orderdomain.Order, error) {
	o, changes, err := e.orders.CreateOrder(ctx, in)
	if err != nil {
		return orderdomain.Order{}, err
	}
	e.after(ctx, func(ctx context.Context) {
		e.emitStockChanges(ctx, changes)
		e.publish(ctx, EventOrderPlaced, o.ID, OrderPlaced{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			TotalAmount: o.TotalAmount,
			Timestamp:   time.Now().UTC(),
		})
		e.invalidate(ctx, changes)
	})
	return o, nil
}

func (e *Engine) CancelOrder(ctx context.Context, id string) (orderdomain.Order, error) {
	o, changes, err := e.orders.CancelOrder(ctx, id)
	if err != nil {
		return orderdomain.Order{}, err
	}
	e.after(ctx, func(ctx context.Context) {
		e.emitStockChanges(ctx, changes)
		e.publish(ctx, EventOrderCancelled, o.ID, OrderCancelled{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			Timestamp:   time.Now().UTC(),
		})
		e.invalidate(ctx, changes)
	})
	return o, nil
}

func (e *Engine) UpdateOrderStatus(ctx context.Context, id string, next orderdomain.Status) (orderdomain.Order, error) {
	return e.orders.UpdateStatus(ctx, id, next)
}

func (e *Engine) GetOrder(ctx context.Context, id string) (orderdomain.Order, error) {
	return e.orders.GetOrder(ctx, id)
}

// AdjustStock publishes the same stock events as the order paths; the
// catalog service already invalidated the cache synchronously.
func (e *Engine) AdjustStock(ctx context.Context, id int64, delta int) (invdomain.StockChange, error) {
	ch, err := e.catalog.AdjustStock(ctx, id, delta)
	if err != nil {
		return invdomain.StockChange{}, err
	}
	e.after(ctx, func(ctx context.Context) {
		e.emitStockChanges(ctx, []invdomain.StockChange{ch})
	})
	return ch, nil
}

func (e *Engine) CreateProduct(ctx context.Context, in invapp.CreateProductInput) (invdomain.Product, error) {
	return e.catalog.CreateProduct(ctx, in)
}

func (e *Engine) UpdateProduct(ctx context.Context, id int64, in invapp.UpdateProductInput) (invdomain.Product, error) {
	return e.catalog.UpdateProduct(ctx, id, in)
}

func (e *Engine) DeactivateProduct(ctx context.Context, id int64) error {
	return e.catalog.DeactivateProduct(ctx, id)
}

func (e *Engine) GetProduct(ctx context.Context, id int64) (invdomain.Product, error) {
	return e.catalog.GetProduct(ctx, id)
}

func (e *Engine) GetProducts(ctx context.Context) ([]invdomain.Product, error) {
	return e.catalog.GetProducts(ctx)
}

func (e *Engine) GetLowStockProducts(ctx context.Context) ([]invdomain.Product, error) {
	return e.catalog.GetLowStockProducts(ctx)
}

// Wait blocks until all in-flight side effects have finished. Called at
// shutdown and by tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// after runs fn once the unit of work has committed. The context is
// detached from the caller's cancellation: a caller that walks away
// cannot abort emission for an already-committed mutation. Trace context
// is preserved.
func (e *Engine) after(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(detached, sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (e *Engine) emitStockChanges(ctx context.Context, changes []invdomain.StockChange) {
	now := time.Now().UTC()
	for _, ch := range changes {
		key := strconv.FormatInt(ch.ProductID, 10)
		e.publish(ctx, EventStockUpdated, key, StockUpdated{
			ProductID:   ch.ProductID,
			OldQuantity: ch.OldQuantity,
			NewQuantity: ch.NewQuantity,
			Timestamp:   now,
		})
		if ch.LowStock() {
			e.publish(ctx, EventStockLow, key, StockLow{
				ProductID:    ch.ProductID,
				ProductName:  ch.ProductName,
				CurrentStock: ch.NewQuantity,
				Threshold:    ch.Threshold,
				Timestamp:    now,
			})
		}
	}
}

func (e *Engine) publish(ctx context.Context, eventType, key string, payload any) {
	if err := e.pub.Publish(ctx, eventType, key, payload); err != nil {
		e.log.Error("event publish failed", "type", eventType, "key", key, "err", err)
	}
}

func (e *Engine) invalidate(ctx context.Context, changes []invdomain.StockChange) {
	keys := make([]string, 0, len(changes)+1)
	for _, ch := range changes {
		keys = append(keys, cache.ProductKey(ch.ProductID))
	}
	keys = append(keys, cache.AllProductsKey)
	if err := e.inval.Remove(ctx, keys...); err != nil {
		e.log.Error("cache invalidation failed", "err", err)
	}
}
