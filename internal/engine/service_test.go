package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invapp "github.com/orderflow/inventory-engine/internal/inventory/application"
	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	orderapp "github.com/orderflow/inventory-engine/internal/order/application"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
	"github.com/orderflow/inventory-engine/pkg/cache"
	"github.com/orderflow/inventory-engine/pkg/logging"
)

type published struct {
	eventType string
	key       string
	payload   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{eventType, key, payload})
	return nil
}

func (f *fakePublisher) byType(eventType string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, e := range f.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeInvalidator) Remove(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, keys...)
	return f.err
}

func (f *fakeInvalidator) removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeOrders struct {
	order   orderdomain.Order
	changes []invdomain.StockChange
	err     error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, in orderapp.CreateOrderInput) (orderdomain.Order, []invdomain.StockChange, error) {
	return f.order, f.changes, f.err
}

func (f *fakeOrders) GetOrder(ctx context.Context, id string) (orderdomain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id string, next orderdomain.Status) (orderdomain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrders) CancelOrder(ctx context.Context, id string) (orderdomain.Order, []invdomain.StockChange, error) {
	return f.order, f.changes, f.err
}

type fakeCatalog struct {
	change invdomain.StockChange
	err    error
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, in invapp.CreateProductInput) (invdomain.Product, error) {
	return invdomain.Product{}, f.err
}
func (f *fakeCatalog) UpdateProduct(ctx context.Context, id int64, in invapp.UpdateProductInput) (invdomain.Product, error) {
	return invdomain.Product{}, f.err
}
func (f *fakeCatalog) AdjustStock(ctx context.Context, id int64, delta int) (invdomain.StockChange, error) {
	return f.change, f.err
}
func (f *fakeCatalog) DeactivateProduct(ctx context.Context, id int64) error { return f.err }
func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (invdomain.Product, error) {
	return invdomain.Product{}, f.err
}
func (f *fakeCatalog) GetProducts(ctx context.Context) ([]invdomain.Product, error) {
	return nil, f.err
}
func (f *fakeCatalog) GetLowStockProducts(ctx context.Context) ([]invdomain.Product, error) {
	return nil, f.err
}

func confirmedOrder() orderdomain.Order {
	return orderdomain.Order{
		ID:          "order-1",
		Number:      "ORD-20260829-AB12CD34",
		Status:      orderdomain.StatusConfirmed,
		TotalAmount: decimal.RequireFromString("59.94"),
	}
}

func TestCreateOrderEmitsSideEffects(t *testing.T) {
	pub := &fakePublisher{}
	inval := &fakeInvalidator{}
	orders := &fakeOrders{
		order: confirmedOrder(),
		changes: []invdomain.StockChange{
			{ProductID: 7, ProductName: "widget", OldQuantity: 10, NewQuantity: 4, Threshold: 5},
		},
	}
	eng := New(logging.New(), orders, &fakeCatalog{}, pub, inval)

	o, err := eng.CreateOrder(context.Background(), orderapp.CreateOrderInput{})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusConfirmed, o.Status)
	eng.Wait()

	updated := pub.byType(EventStockUpdated)
	require.Len(t, updated, 1)
	ev := updated[0].payload.(StockUpdated)
	assert.Equal(t, int64(7), ev.ProductID)
	assert.Equal(t, 10, ev.OldQuantity)
	assert.Equal(t, 4, ev.NewQuantity)

	// 4 <= 5 crossed the threshold, so the alert fires too.
	low := pub.byType(EventStockLow)
	require.Len(t, low, 1)
	lowEv := low[0].payload.(StockLow)
	assert.Equal(t, "widget", lowEv.ProductName)
	assert.Equal(t, 4, lowEv.CurrentStock)
	assert.Equal(t, 5, lowEv.Threshold)

	placed := pub.byType(EventOrderPlaced)
	require.Len(t, placed, 1)
	placedEv := placed[0].payload.(OrderPlaced)
	assert.Equal(t, "order-1", placedEv.OrderID)
	assert.Equal(t, "ORD-20260829-AB12CD34", placedEv.OrderNumber)

	assert.ElementsMatch(t, []string{cache.ProductKey(7), cache.AllProductsKey}, inval.removed())
}

func TestCreateOrderNoLowStockAlertAboveThreshold(t *testing.T) {
	pub := &fakePublisher{}
	orders := &fakeOrders{
		order: confirmedOrder(),
		changes: []invdomain.StockChange{
			{ProductID: 7, OldQuantity: 10, NewQuantity: 6, Threshold: 5},
		},
	}
	eng := New(logging.New(), orders, &fakeCatalog{}, pub, &fakeInvalidator{})

	_, err := eng.CreateOrder(context.Background(), orderapp.CreateOrderInput{})
	require.NoError(t, err)
	eng.Wait()

	assert.Len(t, pub.byType(EventStockUpdated), 1)
	assert.Empty(t, pub.byType(EventStockLow))
}

func TestCreateOrderFailureEmitsNothing(t *testing.T) {
	pub := &fakePublisher{}
	inval := &fakeInvalidator{}
	orders := &fakeOrders{err: &invdomain.InsufficientStockError{ProductID: 1, Requested: 4, Available: 1}}
	eng := New(logging.New(), orders, &fakeCatalog{}, pub, inval)

	_, err := eng.CreateOrder(context.Background(), orderapp.CreateOrderInput{})
	var ise *invdomain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	eng.Wait()

	assert.Empty(t, pub.events)
	assert.Empty(t, inval.removed())
}

func TestSideEffectFailuresDoNotAffectResult(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	inval := &fakeInvalidator{err: errors.New("redis down")}
	orders := &fakeOrders{
		order:   confirmedOrder(),
		changes: []invdomain.StockChange{{ProductID: 7, OldQuantity: 10, NewQuantity: 9}},
	}
	eng := New(logging.New(), orders, &fakeCatalog{}, pub, inval)

	o, err := eng.CreateOrder(context.Background(), orderapp.CreateOrderInput{})
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	eng.Wait()
}

func TestCancelOrderEmitsSideEffects(t *testing.T) {
	pub := &fakePublisher{}
	inval := &fakeInvalidator{}
	cancelled := confirmedOrder()
	cancelled.Status = orderdomain.StatusCancelled
	orders := &fakeOrders{
		order: cancelled,
		changes: []invdomain.StockChange{
			{ProductID: 7, OldQuantity: 7, NewQuantity: 10, Threshold: 5},
		},
	}
	eng := New(logging.New(), orders, &fakeCatalog{}, pub, inval)

	o, err := eng.CancelOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, o.Status)
	eng.Wait()

	updated := pub.byType(EventStockUpdated)
	require.Len(t, updated, 1)
	ev := updated[0].payload.(StockUpdated)
	assert.Equal(t, 7, ev.OldQuantity)
	assert.Equal(t, 10, ev.NewQuantity)

	cancelledEvents := pub.byType(EventOrderCancelled)
	require.Len(t, cancelledEvents, 1)
	assert.Empty(t, pub.byType(EventStockLow), "restored above threshold")
	assert.Contains(t, inval.removed(), cache.ProductKey(7))
}

func TestAdjustStockEmitsStockEvents(t *testing.T) {
	pub := &fakePublisher{}
	catalog := &fakeCatalog{
		change: invdomain.StockChange{ProductID: 3, ProductName: "gizmo", OldQuantity: 4, NewQuantity: 2, Threshold: 3},
	}
	eng := New(logging.New(), &fakeOrders{}, catalog, pub, &fakeInvalidator{})

	ch, err := eng.AdjustStock(context.Background(), 3, -2)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.NewQuantity)
	eng.Wait()

	require.Len(t, pub.byType(EventStockUpdated), 1)
	require.Len(t, pub.byType(EventStockLow), 1)
}
