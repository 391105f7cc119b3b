package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types as seen by external subscribers (alerting, analytics).
const (
	EventStockUpdated   = "stock.updated"
	EventStockLow       = "stock.low"
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

type StockUpdated struct {
	ProductID   int64     `json:"productId"`
	OldQuantity int       `json:"oldQuantity"`
	NewQuantity int       `json:"newQuantity"`
	Timestamp   time.Time `json:"timestamp"`
}

type StockLow struct {
	ProductID    int64     `json:"productId"`
	ProductName  string    `json:"productName"`
	CurrentStock int       `json:"currentStock"`
	Threshold    int       `json:"threshold"`
	Timestamp    time.Time `json:"timestamp"`
}

type OrderPlaced struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Timestamp   time.Time       `json:"timestamp"`
}

type OrderCancelled struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Timestamp   time.Time `json:"timestamp"`
}
