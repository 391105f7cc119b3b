package http

import (
	"time"

	"github.com/shopspring/decimal"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	orderdomain "github.com/orderflow/inventory-engine/internal/order/domain"
)

type createProductReq struct {
	SKU               string          `json:"sku" validate:"required"`
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price" validate:"required"`
	StockQuantity     int             `json:"stock_quantity" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
}

type updateProductReq struct {
	Name              *string          `json:"name,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty"`
}

type adjustStockReq struct {
	Delta int `json:"delta" validate:"required"`
}

type createOrderReq struct {
	CustomerName  string         `json:"customer_name" validate:"required"`
	CustomerEmail string         `json:"customer_email" validate:"required,email"`
	Items         []orderLineReq `json:"items" validate:"required,min=1,dive"`
}

type orderLineReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

type stockChangeResp struct {
	ProductID   int64 `json:"product_id"`
	OldQuantity int   `json:"old_quantity"`
	NewQuantity int   `json:"new_quantity"`
	LowStock    bool  `json:"low_stock"`
}

type orderResp struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	Items         []orderItemResp `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type orderItemResp struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func toStockChangeResp(ch invdomain.StockChange) stockChangeResp {
	return stockChangeResp{
		ProductID:   ch.ProductID,
		OldQuantity: ch.OldQuantity,
		NewQuantity: ch.NewQuantity,
		LowStock:    ch.LowStock(),
	}
}

func toOrderResp(o orderdomain.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice(),
		})
	}
	return orderResp{
		ID:            o.ID,
		Number:        o.Number,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
