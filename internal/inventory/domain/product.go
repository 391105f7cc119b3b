package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product inactive")
	ErrDuplicateSKU    = errors.New("duplicate sku")
	ErrInvalidProduct  = errors.New("invalid product")
)

// InsufficientStockError reports a reservation that asked for more than
// the row currently holds.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type Product struct {
	ID                int64           `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

func (p Product) Validate() error {
	switch {
	case p.SKU == "":
		return fmt.Errorf("%w: sku required", ErrInvalidProduct)
	case p.Name == "":
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	case p.StockQuantity < 0:
		return fmt.Errorf("%w: stock quantity cannot be negative", ErrInvalidProduct)
	case p.LowStockThreshold < 0:
		return fmt.Errorf("%w: low stock threshold cannot be negative", ErrInvalidProduct)
	}
	return nil
}

// StockChange is the result of one ledger mutation. Price and name are
// snapshotted from the row at mutation time; order lines copy them so
// later product edits never touch historical orders.
type StockChange struct {
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	OldQuantity int
	NewQuantity int
	Threshold   int
}

// LowStock reports whether the mutation left the product at or below its
// threshold. Every qualifying mutation alerts; there is no deduplication.
func (c StockChange) LowStock() bool {
	return c.NewQuantity <= c.Threshold
}
