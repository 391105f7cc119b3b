package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrInvalidOrder         = errors.New("invalid order")
)

// InvalidTransitionError reports a status change the state machine
// forbids. No mutation happens when it is returned.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// statusRank orders the linear happy path. Cancelled sits outside it.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// CanTransitionTo permits any forward or same-state move along the happy
// path. Cancelled is terminal and reachable only from Pending or
// Confirmed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusCancelled {
		return false
	}
	if next == StatusCancelled {
		return s == StatusPending || s == StatusConfirmed
	}
	cur, ok := statusRank[s]
	nxt, ok2 := statusRank[next]
	return ok && ok2 && nxt >= cur
}

type Order struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// TotalPrice is always derived; it is never stored separately from its
// inputs.
func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func NewOrder(customerName, customerEmail string, items []OrderItem) Order {
	now := time.Now().UTC()
	return Order{
		ID:            uuid.NewString(),
		Number:        NewOrderNumber(now),
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		TotalAmount:   decimal.Zero,
		Status:        StatusPending,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ComputeTotal recalculates the order total from its lines. Called after
// unit prices have been snapshotted from the product rows.
func (o *Order) ComputeTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.TotalPrice())
	}
	o.TotalAmount = total
}

func (o Order) Validate() error {
	switch {
	case o.CustomerName == "":
		return fmt.Errorf("%w: customer name required", ErrInvalidOrder)
	case o.CustomerEmail == "":
		return fmt.Errorf("%w: customer email required", ErrInvalidOrder)
	case len(o.Items) == 0:
		return fmt.Errorf("%w: at least one line item required", ErrInvalidOrder)
	}
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for product %d", ErrInvalidOrder, it.ProductID)
		}
	}
	return nil
}

// NewOrderNumber builds a date-prefixed, human-readable number with
// enough random suffix entropy that concurrent creation rarely collides.
// The unique index on orders.number is the hard guarantee; a collision
// fails the insert and the caller retries with a fresh number.
func NewOrderNumber(t time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), suffix)
}
