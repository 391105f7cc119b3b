package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	"github.com/orderflow/inventory-engine/internal/order/domain"
)

const (
	maxCreateAttempts = 3
	retryBackoff      = 50 * time.Millisecond
)

type Service struct {
	log  *slog.Logger
	repo OrderRepository
}

func NewService(log *slog.Logger, repo OrderRepository) *Service {
	return &Service{log: log, repo: repo}
}

type LineInput struct {
	ProductID int64
	Quantity  int
}

type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	Items         []LineInput
}

// CreateOrder builds the aggregate and hands it to the repository's unit
// of work. An order-number collision or transient store contention gets a
// bounded number of fresh attempts; everything else surfaces immediately.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, []invdomain.StockChange, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		items := make([]domain.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			items = append(items, domain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		o := domain.NewOrder(in.CustomerName, in.CustomerEmail, items)
		if err := o.Validate(); err != nil {
			return domain.Order{}, nil, err
		}

		changes, err := s.repo.Create(ctx, &o)
		if err == nil {
			return o, changes, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, domain.ErrDuplicateOrderNumber):
			s.log.Warn("order number collision, retrying", "number", o.Number, "attempt", attempt)
		case retryable(err):
			s.log.Warn("transient store contention, retrying", "attempt", attempt, "err", err)
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return domain.Order{}, nil, ctx.Err()
			}
		default:
			return domain.Order{}, nil, err
		}
	}
	return domain.Order{}, nil, lastErr
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, &domain.InvalidTransitionError{To: next}
	}
	if next == domain.StatusCancelled {
		// Cancellation has stock side effects and must go through CancelOrder.
		return domain.Order{}, &domain.InvalidTransitionError{To: next}
	}
	return s.repo.UpdateStatus(ctx, id, next)
}

func (s *Service) CancelOrder(ctx context.Context, id string) (domain.Order, []invdomain.StockChange, error) {
	return s.repo.Cancel(ctx, id)
}

// retryable matches postgres serialization failures and deadlocks, which
// resolve on a clean re-run of the unit of work.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
