package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orderflow/inventory-engine/internal/inventory/domain"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so ledger primitives
// run inside an order's unit of work or a standalone correction
// transaction with the exact same SQL.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns every stock quantity mutation. Reserve is a single
// compare-and-set update: the row lock taken by UPDATE re-evaluates the
// quantity predicate, so two concurrent callers can never together drive
// the quantity below zero.
type Ledger struct {
	log *slog.Logger
}

func NewLedger(log *slog.Logger) *Ledger {
	return &Ledger{log: log}
}

func (l *Ledger) Reserve(ctx context.Context, q Querier, productID int64, qty int) (domain.StockChange, error) {
	var ch domain.StockChange
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND active AND stock_quantity >= $2
		RETURNING id, name, price, stock_quantity + $2, stock_quantity, low_stock_threshold`,
		productID, qty).
		Scan(&ch.ProductID, &ch.ProductName, &ch.Price, &ch.OldQuantity, &ch.NewQuantity, &ch.Threshold)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.StockChange{}, err
	}

	// No row matched: tell the caller which precondition failed.
	var active bool
	var available int
	err = q.QueryRow(ctx, `SELECT active, stock_quantity FROM products WHERE id = $1`, productID).
		Scan(&active, &available)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.StockChange{}, domain.ErrProductNotFound
	case err != nil:
		return domain.StockChange{}, err
	case !active:
		return domain.StockChange{}, domain.ErrProductInactive
	}
	return domain.StockChange{}, &domain.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Available: available,
	}
}

func (l *Ledger) Restore(ctx context.Context, q Querier, productID int64, qty int) (domain.StockChange, error) {
	var ch domain.StockChange
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, price, stock_quantity - $2, stock_quantity, low_stock_threshold`,
		productID, qty).
		Scan(&ch.ProductID, &ch.ProductName, &ch.Price, &ch.OldQuantity, &ch.NewQuantity, &ch.Threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockChange{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.StockChange{}, err
	}
	return ch, nil
}
