package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
	invpg "github.com/orderflow/inventory-engine/internal/inventory/infrastructure/postgres"
	"github.com/orderflow/inventory-engine/internal/order/domain"
)

const uniqueViolation = "23505"

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *invpg.Ledger
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger *invpg.Ledger) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

// Create runs the whole order unit of work: reserve every line through
// the ledger, snapshot prices, insert the order and its items, then move
// it to Confirmed. Any failure rolls all of it back; a partial
// reservation never persists.
func (r *Repository) Create(ctx context.Context, o *domain.Order) ([]invdomain.StockChange, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	changes := make([]invdomain.StockChange, 0, len(o.Items))
	for i := range o.Items {
		ch, err := r.ledger.Reserve(ctx, tx, o.Items[i].ProductID, o.Items[i].Quantity)
		if err != nil {
			return nil, err
		}
		o.Items[i].UnitPrice = ch.Price
		o.Items[i].ProductName = ch.ProductName
		changes = append(changes, ch)
	}
	o.ComputeTotal()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, number, customer_name, customer_email, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.Number, o.CustomerName, o.CustomerEmail, o.TotalAmount, domain.StatusPending, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, o.Number)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	// The pending -> confirmed transition commits with the reservations.
	_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		o.ID, domain.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	o.Status = domain.StatusConfirmed

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return changes, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, r.pool, id, false)
}

// UpdateStatus applies the state machine under a row lock so concurrent
// transitions serialize.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := r.get(ctx, tx, id, true)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.Status.CanTransitionTo(next) {
		return domain.Order{}, &domain.InvalidTransitionError{From: o.Status, To: next}
	}

	err = tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		id, next).Scan(&o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	o.Status = next

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// Cancel restores stock for every line and marks the order cancelled in
// one transaction. A failed restoration rolls everything back and the
// order keeps its prior status.
func (r *Repository) Cancel(ctx context.Context, id string) (domain.Order, []invdomain.StockChange, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := r.get(ctx, tx, id, true)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if !o.Status.CanTransitionTo(domain.StatusCancelled) {
		return domain.Order{}, nil, &domain.InvalidTransitionError{From: o.Status, To: domain.StatusCancelled}
	}

	changes := make([]invdomain.StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		ch, err := r.ledger.Restore(ctx, tx, it.ProductID, it.Quantity)
		if err != nil {
			return domain.Order{}, nil, fmt.Errorf("restore stock for product %d: %w", it.ProductID, err)
		}
		changes = append(changes, ch)
	}

	err = tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		id, domain.StatusCancelled).Scan(&o.UpdatedAt)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("cancel order: %w", err)
	}
	o.Status = domain.StatusCancelled

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, nil, err
	}
	return o, changes, nil
}

func (r *Repository) get(ctx context.Context, q invpg.Querier, id string, forUpdate bool) (domain.Order, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}
	var o domain.Order
	err := q.QueryRow(ctx, `
		SELECT id, number, customer_name, customer_email, total_amount, status, created_at, updated_at
		FROM orders WHERE id = $1`+lock, id).
		Scan(&o.ID, &o.Number, &o.CustomerName, &o.CustomerEmail, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order items %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}
