package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow/inventory-engine/internal/inventory/domain"
)

const uniqueViolation = "23505"

const productColumns = `id, sku, name, description, price, stock_quantity, low_stock_threshold, active, created_at, updated_at`

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *Ledger
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool, ledger: NewLedger(log)}
}

// Ledger exposes the shared stock primitives so the order unit of work
// reserves and restores through the same SQL as stock corrections.
func (r *Repository) Ledger() *Ledger {
	return r.ledger
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, price, stock_quantity, low_stock_threshold, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at, updated_at`,
		p.SKU, p.Name, p.Description, p.Price, p.StockQuantity, p.LowStockThreshold).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSKU, p.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}
	p.Active = true
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *Repository) GetAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *Repository) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active AND stock_quantity <= low_stock_threshold
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// Update persists catalog fields only. Stock quantity moves exclusively
// through the ledger, and the SKU is immutable once assigned.
func (r *Repository) Update(ctx context.Context, p *domain.Product) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, low_stock_threshold = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.LowStockThreshold).
		Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// AdjustStock applies a signed correction through the ledger primitives
// in its own transaction.
func (r *Repository) AdjustStock(ctx context.Context, id int64, delta int) (domain.StockChange, error) {
	if delta == 0 {
		return domain.StockChange{}, fmt.Errorf("%w: zero stock adjustment", domain.ErrInvalidProduct)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StockChange{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var ch domain.StockChange
	if delta < 0 {
		ch, err = r.ledger.Reserve(ctx, tx, id, -delta)
	} else {
		ch, err = r.ledger.Restore(ctx, tx, id, delta)
	}
	if err != nil {
		return domain.StockChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StockChange{}, err
	}
	return ch, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price,
		&p.StockQuantity, &p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

func scanProducts(rows pgx.Rows) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
