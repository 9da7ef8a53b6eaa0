package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/pkg/database"
	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
)

const productColumns = `id, sku, name, price_cents, total, available, reserved, sold,
	low_stock_threshold, reservation_expires_at, updated_at`

// StockRepository implements repository.StockRepository using PostgreSQL.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// CreateProduct inserts a product with its initial stock, or tops up the
// counters of an existing SKU. New quantity always lands in total and
// available so the ledger invariant holds.
func (r *StockRepository) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products (id, sku, name, price_cents, total, available, reserved, sold, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, 0, 0, $6, NOW())
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			total = products.total + EXCLUDED.total,
			available = products.available + EXCLUDED.available,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = NOW()
		RETURNING ` + productColumns

	var result domain.Product
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.SKU,
		p.Name,
		p.PriceCents,
		p.Total,
		p.LowStockThreshold,
	).Scan(
		&result.ID,
		&result.SKU,
		&result.Name,
		&result.PriceCents,
		&result.Total,
		&result.Available,
		&result.Reserved,
		&result.Sold,
		&result.LowStockThreshold,
		&result.ReservationExpiresAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return &result, nil
}

// GetBySKU retrieves a product by SKU.
func (r *StockRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.getBy(ctx, "sku", sku)
}

// GetByID retrieves a product by id.
func (r *StockRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getBy(ctx, "id", id)
}

func (r *StockRepository) getBy(ctx context.Context, column, value string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s = $1`, productColumns, column)

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.PriceCents,
		&p.Total,
		&p.Available,
		&p.Reserved,
		&p.Sold,
		&p.LowStockThreshold,
		&p.ReservationExpiresAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get product by %s: %w", column, err)
	}

	return &p, nil
}

// SweepOrphanedProducts restores reserved counters whose expiry stamp lapsed
// and whose units are not held by any order with an active reservation. Such
// rows can only result from an earlier partial failure; under normal flow the
// expiry sweeper releases stock through the orders that hold it.
func (r *StockRepository) SweepOrphanedProducts(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE products p
		SET available = available + reserved,
		    reserved = 0,
		    reservation_expires_at = NULL,
		    updated_at = NOW()
		WHERE p.reserved > 0
		  AND p.reservation_expires_at < $1
		  AND NOT EXISTS (
			SELECT 1
			FROM order_lines l
			JOIN orders o ON o.id = l.order_id
			WHERE l.product_id = p.id
			  AND o.reservation_active
		  )`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep orphaned products: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// SweepOrphanedAnimals is the animal counterpart of SweepOrphanedProducts.
func (r *StockRepository) SweepOrphanedAnimals(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE animals a
		SET available = TRUE,
		    reserved = FALSE,
		    reservation_expires_at = NULL,
		    updated_at = NOW()
		WHERE a.reserved
		  AND a.reservation_expires_at < $1
		  AND NOT EXISTS (
			SELECT 1
			FROM order_lines l
			JOIN orders o ON o.id = l.order_id
			WHERE l.animal_id = a.id
			  AND o.reservation_active
		  )`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep orphaned animals: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
