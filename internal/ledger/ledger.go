// Package ledger implements the transactional stock ledger. Every operation
// runs on a caller-supplied pgx transaction and locks the unit row with
// SELECT ... FOR UPDATE, so a multi-line reservation is all-or-nothing: the
// caller commits only when every line succeeded.
//
// Product counters obey total = available + reserved + sold; each operation
// moves quantity between exactly two counters. Animals are exclusive units
// tracked by an (available, reserved) flag pair.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
)

// Ledger executes stock counter mutations. It holds no connection of its own;
// every method operates on the transaction it is given.
type Ledger struct {
	logger *slog.Logger
}

// New creates a stock ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// ProductCounters is the post-operation counter snapshot, returned so callers
// can publish low-stock events without re-querying.
type ProductCounters struct {
	SKU               string
	Available         int
	Reserved          int
	Sold              int
	LowStockThreshold int
}

// IsLowStock reports whether available stock sits at or below the threshold.
func (c ProductCounters) IsLowStock() bool {
	return c.LowStockThreshold > 0 && c.Available <= c.LowStockThreshold
}

// ReserveProduct moves qty units from available to reserved and stamps the
// reservation expiry. The expiry only moves forward: a unit already held with
// a later expiry keeps it.
func (l *Ledger) ReserveProduct(ctx context.Context, tx pgx.Tx, productID string, qty int, expiresAt time.Time) (ProductCounters, error) {
	var sku string
	var available, reserved int

	lockQuery := `
		SELECT sku, available, reserved
		FROM products
		WHERE id = $1
		FOR UPDATE`

	err := tx.QueryRow(ctx, lockQuery, productID).Scan(&sku, &available, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductCounters{}, apperrors.NotFound("product", productID)
		}
		return ProductCounters{}, fmt.Errorf("lock product %s: %w", productID, err)
	}

	if available < qty {
		return ProductCounters{}, apperrors.InsufficientStock(sku, qty, available)
	}

	updateQuery := `
		UPDATE products
		SET available = available - $1,
		    reserved = reserved + $1,
		    reservation_expires_at = GREATEST(COALESCE(reservation_expires_at, $2), $2),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING sku, available, reserved, sold, low_stock_threshold`

	var c ProductCounters
	err = tx.QueryRow(ctx, updateQuery, qty, expiresAt, productID).Scan(
		&c.SKU, &c.Available, &c.Reserved, &c.Sold, &c.LowStockThreshold,
	)
	if err != nil {
		return ProductCounters{}, fmt.Errorf("reserve product %s: %w", productID, err)
	}

	l.logger.DebugContext(ctx, "product reserved",
		slog.String("sku", c.SKU),
		slog.Int("quantity", qty),
		slog.Int("available", c.Available),
		slog.Int("reserved", c.Reserved),
	)

	return c, nil
}

// ConfirmProduct converts qty reserved units into sold units. The reservation
// expiry is cleared once nothing remains reserved.
func (l *Ledger) ConfirmProduct(ctx context.Context, tx pgx.Tx, productID string, qty int) (ProductCounters, error) {
	sku, reserved, err := l.lockProduct(ctx, tx, productID)
	if err != nil {
		return ProductCounters{}, err
	}

	if reserved < qty {
		return ProductCounters{}, apperrors.Internal(
			fmt.Errorf("product %s: confirm %d exceeds reserved %d", sku, qty, reserved))
	}

	updateQuery := `
		UPDATE products
		SET reserved = reserved - $1,
		    sold = sold + $1,
		    reservation_expires_at = CASE WHEN reserved - $1 = 0 THEN NULL ELSE reservation_expires_at END,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING sku, available, reserved, sold, low_stock_threshold`

	var c ProductCounters
	err = tx.QueryRow(ctx, updateQuery, qty, productID).Scan(
		&c.SKU, &c.Available, &c.Reserved, &c.Sold, &c.LowStockThreshold,
	)
	if err != nil {
		return ProductCounters{}, fmt.Errorf("confirm product %s: %w", productID, err)
	}

	return c, nil
}

// ReleaseProduct returns qty reserved units to available.
func (l *Ledger) ReleaseProduct(ctx context.Context, tx pgx.Tx, productID string, qty int) (ProductCounters, error) {
	sku, reserved, err := l.lockProduct(ctx, tx, productID)
	if err != nil {
		return ProductCounters{}, err
	}

	if reserved < qty {
		return ProductCounters{}, apperrors.Internal(
			fmt.Errorf("product %s: release %d exceeds reserved %d", sku, qty, reserved))
	}

	updateQuery := `
		UPDATE products
		SET reserved = reserved - $1,
		    available = available + $1,
		    reservation_expires_at = CASE WHEN reserved - $1 = 0 THEN NULL ELSE reservation_expires_at END,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING sku, available, reserved, sold, low_stock_threshold`

	var c ProductCounters
	err = tx.QueryRow(ctx, updateQuery, qty, productID).Scan(
		&c.SKU, &c.Available, &c.Reserved, &c.Sold, &c.LowStockThreshold,
	)
	if err != nil {
		return ProductCounters{}, fmt.Errorf("release product %s: %w", productID, err)
	}

	return c, nil
}

func (l *Ledger) lockProduct(ctx context.Context, tx pgx.Tx, productID string) (sku string, reserved int, err error) {
	lockQuery := `
		SELECT sku, reserved
		FROM products
		WHERE id = $1
		FOR UPDATE`

	err = tx.QueryRow(ctx, lockQuery, productID).Scan(&sku, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, apperrors.NotFound("product", productID)
		}
		return "", 0, fmt.Errorf("lock product %s: %w", productID, err)
	}
	return sku, reserved, nil
}

// ReserveAnimal places an exclusive hold on an animal. An animal that is
// already reserved or sold cannot be reserved again.
func (l *Ledger) ReserveAnimal(ctx context.Context, tx pgx.Tx, animalID string, expiresAt time.Time) error {
	available, reserved, err := l.lockAnimal(ctx, tx, animalID)
	if err != nil {
		return err
	}

	if reserved || !available {
		return apperrors.AlreadyReserved(animalID)
	}

	updateQuery := `
		UPDATE animals
		SET available = FALSE,
		    reserved = TRUE,
		    reservation_expires_at = $1,
		    updated_at = NOW()
		WHERE id = $2`

	if _, err := tx.Exec(ctx, updateQuery, expiresAt, animalID); err != nil {
		return fmt.Errorf("reserve animal %s: %w", animalID, err)
	}

	return nil
}

// ConfirmAnimal converts a held animal into a sold one.
func (l *Ledger) ConfirmAnimal(ctx context.Context, tx pgx.Tx, animalID string) error {
	_, reserved, err := l.lockAnimal(ctx, tx, animalID)
	if err != nil {
		return err
	}

	if !reserved {
		return apperrors.Internal(fmt.Errorf("animal %s: confirm without an active hold", animalID))
	}

	updateQuery := `
		UPDATE animals
		SET reserved = FALSE,
		    reservation_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, updateQuery, animalID); err != nil {
		return fmt.Errorf("confirm animal %s: %w", animalID, err)
	}

	return nil
}

// ReleaseAnimal returns a held animal to the free state.
func (l *Ledger) ReleaseAnimal(ctx context.Context, tx pgx.Tx, animalID string) error {
	_, reserved, err := l.lockAnimal(ctx, tx, animalID)
	if err != nil {
		return err
	}

	if !reserved {
		return apperrors.Internal(fmt.Errorf("animal %s: release without an active hold", animalID))
	}

	updateQuery := `
		UPDATE animals
		SET available = TRUE,
		    reserved = FALSE,
		    reservation_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, updateQuery, animalID); err != nil {
		return fmt.Errorf("release animal %s: %w", animalID, err)
	}

	return nil
}

func (l *Ledger) lockAnimal(ctx context.Context, tx pgx.Tx, animalID string) (available, reserved bool, err error) {
	lockQuery := `
		SELECT available, reserved
		FROM animals
		WHERE id = $1
		FOR UPDATE`

	err = tx.QueryRow(ctx, lockQuery, animalID).Scan(&available, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, apperrors.NotFound("animal", animalID)
		}
		return false, false, fmt.Errorf("lock animal %s: %w", animalID, err)
	}
	return available, reserved, nil
}
