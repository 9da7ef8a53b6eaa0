package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erickpaine43/Mascotas-sub000/pkg/database"
	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/ledger"
)

func newReservationFixture(t *testing.T) (*ReservationService, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := newTestLogger()
	svc := NewReservationService(pool, ledger.New(logger), newTestProducer(), logger, 0)
	return svc, pool
}

func reservableOrder() *domain.Order {
	animalID := "animal-1"
	productID := "prod-1"
	return &domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: domain.OrderStatusPending,
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: "order-1", ProductID: &productID, Name: "Cat Food 2kg", UnitPriceCents: 1999, Quantity: 2},
			{ID: "line-2", OrderID: "order-1", AnimalID: &animalID, Name: "Firulais", UnitPriceCents: 250000, Quantity: 1},
		},
	}
}

// ============================================================================
// ReserveOrder
// ============================================================================

func TestReserveOrder_AllLinesHeld(t *testing.T) {
	svc, pool := newReservationFixture(t)
	order := reservableOrder()

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(false))

	// Lines lock in unit-id order: animal-1 before prod-1.
	pool.ExpectQuery(`SELECT available, reserved\s+FROM animals`).
		WithArgs("animal-1").
		WillReturnRows(pgxmock.NewRows([]string{"available", "reserved"}).AddRow(true, false))
	pool.ExpectExec(`UPDATE animals\s+SET available = FALSE`).
		WithArgs(pgxmock.AnyArg(), "animal-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pool.ExpectQuery(`SELECT sku, available, reserved\s+FROM products`).
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "available", "reserved"}).AddRow("FOOD-CAT-2KG", 10, 0))
	pool.ExpectQuery(`UPDATE products\s+SET available = available - \$1`).
		WithArgs(2, pgxmock.AnyArg(), "prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "available", "reserved", "sold", "low_stock_threshold"}).
			AddRow("FOOD-CAT-2KG", 8, 2, 0, 5))

	pool.ExpectExec(`UPDATE orders\s+SET reservation_active = TRUE`).
		WithArgs(pgxmock.AnyArg(), order.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	err := svc.ReserveOrder(context.Background(), order)

	require.NoError(t, err)
	assert.True(t, order.ReservationActive)
	require.NotNil(t, order.ReservationExpiresAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReserveOrder_InsufficientStockRollsBackEverything(t *testing.T) {
	svc, pool := newReservationFixture(t)
	order := reservableOrder()

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(false))

	// The animal line is held first, then the product line fails; the
	// rollback must undo the animal hold too.
	pool.ExpectQuery(`SELECT available, reserved\s+FROM animals`).
		WithArgs("animal-1").
		WillReturnRows(pgxmock.NewRows([]string{"available", "reserved"}).AddRow(true, false))
	pool.ExpectExec(`UPDATE animals\s+SET available = FALSE`).
		WithArgs(pgxmock.AnyArg(), "animal-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pool.ExpectQuery(`SELECT sku, available, reserved\s+FROM products`).
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "available", "reserved"}).AddRow("FOOD-CAT-2KG", 1, 9))
	pool.ExpectRollback()

	err := svc.ReserveOrder(context.Background(), order)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.False(t, order.ReservationActive)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReserveOrder_ExclusiveUnitRaceLoss(t *testing.T) {
	svc, pool := newReservationFixture(t)

	animalID := "animal-1"
	order := &domain.Order{
		ID:     "order-2",
		Status: domain.OrderStatusPending,
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: "order-2", AnimalID: &animalID, Name: "Firulais", UnitPriceCents: 250000, Quantity: 1},
		},
	}

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(false))
	pool.ExpectQuery(`SELECT available, reserved\s+FROM animals`).
		WithArgs("animal-1").
		WillReturnRows(pgxmock.NewRows([]string{"available", "reserved"}).AddRow(false, true))
	pool.ExpectRollback()

	err := svc.ReserveOrder(context.Background(), order)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyReserved)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReserveOrder_AlreadyHeldIsNoOp(t *testing.T) {
	svc, pool := newReservationFixture(t)
	order := reservableOrder()

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(true))
	pool.ExpectRollback()

	err := svc.ReserveOrder(context.Background(), order)

	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReserveOrder_NoLines(t *testing.T) {
	svc, _ := newReservationFixture(t)

	err := svc.ReserveOrder(context.Background(), &domain.Order{ID: "order-3"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ============================================================================
// ConfirmOrder / ReleaseOrder
// ============================================================================

func TestConfirmOrder_GuardMakesSecondCallNoOp(t *testing.T) {
	svc, pool := newReservationFixture(t)
	order := reservableOrder()
	order.ReservationActive = true

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(false))
	pool.ExpectRollback()

	settled, err := svc.ConfirmOrder(context.Background(), order)

	require.NoError(t, err)
	assert.False(t, settled)
	assert.False(t, order.ReservationActive)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestConfirmOrder_MovesReservedToSold(t *testing.T) {
	svc, pool := newReservationFixture(t)

	productID := "prod-1"
	order := &domain.Order{
		ID:                "order-4",
		Status:            domain.OrderStatusPending,
		ReservationActive: true,
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: "order-4", ProductID: &productID, Name: "Cat Food 2kg", UnitPriceCents: 1999, Quantity: 2},
		},
	}

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(true))
	pool.ExpectQuery(`SELECT sku, reserved\s+FROM products`).
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "reserved"}).AddRow("FOOD-CAT-2KG", 2))
	pool.ExpectQuery(`UPDATE products\s+SET reserved = reserved - \$1,\s+sold = sold \+ \$1`).
		WithArgs(2, "prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "available", "reserved", "sold", "low_stock_threshold"}).
			AddRow("FOOD-CAT-2KG", 8, 0, 2, 5))
	pool.ExpectExec(`UPDATE orders\s+SET reservation_active = FALSE, reservation_expires_at = NULL,\s+status = \$1`).
		WithArgs(domain.OrderStatusConfirmed, "", order.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	settled, err := svc.ConfirmOrder(context.Background(), order)

	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.False(t, order.ReservationActive)
	assert.Nil(t, order.ReservationExpiresAt)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReleaseOrder_ReturnsUnitsToPool(t *testing.T) {
	svc, pool := newReservationFixture(t)

	productID := "prod-1"
	order := &domain.Order{
		ID:                "order-5",
		Status:            domain.OrderStatusPending,
		ReservationActive: true,
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: "order-5", ProductID: &productID, Name: "Cat Food 2kg", UnitPriceCents: 1999, Quantity: 2},
		},
	}

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(true))
	pool.ExpectQuery(`SELECT sku, reserved\s+FROM products`).
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "reserved"}).AddRow("FOOD-CAT-2KG", 2))
	pool.ExpectQuery(`UPDATE products\s+SET reserved = reserved - \$1,\s+available = available \+ \$1`).
		WithArgs(2, "prod-1").
		WillReturnRows(pgxmock.NewRows([]string{"sku", "available", "reserved", "sold", "low_stock_threshold"}).
			AddRow("FOOD-CAT-2KG", 10, 0, 0, 5))
	pool.ExpectExec(`UPDATE orders\s+SET reservation_active = FALSE, reservation_expires_at = NULL,\s+status = \$1`).
		WithArgs(domain.OrderStatusCanceled, "changed my mind", order.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	released, err := svc.ReleaseOrder(context.Background(), order, domain.OrderStatusCanceled, "changed my mind")

	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, domain.OrderStatusCanceled, order.Status)
	assert.False(t, order.ReservationActive)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestReleaseOrder_GuardMakesSecondCallNoOp(t *testing.T) {
	svc, pool := newReservationFixture(t)
	order := reservableOrder()

	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectQuery(`SELECT reservation_active FROM orders`).
		WithArgs(order.ID).
		WillReturnRows(pgxmock.NewRows([]string{"reservation_active"}).AddRow(false))
	pool.ExpectRollback()

	released, err := svc.ReleaseOrder(context.Background(), order, domain.OrderStatusExpired, "reservation expired")

	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.NoError(t, pool.ExpectationsWereMet())
}
