package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
	"github.com/erickpaine43/Mascotas-sub000/pkg/database"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/event"
	"github.com/erickpaine43/Mascotas-sub000/internal/ledger"
)

// DefaultReservationTTL is how long a reservation holds stock before the
// sweeper reclaims it.
const DefaultReservationTTL = 15 * time.Minute

// ReservationManager places, settles, and releases whole-order stock holds.
// Implemented by ReservationService.
//
// ConfirmOrder and ReleaseOrder report whether they actually settled the
// hold. Exactly one caller racing over an order gets true; the rest see
// false and must not touch the order's status, which the winner already
// flipped inside the same transaction that cleared the guard.
type ReservationManager interface {
	ReserveOrder(ctx context.Context, order *domain.Order) error
	ConfirmOrder(ctx context.Context, order *domain.Order) (bool, error)
	ReleaseOrder(ctx context.Context, order *domain.Order, status, reason string) (bool, error)
}

// ReservationService stamps and releases stock holds for whole orders. Every
// operation runs in a single transaction over all order lines, so a
// multi-line reserve either holds everything or nothing.
type ReservationService struct {
	pool     database.DBTX
	ledger   *ledger.Ledger
	producer *event.Producer
	logger   *slog.Logger
	ttl      time.Duration
}

// NewReservationService creates a new reservation service. A non-positive ttl
// falls back to DefaultReservationTTL.
func NewReservationService(
	pool database.DBTX,
	ldg *ledger.Ledger,
	producer *event.Producer,
	logger *slog.Logger,
	ttl time.Duration,
) *ReservationService {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &ReservationService{
		pool:     pool,
		ledger:   ldg,
		producer: producer,
		logger:   logger,
		ttl:      ttl,
	}
}

// sortedLines returns the order's lines ordered by referenced unit id, so
// concurrent reservations lock rows in a stable order and cannot deadlock.
func sortedLines(order *domain.Order) []domain.OrderLine {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].UnitID() < lines[j].UnitID()
	})
	return lines
}

// lockOrder locks the order row and returns its reservation_active flag.
func (s *ReservationService) lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	var active bool
	query := `SELECT reservation_active FROM orders WHERE id = $1 FOR UPDATE`

	if err := tx.QueryRow(ctx, query, orderID).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NotFound("order", orderID)
		}
		return false, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return active, nil
}

// ReserveOrder places a hold on every unit the order references and stamps
// reservation_active plus an expiry on the order, all in one transaction. If
// any line cannot be held, nothing is.
func (s *ReservationService) ReserveOrder(ctx context.Context, order *domain.Order) error {
	if len(order.Lines) == 0 {
		return apperrors.InvalidInput("order has no lines to reserve")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin reserve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	active, err := s.lockOrder(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if active {
		// Hold already placed by an earlier call.
		return nil
	}

	expiresAt := time.Now().UTC().Add(s.ttl)

	for _, line := range sortedLines(order) {
		switch line.Kind() {
		case domain.LineKindProduct:
			if _, err := s.ledger.ReserveProduct(ctx, tx, *line.ProductID, line.Quantity, expiresAt); err != nil {
				return err
			}
		case domain.LineKindAnimal:
			if err := s.ledger.ReserveAnimal(ctx, tx, *line.AnimalID, expiresAt); err != nil {
				return err
			}
		}
	}

	stampQuery := `
		UPDATE orders
		SET reservation_active = TRUE, reservation_expires_at = $1, updated_at = NOW()
		WHERE id = $2`

	if _, err := tx.Exec(ctx, stampQuery, expiresAt, order.ID); err != nil {
		return fmt.Errorf("stamp reservation on order %s: %w", order.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reserve transaction: %w", err)
	}

	order.ReservationActive = true
	order.ReservationExpiresAt = &expiresAt

	reservationsCreated.Inc()
	s.logger.InfoContext(ctx, "reservation placed",
		slog.String("order_id", order.ID),
		slog.Int("lines", len(order.Lines)),
		slog.Time("expires_at", expiresAt),
	)

	return nil
}

// ConfirmOrder converts the order's hold into a sale and marks the order
// confirmed in the same transaction. Returns false without touching anything
// when reservation_active is already false: a racing settle, cancel, or
// expiry got there first and owns the order's terminal status.
func (s *ReservationService) ConfirmOrder(ctx context.Context, order *domain.Order) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin confirm transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	active, err := s.lockOrder(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	if !active {
		order.ReservationActive = false
		return false, nil
	}

	var lowStock []ledger.ProductCounters
	for _, line := range sortedLines(order) {
		switch line.Kind() {
		case domain.LineKindProduct:
			counters, err := s.ledger.ConfirmProduct(ctx, tx, *line.ProductID, line.Quantity)
			if err != nil {
				return false, err
			}
			if counters.IsLowStock() {
				lowStock = append(lowStock, counters)
			}
		case domain.LineKindAnimal:
			if err := s.ledger.ConfirmAnimal(ctx, tx, *line.AnimalID); err != nil {
				return false, err
			}
		}
	}

	if err := s.settleReservation(ctx, tx, order.ID, domain.OrderStatusConfirmed, ""); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit confirm transaction: %w", err)
	}

	order.ReservationActive = false
	order.ReservationExpiresAt = nil
	order.Status = domain.OrderStatusConfirmed
	reservationsConfirmed.Inc()

	for _, counters := range lowStock {
		lowStockAlerts.Inc()
		if err := s.producer.PublishLowStock(ctx, counters.SKU, counters.Available, counters.LowStockThreshold); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish stock.low_stock event",
				slog.String("sku", counters.SKU),
				slog.String("error", err.Error()),
			)
		}
	}

	return true, nil
}

// ReleaseOrder returns the order's held units to the pool and moves the
// order to the given terminal status (canceled or expired) in the same
// transaction. Returns false without touching anything when the hold is
// already gone.
func (s *ReservationService) ReleaseOrder(ctx context.Context, order *domain.Order, status, reason string) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin release transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	active, err := s.lockOrder(ctx, tx, order.ID)
	if err != nil {
		return false, err
	}
	if !active {
		order.ReservationActive = false
		return false, nil
	}

	for _, line := range sortedLines(order) {
		switch line.Kind() {
		case domain.LineKindProduct:
			if _, err := s.ledger.ReleaseProduct(ctx, tx, *line.ProductID, line.Quantity); err != nil {
				return false, err
			}
		case domain.LineKindAnimal:
			if err := s.ledger.ReleaseAnimal(ctx, tx, *line.AnimalID); err != nil {
				return false, err
			}
		}
	}

	if err := s.settleReservation(ctx, tx, order.ID, status, reason); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit release transaction: %w", err)
	}

	order.ReservationActive = false
	order.ReservationExpiresAt = nil
	order.Status = status
	reservationsReleased.WithLabelValues(status).Inc()

	if err := s.producer.PublishStockReleased(ctx, order.ID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.released event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "reservation released",
		slog.String("order_id", order.ID),
		slog.String("status", status),
		slog.String("reason", reason),
	)

	return true, nil
}

// settleReservation clears the guard and flips the order's status in one
// statement, under the row lock taken by lockOrder. Keeping the flip inside
// the guard transaction is what makes the guard the single arbiter: a loser
// of the race never gets past lockOrder, so it can never overwrite the
// winner's status.
func (s *ReservationService) settleReservation(ctx context.Context, tx pgx.Tx, orderID, status, reason string) error {
	query := `
		UPDATE orders
		SET reservation_active = FALSE, reservation_expires_at = NULL,
			status = $1, canceled_reason = $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := tx.Exec(ctx, query, status, reason, orderID); err != nil {
		return fmt.Errorf("settle reservation on order %s: %w", orderID, err)
	}
	return nil
}
