package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/event"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
)

// DefaultSweepInterval is how often the sweeper scans for lapsed holds.
const DefaultSweepInterval = time.Minute

// sweepBatchSize caps how many lapsed orders a single run processes.
const sweepBatchSize = 100

// Sweeper reclaims stock from reservations whose expiry passed. Each run
// first expires lapsed pending orders, then repairs any counters still
// stamped with a past expiry that no live order accounts for. It races with
// settlement over the same orders; the reservation_active guard in the
// reservation service decides the winner.
type Sweeper struct {
	repo        repository.OrderRepository
	stockRepo   repository.StockRepository
	reservation ReservationManager
	producer    *event.Producer
	logger      *slog.Logger
	interval    time.Duration
}

// NewSweeper creates a new expiry sweeper. A non-positive interval falls back
// to DefaultSweepInterval.
func NewSweeper(
	repo repository.OrderRepository,
	stockRepo repository.StockRepository,
	reservation ReservationManager,
	producer *event.Producer,
	logger *slog.Logger,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		repo:        repo,
		stockRepo:   stockRepo,
		reservation: reservation,
		producer:    producer,
		logger:      logger,
		interval:    interval,
	}
}

// Run loops until the context is canceled. Sweep errors are logged, never
// fatal; the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: expire lapsed orders, then repair orphans.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	expired := s.expireLapsedOrders(ctx)
	s.repairOrphans(ctx)

	if expired > 0 {
		s.logger.InfoContext(ctx, "expiry sweep completed",
			slog.Int("orders_expired", expired),
			slog.Duration("took", time.Since(start)),
		)
	}
}

func (s *Sweeper) expireLapsedOrders(ctx context.Context) int {
	now := time.Now().UTC()

	ids, err := s.repo.ListExpiredReservations(ctx, now, sweepBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list expired reservations",
			slog.String("error", err.Error()),
		)
		return 0
	}

	expired := 0
	for _, id := range ids {
		if err := s.expireOrder(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to expire order",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		expired++
	}
	return expired
}

// expireOrder releases one lapsed order's hold and marks it expired, both
// inside the release transaction. If settlement confirmed the order between
// the scan and the release, the release reports false and the order is left
// exactly as the winner wrote it.
func (s *Sweeper) expireOrder(ctx context.Context, id string) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if !order.CanTransitionTo(domain.OrderStatusExpired) {
		return nil
	}

	released, err := s.reservation.ReleaseOrder(ctx, order, domain.OrderStatusExpired, "reservation expired")
	if err != nil {
		return err
	}
	if !released {
		// Lost the race to settlement; the hold was already consumed.
		return nil
	}

	ordersExpired.Inc()

	if err := s.producer.PublishOrderExpired(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.expired event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// repairOrphans restores units still stamped with a past expiry that no
// active order reservation explains. These only exist after a partial
// failure, so finding any is worth a warning.
func (s *Sweeper) repairOrphans(ctx context.Context) {
	now := time.Now().UTC()

	if n, err := s.stockRepo.SweepOrphanedProducts(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "orphaned product sweep failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		orphansRepaired.WithLabelValues("product").Add(float64(n))
		s.logger.WarnContext(ctx, "repaired orphaned product reservations", slog.Int("count", n))
	}

	if n, err := s.stockRepo.SweepOrphanedAnimals(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "orphaned animal sweep failed",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		orphansRepaired.WithLabelValues("animal").Add(float64(n))
		s.logger.WarnContext(ctx, "repaired orphaned animal reservations", slog.Int("count", n))
	}
}
