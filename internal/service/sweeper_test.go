package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
)

type sweeperFixture struct {
	repo        *mockOrderRepository
	stockRepo   *mockStockRepository
	reservation *mockReservationManager
	sweeper     *Sweeper
}

func newSweeperFixture() *sweeperFixture {
	f := &sweeperFixture{
		repo:        new(mockOrderRepository),
		stockRepo:   new(mockStockRepository),
		reservation: new(mockReservationManager),
	}
	f.sweeper = NewSweeper(f.repo, f.stockRepo, f.reservation, newTestProducer(), newTestLogger(), 0)
	return f
}

func TestSweep_ExpiresLapsedOrders(t *testing.T) {
	f := newSweeperFixture()
	ctx := context.Background()

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending, ReservationActive: true}

	f.repo.On("ListExpiredReservations", ctx, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]string{"order-1"}, nil)
	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.reservation.On("ReleaseOrder", ctx, order, domain.OrderStatusExpired, "reservation expired").
		Run(func(args mock.Arguments) {
			o := args.Get(1).(*domain.Order)
			o.Status = domain.OrderStatusExpired
			o.ReservationActive = false
		}).
		Return(true, nil)
	f.stockRepo.On("SweepOrphanedProducts", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)
	f.stockRepo.On("SweepOrphanedAnimals", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)

	f.sweeper.Sweep(ctx)

	f.reservation.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestSweep_SettlementAlreadyConfirmed(t *testing.T) {
	f := newSweeperFixture()
	ctx := context.Background()

	// By the time the sweeper loads the order, settlement already confirmed
	// it. The sweeper backs off before touching the reservation at all.
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusConfirmed}

	f.repo.On("ListExpiredReservations", ctx, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]string{"order-1"}, nil)
	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.stockRepo.On("SweepOrphanedProducts", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)
	f.stockRepo.On("SweepOrphanedAnimals", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)

	f.sweeper.Sweep(ctx)

	f.reservation.AssertNotCalled(t, "ReleaseOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_SettlementWinsBetweenLoadAndRelease(t *testing.T) {
	f := newSweeperFixture()
	ctx := context.Background()

	// The order still looked pending with a live hold when the sweeper read
	// it, but settlement cleared the guard first. A losing release reports
	// false, and the sweeper must leave the winner's confirmed status alone.
	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending, ReservationActive: true}

	f.repo.On("ListExpiredReservations", ctx, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]string{"order-1"}, nil)
	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.reservation.On("ReleaseOrder", ctx, order, domain.OrderStatusExpired, "reservation expired").
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Order).ReservationActive = false
		}).
		Return(false, nil)
	f.stockRepo.On("SweepOrphanedProducts", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)
	f.stockRepo.On("SweepOrphanedAnimals", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)

	f.sweeper.Sweep(ctx)

	f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_OrphanRepairRunsEvenWithNoExpiredOrders(t *testing.T) {
	f := newSweeperFixture()
	ctx := context.Background()

	f.repo.On("ListExpiredReservations", ctx, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]string{}, nil)
	f.stockRepo.On("SweepOrphanedProducts", ctx, mock.AnythingOfType("time.Time")).Return(3, nil)
	f.stockRepo.On("SweepOrphanedAnimals", ctx, mock.AnythingOfType("time.Time")).Return(1, nil)

	f.sweeper.Sweep(ctx)

	f.stockRepo.AssertExpectations(t)
}

func TestSweep_OneFailureDoesNotStopTheBatch(t *testing.T) {
	f := newSweeperFixture()
	ctx := context.Background()

	orderB := &domain.Order{ID: "order-b", Status: domain.OrderStatusPending, ReservationActive: true}

	f.repo.On("ListExpiredReservations", ctx, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]string{"order-a", "order-b"}, nil)
	f.repo.On("GetByID", ctx, "order-a").Return(nil, assert.AnError)
	f.repo.On("GetByID", ctx, "order-b").Return(orderB, nil)
	f.reservation.On("ReleaseOrder", ctx, orderB, domain.OrderStatusExpired, "reservation expired").Return(true, nil)
	f.stockRepo.On("SweepOrphanedProducts", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)
	f.stockRepo.On("SweepOrphanedAnimals", ctx, mock.AnythingOfType("time.Time")).Return(0, nil)

	f.sweeper.Sweep(ctx)

	f.reservation.AssertCalled(t, "ReleaseOrder", ctx, orderB, domain.OrderStatusExpired, "reservation expired")
}
