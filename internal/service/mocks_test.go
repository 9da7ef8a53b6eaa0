package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	pkgkafka "github.com/erickpaine43/Mascotas-sub000/pkg/kafka"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/event"
	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
)

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer returns a producer with no broker behind it; publishes fail
// and are logged, which is exactly the non-fatal path production takes.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	cfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(cfg, logger), logger)
}

// --- Mock Order Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, from string, to string, reason string) error {
	args := m.Called(ctx, id, from, to, reason)
	return args.Error(0)
}

func (m *mockOrderRepository) SetCheckoutSession(ctx context.Context, id string, sessionID string) error {
	args := m.Called(ctx, id, sessionID)
	return args.Error(0)
}

func (m *mockOrderRepository) SetPaymentIntent(ctx context.Context, id string, intentID string) error {
	args := m.Called(ctx, id, intentID)
	return args.Error(0)
}

func (m *mockOrderRepository) AppendHistory(ctx context.Context, entry *domain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockOrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HistoryEntry), args.Error(1)
}

func (m *mockOrderRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockOrderRepository) ListActiveReservations(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

// --- Mock Stock Repository ---

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockStockRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockStockRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockStockRepository) SweepOrphanedProducts(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *mockStockRepository) SweepOrphanedAnimals(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// --- Mock Animal Repository ---

type mockAnimalRepository struct {
	mock.Mock
}

func (m *mockAnimalRepository) Create(ctx context.Context, a *domain.Animal) (*domain.Animal, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Animal), args.Error(1)
}

func (m *mockAnimalRepository) GetByID(ctx context.Context, id string) (*domain.Animal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Animal), args.Error(1)
}

// --- Mock Reservation Manager ---

type mockReservationManager struct {
	mock.Mock
}

func (m *mockReservationManager) ReserveOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockReservationManager) ConfirmOrder(ctx context.Context, order *domain.Order) (bool, error) {
	args := m.Called(ctx, order)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservationManager) ReleaseOrder(ctx context.Context, order *domain.Order, status, reason string) (bool, error) {
	args := m.Called(ctx, order, status, reason)
	return args.Bool(0), args.Error(1)
}

// --- Mock Gateway Provider ---

type mockGatewayProvider struct {
	mock.Mock
}

func (m *mockGatewayProvider) Name() string {
	return "mock"
}

func (m *mockGatewayProvider) CreateSession(ctx context.Context, input *gateway.SessionInput) (*gateway.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *mockGatewayProvider) ExpireSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// --- Mock Order Settler ---

type mockOrderSettler struct {
	mock.Mock
}

func (m *mockOrderSettler) ConfirmPayment(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderSettler) CancelOrder(ctx context.Context, id string, reason string) (*domain.Order, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}
