package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
)

type checkoutFixture struct {
	orders   *mockOrderSettler
	repo     *mockOrderRepository
	provider *mockGatewayProvider
	svc      *CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:   new(mockOrderSettler),
		repo:     new(mockOrderRepository),
		provider: new(mockGatewayProvider),
	}
	f.svc = NewCheckoutService(
		f.orders, f.repo, f.provider,
		"https://shop.example.com/success", "https://shop.example.com/cancel",
		newTestLogger(),
	)
	return f
}

func checkoutOrder() *domain.Order {
	productID := "prod-1"
	return &domain.Order{
		ID:                "order-1",
		UserID:            "user-1",
		Status:            domain.OrderStatusPending,
		ReservationActive: true,
		SubtotalCents:     3998,
		TaxCents:          640,
		TotalCents:        4638,
		Currency:          "MXN",
		Lines: []domain.OrderLine{
			{ID: "line-1", OrderID: "order-1", ProductID: &productID, Name: "Cat Food 2kg", UnitPriceCents: 1999, Quantity: 2},
		},
	}
}

func TestCreateSession_PersistsCorrelationIDs(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	order := checkoutOrder()

	session := &gateway.Session{
		ID:              "cs_123",
		URL:             "https://pay.example.com/cs_123",
		PaymentIntentID: "pi_456",
		ExpiresAt:       time.Now().Add(15 * time.Minute),
	}

	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.provider.On("CreateSession", ctx, mock.MatchedBy(func(input *gateway.SessionInput) bool {
		return input.OrderID == "order-1" &&
			input.AmountCents == 4638 &&
			input.Currency == "MXN" &&
			input.SuccessURL == "https://shop.example.com/success"
	})).Return(session, nil)
	f.repo.On("SetCheckoutSession", ctx, "order-1", "cs_123").Return(nil)
	f.repo.On("SetPaymentIntent", ctx, "order-1", "pi_456").Return(nil)

	got, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})

	require.NoError(t, err)
	assert.Equal(t, "cs_123", got.ID)
	assert.Equal(t, "https://pay.example.com/cs_123", got.URL)
	f.repo.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestCreateSession_GatewayFailureAbortsOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	order := checkoutOrder()

	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.provider.On("CreateSession", ctx, mock.Anything).
		Return(nil, apperrors.Gateway("gateway unreachable", assert.AnError))
	f.orders.On("CancelOrder", ctx, "order-1", "payment gateway failure").
		Return(&domain.Order{ID: "order-1", Status: domain.OrderStatusCanceled}, nil)

	_, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	f.orders.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "SetCheckoutSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateSession_CorrelationPersistFailureVoidsSession(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	order := checkoutOrder()

	session := &gateway.Session{ID: "cs_123", URL: "https://pay.example.com/cs_123"}

	f.repo.On("GetByID", ctx, "order-1").Return(order, nil)
	f.provider.On("CreateSession", ctx, mock.Anything).Return(session, nil)
	f.repo.On("SetCheckoutSession", ctx, "order-1", "cs_123").Return(assert.AnError)
	f.provider.On("ExpireSession", ctx, "cs_123").Return(nil)
	f.orders.On("CancelOrder", ctx, "order-1", "checkout correlation failure").
		Return(&domain.Order{ID: "order-1", Status: domain.OrderStatusCanceled}, nil)

	_, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})

	require.Error(t, err)
	f.provider.AssertCalled(t, "ExpireSession", ctx, "cs_123")
	f.orders.AssertExpectations(t)
}

func TestCreateSession_RequiresPendingReservedOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	t.Run("not pending", func(t *testing.T) {
		order := checkoutOrder()
		order.Status = domain.OrderStatusConfirmed
		f.repo.On("GetByID", ctx, "order-1").Return(order, nil).Once()

		_, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	})

	t.Run("no reservation", func(t *testing.T) {
		order := checkoutOrder()
		order.ReservationActive = false
		f.repo.On("GetByID", ctx, "order-1").Return(order, nil).Once()

		_, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("session already exists", func(t *testing.T) {
		order := checkoutOrder()
		existing := "cs_old"
		order.CheckoutSessionID = &existing
		f.repo.On("GetByID", ctx, "order-1").Return(order, nil).Once()

		_, err := f.svc.CreateSession(ctx, CreateSessionInput{OrderID: "order-1"})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	})
}
