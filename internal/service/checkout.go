package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
)

// CheckoutService opens hosted payment sessions for pending orders. A gateway
// failure aborts the order: the reservation is released and the order
// canceled before the error reaches the caller, so stock is never stranded
// behind a session that does not exist.
// orderAborter is the slice of OrderService checkout needs to unwind a
// failed session.
type orderAborter interface {
	CancelOrder(ctx context.Context, id string, reason string) (*domain.Order, error)
}

type CheckoutService struct {
	orders     orderAborter
	repo       repository.OrderRepository
	provider   gateway.Provider
	successURL string
	cancelURL  string
	logger     *slog.Logger
}

// NewCheckoutService creates a new checkout service. successURL and cancelURL
// are the defaults used when the caller does not supply its own.
func NewCheckoutService(
	orders orderAborter,
	repo repository.OrderRepository,
	provider gateway.Provider,
	successURL, cancelURL string,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:     orders,
		repo:       repo,
		provider:   provider,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger,
	}
}

// CreateSessionInput holds the parameters for opening a checkout session.
type CreateSessionInput struct {
	OrderID    string `json:"order_id"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// CreateSession opens a gateway session for a pending, reserved order and
// persists the correlation ids the settlement path will match on.
func (s *CheckoutService) CreateSession(ctx context.Context, input CreateSessionInput) (*gateway.Session, error) {
	if input.OrderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}

	order, err := s.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order for checkout: %w", err)
	}

	if order.Status != domain.OrderStatusPending {
		return nil, apperrors.InvalidTransition(order.Status, "checkout")
	}
	if !order.ReservationActive {
		return nil, apperrors.InvalidInput("order holds no active reservation")
	}
	if order.CheckoutSessionID != nil {
		return nil, apperrors.AlreadyExists("checkout session", "order_id", order.ID)
	}

	successURL := input.SuccessURL
	if successURL == "" {
		successURL = s.successURL
	}
	cancelURL := input.CancelURL
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}

	lineItems := make([]gateway.LineItem, len(order.Lines))
	for i, line := range order.Lines {
		lineItems[i] = gateway.LineItem{
			Name:            line.Name,
			UnitAmountCents: line.UnitPriceCents,
			Quantity:        line.Quantity,
		}
	}

	session, err := s.provider.CreateSession(ctx, &gateway.SessionInput{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		LineItems:   lineItems,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		Metadata:    map[string]string{"order_id": order.ID},
	})
	if err != nil {
		s.abortOrder(ctx, order.ID, "payment gateway failure")

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Gateway("create checkout session", err)
	}

	if err := s.repo.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		// The gateway session exists but cannot be correlated back; void it
		// so the customer cannot pay an order we will never confirm.
		if expErr := s.provider.ExpireSession(ctx, session.ID); expErr != nil {
			s.logger.ErrorContext(ctx, "failed to void uncorrelated session",
				slog.String("session_id", session.ID),
				slog.String("error", expErr.Error()),
			)
		}
		s.abortOrder(ctx, order.ID, "checkout correlation failure")
		return nil, fmt.Errorf("persist checkout session id: %w", err)
	}

	if session.PaymentIntentID != "" {
		if err := s.repo.SetPaymentIntent(ctx, order.ID, session.PaymentIntentID); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist payment intent id",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("order_id", order.ID),
		slog.String("session_id", session.ID),
		slog.String("provider", s.provider.Name()),
	)

	return session, nil
}

// abortOrder releases the hold and cancels the order after a checkout
// failure. Best-effort: the sweeper will reclaim anything left behind.
func (s *CheckoutService) abortOrder(ctx context.Context, orderID, reason string) {
	if _, err := s.orders.CancelOrder(ctx, orderID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to abort order after checkout failure",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
