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

// SettlementService drives order transitions from payment gateway events.
// Almost everything is acknowledged: unknown event types, events that match
// no order, and events arriving after the order already settled are logged
// and swallowed, because redelivering them cannot change the outcome. Only
// storage failures propagate, so the delivery gets retried.
// orderSettler is the slice of OrderService settlement drives.
type orderSettler interface {
	ConfirmPayment(ctx context.Context, id string) (*domain.Order, error)
	CancelOrder(ctx context.Context, id string, reason string) (*domain.Order, error)
}

type SettlementService struct {
	orders orderSettler
	repo   repository.OrderRepository
	logger *slog.Logger
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(orders orderSettler, repo repository.OrderRepository, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		orders: orders,
		repo:   repo,
		logger: logger,
	}
}

// HandleGatewayEvent processes one gateway notification.
func (s *SettlementService) HandleGatewayEvent(ctx context.Context, evt gateway.Event) error {
	switch evt.Type {
	case gateway.EventCheckoutCompleted, gateway.EventPaymentSucceeded:
		return s.settle(ctx, evt, true)

	case gateway.EventCheckoutExpired, gateway.EventCheckoutUnpaid, gateway.EventPaymentFailed:
		return s.settle(ctx, evt, false)

	default:
		s.logger.InfoContext(ctx, "ignoring unknown gateway event type",
			slog.String("event_id", evt.ID),
			slog.String("type", evt.Type),
		)
		gatewayEventsHandled.WithLabelValues(evt.Type, "ignored").Inc()
		return nil
	}
}

// resolveOrder matches the event to an order through its correlation ids.
func (s *SettlementService) resolveOrder(ctx context.Context, data gateway.EventData) (*domain.Order, error) {
	if data.SessionID != "" {
		order, err := s.repo.GetByCheckoutSessionID(ctx, data.SessionID)
		if err == nil || !errors.Is(err, apperrors.ErrCorrelationNotFound) {
			return order, err
		}
	}
	if data.PaymentIntentID != "" {
		return s.repo.GetByPaymentIntentID(ctx, data.PaymentIntentID)
	}
	return nil, apperrors.CorrelationNotFound(data.SessionID)
}

func (s *SettlementService) settle(ctx context.Context, evt gateway.Event, success bool) error {
	order, err := s.resolveOrder(ctx, evt.Data)
	if err != nil {
		if errors.Is(err, apperrors.ErrCorrelationNotFound) {
			// Retrying cannot make the order appear; ack and move on.
			s.logger.WarnContext(ctx, "gateway event matches no order",
				slog.String("event_id", evt.ID),
				slog.String("type", evt.Type),
				slog.String("session_id", evt.Data.SessionID),
				slog.String("payment_intent_id", evt.Data.PaymentIntentID),
			)
			gatewayEventsHandled.WithLabelValues(evt.Type, "unmatched").Inc()
			return nil
		}
		return fmt.Errorf("resolve order for gateway event %s: %w", evt.ID, err)
	}

	if success {
		return s.confirm(ctx, evt, order)
	}
	return s.cancel(ctx, evt, order)
}

func (s *SettlementService) confirm(ctx context.Context, evt gateway.Event, order *domain.Order) error {
	if _, err := s.orders.ConfirmPayment(ctx, order.ID); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// The sweeper or a cancellation settled this order first.
			s.logger.WarnContext(ctx, "payment succeeded for already-settled order",
				slog.String("event_id", evt.ID),
				slog.String("order_id", order.ID),
				slog.String("status", order.Status),
			)
			gatewayEventsHandled.WithLabelValues(evt.Type, "stale").Inc()
			return nil
		}
		return fmt.Errorf("confirm payment for order %s: %w", order.ID, err)
	}

	gatewayEventsHandled.WithLabelValues(evt.Type, "confirmed").Inc()
	return nil
}

func (s *SettlementService) cancel(ctx context.Context, evt gateway.Event, order *domain.Order) error {
	if order.Status != domain.OrderStatusPending {
		// A success event won the race; a late failure changes nothing.
		s.logger.InfoContext(ctx, "ignoring payment failure for non-pending order",
			slog.String("event_id", evt.ID),
			slog.String("order_id", order.ID),
			slog.String("status", order.Status),
		)
		gatewayEventsHandled.WithLabelValues(evt.Type, "stale").Inc()
		return nil
	}

	reason := evt.Data.FailureReason
	if reason == "" {
		reason = "payment " + evt.Type
	}

	if _, err := s.orders.CancelOrder(ctx, order.ID, reason); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			gatewayEventsHandled.WithLabelValues(evt.Type, "stale").Inc()
			return nil
		}
		return fmt.Errorf("cancel order %s after payment failure: %w", order.ID, err)
	}

	gatewayEventsHandled.WithLabelValues(evt.Type, "canceled").Inc()
	return nil
}
