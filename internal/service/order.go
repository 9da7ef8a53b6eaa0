package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	"github.com/erickpaine43/Mascotas-sub000/internal/event"
	"github.com/erickpaine43/Mascotas-sub000/internal/repository"
)

// OrderService implements the order lifecycle: creation with an immediate
// stock hold, payment confirmation, cancellation, and fulfillment
// transitions.
type OrderService struct {
	repo        repository.OrderRepository
	stockRepo   repository.StockRepository
	animalRepo  repository.AnimalRepository
	reservation ReservationManager
	taxPolicy   domain.TaxPolicy
	producer    *event.Producer
	logger      *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	repo repository.OrderRepository,
	stockRepo repository.StockRepository,
	animalRepo repository.AnimalRepository,
	reservation ReservationManager,
	taxPolicy domain.TaxPolicy,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:        repo,
		stockRepo:   stockRepo,
		animalRepo:  animalRepo,
		reservation: reservation,
		taxPolicy:   taxPolicy,
		producer:    producer,
		logger:      logger,
	}
}

// CreateOrderLineInput references exactly one product SKU or one animal.
type CreateOrderLineInput struct {
	ProductID string `json:"product_id,omitempty"`
	AnimalID  string `json:"animal_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	UserID   string                 `json:"user_id"`
	Lines    []CreateOrderLineInput `json:"lines"`
	Currency string                 `json:"currency"`
}

// buildLine resolves one input line against the catalog, freezing the unit
// name and price at order time, and pre-checks availability so obviously
// unfillable orders fail before anything is persisted.
func (s *OrderService) buildLine(ctx context.Context, input CreateOrderLineInput) (domain.OrderLine, error) {
	switch {
	case input.ProductID != "" && input.AnimalID != "":
		return domain.OrderLine{}, apperrors.InvalidInput("line must reference a product or an animal, not both")

	case input.ProductID != "":
		if input.Quantity <= 0 {
			return domain.OrderLine{}, apperrors.InvalidInput("quantity must be greater than zero")
		}
		product, err := s.stockRepo.GetByID(ctx, input.ProductID)
		if err != nil {
			return domain.OrderLine{}, fmt.Errorf("resolve product line: %w", err)
		}
		if product.Available < input.Quantity {
			return domain.OrderLine{}, apperrors.InsufficientStock(product.SKU, input.Quantity, product.Available)
		}
		line := domain.NewProductLine(product.ID, product.Name, product.PriceCents, input.Quantity)
		return line, nil

	case input.AnimalID != "":
		if input.Quantity > 1 {
			return domain.OrderLine{}, apperrors.InvalidInput("animal lines carry exactly one unit")
		}
		animal, err := s.animalRepo.GetByID(ctx, input.AnimalID)
		if err != nil {
			return domain.OrderLine{}, fmt.Errorf("resolve animal line: %w", err)
		}
		if animal.State() != domain.AnimalStateFree {
			return domain.OrderLine{}, apperrors.AlreadyReserved(animal.ID)
		}
		line := domain.NewAnimalLine(animal.ID, animal.Name, animal.PriceCents)
		return line, nil

	default:
		return domain.OrderLine{}, apperrors.InvalidInput("line must reference a product or an animal")
	}
}

// CreateOrder creates a pending order and immediately reserves its stock. If
// the reservation cannot be placed the order is persisted as canceled and the
// reservation failure is returned to the caller.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if len(input.Lines) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one line")
	}
	if len(input.Currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}

	now := time.Now().UTC()
	orderID := uuid.New().String()

	var subtotal int64
	lines := make([]domain.OrderLine, len(input.Lines))
	for i, lineInput := range input.Lines {
		line, err := s.buildLine(ctx, lineInput)
		if err != nil {
			return nil, err
		}
		line.ID = uuid.New().String()
		line.OrderID = orderID
		lines[i] = line
		subtotal += line.LineTotal()
	}

	tax := s.taxPolicy(subtotal)

	order := &domain.Order{
		ID:            orderID,
		UserID:        input.UserID,
		Status:        domain.OrderStatusPending,
		Lines:         lines,
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
		Currency:      strings.ToUpper(input.Currency),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.appendHistory(ctx, order.ID, domain.OrderStatusPending, "order placed", "")

	if err := s.reservation.ReserveOrder(ctx, order); err != nil {
		// The pending row exists but holds nothing; mark it canceled so it
		// never looks like a live order, then surface the original failure.
		reason := "reservation failed: " + err.Error()
		if updErr := s.repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCanceled, reason); updErr != nil {
			s.logger.ErrorContext(ctx, "failed to cancel unreservable order",
				slog.String("order_id", order.ID),
				slog.String("error", updErr.Error()),
			)
		} else {
			s.appendHistory(ctx, order.ID, domain.OrderStatusCanceled, reason, "")
		}
		return nil, err
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int64("total_cents", order.TotalCents),
	)

	return order, nil
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListOrders returns a filtered, paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// GetHistory returns the customer-facing history of an order, oldest first.
func (s *OrderService) GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, fmt.Errorf("get order for history: %w", err)
	}

	entries, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	return entries, nil
}

// ConfirmPayment settles the order's hold into a sale and marks it confirmed.
// Calling it again after the order is confirmed is a no-op, which is what
// lets the webhook and the kafka consumer race safely.
func (s *OrderService) ConfirmPayment(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for confirm: %w", err)
	}

	if order.Status == domain.OrderStatusConfirmed {
		return order, nil
	}
	if !order.CanTransitionTo(domain.OrderStatusConfirmed) {
		return nil, apperrors.InvalidTransition(order.Status, domain.OrderStatusConfirmed)
	}
	if !order.ReservationActive {
		// Pending but no live hold: the sweeper or a cancel already released
		// the units, so there is nothing left to sell.
		return nil, apperrors.InvalidTransition(order.Status, domain.OrderStatusConfirmed)
	}

	settled, err := s.reservation.ConfirmOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}
	if !settled {
		// Lost the race against a release; whoever cleared the hold also
		// flipped the status, so this payment arrived too late.
		return nil, apperrors.InvalidTransition(order.Status, domain.OrderStatusConfirmed)
	}

	s.appendHistory(ctx, id, domain.OrderStatusConfirmed, "payment received", "")

	if err := s.producer.PublishOrderConfirmed(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.confirmed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order confirmed", slog.String("order_id", id))

	return order, nil
}

// CancelOrder releases the order's hold and marks it canceled. Only pending
// orders can be canceled; a confirmed order is refunded out of band, never
// canceled here. Canceling an already-canceled order is a no-op.
func (s *OrderService) CancelOrder(ctx context.Context, id string, reason string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for cancel: %w", err)
	}

	if order.Status == domain.OrderStatusCanceled {
		return order, nil
	}
	if !order.CanTransitionTo(domain.OrderStatusCanceled) {
		return nil, apperrors.InvalidTransition(order.Status, domain.OrderStatusCanceled)
	}

	released, err := s.reservation.ReleaseOrder(ctx, order, domain.OrderStatusCanceled, reason)
	if err != nil {
		return nil, fmt.Errorf("release reservation: %w", err)
	}
	if !released {
		// No live hold to settle; this covers the order whose reservation
		// never got placed. The guarded update still loses cleanly if
		// someone else flipped the status first.
		if err := s.repo.UpdateStatus(ctx, id, order.Status, domain.OrderStatusCanceled, reason); err != nil {
			return nil, fmt.Errorf("mark order canceled: %w", err)
		}
		order.Status = domain.OrderStatusCanceled
	}
	s.appendHistory(ctx, id, domain.OrderStatusCanceled, reason, "")

	order.CanceledReason = reason

	if err := s.producer.PublishOrderCanceled(ctx, order, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.canceled event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order canceled",
		slog.String("order_id", id),
		slog.String("reason", reason),
	)

	return order, nil
}

// MarkShipped transitions a confirmed order to shipped.
func (s *OrderService) MarkShipped(ctx context.Context, id, note, location string) (*domain.Order, error) {
	return s.advance(ctx, id, domain.OrderStatusShipped, note, location)
}

// MarkDelivered transitions a shipped order to delivered.
func (s *OrderService) MarkDelivered(ctx context.Context, id, note, location string) (*domain.Order, error) {
	return s.advance(ctx, id, domain.OrderStatusDelivered, note, location)
}

// MarkCompleted closes out a delivered order.
func (s *OrderService) MarkCompleted(ctx context.Context, id, note string) (*domain.Order, error) {
	return s.advance(ctx, id, domain.OrderStatusCompleted, note, "")
}

// advance performs a fulfillment transition with history, no stock movement.
func (s *OrderService) advance(ctx context.Context, id, status, note, location string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for %s: %w", status, err)
	}

	if !order.CanTransitionTo(status) {
		return nil, apperrors.InvalidTransition(order.Status, status)
	}

	if err := s.repo.UpdateStatus(ctx, id, order.Status, status, ""); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.appendHistory(ctx, id, status, note, location)

	order.Status = status

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("status", status),
	)

	return order, nil
}

// appendHistory is best-effort; a history write failure never fails the
// operation that triggered it.
func (s *OrderService) appendHistory(ctx context.Context, orderID, status, note, location string) {
	entry := &domain.HistoryEntry{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    status,
		Note:      note,
		Location:  location,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append order history",
			slog.String("order_id", orderID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}
