package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erickpaine43/Mascotas-sub000/internal/domain"
	pkgkafka "github.com/erickpaine43/Mascotas-sub000/pkg/kafka"
)

// Kafka topics for domain events.
const (
	TopicOrderCreated   = "mascotas.order.created"
	TopicOrderConfirmed = "mascotas.order.confirmed"
	TopicOrderCanceled  = "mascotas.order.canceled"
	TopicOrderExpired   = "mascotas.order.expired"
	TopicStockReleased  = "mascotas.stock.released"
	TopicLowStock       = "mascotas.stock.low_stock"
)

// Aggregate type constants.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// Source identifier for events originating from this server.
const Source = "mascotas-server"

// OrderEventData is the payload shared by order lifecycle events.
type OrderEventData struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     string          `json:"status"`
	Lines      []OrderLineData `json:"lines"`
	TotalCents int64           `json:"total_cents"`
	Currency   string          `json:"currency"`
	Reason     string          `json:"reason,omitempty"`
}

// OrderLineData is the event payload for an order line.
type OrderLineData struct {
	ID             string  `json:"id"`
	ProductID      *string `json:"product_id,omitempty"`
	AnimalID       *string `json:"animal_id,omitempty"`
	Name           string  `json:"name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
}

// StockReleasedData is the payload for a stock.released event.
type StockReleasedData struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// LowStockData is the payload for a stock.low_stock event.
type LowStockData struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Threshold int    `json:"threshold"`
}

// Producer publishes domain events to Kafka. Publish failures are wrapped and
// returned; callers log and continue, they never fail the operation.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new domain event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func orderData(order *domain.Order, reason string) OrderEventData {
	lines := make([]OrderLineData, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = OrderLineData{
			ID:             l.ID,
			ProductID:      l.ProductID,
			AnimalID:       l.AnimalID,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		}
	}

	return OrderEventData{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Lines:      lines,
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		Reason:     reason,
	}
}

func (p *Producer) publishOrderEvent(ctx context.Context, topic string, order *domain.Order, reason string) error {
	event, err := pkgkafka.NewEvent(topic, order.ID, AggregateTypeOrder, Source, orderData(order, reason))
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published order event",
		slog.String("topic", topic),
		slog.String("order_id", order.ID),
	)

	return nil
}

// PublishOrderCreated publishes an order.created event with the order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderCreated, order, "")
}

// PublishOrderConfirmed publishes an order.confirmed event after payment settles.
func (p *Producer) PublishOrderConfirmed(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderConfirmed, order, "")
}

// PublishOrderCanceled publishes an order.canceled event.
func (p *Producer) PublishOrderCanceled(ctx context.Context, order *domain.Order, reason string) error {
	return p.publishOrderEvent(ctx, TopicOrderCanceled, order, reason)
}

// PublishOrderExpired publishes an order.expired event from the sweeper.
func (p *Producer) PublishOrderExpired(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderExpired, order, "reservation expired")
}

// PublishStockReleased publishes a stock.released event when a reservation
// returns units to the pool.
func (p *Producer) PublishStockReleased(ctx context.Context, orderID, reason string) error {
	data := StockReleasedData{OrderID: orderID, Reason: reason}

	event, err := pkgkafka.NewEvent(TopicStockReleased, orderID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create stock.released event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockReleased, event); err != nil {
		return fmt.Errorf("publish stock.released event: %w", err)
	}

	return nil
}

// PublishLowStock publishes a stock.low_stock alert for a SKU.
func (p *Producer) PublishLowStock(ctx context.Context, sku string, available, threshold int) error {
	data := LowStockData{SKU: sku, Available: available, Threshold: threshold}

	event, err := pkgkafka.NewEvent(TopicLowStock, sku, AggregateTypeProduct, Source, data)
	if err != nil {
		return fmt.Errorf("create stock.low_stock event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicLowStock, event); err != nil {
		return fmt.Errorf("publish stock.low_stock event: %w", err)
	}

	p.logger.WarnContext(ctx, "low stock alert published",
		slog.String("sku", sku),
		slog.Int("available", available),
		slog.Int("threshold", threshold),
	)

	return nil
}
