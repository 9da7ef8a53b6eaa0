package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
	pkgkafka "github.com/erickpaine43/Mascotas-sub000/pkg/kafka"
)

// TopicGatewayEvents carries payment gateway notifications replayed through
// Kafka so settlement survives webhook endpoint downtime.
const TopicGatewayEvents = "mascotas.payment.gateway_events"

// SettlementService processes payment gateway events.
type SettlementService interface {
	HandleGatewayEvent(ctx context.Context, event gateway.Event) error
}

// Consumer handles inbound Kafka events for the order subsystem.
type Consumer struct {
	logger     *slog.Logger
	settlement SettlementService
}

// NewConsumer creates a new event consumer.
func NewConsumer(settlement SettlementService, logger *slog.Logger) *Consumer {
	return &Consumer{
		logger:     logger,
		settlement: settlement,
	}
}

// HandleGatewayEvent unmarshals a replayed gateway notification and hands it
// to the settlement service. Unknown event types are acked upstream, so any
// error returned here is a genuine processing failure worth retrying.
func (c *Consumer) HandleGatewayEvent(ctx context.Context, event *pkgkafka.Event) error {
	var data gateway.Event
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal gateway event data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing gateway event",
		slog.String("event_id", event.EventID),
		slog.String("gateway_event_id", data.ID),
		slog.String("type", data.Type),
	)

	if err := c.settlement.HandleGatewayEvent(ctx, data); err != nil {
		return fmt.Errorf("handle gateway event %s: %w", data.ID, err)
	}

	return nil
}
