package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/erickpaine43/Mascotas-sub000/pkg/httputil"

	"github.com/erickpaine43/Mascotas-sub000/internal/gateway"
	"github.com/erickpaine43/Mascotas-sub000/internal/service"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment gateway notifications. The gateway retries
// anything that is not a 2xx, and retrying cannot fix a payload we could not
// act on, so every readable delivery is acknowledged; failures are logged and
// left to the kafka-replayed copy of the stream.
type WebhookHandler struct {
	settlement *service.SettlementService
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(settlement *service.SettlementService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		settlement: settlement,
		logger:     logger,
	}
}

// HandlePaymentEvent handles POST /api/v1/webhooks/payment
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "unreadable request body"},
		})
		return
	}

	evt, err := gateway.ParseEvent(payload)
	if err != nil || evt.ID == "" {
		h.logger.WarnContext(r.Context(), "discarding malformed gateway webhook",
			slog.Int("payload_bytes", len(payload)),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "malformed gateway event"},
		})
		return
	}

	if err := h.settlement.HandleGatewayEvent(r.Context(), evt); err != nil {
		h.logger.ErrorContext(r.Context(), "gateway webhook processing failed",
			slog.String("event_id", evt.ID),
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"received": true}})
}
