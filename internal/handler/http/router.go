package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erickpaine43/Mascotas-sub000/pkg/health"
	"github.com/erickpaine43/Mascotas-sub000/pkg/middleware"

	"github.com/erickpaine43/Mascotas-sub000/internal/service"
)

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	orders *service.OrderService,
	checkout *service.CheckoutService,
	stock *service.StockService,
	settlement *service.SettlementService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("mascotas"))
	r.Use(middleware.Tracing("mascotas"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	orderHandler := NewOrderHandler(orders, checkout, logger)
	stockHandler := NewStockHandler(stock, logger)
	webhookHandler := NewWebhookHandler(settlement, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
		r.Get("/{id}/history", orderHandler.GetHistory)
		r.Post("/{id}/cancel", orderHandler.CancelOrder)
		r.Post("/{id}/checkout", orderHandler.Checkout)
		r.Post("/{id}/status", orderHandler.UpdateStatus)
	})

	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", stockHandler.SeedStock)
		r.Post("/check", stockHandler.CheckStock)
		r.Get("/reservations", stockHandler.ListReservations)
		r.Get("/{sku}", stockHandler.GetStock)
	})

	r.Route("/api/v1/animals", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", stockHandler.RegisterAnimal)
		r.Get("/{id}", stockHandler.GetAnimal)
	})

	// The gateway signs its own content type; no JSON middleware here.
	r.Post("/api/v1/webhooks/payment", webhookHandler.HandlePaymentEvent)

	return r
}
