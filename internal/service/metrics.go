package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mascotas_reservations_created_total",
		Help: "Total number of stock reservations placed.",
	})

	reservationsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mascotas_reservations_confirmed_total",
		Help: "Total number of reservations converted into sales.",
	})

	reservationsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mascotas_reservations_released_total",
		Help: "Total number of reservations returned to the pool, by terminal status.",
	}, []string{"status"})

	ordersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mascotas_orders_expired_total",
		Help: "Total number of pending orders expired by the sweeper.",
	})

	orphansRepaired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mascotas_orphaned_reservations_repaired_total",
		Help: "Stock rows with a lapsed hold and no owning order, repaired by the sweeper.",
	}, []string{"kind"})

	lowStockAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mascotas_low_stock_alerts_total",
		Help: "Total number of low stock alerts emitted.",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mascotas_sweep_duration_seconds",
		Help:    "Duration of expiry sweeper runs.",
		Buckets: prometheus.DefBuckets,
	})

	gatewayEventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mascotas_gateway_events_handled_total",
		Help: "Payment gateway events processed, by type and outcome.",
	}, []string{"type", "outcome"})
)
