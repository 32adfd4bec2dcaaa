package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the sink injected into each engine. Built from a Registerer so
// tests can use an isolated registry instead of the process default.
type Metrics struct {
	OrdersCreatedTotal   prometheus.Counter
	OrdersFailedTotal    *prometheus.CounterVec
	CartClearFailedTotal prometheus.Counter

	ReservationsProcessedTotal prometheus.Counter
	ReservationsFailedTotal    *prometheus.CounterVec
	ReservationConflictsTotal  prometheus.Counter
	StockUpdatesTotal          prometheus.Counter
	ReserveLatency             prometheus.Histogram

	PaymentAttemptsTotal     prometheus.Counter
	PaymentSuccessTotal      prometheus.Counter
	PaymentFailedTotal       prometheus.Counter
	PaymentProcessingLatency prometheus.Histogram

	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// NewMetrics registers all fulfillment metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created at checkout",
		}),
		OrdersFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total number of failed checkouts",
		}, []string{"reason"}),
		CartClearFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cart_clear_failed_total",
			Help: "Total number of best-effort cart clears that failed",
		}),
		ReservationsProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservations_processed_total",
			Help: "Total number of reservations applied to stock",
		}),
		ReservationsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_reservations_failed_total",
			Help: "Total number of failed reservations",
		}, []string{"reason"}),
		ReservationConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "inventory_version_conflicts_total",
			Help: "Total number of optimistic-lock conflicts during reservation",
		}),
		StockUpdatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "inventory_stock_updates_total",
			Help: "Total number of stock row updates",
		}),
		ReserveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_reserve_latency_seconds",
			Help:    "Latency of inventory reservation operations",
			Buckets: prometheus.DefBuckets,
		}),
		PaymentAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Total number of payment attempts",
		}),
		PaymentSuccessTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_success_total",
			Help: "Total number of successful payments",
		}),
		PaymentFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_failed_total",
			Help: "Total number of failed payments",
		}),
		PaymentProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_processing_latency_seconds",
			Help:    "Latency of payment processing",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}
