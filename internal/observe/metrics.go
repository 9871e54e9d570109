// Package observe implements the protocol observer on Prometheus.
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Orders created",
	})

	paymentsInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_payments_initiated_total",
		Help: "Payment records created",
	})

	callbacksVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_callbacks_verified_total",
		Help: "Gateway callbacks accepted, by outcome",
	}, []string{"outcome"})

	callbacksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_callbacks_rejected_total",
		Help: "Gateway callbacks dropped for bad signatures",
	})

	reconciliationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reconciliations_applied_total",
		Help: "Repairs applied by the reconciliation sweep, by rule",
	}, []string{"rule"})

	anomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_anomalies_total",
		Help: "States the protocol refuses to auto-resolve, by kind",
	}, []string{"kind"})
)

// PrometheusObserver satisfies application.CheckoutObserver.
type PrometheusObserver struct{}

func NewPrometheusObserver() *PrometheusObserver {
	return &PrometheusObserver{}
}

func (*PrometheusObserver) OrderCreated()     { ordersCreated.Inc() }
func (*PrometheusObserver) PaymentInitiated() { paymentsInitiated.Inc() }

func (*PrometheusObserver) CallbackVerified(outcome string) {
	callbacksVerified.WithLabelValues(outcome).Inc()
}

func (*PrometheusObserver) CallbackRejected() { callbacksRejected.Inc() }

func (*PrometheusObserver) ReconciliationApplied(rule string) {
	reconciliationsApplied.WithLabelValues(rule).Inc()
}

func (*PrometheusObserver) AnomalyDetected(kind string) {
	anomaliesDetected.WithLabelValues(kind).Inc()
}

// MetricsHandler serves the scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
