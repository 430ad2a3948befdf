package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RegistrationsTotal counts registration intake outcomes.
	RegistrationsTotal *prometheus.CounterVec
	// PaymentProofsTotal counts payment-proof intake outcomes.
	PaymentProofsTotal *prometheus.CounterVec
	// CouponValidations counts coupon validation outcomes.
	CouponValidations *prometheus.CounterVec
	// CatalogQueriesTotal counts proxied catalog queries by table and result.
	CatalogQueriesTotal *prometheus.CounterVec
	// WebhookForwardTotal tracks workflow webhook forwarding outcomes.
	WebhookForwardTotal *prometheus.CounterVec
	// WebhookForwardLatency records webhook forwarding latency in milliseconds.
	WebhookForwardLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Count of registration submissions by outcome.",
		}, []string{"result"})
		PaymentProofsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_proofs_total",
			Help:      "Count of payment-proof submissions by outcome.",
		}, []string{"result"})
		CouponValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Count of coupon validation outcomes.",
		}, []string{"outcome"})
		CatalogQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_queries_total",
			Help:      "Count of proxied catalog store queries.",
		}, []string{"table", "result"})
		WebhookForwardTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_forward_total",
			Help:      "Count of workflow webhook forwarding outcomes.",
		}, []string{"kind", "result"})
		WebhookForwardLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_forward_duration_ms",
			Help:      "Latency for workflow webhook forwarding attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"kind"})

		mustRegisterCollector(reg, RegistrationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RegistrationsTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentProofsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentProofsTotal = v
			}
		})
		mustRegisterCollector(reg, CouponValidations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponValidations = v
			}
		})
		mustRegisterCollector(reg, CatalogQueriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogQueriesTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookForwardTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookForwardTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookForwardLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				WebhookForwardLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
