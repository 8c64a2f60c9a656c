package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records reconciliation and webhook outcomes per provider.
type PaymentMetrics struct {
	reconciliations *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Payment reconciliation attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Webhook deliveries received by provider and result.",
	}, []string{"provider", "result"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	reg.MustRegister(reconciliations, webhooks, gatewayLatency)
	return &PaymentMetrics{
		reconciliations: reconciliations,
		webhooks:        webhooks,
		gatewayLatency:  gatewayLatency,
	}
}

// IncReconciliation increments the reconciliation counter for a provider/outcome pair.
func (p *PaymentMetrics) IncReconciliation(provider, outcome string) {
	if p == nil || p.reconciliations == nil {
		return
	}
	p.reconciliations.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncWebhook increments the webhook counter for a provider/result pair.
func (p *PaymentMetrics) IncWebhook(provider, result string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

// ObserveGatewayLatency records the duration of an outbound gateway call.
func (p *PaymentMetrics) ObserveGatewayLatency(provider, operation string, duration time.Duration) {
	if p == nil || p.gatewayLatency == nil {
		return
	}
	p.gatewayLatency.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}
