package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsNilSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncReconciliation("razorpay", "applied")
	m.IncWebhook("stripe", "acked")
	m.ObserveGatewayLatency("razorpay", "create_order", time.Second)

	empty := NewPaymentMetrics(nil)
	empty.IncReconciliation("razorpay", "applied")
}

func TestPaymentMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncReconciliation("Razorpay", "Applied")
	m.IncWebhook("stripe", "acked")
	m.ObserveGatewayLatency("stripe", "create_intent", 250*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{"payment_reconciliations_total", "payment_webhooks_total", "payment_gateway_request_seconds"} {
		if !names[want] {
			t.Errorf("expected metric family %s to be registered", want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"Razorpay":     "razorpay",
		"  QR Payment": "qr_payment",
		"":             "unknown",
	}
	for in, want := range cases {
		if got := normalizeLabel(in); got != want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
