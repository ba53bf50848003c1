package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvoiceCreateDuration tracks the latency of invoice creation
	InvoiceCreateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "shopbot_invoice_create_duration_seconds",
			Help: "Duration of payment invoice creation in seconds",
			Buckets: []float64{
				0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 15.0,
			},
		},
		[]string{"result"}, // success or failure
	)

	// PaymentChecks counts settlement polls by outcome
	PaymentChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_payment_checks_total",
			Help: "Settlement status polls by outcome",
		},
		[]string{"result"}, // settled, pending or failure
	)

	// OrdersCompleted counts orders written to the durable log
	OrdersCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopbot_orders_completed_total",
			Help: "Orders persisted after a settled payment",
		},
	)

	// GiveawayEntries counts giveaway entry attempts by outcome
	GiveawayEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_giveaway_entries_total",
			Help: "Giveaway entry attempts by outcome",
		},
		[]string{"result"},
	)

	// BroadcastDeliveries counts per-recipient broadcast deliveries
	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopbot_broadcast_deliveries_total",
			Help: "Broadcast message deliveries by outcome",
		},
		[]string{"result"}, // sent or failed
	)
)

// RecordInvoiceCreate records the duration of one invoice creation
func RecordInvoiceCreate(result string, seconds float64) {
	InvoiceCreateDuration.WithLabelValues(result).Observe(seconds)
}
