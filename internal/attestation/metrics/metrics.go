// Package metrics provides Prometheus metrics for attestation issuance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons for AttestationFailuresTotal.
const (
	ReasonInvalidInput = "invalid_input"
	ReasonAllFailed    = "all_addresses_failed"
	ReasonCancelled    = "cancelled"
	ReasonInternal     = "internal"
)

type Metrics struct {
	AttestationsTotal         *prometheus.CounterVec   // Issued attestations by criterion and outcome
	AttestationFailuresTotal  *prometheus.CounterVec   // Requests that produced no attestation, by reason
	WalletFailuresTotal       *prometheus.CounterVec   // Per-address chain query failures by category
	AggregationDuration       *prometheus.HistogramVec // Time spent verifying all wallets of a request
	WalletsPerRequest         prometheus.Histogram
	ReceiptWriteFailuresTotal prometheus.Counter
}

// New registers the attestation metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AttestationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_attestations_total",
			Help: "Total attestations issued by criterion and eligibility outcome",
		}, []string{"criterion", "eligible"}),

		AttestationFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_attestation_failures_total",
			Help: "Total eligibility requests that produced no attestation, by reason",
		}, []string{"criterion", "reason"}),

		WalletFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_wallet_verification_failures_total",
			Help: "Total per-address chain query failures by criterion and category",
		}, []string{"criterion", "category"}),

		AggregationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestor_aggregation_duration_seconds",
			Help:    "Duration of multi-wallet eligibility aggregation by criterion",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"criterion"}),

		WalletsPerRequest: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestor_wallets_per_request",
			Help:    "Number of addresses evaluated per eligibility request",
			Buckets: []float64{1, 2, 3, 5, 8, 11},
		}),

		ReceiptWriteFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "attestor_receipt_write_failures_total",
			Help: "Total attestation receipts that could not be persisted",
		}),
	}
}

func (m *Metrics) RecordAttestation(criterion string, eligible bool) {
	outcome := "false"
	if eligible {
		outcome = "true"
	}
	m.AttestationsTotal.WithLabelValues(criterion, outcome).Inc()
}

func (m *Metrics) RecordFailure(criterion, reason string) {
	m.AttestationFailuresTotal.WithLabelValues(criterion, reason).Inc()
}

func (m *Metrics) RecordWalletFailure(criterion, category string) {
	m.WalletFailuresTotal.WithLabelValues(criterion, category).Inc()
}

// ObserveAggregation records aggregation latency and fan-out width.
func (m *Metrics) ObserveAggregation(criterion string, durationSeconds float64, wallets int) {
	m.AggregationDuration.WithLabelValues(criterion).Observe(durationSeconds)
	m.WalletsPerRequest.Observe(float64(wallets))
}

func (m *Metrics) RecordReceiptWriteFailure() {
	m.ReceiptWriteFailuresTotal.Inc()
}
