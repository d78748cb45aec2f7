package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAttestation("tx-count", true)
	m.RecordAttestation("tx-count", true)
	m.RecordAttestation("tx-count", false)
	m.RecordFailure("tx-count", ReasonAllFailed)
	m.RecordWalletFailure("tx-count", "rate_limited")
	m.ObserveAggregation("tx-count", 0.2, 3)
	m.RecordReceiptWriteFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttestationsTotal.WithLabelValues("tx-count", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttestationsTotal.WithLabelValues("tx-count", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttestationFailuresTotal.WithLabelValues("tx-count", ReasonAllFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WalletFailuresTotal.WithLabelValues("tx-count", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptWriteFailuresTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AggregationDuration))
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
