package metrics

import (
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewAccessMetrics(registry, logger.NewNop()).(*accessMetrics)

	m.IncAccessDecision("owner", true)
	m.IncAccessDecision("owner", true)
	m.IncAccessDecision("anonymous", false)
	m.IncCheckout(OutcomeCreated)
	m.IncConfirmation("webhook", OutcomeGranted)
	m.IncTierDegraded()
	m.ObserveProcessorCall("checkout_session_create", "ok", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.accessDecisions.WithLabelValues("owner", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accessDecisions.WithLabelValues("anonymous", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("webhook", OutcomeGranted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierDegraded))

	count, err := testutil.GatherAndCount(registry, "stream_payment_processor_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
