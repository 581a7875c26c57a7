package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstsee/servicehost/pkg/metrics"
)

// The registry can only be enabled once per process, so the disabled and
// enabled phases share one test to fix their order.
func TestNewHostMetrics(t *testing.T) {
	// Before InitRegistry the constructor must hand back nil so the host
	// skips recording entirely.
	require.False(t, metrics.IsEnabled())
	assert.Nil(t, NewHostMetrics())

	reg := metrics.InitRegistry()
	rec := NewHostMetrics()
	require.NotNil(t, rec)

	rec.RecordRequestAccepted()
	rec.RecordRequestAccepted()
	rec.RecordRequestCompleted()
	rec.RecordAcceptError()
	rec.RecordDispatchError()
	rec.RecordDiagnosticWritten()
	rec.RecordDiagnosticWriteFailed()
	rec.SetInFlight(3)
	rec.ObserveDispatchDuration(25 * time.Millisecond)

	hm, ok := rec.(*hostMetrics)
	require.True(t, ok)

	assert.Equal(t, float64(2), testutil.ToFloat64(hm.requestsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(hm.requestsCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(hm.acceptErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(hm.dispatchErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(hm.diagnosticsSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(hm.diagnosticsFailed))
	assert.Equal(t, float64(3), testutil.ToFloat64(hm.inFlight))

	// All collectors register under the servicehost_ prefix on the shared
	// registry.
	for _, name := range []string{
		"servicehost_requests_accepted_total",
		"servicehost_requests_completed_total",
		"servicehost_accept_errors_total",
		"servicehost_dispatch_errors_total",
		"servicehost_diagnostic_responses_total",
		"servicehost_diagnostic_write_failures_total",
		"servicehost_requests_in_flight",
		"servicehost_dispatch_duration_milliseconds",
	} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, 1, count, name)
	}
}
