package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordGatewayOperation(t *testing.T) {
	before := testutil.ToFloat64(gatewayOps.WithLabelValues("read_sample", OutcomeEmpty))
	RecordGatewayOperation("read_sample", OutcomeEmpty)
	require.Equal(t, before+1, testutil.ToFloat64(gatewayOps.WithLabelValues("read_sample", OutcomeEmpty)))
}

func TestPersistenceWatermarks(t *testing.T) {
	ts := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	RecordSamplePersisted("body-mass", ts)
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(samplePersistGauge.WithLabelValues("body-mass")))

	RecordSamplePersisted("body-mass", time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(samplePersistGauge.WithLabelValues("body-mass")))

	RecordWorkoutPersisted(ts)
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(workoutPersistGauge))
}

func TestRecordBMISaved(t *testing.T) {
	RecordBMISaved(22.86)
	require.Equal(t, 22.86, testutil.ToFloat64(bmiGauge))
}

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
