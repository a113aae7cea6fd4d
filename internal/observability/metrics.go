package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplePersistGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthprofile",
		Subsystem: "persistence",
		Name:      "last_sample_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent sample persisted, labeled by record type.",
	}, []string{"record_type"})
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthprofile",
		Subsystem: "persistence",
		Name:      "last_workout_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout persisted.",
	})
	gatewayOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthprofile",
		Subsystem: "gateway",
		Name:      "operations_total",
		Help:      "Gateway calls grouped by operation and outcome.",
	}, []string{"operation", "outcome"})
	bmiGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "healthprofile",
		Subsystem: "profile",
		Name:      "last_bmi_saved",
		Help:      "Most recent BMI value saved through the profile aggregator.",
	})
)

func init() {
	prometheus.MustRegister(samplePersistGauge, workoutPersistGauge, gatewayOps, bmiGauge)
}

// Gateway operation outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// RecordSamplePersisted updates the per-type persistence watermark.
func RecordSamplePersisted(recordType string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	samplePersistGauge.WithLabelValues(recordType).Set(float64(ts.Unix()))
}

// RecordWorkoutPersisted updates the workout persistence watermark.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordGatewayOperation counts one gateway call.
func RecordGatewayOperation(operation, outcome string) {
	gatewayOps.WithLabelValues(operation, outcome).Inc()
}

// RecordBMISaved publishes the last saved BMI.
func RecordBMISaved(value float64) {
	bmiGauge.Set(value)
}
