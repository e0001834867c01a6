// Package observe provides application-wide observability primitives for
// radaemon: OpenTelemetry metrics and HTTP middleware that records request
// latency.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all radaemon metrics.
const meterName = "github.com/kv9n/radaemon"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DecodeDuration tracks the wall time of one receive-loop iteration
	// (accumulate, transform, demodulate, synthesize).
	DecodeDuration metric.Float64Histogram

	// FramesSynthesized counts vocoder frames turned into audio.
	FramesSynthesized metric.Int64Counter

	// PrimingCalls counts vocoder continuity-priming operations.
	PrimingCalls metric.Int64Counter

	// SyncTransitions counts demodulator sync edges. Use with attribute:
	//   attribute.String("direction", "acquired"|"lost")
	SyncTransitions metric.Int64Counter

	// EndOfOverMarks counts decoded end-of-transmission signals.
	EndOfOverMarks metric.Int64Counter

	// RecordedBytes counts bytes written by the raw recording sink.
	RecordedBytes metric.Int64Counter

	// ReceiverRunning tracks whether the receive worker is active (0 or 1).
	ReceiverRunning metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// decodeBuckets defines histogram bucket boundaries (in seconds) sized for
// modem-iteration latencies, which sit well below typical request latencies.
var decodeBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("radaemon.decode.duration",
		metric.WithDescription("Wall time of one receive-loop iteration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesSynthesized, err = m.Int64Counter("radaemon.vocoder.frames",
		metric.WithDescription("Total vocoder frames synthesized to audio."),
	); err != nil {
		return nil, err
	}
	if met.PrimingCalls, err = m.Int64Counter("radaemon.vocoder.primes",
		metric.WithDescription("Total vocoder continuity-priming operations."),
	); err != nil {
		return nil, err
	}
	if met.SyncTransitions, err = m.Int64Counter("radaemon.modem.sync_transitions",
		metric.WithDescription("Demodulator sync edges by direction."),
	); err != nil {
		return nil, err
	}
	if met.EndOfOverMarks, err = m.Int64Counter("radaemon.modem.eoo",
		metric.WithDescription("Total decoded end-of-transmission signals."),
	); err != nil {
		return nil, err
	}
	if met.RecordedBytes, err = m.Int64Counter("radaemon.recording.bytes",
		metric.WithDescription("Total bytes written by the raw recording sink."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ReceiverRunning, err = m.Int64UpDownCounter("radaemon.receiver.running",
		metric.WithDescription("Whether the receive worker is active."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("radaemon.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSyncTransition is a convenience method that counts a sync edge with
// the standard direction attribute.
func (m *Metrics) RecordSyncTransition(ctx context.Context, acquired bool) {
	direction := "lost"
	if acquired {
		direction = "acquired"
	}
	m.SyncTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)),
	)
}
