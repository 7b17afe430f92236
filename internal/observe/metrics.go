// Package observe provides observability for the decoder: OpenTelemetry
// metric instruments, utterance-scoped tracing, and structured logging glue,
// bundled behind the [Telemetry] handle built by [NewTelemetry].
//
// There is no package-level default instance and nothing registers itself as
// an OTel global: every component that records (the batch executor, the
// beam-search engine) receives an explicit handle at construction, the same
// way an LM or lexicon handle is passed in. This keeps every decoder task's
// dependencies visible in its constructor signature instead of reaching for
// package-level state.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all decoder metrics.
const meterName = "github.com/voicecore/ctcdecode"

// Metrics holds every OpenTelemetry metric instrument the decoder records.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation, matching the batch executor's one-instance-
// shared-by-every-worker usage.
type Metrics struct {
	// DecodeDuration tracks per-utterance decode latency as the batch
	// executor times it: from the start of a row's decode (session setup
	// included) until its beams are written to the output buffers.
	DecodeDuration metric.Float64Histogram

	// BeamsEmitted counts beams returned by Finalize. Use with attribute:
	//   attribute.Bool("truncated", ...) — whether Finalize returned more
	//   beams than the output buffers have slots (K), so some were dropped.
	BeamsEmitted metric.Int64Counter

	// LexiconRejections counts beams killed by strict-lexicon rejection.
	LexiconRejections metric.Int64Counter

	// LMUnkHits counts LM lookups that fell through to the unknown-word
	// score.
	LMUnkHits metric.Int64Counter

	// ActiveWorkers tracks how many batch-executor worker goroutines are
	// currently decoding an utterance.
	ActiveWorkers metric.Int64UpDownCounter

	// QueueDepth tracks how many utterances are waiting for a free worker
	// slot in the batch executor.
	QueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-utterance decode latency.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("ctcdecode.decode.duration",
		metric.WithDescription("Latency of a single utterance's beam-search decode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BeamsEmitted, err = m.Int64Counter("ctcdecode.beams_emitted",
		metric.WithDescription("Total beams returned across all finalized utterances."),
	); err != nil {
		return nil, err
	}
	if met.LexiconRejections, err = m.Int64Counter("ctcdecode.lexicon_rejections",
		metric.WithDescription("Total beams killed by strict-lexicon rejection."),
	); err != nil {
		return nil, err
	}
	if met.LMUnkHits, err = m.Int64Counter("ctcdecode.lm_unk_hits",
		metric.WithDescription("Total LM lookups that fell back to the unknown-word score."),
	); err != nil {
		return nil, err
	}
	if met.ActiveWorkers, err = m.Int64UpDownCounter("ctcdecode.batch.active_workers",
		metric.WithDescription("Number of batch-executor workers currently decoding."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("ctcdecode.batch.queue_depth",
		metric.WithDescription("Number of utterances waiting for a free worker slot."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDecode records one utterance's decode latency and beam count.
func (m *Metrics) RecordDecode(ctx context.Context, seconds float64, beamCount int, truncated bool) {
	m.DecodeDuration.Record(ctx, seconds)
	m.BeamsEmitted.Add(ctx, int64(beamCount), metric.WithAttributes(attribute.Bool("truncated", truncated)))
}

// RecordLexiconRejection increments the strict-lexicon rejection counter.
func (m *Metrics) RecordLexiconRejection(ctx context.Context) {
	m.LexiconRejections.Add(ctx, 1)
}

// RecordLMUnkHit increments the LM unknown-word counter.
func (m *Metrics) RecordLMUnkHit(ctx context.Context) {
	m.LMUnkHits.Add(ctx, 1)
}
