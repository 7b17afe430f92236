package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartUtterance opens the span covering one utterance's decode, tagged
// with its batch row and valid timestep count so a trace of a slow batch
// shows which rows dominated. The caller ends the span after writing the
// row's results.
func (t *Telemetry) StartUtterance(ctx context.Context, batchIndex, seqLen int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "ctcdecode.utterance", trace.WithAttributes(
		attribute.Int("ctcdecode.batch_index", batchIndex),
		attribute.Int("ctcdecode.seq_len", seqLen),
	))
}

// UtteranceLogger returns an [slog.Logger] scoped to one utterance: it
// always carries the batch row, and picks up trace_id/span_id when ctx
// holds an active utterance span, so per-row log lines correlate with the
// span that produced them.
func UtteranceLogger(ctx context.Context, batchIndex int) *slog.Logger {
	l := slog.Default().With(slog.Int("utterance", batchIndex))
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
