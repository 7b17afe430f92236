// Package batch implements the worker-pool batch executor: given a
// [B, T, V] probability tensor and per-row sequence lengths, it fans out
// one decode task per batch row across a bounded pool of goroutines and
// writes the results into caller-provided output buffers.
//
// Work items are independent — each task owns its own trie arena — so no
// synchronization is needed beyond the pool's dispatch.
package batch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/beam"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
	"github.com/voicecore/ctcdecode/internal/hotword"
	"github.com/voicecore/ctcdecode/internal/lexicon"
	"github.com/voicecore/ctcdecode/internal/lm"
	"github.com/voicecore/ctcdecode/internal/observe"
	"github.com/voicecore/ctcdecode/pkg/ctcio"
)

// Executor decodes a batch of utterances concurrently. It is safe for
// concurrent use by multiple callers — the alphabet and scorer handles it
// holds are read-only shared references, and every worker gets its own
// beam.Session with its own trie arena.
type Executor struct {
	alph *alphabet.Alphabet
	opts beam.Options
	lm   lm.Model
	lex  lexicon.Automaton
	hot  *hotword.Trie

	numWorkers int
	tel        *observe.Telemetry
}

// New constructs an Executor. tel may be nil to disable instrumentation and
// tracing.
func New(alph *alphabet.Alphabet, opts beam.Options, lmModel lm.Model, lex lexicon.Automaton, hot *hotword.Trie, numWorkers int, tel *observe.Telemetry) (*Executor, error) {
	if alph == nil {
		return nil, fmt.Errorf("%w: batch: alphabet must not be nil", decodeerr.ErrInvalidArgument)
	}
	if numWorkers < 1 {
		return nil, fmt.Errorf("%w: batch: num_workers must be >= 1, got %d", decodeerr.ErrInvalidArgument, numWorkers)
	}
	return &Executor{
		alph:       alph,
		opts:       opts,
		lm:         lmModel,
		lex:        lex,
		hot:        hot,
		numWorkers: numWorkers,
		tel:        tel,
	}, nil
}

// Decode runs one beam-search task per batch row in probs, bounded to
// e.numWorkers concurrent tasks, and writes the top-K beams of each row
// into out. Returns the first error encountered across all rows, wrapped
// with the offending batch index; remaining in-flight rows are cancelled
// via the shared errgroup context.
func (e *Executor) Decode(ctx context.Context, probs *ctcio.ProbabilityTensor, seqLens ctcio.SeqLens, out *ctcio.OutputBuffers) error {
	if probs.V != e.alph.Size() {
		return fmt.Errorf("%w: batch: tensor vocab size %d != alphabet size %d", decodeerr.ErrInvalidArgument, probs.V, e.alph.Size())
	}
	if out.B != probs.B {
		return fmt.Errorf("%w: batch: output buffer batch size %d != tensor batch size %d", decodeerr.ErrInvalidArgument, out.B, probs.B)
	}
	// Corrupt input is rejected up front, before any worker starts, so a
	// malformed batch never partially fills the caller's output buffers —
	// the batch either fully completes or is fully rejected.
	for b := 0; b < probs.B; b++ {
		seqLen := seqLens.Get(b, probs.T)
		if seqLen > probs.T {
			return fmt.Errorf("%w: batch: row %d seq_len %d exceeds tensor T %d", decodeerr.ErrInvalidArgument, b, seqLen, probs.T)
		}
		for t := 0; t < seqLen; t++ {
			for v, p := range probs.Row(b, t) {
				if f := float64(p); math.IsNaN(f) || math.IsInf(f, 1) {
					return fmt.Errorf("%w: batch: non-finite probability at row %d, timestep %d, label %d", decodeerr.ErrCorruptInput, b, t, v)
				}
			}
		}
	}

	sem := semaphore.NewWeighted(int64(e.numWorkers))
	g, gctx := errgroup.WithContext(ctx)

	m := e.tel.Metrics()
	for b := 0; b < probs.B; b++ {
		b := b

		if m != nil {
			m.QueueDepth.Add(ctx, 1)
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			if m != nil {
				m.QueueDepth.Add(ctx, -1)
			}
			return fmt.Errorf("batch: row %d: %w", b, err)
		}
		if m != nil {
			m.QueueDepth.Add(ctx, -1)
		}

		g.Go(func() error {
			defer sem.Release(1)
			if m != nil {
				m.ActiveWorkers.Add(ctx, 1)
				defer m.ActiveWorkers.Add(ctx, -1)
			}
			if err := e.decodeRow(gctx, probs, seqLens, out, b); err != nil {
				return fmt.Errorf("batch: row %d: %w", b, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// decodeRow runs one beam.Session to completion for batch row b and writes
// its top-K beams into out's b-th slice.
func (e *Executor) decodeRow(ctx context.Context, probs *ctcio.ProbabilityTensor, seqLens ctcio.SeqLens, out *ctcio.OutputBuffers, b int) error {
	start := time.Now()
	m := e.tel.Metrics()

	seqLen := seqLens.Get(b, probs.T)
	if e.tel != nil {
		var span trace.Span
		ctx, span = e.tel.StartUtterance(ctx, b, seqLen)
		defer span.End()
	}

	session, err := beam.New(e.alph, e.opts, e.lm, e.lex, e.hot, m)
	if err != nil {
		return err
	}

	for t := 0; t < seqLen; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := session.Step(probs.Row(b, t)); err != nil {
			return err
		}
	}

	beams := session.Finalize()

	truncated := len(beams) > out.K
	for k := 0; k < out.K && k < len(beams); k++ {
		out.WriteBeam(b, k, beams[k])
	}

	if m != nil {
		m.RecordDecode(ctx, time.Since(start).Seconds(), len(beams), truncated)
		observe.UtteranceLogger(ctx, b).Debug("utterance decoded",
			"beams", len(beams), "seq_len", seqLen)
	}
	return nil
}
