// Package online implements the streaming decoder session: a single
// in-flight utterance's decoder state — trie arena, active beams, current
// timestep counter, owned scorer handles — pushed forward one chunk of
// timesteps at a time.
//
// Session is mutex-guarded and its teardown is idempotent, modeled on the
// reference architecture's session lifecycle (Start/Push/Release with
// ordered closers, safe to call Release more than once).
package online

import (
	"fmt"
	"sync"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/beam"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
	"github.com/voicecore/ctcdecode/internal/hotword"
	"github.com/voicecore/ctcdecode/internal/lexicon"
	"github.com/voicecore/ctcdecode/internal/lm"
	"github.com/voicecore/ctcdecode/internal/observe"
)

// Session wraps a beam.Session with the lifecycle a streaming caller needs:
// push chunks as they arrive, read back the current top-K at any point, and
// release the underlying trie arena exactly once when the caller is done.
//
// All exported methods are safe for concurrent use, though a single Session
// is meant to be driven by one producer at a time.
type Session struct {
	mu        sync.Mutex
	engine    *beam.Session
	finalized bool
	released  bool
}

// New starts a new streaming session over alph with the given scorer
// handles. lmModel, lex, and hot may be nil to disable that scorer; metrics
// may be nil to disable instrumentation.
func New(alph *alphabet.Alphabet, opts beam.Options, lmModel lm.Model, lex lexicon.Automaton, hot *hotword.Trie, metrics *observe.Metrics) (*Session, error) {
	engine, err := beam.New(alph, opts, lmModel, lex, hot, metrics)
	if err != nil {
		return nil, err
	}
	return &Session{engine: engine}, nil
}

// Push advances the session through len(chunkProbs) additional timesteps.
// When isLast is true, it performs the end-of-stream LM/lexicon flush and
// returns the completed top-K beams; otherwise it returns the *current*
// top-K over the beams accumulated so far, without flushing any pending
// partial word.
//
// Calling Push after a prior call with isLast=true, or after Release,
// returns ErrInvalidArgument — a session's stream ends exactly once.
func (s *Session) Push(chunkProbs [][]float32, isLast bool) ([]beam.Beam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("%w: online: session already released", decodeerr.ErrInvalidArgument)
	}
	if s.finalized {
		return nil, fmt.Errorf("%w: online: session already finalized, a stream ends exactly once", decodeerr.ErrInvalidArgument)
	}

	for _, row := range chunkProbs {
		if err := s.engine.Step(row); err != nil {
			return nil, err
		}
	}

	if isLast {
		s.finalized = true
		return s.engine.Finalize(), nil
	}

	return s.engine.Peek(), nil
}

// Release tears down the session's trie arena. It is idempotent: calling it
// more than once is a no-op. It may be called whether or not the stream
// already completed via Push(isLast).
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.engine = nil
}
