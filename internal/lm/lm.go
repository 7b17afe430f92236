// Package lm implements the optional external language-model scorer: an
// n-gram model that rescores a beam each time it completes a word (or, in
// character/BPE mode, each time it emits a token), using a supplied
// order-(n-1) context.
//
// Model is the contract a KenLM binding would present; KenLM itself stays
// an external collaborator. ArpaModel is the concrete, pure-Go
// n-gram implementation that satisfies that contract, parsing the same
// ARPA back-off text format KenLM and SRILM both read and write, so a real
// KenLM-backed Model can be swapped in later without touching the
// beam-search engine.
package lm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/voicecore/ctcdecode/internal/decodeerr"
)

// Type names the granularity at which the LM scores tokens. It does not
// change how Model is called — it only documents what the beam-search
// engine passes as the token argument to Score.
type Type int

const (
	// Character scores one output character per call.
	Character Type = iota
	// BPE scores one (de-prefixed) BPE piece per call.
	BPE
	// Word scores one complete word, formed since the previous boundary,
	// per call.
	Word
)

// String renders the LM type the way it appears in configuration files.
func (t Type) String() string {
	switch t {
	case Character:
		return "character"
	case BPE:
		return "bpe"
	case Word:
		return "word"
	default:
		return "unknown"
	}
}

// State is an opaque LM context handle owned by the trie node that carries
// it — the beam-search engine copies it by value from parent to child and
// never looks inside it. For ArpaModel, a State is the tuple of up to
// MaxOrder-1 preceding tokens.
type State struct {
	context []string
}

// Model is the interface the beam-search engine scores beams through. It is
// shared, read-only, across every worker goroutine in the batch executor —
// correct implementations must not mutate shared state from Score.
type Model interface {
	// NullState returns the LM context before any input has been scored.
	NullState() State

	// Score returns the model's conditional log-probability of token given
	// state's context, plus the state advanced by token. Unknown words
	// receive UnkScore rather than a lookup failure.
	Score(state State, token string) (next State, logProb float64)

	// IsUnknown reports whether token is out of vocabulary — i.e. whether
	// a Score lookup for it falls through to the unknown-word penalty.
	// Used by callers that count OOV hits without re-deriving them from
	// the returned log-probability.
	IsUnknown(token string) bool

	// IsCharacterBased reports whether this model scores individual
	// characters (Character or BPE Type) rather than whole words.
	IsCharacterBased() bool

	// MaxOrder returns the n-gram order (n in "n-gram").
	MaxOrder() int

	// DictSize returns the number of distinct unigrams the model knows.
	DictSize() int

	// Alpha returns the current LM log-probability weight.
	Alpha() float64

	// Beta returns the current per-word bonus weight.
	Beta() float64

	// SetWeights updates Alpha/Beta without reloading the underlying model.
	SetWeights(alpha, beta float64)
}

// entry is one n-gram's ARPA record: its own log10 probability and,
// present only for n < max order, a back-off weight applied when a higher
// order lookup falls through to it.
type entry struct {
	logProb float64
	backoff float64
}

// ArpaModel is a back-off n-gram language model loaded from the ARPA text
// format (the format KenLM and SRILM both read and write). Probabilities
// in the file are log10; Score converts to
// natural log so the beam-search engine never mixes log bases.
type ArpaModel struct {
	order    int
	unkScore float64
	alpha    float64
	beta     float64
	isChar   bool

	// grams[k] holds all order-(k+1) entries keyed by the space-joined
	// n-gram text ("the cat", "cat sat", ...).
	grams []map[string]entry
}

var _ Model = (*ArpaModel)(nil)

const ln10 = 2.302585092994046

// Option configures an ArpaModel at construction time.
type Option func(*ArpaModel)

// WithUnkScore sets the log-probability assigned to out-of-vocabulary
// tokens. Default -100 log10 (effectively impossible), matching the
// conventional ARPA <unk> penalty.
func WithUnkScore(logProb float64) Option {
	return func(m *ArpaModel) { m.unkScore = logProb * ln10 }
}

// WithWeights sets the initial Alpha/Beta mixing weights.
func WithWeights(alpha, beta float64) Option {
	return func(m *ArpaModel) { m.alpha, m.beta = alpha, beta }
}

// WithCharacterBased marks the model as scoring characters/BPE pieces
// rather than words; affects only IsCharacterBased's return value.
func WithCharacterBased(charBased bool) Option {
	return func(m *ArpaModel) { m.isChar = charBased }
}

// Load reads an ARPA-format n-gram model from path.
func Load(path string, opts ...Option) (*ArpaModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: lm: open %q: %v", decodeerr.ErrResourceUnavailable, path, err)
	}
	defer f.Close()
	return LoadFromReader(f, opts...)
}

// LoadFromReader parses an ARPA model from r. Used directly in tests, and
// internally by Load.
func LoadFromReader(r io.Reader, opts ...Option) (*ArpaModel, error) {
	m := &ArpaModel{unkScore: -100 * ln10, alpha: 1.0, beta: 0.0}
	for _, opt := range opts {
		opt(m)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	counts := map[int]int{}
	order := 0
	currentOrder := 0

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || line == "\\data\\":
			continue
		case line == "\\end\\":
			currentOrder = 0
			continue
		case strings.HasPrefix(line, "ngram "):
			var n, c int
			if _, err := fmt.Sscanf(line, "ngram %d=%d", &n, &c); err != nil {
				return nil, fmt.Errorf("%w: lm: malformed ngram count line %q", decodeerr.ErrCorruptInput, line)
			}
			counts[n] = c
			if n > order {
				order = n
			}
			continue
		case strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:"):
			var n int
			if _, err := fmt.Sscanf(line, "\\%d-grams:", &n); err != nil {
				return nil, fmt.Errorf("%w: lm: malformed section header %q", decodeerr.ErrCorruptInput, line)
			}
			currentOrder = n
			continue
		}
		if currentOrder == 0 {
			continue
		}
		if err := m.addLine(currentOrder, line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: lm: read: %v", decodeerr.ErrCorruptInput, err)
	}
	m.order = order
	if m.order == 0 {
		return nil, fmt.Errorf("%w: lm: no n-grams found in ARPA file", decodeerr.ErrCorruptInput)
	}
	return m, nil
}

func (m *ArpaModel) addLine(order int, line string) error {
	fields := strings.Fields(line)
	// order words, leading log10 prob, trailing optional backoff: 1 + order [+ 1]
	if len(fields) < order+1 {
		return fmt.Errorf("%w: lm: malformed %d-gram line %q", decodeerr.ErrCorruptInput, order, line)
	}
	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("%w: lm: bad probability in %q: %v", decodeerr.ErrCorruptInput, line, err)
	}
	words := fields[1 : 1+order]
	backoff := 0.0
	if len(fields) > 1+order {
		backoff, err = strconv.ParseFloat(fields[1+order], 64)
		if err != nil {
			return fmt.Errorf("%w: lm: bad backoff in %q: %v", decodeerr.ErrCorruptInput, line, err)
		}
	}
	for len(m.grams) < order {
		m.grams = append(m.grams, make(map[string]entry))
	}
	m.grams[order-1][strings.Join(words, " ")] = entry{logProb: logProb * ln10, backoff: backoff * ln10}
	return nil
}

// NullState returns the empty context.
func (m *ArpaModel) NullState() State { return State{} }

// Score looks up the highest-order n-gram matching state's context plus
// token, falling back through shorter contexts (applying each skipped
// level's back-off weight) the way KenLM's query path does, down to the
// unigram. An unknown unigram receives UnkScore.
func (m *ArpaModel) Score(state State, token string) (State, float64) {
	ctx := state.context
	if len(ctx) > m.order-1 {
		ctx = ctx[len(ctx)-(m.order-1):]
	}
	next := State{context: append(append([]string(nil), ctx...), token)}
	if len(next.context) > m.order-1 {
		next.context = next.context[len(next.context)-(m.order-1):]
	}

	logProb := m.lookup(ctx, token)
	return next, logProb
}

// lookup implements the back-off recursion: try the n-gram formed by ctx+
// token at the highest order available; if that exact entry is absent,
// apply the shorter context's back-off weight (if any) and recurse with
// ctx trimmed by one token on the left, down to the unigram.
func (m *ArpaModel) lookup(ctx []string, token string) float64 {
	n := len(ctx) + 1
	key := strings.Join(append(append([]string(nil), ctx...), token), " ")
	if e, ok := m.gramsAt(n)[key]; ok {
		return e.logProb
	}
	if len(ctx) == 0 {
		return m.unkScore
	}
	bo := 0.0
	if be, ok := m.gramsAt(len(ctx))[strings.Join(ctx, " ")]; ok {
		bo = be.backoff
	}
	return bo + m.lookup(ctx[1:], token)
}

func (m *ArpaModel) gramsAt(order int) map[string]entry {
	if order < 1 || order > len(m.grams) {
		return nil
	}
	return m.grams[order-1]
}

// IsUnknown reports whether token has no unigram entry, meaning every
// lookup for it backs off all the way down and lands on the unknown-word
// penalty.
func (m *ArpaModel) IsUnknown(token string) bool {
	_, ok := m.gramsAt(1)[token]
	return !ok
}

// IsCharacterBased reports the configured Character/BPE vs Word mode.
func (m *ArpaModel) IsCharacterBased() bool { return m.isChar }

// MaxOrder returns the highest n-gram order present in the loaded model.
func (m *ArpaModel) MaxOrder() int { return m.order }

// DictSize returns the number of distinct unigrams.
func (m *ArpaModel) DictSize() int {
	if len(m.grams) == 0 {
		return 0
	}
	return len(m.grams[0])
}

// Alpha returns the current LM weight.
func (m *ArpaModel) Alpha() float64 { return m.alpha }

// Beta returns the current per-word bonus weight.
func (m *ArpaModel) Beta() float64 { return m.beta }

// SetWeights updates Alpha/Beta in place, without reloading the n-gram
// tables.
func (m *ArpaModel) SetWeights(alpha, beta float64) {
	m.alpha, m.beta = alpha, beta
}
