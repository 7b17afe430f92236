// Package beam implements the prefix beam-search engine: the per-utterance
// algorithm that turns a [T, V] CTC probability matrix into a ranked list
// of label sequences, optionally rescored by a lexicon automaton, an n-gram
// language model, and a hot-word trie.
//
// A Session holds all per-utterance state: the trie arena, the current
// active beam set, and the scorer handles each beam carries. It is
// single-threaded by construction — one Session (and one trie arena) per
// decoder task, never shared across goroutines.
package beam

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
	"github.com/voicecore/ctcdecode/internal/hotword"
	"github.com/voicecore/ctcdecode/internal/lexicon"
	"github.com/voicecore/ctcdecode/internal/lm"
	"github.com/voicecore/ctcdecode/internal/logprob"
	"github.com/voicecore/ctcdecode/internal/observe"
	"github.com/voicecore/ctcdecode/internal/trie"
)

// Options configures a Session. Field names mirror the decoder section of
// the YAML configuration.
type Options struct {
	// BeamWidth is the maximum number of beams retained after each
	// timestep (K in the external interface).
	BeamWidth int

	// TopPaths is how many of the surviving beams Finalize returns,
	// ranked best-first. Must be <= BeamWidth. Zero defaults to BeamWidth.
	TopPaths int

	// CutoffTopN caps how many labels are considered per timestep before
	// CutoffProb is applied.
	CutoffTopN int

	// CutoffProb is the cumulative-probability threshold for label
	// pruning. A value >= 1.0 disables probability-based pruning (only
	// CutoffTopN applies).
	CutoffProb float64

	// LogProbsInput declares that the probability matrix already holds
	// natural-log probabilities; when false, Step applies math.Log once
	// per timestep per label.
	LogProbsInput bool

	// WordLevelAlphabet marks an alphabet whose tokens are already whole
	// words (every label is its own word boundary), as opposed to
	// character or BPE-piece tokens.
	WordLevelAlphabet bool

	// StrictLexicon rejects a beam the instant it completes a word the
	// lexicon automaton does not recognise.
	StrictLexicon bool
}

// Beam is one decoded hypothesis returned by Finalize.
type Beam struct {
	Labels    []int32
	Timesteps []int32
	Score     float64
}

// Session is the mutable per-utterance decoder state: the trie arena, the
// active beam set, the elapsed timestep count, and the alphabet/LM/lexicon/
// hot-word handles shared (read-only) with every other concurrent Session.
type Session struct {
	alph *alphabet.Alphabet
	opts Options
	lm   lm.Model // nil disables LM rescoring
	lex  lexicon.Automaton
	hot  *hotword.Trie

	// metrics is optional shared instrumentation; nil disables recording.
	metrics *observe.Metrics

	arena  *trie.Arena
	active []trie.NodeID
	t      int32

	// nodeState carries the beam-specific data that doesn't belong in the
	// domain-agnostic trie.Node: the LM/lexicon/hot-word handles and the
	// pending-word buffer used for word-level LM scoring. Indexed by
	// trie.NodeID.
	nodeState []nodeExtra
}

// nodeExtra is the beam-domain payload attached to each trie node, grown in
// lockstep with the arena.
type nodeExtra struct {
	lmState  lm.State
	lexState lexicon.State
	hotState hotword.State
	wordBuf  string
	// wordEnd records whether lexState sits on a complete in-vocabulary
	// word, so a later boundary (or the end-of-stream flush) can validate
	// the pending word without re-walking the automaton.
	wordEnd bool
}

// New constructs a Session. lmModel, lex, and hot may each be nil/zero to
// disable that scorer; lexicon.Trivial() and hotword.Build(nil) are used as
// the "disabled" defaults internally so the hot loop never branches on a
// nil automaton. metrics may be nil to disable instrumentation; when set it
// is the same shared handle every concurrent Session records through.
func New(alph *alphabet.Alphabet, opts Options, lmModel lm.Model, lex lexicon.Automaton, hot *hotword.Trie, metrics *observe.Metrics) (*Session, error) {
	if alph == nil {
		return nil, fmt.Errorf("%w: beam: alphabet must not be nil", decodeerr.ErrInvalidArgument)
	}
	if opts.BeamWidth < 1 {
		return nil, fmt.Errorf("%w: beam: beam_width must be >= 1, got %d", decodeerr.ErrInvalidArgument, opts.BeamWidth)
	}
	if opts.TopPaths == 0 {
		opts.TopPaths = opts.BeamWidth
	}
	if opts.TopPaths < 1 || opts.TopPaths > opts.BeamWidth {
		return nil, fmt.Errorf("%w: beam: top_paths must be in [1, beam_width], got %d", decodeerr.ErrInvalidArgument, opts.TopPaths)
	}
	if opts.CutoffTopN <= 0 {
		opts.CutoffTopN = alph.Size()
	}
	if opts.CutoffProb <= 0 {
		opts.CutoffProb = 1.0
	}
	if lex == nil {
		lex = lexicon.Trivial()
	}
	if hot == nil {
		hot = hotword.Build(nil)
	}

	arena := trie.NewArena()
	s := &Session{
		alph:      alph,
		opts:      opts,
		lm:        lmModel,
		lex:       lex,
		hot:       hot,
		metrics:   metrics,
		arena:     arena,
		active:    []trie.NodeID{arena.Root()},
		nodeState: []nodeExtra{{lexState: lex.NullState()}},
	}
	if lmModel != nil {
		s.nodeState[0].lmState = lmModel.NullState()
	}
	s.nodeState[0].hotState = hot.Root()
	return s, nil
}

// ensureExtra grows nodeState to cover id, used right after a node is
// created in the arena (the arena and nodeState slices always grow in
// lockstep, but GetOrCreateChild only returns the new id — it doesn't know
// about nodeState).
func (s *Session) ensureExtra(id trie.NodeID) {
	for int(id) >= len(s.nodeState) {
		s.nodeState = append(s.nodeState, nodeExtra{})
	}
}

// candidateLabel is one surviving (post-pruning) label at a timestep.
type candidateLabel struct {
	label   int32
	logProb float64
}

// pruneLabels sorts all V labels by probability descending, keeps at most
// CutoffTopN, then further truncates to the shortest prefix whose cumulative
// probability reaches CutoffProb. The blank label is always included
// regardless of pruning.
func (s *Session) pruneLabels(logRow []float64) []candidateLabel {
	all := make([]candidateLabel, len(logRow))
	for v, lp := range logRow {
		all[v] = candidateLabel{label: int32(v), logProb: lp}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].logProb > all[j].logProb })

	n := s.opts.CutoffTopN
	if n > len(all) {
		n = len(all)
	}
	kept := make([]candidateLabel, 0, n)
	cum := 0.0
	blankSeen := false
	for i := 0; i < n; i++ {
		c := all[i]
		kept = append(kept, c)
		if int(c.label) == s.alph.BlankIndex() {
			blankSeen = true
		}
		cum += math.Exp(c.logProb)
		if s.opts.CutoffProb < 1.0 && cum >= s.opts.CutoffProb {
			break
		}
	}
	if !blankSeen {
		kept = append(kept, candidateLabel{label: int32(s.alph.BlankIndex()), logProb: logRow[s.alph.BlankIndex()]})
	}
	return kept
}

// Step advances the session through one additional timestep given that
// timestep's per-label probabilities (length V, matching the alphabet
// size). Probabilities are raw (summing to ~1) unless Options.LogProbsInput
// is set, in which case row already holds natural-log values.
func (s *Session) Step(row []float32) error {
	if len(row) != s.alph.Size() {
		return fmt.Errorf("%w: beam: probability row length %d != alphabet size %d", decodeerr.ErrInvalidArgument, len(row), s.alph.Size())
	}
	logRow := make([]float64, len(row))
	for v, p := range row {
		lp := float64(p)
		if !s.opts.LogProbsInput {
			lp = logprob.FromLinear(lp)
		}
		if !logprob.IsFinite(lp) {
			return fmt.Errorf("%w: beam: non-finite probability at label %d, timestep %d", decodeerr.ErrCorruptInput, v, s.t)
		}
		logRow[v] = lp
	}

	// Move the previous Step's PB/PNB into PBPrev/PNBPrev. The roll happens
	// here rather than at the end of Step so that, between Step calls, PB/PNB
	// hold the latest timestep's mass that Finalize and Peek rank on. The
	// root's initial PBPrev = log(1) is already in place before the first
	// Step.
	if s.t > 0 {
		s.arena.RollTimestep(s.active)
	}

	labels := s.pruneLabels(logRow)
	touched := make(map[trie.NodeID]struct{}, len(s.active)*2)

	for _, pi := range s.active {
		// prevTotal/pbPrev/lastLabel are read from the *previous* timestep's
		// snapshot, which RollTimestep froze above — safe
		// to capture once per beam even though the arena's backing slice
		// may reallocate later in this loop (see note below).
		pNode := s.arena.Node(pi)
		prevTotal := logprob.Add(pNode.PBPrev, pNode.PNBPrev)
		pbPrev := pNode.PBPrev
		lastLabel, hasLast := pNode.LastLabel()

		for _, c := range labels {
			switch {
			case int(c.label) == s.alph.BlankIndex():
				// Must re-fetch: GetOrCreateChild calls earlier in this
				// inner loop (for other labels) may have grown and
				// reallocated the arena's backing slice, invalidating any
				// pointer taken before those calls.
				n := s.arena.Node(pi)
				n.PB = logprob.Add(n.PB, logprob.Mul(c.logProb, prevTotal))
				touched[pi] = struct{}{}

			case hasLast && c.label == lastLabel:
				// Extend-and-keep: same label continues without an
				// intervening blank, stays on the same node.
				n := s.arena.Node(pi)
				n.PNB = logprob.Add(n.PNB, logprob.Mul(c.logProb, n.PNBPrev))
				touched[pi] = struct{}{}

				// Separated-by-blank: the same label again, but this time
				// forms a new, distinct repeated symbol.
				child, created := s.arena.GetOrCreateChild(pi, c.label)
				s.ensureExtra(child)
				contribution := logprob.Mul(c.logProb, pbPrev)
				s.applyContribution(pi, child, c.label, contribution, created)
				touched[child] = struct{}{}

			default:
				child, created := s.arena.GetOrCreateChild(pi, c.label)
				s.ensureExtra(child)
				contribution := logprob.Mul(c.logProb, prevTotal)
				s.applyContribution(pi, child, c.label, contribution, created)
				touched[child] = struct{}{}
			}
		}
	}

	activeSet := make([]trie.NodeID, 0, len(touched))
	for id := range touched {
		activeSet = append(activeSet, id)
	}
	// Rank on this timestep's just-computed PB/PNB.
	s.active = trie.TopK(s.arena, activeSet, s.opts.BeamWidth)
	if len(s.active) == 0 {
		// Unreachable: the blank label is always considered, so every
		// previously active beam is touched every timestep.
		return fmt.Errorf("%w: beam: active beam set empty after pruning at timestep %d", decodeerr.ErrInternalInvariant, s.t)
	}
	kept := make(map[trie.NodeID]struct{}, len(s.active))
	for _, id := range s.active {
		kept[id] = struct{}{}
	}
	// Touched-but-pruned nodes must not carry this timestep's mass forward:
	// if the search reaches the same prefix again later, it starts from
	// scratch (fresh probabilities, fresh alignment stamp).
	for id := range touched {
		if _, ok := kept[id]; !ok {
			s.arena.Retire(id)
		}
	}
	s.t++
	return nil
}

// applyContribution folds contribution into child's P_nb, and — on the
// timestep child first becomes reachable — queries the lexicon, LM, and
// hot-word scorers and folds their contributions in too.
func (s *Session) applyContribution(parent, child trie.NodeID, label int32, contribution float64, created bool) {
	childNode := s.arena.Node(child)

	if !created {
		childNode.PNB = logprob.Add(childNode.PNB, contribution)
		return
	}

	childNode.Timestep = s.t
	parentExtra := s.nodeState[parent]
	childExtra := &s.nodeState[child]

	completedWord, childBuf, boundary := wordTransition(s.alph, s.opts.WordLevelAlphabet, parentExtra.wordBuf, label)
	childExtra.wordBuf = childBuf

	piece := s.alph.Emit(int(label))
	rejected := false
	switch {
	case !boundary:
		// Mid-word: walk the automaton one piece further. A prefix that can
		// no longer complete to any in-vocabulary word dies immediately
		// under a strict lexicon rather than at the next boundary.
		childExtra.lexState, childExtra.wordEnd = s.lex.Advance(parentExtra.lexState, piece)
		rejected = s.opts.StrictLexicon && !s.lex.IsReachable(childExtra.lexState)

	case s.opts.WordLevelAlphabet:
		// The label is itself a whole word; it must be a complete automaton
		// word on its own.
		_, we := s.lex.Advance(s.lex.NullState(), piece)
		rejected = s.opts.StrictLexicon && !we
		childExtra.lexState = s.lex.NullState()
		childExtra.wordEnd = false

	case s.alph.IsBPEBased():
		// A non-continuation piece closes the previous word and opens the
		// next one, so both ends get checked: the parent's pending word must
		// have landed on a word-final state, and the fresh piece must still
		// be a viable word prefix.
		rejected = s.opts.StrictLexicon && completedWord != "" && !parentExtra.wordEnd
		childExtra.lexState, childExtra.wordEnd = s.lex.Advance(s.lex.NullState(), piece)
		if s.opts.StrictLexicon && !s.lex.IsReachable(childExtra.lexState) {
			rejected = true
		}

	default:
		// Character mode: the space token closes the pending word and
		// carries no text of its own.
		rejected = s.opts.StrictLexicon && completedWord != "" && !parentExtra.wordEnd
		childExtra.lexState = s.lex.NullState()
		childExtra.wordEnd = false
	}

	bonus := 0.0
	childExtra.hotState, bonus = s.hot.Advance(parentExtra.hotState, label)

	lmContribution := 0.0
	childExtra.lmState = parentExtra.lmState
	if s.lm != nil {
		if s.lm.IsCharacterBased() {
			var lp float64
			childExtra.lmState, lp = s.lm.Score(parentExtra.lmState, piece)
			lmContribution = s.lm.Alpha() * lp
			s.noteLMQuery(piece)
		} else if boundary && completedWord != "" {
			var lp float64
			childExtra.lmState, lp = s.lm.Score(parentExtra.lmState, completedWord)
			lmContribution = s.lm.Alpha() * lp
			s.noteLMQuery(completedWord)
		}
		// The per-word bonus counts completed words, so a boundary that
		// closes nothing (a leading space, the first piece of the first
		// word) earns no beta.
		if boundary && completedWord != "" {
			lmContribution += s.lm.Beta()
		}
	}

	total := contribution + lmContribution + bonus
	if rejected {
		s.noteLexiconRejection()
		total = logprob.NegInf
	}
	childNode.PNB = logprob.Add(childNode.PNB, total)
}

// noteLexiconRejection counts a beam killed by strict-lexicon rejection.
func (s *Session) noteLexiconRejection() {
	if s.metrics != nil {
		s.metrics.RecordLexiconRejection(context.Background())
	}
}

// noteLMQuery counts an LM lookup that fell through to the unknown-word
// score.
func (s *Session) noteLMQuery(token string) {
	if s.metrics != nil && s.lm.IsUnknown(token) {
		s.metrics.RecordLMUnkHit(context.Background())
	}
}

// wordTransition determines, for a freshly created child reached via
// label, whether this crosses a word boundary and — if so — what word text
// just completed (for word-level LM scoring) and what the child's new
// pending-word buffer should start as.
func wordTransition(alph *alphabet.Alphabet, wordMode bool, parentBuf string, label int32) (completedWord, childBuf string, boundary bool) {
	li := int(label)
	boundary = alph.IsWordBoundary(li, wordMode)
	piece := alph.Emit(li)
	if !boundary {
		return "", parentBuf + piece, false
	}
	if wordMode {
		return piece, "", true
	}
	if alph.IsBPEBased() {
		return parentBuf, piece, true
	}
	// Character mode with an explicit space/boundary token: the boundary
	// token itself (typically a space) carries no text of its own.
	return parentBuf, "", true
}

// Finalize flushes any still-pending partial word through the LM/lexicon
// exactly once per active beam, in the fixed order lexicon-check ->
// LM-flush -> hotword-finalize -> score-commit, then returns the top
// Options.TopPaths beams ranked by final score.
func (s *Session) Finalize() []Beam {
	for _, id := range s.active {
		s.flushPendingWord(id)
	}

	ranked := trie.TopK(s.arena, s.active, s.opts.TopPaths)
	out := make([]Beam, len(ranked))
	for i, id := range ranked {
		out[i] = s.buildBeam(id)
	}
	return out
}

// Peek returns the current top Options.TopPaths beams ranked by score as
// they stand right now, without performing Finalize's end-of-stream
// LM/lexicon flush. Intended for a streaming caller that wants an interim
// transcript mid-utterance — unlike Finalize, it never mutates session
// state, so it is safe to call repeatedly between Step calls and does not
// disturb a later Finalize.
func (s *Session) Peek() []Beam {
	ranked := trie.TopK(s.arena, s.active, s.opts.TopPaths)
	out := make([]Beam, len(ranked))
	for i, id := range ranked {
		out[i] = s.buildBeam(id)
	}
	return out
}

// flushPendingWord applies the end-of-stream final-word contribution for a
// beam that ended mid-word (a non-empty pending buffer with no trailing
// boundary token), per the lexicon-check -> LM-flush -> hotword-finalize ->
// score-commit order.
func (s *Session) flushPendingWord(id trie.NodeID) {
	extra := &s.nodeState[id]
	if extra.wordBuf == "" {
		return
	}
	node := s.arena.Node(id)

	// Lexicon-check: the pending buffer's lexicon state already reflects
	// every piece consumed; a strict lexicon requires the utterance to end
	// on a complete word, not merely a viable prefix.
	rejected := s.opts.StrictLexicon && !extra.wordEnd

	// LM-flush: only word-level LMs care about a final partial word —
	// character/BPE LMs already scored every piece as it was emitted.
	lmContribution := 0.0
	if s.lm != nil && !s.lm.IsCharacterBased() {
		_, lp := s.lm.Score(extra.lmState, extra.wordBuf)
		lmContribution = s.lm.Alpha()*lp + s.lm.Beta()
		s.noteLMQuery(extra.wordBuf)
	}

	// Hotword-finalize: no separate action needed — hot-word bonuses are
	// folded in as each label is emitted, so there is nothing pending here.

	// Score-commit.
	if rejected {
		s.noteLexiconRejection()
		node.PB, node.PNB = logprob.NegInf, logprob.NegInf
		return
	}
	node.PB = logprob.Mul(node.PB, lmContribution)
	node.PNB = logprob.Mul(node.PNB, lmContribution)
	extra.wordBuf = ""
}

// buildBeam walks id back to the root, collecting labels and their
// per-label first-emission timesteps in emission order.
func (s *Session) buildBeam(id trie.NodeID) Beam {
	node := s.arena.Node(id)
	score := node.Score()

	var labels, timesteps []int32
	cur := id
	for cur != s.arena.Root() {
		n := s.arena.Node(cur)
		labels = append(labels, n.Label)
		timesteps = append(timesteps, n.Timestep)
		cur = n.Parent
	}
	for l, r := 0, len(labels)-1; l < r; l, r = l+1, r-1 {
		labels[l], labels[r] = labels[r], labels[l]
		timesteps[l], timesteps[r] = timesteps[r], timesteps[l]
	}
	return Beam{Labels: labels, Timesteps: timesteps, Score: score}
}

// DecodeUtterance is the non-streaming convenience entry point: run every
// timestep of probs (a [T, V] row-major matrix, T capped at seqLen) through
// a fresh Session and return its finalized top-K beams.
func DecodeUtterance(alph *alphabet.Alphabet, opts Options, lmModel lm.Model, lex lexicon.Automaton, hot *hotword.Trie, metrics *observe.Metrics, probs [][]float32, seqLen int) ([]Beam, error) {
	s, err := New(alph, opts, lmModel, lex, hot, metrics)
	if err != nil {
		return nil, err
	}
	if seqLen > len(probs) {
		seqLen = len(probs)
	}
	for t := 0; t < seqLen; t++ {
		if err := s.Step(probs[t]); err != nil {
			return nil, err
		}
	}
	return s.Finalize(), nil
}
