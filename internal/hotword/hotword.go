// Package hotword implements the optional hot-word scorer: a token-keyed
// prefix automaton that boosts a beam's score whenever its recent labels
// match one of a set of supplied patterns.
//
// Unlike a general multi-pattern string matcher (Aho-Corasick, say), this
// automaton is walked by many independent beams simultaneously rather than
// once over a single stream, so there is no shared "current position" and
// therefore no failure-link machinery: each beam just carries its own
// State and resets to the root whenever its last label stops continuing
// any pattern.
package hotword

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
)

// State addresses a node in the hot-word trie. The zero value is the root
// (no pattern progress yet).
type State int32

const root State = 0

// node is one trie node: outgoing edges by label, plus the weight to award
// immediately if a pattern completes here.
type node struct {
	children map[int32]State
	// weight is non-zero only when this node is the final label of at
	// least one registered pattern. Overlapping patterns that share a
	// prefix but end at different depths each get their own completing
	// node, so weight accumulates naturally — no special-casing needed.
	weight float64
}

// Trie is a read-only, shared hot-word automaton built once at startup via
// Build and consulted (never mutated) by every worker goroutine in the
// batch executor.
type Trie struct {
	nodes []node
}

// Pattern is one hot-word entry: a token sequence (already mapped through
// the alphabet, e.g. label indices) and the score bonus awarded when a beam
// emits that exact sequence contiguously.
type Pattern struct {
	Tokens []int32
	Weight float64
}

// Build compiles patterns into a Trie. Patterns sharing a prefix share
// trie nodes; an empty pattern list yields a Trie with only the root,
// which never awards a bonus.
func Build(patterns []Pattern) *Trie {
	t := &Trie{nodes: []node{{children: make(map[int32]State)}}}
	for _, p := range patterns {
		cur := root
		for _, tok := range p.Tokens {
			n := &t.nodes[cur]
			next, ok := n.children[tok]
			if !ok {
				next = State(len(t.nodes))
				t.nodes = append(t.nodes, node{children: make(map[int32]State)})
				t.nodes[cur].children[tok] = next
			}
			cur = next
		}
		t.nodes[cur].weight += p.Weight
	}
	return t
}

// Root returns the automaton's initial state.
func (t *Trie) Root() State { return root }

// Advance extends state by one emitted label. It returns the next state
// and the bonus (possibly zero) to add to the beam's accumulated hot-word
// score for reaching it.
//
// When label does not continue any pattern from state, Advance tries
// restarting the match from the root with the same label — this lets a
// beam pick up a pattern that begins partway through an already-failed
// match (e.g. pattern "AB" against emitted stream "AAB": the second "A"
// fails to continue the match begun by the first, but does start a fresh
// one, which the "B" then completes).
// If that also fails, the beam's hot-word state resets to the root with no
// bonus.
func (t *Trie) Advance(state State, label int32) (next State, bonus float64) {
	if next, ok := t.nodes[state].children[label]; ok {
		return next, t.nodes[next].weight
	}
	if state != root {
		if next, ok := t.nodes[root].children[label]; ok {
			return next, t.nodes[next].weight
		}
	}
	return root, 0
}

// LoadPatternsFile reads hot-word patterns from path using [LoadPatterns].
func LoadPatternsFile(path string, alph *alphabet.Alphabet, defaultWeight float64) ([]Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: hotword: open %q: %v", decodeerr.ErrResourceUnavailable, path, err)
	}
	defer f.Close()
	return LoadPatterns(f, alph, defaultWeight)
}

// LoadPatterns parses a hot-word pattern file, one phrase per line. Each
// line is whitespace-separated alphabet tokens optionally followed by a
// trailing numeric weight; lines with no trailing number use defaultWeight.
// Blank lines are skipped. A line containing a token absent from alph is
// rejected, since it could never match any beam.
func LoadPatterns(r io.Reader, alph *alphabet.Alphabet, defaultWeight float64) ([]Pattern, error) {
	var patterns []Pattern
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		weight := defaultWeight
		wordFields := fields
		if len(fields) > 1 {
			if w, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				weight = w
				wordFields = fields[:len(fields)-1]
			}
		}
		tokens := make([]int32, 0, len(wordFields))
		for _, tok := range wordFields {
			idx, ok := alph.IndexOf(tok)
			if !ok {
				return nil, fmt.Errorf("%w: hotword: token %q is not in the alphabet", decodeerr.ErrCorruptInput, tok)
			}
			tokens = append(tokens, int32(idx))
		}
		if len(tokens) == 0 {
			continue
		}
		patterns = append(patterns, Pattern{Tokens: tokens, Weight: weight})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: hotword: read: %v", decodeerr.ErrCorruptInput, err)
	}
	return patterns, nil
}
