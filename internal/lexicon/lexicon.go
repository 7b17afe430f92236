// Package lexicon implements the optional lexicon automaton: a constraint
// that only lets the beam-search engine complete words that exist in a
// supplied vocabulary.
//
// The automaton shape — advance(state, piece) -> (new_state, is_word_end),
// is_reachable(state) -> bool — is deliberately the same shape an FST
// implementation would present, so a future OpenFST-backed Automaton can
// slot in next to the character-trie one here without touching the
// beam-search engine. Only the character-trie implementation is provided;
// an OpenFST binding stays an external collaborator.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/voicecore/ctcdecode/internal/decodeerr"
)

// State addresses a node in the lexicon automaton. Dead marks "this prefix
// cannot possibly complete to any in-vocabulary word" — once a beam's
// lexicon state goes Dead it stays Dead until the engine resets it at the
// next word boundary.
type State int32

// Dead is the sentinel unreachable state.
const Dead State = -1

// Automaton is the interface the beam-search engine consults for lexicon
// constraint. A nil Automaton is never passed around; callers use Trivial
// for "no lexicon configured."
type Automaton interface {
	// NullState returns the state a fresh word starts in (the automaton's
	// root).
	NullState() State

	// Advance extends state by one emitted character/token piece. wordEnd
	// reports whether, having just consumed piece, the resulting state
	// represents a complete in-vocabulary word — callers only care about
	// this when piece was emitted at a word boundary.
	Advance(state State, piece string) (next State, wordEnd bool)

	// IsReachable reports whether state is anything other than Dead.
	IsReachable(state State) bool
}

// trivial is the accept-all automaton used when no lexicon file is
// configured. Every state is reachable and is_word_end is always true,
// since word-boundary detection in that case is driven entirely by the
// alphabet's own space/continuation rules.
type trivial struct{}

// Trivial returns the accept-all Automaton.
func Trivial() Automaton { return trivial{} }

func (trivial) NullState() State                    { return 0 }
func (trivial) Advance(State, string) (State, bool) { return 0, true }
func (trivial) IsReachable(State) bool              { return true }

// charNode is one node of the character trie. Children are keyed by rune so
// multi-byte tokens (BPE pieces, non-ASCII characters) are matched whole.
type charNode struct {
	children map[rune]int32 // rune -> index into Trie.nodes
	isWord   bool
}

// Trie is a read-only character-trie lexicon automaton built once at
// startup and shared, without locking, across every worker in the batch
// executor — nothing on it mutates after Build/Load returns.
type Trie struct {
	nodes []charNode
}

var _ Automaton = (*Trie)(nil)

// NewTrie returns an empty Trie (rejects every word until Insert is called).
func NewTrie() *Trie {
	return &Trie{nodes: []charNode{{children: make(map[rune]int32)}}}
}

// Insert adds word to the lexicon.
func (t *Trie) Insert(word string) {
	cur := int32(0)
	for _, r := range word {
		n := &t.nodes[cur]
		next, ok := n.children[r]
		if !ok {
			next = int32(len(t.nodes))
			t.nodes = append(t.nodes, charNode{children: make(map[rune]int32)})
			t.nodes[cur].children[r] = next
		}
		cur = next
	}
	t.nodes[cur].isWord = true
}

// Load builds a Trie from a newline-delimited word list, one vocabulary
// entry per line. Blank lines are skipped.
func Load(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: lexicon: open %q: %v", decodeerr.ErrResourceUnavailable, path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader is the io.Reader-based counterpart to Load, used directly
// in tests.
func LoadFromReader(r io.Reader) (*Trie, error) {
	t := NewTrie()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		word := sc.Text()
		if word == "" {
			continue
		}
		t.Insert(word)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: lexicon: read: %v", decodeerr.ErrCorruptInput, err)
	}
	return t, nil
}

// NullState returns the trie root, state 0.
func (t *Trie) NullState() State { return 0 }

// Advance walks state through piece one rune at a time. If any rune lacks
// an outgoing edge the result is Dead. wordEnd is true only when the
// resulting node marks the end of an inserted word.
func (t *Trie) Advance(state State, piece string) (State, bool) {
	if state == Dead {
		return Dead, false
	}
	cur := int32(state)
	for _, r := range piece {
		next, ok := t.nodes[cur].children[r]
		if !ok {
			return Dead, false
		}
		cur = next
	}
	return State(cur), t.nodes[cur].isWord
}

// IsReachable reports whether state is anything other than Dead.
func (t *Trie) IsReachable(state State) bool { return state != Dead }
