// Package alphabet describes the ordered set of output tokens a CTC model
// emits at each timestep: which index is the blank symbol, which (if any)
// marks a word boundary in character mode, and how BPE continuation pieces
// fold onto the preceding token at emission time.
package alphabet

import (
	"fmt"
	"strings"
)

// defaultBPEPrefix is the conventional continuation-piece marker ("##bert",
// "##ing") used when the caller does not override it.
const defaultBPEPrefix = "##"

// Alphabet is the read-only, shared label set a decoder run is configured
// against. It is safe for concurrent use by any number of decoder tasks —
// nothing on it mutates after construction.
type Alphabet struct {
	tokens     []string
	blank      int
	space      int // -1 when no space token is configured
	isBPE      bool
	bpePrefix  string
	tokenIndex map[string]int
}

// Option configures an Alphabet at construction time.
type Option func(*Alphabet)

// WithSpace designates spaceIndex as the word-boundary token in character
// mode. Pass -1 (the default) when the alphabet has no explicit space token.
func WithSpace(spaceIndex int) Option {
	return func(a *Alphabet) { a.space = spaceIndex }
}

// WithBPE enables BPE continuation-piece merging and sets the prefix string
// that marks a continuation token (default "##").
func WithBPE(prefix string) Option {
	return func(a *Alphabet) {
		a.isBPE = true
		if prefix != "" {
			a.bpePrefix = prefix
		}
	}
}

// New builds an Alphabet from an ordered token list and the index of the CTC
// blank symbol. Returns an error if blank is out of range or tokens is empty.
func New(tokens []string, blank int, opts ...Option) (*Alphabet, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("alphabet: token list must not be empty")
	}
	if blank < 0 || blank >= len(tokens) {
		return nil, fmt.Errorf("alphabet: blank index %d out of range [0,%d)", blank, len(tokens))
	}

	a := &Alphabet{
		tokens:    append([]string(nil), tokens...),
		blank:     blank,
		space:     -1,
		bpePrefix: defaultBPEPrefix,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.space != -1 && (a.space < 0 || a.space >= len(tokens)) {
		return nil, fmt.Errorf("alphabet: space index %d out of range [0,%d)", a.space, len(tokens))
	}

	a.tokenIndex = make(map[string]int, len(tokens))
	for i, tok := range tokens {
		a.tokenIndex[tok] = i
	}
	return a, nil
}

// Size returns the vocabulary size V.
func (a *Alphabet) Size() int { return len(a.tokens) }

// BlankIndex returns the configured CTC blank index.
func (a *Alphabet) BlankIndex() int { return a.blank }

// Token returns the raw token string at index i.
func (a *Alphabet) Token(i int) string { return a.tokens[i] }

// IsBlank reports whether i is the CTC blank index.
func (a *Alphabet) IsBlank(i int) bool { return i == a.blank }

// IsSpace reports whether i is the configured space/word-boundary token.
// Always false when no space token was configured.
func (a *Alphabet) IsSpace(i int) bool { return a.space >= 0 && i == a.space }

// IsBPEBased reports whether BPE continuation merging is enabled.
func (a *Alphabet) IsBPEBased() bool { return a.isBPE }

// IsContinuation reports whether token i is a BPE continuation piece (i.e.
// starts with the configured BPE prefix). Always false outside BPE mode.
func (a *Alphabet) IsContinuation(i int) bool {
	if !a.isBPE {
		return false
	}
	return strings.HasPrefix(a.tokens[i], a.bpePrefix)
}

// IsWordBoundary reports whether emitting label i starts a new word relative
// to whatever was emitted before it:
//
//   - character mode (no BPE): the space token is the boundary, so every
//     non-space token continues the current word and every space token
//     closes it;
//   - BPE mode: any token that is NOT a continuation piece starts a new word;
//   - word mode (alphabet entries are whole words): every token is its own
//     boundary.
//
// wordMode lets callers configured at the word level (one label == one
// complete word) opt into "every token is a boundary" without needing a
// dedicated alphabet flag.
func (a *Alphabet) IsWordBoundary(i int, wordMode bool) bool {
	if wordMode {
		return true
	}
	if a.isBPE {
		return !a.IsContinuation(i)
	}
	return a.IsSpace(i)
}

// Emit returns the text a label contributes to the decoded output: the bare
// token outside BPE mode, or the token with its continuation prefix
// stripped in BPE mode.
func (a *Alphabet) Emit(i int) string {
	tok := a.tokens[i]
	if a.isBPE && strings.HasPrefix(tok, a.bpePrefix) {
		return strings.TrimPrefix(tok, a.bpePrefix)
	}
	return tok
}

// IndexOf returns the index of token tok, and false if it is not present in
// the alphabet.
func (a *Alphabet) IndexOf(tok string) (int, bool) {
	i, ok := a.tokenIndex[tok]
	return i, ok
}
