package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/hotword"
	"github.com/voicecore/ctcdecode/internal/lexicon"
	"github.com/voicecore/ctcdecode/internal/lm"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// pluggable scorer kind. It is safe for concurrent use.
// New pre-populates it with the built-in "arpa"/"trie" backends; callers
// register additional names (e.g. a future cgo KenLM binding, or an OpenFST
// lexicon) before building a beam.Session.
type Registry struct {
	mu       sync.RWMutex
	lm       map[string]func(*alphabet.Alphabet, LMConfig) (lm.Model, error)
	lexicon  map[string]func(*alphabet.Alphabet, LexiconConfig) (lexicon.Automaton, error)
	hotWords map[string]func(*alphabet.Alphabet, HotWordsConfig) (*hotword.Trie, error)
}

// NewRegistry returns a [Registry] pre-populated with the built-in backends:
// "arpa" for LM (internal/lm.ArpaModel), and "trie" for both lexicon and
// hot-words (internal/lexicon.Trie and internal/hotword.Trie).
func NewRegistry() *Registry {
	r := &Registry{
		lm:       make(map[string]func(*alphabet.Alphabet, LMConfig) (lm.Model, error)),
		lexicon:  make(map[string]func(*alphabet.Alphabet, LexiconConfig) (lexicon.Automaton, error)),
		hotWords: make(map[string]func(*alphabet.Alphabet, HotWordsConfig) (*hotword.Trie, error)),
	}
	r.RegisterLM("arpa", buildArpaLM)
	r.RegisterLexicon("trie", buildTrieLexicon)
	r.RegisterHotWords("trie", buildTrieHotWords)
	return r
}

// RegisterLM registers an LM factory under name. Subsequent calls with the
// same name overwrite the previous registration.
func (r *Registry) RegisterLM(name string, factory func(*alphabet.Alphabet, LMConfig) (lm.Model, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lm[name] = factory
}

// RegisterLexicon registers a lexicon factory under name.
func (r *Registry) RegisterLexicon(name string, factory func(*alphabet.Alphabet, LexiconConfig) (lexicon.Automaton, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lexicon[name] = factory
}

// RegisterHotWords registers a hot-word factory under name.
func (r *Registry) RegisterHotWords(name string, factory func(*alphabet.Alphabet, HotWordsConfig) (*hotword.Trie, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hotWords[name] = factory
}

// CreateLM builds the LM scorer described by cfg, or returns (nil, nil) when
// cfg.ModelPath is empty — "no LM configured" is not an error.
func (r *Registry) CreateLM(alph *alphabet.Alphabet, cfg LMConfig) (lm.Model, error) {
	if cfg.ModelPath == "" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.lm[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: lm/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(alph, cfg)
}

// CreateLexicon builds the lexicon automaton described by cfg, or returns
// (lexicon.Trivial(), nil) when cfg.WordListPath is empty.
func (r *Registry) CreateLexicon(alph *alphabet.Alphabet, cfg LexiconConfig) (lexicon.Automaton, error) {
	if cfg.WordListPath == "" {
		return lexicon.Trivial(), nil
	}
	r.mu.RLock()
	factory, ok := r.lexicon[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: lexicon/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(alph, cfg)
}

// CreateHotWords builds the hot-word trie described by cfg, or returns
// (hotword.Build(nil), nil) when cfg.PatternsPath is empty.
func (r *Registry) CreateHotWords(alph *alphabet.Alphabet, cfg HotWordsConfig) (*hotword.Trie, error) {
	if cfg.PatternsPath == "" {
		return hotword.Build(nil), nil
	}
	r.mu.RLock()
	factory, ok := r.hotWords[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: hot_words/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(alph, cfg)
}

func buildArpaLM(_ *alphabet.Alphabet, cfg LMConfig) (lm.Model, error) {
	var opts []lm.Option
	opts = append(opts, lm.WithWeights(cfg.Alpha, cfg.Beta))
	opts = append(opts, lm.WithCharacterBased(cfg.Type == LMTypeCharacter || cfg.Type == LMTypeBPE))
	if cfg.UnkScore != 0 {
		opts = append(opts, lm.WithUnkScore(cfg.UnkScore))
	}
	return lm.Load(cfg.ModelPath, opts...)
}

func buildTrieLexicon(_ *alphabet.Alphabet, cfg LexiconConfig) (lexicon.Automaton, error) {
	return lexicon.Load(cfg.WordListPath)
}

func buildTrieHotWords(alph *alphabet.Alphabet, cfg HotWordsConfig) (*hotword.Trie, error) {
	patterns, err := hotword.LoadPatternsFile(cfg.PatternsPath, alph, cfg.DefaultWeight)
	if err != nil {
		return nil, err
	}
	return hotword.Build(patterns), nil
}
