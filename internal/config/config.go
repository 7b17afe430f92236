// Package config provides the configuration schema, loader, and backend
// registry for the CTC prefix beam-search decoder.
package config

// Config is the root configuration structure for a decoder deployment. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Alphabet AlphabetConfig `yaml:"alphabet"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	LM       LMConfig       `yaml:"lm"`
	Lexicon  LexiconConfig  `yaml:"lexicon"`
	HotWords HotWordsConfig `yaml:"hot_words"`
	Batch    BatchConfig    `yaml:"batch"`
}

// ServerConfig holds process-wide logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls slog verbosity. Valid values: "debug", "info",
	// "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is a listen address for a Prometheus metrics endpoint
	// (e.g. ":9090"). It is only parsed: nothing in this module reads it or
	// starts an HTTP listener on it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LogLevel is a validated slog verbosity name.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised LogLevel values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}

// AlphabetConfig describes the output label set a decoder run is configured
// against.
type AlphabetConfig struct {
	// Tokens is the ordered vocabulary; its index is the CTC label id.
	Tokens []string `yaml:"tokens"`

	// BlankID is the index of the CTC blank symbol within Tokens.
	BlankID int `yaml:"blank_id"`

	// SpaceID is the index of the word-boundary token in character mode.
	// A pointer distinguishes "unset" from the valid index 0; nil means no
	// explicit space token is configured.
	SpaceID *int `yaml:"space_id"`

	// IsBPEBased enables BPE continuation-piece merging.
	IsBPEBased bool `yaml:"is_bpe_based"`

	// BPEPrefix overrides the continuation-piece marker (default "##").
	BPEPrefix string `yaml:"bpe_prefix"`

	// WordLevelAlphabet marks an alphabet whose tokens are already whole
	// words, so every label is its own word boundary.
	WordLevelAlphabet bool `yaml:"word_level_alphabet"`
}

// DecoderConfig tunes the beam-search engine itself.
type DecoderConfig struct {
	// BeamWidth is the maximum number of beams retained per timestep.
	BeamWidth int `yaml:"beam_width"`

	// TopPaths is how many ranked hypotheses Finalize returns; defaults to
	// BeamWidth when zero.
	TopPaths int `yaml:"top_paths"`

	// CutoffTopN caps how many labels are considered per timestep before
	// CutoffProb pruning. Zero defaults to the full vocabulary.
	CutoffTopN int `yaml:"cutoff_top_n"`

	// CutoffProb is the cumulative-probability pruning threshold. A value
	// of 1.0 (the default) disables probability-based pruning.
	CutoffProb float64 `yaml:"cutoff_prob"`

	// LogProbsInput declares that the probability matrix already holds
	// natural-log probabilities rather than linear ones.
	LogProbsInput bool `yaml:"log_probs_input"`

	// StrictLexicon rejects a beam the instant it completes an
	// out-of-vocabulary word.
	StrictLexicon bool `yaml:"strict_lexicon"`
}

// LMType names the granularity an external language model scores at.
type LMType string

const (
	LMTypeNone      LMType = ""
	LMTypeCharacter LMType = "character"
	LMTypeBPE       LMType = "bpe"
	LMTypeWord      LMType = "word"
)

// IsValid reports whether t is empty (disabled) or one of the recognised
// LMType values.
func (t LMType) IsValid() bool {
	switch t {
	case LMTypeNone, LMTypeCharacter, LMTypeBPE, LMTypeWord:
		return true
	default:
		return false
	}
}

// LMConfig configures the optional n-gram language-model scorer. A
// zero-value ModelPath disables LM rescoring.
type LMConfig struct {
	// Backend selects the registered LM factory (see [Registry]). Empty
	// defaults to "arpa".
	Backend string `yaml:"backend"`

	// Type is the scoring granularity: "character", "bpe", or "word".
	Type LMType `yaml:"type"`

	// ModelPath is the ARPA-format n-gram file to load. Empty disables the
	// LM scorer entirely.
	ModelPath string `yaml:"model_path"`

	// Alpha weights the LM's log-probability contribution.
	Alpha float64 `yaml:"alpha"`

	// Beta is the per-completed-word bonus weight.
	Beta float64 `yaml:"beta"`

	// UnkScore is the log10 probability assigned to out-of-vocabulary
	// tokens. Defaults to -100 (effectively impossible) when zero.
	UnkScore float64 `yaml:"unk_score"`
}

// LexiconConfig configures the optional lexicon automaton. An empty
// WordListPath disables lexicon constraint entirely (the trivial,
// accept-all automaton is used).
type LexiconConfig struct {
	// Backend selects the registered lexicon factory. Empty defaults to
	// "trie".
	Backend string `yaml:"backend"`

	// WordListPath is a newline-delimited vocabulary file.
	WordListPath string `yaml:"word_list_path"`
}

// HotWordsConfig configures the optional hot-word scorer. An empty
// PatternsPath disables hot-word boosting.
type HotWordsConfig struct {
	// Backend selects the registered hot-word factory. Empty defaults to
	// "trie".
	Backend string `yaml:"backend"`

	// PatternsPath lists hot-word phrases and their score bonus, one per
	// line: space-separated alphabet tokens followed by a trailing weight.
	PatternsPath string `yaml:"patterns_path"`

	// DefaultWeight is used for pattern lines that omit an explicit weight.
	DefaultWeight float64 `yaml:"default_weight"`
}

// BatchConfig tunes the worker-pool batch executor.
type BatchConfig struct {
	// NumWorkers caps how many utterances decode concurrently. Zero
	// defaults to runtime.GOMAXPROCS(0).
	NumWorkers int `yaml:"num_workers"`
}
