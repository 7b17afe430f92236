package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the zero-value defaults the decoder engine and
// scorers expect, mirroring beam.Options' own defaulting so a config loaded
// straight from YAML is immediately usable.
func applyDefaults(cfg *Config) {
	if cfg.Decoder.BeamWidth == 0 {
		cfg.Decoder.BeamWidth = 10
	}
	if cfg.Decoder.TopPaths == 0 {
		cfg.Decoder.TopPaths = cfg.Decoder.BeamWidth
	}
	if cfg.Decoder.CutoffProb == 0 {
		cfg.Decoder.CutoffProb = 1.0
	}
	if cfg.LM.Backend == "" {
		cfg.LM.Backend = "arpa"
	}
	if cfg.Lexicon.Backend == "" {
		cfg.Lexicon.Backend = "trie"
	}
	if cfg.HotWords.Backend == "" {
		cfg.HotWords.Backend = "trie"
	}
	if cfg.Batch.NumWorkers == 0 {
		cfg.Batch.NumWorkers = runtime.GOMAXPROCS(0)
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if len(cfg.Alphabet.Tokens) > 0 {
		if cfg.Alphabet.BlankID < 0 || cfg.Alphabet.BlankID >= len(cfg.Alphabet.Tokens) {
			errs = append(errs, fmt.Errorf("alphabet.blank_id %d out of range [0,%d)", cfg.Alphabet.BlankID, len(cfg.Alphabet.Tokens)))
		}
		if cfg.Alphabet.SpaceID != nil && (*cfg.Alphabet.SpaceID < 0 || *cfg.Alphabet.SpaceID >= len(cfg.Alphabet.Tokens)) {
			errs = append(errs, fmt.Errorf("alphabet.space_id %d out of range [0,%d)", *cfg.Alphabet.SpaceID, len(cfg.Alphabet.Tokens)))
		}
	}

	if cfg.Decoder.BeamWidth < 1 {
		errs = append(errs, fmt.Errorf("decoder.beam_width must be >= 1, got %d", cfg.Decoder.BeamWidth))
	}
	if cfg.Decoder.TopPaths < 1 || cfg.Decoder.TopPaths > cfg.Decoder.BeamWidth {
		errs = append(errs, fmt.Errorf("decoder.top_paths must be in [1, beam_width], got %d", cfg.Decoder.TopPaths))
	}
	if cfg.Decoder.CutoffProb <= 0 || cfg.Decoder.CutoffProb > 1 {
		errs = append(errs, fmt.Errorf("decoder.cutoff_prob must be in (0, 1], got %v", cfg.Decoder.CutoffProb))
	}

	if cfg.LM.Type != "" && !cfg.LM.Type.IsValid() {
		errs = append(errs, fmt.Errorf("lm.type %q is invalid; valid values: character, bpe, word", cfg.LM.Type))
	}
	if cfg.LM.ModelPath != "" && cfg.LM.Type == LMTypeNone {
		slog.Warn("lm.model_path is set but lm.type is empty; defaulting to word-level scoring")
	}

	if cfg.Decoder.StrictLexicon && cfg.Lexicon.WordListPath == "" {
		errs = append(errs, errors.New("decoder.strict_lexicon requires lexicon.word_list_path to be set"))
	}

	return errors.Join(errs...)
}
