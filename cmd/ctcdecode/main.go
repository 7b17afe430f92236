// Command ctcdecode is a thin demonstration binary for the CTC prefix
// beam-search decoder. It loads a YAML configuration, builds the
// alphabet/LM/lexicon/hot-word backends through the config registry, reads
// a probability-matrix fixture, and prints the decoded top-K hypotheses.
//
// It exists only to give the ambient config/logging stack a runnable entry
// point — the decoding engine itself has zero dependency on this binary.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/beam"
	"github.com/voicecore/ctcdecode/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML decoder configuration")
	inputPath := flag.String("input", "", "path to a CSV probability-matrix fixture (rows=timesteps, cols=vocab)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: load config %q: %v\n", *configPath, err)
		return 1
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("ctcdecode starting", "config", *configPath)

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "ctcdecode: -input is required")
		return 1
	}
	probs, err := readProbabilityCSV(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: read input %q: %v\n", *inputPath, err)
		return 1
	}

	alph, err := buildAlphabet(cfg.Alphabet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: build alphabet: %v\n", err)
		return 1
	}

	reg := config.NewRegistry()
	lmModel, err := reg.CreateLM(alph, cfg.LM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: build LM: %v\n", err)
		return 1
	}
	lex, err := reg.CreateLexicon(alph, cfg.Lexicon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: build lexicon: %v\n", err)
		return 1
	}
	hot, err := reg.CreateHotWords(alph, cfg.HotWords)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: build hot-words: %v\n", err)
		return 1
	}

	opts := beam.Options{
		BeamWidth:         cfg.Decoder.BeamWidth,
		TopPaths:          cfg.Decoder.TopPaths,
		CutoffTopN:        cfg.Decoder.CutoffTopN,
		CutoffProb:        cfg.Decoder.CutoffProb,
		LogProbsInput:     cfg.Decoder.LogProbsInput,
		WordLevelAlphabet: cfg.Alphabet.WordLevelAlphabet,
		StrictLexicon:     cfg.Decoder.StrictLexicon,
	}

	beams, err := beam.DecodeUtterance(alph, opts, lmModel, lex, hot, nil, probs, len(probs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctcdecode: decode: %v\n", err)
		return 1
	}

	for i, b := range beams {
		fmt.Printf("%d: %-30q score=%.4f timesteps=%v\n", i, renderBeam(alph, b), b.Score, b.Timesteps)
	}
	return 0
}

// buildAlphabet constructs an alphabet.Alphabet from the decoder's config
// section.
func buildAlphabet(cfg config.AlphabetConfig) (*alphabet.Alphabet, error) {
	var opts []alphabet.Option
	if cfg.SpaceID != nil {
		opts = append(opts, alphabet.WithSpace(*cfg.SpaceID))
	}
	if cfg.IsBPEBased {
		opts = append(opts, alphabet.WithBPE(cfg.BPEPrefix))
	}
	return alphabet.New(cfg.Tokens, cfg.BlankID, opts...)
}

// renderBeam joins a beam's emitted label text into a single string.
func renderBeam(alph *alphabet.Alphabet, b beam.Beam) string {
	var sb strings.Builder
	for _, label := range b.Labels {
		sb.WriteString(alph.Emit(int(label)))
	}
	return sb.String()
}

// readProbabilityCSV reads a row-per-timestep, column-per-label probability
// matrix fixture.
func readProbabilityCSV(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([][]float32, len(records))
	for i, rec := range records {
		row := make([]float32, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, fmt.Errorf("row %d, col %d: %w", i, j, err)
			}
			row[j] = float32(v)
		}
		rows[i] = row
	}
	return rows, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
