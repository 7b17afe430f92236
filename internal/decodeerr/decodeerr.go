// Package decodeerr defines the closed set of error kinds the decoder can
// raise. Every failure the decoder itself detects is returned wrapping
// exactly one of these sentinels via %w, so callers can classify it with
// errors.Is regardless of the specific message attached. Context
// cancellation errors from the batch executor are passed through without a
// sentinel.
package decodeerr

import "errors"

var (
	// ErrInvalidArgument marks malformed call arguments: mismatched tensor
	// shapes, an out-of-range blank index, beam_width < 1, and similar
	// caller mistakes detected before any decoding work begins.
	ErrInvalidArgument = errors.New("decodeerr: invalid argument")

	// ErrResourceUnavailable marks a missing or unreadable external
	// resource: an LM file, a lexicon file, a hot-word pattern file.
	ErrResourceUnavailable = errors.New("decodeerr: resource unavailable")

	// ErrCorruptInput marks malformed data that was readable but not valid:
	// non-finite probabilities, a malformed LM/lexicon file body.
	ErrCorruptInput = errors.New("decodeerr: corrupt input")

	// ErrInternalInvariant marks a violated internal invariant — a bug in
	// the decoder, not a caller or data problem. It should be unreachable
	// in a correct build; seeing it surface is a fatal condition for the
	// decode that triggered it.
	ErrInternalInvariant = errors.New("decodeerr: internal invariant violated")
)
