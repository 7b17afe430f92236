// Package logprob provides numerically-stable log-space arithmetic for the
// CTC beam-search engine.
//
// Every probability the decoder touches — acoustic emission probabilities,
// beam scores, LM log-probs — lives in log space so that repeated
// multiplication (addition, here) across hundreds of timesteps never
// underflows. The one operation that needs care is addition: two
// log-probabilities cannot be added directly, they must be combined with
// logaddexp.
package logprob

import "math"

// NegInf is the log-space representation of probability zero.
var NegInf = math.Inf(-1)

// LogOne is the log-space representation of probability one.
const LogOne = 0.0

// Add combines two log-probabilities as log(exp(a) + exp(b)), using the
// shift-by-max identity for numerical stability:
//
//	logaddexp(a, b) = max(a, b) + log1p(exp(-|a-b|))
//
// By convention logaddexp(-Inf, x) == x for any x, including -Inf.
func Add(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a == b {
		// log1p(exp(0)) == log(2); avoids relying on exp(-0) edge handling.
		return a + math.Ln2
	}
	hi, lo := a, b
	if lo > hi {
		hi, lo = lo, hi
	}
	return hi + math.Log1p(math.Exp(lo-hi))
}

// AddMany folds Add across vs left to right. Returns NegInf for an empty
// slice, matching the identity element of log-space addition.
func AddMany(vs ...float64) float64 {
	acc := NegInf
	for _, v := range vs {
		acc = Add(acc, v)
	}
	return acc
}

// Mul is log-space multiplication: plain addition. Spelled out so call
// sites read as arithmetic on probabilities rather than ordinary floats.
func Mul(a, b float64) float64 {
	return a + b
}

// FromLinear converts a plain (non-log) probability to log space. Used once
// per timestep when the decoder is configured for linear-probability input
// (log_probs_input == false).
func FromLinear(p float64) float64 {
	if p <= 0 {
		return NegInf
	}
	return math.Log(p)
}

// IsFinite reports whether v is neither NaN nor +/-Inf other than the
// well-formed NegInf sentinel. Used to reject corrupt-input probability
// matrices (NaN in particular never compares equal to anything, including
// itself).
func IsFinite(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if math.IsInf(v, 1) {
		return false
	}
	return true
}
