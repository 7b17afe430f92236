// Package ctcio defines the decoder's external data contract: the row-major
// probability tensor callers supply and the caller-allocated output buffers
// the batch executor writes results into.
//
// These are plain structs, not an RPC surface — the external interface this
// module exposes is a flat numeric tensor contract (the shape a model
// server hands off after inference), not a network service, so there is no
// protobuf or gRPC layer here.
package ctcio

import "github.com/voicecore/ctcdecode/internal/beam"

// ProbabilityTensor is a row-major [B, T, V] tensor of per-timestep label
// probabilities (or log-probabilities, see beam.Options.LogProbsInput).
type ProbabilityTensor struct {
	Data    []float32
	B, T, V int
}

// NewProbabilityTensor allocates a zeroed tensor of the given shape.
func NewProbabilityTensor(b, t, v int) *ProbabilityTensor {
	return &ProbabilityTensor{Data: make([]float32, b*t*v), B: b, T: t, V: v}
}

// Row returns the V-length probability row for batch index b at timestep t.
func (pt *ProbabilityTensor) Row(b, t int) []float32 {
	start := (b*pt.T + t) * pt.V
	return pt.Data[start : start+pt.V]
}

// SeqLens holds the valid (unpadded) timestep count for each batch row.
// A nil SeqLens means every row uses the full T.
type SeqLens []int32

// Get returns the valid length for batch row b, defaulting to maxT when
// lens is nil (no explicit lengths supplied).
func (lens SeqLens) Get(b, maxT int) int {
	if lens == nil {
		return maxT
	}
	return int(lens[b])
}

// OutputBuffers holds the caller-allocated result tensors the batch
// executor writes decoded hypotheses into (the online session returns
// []beam.Beam instead):
//
//   - Beams:     [B, K, TMax] int32 — emitted label indices per beam.
//   - Lengths:   [B, K]       int32 — true length of each beam.
//   - Scores:    [B, K]       float32 — final log-scores.
//   - Timesteps: [B, K, TMax] int32 — emission timestep of each label.
//
// K equals the configured beam_width; positions past Lengths[b,k] are
// unspecified.
type OutputBuffers struct {
	Beams      []int32
	Lengths    []int32
	Scores     []float32
	Timesteps  []int32
	B, K, TMax int
}

// NewOutputBuffers allocates zeroed output buffers sized for b batch rows,
// k beams per row, and tMax labels per beam.
func NewOutputBuffers(b, k, tMax int) *OutputBuffers {
	return &OutputBuffers{
		Beams:     make([]int32, b*k*tMax),
		Lengths:   make([]int32, b*k),
		Scores:    make([]float32, b*k),
		Timesteps: make([]int32, b*k*tMax),
		B:         b,
		K:         k,
		TMax:      tMax,
	}
}

// labelSlice returns the [TMax] label slice for batch row b, beam k.
func (o *OutputBuffers) labelSlice(b, k int) []int32 {
	start := (b*o.K + k) * o.TMax
	return o.Beams[start : start+o.TMax]
}

// timestepSlice returns the [TMax] timestep slice for batch row b, beam k.
func (o *OutputBuffers) timestepSlice(b, k int) []int32 {
	start := (b*o.K + k) * o.TMax
	return o.Timesteps[start : start+o.TMax]
}

// WriteBeam writes one decoded beam's labels, timesteps, length and score
// into row b, slot k. Labels beyond TMax are silently dropped — a caller
// whose beam_width/T_max is undersized for its model gets a truncated beam
// rather than an out-of-bounds write.
func (o *OutputBuffers) WriteBeam(b, k int, result beam.Beam) {
	n := len(result.Labels)
	if n > o.TMax {
		n = o.TMax
	}
	copy(o.labelSlice(b, k), result.Labels[:n])
	copy(o.timestepSlice(b, k), result.Timesteps[:n])
	o.Lengths[b*o.K+k] = int32(n)
	o.Scores[b*o.K+k] = float32(result.Score)
}
