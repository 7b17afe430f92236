package batch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/beam"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
	"github.com/voicecore/ctcdecode/pkg/ctcio"
)

func testAlphabet(t *testing.T) *alphabet.Alphabet {
	t.Helper()
	a, err := alphabet.New([]string{"_", "a", "b"}, 0)
	if err != nil {
		t.Fatalf("alphabet.New: %v", err)
	}
	return a
}

// row builds a probability row favouring label idx.
func row(size, idx int, dominant float32) []float32 {
	r := make([]float32, size)
	rest := (1 - dominant) / float32(size-1)
	for i := range r {
		r[i] = rest
	}
	r[idx] = dominant
	return r
}

func TestNew_RejectsBadArguments(t *testing.T) {
	alph := testAlphabet(t)
	if _, err := New(nil, beam.Options{BeamWidth: 1}, nil, nil, nil, 2, nil); err == nil {
		t.Error("expected error for nil alphabet")
	}
	if _, err := New(alph, beam.Options{BeamWidth: 1}, nil, nil, nil, 0, nil); err == nil {
		t.Error("expected error for num_workers=0")
	}
}

func TestDecode_WritesEachRowIndependently(t *testing.T) {
	alph := testAlphabet(t)
	opts := beam.Options{BeamWidth: 4, TopPaths: 1}
	exec, err := New(alph, opts, nil, nil, nil, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const bCount, tCount, vCount = 2, 2, 3
	probs := ctcio.NewProbabilityTensor(bCount, tCount, vCount)
	copy(probs.Row(0, 0), row(vCount, 1, 0.97)) // row0: "a"
	copy(probs.Row(0, 1), row(vCount, 2, 0.97)) // row0: "b"
	copy(probs.Row(1, 0), row(vCount, 2, 0.97)) // row1: "b"
	copy(probs.Row(1, 1), row(vCount, 1, 0.97)) // row1: "a"

	out := ctcio.NewOutputBuffers(bCount, opts.BeamWidth, tCount)

	if err := exec.Decode(context.Background(), probs, nil, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantRow0 := []int32{1, 2}
	wantRow1 := []int32{2, 1}

	gotRow0 := out.Beams[0*out.K*out.TMax : 0*out.K*out.TMax+int(out.Lengths[0])]
	gotRow1 := out.Beams[1*out.K*out.TMax : 1*out.K*out.TMax+int(out.Lengths[out.K])]

	if !int32SliceEqual(gotRow0, wantRow0) {
		t.Errorf("row0 labels = %v, want %v", gotRow0, wantRow0)
	}
	if !int32SliceEqual(gotRow1, wantRow1) {
		t.Errorf("row1 labels = %v, want %v", gotRow1, wantRow1)
	}
}

func TestDecode_RejectsVocabMismatch(t *testing.T) {
	alph := testAlphabet(t)
	exec, err := New(alph, beam.Options{BeamWidth: 1, TopPaths: 1}, nil, nil, nil, 1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probs := ctcio.NewProbabilityTensor(1, 1, 5)
	out := ctcio.NewOutputBuffers(1, 1, 1)
	if err := exec.Decode(context.Background(), probs, nil, out); err == nil {
		t.Error("expected error for vocab size mismatch")
	}
}

func TestDecode_SeqLensTruncatesPerRow(t *testing.T) {
	alph := testAlphabet(t)
	opts := beam.Options{BeamWidth: 4, TopPaths: 1}
	exec, err := New(alph, opts, nil, nil, nil, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const vCount = 3
	probs := ctcio.NewProbabilityTensor(1, 2, vCount)
	copy(probs.Row(0, 0), row(vCount, 1, 0.97)) // a
	copy(probs.Row(0, 1), row(vCount, 2, 0.97)) // b -- excluded by seqLens

	out := ctcio.NewOutputBuffers(1, opts.BeamWidth, 2)
	if err := exec.Decode(context.Background(), probs, ctcio.SeqLens{1}, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got := out.Lengths[0]; got != 1 {
		t.Errorf("length = %d, want 1", got)
	}
	if got := out.Beams[0]; got != 1 {
		t.Errorf("label = %d, want 1", got)
	}
}

// TestDecode_DeterministicAcrossWorkerCounts decodes the same batch with 1
// and 4 workers: results must be identical regardless of scheduling.
func TestDecode_DeterministicAcrossWorkerCounts(t *testing.T) {
	alph := testAlphabet(t)
	opts := beam.Options{BeamWidth: 3, TopPaths: 3}

	const bCount, tCount, vCount = 4, 3, 3
	probs := ctcio.NewProbabilityTensor(bCount, tCount, vCount)
	for b := 0; b < bCount; b++ {
		for tt := 0; tt < tCount; tt++ {
			copy(probs.Row(b, tt), row(vCount, (b+tt)%vCount, 0.6))
		}
	}

	decode := func(workers int) *ctcio.OutputBuffers {
		t.Helper()
		exec, err := New(alph, opts, nil, nil, nil, workers, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out := ctcio.NewOutputBuffers(bCount, opts.BeamWidth, tCount)
		if err := exec.Decode(context.Background(), probs, nil, out); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return out
	}

	serial, parallel := decode(1), decode(4)
	if !int32SliceEqual(serial.Beams, parallel.Beams) {
		t.Error("beam labels differ between worker counts")
	}
	if !int32SliceEqual(serial.Lengths, parallel.Lengths) {
		t.Error("beam lengths differ between worker counts")
	}
	for i := range serial.Scores {
		if serial.Scores[i] != parallel.Scores[i] {
			t.Errorf("score %d differs: %v vs %v", i, serial.Scores[i], parallel.Scores[i])
		}
	}
}

// TestDecode_CorruptInputLeavesBuffersUntouched feeds a NaN probability: the
// batch must be rejected before any row is decoded, with the caller's
// buffers still zeroed.
func TestDecode_CorruptInputLeavesBuffersUntouched(t *testing.T) {
	alph := testAlphabet(t)
	exec, err := New(alph, beam.Options{BeamWidth: 2, TopPaths: 1}, nil, nil, nil, 2, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	probs := ctcio.NewProbabilityTensor(2, 2, 3)
	copy(probs.Row(0, 0), row(3, 1, 0.97))
	copy(probs.Row(0, 1), row(3, 2, 0.97))
	copy(probs.Row(1, 0), row(3, 1, 0.97))
	probs.Row(1, 1)[0] = float32(math.NaN())

	out := ctcio.NewOutputBuffers(2, 2, 2)
	if err := exec.Decode(context.Background(), probs, nil, out); !errors.Is(err, decodeerr.ErrCorruptInput) {
		t.Fatalf("got %v, want ErrCorruptInput", err)
	}
	for i, v := range out.Lengths {
		if v != 0 {
			t.Errorf("Lengths[%d] = %d, want 0 (untouched)", i, v)
		}
	}
	for i, v := range out.Scores {
		if v != 0 {
			t.Errorf("Scores[%d] = %v, want 0 (untouched)", i, v)
		}
	}
}

func int32SliceEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
