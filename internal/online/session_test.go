package online

import (
	"errors"
	"testing"

	"github.com/voicecore/ctcdecode/internal/alphabet"
	"github.com/voicecore/ctcdecode/internal/beam"
	"github.com/voicecore/ctcdecode/internal/decodeerr"
)

func testAlphabet(t *testing.T) *alphabet.Alphabet {
	t.Helper()
	a, err := alphabet.New([]string{"_", "a", "b"}, 0)
	if err != nil {
		t.Fatalf("alphabet.New: %v", err)
	}
	return a
}

func row(size, idx int, dominant float32) []float32 {
	r := make([]float32, size)
	rest := (1 - dominant) / float32(size-1)
	for i := range r {
		r[i] = rest
	}
	r[idx] = dominant
	return r
}

func TestPush_InterimThenFinal(t *testing.T) {
	alph := testAlphabet(t)
	s, err := New(alph, beam.Options{BeamWidth: 4, TopPaths: 1}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	interim, err := s.Push([][]float32{row(3, 1, 0.97)}, false)
	if err != nil {
		t.Fatalf("Push interim: %v", err)
	}
	if len(interim) != 1 || len(interim[0].Labels) != 1 || interim[0].Labels[0] != 1 {
		t.Fatalf("interim beams = %+v, want single beam [1]", interim)
	}

	final, err := s.Push([][]float32{row(3, 2, 0.97)}, true)
	if err != nil {
		t.Fatalf("Push final: %v", err)
	}
	if len(final) != 1 || len(final[0].Labels) != 2 {
		t.Fatalf("final beams = %+v, want single 2-label beam", final)
	}
	want := []int32{1, 2}
	for i, l := range want {
		if final[0].Labels[i] != l {
			t.Errorf("final labels = %v, want %v", final[0].Labels, want)
		}
	}
}

func TestPush_AfterFinalReturnsError(t *testing.T) {
	alph := testAlphabet(t)
	s, err := New(alph, beam.Options{BeamWidth: 4, TopPaths: 1}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	if _, err := s.Push([][]float32{row(3, 1, 0.97)}, true); err != nil {
		t.Fatalf("Push final: %v", err)
	}
	if _, err := s.Push([][]float32{row(3, 1, 0.97)}, false); !errors.Is(err, decodeerr.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestPush_AfterReleaseReturnsError(t *testing.T) {
	alph := testAlphabet(t)
	s, err := New(alph, beam.Options{BeamWidth: 4, TopPaths: 1}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Release()
	if _, err := s.Push([][]float32{row(3, 1, 0.97)}, false); !errors.Is(err, decodeerr.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestRelease_IsIdempotent(t *testing.T) {
	alph := testAlphabet(t)
	s, err := New(alph, beam.Options{BeamWidth: 4, TopPaths: 1}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Release()
	s.Release() // must not panic
}

// TestOnlineOfflineEquivalence checks that pushing an utterance through the
// online session in one chunk produces the same top-K labels, scores, and
// timesteps as a single-shot beam.DecodeUtterance call.
func TestOnlineOfflineEquivalence(t *testing.T) {
	alph := testAlphabet(t)
	opts := beam.Options{BeamWidth: 4, TopPaths: 1}
	probs := [][]float32{
		row(3, 1, 0.97),
		row(3, 2, 0.97),
	}

	want, err := beam.DecodeUtterance(alph, opts, nil, nil, nil, nil, probs, len(probs))
	if err != nil {
		t.Fatalf("DecodeUtterance: %v", err)
	}

	s, err := New(alph, opts, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Release()

	got, err := s.Push(probs, true)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d beams, want %d", len(got), len(want))
	}
	for i := range want {
		if !int32SliceEqual(got[i].Labels, want[i].Labels) {
			t.Errorf("beam %d labels = %v, want %v", i, got[i].Labels, want[i].Labels)
		}
		if !int32SliceEqual(got[i].Timesteps, want[i].Timesteps) {
			t.Errorf("beam %d timesteps = %v, want %v", i, got[i].Timesteps, want[i].Timesteps)
		}
		if got[i].Score != want[i].Score {
			t.Errorf("beam %d score = %v, want %v", i, got[i].Score, want[i].Score)
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
