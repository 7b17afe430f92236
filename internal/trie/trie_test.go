package trie

import (
	"testing"

	"github.com/voicecore/ctcdecode/internal/logprob"
)

func TestNewArenaRootInvariants(t *testing.T) {
	a := NewArena()
	root := a.Node(a.Root())
	if root.PBPrev != logprob.LogOne {
		t.Errorf("root.PBPrev = %v, want log(1) = 0", root.PBPrev)
	}
	if root.PNBPrev != logprob.NegInf {
		t.Errorf("root.PNBPrev = %v, want -Inf", root.PNBPrev)
	}
	if _, ok := root.LastLabel(); ok {
		t.Error("root should have no last label")
	}
}

func TestGetOrCreateChildIsIdempotent(t *testing.T) {
	a := NewArena()
	id1, created1 := a.GetOrCreateChild(a.Root(), 3)
	id2, created2 := a.GetOrCreateChild(a.Root(), 3)
	if !created1 {
		t.Error("first call should create the node")
	}
	if created2 {
		t.Error("second call should reuse the existing node")
	}
	if id1 != id2 {
		t.Errorf("ids differ: %v vs %v", id1, id2)
	}
}

// TestRetireThenReviveActsLikeCreation prunes a node out of the beam and
// reaches its prefix again: the revived node must come back with clean
// probabilities and report created=true so the caller re-stamps its
// alignment timestep and re-derives its scorer state.
func TestRetireThenReviveActsLikeCreation(t *testing.T) {
	a := NewArena()
	id, _ := a.GetOrCreateChild(a.Root(), 2)
	n := a.Node(id)
	n.PNB = -1.5
	n.Timestep = 0
	a.RollTimestep([]NodeID{id})

	a.Retire(id)

	revived, created := a.GetOrCreateChild(a.Root(), 2)
	if revived != id {
		t.Fatalf("revived id = %v, want original %v", revived, id)
	}
	if !created {
		t.Error("reviving a retired node should report created=true")
	}
	n = a.Node(revived)
	if n.PNB != logprob.NegInf || n.PNBPrev != logprob.NegInf {
		t.Errorf("revived probabilities = (%v,%v), want clean -Inf", n.PNB, n.PNBPrev)
	}
	if n.Timestep != -1 {
		t.Errorf("revived Timestep = %d, want -1 (unstamped)", n.Timestep)
	}
}

func TestSiblingsDistinctByLabel(t *testing.T) {
	a := NewArena()
	idA, _ := a.GetOrCreateChild(a.Root(), 0)
	idB, _ := a.GetOrCreateChild(a.Root(), 1)
	if idA == idB {
		t.Error("children keyed by different labels must be distinct nodes")
	}
}

func TestRollTimestepShiftsState(t *testing.T) {
	a := NewArena()
	id, _ := a.GetOrCreateChild(a.Root(), 0)
	n := a.Node(id)
	n.PB, n.PNB = -1.0, -2.0

	a.RollTimestep([]NodeID{id})

	n = a.Node(id)
	if n.PBPrev != -1.0 || n.PNBPrev != -2.0 {
		t.Errorf("prev state = (%v,%v), want (-1,-2)", n.PBPrev, n.PNBPrev)
	}
	if n.PB != logprob.NegInf || n.PNB != logprob.NegInf {
		t.Errorf("current state after roll = (%v,%v), want (-Inf,-Inf)", n.PB, n.PNB)
	}
}

func TestPrefixReconstructsLabelOrder(t *testing.T) {
	a := NewArena()
	id1, _ := a.GetOrCreateChild(a.Root(), 5)
	id2, _ := a.GetOrCreateChild(id1, 7)
	id3, _ := a.GetOrCreateChild(id2, 5)

	got := a.Prefix(id3)
	want := []int32{5, 7, 5}
	if len(got) != len(want) {
		t.Fatalf("Prefix length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Prefix = %v, want %v", got, want)
		}
	}
}

func TestClearResetsToFreshRoot(t *testing.T) {
	a := NewArena()
	a.GetOrCreateChild(a.Root(), 0)
	a.GetOrCreateChild(a.Root(), 1)
	if a.Len() != 3 {
		t.Fatalf("Len = %d, want 3", a.Len())
	}
	a.Clear()
	if a.Len() != 1 {
		t.Fatalf("Len after Clear = %d, want 1", a.Len())
	}
	if _, ok := a.Node(a.Root()).LastLabel(); ok {
		t.Error("fresh root should have no last label")
	}
}

func TestTopKDeterministicTieBreak(t *testing.T) {
	a := NewArena()
	id1, _ := a.GetOrCreateChild(a.Root(), 0)
	id2, _ := a.GetOrCreateChild(a.Root(), 1)
	id3, _ := a.GetOrCreateChild(a.Root(), 2)

	// All three nodes get an identical score; only insertion order should
	// distinguish them.
	for _, id := range []NodeID{id1, id2, id3} {
		n := a.Node(id)
		n.PNB = -1.0
	}

	ranked := TopK(a, []NodeID{id3, id1, id2}, 0)
	want := []NodeID{id1, id2, id3}
	for i := range want {
		if ranked[i] != want[i] {
			t.Fatalf("TopK order = %v, want %v", ranked, want)
		}
	}
}

func TestTopKRanksByScoreDescending(t *testing.T) {
	a := NewArena()
	lo, _ := a.GetOrCreateChild(a.Root(), 0)
	hi, _ := a.GetOrCreateChild(a.Root(), 1)
	a.Node(lo).PNB = -5.0
	a.Node(hi).PNB = -0.5

	ranked := TopK(a, []NodeID{lo, hi}, 1)
	if len(ranked) != 1 || ranked[0] != hi {
		t.Fatalf("TopK(1) = %v, want [%v]", ranked, hi)
	}
}
