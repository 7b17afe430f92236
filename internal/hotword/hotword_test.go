package hotword

import "testing"

func TestEmptyTrieNeverBonuses(t *testing.T) {
	tr := Build(nil)
	s, bonus := tr.Advance(tr.Root(), 7)
	if s != tr.Root() || bonus != 0 {
		t.Errorf("Advance on empty trie = (%v,%v), want (root,0)", s, bonus)
	}
}

func TestSinglePatternCompletes(t *testing.T) {
	tr := Build([]Pattern{{Tokens: []int32{1, 2, 3}, Weight: 5.0}})
	s := tr.Root()
	var bonus float64
	for _, lab := range []int32{1, 2} {
		s, bonus = tr.Advance(s, lab)
		if bonus != 0 {
			t.Errorf("partial match should not award bonus, got %v", bonus)
		}
	}
	s, bonus = tr.Advance(s, 3)
	if bonus != 5.0 {
		t.Errorf("completing pattern should award 5.0, got %v", bonus)
	}
	_ = s
}

func TestMismatchResetsToRoot(t *testing.T) {
	tr := Build([]Pattern{{Tokens: []int32{1, 2}, Weight: 1.0}})
	s, _ := tr.Advance(tr.Root(), 1)
	s, bonus := tr.Advance(s, 9) // 9 continues nothing
	if s != tr.Root() || bonus != 0 {
		t.Errorf("mismatch should reset to root with zero bonus, got (%v,%v)", s, bonus)
	}
}

func TestRestartFromRootOnPartialFailure(t *testing.T) {
	// Pattern "AB"; stream "A A B": the second 'A' breaks the partial match
	// begun by the first and restarts it from the root, so the match still
	// completes on 'B'.
	tr := Build([]Pattern{{Tokens: []int32{1, 2}, Weight: 3.0}})
	s := tr.Root()
	s, _ = tr.Advance(s, 1) // 'A', starts match
	s, _ = tr.Advance(s, 1) // 'A', fails to continue, restarts from root
	s, bonus := tr.Advance(s, 2) // 'B', completes
	if bonus != 3.0 {
		t.Errorf("restarted match should complete with bonus 3.0, got %v (state %v)", bonus, s)
	}
}

func TestOverlappingPatternsAccumulate(t *testing.T) {
	tr := Build([]Pattern{
		{Tokens: []int32{1, 2}, Weight: 2.0},
		{Tokens: []int32{1, 2}, Weight: 3.0},
	})
	s, _ := tr.Advance(tr.Root(), 1)
	_, bonus := tr.Advance(s, 2)
	if bonus != 5.0 {
		t.Errorf("overlapping identical patterns should sum weights, got %v", bonus)
	}
}
