// Package trie implements the path trie that backs prefix beam search: an
// arena of nodes where each node is one collapsed label-sequence hypothesis
// (a "beam"), reachable from the root by a unique chain of labels.
//
// The design favours a single-owner arena over the classic pointer trie
// shown in general-purpose trie libraries: nodes are addressed by a stable
// integer id into a growable slice, parent links are indices rather than
// pointers, and the whole arena is thrown away in one shot at the end of an
// utterance. A decoder task never shares its arena with another goroutine,
// so no node carries a mutex — unlike a general-purpose concurrent trie, a
// beam-search arena has exactly one writer for its entire lifetime.
package trie

import (
	"sort"

	"github.com/voicecore/ctcdecode/internal/logprob"
)

// NodeID addresses a node within an Arena. The zero value (0) is always the
// root. NodeID values are stable for the lifetime of the arena — they never
// get reassigned by pruning, only invalidated in bulk by Clear.
type NodeID int32

// noParent is the sentinel parent id carried by the root node.
const noParent NodeID = -1

// Node is a single path-trie beam: a collapsed label-sequence prefix plus
// the blank/non-blank log-probability split CTC prefix beam search needs to
// avoid double counting a repeated label.
type Node struct {
	Parent NodeID
	Label  int32 // label linking this node to Parent; -1 on the root

	// PB / PNB are the log-probabilities that this prefix ends in a blank /
	// non-blank at the *current* timestep. PBPrev / PNBPrev hold the same
	// pair from the timestep just rolled over. Both start at logprob.NegInf
	// except the root's PBPrev, which starts at logprob.LogOne.
	PB, PNB         float64
	PBPrev, PNBPrev float64

	// ApproxCTC is a running score used only to break pruning ties
	// deterministically; it tracks the best total log-probability (Score,
	// scorer contributions included) this node held at any RollTimestep.
	ApproxCTC float64

	// Timestep is the timestep at which this prefix's most recent non-blank
	// label was first emitted — i.e. the alignment position reported in the
	// output `timesteps` buffer.
	Timestep int32

	children map[int32]NodeID

	// live marks membership in the reachable beam set. A node pruned out of
	// the top-K is retired rather than freed; if the search later re-reaches
	// the same prefix, GetOrCreateChild revives it as if freshly created —
	// fresh probabilities, a fresh Timestep stamp, a fresh tie-break seq.
	live bool

	// seq is the insertion sequence number, used only as the last resort in
	// the pruning tie-break so that identical inputs always produce
	// identical orderings regardless of map iteration order.
	seq int64
}

// Score returns the node's total beam log-probability: logaddexp(PB, PNB).
func (n *Node) Score() float64 {
	return logprob.Add(n.PB, n.PNB)
}

// LastLabel returns the label most recently appended to this prefix, and
// false if this is the root (the empty prefix).
func (n *Node) LastLabel() (int32, bool) {
	if n.Parent == noParent {
		return 0, false
	}
	return n.Label, true
}

// Arena owns every node created for a single utterance. It is never shared
// across goroutines: each decoder task gets its own arena.
type Arena struct {
	nodes   []Node
	seqNext int64
}

// NewArena creates an arena containing only the root node (NodeID 0), with
// PBPrev = log(1) and PNBPrev = log(0): before the first timestep the empty
// prefix has certainly "ended in blank."
func NewArena() *Arena {
	a := &Arena{nodes: make([]Node, 0, 64)}
	a.nodes = append(a.nodes, Node{
		Parent:    noParent,
		Label:     -1,
		PB:        logprob.NegInf,
		PNB:       logprob.NegInf,
		PBPrev:    logprob.LogOne,
		PNBPrev:   logprob.NegInf,
		ApproxCTC: logprob.LogOne,
		Timestep:  -1,
		children:  make(map[int32]NodeID),
		live:      true,
	})
	return a
}

// Root returns the id of the always-present root node (the empty prefix).
func (a *Arena) Root() NodeID { return 0 }

// Node returns a pointer into the arena's backing storage for id. The
// pointer is invalidated by any call to Clear, and by any GetOrCreateChild
// call that appends a new node (the append may reallocate the backing
// slice); re-fetch it after such calls.
func (a *Arena) Node(id NodeID) *Node {
	return &a.nodes[id]
}

// GetOrCreateChild returns the child of parent reached by label, creating
// it if this (parent, label) pair has never been visited, and reviving it if
// it exists but was retired by an earlier pruning pass. Either way created
// is true and the node starts with PB = PNB = logprob.NegInf, inheriting
// nothing automatically — callers install LM/lexicon/hot-word state and the
// Timestep stamp via the returned node. A revived node is indistinguishable
// from a brand-new one: the prefix fell out of the beam and is only now
// becoming reachable again, so its alignment stamp and tie-break seq belong
// to this timestep, not the one it was first tried at.
//
// Sibling uniqueness (no two children of a node share a label) falls out of
// using label as the map key directly.
func (a *Arena) GetOrCreateChild(parent NodeID, label int32) (id NodeID, created bool) {
	p := &a.nodes[parent]
	if existing, ok := p.children[label]; ok {
		n := &a.nodes[existing]
		if n.live {
			return existing, false
		}
		a.seqNext++
		n.PB, n.PNB = logprob.NegInf, logprob.NegInf
		n.PBPrev, n.PNBPrev = logprob.NegInf, logprob.NegInf
		n.ApproxCTC = logprob.NegInf
		n.Timestep = -1
		n.live = true
		n.seq = a.seqNext
		return existing, true
	}
	id = NodeID(len(a.nodes))
	a.seqNext++
	a.nodes = append(a.nodes, Node{
		Parent:    parent,
		Label:     label,
		PB:        logprob.NegInf,
		PNB:       logprob.NegInf,
		PBPrev:    logprob.NegInf,
		PNBPrev:   logprob.NegInf,
		ApproxCTC: logprob.NegInf,
		Timestep:  -1,
		children:  make(map[int32]NodeID),
		live:      true,
		seq:       a.seqNext,
	})
	// Re-fetch p: append may have reallocated the backing array.
	a.nodes[parent].children[label] = id
	return id, true
}

// Retire marks id as pruned out of the active beam set and zeroes its
// probability mass so a later revival starts clean. The node's memory and
// its slot in the parent's child map are kept — GetOrCreateChild reuses
// them if the prefix is reached again.
func (a *Arena) Retire(id NodeID) {
	n := &a.nodes[id]
	n.live = false
	n.PB, n.PNB = logprob.NegInf, logprob.NegInf
	n.PBPrev, n.PNBPrev = logprob.NegInf, logprob.NegInf
}

// RollTimestep advances every node named in active from "current timestep"
// to "previous timestep" bookkeeping: PBPrev/PNBPrev <- PB/PNB, then PB/PNB
// reset to -Inf ready for the next timestep's contributions.
func (a *Arena) RollTimestep(active []NodeID) {
	for _, id := range active {
		n := &a.nodes[id]
		if s := n.Score(); s > n.ApproxCTC {
			n.ApproxCTC = s
		}
		n.PBPrev, n.PNBPrev = n.PB, n.PNB
		n.PB, n.PNB = logprob.NegInf, logprob.NegInf
	}
}

// Clear discards every node except a fresh root, releasing the arena's
// memory for reuse by the next utterance.
func (a *Arena) Clear() {
	a.nodes = a.nodes[:0]
	a.seqNext = 0
	a.nodes = append(a.nodes, Node{
		Parent:    noParent,
		Label:     -1,
		PB:        logprob.NegInf,
		PNB:       logprob.NegInf,
		PBPrev:    logprob.LogOne,
		PNBPrev:   logprob.NegInf,
		ApproxCTC: logprob.LogOne,
		Timestep:  -1,
		children:  make(map[int32]NodeID),
		live:      true,
	})
}

// Len returns the number of nodes allocated in the arena, including the root
// and any retired nodes.
func (a *Arena) Len() int { return len(a.nodes) }

// Prefix walks id back to the root and returns the label sequence in
// emission order. It returns labels only; see Beam.Timesteps in the beam
// package for the walk that also collects per-label timesteps.
func (a *Arena) Prefix(id NodeID) []int32 {
	var rev []int32
	for id != 0 {
		n := &a.nodes[id]
		rev = append(rev, n.Label)
		id = n.Parent
	}
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}

// TopK returns the ids of the active set ranked by descending Score, with
// deterministic ties broken first by descending ApproxCTC and then by
// ascending insertion sequence (earlier-created nodes win). If k is
// non-positive or larger than len(active), all of active is returned,
// sorted.
func TopK(a *Arena, active []NodeID, k int) []NodeID {
	ranked := append([]NodeID(nil), active...)
	sort.Slice(ranked, func(i, j int) bool {
		ni, nj := &a.nodes[ranked[i]], &a.nodes[ranked[j]]
		si, sj := ni.Score(), nj.Score()
		if si != sj {
			return si > sj
		}
		if ni.ApproxCTC != nj.ApproxCTC {
			return ni.ApproxCTC > nj.ApproxCTC
		}
		return ni.seq < nj.seq
	})
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}
