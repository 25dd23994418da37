package chain

import "github.com/alaraproject/alara/datalib"

// NuclideNode is one position in the currently active root-to-leaf decay
// chain path. The builder reuses a single stack of these across the whole
// depth-first exploration ("rate-pointer arrays... start at
// MaxChainLength"): a node is only ever valid while it is part of the
// active path, which is why NuclideNode carries no child pointers.
type NuclideNode struct {
	// KZA is this node's nuclide identifier.
	KZA datalib.KZA
	// Rank is this node's depth in the active path; the root is rank 0.
	Rank int
	// PathNum is the index of the next not-yet-explored reaction path out
	// of Edges.
	PathNum int
	// State is this node's current position in the truncation/solve state
	// machine.
	State State
	// LoopRank is -1 unless this KZA (or an ancestor's) closes a decay
	// loop, in which case it is the rank of the loop's earliest member.
	LoopRank int
	// Data is this node's nuclear data record, or a zero-value stand-in
	// (no reaction paths) when the library has no entry for KZA.
	Data *datalib.NuclideData
	// Edges is what PathNum actually walks: Data.Paths in forward mode,
	// or the library's inverse (parent-producing) index in reverse mode.
	// Data itself always reflects this node's own record regardless of
	// direction, since its decay constant and cross sections describe the
	// node's own physics, not the direction the chain is being walked.
	Edges []datalib.ReactionPath
}

// HasLoop reports whether this node is part of a detected decay loop.
func (n *NuclideNode) HasLoop() bool { return n.LoopRank >= 0 }

// Terminal reports whether this node is a leaf of the explored chain: a
// stable dead end, a truncated branch, or an ignored branch.
func (n *NuclideNode) Terminal() bool {
	switch n.State {
	case Truncate, Ignore:
		return true
	default:
		return false
	}
}
