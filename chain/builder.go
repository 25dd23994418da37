/*
Package chain builds and walks the decay/transmutation chain below a root
nuclide, applying the truncation and ignore thresholds as it goes.

It holds no persistent tree: a single reused NuclideNode
array, Builder keeps one active root-to-leaf path and calls back into a
Solver at every terminal node, then backtracks and overwrites the path's
tail for the next sibling. This keeps the builder's own memory footprint
independent of how many branches a chain ultimately has.
*/
package chain

import (
	"fmt"

	"github.com/alaraproject/alara/datalib"
	"github.com/alaraproject/alara/internal/problem"
)

// Solver supplies the numeric evaluation a Builder cannot do itself: a
// cheap reference-flux solve used only to classify truncation, and the
// real solve-and-tally performed once a branch terminates.
type Solver interface {
	// Reference solves the active path against the reference flux and
	// schedule, returning the new leaf's relative concentration at
	// shutdown and at the worst cooling time.
	Reference(path []*NuclideNode) (rhoEOS, rhoCool float64, err error)
	// Tally performs the real solve over the active path and accumulates
	// its contribution into the result store. setRank is the rank at
	// which this path first diverges from the previously tallied one, so
	// Tally need only refill matrix rows from setRank down to the leaf.
	Tally(path []*NuclideNode, setRank int) error
}

// ErrNegativeConcentration is returned when a cooling-time concentration
// comes back negative, treated here as a fatal round-off
// signal rather than a recoverable per-branch condition.
type ErrNegativeConcentration struct {
	KZA datalib.KZA
}

func (e *ErrNegativeConcentration) Error() string {
	return fmt.Sprintf("negative concentration detected at kza %s: numerical error, aborting problem", e.KZA)
}

// Builder grows one decay chain at a time below a root nuclide.
type Builder struct {
	lib    *datalib.Library
	ctx    *problem.Context
	solver Solver

	path     []*NuclideNode
	capacity int

	maxRelativeConc float64
	prevPath        []datalib.KZA
}

// NewBuilder returns a Builder reading nuclear data from lib, classifying
// against ctx's thresholds, and delegating numeric work to solver.
func NewBuilder(lib *datalib.Library, ctx *problem.Context, solver Solver) *Builder {
	return &Builder{
		lib:      lib,
		ctx:      ctx,
		solver:   solver,
		capacity: ctx.InitialMaxChainLength,
	}
}

// Capacity returns the builder's current chain-length capacity, grown and
// shrunk geometrically as the active path deepens and backtracks.
func (b *Builder) Capacity() int { return b.capacity }

// Build grows and tallies the full chain below rootKZA. maxRelativeConc is
// the root's maximum relative concentration across the problem's mixtures,
// used to decide whether the looser impurity threshold applies.
func (b *Builder) Build(rootKZA datalib.KZA, maxRelativeConc float64) error {
	b.path = b.path[:0]
	b.prevPath = b.prevPath[:0]
	b.maxRelativeConc = maxRelativeConc

	root := &NuclideNode{KZA: rootKZA, Rank: 0, State: Continue, LoopRank: -1}
	return b.expand(root)
}

func (b *Builder) loadData(n *NuclideNode) error {
	data, ok := b.lib.Read(n.KZA)
	if !ok {
		// A data-library miss terminates the branch as if stable
		// failure semantics).
		data = &datalib.NuclideData{KZA: n.KZA}
	}
	n.Data = data

	if b.ctx.Direction == problem.ModeReverse {
		edges, err := b.lib.Parents(n.KZA)
		if err != nil {
			return err
		}
		n.Edges = edges
		return nil
	}
	n.Edges = data.Paths
	return nil
}

func (b *Builder) push(n *NuclideNode) {
	b.path = append(b.path, n)
	if len(b.path) > b.capacity {
		b.capacity *= 2
	}
}

func (b *Builder) pop() {
	b.path = b.path[:len(b.path)-1]
	if len(b.path) < b.capacity/4 && b.capacity > b.ctx.InitialMaxChainLength {
		b.capacity /= 2
		if b.capacity < b.ctx.InitialMaxChainLength {
			b.capacity = b.ctx.InitialMaxChainLength
		}
	}
}

// detectLoop sets n.LoopRank once n has been pushed onto the active path.
func (b *Builder) detectLoop(n *NuclideNode) {
	n.LoopRank = -1
	for _, ancestor := range b.path[:len(b.path)-1] {
		if ancestor.KZA == n.KZA {
			n.LoopRank = ancestor.Rank
			break
		}
	}
	if n.Rank == 0 {
		return
	}
	parent := b.path[len(b.path)-2]
	if parent.LoopRank >= 0 && (n.LoopRank < 0 || n.LoopRank < parent.LoopRank) {
		n.LoopRank = parent.LoopRank
	}
}

// commonPrefixLen returns how many leading ranks of the active path match
// the previously tallied path, so Tally can skip refilling unchanged rows.
func (b *Builder) commonPrefixLen() int {
	n := len(b.path)
	if len(b.prevPath) < n {
		n = len(b.prevPath)
	}
	i := 0
	for i < n && b.prevPath[i] == b.path[i].KZA {
		i++
	}
	return i
}

func (b *Builder) rememberTallied() {
	b.prevPath = b.prevPath[:0]
	for _, n := range b.path {
		b.prevPath = append(b.prevPath, n.KZA)
	}
}

// expand pushes n onto the active path, classifies it, and either recurses
// into its children, tallies it as a terminal leaf, or retracts it
// unsolved, per the build algorithm.
func (b *Builder) expand(n *NuclideNode) error {
	b.push(n)
	defer b.pop()

	if err := b.loadData(n); err != nil {
		return err
	}
	b.detectLoop(n)

	if len(n.Edges) == 0 && n.Rank > 0 {
		n.State = Truncate
		return b.finalize(n)
	}

	rhoEOS, rhoCool, err := b.solver.Reference(b.path)
	if err != nil {
		return err
	}
	if rhoEOS < 0 || rhoCool < 0 {
		return &ErrNegativeConcentration{KZA: n.KZA}
	}

	truncLimit := b.ctx.EffectiveTruncLimit(b.maxRelativeConc)
	ignoreLimit := b.ctx.EffectiveIgnoreLimit(b.maxRelativeConc)
	n.State = classify(truncationBits(rhoEOS, rhoCool, truncLimit, ignoreLimit))

	switch n.State {
	case Ignore:
		return nil
	case Truncate:
		return b.finalize(n)
	default:
		return b.addNext(n)
	}
}

// finalize performs the real solve-and-tally for a terminal node and marks
// it Solved.
func (b *Builder) finalize(n *NuclideNode) error {
	setRank := b.commonPrefixLen()
	if err := b.solver.Tally(b.path, setRank); err != nil {
		return err
	}
	b.rememberTallied()
	n.State = Solved
	return nil
}

// addNext grows one child per remaining reaction path, recursing depth
// first, then marks n Solved once every path is consumed. If n was its
// parent's last unexplored path, the parent is marked Solved in turn,
// cascading up to the root.
func (b *Builder) addNext(n *NuclideNode) error {
	paths := n.Edges
	for n.PathNum < len(paths) {
		path := paths[n.PathNum]
		n.PathNum++
		child := &NuclideNode{KZA: path.DaughterKZA, Rank: n.Rank + 1, State: Continue, LoopRank: -1}
		if err := b.expand(child); err != nil {
			return err
		}
	}
	n.State = Solved
	if n.Rank == 0 {
		n.State = FinishedRoot
	}
	return nil
}
