package solve

import (
	"github.com/alaraproject/alara/chain"
	"github.com/alaraproject/alara/datalib"
	"github.com/alaraproject/alara/internal/problem"
	"github.com/alaraproject/alara/matrixengine"
	"github.com/alaraproject/alara/ratecache"
	"github.com/alaraproject/alara/schedule"
)

// pathSolver implements chain.Solver for one root's Build call, closing
// over the task's fluxes/schedule and the problem's shared rate caches.
type pathSolver struct {
	problem  *Problem
	task     RootTask
	refCache *ratecache.Cache

	// refMatrices/tallyMatrices persist the last transfer matrix computed
	// for each decay duration and each (transmutation duration, flux
	// index) pair across this root's whole Build call, so a later call
	// only has to Fill rows [rNew, dim) instead of rebuilding every matrix
	// from rank 0 (see matrixCache). refEngine/tallyEngine carry the
	// matching schedule-composition caches.
	refMatrices   *matrixCache
	tallyMatrices *matrixCache
	refEngine     *schedule.Engine
	tallyEngine   *schedule.Engine

	// refPrevPath tracks the previously evaluated path's KZAs so Reference
	// can compute its own common-prefix rank, mirroring
	// chain.Builder.commonPrefixLen: the builder calls Reference once per
	// node as the active path grows (or backtracks), but only passes a
	// setRank to Tally.
	refPrevPath []datalib.KZA
}

// matrixCache persists the last matrix computed for a given decay
// duration, or (transmutation duration, flux index) pair, across repeated
// calls on the same root's growing or backtracking chain, so a later call
// to decayMatrix/transMatrix needs only Resize and refill rows
// [rNew, dim) rather than filling the whole matrix from row 0.
type matrixCache struct {
	decay map[float64]*matrixengine.Matrix
	trans map[tFluxKey]*matrixengine.Matrix
}

type tFluxKey struct {
	t         float64
	fluxIndex int
}

func newMatrixCache() *matrixCache {
	return &matrixCache{
		decay: make(map[float64]*matrixengine.Matrix),
		trans: make(map[tFluxKey]*matrixengine.Matrix),
	}
}

func (c *matrixCache) decayMatrix(dim, rNew int, rates, branch []float64, t float64, loopRanks []int) (*matrixengine.Matrix, error) {
	m := matrixengine.Resize(c.decay[t], dim, rNew)
	if err := matrixengine.Fill(m, rNew, rates, branch, t, loopRanks); err != nil {
		return nil, err
	}
	c.decay[t] = m
	return m, nil
}

func (c *matrixCache) transMatrix(dim, rNew int, rates, branch []float64, t float64, fluxIndex int, loopRanks []int) (*matrixengine.Matrix, error) {
	key := tFluxKey{t: t, fluxIndex: fluxIndex}
	m := matrixengine.Resize(c.trans[key], dim, rNew)
	if err := matrixengine.Fill(m, rNew, rates, branch, t, loopRanks); err != nil {
		return nil, err
	}
	c.trans[key] = m
	return m, nil
}

// edgeInfo returns the reaction path connecting path[i-1] and path[i], along
// with the node whose own Data record owns that channel (the physical
// parent of the pair). The builder increments a node's PathNum immediately
// before expanding the child found via Edges[PathNum-1] (chain.Builder.addNext),
// so path[i-1].PathNum-1 always indexes the channel taken, in both
// directions. In forward mode Edges is Data.Paths, so the owner is
// path[i-1] itself; in reverse mode Edges comes from the library's inverse
// index and names a channel that physically belongs to path[i] (the real
// parent sits one rank further from the root than the real daughter it
// produced), so the owner flips to path[i].
func edgeInfo(path []*chain.NuclideNode, i int, dir problem.Direction) (used datalib.ReactionPath, owner *chain.NuclideNode, ok bool) {
	if i <= 0 {
		return datalib.ReactionPath{}, nil, false
	}
	treeParent := path[i-1]
	idx := treeParent.PathNum - 1
	if idx < 0 || idx >= len(treeParent.Edges) {
		return datalib.ReactionPath{}, nil, false
	}
	used = treeParent.Edges[idx]
	if dir == problem.ModeReverse {
		return used, path[i], true
	}
	return used, treeParent, true
}

// channelIndexOf returns p's position within data's transmutation paths
// (the rate-cache channel it folds into), or -1 if p is not among them.
func channelIndexOf(data *datalib.NuclideData, p datalib.ReactionPath) int {
	for i, tp := range data.TransmutationPaths() {
		if tp.DaughterKZA == p.DaughterKZA && tp.Emitted == p.Emitted {
			return i
		}
	}
	return -1
}

// foldTotalDestruction returns node's flux-folded total destruction rate,
// the diagonal contribution T(t,f) adds on top of decay. Channel 0 of the
// node's cache entry is reserved for this aggregate fold.
func foldTotalDestruction(node *chain.NuclideNode, flux Flux, cache *ratecache.Cache) float64 {
	base := node.KZA.BaseZA()
	// An allocated but never-set channel reads back as a zero hit, so zero
	// is folded again rather than trusted.
	if v, ok := cache.Read(base, 0); ok && v != 0 {
		return v
	}
	channelsTotal := 1 + len(node.Data.TransmutationPaths())
	xs := node.Data.TotalDestructionXS(len(flux.Groups))
	var total float64
	for g, x := range xs {
		total += x * flux.Groups[g]
	}
	cache.Set(base, channelsTotal, 0, total)
	return total
}

// foldChannelRate returns the flux-folded production rate of one specific
// transmutation channel owned by owner, used as T(t,f)'s branching rate
// across the edge that channel produced.
func foldChannelRate(owner *chain.NuclideNode, used datalib.ReactionPath, flux Flux, cache *ratecache.Cache) float64 {
	idx := channelIndexOf(owner.Data, used)
	if idx < 0 {
		return 0
	}
	base := owner.KZA.BaseZA()
	channel := idx + 1
	if v, ok := cache.Read(base, channel); ok && v != 0 {
		return v
	}
	channelsTotal := 1 + len(owner.Data.TransmutationPaths())
	var total float64
	for g, x := range used.XS {
		if g < len(flux.Groups) {
			total += x * flux.Groups[g]
		}
	}
	cache.Set(base, channelsTotal, channel, total)
	return total
}

// decayRatesAndBranch returns the per-rank decay constant, the branching
// rate feeding each rank from its predecessor (zero across a transmutation
// edge), and each rank's loop rank: the inputs to MatrixEngine.fillReference
// Decay / D(t), which never depends on flux.
func decayRatesAndBranch(path []*chain.NuclideNode, dir problem.Direction) (rates, branch []float64, loopRanks []int) {
	n := len(path)
	rates = make([]float64, n)
	branch = make([]float64, n)
	loopRanks = make([]int, n)
	for i, node := range path {
		rates[i] = node.Data.Lambda()
		loopRanks[i] = node.LoopRank
		if i == 0 {
			branch[i] = 1
			continue
		}
		if used, _, ok := edgeInfo(path, i, dir); ok && used.IsDecay() {
			branch[i] = used.DecayBranch
		}
	}
	return rates, branch, loopRanks
}

// transmutationRatesAndBranch is decayRatesAndBranch's flux-dependent
// counterpart (fillReferenceTransmutation / T(t,f)): each rank's total
// removal rate also includes its flux-folded destruction rate, and a
// transmutation edge's branch comes from the flux-folded channel rate
// rather than a decay branching constant.
func transmutationRatesAndBranch(path []*chain.NuclideNode, dir problem.Direction, flux Flux, cache *ratecache.Cache) (rates, branch []float64, loopRanks []int) {
	n := len(path)
	rates = make([]float64, n)
	branch = make([]float64, n)
	loopRanks = make([]int, n)
	for i, node := range path {
		loopRanks[i] = node.LoopRank
		rates[i] = node.Data.Lambda() + foldTotalDestruction(node, flux, cache)
		if i == 0 {
			branch[i] = 1
			continue
		}
		used, owner, ok := edgeInfo(path, i, dir)
		if !ok {
			continue
		}
		if used.IsDecay() {
			branch[i] = used.DecayBranch
		} else {
			branch[i] = foldChannelRate(owner, used, flux, cache)
		}
	}
	return rates, branch, loopRanks
}

// refCommonPrefixLen returns how many leading ranks of path match the path
// Reference last saw, the same common-prefix logic chain.Builder uses for
// Tally's setRank. The builder calls Reference once per node as the active
// path grows or backtracks but (unlike Tally) passes no setRank, so the
// solver tracks its own previously seen path here.
func (s *pathSolver) refCommonPrefixLen(path []*chain.NuclideNode) int {
	n := len(path)
	if len(s.refPrevPath) < n {
		n = len(s.refPrevPath)
	}
	i := 0
	for i < n && s.refPrevPath[i] == path[i].KZA {
		i++
	}
	return i
}

func (s *pathSolver) rememberRefPath(path []*chain.NuclideNode) {
	s.refPrevPath = s.refPrevPath[:0]
	for _, n := range path {
		s.refPrevPath = append(s.refPrevPath, n.KZA)
	}
}

// Reference solves the active path against the task's single reference
// flux over the full real schedule, returning the leaf's relative
// concentration at shutdown and the worst value across all cooling times.
// Unlike Tally this never touches the result accumulator; it only feeds
// chain.Builder's truncation classification.
func (s *pathSolver) Reference(path []*chain.NuclideNode) (rhoEOS, rhoCool float64, err error) {
	if s.refMatrices == nil {
		s.refMatrices = newMatrixCache()
		s.refEngine = &schedule.Engine{}
	}
	dim := len(path)
	rNew := s.refCommonPrefixLen(path)
	dir := s.problem.ctx.Direction

	s.refEngine.Dim = dim
	s.refEngine.RNew = rNew
	s.refEngine.D = func(t float64) (*matrixengine.Matrix, error) {
		rates, branch, lr := decayRatesAndBranch(path, dir)
		return s.refMatrices.decayMatrix(dim, rNew, rates, branch, t, lr)
	}
	s.refEngine.T = func(t float64, fluxIndex int) (*matrixengine.Matrix, error) {
		rates, branch, lr := transmutationRatesAndBranch(path, dir, s.task.Reference, s.refCache)
		return s.refMatrices.transMatrix(dim, rNew, rates, branch, t, fluxIndex, lr)
	}

	m, err := s.refEngine.Evaluate(s.task.Schedule)
	if err != nil {
		return 0, 0, wrapNumerical("reference schedule evaluation", err)
	}
	n0 := make([]float64, len(path))
	n0[0] = 1
	results, err := s.refEngine.ApplyAtCoolingTimes(m, n0, s.task.CoolingTimes)
	if err != nil {
		return 0, 0, wrapNumerical("reference cooling-time evaluation", err)
	}
	leaf := len(path) - 1
	rhoEOS = results[0][leaf]
	rhoCool = rhoEOS
	for _, r := range results {
		if r[leaf] > rhoCool {
			rhoCool = r[leaf]
		}
	}
	s.rememberRefPath(path)
	return rhoEOS, rhoCool, nil
}

// Tally performs the real, multi-group solve over the active path and
// accumulates its terminal node's contribution into the problem's result
// store. setRank, the rank at which this path first diverges from the
// previously tallied one, is threaded straight into the matrix and
// schedule-composition caches: every cached node Resizes from its last
// value and refills only rows [setRank, dim), instead of rebuilding the
// whole matrix tree from rank 0 on every leaf (see DESIGN.md).
func (s *pathSolver) Tally(path []*chain.NuclideNode, setRank int) error {
	if s.tallyMatrices == nil {
		s.tallyMatrices = newMatrixCache()
		s.tallyEngine = &schedule.Engine{}
	}
	dim := len(path)
	dir := s.problem.ctx.Direction

	s.tallyEngine.Dim = dim
	s.tallyEngine.RNew = setRank
	s.tallyEngine.D = func(t float64) (*matrixengine.Matrix, error) {
		rates, branch, lr := decayRatesAndBranch(path, dir)
		return s.tallyMatrices.decayMatrix(dim, setRank, rates, branch, t, lr)
	}
	s.tallyEngine.T = func(t float64, fluxIndex int) (*matrixengine.Matrix, error) {
		rates, branch, lr := transmutationRatesAndBranch(path, dir, s.task.Fluxes[fluxIndex], s.problem.cacheFor(fluxIndex))
		return s.tallyMatrices.transMatrix(dim, setRank, rates, branch, t, fluxIndex, lr)
	}

	m, err := s.tallyEngine.Evaluate(s.task.Schedule)
	if err != nil {
		return wrapNumerical("schedule evaluation", err)
	}
	n0 := make([]float64, len(path))
	n0[0] = 1
	results, err := s.tallyEngine.ApplyAtCoolingTimes(m, n0, s.task.CoolingTimes)
	if err != nil {
		return wrapNumerical("cooling-time evaluation", err)
	}

	leaf := len(path) - 1
	vec := make([]float64, len(results))
	for c, r := range results {
		vec[c] = r[leaf]
	}
	s.problem.Accumulator().Tally(path[0].KZA, path[leaf].KZA, vec, s.task.Weight)
	return nil
}
