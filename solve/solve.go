/*
Package solve is the top-level orchestrator that wires chain.Builder's
Solver seam to real nuclear data, rate folding, transfer-matrix evaluation,
schedule composition, and result accumulation. It is the piece the other
six packages are each tested in isolation against: nothing in datalib,
ratecache, chain, matrixengine, schedule, or result imports it.
*/
package solve

import (
	"github.com/alaraproject/alara/chain"
	"github.com/alaraproject/alara/datalib"
	"github.com/alaraproject/alara/internal/problem"
	"github.com/alaraproject/alara/internal/report"
	"github.com/alaraproject/alara/ratecache"
	"github.com/alaraproject/alara/result"
	"github.com/alaraproject/alara/schedule"
)

// Flux is one multi-group flux spectrum, indexed by a schedule.Item's
// FluxIndex.
type Flux struct {
	Groups []float64
}

// RootTask is everything needed to build and solve one root nuclide's chain
// in one spatial interval: its reference flux for truncation, the real
// per-pulse flux spectra its schedule draws on, the schedule itself, and
// the cooling times and output weight the tally is recorded under.
type RootTask struct {
	KZA datalib.KZA

	// Reference is the single representative spectrum (the reference flux)
	// used only to classify truncation, never to compute a real tally.
	Reference Flux

	// Fluxes is indexed by schedule.Item.FluxIndex.
	Fluxes []Flux

	Schedule *schedule.Schedule

	// CoolingTimes must have length nCoolingTimes+1 with index 0 == 0 (the
	// shutdown point), matching result.Accumulator's nResults layout.
	CoolingTimes []float64

	// MaxRelativeConc is this root's maximum relative concentration across
	// the problem's mixtures, feeding the impurity-threshold override.
	MaxRelativeConc float64

	// Weight scales this root's tally contribution (density, volume, or a
	// volume-integrated factor, per the caller's aggregation choice).
	Weight float64
}

// Problem owns the shared, cross-root state: the opened nuclide library,
// solve-wide configuration, one rate cache per real flux spectrum (the
// "one instance per flux spectrum"), and the result accumulator every root
// tallies into.
type Problem struct {
	lib         *datalib.Library
	ctx         *problem.Context
	accumulator *result.Accumulator
	caches      map[int]*ratecache.Cache
}

// NewProblem returns an empty Problem ready to solve roots against lib,
// accumulating nCoolingTimes+1 results per output nuclide.
func NewProblem(lib *datalib.Library, ctx *problem.Context, nCoolingTimes int) *Problem {
	return &Problem{
		lib:         lib,
		ctx:         ctx,
		accumulator: result.NewAccumulator(nCoolingTimes),
		caches:      make(map[int]*ratecache.Cache),
	}
}

// Accumulator returns the shared result store every Solve call tallies
// into.
func (p *Problem) Accumulator() *result.Accumulator { return p.accumulator }

// cacheFor returns (creating on first use) the RateCache dedicated to a
// real flux spectrum index.
func (p *Problem) cacheFor(fluxIndex int) *ratecache.Cache {
	c, ok := p.caches[fluxIndex]
	if !ok {
		c = ratecache.New(p.ctx.RateCacheCapacity)
		p.caches[fluxIndex] = c
	}
	return c
}

// Solve builds and tallies task's full chain: a fresh chain.Builder backed
// by a pathSolver scoped to this one root (its own reference-flux cache,
// since the reference spectrum is root-specific, while the per-flux real
// rate caches are shared problem-wide across roots).
func (p *Problem) Solve(task RootTask) error {
	return p.solve(task, nil)
}

// SolveTraced behaves like Solve but additionally records every tallied
// path into trace, for the CLI's `-t PATH` chain-tree dump.
func (p *Problem) SolveTraced(task RootTask, trace *report.Tracer) error {
	return p.solve(task, trace)
}

func (p *Problem) solve(task RootTask, trace *report.Tracer) error {
	var solver chain.Solver = &pathSolver{
		problem:  p,
		task:     task,
		refCache: ratecache.New(p.ctx.RateCacheCapacity),
	}
	if trace != nil {
		solver = &report.TracingSolver{Inner: solver, Trace: trace}
	}
	b := chain.NewBuilder(p.lib, p.ctx, solver)
	return b.Build(task.KZA, task.MaxRelativeConc)
}
