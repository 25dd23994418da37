/*
Package problem carries the solve-wide configuration otherwise tempting to
stash as package-level globals: a truncation limit, a flux-classification
mode, the group count. The data library is not part of it; callers pass
the *datalib.Library alongside. Everything here is built once at
preprocess time and threaded explicitly into the chain builder, the matrix
engine, and the schedule engine; no package holds mutable package-level state.
*/
package problem

import "github.com/alaraproject/alara/internal/alog"

// FluxMode selects how a root's reference flux is derived from the interval
// fluxes that contain it.
type FluxMode int

const (
	// FluxMax takes the group-wise maximum across containing intervals.
	FluxMax FluxMode = iota
	// FluxVolumeAverage takes the volume-weighted average.
	FluxVolumeAverage
)

// Direction selects which way the chain builder walks the reaction network
// below (or above) a root nuclide.
type Direction int

const (
	// ModeForward walks daughters: a node's children are the nuclides its
	// own decay and transmutation paths produce.
	ModeForward Direction = iota
	// ModeReverse walks parents: a node's children are the nuclides whose
	// decay or transmutation paths produce it, for tracing which
	// progenitors contribute to a nuclide of interest.
	ModeReverse
)

// Context is the single explicit configuration value passed to every
// solver component, in place of package-level static truncLimit and mode.
// It holds no data library; that is passed to constructors separately.
type Context struct {
	// NumGroups is the multi-group flux/cross-section dimension G.
	NumGroups int

	// TruncLimit is the relative-production threshold below which a node's
	// sub-tree is truncated (default 1.0, matching Chain::truncLimit).
	TruncLimit float64
	// IgnoreRatio scales TruncLimit to obtain the ignore threshold
	// (default 1e-2, matching Chain::ignoreLimit's defining ratio).
	IgnoreRatio float64
	// ImpurityFraction, when positive, is the maximum relative
	// concentration below which a root is treated as an impurity and the
	// looser ImpurityTruncLimit applies instead of TruncLimit.
	ImpurityFraction float64
	// ImpurityTruncLimit is the truncation limit applied to impurity roots.
	ImpurityTruncLimit float64

	// ReferenceFluxMode selects max vs. volume-weighted-average reference
	// flux construction.
	ReferenceFluxMode FluxMode

	// Direction selects forward (daughter) or reverse (parent) chain
	// building for every root solved under this Context.
	Direction Direction

	// InitialMaxChainLength seeds Chain's geometric growth/shrink (default 4).
	InitialMaxChainLength int

	// RateCacheCapacity is the number of base-KZAs each per-flux RateCache
	// holds before evicting by least-recent-use (default 64).
	RateCacheCapacity int

	Log *alog.Logger
}

// Default returns a Context with the same defaults a reference solver
// hardcoded: truncLimit=1, ignoreRatio=1e-2, initial chain length 4, rate
// cache capacity 64.
func Default(numGroups int) *Context {
	return &Context{
		NumGroups:             numGroups,
		TruncLimit:            1.0,
		IgnoreRatio:           1e-2,
		ImpurityFraction:      0,
		ImpurityTruncLimit:    1.0,
		ReferenceFluxMode:     FluxMax,
		Direction:             ModeForward,
		InitialMaxChainLength: 4,
		RateCacheCapacity:     64,
		Log:                   alog.New(0),
	}
}

// IgnoreLimit returns TruncLimit*IgnoreRatio, the threshold below which a
// node is ignored outright rather than merely truncated.
func (c *Context) IgnoreLimit() float64 {
	return c.TruncLimit * c.IgnoreRatio
}

// EffectiveTruncLimit returns ImpurityTruncLimit when maxRelativeConc falls
// below ImpurityFraction (and ImpurityFraction is configured), else
// TruncLimit. This mirrors Chain's constructor logic that swaps in the
// impurity threshold per-root.
func (c *Context) EffectiveTruncLimit(maxRelativeConc float64) float64 {
	if c.ImpurityFraction > 0 && maxRelativeConc < c.ImpurityFraction {
		return c.ImpurityTruncLimit
	}
	return c.TruncLimit
}

// EffectiveIgnoreLimit is EffectiveTruncLimit(maxRelativeConc) * IgnoreRatio.
func (c *Context) EffectiveIgnoreLimit(maxRelativeConc float64) float64 {
	return c.EffectiveTruncLimit(maxRelativeConc) * c.IgnoreRatio
}
