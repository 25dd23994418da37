/*
Package schedule composes per-item transfer matrices into one transfer
matrix for an irradiation schedule tree: pulse histories, named
sub-schedules with trailing dwells, and a top-level list of cooling times.

The package knows nothing about decay rates, flux spectra, or nuclide
data — it is handed two closures, T (transmutation matrix for a duration
at a flux index) and D (decay matrix for a duration), and composes them
according to the schedule tree's shape. This keeps schedule composition
testable in isolation from the rate-fold and caching machinery that
supplies T and D in a real solve.
*/
package schedule

import (
	"fmt"

	"github.com/alaraproject/alara/matrixengine"
)

// History is a repeating pulse-dwell pattern: Count repetitions of
// (Pulse, Dwell), with the final dwell applied by the containing item
// rather than the history itself.
type History struct {
	Pulse, Dwell float64
	Count        int
}

// Item is one element of a Schedule's ordered item list.
type Item struct {
	// Leaf fields: set when this item is a pulse leaf.
	IsLeaf    bool
	History   History
	FluxIndex int

	// Sub-schedule fields: set when this item refers to a named schedule.
	// SubScheduleName is how an input file actually spells the reference;
	// SubSchedule is filled in by Resolve and is what Evaluate reads.
	SubScheduleName string
	SubSchedule     *Schedule
	TrailingDwell   float64
}

// Schedule is a named, ordered sequence of items.
type Schedule struct {
	Name  string
	Items []Item
}

// ScheduleError reports a problem detected while resolving named
// sub-schedule references into a tree, the preprocess validation pass
// described alongside ScheduleEngine: a dangling reference is caught here
// rather than surfacing as a nil-pointer panic deep inside Evaluate.
type ScheduleError struct {
	Schedule string
	Ref      string
	Msg      string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("schedule %q: %s: %q", e.Schedule, e.Msg, e.Ref)
}

// Resolve walks s and every sub-schedule it (transitively) references,
// filling in each Item's SubSchedule pointer from registry by
// SubScheduleName and detecting cycles and dangling references. It must be
// called once per top-level schedule before Evaluate.
func Resolve(s *Schedule, registry map[string]*Schedule) error {
	return resolve(s, registry, map[string]bool{})
}

func resolve(s *Schedule, registry map[string]*Schedule, onPath map[string]bool) error {
	if s.Name != "" {
		if onPath[s.Name] {
			return &ScheduleError{Schedule: s.Name, Ref: s.Name, Msg: "cyclic schedule reference"}
		}
		onPath[s.Name] = true
		defer delete(onPath, s.Name)
	}
	for i := range s.Items {
		item := &s.Items[i]
		if item.IsLeaf {
			continue
		}
		if item.SubSchedule == nil {
			sub, ok := registry[item.SubScheduleName]
			if !ok {
				return &ScheduleError{Schedule: s.Name, Ref: item.SubScheduleName, Msg: "dangling schedule reference"}
			}
			item.SubSchedule = sub
		}
		if err := resolve(item.SubSchedule, registry, onPath); err != nil {
			return err
		}
	}
	return nil
}

// TransmutationFunc returns the transmutation transfer matrix for a pulse
// of duration t at the given flux index.
type TransmutationFunc func(t float64, fluxIndex int) (*matrixengine.Matrix, error)

// DecayFunc returns the pure-decay transfer matrix for a cooling or dwell
// interval of duration t.
type DecayFunc func(t float64) (*matrixengine.Matrix, error)

type historyKey struct {
	h         History
	fluxIndex int
}

// Engine composes schedule matrices given a chain dimension and the T/D
// rate closures supplied by the caller. Every composed node in the
// schedule tree — each pulse history, each item's trailing-dwell wrap,
// each sub-schedule body, and the top-level item-by-item product — is
// cached across calls, keyed by its stable identity in the tree (the
// History value, the *Item, or the *Schedule). A later call that grows or
// shrinks Dim sets RNew to the lowest rank actually known to have changed
// (chain.Builder's common-prefix rank for Tally, or the common prefix the
// solve package's path solver tracks for Reference); every cached node then Resizes
// from its own prior value and Fill/Multiply only recomputes rows
// [RNew, Dim), rather than rebuilding the composition from scratch. This
// is the same reuse contract matrixengine.Fill/Multiply already expose,
// threaded all the way up through schedule composition.
type Engine struct {
	Dim  int
	RNew int
	T    TransmutationFunc
	D    DecayFunc

	historyCache map[historyKey]*matrixengine.Matrix
	stepCache    map[historyKey]*matrixengine.Matrix
	itemCache    map[*Item]*matrixengine.Matrix
	prefixCache  map[*Schedule][]*matrixengine.Matrix
}

// EvaluateHistory returns (T(pulse)*D(dwell))^(count-1) * T(pulse), the
// matrix for a pulse-history leaf excluding its trailing dwell, built by
// repeated squaring over count-1, per the history-level caching note.
func (e *Engine) EvaluateHistory(h History, fluxIndex int) (*matrixengine.Matrix, error) {
	tPulse, err := e.T(h.Pulse, fluxIndex)
	if err != nil {
		return nil, err
	}
	if h.Count <= 1 {
		return tPulse, nil
	}
	dDwell, err := e.D(h.Dwell)
	if err != nil {
		return nil, err
	}

	key := historyKey{h: h, fluxIndex: fluxIndex}
	if e.stepCache == nil {
		e.stepCache = make(map[historyKey]*matrixengine.Matrix)
	}
	step := matrixengine.Resize(e.stepCache[key], e.Dim, e.RNew)
	if err := matrixengine.Multiply(step, tPulse, dDwell, e.RNew); err != nil {
		return nil, err
	}
	e.stepCache[key] = step

	// The repeated-squaring chain inside matrixPower rebuilds its own
	// transient intermediates from scratch each call: only the externally
	// addressable nodes of the schedule tree (this history's step/out, and
	// the item/body/prefix nodes below) carry the reuse cache across
	// calls.
	power, err := e.matrixPower(step, h.Count-1)
	if err != nil {
		return nil, err
	}

	if e.historyCache == nil {
		e.historyCache = make(map[historyKey]*matrixengine.Matrix)
	}
	out := matrixengine.Resize(e.historyCache[key], e.Dim, e.RNew)
	if err := matrixengine.Multiply(out, power, tPulse, e.RNew); err != nil {
		return nil, err
	}
	e.historyCache[key] = out
	return out, nil
}

// matrixPower computes step^n by repeated squaring.
func (e *Engine) matrixPower(step *matrixengine.Matrix, n int) (*matrixengine.Matrix, error) {
	result := matrixengine.Identity(e.Dim)
	base := step
	for n > 0 {
		if n&1 == 1 {
			next := matrixengine.NewMatrix(e.Dim)
			if err := matrixengine.Multiply(next, base, result, 0); err != nil {
				return nil, err
			}
			result = next
		}
		n >>= 1
		if n == 0 {
			break
		}
		squared := matrixengine.NewMatrix(e.Dim)
		if err := matrixengine.Multiply(squared, base, base, 0); err != nil {
			return nil, err
		}
		base = squared
	}
	return result, nil
}

// Evaluate returns a Schedule's composed transfer matrix: items compose
// left-to-right as M_sched = M_item_k * ... * M_item_1, i.e. the first
// item in the list is applied first (rightmost in the matrix product).
// The running prefix product is cached per item index under s's own
// cache slot, so a later call only re-multiplies rows [RNew, Dim) at
// every step instead of redoing the whole chain.
func (e *Engine) Evaluate(s *Schedule) (*matrixengine.Matrix, error) {
	if e.prefixCache == nil {
		e.prefixCache = make(map[*Schedule][]*matrixengine.Matrix)
	}
	prefix := e.prefixCache[s]
	if len(prefix) != len(s.Items)+1 {
		prefix = make([]*matrixengine.Matrix, len(s.Items)+1)
	}
	prefix[0] = matrixengine.Identity(e.Dim)

	for i := range s.Items {
		item := &s.Items[i]
		itemMatrix, err := e.evaluateItem(item)
		if err != nil {
			return nil, err
		}
		next := matrixengine.Resize(prefix[i+1], e.Dim, e.RNew)
		if err := matrixengine.Multiply(next, itemMatrix, prefix[i], e.RNew); err != nil {
			return nil, err
		}
		prefix[i+1] = next
	}
	e.prefixCache[s] = prefix
	return prefix[len(s.Items)], nil
}

func (e *Engine) evaluateItem(item *Item) (*matrixengine.Matrix, error) {
	if item.IsLeaf {
		return e.EvaluateHistory(item.History, item.FluxIndex)
	}

	// Evaluate caches its own result per *Schedule, so the same named
	// sub-schedule referenced from multiple items is composed once per
	// call rather than once per reference.
	subMatrix, err := e.Evaluate(item.SubSchedule)
	if err != nil {
		return nil, err
	}
	if item.TrailingDwell == 0 {
		return subMatrix, nil
	}
	dwellMatrix, err := e.D(item.TrailingDwell)
	if err != nil {
		return nil, err
	}
	if e.itemCache == nil {
		e.itemCache = make(map[*Item]*matrixengine.Matrix)
	}
	out := matrixengine.Resize(e.itemCache[item], e.Dim, e.RNew)
	if err := matrixengine.Multiply(out, dwellMatrix, subMatrix, e.RNew); err != nil {
		return nil, err
	}
	e.itemCache[item] = out
	return out, nil
}

// ApplyAtCoolingTimes applies a top-level schedule result M_sched to the
// initial concentration vector n0 (unit at the root isotope), then
// returns, for each cooling time, D(t_c) * M_sched * n0.
func (e *Engine) ApplyAtCoolingTimes(scheduleMatrix *matrixengine.Matrix, n0 []float64, coolingTimes []float64) ([][]float64, error) {
	afterSchedule := applyVector(scheduleMatrix, n0)

	out := make([][]float64, len(coolingTimes))
	for i, tc := range coolingTimes {
		if tc == 0 {
			out[i] = afterSchedule
			continue
		}
		dCool, err := e.D(tc)
		if err != nil {
			return nil, err
		}
		out[i] = applyVector(dCool, afterSchedule)
	}
	return out, nil
}

// applyVector multiplies a lower-triangular transfer matrix by a
// concentration vector.
func applyVector(m *matrixengine.Matrix, n []float64) []float64 {
	out := make([]float64, m.Dim)
	for i := 0; i < m.Dim; i++ {
		var sum float64
		for j := 0; j <= i; j++ {
			sum += m.Get(i, j) * n[j]
		}
		out[i] = sum
	}
	return out
}
