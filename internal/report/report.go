/*
Package report renders a chain build's tallied paths as a human-readable
trace, the `-t PATH` CLI output. It wraps chain.Solver rather than walking
a persisted tree, since Builder itself keeps no tree to walk: every tallied
leaf is captured as it happens, in build order.
*/
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"github.com/alaraproject/alara/chain"
	"github.com/alaraproject/alara/datalib"
)

// wrapWidth matches the width used by similar ASCII pretty-printers.
const wrapWidth = 68

// Entry is one tallied chain path, root first, terminal leaf last.
type Entry struct {
	Path    []datalib.KZA
	SetRank int
}

// Tracer accumulates tallied paths across one or more Build calls, in the
// order the builder visits them.
type Tracer struct {
	entries []Entry
}

// NewTracer returns an empty Tracer.
func NewTracer() *Tracer { return &Tracer{} }

// Record appends one tallied path.
func (t *Tracer) Record(path []datalib.KZA, setRank int) {
	t.entries = append(t.entries, Entry{Path: append([]datalib.KZA(nil), path...), SetRank: setRank})
}

// Entries returns every recorded path, in build order.
func (t *Tracer) Entries() []Entry { return t.entries }

// WriteTo renders every recorded path as one wrapped, arrow-joined line of
// KZA values and writes them to w.
func (t *Tracer) WriteTo(w io.Writer) error {
	for i, e := range t.entries {
		parts := make([]string, len(e.Path))
		for j, kza := range e.Path {
			parts[j] = fmt.Sprintf("%d", int32(kza))
		}
		line := fmt.Sprintf("[%d] %s", i, strings.Join(parts, " -> "))
		wrapped := wordwrap.WrapString(line, wrapWidth)
		if _, err := fmt.Fprintln(w, wrapped); err != nil {
			return err
		}
	}
	return nil
}

// TracingSolver wraps a chain.Solver, recording every tallied path into
// Trace while delegating the actual numeric work unchanged.
type TracingSolver struct {
	Inner chain.Solver
	Trace *Tracer
}

// Reference delegates unchanged; truncation classification carries no
// trace-worthy information beyond what Tally already captures at the leaf.
func (s *TracingSolver) Reference(path []*chain.NuclideNode) (float64, float64, error) {
	return s.Inner.Reference(path)
}

// Tally records the active path before delegating to the wrapped solver.
func (s *TracingSolver) Tally(path []*chain.NuclideNode, setRank int) error {
	kzas := make([]datalib.KZA, len(path))
	for i, n := range path {
		kzas[i] = n.KZA
	}
	s.Trace.Record(kzas, setRank)
	return s.Inner.Tally(path, setRank)
}
