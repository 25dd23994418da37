package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alaraproject/alara/chain"
	"github.com/alaraproject/alara/datalib"
)

type stubSolver struct{}

func (stubSolver) Reference(path []*chain.NuclideNode) (float64, float64, error) { return 0, 0, nil }
func (stubSolver) Tally(path []*chain.NuclideNode, setRank int) error            { return nil }

func TestTracingSolverRecordsTalliedPath(t *testing.T) {
	tracer := NewTracer()
	solver := &TracingSolver{Inner: stubSolver{}, Trace: tracer}

	path := []*chain.NuclideNode{
		{KZA: datalib.NewKZA(27, 60, 0)},
		{KZA: datalib.NewKZA(28, 60, 0)},
	}
	if err := solver.Tally(path, 0); err != nil {
		t.Fatalf("Tally: %v", err)
	}
	entries := tracer.Entries()
	if len(entries) != 1 || len(entries[0].Path) != 2 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestWriteToWrapsLongPaths(t *testing.T) {
	tracer := NewTracer()
	long := make([]datalib.KZA, 20)
	for i := range long {
		long[i] = datalib.NewKZA(1+i, 1+i, 0)
	}
	tracer.Record(long, 0)

	var buf bytes.Buffer
	if err := tracer.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "->") {
		t.Fatalf("expected arrow-joined path, got %q", out)
	}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) > wrapWidth+1 {
			t.Fatalf("line exceeds wrap width: %q (%d chars)", line, len(line))
		}
	}
}
