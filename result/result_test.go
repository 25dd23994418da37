package result

import (
	"path/filepath"
	"testing"

	"github.com/alaraproject/alara/datalib"
)

func TestAccumulatorTallyAccumulates(t *testing.T) {
	a := NewAccumulator(2) // nResults = 3
	root := datalib.KZA(260560)
	output := datalib.KZA(260570)

	a.Tally(root, output, []float64{1, 0.5, 0.25}, 1.0)
	a.Tally(root, output, []float64{1, 0.5, 0.25}, 2.0)

	v := a.Outputs(root)[output]
	want := []float64{3, 1.5, 0.75}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("Outputs()[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestAccumulatorRootsInInsertionOrder(t *testing.T) {
	a := NewAccumulator(1)
	a.Tally(3, 1, []float64{1, 1}, 1)
	a.Tally(1, 1, []float64{1, 1}, 1)
	roots := a.Roots()
	if len(roots) != 2 || roots[0] != 3 || roots[1] != 1 {
		t.Fatalf("Roots() = %v, want [3 1]", roots)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alara.dmp")

	dump, err := CreateDump(path, 3)
	if err != nil {
		t.Fatalf("CreateDump: %v", err)
	}
	rootA := map[datalib.KZA]Vector{
		260570: {1, 0.5, 0.25},
	}
	rootB := map[datalib.KZA]Vector{
		270600: {1, 0.5, 0.25},
		280600: {0, 0.5, 0.75},
	}
	if err := dump.WriteRoot(rootA); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	if err := dump.WriteRoot(rootB); err != nil {
		t.Fatalf("WriteRoot: %v", err)
	}
	if err := dump.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer reader.Close()
	if reader.NResults() != 3 {
		t.Fatalf("NResults() = %d, want 3", reader.NResults())
	}

	block1, err := reader.ReadRootBlock()
	if err != nil {
		t.Fatalf("ReadRootBlock 1: %v", err)
	}
	if len(block1) != 1 || block1[0].KZA != 260570 {
		t.Fatalf("unexpected first block: %+v", block1)
	}

	block2, err := reader.ReadRootBlock()
	if err != nil {
		t.Fatalf("ReadRootBlock 2: %v", err)
	}
	if len(block2) != 2 {
		t.Fatalf("unexpected second block length: %+v", block2)
	}

	_, err = reader.ReadRootBlock()
	if err == nil {
		t.Fatalf("expected EOF after all root blocks consumed")
	}
}
