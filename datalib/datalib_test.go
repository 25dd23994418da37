package datalib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKZAEncoding(t *testing.T) {
	k := NewKZA(26, 56, 0)
	if k.Z() != 26 || k.A() != 56 || k.M() != 0 {
		t.Fatalf("Z/A/M = %d/%d/%d, want 26/56/0", k.Z(), k.A(), k.M())
	}
	if got := NewKZA(26, 56, 1).BaseZA(); got != int32(k) {
		t.Fatalf("BaseZA of isomer = %d, want %d", got, k)
	}
}

func TestTotalDestructionXSPrefersAggregateChannel(t *testing.T) {
	n := &NuclideData{
		Paths: []ReactionPath{
			{DaughterKZA: 1, Emitted: "gamma", XS: []float64{1, 2}},
			{DaughterKZA: 1, Emitted: "x", XS: []float64{10, 20}},
		},
	}
	got := n.TotalDestructionXS(2)
	want := []float64{10, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TotalDestructionXS() = %v, want %v", got, want)
		}
	}
}

func TestTotalDestructionXSSumsWithoutAggregate(t *testing.T) {
	n := &NuclideData{
		Paths: []ReactionPath{
			{DaughterKZA: 1, Emitted: "gamma", XS: []float64{1, 2}},
			{DaughterKZA: 2, Emitted: "p", XS: []float64{3, 4}},
		},
	}
	got := n.TotalDestructionXS(2)
	want := []float64{4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TotalDestructionXS() = %v, want %v", got, want)
		}
	}
}

func TestLambdaSumsDecayBranches(t *testing.T) {
	n := &NuclideData{
		Paths: []ReactionPath{
			{DaughterKZA: 1, Emitted: "*D", DecayBranch: 0.3},
			{DaughterKZA: 2, Emitted: "*X", DecayBranch: 0.7},
			{DaughterKZA: 3, Emitted: "gamma", XS: []float64{1}},
		},
	}
	if got := n.Lambda(); got != 1.0 {
		t.Fatalf("Lambda() = %v, want 1.0", got)
	}
}

func TestDecayAndTransmutationPathsSplit(t *testing.T) {
	n := &NuclideData{
		Paths: []ReactionPath{
			{DaughterKZA: 1, Emitted: "*D", DecayBranch: 1},
			{DaughterKZA: 2, Emitted: "gamma", XS: []float64{1}},
		},
	}
	if len(n.DecayPaths()) != 1 || len(n.TransmutationPaths()) != 1 {
		t.Fatalf("DecayPaths/TransmutationPaths split = %d/%d, want 1/1", len(n.DecayPaths()), len(n.TransmutationPaths()))
	}
}

const testEAF = "2\n260560 1\n260570 102 1.0 2.0\n"
const testDecay = "260570 86400 0.0 0.1 0.2 1\n260580 1.0 0\n"

func TestMergeAndBinaryRoundTrip(t *testing.T) {
	transParents, g, err := ParseEAF(strings.NewReader(testEAF))
	if err != nil {
		t.Fatalf("ParseEAF: %v", err)
	}
	decayParents, err := ParseDecay(strings.NewReader(testDecay))
	if err != nil {
		t.Fatalf("ParseDecay: %v", err)
	}

	dir := t.TempDir()
	transPath := filepath.Join(dir, "trans.txt")
	decayPath := filepath.Join(dir, "decay.txt")
	outPath := filepath.Join(dir, "lib.bin")
	if err := os.WriteFile(transPath, []byte(testEAF), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(decayPath, []byte(testDecay), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Build(transPath, decayPath, outPath, FormatEAF); err != nil {
		t.Fatalf("Build: %v", err)
	}

	lib, err := Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lib.Close()

	if lib.Kind() != KindMerged {
		t.Fatalf("Kind() = %v, want KindMerged", lib.Kind())
	}
	if lib.NumGroups() != g {
		t.Fatalf("NumGroups() = %d, want %d", lib.NumGroups(), g)
	}

	parent, ok := lib.Read(KZA(260560))
	if !ok {
		t.Fatalf("Read(260560) missed")
	}
	if len(parent.Paths) != 1 || parent.Paths[0].Emitted != "gamma" {
		t.Fatalf("unexpected paths for 260560: %+v", parent.Paths)
	}

	daughter, ok := lib.Read(KZA(260570))
	if !ok {
		t.Fatalf("Read(260570) missed")
	}
	if daughter.HalfLife != 86400 {
		t.Fatalf("HalfLife = %v, want 86400", daughter.HalfLife)
	}
	if len(daughter.DecayPaths()) != 1 || daughter.Paths[0].Emitted != "*D" {
		t.Fatalf("expected one synthetic *D decay path, got %+v", daughter.Paths)
	}

	_, ok = lib.Read(KZA(999999))
	if ok {
		t.Fatalf("Read of absent kza should miss")
	}

	sorted := lib.IterateSortedKZA()
	if len(sorted) != len(transParents)+len(decayParents) {
		t.Fatalf("IterateSortedKZA length = %d, want %d", len(sorted), len(transParents)+len(decayParents))
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].BaseZA() > sorted[i].BaseZA() {
			t.Fatalf("IterateSortedKZA not sorted: %v", sorted)
		}
	}
}

// TestMergeParentsMergesNamedChannelsNotAggregate constructs a parent with
// two named channels to the same daughter (which must merge into one path,
// concatenating their Emitted tags and summing cross sections) plus two
// separate "x" aggregate channels to that same daughter (which must NOT
// merge with each other or with the named channels: the aggregate tag is
// never a merge source).
func TestMergeParentsMergesNamedChannelsNotAggregate(t *testing.T) {
	parent := rawParent{
		kza: 260560,
		paths: []rawPath{
			{daughterKza: 260570, emitted: "gamma", xs: []float64{1}},
			{daughterKza: 260570, emitted: "p", xs: []float64{2}},
			{daughterKza: 260570, emitted: "x", xs: []float64{10}},
			{daughterKza: 260570, emitted: "x", xs: []float64{20}},
		},
	}

	merged := mergeParents([]rawParent{parent}, nil, 1)
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}
	paths := merged[0].Paths

	var named, aggregates []ReactionPath
	for _, p := range paths {
		if p.IsAggregate() {
			aggregates = append(aggregates, p)
		} else {
			named = append(named, p)
		}
	}

	if len(named) != 1 {
		t.Fatalf("expected the two named channels to merge into one, got %+v", named)
	}
	if named[0].Emitted != "gamma,p" {
		t.Fatalf("Emitted = %q, want %q", named[0].Emitted, "gamma,p")
	}
	if named[0].XS[0] != 3 {
		t.Fatalf("merged XS = %v, want 3", named[0].XS[0])
	}

	if len(aggregates) != 2 {
		t.Fatalf("expected the two \"x\" channels to stay unmerged, got %+v", aggregates)
	}
}

func TestBuildRejectsMissingTransmutationSource(t *testing.T) {
	dir := t.TempDir()
	decayPath := filepath.Join(dir, "decay.txt")
	if err := os.WriteFile(decayPath, []byte(testDecay), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Build("", decayPath, filepath.Join(dir, "lib.bin"), FormatEAF)
	if err == nil {
		t.Fatalf("expected error building with no transmutation source")
	}
}
