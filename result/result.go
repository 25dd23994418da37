/*
Package result implements the per-root, per-output-nuclide concentration
accumulator and its binary dump file: an append-then-rewind-then-
stream handoff between the solve phase and postprocessing.
*/
package result

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/alaraproject/alara/datalib"
)

// endOfRecords is the sentinel kza terminating a root's output-nuclide
// sequence in the dump file.
const endOfRecords int32 = -1

// DumpError reports a fatal failure writing or reading the binary dump
// file: a missing file, a short read, or an underlying I/O failure. The
// CLI's top-level error boundary maps this to its own exit code.
type DumpError struct {
	Path string
	Msg  string
	Inner error
}

func (e *DumpError) Error() string {
	return fmt.Sprintf("dump %s: %s: %v", e.Path, e.Msg, e.Inner)
}

func (e *DumpError) Unwrap() error { return e.Inner }

// Vector is a per-cooling-time concentration vector, index 0 == shutdown.
type Vector []float64

// Accumulator holds, per root KZA, a sparse map from output-nuclide KZA to
// its concentration vector across nCoolingTimes+1 points.
type Accumulator struct {
	nResults int // nCoolingTimes + 1
	byRoot   map[datalib.KZA]map[datalib.KZA]Vector
	order    []datalib.KZA // root insertion order, for deterministic dumps
}

// NewAccumulator returns an empty Accumulator sized for nCoolingTimes
// cooling points plus the shutdown point.
func NewAccumulator(nCoolingTimes int) *Accumulator {
	return &Accumulator{
		nResults: nCoolingTimes + 1,
		byRoot:   make(map[datalib.KZA]map[datalib.KZA]Vector),
	}
}

// NResults returns nCoolingTimes+1.
func (a *Accumulator) NResults() int { return a.nResults }

// Tally adds leafConc (length nResults) to root's running total for
// outputKza, weighted by weight (density, volume, or volume-integrated
// per the caller's aggregation choice).
func (a *Accumulator) Tally(root, outputKza datalib.KZA, leafConc []float64, weight float64) {
	byOutput, ok := a.byRoot[root]
	if !ok {
		byOutput = make(map[datalib.KZA]Vector)
		a.byRoot[root] = byOutput
		a.order = append(a.order, root)
	}
	v, ok := byOutput[outputKza]
	if !ok {
		v = make(Vector, a.nResults)
		byOutput[outputKza] = v
	}
	for c := 0; c < a.nResults && c < len(leafConc); c++ {
		v[c] += leafConc[c] * weight
	}
}

// Roots returns the accumulated root KZAs in insertion order.
func (a *Accumulator) Roots() []datalib.KZA {
	return append([]datalib.KZA(nil), a.order...)
}

// Outputs returns root's accumulated output-nuclide vectors.
func (a *Accumulator) Outputs(root datalib.KZA) map[datalib.KZA]Vector {
	return a.byRoot[root]
}

// Dump is a scoped, append-then-rewind-then-stream handle onto the binary
// dump file.
type Dump struct {
	file     *os.File
	nResults int
}

// CreateDump opens path for writing and writes the nResults header.
func CreateDump(path string, nResults int) (*Dump, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &DumpError{Path: path, Msg: "creating dump", Inner: err}
	}
	if err := binary.Write(f, binary.LittleEndian, int32(nResults)); err != nil {
		f.Close()
		return nil, &DumpError{Path: path, Msg: "writing dump header", Inner: err}
	}
	return &Dump{file: f, nResults: nResults}, nil
}

// WriteRoot appends one root's accumulated output vectors as a sequence
// of {kza, N[nResults]} records terminated by its own sentinel; it is
// called once per solved root, so the dump
// file is a concatenation of per-root blocks, each self-delimited.
func (d *Dump) WriteRoot(outputs map[datalib.KZA]Vector) error {
	for kza, v := range outputs {
		if err := binary.Write(d.file, binary.LittleEndian, int32(kza)); err != nil {
			return err
		}
		for c := 0; c < d.nResults; c++ {
			var val float32
			if c < len(v) {
				val = float32(v[c])
			}
			if err := binary.Write(d.file, binary.LittleEndian, val); err != nil {
				return err
			}
		}
	}
	return binary.Write(d.file, binary.LittleEndian, endOfRecords)
}

// Close closes the file. It does not write anything further: each
// WriteRoot call already terminates its own block with the sentinel.
func (d *Dump) Close() error {
	return d.file.Close()
}

// Reader streams records back out of a written dump file, rewinding to
// its header first.
type Reader struct {
	file     *os.File
	nResults int
}

// OpenReader opens path for reading and rewinds to its header, returning
// nResults.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DumpError{Path: path, Msg: "opening dump", Inner: err}
	}
	var n int32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		f.Close()
		return nil, &DumpError{Path: path, Msg: "reading dump header", Inner: err}
	}
	return &Reader{file: f, nResults: int(n)}, nil
}

// NResults returns the dump's per-record vector length.
func (r *Reader) NResults() int { return r.nResults }

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.file.Close() }

// Record is one {kza, N[nResults]} entry read from a Dump.
type Record struct {
	KZA datalib.KZA
	N   Vector
}

// errBlockEnd signals that the current root's block sentinel was read; it
// is distinct from io.EOF, which means the underlying file itself is
// exhausted (no more root blocks at all).
var errBlockEnd = fmt.Errorf("end of root block")

// Next reads the next record within the current root's block, returning
// errBlockEnd once that block's sentinel is hit.
func (r *Reader) Next() (Record, error) {
	var kza int32
	if err := binary.Read(r.file, binary.LittleEndian, &kza); err != nil {
		return Record{}, err
	}
	if kza == endOfRecords {
		return Record{}, errBlockEnd
	}
	v := make(Vector, r.nResults)
	for c := 0; c < r.nResults; c++ {
		var val float32
		if err := binary.Read(r.file, binary.LittleEndian, &val); err != nil {
			return Record{}, err
		}
		v[c] = float64(val)
	}
	return Record{KZA: datalib.KZA(kza), N: v}, nil
}

// ReadRootBlock reads one root's full block of records, stopping at its
// terminating sentinel and returning (records, nil). If the file has no
// more root blocks at all, the first read hits real end-of-file and that
// io.EOF is returned instead.
func (r *Reader) ReadRootBlock() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == errBlockEnd {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}
