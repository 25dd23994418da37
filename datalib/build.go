package datalib

import (
	"os"
	"sort"

	"lukechampine.com/blake3"
)

// TransFormat selects which ASCII transmutation dialect Build parses.
type TransFormat int

const (
	// FormatEAF selects the MT-keyed EAFLib dialect.
	FormatEAF TransFormat = iota
	// FormatIEAF selects the explicit-emitted-string IEAFLib dialect.
	FormatIEAF
)

// Build merges an ASCII transmutation source and an ASCII decay source into
// one binary index at outPath, per the on-disk layout. decayPath may be
// empty, producing a pure-transmutation library; transPath is required,
// since its header supplies the group count, and an empty one is rejected
// (the merge policy allows a parent present in only one source).
func Build(transPath, decayPath, outPath string, format TransFormat) error {
	var transParents []rawParent
	var decayParents []rawParent
	numGroups := -1

	if transPath != "" {
		f, err := os.Open(transPath)
		if err != nil {
			return &LibraryError{File: transPath, Msg: "opening transmutation source", Inner: err}
		}
		defer f.Close()

		var g int
		var err2 error
		switch format {
		case FormatIEAF:
			transParents, g, err2 = ParseIEAF(f)
		default:
			transParents, g, err2 = ParseEAF(f)
		}
		if err2 != nil {
			return &LibraryError{File: transPath, Msg: "parsing transmutation source", Inner: err2}
		}
		numGroups = g
	}

	if decayPath != "" {
		f, err := os.Open(decayPath)
		if err != nil {
			return &LibraryError{File: decayPath, Msg: "opening decay source", Inner: err}
		}
		defer f.Close()

		parents, err := ParseDecay(f)
		if err != nil {
			return &LibraryError{File: decayPath, Msg: "parsing decay source", Inner: err}
		}
		decayParents = parents
	}

	if numGroups < 0 {
		return &LibraryError{File: outPath, Msg: "cannot build a library with no transmutation source to establish the group count"}
	}

	merged := mergeParents(transParents, decayParents, numGroups)

	kind := KindMerged
	if transPath == "" {
		kind = KindDecay
	} else if decayPath == "" {
		kind = KindTransmute
	}

	return writeBinary(outPath, kind, numGroups, merged, nil, nil)
}

// writeBinary serializes merged nuclide records into the exact binary
// layout: header, then nuclide records in BaseZA-sorted order, then the
// trailer index (also BaseZA-sorted, matching the order the solver's
// binary search expects).
func writeBinary(outPath string, kind LibraryKind, numGroups int, parents []*NuclideData, groupBoundaries, groupWeights []float64) error {
	f, err := os.Create(outPath)
	if err != nil {
		return &LibraryError{File: outPath, Msg: "creating output library", Inner: err}
	}
	defer f.Close()

	sort.Slice(parents, func(i, j int) bool {
		bi, bj := parents[i].KZA.BaseZA(), parents[j].KZA.BaseZA()
		if bi != bj {
			return bi < bj
		}
		return parents[i].KZA < parents[j].KZA
	})

	// Reserve the fixed-size header; its contents (trailer offset, block
	// pointers) are only known after the records and optional blocks are
	// written, so it is rewritten at the end.
	headerSize := int64(8 + 4 + 4 + (4 + 8) + (4 + 8))
	if _, err := f.Seek(headerSize, 0); err != nil {
		return &LibraryError{File: outPath, Msg: "seeking past header", Inner: err}
	}

	var groupBoundaryPtr, groupWeightPtr blockPointer
	groupBoundaryPtr.kza = noGroupBoundaryKZA
	groupWeightPtr.kza = noGroupWeightKZA

	if groupBoundaries != nil {
		off, err := f.Seek(0, 1)
		if err != nil {
			return &LibraryError{File: outPath, Msg: "seeking for group-boundary block", Inner: err}
		}
		if err := writeFloatBlock(f, groupBoundaries); err != nil {
			return &LibraryError{File: outPath, Msg: "writing group-boundary block", Inner: err}
		}
		groupBoundaryPtr = blockPointer{kza: 1, offset: off}
	}
	if groupWeights != nil {
		off, err := f.Seek(0, 1)
		if err != nil {
			return &LibraryError{File: outPath, Msg: "seeking for group-weight block", Inner: err}
		}
		if err := writeFloatBlock(f, groupWeights); err != nil {
			return &LibraryError{File: outPath, Msg: "writing group-weight block", Inner: err}
		}
		groupWeightPtr = blockPointer{kza: 1, offset: off}
	}

	recordOffsets := make([]int64, len(parents))
	pathOffsets := make([][]int64, len(parents))

	for i, parent := range parents {
		off, err := f.Seek(0, 1)
		if err != nil {
			return &LibraryError{File: outPath, Msg: "seeking for nuclide record", Inner: err}
		}
		recordOffsets[i] = off

		if err := writeInt32(f, int32(parent.KZA)); err != nil {
			return err
		}
		if err := writeInt32(f, int32(len(parent.Paths))); err != nil {
			return err
		}
		if err := writeFloat32(f, float32(parent.HalfLife)); err != nil {
			return err
		}
		for e := 0; e < 3; e++ {
			if err := writeFloat32(f, float32(parent.Energy[e])); err != nil {
				return err
			}
		}

		offsets := make([]int64, len(parent.Paths))
		for pi, p := range parent.Paths {
			poff, err := f.Seek(0, 1)
			if err != nil {
				return err
			}
			offsets[pi] = poff

			if err := writeInt32(f, int32(p.DaughterKZA)); err != nil {
				return err
			}
			if err := writeInt32(f, int32(len(p.Emitted))); err != nil {
				return err
			}
			if _, err := f.WriteString(p.Emitted); err != nil {
				return err
			}
			for g := 0; g < numGroups; g++ {
				if err := writeFloat32(f, float32(p.XS[g])); err != nil {
					return err
				}
			}
			if err := writeFloat32(f, float32(p.DecayBranch)); err != nil {
				return err
			}
		}
		pathOffsets[i] = offsets
	}

	trailerOffset, err := f.Seek(0, 1)
	if err != nil {
		return &LibraryError{File: outPath, Msg: "seeking to trailer", Inner: err}
	}

	if err := writeByte(f, byte(kind)); err != nil {
		return err
	}
	if err := writeInt32(f, int32(len(parents))); err != nil {
		return err
	}
	if err := writeInt32(f, int32(numGroups)); err != nil {
		return err
	}
	for i, parent := range parents {
		if err := writeInt32(f, int32(parent.KZA)); err != nil {
			return err
		}
		if err := writeInt32(f, int32(len(parent.Paths))); err != nil {
			return err
		}
		if err := writeInt64(f, recordOffsets[i]); err != nil {
			return err
		}
		for pi, p := range parent.Paths {
			if err := writeInt32(f, int32(p.DaughterKZA)); err != nil {
				return err
			}
			if err := writeInt32(f, int32(len(p.Emitted))); err != nil {
				return err
			}
			if _, err := f.WriteString(p.Emitted); err != nil {
				return err
			}
			if err := writeInt64(f, pathOffsets[i][pi]); err != nil {
				return err
			}
		}
	}

	if _, err := f.Seek(0, 0); err != nil {
		return &LibraryError{File: outPath, Msg: "rewinding to write header", Inner: err}
	}
	if err := writeInt64(f, trailerOffset); err != nil {
		return err
	}
	if err := writeInt32(f, int32(len(parents))); err != nil {
		return err
	}
	if err := writeInt32(f, int32(numGroups)); err != nil {
		return err
	}
	if err := writeInt32(f, groupBoundaryPtr.kza); err != nil {
		return err
	}
	if err := writeInt64(f, groupBoundaryPtr.offset); err != nil {
		return err
	}
	if err := writeInt32(f, groupWeightPtr.kza); err != nil {
		return err
	}
	if err := writeInt64(f, groupWeightPtr.offset); err != nil {
		return err
	}

	return nil
}

func writeFloatBlock(f *os.File, values []float64) error {
	if err := writeInt32(f, int32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := writeFloat32(f, float32(v)); err != nil {
			return err
		}
	}
	return nil
}

// Checksum returns a blake3 content hash of the two ASCII source files'
// concatenated bytes, used by callers to detect that a binary index is
// stale relative to its sources without re-parsing them.
func Checksum(transBytes, decayBytes []byte) [32]byte {
	return blake3.Sum256(append(append([]byte(nil), transBytes...), decayBytes...))
}
