/*
Package datalib implements the indexed, random-access nuclide data store:
reading the merged binary index, merging two ASCII transmutation and
decay sources into that index, and looking up a NuclideData record by KZA.
*/
package datalib

import (
	"io"
	"os"
	"sort"
)

// Library is an opened, indexed binary nuclide data store. It is immutable
// after Open/Build and may be shared read-only across chain builds.
type Library struct {
	file       *os.File
	path       string
	kind       LibraryKind
	numGroups  int
	index      []indexEntry // sorted by BaseZA, ties broken by full KZA
	groupBoundaries []float64
	groupWeights    []float64

	// parentIdx maps a daughter KZA to every path that produces it, across
	// every parent in the library: the inverse of the forward index,
	// built once at Open time from the trailer's lookup entries so
	// reverse-mode chain building never re-scans the whole index.
	parentIdx map[int32][]parentEdge
}

// parentEdge is one forward reaction path, addressed from its daughter's
// side: the parent that produces it, and the offset of that path's
// sub-record (daughter kza, emitted tag, cross sections, decay branch)
// within the parent's nuclide record.
type parentEdge struct {
	parentKza  int32
	pathOffset int64
}

// Kind returns which sources produced this library.
func (l *Library) Kind() LibraryKind { return l.kind }

// NumGroups returns the multi-group dimension G.
func (l *Library) NumGroups() int { return l.numGroups }

// Open parses a library's header and trailer (not its nuclide records,
// which are read lazily by Read) and returns a handle ready for lookups.
func Open(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LibraryError{File: path, Msg: "opening library", Inner: err}
	}

	lib := &Library{file: f, path: path}
	if err := lib.readHeaderAndTrailer(); err != nil {
		f.Close()
		return nil, err
	}
	return lib, nil
}

// Close releases the underlying file handle.
func (l *Library) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Library) readHeaderAndTrailer() error {
	f := l.file
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return &LibraryError{File: l.path, Msg: "seeking to header", Inner: err}
	}

	trailerOffset, err := readInt64(f)
	if err != nil {
		return &LibraryError{File: l.path, Offset: 0, Msg: "reading trailer offset", Inner: err}
	}
	n, err := readInt32(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading parent count", Inner: err}
	}
	g, err := readInt32(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading group count", Inner: err}
	}
	l.numGroups = int(g)

	gb, err := readBlockPointer(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading group-boundary pointer", Inner: err}
	}
	gw, err := readBlockPointer(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading group-weight pointer", Inner: err}
	}

	if gb.kza != noGroupBoundaryKZA {
		bounds, err := readFloatBlock(f, gb.offset)
		if err != nil {
			return &LibraryError{File: l.path, Offset: gb.offset, Msg: "reading group-boundary block", Inner: err}
		}
		l.groupBoundaries = bounds
	}
	if gw.kza != noGroupWeightKZA {
		weights, err := readFloatBlock(f, gw.offset)
		if err != nil {
			return &LibraryError{File: l.path, Offset: gw.offset, Msg: "reading group-weight block", Inner: err}
		}
		l.groupWeights = weights
	}

	if _, err := f.Seek(trailerOffset, io.SeekStart); err != nil {
		return &LibraryError{File: l.path, Offset: trailerOffset, Msg: "seeking to trailer", Inner: err}
	}
	kind, err := readByte(f)
	if err != nil {
		return &LibraryError{File: l.path, Offset: trailerOffset, Msg: "reading lib_type", Inner: err}
	}
	l.kind = LibraryKind(kind)

	trailerN, err := readInt32(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading trailer N", Inner: err}
	}
	if trailerN != n {
		return &LibraryError{File: l.path, Msg: "header/trailer parent count mismatch"}
	}
	trailerG, err := readInt32(f)
	if err != nil {
		return &LibraryError{File: l.path, Msg: "reading trailer G", Inner: err}
	}
	if int(trailerG) != l.numGroups {
		return &LibraryError{File: l.path, Msg: "inconsistent group count between header and trailer"}
	}

	index := make([]indexEntry, 0, n)
	for i := int32(0); i < n; i++ {
		kza, err := readInt32(f)
		if err != nil {
			return &LibraryError{File: l.path, Msg: "truncated trailer index entry", Inner: err}
		}
		nPaths, err := readInt32(f)
		if err != nil {
			return &LibraryError{File: l.path, Msg: "truncated trailer index entry", Inner: err}
		}
		offset, err := readInt64(f)
		if err != nil {
			return &LibraryError{File: l.path, Msg: "truncated trailer index entry", Inner: err}
		}
		entry := indexEntry{kza: kza, nPaths: nPaths, offset: offset}
		entry.paths = make([]lookupEntry, 0, nPaths)
		for p := int32(0); p < nPaths; p++ {
			daughter, err := readInt32(f)
			if err != nil {
				return &LibraryError{File: l.path, Msg: "truncated trailer lookup entry", Inner: err}
			}
			elen, err := readInt32(f)
			if err != nil {
				return &LibraryError{File: l.path, Msg: "truncated trailer lookup entry", Inner: err}
			}
			emitted, err := readString(f, elen)
			if err != nil {
				return &LibraryError{File: l.path, Msg: "truncated trailer lookup entry", Inner: err}
			}
			pathOffset, err := readInt64(f)
			if err != nil {
				return &LibraryError{File: l.path, Msg: "truncated trailer lookup entry", Inner: err}
			}
			entry.paths = append(entry.paths, lookupEntry{daughterKza: daughter, emittedLen: elen, emitted: emitted, offset: pathOffset})
		}
		index = append(index, entry)
	}

	sort.Slice(index, func(i, j int) bool {
		bi, bj := KZA(index[i].kza).BaseZA(), KZA(index[j].kza).BaseZA()
		if bi != bj {
			return bi < bj
		}
		return index[i].kza < index[j].kza
	})
	l.index = index

	l.parentIdx = make(map[int32][]parentEdge)
	for _, entry := range index {
		for _, p := range entry.paths {
			l.parentIdx[p.daughterKza] = append(l.parentIdx[p.daughterKza], parentEdge{
				parentKza:  entry.kza,
				pathOffset: p.offset,
			})
		}
	}

	return nil
}

func readBlockPointer(r io.Reader) (blockPointer, error) {
	kza, err := readInt32(r)
	if err != nil {
		return blockPointer{}, err
	}
	offset, err := readInt64(r)
	if err != nil {
		return blockPointer{}, err
	}
	return blockPointer{kza: kza, offset: offset}, nil
}

func readFloatBlock(f *os.File, offset int64) ([]float64, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	n, err := readInt32(f)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := int32(0); i < n; i++ {
		v, err := readFloat32(f)
		if err != nil {
			return nil, err
		}
		out[i] = float64(v)
	}
	return out, nil
}

// GroupBoundaries returns the optional per-group energy boundaries and
// whether the block was present in the library.
func (l *Library) GroupBoundaries() ([]float64, bool) {
	return l.groupBoundaries, l.groupBoundaries != nil
}

// GroupWeights returns the optional per-group weighting (used by
// ReferenceFlux's volume_avg mode) and whether the block was present.
func (l *Library) GroupWeights() ([]float64, bool) {
	return l.groupWeights, l.groupWeights != nil
}

// IterateSortedKZA returns every parent KZA in the library, in BaseZA-sorted
// (isomer-tiebroken) order.
func (l *Library) IterateSortedKZA() []KZA {
	out := make([]KZA, len(l.index))
	for i, e := range l.index {
		out[i] = KZA(e.kza)
	}
	return out
}

// Parents returns one ReactionPath per parent that produces kza through
// decay or transmutation, for reverse-mode chain building. Each returned
// path's DaughterKZA is overwritten to name the PARENT rather than kza
// itself, so a reverse walker can treat it exactly like a forward path:
// "follow this edge to reach the next node." Emitted, XS, and DecayBranch
// are the original forward path's values, since the physical rate of a
// transition doesn't depend on which direction it is walked.
func (l *Library) Parents(kza KZA) ([]ReactionPath, error) {
	edges := l.parentIdx[int32(kza)]
	if len(edges) == 0 {
		return nil, nil
	}
	out := make([]ReactionPath, 0, len(edges))
	for _, e := range edges {
		p, err := l.readPathAt(e.pathOffset)
		if err != nil {
			return nil, err
		}
		p.DaughterKZA = KZA(e.parentKza)
		out = append(out, p)
	}
	return out, nil
}

// readPathAt parses one reaction path's sub-record (daughter kza, emitted
// tag, cross sections, decay branch) directly from its own offset, without
// re-reading the rest of the parent's nuclide record.
func (l *Library) readPathAt(offset int64) (ReactionPath, error) {
	if _, err := l.file.Seek(offset, io.SeekStart); err != nil {
		return ReactionPath{}, &LibraryError{File: l.path, Offset: offset, Msg: "seeking to path sub-record", Inner: err}
	}
	daughter, err := readInt32(l.file)
	if err != nil {
		return ReactionPath{}, &LibraryError{File: l.path, Offset: offset, Msg: "reading path daughter kza", Inner: err}
	}
	elen, err := readInt32(l.file)
	if err != nil {
		return ReactionPath{}, &LibraryError{File: l.path, Offset: offset, Msg: "reading path emitted length", Inner: err}
	}
	emitted, err := readString(l.file, elen)
	if err != nil {
		return ReactionPath{}, &LibraryError{File: l.path, Offset: offset, Msg: "reading path emitted tag", Inner: err}
	}
	xs := make([]float64, l.numGroups+1)
	for g := range xs {
		v, err := readFloat32(l.file)
		if err != nil {
			return ReactionPath{}, &LibraryError{File: l.path, Offset: offset, Msg: "reading path cross-section vector", Inner: err}
		}
		xs[g] = float64(v)
	}
	return ReactionPath{
		DaughterKZA: KZA(daughter),
		Emitted:     emitted,
		XS:          xs[:l.numGroups],
		DecayBranch: xs[l.numGroups],
	}, nil
}

// Read returns the full NuclideData record for kza, or ok==false ("no data"
// sentinel) if it is absent from the library. Lookup does a binary search
// on BaseZA and then scans the matching neighbourhood to resolve the
// isomeric state, since the sort key is the base ZA rather than the full KZA.
func (l *Library) Read(kza KZA) (*NuclideData, bool) {
	entry, ok := l.findIndexEntry(kza)
	if !ok {
		return nil, false
	}
	data, err := l.readRecord(entry)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (l *Library) findIndexEntry(kza KZA) (indexEntry, bool) {
	base := kza.BaseZA()
	n := len(l.index)
	i := sort.Search(n, func(i int) bool {
		return KZA(l.index[i].kza).BaseZA() >= base
	})
	for j := i; j < n && KZA(l.index[j].kza).BaseZA() == base; j++ {
		if l.index[j].kza == int32(kza) {
			return l.index[j], true
		}
	}
	return indexEntry{}, false
}

func (l *Library) readRecord(entry indexEntry) (*NuclideData, error) {
	if _, err := l.file.Seek(entry.offset, io.SeekStart); err != nil {
		return nil, &LibraryError{File: l.path, Offset: entry.offset, Msg: "seeking to record", Inner: err}
	}
	kza, err := readInt32(l.file)
	if err != nil {
		return nil, &LibraryError{File: l.path, Offset: entry.offset, Msg: "reading record kza", Inner: err}
	}
	nPaths, err := readInt32(l.file)
	if err != nil {
		return nil, &LibraryError{File: l.path, Offset: entry.offset, Msg: "reading record nPaths", Inner: err}
	}
	halfLife, err := readFloat32(l.file)
	if err != nil {
		return nil, &LibraryError{File: l.path, Offset: entry.offset, Msg: "reading half-life", Inner: err}
	}
	var energy [3]float64
	for i := 0; i < 3; i++ {
		e, err := readFloat32(l.file)
		if err != nil {
			return nil, &LibraryError{File: l.path, Offset: entry.offset, Msg: "reading decay energy", Inner: err}
		}
		energy[i] = float64(e)
	}

	data := &NuclideData{
		KZA:      KZA(kza),
		HalfLife: float64(halfLife),
		Energy:   energy,
		Paths:    make([]ReactionPath, 0, nPaths),
	}

	for p := int32(0); p < nPaths; p++ {
		daughter, err := readInt32(l.file)
		if err != nil {
			return nil, &LibraryError{File: l.path, Msg: "truncated reaction path", Inner: err}
		}
		elen, err := readInt32(l.file)
		if err != nil {
			return nil, &LibraryError{File: l.path, Msg: "truncated reaction path", Inner: err}
		}
		emitted, err := readString(l.file, elen)
		if err != nil {
			return nil, &LibraryError{File: l.path, Msg: "truncated reaction path", Inner: err}
		}
		xs := make([]float64, l.numGroups+1)
		for g := range xs {
			v, err := readFloat32(l.file)
			if err != nil {
				return nil, &LibraryError{File: l.path, Msg: "truncated cross-section vector", Inner: err}
			}
			xs[g] = float64(v)
		}
		data.Paths = append(data.Paths, ReactionPath{
			DaughterKZA: KZA(daughter),
			Emitted:     emitted,
			XS:          xs[:l.numGroups],
			DecayBranch: xs[l.numGroups],
		})
	}

	return data, nil
}
