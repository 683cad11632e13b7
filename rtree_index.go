package memtx

import "fmt"

// rtreeIndex implements [Index] over a single ARRAY-typed, non-unique key
// part interpreted as a bounding box (pairs of lo/hi coordinates per
// dimension). Lookup is a linear scan with a bounding-box overlap test; the
// pack carries no R-tree library (§2.2 C2 grounding), and spec.md frames
// these as swappable backing structures behind a vtable, not a place to add
// a dependency purely for asymptotic lookup speed.
type rtreeIndex struct {
	def      *IndexDef
	entries  []*Tuple
	boxFn    func(t *Tuple) ([]float64, error)
	building bool
}

func newRTreeIndex(def *IndexDef, boxFn func(t *Tuple) ([]float64, error)) *rtreeIndex {
	return &rtreeIndex{def: def, boxFn: boxFn}
}

func (ix *rtreeIndex) Def() *IndexDef { return ix.def }

func (ix *rtreeIndex) Size() int { return len(ix.entries) }

func boxesOverlap(a, b []float64) bool {
	if len(a) != len(b) || len(a)%2 != 0 {
		return false
	}

	for i := 0; i < len(a); i += 2 {
		aLo, aHi := a[i], a[i+1]
		bLo, bHi := b[i], b[i+1]

		if aHi < bLo || bHi < aLo {
			return false
		}
	}

	return true
}

func (ix *rtreeIndex) Get(key Key, partCount int) (*Tuple, error) {
	if len(key) == 0 {
		return nil, nil
	}

	box := key[0].Array

	for _, t := range ix.entries {
		tb, err := ix.boxFn(t)
		if err != nil {
			return nil, err
		}

		if boxesEqual(tb, box) {
			return t, nil
		}
	}

	return nil, nil
}

func boxesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func (ix *rtreeIndex) indexOf(t *Tuple) int {
	for i, e := range ix.entries {
		if e == t {
			return i
		}
	}

	return -1
}

func (ix *rtreeIndex) Replace(old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if newT == nil {
		pos := ix.indexOf(old)
		if pos < 0 {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("rtree index %q", ix.def.Name)}
		}

		removed := ix.entries[pos]
		ix.entries = append(ix.entries[:pos], ix.entries[pos+1:]...)

		return removed, nil
	}

	if old != nil {
		pos := ix.indexOf(old)
		if pos >= 0 {
			ix.entries[pos] = newT
		} else {
			ix.entries = append(ix.entries, newT)
		}

		return old, nil
	}

	// RTREE is never unique (enforced by checkIndexDef), so every mode is
	// effectively a plain insert.
	ix.entries = append(ix.entries, newT)

	return nil, nil
}

func (ix *rtreeIndex) BeginBuild() {
	ix.building = true
	ix.entries = nil
}

func (ix *rtreeIndex) BuildNext(t *Tuple) error {
	if !ix.building {
		return NewError(CodeUnsupported, "rtree index %q: build_next outside build phase", ix.def.Name)
	}

	ix.entries = append(ix.entries, t)

	return nil
}

func (ix *rtreeIndex) EndBuild() error {
	ix.building = false

	return nil
}

func (ix *rtreeIndex) NewIterator(iterType IterType, key Key, partCount int) (Iterator, error) {
	switch iterType {
	case IterAll:
		tuples := make([]*Tuple, len(ix.entries))
		copy(tuples, ix.entries)

		return &sliceIterator{tuples: tuples}, nil
	case IterOverlaps:
		if len(key) == 0 {
			return nil, NewError(CodeUnsupported, "rtree index %q: overlaps iterator requires a box key", ix.def.Name)
		}

		box := key[0].Array

		var tuples []*Tuple

		for _, t := range ix.entries {
			tb, err := ix.boxFn(t)
			if err != nil {
				return nil, err
			}

			if boxesOverlap(tb, box) {
				tuples = append(tuples, t)
			}
		}

		return &sliceIterator{tuples: tuples}, nil
	default:
		return nil, &Error{Code: CodeUnsupported, Reason: fmt.Sprintf("rtree index %q: iterator type not supported", ix.def.Name)}
	}
}

func (ix *rtreeIndex) SnapshotIterator() (Iterator, error) {
	return ix.NewIterator(IterAll, nil, 0)
}
