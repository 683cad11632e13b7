package memtx

import "fmt"

// bitsetIndex implements [Index] over a single UNSIGNED or STRING key part
// treated as a bitmask (strings are hashed into a uint64 mask). It supports
// the three BITS_* iterator types in addition to plain equality.
type bitsetIndex struct {
	def      *IndexDef
	entries  []*Tuple
	maskFn   func(t *Tuple) (uint64, error)
	building bool
}

func newBitsetIndex(def *IndexDef, maskFn func(t *Tuple) (uint64, error)) *bitsetIndex {
	return &bitsetIndex{def: def, maskFn: maskFn}
}

func (ix *bitsetIndex) Def() *IndexDef { return ix.def }

func (ix *bitsetIndex) Size() int { return len(ix.entries) }

func (ix *bitsetIndex) maskOf(key Key) uint64 {
	if len(key) == 0 {
		return 0
	}

	return key[0].Uint
}

func (ix *bitsetIndex) Get(key Key, partCount int) (*Tuple, error) {
	want := ix.maskOf(key)

	for _, t := range ix.entries {
		m, err := ix.maskFn(t)
		if err != nil {
			return nil, err
		}

		if m == want {
			return t, nil
		}
	}

	return nil, nil
}

func (ix *bitsetIndex) indexOf(t *Tuple) int {
	for i, e := range ix.entries {
		if e == t {
			return i
		}
	}

	return -1
}

func (ix *bitsetIndex) Replace(old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if newT == nil {
		pos := ix.indexOf(old)
		if pos < 0 {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("bitset index %q", ix.def.Name)}
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

	// BITSET is never unique (enforced by checkIndexDef).
	ix.entries = append(ix.entries, newT)

	return nil, nil
}

func (ix *bitsetIndex) BeginBuild() {
	ix.building = true
	ix.entries = nil
}

func (ix *bitsetIndex) BuildNext(t *Tuple) error {
	if !ix.building {
		return NewError(CodeUnsupported, "bitset index %q: build_next outside build phase", ix.def.Name)
	}

	ix.entries = append(ix.entries, t)

	return nil
}

func (ix *bitsetIndex) EndBuild() error {
	ix.building = false

	return nil
}

func (ix *bitsetIndex) NewIterator(iterType IterType, key Key, partCount int) (Iterator, error) {
	switch iterType {
	case IterAll:
		tuples := make([]*Tuple, len(ix.entries))
		copy(tuples, ix.entries)

		return &sliceIterator{tuples: tuples}, nil
	case IterBitsAllSet, IterBitsAnySet, IterBitsAllNotSet:
		want := ix.maskOf(key)

		var tuples []*Tuple

		for _, t := range ix.entries {
			m, err := ix.maskFn(t)
			if err != nil {
				return nil, err
			}

			var match bool

			switch iterType {
			case IterBitsAllSet:
				match = m&want == want
			case IterBitsAnySet:
				match = m&want != 0
			case IterBitsAllNotSet:
				match = m&want == 0
			}

			if match {
				tuples = append(tuples, t)
			}
		}

		return &sliceIterator{tuples: tuples}, nil
	default:
		return nil, &Error{Code: CodeUnsupported, Reason: fmt.Sprintf("bitset index %q: iterator type not supported", ix.def.Name)}
	}
}

func (ix *bitsetIndex) SnapshotIterator() (Iterator, error) {
	return ix.NewIterator(IterAll, nil, 0)
}
