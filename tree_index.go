package memtx

import (
	"fmt"
	"sort"
)

// treeIndex implements [Index] as a key-sorted slice with binary-search
// lookups, matching spec.md §9's allowance that a reimplementation need only
// provide "efficient membership, ordered iteration, and min-lookup" — the
// same bar the GC consumer registry (C8) is held to. TREE indexes may be
// unique or not, and unlike HASH may hold nullable parts (§4.3.4).
type treeIndex struct {
	def      *IndexDef
	entries  []*Tuple
	keyFn    func(t *Tuple) (Key, error)
	building bool
}

func newTreeIndex(def *IndexDef, keyFn func(t *Tuple) (Key, error)) *treeIndex {
	return &treeIndex{def: def, keyFn: keyFn}
}

func (ix *treeIndex) Def() *IndexDef { return ix.def }

func (ix *treeIndex) Size() int { return len(ix.entries) }

func compareKeys(a, b Key, partCount int) int {
	for i := range partCount {
		if i >= len(a) || i >= len(b) {
			return 0
		}

		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}

	return 0
}

func (ix *treeIndex) keyOf(t *Tuple) Key {
	k, err := ix.keyFn(t)
	if err != nil {
		// keyFn failures are caller configuration errors (bad format), not a
		// representable runtime state for a tree already holding the tuple;
		// surfaced at insertion time instead (see Replace/BuildNext).
		return nil
	}

	return k
}

// lowerBound returns the index of the first entry whose key is >= key
// (comparing the first partCount parts).
func (ix *treeIndex) lowerBound(key Key, partCount int) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		ek, err := ix.keyFn(ix.entries[i])
		if err != nil {
			return false
		}

		return compareKeys(ek, key, partCount) >= 0
	})
}

func (ix *treeIndex) Get(key Key, partCount int) (*Tuple, error) {
	pos := ix.lowerBound(key, partCount)
	if pos >= len(ix.entries) {
		return nil, nil
	}

	ek, err := ix.keyFn(ix.entries[pos])
	if err != nil {
		return nil, err
	}

	if compareKeys(ek, key, partCount) == 0 {
		return ix.entries[pos], nil
	}

	return nil, nil
}

func (ix *treeIndex) findExact(t *Tuple) (int, bool, error) {
	k, err := ix.keyFn(t)
	if err != nil {
		return 0, false, err
	}

	pos := ix.lowerBound(k, len(k))

	for pos < len(ix.entries) {
		ek, err := ix.keyFn(ix.entries[pos])
		if err != nil {
			return 0, false, err
		}

		cmp := compareKeys(ek, k, len(k))
		if cmp != 0 {
			break
		}

		if ix.entries[pos] == t {
			return pos, true, nil
		}

		pos++
	}

	return 0, false, nil
}

func (ix *treeIndex) insertAt(t *Tuple) {
	k, _ := ix.keyFn(t)
	pos := ix.lowerBound(k, len(k))
	ix.entries = append(ix.entries, nil)
	copy(ix.entries[pos+1:], ix.entries[pos:])
	ix.entries[pos] = t
}

func (ix *treeIndex) removeAt(pos int) *Tuple {
	t := ix.entries[pos]
	ix.entries = append(ix.entries[:pos], ix.entries[pos+1:]...)

	return t
}

func (ix *treeIndex) Replace(old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if newT == nil {
		pos, found, err := ix.findExact(old)
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("tree index %q", ix.def.Name)}
		}

		return ix.removeAt(pos), nil
	}

	newKey, err := ix.keyFn(newT)
	if err != nil {
		return nil, err
	}

	if old != nil {
		pos, found, err := ix.findExact(old)
		if err != nil {
			return nil, err
		}

		// DupInsert never overwrites a live entry it didn't come from: a
		// secondary replace that would collide with some other tuple already
		// occupying newKey must fail, not silently evict it (dup_replace_mode
		// only governs the primary key; secondaries are always DUP_INSERT).
		if ix.def.Unique && mode == DupInsert {
			cpos := ix.lowerBound(newKey, len(newKey))
			if cpos < len(ix.entries) {
				ek, err := ix.keyFn(ix.entries[cpos])
				if err != nil {
					return nil, err
				}

				if compareKeys(ek, newKey, len(newKey)) == 0 && ix.entries[cpos] != old {
					return nil, &Error{Code: CodeDuplicateKey, Reason: fmt.Sprintf("tree index %q", ix.def.Name)}
				}
			}
		}

		if found {
			ix.removeAt(pos)
		}

		ix.insertAt(newT)

		return old, nil
	}

	var collisionPos = -1

	if ix.def.Unique {
		pos := ix.lowerBound(newKey, len(newKey))
		if pos < len(ix.entries) {
			ek, err := ix.keyFn(ix.entries[pos])
			if err != nil {
				return nil, err
			}

			if compareKeys(ek, newKey, len(newKey)) == 0 {
				collisionPos = pos
			}
		}
	}

	switch mode {
	case DupInsert:
		if collisionPos >= 0 {
			return nil, &Error{Code: CodeDuplicateKey, Reason: fmt.Sprintf("tree index %q", ix.def.Name)}
		}

		ix.insertAt(newT)

		return nil, nil
	case DupReplace:
		if collisionPos < 0 {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("tree index %q", ix.def.Name)}
		}

		displaced := ix.removeAt(collisionPos)
		ix.insertAt(newT)

		return displaced, nil
	case DupReplaceOrInsert:
		var displaced *Tuple
		if collisionPos >= 0 {
			displaced = ix.removeAt(collisionPos)
		}

		ix.insertAt(newT)

		return displaced, nil
	default:
		return nil, NewError(CodeUnsupported, "tree index %q: unknown dup mode", ix.def.Name)
	}
}

func (ix *treeIndex) BeginBuild() {
	ix.building = true
	ix.entries = nil
}

func (ix *treeIndex) BuildNext(t *Tuple) error {
	if !ix.building {
		return NewError(CodeUnsupported, "tree index %q: build_next outside build phase", ix.def.Name)
	}

	ix.insertAt(t)

	return nil
}

func (ix *treeIndex) EndBuild() error {
	ix.building = false

	return nil
}

func (ix *treeIndex) NewIterator(iterType IterType, key Key, partCount int) (Iterator, error) {
	switch iterType {
	case IterAll, IterGE, IterGT:
		start := 0
		if iterType != IterAll {
			start = ix.lowerBound(key, partCount)
			if iterType == IterGT {
				for start < len(ix.entries) {
					ek, err := ix.keyFn(ix.entries[start])
					if err != nil {
						return nil, err
					}

					if compareKeys(ek, key, partCount) != 0 {
						break
					}

					start++
				}
			}
		}

		tuples := make([]*Tuple, len(ix.entries)-start)
		copy(tuples, ix.entries[start:])

		return &sliceIterator{tuples: tuples}, nil
	case IterEq:
		t, err := ix.Get(key, partCount)
		if err != nil {
			return nil, err
		}

		if t == nil {
			return &sliceIterator{}, nil
		}

		return &sliceIterator{tuples: []*Tuple{t}}, nil
	case IterLE, IterLT:
		end := ix.lowerBound(key, partCount)
		if iterType == IterLE {
			for end < len(ix.entries) {
				ek, err := ix.keyFn(ix.entries[end])
				if err != nil {
					return nil, err
				}

				if compareKeys(ek, key, partCount) != 0 {
					break
				}

				end++
			}
		}

		tuples := make([]*Tuple, end)

		for i := range tuples {
			tuples[i] = ix.entries[end-1-i]
		}

		return &sliceIterator{tuples: tuples}, nil
	default:
		return nil, &Error{Code: CodeUnsupported, Reason: fmt.Sprintf("tree index %q: iterator type not supported", ix.def.Name)}
	}
}

func (ix *treeIndex) SnapshotIterator() (Iterator, error) {
	return ix.NewIterator(IterAll, nil, 0)
}
