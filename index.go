package memtx

// DupMode selects the uniqueness-handling discipline for a primary-key-shaped
// insertion (§4.2). Secondary indexes are always driven with [DupInsert] by
// the executor (§4.3.2 step 3).
type DupMode int

const (
	// DupInsert fails with [CodeDuplicateKey] on any uniqueness collision.
	DupInsert DupMode = iota
	// DupReplace requires a colliding tuple to exist under new's key; it is
	// replaced and returned. Absence fails with [CodeNotFound].
	DupReplace
	// DupReplaceOrInsert replaces a collision if one exists, otherwise inserts.
	DupReplaceOrInsert
)

func (m DupMode) String() string {
	switch m {
	case DupInsert:
		return "DUP_INSERT"
	case DupReplace:
		return "DUP_REPLACE"
	case DupReplaceOrInsert:
		return "DUP_REPLACE_OR_INSERT"
	default:
		return "DUP_UNKNOWN"
	}
}

// IterType selects the traversal order an [Iterator] walks in (§4.3.3 SELECT).
type IterType int

const (
	// IterEq walks all tuples exactly matching the given key.
	IterEq IterType = iota
	// IterAll walks every tuple in the index's natural order, ignoring key.
	IterAll
	// IterGE walks tuples with key >= the given key, in ascending order.
	IterGE
	// IterGT walks tuples with key > the given key, in ascending order.
	IterGT
	// IterLE walks tuples with key <= the given key, in descending order.
	IterLE
	// IterLT walks tuples with key < the given key, in descending order.
	IterLT
	// IterOverlaps is valid only for RTREE indexes: key is a bounding box and
	// the iterator yields every tuple whose box overlaps it.
	IterOverlaps
	// IterBitsAllSet is valid only for BITSET indexes.
	IterBitsAllSet
	// IterBitsAnySet is valid only for BITSET indexes.
	IterBitsAnySet
	// IterBitsAllNotSet is valid only for BITSET indexes.
	IterBitsAllNotSet
)

// Key is an ordered list of already-decoded key parts. The concrete Go type
// of each part depends on the field's [FieldType]; indexes compare parts
// with [KeyPart.Compare].
type Key []KeyPart

// KeyPart is a single decoded key-part value used for comparison, hashing,
// and bitset membership.
type KeyPart struct {
	// Uint is populated for FieldTypeUnsigned and bitset masks.
	Uint uint64
	// Int is populated for FieldTypeInteger.
	Int int64
	// Str is populated for FieldTypeString.
	Str string
	// Float is populated for FieldTypeNumber.
	Float float64
	// Bool is populated for FieldTypeBoolean.
	Bool bool
	// Array is populated for FieldTypeArray (used by RTREE bounding boxes:
	// pairs of coordinates, lo/hi per dimension).
	Array []float64
	// Type records which field above is meaningful.
	Type FieldType
	// Null marks an absent (nullable) key part.
	Null bool
}

// Compare returns -1, 0, or 1 comparing a to b. Parts must share Type;
// comparing across types panics, since index-def validation (§4.3.4)
// guarantees a key's parts always share the declared field type.
func (a KeyPart) Compare(b KeyPart) int {
	if a.Null || b.Null {
		switch {
		case a.Null && b.Null:
			return 0
		case a.Null:
			return -1
		default:
			return 1
		}
	}

	switch a.Type {
	case FieldTypeUnsigned:
		return compareOrdered(a.Uint, b.Uint)
	case FieldTypeInteger:
		return compareOrdered(a.Int, b.Int)
	case FieldTypeString:
		return compareOrdered(a.Str, b.Str)
	case FieldTypeNumber:
		return compareOrdered(a.Float, b.Float)
	case FieldTypeBoolean:
		return compareOrdered(boolToInt(a.Bool), boolToInt(b.Bool))
	default:
		panic("memtx: key part compare: unsupported field type for comparison")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func compareOrdered[T int | int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Iterator walks tuples in an index's order (§4.2, §5 "Ordering"). A borrowed
// position into its index: valid across any sequence of non-yielding
// operations, but must be reinitialized if the owning caller suspends
// (§5 "Suspension points") or if the index mutates during a yield.
type Iterator interface {
	// Next advances the iterator and returns the next tuple, or nil when
	// exhausted. Calling Next after exhaustion continues to return nil.
	Next() (*Tuple, error)
}

// Index is the polymorphic contract (C2) the executor drives every
// concrete index type (hash/tree/rtree/bitset) through.
//
// replace(old, new, mode) semantics (§4.2):
//   - new == nil: remove old; return old if removed, else [CodeNotFound].
//   - old == nil, new != nil: insert per mode (see [DupMode]).
//   - both != nil: atomically substitute old by new; return old.
type Index interface {
	// Def returns the index definition this index was built from.
	Def() *IndexDef

	// Replace performs the single mutation described above and returns the
	// tuple displaced from the index (nil if none), or an error.
	Replace(old, newT *Tuple, mode DupMode) (*Tuple, error)

	// Get performs an exact-match lookup by key. partCount lets callers
	// probe with a prefix of the index's key parts (used for unique
	// single-tuple lookups in DELETE/UPDATE/UPSERT).
	Get(key Key, partCount int) (*Tuple, error)

	// NewIterator initializes an [Iterator] of the given type positioned at
	// key (ignored for [IterAll]).
	NewIterator(iterType IterType, key Key, partCount int) (Iterator, error)

	// Size returns the number of tuples currently in the index.
	Size() int

	// BeginBuild / BuildNext / EndBuild drive the bulk-load discipline used
	// by build_next (§4.3, recovery mode "build_next") and by
	// build_secondary_key (§4.3.4).
	BeginBuild()
	BuildNext(t *Tuple) error
	EndBuild() error

	// SnapshotIterator returns an iterator suitable for checkpoint
	// snapshotting. The default is the same as NewIterator(IterAll, nil, 0);
	// _sequence_data substitutes a different one (C6, internal/seqdata).
	SnapshotIterator() (Iterator, error)
}
