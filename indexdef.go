package memtx

import "fmt"

// IndexType enumerates the four backing structures the executor drives
// through the [Index] vtable (§1 "the individual index data structures").
type IndexType int

const (
	IndexTypeHash IndexType = iota
	IndexTypeTree
	IndexTypeRTree
	IndexTypeBitset
)

func (t IndexType) String() string {
	switch t {
	case IndexTypeHash:
		return "HASH"
	case IndexTypeTree:
		return "TREE"
	case IndexTypeRTree:
		return "RTREE"
	case IndexTypeBitset:
		return "BITSET"
	default:
		return "UNKNOWN"
	}
}

// KeyPartDef describes one part of an [IndexDef]'s key: which tuple field it
// reads, that field's declared type, and whether it may be null.
type KeyPartDef struct {
	FieldIndex int
	FieldType  FieldType
	Nullable   bool
}

// IndexDef fully describes an index before it is built (§3 "Index-def").
type IndexDef struct {
	ID       int
	Name     string
	Type     IndexType
	Unique   bool
	Parts    []KeyPartDef
	Options  map[string]string
	IsPrimary bool
}

// checkIndexDef enforces the per-type constraints from §4.3.4:
//
//   - HASH must be unique.
//   - TREE is unconstrained except for field-type restrictions.
//   - RTREE must be single-part, non-unique, ARRAY-typed.
//   - BITSET must be single-part, non-unique, UNSIGNED or STRING.
//   - Primary keys may not be nullable.
//   - Only TREE may have nullable parts.
//   - Field types must lie strictly between ANY and ARRAY (exclusive) for
//     HASH/TREE.
func checkIndexDef(def *IndexDef) error {
	if def == nil {
		return NewError(CodeModifyIndex, "index definition is nil")
	}

	if len(def.Parts) == 0 {
		return NewError(CodeModifyIndex, "index %q: key must have at least one part", def.Name)
	}

	for i, part := range def.Parts {
		if def.IsPrimary && part.Nullable {
			return &Error{Code: CodeNullablePrimary, Reason: fmt.Sprintf("index %q part %d", def.Name, i)}
		}

		if part.Nullable && def.Type != IndexTypeTree {
			return NewError(CodeModifyIndex, "index %q: only TREE indexes may have nullable parts", def.Name)
		}

		switch def.Type {
		case IndexTypeHash, IndexTypeTree:
			if part.FieldType <= FieldTypeAny || part.FieldType >= FieldTypeArray {
				return NewError(CodeModifyIndex,
					"index %q: field type %s not allowed for %s (must be strictly between any and array)",
					def.Name, part.FieldType, def.Type)
			}
		}
	}

	switch def.Type {
	case IndexTypeHash:
		if !def.Unique {
			return NewError(CodeModifyIndex, "index %q: HASH index must be unique", def.Name)
		}
	case IndexTypeTree:
		// Unconstrained beyond the per-part checks above.
	case IndexTypeRTree:
		if len(def.Parts) != 1 {
			return NewError(CodeModifyIndex, "index %q: RTREE index must have exactly one part", def.Name)
		}

		if def.Unique {
			return NewError(CodeModifyIndex, "index %q: RTREE index must not be unique", def.Name)
		}

		if def.Parts[0].FieldType != FieldTypeArray {
			return NewError(CodeModifyIndex, "index %q: RTREE index part must be ARRAY-typed", def.Name)
		}
	case IndexTypeBitset:
		if len(def.Parts) != 1 {
			return NewError(CodeModifyIndex, "index %q: BITSET index must have exactly one part", def.Name)
		}

		if def.Unique {
			return NewError(CodeModifyIndex, "index %q: BITSET index must not be unique", def.Name)
		}

		pt := def.Parts[0].FieldType
		if pt != FieldTypeUnsigned && pt != FieldTypeString {
			return &Error{
				Code:   CodeIndexType,
				Reason: fmt.Sprintf("index %q: BITSET index part must be UNSIGNED or STRING", def.Name),
			}
		}
	default:
		return &Error{Code: CodeIndexType, Reason: fmt.Sprintf("index %q: unknown index type", def.Name)}
	}

	return nil
}
