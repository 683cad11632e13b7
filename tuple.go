package memtx

import (
	"fmt"
	"sync/atomic"
)

// FieldType is the declared type of one field in a [Format] vector.
// Ordering matters: [checkIndexDef] relies on ANY and ARRAY being the
// extreme values so "strictly between ANY and ARRAY" is a simple range
// check (§4.3.4).
type FieldType int

const (
	FieldTypeAny FieldType = iota
	FieldTypeUnsigned
	FieldTypeString
	FieldTypeInteger
	FieldTypeNumber
	FieldTypeBoolean
	FieldTypeArray
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeAny:
		return "any"
	case FieldTypeUnsigned:
		return "unsigned"
	case FieldTypeString:
		return "string"
	case FieldTypeInteger:
		return "integer"
	case FieldTypeNumber:
		return "number"
	case FieldTypeBoolean:
		return "boolean"
	case FieldTypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Format is the field-type vector a [Space] validates tuples against.
// A nil or empty Format accepts any tuple shape.
type Format []FieldType

// Tuple is a reference-counted, immutable byte payload plus the [Format] it
// was validated against (C1). The zero value is not usable; use [NewTuple].
//
// Every successful index insertion increments the refcount; every index
// removal decrements it. A tuple may also be held by one in-flight
// [Statement] (as NewTuple) and by any number of iterators. Unref at
// refcount 0 reclaims the payload so later access panics loudly instead of
// reading freed data silently.
type Tuple struct {
	format Format
	data   []byte
	bsize  int

	refcount atomic.Int32
	freed    atomic.Bool
}

// NewTuple allocates a tuple with refcount 0. The caller must [Tuple.Ref] it
// before handing it to anything that will [Tuple.Unref] it later (mirroring
// spec.md §4.1: "allocate and returns refcount = 0").
//
// data is retained, not copied: callers must not mutate it afterward, since
// a Tuple is defined to be immutable once allocated.
func NewTuple(format Format, data []byte) (*Tuple, error) {
	if data == nil {
		return nil, fmt.Errorf("new tuple: allocation failed: nil payload")
	}

	t := &Tuple{
		format: format,
		data:   data,
		bsize:  len(data),
	}

	return t, nil
}

// Ref increments the reference count and returns the tuple, so calls can be
// chained: `stmt.NewTuple = t.Ref()`.
func (t *Tuple) Ref() *Tuple {
	t.refcount.Add(1)

	return t
}

// Unref decrements the reference count. At zero, the tuple's backing array
// is released; any further access is a programming error.
func (t *Tuple) Unref() {
	n := t.refcount.Add(-1)
	if n < 0 {
		panic("memtx: tuple unref: refcount went negative")
	}

	if n == 0 {
		t.freed.Store(true)
		t.data = nil
	}
}

// RefCount returns the current reference count. Exposed for tests asserting
// Testable Property 3 (§8).
func (t *Tuple) RefCount() int32 {
	return t.refcount.Load()
}

// DataRange exposes the tuple's payload window. It panics if the tuple has
// already been freed (refcount reached zero) — spec.md models this as a
// diagnostic slot, but in Go a loud panic is preferable to returning a
// silently stale nil slice.
func (t *Tuple) DataRange() []byte {
	if t.freed.Load() {
		panic("memtx: tuple data range: use after free")
	}

	return t.data
}

// Bsize returns the stored payload size in bytes.
func (t *Tuple) Bsize() int {
	return t.bsize
}

// Validate checks the tuple's structural conformance against format.
// A nil or empty format accepts anything. Otherwise the tuple must have at
// least len(format) fields (callers supply fieldCount), and every non-null
// field whose format entry is not ANY must carry exactly that type.
func (t *Tuple) Validate(format Format, fieldCount int) error {
	if len(format) == 0 {
		return nil
	}

	if fieldCount < len(format) {
		return fmt.Errorf("tuple validate: expected %d fields, got %d", len(format), fieldCount)
	}

	fields, err := DecodeFields(t.DataRange())
	if err != nil {
		return fmt.Errorf("tuple validate: %w", err)
	}

	for i, ft := range format {
		if ft != FieldTypeAny && i < len(fields) && !fields[i].Null && fields[i].Type != ft {
			return fmt.Errorf("tuple validate: field %d has type %s, format wants %s", i, fields[i].Type, ft)
		}
	}

	return nil
}
