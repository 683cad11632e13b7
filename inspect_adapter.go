package memtx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calvinalkan/memtx/internal/inspect"
)

// keyString renders a Key as a diagnostic string for the mirror's primary
// key column; it is not used for comparison anywhere in the engine itself.
func keyString(key Key) string {
	parts := make([]string, len(key))

	for i, kp := range key {
		switch {
		case kp.Null:
			parts[i] = "null"
		case kp.Type == FieldTypeString:
			parts[i] = kp.Str
		case kp.Type == FieldTypeInteger:
			parts[i] = fmt.Sprintf("%d", kp.Int)
		case kp.Type == FieldTypeBoolean:
			parts[i] = fmt.Sprintf("%t", kp.Bool)
		case kp.Type == FieldTypeNumber:
			parts[i] = fmt.Sprintf("%g", kp.Float)
		default:
			parts[i] = fmt.Sprintf("%d", kp.Uint)
		}
	}

	return strings.Join(parts, "/")
}

// RebuildInspectMirror repopulates mirror from a full scan of s's primary
// index, for ad-hoc SQL diagnostics against an otherwise key-only engine
// (C6-adjacent: a decorator over the primary's snapshot iterator, same
// shape as [WrapSequenceDataIndex], but read-only and external to the
// space rather than wired into its index slots).
func (s *Space) RebuildInspectMirror(ctx context.Context, mirror *inspect.Mirror) error {
	primary := s.Primary()
	if primary == nil {
		return fmt.Errorf("space %q: rebuild inspect mirror: no primary index", s.Name)
	}

	iter, err := primary.SnapshotIterator()
	if err != nil {
		return fmt.Errorf("space %q: rebuild inspect mirror: %w", s.Name, err)
	}

	var rows []inspect.TupleRow

	for {
		t, err := iter.Next()
		if err != nil {
			return fmt.Errorf("space %q: rebuild inspect mirror: %w", s.Name, err)
		}

		if t == nil {
			break
		}

		fields, err := DecodeFields(t.DataRange())
		if err != nil {
			return fmt.Errorf("space %q: rebuild inspect mirror: decode tuple: %w", s.Name, err)
		}

		key, err := keyFromTuple(primary.Def(), t)
		if err != nil {
			return fmt.Errorf("space %q: rebuild inspect mirror: %w", s.Name, err)
		}

		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("space %q: rebuild inspect mirror: marshal fields: %w", s.Name, err)
		}

		rows = append(rows, inspect.TupleRow{
			PrimaryKey: keyString(key),
			FieldCount: len(fields),
			Bsize:      t.Bsize(),
			JSON:       string(fieldsJSON),
		})
	}

	if err := mirror.Rebuild(ctx, rows); err != nil {
		return fmt.Errorf("space %q: rebuild inspect mirror: %w", s.Name, err)
	}

	return nil
}
