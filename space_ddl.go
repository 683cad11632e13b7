package memtx

import "fmt"

// CheckFormat scans the entire primary index and validates every tuple
// against newFormat, failing synchronously on the first mismatch
// (§4.3.4 "check_format"). A space with no primary index trivially passes.
func (s *Space) CheckFormat(newFormat Format) error {
	primary := s.Primary()
	if primary == nil {
		return nil
	}

	it, err := primary.SnapshotIterator()
	if err != nil {
		return fmt.Errorf("space %q: check format: %w", s.Name, err)
	}

	for {
		t, err := it.Next()
		if err != nil {
			return fmt.Errorf("space %q: check format: %w", s.Name, err)
		}

		if t == nil {
			return nil
		}

		if err := t.Validate(newFormat, fieldCountOf(t)); err != nil {
			return fmt.Errorf("space %q: check format: %w", s.Name, err)
		}
	}
}

// buildSecondaryKey iterates primary, validates each tuple against
// newFormat, then inserts it into idx with DUP_INSERT; any validation
// failure aborts the build (§4.3.4 "build_secondary_key"). Shared by
// [Space.CreateIndex] (building a brand new index against the space's
// current format) and callers rebuilding an index under a format change.
func buildSecondaryKey(primary Index, newFormat Format, idx Index) error {
	if primary == nil {
		return idx.EndBuild()
	}

	it, err := primary.SnapshotIterator()
	if err != nil {
		return fmt.Errorf("build secondary key %q: %w", idx.Def().Name, err)
	}

	for {
		t, err := it.Next()
		if err != nil {
			return fmt.Errorf("build secondary key %q: %w", idx.Def().Name, err)
		}

		if t == nil {
			break
		}

		if err := t.Validate(newFormat, fieldCountOf(t)); err != nil {
			return fmt.Errorf("build secondary key %q: %w", idx.Def().Name, err)
		}

		if _, err := idx.Replace(nil, t, DupInsert); err != nil {
			return fmt.Errorf("build secondary key %q: %w", idx.Def().Name, err)
		}

		t.Ref()
	}

	return nil
}

// TruncatePrepare is the staged state [Space.PrepareTruncate] hands to
// [Space.CommitTruncate].
type TruncatePrepare struct {
	oldPrimary Index
	defs       []*IndexDef
}

// PrepareTruncate captures the current index definitions so TRUNCATE can
// rebuild them empty; the replace discipline ([Space.mode]) is inherited
// unchanged, matching §4.3.4's "prepare_truncate inherits the replace
// discipline from the old space".
func (s *Space) PrepareTruncate() (*TruncatePrepare, error) {
	if len(s.indexes) == 0 {
		return nil, NewError(CodeUnsupported, "space %q: truncate requires a primary index", s.Name)
	}

	defs := make([]*IndexDef, len(s.indexes))
	for i, idx := range s.indexes {
		defs[i] = idx.Def()
	}

	return &TruncatePrepare{oldPrimary: s.Primary(), defs: defs}, nil
}

// CommitTruncate walks the old primary unreferencing every tuple, then
// rebuilds every index empty from the captured definitions
// (§4.3.4 "commit_truncate").
func (s *Space) CommitTruncate(prep *TruncatePrepare) error {
	if prep.oldPrimary != nil {
		it, err := prep.oldPrimary.SnapshotIterator()
		if err != nil {
			return fmt.Errorf("space %q: commit truncate: %w", s.Name, err)
		}

		for {
			t, err := it.Next()
			if err != nil {
				return fmt.Errorf("space %q: commit truncate: %w", s.Name, err)
			}

			if t == nil {
				break
			}

			t.Unref()
		}
	}

	newIndexes := make([]Index, len(prep.defs))

	for i, def := range prep.defs {
		idx, err := createIndex(def)
		if err != nil {
			return fmt.Errorf("space %q: commit truncate: rebuild index %q: %w", s.Name, def.Name, err)
		}

		newIndexes[i] = idx
	}

	s.indexes = newIndexes
	s.bsize = 0

	return nil
}

// AlterPrepare is the staged state [Space.PrepareAlter] hands to
// [Space.CommitAlter].
type AlterPrepare struct {
	newName   string
	newFormat Format
}

// PrepareAlter checks the new format is compatible with existing data,
// relaxed entirely when the space is empty (§4.3.4 "with an is-empty
// relaxation"), and stages the new name/format. The replace discipline is
// untouched: alter never changes [Space.mode].
func (s *Space) PrepareAlter(newName string, newFormat Format) (*AlterPrepare, error) {
	primary := s.Primary()
	if primary != nil && primary.Size() > 0 {
		if err := s.CheckFormat(newFormat); err != nil {
			return nil, fmt.Errorf("space %q: prepare alter: %w", s.Name, err)
		}
	}

	return &AlterPrepare{newName: newName, newFormat: newFormat}, nil
}

// CommitAlter applies the staged rename/reformat. If no indexes remain the
// old space is effectively pruned (nothing to carry forward but the name
// and format); otherwise bsize carries forward unchanged
// (§4.3.4 "commit_alter").
func (s *Space) CommitAlter(prep *AlterPrepare) error {
	s.Name = prep.newName
	s.Format = prep.newFormat

	return nil
}
