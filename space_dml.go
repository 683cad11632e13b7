package memtx

import "fmt"

// replaceFunc is the per-space "replace" strategy (§4.3, §9 "Recovery-mode
// function pointer"): a tagged variant of write disciplines, switched at
// well-defined DDL edges ([Space.AddPrimaryKey], [Space.DropPrimaryKey]),
// never an open interface hierarchy.
type replaceFunc func(stmt *Statement, old, newT *Tuple, mode DupMode) (*Tuple, error)

func (s *Space) replaceFn() replaceFunc {
	switch s.mode {
	case modeNoKeys:
		return s.noKeysReplace
	case modeBuildNext:
		return s.buildNextReplace
	case modePrimaryKey:
		return s.primaryKeyReplace
	default:
		return s.allKeysReplace
	}
}

func (s *Space) noKeysReplace(*Statement, *Tuple, *Tuple, DupMode) (*Tuple, error) {
	return nil, &RecoveryViolation{Reason: fmt.Sprintf("space %q: replace called with no primary key", s.Name)}
}

// buildNextReplace implements the bulk-load-from-snapshot discipline.
// Requires old == nil and mode == DupInsert; no uniqueness check is
// performed at this level (the primary index's own BuildNext may still
// reject structurally impossible input, e.g. a HASH build_next with a
// colliding key, but the space itself does not re-derive or double-check
// uniqueness here — see DESIGN.md).
func (s *Space) buildNextReplace(stmt *Statement, old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if old != nil || mode != DupInsert {
		return nil, &RecoveryViolation{Reason: fmt.Sprintf("space %q: build_next requires old==nil and DUP_INSERT", s.Name)}
	}

	primary := s.Primary()
	if primary == nil {
		return nil, &RecoveryViolation{Reason: fmt.Sprintf("space %q: build_next with no primary index", s.Name)}
	}

	if err := primary.BuildNext(newT); err != nil {
		return nil, err
	}

	newT.Ref()
	s.bsize += newT.Bsize()

	stmt.NewTuple = newT
	stmt.markSavepoint()

	return nil, nil
}

// primaryKeyReplace implements the WAL-replay discipline: only the primary
// index is driven; secondaries are rebuilt at end-of-recovery.
func (s *Space) primaryKeyReplace(stmt *Statement, old, newT *Tuple, mode DupMode) (*Tuple, error) {
	primary := s.Primary()
	if primary == nil {
		return nil, &RecoveryViolation{Reason: fmt.Sprintf("space %q: primary_key replace with no primary index", s.Name)}
	}

	effectiveOld, err := primary.Replace(old, newT, mode)
	if err != nil {
		return nil, err
	}

	s.applyBsizeDelta(effectiveOld, newT)
	stmt.OldTuple = effectiveOld
	stmt.NewTuple = newT
	stmt.markSavepoint()

	return effectiveOld, nil
}

func (s *Space) applyBsizeDelta(oldT, newT *Tuple) {
	if newT != nil {
		s.bsize += newT.Bsize()
	}

	if oldT != nil {
		s.bsize -= oldT.Bsize()
	}
}

// allKeysReplace is the hardest path (§4.3.2): atomic multi-index mutation
// with reservation-backed, infallible rollback.
func (s *Space) allKeysReplace(stmt *Statement, old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if old == nil && newT == nil {
		return nil, NewError(CodeUnsupported, "space %q: replace requires old or new tuple", s.Name)
	}

	reserveSize := ReserveExtentsBeforeDelete
	if newT != nil {
		reserveSize = ReserveExtentsBeforeReplace
	}

	if err := s.reserve.Reserve(reserveSize); err != nil {
		return nil, err
	}

	if s.faultInjector != nil && s.faultInjector.Armed(InjectBeforePrimaryReplace) {
		return nil, &Error{Code: CodeInjection, Reason: "before primary replace"}
	}

	primary := s.Primary()
	if primary == nil {
		return nil, &RecoveryViolation{Reason: fmt.Sprintf("space %q: all_keys replace with no primary index", s.Name)}
	}

	s.reserve.Take()

	effectiveOld, err := primary.Replace(old, newT, mode)
	if err != nil {
		return nil, err
	}

	touched := []Index{primary}

	for _, sec := range s.secondaries() {
		if s.faultInjector != nil && s.faultInjector.Armed(InjectBeforeSecondaryReplace) {
			s.rollback(touched, effectiveOld, newT)

			return nil, &Error{Code: CodeInjection, Reason: "before secondary replace"}
		}

		s.reserve.Take()

		_, err := sec.Replace(effectiveOld, newT, DupInsert)
		if err != nil {
			s.rollback(touched, effectiveOld, newT)

			return nil, err
		}

		touched = append(touched, sec)
	}

	s.applyBsizeDelta(effectiveOld, newT)
	stmt.OldTuple = effectiveOld
	stmt.NewTuple = newT
	stmt.markSavepoint()

	return effectiveOld, nil
}

// rollback undoes every index in touched, in reverse order, restoring each
// to its pre-call contents (§4.3.2 step 3, §9 "Exception-driven rollback").
// The extent reservation taken before the forward pass guarantees this
// compensating pass cannot itself fail with an allocation error; if a
// compensating Replace nonetheless returns an error, the space is left in
// an inconsistent state that no caller can safely continue from, so this
// panics rather than returning — per spec.md §9's instruction to "assert
// this or shut down on the impossible path".
func (s *Space) rollback(touched []Index, effectiveOld, newT *Tuple) {
	for i := len(touched) - 1; i >= 0; i-- {
		_, err := touched[i].Replace(newT, effectiveOld, DupInsert)
		if err != nil {
			panic(fmt.Sprintf("memtx: space %q: compensating replace failed during rollback, index left inconsistent: %v", s.Name, err))
		}
	}
}

// --- §4.3.3 The five DML operations ---

func (s *Space) executeInsertOrReplace(stmt *Statement, data []byte, mode DupMode) (*Tuple, error) {
	t, err := NewTuple(s.Format, data)
	if err != nil {
		return nil, err
	}

	t.Ref()

	_, err = s.replaceFn()(stmt, nil, t, mode)
	if err != nil {
		t.Unref()

		return nil, err
	}

	return t, nil
}

// ExecuteInsert performs a pure INSERT: fails with [CodeDuplicateKey] if the
// primary key already exists.
func (s *Space) ExecuteInsert(data []byte) (*Statement, *Tuple, error) {
	stmt := NewStatement(OpInsert)

	t, err := s.executeInsertOrReplace(stmt, data, DupInsert)

	return stmt, t, err
}

// ExecuteReplace performs REPLACE: DUP_REPLACE_OR_INSERT semantics.
func (s *Space) ExecuteReplace(data []byte) (*Statement, *Tuple, error) {
	stmt := NewStatement(OpReplace)

	t, err := s.executeInsertOrReplace(stmt, data, DupReplaceOrInsert)

	return stmt, t, err
}

// ExecuteDelete resolves indexID (primary or any unique index), validates
// the key's part count exactly matches the index's definition, locates the
// existing tuple, and removes it. Returns (nil, nil) if absent — absence is
// not an error (§7 "Absence").
func (s *Space) ExecuteDelete(indexID int, key Key) (*Statement, *Tuple, error) {
	stmt := NewStatement(OpDelete)

	idx := s.Index(indexID)
	if idx == nil {
		return stmt, nil, NewError(CodeUnsupported, "space %q: unknown index %d", s.Name, indexID)
	}

	if err := validateKeyPartCount(idx.Def(), key); err != nil {
		return stmt, nil, err
	}

	found, err := idx.Get(key, len(idx.Def().Parts))
	if err != nil {
		return stmt, nil, err
	}

	if found == nil {
		return stmt, nil, nil
	}

	old, err := s.replaceFn()(stmt, found, nil, DupInsert)
	if err != nil {
		return stmt, nil, err
	}

	return stmt, old, nil
}

// ExecuteUpdate resolves indexID (must be unique), validates the key,
// fetches the old tuple (absence returns (nil, nil), not an error), applies
// ops strictly (any op that doesn't fit is an error), and replaces via
// DUP_REPLACE. Ops that would change the primary key fail with
// [CodeCantUpdatePrimaryKey].
func (s *Space) ExecuteUpdate(indexID int, key Key, ops UpdateOps) (*Statement, *Tuple, error) {
	stmt := NewStatement(OpUpdate)

	idx := s.Index(indexID)
	if idx == nil {
		return stmt, nil, NewError(CodeUnsupported, "space %q: unknown index %d", s.Name, indexID)
	}

	if !idx.Def().Unique {
		return stmt, nil, NewError(CodeUnsupported, "space %q: update requires a unique index", s.Name)
	}

	if err := validateKeyPartCount(idx.Def(), key); err != nil {
		return stmt, nil, err
	}

	oldTuple, err := idx.Get(key, len(idx.Def().Parts))
	if err != nil {
		return stmt, nil, err
	}

	if oldTuple == nil {
		return stmt, nil, nil
	}

	oldFields, err := DecodeFields(oldTuple.DataRange())
	if err != nil {
		return stmt, nil, err
	}

	newFields, mask, err := applyUpdateOps(oldFields, s.Format, ops, true)
	if err != nil {
		return stmt, nil, err
	}

	if pkDef := s.Primary().Def(); pkCouldHaveChanged(pkDef, mask) {
		oldKey, err := fieldsToKey(pkDef, oldFields)
		if err != nil {
			return stmt, nil, err
		}

		newKey, err := fieldsToKey(pkDef, newFields)
		if err != nil {
			return stmt, nil, err
		}

		if !keysEqual(oldKey, newKey) {
			return stmt, nil, NewError(CodeCantUpdatePrimaryKey, "space %q: update would change primary key %q", s.Name, pkDef.Name)
		}
	}

	newData, err := EncodeFields(newFields)
	if err != nil {
		return stmt, nil, err
	}

	newTuple, err := NewTuple(s.Format, newData)
	if err != nil {
		return stmt, nil, err
	}

	newTuple.Ref()

	_, err = s.replaceFn()(stmt, oldTuple, newTuple, DupReplace)
	if err != nil {
		newTuple.Unref()

		return stmt, nil, err
	}

	return stmt, newTuple, nil
}

// ExecuteUpsert validates the supplied tuple first (even if the row already
// exists), extracts the primary key, and either inserts (row absent) or
// applies the upsert executor's relaxed (non-strict) op semantics (row
// present). If applying ops would change the primary key, the upsert is
// silently dropped: the error is logged, no new tuple is built, the
// statement's tuples are cleared, and ExecuteUpsert returns (stmt, nil) with
// no error — §4.3.3 "UPSERT never returns a tuple to the caller."
func (s *Space) ExecuteUpsert(data []byte, ops UpdateOps) (*Statement, error) {
	stmt := NewStatement(OpUpsert)

	candidate, err := NewTuple(s.Format, data)
	if err != nil {
		return stmt, err
	}

	if err := candidate.Validate(s.Format, fieldCountOf(candidate)); err != nil {
		return stmt, err
	}

	primary := s.Primary()
	if primary == nil {
		return stmt, &RecoveryViolation{Reason: fmt.Sprintf("space %q: upsert with no primary index", s.Name)}
	}

	pkDef := primary.Def()

	candidateFields, err := DecodeFields(data)
	if err != nil {
		return stmt, err
	}

	candidateKey, err := fieldsToKey(pkDef, candidateFields)
	if err != nil {
		return stmt, err
	}

	oldTuple, err := primary.Get(candidateKey, len(pkDef.Parts))
	if err != nil {
		return stmt, err
	}

	if oldTuple == nil {
		if err := validateUpdateOpsStructure(ops); err != nil {
			return stmt, err
		}

		candidate.Ref()

		_, err := s.replaceFn()(stmt, nil, candidate, DupReplaceOrInsert)
		if err != nil {
			candidate.Unref()

			return stmt, err
		}

		return stmt, nil
	}

	oldFields, err := DecodeFields(oldTuple.DataRange())
	if err != nil {
		return stmt, err
	}

	newFields, mask, err := applyUpdateOps(oldFields, s.Format, ops, false)
	if err != nil {
		return stmt, err
	}

	if pkCouldHaveChanged(pkDef, mask) {
		newKey, err := fieldsToKey(pkDef, newFields)
		if err == nil && !keysEqual(candidateKey, newKey) {
			// Primary key changed: log the error and do nothing, mirroring
			// the reference implementation's diag_set(ER_CANT_UPDATE_PRIMARY_KEY)
			// + diag_log() — the client never sees this error, only the log.
			pkErr := NewError(CodeCantUpdatePrimaryKey, "space %q: primary key %q would change, dropping upsert as no-op", s.Name, pkDef.Name)
			s.log("%v", pkErr)
			stmt.OldTuple = nil
			stmt.NewTuple = nil

			return stmt, nil
		}
	}

	newData, err := EncodeFields(newFields)
	if err != nil {
		return stmt, err
	}

	newTuple, err := NewTuple(s.Format, newData)
	if err != nil {
		return stmt, err
	}

	newTuple.Ref()

	_, err = s.replaceFn()(stmt, oldTuple, newTuple, DupReplaceOrInsert)
	if err != nil {
		newTuple.Unref()

		return stmt, err
	}

	return stmt, nil
}

// ExecuteSelect resolves indexID, validates the iterator type and key,
// initializes an iterator, skips offset rows, and emits at most limit rows
// in the index's natural order.
func (s *Space) ExecuteSelect(indexID int, iterType IterType, key Key, offset, limit int) ([]*Tuple, error) {
	idx := s.Index(indexID)
	if idx == nil {
		return nil, NewError(CodeUnsupported, "space %q: unknown index %d", s.Name, indexID)
	}

	it, err := idx.NewIterator(iterType, key, len(key))
	if err != nil {
		return nil, err
	}

	for range offset {
		t, err := it.Next()
		if err != nil {
			return nil, err
		}

		if t == nil {
			return nil, nil
		}
	}

	var out []*Tuple

	for limit < 0 || len(out) < limit {
		t, err := it.Next()
		if err != nil {
			return nil, err
		}

		if t == nil {
			break
		}

		out = append(out, t)
	}

	return out, nil
}

func validateKeyPartCount(def *IndexDef, key Key) error {
	if len(key) != len(def.Parts) {
		return NewError(CodeUnsupported, "index %q: expected %d key parts, got %d", def.Name, len(def.Parts), len(key))
	}

	return nil
}

func fieldsToKey(def *IndexDef, fields []FieldValue) (Key, error) {
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

func keysEqual(a, b Key) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].Compare(b[i]) != 0 {
			return false
		}
	}

	return true
}

// pkCouldHaveChanged reports whether mask (the set of field indices the
// upsert executor actually touched) overlaps any field the primary key
// reads from.
func pkCouldHaveChanged(pkDef *IndexDef, mask uint64) bool {
	for _, part := range pkDef.Parts {
		if part.FieldIndex < 64 && mask&(1<<uint(part.FieldIndex)) != 0 {
			return true
		}
	}

	return false
}
