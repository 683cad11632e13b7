package memtx

import "fmt"

// hashIndex implements [Index] over a Go map keyed by an encoded key string
// (§4.2). HASH indexes are always unique (enforced by [checkIndexDef]), so
// each bucket holds exactly one tuple.
type hashIndex struct {
	def     *IndexDef
	entries map[string]*Tuple
	keyFn   func(t *Tuple) (string, error)
	building bool
}

func newHashIndex(def *IndexDef, keyFn func(t *Tuple) (string, error)) *hashIndex {
	return &hashIndex{
		def:     def,
		entries: make(map[string]*Tuple),
		keyFn:   keyFn,
	}
}

func (h *hashIndex) Def() *IndexDef { return h.def }

func (h *hashIndex) Size() int { return len(h.entries) }

func encodeKey(key Key, partCount int) string {
	if partCount > len(key) {
		partCount = len(key)
	}

	buf := make([]byte, 0, 32*partCount)

	for i := range partCount {
		p := key[i]

		buf = append(buf, byte(p.Type))

		if p.Null {
			buf = append(buf, 0)
			continue
		}

		buf = append(buf, 1)

		switch p.Type {
		case FieldTypeUnsigned:
			buf = appendUint64(buf, p.Uint)
		case FieldTypeInteger:
			buf = appendUint64(buf, uint64(p.Int))
		case FieldTypeString:
			buf = append(buf, []byte(p.Str)...)
		case FieldTypeNumber:
			buf = appendUint64(buf, uint64(p.Float))
		case FieldTypeBoolean:
			if p.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}

		buf = append(buf, 0xFF) // part separator
	}

	return string(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	for range 8 {
		buf = append(buf, byte(v))
		v >>= 8
	}

	return buf
}

func (h *hashIndex) keyOf(t *Tuple) (string, error) {
	return h.keyFn(t)
}

func (h *hashIndex) Get(key Key, partCount int) (*Tuple, error) {
	k := encodeKey(key, partCount)

	t, ok := h.entries[k]
	if !ok {
		return nil, nil
	}

	return t, nil
}

func (h *hashIndex) Replace(old, newT *Tuple, mode DupMode) (*Tuple, error) {
	if newT == nil {
		if old == nil {
			return nil, NewError(CodeUnsupported, "hash index %q: replace: both old and new are nil", h.def.Name)
		}

		k, err := h.keyOf(old)
		if err != nil {
			return nil, err
		}

		existing, ok := h.entries[k]
		if !ok {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("hash index %q", h.def.Name)}
		}

		delete(h.entries, k)

		return existing, nil
	}

	newKey, err := h.keyOf(newT)
	if err != nil {
		return nil, err
	}

	if old != nil {
		// Atomic substitution: remove old's slot (by old's own key, which may
		// differ from new's key for a primary-key-preserving replace is not
		// possible since PK equality is what made old "the match"; for
		// secondaries old and new share no guaranteed key relationship, so
		// both slots are touched).
		oldKey, err := h.keyOf(old)
		if err != nil {
			return nil, err
		}

		// DupInsert never overwrites a live entry it didn't come from: a
		// secondary replace that would collide with some other tuple already
		// occupying newKey must fail, not silently evict it (dup_replace_mode
		// only governs the primary key; secondaries are always DUP_INSERT).
		if existing, collision := h.entries[newKey]; collision && newKey != oldKey && existing != old && mode == DupInsert {
			return nil, &Error{Code: CodeDuplicateKey, Reason: fmt.Sprintf("hash index %q", h.def.Name)}
		}

		if oldKey != newKey {
			delete(h.entries, oldKey)
		}

		h.entries[newKey] = newT

		return old, nil
	}

	existing, collision := h.entries[newKey]

	switch mode {
	case DupInsert:
		if collision {
			return nil, &Error{Code: CodeDuplicateKey, Reason: fmt.Sprintf("hash index %q", h.def.Name)}
		}

		h.entries[newKey] = newT

		return nil, nil
	case DupReplace:
		if !collision {
			return nil, &Error{Code: CodeNotFound, Reason: fmt.Sprintf("hash index %q", h.def.Name)}
		}

		h.entries[newKey] = newT

		return existing, nil
	case DupReplaceOrInsert:
		h.entries[newKey] = newT

		return existing, nil
	default:
		return nil, NewError(CodeUnsupported, "hash index %q: unknown dup mode", h.def.Name)
	}
}

func (h *hashIndex) BeginBuild() {
	h.building = true
	h.entries = make(map[string]*Tuple)
}

func (h *hashIndex) BuildNext(t *Tuple) error {
	if !h.building {
		return NewError(CodeUnsupported, "hash index %q: build_next outside build phase", h.def.Name)
	}

	k, err := h.keyOf(t)
	if err != nil {
		return err
	}

	if _, collision := h.entries[k]; collision {
		return &Error{Code: CodeDuplicateKey, Reason: fmt.Sprintf("hash index %q build", h.def.Name)}
	}

	h.entries[k] = t

	return nil
}

func (h *hashIndex) EndBuild() error {
	h.building = false

	return nil
}

type sliceIterator struct {
	tuples []*Tuple
	pos    int
}

func (it *sliceIterator) Next() (*Tuple, error) {
	if it.pos >= len(it.tuples) {
		return nil, nil
	}

	t := it.tuples[it.pos]
	it.pos++

	return t, nil
}

func (h *hashIndex) NewIterator(iterType IterType, key Key, partCount int) (Iterator, error) {
	switch iterType {
	case IterAll:
		tuples := make([]*Tuple, 0, len(h.entries))
		for _, t := range h.entries {
			tuples = append(tuples, t)
		}

		return &sliceIterator{tuples: tuples}, nil
	case IterEq:
		t, err := h.Get(key, partCount)
		if err != nil {
			return nil, err
		}

		if t == nil {
			return &sliceIterator{}, nil
		}

		return &sliceIterator{tuples: []*Tuple{t}}, nil
	default:
		return nil, &Error{Code: CodeUnsupported, Reason: fmt.Sprintf("hash index %q: iterator type not supported", h.def.Name)}
	}
}

func (h *hashIndex) SnapshotIterator() (Iterator, error) {
	return h.NewIterator(IterAll, nil, 0)
}
