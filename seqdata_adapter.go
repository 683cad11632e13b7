package memtx

import "github.com/calvinalkan/memtx/internal/seqdata"

// seqDataIndex decorates a base [Index], substituting its snapshot
// iterator with a walk of the live sequence-value cache (§4.3.4
// "_sequence_data gets a hash index with a substituted snapshot-iterator
// that walks the live sequence cache rather than the hash table", C6).
// Every other method is promoted unchanged from the embedded Index.
type seqDataIndex struct {
	Index
	cache  *seqdata.Cache
	format Format
}

// WrapSequenceDataIndex wraps base so its SnapshotIterator walks cache
// instead of base's own storage. Used exclusively for the `_sequence_data`
// system space; see [Space.CreateSequenceDataIndex].
func WrapSequenceDataIndex(base Index, cache *seqdata.Cache, format Format) Index {
	return &seqDataIndex{Index: base, cache: cache, format: format}
}

func (s *seqDataIndex) SnapshotIterator() (Iterator, error) {
	entries := s.cache.Snapshot()
	tuples := make([]*Tuple, 0, len(entries))

	for _, e := range entries {
		fields := []FieldValue{
			{Type: FieldTypeInteger, Int: e.SequenceID},
			{Type: FieldTypeInteger, Int: e.Value},
		}

		data, err := EncodeFields(fields)
		if err != nil {
			return nil, err
		}

		t, err := NewTuple(s.format, data)
		if err != nil {
			return nil, err
		}

		tuples = append(tuples, t)
	}

	return &sliceIterator{tuples: tuples}, nil
}

// CreateSequenceDataIndex builds def as the `_sequence_data` system space's
// primary index, substituting its snapshot iterator to walk cache directly
// (§4.3.4). Ordinary DML continues to go through def's own hash storage;
// only checkpoint/backfill snapshotting is redirected.
func (s *Space) CreateSequenceDataIndex(def *IndexDef, phase RecoveryPhase, cache *seqdata.Cache) error {
	return s.addPrimaryKey(def, phase, func(idx Index) Index {
		return WrapSequenceDataIndex(idx, cache, s.Format)
	})
}
