// Package seqdata backs the `_sequence_data` system space's substituted
// snapshot iterator (§4.3.4): "System table `_sequence_data` gets a hash
// index with a substituted snapshot-iterator that walks the live sequence
// cache rather than the hash table." Grounded on
// original_source/src/box/memtx_space.cc's sequence_data_index_create
// override.
//
// This package intentionally has no dependency on the root memtx package:
// it is a leaf holding only the live sequence value cache and its own
// snapshot walk, so the root package (which constructs indexes) can import
// it without an import cycle. The root package's seqdata_adapter.go wraps
// the Cache's Snapshot output as a memtx.Iterator.
package seqdata

import "sort"

// Entry is one live sequence's current value, keyed by sequence id.
type Entry struct {
	SequenceID int64
	Value      int64
}

// Cache is the live, in-memory table of sequence current-values that
// `_sequence_data`'s hash index is shadowed by for snapshotting purposes:
// ordinary DML against the index still goes through the hash table, but a
// checkpoint walks this cache directly so the snapshot reflects whatever
// `next_value`/`set_value` most recently committed, without needing the
// hash table's own tuple byte encoding round-tripped through a snapshot
// walk.
type Cache struct {
	values map[int64]int64
}

// NewCache creates an empty sequence-value cache.
func NewCache() *Cache {
	return &Cache{values: make(map[int64]int64)}
}

// Set records sequence id's current value.
func (c *Cache) Set(id int64, value int64) {
	c.values[id] = value
}

// Get returns sequence id's current value and whether it is known.
func (c *Cache) Get(id int64) (int64, bool) {
	v, ok := c.values[id]

	return v, ok
}

// Delete removes sequence id from the cache.
func (c *Cache) Delete(id int64) {
	delete(c.values, id)
}

// Snapshot returns every entry in ascending sequence-id order, a stable
// order a checkpoint walk can replay deterministically.
func (c *Cache) Snapshot() []Entry {
	out := make([]Entry, 0, len(c.values))

	for id, v := range c.values {
		out = append(out, Entry{SequenceID: id, Value: v})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })

	return out
}
