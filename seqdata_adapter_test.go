package memtx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/memtx"
	"github.com/calvinalkan/memtx/internal/seqdata"
)

func Test_CreateSequenceDataIndex_SnapshotIterator_Walks_Cache_Not_DML(t *testing.T) {
	t.Parallel()

	format := memtx.Format{memtx.FieldTypeInteger, memtx.FieldTypeInteger}
	space := memtx.NewSpace("_sequence_data", format)

	cache := seqdata.NewCache()

	err := space.CreateSequenceDataIndex(&memtx.IndexDef{
		Name:      "primary",
		Type:      memtx.IndexTypeHash,
		Unique:    true,
		IsPrimary: true,
		Parts:     []memtx.KeyPartDef{{FieldIndex: 0, FieldType: memtx.FieldTypeInteger}},
	}, memtx.RecoveryNormal, cache)
	require.NoError(t, err)

	// Ordinary DML writes through the hash table, not the cache.
	data, err := memtx.EncodeFields([]memtx.FieldValue{
		{Type: memtx.FieldTypeInteger, Int: 1},
		{Type: memtx.FieldTypeInteger, Int: 111},
	})
	require.NoError(t, err)

	_, _, err = space.ExecuteInsert(data)
	require.NoError(t, err)

	// The cache, not DML, drives what a checkpoint snapshot actually sees.
	cache.Set(7, 700)
	cache.Set(2, 200)

	iter, err := space.Index(0).SnapshotIterator()
	require.NoError(t, err)

	var seen []memtx.FieldValue
	for {
		tuple, err := iter.Next()
		require.NoError(t, err)
		if tuple == nil {
			break
		}

		fields, err := memtx.DecodeFields(tuple.DataRange())
		require.NoError(t, err)
		seen = append(seen, fields...)
	}

	assert.Equal(t, []memtx.FieldValue{
		{Type: memtx.FieldTypeInteger, Int: 2},
		{Type: memtx.FieldTypeInteger, Int: 200},
		{Type: memtx.FieldTypeInteger, Int: 7},
		{Type: memtx.FieldTypeInteger, Int: 700},
	}, seen)
}

func Test_WrapSequenceDataIndex_Get_And_Replace_Still_Use_Base_Storage(t *testing.T) {
	t.Parallel()

	format := memtx.Format{memtx.FieldTypeInteger, memtx.FieldTypeInteger}
	space := memtx.NewSpace("_sequence_data", format)
	cache := seqdata.NewCache()

	err := space.CreateSequenceDataIndex(&memtx.IndexDef{
		Name:      "primary",
		Type:      memtx.IndexTypeHash,
		Unique:    true,
		IsPrimary: true,
		Parts:     []memtx.KeyPartDef{{FieldIndex: 0, FieldType: memtx.FieldTypeInteger}},
	}, memtx.RecoveryNormal, cache)
	require.NoError(t, err)

	data, err := memtx.EncodeFields([]memtx.FieldValue{
		{Type: memtx.FieldTypeInteger, Int: 9},
		{Type: memtx.FieldTypeInteger, Int: 900},
	})
	require.NoError(t, err)

	_, _, err = space.ExecuteInsert(data)
	require.NoError(t, err)

	rows, err := space.ExecuteSelect(0, memtx.IterEq, memtx.Key{{Type: memtx.FieldTypeInteger, Int: 9}}, 0, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
