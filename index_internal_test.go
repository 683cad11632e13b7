package memtx

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTuple(t *testing.T, payload string) *Tuple {
	t.Helper()

	tup, err := NewTuple(nil, []byte(payload))
	require.NoError(t, err)

	return tup
}

// hashKeyFn treats the tuple's whole payload as an opaque string key.
func hashKeyFn(t *Tuple) (string, error) {
	return string(t.DataRange()), nil
}

func Test_HashIndex_Replace_DupInsert_Rejects_Collision(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)

	a := newTestTuple(t, "k1")
	_, err := idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	b := newTestTuple(t, "k1")
	_, err = idx.Replace(nil, b, DupInsert)
	assert.Error(t, err)
}

func Test_HashIndex_Replace_DupReplace_Requires_Existing(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)

	a := newTestTuple(t, "k1")
	_, err := idx.Replace(nil, a, DupReplace)
	assert.Error(t, err)

	_, err = idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	b := newTestTuple(t, "k1")
	displaced, err := idx.Replace(nil, b, DupReplace)
	require.NoError(t, err)
	assert.Same(t, a, displaced)
}

func Test_HashIndex_Replace_DupReplaceOrInsert_Never_Errors(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)

	a := newTestTuple(t, "k1")
	displaced, err := idx.Replace(nil, a, DupReplaceOrInsert)
	require.NoError(t, err)
	assert.Nil(t, displaced)

	b := newTestTuple(t, "k1")
	displaced, err = idx.Replace(nil, b, DupReplaceOrInsert)
	require.NoError(t, err)
	assert.Same(t, a, displaced)
}

func Test_HashIndex_Replace_Substitute_Rejects_Collision_With_Other_Live_Entry(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)

	a := newTestTuple(t, "k1")
	_, err := idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	b := newTestTuple(t, "k2")
	_, err = idx.Replace(nil, b, DupInsert)
	require.NoError(t, err)

	// Substituting a for a tuple keyed "k2" must fail: it would silently
	// evict b, which a did not come from.
	bCollider := newTestTuple(t, "k2")
	_, err = idx.Replace(a, bCollider, DupInsert)
	require.Error(t, err)

	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, CodeDuplicateKey, memErr.Code)

	// Both a (still keyed "k1") and b (still keyed "k2") must remain live
	// and untouched.
	assert.Equal(t, 2, idx.Size())

	iter, err := idx.NewIterator(IterAll, nil, 0)
	require.NoError(t, err)

	var seen []string
	for {
		tup, err := iter.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		seen = append(seen, string(tup.DataRange()))
	}
	assert.ElementsMatch(t, []string{"k1", "k2"}, seen)
}

func Test_HashIndex_Replace_Delete_Absent_Is_NotFound(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)
	ghost := newTestTuple(t, "ghost")

	_, err := idx.Replace(ghost, nil, DupInsert)
	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, CodeNotFound, memErr.Code)
}

func Test_HashIndex_BuildNext_Rejects_Duplicates_And_Outside_Build(t *testing.T) {
	t.Parallel()

	idx := newHashIndex(&IndexDef{Name: "h", Unique: true}, hashKeyFn)

	err := idx.BuildNext(newTestTuple(t, "k1"))
	assert.Error(t, err)

	idx.BeginBuild()
	require.NoError(t, idx.BuildNext(newTestTuple(t, "k1")))
	assert.Error(t, idx.BuildNext(newTestTuple(t, "k1")))
	require.NoError(t, idx.EndBuild())
	assert.Equal(t, 1, idx.Size())
}

// intTreeKeyFn parses the payload as a decimal integer for the tree's single
// unsigned key part.
func intTreeKeyFn(t *Tuple) (Key, error) {
	n, err := strconv.ParseUint(string(t.DataRange()), 10, 64)
	if err != nil {
		return nil, err
	}

	return Key{{Type: FieldTypeUnsigned, Uint: n}}, nil
}

func newIntTreeIndex(unique bool) *treeIndex {
	return newTreeIndex(&IndexDef{Name: "t", Unique: unique}, intTreeKeyFn)
}

func Test_TreeIndex_Maintains_Sorted_Order(t *testing.T) {
	t.Parallel()

	idx := newIntTreeIndex(false)

	for _, s := range []string{"5", "1", "3", "2", "4"} {
		_, err := idx.Replace(nil, newTestTuple(t, s), DupInsert)
		require.NoError(t, err)
	}

	iter, err := idx.NewIterator(IterAll, nil, 0)
	require.NoError(t, err)

	var seen []string
	for {
		tup, err := iter.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		seen = append(seen, string(tup.DataRange()))
	}

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, seen)
}

func Test_TreeIndex_IterGE_IterGT_IterLE_IterLT(t *testing.T) {
	t.Parallel()

	idx := newIntTreeIndex(false)

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		_, err := idx.Replace(nil, newTestTuple(t, s), DupInsert)
		require.NoError(t, err)
	}

	key := Key{{Type: FieldTypeUnsigned, Uint: 3}}

	collect := func(it Iterator) []string {
		var out []string
		for {
			tup, err := it.Next()
			require.NoError(t, err)
			if tup == nil {
				break
			}
			out = append(out, string(tup.DataRange()))
		}
		return out
	}

	ge, err := idx.NewIterator(IterGE, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, collect(ge))

	gt, err := idx.NewIterator(IterGT, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, collect(gt))

	le, err := idx.NewIterator(IterLE, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, collect(le))

	lt, err := idx.NewIterator(IterLT, key, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, collect(lt))
}

func Test_TreeIndex_Unique_Rejects_Duplicate_Key_On_Insert(t *testing.T) {
	t.Parallel()

	idx := newIntTreeIndex(true)

	_, err := idx.Replace(nil, newTestTuple(t, "1"), DupInsert)
	require.NoError(t, err)

	_, err = idx.Replace(nil, newTestTuple(t, "1"), DupInsert)
	assert.Error(t, err)
}

func Test_TreeIndex_Replace_Substitute_Rejects_Collision_With_Other_Live_Entry(t *testing.T) {
	t.Parallel()

	idx := newIntTreeIndex(true)

	a := newTestTuple(t, "1")
	_, err := idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	b := newTestTuple(t, "2")
	_, err = idx.Replace(nil, b, DupInsert)
	require.NoError(t, err)

	// Substituting a (currently keyed 1) for a tuple keyed 2 must fail: it
	// would silently evict b, which a did not come from.
	collider := newTestTuple(t, "2")
	_, err = idx.Replace(a, collider, DupInsert)
	require.Error(t, err)

	var memErr *Error
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, CodeDuplicateKey, memErr.Code)

	assert.Equal(t, 2, idx.Size())

	iter, err := idx.NewIterator(IterAll, nil, 0)
	require.NoError(t, err)

	var seen []string
	for {
		tup, err := iter.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		seen = append(seen, string(tup.DataRange()))
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func Test_TreeIndex_NonUnique_Allows_Duplicate_Keys(t *testing.T) {
	t.Parallel()

	idx := newIntTreeIndex(false)

	_, err := idx.Replace(nil, newTestTuple(t, "1"), DupInsert)
	require.NoError(t, err)

	_, err = idx.Replace(nil, newTestTuple(t, "1"), DupInsert)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Size())
}

func boxFromPayload(t *Tuple) ([]float64, error) {
	parts := strings.Split(string(t.DataRange()), ",")
	box := make([]float64, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		box[i] = v
	}

	return box, nil
}

func Test_RTreeIndex_IterOverlaps_Finds_Intersecting_Boxes(t *testing.T) {
	t.Parallel()

	idx := newRTreeIndex(&IndexDef{Name: "r"}, boxFromPayload)

	idx.BeginBuild()
	require.NoError(t, idx.BuildNext(newTestTuple(t, "0,10")))
	require.NoError(t, idx.BuildNext(newTestTuple(t, "20,30")))
	require.NoError(t, idx.BuildNext(newTestTuple(t, "5,15")))
	require.NoError(t, idx.EndBuild())

	queryKey := Key{{Type: FieldTypeArray, Array: []float64{8, 9}}}

	iter, err := idx.NewIterator(IterOverlaps, queryKey, 1)
	require.NoError(t, err)

	var seen []string
	for {
		tup, err := iter.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		seen = append(seen, string(tup.DataRange()))
	}

	assert.ElementsMatch(t, []string{"0,10", "5,15"}, seen)
}

func Test_RTreeIndex_Replace_Remove_Without_New(t *testing.T) {
	t.Parallel()

	idx := newRTreeIndex(&IndexDef{Name: "r"}, boxFromPayload)

	a := newTestTuple(t, "0,10")
	_, err := idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	removed, err := idx.Replace(a, nil, DupInsert)
	require.NoError(t, err)
	assert.Same(t, a, removed)
	assert.Equal(t, 0, idx.Size())
}

func maskFromPayload(t *Tuple) (uint64, error) {
	return strconv.ParseUint(string(t.DataRange()), 10, 64)
}

func Test_BitsetIndex_AllSet_AnySet_AllNotSet(t *testing.T) {
	t.Parallel()

	idx := newBitsetIndex(&IndexDef{Name: "b"}, maskFromPayload)

	idx.BeginBuild()
	require.NoError(t, idx.BuildNext(newTestTuple(t, "3"))) // 011
	require.NoError(t, idx.BuildNext(newTestTuple(t, "5"))) // 101
	require.NoError(t, idx.BuildNext(newTestTuple(t, "8"))) // 1000
	require.NoError(t, idx.EndBuild())

	want := Key{{Type: FieldTypeUnsigned, Uint: 1}}

	allSet, err := idx.NewIterator(IterBitsAllSet, want, 1)
	require.NoError(t, err)
	var allSetSeen []string
	for {
		tup, err := allSet.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		allSetSeen = append(allSetSeen, string(tup.DataRange()))
	}
	assert.ElementsMatch(t, []string{"3", "5"}, allSetSeen)

	anySet, err := idx.NewIterator(IterBitsAnySet, want, 1)
	require.NoError(t, err)
	var anySetSeen []string
	for {
		tup, err := anySet.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		anySetSeen = append(anySetSeen, string(tup.DataRange()))
	}
	assert.ElementsMatch(t, []string{"3", "5"}, anySetSeen)

	allNotSet, err := idx.NewIterator(IterBitsAllNotSet, want, 1)
	require.NoError(t, err)
	var allNotSetSeen []string
	for {
		tup, err := allNotSet.Next()
		require.NoError(t, err)
		if tup == nil {
			break
		}
		allNotSetSeen = append(allNotSetSeen, string(tup.DataRange()))
	}
	assert.Equal(t, []string{"8"}, allNotSetSeen)
}

func Test_BitsetIndex_Replace_Remove_Without_New(t *testing.T) {
	t.Parallel()

	idx := newBitsetIndex(&IndexDef{Name: "b"}, maskFromPayload)

	a := newTestTuple(t, "3")
	_, err := idx.Replace(nil, a, DupInsert)
	require.NoError(t, err)

	removed, err := idx.Replace(a, nil, DupInsert)
	require.NoError(t, err)
	assert.Same(t, a, removed)
	assert.Equal(t, 0, idx.Size())
}
