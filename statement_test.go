package memtx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/memtx"
)

func Test_NewStatement_Starts_Without_Savepoint(t *testing.T) {
	t.Parallel()

	stmt := memtx.NewStatement(memtx.OpInsert)
	assert.False(t, stmt.HasSavepoint())
	assert.Equal(t, memtx.OpInsert, stmt.Op)
}

func Test_Statement_Unref_Releases_Both_Tuples(t *testing.T) {
	t.Parallel()

	old, err := memtx.NewTuple(nil, []byte("old"))
	require.NoError(t, err)
	old.Ref()

	newT, err := memtx.NewTuple(nil, []byte("new"))
	require.NoError(t, err)
	newT.Ref()

	stmt := memtx.NewStatement(memtx.OpReplace)
	stmt.OldTuple = old
	stmt.NewTuple = newT

	stmt.Unref()

	assert.Nil(t, stmt.OldTuple)
	assert.Nil(t, stmt.NewTuple)
	assert.Equal(t, int32(0), old.RefCount())
	assert.Equal(t, int32(0), newT.RefCount())
}

func Test_Statement_Unref_Safe_When_Tuples_Are_Nil(t *testing.T) {
	t.Parallel()

	stmt := memtx.NewStatement(memtx.OpUpsert)

	assert.NotPanics(t, func() {
		stmt.Unref()
	})
}

func Test_OpType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INSERT", memtx.OpInsert.String())
	assert.Equal(t, "SELECT", memtx.OpSelect.String())
	assert.Equal(t, "UNKNOWN", memtx.OpType(99).String())
}
