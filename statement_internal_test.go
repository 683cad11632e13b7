package memtx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_MarkSavepoint_Is_Idempotent(t *testing.T) {
	t.Parallel()

	stmt := NewStatement(OpInsert)
	stmt.markSavepoint()
	first := stmt.Savepoint

	stmt.markSavepoint()

	assert.Equal(t, first, stmt.Savepoint)
	assert.True(t, stmt.HasSavepoint())
}
