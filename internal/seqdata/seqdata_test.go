package seqdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Cache_Set_Get_Roundtrip(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Set(1, 100)
	c.Set(2, 200)

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, int64(100), v)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func Test_Cache_Set_Overwrites_Existing_Value(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Set(1, 100)
	c.Set(1, 150)

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, int64(150), v)
}

func Test_Cache_Delete_Removes_Entry(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Set(1, 100)
	c.Delete(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func Test_Cache_Snapshot_Is_Sorted_By_SequenceID(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Set(5, 50)
	c.Set(1, 10)
	c.Set(3, 30)

	got := c.Snapshot()
	assert.Equal(t, []Entry{
		{SequenceID: 1, Value: 10},
		{SequenceID: 3, Value: 30},
		{SequenceID: 5, Value: 50},
	}, got)
}

func Test_Cache_Snapshot_Of_Empty_Cache_Is_Empty(t *testing.T) {
	t.Parallel()

	c := NewCache()
	assert.Empty(t, c.Snapshot())
}
