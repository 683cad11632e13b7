package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Compare_Equal_VClocks(t *testing.T) {
	t.Parallel()

	cmp, comparable := Compare(VClock{1, 2, 3}, VClock{1, 2, 3})
	assert.True(t, comparable)
	assert.Equal(t, 0, cmp)
}

func Test_Compare_Strictly_Less(t *testing.T) {
	t.Parallel()

	cmp, comparable := Compare(VClock{1, 2}, VClock{1, 3})
	assert.True(t, comparable)
	assert.Equal(t, -1, cmp)
}

func Test_Compare_Strictly_Greater(t *testing.T) {
	t.Parallel()

	cmp, comparable := Compare(VClock{2, 2}, VClock{1, 2})
	assert.True(t, comparable)
	assert.Equal(t, 1, cmp)
}

func Test_Compare_Incomparable_When_Neither_Dominates(t *testing.T) {
	t.Parallel()

	_, comparable := Compare(VClock{2, 1}, VClock{1, 2})
	assert.False(t, comparable)
}

func Test_Compare_Treats_Missing_Components_As_Zero(t *testing.T) {
	t.Parallel()

	cmp, comparable := Compare(VClock{1}, VClock{1, 0, 0})
	assert.True(t, comparable)
	assert.Equal(t, 0, cmp)
}

func Test_LessEqual_And_Less(t *testing.T) {
	t.Parallel()

	assert.True(t, LessEqual(VClock{1, 2}, VClock{1, 2}))
	assert.False(t, Less(VClock{1, 2}, VClock{1, 2}))
	assert.True(t, Less(VClock{1, 1}, VClock{1, 2}))
	assert.False(t, LessEqual(VClock{1, 3}, VClock{1, 2}))
}

func Test_Equal_Ignores_Trailing_Zero_Length_Mismatch(t *testing.T) {
	t.Parallel()

	assert.True(t, Equal(VClock{1, 2}, VClock{1, 2, 0}))
}

func Test_Min_Returns_Componentwise_Minimum(t *testing.T) {
	t.Parallel()

	got := Min(VClock{5, 1, 9}, VClock{2, 7, 3}, VClock{8, 8, 1})
	assert.Equal(t, VClock{2, 1, 1}, got)
}

func Test_Min_Of_Empty_Is_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VClock{}, Min())
}

func Test_Clone_Is_Independent(t *testing.T) {
	t.Parallel()

	original := VClock{1, 2, 3}
	clone := original.Clone()
	clone[0] = 99

	assert.Equal(t, uint64(1), original[0])
}
