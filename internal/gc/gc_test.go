package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CheckpointRetentionFloor_Returns_Oldest_When_Fewer_Than_K(t *testing.T) {
	t.Parallel()

	checkpoints := []VClock{{1, 0}, {2, 0}}
	floor := checkpointRetentionFloor(checkpoints, 5)
	assert.Equal(t, VClock{1, 0}, floor)
}

func Test_CheckpointRetentionFloor_Returns_Kth_Most_Recent(t *testing.T) {
	t.Parallel()

	checkpoints := []VClock{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	floor := checkpointRetentionFloor(checkpoints, 2)
	// sorted ascending: 1,2,3,4 -- Kth most recent (K=2) is the 2nd from the end: 3
	assert.Equal(t, VClock{3, 0}, floor)
}

func Test_CheckpointRetentionFloor_Empty_Returns_Zero_VClock(t *testing.T) {
	t.Parallel()

	assert.Equal(t, VClock{}, checkpointRetentionFloor(nil, 2))
}

func Test_CheckpointRetentionFloor_TieBreaks_Incomparable_By_Component_Sum(t *testing.T) {
	t.Parallel()

	// {2,1} and {1,2} are incomparable under the dominance order; sums are
	// equal (3 == 3) so sort must still produce a stable, deterministic
	// result without panicking regardless of tie.
	checkpoints := []VClock{{2, 1}, {1, 2}, {0, 0}}
	floor := checkpointRetentionFloor(checkpoints, 1)
	assert.NotNil(t, floor)
}

func Test_Coordinator_NotifyCheckpoint_Advances_Checkpoint_Floor(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(2, nil)

	c.NotifyCheckpoint(VClock{1, 0})
	c.NotifyCheckpoint(VClock{2, 0})
	c.NotifyCheckpoint(VClock{3, 0})

	assert.Equal(t, VClock{2, 0}, c.CheckpointFloor())
}

func Test_Coordinator_SetCheckpointCount_Recomputes_Floor(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)
	c.NotifyCheckpoint(VClock{1, 0})
	c.NotifyCheckpoint(VClock{2, 0})
	c.NotifyCheckpoint(VClock{3, 0})

	assert.Equal(t, VClock{3, 0}, c.CheckpointFloor())

	c.SetCheckpointCount(3)
	assert.Equal(t, VClock{1, 0}, c.CheckpointFloor())
}

func Test_Coordinator_WALFloor_Is_Min_Of_Checkpoint_Floor_And_Consumers(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)
	c.NotifyCheckpoint(VClock{5, 5})

	assert.Equal(t, VClock{5, 5}, c.WALFloor())

	consumer, err := c.RegisterConsumer("replica", VClock{2, 9}, TypeWAL)
	require.NoError(t, err)

	c.Run()
	assert.Equal(t, VClock{2, 5}, c.WALFloor())

	err = c.AdvanceConsumer(consumer, VClock{6, 9})
	require.NoError(t, err)
	assert.Equal(t, VClock{5, 5}, c.WALFloor())
}

func Test_Coordinator_UnregisterConsumer_Recomputes_Floor(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)
	c.NotifyCheckpoint(VClock{5, 5})

	consumer, err := c.RegisterConsumer("replica", VClock{1, 1}, TypeWAL)
	require.NoError(t, err)
	c.Run()
	assert.Equal(t, VClock{1, 1}, c.WALFloor())

	c.UnregisterConsumer(consumer)
	assert.Equal(t, VClock{5, 5}, c.WALFloor())
}

func Test_Coordinator_OnRun_Fires_Only_When_Floor_Changes(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)

	calls := 0
	c.OnRun(func(checkpointFloor, walFloor VClock) {
		calls++
	})

	c.NotifyCheckpoint(VClock{1, 0})
	assert.Equal(t, 1, calls)

	// SetCheckpointCount with the same effective floor shouldn't fire again.
	c.SetCheckpointCount(1)
	assert.Equal(t, 1, calls)

	c.NotifyCheckpoint(VClock{2, 0})
	assert.Equal(t, 2, calls)
}

func Test_Coordinator_AdvanceConsumer_Skips_Run_When_Not_At_Floor(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)
	c.NotifyCheckpoint(VClock{10, 10})

	_, err := c.RegisterConsumer("a", VClock{1, 1}, TypeWAL)
	require.NoError(t, err)
	b, err := c.RegisterConsumer("b", VClock{9, 9}, TypeWAL)
	require.NoError(t, err)
	c.Run()

	assert.Equal(t, VClock{1, 1}, c.WALFloor())

	calls := 0
	c.OnRun(func(VClock, VClock) { calls++ })

	// b does not hold the floor (a does), so advancing it must not run.
	err = c.AdvanceConsumer(b, VClock{9, 9})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, VClock{1, 1}, c.WALFloor())
}

func Test_Coordinator_RegisterConsumer_Does_Not_Trigger_Run(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(1, nil)
	c.NotifyCheckpoint(VClock{5, 5})

	calls := 0
	c.OnRun(func(VClock, VClock) { calls++ })

	_, err := c.RegisterConsumer("replica", VClock{1, 1}, TypeWAL)
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, VClock{5, 5}, c.WALFloor())
}
