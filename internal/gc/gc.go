package gc

import (
	"sort"
	"sync"
)

// Logger is the minimal diagnostic sink the coordinator writes to. A nil
// Logger discards output.
type Logger interface {
	Log(format string, args ...any)
}

// CleanupFunc is an engine's cleanup callback, invoked under the latch with
// the freshly recomputed floors whenever they advance (§4.4 "run").
type CleanupFunc func(checkpointFloor, walFloor VClock)

// Coordinator decides when on-disk checkpoints and WAL segments may be
// removed (§4.4), grounded directly on original_source/src/box/gc.h's
// gc_state / gc_run / gc_checkpoint_count.
//
// Not safe for concurrent use beyond what the latch itself serializes: per
// spec.md §5, consumer-set mutations are never interleaved with cleanup
// except across cooperative yield points, which the latch covers. A Go
// embedding of this model that does use real goroutines should hold an
// external mutex around Register/Unregister/Advance/NotifyCheckpoint calls
// in addition to relying on the latch for Run.
type Coordinator struct {
	registry        *Registry
	checkpointCount int
	checkpoints     []VClock

	checkpointFloor VClock
	walFloor        VClock

	latch  sync.Mutex
	onRun  []CleanupFunc
	logger Logger
}

// NewCoordinator creates a coordinator retaining the K most recent
// checkpoints.
func NewCoordinator(checkpointCount int, logger Logger) *Coordinator {
	if logger == nil {
		logger = discardLogger{}
	}

	return &Coordinator{
		registry:        NewRegistry(),
		checkpointCount: checkpointCount,
		logger:          logger,
	}
}

type discardLogger struct{}

func (discardLogger) Log(string, ...any) {}

// OnRun registers a cleanup callback invoked whenever Run finds the floors
// have advanced. Callbacks run under the latch, one at a time, in
// registration order.
func (c *Coordinator) OnRun(fn CleanupFunc) {
	c.onRun = append(c.onRun, fn)
}

// NotifyCheckpoint records a newly created checkpoint's vclock and runs
// (§4.4 "notifications from the snapshot manager about existing
// checkpoints").
func (c *Coordinator) NotifyCheckpoint(v VClock) {
	c.checkpoints = append(c.checkpoints, v.Clone())
	c.Run()
}

// SetCheckpointCount updates K and runs (§4.4 "set_checkpoint_count").
func (c *Coordinator) SetCheckpointCount(n int) {
	c.checkpointCount = n
	c.Run()
}

// RegisterConsumer inserts a new consumer (§4.4 "consumer_register"). Per
// spec.md, registration alone does not trigger Run: a new pin can only
// lower the floors, never require anything new to be cleaned up.
func (c *Coordinator) RegisterConsumer(name string, vclock VClock, typ ConsumerType) (*Consumer, error) {
	return c.registry.Register(name, vclock, typ)
}

// UnregisterConsumer removes consumer and runs (§4.4 "consumer_unregister").
func (c *Coordinator) UnregisterConsumer(consumer *Consumer) {
	c.registry.Unregister(consumer)
	c.Run()
}

// AdvanceConsumer updates consumer's pinned vclock and runs only if the
// consumer's previous vclock matched the current WAL floor in at least one
// component — the floor is a component-wise minimum, so a consumer that
// supplied none of its components cannot move it by advancing.
func (c *Coordinator) AdvanceConsumer(consumer *Consumer, vclock VClock) error {
	old := consumer.VClock()
	heldFloor := false

	for i := 0; i < maxLen(old, c.walFloor); i++ {
		if old.at(i) == c.walFloor.at(i) {
			heldFloor = true

			break
		}
	}

	if err := c.registry.Advance(consumer, vclock); err != nil {
		return err
	}

	if heldFloor {
		c.Run()
	}

	return nil
}

// Consumers exposes the registry's non-yielding iterator (§4.4 "Iterator
// over consumers, valid only across non-yielding code").
func (c *Coordinator) Consumers() *Registry {
	return c.registry
}

// checkpointRetentionFloor computes the K-th most recent checkpoint vclock,
// or the oldest if fewer than K checkpoints exist (§4.4 "Core rule").
// Checkpoints are sorted ascending by the dominance partial order where
// comparable, falling back to a deterministic component-sum tie-break for
// any pair the vclock partial order leaves incomparable — a pragmatic
// total order spec.md does not itself need, since real checkpoint vclocks
// are expected to be chronologically dominant, but Go's sort requires a
// consistent Less for all pairs.
func checkpointRetentionFloor(checkpoints []VClock, k int) VClock {
	if len(checkpoints) == 0 {
		return VClock{}
	}

	sorted := make([]VClock, len(checkpoints))
	copy(sorted, checkpoints)

	sort.Slice(sorted, func(i, j int) bool {
		cmp, comparable := Compare(sorted[i], sorted[j])
		if comparable {
			return cmp < 0
		}

		return sum(sorted[i]) < sum(sorted[j])
	})

	if k < 1 {
		k = 1
	}

	if len(sorted) < k {
		return sorted[0]
	}

	return sorted[len(sorted)-k]
}

func sum(v VClock) uint64 {
	var s uint64

	for _, x := range v {
		s += x
	}

	return s
}

// Run recomputes both floors against the current consumer set and, if
// either advanced since the last run, invokes the registered cleanup
// callbacks under the latch (§4.4 "run").
func (c *Coordinator) Run() {
	newCheckpointFloor := checkpointRetentionFloor(c.checkpoints, c.checkpointCount)

	floors := make([]VClock, 0, c.registry.Len()+1)
	floors = append(floors, newCheckpointFloor)

	c.registry.Each(func(cons *Consumer) bool {
		floors = append(floors, cons.VClock())

		return true
	})

	newWALFloor := Min(floors...)

	checkpointAdvanced := !Equal(newCheckpointFloor, c.checkpointFloor)
	walAdvanced := !Equal(newWALFloor, c.walFloor)

	if !checkpointAdvanced && !walAdvanced {
		return
	}

	c.checkpointFloor = newCheckpointFloor
	c.walFloor = newWALFloor

	c.latch.Lock()
	defer c.latch.Unlock()

	c.logger.Log("gc: run: checkpoint floor %v, wal floor %v", c.checkpointFloor, c.walFloor)

	for _, fn := range c.onRun {
		fn(c.checkpointFloor, c.walFloor)
	}
}

// CheckpointFloor returns the most recently computed checkpoint retention
// floor.
func (c *Coordinator) CheckpointFloor() VClock {
	return c.checkpointFloor.Clone()
}

// WALFloor returns the most recently computed WAL retention floor.
func (c *Coordinator) WALFloor() VClock {
	return c.walFloor.Clone()
}
