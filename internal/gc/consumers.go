package gc

import (
	"fmt"

	"github.com/google/uuid"
)

// maxConsumerNameBytes bounds consumer names (§6 "Consumer name is bounded
// at 64 bytes").
const maxConsumerNameBytes = 64

// ConsumerType distinguishes consumers that only pin the WAL from those
// that also pin checkpoints (§6 "Consumer type values: WAL=1, SNAP+WAL=2").
type ConsumerType int

const (
	// TypeWAL pins only the WAL retention floor.
	TypeWAL ConsumerType = iota + 1
	// TypeSnapWAL is reported by [ConsumerType.PinsCheckpoints] as also
	// pinning checkpoints. The coordinator's floor computation treats it like
	// TypeWAL: its vclock enters only the WAL floor, and the checkpoint floor
	// depends on the recorded checkpoints and the retention count alone.
	TypeSnapWAL
)

func (t ConsumerType) String() string {
	switch t {
	case TypeWAL:
		return "WAL"
	case TypeSnapWAL:
		return "SNAP+WAL"
	default:
		return "UNKNOWN"
	}
}

// PinsCheckpoints reports whether this consumer type also pins checkpoints.
func (t ConsumerType) PinsCheckpoints() bool {
	return t == TypeSnapWAL
}

// Consumer is a registered handle pinning a vclock against reclamation
// (§4.4). The zero value is not meaningful; obtain one from
// [Registry.Register].
type Consumer struct {
	id     uuid.UUID
	name   string
	typ    ConsumerType
	vclock VClock
}

// ID returns the consumer's stable token.
func (c *Consumer) ID() uuid.UUID { return c.id }

// Name returns the consumer's registered name.
func (c *Consumer) Name() string { return c.name }

// Type returns the consumer's type.
func (c *Consumer) Type() ConsumerType { return c.typ }

// VClock returns the consumer's currently pinned vclock.
func (c *Consumer) VClock() VClock { return c.vclock.Clone() }

// Registry is the set of live consumers (C8), implemented as a plain map
// keyed by a comparable token rather than the original's intrusive rb-tree
// (`gc_tree_t` in gc.h) keyed by vclock. It keeps no order: [Registry.Each]
// visits consumers in no particular order, which is enough for membership
// and for the component-wise minimum the coordinator takes over all of them.
//
// Not safe for concurrent use; see spec.md §5 "single-threaded cooperative"
// — the embedding coordinator (gc.go) is the only expected caller.
type Registry struct {
	consumers map[uuid.UUID]*Consumer
}

// NewRegistry creates an empty consumer registry.
func NewRegistry() *Registry {
	return &Registry{consumers: make(map[uuid.UUID]*Consumer)}
}

// Register inserts a new consumer pinning vclock (§4.4 "consumer_register").
func (r *Registry) Register(name string, vclock VClock, typ ConsumerType) (*Consumer, error) {
	if len(name) > maxConsumerNameBytes {
		return nil, fmt.Errorf("gc: consumer name %q exceeds %d bytes", name, maxConsumerNameBytes)
	}

	if typ != TypeWAL && typ != TypeSnapWAL {
		return nil, fmt.Errorf("gc: unknown consumer type %d", typ)
	}

	c := &Consumer{
		id:     uuid.New(),
		name:   name,
		typ:    typ,
		vclock: vclock.Clone(),
	}

	r.consumers[c.id] = c

	return c, nil
}

// Unregister removes c (§4.4 "consumer_unregister").
func (r *Registry) Unregister(c *Consumer) {
	delete(r.consumers, c.id)
}

// Advance updates c's pinned vclock. vclock must be >= the consumer's
// current vclock, component-wise (§4.4 "consumer_advance"'s precondition).
func (r *Registry) Advance(c *Consumer, vclock VClock) error {
	if _, ok := r.consumers[c.id]; !ok {
		return fmt.Errorf("gc: advance: consumer %q is not registered", c.name)
	}

	if !LessEqual(c.vclock, vclock) {
		return fmt.Errorf("gc: advance: new vclock does not dominate old vclock for consumer %q", c.name)
	}

	c.vclock = vclock.Clone()

	return nil
}

// Each calls fn for every live consumer, stopping early if fn returns
// false. Valid only across non-yielding code (§4.4): the underlying map
// must not be mutated by fn.
func (r *Registry) Each(fn func(*Consumer) bool) {
	for _, c := range r.consumers {
		if !fn(c) {
			return
		}
	}
}

// Len returns the number of live consumers.
func (r *Registry) Len() int {
	return len(r.consumers)
}
