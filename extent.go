package memtx

// Extent reservation sizes (§4.3.2 step 1, §5 "Reservation discipline").
// Sized to cover the maximum allocator churn a single B-tree or R-tree
// mutation can induce, per original_source/src/box/memtx_space.cc's
// RESERVE_EXTENTS_BEFORE_REPLACE / RESERVE_EXTENTS_BEFORE_DELETE constants.
const (
	// ReserveExtentsBeforeReplace is reserved when a new tuple is present.
	ReserveExtentsBeforeReplace = 16
	// ReserveExtentsBeforeDelete is reserved when there is no new tuple.
	ReserveExtentsBeforeDelete = 8
)

// ExtentReserve pre-reserves allocator slack so that a rollback triggered by
// a uniqueness violation further down the call stack cannot itself fail
// with an allocation error (C3). It is a budget, not a pool: Reserve simply
// fails loudly up front if the budget cannot be met, so every subsequent
// Take in the same critical section is guaranteed to succeed.
type ExtentReserve struct {
	available int
	capacity  int
}

// NewExtentReserve creates a reserve with the given total capacity
// (typically a large, effectively-unlimited number backed by the real
// allocator; tests use a small capacity to exercise the failure path).
func NewExtentReserve(capacity int) *ExtentReserve {
	return &ExtentReserve{available: capacity, capacity: capacity}
}

// Reserve ensures at least n extents are available, failing if the reserve's
// capacity cannot cover them. This must be called before any index mutation
// in the multi-index replace path (§4.3.2 step 1).
func (r *ExtentReserve) Reserve(n int) error {
	if n > r.capacity {
		return NewError(CodeUnsupported, "extent reserve: cannot guarantee %d extents (capacity %d)", n, r.capacity)
	}

	r.available = r.capacity

	return nil
}

// Take consumes one extent from the current reservation. Because Reserve
// already guaranteed headroom for the whole critical section, Take can only
// fail if called more times than Reserve was sized for — a programming
// error, not a runtime condition — so it panics rather than returning an
// error, matching spec.md §9's "the reservation is the contract that makes
// compensation infallible".
func (r *ExtentReserve) Take() {
	if r.available <= 0 {
		panic("memtx: extent reserve exhausted: reservation was undersized")
	}

	r.available--
}

// Available reports the number of extents left in the current reservation.
func (r *ExtentReserve) Available() int {
	return r.available
}
