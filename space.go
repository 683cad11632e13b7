package memtx

import "fmt"

// RecoveryPhase is the engine-wide recovery state that drives which
// per-space replace discipline [Space.AddPrimaryKey] selects (§4.3).
type RecoveryPhase int

const (
	// RecoverySnapshot is active while bulk-loading a snapshot; selects the
	// build_next discipline.
	RecoverySnapshot RecoveryPhase = iota
	// RecoveryWAL is active while replaying the write-ahead log; selects the
	// primary_key-only discipline.
	RecoveryWAL
	// RecoveryNormal is live traffic; selects the full all_keys discipline.
	RecoveryNormal
)

// replaceMode names which of the three write disciplines (§4.3) a [Space]
// currently drives DML through.
type replaceMode int

const (
	// modeNoKeys: the space has no primary index yet. Invoking replace is a
	// programming error.
	modeNoKeys replaceMode = iota
	// modeBuildNext: bulk load from snapshot.
	modeBuildNext
	// modePrimaryKey: WAL replay, primary index only.
	modePrimaryKey
	// modeAllKeys: normal operation, full multi-index fan-out.
	modeAllKeys
)

// Logger is the minimal diagnostic sink this package writes to. A nil
// Logger discards output. Satisfied trivially by wrapping *log.Logger:
//
//	memtx.LoggerFunc(stdlog.Printf)
type Logger interface {
	Log(format string, args ...any)
}

// LoggerFunc adapts a function to [Logger].
type LoggerFunc func(format string, args ...any)

// Log implements [Logger].
func (f LoggerFunc) Log(format string, args ...any) { f(format, args...) }

type discardLogger struct{}

func (discardLogger) Log(string, ...any) {}

// FaultInjector lets tests arm a deterministic failure at a named injection
// point on the all-keys replace path, standing in for Tarantool's
// ERRINJ_TESTING guards in memtx_space_execute_replace (SUPPLEMENTED
// FEATURES in SPEC_FULL.md). A nil FaultInjector never fires.
type FaultInjector interface {
	// Armed reports whether the named injection point should fail right now.
	Armed(point string) bool
}

// FaultInjectorFunc adapts a function to [FaultInjector].
type FaultInjectorFunc func(point string) bool

// Armed implements [FaultInjector].
func (f FaultInjectorFunc) Armed(point string) bool { return f(point) }

// Injection point names used with [FaultInjector.Armed].
const (
	InjectBeforePrimaryReplace   = "before_primary_replace"
	InjectBeforeSecondaryReplace = "before_secondary_replace"
)

// Space is a table backed by an ordered list of indexes (C4, §3 "Space").
// Slot 0, when present, is the primary index: unique, and every tuple
// present in any secondary also exists in slot 0 with refcount >= 2 (one
// hold from the primary, one from the secondary).
//
// Space is not safe for concurrent use by multiple goroutines without
// external synchronization — spec.md's concurrency model (§5) is a single
// cooperative event loop where a replace call is never observed partially
// applied by another fiber; the Go analogue is that callers serialize
// access to one Space (typically behind the same mutex the embedding
// transaction manager already uses for the enclosing statement).
type Space struct {
	Name    string
	Format  Format
	indexes []Index
	bsize   int
	mode    replaceMode

	reserve       *ExtentReserve
	logger        Logger
	faultInjector FaultInjector
}

// SpaceOption configures a [Space] at construction.
type SpaceOption func(*Space)

// WithLogger sets the diagnostic sink (see [Logger]).
func WithLogger(l Logger) SpaceOption {
	return func(s *Space) { s.logger = l }
}

// WithFaultInjector installs a [FaultInjector] used to deterministically
// exercise the rollback path in tests.
func WithFaultInjector(fi FaultInjector) SpaceOption {
	return func(s *Space) { s.faultInjector = fi }
}

// WithExtentReserve overrides the default (effectively unbounded) extent
// reserve, letting tests exercise the reservation-failure path.
func WithExtentReserve(r *ExtentReserve) SpaceOption {
	return func(s *Space) { s.reserve = r }
}

// NewSpace creates an empty space with no primary index (modeNoKeys). Call
// [Space.AddPrimaryKey] before any DML.
func NewSpace(name string, format Format, opts ...SpaceOption) *Space {
	s := &Space{
		Name:    name,
		Format:  format,
		mode:    modeNoKeys,
		reserve: NewExtentReserve(1 << 30),
		logger:  discardLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Space) log(format string, args ...any) {
	s.logger.Log(format, args...)
}

// Bsize returns the accumulated byte size of all tuples referenced through
// the primary index.
func (s *Space) Bsize() int {
	return s.bsize
}

// IndexCount returns the number of indexes, primary included.
func (s *Space) IndexCount() int {
	return len(s.indexes)
}

// Primary returns the primary index (slot 0), or nil if none exists.
func (s *Space) Primary() Index {
	if len(s.indexes) == 0 {
		return nil
	}

	return s.indexes[0]
}

// Index returns the index at id, or nil if id is out of range.
func (s *Space) Index(id int) Index {
	if id < 0 || id >= len(s.indexes) {
		return nil
	}

	return s.indexes[id]
}

func (s *Space) secondaries() []Index {
	if len(s.indexes) <= 1 {
		return nil
	}

	return s.indexes[1:]
}

func replaceModeForPhase(phase RecoveryPhase) replaceMode {
	switch phase {
	case RecoverySnapshot:
		return modeBuildNext
	case RecoveryWAL:
		return modePrimaryKey
	default:
		return modeAllKeys
	}
}

// AddPrimaryKey creates the primary index (slot 0) and selects the write
// discipline for the given recovery phase (§4.3 "Transitions").
func (s *Space) AddPrimaryKey(def *IndexDef, phase RecoveryPhase) error {
	return s.addPrimaryKey(def, phase, nil)
}

func (s *Space) addPrimaryKey(def *IndexDef, phase RecoveryPhase, wrap func(Index) Index) error {
	if len(s.indexes) > 0 {
		return NewError(CodeModifyIndex, "space %q: primary key already exists", s.Name)
	}

	def.ID = 0
	def.IsPrimary = true

	if !def.Unique {
		return NewError(CodeModifyIndex, "space %q: primary key must be unique", s.Name)
	}

	idx, err := createIndex(def)
	if err != nil {
		return err
	}

	if wrap != nil {
		idx = wrap(idx)
	}

	s.indexes = []Index{idx}
	s.mode = replaceModeForPhase(phase)

	if s.mode == modeBuildNext {
		idx.BeginBuild()
	}

	return nil
}

// DropPrimaryKey removes all indexes and returns the space to modeNoKeys
// (§4.3 "Transitions"). Callers are expected to have already verified the
// space is otherwise ready to be dropped (e.g. no pending secondary
// indexes keep tuples alive beyond this call); this method does not
// unreference tuples itself — pair it with [Space.CommitTruncate]-style
// cleanup in the caller if tuples must be released.
func (s *Space) DropPrimaryKey() error {
	if len(s.indexes) == 0 {
		return NewError(CodeModifyIndex, "space %q: no primary key to drop", s.Name)
	}

	s.indexes = nil
	s.mode = modeNoKeys
	s.bsize = 0

	return nil
}

// CreateIndex validates and builds a secondary index (slot len(indexes)),
// then backfills it from the primary using DUP_INSERT (§4.3.4
// "create_index dispatches on type"). For the `_sequence_data` system
// space's own primary index, the snapshot iterator is substituted per C6 —
// see [Space.CreateSequenceDataIndex].
func (s *Space) CreateIndex(def *IndexDef) error {
	if len(s.indexes) == 0 {
		return NewError(CodeModifyIndex, "space %q: cannot create secondary index before primary key", s.Name)
	}

	def.ID = len(s.indexes)
	def.IsPrimary = false

	if err := checkIndexDef(def); err != nil {
		return err
	}

	idx, err := createIndex(def)
	if err != nil {
		return err
	}

	idx.BeginBuild()

	if err := buildSecondaryKey(s.Primary(), s.Format, idx); err != nil {
		return fmt.Errorf("space %q: create index %q: %w", s.Name, def.Name, err)
	}

	if err := idx.EndBuild(); err != nil {
		return err
	}

	s.indexes = append(s.indexes, idx)

	return nil
}

func fieldCountOf(t *Tuple) int {
	fields, err := DecodeFields(t.DataRange())
	if err != nil {
		return 0
	}

	return len(fields)
}
