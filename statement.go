package memtx

import "github.com/google/uuid"

// OpType identifies which of the five DML operations a [Statement] performs
// (§6 "Operation code").
type OpType int

const (
	OpInsert OpType = iota
	OpReplace
	OpUpdate
	OpUpsert
	OpDelete
	OpSelect
)

func (o OpType) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpReplace:
		return "REPLACE"
	case OpUpdate:
		return "UPDATE"
	case OpUpsert:
		return "UPSERT"
	case OpDelete:
		return "DELETE"
	case OpSelect:
		return "SELECT"
	default:
		return "UNKNOWN"
	}
}

// Statement holds the old/new tuple pair for one DML action inside a
// transaction (§3 "Statement"). After a successful primary-key step the
// statement owns a reference to both tuples until commit or rollback; the
// caller (the external transaction manager, out of scope per spec.md §1) is
// responsible for eventually calling [Statement.Unref] exactly once.
//
// Savepoint is a token the transaction manager correlates against its own
// rollback journal; it is opaque to this package beyond being unique per
// statement.
type Statement struct {
	Op         OpType
	OldTuple   *Tuple
	NewTuple   *Tuple
	Savepoint  uuid.UUID
	hasSavepoint bool
}

// NewStatement starts a statement for the given operation.
func NewStatement(op OpType) *Statement {
	return &Statement{Op: op}
}

// markSavepoint stamps the statement as the engine savepoint (§4.3.2 step 4).
// It is idempotent: a statement that touches the primary key more than once
// (not possible in the five DML ops as specified, but harmless) keeps its
// first savepoint.
func (s *Statement) markSavepoint() {
	if s.hasSavepoint {
		return
	}

	s.Savepoint = uuid.New()
	s.hasSavepoint = true
}

// HasSavepoint reports whether the statement has reached the engine
// savepoint (i.e. the primary-key step has committed).
func (s *Statement) HasSavepoint() bool {
	return s.hasSavepoint
}

// Unref releases the statement's references to its old and new tuples. Safe
// to call on a statement whose tuples are nil (UPSERT's no-op path clears
// both before returning, per §4.3.3).
func (s *Statement) Unref() {
	if s.OldTuple != nil {
		s.OldTuple.Unref()
		s.OldTuple = nil
	}

	if s.NewTuple != nil {
		s.NewTuple.Unref()
		s.NewTuple = nil
	}
}
