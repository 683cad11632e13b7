// Package memtx implements an in-memory table engine: one or more
// [Index]-backed [Space]s sharing reference-counted [Tuple] storage, driven
// through the same atomic multi-index replace algorithm across HASH, TREE,
// RTREE, and BITSET index types.
//
// # Basic Usage
//
//	space := memtx.NewSpace("users", memtx.Format{
//	    memtx.FieldTypeUnsigned,
//	    memtx.FieldTypeString,
//	})
//
//	err := space.AddPrimaryKey(&memtx.IndexDef{
//	    Name:   "primary",
//	    Type:   memtx.IndexTypeTree,
//	    Unique: true,
//	    Parts:  []memtx.KeyPartDef{{FieldIndex: 0, FieldType: memtx.FieldTypeUnsigned}},
//	}, memtx.RecoveryNormal)
//
//	data, _ := memtx.EncodeFields([]memtx.FieldValue{
//	    {Type: memtx.FieldTypeUnsigned, Uint: 1},
//	    {Type: memtx.FieldTypeString, Str: "ada"},
//	})
//	_, tuple, err := space.ExecuteInsert(data)
//
// # Write Disciplines
//
// A [Space]'s replace discipline is fixed by the [RecoveryPhase] in effect
// when its primary key is created ([Space.AddPrimaryKey]): build_next
// during snapshot load, primary_key-only during WAL replay, and the full
// multi-index all_keys discipline during normal operation. Every writing
// DML operation ([Space.ExecuteInsert], [Space.ExecuteReplace],
// [Space.ExecuteDelete], [Space.ExecuteUpdate], [Space.ExecuteUpsert])
// routes through whichever discipline is active; [Space.ExecuteSelect]
// only reads through an index iterator.
//
// # Concurrency
//
// Space is not safe for concurrent use by multiple goroutines; callers
// serialize access to one Space the way a single-threaded event loop
// would. [Tuple] reference counting ([Tuple.Ref], [Tuple.Unref]) uses
// atomics so a tuple can be safely held by iterators and statements that
// outlive the call that produced them, but the Space's own index
// structures are not internally locked.
//
// # Error Handling
//
// Engine errors are [*Error] values carrying a [Code]; use [errors.As] to
// recover the code for programmatic handling (duplicate key, not found,
// injected fault, and so on). Tuple format validation failures are plain
// errors without a Code. A failed all-keys replace
// ([Space]'s all_keys discipline) rolls every already-touched index back
// to its pre-call state before returning the error — callers never observe
// a partially applied replace.
package memtx
