// Package kv defines the KV backend abstraction the query engine consumes
// (SPEC_FULL.md §4.10): a typed transaction over an ordered byte-key store,
// with range scans, put-if-absent semantics, and exactly-once commit/cancel.
// The engine never talks to a storage engine directly; every component in
// this repository goes through kv.Tx. kv/boltkv is the one concrete,
// embedded implementation, grounded in the teacher's db/bolt package.
package kv

import (
	"context"
	"errors"
)

// ErrKeyAlreadyExists is returned by Put when the key is already present.
var ErrKeyAlreadyExists = errors.New("kv: key already exists")

// ErrClosed is returned by any operation performed against a transaction
// that has already committed or cancelled.
var ErrClosed = errors.New("kv: transaction closed")

// Mode selects whether a transaction may write.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Lock selects the concurrency discipline for a write transaction.
type Lock int

const (
	LockOptimistic Lock = iota
	LockPessimistic
)

// KV is a pair (key, value) yielded by a range scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Range bounds a byte-key scan. Start is inclusive, End is exclusive,
// matching the convention keys.Successor produces.
type Range struct {
	Start []byte
	End   []byte
}

// Tx is one key/value transaction (SPEC_FULL.md §4.10). Every method but
// Mode takes a context so callers can post a deadline (§5 "Suspension points") or
// cancel on connection close.
type Tx interface {
	// Get fetches key. ok is false if absent.
	Get(ctx context.Context, key []byte) (val []byte, ok bool, err error)
	// GetRange returns every (key,value) pair in rng in key order, bounded
	// by an implicit page limit enforced by the concrete implementation.
	GetRange(ctx context.Context, rng Range) ([]KV, error)
	// Keys returns up to limit keys in rng, in key order. limit <= 0 means
	// unbounded.
	Keys(ctx context.Context, rng Range, limit int) ([][]byte, error)
	// Set installs or overwrites key.
	Set(ctx context.Context, key, val []byte) error
	// Put installs key only if absent; returns ErrKeyAlreadyExists
	// otherwise.
	Put(ctx context.Context, key, val []byte) error
	// Del removes key; no-op if absent.
	Del(ctx context.Context, key []byte) error
	// DelR removes every key in rng.
	DelR(ctx context.Context, rng Range) error
	// Count returns the number of keys in rng.
	Count(ctx context.Context, rng Range) (uint64, error)
	// Commit closes the transaction, persisting writes. Exactly-once:
	// further calls after Commit/Cancel return ErrClosed.
	Commit(ctx context.Context) error
	// Cancel closes the transaction, discarding writes.
	Cancel(ctx context.Context) error
	// Mode reports whether this transaction may write.
	Mode() Mode
}

// Store opens transactions against the backing storage engine.
type Store interface {
	// Begin starts a new transaction with the given mode/lock strategy.
	Begin(ctx context.Context, mode Mode, lock Lock) (Tx, error)
	// Close releases the backing storage engine's resources.
	Close() error
}
