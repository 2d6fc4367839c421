// Package boltkv is the concrete, embedded implementation of kv.Store,
// grounded directly in the teacher's db/bolt package: one bbolt database
// file, bbolt.Update/View mapped onto kv.ModeWrite/kv.ModeRead, and a
// per-database sync.Mutex emulating kv.LockPessimistic.
//
// Unlike the teacher's one-bucket-per-concern layout, every engine key
// already carries its full scope (namespace, database, table) as encoded
// by the keys package (SPEC_FULL.md §6.3) — the category byte plus
// length-prefixed components is a flat, already-ordered key space, so
// boltkv stores everything in a single bucket and lets bbolt's native
// ordered byte keys do the scoping. This keeps the range-scan semantics
// the engine relies on (table scan, graph traversal, FT log compaction)
// expressible as one bbolt cursor walk rather than N bucket lookups.
package boltkv

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
)

var dataBucket = []byte("data")

// DB is the concrete kv.Store backed by one bbolt file.
type DB struct {
	bolt *bolt.DB

	// writeMu emulates kv.LockPessimistic: it is held from Begin until
	// Commit/Cancel by every pessimistic write transaction. Read
	// transactions and optimistic writers never take it.
	writeMu sync.Mutex
}

// Open opens or creates a bbolt database at path and runs the storage
// version bootstrap described in SPEC_FULL.md §6.4.
func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltkv: open: %w", err)
	}
	db := &DB{bolt: b}
	if err := db.bootstrapVersion(); err != nil {
		_ = b.Close()
		return nil, err
	}
	return db, nil
}

const (
	versionLatest = "latest"
	versionV1     = "v1"
)

// bootstrapVersion implements §6.4: if root.version is absent and no other
// root keys exist, write "latest"; if other keys exist, write "v1"; an
// existing "v1" fails with ErrOutdatedStorageVersion.
func (db *DB) bootstrapVersion() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(dataBucket)
		if err != nil {
			return fmt.Errorf("boltkv: create bucket: %w", err)
		}
		vkey := keys.Version()
		existing := b.Get(vkey)
		if existing != nil {
			if string(existing) == versionV1 {
				return dberr.ErrOutdatedStorageVersion
			}
			return nil
		}
		// No version key. Determine whether any other root key exists.
		hasOther := false
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if !bytes.Equal(k, vkey) {
				hasOther = true
				break
			}
		}
		v := versionLatest
		if hasOther {
			v = versionV1
		}
		return b.Put(vkey, []byte(v))
	})
}

// Close releases the underlying bbolt file.
func (db *DB) Close() error { return db.bolt.Close() }

// Begin starts a new transaction per kv.Store.
func (db *DB) Begin(ctx context.Context, mode kv.Mode, lock kv.Lock) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	writable := mode == kv.ModeWrite
	if lock == kv.LockPessimistic && writable {
		db.writeMu.Lock()
	}
	btx, err := db.bolt.Begin(writable)
	if err != nil {
		if lock == kv.LockPessimistic && writable {
			db.writeMu.Unlock()
		}
		return nil, fmt.Errorf("boltkv: begin: %w", err)
	}
	return &tx{db: db, btx: btx, mode: mode, lock: lock}, nil
}

type tx struct {
	db     *DB
	btx    *bolt.Tx
	mode   kv.Mode
	lock   kv.Lock
	mu     sync.Mutex
	closed bool
}

func (t *tx) Mode() kv.Mode { return t.mode }

func (t *tx) bucket() *bolt.Bucket {
	return t.btx.Bucket(dataBucket)
}

func (t *tx) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return kv.ErrClosed
	}
	return nil
}

func (t *tx) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v := t.bucket().Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (t *tx) GetRange(ctx context.Context, rng kv.Range) ([]kv.KV, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	const pageLimit = 100_000
	var out []kv.KV
	c := t.bucket().Cursor()
	for k, v := c.Seek(rng.Start); k != nil && withinEnd(k, rng.End); k, v = c.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, kv.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		if len(out) >= pageLimit {
			break
		}
	}
	return out, nil
}

func (t *tx) Keys(ctx context.Context, rng kv.Range, limit int) ([][]byte, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	var out [][]byte
	c := t.bucket().Cursor()
	for k, _ := c.Seek(rng.Start); k != nil && withinEnd(k, rng.End); k, _ = c.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, append([]byte(nil), k...))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func withinEnd(k, end []byte) bool {
	if end == nil {
		return true
	}
	return bytes.Compare(k, end) < 0
}

func (t *tx) Set(ctx context.Context, key, val []byte) error {
	if err := t.requireWrite(ctx); err != nil {
		return err
	}
	return t.bucket().Put(key, val)
}

func (t *tx) Put(ctx context.Context, key, val []byte) error {
	if err := t.requireWrite(ctx); err != nil {
		return err
	}
	if existing := t.bucket().Get(key); existing != nil {
		return kv.ErrKeyAlreadyExists
	}
	return t.bucket().Put(key, val)
}

func (t *tx) Del(ctx context.Context, key []byte) error {
	if err := t.requireWrite(ctx); err != nil {
		return err
	}
	return t.bucket().Delete(key)
}

func (t *tx) DelR(ctx context.Context, rng kv.Range) error {
	if err := t.requireWrite(ctx); err != nil {
		return err
	}
	b := t.bucket()
	c := b.Cursor()
	var dead [][]byte
	for k, _ := c.Seek(rng.Start); k != nil && withinEnd(k, rng.End); k, _ = c.Next() {
		dead = append(dead, append([]byte(nil), k...))
	}
	for _, k := range dead {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Count(ctx context.Context, rng kv.Range) (uint64, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	var n uint64
	c := t.bucket().Cursor()
	for k, _ := c.Seek(rng.Start); k != nil && withinEnd(k, rng.End); k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (t *tx) requireWrite(ctx context.Context) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.mode != kv.ModeWrite {
		return fmt.Errorf("boltkv: write on read-only transaction")
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return kv.ErrClosed
	}
	t.closed = true
	t.mu.Unlock()
	err := t.btx.Commit()
	t.release()
	return err
}

func (t *tx) Cancel(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return kv.ErrClosed
	}
	t.closed = true
	t.mu.Unlock()
	err := t.btx.Rollback()
	t.release()
	return err
}

func (t *tx) release() {
	if t.lock == kv.LockPessimistic && t.mode == kv.ModeWrite {
		t.db.writeMu.Unlock()
	}
}
