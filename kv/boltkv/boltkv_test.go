package boltkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/surdb/surdb-engine/kv"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestVersionBootstrapFreshDB(t *testing.T) {
	db := openTemp(t)
	tx, err := db.Begin(context.Background(), kv.ModeRead, kv.LockOptimistic)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Cancel(context.Background())

	v, ok, err := tx.Get(context.Background(), []byte{0x00})
	if err != nil || !ok {
		t.Fatalf("expected version key present, err=%v ok=%v", err, ok)
	}
	if string(v) != versionLatest {
		t.Fatalf("got version %q, want %q", v, versionLatest)
	}
}

func TestSetGetDel(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	wtx, err := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := wtx.Set(ctx, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := wtx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rtx, err := db.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	v, ok, err := rtx.Get(ctx, []byte("k1"))
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}
	rtx.Cancel(ctx)

	wtx2, _ := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	if err := wtx2.Del(ctx, []byte("k1")); err != nil {
		t.Fatalf("del: %v", err)
	}
	wtx2.Commit(ctx)

	rtx2, _ := db.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	_, ok, _ = rtx2.Get(ctx, []byte("k1"))
	if ok {
		t.Fatalf("expected key deleted")
	}
	rtx2.Cancel(ctx)
}

func TestPutIfAbsent(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	if err := tx.Put(ctx, []byte("unique"), []byte("a")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := tx.Put(ctx, []byte("unique"), []byte("b")); err != kv.ErrKeyAlreadyExists {
		t.Fatalf("want ErrKeyAlreadyExists, got %v", err)
	}
	tx.Commit(ctx)
}

func TestRangeScanAndDelR(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	for _, k := range []string{"r/1", "r/2", "r/3", "s/1"} {
		if err := tx.Set(ctx, []byte(k), []byte("x")); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	tx.Commit(ctx)

	rng := kv.Range{Start: []byte("r/"), End: []byte("r0")}

	rtx, _ := db.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	n, err := rtx.Count(ctx, rng)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, err = %v, want 3", n, err)
	}
	kvs, err := rtx.GetRange(ctx, rng)
	if err != nil || len(kvs) != 3 {
		t.Fatalf("getrange = %d, err=%v, want 3", len(kvs), err)
	}
	rtx.Cancel(ctx)

	wtx, _ := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	if err := wtx.DelR(ctx, rng); err != nil {
		t.Fatalf("delr: %v", err)
	}
	wtx.Commit(ctx)

	rtx2, _ := db.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	n2, _ := rtx2.Count(ctx, rng)
	if n2 != 0 {
		t.Fatalf("post-delr count = %d, want 0", n2)
	}
	_, ok, _ := rtx2.Get(ctx, []byte("s/1"))
	if !ok {
		t.Fatalf("s/1 should survive DelR over the r/ range")
	}
	rtx2.Cancel(ctx)
}

func TestCommitThenOperationFails(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	tx, _ := db.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	tx.Commit(ctx)
	if err := tx.Commit(ctx); err != kv.ErrClosed {
		t.Fatalf("want ErrClosed on double commit, got %v", err)
	}
	if _, _, err := tx.Get(ctx, []byte("x")); err != kv.ErrClosed {
		t.Fatalf("want ErrClosed on get-after-commit, got %v", err)
	}
}
