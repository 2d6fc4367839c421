package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// fakeTx is a minimal in-memory kv.Tx recording Commit/Cancel calls, just
// enough for the Executor's control-flow tests.
type fakeTx struct {
	mode      kv.Mode
	committed bool
	cancelled bool
}

func (t *fakeTx) Get(ctx context.Context, key []byte) ([]byte, bool, error) { return nil, false, nil }
func (t *fakeTx) GetRange(ctx context.Context, rng kv.Range) ([]kv.KV, error) { return nil, nil }
func (t *fakeTx) Keys(ctx context.Context, rng kv.Range, limit int) ([][]byte, error) { return nil, nil }
func (t *fakeTx) Set(ctx context.Context, key, val []byte) error { return nil }
func (t *fakeTx) Put(ctx context.Context, key, val []byte) error { return nil }
func (t *fakeTx) Del(ctx context.Context, key []byte) error     { return nil }
func (t *fakeTx) DelR(ctx context.Context, rng kv.Range) error  { return nil }
func (t *fakeTx) Count(ctx context.Context, rng kv.Range) (uint64, error) { return 0, nil }
func (t *fakeTx) Commit(ctx context.Context) error { t.committed = true; return nil }
func (t *fakeTx) Cancel(ctx context.Context) error { t.cancelled = true; return nil }
func (t *fakeTx) Mode() kv.Mode                    { return t.mode }

// fakeStore opens fakeTxs and records every one it has opened, so tests
// can assert which were committed vs cancelled.
type fakeStore struct {
	opened []*fakeTx
}

func (s *fakeStore) Begin(ctx context.Context, mode kv.Mode, lock kv.Lock) (kv.Tx, error) {
	tx := &fakeTx{mode: mode}
	s.opened = append(s.opened, tx)
	return tx, nil
}
func (s *fakeStore) Close() error { return nil }

// fakeRunner runs statements by returning a fixed value, or failing when
// failOn matches the statement's Kind.
type fakeRunner struct {
	failOn stmt.Kind
	calls  int
}

func (r *fakeRunner) Run(ctx context.Context, tx kv.Tx, ec *Context, s *stmt.Statement) (value.Value, error) {
	r.calls++
	if s.Kind == r.failOn {
		return value.Value{}, errors.New("boom")
	}
	return value.Int(int64(r.calls)), nil
}

func (r *fakeRunner) Eval(ctx context.Context, tx kv.Tx, ec *Context, expr *value.Expr) (value.Value, error) {
	return value.Int(42), nil
}

func TestExecuteRunsEachStatementInItsOwnTransactionOutsideABlock(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindSelect},
		{Kind: stmt.KindSelect},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())

	if len(resp) != 2 {
		t.Fatalf("want 2 responses, got %d", len(resp))
	}
	for _, r := range resp {
		if r.Status != "OK" {
			t.Fatalf("want OK, got %s (%s)", r.Status, r.Detail)
		}
	}
	if len(store.opened) != 2 {
		t.Fatalf("want 2 transactions opened, got %d", len(store.opened))
	}
	for _, tx := range store.opened {
		if !tx.committed || tx.cancelled {
			t.Fatalf("want each statement's own transaction committed, got committed=%v cancelled=%v", tx.committed, tx.cancelled)
		}
	}
}

func TestExecuteCommitPersistsTheWholeBlockInOneTransaction(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindBegin},
		{Kind: stmt.KindCreate},
		{Kind: stmt.KindUpdate},
		{Kind: stmt.KindCommit},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())

	if len(resp) != 4 {
		t.Fatalf("want 4 responses, got %d", len(resp))
	}
	for _, r := range resp {
		if r.Status != "OK" {
			t.Fatalf("want OK, got %s (%s)", r.Status, r.Detail)
		}
	}
	if len(store.opened) != 1 {
		t.Fatalf("want exactly one transaction for the whole block, got %d", len(store.opened))
	}
	if !store.opened[0].committed {
		t.Fatal("want the block's transaction committed")
	}
}

func TestExecuteCommitAfterEarlierFailureCancelsAndReportsQueryExecution(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: stmt.KindUpdate}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindBegin},
		{Kind: stmt.KindCreate},
		{Kind: stmt.KindUpdate}, // fails
		{Kind: stmt.KindCommit},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())

	if resp[2].Status != "ERR" {
		t.Fatalf("want the failing statement to report ERR, got %s", resp[2].Status)
	}
	commitResp := resp[3]
	if commitResp.Detail != dberr.ErrQueryExecution.Error() {
		t.Fatalf("want COMMIT after failure to report %q, got %q", dberr.ErrQueryExecution.Error(), commitResp.Detail)
	}
	if !store.opened[0].cancelled {
		t.Fatal("want the block's transaction cancelled, not committed")
	}
}

func TestExecuteCancelRewritesBufferedResponsesToQueryCancelled(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindBegin},
		{Kind: stmt.KindCreate},
		{Kind: stmt.KindUpdate},
		{Kind: stmt.KindCancel},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())

	for _, r := range resp[1:3] {
		if r.Status != "ERR" || r.Detail != dberr.ErrQueryCancelled.Error() {
			t.Fatalf("want buffered responses rewritten to QueryCancelled, got %+v", r)
		}
	}
	if resp[3].Status != "OK" {
		t.Fatalf("want CANCEL itself to report OK, got %s", resp[3].Status)
	}
	if !store.opened[0].cancelled {
		t.Fatal("want the block's transaction cancelled")
	}
}

func TestExecuteUseRequiresNamespaceBeforeDatabase(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindUse, UseDB: "test"},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())
	if resp[0].Status != "ERR" || resp[0].Detail != dberr.ErrNsAuthentication.Error() {
		t.Fatalf("want USE DB without NS to fail with ErrNsAuthentication, got %+v", resp[0])
	}
}

func TestExecuteLetBindsRunnerEvalResult(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindLet, LetName: "x", LetExpr: &value.Expr{Src: "42"}},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())
	if resp[0].Status != "OK" {
		t.Fatalf("want LET to succeed, got %+v", resp[0])
	}
}

func TestExecuteOptionTogglesFlags(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindOption, OptionName: "FIELDS", OptionValue: false},
	}}
	resp := ex.Execute(context.Background(), q, DefaultOptions())
	if resp[0].Status != "OK" {
		t.Fatalf("want OPTION to succeed, got %+v", resp[0])
	}
}

func TestExecuteUnterminatedBeginIsCancelled(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{failOn: -1}
	ex := NewExecutor(store, runner, nil)

	q := &stmt.Query{Statements: []stmt.Statement{
		{Kind: stmt.KindBegin},
		{Kind: stmt.KindCreate},
	}}
	ex.Execute(context.Background(), q, DefaultOptions())
	if !store.opened[0].cancelled {
		t.Fatal("want an unterminated block cancelled at end of query")
	}
}
