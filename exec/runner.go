package exec

import (
	"context"

	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// StatementRunner performs the actual data-plane work of one statement:
// wiring the iterator, document lifecycle, collector, field engine, and
// full-text index together against a live transaction. The Executor
// never touches these subsystems directly — it only drives the
// multi-statement control flow of §4.8 and delegates everything else,
// the same interface-injection seam as document.Hooks and
// field.Evaluator. The concrete implementation lives in the engine
// package, which owns the wiring all these subsystems need.
type StatementRunner interface {
	// Run executes one statement (anything but BEGIN/COMMIT/CANCEL/USE/
	// LET/OPTION, which the Executor handles itself) and returns its
	// result value.
	Run(ctx context.Context, tx kv.Tx, ec *Context, s *stmt.Statement) (value.Value, error)

	// Eval evaluates a LET expression against the current Context's bound
	// variables.
	Eval(ctx context.Context, tx kv.Tx, ec *Context, expr *value.Expr) (value.Value, error)
}
