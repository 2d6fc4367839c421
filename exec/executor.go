package exec

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// DefaultTimeout bounds a single statement unless the statement itself
// names a shorter TIMEOUT (§4.8).
const DefaultTimeout = 30 * time.Second

// Executor drives a Query's statements against a Store, handling the
// multi-statement control flow — explicit transactions, USE, LET,
// OPTION, per-statement timeouts, and buffered response rewriting — and
// delegating everything else to a StatementRunner.
//
// Grounded in statemanager.Manager's StartOperation/CompleteOperation
// bookkeeping (statemanager/manager.go): each statement here is tracked
// the way the teacher tracks one async HTTP operation, from "running" to
// a terminal ok/err outcome, except the terminal state is a Response
// appended to the block's buffer instead of an operation map entry.
type Executor struct {
	Store  kv.Store
	Runner StatementRunner
	Log    *logrus.Entry
}

// NewExecutor constructs an Executor. log defaults to the standard
// logrus logger if nil.
func NewExecutor(store kv.Store, runner StatementRunner, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{Store: store, Runner: runner, Log: log}
}

// Execute runs every statement of q in order under opts, returning one
// Response per statement (§4.8). An explicit BEGIN opens a transaction
// spanning every following statement up to its matching COMMIT/CANCEL;
// outside of one, each statement runs in its own transaction.
func (e *Executor) Execute(ctx context.Context, q *stmt.Query, opts Options) []Response {
	ec := NewContext(opts)
	responses := make([]Response, 0, len(q.Statements))

	var (
		blockTx     kv.Tx // non-nil while inside an explicit BEGIN..COMMIT/CANCEL block
		blockFailed bool  // an earlier statement in the current block errored
		blockStart  int   // index into responses where the current block's buffer begins
	)

	closeBlock := func() {
		blockTx = nil
		blockFailed = false
		blockStart = len(responses)
	}

	for i := range q.Statements {
		s := &q.Statements[i]
		start := time.Now()

		switch s.Kind {
		case stmt.KindBegin:
			if blockTx != nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), dberr.ErrAlreadyInTransaction))
				continue
			}
			tx, err := e.Store.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
			if err != nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), err))
				continue
			}
			blockTx = tx
			blockFailed = false
			blockStart = len(responses)
			responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			continue

		case stmt.KindCancel:
			if blockTx == nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), dberr.ErrNoTransaction))
				continue
			}
			_ = blockTx.Cancel(ctx)
			// §4.8: CANCEL rewrites every buffered response of the
			// aborted block to QueryCancelled, discarding their real
			// results since none of the block's writes persisted.
			for j := blockStart; j < len(responses); j++ {
				responses[j] = errResp(responses[j].SQL, responses[j].Time, dberr.ErrQueryCancelled)
			}
			responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			closeBlock()
			continue

		case stmt.KindCommit:
			if blockTx == nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), dberr.ErrNoTransaction))
				continue
			}
			if blockFailed {
				// §4.8: COMMIT after an earlier statement in the same
				// block failed cancels the transaction instead and
				// reports QueryExecution rather than persisting a
				// partially-applied block; the block's buffered OK
				// responses are rewritten to QueryExecution too.
				_ = blockTx.Cancel(ctx)
				for j := blockStart; j < len(responses); j++ {
					if responses[j].Status == "OK" {
						responses[j] = errResp(responses[j].SQL, responses[j].Time, dberr.ErrQueryExecution)
					}
				}
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), dberr.ErrQueryExecution))
				closeBlock()
				continue
			}
			err := blockTx.Commit(ctx)
			if err != nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), err))
			} else {
				responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			}
			closeBlock()
			continue

		case stmt.KindUse:
			err := ec.Use(s.UseNS, s.UseDB)
			if err != nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), err))
				blockFailed = blockFailed || blockTx != nil
				continue
			}
			responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			continue

		case stmt.KindOption:
			applyOption(ec, s)
			responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			continue

		case stmt.KindLet:
			v, err := e.evalLet(ctx, blockTx, ec, s.LetExpr)
			if err != nil {
				responses = append(responses, errResp(sqlText(ec, s), time.Since(start), err))
				blockFailed = blockFailed || blockTx != nil
				continue
			}
			ec.Let(s.LetName, v)
			responses = append(responses, ok(sqlText(ec, s), time.Since(start), value.None()))
			continue
		}

		// Every remaining Kind is real statement work, run against either
		// the open block transaction or a fresh one-statement
		// transaction.
		resp := e.runStatement(ctx, blockTx, ec, s, start)
		responses = append(responses, resp)
		if resp.Status != "OK" {
			blockFailed = blockFailed || blockTx != nil
		}
	}

	// An unterminated BEGIN at the end of the query is cancelled: a
	// block without a matching COMMIT/CANCEL never persists (§4.8
	// "explicit transaction boundaries").
	if blockTx != nil {
		_ = blockTx.Cancel(ctx)
		e.Log.Warn("exec: query ended with an open transaction, cancelling")
	}

	return responses
}

// runStatement executes one data-plane statement, opening its own
// transaction when not already inside an explicit block, and applying
// the statement's TIMEOUT override (only if shorter than the ambient
// default, §4.8).
func (e *Executor) runStatement(ctx context.Context, blockTx kv.Tx, ec *Context, s *stmt.Statement, start time.Time) Response {
	timeout := DefaultTimeout
	if s.Timeout > 0 && s.Timeout < timeout {
		timeout = s.Timeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx := blockTx
	owned := false
	if tx == nil {
		mode := kv.ModeRead
		if writes(s.Kind) {
			mode = kv.ModeWrite
		}
		t, err := e.Store.Begin(sctx, mode, kv.LockOptimistic)
		if err != nil {
			return errResp(sqlText(ec, s), time.Since(start), err)
		}
		tx = t
		owned = true
	}

	v, err := e.Runner.Run(sctx, tx, ec, s)
	if owned {
		if err != nil {
			_ = tx.Cancel(sctx)
		} else if cerr := tx.Commit(sctx); cerr != nil {
			err = cerr
		}
	}
	if err != nil {
		return errResp(sqlText(ec, s), time.Since(start), err)
	}
	return ok(sqlText(ec, s), time.Since(start), v)
}

// evalLet evaluates a LET expression, opening a short-lived read
// transaction when not already inside an explicit BEGIN block, since a
// LET expression may reference stored records.
func (e *Executor) evalLet(ctx context.Context, blockTx kv.Tx, ec *Context, expr *value.Expr) (value.Value, error) {
	tx := blockTx
	if tx == nil {
		t, err := e.Store.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
		if err != nil {
			return value.Value{}, err
		}
		defer t.Cancel(ctx)
		tx = t
	}
	return e.Runner.Eval(ctx, tx, ec, expr)
}

func writes(k stmt.Kind) bool {
	switch k {
	case stmt.KindCreate, stmt.KindUpdate, stmt.KindUpsert, stmt.KindDelete,
		stmt.KindRelate, stmt.KindInsert, stmt.KindDefine, stmt.KindRemove,
		stmt.KindLive, stmt.KindKill:
		return true
	default:
		return false
	}
}

func sqlText(ec *Context, s *stmt.Statement) string {
	if !ec.Opts.Debug {
		return ""
	}
	return s.Text
}

func applyOption(ec *Context, s *stmt.Statement) {
	switch s.OptionName {
	case "FIELDS":
		ec.Opts.Fields = s.OptionValue
	case "EVENTS":
		ec.Opts.Events = s.OptionValue
	case "TABLES":
		ec.Opts.Tables = s.OptionValue
	case "IMPORT":
		ec.Opts.Import = s.OptionValue
	case "DEBUG":
		ec.Opts.Debug = s.OptionValue
	}
}
