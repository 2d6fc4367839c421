// Package exec implements the statement executor (§4.8): the
// multi-statement driver for BEGIN/COMMIT/CANCEL, USE, LET, OPTION,
// per-statement timeouts, and buffered response rewriting on
// cancellation or partial failure.
//
// Grounded in statemanager.Manager's start/complete-operation tracking
// shape (statemanager/manager.go), generalized from HTTP-operation
// bookkeeping to statement-response bookkeeping: StartOperation/
// CompleteOperation's running->ok/err transition is exactly Execute's
// per-statement Response lifecycle. Buffered-response rewriting on
// CANCEL is grounded on coordinator.Coordinator's reconnect/retry
// bookkeeping pattern (state rewritten retroactively on a terminal
// outcome) — here retroactive rewriting applies to the block's buffered
// Responses instead of a connection's pending sends.
package exec

import (
	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/value"
)

// Options are the per-session execution flags toggled by OPTION and USE
// (§4.8).
type Options struct {
	NS, DB string

	Fields bool // field engine enabled
	Events bool // DEFINE EVENT firing enabled
	Tables bool // materialized views enabled
	Import bool // import-mode: skip side effects safe to skip during bulk load
	Debug  bool // echo original SQL text on each Response
}

// DefaultOptions mirrors the engine's default posture: every ambient
// feature on, debug off.
func DefaultOptions() Options {
	return Options{Fields: true, Events: true, Tables: true}
}

// Context carries the session state threaded through one Query's
// statements: the active NS/DB/flags and every $name bound by LET.
// Owned by exactly one Executor.Execute call; never shared across
// concurrent queries (mirrors cache.Cache's per-transaction ownership,
// §5 "Shared-resource policy").
type Context struct {
	Opts Options
	Vars map[string]value.Value
}

// NewContext returns a Context seeded with opts and an empty LET
// environment.
func NewContext(opts Options) *Context {
	return &Context{Opts: opts, Vars: make(map[string]value.Value)}
}

// Use applies a USE NS/DB statement (§4.8). USE DB without a prior or
// concurrent USE NS is rejected: a database only has meaning scoped to a
// namespace (§3's NS/DB/TB hierarchy). Real tenant-boundary
// authorization is an explicit Non-goal (§1); this only enforces that
// shape, not access control.
func (c *Context) Use(ns, db string) error {
	if ns != "" {
		c.Opts.NS = ns
	}
	if db != "" {
		if c.Opts.NS == "" {
			return dberr.ErrNsAuthentication
		}
		c.Opts.DB = db
	}
	return nil
}

// Let binds name to v in the current context, per §4.8.
func (c *Context) Let(name string, v value.Value) {
	c.Vars[name] = v
}
