package iterator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

// RunFunc runs the document lifecycle for one Processed item. retry is
// true on the second pass of an INSERT->UPDATE retry (§4.4/§4.5 INSERT
// row); callers use it to pick the UPDATE pipeline instead of CREATE.
// A returned error that is a *dberr.IndexExists on the first (non-retry)
// pass is translated by the driver into exactly one retry; any other
// error aborts the whole Run.
type RunFunc func(ctx context.Context, item Processed, retry bool) (*value.Value, error)

// Config tunes the driver's PARALLEL behavior (§4.4/§5); the timeout
// comes from the context passed to Run.
type Config struct {
	// Fanout is the worker count used when Parallel is set. <=1 means
	// sequential processing regardless of Parallel.
	Fanout int
}

// DefaultFanout matches the teacher's DefaultConfig "parallel" queue
// worker count (worker/pool.go); the engine passes it as Config.Fanout
// when no fan-out is configured (§4.4).
const DefaultFanout = 5

// Driver expands Iterables into Processed items and drives them through
// run, enforcing the per-statement timeout between items (§4.4/§5).
type Driver struct {
	Store Store
	NS, DB string
	Cfg   Config
}

// Run expands every iterable in order and calls run once per resulting
// item (twice on a single INSERT retry). push receives every non-nil
// pluck result, in item order for sequential runs; PARALLEL runs make no
// ordering guarantee across items (§9 Open Questions).
func (d *Driver) Run(ctx context.Context, tx kv.Tx, iterables []Iterable, parallel bool, run RunFunc, push func(value.Value)) error {
	fanout := 1
	if parallel && d.Cfg.Fanout > 1 {
		fanout = d.Cfg.Fanout
	}

	if fanout <= 1 {
		for _, it := range iterables {
			if err := d.expand(ctx, tx, it, func(p Processed) error {
				return d.runOne(ctx, tx, p, run, push)
			}); err != nil {
				return err
			}
		}
		return nil
	}

	// PARALLEL: fan out document processing across a bounded pool of
	// goroutines (§4.4 "permits concurrent document processing up to a
	// fixed fan-out"), grounded in worker/pool.go's fixed-worker-count
	// pool. Commit order of side effects is not observable (§4.4) since
	// each document's mutations are independently serialized through the
	// same transaction by the caller's storage layer.
	sem := make(chan struct{}, fanout)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, it := range iterables {
		if err := d.expand(ctx, tx, it, func(p Processed) error {
			mu.Lock()
			stop := firstErr != nil
			mu.Unlock()
			if stop {
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(p Processed) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := d.runOne(ctx, tx, p, run, push); err != nil {
					setErr(err)
				}
			}(p)
			return nil
		}); err != nil {
			setErr(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}

// pushMu serializes push callers under PARALLEL fan-out; push itself
// (e.g. collector.Results.Push) is not assumed to be goroutine-safe.
var pushMu sync.Mutex

func (d *Driver) runOne(ctx context.Context, tx kv.Tx, p Processed, run RunFunc, push func(value.Value)) error {
	if err := ctx.Err(); err != nil {
		return &dberr.QueryTimeout{}
	}
	result, err := run(ctx, p, false)
	if err != nil {
		var idxErr *dberr.IndexExists
		if errors.As(err, &idxErr) {
			rid, ok := parseThing(idxErr.RID)
			if !ok {
				return err
			}
			retryItem := Processed{RID: &rid, Extras: p.Extras}
			if d.Store != nil {
				if v, found, gerr := d.Store.Get(ctx, tx, d.NS, d.DB, rid); gerr == nil && found {
					retryItem.Val = v
				}
			}
			result, err = run(ctx, retryItem, true)
			if err != nil {
				// §4.4: "a second retry fails fatally" — any error from
				// the retry pass (including a second IndexExists) is
				// returned verbatim, never retried again.
				return err
			}
		} else {
			return err
		}
	}
	if result == nil {
		return nil
	}
	if push != nil {
		pushMu.Lock()
		push(*result)
		pushMu.Unlock()
	}
	return nil
}

// parseThing splits a "table:key" RecordID string form back into a
// value.RecordID. Only the plain string/int key forms round-trip through
// this parse, and a string key made only of decimal digits comes back as
// an int key (§3.1 allows Array/Object/Range keys too, but IndexExists
// collisions always name a scalar-keyed record in practice, since only
// scalar fields can carry a UNIQUE index in this engine).
func parseThing(s string) (value.RecordID, bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return value.RecordID{}, false
	}
	table, key := s[:i], s[i+1:]
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return value.RecordID{Table: table, Key: value.Int(n)}, true
	}
	return value.RecordID{Table: table, Key: value.String(key)}, true
}

func (d *Driver) expand(ctx context.Context, tx kv.Tx, it Iterable, emit func(Processed) error) error {
	switch it.Kind {
	case KindValue:
		return emit(Processed{Val: it.Literal})

	case KindTable:
		return d.Store.ScanTable(ctx, tx, d.NS, d.DB, it.Table, func(rid value.RecordID, v value.Value) error {
			if err := ctx.Err(); err != nil {
				return &dberr.QueryTimeout{}
			}
			r := rid
			return emit(Processed{RID: &r, Val: v})
		})

	case KindThing:
		v, ok, err := d.Store.Get(ctx, tx, d.NS, d.DB, it.Thing)
		if err != nil {
			return err
		}
		r := it.Thing
		if !ok {
			return emit(Processed{RID: &r, Val: value.None()})
		}
		return emit(Processed{RID: &r, Val: v})

	case KindDefer:
		// Emit a placeholder now; the caller fetches lazily at document
		// construction (§4.4) — signalled here via Deferred so the
		// caller knows Val has not been resolved.
		r := it.Thing
		return emit(Processed{RID: &r, Deferred: true})

	case KindRange:
		return d.Store.ScanRange(ctx, tx, d.NS, d.DB, it.Range, func(rid value.RecordID, v value.Value) error {
			if err := ctx.Err(); err != nil {
				return &dberr.QueryTimeout{}
			}
			r := rid
			return emit(Processed{RID: &r, Val: v})
		})

	case KindEdges:
		return d.Store.ScanEdges(ctx, tx, d.NS, d.DB, it.Edges, func(target value.RecordID) error {
			if err := ctx.Err(); err != nil {
				return &dberr.QueryTimeout{}
			}
			v, ok, err := d.Store.Get(ctx, tx, d.NS, d.DB, target)
			if err != nil {
				return err
			}
			if !ok {
				v = value.None()
			}
			r := target
			return emit(Processed{RID: &r, Val: v})
		})

	case KindMergeable:
		v, ok, err := d.Store.Get(ctx, tx, d.NS, d.DB, it.MergeRID)
		if err != nil {
			return err
		}
		if !ok {
			v = value.None()
		}
		r := it.MergeRID
		return emit(Processed{
			RID: &r, Val: v,
			Extras: document.Workable{Kind: document.WorkInsert, MergeValue: it.MergeValue},
		})

	case KindRelatable:
		var data value.Value
		if it.RelateData != nil {
			data = *it.RelateData
		} else {
			data = value.None()
		}
		return emit(Processed{
			Val: value.None(),
			Extras: document.Workable{
				Kind:       document.WorkRelate,
				RelateFrom: it.RelateFrom,
				RelateTo:   it.RelateTo,
				RelateData: data,
			},
		})

	case KindIndex:
		for _, rid := range it.IndexRIDs {
			if err := ctx.Err(); err != nil {
				return &dberr.QueryTimeout{}
			}
			v, ok, err := d.Store.Get(ctx, tx, d.NS, d.DB, rid)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			r := rid
			if err := emit(Processed{RID: &r, Val: v}); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}
