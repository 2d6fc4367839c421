package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/surdb/surdb-engine/cache"
	"github.com/surdb/surdb-engine/collector"
	"github.com/surdb/surdb-engine/common"
	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/exec"
	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/iterator"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/livequery"
	"github.com/surdb/surdb-engine/plan"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// Runner implements exec.StatementRunner (§4.8): it resolves a
// Statement's WHAT/RELATE/INSERT clauses into iterator.Iterables, drives
// them through iterator.Driver, and runs each resulting item through the
// document lifecycle.
//
// Grounded in workflow/parser.go (teacher)'s dispatch-by-@type shape,
// generalized to dispatch-by-stmt.Kind: a bare table name resolves
// differently depending on which statement carries it (CREATE wants a
// fresh id, SELECT/UPDATE/DELETE want every existing record).
type Runner struct {
	Catalog *Catalog
	Cache   *cache.Cache
	Live    *livequery.Registry
	Notify  *livequery.Bus
	Fanout  int
	CLog    *common.ContextLogger
}

var _ exec.StatementRunner = (*Runner)(nil)

func (r *Runner) fanout() int {
	if r.Fanout > 0 {
		return r.Fanout
	}
	return iterator.DefaultFanout
}

func (r *Runner) hooksFor(tx kv.Tx, ec *exec.Context) *Hooks {
	return &Hooks{
		Tx:       tx,
		NS:       ec.Opts.NS,
		DB:       ec.Opts.DB,
		Cache:    r.Cache,
		Live:     r.Live,
		Notify:   r.Notify,
		Store:    RecordStore{},
		EventsOn: ec.Opts.Events,
		TablesOn: ec.Opts.Tables,
		CLog:     r.CLog,
	}
}

// Eval evaluates a standalone expression (the executor calls it for
// LET). It shares
// the literal parser document.Hooks.Eval uses in the full lifecycle,
// since the expression language itself is out of scope (§1).
func (r *Runner) Eval(ctx context.Context, tx kv.Tx, ec *exec.Context, expr *value.Expr) (value.Value, error) {
	h := r.hooksFor(tx, ec)
	return h.Eval(ctx, expr, field.Vars{})
}

// Run dispatches one statement to the iterable driver and returns its
// collected result (§4.4/§4.8). Transaction-control, USE/LET/OPTION
// kinds never reach Run — the executor handles those itself.
func (r *Runner) Run(ctx context.Context, tx kv.Tx, ec *exec.Context, s *stmt.Statement) (value.Value, error) {
	switch s.Kind {
	case stmt.KindSelect, stmt.KindCreate, stmt.KindUpdate, stmt.KindUpsert,
		stmt.KindDelete, stmt.KindRelate, stmt.KindInsert:
		return r.runData(ctx, tx, ec, s)
	default:
		return value.None(), fmt.Errorf("engine: statement kind %d has no data-plane runner", s.Kind)
	}
}

func (r *Runner) runData(ctx context.Context, tx kv.Tx, ec *exec.Context, s *stmt.Statement) (value.Value, error) {
	var iterables []iterator.Iterable
	var err error
	if s.Search != nil {
		iterables, err = r.resolveSearch(ctx, tx, ec, s)
	} else {
		iterables, err = resolveIterables(s)
	}
	if err != nil {
		return value.None(), err
	}

	if s.Explain != stmt.ExplainNone {
		return r.explain(ctx, tx, ec, s, iterables)
	}

	rows, err := r.execute(ctx, tx, ec, s, iterables)
	if err != nil {
		return value.None(), err
	}
	return value.Array(rows), nil
}

// execute drives iterables through the document lifecycle and returns
// the finalized, ordered/paged result rows (§4.3/§4.4/§4.5).
func (r *Runner) execute(ctx context.Context, tx kv.Tx, ec *exec.Context, s *stmt.Statement, iterables []iterator.Iterable) ([]value.Value, error) {
	hooks := r.hooksFor(tx, ec)
	driver := &iterator.Driver{Store: RecordStore{}, NS: ec.Opts.NS, DB: ec.Opts.DB, Cfg: iterator.Config{Fanout: r.fanout()}}

	cmp := orderComparator(s.Order)
	var ord collector.Ordered
	var err error
	if len(s.Order) > 0 && cmp == nil {
		// ORDER BY RAND(): orderComparator returns nil for it.
		ord = collector.NewMemoryOrderedRandom()
	} else if ord, err = collector.Select(len(s.Order) > 0, 0, cmp); err != nil {
		return nil, err
	}
	results := collector.NewStore(ord)

	run := r.buildRunFunc(ec, s, hooks)
	if err := driver.Run(ctx, tx, iterables, s.Parallel, run, results.Push); err != nil {
		return nil, err
	}

	start, limit := 0, -1
	if s.Start != nil {
		start = int(*s.Start)
	}
	if s.Limit != nil {
		limit = int(*s.Limit)
	}
	return results.StartLimit(ctx, start, limit)
}

// explain renders the §4.6 EXPLAIN/EXPLAIN FULL plan instead of (or, for
// FULL, in addition to counting) the statement's real execution.
func (r *Runner) explain(ctx context.Context, tx kv.Tx, ec *exec.Context, s *stmt.Statement, iterables []iterator.Iterable) (value.Value, error) {
	pc := plan.New(s.Explain == stmt.ExplainFull)
	for _, it := range iterables {
		addPlanItem(pc, it)
	}
	pc.AddCollector(collectorStrategyName(s))
	for _, p := range s.Fetch {
		pc.AddFetch(pathString(p))
	}

	if s.Explain == stmt.ExplainFull {
		rows, err := r.execute(ctx, tx, ec, s, iterables)
		if err != nil {
			return value.None(), err
		}
		pc.FetchCount = len(rows)
	}

	out := pc.Output()
	arr := make([]value.Value, len(out))
	for i, row := range out {
		arr[i] = explainRowValue(row)
	}
	return value.Array(arr), nil
}

func explainRowValue(row map[string]any) value.Value {
	obj := value.NewObject()
	if op, ok := row["operation"]; ok {
		obj.Set("operation", value.String(fmt.Sprint(op)))
	}
	if fetch, ok := row["fetch"]; ok {
		obj.Set("fetch", value.Int(int64(fetch.(int))))
	}
	if detail, ok := row["detail"].(map[string]any); ok {
		d := value.NewObject()
		for k, v := range detail {
			d.Set(k, value.String(fmt.Sprint(v)))
		}
		obj.Set("detail", value.Object(d))
	}
	return value.Object(obj)
}

func pathString(p value.Path) string {
	s := ""
	for i, part := range p {
		if i > 0 {
			s += "."
		}
		if part.Kind == value.PartField {
			s += part.Field
		}
	}
	return s
}

func collectorStrategyName(s *stmt.Statement) string {
	if len(s.Order) == 0 {
		return "MemoryOrdered"
	}
	return "sorted"
}

func addPlanItem(pc *plan.Collector, it iterator.Iterable) {
	switch it.Kind {
	case iterator.KindTable:
		pc.Add(plan.OpIterateTable, map[string]any{"table": it.Table})
	case iterator.KindThing:
		pc.Add(plan.OpIterateThing, map[string]any{"thing": it.Thing.String()})
	case iterator.KindRange:
		pc.Add(plan.OpIterateRange, map[string]any{"table": it.Table})
	case iterator.KindEdges:
		pc.Add(plan.OpIterateEdges, map[string]any{"from": it.Edges.From.String()})
	case iterator.KindMergeable:
		pc.Add(plan.OpIterateMergeable, map[string]any{"thing": it.MergeRID.String()})
	case iterator.KindRelatable:
		pc.Add(plan.OpIterateRelatable, map[string]any{"via": it.RelateVia})
	case iterator.KindIndex:
		pc.Add(plan.OpIterateIndex, map[string]any{"table": it.Table, "count": len(it.IndexRIDs)})
	default:
		pc.Add(plan.OpIterateValue, nil)
	}
}

// buildRunFunc returns the iterator.RunFunc driving one statement's
// documents through the lifecycle (§4.5). The per-item Statement clone
// carries the DATA that item contributes: the statement's own Data for a
// plain CREATE/UPDATE/UPSERT/DELETE/SELECT target, or the row/edge
// payload carried in Processed.Extras for INSERT and RELATE, which the
// lifecycle's stepProcessRecordData only ever reads off Stmt.Data.
func (r *Runner) buildRunFunc(ec *exec.Context, s *stmt.Statement, hooks *Hooks) iterator.RunFunc {
	return func(ctx context.Context, item iterator.Processed, retry bool) (*value.Value, error) {
		rid := item.RID
		stmtCopy := *s
		extras := item.Extras

		switch item.Extras.Kind {
		case document.WorkInsert:
			if retry {
				if s.OnDuplicateUpdate != nil {
					stmtCopy.Data = s.OnDuplicateUpdate
				} else {
					stmtCopy.Data = &stmt.Data{Kind: stmt.DataMerge, Content: item.Extras.MergeValue}
				}
			} else {
				stmtCopy.Data = &stmt.Data{Kind: stmt.DataContent, Content: item.Extras.MergeValue}
			}

		case document.WorkRelate:
			stmtCopy.Data = &stmt.Data{Kind: stmt.DataMerge, Content: item.Extras.RelateData}
			if rid == nil {
				fresh := value.RecordID{Table: s.RelateVia, Key: value.UUID(uuid.New())}
				rid = &fresh
			}
		}

		if rid == nil {
			return nil, &dberr.Internal{Msg: "engine: processed item carries no record id"}
		}

		val := item.Val
		if item.Deferred {
			v, ok, err := (RecordStore{}).Get(ctx, hooks.Tx, ec.Opts.NS, ec.Opts.DB, *rid)
			if err != nil {
				return nil, err
			}
			if ok {
				val = v
			} else {
				val = value.None()
			}
		}

		table := r.Catalog.Get(ec.Opts.NS, ec.Opts.DB, rid.Table)
		if item.Extras.Kind == document.WorkRelate {
			table.TB = s.RelateVia
			table.Type = document.TableRelation
		}

		doc := document.New(rid, val, extras)
		if retry {
			doc.IsNew = false
		}

		pipelineKind := s.Kind
		if retry {
			pipelineKind = stmt.KindUpdate
		}

		lc := &document.Lifecycle{
			Doc:   doc,
			Table: table,
			Stmt:  &stmtCopy,
			Hooks: hooks,
			Thing: rid.String(),
		}

		if err := document.Run(ctx, lc, document.PipelineFor(pipelineKind)); err != nil {
			if s.Kind == stmt.KindCreate {
				// CREATE never upserts on conflict (§4.5 StoreRecord
				// doc: "CREATE uses put-if-absent"). Translating the
				// collision away from *dberr.IndexExists keeps the
				// driver from retrying it through the UPDATE pipeline,
				// which is reserved for INSERT (§4.4).
				var idxErr *dberr.IndexExists
				if errors.As(err, &idxErr) {
					return nil, dberr.ErrRecordExists
				}
			}
			return nil, err
		}
		return doc.Result, nil
	}
}

// resolveIterables expands a Statement's WHAT/RELATE/INSERT clause into
// the driver's Iterable sources (§3.5/§4.4). DEFINE/REMOVE and the
// transaction/session-control kinds never reach here.
func resolveIterables(s *stmt.Statement) ([]iterator.Iterable, error) {
	switch s.Kind {
	case stmt.KindRelate:
		return resolveRelate(s)
	case stmt.KindInsert:
		return resolveInsert(s)
	case stmt.KindCreate:
		return resolveCreateTargets(s.What)
	default:
		return resolveScanTargets(s.What)
	}
}

// resolveSearch answers a full-text SELECT (§4.7 query path): it looks up
// s.Search.Index on s.Search.Table's catalog entry, runs the AND query
// across the analyzed query terms, and resolves every hit DocID back to a
// RecordID, producing exactly the KindIndex Iterable iterator.Driver
// already knows how to expand.
func (r *Runner) resolveSearch(ctx context.Context, tx kv.Tx, ec *exec.Context, s *stmt.Statement) ([]iterator.Iterable, error) {
	table := r.Catalog.Get(ec.Opts.NS, ec.Opts.DB, s.Search.Table)
	var def *document.FTIndexDef
	for i := range table.FTIndexes {
		if table.FTIndexes[i].Name == s.Search.Index {
			def = &table.FTIndexes[i]
			break
		}
	}
	if def == nil {
		return nil, fmt.Errorf("engine: no full-text index %q on table %q", s.Search.Index, s.Search.Table)
	}

	idx := ftIndex(ec.Opts.NS, ec.Opts.DB, s.Search.Table, *def)
	terms := idx.ExtractQueryingTerms(s.Search.Query)
	bm, err := fulltext.And(ctx, tx, idx, terms)
	if err != nil {
		return nil, err
	}

	hits := fulltext.NewHitsIterator(idx, bm)
	rids := make([]value.RecordID, 0, hits.Remaining())
	for {
		hit, ok, err := hits.Next(ctx, tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rids = append(rids, hit.RecordID)
	}
	return []iterator.Iterable{iterator.IndexOf(s.Search.Table, rids)}, nil
}

// resolveScanTargets handles SELECT/UPDATE/UPSERT/DELETE: a bare table
// means every existing record in it.
func resolveScanTargets(what []stmt.What) ([]iterator.Iterable, error) {
	out := make([]iterator.Iterable, 0, len(what))
	for _, w := range what {
		switch w.Value.Kind {
		case value.KindTable:
			out = append(out, iterator.Table(w.Value.S))
		case value.KindRecordID:
			out = append(out, iterator.Thing(*w.Value.RID))
		case value.KindRange:
			out = append(out, iterator.RangeOf(w.Value.Rng.Table, *w.Value.Rng))
		case value.KindEdges:
			out = append(out, iterator.EdgesOf(*w.Value.Edg))
		default:
			out = append(out, iterator.Value(w.Value))
		}
	}
	return out, nil
}

// resolveCreateTargets handles CREATE: a bare table means "one new
// record, generated id"; an explicit record id is attempted as given and
// fails (ErrRecordExists) if already present.
func resolveCreateTargets(what []stmt.What) ([]iterator.Iterable, error) {
	out := make([]iterator.Iterable, 0, len(what))
	for _, w := range what {
		switch w.Value.Kind {
		case value.KindTable:
			rid := value.RecordID{Table: w.Value.S, Key: value.UUID(uuid.New())}
			out = append(out, iterator.Thing(rid))
		case value.KindRecordID:
			out = append(out, iterator.Thing(*w.Value.RID))
		default:
			return nil, fmt.Errorf("engine: CREATE target must be a table or record id, got %s", w.Value.Kind)
		}
	}
	return out, nil
}

// resolveInsert handles INSERT [rows...] (§4.4/§4.5 INSERT row): exactly
// one target table, each row an object optionally carrying its own "id".
func resolveInsert(s *stmt.Statement) ([]iterator.Iterable, error) {
	if len(s.What) != 1 || s.What[0].Value.Kind != value.KindTable {
		return nil, fmt.Errorf("engine: INSERT requires exactly one target table")
	}
	if s.Data == nil || s.Data.Kind != stmt.DataContent || s.Data.Content.Kind != value.KindArray {
		return nil, fmt.Errorf("engine: INSERT requires a CONTENT array of rows")
	}
	table := s.What[0].Value.S
	rows := s.Data.Content.Arr
	out := make([]iterator.Iterable, 0, len(rows))
	for _, row := range rows {
		rid := rowRecordID(table, row)
		out = append(out, iterator.Mergeable(rid, row))
	}
	return out, nil
}

func rowRecordID(table string, row value.Value) value.RecordID {
	if row.Kind == value.KindObject {
		if idv, ok := row.Obj.Get("id"); ok && idv.Kind == value.KindRecordID && idv.RID != nil {
			return *idv.RID
		}
	}
	return value.RecordID{Table: table, Key: value.UUID(uuid.New())}
}

// resolveRelate handles RELATE from->via->to (§4.5 KindRelate). Both
// endpoints must already be concrete record ids — relating the result of
// a nested SELECT is a query-planner concern out of scope here (§1).
func resolveRelate(s *stmt.Statement) ([]iterator.Iterable, error) {
	from, ok := recordIDOf(s.RelateFrom)
	if !ok {
		return nil, fmt.Errorf("engine: RELATE FROM must be a record id")
	}
	to, ok := recordIDOf(s.RelateTo)
	if !ok {
		return nil, fmt.Errorf("engine: RELATE TO must be a record id")
	}
	var data *value.Value
	if s.Data != nil && (s.Data.Kind == stmt.DataContent || s.Data.Kind == stmt.DataMerge) {
		d := s.Data.Content
		data = &d
	}
	return []iterator.Iterable{iterator.Relatable(from, s.RelateVia, to, data)}, nil
}

func recordIDOf(v value.Value) (value.RecordID, bool) {
	if v.Kind != value.KindRecordID || v.RID == nil {
		return value.RecordID{}, false
	}
	return *v.RID, true
}

// orderComparator builds a collector.Comparator from an ORDER BY clause.
// ORDER ... RAND() (OrderRandom) carries no comparable field, so it gets
// a nil comparator and execute uses collector.NewMemoryOrderedRandom.
func orderComparator(order []stmt.OrderClause) collector.Comparator {
	if len(order) == 0 {
		return nil
	}
	for _, o := range order {
		if o.Kind == stmt.OrderRandom {
			return nil
		}
	}
	return func(a, b value.Value) int {
		for _, o := range order {
			av, _ := value.Get(context.Background(), a, o.Expr)
			bv, _ := value.Get(context.Background(), b, o.Expr)
			c := value.Compare(av, bv)
			if o.Kind == stmt.OrderDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}
