package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/surdb/surdb-engine/cache"
	"github.com/surdb/surdb-engine/common"
	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/livequery"
	"github.com/surdb/surdb-engine/value"
)

// ftNode identifies this process's writes in the per-index tt/dc append
// logs (§4.7); a single-node build has exactly one writer, so a constant
// stands in for the node id a clustered deployment would derive from its
// member identity.
const ftNode = "local"

// Hooks implements document.Hooks against one kv.Tx, the same seam
// document uses to reach storage, indexing, and live-query fan-out
// without importing any of those subsystems directly.
//
// Grounded in semantic/runtime/action.go's RuntimeAction having its
// ApplyToCouchDoc-style storage calls injected, generalized here from a
// single CouchDB write call to the full StoreRecord/PurgeRecord/
// StoreEdgesData/ProcessTableLives set document.Hooks declares.
type Hooks struct {
	Tx        kv.Tx
	NS, DB    string
	Cache     *cache.Cache
	Live      *livequery.Registry
	Notify    *livequery.Bus
	Store     RecordStore
	EventsOn  bool
	TablesOn  bool

	// CLog logs full-text indexing operations under a fixed service/table
	// identity. Defaults to common.ServiceLogger("surdb-engine") when nil.
	CLog *common.ContextLogger
}

func (h *Hooks) clog() *common.ContextLogger {
	if h.CLog != nil {
		return h.CLog
	}
	return common.ServiceLogger("surdb-engine")
}

// Eval computes WHERE/VALUE/ASSERT/PERMISSIONS/output-FIELDS expressions.
// The expression language itself is out of scope (§1); this parses
// expr.Src as a literal (matching value.Value's own textual forms) the
// same way fakeHooks.Eval in document's tests defaults to a fixed
// literal unless overridden — this is that same default promoted to the
// engine's production seam, since no parser is in scope to do better.
func (h *Hooks) Eval(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error) {
	if expr == nil {
		return value.Bool(true), nil
	}
	return parseLiteral(expr.Src), nil
}

func parseLiteral(src string) value.Value {
	s := strings.TrimSpace(src)
	switch s {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "null":
		return value.Null()
	case "none", "":
		return value.None()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return value.String(s[1 : len(s)-1])
	}
	return value.String(s)
}

func (h *Hooks) StoreRecord(ctx context.Context, doc *document.Document, table document.TableDef, isCreate bool) error {
	kb, err := keys.EncodeRecordKey(doc.ID.Key)
	if err != nil {
		return err
	}
	k := keys.RecordKey(h.NS, h.DB, doc.ID.Table, kb)
	data, err := EncodeValue(doc.Current)
	if err != nil {
		return err
	}
	if isCreate {
		if err := h.Tx.Put(ctx, k, data); err != nil {
			if err == kv.ErrKeyAlreadyExists {
				return &dberr.IndexExists{RID: doc.ID.String()}
			}
			return err
		}
	} else if err := h.Tx.Set(ctx, k, data); err != nil {
		return err
	}
	h.Cache.InvalidateRecord(h.NS, h.DB, doc.ID.Table, doc.ID.String())
	return nil
}

func (h *Hooks) PurgeRecord(ctx context.Context, doc *document.Document, table document.TableDef) error {
	kb, err := keys.EncodeRecordKey(doc.ID.Key)
	if err != nil {
		return err
	}
	k := keys.RecordKey(h.NS, h.DB, doc.ID.Table, kb)
	if err := h.Tx.Del(ctx, k); err != nil {
		return err
	}
	h.Cache.InvalidateRecord(h.NS, h.DB, doc.ID.Table, doc.ID.String())
	return nil
}

// StoreIndexData keeps every FTIndexes entry on table in step with doc's
// new content: stale terms from the old content are removed first (only
// for a document that is not new, i.e. UPDATE or UPSERT of an existing
// record — a new document, including every RELATE, has none), then
// the current content is indexed. Indexing a field that is missing or not
// a string is a no-op for that index, not an error: §4.7 indexes whatever
// text is present and ignores the rest.
func (h *Hooks) StoreIndexData(ctx context.Context, doc *document.Document, table document.TableDef) error {
	for _, def := range table.FTIndexes {
		idx := ftIndex(h.NS, h.DB, table.TB, def)
		cl := h.clog().WithFields(map[string]interface{}{"table": table.TB, "index": def.Name, "thing": doc.ID.String()})
		err := common.LogOperation(cl, "fulltext.store_index", func() error {
			if !doc.IsNew {
				if old, ok := fieldText(ctx, doc.Initial, def.Field); ok {
					if _, err := idx.RemoveContent(ctx, h.Tx, *doc.ID, old); err != nil {
						return err
					}
				}
			}
			text, ok := fieldText(ctx, doc.Current, def.Field)
			if !ok {
				return nil
			}
			_, err := idx.IndexContent(ctx, h.Tx, *doc.ID, text)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// PurgeIndexData removes doc from every FTIndexes entry on table. It reads
// from doc.Initial rather than doc.Current: by the time DELETE's pipeline
// reaches this step, stepErase has already cleared Current (§4.5 DELETE
// order), so Initial is the only copy of the indexed text left.
func (h *Hooks) PurgeIndexData(ctx context.Context, doc *document.Document, table document.TableDef) error {
	for _, def := range table.FTIndexes {
		idx := ftIndex(h.NS, h.DB, table.TB, def)
		cl := h.clog().WithFields(map[string]interface{}{"table": table.TB, "index": def.Name, "thing": doc.ID.String()})
		err := common.LogOperation(cl, "fulltext.purge_index", func() error {
			if text, ok := fieldText(ctx, doc.Initial, def.Field); ok {
				if _, err := idx.RemoveContent(ctx, h.Tx, *doc.ID, text); err != nil {
					return err
				}
			}
			return idx.RemoveDoc(ctx, h.Tx, *doc.ID)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func ftIndex(ns, db, tb string, def document.FTIndexDef) fulltext.Index {
	return fulltext.Index{
		NS: ns, DB: db, TB: tb, Name: def.Name,
		Node:       ftNode,
		Analyzer:   def.Analyzer,
		Highlights: def.Highlights,
		BM25:       def.BM25,
	}
}

// fieldText reads path out of v as a plain string, for feeding to the
// full-text indexer. Any other kind, or a missing path, reports ok=false.
func fieldText(ctx context.Context, v value.Value, path value.Path) (string, bool) {
	fv, err := value.Get(ctx, v, path)
	if err != nil || fv.Kind != value.KindString {
		return "", false
	}
	return fv.S, true
}

// StoreEdgesData persists both halves of a RELATE's graph edge: an
// outgoing pointer from the source record and an incoming pointer on the
// target, each naming the relation record itself (table.TB plus doc.ID's
// key), so traversing either pointer yields that relation record.
func (h *Hooks) StoreEdgesData(ctx context.Context, doc *document.Document, table document.TableDef) error {
	from, to := doc.Extras.RelateFrom, doc.Extras.RelateTo
	fromKey, err := keys.EncodeRecordKey(from.Key)
	if err != nil {
		return err
	}
	toKey, err := keys.EncodeRecordKey(to.Key)
	if err != nil {
		return err
	}
	edgeKey, err := keys.EncodeRecordKey(doc.ID.Key)
	if err != nil {
		return err
	}
	out := keys.Graph(h.NS, h.DB, from.Table, fromKey, byte(value.DirOut), table.TB, edgeKey)
	in := keys.Graph(h.NS, h.DB, to.Table, toKey, byte(value.DirIn), table.TB, edgeKey)
	if err := h.Tx.Set(ctx, out, nil); err != nil {
		return err
	}
	return h.Tx.Set(ctx, in, nil)
}

// ProcessTableViews maintains DEFINE TABLE AS SELECT materialized views.
// Gated by TablesOn (OPTION TABLES, §4.8); materialized-view maintenance
// itself has no view definitions modeled on TableDef, so this does
// nothing in either case.
func (h *Hooks) ProcessTableViews(ctx context.Context, doc *document.Document, table document.TableDef) error {
	if !h.TablesOn {
		return nil
	}
	return nil
}

// ProcessTableLives evaluates every live-query subscription on this
// table and notifies subscribers whose condition matches (§4.9).
func (h *Hooks) ProcessTableLives(ctx context.Context, doc *document.Document, table document.TableDef) error {
	if h.Live == nil || h.Notify == nil {
		return nil
	}
	// This step runs before pluck, so doc.Result is not set yet: the
	// action and result come from Initial/Current instead.
	action := livequery.ActionUpdate
	result := doc.Current
	if doc.IsNew {
		action = livequery.ActionCreate
	}
	if doc.Current.IsNone() {
		action = livequery.ActionDelete
		result = doc.Initial
	}
	for _, sub := range h.Live.ForTable(h.NS, h.DB, table.TB) {
		if sub.Cond != nil {
			cond := parseLiteral(sub.Cond.Src)
			if !cond.Truthy() {
				continue
			}
		}
		h.Notify.Send(livequery.Notification{Action: action, ID: sub.ID, Result: result})
	}
	return nil
}

// ProcessTableEvents fires DEFINE EVENT triggers. Gated by EventsOn
// (OPTION EVENTS, §4.8); event definitions are not modeled on TableDef in
// this build, so there is nothing to fire yet — this seam exists so
// event wiring has a home once that catalog surface is added.
func (h *Hooks) ProcessTableEvents(ctx context.Context, doc *document.Document, table document.TableDef) error {
	if !h.EventsOn {
		return nil
	}
	return nil
}

// ProcessChangefeeds appends to a per-table change log. Changefeeds are
// an explicit Non-goal (§1); this is a deliberate no-op, not a missing
// feature.
func (h *Hooks) ProcessChangefeeds(ctx context.Context, doc *document.Document, table document.TableDef) error {
	return nil
}

var _ document.Hooks = (*Hooks)(nil)
