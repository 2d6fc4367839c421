// Package iterator implements the iterable driver (§4.4): expansion of a
// statement's WHAT clause into zero-or-more Processed work items, per-item
// dispatch to the document lifecycle, timeout enforcement between items,
// a PARALLEL fan-out, and the single INSERT retry-with-id rule.
//
// Grounded in worker/pool.go (teacher)'s Pool/Worker/DefaultConfig
// named-queue fan-out, generalized from named job queues to an anonymous,
// per-statement worker pool sized by the PARALLEL hint (§4.4 "parallel
// hint: permits concurrent document processing up to a fixed fan-out").
package iterator

import (
	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/value"
)

// Kind discriminates the Iterable variants of §3.5.
type Kind int

const (
	KindValue Kind = iota
	KindTable
	KindThing
	KindDefer
	KindRange
	KindEdges
	KindMergeable
	KindRelatable
	KindIndex
)

// Iterable is one source the driver expands into Processed items (§3.5).
// Only the fields relevant to Kind are populated, mirroring value.Value's
// closed-sum shape (§9 "a closed variant set is preferable").
type Iterable struct {
	Kind Kind

	Literal value.Value  // KindValue
	Table   string       // KindTable | KindRange | KindIndex
	Thing   value.RecordID // KindThing | KindDefer
	Range   value.Range  // KindRange

	Edges value.Edges // KindEdges

	MergeRID   value.RecordID // KindMergeable
	MergeValue value.Value    // KindMergeable

	RelateFrom value.RecordID // KindRelatable
	RelateVia  string         // KindRelatable
	RelateTo   value.RecordID // KindRelatable
	RelateData *value.Value   // KindRelatable

	// IndexRIDs is the already-planner-resolved document order for
	// KindIndex (§4.4: "delegate to the query planner's executor, which
	// yields documents in index order"). The planner itself is out of
	// scope (§1); callers that know how to resolve an index (e.g. the
	// full-text subsystem via fulltext.HitsIterator) populate this slice
	// before handing the Iterable to the driver.
	IndexRIDs []value.RecordID
}

func Value(v value.Value) Iterable  { return Iterable{Kind: KindValue, Literal: v} }
func Table(name string) Iterable    { return Iterable{Kind: KindTable, Table: name} }
func Thing(rid value.RecordID) Iterable { return Iterable{Kind: KindThing, Thing: rid} }
func Defer(rid value.RecordID) Iterable { return Iterable{Kind: KindDefer, Thing: rid} }
func RangeOf(table string, r value.Range) Iterable {
	return Iterable{Kind: KindRange, Table: table, Range: r}
}
func EdgesOf(e value.Edges) Iterable { return Iterable{Kind: KindEdges, Edges: e} }
func Mergeable(rid value.RecordID, merge value.Value) Iterable {
	return Iterable{Kind: KindMergeable, MergeRID: rid, MergeValue: merge}
}
func Relatable(from value.RecordID, via string, to value.RecordID, data *value.Value) Iterable {
	return Iterable{Kind: KindRelatable, RelateFrom: from, RelateVia: via, RelateTo: to, RelateData: data}
}
func IndexOf(table string, rids []value.RecordID) Iterable {
	return Iterable{Kind: KindIndex, Table: table, IndexRIDs: rids}
}

// Processed is one iterator work item (§3.5/Glossary): a record-id (if
// any), the raw value it expanded to, and the Workable extras the
// document lifecycle needs beyond a plain current/initial pair.
type Processed struct {
	RID     *value.RecordID
	Val     value.Value
	Extras  document.Workable
	Deferred bool // true for KindDefer: RID is set but Val must be fetched lazily
}
