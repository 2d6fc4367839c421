// Package stmt declares the assumed shape of a parsed statement (§3.6):
// only the fields the query execution core reads. It is not a parser —
// the grammar and expression language are explicitly out of scope (§1).
//
// Grounded in workflow/parser.go's dispatch-by-@type shape, generalized to
// dispatch-by-statement-Kind: the source already decided the shape here,
// this package only declares it.
package stmt

import (
	"time"

	"github.com/surdb/surdb-engine/value"
)

// Kind discriminates the statement variants named in §3.6.
type Kind int

const (
	KindSelect Kind = iota
	KindCreate
	KindUpdate
	KindUpsert
	KindDelete
	KindRelate
	KindInsert
	KindLive
	KindKill
	KindDefine
	KindRemove
	KindBegin
	KindCommit
	KindCancel
	KindUse
	KindLet
	KindOption
	KindInfo
	KindOutput
	KindIfelse
	KindSleep
)

// OutputKind selects the OUTPUT clause shape (§4.5.3).
type OutputKind int

const (
	OutputDefault OutputKind = iota // statement-kind-dependent default
	OutputNone
	OutputNull
	OutputDiff
	OutputAfter
	OutputBefore
	OutputFields
)

// Output is the OUTPUT clause.
type Output struct {
	Kind   OutputKind
	Fields []FieldProjection // OutputFields
}

// FieldProjection names one projected field and its output alias for
// OUTPUT FIELDS(...).
type FieldProjection struct {
	Path  value.Path
	Alias string
}

// OrderKind selects ascending/descending/random ordering for ORDER BY.
type OrderKind int

const (
	OrderNone OrderKind = iota
	OrderAsc
	OrderDesc
	OrderRandom
)

// OrderClause is one ORDER BY expression.
type OrderClause struct {
	Expr value.Path
	Kind OrderKind
}

// DataOp selects the DATA clause operator variant (§4.5.1).
type DataOp int

const (
	DataNone DataOp = iota
	DataSet
	DataUnset
	DataPatch
	DataMerge
	DataContent
	DataReplace
)

// SetAssign is one `path op value` assignment of a SET clause.
type SetAssign struct {
	Path  value.Path
	Op    string // "=", "+=", "-=", "EXT"
	Value value.Value
}

// PatchOp is one JSON-Patch-like operation of a PATCH clause.
type PatchOp struct {
	Op    string // "add", "remove", "replace", "change"
	Path  value.Path
	Value value.Value
}

// Data is the DATA clause (§4.5.1).
type Data struct {
	Kind    DataOp
	Set     []SetAssign  // DataSet
	Unset   []value.Path // DataUnset
	Patch   []PatchOp    // DataPatch
	Content value.Value  // DataMerge | DataContent | DataReplace
}

// What is one item of the statement's FROM/WHAT clause, resolved to the
// iterator.Iterable shape by the caller; stmt only carries the
// not-yet-expanded literal/table/thing/range text the parser produced.
type What struct {
	Value value.Value // literal value, table, record id, or range
}

// Statement is the single concrete type every statement kind is
// represented by; only the fields relevant to Kind are populated. This
// mirrors value.Value's "closed sum with a Kind tag" shape per §9.
type Statement struct {
	Kind Kind

	What []What

	Expr  []FieldProjection // SELECT projection list
	Cond  *value.Expr       // WHERE
	Data  *Data
	Order []OrderClause
	Group []value.Path

	Limit *int64
	Start *int64

	Timeout  time.Duration
	Output   Output
	Explain  ExplainMode
	Fetch    []value.Path
	Parallel bool

	// RELATE
	RelateFrom value.Value
	RelateVia  string
	RelateTo   value.Value

	// LET
	LetName string
	LetExpr *value.Expr

	// USE
	UseNS string
	UseDB string

	// INSERT ON DUPLICATE KEY UPDATE
	OnDuplicateUpdate *Data

	// OPTION
	OptionName  string
	OptionValue bool

	// Search selects a SELECT's FROM target by full-text match against a
	// DEFINE INDEX ... SEARCH ANALYZER index instead of a table/record-id
	// scan (§4.7 query path). Mutually exclusive with What in practice,
	// though nothing here enforces that — the runner decides precedence.
	Search *Search

	// raw SQL text, echoed back on Response when Options.Debug is set
	// (§4.8)
	Text string
}

// Search names a full-text query against one table's index: the table,
// the index name and the query text.
type Search struct {
	Table string
	Index string
	Query string
}

// ExplainMode selects whether/how an EXPLAIN is produced (§4.6).
type ExplainMode int

const (
	ExplainNone ExplainMode = iota
	ExplainBasic
	ExplainFull
)

// Query is a sequence of statements executed in order (§4.8).
type Query struct {
	Statements []Statement
}
