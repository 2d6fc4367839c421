package document

import (
	"context"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// Action names which permission bucket applies (§4.5 checkPerms*).
type Action int

const (
	ActionSelect Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

// TableType enforces §4.5 checkTableType: TYPE NORMAL|RELATION|ANY.
type TableType int

const (
	TableNormal TableType = iota
	TableRelation
	TableAny
)

// TablePermissions groups the per-action table-level permission (§4.5
// checkPermsTable / pluck's select-permission check), reusing
// field.Permission's Full/None/Specific shape since table permissions are
// the same three-way variant.
type TablePermissions struct {
	Select field.Permission
	Create field.Permission
	Update field.Permission
	Delete field.Permission
}

func (p TablePermissions) For(a Action) field.Permission {
	switch a {
	case ActionSelect:
		return p.Select
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	default:
		return field.Permission{Kind: field.PermissionFull}
	}
}

// TableDef is the catalog metadata the lifecycle needs: schema,
// permissions, and type enforcement. Sourced from the transaction cache
// (cache.Cache) by the caller, not fetched by document itself.
type TableDef struct {
	NS, DB, TB string
	Type       TableType
	Schemafull bool
	Fields     []field.Definition
	Permissions TablePermissions

	// FTIndexes are this table's DEFINE INDEX ... SEARCH ANALYZER
	// definitions (§4.7). storeIndexData/purgeIndexData walk these to
	// keep the fulltext package's term log in step with the record.
	FTIndexes []FTIndexDef
}

// FTIndexDef is one full-text index attached to a table: which field it
// indexes, and with what analyzer/scoring configuration. DEFINE INDEX is
// not modeled on stmt.Statement (§1 — the grammar is out of scope), so
// callers populate this directly on TableDef the same way they do Fields.
type FTIndexDef struct {
	Name       string
	Field      value.Path
	Analyzer   *fulltext.Analyzer
	Highlights bool
	BM25       fulltext.BM25Params
}

// Hooks is the set of external collaborators the lifecycle invokes for
// storage, indexing, and side effects — every one of them is a full
// subsystem of its own (kv transactions, fulltext indexing, live-query
// fan-out, changefeeds) that document must not import directly to stay
// testable in isolation, the same interface-injection shape field.Evaluator
// uses for the expression language.
type Hooks interface {
	// Eval computes an arbitrary expression (WHERE/VALUE/ASSERT/
	// PERMISSIONS/output FIELDS) with vars bound. The expression language
	// itself is out of scope (§1).
	Eval(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error)

	// StoreRecord writes doc's Current to storage. CREATE uses put-if-
	// absent (returns dberr.IndexExists/ErrRecordExists on conflict);
	// UPDATE/UPSERT/RELATE overwrite.
	StoreRecord(ctx context.Context, doc *Document, table TableDef, isCreate bool) error
	// PurgeRecord deletes doc's stored record entirely (DELETE).
	PurgeRecord(ctx context.Context, doc *Document, table TableDef) error

	StoreIndexData(ctx context.Context, doc *Document, table TableDef) error
	PurgeIndexData(ctx context.Context, doc *Document, table TableDef) error
	StoreEdgesData(ctx context.Context, doc *Document, table TableDef) error

	ProcessTableViews(ctx context.Context, doc *Document, table TableDef) error
	ProcessTableLives(ctx context.Context, doc *Document, table TableDef) error
	ProcessTableEvents(ctx context.Context, doc *Document, table TableDef) error
	ProcessChangefeeds(ctx context.Context, doc *Document, table TableDef) error
}

// Lifecycle is the per-document execution context threaded through every
// step. It receives its Tx-backed collaborators (Hooks) as a constructor
// parameter and never stores a back-reference to the owning exec.Context
// (§9 "weak back-references").
type Lifecycle struct {
	Doc   *Document
	Table TableDef
	Stmt  *stmt.Statement
	Hooks Hooks

	// Thing is the record-id string used in error context.
	Thing string

	// UserCanSelect/etc would normally come from an auth layer; auth is
	// an explicit Non-goal (§1), so checkPermsQuick/checkPermsTable only
	// evaluate the table's DEFINE ... PERMISSIONS clause, never a user
	// role — permission denial here means "the table forbids this
	// action unconditionally or under this record's condition", not
	// "this user lacks a role".
}

// Step is one named pipeline stage (§4.5). It may return dberr.ErrIgnore
// to short-circuit the remaining pipeline without failing the statement.
type Step func(ctx context.Context, lc *Lifecycle) error

// PipelineFor returns the fixed, ordered step sequence for kind, per the
// table in §4.5. Deviating from this order breaks permission or schema
// correctness, so this is the single place the order is declared.
func PipelineFor(kind stmt.Kind) []Step {
	switch kind {
	case stmt.KindSelect:
		return []Step{stepEmpty, stepCheckCond, stepCheckPermsSelect, stepPluck}
	case stmt.KindCreate:
		return []Step{
			stepCheckPermsQuick, stepCheckTableType, stepCheckDataFields,
			stepProcessRecordData, stepProcessTableFields, stepCleanupTableFields,
			stepDefaultRecordData, stepCheckPermsTable, stepStoreRecordDataCreate,
			stepStoreIndexData, stepProcessTableViews, stepProcessTableLives,
			stepProcessTableEvents, stepProcessChangefeeds, stepPluck,
		}
	case stmt.KindUpdate:
		return []Step{
			stepEmpty, stepCheckCond, stepCheckPermsQuick, stepCheckTableType,
			stepCheckDataFields, stepProcessRecordData, stepProcessTableFields,
			stepCleanupTableFields, stepCheckPermsTable, stepStoreRecordDataUpdate,
			stepStoreIndexData, stepProcessTableViews, stepProcessTableLives,
			stepProcessTableEvents, stepProcessChangefeeds, stepPluck,
		}
	case stmt.KindUpsert:
		// §4.5: "like INSERT on missing; like UPDATE on present" — the
		// branch is selected by the iterator before the document is
		// constructed (Doc.IsNew). The pipeline is UPDATE's without
		// stepEmpty (a missing record must go on to be created), plus
		// stepDefaultRecordData, with a store step that uses CREATE's
		// put-if-absent write when IsNew.
		return []Step{
			stepCheckCond, stepCheckPermsQuick, stepCheckTableType,
			stepCheckDataFields, stepProcessRecordData, stepProcessTableFields,
			stepCleanupTableFields, stepDefaultRecordData, stepCheckPermsTable,
			stepStoreRecordDataUpsert, stepStoreIndexData, stepProcessTableViews,
			stepProcessTableLives, stepProcessTableEvents, stepProcessChangefeeds,
			stepPluck,
		}
	case stmt.KindDelete:
		return []Step{
			stepEmpty, stepCheckCond, stepCheckPermsDelete, stepErase,
			stepPurgeIndexData, stepPurgeRecord, stepProcessTableLives,
			stepProcessTableEvents, stepProcessChangefeeds, stepPluck,
		}
	case stmt.KindRelate:
		// Note the RELATE-specific order: changefeeds fire before events,
		// unlike every other statement kind (§4.5 table).
		return []Step{
			stepCheckPermsQuick, stepCheckTableType, stepCheckDataFields,
			stepProcessRecordData, stepStoreEdgesData, stepProcessTableFields,
			stepCleanupTableFields, stepDefaultRecordData, stepCheckPermsTable,
			stepStoreRecordDataCreate, stepStoreIndexData, stepProcessTableViews,
			stepProcessTableLives, stepProcessChangefeeds, stepProcessTableEvents,
			stepPluck,
		}
	case stmt.KindInsert:
		// The iterator runs the CREATE pipeline first; on dberr.IndexExists
		// it retries the document through the UPDATE pipeline (§4.4/§4.5
		// INSERT row). PipelineFor(KindInsert) itself returns the CREATE
		// sequence — the retry substitution is the iterator's job.
		return PipelineFor(stmt.KindCreate)
	default:
		return nil
	}
}

// Run executes every step of pipeline in order. A step returning
// dberr.ErrIgnore stops the pipeline and clears Doc.Result (the iterator
// treats this as "skip this document silently"); any other error aborts
// and is returned verbatim for the caller (iterator/executor) to decide
// how to fail the statement.
func Run(ctx context.Context, lc *Lifecycle, pipeline []Step) error {
	for _, step := range pipeline {
		if err := step(ctx, lc); err != nil {
			if err == dberr.ErrIgnore {
				lc.Doc.Result = nil
				return nil
			}
			return err
		}
	}
	return nil
}
