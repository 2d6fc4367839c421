// Package document implements the document lifecycle (§4.5): the fixed,
// ordered per-statement-kind pipeline of checks, schema enforcement,
// storage mutation, index maintenance, side effects, and output plucking
// that every processed record passes through.
//
// Grounded in semantic/runtime/action.go's RuntimeAction (typed fields +
// AllFields, custom MarshalJSON/UnmarshalJSON, DeepCopy via marshal
// round-trip) for the Document's Initial/Current dual-value shape, and
// coordinator/phases.go's PhaseManager for the fixed-ordered-pipeline-of-
// named-steps idiom, generalized from workflow phases to lifecycle steps.
package document

import (
	"github.com/surdb/surdb-engine/value"
)

// WorkableKind discriminates what kind of write this document represents.
type WorkableKind int

const (
	WorkNormal WorkableKind = iota
	WorkInsert
	WorkRelate
)

// Workable tags a document with the extra data its statement kind needs
// beyond the plain current/initial pair (§3.4 Extras).
type Workable struct {
	Kind WorkableKind

	// WorkInsert
	MergeValue value.Value

	// WorkRelate
	RelateFrom value.RecordID
	RelateTo   value.RecordID
	RelateData value.Value
}

// Document is one transient, not-persisted lifecycle instance (§3.4).
type Document struct {
	ID      *value.RecordID
	Initial value.Value // never mutated after construction
	Current value.Value // mutated only through lifecycle steps
	Extras  Workable

	// Materialized lazily by pluck (§4.5.3) after select-permission
	// filtering; nil until computed.
	InitialPermitted *value.Value
	CurrentPermitted *value.Value

	// IsNew is true when this document has no prior stored value
	// (CREATE, or INSERT taking the create branch).
	IsNew bool

	// Result is set by pluck; nil means the document was dropped
	// (OUTPUT NONE, or an ignored/errored document).
	Result *value.Value
}

// New constructs a Document. initial is value.None() for creates.
func New(id *value.RecordID, initial value.Value, extras Workable) *Document {
	return &Document{
		ID:      id,
		Initial: initial,
		Current: initial.DeepClone(),
		Extras:  extras,
		IsNew:   initial.IsNone(),
	}
}
