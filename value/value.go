// Package value implements the tagged-sum Value type the engine manipulates
// everywhere: record contents, query results, path navigation targets, and
// live-query payloads all flow through value.Value.
package value

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the Value variants. A closed set, matched exhaustively
// wherever behavior differs per variant, rather than a polymorphic
// interface hierarchy.
type Kind int

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDatetime
	KindDuration
	KindUUID
	KindArray
	KindObject
	KindGeometry
	KindRecordID
	KindRange
	KindEdges
	KindTable
	KindRegex
	KindClosure
	KindFuture
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindDuration:
		return "duration"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindGeometry:
		return "geometry"
	case KindRecordID:
		return "record"
	case KindRange:
		return "range"
	case KindEdges:
		return "edges"
	case KindTable:
		return "table"
	case KindRegex:
		return "regex"
	case KindClosure:
		return "closure"
	case KindFuture:
		return "future"
	default:
		return "unknown"
	}
}

// Value is the tagged sum described in SPEC_FULL.md §3.1. Only the fields
// relevant to Kind are populated; the rest are zero. This mirrors the
// teacher's RuntimeAction pattern of "typed fields for fast access", closed
// over an explicit discriminator instead of JSON presence.
type Value struct {
	Kind Kind

	B bool
	I int64
	F float64
	S string   // String, Decimal (decimal text form), Regex source, Table name
	Bt []byte  // Bytes
	T time.Time
	D time.Duration
	U uuid.UUID

	Arr []Value
	Obj *Object

	Geom *Geometry
	RID  *RecordID
	Rng  *Range
	Edg  *Edges

	Closure *Closure
	Future  *FutureExpr
}

// Closure is the args/captures/body triple named in §3.1. The body/
// expression language is out of scope; this carries only the shape the
// core moves around opaquely.
type Closure struct {
	Args     []string
	Captures *Object
	Body     string
}

// FutureExpr is a deferred expression awaiting evaluation by a
// caller-supplied FutureEvaluator (§4.2 "Futures").
type FutureExpr struct {
	Expr string
}

// Constructors.

func None() Value { return Value{Kind: KindNone} }
func Null() Value { return Value{Kind: KindNull} }
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func Decimal(s string) Value { return Value{Kind: KindDecimal, S: s} }
func String(s string) Value { return Value{Kind: KindString, S: s} }
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bt: b} }
func Datetime(t time.Time) Value { return Value{Kind: KindDatetime, T: t} }
func Duration(d time.Duration) Value { return Value{Kind: KindDuration, D: d} }
func UUID(u uuid.UUID) Value { return Value{Kind: KindUUID, U: u} }
func Array(vs []Value) Value { return Value{Kind: KindArray, Arr: vs} }
func Object(o *Object) Value { return Value{Kind: KindObject, Obj: o} }
func Table(name string) Value { return Value{Kind: KindTable, S: name} }
func Regex(src string) Value { return Value{Kind: KindRegex, S: src} }
func RecordIDValue(r RecordID) Value { return Value{Kind: KindRecordID, RID: &r} }
func RangeValue(r Range) Value { return Value{Kind: KindRange, Rng: &r} }
func EdgesValue(e Edges) Value { return Value{Kind: KindEdges, Edg: &e} }
func Future(expr string) Value { return Value{Kind: KindFuture, Future: &FutureExpr{Expr: expr}} }

// IsNone reports whether v is the absent-value variant (as opposed to
// explicit Null — §3.1 requires these be distinguishable).
func (v Value) IsNone() bool { return v.Kind == KindNone }

// IsNullish reports None or Null, useful for truthiness-adjacent checks
// where the caller does not need to distinguish absence from explicit null.
func (v Value) IsNullish() bool { return v.Kind == KindNone || v.Kind == KindNull }

// Truthy implements the engine's boolean-coercion rule used by WHERE/ASSERT:
// None/Null/false/0/0.0/""/empty arrays/empty objects are falsy;
// everything else (including non-empty arrays/objects) is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNone, KindNull:
		return false
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	case KindArray:
		return len(v.Arr) > 0
	case KindObject:
		return v.Obj != nil && v.Obj.Len() > 0
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "NONE"
	case KindNull:
		return "NULL"
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindDecimal, KindString, KindRegex, KindTable:
		return v.S
	case KindBytes:
		return fmt.Sprintf("%x", v.Bt)
	case KindDatetime:
		return v.T.Format(time.RFC3339Nano)
	case KindDuration:
		return v.D.String()
	case KindUUID:
		return v.U.String()
	case KindRecordID:
		return v.RID.String()
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// DeepClone copies arrays, objects, bytes and the RecordID so they share
// no backing storage with v, the way the teacher's RuntimeAction.DeepCopy
// avoids aliasing across documents. The Geom, Rng, Edg, Closure and Future
// pointers are copied as is and still point at v's data.
func (v Value) DeepClone() Value {
	out := v
	if v.Arr != nil {
		out.Arr = make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			out.Arr[i] = e.DeepClone()
		}
	}
	if v.Obj != nil {
		out.Obj = v.Obj.Clone()
	}
	if v.Bt != nil {
		out.Bt = append([]byte(nil), v.Bt...)
	}
	if v.RID != nil {
		rid := *v.RID
		out.RID = &rid
	}
	return out
}
