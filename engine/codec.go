// Package engine wires every subsystem package in this repository into
// one runnable query engine: cache, kv/boltkv, collector, document,
// field, fulltext, iterator, livequery, plan and exec. Nothing outside
// engine knows about all of these at once — every other package only
// sees the narrow interface it needs (document.Hooks, iterator.Store,
// exec.StatementRunner), and engine is where the concrete
// implementations of those interfaces live.
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surdb/surdb-engine/value"
)

// wireValue is the on-disk/on-wire JSON projection of a value.Value,
// grounded in db/bolt.PutJSON/GetJSON (teacher)'s "marshal through
// encoding/json, tagged by bucket+key" discipline — generalized here from
// a bucket-of-opaque-structs store to a single recursive tagged-union
// encoding, since a record's fields are themselves value.Values.
type wireValue struct {
	K string `json:"k"`

	B    *bool      `json:"b,omitempty"`
	I    *int64     `json:"i,omitempty"`
	F    *float64   `json:"f,omitempty"`
	S    *string    `json:"s,omitempty"`
	Bt   []byte     `json:"bt,omitempty"`
	T    *time.Time `json:"t,omitempty"`
	Dms  *int64     `json:"d,omitempty"` // Duration, milliseconds
	U    *string    `json:"u,omitempty"`

	Arr []wireValue          `json:"arr,omitempty"`
	Obj []wireField          `json:"obj,omitempty"`

	RID *wireRecordID `json:"rid,omitempty"`
}

type wireField struct {
	Key string    `json:"key"`
	Val wireValue `json:"val"`
}

type wireRecordID struct {
	Table string    `json:"table"`
	Key   wireValue `json:"key"`
}

// EncodeValue renders v as the JSON bytes stored for one record. Closure,
// Future, Range, Edges, and Geometry never reach storage — a stored
// record is always a concrete Object (§3.1) — so they are rejected here
// rather than silently dropped.
func EncodeValue(v value.Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// DecodeValue is EncodeValue's inverse.
func DecodeValue(data []byte) (value.Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return value.Value{}, err
	}
	return fromWire(w)
}

func toWire(v value.Value) (wireValue, error) {
	w := wireValue{K: v.Kind.String()}
	switch v.Kind {
	case value.KindNone, value.KindNull:
	case value.KindBool:
		w.B = &v.B
	case value.KindInt:
		w.I = &v.I
	case value.KindFloat:
		w.F = &v.F
	case value.KindDecimal, value.KindString, value.KindRegex, value.KindTable:
		w.S = &v.S
	case value.KindBytes:
		w.Bt = v.Bt
	case value.KindDatetime:
		w.T = &v.T
	case value.KindDuration:
		ms := v.D.Milliseconds()
		w.Dms = &ms
	case value.KindUUID:
		s := v.U.String()
		w.U = &s
	case value.KindArray:
		w.Arr = make([]wireValue, len(v.Arr))
		for i, e := range v.Arr {
			ew, err := toWire(e)
			if err != nil {
				return wireValue{}, err
			}
			w.Arr[i] = ew
		}
	case value.KindObject:
		for _, k := range v.Obj.Keys() {
			fv, _ := v.Obj.Get(k)
			fw, err := toWire(fv)
			if err != nil {
				return wireValue{}, err
			}
			w.Obj = append(w.Obj, wireField{Key: k, Val: fw})
		}
	case value.KindRecordID:
		kw, err := toWire(v.RID.Key)
		if err != nil {
			return wireValue{}, err
		}
		w.RID = &wireRecordID{Table: v.RID.Table, Key: kw}
	default:
		return wireValue{}, fmt.Errorf("engine: %s is not a storable value", v.Kind.String())
	}
	return w, nil
}

func fromWire(w wireValue) (value.Value, error) {
	switch w.K {
	case "none":
		return value.None(), nil
	case "null":
		return value.Null(), nil
	case "bool":
		return value.Bool(deref(w.B)), nil
	case "int":
		return value.Int(deref(w.I)), nil
	case "float":
		return value.Float(deref(w.F)), nil
	case "decimal":
		return value.Decimal(deref(w.S)), nil
	case "string":
		return value.String(deref(w.S)), nil
	case "regex":
		return value.Regex(deref(w.S)), nil
	case "table":
		return value.Table(deref(w.S)), nil
	case "bytes":
		return value.Bytes(w.Bt), nil
	case "datetime":
		return value.Datetime(deref(w.T)), nil
	case "duration":
		return value.Duration(time.Duration(deref(w.Dms)) * time.Millisecond), nil
	case "uuid":
		u, err := uuid.Parse(deref(w.U))
		if err != nil {
			return value.Value{}, err
		}
		return value.UUID(u), nil
	case "array":
		arr := make([]value.Value, len(w.Arr))
		for i, e := range w.Arr {
			ev, err := fromWire(e)
			if err != nil {
				return value.Value{}, err
			}
			arr[i] = ev
		}
		return value.Array(arr), nil
	case "object":
		obj := value.NewObject()
		for _, f := range w.Obj {
			fv, err := fromWire(f.Val)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(f.Key, fv)
		}
		return value.Object(obj), nil
	case "record":
		kv, err := fromWire(w.RID.Key)
		if err != nil {
			return value.Value{}, err
		}
		return value.RecordIDValue(value.RecordID{Table: w.RID.Table, Key: kv}), nil
	default:
		return value.Value{}, fmt.Errorf("engine: unrecognized stored kind %q", w.K)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
