package value

import (
	"fmt"
	"strconv"
)

// Kind names used by DEFINE FIELD ... TYPE clauses (§4.5.2). Only the
// subset the engine needs to coerce is implemented; unknown kind names
// fail CoerceTo with an error the field engine translates into
// dberr.FieldCheck.
const (
	TypeAny      = "any"
	TypeBool     = "bool"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeDatetime = "datetime"
	TypeDuration = "duration"
	TypeUUID     = "uuid"
	TypeArray    = "array"
	TypeObject   = "object"
	TypeRecord   = "record"
	TypeNull     = "null"
)

// optionPrefix marks an optional field type, e.g. "option<int>"; ASSERT
// tolerates None only when the declared kind has this wrapper (§4.5.2).
const optionPrefix = "option<"

// IsOption reports whether kind is an Option(_) wrapper.
func IsOption(kind string) bool {
	return len(kind) > len(optionPrefix) && kind[:len(optionPrefix)] == optionPrefix
}

// InnerOption strips the option<...> wrapper, returning the inner kind.
func InnerOption(kind string) string {
	if !IsOption(kind) || len(kind) == 0 {
		return kind
	}
	return kind[len(optionPrefix) : len(kind)-1]
}

// CoerceTo attempts to convert v to the declared kind, per §4.5.2 step 3/5.
// Returns an error describing the mismatch on failure; the field engine
// wraps it as dberr.FieldCheck with thing/field context.
func CoerceTo(v Value, kind string) (Value, error) {
	if IsOption(kind) {
		if v.IsNullish() {
			return v, nil
		}
		return CoerceTo(v, InnerOption(kind))
	}
	switch kind {
	case "", TypeAny:
		return v, nil
	case TypeNull:
		if v.Kind == KindNull || v.IsNone() {
			return Null(), nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to null", v.Kind)
	case TypeBool:
		if v.Kind == KindBool {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to bool", v.Kind)
	case TypeInt:
		switch v.Kind {
		case KindInt:
			return v, nil
		case KindFloat:
			return Int(int64(v.F)), nil
		case KindString:
			i, err := strconv.ParseInt(v.S, 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("value: cannot coerce %q to int", v.S)
			}
			return Int(i), nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to int", v.Kind)
	case TypeFloat:
		if f, ok := numeric(v); ok {
			return Float(f), nil
		}
		if v.Kind == KindString {
			f, err := strconv.ParseFloat(v.S, 64)
			if err != nil {
				return Value{}, fmt.Errorf("value: cannot coerce %q to float", v.S)
			}
			return Float(f), nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to float", v.Kind)
	case TypeString:
		return String(v.String()), nil
	case TypeDatetime:
		if v.Kind == KindDatetime {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to datetime", v.Kind)
	case TypeDuration:
		if v.Kind == KindDuration {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to duration", v.Kind)
	case TypeUUID:
		if v.Kind == KindUUID {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to uuid", v.Kind)
	case TypeArray:
		if v.Kind == KindArray {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to array", v.Kind)
	case TypeObject:
		if v.Kind == KindObject {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to object", v.Kind)
	case TypeRecord:
		if v.Kind == KindRecordID {
			return v, nil
		}
		return Value{}, fmt.Errorf("value: cannot coerce %s to record", v.Kind)
	default:
		return Value{}, fmt.Errorf("value: unknown type %q", kind)
	}
}
