package document

import (
	"context"

	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// ApplyData implements the DATA operator semantics of §4.5.1. eval and
// vars are not consulted: every SetAssign/PatchOp value and DATA content is
// applied as the literal value it already holds.
func ApplyData(ctx context.Context, current value.Value, data *stmt.Data, eval field.Evaluator, vars field.Vars) (value.Value, error) {
	switch data.Kind {
	case stmt.DataNone:
		return current, nil
	case stmt.DataSet:
		return applySet(ctx, current, data.Set)
	case stmt.DataUnset:
		return applyUnset(ctx, current, data.Unset)
	case stmt.DataPatch:
		return applyPatch(ctx, current, data.Patch)
	case stmt.DataMerge:
		return applyMerge(current, data.Content), nil
	case stmt.DataContent:
		return applyContent(current, data.Content), nil
	case stmt.DataReplace:
		return applyReplace(current, data.Content), nil
	default:
		return current, nil
	}
}

func applySet(ctx context.Context, current value.Value, assigns []stmt.SetAssign) (value.Value, error) {
	cur := current
	for _, a := range assigns {
		var err error
		switch a.Op {
		case "+=":
			cur, err = value.Increment(ctx, cur, a.Path, a.Value)
		case "-=":
			cur, err = value.Decrement(ctx, cur, a.Path, a.Value)
		case "EXT":
			cur, err = value.Extend(ctx, cur, a.Path, a.Value)
		default: // "="
			cur, err = value.Set(ctx, cur, a.Path, a.Value)
		}
		if err != nil {
			return cur, err
		}
	}
	return cur, nil
}

func applyUnset(ctx context.Context, current value.Value, paths []value.Path) (value.Value, error) {
	cur := current
	for _, p := range paths {
		var err error
		cur, err = value.Del(ctx, cur, p)
		if err != nil {
			return cur, err
		}
	}
	return cur, nil
}

// applyPatch applies a JSON-Patch-like sequence (§4.5.1). "change" is a
// surdb extension meaning "set if present, no-op if the path is absent" —
// everything else maps directly onto add/remove/replace.
func applyPatch(ctx context.Context, current value.Value, ops []stmt.PatchOp) (value.Value, error) {
	cur := current
	for _, op := range ops {
		var err error
		switch op.Op {
		case "remove":
			cur, err = value.Del(ctx, cur, op.Path)
		case "add", "replace":
			cur, err = value.Set(ctx, cur, op.Path, op.Value)
		case "change":
			existing, gerr := value.Get(ctx, cur, op.Path)
			if gerr != nil {
				return cur, gerr
			}
			if existing.IsNone() {
				continue
			}
			cur, err = value.Set(ctx, cur, op.Path, op.Value)
		}
		if err != nil {
			return cur, err
		}
	}
	return cur, nil
}

// applyMerge performs §4.5.1's deep-left-merge: src's values win on key
// collision, preserving everything else of current.
func applyMerge(current, src value.Value) value.Value {
	if current.Kind != value.KindObject {
		return src.DeepClone()
	}
	if src.Kind != value.KindObject {
		return src.DeepClone()
	}
	return value.Object(value.Merge(current.Obj, src.Obj))
}

// applyContent replaces the entire record, preserving id.
func applyContent(current, src value.Value) value.Value {
	out := src.DeepClone()
	if current.Kind == value.KindObject && out.Kind == value.KindObject {
		if id, ok := current.Obj.Get("id"); ok {
			out.Obj.Set("id", id)
		}
	}
	return out
}

// applyReplace replaces preserving nothing but id, which is exactly what
// applyContent does, so the two share an implementation; REPLACE and
// CONTENT also run through the same pipeline steps afterwards.
func applyReplace(current, src value.Value) value.Value {
	return applyContent(current, src)
}
