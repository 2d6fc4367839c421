package document

import (
	"context"

	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// metaPaths are stripped from every plucked output regardless of OUTPUT
// clause, per §4.5.3 "Metadata paths ... are removed from the final
// output".
var metaPaths = []string{"meta"}

// stepPluck produces Doc.Result per the statement's OUTPUT clause (§4.5.3).
func stepPluck(ctx context.Context, lc *Lifecycle) error {
	selectPerm := lc.Table.Permissions.Select
	if selectPerm.Kind == field.PermissionNone {
		lc.Doc.Result = nil
		return nil
	}

	initialView, err := permittedView(ctx, lc, lc.Doc.Initial)
	if err != nil {
		return err
	}
	currentView, err := permittedView(ctx, lc, lc.Doc.Current)
	if err != nil {
		return err
	}
	lc.Doc.InitialPermitted = &initialView
	lc.Doc.CurrentPermitted = &currentView

	out := lc.Stmt.Output
	kind := out.Kind
	if kind == stmt.OutputDefault {
		kind = defaultOutputFor(lc)
	}

	var result value.Value
	switch kind {
	case stmt.OutputNone:
		lc.Doc.Result = nil
		return nil
	case stmt.OutputNull:
		result = value.Null()
	case stmt.OutputDiff:
		result = diffValue(initialView, currentView)
	case stmt.OutputBefore:
		result = initialView
	case stmt.OutputFields:
		result, err = projectFields(ctx, lc, out.Fields, initialView, currentView)
		if err != nil {
			return err
		}
	default: // OutputAfter
		result = currentView
	}
	lc.Doc.Result = &result
	return nil
}

// defaultOutputFor picks the per-statement default OUTPUT when none was
// specified explicitly.
func defaultOutputFor(lc *Lifecycle) stmt.OutputKind {
	if lc.Stmt == nil {
		return stmt.OutputAfter
	}
	switch lc.Stmt.Kind {
	case stmt.KindSelect:
		return stmt.OutputAfter
	case stmt.KindDelete:
		return stmt.OutputNone
	default:
		return stmt.OutputAfter
	}
}

// permittedView applies select-level field permissions and strips
// metadata paths (§4.5.3). A falsy/None Specific permission drops that
// field from the view entirely (select permissions, unlike
// create/update, have no "revert to old" — there is no "old" for a read).
func permittedView(ctx context.Context, lc *Lifecycle, src value.Value) (value.Value, error) {
	if src.Kind != value.KindObject {
		return stripMeta(src), nil
	}
	out := value.NewObject()
	var outerErr error
	src.Obj.Range(func(key string, v value.Value) bool {
		fd := findFieldByTopKey(lc.Table.Fields, key)
		if fd != nil {
			perm := fd.Permissions.Select
			switch perm.Kind {
			case field.PermissionNone:
				return true
			case field.PermissionSpecific:
				if perm.Expr != nil {
					ok, err := lc.Hooks.Eval(ctx, perm.Expr, field.Vars{Before: lc.Doc.Initial, After: lc.Doc.Current, Value: v})
					if err != nil {
						outerErr = err
						return false
					}
					if !ok.Truthy() {
						return true
					}
				}
			}
		}
		out.Set(key, v)
		return true
	})
	if outerErr != nil {
		return value.None(), outerErr
	}
	return stripMeta(value.Object(out)), nil
}

func findFieldByTopKey(fields []field.Definition, key string) *field.Definition {
	for i := range fields {
		if len(fields[i].Path) > 0 && fields[i].Path[0].Kind == value.PartField && fields[i].Path[0].Field == key {
			return &fields[i]
		}
	}
	return nil
}

func stripMeta(v value.Value) value.Value {
	if v.Kind != value.KindObject {
		return v
	}
	out := v.Obj.Clone()
	for _, p := range metaPaths {
		out.Del(p)
	}
	return value.Object(out)
}

// projectFields implements OUTPUT FIELDS(...): project each named path
// with $after/$before in scope, aliasing into the result object.
func projectFields(ctx context.Context, lc *Lifecycle, projections []stmt.FieldProjection, before, after value.Value) (value.Value, error) {
	out := value.NewObject()
	for _, p := range projections {
		v, err := value.Get(ctx, after, p.Path)
		if err != nil {
			return value.None(), err
		}
		alias := p.Alias
		if alias == "" && len(p.Path) > 0 && p.Path[0].Kind == value.PartField {
			alias = p.Path[0].Field
		}
		out.Set(alias, v)
	}
	return value.Object(out), nil
}

// diffValue builds a JSON-Patch-like diff between before/after: one
// "replace"/"add" op per changed leaf path, one "remove" op per path
// present in before but absent in after. Recurses into nested objects;
// arrays and scalars are compared wholesale (no element-level diffing).
func diffValue(before, after value.Value) value.Value {
	var ops []value.Value
	diffWalk(nil, before, after, &ops)
	return value.Array(ops)
}

func diffWalk(path []string, before, after value.Value, ops *[]value.Value) {
	if before.Kind == value.KindObject && after.Kind == value.KindObject {
		seen := map[string]bool{}
		before.Obj.Range(func(key string, bv value.Value) bool {
			seen[key] = true
			av, ok := after.Obj.Get(key)
			if !ok {
				*ops = append(*ops, patchOp("remove", append(path, key), value.None()))
				return true
			}
			diffWalk(append(path, key), bv, av, ops)
			return true
		})
		after.Obj.Range(func(key string, av value.Value) bool {
			if seen[key] {
				return true
			}
			*ops = append(*ops, patchOp("add", append(path, key), av))
			return true
		})
		return
	}
	if !value.Equal(before, after) {
		op := "replace"
		if before.IsNone() {
			op = "add"
		} else if after.IsNone() {
			op = "remove"
		}
		*ops = append(*ops, patchOp(op, path, after))
	}
}

func patchOp(op string, path []string, v value.Value) value.Value {
	o := value.NewObject()
	o.Set("op", value.String(op))
	parts := make([]value.Value, len(path))
	for i, p := range path {
		parts[i] = value.String(p)
	}
	o.Set("path", value.Array(parts))
	if op != "remove" {
		o.Set("value", v)
	}
	return value.Object(o)
}
