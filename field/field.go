// Package field implements the field schema engine (§4.5.2): the
// DEFAULT/VALUE/TYPE/ASSERT/READONLY/PERMISSIONS pipeline evaluated per
// field, in declaration order, for every path at which the field appears
// in a document's current value.
//
// The VALUE and ASSERT steps need to compute arbitrary expressions, and
// the expression language itself is out of scope (§1) — exactly the
// shape semantic/runtime/variables.go solves with its VariableResolver
// interface injection. field.Evaluator plays the same role here:
// SubstituteVariables takes a caller-supplied VariableResolver, the field
// engine's Apply takes a caller-supplied Evaluator.
package field

import (
	"context"
	"strings"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/value"
)

// Permission is the PERMISSIONS.create/update/select variant for one
// field (§4.5.2 step 7).
type PermissionKind int

const (
	PermissionFull PermissionKind = iota
	PermissionNone
	PermissionSpecific
)

type Permission struct {
	Kind PermissionKind
	Expr *value.Expr // PermissionSpecific
}

// Permissions groups the per-action permission for one field.
type Permissions struct {
	Create Permission
	Update Permission
	Select Permission
}

// Definition is one DEFINE FIELD declaration.
type Definition struct {
	Name        string
	Path        value.Path
	Type        string // e.g. "int", "string", "option<int>" — see value.CoerceTo
	Default     *value.Expr
	StaticValue *value.Value // DEFAULT/VALUE literal, evaluated once at definition time
	ValueExpr   *value.Expr  // VALUE expression, evaluated per document
	Assert      *value.Expr
	Readonly    bool
	Permissions Permissions
}

// Evaluator computes an arbitrary expression with the field engine's
// bound variables ($input, $value, $after, $before) in scope. The
// expression language itself is out of scope (§1); every caller supplies
// its own.
type Evaluator func(ctx context.Context, expr *value.Expr, vars Vars) (value.Value, error)

// Vars are the variables the field engine binds while evaluating a VALUE
// or ASSERT expression.
type Vars struct {
	Input value.Value // $input: the raw value before this step
	Value value.Value // $value: the value after DEFAULT/TYPE coercion
	After value.Value // $after: the whole document's Current
	Before value.Value // $before: the whole document's Initial
}

// Context carries everything Apply needs beyond the field list itself.
type Context struct {
	Thing       string // for error messages (RecordID string form)
	IsNew       bool   // true for CREATE / INSERT-as-create
	PermsOff    bool   // futures/permissions disabled (e.g. system maintenance)
	Eval        Evaluator
}

// skipTracker implements the Option(_) skip-prefix mechanism: once a field
// becomes None and is declared Option(_), its name is recorded as a skip
// prefix so sub-fields aren't processed; the skip clears once a later
// field name no longer starts with the prefix (fields are processed in
// declaration order, which for a schemafull table is parent-before-child).
type skipTracker struct {
	prefix string
	active bool
}

func (s *skipTracker) shouldSkip(name string) bool {
	if !s.active {
		return false
	}
	if name == s.prefix || strings.HasPrefix(name, s.prefix+".") {
		return true
	}
	s.active = false
	return false
}

func (s *skipTracker) mark(name string) {
	s.prefix = name
	s.active = true
}

// Apply runs every field definition's pipeline against current in
// declaration order, returning the mutated value. current is never
// mutated in place by Apply's caller contract; Apply returns the new
// value explicitly.
func Apply(ctx context.Context, defs []Definition, current value.Value, initial value.Value, fctx Context) (value.Value, error) {
	skip := &skipTracker{}
	cur := current
	for _, def := range defs {
		if skip.shouldSkip(def.Name) {
			continue
		}
		next, err := applyOne(ctx, def, cur, initial, fctx)
		if err != nil {
			return cur, err
		}
		cur = next

		if value.IsOption(def.Type) {
			v, _ := value.Get(ctx, cur, def.Path)
			if v.IsNone() {
				skip.mark(def.Name)
			}
		}
	}
	return cur, nil
}

func applyOne(ctx context.Context, def Definition, cur, initial value.Value, fctx Context) (value.Value, error) {
	input, _ := value.Get(ctx, cur, def.Path)

	// 1. READONLY: new value must equal initial value (non-create only).
	if def.Readonly && !fctx.IsNew {
		oldVal, _ := value.Get(ctx, initial, def.Path)
		if !value.Equal(input, oldVal) {
			return cur, &dberr.FieldReadonly{Thing: fctx.Thing, Field: def.Name}
		}
		// Readonly fields do not re-run VALUE/ASSERT; the incoming value
		// already equals the stored one.
		return cur, nil
	}

	v := input

	// 2. DEFAULT / static VALUE: if new document and value is None, assign.
	if fctx.IsNew && v.IsNone() && def.StaticValue != nil {
		v = *def.StaticValue
	}

	// 3. TYPE coercion.
	var err error
	v, err = coerce(fctx, def, v)
	if err != nil {
		return cur, err
	}

	// 4. VALUE expression.
	if def.ValueExpr != nil {
		vars := Vars{Input: input, Value: v, After: cur, Before: initial}
		v, err = fctx.Eval(ctx, def.ValueExpr, vars)
		if err != nil {
			return cur, err
		}
	}

	// 5. TYPE again (VALUE may have changed the value).
	v, err = coerce(fctx, def, v)
	if err != nil {
		return cur, err
	}

	// 6. ASSERT.
	if def.Assert != nil {
		if v.IsNone() && value.IsOption(def.Type) {
			// tolerated
		} else {
			vars := Vars{Input: input, Value: v, After: cur, Before: initial}
			ok, err := fctx.Eval(ctx, def.Assert, vars)
			if err != nil {
				return cur, err
			}
			if !ok.Truthy() {
				return cur, &dberr.FieldValue{
					Thing: fctx.Thing, Field: def.Name,
					Value: v.String(), Check: def.Assert.Src,
				}
			}
		}
	}

	// 7. PERMISSIONS.create|update.
	perm := def.Permissions.Update
	if fctx.IsNew {
		perm = def.Permissions.Create
	}
	oldVal, _ := value.Get(ctx, initial, def.Path)
	v, err = applyPermission(ctx, perm, v, input, oldVal, cur, initial, fctx)
	if err != nil {
		return cur, err
	}

	// 8. Commit into current.
	if v.IsNone() {
		return value.Del(ctx, cur, def.Path)
	}
	return value.Set(ctx, cur, def.Path, v)
}

func coerce(fctx Context, def Definition, v value.Value) (value.Value, error) {
	if def.Type == "" {
		return v, nil
	}
	if v.IsNone() && value.IsOption(def.Type) {
		return v, nil
	}
	out, err := value.CoerceTo(v, def.Type)
	if err != nil {
		return v, &dberr.FieldCheck{
			Thing: fctx.Thing, Field: def.Name,
			Value: v.String(), Check: def.Type,
		}
	}
	return out, nil
}

func applyPermission(ctx context.Context, perm Permission, v, input, oldVal, cur, initial value.Value, fctx Context) (value.Value, error) {
	switch perm.Kind {
	case PermissionFull:
		return v, nil
	case PermissionNone:
		return oldVal, nil
	case PermissionSpecific:
		if fctx.PermsOff || perm.Expr == nil {
			return v, nil
		}
		vars := Vars{Input: input, Value: v, After: cur, Before: initial}
		ok, err := fctx.Eval(ctx, perm.Expr, vars)
		if err != nil {
			return v, err
		}
		if !ok.Truthy() {
			return oldVal, nil
		}
		return v, nil
	default:
		return v, nil
	}
}
