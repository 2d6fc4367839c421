package field

import (
	"context"
	"testing"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/value"
)

func ageField(assert *value.Expr) Definition {
	return Definition{
		Name:   "age",
		Path:   value.FieldPath("age"),
		Type:   value.TypeInt,
		Assert: assert,
		Permissions: Permissions{
			Create: Permission{Kind: PermissionFull},
			Update: Permission{Kind: PermissionFull},
		},
	}
}

func truthyEval(ok bool) Evaluator {
	return func(ctx context.Context, expr *value.Expr, vars Vars) (value.Value, error) {
		return value.Bool(ok), nil
	}
}

func docWithAge(age int64) value.Value {
	o := value.NewObject()
	o.Set("age", value.Int(age))
	return value.Object(o)
}

func TestTypeCoercionSuccess(t *testing.T) {
	cur := docWithAge(10)
	out, err := Apply(context.Background(), []Definition{ageField(nil)}, cur, value.None(), Context{
		Thing: "p:1", IsNew: true, Eval: truthyEval(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := value.Get(context.Background(), out, value.FieldPath("age"))
	if v.I != 10 {
		t.Fatalf("got %v", v)
	}
}

func TestAssertFailure(t *testing.T) {
	cur := docWithAge(-1)
	_, err := Apply(context.Background(), []Definition{ageField(&value.Expr{Src: "$value >= 0"})}, cur, value.None(), Context{
		Thing: "p:1", IsNew: true, Eval: truthyEval(false),
	})
	var fv *dberr.FieldValue
	if err == nil {
		t.Fatalf("expected FieldValue error")
	}
	if !asFieldValue(err, &fv) {
		t.Fatalf("expected *dberr.FieldValue, got %T: %v", err, err)
	}
	if fv.Field != "age" || fv.Thing != "p:1" {
		t.Fatalf("got %+v", fv)
	}
}

func asFieldValue(err error, out **dberr.FieldValue) bool {
	fv, ok := err.(*dberr.FieldValue)
	if ok {
		*out = fv
	}
	return ok
}

func TestReadonlyMismatchFails(t *testing.T) {
	def := Definition{
		Name:     "created",
		Path:     value.FieldPath("created"),
		Readonly: true,
	}
	initial := docWithAge(1)
	o := value.NewObject()
	o.Set("created", value.Int(2))
	cur := value.Object(o)

	_, err := Apply(context.Background(), []Definition{def}, cur, initial, Context{
		Thing: "p:1", IsNew: false, Eval: truthyEval(true),
	})
	if _, ok := err.(*dberr.FieldReadonly); !ok {
		t.Fatalf("expected FieldReadonly, got %v", err)
	}
}

func TestReadonlyAllowsUnchangedValue(t *testing.T) {
	def := Definition{Name: "created", Path: value.FieldPath("created"), Readonly: true}
	o := value.NewObject()
	o.Set("created", value.Int(2))
	initial := value.Object(o.Clone())
	cur := value.Object(o.Clone())

	_, err := Apply(context.Background(), []Definition{def}, cur, initial, Context{
		Thing: "p:1", IsNew: false, Eval: truthyEval(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOptionSkipPrefix(t *testing.T) {
	defs := []Definition{
		{Name: "meta", Path: value.FieldPath("meta"), Type: "option<object>"},
		{Name: "meta.inner", Path: value.FieldPath("meta", "inner"), Type: value.TypeInt, Assert: &value.Expr{Src: "never"}},
	}
	cur := value.None() // meta is absent -> None, Option(_) tolerated
	_, err := Apply(context.Background(), defs, cur, value.None(), Context{
		Thing: "p:1", IsNew: true, Eval: truthyEval(false), // if inner assert ran, it would fail
	})
	if err != nil {
		t.Fatalf("expected skip to suppress the inner field's failing assert, got %v", err)
	}
}

func TestPermissionNoneRevertsToOld(t *testing.T) {
	def := Definition{
		Name: "secret",
		Path: value.FieldPath("secret"),
		Permissions: Permissions{
			Update: Permission{Kind: PermissionNone},
		},
	}
	o := value.NewObject()
	o.Set("secret", value.String("old"))
	initial := value.Object(o.Clone())

	o2 := value.NewObject()
	o2.Set("secret", value.String("attempted-new"))
	cur := value.Object(o2)

	out, err := Apply(context.Background(), []Definition{def}, cur, initial, Context{
		Thing: "p:1", IsNew: false, Eval: truthyEval(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := value.Get(context.Background(), out, value.FieldPath("secret"))
	if v.S != "old" {
		t.Fatalf("expected permission None to revert to old value, got %q", v.S)
	}
}
