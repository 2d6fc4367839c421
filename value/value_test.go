package value

import (
	"context"
	"testing"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{None(), false},
		{Null(), false},
		{Bool(false), false},
		{Bool(true), true},
		{Int(0), false},
		{Int(1), true},
		{String(""), false},
		{String("x"), true},
		{Array(nil), false},
		{Array([]Value{Int(1)}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestCompareCrossVariantOrder(t *testing.T) {
	if Compare(None(), Null()) >= 0 {
		t.Errorf("expected None < Null")
	}
	if Compare(Null(), Bool(false)) >= 0 {
		t.Errorf("expected Null < Bool")
	}
	if Compare(Bool(true), Int(0)) >= 0 {
		t.Errorf("expected Bool < Int")
	}
}

func TestCompareNumericCrossKind(t *testing.T) {
	if Compare(Int(1), Float(1.0)) != 0 {
		t.Errorf("expected Int(1) == Float(1.0)")
	}
	if Compare(Int(1), Float(2.0)) >= 0 {
		t.Errorf("expected Int(1) < Float(2.0)")
	}
}

func TestPathRoundTrip(t *testing.T) {
	ctx := context.Background()
	obj := NewObject()
	obj.Set("a", Int(1))
	v := Object(obj)
	path := FieldPath("a")

	old, err := Get(ctx, v, path)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := Set(ctx, v, path, old)
	if err != nil {
		t.Fatal(err)
	}
	if Compare(rt, v) != 0 {
		t.Errorf("path round-trip failed: got %v, want %v", rt, v)
	}
}

func TestGetMissingFieldYieldsNone(t *testing.T) {
	ctx := context.Background()
	obj := NewObject()
	v := Object(obj)
	got, err := Get(ctx, v, FieldPath("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNone() {
		t.Errorf("expected None for missing field, got %v", got)
	}
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	ctx := context.Background()
	v := None()
	updated, err := Set(ctx, v, FieldPath("a", "b", "c"), Int(42))
	if err != nil {
		t.Fatal(err)
	}
	got, err := Get(ctx, updated, FieldPath("a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindInt || got.I != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestDelNoopOnAbsent(t *testing.T) {
	ctx := context.Background()
	obj := NewObject()
	obj.Set("a", Int(1))
	v := Object(obj)
	updated, err := Del(ctx, v, FieldPath("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if Compare(updated, v) != 0 {
		t.Errorf("Del on absent path mutated value: got %v, want %v", updated, v)
	}
}

func TestIncrementDecrementRoundTrip(t *testing.T) {
	ctx := context.Background()
	obj := NewObject()
	obj.Set("n", Int(5))
	v := Object(obj)
	path := FieldPath("n")

	same, err := Increment(ctx, v, path, Int(0))
	if err != nil {
		t.Fatal(err)
	}
	if Compare(same, v) != 0 {
		t.Errorf("Increment by 0 changed value: got %v, want %v", same, v)
	}

	up, err := Increment(ctx, v, path, Int(3))
	if err != nil {
		t.Fatal(err)
	}
	down, err := Decrement(ctx, up, path, Int(3))
	if err != nil {
		t.Fatal(err)
	}
	if Compare(down, v) != 0 {
		t.Errorf("increment/decrement round trip failed: got %v, want %v", down, v)
	}
}

func TestExtendIdempotence(t *testing.T) {
	ctx := context.Background()
	obj := NewObject()
	obj.Set("tags", Array([]Value{String("a"), String("b")}))
	v := Object(obj)
	path := FieldPath("tags")

	updated, err := Extend(ctx, v, path, String("b"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := Get(ctx, updated, path)
	if len(got.Arr) != 2 {
		t.Errorf("expected extend with existing element to be a no-op, got %v", got)
	}

	updated2, err := Extend(ctx, updated, path, String("c"))
	if err != nil {
		t.Fatal(err)
	}
	got2, _ := Get(ctx, updated2, path)
	if len(got2.Arr) != 3 || got2.Arr[0].S != "a" || got2.Arr[1].S != "b" || got2.Arr[2].S != "c" {
		t.Errorf("expected [a b c], got %v", got2)
	}
}

func TestComputationDepthExceeded(t *testing.T) {
	ctx := context.Background()
	path := make(Path, 300)
	for i := range path {
		path[i] = Field("x")
	}
	_, err := Get(ctx, None(), path)
	if err == nil {
		t.Fatal("expected ErrComputationDepthExceeded")
	}
}
