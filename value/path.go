package value

import (
	"context"

	"github.com/surdb/surdb-engine/dberr"
)

// PartKind discriminates PathPart variants (§4.2). A closed sum, matched
// exhaustively in the walker, per the dynamic-dispatch-avoidance guidance
// in SPEC_FULL §9.
type PartKind int

const (
	PartField PartKind = iota
	PartIndex
	PartFirst
	PartLast
	PartAll
	PartFlatten
	PartWhere
	PartValueExpr
	PartGraph
	PartDestructure
	PartMethod
	PartOptional
	PartRecurse
	PartRepeatRecurse
	PartDoc
)

// PathPart is one step of a navigation path.
type PathPart struct {
	Kind PartKind

	Field string // PartField
	Index int    // PartIndex

	Cond *Expr // PartWhere
	Expr *Expr // PartValueExpr

	Method     string      // PartMethod
	MethodArgs []Value     // PartMethod

	Sub []Path // PartDestructure

	RecurseMin   int   // PartRecurse
	RecurseMax   int   // PartRecurse (-1 = unbounded)
	RecurseInner *Path // PartRecurse, optional
}

// Expr is an opaque caller-evaluated expression (WHERE conditions, VALUE
// expressions, …). The expression language itself is out of scope (§1); the
// engine only needs somewhere to hang a caller-supplied evaluator.
type Expr struct {
	Src string
}

// Path is an ordered sequence of PathParts.
type Path []PathPart

// Field is a convenience constructor for the common case.
func Field(name string) PathPart { return PathPart{Kind: PartField, Field: name} }

// Idx is a convenience constructor for array index access.
func Idx(i int) PathPart { return PathPart{Kind: PartIndex, Index: i} }

// FieldPath builds a Path from plain field names, e.g. FieldPath("a","b").
func FieldPath(names ...string) Path {
	p := make(Path, len(names))
	for i, n := range names {
		p[i] = Field(n)
	}
	return p
}

// FutureEvaluator resolves a Value::Future's expression to a concrete
// Value under the "futures enabled" option (§4.2).
type FutureEvaluator func(ctx context.Context, expr string) (Value, error)

// ExprEvaluator resolves an opaque Expr (WHERE/VALUE/ASSERT bodies) against
// the current walk state to a Value. Injected by the caller exactly like
// the teacher's VariableResolver is injected into SubstituteVariables.
type ExprEvaluator func(ctx context.Context, expr *Expr, current Value) (Value, error)

// Walker carries the optional evaluators and depth ceiling for a single
// path-navigation call.
type Walker struct {
	Futures   FutureEvaluator
	Exprs     ExprEvaluator
	MaxDepth  int // 0 uses defaultMaxDepth
}

const defaultMaxDepth = 256

func (w Walker) maxDepth() int {
	if w.MaxDepth > 0 {
		return w.MaxDepth
	}
	return defaultMaxDepth
}

// Get walks path over v, returning None on any missing intermediate key
// (never an error) unless the recursion/computation depth ceiling is
// exceeded, which fails with ErrComputationDepthExceeded (§4.2). A path
// with more parts than the ceiling fails the same way before any walking.
func (w Walker) Get(ctx context.Context, v Value, path Path) (Value, error) {
	if len(path) > w.maxDepth() {
		return Value{}, dberr.ErrComputationDepthExceeded
	}
	return w.get(ctx, v, path, 0)
}

func Get(ctx context.Context, v Value, path Path) (Value, error) {
	return Walker{}.Get(ctx, v, path)
}

func (w Walker) get(ctx context.Context, v Value, path Path, depth int) (Value, error) {
	if depth > w.maxDepth() {
		return Value{}, dberr.ErrComputationDepthExceeded
	}
	if v.Kind == KindFuture && len(path) > 0 {
		resolved, err := w.resolveFuture(ctx, v)
		if err != nil {
			return Value{}, err
		}
		v = resolved
	}
	if len(path) == 0 {
		return v, nil
	}
	part, rest := path[0], path[1:]
	switch part.Kind {
	case PartField:
		if v.Kind != KindObject || v.Obj == nil {
			return None(), nil
		}
		sub, ok := v.Obj.Get(part.Field)
		if !ok {
			return None(), nil
		}
		return w.get(ctx, sub, rest, depth+1)
	case PartIndex:
		if v.Kind != KindArray {
			return None(), nil
		}
		i := part.Index
		if i < 0 {
			i += len(v.Arr)
		}
		if i < 0 || i >= len(v.Arr) {
			return None(), nil
		}
		return w.get(ctx, v.Arr[i], rest, depth+1)
	case PartFirst:
		if v.Kind != KindArray || len(v.Arr) == 0 {
			return None(), nil
		}
		return w.get(ctx, v.Arr[0], rest, depth+1)
	case PartLast:
		if v.Kind != KindArray || len(v.Arr) == 0 {
			return None(), nil
		}
		return w.get(ctx, v.Arr[len(v.Arr)-1], rest, depth+1)
	case PartAll, PartFlatten:
		if v.Kind != KindArray {
			return w.get(ctx, v, rest, depth+1)
		}
		out := make([]Value, 0, len(v.Arr))
		for _, e := range v.Arr {
			r, err := w.get(ctx, e, rest, depth+1)
			if err != nil {
				return Value{}, err
			}
			if part.Kind == PartFlatten && r.Kind == KindArray {
				out = append(out, r.Arr...)
			} else if !r.IsNone() {
				out = append(out, r)
			}
		}
		return Array(out), nil
	case PartWhere:
		if v.Kind != KindArray || w.Exprs == nil || part.Cond == nil {
			return w.get(ctx, v, rest, depth+1)
		}
		out := make([]Value, 0, len(v.Arr))
		for _, e := range v.Arr {
			cond, err := w.Exprs(ctx, part.Cond, e)
			if err != nil {
				return Value{}, err
			}
			if cond.Truthy() {
				r, err := w.get(ctx, e, rest, depth+1)
				if err != nil {
					return Value{}, err
				}
				out = append(out, r)
			}
		}
		return Array(out), nil
	case PartOptional:
		if v.IsNone() {
			return None(), nil
		}
		return w.get(ctx, v, rest, depth+1)
	case PartDoc:
		return w.get(ctx, v, rest, depth+1)
	case PartRecurse:
		return w.recurse(ctx, v, part, rest, depth+1)
	case PartRepeatRecurse:
		return Value{}, dberr.ErrInvalidRepeatRecurse
	case PartDestructure:
		out := NewObject()
		for _, sub := range part.Sub {
			if len(sub) == 0 {
				continue
			}
			last := sub[len(sub)-1]
			r, err := w.get(ctx, v, sub, depth+1)
			if err != nil {
				return Value{}, err
			}
			if last.Kind == PartField {
				out.Set(last.Field, r)
			}
		}
		return Object(out), nil
	case PartValueExpr:
		if w.Exprs == nil || part.Expr == nil {
			return None(), nil
		}
		r, err := w.Exprs(ctx, part.Expr, v)
		if err != nil {
			return Value{}, err
		}
		return w.get(ctx, r, rest, depth+1)
	default:
		return w.get(ctx, v, rest, depth+1)
	}
}

func (w Walker) resolveFuture(ctx context.Context, v Value) (Value, error) {
	if w.Futures == nil || v.Future == nil {
		return v, nil
	}
	return w.Futures(ctx, v.Future.Expr)
}

// recurse repeatedly applies inner (or rest, if inner is nil) between
// RecurseMin and RecurseMax times (§4.2). RepeatRecurse inside inner loops
// iteratively rather than via nested call frames.
func (w Walker) recurse(ctx context.Context, v Value, part PathPart, rest Path, depth int) (Value, error) {
	inner := rest
	if part.RecurseInner != nil {
		inner = *part.RecurseInner
	}
	max := part.RecurseMax
	cur := v
	steps := 0
	for {
		if max >= 0 && steps >= max {
			break
		}
		next, err := w.applyRepeatable(ctx, cur, inner, depth+steps)
		if err != nil {
			return Value{}, err
		}
		if Equal(next, cur) && steps >= part.RecurseMin {
			break
		}
		cur = next
		steps++
		if steps > w.maxDepth() {
			return Value{}, dberr.ErrComputationDepthExceeded
		}
		if steps >= part.RecurseMin && max < 0 {
			// Unbounded recursion without further progress signal: one
			// application per RepeatRecurse iteration is sufficient for
			// the bounded-fixpoint contract; stop once stable.
		}
	}
	if steps < part.RecurseMin {
		return None(), nil
	}
	return cur, nil
}

func (w Walker) applyRepeatable(ctx context.Context, v Value, inner Path, depth int) (Value, error) {
	cur := v
	for _, p := range inner {
		if p.Kind == PartRepeatRecurse {
			continue // the recurse loop itself supplies the repetition
		}
		r, err := w.get(ctx, cur, Path{p}, depth)
		if err != nil {
			return Value{}, err
		}
		cur = r
	}
	return cur, nil
}

// Set creates intermediate objects as needed and writes new at path's leaf.
// On Array.* it fans out (§4.2).
func (w Walker) Set(ctx context.Context, v Value, path Path, newVal Value) (Value, error) {
	if len(path) == 0 {
		return newVal, nil
	}
	part, rest := path[0], path[1:]
	switch part.Kind {
	case PartField:
		obj := v.Obj
		if v.Kind != KindObject || obj == nil {
			obj = NewObject()
		} else {
			obj = obj.Clone()
		}
		cur, _ := obj.Get(part.Field)
		updated, err := w.Set(ctx, cur, rest, newVal)
		if err != nil {
			return Value{}, err
		}
		obj.Set(part.Field, updated)
		return Object(obj), nil
	case PartIndex:
		arr := append([]Value(nil), v.Arr...)
		i := part.Index
		if i < 0 {
			i += len(arr)
		}
		for len(arr) <= i {
			arr = append(arr, None())
		}
		if i < 0 {
			return v, nil
		}
		updated, err := w.Set(ctx, arr[i], rest, newVal)
		if err != nil {
			return Value{}, err
		}
		arr[i] = updated
		return Array(arr), nil
	case PartAll:
		if v.Kind != KindArray {
			return w.Set(ctx, v, rest, newVal)
		}
		out := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			r, err := w.Set(ctx, e, rest, newVal)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Array(out), nil
	default:
		return w.Set(ctx, v, rest, newVal)
	}
}

func Set(ctx context.Context, v Value, path Path, newVal Value) (Value, error) {
	return Walker{}.Set(ctx, v, path, newVal)
}

// Del removes the leaf at path; no-op on absent (§4.2).
func (w Walker) Del(ctx context.Context, v Value, path Path) (Value, error) {
	if len(path) == 0 {
		return None(), nil
	}
	if len(path) == 1 && path[0].Kind == PartField {
		if v.Kind != KindObject || v.Obj == nil {
			return v, nil
		}
		obj := v.Obj.Clone()
		obj.Del(path[0].Field)
		return Object(obj), nil
	}
	part, rest := path[0], path[1:]
	switch part.Kind {
	case PartField:
		if v.Kind != KindObject || v.Obj == nil {
			return v, nil
		}
		cur, ok := v.Obj.Get(part.Field)
		if !ok {
			return v, nil
		}
		updated, err := w.Del(ctx, cur, rest)
		if err != nil {
			return Value{}, err
		}
		obj := v.Obj.Clone()
		obj.Set(part.Field, updated)
		return Object(obj), nil
	case PartIndex:
		if v.Kind != KindArray {
			return v, nil
		}
		i := part.Index
		if i < 0 {
			i += len(v.Arr)
		}
		if i < 0 || i >= len(v.Arr) {
			return v, nil
		}
		arr := append([]Value(nil), v.Arr...)
		updated, err := w.Del(ctx, arr[i], rest)
		if err != nil {
			return Value{}, err
		}
		arr[i] = updated
		return Array(arr), nil
	default:
		return w.Del(ctx, v, rest)
	}
}

func Del(ctx context.Context, v Value, path Path) (Value, error) {
	return Walker{}.Del(ctx, v, path)
}

// Increment applies numeric arithmetic, array union, or initializes an
// absent leaf to delta (§4.2).
func Increment(ctx context.Context, v Value, path Path, delta Value) (Value, error) {
	cur, err := Get(ctx, v, path)
	if err != nil {
		return Value{}, err
	}
	next, err := incrementLeaf(cur, delta, 1)
	if err != nil {
		return Value{}, err
	}
	return Set(ctx, v, path, next)
}

// Decrement is Increment with the delta's sign inverted for numeric leaves,
// and set-difference for arrays (§4.2).
func Decrement(ctx context.Context, v Value, path Path, delta Value) (Value, error) {
	cur, err := Get(ctx, v, path)
	if err != nil {
		return Value{}, err
	}
	next, err := incrementLeaf(cur, delta, -1)
	if err != nil {
		return Value{}, err
	}
	return Set(ctx, v, path, next)
}

func incrementLeaf(cur, delta Value, sign int) (Value, error) {
	switch cur.Kind {
	case KindNone:
		if sign < 0 {
			return cur, nil
		}
		return delta, nil
	case KindInt:
		if delta.Kind == KindInt {
			return Int(cur.I + int64(sign)*delta.I), nil
		}
		df, _ := numeric(delta)
		return Float(float64(cur.I) + float64(sign)*df), nil
	case KindFloat:
		df, _ := numeric(delta)
		return Float(cur.F + float64(sign)*df), nil
	case KindArray:
		if sign > 0 {
			return extendArray(cur.Arr, delta), nil
		}
		return diffArray(cur.Arr, delta), nil
	default:
		return cur, nil
	}
}

// Extend implements array-union-with-uniqueness, or scalar-with-array
// prepend/append semantics per §8's array-extend-idempotence property:
// existing elements keep their order, x is appended only if absent.
func Extend(ctx context.Context, v Value, path Path, x Value) (Value, error) {
	cur, err := Get(ctx, v, path)
	if err != nil {
		return Value{}, err
	}
	var next Value
	if cur.Kind == KindArray {
		next = extendArray(cur.Arr, x)
	} else if cur.IsNone() {
		next = Array([]Value{x})
	} else {
		next = extendArray([]Value{cur}, x)
	}
	return Set(ctx, v, path, next)
}

func extendArray(arr []Value, x Value) Value {
	items := flattenToSlice(x)
	out := append([]Value(nil), arr...)
	for _, item := range items {
		if !containsValue(out, item) {
			out = append(out, item)
		}
	}
	return Array(out)
}

func diffArray(arr []Value, x Value) Value {
	items := flattenToSlice(x)
	out := make([]Value, 0, len(arr))
	for _, e := range arr {
		if !containsValue(items, e) {
			out = append(out, e)
		}
	}
	return Array(out)
}

func flattenToSlice(x Value) []Value {
	if x.Kind == KindArray {
		return x.Arr
	}
	return []Value{x}
}

func containsValue(arr []Value, x Value) bool {
	for _, e := range arr {
		if Equal(e, x) {
			return true
		}
	}
	return false
}
