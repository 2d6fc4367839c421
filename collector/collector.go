// Package collector implements the result collection modes of SPEC_FULL.md
// §4.3: None/Store/Groups, and the ordering strategies a Store collector
// delegates to.
//
// Grounded in worker/pool.go (teacher)'s bounded-channel producer/consumer
// idiom for AsyncMemoryOrdered, generalized from named job queues to an
// anonymous batch-merge pipeline.
package collector

import (
	"context"
	"sort"

	"github.com/surdb/surdb-engine/value"
)

// Mode selects which collection strategy Results uses.
type Mode int

const (
	ModeNone Mode = iota
	ModeStore
	ModeGroups
)

// Comparator orders two values for a Store collector's SortBy.
type Comparator func(a, b value.Value) int

// Ordered is the shared interface every ordering strategy implements
// (§4.3).
type Ordered interface {
	Push(batch []value.Value)
	Finalize(ctx context.Context) error
	Take(start, limit int) []value.Value
	Len() int
}

// GroupKeyFunc computes the GROUP BY key tuple for one row.
type GroupKeyFunc func(v value.Value) []value.Value

// GroupAggFunc folds one row into a group's running accumulator and
// returns the updated accumulator.
type GroupAggFunc func(acc value.Value, v value.Value) value.Value

// GroupsCollector aggregates rows into group buckets keyed by GROUP
// expressions (§3.7).
type GroupsCollector struct {
	keyFn   GroupKeyFunc
	aggFn   GroupAggFunc
	order   []string
	buckets map[string]value.Value
	keys    map[string][]value.Value
}

// NewGroups constructs a Groups collector. Each new group's accumulator
// starts as the zero value.Value, which is None.
func NewGroups(keyFn GroupKeyFunc, aggFn GroupAggFunc) *GroupsCollector {
	return &GroupsCollector{
		keyFn:   keyFn,
		aggFn:   aggFn,
		buckets: make(map[string]value.Value),
		keys:    make(map[string][]value.Value),
	}
}

func groupHash(key []value.Value) string {
	arr := value.Array(key)
	return arr.String()
}

// Push routes v into its group bucket, creating it on first sight.
func (g *GroupsCollector) Push(v value.Value) {
	key := g.keyFn(v)
	h := groupHash(key)
	acc, ok := g.buckets[h]
	if !ok {
		g.order = append(g.order, h)
		g.keys[h] = key
	}
	g.buckets[h] = g.aggFn(acc, v)
}

// Output emits one row per group, in first-seen order. Each row is the
// group's accumulator exactly as aggFn returned it; no group key field is
// added (callers shape aggFn's return value as the desired row already).
func (g *GroupsCollector) Output() []value.Value {
	out := make([]value.Value, 0, len(g.order))
	for _, h := range g.order {
		out = append(out, g.buckets[h])
	}
	return out
}

// Results is the statement-level accumulator selected by Prepare (§3.7).
type Results struct {
	Mode    Mode
	store   Ordered
	groups  *GroupsCollector
	pending []value.Value
}

// None returns a Results that discards every pushed value.
func None() *Results { return &Results{Mode: ModeNone} }

// NewStore returns a Results backed by the given Ordered strategy.
func NewStore(o Ordered) *Results { return &Results{Mode: ModeStore, store: o} }

// NewGroupsResults returns a Results backed by a GroupsCollector.
func NewGroupsResults(g *GroupsCollector) *Results { return &Results{Mode: ModeGroups, groups: g} }

// Push accepts one value into the collector.
func (r *Results) Push(v value.Value) {
	switch r.Mode {
	case ModeNone:
		return
	case ModeGroups:
		r.groups.Push(v)
	default:
		r.pending = append(r.pending, v)
		if len(r.pending) >= DefaultBatchMaxSize {
			r.flush()
		}
	}
}

func (r *Results) flush() {
	if len(r.pending) == 0 {
		return
	}
	r.store.Push(r.pending)
	r.pending = nil
}

// StartLimit applies paging to the finalized sequence after sort (§4.3).
func (r *Results) StartLimit(ctx context.Context, start, limit int) ([]value.Value, error) {
	switch r.Mode {
	case ModeNone:
		return nil, nil
	case ModeGroups:
		out := r.groups.Output()
		return page(out, start, limit), nil
	default:
		r.flush()
		if err := r.store.Finalize(ctx); err != nil {
			return nil, err
		}
		return r.store.Take(start, limit), nil
	}
}

func page(vs []value.Value, start, limit int) []value.Value {
	if start < 0 {
		start = 0
	}
	if start >= len(vs) {
		return nil
	}
	end := len(vs)
	if limit >= 0 && start+limit < end {
		end = start + limit
	}
	return vs[start:end]
}

// DefaultBatchMaxSize is the batch size at which Push flushes pending
// rows into the ordering strategy (§4.3 MemoryOrdered).
const DefaultBatchMaxSize = 4096

// sortStable applies a stable sort by cmp, matching the "stable when
// expressions compare equal" guarantee of §4.3.
func sortStable(vs []value.Value, cmp Comparator) {
	sort.SliceStable(vs, func(i, j int) bool { return cmp(vs[i], vs[j]) < 0 })
}
