package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surdb/surdb-engine/value"
)

func intCmp(a, b value.Value) int {
	if a.I < b.I {
		return -1
	}
	if a.I > b.I {
		return 1
	}
	return 0
}

func TestMemoryOrderedSortsAcrossBatches(t *testing.T) {
	m := NewMemoryOrdered(intCmp)
	m.Push([]value.Value{value.Int(5), value.Int(1)})
	m.Push([]value.Value{value.Int(3), value.Int(2)})
	require.NoError(t, m.Finalize(context.Background()))
	got := m.Take(0, -1)
	want := []int64{1, 2, 3, 5}
	require.Len(t, got, len(want))
	for i, w := range want {
		require.Equal(t, w, got[i].I)
	}
}

func TestMemoryOrderedPaging(t *testing.T) {
	m := NewMemoryOrdered(intCmp)
	m.Push([]value.Value{value.Int(1), value.Int(2), value.Int(3), value.Int(4)})
	require.NoError(t, m.Finalize(context.Background()))
	got := m.Take(1, 2)
	require.Equal(t, []int64{2, 3}, []int64{got[0].I, got[1].I})
}

func TestAsyncMemoryOrderedMatchesSync(t *testing.T) {
	a := NewAsyncMemoryOrdered(intCmp)
	a.Push([]value.Value{value.Int(9), value.Int(4)})
	a.Push([]value.Value{value.Int(1), value.Int(7)})
	require.NoError(t, a.Finalize(context.Background()))
	got := a.Take(0, -1)
	want := []int64{1, 4, 7, 9}
	for i, w := range want {
		require.Equal(t, w, got[i].I)
	}
}

func TestResultsStoreStartLimit(t *testing.T) {
	r := NewStore(NewMemoryOrdered(intCmp))
	for _, i := range []int64{3, 1, 2} {
		r.Push(value.Int(i))
	}
	got, err := r.StartLimit(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), got[0].I)
	require.Equal(t, int64(2), got[1].I)
}

func TestResultsNoneDiscards(t *testing.T) {
	r := None()
	r.Push(value.Int(1))
	got, err := r.StartLimit(context.Background(), 0, -1)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGroupsCollectorAggregatesByKey(t *testing.T) {
	keyFn := func(v value.Value) []value.Value {
		g, _ := v.Obj.Get("group")
		return []value.Value{g}
	}
	aggFn := func(acc, v value.Value) value.Value {
		n, _ := v.Obj.Get("n")
		if acc.IsNone() {
			return value.Int(n.I)
		}
		return value.Int(acc.I + n.I)
	}
	g := NewGroups(keyFn, aggFn)
	mk := func(group string, n int64) value.Value {
		o := value.NewObject()
		o.Set("group", value.String(group))
		o.Set("n", value.Int(n))
		return value.Object(o)
	}
	g.Push(mk("a", 1))
	g.Push(mk("b", 10))
	g.Push(mk("a", 2))
	out := g.Output()
	require.Len(t, out, 2)
	require.Equal(t, int64(3), out[0].I)
	require.Equal(t, int64(10), out[1].I)
}

func TestFileCollectorRoundTrip(t *testing.T) {
	fc, err := NewFileCollector(intCmp)
	require.NoError(t, err)
	defer fc.Close()
	fc.Push([]value.Value{value.Int(4), value.Int(2)})
	fc.Push([]value.Value{value.Int(1), value.Int(3)})
	require.NoError(t, fc.Finalize(context.Background()))
	got := fc.Take(0, -1)
	want := []int64{1, 2, 3, 4}
	require.Len(t, got, len(want))
	for i, w := range want {
		require.Equal(t, w, got[i].I)
	}
}

func TestSelectPicksFileCollectorBeyondCap(t *testing.T) {
	o, err := Select(true, InMemoryRowCap+1, intCmp)
	require.NoError(t, err)
	_, isFile := o.(*FileCollector)
	require.True(t, isFile)
	o.(*FileCollector).Close()
}

func TestSelectPicksInMemoryStrategyWhenNoSort(t *testing.T) {
	o, err := Select(false, 10, intCmp)
	require.NoError(t, err)
	require.NotNil(t, o)
	_, isFile := o.(*FileCollector)
	require.False(t, isFile)
}
