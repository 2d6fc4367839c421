package collector

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/surdb/surdb-engine/value"
)

// MemoryCollector is the simplest Ordered strategy: a plain slice sorted
// once at Finalize with a stable sort, or shuffled via Fisher-Yates when no
// comparator is given (§4.3 "random order").
type MemoryCollector struct {
	cmp      Comparator
	rows     []value.Value
	final    bool
}

// NewMemoryCollector constructs a MemoryCollector. cmp nil means random
// order (RAND()).
func NewMemoryCollector(cmp Comparator) *MemoryCollector {
	return &MemoryCollector{cmp: cmp}
}

func (m *MemoryCollector) Push(batch []value.Value) { m.rows = append(m.rows, batch...) }

func (m *MemoryCollector) Finalize(ctx context.Context) error {
	if m.final {
		return nil
	}
	if m.cmp != nil {
		sortStable(m.rows, m.cmp)
	} else {
		rand.Shuffle(len(m.rows), func(i, j int) { m.rows[i], m.rows[j] = m.rows[j], m.rows[i] })
	}
	m.final = true
	return nil
}

func (m *MemoryCollector) Take(start, limit int) []value.Value { return page(m.rows, start, limit) }

func (m *MemoryCollector) Len() int { return len(m.rows) }

// MemoryOrdered incrementally merges sorted batches into a cumulative
// index via binary search (§4.3), finalizing lazily on first Take.
type MemoryOrdered struct {
	cmp     Comparator
	rand    bool
	rows    []value.Value
	ordered []int
	final   bool
}

func NewMemoryOrdered(cmp Comparator) *MemoryOrdered {
	return &MemoryOrdered{cmp: cmp}
}

// NewMemoryOrderedRandom builds a MemoryOrdered that shuffles each
// incoming batch's index range via Fisher-Yates instead of sorting it.
func NewMemoryOrderedRandom() *MemoryOrdered {
	return &MemoryOrdered{rand: true}
}

func (m *MemoryOrdered) Push(batch []value.Value) {
	if len(batch) == 0 {
		return
	}
	base := len(m.rows)
	m.rows = append(m.rows, batch...)
	idx := make([]int, len(batch))
	for i := range idx {
		idx[i] = base + i
	}
	if m.rand {
		rand.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		m.ordered = append(m.ordered, idx...)
		return
	}
	if m.cmp == nil {
		// No comparator and not random: keep arrival order.
		m.ordered = append(m.ordered, idx...)
		return
	}
	sort.SliceStable(idx, func(i, j int) bool { return m.cmp(m.rows[idx[i]], m.rows[idx[j]]) < 0 })
	m.mergeIn(idx)
}

// mergeIn merges the freshly-sorted idx slice into m.ordered via binary
// search seeded with the previous insertion point, exploiting the fact
// that idx is itself already sorted (§4.3). Each row goes after any
// equal rows already merged, so equal rows keep their insertion order.
func (m *MemoryOrdered) mergeIn(idx []int) {
	lower := 0
	for _, i := range idx {
		pos := lower + sort.Search(len(m.ordered)-lower, func(k int) bool {
			return m.cmp(m.rows[m.ordered[lower+k]], m.rows[i]) > 0
		})
		m.ordered = append(m.ordered, 0)
		copy(m.ordered[pos+1:], m.ordered[pos:])
		m.ordered[pos] = i
		lower = pos + 1
	}
}

func (m *MemoryOrdered) Finalize(ctx context.Context) error {
	m.final = true
	return nil
}

func (m *MemoryOrdered) Take(start, limit int) []value.Value {
	idxPage := pageInts(m.ordered, start, limit)
	out := make([]value.Value, len(idxPage))
	for i, idx := range idxPage {
		out[i] = m.rows[idx]
	}
	return out
}

func pageInts(vs []int, start, limit int) []int {
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

func (m *MemoryOrdered) Len() int { return len(m.rows) }

// AsyncMemoryOrdered mirrors MemoryOrdered but receives batches through a
// bounded channel (buffer 128) drained by a background goroutine that
// performs the merge concurrently with the producer, the same bounded-
// channel-with-drain idiom worker.Pool uses for jobs, applied here to
// merge-sort batches instead.
type AsyncMemoryOrdered struct {
	inner   *MemoryOrdered
	batches chan []value.Value
	done    chan struct{}
}

const asyncBatchBuffer = 128

func NewAsyncMemoryOrdered(cmp Comparator) *AsyncMemoryOrdered {
	a := &AsyncMemoryOrdered{
		inner:   NewMemoryOrdered(cmp),
		batches: make(chan []value.Value, asyncBatchBuffer),
		done:    make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *AsyncMemoryOrdered) drain() {
	defer close(a.done)
	for batch := range a.batches {
		a.inner.Push(batch)
	}
}

func (a *AsyncMemoryOrdered) Push(batch []value.Value) {
	cp := append([]value.Value(nil), batch...)
	a.batches <- cp
}

func (a *AsyncMemoryOrdered) Finalize(ctx context.Context) error {
	close(a.batches)
	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.inner.Finalize(ctx)
}

func (a *AsyncMemoryOrdered) Take(start, limit int) []value.Value {
	return a.inner.Take(start, limit)
}

func (a *AsyncMemoryOrdered) Len() int { return a.inner.Len() }
