package collector

import "runtime"

// InMemoryRowCap bounds how many rows Select will hold fully in memory
// before preferring the file collector (§4.3 Selection rule).
const InMemoryRowCap = 1_000_000

// Select picks the ordering strategy for a Store collector per §4.3:
// sort required and total beyond the in-memory cap -> file collector;
// else async-memory-ordered when the machine has more than one usable
// core; else memory-ordered.
func Select(needsSort bool, estimatedRows int, cmp Comparator) (Ordered, error) {
	if needsSort && estimatedRows > InMemoryRowCap {
		return NewFileCollector(cmp)
	}
	if runtime.GOMAXPROCS(0) > 1 {
		return NewAsyncMemoryOrdered(cmp), nil
	}
	return NewMemoryOrdered(cmp), nil
}
