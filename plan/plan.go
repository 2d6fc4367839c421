// Package plan implements the EXPLAIN collector of §4.6: when a
// statement's Explain mode is set, the iterator's iterables are
// enumerated into Items instead of being executed, describing how
// the statement would run without mutating or reading document content.
//
// Grounded in db/couchdb_index.go (teacher)'s Index{Name, Fields, Type}
// struct-of-metadata shape, generalized from describing a persisted index
// to describing one iterable/collector/fetch/fallback step of a query
// plan.
package plan

// Operation names one plan entry's kind, matching the iterable/collector
// vocabulary of §4.4/§4.3/§4.6.
type Operation string

const (
	OpIterateTable    Operation = "Iterate Table"
	OpIterateThing    Operation = "Iterate Thing"
	OpIterateRange    Operation = "Iterate Range"
	OpIterateEdges    Operation = "Iterate Edges"
	OpIterateIndex    Operation = "Iterate Index"
	OpIterateMergeable Operation = "Iterate Mergeable"
	OpIterateRelatable Operation = "Iterate Relatable"
	OpIterateValue    Operation = "Iterate Value"
	OpCollector       Operation = "Collector"
	OpFetch           Operation = "Fetch"
	OpFallback        Operation = "Fallback"
)

// Item is one line of an explain plan: an operation plus its detail
// fields. Detail values are pre-formatted strings/numbers/bools, not
// value.Value, since explain output is a diagnostic shape of its own
// rather than a query result.
type Item struct {
	Operation Operation
	Detail    map[string]any
}

// Collector accumulates Items in the order the iterator would have
// expanded/consumed its iterables (§4.6).
type Collector struct {
	Items []Item

	// Full is true for EXPLAIN FULL: the statement actually runs and
	// FetchCount records how many documents were processed.
	Full       bool
	FetchCount int
}

// New returns an empty Collector. full selects EXPLAIN vs EXPLAIN FULL.
func New(full bool) *Collector {
	return &Collector{Full: full}
}

// Add appends one plan item.
func (c *Collector) Add(op Operation, detail map[string]any) {
	c.Items = append(c.Items, Item{Operation: op, Detail: detail})
}

// AddFallback records a reason the query planner could not use a faster
// path (e.g. "index not covering", "no matching index") — §4.6's
// "optional Fallback reasons from the query planner". The planner itself
// is out of scope (§1); callers that know why a plan fell back to a
// table scan report it here.
func (c *Collector) AddFallback(reason string) {
	c.Add(OpFallback, map[string]any{"reason": reason})
}

// AddFetch records a FETCH clause's target path.
func (c *Collector) AddFetch(path string) {
	c.Add(OpFetch, map[string]any{"path": path})
}

// AddCollector records the result-collector strategy chosen for this
// statement (§4.3), e.g. "MemoryOrdered" or "FileCollector".
func (c *Collector) AddCollector(strategy string) {
	c.Add(OpCollector, map[string]any{"type": strategy})
}

// Output renders the collected items as the array-of-objects shape a
// client receives for EXPLAIN/EXPLAIN FULL (§4.6): each item becomes
// {operation, detail}, with an appended {fetch: <count>} row when Full.
func (c *Collector) Output() []map[string]any {
	out := make([]map[string]any, 0, len(c.Items)+1)
	for _, it := range c.Items {
		out = append(out, map[string]any{
			"operation": string(it.Operation),
			"detail":    it.Detail,
		})
	}
	if c.Full {
		out = append(out, map[string]any{"fetch": c.FetchCount})
	}
	return out
}
