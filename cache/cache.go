// Package cache implements the per-transaction typed entry cache described
// in SPEC_FULL.md §4.1/§3.9: a structurally-keyed map of deserialized
// catalog/record reads, invalidated precisely on every DDL mutation so a
// read following a write in the same transaction never observes stale
// state.
//
// Grounded in statemanager.Manager's sync.RWMutex-guarded
// map[string]*OperationState, generalized from a single concrete value
// type to `any` plus a structural Key (kind + scope tuple) so
// InvalidatePrefix can match by predicate instead of string prefix
// matching.
package cache

import "sync"

// Kind discriminates what a Key refers to: a single entity, or an
// enumeration of entities within a scope.
type Kind int

const (
	KindNamespace Kind = iota
	KindAllNamespaces
	KindDatabase
	KindAllDatabases
	KindTable
	KindAllTables
	KindField
	KindAllFields
	KindEvent
	KindAllEvents
	KindIndex
	KindAllIndexes
	KindParam
	KindAllParams
	KindFunction
	KindAllFunctions
	KindModule
	KindAllModules
	KindAPI
	KindAllAPIs
	KindAccess
	KindAllAccesses
	KindLive
	KindAllLives
	KindRecord
)

// Key structurally identifies one cache entry: a Kind plus the owning
// scope tuple (namespace, database, table, name). Unused scope components
// are left empty, e.g. KindAllNamespaces only sets nothing, KindNamespace
// sets NS, KindAllTables sets NS+DB.
type Key struct {
	Kind Kind
	NS   string
	DB   string
	TB   string
	Name string
}

// Cache is a per-transaction typed entry cache. It is owned by exactly one
// transaction (SPEC_FULL.md §5 "Shared-resource policy") and is never
// shared across transactions — callers construct one per exec.Context.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]any
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]any)}
}

// Get returns the cached value for key. ok is false if not cached — this
// never means "does not exist", only "no cached answer; ask storage".
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put installs or overwrites the entry at key.
func (c *Cache) Put(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Invalidate removes exactly one entry.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix removes every entry for which pred returns true. Used
// to drop enumeration keys that would list a just-mutated entity (§4.1
// invariant 3).
func (c *Cache) InvalidatePrefix(pred func(Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if pred(k) {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of cached entries, mainly for tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Scoped constructors for the common enumeration keys, so callers
// (such as the Invalidate* helpers in invalidation.go) write declarative predicates
// instead of hand-rolled string matching.

func NamespaceKey(ns string) Key   { return Key{Kind: KindNamespace, NS: ns} }
func AllNamespacesKey() Key        { return Key{Kind: KindAllNamespaces} }
func DatabaseKey(ns, db string) Key { return Key{Kind: KindDatabase, NS: ns, DB: db} }
func AllDatabasesKey(ns string) Key { return Key{Kind: KindAllDatabases, NS: ns} }
func TableKey(ns, db, tb string) Key { return Key{Kind: KindTable, NS: ns, DB: db, TB: tb} }
func AllTablesKey(ns, db string) Key { return Key{Kind: KindAllTables, NS: ns, DB: db} }
func FieldKey(ns, db, tb, name string) Key {
	return Key{Kind: KindField, NS: ns, DB: db, TB: tb, Name: name}
}
func AllFieldsKey(ns, db, tb string) Key { return Key{Kind: KindAllFields, NS: ns, DB: db, TB: tb} }
func EventKey(ns, db, tb, name string) Key {
	return Key{Kind: KindEvent, NS: ns, DB: db, TB: tb, Name: name}
}
func AllEventsKey(ns, db, tb string) Key { return Key{Kind: KindAllEvents, NS: ns, DB: db, TB: tb} }
func IndexKey(ns, db, tb, name string) Key {
	return Key{Kind: KindIndex, NS: ns, DB: db, TB: tb, Name: name}
}
func AllIndexesKey(ns, db, tb string) Key { return Key{Kind: KindAllIndexes, NS: ns, DB: db, TB: tb} }
func ParamKey(ns, db, name string) Key  { return Key{Kind: KindParam, NS: ns, DB: db, Name: name} }
func AllParamsKey(ns, db string) Key    { return Key{Kind: KindAllParams, NS: ns, DB: db} }
func FunctionKey(ns, db, name string) Key {
	return Key{Kind: KindFunction, NS: ns, DB: db, Name: name}
}
func AllFunctionsKey(ns, db string) Key { return Key{Kind: KindAllFunctions, NS: ns, DB: db} }
func ModuleKey(ns, db, name string) Key { return Key{Kind: KindModule, NS: ns, DB: db, Name: name} }
func AllModulesKey(ns, db string) Key   { return Key{Kind: KindAllModules, NS: ns, DB: db} }
func APIKey(ns, db, name string) Key    { return Key{Kind: KindAPI, NS: ns, DB: db, Name: name} }
func AllAPIsKey(ns, db string) Key      { return Key{Kind: KindAllAPIs, NS: ns, DB: db} }
func AccessKey(ns, db, name string) Key { return Key{Kind: KindAccess, NS: ns, DB: db, Name: name} }
func AllAccessesKey(ns, db string) Key  { return Key{Kind: KindAllAccesses, NS: ns, DB: db} }
func LiveKey(ns, db, tb, id string) Key {
	return Key{Kind: KindLive, NS: ns, DB: db, TB: tb, Name: id}
}
func AllLivesKey(ns, db, tb string) Key { return Key{Kind: KindAllLives, NS: ns, DB: db, TB: tb} }
func RecordKey(ns, db, tb, key string) Key {
	return Key{Kind: KindRecord, NS: ns, DB: db, TB: tb, Name: key}
}
