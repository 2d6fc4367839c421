package engine

import (
	"sync"

	"github.com/surdb/surdb-engine/document"
)

// Catalog holds every DEFINE TABLE/FIELD declaration reachable by the
// runner. DEFINE/REMOVE statement bodies are not modeled on stmt.Statement
// (per stmt's own "only the fields the query execution core reads"
// scoping) — catalog definitions are populated directly through this API
// by whatever owns schema management, the same way a caller of
// document.Apply supplies field.Definitions rather than the lifecycle
// parsing DDL itself.
//
// Grounded in cache.Cache's sync.RWMutex-guarded map shape, generalized
// from a per-transaction invalidated read cache to the catalog's
// source-of-truth store (a Catalog entry never goes stale mid-transaction
// since schema changes take effect on the next statement, not mid-flight).
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]document.TableDef
}

// NewCatalog returns an empty Catalog; every table defaults to schemaless,
// TYPE NORMAL, full permissions (document.TableDef's zero value) until
// Define is called.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]document.TableDef)}
}

func catalogKey(ns, db, tb string) string { return ns + "\x00" + db + "\x00" + tb }

// Define registers or replaces a table's schema.
func (c *Catalog) Define(ns, db string, def document.TableDef) {
	def.NS, def.DB = ns, db
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[catalogKey(ns, db, def.TB)] = def
}

// Remove drops a table's schema, reverting lookups to the schemaless
// default.
func (c *Catalog) Remove(ns, db, tb string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, catalogKey(ns, db, tb))
}

// Get returns tb's schema, or the schemaless default (TYPE NORMAL, full
// permissions, Schemafull false) if undeclared — matching a document
// database's usual "tables exist on first write" posture.
func (c *Catalog) Get(ns, db, tb string) document.TableDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if def, ok := c.tables[catalogKey(ns, db, tb)]; ok {
		return def
	}
	return document.TableDef{NS: ns, DB: db, TB: tb}
}

// All returns a snapshot of every declared table's schema, for callers
// that must walk the full catalog (the full-text compactor, §4.7) rather
// than look up one table by name.
func (c *Catalog) All() []document.TableDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]document.TableDef, 0, len(c.tables))
	for _, def := range c.tables {
		out = append(out, def)
	}
	return out
}
