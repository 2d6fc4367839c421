package cache

// InvalidateTable drops the table's own entry plus every enumeration key
// that would list it (§4.1 invariant: PutTB/DelTB invalidates both).
func (c *Cache) InvalidateTable(ns, db, tb string) {
	c.Invalidate(TableKey(ns, db, tb))
	c.Invalidate(AllTablesKey(ns, db))
}

// InvalidateNamespace drops a namespace entry and the all-namespaces list.
func (c *Cache) InvalidateNamespace(ns string) {
	c.Invalidate(NamespaceKey(ns))
	c.Invalidate(AllNamespacesKey())
}

// InvalidateDatabase drops a database entry and its owning namespace's
// all-databases list.
func (c *Cache) InvalidateDatabase(ns, db string) {
	c.Invalidate(DatabaseKey(ns, db))
	c.Invalidate(AllDatabasesKey(ns))
}

// InvalidateField drops a field entry, its table's all-fields list, and —
// because a field change can affect cleanupTableFields behavior on cached
// documents — nothing else; records themselves are never cached across
// statement boundaries.
func (c *Cache) InvalidateField(ns, db, tb, name string) {
	c.Invalidate(FieldKey(ns, db, tb, name))
	c.Invalidate(AllFieldsKey(ns, db, tb))
}

func (c *Cache) InvalidateEvent(ns, db, tb, name string) {
	c.Invalidate(EventKey(ns, db, tb, name))
	c.Invalidate(AllEventsKey(ns, db, tb))
}

func (c *Cache) InvalidateIndex(ns, db, tb, name string) {
	c.Invalidate(IndexKey(ns, db, tb, name))
	c.Invalidate(AllIndexesKey(ns, db, tb))
}

func (c *Cache) InvalidateParam(ns, db, name string) {
	c.Invalidate(ParamKey(ns, db, name))
	c.Invalidate(AllParamsKey(ns, db))
}

func (c *Cache) InvalidateFunction(ns, db, name string) {
	c.Invalidate(FunctionKey(ns, db, name))
	c.Invalidate(AllFunctionsKey(ns, db))
}

func (c *Cache) InvalidateModule(ns, db, name string) {
	c.Invalidate(ModuleKey(ns, db, name))
	c.Invalidate(AllModulesKey(ns, db))
}

func (c *Cache) InvalidateAPI(ns, db, name string) {
	c.Invalidate(APIKey(ns, db, name))
	c.Invalidate(AllAPIsKey(ns, db))
}

func (c *Cache) InvalidateAccess(ns, db, name string) {
	c.Invalidate(AccessKey(ns, db, name))
	c.Invalidate(AllAccessesKey(ns, db))
}

func (c *Cache) InvalidateLive(ns, db, tb, id string) {
	c.Invalidate(LiveKey(ns, db, tb, id))
	c.Invalidate(AllLivesKey(ns, db, tb))
}

// InvalidateRecord drops a single cached record read. Record reads are
// cached individually (never enumerated as a collection — table scans go
// straight to the KV range scan), so no collection key needs dropping.
func (c *Cache) InvalidateRecord(ns, db, tb, key string) {
	c.Invalidate(RecordKey(ns, db, tb, key))
}

// DropDatabase invalidates every cached entry scoped to (ns, db),
// including every table/field/index/etc beneath it, for a DEFINE DATABASE
// drop/redefine. Demonstrates InvalidatePrefix's predicate form.
func (c *Cache) DropDatabase(ns, db string) {
	c.InvalidatePrefix(func(k Key) bool {
		return k.NS == ns && k.DB == db
	})
	c.InvalidateDatabase(ns, db)
}
