package cache

import "testing"

func TestGetMissIsNotFalseExists(t *testing.T) {
	c := New()
	if _, ok := c.Get(TableKey("ns", "db", "t")); ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New()
	c.Put(TableKey("ns", "db", "t"), "table-value")
	v, ok := c.Get(TableKey("ns", "db", "t"))
	if !ok || v != "table-value" {
		t.Fatalf("got %v, %v", v, ok)
	}
}

func TestInvalidateTableDropsEnumeration(t *testing.T) {
	c := New()
	c.Put(TableKey("ns", "db", "t"), "t")
	c.Put(AllTablesKey("ns", "db"), []string{"t"})

	c.InvalidateTable("ns", "db", "t")

	if _, ok := c.Get(TableKey("ns", "db", "t")); ok {
		t.Fatalf("table entry should be invalidated")
	}
	if _, ok := c.Get(AllTablesKey("ns", "db")); ok {
		t.Fatalf("enumeration entry should be invalidated")
	}
}

func TestInvalidationIsSameTransactionVisible(t *testing.T) {
	// Simulates "DEFINE TABLE x; SELECT * FROM tables" in one transaction:
	// a stale AllTables entry must never survive the PutTB that follows it.
	c := New()
	c.Put(AllTablesKey("ns", "db"), []string{"old"})

	c.InvalidateTable("ns", "db", "new")
	c.Put(AllTablesKey("ns", "db"), []string{"old", "new"})

	v, ok := c.Get(AllTablesKey("ns", "db"))
	if !ok {
		t.Fatalf("expected refreshed enumeration to be cacheable again")
	}
	list := v.([]string)
	if len(list) != 2 || list[1] != "new" {
		t.Fatalf("got %v", list)
	}
}

func TestInvalidatePrefixPredicate(t *testing.T) {
	c := New()
	c.Put(TableKey("ns", "db1", "t"), 1)
	c.Put(TableKey("ns", "db2", "t"), 2)
	c.Put(AllTablesKey("ns", "db1"), nil)

	c.DropDatabase("ns", "db1")

	if _, ok := c.Get(TableKey("ns", "db1", "t")); ok {
		t.Fatalf("db1 table entry should be gone")
	}
	if _, ok := c.Get(AllTablesKey("ns", "db1")); ok {
		t.Fatalf("db1 enumeration entry should be gone")
	}
	if _, ok := c.Get(TableKey("ns", "db2", "t")); !ok {
		t.Fatalf("db2 entries must survive a db1 drop")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			k := TableKey("ns", "db", "t")
			c.Put(k, i)
			c.Get(k)
			c.Invalidate(k)
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
