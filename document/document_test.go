package document

import (
	"context"
	"testing"

	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// fakeHooks is a minimal in-memory Hooks implementation for pipeline tests.
// It evaluates every expr as a fixed truthy literal unless the test
// overrides evalFn, and records every side-effect call it receives.
type fakeHooks struct {
	evalFn func(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error)

	stored []value.Value
	purged int
}

func (h *fakeHooks) Eval(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error) {
	if h.evalFn != nil {
		return h.evalFn(ctx, expr, vars)
	}
	return value.Bool(true), nil
}

func (h *fakeHooks) StoreRecord(ctx context.Context, doc *Document, table TableDef, isCreate bool) error {
	h.stored = append(h.stored, doc.Current)
	return nil
}
func (h *fakeHooks) PurgeRecord(ctx context.Context, doc *Document, table TableDef) error {
	h.purged++
	return nil
}
func (h *fakeHooks) StoreIndexData(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) PurgeIndexData(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) StoreEdgesData(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) ProcessTableViews(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) ProcessTableLives(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) ProcessTableEvents(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}
func (h *fakeHooks) ProcessChangefeeds(ctx context.Context, doc *Document, table TableDef) error {
	return nil
}

func fullPerms() TablePermissions {
	full := field.Permission{Kind: field.PermissionFull}
	return TablePermissions{Select: full, Create: full, Update: full, Delete: full}
}

func newID(tb, id string) value.RecordID {
	return value.RecordID{Table: tb, Key: value.String(id)}
}

func TestCreatePipelineStoresAndPlucksAfter(t *testing.T) {
	ctx := context.Background()
	id := newID("person", "one")
	content := value.NewObject()
	content.Set("name", value.String("ari"))
	doc := New(&id, value.None(), Workable{Kind: WorkNormal})
	st := &stmt.Statement{
		Kind: stmt.KindCreate,
		Data: &stmt.Data{Kind: stmt.DataContent, Content: value.Object(content)},
	}
	hooks := &fakeHooks{}
	lc := &Lifecycle{
		Doc:   doc,
		Table: TableDef{TB: "person", Permissions: fullPerms()},
		Stmt:  st,
		Hooks: hooks,
		Thing: "person:one",
	}
	if err := Run(ctx, lc, PipelineFor(stmt.KindCreate)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(hooks.stored) != 1 {
		t.Fatalf("expected one stored record, got %d", len(hooks.stored))
	}
	if doc.Result == nil {
		t.Fatalf("expected a result")
	}
	name, _ := doc.Result.Obj.Get("name")
	if name.S != "ari" {
		t.Fatalf("expected name ari, got %v", name)
	}
}

func TestDeletePipelinePurgesAndReturnsNoResultByDefault(t *testing.T) {
	ctx := context.Background()
	id := newID("person", "two")
	obj := value.NewObject()
	obj.Set("id", value.RecordIDValue(id))
	doc := New(&id, value.Object(obj), Workable{Kind: WorkNormal})
	hooks := &fakeHooks{}
	lc := &Lifecycle{
		Doc:   doc,
		Table: TableDef{TB: "person", Permissions: fullPerms()},
		Stmt:  &stmt.Statement{Kind: stmt.KindDelete, Output: stmt.Output{Kind: stmt.OutputDefault}},
		Hooks: hooks,
		Thing: "person:two",
	}
	if err := Run(ctx, lc, PipelineFor(stmt.KindDelete)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if hooks.purged != 1 {
		t.Fatalf("expected purge, got %d", hooks.purged)
	}
	if doc.Result != nil {
		t.Fatalf("expected no result for default DELETE output, got %v", doc.Result)
	}
}

func TestSelectPipelineDropsOnFalsyWhere(t *testing.T) {
	ctx := context.Background()
	id := newID("person", "three")
	obj := value.NewObject()
	obj.Set("secret", value.String("x"))
	doc := New(&id, value.Object(obj), Workable{Kind: WorkNormal})
	hooks := &fakeHooks{evalFn: func(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error) {
		return value.Bool(false), nil
	}}
	lc := &Lifecycle{
		Doc:   doc,
		Table: TableDef{TB: "person", Permissions: fullPerms()},
		Stmt:  &stmt.Statement{Kind: stmt.KindSelect, Cond: &value.Expr{Src: "false"}},
		Hooks: hooks,
		Thing: "person:three",
	}
	if err := Run(ctx, lc, PipelineFor(stmt.KindSelect)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Result != nil {
		t.Fatalf("expected document dropped by WHERE, got %v", doc.Result)
	}
}

func TestSelectPipelineHidesNoneFieldFromView(t *testing.T) {
	ctx := context.Background()
	id := newID("person", "four")
	obj := value.NewObject()
	obj.Set("name", value.String("kim"))
	obj.Set("secret", value.String("hidden"))
	doc := New(&id, value.Object(obj), Workable{Kind: WorkNormal})
	perms := fullPerms()
	table := TableDef{
		TB:          "person",
		Permissions: perms,
		Fields: []field.Definition{
			{Path: value.FieldPath("secret"), Permissions: field.Permissions{Select: field.Permission{Kind: field.PermissionNone}}},
		},
	}
	hooks := &fakeHooks{}
	lc := &Lifecycle{
		Doc:   doc,
		Table: table,
		Stmt:  &stmt.Statement{Kind: stmt.KindSelect},
		Hooks: hooks,
		Thing: "person:four",
	}
	if err := Run(ctx, lc, PipelineFor(stmt.KindSelect)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Result == nil {
		t.Fatalf("expected result")
	}
	if _, ok := doc.Result.Obj.Get("secret"); ok {
		t.Fatalf("expected secret field to be hidden")
	}
	if name, _ := doc.Result.Obj.Get("name"); name.S != "kim" {
		t.Fatalf("expected name to survive, got %v", name)
	}
}

func TestUpdatePipelineDiffOutput(t *testing.T) {
	ctx := context.Background()
	id := newID("person", "five")
	before := value.NewObject()
	before.Set("name", value.String("old"))
	doc := New(&id, value.Object(before), Workable{Kind: WorkNormal})
	assign := value.NewObject()
	assign.Set("name", value.String("new"))
	st := &stmt.Statement{
		Kind:   stmt.KindUpdate,
		Data:   &stmt.Data{Kind: stmt.DataMerge, Content: value.Object(assign)},
		Output: stmt.Output{Kind: stmt.OutputDiff},
	}
	hooks := &fakeHooks{}
	lc := &Lifecycle{
		Doc:   doc,
		Table: TableDef{TB: "person", Permissions: fullPerms()},
		Stmt:  st,
		Hooks: hooks,
		Thing: "person:five",
	}
	if err := Run(ctx, lc, PipelineFor(stmt.KindUpdate)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc.Result == nil || doc.Result.Kind != value.KindArray {
		t.Fatalf("expected a diff array result, got %v", doc.Result)
	}
	if len(doc.Result.Arr) == 0 {
		t.Fatalf("expected at least one diff op")
	}
}
