package document

import (
	"context"

	"github.com/surdb/surdb-engine/dberr"
	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// stepEmpty: if ID.is_some() and Current == None, ignore (§4.5).
func stepEmpty(ctx context.Context, lc *Lifecycle) error {
	if lc.Doc.ID != nil && lc.Doc.Current.IsNone() {
		return dberr.ErrIgnore
	}
	return nil
}

// stepCheckCond evaluates WHERE; not truthy -> ignore.
func stepCheckCond(ctx context.Context, lc *Lifecycle) error {
	if lc.Stmt == nil || lc.Stmt.Cond == nil {
		return nil
	}
	v, err := lc.Hooks.Eval(ctx, lc.Stmt.Cond, lc.vars())
	if err != nil {
		return err
	}
	if !v.Truthy() {
		return dberr.ErrIgnore
	}
	return nil
}

func (lc *Lifecycle) vars() field.Vars {
	return field.Vars{After: lc.Doc.Current, Before: lc.Doc.Initial}
}

// stepCheckPermsQuick is a table-level check against the statement's
// action, cheap enough to run before any per-record work.
func stepCheckPermsQuick(ctx context.Context, lc *Lifecycle) error {
	return checkPerms(ctx, lc, actionForWrite(lc), true)
}

func stepCheckPermsSelect(ctx context.Context, lc *Lifecycle) error {
	return checkPerms(ctx, lc, ActionSelect, false)
}

func stepCheckPermsDelete(ctx context.Context, lc *Lifecycle) error {
	return checkPerms(ctx, lc, ActionDelete, true)
}

// stepCheckPermsTable is the record-level permission check (§4.5), run
// after the document's Current has been fully computed so a Specific
// permission expression can see the final field values.
func stepCheckPermsTable(ctx context.Context, lc *Lifecycle) error {
	return checkPerms(ctx, lc, actionForWrite(lc), false)
}

func actionForWrite(lc *Lifecycle) Action {
	if lc.Doc.IsNew {
		return ActionCreate
	}
	return ActionUpdate
}

func checkPerms(ctx context.Context, lc *Lifecycle, action Action, quick bool) error {
	perm := lc.Table.Permissions.For(action)
	switch perm.Kind {
	case field.PermissionFull:
		return nil
	case field.PermissionNone:
		return dberr.ErrIgnore
	case field.PermissionSpecific:
		if quick || perm.Expr == nil {
			// Quick check only rejects outright None; a Specific
			// expression needs the per-record data, evaluated later at
			// checkPermsTable.
			return nil
		}
		v, err := lc.Hooks.Eval(ctx, perm.Expr, lc.vars())
		if err != nil {
			return err
		}
		if !v.Truthy() {
			return dberr.ErrIgnore
		}
		return nil
	}
	return nil
}

// stepCheckTableType enforces TYPE NORMAL|RELATION|ANY (§4.5).
func stepCheckTableType(ctx context.Context, lc *Lifecycle) error {
	if lc.Table.Type == TableRelation && lc.Doc.Extras.Kind != WorkRelate {
		return &dberr.Internal{Msg: "table " + lc.Table.TB + " is TYPE RELATION: in/out required"}
	}
	if lc.Table.Type == TableNormal && lc.Doc.Extras.Kind == WorkRelate {
		return &dberr.Internal{Msg: "table " + lc.Table.TB + " is TYPE NORMAL: cannot RELATE"}
	}
	return nil
}

// stepCheckDataFields validates the DATA clause's structural shape before
// applying it (§4.5). The operator semantics themselves are applied by
// ApplyData in stepProcessRecordData; this step only rejects an
// obviously malformed clause (e.g. CONTENT/REPLACE given a non-object).
func stepCheckDataFields(ctx context.Context, lc *Lifecycle) error {
	d := lc.Stmt.Data
	if d == nil {
		return nil
	}
	if (d.Kind == stmt.DataContent || d.Kind == stmt.DataReplace) && !d.Content.IsNullish() && d.Content.Kind != value.KindObject {
		return &dberr.Internal{Msg: "CONTENT/REPLACE requires an object value"}
	}
	return nil
}

// stepProcessRecordData merges Data into Current per §4.5.1.
func stepProcessRecordData(ctx context.Context, lc *Lifecycle) error {
	if lc.Stmt == nil || lc.Stmt.Data == nil {
		return nil
	}
	next, err := ApplyData(ctx, lc.Doc.Current, lc.Stmt.Data, lc.Hooks.Eval, lc.vars())
	if err != nil {
		return err
	}
	lc.Doc.Current = next
	return nil
}

// stepProcessTableFields runs the field engine (§4.5.2) over every
// declared field, in declaration order.
func stepProcessTableFields(ctx context.Context, lc *Lifecycle) error {
	if len(lc.Table.Fields) == 0 {
		return nil
	}
	next, err := field.Apply(ctx, lc.Table.Fields, lc.Doc.Current, lc.Doc.Initial, field.Context{
		Thing: lc.Thing,
		IsNew: lc.Doc.IsNew,
		Eval: func(ctx context.Context, expr *value.Expr, vars field.Vars) (value.Value, error) {
			return lc.Hooks.Eval(ctx, expr, vars)
		},
	})
	if err != nil {
		return err
	}
	lc.Doc.Current = next
	return nil
}

// preservedKeys are never stripped by cleanupTableFields regardless of
// schema (§4.5).
var preservedKeys = map[string]bool{"id": true, "in": true, "out": true, "meta": true}

// stepCleanupTableFields removes fields not declared under a schemafull
// table, preserving id/in/out/meta.
func stepCleanupTableFields(ctx context.Context, lc *Lifecycle) error {
	if !lc.Table.Schemafull {
		return nil
	}
	if lc.Doc.Current.Kind != value.KindObject {
		return nil
	}
	declared := make(map[string]bool, len(lc.Table.Fields))
	for _, f := range lc.Table.Fields {
		if len(f.Path) > 0 && f.Path[0].Kind == value.PartField {
			declared[f.Path[0].Field] = true
		}
	}
	out := value.NewObject()
	lc.Doc.Current.Obj.Range(func(key string, v value.Value) bool {
		if preservedKeys[key] || declared[key] {
			out.Set(key, v)
		}
		return true
	})
	lc.Doc.Current = value.Object(out)
	return nil
}

// stepDefaultRecordData assigns defaults derived from the record id
// (e.g. ensuring the `id` field mirrors Doc.ID).
func stepDefaultRecordData(ctx context.Context, lc *Lifecycle) error {
	if lc.Doc.ID == nil {
		return nil
	}
	if lc.Doc.Current.Kind != value.KindObject {
		obj := value.NewObject()
		lc.Doc.Current = value.Object(obj)
	}
	lc.Doc.Current.Obj.Set("id", value.RecordIDValue(*lc.Doc.ID))
	return nil
}

func stepStoreRecordDataCreate(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.StoreRecord(ctx, lc.Doc, lc.Table, true)
}

func stepStoreRecordDataUpdate(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.StoreRecord(ctx, lc.Doc, lc.Table, false)
}

func stepStoreRecordDataUpsert(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.StoreRecord(ctx, lc.Doc, lc.Table, lc.Doc.IsNew)
}

func stepStoreIndexData(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.StoreIndexData(ctx, lc.Doc, lc.Table)
}

func stepPurgeIndexData(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.PurgeIndexData(ctx, lc.Doc, lc.Table)
}

func stepStoreEdgesData(ctx context.Context, lc *Lifecycle) error {
	if lc.Doc.Extras.Kind != WorkRelate {
		return nil
	}
	return lc.Hooks.StoreEdgesData(ctx, lc.Doc, lc.Table)
}

func stepProcessTableViews(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.ProcessTableViews(ctx, lc.Doc, lc.Table)
}

func stepProcessTableLives(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.ProcessTableLives(ctx, lc.Doc, lc.Table)
}

func stepProcessTableEvents(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.ProcessTableEvents(ctx, lc.Doc, lc.Table)
}

func stepProcessChangefeeds(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.ProcessChangefeeds(ctx, lc.Doc, lc.Table)
}

// stepErase sets Current := None for DELETE, after which index/record
// purge steps see the absence and remove storage.
func stepErase(ctx context.Context, lc *Lifecycle) error {
	lc.Doc.Current = value.None()
	return nil
}

func stepPurgeRecord(ctx context.Context, lc *Lifecycle) error {
	return lc.Hooks.PurgeRecord(ctx, lc.Doc, lc.Table)
}
