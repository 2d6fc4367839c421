package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/exec"
	"github.com/surdb/surdb-engine/field"
	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/stmt"
	"github.com/surdb/surdb-engine/value"
)

// openTemp mirrors boltkv_test.go's t.TempDir()+Open+t.Cleanup idiom, one
// level up: a fresh Engine over a fresh on-disk store per test.
func openTemp(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	e, err := New(WithBoltStore(path))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func contentObj(pairs ...any) value.Value {
	obj := value.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		obj.Set(pairs[i].(string), pairs[i+1].(value.Value))
	}
	return value.Object(obj)
}

func run(t *testing.T, e *Engine, opts exec.Options, stmts ...stmt.Statement) []exec.Response {
	t.Helper()
	return e.Query(context.Background(), &stmt.Query{Statements: stmts}, opts)
}

func requireOK(t *testing.T, resps []exec.Response) {
	t.Helper()
	for i, r := range resps {
		require.Equalf(t, "OK", r.Status, "statement %d: %s", i, r.Detail)
	}
}

func TestEngineSimpleCRUD(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	rid := value.RecordID{Table: "person", Key: value.String("tobie")}

	resps := run(t, e, opts, stmt.Statement{
		Kind: stmt.KindCreate,
		What: []stmt.What{{Value: value.RecordIDValue(rid)}},
		Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("name", value.String("Tobie"))},
	})
	requireOK(t, resps)
	require.Equal(t, value.KindArray, resps[0].Result.Kind)
	require.Len(t, resps[0].Result.Arr, 1)
	created := resps[0].Result.Arr[0]
	name, ok := created.Obj.Get("name")
	require.True(t, ok)
	require.Equal(t, "Tobie", name.S)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindSelect,
		What: []stmt.What{{Value: value.RecordIDValue(rid)}},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 1)
	name, ok = resps[0].Result.Arr[0].Obj.Get("name")
	require.True(t, ok)
	require.Equal(t, "Tobie", name.S)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindUpdate,
		What: []stmt.What{{Value: value.RecordIDValue(rid)}},
		Data: &stmt.Data{Kind: stmt.DataMerge, Content: contentObj("age", value.Int(40))},
	})
	requireOK(t, resps)
	age, ok := resps[0].Result.Arr[0].Obj.Get("age")
	require.True(t, ok)
	require.Equal(t, int64(40), age.I)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindDelete,
		What: []stmt.What{{Value: value.RecordIDValue(rid)}},
	})
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindSelect,
		What: []stmt.What{{Value: value.Table("person")}},
	})
	requireOK(t, resps)
	require.Empty(t, resps[0].Result.Arr)
}

func TestEngineSchemafullFieldDefault(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	zero := value.Int(0)
	e.DefineTable("test", "test", document.TableDef{
		TB:         "counter",
		Schemafull: true,
		Fields: []field.Definition{
			{Name: "count", Path: value.FieldPath("count"), Type: "int", StaticValue: &zero},
		},
	})

	resps := run(t, e, opts, stmt.Statement{
		Kind: stmt.KindCreate,
		What: []stmt.What{{Value: value.Table("counter")}},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 1)
	count, ok := resps[0].Result.Arr[0].Obj.Get("count")
	require.True(t, ok)
	require.Equal(t, int64(0), count.I)
}

func TestEngineInsertDuplicateKeyMergesOnRetry(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	rid := value.RecordID{Table: "person", Key: value.String("a")}
	row1 := contentObj("id", value.RecordIDValue(rid), "name", value.String("A1"))
	row2 := contentObj("id", value.RecordIDValue(rid), "name", value.String("A2"))

	resps := run(t, e, opts, stmt.Statement{
		Kind: stmt.KindInsert,
		What: []stmt.What{{Value: value.Table("person")}},
		Data: &stmt.Data{Kind: stmt.DataContent, Content: value.Array([]value.Value{row1, row2})},
	})
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindSelect,
		What: []stmt.What{{Value: value.RecordIDValue(rid)}},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 1)
	name, ok := resps[0].Result.Arr[0].Obj.Get("name")
	require.True(t, ok)
	require.Equal(t, "A2", name.S)
}

func TestEngineRelateAndEdgeTraversal(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	ridA := value.RecordID{Table: "person", Key: value.String("a")}
	ridB := value.RecordID{Table: "person", Key: value.String("b")}

	resps := run(t, e, opts,
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridA)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("name", value.String("A"))},
		},
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridB)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("name", value.String("B"))},
		},
	)
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind:       stmt.KindRelate,
		RelateFrom: value.RecordIDValue(ridA),
		RelateVia:  "knows",
		RelateTo:   value.RecordIDValue(ridB),
		Data:       &stmt.Data{Kind: stmt.DataContent, Content: contentObj("since", value.Int(2020))},
	})
	requireOK(t, resps)
	since, ok := resps[0].Result.Arr[0].Obj.Get("since")
	require.True(t, ok)
	require.Equal(t, int64(2020), since.I)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindSelect,
		What: []stmt.What{{Value: value.EdgesValue(value.Edges{From: ridA, Dir: value.DirOut, Table: "knows"})}},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 1)
}

func TestEngineRangeOrderLimit(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	for i := int64(1); i <= 5; i++ {
		rid := value.RecordID{Table: "counter", Key: value.Int(i)}
		resps := run(t, e, opts, stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(rid)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("n", value.Int(i))},
		})
		requireOK(t, resps)
	}

	limit := int64(2)
	resps := run(t, e, opts, stmt.Statement{
		Kind:  stmt.KindSelect,
		What:  []stmt.What{{Value: value.RangeValue(value.Range{Table: "counter", Start: value.Unbounded(), End: value.Unbounded()})}},
		Order: []stmt.OrderClause{{Expr: value.FieldPath("n"), Kind: stmt.OrderDesc}},
		Limit: &limit,
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 2)
	first, _ := resps[0].Result.Arr[0].Obj.Get("n")
	second, _ := resps[0].Result.Arr[1].Obj.Get("n")
	require.Equal(t, int64(5), first.I)
	require.Equal(t, int64(4), second.I)
}

// TestEngineFullTextQueryAndHighlight covers §8 scenario 6: CREATE two
// records into a table carrying a full-text index, SELECT back by query
// term, and confirm score/highlight data is readable off the index
// directly (search::score/search::highlight are expression-language
// functions and out of scope per §1, so the engine's own fulltext API
// stands in for them here).
func TestEngineFullTextQueryAndHighlight(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	analyzer := &fulltext.Analyzer{
		Tokenizer: fulltext.BlankTokenizer{},
		Filters:   []fulltext.Filter{fulltext.LowercaseFilter{}},
	}
	e.DefineTable("test", "test", document.TableDef{
		TB: "article",
		FTIndexes: []document.FTIndexDef{{
			Name:       "body_idx",
			Field:      value.FieldPath("body"),
			Analyzer:   analyzer,
			Highlights: true,
			BM25:       fulltext.DefaultBM25(),
		}},
	})

	ridFox := value.RecordID{Table: "article", Key: value.String("fox")}
	ridTurtle := value.RecordID{Table: "article", Key: value.String("turtle")}

	resps := run(t, e, opts,
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridFox)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("body", value.String("the quick brown fox jumps"))},
		},
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridTurtle)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("body", value.String("the slow turtle walks"))},
		},
	)
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind:   stmt.KindSelect,
		Search: &stmt.Search{Table: "article", Index: "body_idx", Query: "quick fox"},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 1)
	body, ok := resps[0].Result.Arr[0].Obj.Get("body")
	require.True(t, ok)
	require.Equal(t, "the quick brown fox jumps", body.S)

	idx := fulltext.Index{NS: "test", DB: "test", TB: "article", Name: "body_idx", Node: ftNode, Analyzer: analyzer, Highlights: true, BM25: fulltext.DefaultBM25()}

	ctx := context.Background()
	tx, err := e.Store.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	require.NoError(t, err)

	bm, err := idx.GetDocs(ctx, tx, "fox")
	require.NoError(t, err)
	require.EqualValues(t, 1, bm.GetCardinality())

	hits := fulltext.NewHitsIterator(idx, bm)
	hit, ok, err := hits.Next(ctx, tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ridFox, hit.RecordID)

	score, err := idx.ScoreDoc(ctx, tx, hit.DocID, []string{"fox"})
	require.NoError(t, err)
	require.Greater(t, score, 0.0)

	offsets, err := idx.Highlights(ctx, tx, hit.DocID, "fox")
	require.NoError(t, err)
	require.Equal(t, fulltext.Highlight("the quick brown fox jumps", offsets, "<em>", "</em>"), "the quick brown <em>fox</em> jumps")

	_, docCount, err := idx.Stats(ctx, tx)
	require.NoError(t, err)
	require.EqualValues(t, 2, docCount)
	require.NoError(t, tx.Cancel(ctx))

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindDelete,
		What: []stmt.What{{Value: value.RecordIDValue(ridTurtle)}},
	})
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind:   stmt.KindSelect,
		Search: &stmt.Search{Table: "article", Index: "body_idx", Query: "turtle"},
	})
	requireOK(t, resps)
	require.Empty(t, resps[0].Result.Arr)

	tx, err = e.Store.Begin(ctx, kv.ModeRead, kv.LockOptimistic)
	require.NoError(t, err)
	_, docCount, err = idx.Stats(ctx, tx)
	require.NoError(t, err)
	require.EqualValues(t, 1, docCount)
	require.NoError(t, tx.Cancel(ctx))
}

func TestEngineTransactionBlockCommits(t *testing.T) {
	e := openTemp(t)
	opts := exec.Options{NS: "test", DB: "test", Fields: true}

	ridA := value.RecordID{Table: "tx", Key: value.String("a")}
	ridB := value.RecordID{Table: "tx", Key: value.String("b")}

	resps := run(t, e, opts,
		stmt.Statement{Kind: stmt.KindBegin},
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridA)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("n", value.Int(1))},
		},
		stmt.Statement{
			Kind: stmt.KindCreate,
			What: []stmt.What{{Value: value.RecordIDValue(ridB)}},
			Data: &stmt.Data{Kind: stmt.DataContent, Content: contentObj("n", value.Int(2))},
		},
		stmt.Statement{Kind: stmt.KindCommit},
	)
	requireOK(t, resps)

	resps = run(t, e, opts, stmt.Statement{
		Kind: stmt.KindSelect,
		What: []stmt.What{{Value: value.Table("tx")}},
	})
	requireOK(t, resps)
	require.Len(t, resps[0].Result.Arr, 2)
}
