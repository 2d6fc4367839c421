package fulltext_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/kv/boltkv"
	"github.com/surdb/surdb-engine/value"
)

func openTestStore(t *testing.T) *boltkv.DB {
	t.Helper()
	db, err := boltkv.Open(filepath.Join(t.TempDir(), "fulltext.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func defaultAnalyzer() *fulltext.Analyzer {
	return &fulltext.Analyzer{
		Tokenizer: fulltext.BlankTokenizer{},
		Filters:   []fulltext.Filter{fulltext.LowercaseFilter{}},
	}
}

func testIndex() fulltext.Index {
	return fulltext.Index{
		NS: "test", DB: "test", TB: "article", Name: "body_idx",
		Node: "n1", Analyzer: defaultAnalyzer(), Highlights: true,
		BM25: fulltext.DefaultBM25(),
	}
}

func withTx(t *testing.T, db *boltkv.DB, fn func(tx kv.Tx)) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx, kv.ModeWrite, kv.LockPessimistic)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit(ctx))
}

func TestIndexContentAndQuery(t *testing.T) {
	db := openTestStore(t)
	idx := testIndex()
	ctx := context.Background()

	rid1 := value.RecordID{Table: "article", Key: value.String("a1")}
	rid2 := value.RecordID{Table: "article", Key: value.String("a2")}

	withTx(t, db, func(tx kv.Tx) {
		_, err := idx.IndexContent(ctx, tx, rid1, "the quick brown fox")
		require.NoError(t, err)
		_, err = idx.IndexContent(ctx, tx, rid2, "the lazy dog sleeps")
		require.NoError(t, err)
	})

	withTx(t, db, func(tx kv.Tx) {
		bm, err := idx.GetDocs(ctx, tx, "the")
		require.NoError(t, err)
		require.EqualValues(t, 2, bm.GetCardinality())

		bm, err = idx.GetDocs(ctx, tx, "fox")
		require.NoError(t, err)
		require.EqualValues(t, 1, bm.GetCardinality())

		hits, err := fulltext.And(ctx, tx, idx, []string{"the", "fox"})
		require.NoError(t, err)
		require.EqualValues(t, 1, hits.GetCardinality())

		hits, err = fulltext.Or(ctx, tx, idx, []string{"fox", "dog"})
		require.NoError(t, err)
		require.EqualValues(t, 2, hits.GetCardinality())
	})
}

func TestHitsIteratorResolvesRecordID(t *testing.T) {
	db := openTestStore(t)
	idx := testIndex()
	ctx := context.Background()
	rid := value.RecordID{Table: "article", Key: value.String("a1")}

	withTx(t, db, func(tx kv.Tx) {
		_, err := idx.IndexContent(ctx, tx, rid, "hello world")
		require.NoError(t, err)
	})

	withTx(t, db, func(tx kv.Tx) {
		bm, err := idx.GetDocs(ctx, tx, "hello")
		require.NoError(t, err)
		it := fulltext.NewHitsIterator(idx, bm)
		hit, ok, err := it.Next(ctx, tx)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, hit.RecordID.Equal(rid))

		_, ok, err = it.Next(ctx, tx)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestRemoveContentClearsHits(t *testing.T) {
	db := openTestStore(t)
	idx := testIndex()
	ctx := context.Background()
	rid := value.RecordID{Table: "article", Key: value.String("a1")}

	withTx(t, db, func(tx kv.Tx) {
		_, err := idx.IndexContent(ctx, tx, rid, "hello world")
		require.NoError(t, err)
	})
	withTx(t, db, func(tx kv.Tx) {
		_, err := idx.RemoveContent(ctx, tx, rid, "hello world")
		require.NoError(t, err)
	})
	withTx(t, db, func(tx kv.Tx) {
		bm, err := idx.GetDocs(ctx, tx, "hello")
		require.NoError(t, err)
		require.True(t, bm.IsEmpty())
	})
}

func TestCompactionConsolidatesAndPreservesHits(t *testing.T) {
	db := openTestStore(t)
	idx := testIndex()
	ctx := context.Background()
	rid := value.RecordID{Table: "article", Key: value.String("a1")}

	withTx(t, db, func(tx kv.Tx) {
		_, err := idx.IndexContent(ctx, tx, rid, "alpha beta gamma")
		require.NoError(t, err)
	})

	withTx(t, db, func(tx kv.Tx) {
		hadLogs, err := idx.Compaction(ctx, tx)
		require.NoError(t, err)
		require.True(t, hadLogs)
	})

	withTx(t, db, func(tx kv.Tx) {
		bm, err := idx.GetDocs(ctx, tx, "alpha")
		require.NoError(t, err)
		require.EqualValues(t, 1, bm.GetCardinality())

		avgLen, count, err := idx.Stats(ctx, tx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
		require.InDelta(t, 3, avgLen, 0.0001)
	})
}

func TestBM25ScoreNonNegativeAndZeroTF(t *testing.T) {
	p := fulltext.DefaultBM25()
	require.Zero(t, p.Score(0, 1, 10, 5, 5))
	s := p.Score(2, 3, 10, 5, 5)
	require.GreaterOrEqual(t, s, 0.0)
}

func TestHighlightWrapsOffsets(t *testing.T) {
	content := "the quick brown fox"
	out := fulltext.Highlight(content, []fulltext.Offset{{Start: 4, End: 9}}, "<b>", "</b>")
	require.Equal(t, "the <b>quick</b> brown fox", out)
}

func TestHighlightMergesOverlaps(t *testing.T) {
	content := "abcdef"
	out := fulltext.Highlight(content, []fulltext.Offset{{Start: 0, End: 3}, {Start: 2, End: 5}}, "[", "]")
	require.Equal(t, "[abcde]f", out)
}
