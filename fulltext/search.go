package fulltext

import (
	"context"
	"encoding/json"

	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
)

// Stats returns the index's current document count and average document
// length, merging the consolidated dc_root with every outstanding dc
// delta not yet folded in by Compaction (§3.8 "reads tolerate
// uncompacted state").
func (idx Index) Stats(ctx context.Context, tx kv.Tx) (avgDocLength float64, docCount uint64, err error) {
	var total docCountDelta
	if raw, ok, err := tx.Get(ctx, keys.FTDocCountRoot(idx.NS, idx.DB, idx.TB, idx.Name)); err != nil {
		return 0, 0, err
	} else if ok {
		if err := json.Unmarshal(raw, &total); err != nil {
			return 0, 0, err
		}
	}

	prefix := keys.FTDocCountPrefix(idx.NS, idx.DB, idx.TB, idx.Name)
	entries, err := tx.GetRange(ctx, kv.Range{Start: prefix, End: keys.Successor(prefix)})
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		var d docCountDelta
		if err := json.Unmarshal(e.Value, &d); err != nil {
			return 0, 0, err
		}
		total.TotalDocsLength += d.TotalDocsLength
		total.DocCount += d.DocCount
	}
	if total.DocCount <= 0 {
		return 0, 0, nil
	}
	return float64(total.TotalDocsLength) / float64(total.DocCount), uint64(total.DocCount), nil
}

// ScoreDoc sums the BM25 contribution of every term in terms against
// docID, reading each term's document frequency via GetDocs and its
// per-document term frequency via the td entry.
func (idx Index) ScoreDoc(ctx context.Context, tx kv.Tx, docID uint64, terms []string) (float64, error) {
	avgLen, N, err := idx.Stats(ctx, tx)
	if err != nil || N == 0 {
		return 0, err
	}
	docLen := float64(0)
	if raw, ok, err := tx.Get(ctx, keys.FTLen(idx.NS, idx.DB, idx.TB, idx.Name, docID)); err != nil {
		return 0, err
	} else if ok {
		docLen = float64(decodeU32(raw))
	}

	var total float64
	for _, term := range terms {
		bm, err := idx.GetDocs(ctx, tx, term)
		if err != nil {
			return 0, err
		}
		n := bm.GetCardinality()
		if n == 0 {
			continue
		}
		raw, ok, err := tx.Get(ctx, keys.FTDoc(idx.NS, idx.DB, idx.TB, idx.Name, term, docID))
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		var td TermDocument
		if err := json.Unmarshal(raw, &td); err != nil {
			return 0, err
		}
		total += idx.BM25.Score(float64(td.F), n, N, docLen, avgLen)
	}
	return total, nil
}

// Highlights returns the offsets recorded for term against docID, or nil
// if the index was not built WITH HIGHLIGHTS or the term is absent.
func (idx Index) Highlights(ctx context.Context, tx kv.Tx, docID uint64, term string) ([]Offset, error) {
	if !idx.Highlights {
		return nil, nil
	}
	raw, ok, err := tx.Get(ctx, keys.FTDoc(idx.NS, idx.DB, idx.TB, idx.Name, term, docID))
	if err != nil || !ok {
		return nil, err
	}
	var td TermDocument
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, err
	}
	return td.O, nil
}
