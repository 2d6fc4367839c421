package fulltext

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

// ExtractQueryingTerms tokenizes a search query under StageQuerying and
// returns the distinct terms to look up, in first-seen order.
func (idx Index) ExtractQueryingTerms(query string) []string {
	tokens := idx.Analyzer.Analyze(StageQuerying, query)
	seen := make(map[string]bool, len(tokens))
	var terms []string
	for _, t := range tokens {
		if seen[t.Term] {
			continue
		}
		seen[t.Term] = true
		terms = append(terms, t.Term)
	}
	return terms
}

// GetDocs resolves term to the bitmap of DocIDs currently containing it:
// the compacted td_root, adjusted by every outstanding tt log delta not
// yet folded in (§4.7 query path, §3.8 "reads tolerate uncompacted
// state").
func (idx Index) GetDocs(ctx context.Context, tx kv.Tx, term string) (*roaring64.Bitmap, error) {
	bm := roaring64.New()
	if raw, ok, err := tx.Get(ctx, keys.FTRoot(idx.NS, idx.DB, idx.TB, idx.Name, term)); err != nil {
		return nil, err
	} else if ok {
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
	}

	deltas, err := idx.termDeltas(ctx, tx, term)
	if err != nil {
		return nil, err
	}
	for docID, delta := range deltas {
		switch {
		case delta > 0:
			bm.Add(docID)
		case delta < 0:
			bm.Remove(docID)
		}
	}
	return bm, nil
}

// termDeltas scans the tt log for term and nets +1/-1 per (docID, add)
// entry into a per-doc signed delta.
func (idx Index) termDeltas(ctx context.Context, tx kv.Tx, term string) (map[uint64]int, error) {
	prefix := keys.FTLogTermPrefix(idx.NS, idx.DB, idx.TB, idx.Name, term)
	rng := kv.Range{Start: prefix, End: keys.Successor(prefix)}
	kvs, err := tx.GetRange(ctx, rng)
	if err != nil {
		return nil, err
	}
	deltas := make(map[uint64]int)
	for _, e := range kvs {
		docID, add, ok := decodeLogKeyTail(e.Key, len(prefix))
		if !ok {
			continue
		}
		if add {
			deltas[docID]++
		} else {
			deltas[docID]--
		}
	}
	return deltas, nil
}

// decodeLogKeyTail reads the docID/add fields of a tt log key whose
// layout is ...term(lstr) docID(8) node(lstr) ulid(16) add(1). prefixLen
// is the length of the exact-term FTLogTermPrefix the scan was bounded
// to, so docID sits at key[prefixLen:prefixLen+8] regardless of the
// variable-length node/ulid components that follow.
func decodeLogKeyTail(key []byte, prefixLen int) (docID uint64, add bool, ok bool) {
	if len(key) < prefixLen+8+1 {
		return 0, false, false
	}
	docID = binary.BigEndian.Uint64(key[prefixLen : prefixLen+8])
	add = key[len(key)-1] == 1
	return docID, add, true
}

// And composes hits for a multi-term AND query: bitmaps are intersected
// in cardinality-ascending order so the smallest set drives the scan,
// terminating early once the running intersection is empty (§4.7 Hit
// composition).
func And(ctx context.Context, tx kv.Tx, idx Index, terms []string) (*roaring64.Bitmap, error) {
	bitmaps := make([]*roaring64.Bitmap, 0, len(terms))
	for _, t := range terms {
		bm, err := idx.GetDocs(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		bitmaps = append(bitmaps, bm)
	}
	if len(bitmaps) == 0 {
		return roaring64.New(), nil
	}
	sort.Slice(bitmaps, func(i, j int) bool { return bitmaps[i].GetCardinality() < bitmaps[j].GetCardinality() })
	result := bitmaps[0]
	for _, bm := range bitmaps[1:] {
		if result.IsEmpty() {
			break
		}
		result = roaring64.And(result, bm)
	}
	return result, nil
}

// Or composes hits for a multi-term OR query via bitmap union.
func Or(ctx context.Context, tx kv.Tx, idx Index, terms []string) (*roaring64.Bitmap, error) {
	result := roaring64.New()
	for _, t := range terms {
		bm, err := idx.GetDocs(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		result = roaring64.Or(result, bm)
	}
	return result, nil
}

// Hit is one resolved full-text match: its DocID and the matching
// record. Offsets for highlighting are read separately via
// Index.Highlights.
type Hit struct {
	DocID    uint64
	RecordID value.RecordID
}

// HitsIterator resolves every DocID in a bitmap back to its RecordID via
// the index's SeqDocIDs bijection.
type HitsIterator struct {
	idx  Index
	ids  []uint64
	pos  int
}

// NewHitsIterator builds an iterator over bm's DocIDs in ascending order.
func NewHitsIterator(idx Index, bm *roaring64.Bitmap) *HitsIterator {
	arr := bm.ToArray()
	ids := make([]uint64, len(arr))
	for i, v := range arr {
		ids[i] = uint64(v)
	}
	return &HitsIterator{idx: idx, ids: ids}
}

// Next resolves and returns the next hit, or ok=false when exhausted.
func (h *HitsIterator) Next(ctx context.Context, tx kv.Tx) (Hit, bool, error) {
	for h.pos < len(h.ids) {
		docID := h.ids[h.pos]
		h.pos++
		rid, ok, err := h.idx.docIDs().Lookup(ctx, tx, docID)
		if err != nil {
			return Hit{}, false, err
		}
		if !ok {
			continue
		}
		return Hit{DocID: docID, RecordID: rid}, true, nil
	}
	return Hit{}, false, nil
}

// Remaining reports how many DocIDs are left to resolve.
func (h *HitsIterator) Remaining() int { return len(h.ids) - h.pos }
