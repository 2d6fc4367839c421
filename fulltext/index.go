// Package fulltext implements the full-text index subsystem (§3.8/§4.7):
// a dense DocID allocator, an append-only term log merged at query time
// and consolidated at compaction, BM25 scoring, and an analyzer chain
// for tokenizing both documents and queries.
//
// Grounded in db/couchdb_changes.go (teacher)'s append-only change log
// with deferred processing for the tt append-log/compaction shape;
// bitmap intersection/union is cross-pack grounded on the erigon-lib
// example's use of RoaringBitmap for large integer-ID set operations.
package fulltext

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

// TermDocument is the per-(term,doc) record: frequency and, when the
// index was defined WITH HIGHLIGHTS, the byte offsets each occurrence
// was found at.
type TermDocument struct {
	F uint32   `json:"f"`
	O []Offset `json:"o,omitempty"`
}

// Index is one DEFINE INDEX ... SEARCH ANALYZER definition's runtime
// state: where its keys live, how it tokenizes, and whether it tracks
// offsets for highlighting.
type Index struct {
	NS, DB, TB, Name string
	Node             string
	Analyzer         *Analyzer
	Highlights       bool
	BM25             BM25Params
}

func (idx Index) docIDs() SeqDocIDs {
	return SeqDocIDs{NS: idx.NS, DB: idx.DB, TB: idx.TB, Index: idx.Name}
}

// IndexContent tokenizes content, allocates/resolves the document's
// DocID, and writes td/tt/dl/dc entries for every distinct term (§4.7
// step 1-6). requireCompaction is always true on a non-empty write: the
// caller may use it to schedule the index's compactor goroutine.
func (idx Index) IndexContent(ctx context.Context, tx kv.Tx, rid value.RecordID, content string) (bool, error) {
	tokens := idx.Analyzer.Analyze(StageIndexing, content)
	if len(tokens) == 0 {
		return false, nil
	}
	docID, _, err := idx.docIDs().ResolveDocID(ctx, tx, rid)
	if err != nil {
		return false, err
	}

	terms := aggregate(tokens, idx.Highlights)
	for term, td := range terms {
		raw, err := json.Marshal(td)
		if err != nil {
			return false, err
		}
		if err := tx.Set(ctx, keys.FTDoc(idx.NS, idx.DB, idx.TB, idx.Name, term, docID), raw); err != nil {
			return false, err
		}
		if err := idx.appendLog(ctx, tx, term, docID, true); err != nil {
			return false, err
		}
	}

	if err := tx.Set(ctx, keys.FTLen(idx.NS, idx.DB, idx.TB, idx.Name, docID), encodeU32(uint32(len(tokens)))); err != nil {
		return false, err
	}
	if err := idx.appendDocCount(ctx, tx, docID, int64(len(tokens)), 1); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveContent mirrors IndexContent with add=false entries and negative
// dc deltas, and deletes the td/dl entries outright (§4.7 Removal).
// content must be the same content the document was indexed with, so
// the same term set is found; callers purge before re-indexing new
// content rather than diffing term sets.
func (idx Index) RemoveContent(ctx context.Context, tx kv.Tx, rid value.RecordID, content string) (bool, error) {
	docID, ok, err := idx.docIDs().ForwardLookup(ctx, tx, rid)
	if err != nil || !ok {
		return false, err
	}
	tokens := idx.Analyzer.Analyze(StageIndexing, content)
	if len(tokens) == 0 {
		return false, nil
	}
	terms := aggregate(tokens, idx.Highlights)
	for term := range terms {
		if err := tx.Del(ctx, keys.FTDoc(idx.NS, idx.DB, idx.TB, idx.Name, term, docID)); err != nil {
			return false, err
		}
		if err := idx.appendLog(ctx, tx, term, docID, false); err != nil {
			return false, err
		}
	}
	if err := tx.Del(ctx, keys.FTLen(idx.NS, idx.DB, idx.TB, idx.Name, docID)); err != nil {
		return false, err
	}
	if err := idx.appendDocCount(ctx, tx, docID, -int64(len(tokens)), -1); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDoc frees recordKey's DocID once its content has been removed
// from every term it appeared under.
func (idx Index) RemoveDoc(ctx context.Context, tx kv.Tx, rid value.RecordID) error {
	docID, ok, err := idx.docIDs().ForwardLookup(ctx, tx, rid)
	if err != nil || !ok {
		return err
	}
	return idx.docIDs().Free(ctx, tx, docID, rid)
}

func (idx Index) appendLog(ctx context.Context, tx kv.Tx, term string, docID uint64, add bool) error {
	entry := globalIDSource.next()
	return tx.Set(ctx, keys.FTLog(idx.NS, idx.DB, idx.TB, idx.Name, term, docID, idx.Node, entry, add), nil)
}

// docCountDelta is the per-write dc entry (§3.8): a signed contribution
// to the consolidated total_docs_length/doc_count pair, applied at
// compaction.
type docCountDelta struct {
	TotalDocsLength int64 `json:"l"`
	DocCount        int64 `json:"c"`
}

func (idx Index) appendDocCount(ctx context.Context, tx kv.Tx, docID uint64, lengthDelta, countDelta int64) error {
	raw, err := json.Marshal(docCountDelta{TotalDocsLength: lengthDelta, DocCount: countDelta})
	if err != nil {
		return err
	}
	entry := globalIDSource.next()
	return tx.Set(ctx, keys.FTDocCount(idx.NS, idx.DB, idx.TB, idx.Name, docID, idx.Node, entry), raw)
}

// aggregate folds tokens into one TermDocument per distinct term,
// dropping offsets when the index was not defined WITH HIGHLIGHTS.
func aggregate(tokens []Token, highlights bool) map[string]*TermDocument {
	out := make(map[string]*TermDocument)
	for _, t := range tokens {
		td, ok := out[t.Term]
		if !ok {
			td = &TermDocument{}
			out[t.Term] = td
		}
		td.F++
		if highlights {
			td.O = append(td.O, t.Offsets...)
		}
	}
	return out
}

func encodeU32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func decodeU32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
