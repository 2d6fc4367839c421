package fulltext

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
)

// compactionLocks serializes Compaction per (index, node) pair in-process,
// the same single-flight-per-queue discipline worker.Pool applies per
// named queue, generalized to an anonymous (index,node) key: a second
// concurrent caller for the same pair returns immediately instead of
// blocking.
var compactionLocks sync.Map // map[string]*sync.Mutex

func compactionLock(key string) *sync.Mutex {
	v, _ := compactionLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Compaction consolidates the dc and tt append logs into dc_root and
// td_root respectively (§4.7). It returns whether any log entries were
// found, so a scheduler knows whether further compaction work remains.
// Reads remain correct while Compaction runs concurrently with writers:
// the log is append-only and this only deletes the exact range it has
// already folded into the root.
func (idx Index) Compaction(ctx context.Context, tx kv.Tx) (bool, error) {
	lockName := idx.NS + "\x00" + idx.DB + "\x00" + idx.TB + "\x00" + idx.Name + "\x00" + idx.Node
	mu := compactionLock(lockName)
	if !mu.TryLock() {
		return false, nil
	}
	defer mu.Unlock()

	lockKey := keys.FTCompactLock(idx.NS, idx.DB, idx.TB, idx.Name, idx.Node)
	if err := tx.Put(ctx, lockKey, []byte{1}); err != nil {
		if errors.Is(err, kv.ErrKeyAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	defer tx.Del(ctx, lockKey)

	hadLogs := false

	dcHad, err := idx.compactDocCounts(ctx, tx)
	if err != nil {
		return false, err
	}
	hadLogs = hadLogs || dcHad

	ttHad, err := idx.compactTermDocs(ctx, tx)
	if err != nil {
		return false, err
	}
	hadLogs = hadLogs || ttHad

	return hadLogs, nil
}

func (idx Index) compactDocCounts(ctx context.Context, tx kv.Tx) (bool, error) {
	prefix := keys.FTDocCountPrefix(idx.NS, idx.DB, idx.TB, idx.Name)
	rng := kv.Range{Start: prefix, End: keys.Successor(prefix)}
	entries, err := tx.GetRange(ctx, rng)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	rootKey := keys.FTDocCountRoot(idx.NS, idx.DB, idx.TB, idx.Name)
	var total docCountDelta
	if raw, ok, err := tx.Get(ctx, rootKey); err != nil {
		return false, err
	} else if ok {
		if err := json.Unmarshal(raw, &total); err != nil {
			return false, err
		}
	}
	for _, e := range entries {
		var d docCountDelta
		if err := json.Unmarshal(e.Value, &d); err != nil {
			return false, err
		}
		total.TotalDocsLength += d.TotalDocsLength
		total.DocCount += d.DocCount
	}
	raw, err := json.Marshal(total)
	if err != nil {
		return false, err
	}
	if err := tx.Set(ctx, rootKey, raw); err != nil {
		return false, err
	}
	return true, tx.DelR(ctx, rng)
}

func (idx Index) compactTermDocs(ctx context.Context, tx kv.Tx) (bool, error) {
	prefix := keys.FTLogPrefix(idx.NS, idx.DB, idx.TB, idx.Name)
	rng := kv.Range{Start: prefix, End: keys.Successor(prefix)}
	entries, err := tx.GetRange(ctx, rng)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	type delta struct {
		add int
		rem int
	}
	perTerm := make(map[string]map[uint64]*delta)
	for _, e := range entries {
		term, docID, add, ok := decodeLogEntry(e.Key, len(prefix))
		if !ok {
			continue
		}
		docs, ok := perTerm[term]
		if !ok {
			docs = make(map[uint64]*delta)
			perTerm[term] = docs
		}
		d, ok := docs[docID]
		if !ok {
			d = &delta{}
			docs[docID] = d
		}
		if add {
			d.add++
		} else {
			d.rem++
		}
	}

	for term, docs := range perTerm {
		rootKey := keys.FTRoot(idx.NS, idx.DB, idx.TB, idx.Name, term)
		bm := roaring64.New()
		if raw, ok, err := tx.Get(ctx, rootKey); err != nil {
			return false, err
		} else if ok {
			if err := bm.UnmarshalBinary(raw); err != nil {
				return false, err
			}
		}
		for docID, d := range docs {
			net := d.add - d.rem
			switch {
			case net > 0:
				bm.Add(docID)
			case net < 0:
				bm.Remove(docID)
			}
		}
		if bm.IsEmpty() {
			if err := tx.Del(ctx, rootKey); err != nil {
				return false, err
			}
			continue
		}
		raw, err := bm.MarshalBinary()
		if err != nil {
			return false, err
		}
		if err := tx.Set(ctx, rootKey, raw); err != nil {
			return false, err
		}
	}

	return true, tx.DelR(ctx, rng)
}

// decodeLogEntry reads the term/docID/add fields out of a tt log key,
// whose layout after the shared (category+scope) prefix of length
// baseLen is: term(lstr) docID(8) node(lstr) ulid(16) add(1).
func decodeLogEntry(key []byte, baseLen int) (term string, docID uint64, add bool, ok bool) {
	if len(key) < baseLen+2 {
		return "", 0, false, false
	}
	termLen := int(binary.BigEndian.Uint16(key[baseLen : baseLen+2]))
	start := baseLen + 2
	if len(key) < start+termLen+8+1 {
		return "", 0, false, false
	}
	term = string(key[start : start+termLen])
	docID = binary.BigEndian.Uint64(key[start+termLen : start+termLen+8])
	add = key[len(key)-1] == 1
	return term, docID, add, true
}
