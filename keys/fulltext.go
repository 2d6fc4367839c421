package keys

import "encoding/binary"

func ftScope(ns, db, tb, index string) []byte {
	buf := lstr([]byte{}, ns)
	buf = lstr(buf, db)
	buf = lstr(buf, tb)
	return lstr(buf, index)
}

// FTRoot encodes td_root(term) within the scope of one full-text index.
func FTRoot(ns, db, tb, index, term string) []byte {
	buf := append([]byte{byte(CatFTRoot)}, ftScope(ns, db, tb, index)...)
	return lstr(buf, term)
}

// FTRootPrefix bounds a scan over every td_root key of one index.
func FTRootPrefix(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTRoot)}, ftScope(ns, db, tb, index)...)
}

// FTDoc encodes td(term, doc_id): per-(term,doc) TermDocument.
func FTDoc(ns, db, tb, index, term string, docID uint64) []byte {
	buf := append([]byte{byte(CatFTDoc)}, ftScope(ns, db, tb, index)...)
	buf = lstr(buf, term)
	return u64(buf, docID)
}

// FTDocPrefix bounds a scan over every td(term, *) key.
func FTDocPrefix(ns, db, tb, index, term string) []byte {
	buf := append([]byte{byte(CatFTDoc)}, ftScope(ns, db, tb, index)...)
	return lstr(buf, term)
}

// FTLog encodes tt(term, doc_id, node, ulid, add) — the append-only log.
// add is folded into the key so add/remove entries for the same
// (term,doc,node,ulid) can never collide.
func FTLog(ns, db, tb, index, term string, docID uint64, node string, ulid []byte, add bool) []byte {
	buf := append([]byte{byte(CatFTLog)}, ftScope(ns, db, tb, index)...)
	buf = lstr(buf, term)
	buf = u64(buf, docID)
	buf = lstr(buf, node)
	buf = append(buf, ulid...)
	if add {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// FTLogPrefix bounds a scan over the entire tt log of one index, in term
// order (compaction's "scan the full tt range in term order" step).
func FTLogPrefix(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTLog)}, ftScope(ns, db, tb, index)...)
}

// FTLogTermPrefix bounds a scan over the tt log entries for one term.
func FTLogTermPrefix(ns, db, tb, index, term string) []byte {
	buf := append([]byte{byte(CatFTLog)}, ftScope(ns, db, tb, index)...)
	return lstr(buf, term)
}

// FTLen encodes dl(doc_id): per-document term count.
func FTLen(ns, db, tb, index string, docID uint64) []byte {
	buf := append([]byte{byte(CatFTLen)}, ftScope(ns, db, tb, index)...)
	return u64(buf, docID)
}

func FTLenPrefix(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTLen)}, ftScope(ns, db, tb, index)...)
}

// FTDocCount encodes dc(doc_id, node, ulid): per-write delta-count entry.
func FTDocCount(ns, db, tb, index string, docID uint64, node string, ulid []byte) []byte {
	buf := append([]byte{byte(CatFTDC)}, ftScope(ns, db, tb, index)...)
	buf = u64(buf, docID)
	buf = lstr(buf, node)
	return append(buf, ulid...)
}

func FTDocCountPrefix(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTDC)}, ftScope(ns, db, tb, index)...)
}

// FTDocCountRoot encodes dc_root: consolidated doc-count/length after
// compaction.
func FTDocCountRoot(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTDCRoot)}, ftScope(ns, db, tb, index)...)
}

// FTCompactLock encodes ic(node): the compaction-in-progress marker used
// to serialize at most one compaction per (index, node).
func FTCompactLock(ns, db, tb, index, node string) []byte {
	buf := append([]byte{byte(CatFTCompact)}, ftScope(ns, db, tb, index)...)
	return lstr(buf, node)
}

// DocIDSeq encodes the doc-id allocator's next-value counter for one
// index, stored as a plain 8-byte big-endian counter at a fixed key.
func DocIDSeq(ns, db, tb, index string) []byte {
	return append([]byte{byte(CatFTDoc), 0xFF}, ftScope(ns, db, tb, index)...)
}

// DocIDForward encodes the forward RecordIDKey->DocId bijection entry.
func DocIDForward(ns, db, tb, index string, recordKey []byte) []byte {
	buf := append([]byte{byte(CatFTDoc), 0xFE}, ftScope(ns, db, tb, index)...)
	return append(buf, recordKey...)
}

// DocIDReverse encodes the reverse DocId->RecordIDKey bijection entry.
func DocIDReverse(ns, db, tb, index string, docID uint64) []byte {
	buf := append([]byte{byte(CatFTDoc), 0xFD}, ftScope(ns, db, tb, index)...)
	return u64(buf, docID)
}

var _ = binary.BigEndian // binary is also used transitively via u64/lstr helpers above
