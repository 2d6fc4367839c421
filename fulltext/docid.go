package fulltext

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

// SeqDocIDs is the bijection between a table's RecordID and a dense
// 64-bit DocID, scoped to one full-text index (§3.8 doc_ids). IDs are
// allocated from a monotonic counter and never reused once freed —
// RemoveDoc deletes the forward/reverse pair but does not roll the
// counter back, so a compacted td_root bitmap never collides a retired
// DocID with a fresh record.
type SeqDocIDs struct {
	NS, DB, TB, Index string
}

// recKeyJSON is a JSON-friendly mirror of the record-id key kinds
// allowed by §3.1 (Int|String|Uuid|Array), used only to persist the
// reverse DocID->RecordID mapping.
type recKeyJSON struct {
	Kind string       `json:"k"`
	I    int64        `json:"i,omitempty"`
	S    string       `json:"s,omitempty"`
	Arr  []recKeyJSON `json:"a,omitempty"`
}

func encodeRecKey(v value.Value) (recKeyJSON, error) {
	switch v.Kind {
	case value.KindInt:
		return recKeyJSON{Kind: "int", I: v.I}, nil
	case value.KindString:
		return recKeyJSON{Kind: "string", S: v.S}, nil
	case value.KindUUID:
		return recKeyJSON{Kind: "uuid", S: v.U.String()}, nil
	case value.KindArray:
		out := make([]recKeyJSON, len(v.Arr))
		for i, e := range v.Arr {
			enc, err := encodeRecKey(e)
			if err != nil {
				return recKeyJSON{}, err
			}
			out[i] = enc
		}
		return recKeyJSON{Kind: "array", Arr: out}, nil
	default:
		return recKeyJSON{}, fmt.Errorf("fulltext: unsupported record key kind %s", v.Kind)
	}
}

func decodeRecKey(r recKeyJSON) (value.Value, error) {
	switch r.Kind {
	case "int":
		return value.Int(r.I), nil
	case "string":
		return value.String(r.S), nil
	case "uuid":
		u, err := uuid.Parse(r.S)
		if err != nil {
			return value.None(), err
		}
		return value.UUID(u), nil
	case "array":
		elems := make([]value.Value, len(r.Arr))
		for i, e := range r.Arr {
			v, err := decodeRecKey(e)
			if err != nil {
				return value.None(), err
			}
			elems[i] = v
		}
		return value.Array(elems), nil
	default:
		return value.None(), fmt.Errorf("fulltext: unknown record key kind %q", r.Kind)
	}
}

type recordIDJSON struct {
	Table string     `json:"table"`
	Key   recKeyJSON `json:"key"`
}

// ResolveDocID returns the DocID for rid, allocating one lazily on first
// sight.
func (s SeqDocIDs) ResolveDocID(ctx context.Context, tx kv.Tx, rid value.RecordID) (uint64, bool, error) {
	keyBytes, err := keys.EncodeRecordKey(rid.Key)
	if err != nil {
		return 0, false, err
	}
	fwd := keys.DocIDForward(s.NS, s.DB, s.TB, s.Index, keyBytes)
	if raw, ok, err := tx.Get(ctx, fwd); err != nil {
		return 0, false, err
	} else if ok {
		return binary.BigEndian.Uint64(raw), false, nil
	}

	id, err := s.next(ctx, tx)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Set(ctx, fwd, keys.U64(id)); err != nil {
		return 0, false, err
	}
	recKey, err := encodeRecKey(rid.Key)
	if err != nil {
		return 0, false, err
	}
	raw, err := json.Marshal(recordIDJSON{Table: rid.Table, Key: recKey})
	if err != nil {
		return 0, false, err
	}
	if err := tx.Set(ctx, keys.DocIDReverse(s.NS, s.DB, s.TB, s.Index, id), raw); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ForwardLookup resolves rid to its already-allocated DocID, without
// allocating one if absent.
func (s SeqDocIDs) ForwardLookup(ctx context.Context, tx kv.Tx, rid value.RecordID) (uint64, bool, error) {
	keyBytes, err := keys.EncodeRecordKey(rid.Key)
	if err != nil {
		return 0, false, err
	}
	raw, ok, err := tx.Get(ctx, keys.DocIDForward(s.NS, s.DB, s.TB, s.Index, keyBytes))
	if err != nil || !ok {
		return 0, ok, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// Lookup resolves docID back to its RecordID.
func (s SeqDocIDs) Lookup(ctx context.Context, tx kv.Tx, docID uint64) (value.RecordID, bool, error) {
	raw, ok, err := tx.Get(ctx, keys.DocIDReverse(s.NS, s.DB, s.TB, s.Index, docID))
	if err != nil || !ok {
		return value.RecordID{}, ok, err
	}
	var rj recordIDJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return value.RecordID{}, false, err
	}
	key, err := decodeRecKey(rj.Key)
	if err != nil {
		return value.RecordID{}, false, err
	}
	return value.RecordID{Table: rj.Table, Key: key}, true, nil
}

// Free removes the forward/reverse bijection entries for rid/docID. The
// counter never decrements, so docID is retired permanently.
func (s SeqDocIDs) Free(ctx context.Context, tx kv.Tx, docID uint64, rid value.RecordID) error {
	keyBytes, err := keys.EncodeRecordKey(rid.Key)
	if err != nil {
		return err
	}
	if err := tx.Del(ctx, keys.DocIDForward(s.NS, s.DB, s.TB, s.Index, keyBytes)); err != nil {
		return err
	}
	return tx.Del(ctx, keys.DocIDReverse(s.NS, s.DB, s.TB, s.Index, docID))
}

func (s SeqDocIDs) next(ctx context.Context, tx kv.Tx) (uint64, error) {
	seqKey := keys.DocIDSeq(s.NS, s.DB, s.TB, s.Index)
	var next uint64
	if raw, ok, err := tx.Get(ctx, seqKey); err != nil {
		return 0, err
	} else if ok {
		next = binary.BigEndian.Uint64(raw) + 1
	}
	if err := tx.Set(ctx, seqKey, keys.U64(next)); err != nil {
		return 0, err
	}
	return next, nil
}
