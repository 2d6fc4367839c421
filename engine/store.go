package engine

import (
	"bytes"
	"context"
	"errors"

	"github.com/surdb/surdb-engine/keys"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

var errShortGraphKey = errors.New("engine: truncated graph edge key")

// RecordStore implements iterator.Store over a kv.Tx using the
// keys package's record-key layout and this package's JSON codec.
// Grounded in db/bolt.DB's bucket-scoped Get/Put (teacher), generalized
// from named buckets to the deterministic byte-key scheme of §6.3.
type RecordStore struct{}

func (RecordStore) Get(ctx context.Context, tx kv.Tx, ns, db string, rid value.RecordID) (value.Value, bool, error) {
	kb, err := keys.EncodeRecordKey(rid.Key)
	if err != nil {
		return value.Value{}, false, err
	}
	data, ok, err := tx.Get(ctx, keys.RecordKey(ns, db, rid.Table, kb))
	if err != nil || !ok {
		return value.Value{}, false, err
	}
	v, err := DecodeValue(data)
	return v, true, err
}

func (RecordStore) ScanTable(ctx context.Context, tx kv.Tx, ns, db, table string, fn func(value.RecordID, value.Value) error) error {
	prefix := keys.RecordPrefix(ns, db, table)
	rng := kv.Range{Start: keys.Prefix(prefix), End: keys.Successor(prefix)}
	pairs, err := tx.GetRange(ctx, rng)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		rid, v, err := decodeRecordPair(table, prefix, p)
		if err != nil {
			return err
		}
		if err := fn(rid, v); err != nil {
			return err
		}
	}
	return nil
}

func (RecordStore) ScanRange(ctx context.Context, tx kv.Tx, ns, db string, rng value.Range, fn func(value.RecordID, value.Value) error) error {
	prefix := keys.RecordPrefix(ns, db, rng.Table)
	start := prefix
	if rng.Start.Kind != value.BoundUnbounded {
		kb, err := keys.EncodeRecordKey(rng.Start.Val)
		if err != nil {
			return err
		}
		start = keys.RecordKey(ns, db, rng.Table, kb)
		if rng.Start.Kind == value.BoundExcluded {
			start = keys.Successor(start)
		}
	}
	end := keys.Successor(prefix)
	if rng.End.Kind != value.BoundUnbounded {
		kb, err := keys.EncodeRecordKey(rng.End.Val)
		if err != nil {
			return err
		}
		end = keys.RecordKey(ns, db, rng.Table, kb)
		if rng.End.Kind == value.BoundIncluded {
			end = keys.Successor(end)
		}
	}
	pairs, err := tx.GetRange(ctx, kv.Range{Start: start, End: end})
	if err != nil {
		return err
	}
	for _, p := range pairs {
		rid, v, err := decodeRecordPair(rng.Table, prefix, p)
		if err != nil {
			return err
		}
		if err := fn(rid, v); err != nil {
			return err
		}
	}
	return nil
}

func (RecordStore) ScanEdges(ctx context.Context, tx kv.Tx, ns, db string, e value.Edges, fn func(value.RecordID) error) error {
	fromKey, err := keys.EncodeRecordKey(e.From.Key)
	if err != nil {
		return err
	}

	dirs := []byte{byte(e.Dir)}
	if e.Dir == value.DirBoth {
		dirs = []byte{byte(value.DirOut), byte(value.DirIn)}
	}

	for _, d := range dirs {
		prefix := keys.GraphPrefix(ns, db, e.From.Table, fromKey, d)
		rng := kv.Range{Start: keys.Prefix(prefix), End: keys.Successor(prefix)}
		pairs, err := tx.GetRange(ctx, rng)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			rest := bytes.TrimPrefix(p.Key, prefix)
			tb, body, err := readLString(rest)
			if err != nil {
				return err
			}
			if e.Table != "" && tb != e.Table {
				continue
			}
			kval, _, err := keys.DecodeRecordKey(body)
			if err != nil {
				return err
			}
			if err := fn(value.RecordID{Table: tb, Key: kval}); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeRecordPair(table string, prefix []byte, p kv.KV) (value.RecordID, value.Value, error) {
	body := bytes.TrimPrefix(p.Key, prefix)
	kval, _, err := keys.DecodeRecordKey(body)
	if err != nil {
		return value.RecordID{}, value.Value{}, err
	}
	v, err := DecodeValue(p.Value)
	if err != nil {
		return value.RecordID{}, value.Value{}, err
	}
	return value.RecordID{Table: table, Key: kval}, v, nil
}

// readLString reads a length-prefixed string (as produced by the keys
// package's lstr helper) from the front of buf, returning the string and
// the remaining bytes.
func readLString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, errShortGraphKey
	}
	n := int(buf[0])<<8 | int(buf[1])
	if len(buf) < 2+n {
		return "", nil, errShortGraphKey
	}
	return string(buf[2 : 2+n]), buf[2+n:], nil
}
