// Package keys implements the deterministic byte-key layout described in
// SPEC_FULL.md §6.3: catalog keys, record keys, graph edge keys, full-text
// index keys, and the storage version key. Keys encode fixed-width
// big-endian integer components and length-prefixed strings so range
// bounds can be computed mechanically (Prefix/Successor below), the way
// semantic/runtime/repository.go computed CouchDB startkey/endkey pairs
// from string suffixes, generalized to a proper ordered byte-key store.
package keys

import (
	"encoding/binary"
)

// Category tags the first byte of every key so distinct categories never
// collide in range scans even when the remaining bytes happen to be a
// sub-sequence of another category's encoding.
type Category byte

const (
	CatVersion Category = 0x00
	CatNS      Category = 0x01
	CatDB      Category = 0x02
	CatTB      Category = 0x03
	CatField   Category = 0x04
	CatEvent   Category = 0x05
	CatIndex   Category = 0x06
	CatFT      Category = 0x07
	CatLive    Category = 0x08
	CatParam   Category = 0x09
	CatFunc    Category = 0x0A
	CatAccess  Category = 0x0B
	CatModule  Category = 0x0C
	CatChange  Category = 0x0D
	CatRecord  Category = 0x10
	CatGraph   Category = 0x11
	CatFTRoot  Category = 0x20
	CatFTDoc   Category = 0x21
	CatFTLog   Category = 0x22
	CatFTLen   Category = 0x23
	CatFTDC    Category = 0x24
	CatFTDCRoot Category = 0x25
	CatFTCompact Category = 0x26
)

// lstr length-prefix-encodes s (uint16 big-endian length + bytes), so a
// string component never swallows the bytes of the component after it.
func lstr(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func u64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// Version is the root.version key (§6.4).
func Version() []byte {
	return []byte{byte(CatVersion)}
}

// NS encodes root.ns(ns) — DEFINE NAMESPACE entry.
func NS(ns string) []byte {
	return lstr([]byte{byte(CatNS)}, ns)
}

// NSPrefix bounds a scan over all namespaces.
func NSPrefix() []byte { return []byte{byte(CatNS)} }

// DB encodes ns.db(ns, db).
func DB(ns, db string) []byte {
	buf := lstr([]byte{byte(CatDB)}, ns)
	return lstr(buf, db)
}

// DBPrefix bounds a scan over all databases in ns.
func DBPrefix(ns string) []byte {
	return lstr([]byte{byte(CatDB)}, ns)
}

// TB encodes db.tb(ns, db, tb).
func TB(ns, db, tb string) []byte {
	buf := lstr([]byte{byte(CatTB)}, ns)
	buf = lstr(buf, db)
	return lstr(buf, tb)
}

// TBPrefix bounds a scan over all tables in ns.db.
func TBPrefix(ns, db string) []byte {
	buf := lstr([]byte{byte(CatTB)}, ns)
	return lstr(buf, db)
}

func scopedKey(cat Category, ns, db, tb, name string) []byte {
	buf := lstr([]byte{byte(cat)}, ns)
	buf = lstr(buf, db)
	buf = lstr(buf, tb)
	return lstr(buf, name)
}

func scopedPrefix(cat Category, ns, db, tb string) []byte {
	buf := lstr([]byte{byte(cat)}, ns)
	buf = lstr(buf, db)
	return lstr(buf, tb)
}

// Field encodes tb.fd(ns,db,tb,field).
func Field(ns, db, tb, field string) []byte { return scopedKey(CatField, ns, db, tb, field) }

// FieldPrefix bounds a scan over all fields on ns.db.tb.
func FieldPrefix(ns, db, tb string) []byte { return scopedPrefix(CatField, ns, db, tb) }

// Event encodes tb.ev(ns,db,tb,event).
func Event(ns, db, tb, event string) []byte { return scopedKey(CatEvent, ns, db, tb, event) }
func EventPrefix(ns, db, tb string) []byte  { return scopedPrefix(CatEvent, ns, db, tb) }

// Index encodes tb.ix(ns,db,tb,index).
func Index(ns, db, tb, index string) []byte { return scopedKey(CatIndex, ns, db, tb, index) }
func IndexPrefix(ns, db, tb string) []byte  { return scopedPrefix(CatIndex, ns, db, tb) }

// FT encodes tb.ft(ns,db,tb,index) — the full-text index definition.
func FT(ns, db, tb, index string) []byte { return scopedKey(CatFT, ns, db, tb, index) }
func FTPrefix(ns, db, tb string) []byte  { return scopedPrefix(CatFT, ns, db, tb) }

// Live encodes tb.lv(ns,db,tb,lqID).
func Live(ns, db, tb, lqID string) []byte { return scopedKey(CatLive, ns, db, tb, lqID) }
func LivePrefix(ns, db, tb string) []byte { return scopedPrefix(CatLive, ns, db, tb) }

// Param encodes db.pa(ns,db,name).
func Param(ns, db, name string) []byte {
	buf := lstr([]byte{byte(CatParam)}, ns)
	return lstr(lstr(buf, db), name)
}
func ParamPrefix(ns, db string) []byte { return lstr(lstr([]byte{byte(CatParam)}, ns), db) }

// Func encodes db.fc(ns,db,name).
func Func(ns, db, name string) []byte {
	buf := lstr([]byte{byte(CatFunc)}, ns)
	return lstr(lstr(buf, db), name)
}
func FuncPrefix(ns, db string) []byte { return lstr(lstr([]byte{byte(CatFunc)}, ns), db) }

// RecordKey encodes tb.record(ns,db,tb,key) where key is an already
// byte-encoded record-id key (see KeyBytes in recordkey.go).
func RecordKey(ns, db, tb string, key []byte) []byte {
	buf := scopedPrefix(CatRecord, ns, db, tb)
	return append(buf, key...)
}

// RecordPrefix bounds a table's full record range.
func RecordPrefix(ns, db, tb string) []byte { return scopedPrefix(CatRecord, ns, db, tb) }

// Graph encodes graph(ns,db,tb,from,dir,edgeTable,to).
func Graph(ns, db, tb string, from []byte, dir byte, edgeTable string, to []byte) []byte {
	buf := scopedPrefix(CatGraph, ns, db, tb)
	buf = append(buf, from...)
	buf = append(buf, dir)
	buf = lstr(buf, edgeTable)
	return append(buf, to...)
}

// GraphPrefix bounds all edges from a given record in a given direction.
func GraphPrefix(ns, db, tb string, from []byte, dir byte) []byte {
	buf := scopedPrefix(CatGraph, ns, db, tb)
	buf = append(buf, from...)
	return append(buf, dir)
}

// Prefix returns p unchanged; it is the inclusive lower bound of a range
// whose upper bound is Successor(p).
func Prefix(p []byte) []byte { return p }

// Successor returns the smallest byte string greater than every key with
// prefix p, by incrementing the last byte that is not already 0xFF and
// truncating any trailing 0xFF bytes — the standard technique for turning
// a prefix into an exclusive upper range bound.
func Successor(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	// all 0xFF: no successor within the same length; caller must treat
	// this as an unbounded upper range.
	return nil
}

// U64 big-endian-encodes a uint64 for use as a fixed-width key component.
func U64(v uint64) []byte {
	return u64(nil, v)
}
