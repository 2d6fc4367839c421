package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/surdb/surdb-engine/value"
)

// recordKeyTag discriminates which value.Value variant backs a RecordID
// key, so byte-lexicographic order across tags is stable even though the
// underlying value kinds differ.
const (
	tagInt byte = iota
	tagString
	tagUUID
	tagArray
)

// EncodeRecordKey renders a RecordID key (Int | String | Uuid | Array)
// into a byte string; Object and Range keys are not supported and return
// an error. Integers are bias-shifted so two's-complement negative numbers
// still sort before positive ones under plain byte comparison.
func EncodeRecordKey(v value.Value) ([]byte, error) {
	switch v.Kind {
	case value.KindInt:
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], uint64(v.I)^(1<<63))
		return buf, nil
	case value.KindString:
		buf := []byte{tagString}
		return lstr(buf, v.S), nil
	case value.KindUUID:
		buf := append([]byte{tagUUID}, v.U[:]...)
		return buf, nil
	case value.KindArray:
		buf := []byte{tagArray}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(v.Arr)))
		buf = append(buf, lenBuf[:]...)
		for _, e := range v.Arr {
			eb, err := EncodeRecordKey(e)
			if err != nil {
				return nil, err
			}
			buf = lstr(buf, string(eb))
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("keys: unsupported record key kind %s", v.Kind)
	}
}

// DecodeRecordKey is EncodeRecordKey's inverse, consuming buf from the
// front and returning the value plus the number of bytes consumed, so
// callers decoding a RecordKey(ns,db,tb,key) byte string can recover the
// original key value without knowing its kind in advance.
func DecodeRecordKey(buf []byte) (value.Value, int, error) {
	if len(buf) == 0 {
		return value.Value{}, 0, fmt.Errorf("keys: empty record key")
	}
	switch buf[0] {
	case tagInt:
		if len(buf) < 9 {
			return value.Value{}, 0, fmt.Errorf("keys: truncated int record key")
		}
		u := binary.BigEndian.Uint64(buf[1:9])
		return value.Int(int64(u ^ (1 << 63))), 9, nil
	case tagString:
		if len(buf) < 3 {
			return value.Value{}, 0, fmt.Errorf("keys: truncated string record key")
		}
		n := int(binary.BigEndian.Uint16(buf[1:3]))
		if len(buf) < 3+n {
			return value.Value{}, 0, fmt.Errorf("keys: truncated string record key body")
		}
		return value.String(string(buf[3 : 3+n])), 3 + n, nil
	case tagUUID:
		if len(buf) < 17 {
			return value.Value{}, 0, fmt.Errorf("keys: truncated uuid record key")
		}
		uu, err := uuid.FromBytes(buf[1:17])
		if err != nil {
			return value.Value{}, 0, err
		}
		return value.UUID(uu), 17, nil
	case tagArray:
		if len(buf) < 3 {
			return value.Value{}, 0, fmt.Errorf("keys: truncated array record key")
		}
		n := int(binary.BigEndian.Uint16(buf[1:3]))
		pos := 3
		elems := make([]value.Value, 0, n)
		for i := 0; i < n; i++ {
			if len(buf) < pos+2 {
				return value.Value{}, 0, fmt.Errorf("keys: truncated array element length")
			}
			elLen := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
			pos += 2
			if len(buf) < pos+elLen {
				return value.Value{}, 0, fmt.Errorf("keys: truncated array element body")
			}
			ev, _, err := DecodeRecordKey(buf[pos : pos+elLen])
			if err != nil {
				return value.Value{}, 0, err
			}
			elems = append(elems, ev)
			pos += elLen
		}
		return value.Array(elems), pos, nil
	default:
		return value.Value{}, 0, fmt.Errorf("keys: unrecognized record key tag %d", buf[0])
	}
}
