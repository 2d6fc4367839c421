package collector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/surdb/surdb-engine/value"
)

// FileCollector spills rows to a temp-dir pair of files: `ix` holds
// cumulative byte offsets (encoding/binary, one uint64 per row boundary),
// `re` holds the length-prefixed JSON records themselves. Grounded on
// db/bolt/bolt.go's length-prefixed record encoding, applied to a flat
// file instead of a bucket.
type FileCollector struct {
	cmp   Comparator
	dir   string
	re    *os.File
	ix    *os.File
	count     int
	order     []int
	rowsCache []value.Value
	final     bool
}

// NewFileCollector creates the backing temp files under os.TempDir().
func NewFileCollector(cmp Comparator) (*FileCollector, error) {
	dir, err := os.MkdirTemp("", "surdb-collector-*")
	if err != nil {
		return nil, err
	}
	re, err := os.CreateTemp(dir, "re-*")
	if err != nil {
		return nil, err
	}
	ix, err := os.CreateTemp(dir, "ix-*")
	if err != nil {
		return nil, err
	}
	return &FileCollector{cmp: cmp, dir: dir, re: re, ix: ix}, nil
}

// Close removes the backing temp directory.
func (f *FileCollector) Close() error {
	f.re.Close()
	f.ix.Close()
	return os.RemoveAll(f.dir)
}

func encodeRow(v value.Value) ([]byte, error) {
	return json.Marshal(valueJSON(v))
}

// valueJSON is a conservative JSON projection of Value sufficient for
// round-tripping through the file collector (full fidelity serialization
// is out of scope here; the collector only needs ordering and retrieval
// within one statement's lifetime).
func valueJSON(v value.Value) any {
	switch v.Kind {
	case value.KindNone, value.KindNull:
		return nil
	case value.KindBool:
		return v.B
	case value.KindInt:
		return v.I
	case value.KindFloat:
		return v.F
	case value.KindString, value.KindDecimal, value.KindTable, value.KindRegex:
		return v.S
	case value.KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = valueJSON(e)
		}
		return out
	case value.KindObject:
		out := make(map[string]any, v.Obj.Len())
		v.Obj.Range(func(k string, e value.Value) bool {
			out[k] = valueJSON(e)
			return true
		})
		return out
	default:
		return v.String()
	}
}

func (f *FileCollector) Push(batch []value.Value) {
	for _, v := range batch {
		body, err := encodeRow(v)
		if err != nil {
			continue
		}
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(body)))
		f.re.Write(lenBuf[:])
		f.re.Write(body)

		var offBuf [8]byte
		off, _ := f.re.Seek(0, io.SeekCurrent)
		binary.BigEndian.PutUint64(offBuf[:], uint64(off))
		f.ix.Write(offBuf[:])
		f.count++
	}
}

// readAt reads the i-th record using the offset index, via os.File.ReadAt.
func (f *FileCollector) readAt(i int) (value.Value, error) {
	var offBuf [8]byte
	if _, err := f.ix.ReadAt(offBuf[:], int64(i)*8); err != nil {
		return value.None(), err
	}
	end := binary.BigEndian.Uint64(offBuf[:])
	var start uint64
	if i > 0 {
		var prevBuf [8]byte
		if _, err := f.ix.ReadAt(prevBuf[:], int64(i-1)*8); err != nil {
			return value.None(), err
		}
		start = binary.BigEndian.Uint64(prevBuf[:])
	}
	recLen := end - start - 8
	body := make([]byte, recLen)
	if _, err := f.re.ReadAt(body, int64(start+8)); err != nil {
		return value.None(), err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return value.None(), err
	}
	return fromJSON(raw), nil
}

func fromJSON(raw any) value.Value {
	switch t := raw.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return value.Int(i)
		}
		f, _ := t.Float64()
		return value.Float(f)
	case float64:
		return value.Float(t)
	case string:
		return value.String(t)
	case []any:
		out := make([]value.Value, len(t))
		for i, e := range t {
			out[i] = fromJSON(e)
		}
		return value.Array(out)
	case map[string]any:
		obj := value.NewObject()
		for k, e := range t {
			obj.Set(k, fromJSON(e))
		}
		return value.Object(obj)
	default:
		return value.Null()
	}
}

// Finalize reads every spilled row back into memory and stable-sorts the
// row indexes by cmp. The whole sort happens in memory; no on-disk merge
// runs are used, however many rows were spilled.
func (f *FileCollector) Finalize(ctx context.Context) error {
	if f.final {
		return nil
	}
	rows := make([]value.Value, f.count)
	for i := 0; i < f.count; i++ {
		v, err := f.readAt(i)
		if err != nil {
			return fmt.Errorf("collector: file read: %w", err)
		}
		rows[i] = v
	}
	idx := make([]int, f.count)
	for i := range idx {
		idx[i] = i
	}
	if f.cmp != nil {
		sort.SliceStable(idx, func(i, j int) bool { return f.cmp(rows[idx[i]], rows[idx[j]]) < 0 })
	}
	f.order = idx
	f.rowsCache = rows
	f.final = true
	return nil
}

func (f *FileCollector) Take(start, limit int) []value.Value {
	idxPage := pageInts(f.order, start, limit)
	out := make([]value.Value, len(idxPage))
	for i, idx := range idxPage {
		out[i] = f.rowsCache[idx]
	}
	return out
}

func (f *FileCollector) Len() int { return f.count }
