package iterator

import (
	"context"

	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/value"
)

// Store is the record-access surface the driver needs beyond raw kv.Tx:
// decoding stored bytes into value.Value and walking key ranges in key
// order. The codec itself (how a Value is serialized) is an engine-layer
// concern (§9 "weak back-references" — the driver holds a read-only
// handle, never the storage engine directly).
type Store interface {
	// Get fetches and decodes the record at rid. ok is false if absent.
	Get(ctx context.Context, tx kv.Tx, ns, db string, rid value.RecordID) (value.Value, bool, error)

	// ScanTable walks every record of table in key order, calling fn once
	// per record. fn returning an error stops the scan and is returned
	// verbatim (dberr.ErrIgnore never reaches here: document.Run absorbs
	// it per document).
	ScanTable(ctx context.Context, tx kv.Tx, ns, db, table string, fn func(value.RecordID, value.Value) error) error

	// ScanRange walks rng in key order.
	ScanRange(ctx context.Context, tx kv.Tx, ns, db string, rng value.Range, fn func(value.RecordID, value.Value) error) error

	// ScanEdges walks every persisted edge matching e, calling fn with the
	// record id the edge pointer names: the relation record RELATE stored
	// (§4.4 "each edge yields the opposite endpoint").
	ScanEdges(ctx context.Context, tx kv.Tx, ns, db string, e value.Edges, fn func(value.RecordID) error) error
}
