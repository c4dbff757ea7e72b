// Package flow implements the materialized-view flow engine (spec §4.8): a
// compiled DAG of stateful and stateless operators, driven by the CDC log,
// producing incremental updates to view rows. Grounded on the teacher's
// internal/source/cdc resolver (poll-accumulate-flush loop, Mark/Record
// checkpoint idiom) and internal/source/logical's Dialect/chaos decorator
// lifecycle, since the teacher has no incremental-view engine of its own.
package flow

import "github.com/reifydb/reifydb-sub032/internal/core/row"

// ChangeKind discriminates the three incremental-update shapes a flow
// change can carry (spec §4.8 "FlowDiff: Insert | Update | Remove").
type ChangeKind byte

const (
	Insert ChangeKind = iota
	Update
	Remove
)

// Change is one row-level update flowing through the DAG.
type Change struct {
	Kind ChangeKind
	Key  []byte // opaque row identity, stable across Insert/Update/Remove of the same logical row
	Before *row.Row // present for Update, Remove
	After  *row.Row // present for Insert, Update
}

// Diff is a batch of changes moving between two nodes in one dispatch pass.
type Diff []Change
