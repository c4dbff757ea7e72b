package exec

import (
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// Context carries per-query execution settings threaded through Initialize
// and Next. It holds only the batch size; the snapshot is reached through the
// *txn.Query argument.
type Context struct {
	BatchSize int
}

// DefaultContext returns a Context using the spec's typical default batch
// size.
func DefaultContext() *Context { return &Context{BatchSize: DefaultBatchSize} }

// Operator is the volcano iterator contract every node in a compiled query
// plan implements (spec §4.6).
type Operator interface {
	Initialize(tx *txn.Query, ctx *Context) error
	// Next returns the next batch, or (nil, nil) at end of stream.
	Next(tx *txn.Query, ctx *Context) (*Columns, error)
	Headers() []ColumnHeader
}
