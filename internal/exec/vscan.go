package exec

import (
	"fmt"

	"github.com/reifydb/reifydb-sub032/internal/catalog/mat"
	"github.com/reifydb/reifydb-sub032/internal/cdc"
	"github.com/reifydb/reifydb-sub032/internal/exec/vtable"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// VirtualScan serves a system table from the materialized catalog: a
// stateless generator reads the catalog lists visible at the query's
// snapshot and emits a single batch (spec §4.6 "VirtualScan dispatches on
// the id").
type VirtualScan struct {
	ID       vtable.ID
	Catalog  *mat.Catalog
	Log      *cdc.Log
	AsOf     store.Version
	headers  []ColumnHeader
	served   bool
	batch    *Columns
}

func (v *VirtualScan) Initialize(tx *txn.Query, ctx *Context) error {
	v.served = false
	gen, ok := vtable.Generators[v.ID]
	if !ok {
		return fmt.Errorf("exec: virtual table id %d has no generator", v.ID)
	}
	v.batch = gen(v.Catalog, v.Log, v.AsOf)
	v.headers = v.batch.Headers()
	return nil
}

func (v *VirtualScan) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if v.served {
		return nil, nil
	}
	v.served = true
	if v.batch == nil || v.batch.Len == 0 {
		return nil, nil
	}
	return v.batch, nil
}

func (v *VirtualScan) Headers() []ColumnHeader { return v.headers }
