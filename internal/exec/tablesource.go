package exec

import (
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// TableRowSource is the concrete RowSource backing ScanTable for a real
// table or view: it scans the row-key range owned by one primary key's
// namespace/name at the query's snapshot and decodes each entry against the
// table's row schema.
type TableRowSource struct {
	Schema *row.Schema

	cursor store.Cursor
	rowNum uint64
}

// NewTableRowSource opens a snapshot scan over every row keyed under
// pkNamespace/pkName, to be iterated via Next until exhaustion.
func NewTableRowSource(tx *txn.Query, pkNamespace, pkName string, schema *row.Schema) *TableRowSource {
	start, end := key.TableRowRange(pkNamespace, pkName)
	return &TableRowSource{Schema: schema, cursor: tx.Scan(start, end)}
}

func (s *TableRowSource) Next(tx *txn.Query) (*row.Row, uint64, bool) {
	if s.cursor == nil {
		return nil, 0, false
	}
	e, ok := s.cursor.Next()
	if !ok {
		return nil, 0, false
	}
	r := row.Wrap(s.Schema, e.Value)
	num := s.rowNum
	s.rowNum++
	return r, num, true
}

func (s *TableRowSource) Close() {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursor = nil
	}
}
