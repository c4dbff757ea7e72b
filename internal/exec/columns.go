// Package exec implements the columnar executor (spec §4.6): a pull-based
// volcano iterator pipeline over Columns batches. Grounded on spec §4.6;
// since the teacher has no query executor of its own, general Go
// columnar/row-engine package layout and naming follow
// other_examples/7187ec3a_kasuganosora-sqlexec (pkg/resource in-memory
// mutation) and other_examples/37fd9e33_SimonWaldherr-tinySQL
// (internal/storage mvcc iterator shape).
package exec

import (
	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// Column is one named, typed container within a batch: a dense slice of
// values of a single Kind, each value's Defined flag carrying its validity,
// matching the encoded row format's per-field shape but materialized for
// vectorized access.
type Column struct {
	Name    string
	Kind    value.Kind
	Values  []value.Value // len == batch length; Values[i].Defined mirrors validity
	RowNums []uint64      // row-number column, carried alongside every batch
}

// Columns is a batch: named typed columns of equal length, plus the
// accompanying row-number column (spec §4.6 "a batch where each named
// column is a typed container ... plus a validity bitmap, accompanied by a
// row-number column").
type Columns struct {
	Cols []Column
	Len  int
}

// NewColumns constructs an empty batch with the given column headers.
func NewColumns(headers []ColumnHeader) *Columns {
	cols := make([]Column, len(headers))
	for i, h := range headers {
		cols[i] = Column{Name: h.Name, Kind: h.Kind}
	}
	return &Columns{Cols: cols}
}

// ColumnHeader names and types one output column, without any data.
type ColumnHeader struct {
	Name string
	Kind value.Kind
}

// Headers extracts this batch's column headers.
func (c *Columns) Headers() []ColumnHeader {
	headers := make([]ColumnHeader, len(c.Cols))
	for i, col := range c.Cols {
		headers[i] = ColumnHeader{Name: col.Name, Kind: col.Kind}
	}
	return headers
}

// ColumnByName finds a column by name, or returns (-1, false).
func (c *Columns) ColumnByName(name string) (int, bool) {
	for i, col := range c.Cols {
		if col.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ColumnValues and Length satisfy expr.Batch, letting the vectorized
// evaluator operate on a *Columns without expr importing this package.
func (c *Columns) ColumnValues(i int) []value.Value { return c.Cols[i].Values }

func (c *Columns) Length() int { return c.Len }

// AppendRow appends one row's worth of values (len(vals) == len(c.Cols)) at
// the given row number.
func (c *Columns) AppendRow(rowNum uint64, vals []value.Value) {
	for i, v := range vals {
		c.Cols[i].Values = append(c.Cols[i].Values, v)
		c.Cols[i].RowNums = append(c.Cols[i].RowNums, rowNum)
	}
	c.Len++
}

// Slice returns a new Columns containing rows [start:end) of c.
func (c *Columns) Slice(start, end int) *Columns {
	out := &Columns{Cols: make([]Column, len(c.Cols)), Len: end - start}
	for i, col := range c.Cols {
		out.Cols[i] = Column{
			Name:    col.Name,
			Kind:    col.Kind,
			Values:  append([]value.Value(nil), col.Values[start:end]...),
			RowNums: append([]uint64(nil), col.RowNums[start:end]...),
		}
	}
	return out
}

// DefaultBatchSize is the typical batch row count (spec §4.6).
const DefaultBatchSize = 1024
