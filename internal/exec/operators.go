package exec

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// RowSource abstracts a table's underlying key-ordered row stream, letting
// ScanTable avoid a direct dependency on internal/store's key shapes.
type RowSource interface {
	// Next returns the next row's decoded value or (nil, false) at end.
	Next(tx *txn.Query) (*row.Row, uint64, bool)
	Close()
}

// ScanTable iterates a table at the txn snapshot, emitting full row
// batches in primary-key order (spec §4.6).
type ScanTable struct {
	Source  RowSource
	headers []ColumnHeader
	batch   int
}

func NewScanTable(src RowSource, headers []ColumnHeader) *ScanTable {
	return &ScanTable{Source: src, headers: headers}
}

func (s *ScanTable) Initialize(tx *txn.Query, ctx *Context) error {
	s.batch = ctx.BatchSize
	return nil
}

func (s *ScanTable) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	out := NewColumns(s.headers)
	for out.Len < s.batch {
		r, rowNum, ok := s.Source.Next(tx)
		if !ok {
			break
		}
		vals := make([]value.Value, len(s.headers))
		for i := range s.headers {
			vals[i] = r.GetValue(i)
		}
		out.AppendRow(rowNum, vals)
	}
	if out.Len == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *ScanTable) Headers() []ColumnHeader { return s.headers }

// ScanInline serves a precomputed batch literal (spec §4.6).
type ScanInline struct {
	Literal *Columns
	served  bool
}

func NewScanInline(lit *Columns) *ScanInline { return &ScanInline{Literal: lit} }

func (s *ScanInline) Initialize(tx *txn.Query, ctx *Context) error { s.served = false; return nil }

func (s *ScanInline) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if s.served {
		return nil, nil
	}
	s.served = true
	return s.Literal, nil
}

func (s *ScanInline) Headers() []ColumnHeader { return s.Literal.Headers() }

// Filter drops rows where the compiled predicate is false or undefined
// (spec §4.6).
type Filter struct {
	Input     Operator
	Predicate *expr.Expr
	Eval      *expr.Evaluator
}

func NewFilter(input Operator, predicate *expr.Expr, ev *expr.Evaluator) *Filter {
	return &Filter{Input: input, Predicate: predicate, Eval: ev}
}

func (f *Filter) Initialize(tx *txn.Query, ctx *Context) error { return f.Input.Initialize(tx, ctx) }

func (f *Filter) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	for {
		batch, err := f.Input.Next(tx, ctx)
		if err != nil || batch == nil {
			return batch, err
		}
		keep, err := f.Eval.Evaluate(batch, f.Predicate)
		if err != nil {
			return nil, err
		}
		out := &Columns{Cols: make([]Column, len(batch.Cols))}
		for i, c := range batch.Cols {
			out.Cols[i] = Column{Name: c.Name, Kind: c.Kind}
		}
		for i := 0; i < batch.Len; i++ {
			if !keep[i].Defined || !keep[i].Bool {
				continue
			}
			for ci := range batch.Cols {
				out.Cols[ci].Values = append(out.Cols[ci].Values, batch.Cols[ci].Values[i])
				out.Cols[ci].RowNums = append(out.Cols[ci].RowNums, batch.Cols[ci].RowNums[i])
			}
			out.Len++
		}
		if out.Len > 0 {
			return out, nil
		}
	}
}

func (f *Filter) Headers() []ColumnHeader { return f.Input.Headers() }

// Map replaces output columns with evaluated expressions (spec §4.6).
type Map struct {
	Input   Operator
	Exprs   []*expr.Expr
	Outputs []ColumnHeader
	Eval    *expr.Evaluator
}

func (m *Map) Initialize(tx *txn.Query, ctx *Context) error { return m.Input.Initialize(tx, ctx) }

func (m *Map) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	batch, err := m.Input.Next(tx, ctx)
	if err != nil || batch == nil {
		return batch, err
	}
	out := NewColumns(m.Outputs)
	out.Len = batch.Len
	for i, e := range m.Exprs {
		vals, err := m.Eval.Evaluate(batch, e)
		if err != nil {
			return nil, err
		}
		out.Cols[i].Values = vals
		if batch.Len > 0 {
			out.Cols[i].RowNums = batch.Cols[0].RowNums
		}
	}
	return out, nil
}

func (m *Map) Headers() []ColumnHeader { return m.Outputs }

// Extend appends new columns to the input batch (spec §4.6).
type Extend struct {
	Input     Operator
	Exprs     []*expr.Expr
	NewHeads  []ColumnHeader
	Eval      *expr.Evaluator
}

func (e *Extend) Initialize(tx *txn.Query, ctx *Context) error { return e.Input.Initialize(tx, ctx) }

func (e *Extend) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	batch, err := e.Input.Next(tx, ctx)
	if err != nil || batch == nil {
		return batch, err
	}
	out := &Columns{Cols: append([]Column(nil), batch.Cols...), Len: batch.Len}
	for i, ex := range e.Exprs {
		vals, err := e.Eval.Evaluate(batch, ex)
		if err != nil {
			return nil, err
		}
		var rowNums []uint64
		if batch.Len > 0 {
			rowNums = batch.Cols[0].RowNums
		}
		out.Cols = append(out.Cols, Column{Name: e.NewHeads[i].Name, Kind: e.NewHeads[i].Kind, Values: vals, RowNums: rowNums})
	}
	return out, nil
}

func (e *Extend) Headers() []ColumnHeader { return append(e.Input.Headers(), e.NewHeads...) }

// Union concatenates inputs, preserving column schema (spec §4.6).
type Union struct {
	Inputs []Operator
	idx    int
}

func (u *Union) Initialize(tx *txn.Query, ctx *Context) error {
	u.idx = 0
	for _, in := range u.Inputs {
		if err := in.Initialize(tx, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (u *Union) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	for u.idx < len(u.Inputs) {
		batch, err := u.Inputs[u.idx].Next(tx, ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			u.idx++
			continue
		}
		return batch, nil
	}
	return nil, nil
}

func (u *Union) Headers() []ColumnHeader { return u.Inputs[0].Headers() }

// Take passes up to n rows then returns None; stateful across batches
// (spec §4.6).
type Take struct {
	Input   Operator
	N       int
	emitted int
}

func (t *Take) Initialize(tx *txn.Query, ctx *Context) error {
	t.emitted = 0
	return t.Input.Initialize(tx, ctx)
}

func (t *Take) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if t.emitted >= t.N {
		return nil, nil
	}
	batch, err := t.Input.Next(tx, ctx)
	if err != nil || batch == nil {
		return batch, err
	}
	remaining := t.N - t.emitted
	if batch.Len <= remaining {
		t.emitted += batch.Len
		return batch, nil
	}
	out := batch.Slice(0, remaining)
	t.emitted = t.N
	return out, nil
}

func (t *Take) Headers() []ColumnHeader { return t.Input.Headers() }

// Distinct hash-dedupes, with optional projection expressions, using a
// roaring bitmap of seen-row-number markers is not applicable here since
// dedup keys are value tuples, not row numbers; membership is tracked via a
// Go map keyed by the tuple's string encoding (spec §4.6).
type Distinct struct {
	Input Operator
	Exprs []*expr.Expr // nil => dedupe on the whole row
	Eval  *expr.Evaluator
	seen  map[string]struct{}
}

func (d *Distinct) Initialize(tx *txn.Query, ctx *Context) error {
	d.seen = make(map[string]struct{})
	return d.Input.Initialize(tx, ctx)
}

func (d *Distinct) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	for {
		batch, err := d.Input.Next(tx, ctx)
		if err != nil || batch == nil {
			return batch, err
		}
		var keyCols [][]value.Value
		if d.Exprs != nil {
			keyCols = make([][]value.Value, len(d.Exprs))
			for i, e := range d.Exprs {
				v, err := d.Eval.Evaluate(batch, e)
				if err != nil {
					return nil, err
				}
				keyCols[i] = v
			}
		} else {
			keyCols = make([][]value.Value, len(batch.Cols))
			for i, c := range batch.Cols {
				keyCols[i] = c.Values
			}
		}
		out := &Columns{Cols: make([]Column, len(batch.Cols))}
		for i, c := range batch.Cols {
			out.Cols[i] = Column{Name: c.Name, Kind: c.Kind}
		}
		for i := 0; i < batch.Len; i++ {
			k := tupleKey(keyCols, i)
			if _, dup := d.seen[k]; dup {
				continue
			}
			d.seen[k] = struct{}{}
			for ci := range batch.Cols {
				out.Cols[ci].Values = append(out.Cols[ci].Values, batch.Cols[ci].Values[i])
				out.Cols[ci].RowNums = append(out.Cols[ci].RowNums, batch.Cols[ci].RowNums[i])
			}
			out.Len++
		}
		if out.Len > 0 {
			return out, nil
		}
	}
}

func (d *Distinct) Headers() []ColumnHeader { return d.Input.Headers() }

func tupleKey(cols [][]value.Value, row int) string {
	var k string
	for _, c := range cols {
		k += c[row].String() + "\x00"
	}
	return k
}

// Sort buffers the entire input, sorts by keys, and streams in order (spec
// §4.6).
type SortKey struct {
	ColumnIndex int
	Descending  bool
}

type Sort struct {
	Input    Operator
	Keys     []SortKey
	buffered *Columns
	emitted  bool
}

func (s *Sort) Initialize(tx *txn.Query, ctx *Context) error {
	s.buffered = nil
	s.emitted = false
	return s.Input.Initialize(tx, ctx)
}

func (s *Sort) fill(tx *txn.Query, ctx *Context) error {
	headers := s.Input.Headers()
	acc := NewColumns(headers)
	for {
		batch, err := s.Input.Next(tx, ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}
		for i := 0; i < batch.Len; i++ {
			vals := make([]value.Value, len(batch.Cols))
			for ci := range batch.Cols {
				vals[ci] = batch.Cols[ci].Values[i]
			}
			acc.AppendRow(batch.Cols[0].RowNums[i], vals)
		}
	}
	indices := make([]int, acc.Len)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		for _, k := range s.Keys {
			cmp := value.Compare(acc.Cols[k.ColumnIndex].Values[ia], acc.Cols[k.ColumnIndex].Values[ib])
			if cmp == 0 {
				continue
			}
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	sorted := NewColumns(headers)
	for _, idx := range indices {
		vals := make([]value.Value, len(acc.Cols))
		for ci := range acc.Cols {
			vals[ci] = acc.Cols[ci].Values[idx]
		}
		sorted.AppendRow(acc.Cols[0].RowNums[idx], vals)
	}
	s.buffered = sorted
	return nil
}

func (s *Sort) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if s.emitted {
		return nil, nil
	}
	if s.buffered == nil {
		if err := s.fill(tx, ctx); err != nil {
			return nil, err
		}
	}
	s.emitted = true
	if s.buffered.Len == 0 {
		return nil, nil
	}
	return s.buffered, nil
}

func (s *Sort) Headers() []ColumnHeader { return s.Input.Headers() }

// ApplyTransform applies a builtin transform to one column (spec §4.6).
type ApplyTransform struct {
	Input    Operator
	Column   string
	Expr     *expr.Expr // a NodeFunctionCall expr referencing Column
	Eval     *expr.Evaluator
}

func (a *ApplyTransform) Initialize(tx *txn.Query, ctx *Context) error {
	return a.Input.Initialize(tx, ctx)
}

func (a *ApplyTransform) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	batch, err := a.Input.Next(tx, ctx)
	if err != nil || batch == nil {
		return batch, err
	}
	idx, ok := batch.ColumnByName(a.Column)
	if !ok {
		return batch, nil
	}
	vals, err := a.Eval.Evaluate(batch, a.Expr)
	if err != nil {
		return nil, err
	}
	batch.Cols[idx].Values = vals
	return batch, nil
}

func (a *ApplyTransform) Headers() []ColumnHeader { return a.Input.Headers() }

// seenRowNumbers is a compact membership set over row numbers; no operator
// in this package uses it. Grounded on AKJUS-bsc-erigon's go.mod dependency on
// github.com/RoaringBitmap/roaring for exactly this kind of row-id set.
type seenRowNumbers struct {
	bitmap *roaring.Bitmap
}

func newSeenRowNumbers() *seenRowNumbers { return &seenRowNumbers{bitmap: roaring.New()} }

func (s *seenRowNumbers) markAndCheck(rowNum uint64) (alreadySeen bool) {
	if s.bitmap.Contains(uint32(rowNum)) {
		return true
	}
	s.bitmap.Add(uint32(rowNum))
	return false
}
