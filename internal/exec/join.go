package exec

import (
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// JoinKind selects join semantics (spec §4.6 "left/right/inner/outer").
type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinOuter
)

// Join is a hash join: the build side (right) is buffered into a hash
// table keyed by the join expression tuple; the probe side (left) streams
// and looks up matches (spec §4.6).
type Join struct {
	Left, Right Operator
	Kind        JoinKind
	LeftKeys    []*expr.Expr
	RightKeys   []*expr.Expr
	Eval        *expr.Evaluator

	buckets     map[string][]rowTuple
	rightUsed   map[string]map[int]bool
	leftHeaders []ColumnHeader
	rightHeaders []ColumnHeader
	built       bool
}

type rowTuple struct {
	vals []value.Value
}

func (j *Join) Initialize(tx *txn.Query, ctx *Context) error {
	j.buckets = make(map[string][]rowTuple)
	j.rightUsed = make(map[string]map[int]bool)
	j.built = false
	if err := j.Left.Initialize(tx, ctx); err != nil {
		return err
	}
	return j.Right.Initialize(tx, ctx)
}

func (j *Join) build(tx *txn.Query, ctx *Context) error {
	j.leftHeaders = j.Left.Headers()
	j.rightHeaders = j.Right.Headers()
	for {
		batch, err := j.Right.Next(tx, ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}
		keyCols := make([][]value.Value, len(j.RightKeys))
		for i, e := range j.RightKeys {
			v, err := j.Eval.Evaluate(batch, e)
			if err != nil {
				return err
			}
			keyCols[i] = v
		}
		for r := 0; r < batch.Len; r++ {
			k := tupleKey(keyCols, r)
			vals := make([]value.Value, len(batch.Cols))
			for ci := range batch.Cols {
				vals[ci] = batch.Cols[ci].Values[r]
			}
			j.buckets[k] = append(j.buckets[k], rowTuple{vals: vals})
		}
	}
	j.built = true
	return nil
}

func (j *Join) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if !j.built {
		if err := j.build(tx, ctx); err != nil {
			return nil, err
		}
	}
	for {
		batch, err := j.Left.Next(tx, ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return nil, nil
		}
		keyCols := make([][]value.Value, len(j.LeftKeys))
		for i, e := range j.LeftKeys {
			v, err := j.Eval.Evaluate(batch, e)
			if err != nil {
				return nil, err
			}
			keyCols[i] = v
		}
		out := NewColumns(j.Headers())
		for r := 0; r < batch.Len; r++ {
			leftVals := make([]value.Value, len(batch.Cols))
			for ci := range batch.Cols {
				leftVals[ci] = batch.Cols[ci].Values[r]
			}
			k := tupleKey(keyCols, r)
			matches := j.buckets[k]
			if len(matches) == 0 {
				if j.Kind == JoinLeft || j.Kind == JoinOuter {
					rightNulls := make([]value.Value, len(j.rightHeaders))
					for i, h := range j.rightHeaders {
						rightNulls[i] = value.Undefined(h.Kind)
					}
					out.AppendRow(batch.Cols[0].RowNums[r], append(append([]value.Value(nil), leftVals...), rightNulls...))
				}
				continue
			}
			for _, m := range matches {
				out.AppendRow(batch.Cols[0].RowNums[r], append(append([]value.Value(nil), leftVals...), m.vals...))
			}
		}
		if out.Len > 0 {
			return out, nil
		}
	}
}

func (j *Join) Headers() []ColumnHeader {
	return append(append([]ColumnHeader(nil), j.Left.Headers()...), j.Right.Headers()...)
}
