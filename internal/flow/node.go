package flow

import (
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
)

// Node is one compiled operator in the DAG: it consumes an incoming diff
// and produces the diff it emits downstream (spec §4.8.1).
type Node interface {
	Apply(input int, d Diff) (Diff, error)
}

// rowBatch adapts a single *row.Row to expr.Batch so the vectorized
// evaluator can be reused for one-row incremental evaluation.
type rowBatch struct{ r *row.Row }

func (b rowBatch) ColumnByName(name string) (int, bool) {
	for i, f := range b.r.Schema().Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (b rowBatch) ColumnValues(i int) []value.Value { return []value.Value{b.r.GetValue(i)} }
func (b rowBatch) Length() int                      { return 1 }

func evalOne(ev *expr.Evaluator, r *row.Row, e *expr.Expr) (value.Value, error) {
	vals, err := ev.Evaluate(rowBatch{r}, e)
	if err != nil {
		return value.Value{}, err
	}
	if len(vals) == 0 {
		return value.Value{}, nil
	}
	return vals[0], nil
}

// --- Filter -----------------------------------------------------------

type filterNode struct {
	pred *expr.Expr
	eval *expr.Evaluator
}

func (n *filterNode) passes(r *row.Row) (bool, error) {
	v, err := evalOne(n.eval, r, n.pred)
	if err != nil {
		return false, err
	}
	return v.Defined && v.Bool, nil
}

func (n *filterNode) Apply(input int, d Diff) (Diff, error) {
	out := make(Diff, 0, len(d))
	for _, c := range d {
		switch c.Kind {
		case Insert:
			ok, err := n.passes(c.After)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, c)
			}
		case Remove:
			ok, err := n.passes(c.Before)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, c)
			}
		case Update:
			beforeOK, err := n.passes(c.Before)
			if err != nil {
				return nil, err
			}
			afterOK, err := n.passes(c.After)
			if err != nil {
				return nil, err
			}
			switch {
			case beforeOK && afterOK:
				out = append(out, c)
			case beforeOK && !afterOK:
				out = append(out, Change{Kind: Remove, Key: c.Key, Before: c.Before})
			case !beforeOK && afterOK:
				out = append(out, Change{Kind: Insert, Key: c.Key, After: c.After})
			}
		}
	}
	return out, nil
}

// --- Map / Extend -------------------------------------------------------

// projectNode implements NodeMap (replace) and NodeExtend (append) by a
// boolean flag, since both evaluate the same way and only differ in
// whether the source fields survive into the output row.
type projectNode struct {
	names  []string
	exprs  []*expr.Expr
	eval   *expr.Evaluator
	extend bool
	schema *row.Schema // not read; project builds the output schema for every row
}

func (n *projectNode) project(r *row.Row) (*row.Row, error) {
	vals := make([]value.Value, len(n.exprs))
	for i, e := range n.exprs {
		v, err := evalOne(n.eval, r, e)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	fields := make([]row.Field, 0, len(n.names)+len(r.Schema().Fields))
	if n.extend {
		fields = append(fields, r.Schema().Fields...)
	}
	for i, name := range n.names {
		fields = append(fields, row.Field{Name: name, Kind: vals[i].Kind})
	}
	schema := row.NewSchema(fields)
	out := schema.Allocate()
	idx := 0
	if n.extend {
		for i := range r.Schema().Fields {
			out.SetValue(idx, r.GetValue(i))
			idx++
		}
	}
	for _, v := range vals {
		out.SetValue(idx, v)
		idx++
	}
	return out, nil
}

func (n *projectNode) Apply(input int, d Diff) (Diff, error) {
	out := make(Diff, 0, len(d))
	for _, c := range d {
		nc := Change{Kind: c.Kind, Key: c.Key}
		if c.Before != nil {
			b, err := n.project(c.Before)
			if err != nil {
				return nil, err
			}
			nc.Before = b
		}
		if c.After != nil {
			a, err := n.project(c.After)
			if err != nil {
				return nil, err
			}
			nc.After = a
		}
		out = append(out, nc)
	}
	return out, nil
}

// --- Union ---------------------------------------------------------------

// unionNode passes every incoming change straight through; fan-in from
// multiple source edges is handled by the runtime feeding each upstream
// batch to the same node in turn (spec §4.8 "Union: concatenates inputs").
type unionNode struct{}

func (unionNode) Apply(input int, d Diff) (Diff, error) { return d, nil }

// --- Apply (single-column transform) --------------------------------------

type applyNode struct {
	column string
	expr   *expr.Expr
	eval   *expr.Evaluator
}

func (n *applyNode) transform(r *row.Row) (*row.Row, error) {
	idx, ok := rowBatch{r}.ColumnByName(n.column)
	if !ok {
		return r, nil
	}
	v, err := evalOne(n.eval, r, n.expr)
	if err != nil {
		return nil, err
	}
	out := r.Clone()
	out.SetValue(idx, v)
	return out, nil
}

func (n *applyNode) Apply(input int, d Diff) (Diff, error) {
	out := make(Diff, 0, len(d))
	for _, c := range d {
		nc := Change{Kind: c.Kind, Key: c.Key}
		if c.Before != nil {
			b, err := n.transform(c.Before)
			if err != nil {
				return nil, err
			}
			nc.Before = b
		}
		if c.After != nil {
			a, err := n.transform(c.After)
			if err != nil {
				return nil, err
			}
			nc.After = a
		}
		out = append(out, nc)
	}
	return out, nil
}
