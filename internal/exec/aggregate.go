package exec

import (
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// AggFunc enumerates the supported aggregate functions.
type AggFunc uint8

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
)

// AggSpec names one output column produced by an aggregate function over an
// input expression.
type AggSpec struct {
	Name string
	Func AggFunc
	Arg  *expr.Expr // nil for AggCount(*)
	Kind value.Kind // output kind
}

// accumulator tracks one group's running state (spec §4.8.3 "Aggregate
// persists per-group running accumulators" — this is the one-shot §4.6
// batch-executor variant; the flow engine's incremental version lives in
// internal/flow).
type accumulator struct {
	count int64
	sum   float64
	min   value.Value
	max   value.Value
	have  bool
}

func (a *accumulator) observe(fn AggFunc, v value.Value) {
	a.count++
	if !v.Defined {
		return
	}
	switch fn {
	case AggSum:
		a.sum += numericOf(v)
	case AggMin:
		if !a.have || value.Compare(v, a.min) < 0 {
			a.min = v
			a.have = true
		}
	case AggMax:
		if !a.have || value.Compare(v, a.max) > 0 {
			a.max = v
			a.have = true
		}
	}
}

func numericOf(v value.Value) float64 {
	if isFloatLocal(v.Kind) {
		return v.Float
	}
	return float64(v.Int)
}

func isFloatLocal(k value.Kind) bool { return k == value.KindFloat4 || k == value.KindFloat8 }

func (a *accumulator) result(fn AggFunc, kind value.Kind) value.Value {
	switch fn {
	case AggCount:
		return value.Value{Kind: kind, Int: a.count, Defined: true}
	case AggSum:
		if isFloatLocal(kind) {
			return value.Value{Kind: kind, Float: a.sum, Defined: true}
		}
		return value.Value{Kind: kind, Int: int64(a.sum), Defined: true}
	case AggMin, AggMax:
		if !a.have {
			return value.Undefined(kind)
		}
		if fn == AggMax {
			return a.max
		}
		return a.min
	default:
		return value.Undefined(kind)
	}
}

// Aggregate groups rows by key expressions and streams results once input
// exhausts (spec §4.6).
type Aggregate struct {
	Input   Operator
	ByExprs []*expr.Expr
	ByNames []string
	Aggs    []AggSpec
	Eval    *expr.Evaluator

	groups   map[string]*groupState
	order    []string
	streamed bool
}

type groupState struct {
	keyVals []value.Value
	accs    []*accumulator
}

func (a *Aggregate) Initialize(tx *txn.Query, ctx *Context) error {
	a.groups = make(map[string]*groupState)
	a.order = nil
	a.streamed = false
	return a.Input.Initialize(tx, ctx)
}

func (a *Aggregate) consume(tx *txn.Query, ctx *Context) error {
	for {
		batch, err := a.Input.Next(tx, ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
		keyCols := make([][]value.Value, len(a.ByExprs))
		for i, e := range a.ByExprs {
			v, err := a.Eval.Evaluate(batch, e)
			if err != nil {
				return err
			}
			keyCols[i] = v
		}
		argCols := make([][]value.Value, len(a.Aggs))
		for i, spec := range a.Aggs {
			if spec.Arg == nil {
				continue
			}
			v, err := a.Eval.Evaluate(batch, spec.Arg)
			if err != nil {
				return err
			}
			argCols[i] = v
		}
		for r := 0; r < batch.Len; r++ {
			key := tupleKey(keyCols, r)
			gs, ok := a.groups[key]
			if !ok {
				vals := make([]value.Value, len(keyCols))
				for i := range keyCols {
					vals[i] = keyCols[i][r]
				}
				accs := make([]*accumulator, len(a.Aggs))
				for i := range accs {
					accs[i] = &accumulator{}
				}
				gs = &groupState{keyVals: vals, accs: accs}
				a.groups[key] = gs
				a.order = append(a.order, key)
			}
			for i, spec := range a.Aggs {
				var v value.Value
				if spec.Arg != nil {
					v = argCols[i][r]
				} else {
					v = value.Value{Defined: true}
				}
				gs.accs[i].observe(spec.Func, v)
			}
		}
	}
}

func (a *Aggregate) Next(tx *txn.Query, ctx *Context) (*Columns, error) {
	if a.streamed {
		return nil, nil
	}
	if err := a.consume(tx, ctx); err != nil {
		return nil, err
	}
	a.streamed = true
	headers := a.Headers()
	out := NewColumns(headers)
	for rowNum, key := range a.order {
		gs := a.groups[key]
		vals := make([]value.Value, 0, len(a.ByNames)+len(a.Aggs))
		vals = append(vals, gs.keyVals...)
		for i, spec := range a.Aggs {
			vals = append(vals, gs.accs[i].result(spec.Func, spec.Kind))
		}
		out.AppendRow(uint64(rowNum), vals)
	}
	if out.Len == 0 {
		return nil, nil
	}
	return out, nil
}

func (a *Aggregate) Headers() []ColumnHeader {
	headers := make([]ColumnHeader, 0, len(a.ByNames)+len(a.Aggs))
	for i, name := range a.ByNames {
		headers = append(headers, ColumnHeader{Name: name, Kind: a.byKind(i)})
	}
	for _, spec := range a.Aggs {
		headers = append(headers, ColumnHeader{Name: spec.Name, Kind: spec.Kind})
	}
	return headers
}

func (a *Aggregate) byKind(i int) value.Kind {
	// The group-by key's output kind is reported as Any; the source
	// column's kind is not resolved.
	return value.KindAny
}
