package boot

import (
	"github.com/pkg/errors"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/flow"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// compilePipeline turns a bare ast.Pipeline (no CREATE VIEW/FLOW wrapping
// it) into a runnable exec.Operator chain over the query's snapshot, for
// ad-hoc "FROM ... | ..." statements. Unlike compileFlow, the operator
// chain has to know every stage's output column kinds up front, since
// exec.Columns carries a Kind per header; MapStage/AggregateStage infer
// theirs from the expression tree rather than from a declared view schema.
func (e *Engine) compilePipeline(tx *txn.Query, pipeline *ast.Pipeline) (exec.Operator, error) {
	ev := &expr.Evaluator{}
	var op exec.Operator
	var headers []exec.ColumnHeader

	for i, stage := range pipeline.Stages {
		switch s := stage.(type) {
		case *ast.FromStage:
			if op != nil {
				return nil, errors.New("boot: FROM may only appear as the first pipeline stage")
			}
			var err error
			op, headers, err = e.scanSource(tx, s.Namespace, s.Name)
			if err != nil {
				return nil, err
			}

		case *ast.FilterStage:
			if op == nil {
				return nil, errors.New("boot: FILTER requires a preceding source")
			}
			op = exec.NewFilter(op, s.Predicate, ev)

		case *ast.MapStage:
			if op == nil {
				return nil, errors.New("boot: MAP/EXTEND requires a preceding source")
			}
			outHeads := make([]exec.ColumnHeader, len(s.Names))
			for i, n := range s.Names {
				outHeads[i] = exec.ColumnHeader{Name: n, Kind: inferKind(headers, s.Exprs[i])}
			}
			if s.Extend {
				op = &exec.Extend{Input: op, Exprs: s.Exprs, NewHeads: outHeads, Eval: ev}
				headers = append(append([]exec.ColumnHeader(nil), headers...), outHeads...)
			} else {
				op = &exec.Map{Input: op, Exprs: s.Exprs, Outputs: outHeads, Eval: ev}
				headers = outHeads
			}

		case *ast.TakeStage:
			if op == nil {
				return nil, errors.New("boot: TAKE requires a preceding source")
			}
			op = &exec.Take{Input: op, N: s.N}

		case *ast.SortStage:
			if op == nil {
				return nil, errors.New("boot: SORT requires a preceding source")
			}
			keys := make([]exec.SortKey, len(s.Columns))
			for i, c := range s.Columns {
				idx, ok := headerIndex(headers, c.Name)
				if !ok {
					return nil, errors.Errorf("boot: SORT column %q is not in scope", c.Name)
				}
				keys[i] = exec.SortKey{ColumnIndex: idx, Descending: c.Desc}
			}
			op = &exec.Sort{Input: op, Keys: keys}

		case *ast.JoinStage:
			if op == nil {
				return nil, errors.New("boot: JOIN requires a preceding source")
			}
			rightOp, rightHeaders, err := e.scanSource(tx, s.Namespace, s.Name)
			if err != nil {
				return nil, err
			}
			jk, err := joinKindByte(s.Kind)
			if err != nil {
				return nil, err
			}
			op = &exec.Join{
				Left: op, Right: rightOp, Kind: exec.JoinKind(jk),
				LeftKeys: s.LeftKeys, RightKeys: s.RightKeys, Eval: ev,
			}
			headers = append(append([]exec.ColumnHeader(nil), headers...), rightHeaders...)

		case *ast.AggregateStage:
			if op == nil {
				return nil, errors.New("boot: AGGREGATE requires a preceding source")
			}
			specs := make([]exec.AggSpec, len(s.Aggs))
			for i, a := range s.Aggs {
				fn, err := aggFuncByte(a.Func)
				if err != nil {
					return nil, err
				}
				specs[i] = exec.AggSpec{Name: a.Name, Func: exec.AggFunc(fn), Arg: a.Arg, Kind: aggResultKind(exec.AggFunc(fn), headers, a.Arg)}
			}
			op = &exec.Aggregate{Input: op, ByExprs: s.By, ByNames: s.ByNames, Aggs: specs, Eval: ev}
			newHeads := make([]exec.ColumnHeader, 0, len(s.ByNames)+len(specs))
			for i, n := range s.ByNames {
				newHeads = append(newHeads, exec.ColumnHeader{Name: n, Kind: inferKind(headers, s.By[i])})
			}
			for _, sp := range specs {
				newHeads = append(newHeads, exec.ColumnHeader{Name: sp.Name, Kind: sp.Kind})
			}
			headers = newHeads

		case *ast.ApplyStage:
			if op == nil {
				return nil, errors.New("boot: APPLY requires a preceding source")
			}
			op = &exec.ApplyTransform{Input: op, Column: s.Column, Expr: s.Expr, Eval: ev}

		default:
			return nil, errors.Errorf("boot: pipeline stage %d (%T) is not supported in an ad-hoc query", i, stage)
		}
	}
	if op == nil {
		return nil, errors.New("boot: empty pipeline")
	}
	return op, nil
}

// scanSource builds the scan operator and header list for a FROM/JOIN
// source, resolving it as a table or a view.
func (e *Engine) scanSource(tx *txn.Query, ns, name string) (exec.Operator, []exec.ColumnHeader, error) {
	cols, pkNamespace, pkName, err := e.resolveFromSource(tx.Version(), ns, name)
	if err != nil {
		return nil, nil, err
	}
	headers := make([]exec.ColumnHeader, len(cols))
	for i, c := range cols {
		headers[i] = exec.ColumnHeader{Name: c.Name, Kind: c.Kind}
	}
	schema := flow.RowSchemaOf(cols)
	src := exec.NewTableRowSource(tx, pkNamespace, pkName, schema)
	return exec.NewScanTable(src, headers), headers, nil
}

func headerIndex(headers []exec.ColumnHeader, name string) (int, bool) {
	for i, h := range headers {
		if h.Name == name {
			return i, true
		}
	}
	return -1, false
}

// inferKind derives an expression's output value.Kind from the input
// headers in scope: a column reference keeps its declared kind, a literal
// keeps its literal kind, comparisons/logical ops are always Boolean, and
// everything else (arithmetic, casts, function calls) falls back to its
// left-most operand's kind, matching the common "result shares its
// operands' type" rule spec §4.4 describes for arithmetic.
func inferKind(headers []exec.ColumnHeader, e *expr.Expr) value.Kind {
	if e == nil {
		return value.KindAny
	}
	switch e.Kind {
	case expr.NodeLiteral:
		return e.Literal.Kind
	case expr.NodeColumnRef:
		if idx, ok := headerIndex(headers, e.ColumnName); ok {
			return headers[idx].Kind
		}
		return value.KindAny
	case expr.NodeComparison, expr.NodeLogical:
		return value.KindBoolean
	case expr.NodeCast:
		return e.TargetKind
	default:
		if len(e.Children) > 0 {
			return inferKind(headers, e.Children[0])
		}
		return value.KindAny
	}
}

// aggResultKind picks an AggSpec's output kind: Count always produces an
// Int8 tally; Sum/Min/Max inherit the aggregated expression's kind.
func aggResultKind(fn exec.AggFunc, headers []exec.ColumnHeader, arg *expr.Expr) value.Kind {
	if fn == exec.AggCount {
		return value.KindInt8
	}
	if arg == nil {
		return value.KindInt8
	}
	return inferKind(headers, arg)
}
