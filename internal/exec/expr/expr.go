// Package expr implements vectorized expression evaluation (spec §4.6): one
// evaluate(ctx, expr) -> Column entry point dispatching on expression node
// kind, operating on whole columns rather than row-at-a-time. Numeric
// promotion follows value.Kind's widening lattice (internal/core/value/cast.go);
// overflow is governed by the column's saturation policy (spec §4.7).
package expr

import (
	"github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// NodeKind discriminates expression tree node shapes.
type NodeKind uint8

const (
	NodeColumnRef NodeKind = iota
	NodeLiteral
	NodeArithmetic
	NodeComparison
	NodeLogical
	NodeFunctionCall
	NodeVariableRef
	NodeCast
	NodeConditional
)

// ArithOp enumerates arithmetic operators.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
)

// CmpOp enumerates comparison operators.
type CmpOp uint8

const (
	Eq CmpOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// LogicOp enumerates logical connectives.
type LogicOp uint8

const (
	And LogicOp = iota
	Or
	Not
)

// Expr is one node in an expression tree, compiled once and evaluated
// against every batch.
type Expr struct {
	Kind NodeKind

	// NodeColumnRef
	ColumnName string

	// NodeLiteral
	Literal value.Value

	// NodeArithmetic / NodeComparison / NodeLogical
	Op       uint8
	Children []*Expr

	// NodeFunctionCall
	FuncName string
	Args     []*Expr

	// NodeVariableRef
	VarName string

	// NodeCast
	TargetKind value.Kind
	Saturation value.Saturation

	// NodeConditional: if Children[0] then Children[1] else Children[2]
}

// Batch is the minimal column-source contract expr needs, satisfied by
// *exec.Columns without expr importing exec (which would cycle back here).
type Batch interface {
	ColumnByName(name string) (int, bool)
	ColumnValues(i int) []value.Value
	Length() int
}

// Evaluator holds the bound variable environment (session variables
// referenced by NodeVariableRef) plus the fragment used for error
// reporting.
type Evaluator struct {
	Vars     map[string]value.Value
	Fragment errors.Fragment
}

// Evaluate dispatches on e.Kind, producing one value.Value per row.
func (ev *Evaluator) Evaluate(b Batch, e *Expr) ([]value.Value, error) {
	switch e.Kind {
	case NodeLiteral:
		out := make([]value.Value, b.Length())
		for i := range out {
			out[i] = e.Literal
		}
		return out, nil
	case NodeColumnRef:
		idx, ok := b.ColumnByName(e.ColumnName)
		if !ok {
			return nil, errors.Internal("column not found: " + e.ColumnName)
		}
		return b.ColumnValues(idx), nil
	case NodeVariableRef:
		v, ok := ev.Vars[e.VarName]
		if !ok {
			v = value.Undefined(value.KindAny)
		}
		out := make([]value.Value, b.Length())
		for i := range out {
			out[i] = v
		}
		return out, nil
	case NodeArithmetic:
		return ev.evalArithmetic(b, e)
	case NodeComparison:
		return ev.evalComparison(b, e)
	case NodeLogical:
		return ev.evalLogical(b, e)
	case NodeCast:
		return ev.evalCast(b, e)
	case NodeConditional:
		return ev.evalConditional(b, e)
	case NodeFunctionCall:
		return ev.evalFunction(b, e)
	default:
		return nil, errors.Internal("unknown expression node kind")
	}
}

func (ev *Evaluator) evalChildren(b Batch, e *Expr) ([][]value.Value, error) {
	cols := make([][]value.Value, len(e.Children))
	for i, c := range e.Children {
		v, err := ev.Evaluate(b, c)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}
	return cols, nil
}

func (ev *Evaluator) evalArithmetic(b Batch, e *Expr) ([]value.Value, error) {
	cols, err := ev.evalChildren(b, e)
	if err != nil {
		return nil, err
	}
	left, right := cols[0], cols[1]
	out := make([]value.Value, len(left))
	for i := range left {
		out[i] = applyArith(ArithOp(e.Op), left[i], right[i])
	}
	return out, nil
}

func applyArith(op ArithOp, a, bv value.Value) value.Value {
	if !a.Defined || !bv.Defined {
		return value.Undefined(a.Kind)
	}
	switch {
	case isFloat(a.Kind):
		return floatArith(op, a, bv)
	default:
		return intArith(op, a, bv)
	}
}

func isFloat(k value.Kind) bool { return k == value.KindFloat4 || k == value.KindFloat8 }

func floatArith(op ArithOp, a, b value.Value) value.Value {
	var r float64
	switch op {
	case Add:
		r = a.Float + b.Float
	case Sub:
		r = a.Float - b.Float
	case Mul:
		r = a.Float * b.Float
	case Div:
		if b.Float == 0 {
			return value.Undefined(a.Kind)
		}
		r = a.Float / b.Float
	}
	return value.Value{Kind: a.Kind, Float: r, Defined: true}
}

func intArith(op ArithOp, a, b value.Value) value.Value {
	var r int64
	switch op {
	case Add:
		r = a.Int + b.Int
	case Sub:
		r = a.Int - b.Int
	case Mul:
		r = a.Int * b.Int
	case Div:
		if b.Int == 0 {
			return value.Undefined(a.Kind)
		}
		r = a.Int / b.Int
	case Mod:
		if b.Int == 0 {
			return value.Undefined(a.Kind)
		}
		r = a.Int % b.Int
	}
	return value.Value{Kind: a.Kind, Int: r, Defined: true}
}

func (ev *Evaluator) evalComparison(b Batch, e *Expr) ([]value.Value, error) {
	cols, err := ev.evalChildren(b, e)
	if err != nil {
		return nil, err
	}
	left, right := cols[0], cols[1]
	out := make([]value.Value, len(left))
	for i := range left {
		if !left[i].Defined || !right[i].Defined {
			out[i] = value.Undefined(value.KindBoolean)
			continue
		}
		cmp := value.Compare(left[i], right[i])
		out[i] = value.Value{Kind: value.KindBoolean, Bool: applyCmp(CmpOp(e.Op), cmp), Defined: true}
	}
	return out, nil
}

func applyCmp(op CmpOp, cmp int) bool {
	switch op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	default:
		return false
	}
}

func (ev *Evaluator) evalLogical(b Batch, e *Expr) ([]value.Value, error) {
	cols, err := ev.evalChildren(b, e)
	if err != nil {
		return nil, err
	}
	if LogicOp(e.Op) == Not {
		left := cols[0]
		out := make([]value.Value, len(left))
		for i, v := range left {
			if !v.Defined {
				out[i] = value.Undefined(value.KindBoolean)
				continue
			}
			out[i] = value.Value{Kind: value.KindBoolean, Bool: !v.Bool, Defined: true}
		}
		return out, nil
	}
	left, right := cols[0], cols[1]
	out := make([]value.Value, len(left))
	for i := range left {
		if !left[i].Defined || !right[i].Defined {
			out[i] = value.Undefined(value.KindBoolean)
			continue
		}
		var r bool
		if LogicOp(e.Op) == And {
			r = left[i].Bool && right[i].Bool
		} else {
			r = left[i].Bool || right[i].Bool
		}
		out[i] = value.Value{Kind: value.KindBoolean, Bool: r, Defined: true}
	}
	return out, nil
}

func (ev *Evaluator) evalCast(b Batch, e *Expr) ([]value.Value, error) {
	in, err := ev.Evaluate(b, e.Children[0])
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(in))
	for i, v := range in {
		cv, err := value.Cast(v, e.TargetKind, e.Saturation, ev.Fragment)
		if err != nil {
			if e.Saturation == value.SaturationUndefined {
				out[i] = value.Undefined(e.TargetKind)
				continue
			}
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func (ev *Evaluator) evalConditional(b Batch, e *Expr) ([]value.Value, error) {
	cond, err := ev.Evaluate(b, e.Children[0])
	if err != nil {
		return nil, err
	}
	whenTrue, err := ev.Evaluate(b, e.Children[1])
	if err != nil {
		return nil, err
	}
	whenFalse, err := ev.Evaluate(b, e.Children[2])
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(cond))
	for i := range cond {
		if cond[i].Defined && cond[i].Bool {
			out[i] = whenTrue[i]
		} else {
			out[i] = whenFalse[i]
		}
	}
	return out, nil
}

// functions is the builtin scalar function table (ApplyTransform, spec
// §4.6 "a builtin transform e.g. a scalar function mapped over a column").
var functions = map[string]func([][]value.Value) []value.Value{
	"abs": func(args [][]value.Value) []value.Value {
		in := args[0]
		out := make([]value.Value, len(in))
		for i, v := range in {
			if !v.Defined {
				out[i] = v
				continue
			}
			out[i] = v
			if isFloat(v.Kind) {
				if v.Float < 0 {
					out[i].Float = -v.Float
				}
			} else if v.Int < 0 {
				out[i].Int = -v.Int
			}
		}
		return out
	},
	"lower": func(args [][]value.Value) []value.Value {
		in := args[0]
		out := make([]value.Value, len(in))
		for i, v := range in {
			out[i] = v
			if v.Defined {
				out[i].Str = toLower(v.Str)
			}
		}
		return out
	},
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (ev *Evaluator) evalFunction(b Batch, e *Expr) ([]value.Value, error) {
	fn, ok := functions[e.FuncName]
	if !ok {
		return nil, errors.Internal("unknown function: " + e.FuncName)
	}
	args := make([][]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.Evaluate(b, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args), nil
}
