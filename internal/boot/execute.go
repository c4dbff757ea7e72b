package boot

import (
	"github.com/pkg/errors"

	"github.com/reifydb/reifydb-sub032/internal/exec"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/rql/lexer"
	"github.com/reifydb/reifydb-sub032/internal/rql/parser"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// Result holds one statement's output: Rows is nil for DDL/DML statements,
// which produce no rows (spec §6.3's "a pipe expression without a CREATE
// VIEW wrapper is an ad-hoc query, everything else is executed for effect").
type Result struct {
	Rows *exec.Columns
}

// Execute parses text as one or more semicolon-separated RQL statements and
// runs each in turn, stopping at the first error. Grounded on spec §6.3;
// statement dispatch mirrors execDDL/execDML/the ad-hoc query path, each
// opening its own transaction so one statement's failure does not roll back
// statements already committed ahead of it.
func (e *Engine) Execute(text string) ([]Result, error) {
	p := parser.New(lexer.New(text))
	stmts, errs := p.ParseProgram()
	if len(errs) > 0 {
		return nil, errors.Errorf("boot: RQL parse error: %s", errs[0])
	}

	results := make([]Result, 0, len(stmts))
	for _, stmt := range stmts {
		r, err := e.executeStatement(stmt)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) executeStatement(stmt ast.Statement) (Result, error) {
	switch s := stmt.(type) {
	case *ast.CreateNamespace, *ast.CreateTable, *ast.CreateView, *ast.CreateFlow,
		*ast.CreateDictionary, *ast.AlterTable, *ast.AlterSequence, *ast.Drop:
		return Result{}, e.execDDL(stmt)
	case *ast.Insert, *ast.Update, *ast.Delete:
		return Result{}, e.execDML(stmt)
	case *ast.Pipeline:
		rows, err := e.executeQuery(s)
		return Result{Rows: rows}, err
	default:
		return Result{}, errors.Errorf("boot: %T is not an executable statement", s)
	}
}

// executeQuery runs a bare pipeline statement as a read-only, snapshot-
// isolated ad-hoc query and collects every batch the operator chain
// produces into one Columns result.
func (e *Engine) executeQuery(pipeline *ast.Pipeline) (*exec.Columns, error) {
	tx := txn.BeginQuery(e.Oracle, e.Backend)
	defer tx.Commit()

	op, err := e.compilePipeline(tx, pipeline)
	if err != nil {
		return nil, err
	}
	ctx := exec.DefaultContext()
	if err := op.Initialize(tx, ctx); err != nil {
		return nil, err
	}

	out := exec.NewColumns(op.Headers())
	for {
		batch, err := op.Next(tx, ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		appendBatch(out, batch)
	}
	return out, nil
}

// appendBatch copies every row of src onto dst; both share the same column
// order since dst was built from the same operator chain's Headers().
func appendBatch(dst, src *exec.Columns) {
	for ci := range dst.Cols {
		dst.Cols[ci].Values = append(dst.Cols[ci].Values, src.Cols[ci].Values...)
		dst.Cols[ci].RowNums = append(dst.Cols[ci].RowNums, src.Cols[ci].RowNums...)
	}
	dst.Len += src.Len
}
