package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/rql/lexer"
)

func parseOne(t *testing.T, src string) ast.Statement {
	t.Helper()
	p := New(lexer.New(src))
	stmts, errs := p.ParseProgram()
	require.Empty(t, errs, "unexpected parse errors: %v", errs)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParseCreateNamespace(t *testing.T) {
	stmt := parseOne(t, "CREATE NAMESPACE IF NOT EXISTS accounting;")
	cn, ok := stmt.(*ast.CreateNamespace)
	require.True(t, ok)
	assert.True(t, cn.IfNotExists)
	assert.Equal(t, "accounting", cn.Name)
}

func TestParseCreateTable(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE accounting.ledger { id: int8 key, amount: float8 };")
	ct, ok := stmt.(*ast.CreateTable)
	require.True(t, ok)
	assert.Equal(t, "accounting", ct.Namespace)
	assert.Equal(t, "ledger", ct.Name)
	require.Len(t, ct.Columns, 2)
	assert.Equal(t, "id", ct.Columns[0].Name)
	assert.Equal(t, "int8", ct.Columns[0].Type)
	assert.Equal(t, []string{"key"}, ct.Columns[0].Policies)
	assert.Equal(t, "amount", ct.Columns[1].Name)
}

func TestParseCreateDeferredView(t *testing.T) {
	stmt := parseOne(t, `CREATE DEFERRED VIEW accounting.totals { amount: float8 } AS
		FROM accounting.ledger | TAKE 10;`)
	cv, ok := stmt.(*ast.CreateView)
	require.True(t, ok)
	assert.True(t, cv.Deferred)
	assert.Equal(t, "accounting", cv.Namespace)
	assert.Equal(t, "totals", cv.Name)
	require.NotNil(t, cv.Pipeline)
	require.Len(t, cv.Pipeline.Stages, 2)
	_, isFrom := cv.Pipeline.Stages[0].(*ast.FromStage)
	assert.True(t, isFrom)
}

func TestParseCreateTransactionalView(t *testing.T) {
	stmt := parseOne(t, `CREATE TRANSACTIONAL VIEW accounting.live {} AS FROM accounting.ledger;`)
	cv, ok := stmt.(*ast.CreateView)
	require.True(t, ok)
	assert.False(t, cv.Deferred)
}

func TestParseInsert(t *testing.T) {
	stmt := parseOne(t, `INSERT accounting.ledger FROM [{id: 1, amount: 2.5}, {id: 2, amount: -1.0}];`)
	ins, ok := stmt.(*ast.Insert)
	require.True(t, ok)
	assert.Equal(t, "accounting", ins.Namespace)
	assert.Equal(t, "ledger", ins.Table)
	require.Len(t, ins.Rows, 2)
	assert.Equal(t, []string{"id", "amount"}, ins.Rows[0].Columns)
	require.Len(t, ins.Rows[0].Values, 2)
	assert.Equal(t, int64(1), ins.Rows[0].Values[0].Literal.Int)
}

func TestParseUpdateWithWhere(t *testing.T) {
	stmt := parseOne(t, `UPDATE accounting.ledger SET amount = amount + 1 WHERE id == 1;`)
	upd, ok := stmt.(*ast.Update)
	require.True(t, ok)
	require.Len(t, upd.Assignments, 1)
	assert.Equal(t, "amount", upd.Assignments[0].Column)
	require.NotNil(t, upd.Where)
	assert.Equal(t, expr.NodeComparison, upd.Where.Kind)
}

func TestParseDeleteWithoutWhere(t *testing.T) {
	stmt := parseOne(t, `DELETE accounting.ledger;`)
	del, ok := stmt.(*ast.Delete)
	require.True(t, ok)
	assert.Nil(t, del.Where)
}

func TestParseAlterTableAddColumn(t *testing.T) {
	stmt := parseOne(t, `ALTER TABLE accounting.ledger ADD COLUMN memo: utf8;`)
	at, ok := stmt.(*ast.AlterTable)
	require.True(t, ok)
	assert.Equal(t, "add_column", at.Op)
	assert.Equal(t, "memo", at.Column.Name)
	assert.Equal(t, "utf8", at.Column.Type)
}

func TestParseAlterTableRenameColumn(t *testing.T) {
	stmt := parseOne(t, `ALTER TABLE accounting.ledger RENAME COLUMN memo TO note;`)
	at, ok := stmt.(*ast.AlterTable)
	require.True(t, ok)
	assert.Equal(t, "rename_column", at.Op)
	assert.Equal(t, "memo", at.RenameFrom)
	assert.Equal(t, "note", at.RenameTo)
}

func TestParseDropIfExists(t *testing.T) {
	stmt := parseOne(t, `DROP TABLE IF EXISTS accounting.ledger;`)
	d, ok := stmt.(*ast.Drop)
	require.True(t, ok)
	assert.Equal(t, "table", d.Kind)
	assert.True(t, d.IfExists)
	assert.Equal(t, "ledger", d.Name)
}

func TestParsePipelineFilterMapTake(t *testing.T) {
	stmt := parseOne(t, `FROM accounting.ledger | FILTER amount > 0 | MAP doubled: amount * 2 | TAKE 5;`)
	pipe, ok := stmt.(*ast.Pipeline)
	require.True(t, ok)
	require.Len(t, pipe.Stages, 4)

	from, ok := pipe.Stages[0].(*ast.FromStage)
	require.True(t, ok)
	assert.Equal(t, "accounting", from.Namespace)
	assert.Equal(t, "ledger", from.Name)

	filter, ok := pipe.Stages[1].(*ast.FilterStage)
	require.True(t, ok)
	assert.Equal(t, expr.NodeComparison, filter.Predicate.Kind)

	mp, ok := pipe.Stages[2].(*ast.MapStage)
	require.True(t, ok)
	assert.False(t, mp.Extend)
	assert.Equal(t, []string{"doubled"}, mp.Names)

	take, ok := pipe.Stages[3].(*ast.TakeStage)
	require.True(t, ok)
	assert.Equal(t, 5, take.N)
}

func TestParsePipelineExtend(t *testing.T) {
	stmt := parseOne(t, `FROM accounting.ledger | EXTEND doubled: amount * 2;`)
	pipe := stmt.(*ast.Pipeline)
	mp, ok := pipe.Stages[1].(*ast.MapStage)
	require.True(t, ok)
	assert.True(t, mp.Extend)
}

func TestParsePipelineSort(t *testing.T) {
	stmt := parseOne(t, `FROM accounting.ledger | SORT amount DESC, id ASC;`)
	pipe := stmt.(*ast.Pipeline)
	sort, ok := pipe.Stages[1].(*ast.SortStage)
	require.True(t, ok)
	require.Len(t, sort.Columns, 2)
	assert.Equal(t, "amount", sort.Columns[0].Name)
	assert.True(t, sort.Columns[0].Desc)
	assert.Equal(t, "id", sort.Columns[1].Name)
	assert.False(t, sort.Columns[1].Desc)
}

func TestParsePipelineJoin(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
	}{
		{"inner default", `FROM a.x | JOIN a.y ON x.id == y.x_id;`, "inner"},
		{"explicit inner", `FROM a.x | INNER JOIN a.y ON x.id == y.x_id;`, "inner"},
		{"left", `FROM a.x | LEFT JOIN a.y ON x.id == y.x_id;`, "left"},
		{"right", `FROM a.x | RIGHT JOIN a.y ON x.id == y.x_id;`, "right"},
		{"full outer", `FROM a.x | FULL OUTER JOIN a.y ON x.id == y.x_id;`, "full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parseOne(t, tt.src)
			pipe := stmt.(*ast.Pipeline)
			join, ok := pipe.Stages[1].(*ast.JoinStage)
			require.True(t, ok)
			assert.Equal(t, tt.kind, join.Kind)
			assert.Equal(t, "a", join.Namespace)
			assert.Equal(t, "y", join.Name)
			require.Len(t, join.LeftKeys, 1)
			require.Len(t, join.RightKeys, 1)
		})
	}
}

func TestParsePipelineAggregate(t *testing.T) {
	stmt := parseOne(t, `FROM accounting.ledger | AGGREGATE BY = [account] { total: sum(amount), n: count() };`)
	pipe := stmt.(*ast.Pipeline)
	agg, ok := pipe.Stages[1].(*ast.AggregateStage)
	require.True(t, ok)
	assert.Equal(t, []string{"account"}, agg.ByNames)
	require.Len(t, agg.Aggs, 2)
	assert.Equal(t, "total", agg.Aggs[0].Name)
	assert.Equal(t, "sum", agg.Aggs[0].Func)
	require.NotNil(t, agg.Aggs[0].Arg)
	assert.Equal(t, "n", agg.Aggs[1].Name)
	assert.Equal(t, "count", agg.Aggs[1].Func)
	assert.Nil(t, agg.Aggs[1].Arg)
}

func TestParsePipelineApply(t *testing.T) {
	stmt := parseOne(t, `FROM accounting.ledger | APPLY amount = amount * 1.1;`)
	pipe := stmt.(*ast.Pipeline)
	ap, ok := pipe.Stages[1].(*ast.ApplyStage)
	require.True(t, ok)
	assert.Equal(t, "amount", ap.Column)
}

func TestParseExpressionPrecedence(t *testing.T) {
	stmt := parseOne(t, `FROM a.x | FILTER a + b * c == d AND NOT e;`)
	pipe := stmt.(*ast.Pipeline)
	filter := pipe.Stages[1].(*ast.FilterStage)
	top := filter.Predicate
	require.Equal(t, expr.NodeLogical, top.Kind)
	assert.Equal(t, uint8(expr.And), top.Op)

	left := top.Children[0]
	assert.Equal(t, expr.NodeComparison, left.Kind)

	sum := left.Children[0]
	require.Equal(t, expr.NodeArithmetic, sum.Kind)
	assert.Equal(t, uint8(expr.Add), sum.Op)
	mul := sum.Children[1]
	require.Equal(t, expr.NodeArithmetic, mul.Kind)
	assert.Equal(t, uint8(expr.Mul), mul.Op)
}

func TestParseFunctionCall(t *testing.T) {
	stmt := parseOne(t, `FROM a.x | MAP y: upper(name);`)
	pipe := stmt.(*ast.Pipeline)
	mp := pipe.Stages[1].(*ast.MapStage)
	call := mp.Exprs[0]
	require.Equal(t, expr.NodeFunctionCall, call.Kind)
	assert.Equal(t, "upper", call.FuncName)
	require.Len(t, call.Args, 1)
}

func TestParseProgramMultipleStatements(t *testing.T) {
	p := New(lexer.New(`CREATE NAMESPACE a; CREATE TABLE a.t { id: int8 key };`))
	stmts, errs := p.ParseProgram()
	require.Empty(t, errs)
	require.Len(t, stmts, 2)
}

func TestParseProgramRecoversAfterError(t *testing.T) {
	p := New(lexer.New(`CREATE BOGUS thing; CREATE NAMESPACE ok;`))
	stmts, errs := p.ParseProgram()
	assert.NotEmpty(t, errs)
	require.Len(t, stmts, 1)
	cn, ok := stmts[0].(*ast.CreateNamespace)
	require.True(t, ok)
	assert.Equal(t, "ok", cn.Name)
}
