package boot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Config{InMemory: true, FlowPollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustExec(t *testing.T, e *Engine, rql string) []Result {
	t.Helper()
	results, err := e.Execute(rql)
	require.NoError(t, err, "executing %q", rql)
	return results
}

func TestExecuteDDLAndDML(t *testing.T) {
	e := newTestEngine(t)

	mustExec(t, e, `CREATE NAMESPACE accounting;`)
	mustExec(t, e, `CREATE TABLE accounting.ledger { id: int8 key, amount: float8 };`)
	mustExec(t, e, `INSERT accounting.ledger FROM [{id: 1, amount: 10.0}, {id: 2, amount: 20.0}, {id: 3, amount: -5.0}];`)

	results := mustExec(t, e, `FROM accounting.ledger | FILTER amount > 0 | SORT id ASC;`)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Rows)
	assert.Equal(t, 2, results[0].Rows.Len)

	mustExec(t, e, `UPDATE accounting.ledger SET amount = amount + 1 WHERE id == 1;`)
	results = mustExec(t, e, `FROM accounting.ledger | FILTER id == 1;`)
	require.Equal(t, 1, results[0].Rows.Len)

	mustExec(t, e, `DELETE accounting.ledger WHERE id == 3;`)
	results = mustExec(t, e, `FROM accounting.ledger;`)
	assert.Equal(t, 2, results[0].Rows.Len)
}

func TestExecuteAggregatePipeline(t *testing.T) {
	e := newTestEngine(t)

	mustExec(t, e, `CREATE NAMESPACE sales;`)
	mustExec(t, e, `CREATE TABLE sales.orders { id: int8 key, region: utf8, amount: float8 };`)
	mustExec(t, e, `INSERT sales.orders FROM [
		{id: 1, region: 'east', amount: 10.0},
		{id: 2, region: 'east', amount: 5.0},
		{id: 3, region: 'west', amount: 7.0}
	];`)

	results := mustExec(t, e, `FROM sales.orders | AGGREGATE BY = [region] { total: sum(amount), n: count() };`)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Rows.Len)
}

func TestExecuteRejectsUnknownTable(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(`FROM nosuch.table;`)
	assert.Error(t, err)
}

func TestExecuteParseErrorDoesNotPanic(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(`CREATE GARBAGE;`)
	assert.Error(t, err)
}
