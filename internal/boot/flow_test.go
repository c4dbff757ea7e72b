package boot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
)

// TestDeferredViewMaterializesAndRetracts is concrete scenario 3: a deferred
// view aggregating orders above a threshold must reflect an insert within one
// flow tick, and retract the row once the underlying order no longer
// satisfies the FILTER after an update. This is exactly the test that would
// have caught Command.Commit never building/appending a CDC record, since the
// flow runtime only ever observes changes through the CDC log.
func TestDeferredViewMaterializesAndRetracts(t *testing.T) {
	e := newTestEngine(t)

	mustExec(t, e, `CREATE NAMESPACE bench;`)
	mustExec(t, e, `CREATE TABLE bench.orders { id: int8 key, user_id: int8, amount: float8 };`)
	mustExec(t, e, `CREATE DEFERRED VIEW bench.high_earners { user_id: int8, total: float8 } AS
		FROM bench.orders | AGGREGATE BY = [user_id] { total: sum(amount) } | FILTER total > 1000;`)

	mustExec(t, e, `INSERT bench.orders FROM [{id: 1, user_id: 1, amount: 1500.0}];`)

	require.Eventually(t, func() bool {
		results, err := e.Execute(`FROM bench.high_earners;`)
		if err != nil || len(results) == 0 {
			return false
		}
		return results[0].Rows != nil && results[0].Rows.Len == 1
	}, 2*time.Second, 10*time.Millisecond, "expected high_earners to materialize the aggregated row")

	mustExec(t, e, `UPDATE bench.orders SET amount = 10.0 WHERE id == 1;`)

	require.Eventually(t, func() bool {
		results, err := e.Execute(`FROM bench.high_earners;`)
		if err != nil || len(results) == 0 {
			return false
		}
		return results[0].Rows != nil && results[0].Rows.Len == 0
	}, 2*time.Second, 10*time.Millisecond, "expected high_earners to retract the row once total dropped below threshold")
}

// TestDropTableRefusesWhileFlowDependsOnIt is concrete scenario 6: dropping a
// table that sources a running flow fails with CatalogInUse, naming the
// dependent flow; dropping the flow first lets the table drop succeed, and a
// snapshot taken before the drop still observes the table.
func TestDropTableRefusesWhileFlowDependsOnIt(t *testing.T) {
	e := newTestEngine(t)

	mustExec(t, e, `CREATE NAMESPACE bench;`)
	mustExec(t, e, `CREATE TABLE bench.orders { id: int8 key, user_id: int8, amount: float8 };`)
	mustExec(t, e, `CREATE DEFERRED VIEW bench.totals { user_id: int8, total: float8 } AS
		FROM bench.orders | AGGREGATE BY = [user_id] { total: sum(amount) };`)

	snapshotVersion := e.Oracle.CurrentVersion()
	table, err := e.resolveTable(snapshotVersion, "bench", "orders")
	require.NoError(t, err)
	tableKey := key.ObjectKey{ObjKind: key.KindTable, ID: table.ID}.Encode()

	_, err = e.Execute(`DROP TABLE bench.orders;`)
	require.Error(t, err)
	var inUse *cerrors.CatalogInUse
	require.ErrorAs(t, err, &inUse, "expected CatalogInUse, got %T: %v", err, err)
	assert.Contains(t, inUse.Dependents, "flow bench.totals")

	mustExec(t, e, `DROP FLOW bench.totals;`)
	mustExec(t, e, `DROP TABLE bench.orders;`)

	// The table object is removed as of the drop's commit version, but a
	// reader pinned to the snapshot taken before the drop still sees it.
	_, stillVisible := e.Backend.Get(tableKey, snapshotVersion)
	assert.True(t, stillVisible)

	afterDrop := e.Oracle.CurrentVersion()
	_, visibleNow := e.Backend.Get(tableKey, afterDrop)
	assert.False(t, visibleNow)
}
