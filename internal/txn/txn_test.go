package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/oracle"
	"github.com/reifydb/reifydb-sub032/internal/store/memory"
)

func TestCommandGetSetReadYourWrites(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	c := BeginCommand(ora, backend, nil)
	_, ok := c.Get(key.EncodedKey("k1"))
	assert.False(t, ok)

	c.Set(key.EncodedKey("k1"), []byte("v1"))
	v, ok := c.Get(key.EncodedKey("k1"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	c.Remove(key.EncodedKey("k1"))
	_, ok = c.Get(key.EncodedKey("k1"))
	assert.False(t, ok)

	_, err := c.Commit()
	require.NoError(t, err)
}

func TestCommandCommitPersistsToBackend(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	c := BeginCommand(ora, backend, nil)
	c.Set(key.EncodedKey("k1"), []byte("v1"))
	version, err := c.Commit()
	require.NoError(t, err)

	q := BeginQuery(ora, backend)
	defer q.Rollback()
	v, ok := q.Get(key.EncodedKey("k1"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
	assert.Equal(t, version, q.Version())
}

func TestCommandScanMergesPendingAndStored(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	seed := BeginCommand(ora, backend, nil)
	seed.Set(key.EncodedKey("a"), []byte("stored-a"))
	seed.Set(key.EncodedKey("c"), []byte("stored-c"))
	_, err := seed.Commit()
	require.NoError(t, err)

	c := BeginCommand(ora, backend, nil)
	c.Set(key.EncodedKey("b"), []byte("pending-b"))
	c.Remove(key.EncodedKey("c"))

	cur := c.Scan(key.EncodedKey("a"), key.EncodedKey("z"))
	defer cur.Close()

	var keys []string
	for {
		e, ok := cur.Next()
		if !ok {
			break
		}
		keys = append(keys, string(e.Key))
	}
	assert.Equal(t, []string{"a", "b"}, keys)
}

// TestScanPopulatesReadSetForConflictDetection guards against the defect
// where UPDATE/DELETE (which read exclusively via Scan) committed with an
// empty read set and never participated in write-conflict detection.
func TestScanPopulatesReadSetForConflictDetection(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	seed := BeginCommand(ora, backend, nil)
	seed.Set(key.EncodedKey("row1"), []byte("v0"))
	_, err := seed.Commit()
	require.NoError(t, err)

	t1 := BeginCommand(ora, backend, nil)
	t2 := BeginCommand(ora, backend, nil)

	// t2 scans the table, observing row1 — this must register row1 in its
	// read set exactly as Get would.
	cur := t2.Scan(key.EncodedKey(""), key.EncodedKey("~"))
	for {
		_, ok := cur.Next()
		if !ok {
			break
		}
	}
	cur.Close()

	t1.Set(key.EncodedKey("row1"), []byte("v1"))
	_, err = t1.Commit()
	require.NoError(t, err)

	t2.Set(key.EncodedKey("row2"), []byte("v2"))
	_, err = t2.Commit()
	require.Error(t, err)
	var conflict *cerrors.WriteConflict
	require.ErrorAs(t, err, &conflict)
}

func TestScanOnReadOnlyQueryDoesNotPanic(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	seed := BeginCommand(ora, backend, nil)
	seed.Set(key.EncodedKey("a"), []byte("1"))
	_, err := seed.Commit()
	require.NoError(t, err)

	q := BeginQuery(ora, backend)
	defer q.Rollback()
	cur := q.Scan(key.EncodedKey(""), key.EncodedKey("~"))
	defer cur.Close()

	var count int
	for {
		_, ok := cur.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRollbackDiscardsPendingWrites(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	c := BeginCommand(ora, backend, nil)
	c.Set(key.EncodedKey("a"), []byte("1"))
	c.Rollback()

	q := BeginQuery(ora, backend)
	defer q.Rollback()
	_, ok := q.Get(key.EncodedKey("a"))
	assert.False(t, ok)
}

func TestAdminTracksCatalogChanges(t *testing.T) {
	ora := oracle.New()
	backend := memory.NewMultiVersion(nil)

	a := BeginAdmin(ora, backend, nil)
	a.Track(CatalogChange{Kind: "create", Entity: "namespace", ID: 1})
	assert.Len(t, a.Changes(), 1)
	assert.Equal(t, "namespace", a.Changes()[0].Entity)

	_, err := a.Commit()
	require.NoError(t, err)
}
