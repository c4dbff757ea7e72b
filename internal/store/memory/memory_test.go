package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

func TestMultiVersionGetSeesOnlyCommittedAtOrBeforeAsOf(t *testing.T) {
	m := NewMultiVersion(nil)

	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v1"))}, 1))
	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v2"))}, 2))

	v, ok := m.Get(key.EncodedKey("k"), 1)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	v, ok = m.Get(key.EncodedKey("k"), 2)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	_, ok = m.Get(key.EncodedKey("k"), 0)
	assert.False(t, ok)
}

func TestMultiVersionGetHidesTombstones(t *testing.T) {
	m := NewMultiVersion(nil)
	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v1"))}, 1))
	require.NoError(t, m.Commit([]store.Delta{store.RemoveDelta(key.EncodedKey("k"))}, 2))

	_, ok := m.Get(key.EncodedKey("k"), 2)
	assert.False(t, ok)

	// A reader at the earlier snapshot still sees the value.
	v, ok := m.Get(key.EncodedKey("k"), 1)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestMultiVersionScanOrdersKeysAndSkipsTombstones(t *testing.T) {
	m := NewMultiVersion(nil)
	require.NoError(t, m.Commit([]store.Delta{
		store.SetDelta(key.EncodedKey("b"), []byte("1")),
		store.SetDelta(key.EncodedKey("a"), []byte("2")),
		store.SetDelta(key.EncodedKey("c"), []byte("3")),
	}, 1))
	require.NoError(t, m.Commit([]store.Delta{store.RemoveDelta(key.EncodedKey("b"))}, 2))

	cur := m.Scan(2, key.EncodedKey("a"), key.EncodedKey("z"))
	defer cur.Close()

	var keys []string
	for {
		e, ok := cur.Next()
		if !ok {
			break
		}
		keys = append(keys, string(e.Key))
	}
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestMultiVersionRangeBatchReportsHasMore(t *testing.T) {
	m := NewMultiVersion(nil)
	require.NoError(t, m.Commit([]store.Delta{
		store.SetDelta(key.EncodedKey("a"), []byte("1")),
		store.SetDelta(key.EncodedKey("b"), []byte("2")),
		store.SetDelta(key.EncodedKey("c"), []byte("3")),
	}, 1))

	items, hasMore, next := m.RangeBatch(1, key.EncodedKey("a"), key.EncodedKey("z"), 2)
	require.Len(t, items, 2)
	assert.True(t, hasMore)
	assert.NotNil(t, next)

	items, hasMore, _ = m.RangeBatch(1, key.EncodedKey("a"), key.EncodedKey("z"), 10)
	require.Len(t, items, 3)
	assert.False(t, hasMore)
}

func TestMultiVersionRetentionKeepNNeverDropsBelowMinSnapshot(t *testing.T) {
	floor := store.Version(2)
	m := NewMultiVersion(&store.RetentionPolicy{
		Mode:        store.RetentionKeepN,
		KeepN:       1,
		Action:      store.CleanupDrop,
		MinSnapshot: func() store.Version { return floor },
	})

	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v1"))}, 1))
	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v2"))}, 2))
	require.NoError(t, m.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v3"))}, 3))

	// version 1 predates floor=2, so cleanup may have dropped it, but a
	// reader whose snapshot is >= floor must still see its version.
	v, ok := m.Get(key.EncodedKey("k"), 2)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)
}

func TestSingleVersionCommitReplacesOutright(t *testing.T) {
	s := NewSingleVersion()
	require.NoError(t, s.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v1"))}))
	v, ok := s.Get(key.EncodedKey("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v2"))}))
	v, ok = s.Get(key.EncodedKey("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)
}

func TestSingleVersionRemoveDeletesKey(t *testing.T) {
	s := NewSingleVersion()
	require.NoError(t, s.Commit([]store.Delta{store.SetDelta(key.EncodedKey("k"), []byte("v1"))}))
	require.NoError(t, s.Commit([]store.Delta{store.RemoveDelta(key.EncodedKey("k"))}))
	_, ok := s.Get(key.EncodedKey("k"))
	assert.False(t, ok)
}

func TestSingleVersionScanOrdersKeys(t *testing.T) {
	s := NewSingleVersion()
	require.NoError(t, s.Commit([]store.Delta{
		store.SetDelta(key.EncodedKey("b"), []byte("1")),
		store.SetDelta(key.EncodedKey("a"), []byte("2")),
	}))

	cur := s.Scan(key.EncodedKey("a"), key.EncodedKey("z"))
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

func TestCDCStoreAppendGetRangeCount(t *testing.T) {
	c := NewCDCStore()
	require.NoError(t, c.Append(store.CDCEntry{Version: 1, Changes: []store.CDCChange{{Sequence: 1}}}))
	require.NoError(t, c.Append(store.CDCEntry{Version: 2, Changes: []store.CDCChange{{Sequence: 1}, {Sequence: 2}}}))

	entry, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, store.Version(1), entry.Version)

	assert.Equal(t, 1, c.Count(1))
	assert.Equal(t, 2, c.Count(2))
	assert.Equal(t, 0, c.Count(3))

	cur := c.Range(1, 3).(*cdcCursor)
	assert.Len(t, cur.Entries(), 2)
}
