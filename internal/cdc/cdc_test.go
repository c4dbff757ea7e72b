package cdc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/store/memory"
)

func newTestLog() *Log {
	return NewLog(memory.NewCDCStore(), memory.NewSingleVersion())
}

func TestBuilderAssignsSequenceNumbers(t *testing.T) {
	b := NewBuilder(1, 1000, uuid.New())
	require.NoError(t, b.AppendInsert(key.EncodedKey("k1"), []byte("v1")))
	require.NoError(t, b.AppendUpdate(key.EncodedKey("k2"), []byte("pre"), []byte("post")))
	require.NoError(t, b.AppendDelete(key.EncodedKey("k3"), []byte("pre")))

	rec := b.Build()
	require.Len(t, rec.Changes, 3)
	assert.Equal(t, uint16(1), rec.Changes[0].Sequence)
	assert.Equal(t, Insert, rec.Changes[0].Kind)
	assert.Equal(t, uint16(2), rec.Changes[1].Sequence)
	assert.Equal(t, Update, rec.Changes[1].Kind)
	assert.Equal(t, uint16(3), rec.Changes[2].Sequence)
	assert.Equal(t, Delete, rec.Changes[2].Kind)
}

// TestBuilderRejects65536thChange is concrete scenario 5: a transaction
// committing 65536 changes in one statement must fail with SequenceExhausted
// and never reach Log.Append.
func TestBuilderRejects65536thChange(t *testing.T) {
	b := NewBuilder(1, 1000, uuid.New())
	for i := 0; i < maxChangesPerTransaction; i++ {
		require.NoError(t, b.AppendDelete(key.EncodedKey("k"), []byte("v")))
	}
	err := b.AppendDelete(key.EncodedKey("k"), []byte("v"))
	require.Error(t, err)
	var exhausted *cerrors.SequenceExhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, cerrors.SequenceCDCOrdinal, exhausted.Type)
	assert.Len(t, b.Build().Changes, maxChangesPerTransaction)
}

func TestLogAppendGetRangeScan(t *testing.T) {
	l := newTestLog()

	b1 := NewBuilder(1, 100, uuid.New())
	require.NoError(t, b1.AppendInsert(key.EncodedKey("a"), []byte("1")))
	require.NoError(t, l.Append(b1.Build()))

	b2 := NewBuilder(2, 200, uuid.New())
	require.NoError(t, b2.AppendInsert(key.EncodedKey("b"), []byte("2")))
	require.NoError(t, l.Append(b2.Build()))

	got, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, store.Version(1), got.Version)

	ranged := l.Range(1, 3)
	require.Len(t, ranged, 2)
	assert.Equal(t, store.Version(1), ranged[0].Version)
	assert.Equal(t, store.Version(2), ranged[1].Version)

	scanned := l.Scan(10)
	require.Len(t, scanned, 2)

	_, ok = l.Get(99)
	assert.False(t, ok)
}

func TestLogCheckpointAdvancesOnlyForward(t *testing.T) {
	l := newTestLog()

	assert.Equal(t, store.Version(0), l.Checkpoint(FlowConsumerID))

	require.NoError(t, l.AdvanceCheckpoint(FlowConsumerID, 5))
	assert.Equal(t, store.Version(5), l.Checkpoint(FlowConsumerID))

	// A lower or equal version must not move the checkpoint backwards.
	require.NoError(t, l.AdvanceCheckpoint(FlowConsumerID, 3))
	assert.Equal(t, store.Version(5), l.Checkpoint(FlowConsumerID))

	require.NoError(t, l.AdvanceCheckpoint(FlowConsumerID, 5))
	assert.Equal(t, store.Version(5), l.Checkpoint(FlowConsumerID))

	require.NoError(t, l.AdvanceCheckpoint(FlowConsumerID, 10))
	assert.Equal(t, store.Version(10), l.Checkpoint(FlowConsumerID))
}

func TestLogCountReflectsChangesInCommit(t *testing.T) {
	l := newTestLog()
	b := NewBuilder(1, 100, uuid.New())
	require.NoError(t, b.AppendInsert(key.EncodedKey("a"), []byte("1")))
	require.NoError(t, b.AppendInsert(key.EncodedKey("b"), []byte("2")))
	require.NoError(t, l.Append(b.Build()))

	assert.Equal(t, 2, l.Count(1))
	assert.Equal(t, 0, l.Count(2))
}
