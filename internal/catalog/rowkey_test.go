package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

func intCol(id uint64, name string, index int) ColumnDef {
	return ColumnDef{ID: id, Name: name, Kind: value.KindInt8, Index: index}
}

func TestEncodeRowKeyValueSingleColumn(t *testing.T) {
	cols := []ColumnDef{intCol(1, "id", 0)}
	pk := PrimaryKey{ColumnIDs: []uint64{1}}

	got, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindInt8, Int: 42, Defined: true}})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestEncodeRowKeyValueOrderPreserving(t *testing.T) {
	cols := []ColumnDef{intCol(1, "id", 0)}
	pk := PrimaryKey{ColumnIDs: []uint64{1}}

	small, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindInt8, Int: 1, Defined: true}})
	require.NoError(t, err)
	big, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindInt8, Int: 2, Defined: true}})
	require.NoError(t, err)
	assert.Less(t, string(small), string(big))
}

func TestEncodeRowKeyValueCompositeKey(t *testing.T) {
	cols := []ColumnDef{
		intCol(1, "tenant", 0),
		intCol(2, "id", 1),
	}
	pk := PrimaryKey{ColumnIDs: []uint64{1, 2}}

	vals := []value.Value{
		{Kind: value.KindInt8, Int: 7, Defined: true},
		{Kind: value.KindInt8, Int: 9, Defined: true},
	}
	got, err := EncodeRowKeyValue(cols, pk, vals)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestEncodeRowKeyValueStringColumn(t *testing.T) {
	cols := []ColumnDef{{ID: 1, Name: "code", Kind: value.KindUtf8, Index: 0}}
	pk := PrimaryKey{ColumnIDs: []uint64{1}}

	got, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindUtf8, Str: "abc", Defined: true}})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestEncodeRowKeyValueRejectsUndefined(t *testing.T) {
	cols := []ColumnDef{intCol(1, "id", 0)}
	pk := PrimaryKey{ColumnIDs: []uint64{1}}

	_, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindInt8}})
	assert.Error(t, err)
}

func TestEncodeRowKeyValueRejectsMissingColumn(t *testing.T) {
	cols := []ColumnDef{intCol(1, "id", 0)}
	pk := PrimaryKey{ColumnIDs: []uint64{99}}

	_, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindInt8, Int: 1, Defined: true}})
	assert.Error(t, err)
}

func TestEncodeRowKeyValueRejectsUnsupportedKind(t *testing.T) {
	cols := []ColumnDef{{ID: 1, Name: "amount", Kind: value.KindFloat8, Index: 0}}
	pk := PrimaryKey{ColumnIDs: []uint64{1}}

	_, err := EncodeRowKeyValue(cols, pk, []value.Value{{Kind: value.KindFloat8, Float: 1.5, Defined: true}})
	assert.Error(t, err)
}
