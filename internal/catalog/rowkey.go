package catalog

import (
	"fmt"

	"github.com/reifydb/reifydb-sub032/internal/core/keycode"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// EncodeRowKeyValue builds the order-preserving primary-key tuple bytes for
// key.RowKey.Value out of a decoded row's column values, following the
// table/view's declared PrimaryKey column order. Used by the statement
// executor for INSERT and UPDATE.
func EncodeRowKeyValue(cols []ColumnDef, pk PrimaryKey, vals []value.Value) ([]byte, error) {
	byID := make(map[uint64]ColumnDef, len(cols))
	for _, c := range cols {
		byID[c.ID] = c
	}

	var buf []byte
	for _, colID := range pk.ColumnIDs {
		col, ok := byID[colID]
		if !ok {
			return nil, fmt.Errorf("catalog: primary key column id %d not found", colID)
		}
		if col.Index >= len(vals) {
			return nil, fmt.Errorf("catalog: primary key column %q missing a value", col.Name)
		}
		v := vals[col.Index]
		if !v.Defined {
			return nil, fmt.Errorf("catalog: primary key column %q cannot be undefined", col.Name)
		}
		b, err := encodePKCell(col, v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

func encodePKCell(col ColumnDef, v value.Value) ([]byte, error) {
	switch col.Kind {
	case value.KindBoolean:
		if v.Bool {
			return keycode.PutUint8(nil, 1), nil
		}
		return keycode.PutUint8(nil, 0), nil
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8:
		return keycode.PutInt64(nil, v.Int), nil
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8,
		value.KindIdentityId, value.KindDictionaryId, value.KindRowNumber:
		return keycode.PutUint64(nil, v.Uint), nil
	case value.KindUtf8:
		return keycode.PutString(nil, v.Str), nil
	case value.KindUuid4, value.KindUuid7:
		return keycode.PutUUID(nil, v.UUID), nil
	default:
		return nil, fmt.Errorf("catalog: column kind %s is not supported as a primary key", col.Kind)
	}
}
