// Package value defines the typed scalar universe shared by storage, the
// query executor, and the flow runtime (spec §3.1).
package value

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies one of the scalar types in the typed value universe.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindBoolean
	KindInt1
	KindInt2
	KindInt4
	KindInt8
	KindInt16
	KindUint1
	KindUint2
	KindUint4
	KindUint8
	KindUint16
	KindFloat4
	KindFloat8
	KindDecimal
	KindInt    // arbitrary precision signed
	KindUint   // arbitrary precision unsigned
	KindUtf8
	KindBlob
	KindDate
	KindDateTime
	KindTime
	KindInterval
	KindUuid4
	KindUuid7
	KindIdentityId
	KindDictionaryId
	KindRowNumber
	KindAny
)

// String implements fmt.Stringer for diagnostics and cast-table lookups.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "Undefined"
	case KindBoolean:
		return "Boolean"
	case KindInt1:
		return "Int1"
	case KindInt2:
		return "Int2"
	case KindInt4:
		return "Int4"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindUint1:
		return "Uint1"
	case KindUint2:
		return "Uint2"
	case KindUint4:
		return "Uint4"
	case KindUint8:
		return "Uint8"
	case KindUint16:
		return "Uint16"
	case KindFloat4:
		return "Float4"
	case KindFloat8:
		return "Float8"
	case KindDecimal:
		return "Decimal"
	case KindInt:
		return "Int"
	case KindUint:
		return "Uint"
	case KindUtf8:
		return "Utf8"
	case KindBlob:
		return "Blob"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindTime:
		return "Time"
	case KindInterval:
		return "Interval"
	case KindUuid4:
		return "Uuid4"
	case KindUuid7:
		return "Uuid7"
	case KindIdentityId:
		return "IdentityId"
	case KindDictionaryId:
		return "DictionaryId"
	case KindRowNumber:
		return "RowNumber"
	case KindAny:
		return "Any"
	default:
		return "Unknown"
	}
}

// kindNames maps a DDL column type name to its Kind: Kind.String lower-cased
// for every kind except Undefined and RowNumber, plus a couple of surface aliases ("string",
// "bool", "uuid") RQL accepts in CREATE TABLE column declarations.
var kindNames = map[string]Kind{
	"boolean": KindBoolean, "bool": KindBoolean,
	"int1": KindInt1, "int2": KindInt2, "int4": KindInt4, "int8": KindInt8, "int16": KindInt16,
	"uint1": KindUint1, "uint2": KindUint2, "uint4": KindUint4, "uint8": KindUint8, "uint16": KindUint16,
	"float4": KindFloat4, "float8": KindFloat8,
	"decimal": KindDecimal,
	"int":     KindInt, "uint": KindUint,
	"utf8": KindUtf8, "string": KindUtf8,
	"blob":         KindBlob,
	"date":         KindDate,
	"datetime":     KindDateTime,
	"time":         KindTime,
	"interval":     KindInterval,
	"uuid4":        KindUuid4,
	"uuid7":        KindUuid7,
	"uuid":         KindUuid7,
	"identityid":   KindIdentityId,
	"dictionaryid": KindDictionaryId,
	"any":          KindAny,
}

// KindFromName resolves a DDL type name (case-insensitive) to a Kind, for
// CREATE TABLE/VIEW column declarations.
func KindFromName(name string) (Kind, bool) {
	k, ok := kindNames[strings.ToLower(name)]
	return k, ok
}

// FixedWidth returns the on-disk cell width of fixed-width kinds, and
// (0, false) for variable-length kinds (Utf8, Blob, Int, Uint, Any).
func (k Kind) FixedWidth() (int, bool) {
	switch k {
	case KindBoolean, KindInt1, KindUint1:
		return 1, true
	case KindInt2, KindUint2:
		return 2, true
	case KindInt4, KindUint4, KindFloat4, KindDate:
		return 4, true
	case KindInt8, KindUint8, KindFloat8, KindDateTime, KindTime, KindInterval, KindRowNumber, KindIdentityId, KindDictionaryId:
		return 8, true
	case KindInt16, KindUint16, KindUuid4, KindUuid7:
		return 16, true
	case KindDecimal:
		// stored inline as (unscaled int128-ish, scale) — fixed 17 bytes.
		return 17, true
	default:
		return 0, false
	}
}

// Value is the boxed dynamic ("Any") variant dispatching on Kind; it is the
// return type of row.Row.GetValue.
type Value struct {
	Kind Kind
	// exactly one of the following is meaningful, selected by Kind.
	Bool    bool
	Int     int64
	Uint    uint64
	Float   float64
	Big     *big.Int
	Dec     decimal.Decimal
	Str     string
	Bytes   []byte
	Time    time.Time
	Dur     time.Duration
	UUID    uuid.UUID
	RowNum  uint64
	Defined bool
}

// Undefined returns the "no value" Value for kind k.
func Undefined(k Kind) Value { return Value{Kind: k, Defined: false} }

func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	switch v.Kind {
	case KindBoolean:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16:
		return fmt.Sprintf("%d", v.Int)
	case KindUint1, KindUint2, KindUint4, KindUint8, KindUint16, KindDictionaryId, KindIdentityId, KindRowNumber:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat4, KindFloat8:
		return fmt.Sprintf("%g", v.Float)
	case KindDecimal:
		return v.Dec.String()
	case KindInt:
		if v.Big != nil {
			return v.Big.String()
		}
		return "0"
	case KindUint:
		if v.Big != nil {
			return v.Big.String()
		}
		return "0"
	case KindUtf8:
		return v.Str
	case KindBlob:
		return fmt.Sprintf("blob(%d)", len(v.Bytes))
	case KindDate, KindDateTime, KindTime:
		return v.Time.String()
	case KindInterval:
		return v.Dur.String()
	case KindUuid4, KindUuid7:
		return v.UUID.String()
	default:
		return "?"
	}
}

// Compare returns -1, 0, 1 for the comparison order of two values of the
// same Kind. Compare does not check Defined; it compares the payload fields
// as they are, and it gives undefined values no ordering of their own.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		panic(fmt.Sprintf("value: compare across kinds %s vs %s", a.Kind, b.Kind))
	}
	switch a.Kind {
	case KindBoolean:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16:
		return cmpInt64(a.Int, b.Int)
	case KindUint1, KindUint2, KindUint4, KindUint8, KindUint16, KindDictionaryId, KindIdentityId, KindRowNumber:
		return cmpUint64(a.Uint, b.Uint)
	case KindFloat4, KindFloat8:
		return cmpFloat64(a.Float, b.Float)
	case KindDecimal:
		return a.Dec.Cmp(b.Dec)
	case KindInt, KindUint:
		return a.Big.Cmp(b.Big)
	case KindUtf8:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	case KindBlob:
		return cmpBytes(a.Bytes, b.Bytes)
	case KindDate, KindDateTime, KindTime:
		switch {
		case a.Time.Before(b.Time):
			return -1
		case a.Time.After(b.Time):
			return 1
		default:
			return 0
		}
	case KindInterval:
		return cmpInt64(int64(a.Dur), int64(b.Dur))
	case KindUuid4, KindUuid7:
		return cmpBytes(a.UUID[:], b.UUID[:])
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
