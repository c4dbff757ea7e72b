package expr

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/google/uuid"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// Catalog-stored flow node configuration holds compiled expression trees
// (filter predicates, map/extend projections, join/aggregate keys) as
// opaque bytes (catalog.FlowNode.Config). Expr and its literal payload are
// fixed, internal Go shapes, not a DDL-driven wire format, so they're
// encoded the same way internal/catalog/codec.go encodes catalog entities:
// a small hand-rolled binary layout, not a general-purpose serialization
// library.

func putUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func getUint32(buf []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(buf), buf[4:]
}

func putUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func getUint64(buf []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(buf), buf[8:]
}

func putString(buf []byte, s string) []byte {
	buf = putUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func getString(buf []byte) (string, []byte) {
	n, rest := getUint32(buf)
	return string(rest[:n]), rest[n:]
}

func putBytes(buf []byte, b []byte) []byte {
	buf = putUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func getBytes(buf []byte) ([]byte, []byte) {
	n, rest := getUint32(buf)
	return append([]byte(nil), rest[:n]...), rest[n:]
}

// EncodeLiteral serializes a value.Value's Kind-selected field (mirroring
// row.Row.GetValue's per-kind dispatch).
func EncodeLiteral(v value.Value) []byte {
	buf := []byte{byte(v.Kind), boolByte(v.Defined)}
	if !v.Defined {
		return buf
	}
	switch v.Kind {
	case value.KindBoolean:
		buf = append(buf, boolByte(v.Bool))
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8:
		buf = putUint64(buf, uint64(v.Int))
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8,
		value.KindDictionaryId, value.KindIdentityId, value.KindRowNumber:
		buf = putUint64(buf, v.Uint)
	case value.KindFloat4, value.KindFloat8:
		buf = putUint64(buf, math.Float64bits(v.Float))
	case value.KindUtf8:
		buf = putString(buf, v.Str)
	case value.KindBlob:
		buf = putBytes(buf, v.Bytes)
	case value.KindUuid4, value.KindUuid7:
		buf = append(buf, v.UUID[:]...)
	case value.KindInt, value.KindUint:
		if v.Big == nil {
			buf = putBytes(buf, []byte{0})
		} else {
			sign := byte(0)
			if v.Big.Sign() < 0 {
				sign = 1
			}
			mag := v.Big.Bytes()
			payload := make([]byte, 0, 1+len(mag))
			payload = append(payload, sign)
			payload = append(payload, mag...)
			buf = putBytes(buf, payload)
		}
	}
	return buf
}

// DecodeLiteral is the inverse of EncodeLiteral.
func DecodeLiteral(buf []byte) (value.Value, []byte) {
	kind := value.Kind(buf[0])
	defined := buf[1] != 0
	rest := buf[2:]
	if !defined {
		return value.Undefined(kind), rest
	}
	switch kind {
	case value.KindBoolean:
		b := rest[0] != 0
		return value.Value{Kind: kind, Bool: b, Defined: true}, rest[1:]
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8:
		n, r := getUint64(rest)
		return value.Value{Kind: kind, Int: int64(n), Defined: true}, r
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8,
		value.KindDictionaryId, value.KindIdentityId, value.KindRowNumber:
		n, r := getUint64(rest)
		return value.Value{Kind: kind, Uint: n, Defined: true}, r
	case value.KindFloat4, value.KindFloat8:
		n, r := getUint64(rest)
		return value.Value{Kind: kind, Float: math.Float64frombits(n), Defined: true}, r
	case value.KindUtf8:
		s, r := getString(rest)
		return value.Value{Kind: kind, Str: s, Defined: true}, r
	case value.KindBlob:
		b, r := getBytes(rest)
		return value.Value{Kind: kind, Bytes: b, Defined: true}, r
	case value.KindUuid4, value.KindUuid7:
		var id uuid.UUID
		copy(id[:], rest[:16])
		return value.Value{Kind: kind, UUID: id, Defined: true}, rest[16:]
	case value.KindInt, value.KindUint:
		b, r := getBytes(rest)
		n := new(big.Int)
		if len(b) > 0 {
			n.SetBytes(b[1:])
			if b[0] != 0 {
				n.Neg(n)
			}
		}
		return value.Value{Kind: kind, Big: n, Defined: true}, r
	default:
		return value.Undefined(kind), rest
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// EncodeExpr serializes an expression tree: kind, shared scalar fields,
// then children/args by recursive count-prefixed lists.
func EncodeExpr(e *Expr) []byte {
	if e == nil {
		return []byte{0xFF}
	}
	buf := []byte{byte(e.Kind)}
	buf = putString(buf, e.ColumnName)
	buf = append(buf, EncodeLiteral(e.Literal)...)
	buf = append(buf, e.Op)
	buf = putUint32(buf, uint32(len(e.Children)))
	for _, c := range e.Children {
		buf = append(buf, EncodeExpr(c)...)
	}
	buf = putString(buf, e.FuncName)
	buf = putUint32(buf, uint32(len(e.Args)))
	for _, a := range e.Args {
		buf = append(buf, EncodeExpr(a)...)
	}
	buf = putString(buf, e.VarName)
	buf = append(buf, byte(e.TargetKind))
	buf = append(buf, byte(e.Saturation))
	return buf
}

// DecodeExpr is the inverse of EncodeExpr.
func DecodeExpr(buf []byte) (*Expr, []byte) {
	if buf[0] == 0xFF {
		return nil, buf[1:]
	}
	kind := NodeKind(buf[0])
	rest := buf[1:]
	colName, rest := getString(rest)
	lit, rest := DecodeLiteral(rest)
	op := rest[0]
	rest = rest[1:]
	n, rest := getUint32(rest)
	children := make([]*Expr, 0, n)
	for i := uint32(0); i < n; i++ {
		var c *Expr
		c, rest = DecodeExpr(rest)
		children = append(children, c)
	}
	funcName, rest := getString(rest)
	n, rest = getUint32(rest)
	args := make([]*Expr, 0, n)
	for i := uint32(0); i < n; i++ {
		var a *Expr
		a, rest = DecodeExpr(rest)
		args = append(args, a)
	}
	varName, rest := getString(rest)
	targetKind := value.Kind(rest[0])
	rest = rest[1:]
	saturation := value.Saturation(rest[0])
	rest = rest[1:]
	return &Expr{
		Kind:       kind,
		ColumnName: colName,
		Literal:    lit,
		Op:         op,
		Children:   children,
		FuncName:   funcName,
		Args:       args,
		VarName:    varName,
		TargetKind: targetKind,
		Saturation: saturation,
	}, rest
}
