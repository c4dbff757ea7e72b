package row

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/shopspring/decimal"
)

// Row is a byte buffer laid out per spec §3.2:
//
//	[ fingerprint:8 | validity bitmap:ceil(n/8) | fixed cells | variable tail ]
type Row struct {
	schema *Schema
	buf    []byte
}

// Allocate returns an empty row sized for all fixed cells, validity bitmap
// cleared, fingerprint populated (spec §4.1 "allocate()").
func (s *Schema) Allocate() *Row {
	buf := make([]byte, s.FixedLen())
	binary.BigEndian.PutUint64(buf[0:8], s.Fingerprint)
	return &Row{schema: s, buf: buf}
}

// Wrap adapts an existing byte buffer as a Row under schema s, for decode
// paths that already validated the fingerprint.
func Wrap(s *Schema, buf []byte) *Row { return &Row{schema: s, buf: buf} }

// Bytes returns the row's raw encoding.
func (r *Row) Bytes() []byte { return r.buf }

// Schema returns the row's backing schema.
func (r *Row) Schema() *Schema { return r.schema }

// Fingerprint reads the 8-byte fingerprint header, independent of schema.
func Fingerprint(buf []byte) uint64 { return binary.BigEndian.Uint64(buf[0:8]) }

func (r *Row) bitmapOffset() uint32 { return fingerprintSize }

// IsValid reports whether field i has a defined value (validity bit i == 1).
func (r *Row) IsValid(i int) bool {
	byteIdx := r.bitmapOffset() + uint32(i/8)
	bit := byte(1) << uint(i%8)
	return r.buf[byteIdx]&bit != 0
}

func (r *Row) setValid(i int, valid bool) {
	byteIdx := r.bitmapOffset() + uint32(i/8)
	bit := byte(1) << uint(i%8)
	if valid {
		r.buf[byteIdx] |= bit
	} else {
		r.buf[byteIdx] &^= bit
	}
}

// --- fixed-width typed accessors -----------------------------------------

func (r *Row) field(i int) Field { return r.schema.Fields[i] }

func (r *Row) GetBool(i int) (bool, bool) {
	if !r.IsValid(i) {
		return false, false
	}
	f := r.field(i)
	return r.buf[f.Offset] != 0, true
}

func (r *Row) SetBool(i int, v bool) {
	f := r.field(i)
	if v {
		r.buf[f.Offset] = 1
	} else {
		r.buf[f.Offset] = 0
	}
	r.setValid(i, true)
}

func (r *Row) GetInt(i int) (int64, bool) {
	if !r.IsValid(i) {
		return 0, false
	}
	f := r.field(i)
	switch f.Size {
	case 1:
		return int64(int8(r.buf[f.Offset])), true
	case 2:
		return int64(int16(binary.BigEndian.Uint16(r.buf[f.Offset:]))), true
	case 4:
		return int64(int32(binary.BigEndian.Uint32(r.buf[f.Offset:]))), true
	default:
		return int64(binary.BigEndian.Uint64(r.buf[f.Offset:])), true
	}
}

func (r *Row) SetInt(i int, v int64) {
	f := r.field(i)
	switch f.Size {
	case 1:
		r.buf[f.Offset] = byte(int8(v))
	case 2:
		binary.BigEndian.PutUint16(r.buf[f.Offset:], uint16(int16(v)))
	case 4:
		binary.BigEndian.PutUint32(r.buf[f.Offset:], uint32(int32(v)))
	default:
		binary.BigEndian.PutUint64(r.buf[f.Offset:], uint64(v))
	}
	r.setValid(i, true)
}

func (r *Row) GetUint(i int) (uint64, bool) {
	if !r.IsValid(i) {
		return 0, false
	}
	f := r.field(i)
	switch f.Size {
	case 1:
		return uint64(r.buf[f.Offset]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(r.buf[f.Offset:])), true
	case 4:
		return uint64(binary.BigEndian.Uint32(r.buf[f.Offset:])), true
	default:
		return binary.BigEndian.Uint64(r.buf[f.Offset:]), true
	}
}

func (r *Row) SetUint(i int, v uint64) {
	f := r.field(i)
	switch f.Size {
	case 1:
		r.buf[f.Offset] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(r.buf[f.Offset:], uint16(v))
	case 4:
		binary.BigEndian.PutUint32(r.buf[f.Offset:], uint32(v))
	default:
		binary.BigEndian.PutUint64(r.buf[f.Offset:], v)
	}
	r.setValid(i, true)
}

func (r *Row) GetFloat(i int) (float64, bool) {
	if !r.IsValid(i) {
		return 0, false
	}
	f := r.field(i)
	if f.Size == 4 {
		return float64(math.Float32frombits(binary.BigEndian.Uint32(r.buf[f.Offset:]))), true
	}
	return math.Float64frombits(binary.BigEndian.Uint64(r.buf[f.Offset:])), true
}

func (r *Row) SetFloat(i int, v float64) {
	f := r.field(i)
	if f.Size == 4 {
		binary.BigEndian.PutUint32(r.buf[f.Offset:], math.Float32bits(float32(v)))
	} else {
		binary.BigEndian.PutUint64(r.buf[f.Offset:], math.Float64bits(v))
	}
	r.setValid(i, true)
}

func (r *Row) GetUUID(i int) (uuid.UUID, bool) {
	if !r.IsValid(i) {
		return uuid.UUID{}, false
	}
	f := r.field(i)
	var id uuid.UUID
	copy(id[:], r.buf[f.Offset:f.Offset+16])
	return id, true
}

func (r *Row) SetUUID(i int, id uuid.UUID) {
	f := r.field(i)
	copy(r.buf[f.Offset:f.Offset+16], id[:])
	r.setValid(i, true)
}

// GetDecimal reads the fixed 17-byte inline decimal cell: 16-byte big-endian
// two's complement unscaled value + 1-byte scale.
func (r *Row) GetDecimal(i int) (decimal.Decimal, bool) {
	if !r.IsValid(i) {
		return decimal.Decimal{}, false
	}
	f := r.field(i)
	cell := r.buf[f.Offset : f.Offset+17]
	unscaled := new(big.Int).SetBytes(cell[:16])
	if cell[0]&0x80 != 0 {
		// negative: two's complement over 16 bytes
		max := new(big.Int).Lsh(big.NewInt(1), 128)
		unscaled.Sub(unscaled, max)
	}
	scale := int32(cell[16])
	return decimal.NewFromBigInt(unscaled, -scale), true
}

func (r *Row) SetDecimal(i int, d decimal.Decimal) {
	f := r.field(i)
	coeff := d.Coefficient()
	scale := byte(uint8(-d.Exponent()))
	b := coeff.Bytes()
	var cell [17]byte
	if coeff.Sign() < 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 128)
		twos := new(big.Int).Add(max, coeff)
		tb := twos.Bytes()
		copy(cell[16-len(tb):16], tb)
	} else {
		copy(cell[16-len(b):16], b)
	}
	cell[16] = scale
	copy(r.buf[f.Offset:f.Offset+17], cell[:])
	r.setValid(i, true)
}

// --- variable-length fields ------------------------------------------------

// GetBytes returns the raw bytes stored in the tail for a Blob/Utf8/Int/Uint
// field, via its inline (offset,length) descriptor.
func (r *Row) GetBytes(i int) ([]byte, bool) {
	if !r.IsValid(i) {
		return nil, false
	}
	f := r.field(i)
	off := binary.BigEndian.Uint32(r.buf[f.Offset:])
	length := binary.BigEndian.Uint32(r.buf[f.Offset+4:])
	return r.buf[off : off+length], true
}

func (r *Row) GetString(i int) (string, bool) {
	b, ok := r.GetBytes(i)
	if !ok {
		return "", false
	}
	return string(b), true
}

// Push appends payload to the tail, updates field i's inline (offset,length)
// descriptor, and grows the buffer copy-on-write (spec §4.1 "push").
func (r *Row) Push(i int, payload []byte) {
	f := r.field(i)
	off := uint32(len(r.buf))
	grown := make([]byte, len(r.buf)+len(payload))
	copy(grown, r.buf)
	copy(grown[off:], payload)
	r.buf = grown

	binary.BigEndian.PutUint32(r.buf[f.Offset:], off)
	binary.BigEndian.PutUint32(r.buf[f.Offset+4:], uint32(len(payload)))
	r.setValid(i, true)
}

func (r *Row) SetString(i int, s string) { r.Push(i, []byte(s)) }
func (r *Row) SetBlob(i int, b []byte)   { r.Push(i, b) }

// SetBigInt stores an arbitrary-precision Int as a leading sign byte (0 for
// non-negative, 1 for negative) followed by the unsigned magnitude, since
// big.Int.Bytes() discards the sign.
func (r *Row) SetBigInt(i int, n *big.Int) {
	sign := byte(0)
	if n.Sign() < 0 {
		sign = 1
	}
	payload := make([]byte, 0, 1+len(n.Bytes()))
	payload = append(payload, sign)
	payload = append(payload, n.Bytes()...)
	r.Push(i, payload)
}

func (r *Row) GetBigInt(i int) (*big.Int, bool) {
	b, ok := r.GetBytes(i)
	if !ok {
		return nil, false
	}
	if len(b) == 0 {
		return new(big.Int), true
	}
	n := new(big.Int).SetBytes(b[1:])
	if b[0] != 0 {
		n.Neg(n)
	}
	return n, true
}

// --- universal accessor ----------------------------------------------------

// GetValue returns a tagged value.Value dispatching on field i's base type
// (spec §4.1 "get_value").
func (r *Row) GetValue(i int) value.Value {
	f := r.field(i)
	if !r.IsValid(i) {
		return value.Undefined(f.Kind)
	}
	switch f.Kind {
	case value.KindBoolean:
		b, _ := r.GetBool(i)
		return value.Value{Kind: f.Kind, Bool: b, Defined: true}
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8:
		n, _ := r.GetInt(i)
		return value.Value{Kind: f.Kind, Int: n, Defined: true}
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8,
		value.KindDictionaryId, value.KindIdentityId, value.KindRowNumber:
		n, _ := r.GetUint(i)
		return value.Value{Kind: f.Kind, Uint: n, Defined: true}
	case value.KindFloat4, value.KindFloat8:
		fl, _ := r.GetFloat(i)
		return value.Value{Kind: f.Kind, Float: fl, Defined: true}
	case value.KindDecimal:
		d, _ := r.GetDecimal(i)
		return value.Value{Kind: f.Kind, Dec: d, Defined: true}
	case value.KindUtf8:
		s, _ := r.GetString(i)
		return value.Value{Kind: f.Kind, Str: s, Defined: true}
	case value.KindBlob:
		b, _ := r.GetBytes(i)
		return value.Value{Kind: f.Kind, Bytes: b, Defined: true}
	case value.KindUuid4, value.KindUuid7:
		id, _ := r.GetUUID(i)
		return value.Value{Kind: f.Kind, UUID: id, Defined: true}
	case value.KindInt, value.KindUint:
		n, _ := r.GetBigInt(i)
		return value.Value{Kind: f.Kind, Big: n, Defined: true}
	default:
		return value.Undefined(f.Kind)
	}
}

// SetValue writes v into field i, dispatching on v.Kind. It is the inverse
// of GetValue, used by expression evaluation to materialize a cell.
func (r *Row) SetValue(i int, v value.Value) {
	if !v.Defined {
		r.setValid(i, false)
		return
	}
	switch v.Kind {
	case value.KindBoolean:
		r.SetBool(i, v.Bool)
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8:
		r.SetInt(i, v.Int)
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8,
		value.KindDictionaryId, value.KindIdentityId, value.KindRowNumber:
		r.SetUint(i, v.Uint)
	case value.KindFloat4, value.KindFloat8:
		r.SetFloat(i, v.Float)
	case value.KindDecimal:
		r.SetDecimal(i, v.Dec)
	case value.KindUtf8:
		r.SetString(i, v.Str)
	case value.KindBlob:
		r.SetBlob(i, v.Bytes)
	case value.KindUuid4, value.KindUuid7:
		r.SetUUID(i, v.UUID)
	case value.KindInt, value.KindUint:
		r.SetBigInt(i, v.Big)
	}
}

// Clone returns a deep copy of the row, safe for independent mutation.
func (r *Row) Clone() *Row {
	buf := make([]byte, len(r.buf))
	copy(buf, r.buf)
	return &Row{schema: r.schema, buf: buf}
}
