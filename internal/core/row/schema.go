// Package row implements the encoded row / schema system (spec §3.2, §4.1):
// a self-describing binary row format with a schema fingerprint header, a
// validity bitmap, fixed fields, and a variable-length tail.
package row

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// Constraint further restricts a field's base type (spec §3.2: "type
// constraint (none / max-bytes N / precision-scale P,S)").
type Constraint struct {
	MaxBytes       uint32 // 0 = unconstrained, for Utf8
	Precision      uint8  // for Decimal
	Scale          uint8
	HasPrecision   bool
}

// Field declares one column of a Schema.
type Field struct {
	Name       string
	Kind       value.Kind
	Constraint Constraint

	// Computed by Schema.compute(): byte offset of the fixed cell (or of
	// the inline (offset,length) descriptor for variable-length fields),
	// and its size in bytes.
	Offset uint32
	Size   uint32
}

// Schema describes the ordered field declarations backing one row layout.
// Two schemas with the same Fingerprint are interchangeable (spec §3.2).
type Schema struct {
	Fields      []Field
	Fingerprint uint64

	bitmapBytes  uint32
	fixedSize    uint32 // bitmap end .. fixed cells end, relative to header
	headerSize   uint32 // 8 (fingerprint) + bitmapBytes, 8-byte aligned
}

const fingerprintSize = 8

// inline descriptor for variable-length fields: (offset uint32, length uint32)
const varDescriptorSize = 8

// NewSchema computes field offsets/sizes and the schema fingerprint.
func NewSchema(fields []Field) *Schema {
	s := &Schema{Fields: append([]Field(nil), fields...)}
	s.compute()
	s.Fingerprint = computeFingerprint(s.Fields)
	return s
}

func (s *Schema) compute() {
	n := len(s.Fields)
	s.bitmapBytes = uint32((n + 7) / 8)
	// Header = fingerprint(8) + bitmap, rounded up to 8-byte alignment so
	// fixed cells start aligned (spec §4.1: "byte-aligned to an 8-byte header").
	s.headerSize = align8(fingerprintSize + s.bitmapBytes)

	offset := s.headerSize
	for i := range s.Fields {
		f := &s.Fields[i]
		if w, fixed := f.Kind.FixedWidth(); fixed {
			offset = alignTo(offset, uint32(w))
			f.Offset = offset
			f.Size = uint32(w)
			offset += uint32(w)
		} else {
			f.Offset = offset
			f.Size = varDescriptorSize
			offset += varDescriptorSize
		}
	}
	s.fixedSize = offset - s.headerSize
}

func align8(n uint32) uint32 { return alignTo(n, 8) }

func alignTo(n, a uint32) uint32 {
	if a == 0 {
		return n
	}
	rem := n % a
	if rem == 0 {
		return n
	}
	return n + (a - rem)
}

// FixedLen is the byte length of the header + fixed-cell region, i.e. the
// size of a freshly allocated row before any variable-length pushes.
func (s *Schema) FixedLen() uint32 { return s.headerSize + s.fixedSize }

func computeFingerprint(fields []Field) uint64 {
	h := xxhash.New()
	var tmp [8]byte
	for _, f := range fields {
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{byte(f.Kind)})
		binary.BigEndian.PutUint32(tmp[:4], f.Constraint.MaxBytes)
		_, _ = h.Write(tmp[:4])
		_, _ = h.Write([]byte{f.Constraint.Precision, f.Constraint.Scale, boolByte(f.Constraint.HasPrecision)})
		binary.BigEndian.PutUint32(tmp[:4], f.Offset)
		_, _ = h.Write(tmp[:4])
		binary.BigEndian.PutUint32(tmp[:4], f.Size)
		_, _ = h.Write(tmp[:4])
	}
	return h.Sum64()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// IndexOf returns the ordinal of the named field, or -1.
func (s *Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
