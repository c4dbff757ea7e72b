// Package keycode implements the order-preserving tuple encoding used for
// all encoded keys (spec §6.2). Integers are big-endian; signed integers are
// bias-shifted so that two's-complement ordering matches logical ordering;
// strings are length-prefixed; UUIDs are raw 16 bytes.
//
// There is no single pack library for this exact codec (see DESIGN.md); it
// is implemented directly against encoding/binary, which is the natural
// fit for a fixed, small, order-preserving tuple format.
package keycode

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// PutUint8 appends an order-preserving encoding of an unsigned 8-bit int.
func PutUint8(buf []byte, v uint8) []byte { return append(buf, v) }

// PutUint16 appends a big-endian uint16.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutUint32 appends a big-endian uint32.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutUint64 appends a big-endian uint64. Used directly for CommitVersion,
// whose natural ordering is already the logical ordering.
func PutUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutInt64 appends a sign-biased big-endian int64 so that byte-lexical
// ordering matches numeric ordering (flip the sign bit).
func PutInt64(buf []byte, v int64) []byte {
	return PutUint64(buf, uint64(v)^(1<<63))
}

// PutString appends a length-prefixed (uint32 big-endian length) UTF-8 string.
func PutString(buf []byte, s string) []byte {
	buf = PutUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// PutUUID appends the raw 16 bytes of a UUID.
func PutUUID(buf []byte, id uuid.UUID) []byte {
	return append(buf, id[:]...)
}

// GetUint8 reads a uint8 and returns the remaining buffer.
func GetUint8(buf []byte) (uint8, []byte) {
	return buf[0], buf[1:]
}

// GetUint16 reads a big-endian uint16.
func GetUint16(buf []byte) (uint16, []byte) {
	return binary.BigEndian.Uint16(buf[:2]), buf[2:]
}

// GetUint32 reads a big-endian uint32.
func GetUint32(buf []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(buf[:4]), buf[4:]
}

// GetUint64 reads a big-endian uint64.
func GetUint64(buf []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(buf[:8]), buf[8:]
}

// GetInt64 reads a sign-biased big-endian int64.
func GetInt64(buf []byte) (int64, []byte) {
	u, rest := GetUint64(buf)
	return int64(u ^ (1 << 63)), rest
}

// GetString reads a length-prefixed UTF-8 string.
func GetString(buf []byte) (string, []byte) {
	n, rest := GetUint32(buf)
	return string(rest[:n]), rest[n:]
}

// GetUUID reads a raw 16-byte UUID.
func GetUUID(buf []byte) (uuid.UUID, []byte) {
	var id uuid.UUID
	copy(id[:], buf[:16])
	return id, buf[16:]
}
