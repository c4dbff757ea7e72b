package bolt

import (
	"encoding/binary"

	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// EncodeCDCEntry serializes a store.CDCEntry to a fixed, self-describing
// binary layout for the bbolt value cell. No general-purpose serialization
// library is wired here: the shape is small, fixed, and internal-only (see
// DESIGN.md ecosystem-justification note).
func EncodeCDCEntry(e store.CDCEntry) []byte {
	buf := make([]byte, 0, 64)
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], uint64(e.Version))
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], e.TimestampMs)
	buf = append(buf, tmp[:]...)
	buf = append(buf, e.Transaction[:]...)

	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(e.Changes)))
	buf = append(buf, n[:]...)

	for _, c := range e.Changes {
		binary.BigEndian.PutUint16(n[:], c.Sequence)
		buf = append(buf, n[:]...)
		buf = append(buf, c.Kind)
		buf = appendBytes(buf, c.Key)
		buf = appendBytes(buf, c.Pre)
		buf = appendBytes(buf, c.Post)
	}
	return buf
}

func appendBytes(buf, b []byte) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf = append(buf, n[:]...)
	return append(buf, b...)
}

func readBytes(buf []byte) ([]byte, []byte) {
	n := binary.BigEndian.Uint32(buf[:4])
	rest := buf[4:]
	return rest[:n], rest[n:]
}

// DecodeCDCEntry is the inverse of EncodeCDCEntry.
func DecodeCDCEntry(buf []byte) store.CDCEntry {
	var e store.CDCEntry
	e.Version = store.Version(binary.BigEndian.Uint64(buf[:8]))
	buf = buf[8:]
	e.TimestampMs = binary.BigEndian.Uint64(buf[:8])
	buf = buf[8:]
	copy(e.Transaction[:], buf[:16])
	buf = buf[16:]

	count := binary.BigEndian.Uint16(buf[:2])
	buf = buf[2:]
	e.Changes = make([]store.CDCChange, 0, count)
	for i := 0; i < int(count); i++ {
		seq := binary.BigEndian.Uint16(buf[:2])
		buf = buf[2:]
		kind := buf[0]
		buf = buf[1:]
		var k, pre, post []byte
		k, buf = readBytes(buf)
		pre, buf = readBytes(buf)
		post, buf = readBytes(buf)
		e.Changes = append(e.Changes, store.CDCChange{
			Sequence: seq,
			Kind:     kind,
			Key:      key.EncodedKey(k),
			Pre:      pre,
			Post:     post,
		})
	}
	return e
}
