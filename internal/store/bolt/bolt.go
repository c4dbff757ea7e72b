// Package bolt implements the durable, file-backed keyed store backend on
// top of a single embedded bbolt database: one bucket per table, with
// composite (key, version) bucket keys for multi-version tables. Grounded
// on cuemby-warren's go.mod (go.etcd.io/bbolt), whose raft/boltdb stack
// demonstrates the idiom of one embedded KV file with bucket-per-concern
// layout, adapted here to bucket-per-table (spec §4.2 "durable (file-backed
// / embedded SQL)").
package bolt

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
	bolt "go.etcd.io/bbolt"
)

// MultiVersion is the bbolt-backed store.MultiVersion implementation. Rows
// are stored under composite keys `rawKey || bigEndian(version)` so that a
// bucket-local ordered scan yields every version of a key consecutively,
// and DescendGreaterOrEqual-style seeks resolve "as of" reads.
type MultiVersion struct {
	db     *bolt.DB
	bucket []byte
}

// OpenMultiVersion opens (creating if absent) a dedicated bucket within db.
func OpenMultiVersion(db *bolt.DB, bucket string) (*MultiVersion, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: open multi-version bucket %q", bucket)
	}
	return &MultiVersion{db: db, bucket: []byte(bucket)}, nil
}

func composite(k key.EncodedKey, v store.Version) []byte {
	buf := make([]byte, len(k)+8)
	copy(buf, k)
	binary.BigEndian.PutUint64(buf[len(k):], uint64(v))
	return buf
}

func splitComposite(b []byte) (key.EncodedKey, store.Version) {
	n := len(b) - 8
	return key.EncodedKey(b[:n]), store.Version(binary.BigEndian.Uint64(b[n:]))
}

// tombstone marker: a zero-length value is ambiguous with an empty row, so
// deletions are tagged with a one-byte sentinel prefix.
const (
	tagValue     byte = 0x01
	tagTombstone byte = 0x00
)

func (m *MultiVersion) Commit(deltas []store.Delta, version store.Version) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		for _, d := range deltas {
			ck := composite(d.Key, version)
			if d.IsRemove {
				if err := b.Put(ck, []byte{tagTombstone}); err != nil {
					return err
				}
				continue
			}
			payload := append([]byte{tagValue}, d.Value...)
			if err := b.Put(ck, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *MultiVersion) Get(k key.EncodedKey, asOf store.Version) ([]byte, bool) {
	var result []byte
	var found bool
	_ = m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		c := b.Cursor()
		seek := composite(k, asOf)
		ck, v := c.Seek(seek)
		// Seek lands on the first key >= seek; if it's an exact match
		// at asOf we're done, otherwise step back to the prior entry
		// for this same raw key (the highest version <= asOf).
		if ck == nil || !sameRawKey(ck, k) || !bytesEqual(ck, seek) {
			ck, v = c.Prev()
		}
		for ck != nil && sameRawKey(ck, k) {
			_, ver := splitComposite(ck)
			if ver <= asOf {
				if len(v) > 0 && v[0] == tagValue {
					result = append([]byte(nil), v[1:]...)
					found = true
				}
				return nil
			}
			ck, v = c.Prev()
		}
		return nil
	})
	return result, found
}

func sameRawKey(composite []byte, k key.EncodedKey) bool {
	if len(composite) != len(k)+8 {
		return false
	}
	return bytesEqual(composite[:len(k)], []byte(k))
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *MultiVersion) Scan(asOf store.Version, start, end key.EncodedKey) store.Cursor {
	var entries []store.Entry
	_ = m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		c := b.Cursor()
		var lastRaw []byte
		for ck, v := c.Seek([]byte(start)); ck != nil && bytesLess(ck, []byte(end)); ck, v = c.Next() {
			raw, ver := splitComposite(ck)
			if ver > asOf {
				continue
			}
			if lastRaw != nil && bytesEqual(lastRaw, []byte(raw)) {
				// a newer-but-still-<=asOf version superseded
				// the one we already emitted; bbolt iterates
				// composite keys in ascending (raw,version)
				// order so the later one wins — overwrite.
				entries[len(entries)-1] = toEntry(raw, ver, v)
				continue
			}
			entries = append(entries, toEntry(raw, ver, v))
			lastRaw = append([]byte(nil), raw...)
		}
		return nil
	})
	// drop tombstones
	live := entries[:0]
	for _, e := range entries {
		if e.Value != nil {
			live = append(live, e)
		}
	}
	return &sliceCursor{entries: live}
}

func toEntry(raw key.EncodedKey, ver store.Version, v []byte) store.Entry {
	if len(v) == 0 || v[0] == tagTombstone {
		return store.Entry{Key: append(key.EncodedKey(nil), raw...), Version: ver, Value: nil}
	}
	return store.Entry{Key: append(key.EncodedKey(nil), raw...), Version: ver, Value: append([]byte(nil), v[1:]...)}
}

func bytesLess(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func (m *MultiVersion) RangeBatch(asOf store.Version, start, end key.EncodedKey, batchSize int) ([]store.Entry, bool, key.EncodedKey) {
	c := m.Scan(asOf, start, end).(*sliceCursor)
	if len(c.entries) <= batchSize {
		return c.entries, false, nil
	}
	next := append(key.EncodedKey(nil), c.entries[batchSize-1].Key...)
	next = append(next, 0x00)
	return c.entries[:batchSize], true, next
}

type sliceCursor struct {
	entries []store.Entry
	pos     int
}

func (c *sliceCursor) Next() (store.Entry, bool) {
	if c.pos >= len(c.entries) {
		return store.Entry{}, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e, true
}

func (c *sliceCursor) Close() {}

// SingleVersion is the bbolt-backed store.SingleVersion implementation: a
// plain bucket with no version axis.
type SingleVersion struct {
	db     *bolt.DB
	bucket []byte
}

func OpenSingleVersion(db *bolt.DB, bucket string) (*SingleVersion, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: open single-version bucket %q", bucket)
	}
	return &SingleVersion{db: db, bucket: []byte(bucket)}, nil
}

func (s *SingleVersion) Commit(deltas []store.Delta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, d := range deltas {
			if d.IsRemove {
				if err := b.Delete([]byte(d.Key)); err != nil {
					return err
				}
				continue
			}
			if err := b.Put([]byte(d.Key), d.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SingleVersion) Get(k key.EncodedKey) ([]byte, bool) {
	var result []byte
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(k))
		if v != nil {
			result = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	return result, found
}

func (s *SingleVersion) Scan(start, end key.EncodedKey) store.Cursor {
	var entries []store.Entry
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Seek([]byte(start)); k != nil && bytesLess(k, []byte(end)); k, v = c.Next() {
			entries = append(entries, store.Entry{
				Key:   append(key.EncodedKey(nil), k...),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	return &sliceCursor{entries: entries}
}

// CDCStore is the bbolt-backed store.CDCStore implementation: one bucket
// keyed by big-endian version, gob-free (fixed binary layout, see encode.go).
type CDCStore struct {
	db     *bolt.DB
	bucket []byte
}

func OpenCDCStore(db *bolt.DB, bucket string) (*CDCStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt: open cdc bucket %q", bucket)
	}
	return &CDCStore{db: db, bucket: []byte(bucket)}, nil
}

func versionKey(v store.Version) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func (c *CDCStore) Append(entry store.CDCEntry) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put(versionKey(entry.Version), EncodeCDCEntry(entry))
	})
}

func (c *CDCStore) Get(version store.Version) (store.CDCEntry, bool) {
	var entry store.CDCEntry
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get(versionKey(version))
		if v != nil {
			entry = DecodeCDCEntry(v)
			found = true
		}
		return nil
	})
	return entry, found
}

func (c *CDCStore) Range(start, end store.Version) store.Cursor {
	var entries []store.CDCEntry
	_ = c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(c.bucket).Cursor()
		for k, v := cur.Seek(versionKey(start)); k != nil && binary.BigEndian.Uint64(k) < uint64(end); k, v = cur.Next() {
			entries = append(entries, DecodeCDCEntry(v))
		}
		return nil
	})
	return &cdcSliceCursor{entries: entries}
}

func (c *CDCStore) Count(version store.Version) int {
	e, ok := c.Get(version)
	if !ok {
		return 0
	}
	return len(e.Changes)
}

func (c *CDCStore) Scan(batchSize int) store.Cursor {
	var entries []store.CDCEntry
	_ = c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
			entries = append(entries, DecodeCDCEntry(v))
			return nil
		})
	})
	return &cdcSliceCursor{entries: entries, batchSize: batchSize}
}

type cdcSliceCursor struct {
	entries   []store.CDCEntry
	pos       int
	batchSize int
}

func (c *cdcSliceCursor) Next() (store.Entry, bool) {
	if c.pos >= len(c.entries) {
		return store.Entry{}, false
	}
	e := c.entries[c.pos]
	c.pos++
	return store.Entry{Version: e.Version}, true
}

func (c *cdcSliceCursor) Close() {}

func (c *cdcSliceCursor) Entries() []store.CDCEntry { return c.entries }
