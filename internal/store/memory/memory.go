// Package memory implements an in-memory keyed store backend: a btree-per-key
// version chain guarded by a single RWMutex, matching spec §4.2's "in-memory
// (BTree-per-key version chain, RwLock-protected map)" backend. Grounded on
// AKJUS-bsc-erigon's go.mod (github.com/google/btree) and the layered
// versioned-value-over-ordered-key-structure idiom of erigon-lib's domain/
// history storage (fenghaojiang-erigon-lib/state).
package memory

import (
	"sync"

	"github.com/google/btree"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

type versionEntry struct {
	version store.Version
	value   []byte
	remove  bool
}

func versionLess(a, b versionEntry) bool { return a.version < b.version }

func stringLess(a, b string) bool { return a < b }

// MultiVersion is the in-memory store.MultiVersion implementation.
type MultiVersion struct {
	mu     sync.RWMutex
	keys   *btree.BTreeG[string]
	chains map[string]*btree.BTreeG[versionEntry]
	policy *store.RetentionPolicy
}

// NewMultiVersion constructs an empty in-memory multi-version table. policy
// may be nil to disable tiered cleanup.
func NewMultiVersion(policy *store.RetentionPolicy) *MultiVersion {
	return &MultiVersion{
		keys:   btree.NewG(32, stringLess),
		chains: make(map[string]*btree.BTreeG[versionEntry]),
		policy: policy,
	}
}

func (m *MultiVersion) Commit(deltas []store.Delta, version store.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deltas {
		ks := string(d.Key)
		chain, ok := m.chains[ks]
		if !ok {
			chain = btree.NewG(16, versionLess)
			m.chains[ks] = chain
			m.keys.ReplaceOrInsert(ks)
		}
		chain.ReplaceOrInsert(versionEntry{version: version, value: d.Value, remove: d.IsRemove})
	}
	if m.policy != nil {
		m.cleanupLocked()
	}
	return nil
}

// cleanupLocked applies the retention policy; caller holds m.mu.
func (m *MultiVersion) cleanupLocked() {
	if m.policy.Mode != store.RetentionKeepN || m.policy.KeepN <= 0 {
		return
	}
	floor := store.Version(0)
	if m.policy.MinSnapshot != nil {
		floor = m.policy.MinSnapshot()
	}
	for ks, chain := range m.chains {
		if chain.Len() <= m.policy.KeepN {
			continue
		}
		// collect versions ascending, drop the oldest beyond KeepN, but
		// only while a newer version at or below floor exists: the newest
		// version <= floor is what a reader at floor still sees.
		var all []versionEntry
		chain.Ascend(func(v versionEntry) bool {
			all = append(all, v)
			return true
		})
		excess := len(all) - m.policy.KeepN
		for i := 0; i < excess; i++ {
			if all[i+1].version > floor {
				break
			}
			chain.Delete(all[i])
		}
		_ = ks
	}
}

func (m *MultiVersion) Get(k key.EncodedKey, asOf store.Version) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain, ok := m.chains[string(k)]
	if !ok {
		return nil, false
	}
	return latestAsOf(chain, asOf)
}

func latestAsOf(chain *btree.BTreeG[versionEntry], asOf store.Version) ([]byte, bool) {
	var found versionEntry
	hasAny := false
	chain.DescendLessOrEqual(versionEntry{version: asOf}, func(v versionEntry) bool {
		found = v
		hasAny = true
		return false
	})
	if !hasAny {
		return nil, false
	}
	if found.remove {
		return nil, false
	}
	return found.value, true
}

func (m *MultiVersion) Scan(asOf store.Version, start, end key.EncodedKey) store.Cursor {
	m.mu.RLock()
	var ks []string
	m.keys.AscendRange(string(start), string(end), func(s string) bool {
		ks = append(ks, s)
		return true
	})
	m.mu.RUnlock()
	return &memCursor{m: m, keys: ks, asOf: asOf}
}

func (m *MultiVersion) RangeBatch(asOf store.Version, start, end key.EncodedKey, batchSize int) ([]store.Entry, bool, key.EncodedKey) {
	c := m.Scan(asOf, start, end).(*memCursor)
	defer c.Close()
	var items []store.Entry
	for len(items) < batchSize {
		e, ok := c.Next()
		if !ok {
			return items, false, nil
		}
		items = append(items, e)
	}
	// peek for more
	if _, ok := c.Next(); ok {
		last := items[len(items)-1]
		next := append(key.EncodedKey(nil), last.Key...)
		next = append(next, 0x00)
		return items, true, next
	}
	return items, false, nil
}

type memCursor struct {
	m    *MultiVersion
	keys []string
	pos  int
	asOf store.Version
}

func (c *memCursor) Next() (store.Entry, bool) {
	for c.pos < len(c.keys) {
		ks := c.keys[c.pos]
		c.pos++
		c.m.mu.RLock()
		chain, ok := c.m.chains[ks]
		c.m.mu.RUnlock()
		if !ok {
			continue
		}
		val, ok := latestAsOf(chain, c.asOf)
		if !ok {
			continue
		}
		return store.Entry{Key: key.EncodedKey(ks), Value: val, Version: c.asOf}, true
	}
	return store.Entry{}, false
}

func (c *memCursor) Close() {}

// SingleVersion is the in-memory store.SingleVersion implementation: each
// commit replaces the value outright with no version axis.
type SingleVersion struct {
	mu     sync.RWMutex
	keys   *btree.BTreeG[string]
	values map[string][]byte
}

func NewSingleVersion() *SingleVersion {
	return &SingleVersion{keys: btree.NewG(32, stringLess), values: make(map[string][]byte)}
}

func (s *SingleVersion) Commit(deltas []store.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		ks := string(d.Key)
		if d.IsRemove {
			delete(s.values, ks)
			s.keys.Delete(ks)
			continue
		}
		if _, ok := s.values[ks]; !ok {
			s.keys.ReplaceOrInsert(ks)
		}
		s.values[ks] = d.Value
	}
	return nil
}

func (s *SingleVersion) Get(k key.EncodedKey) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[string(k)]
	return v, ok
}

func (s *SingleVersion) Scan(start, end key.EncodedKey) store.Cursor {
	s.mu.RLock()
	var ks []string
	// Copy the values too, so later commits do not show through the cursor.
	snap := &SingleVersion{values: make(map[string][]byte)}
	s.keys.AscendRange(string(start), string(end), func(k string) bool {
		ks = append(ks, k)
		snap.values[k] = s.values[k]
		return true
	})
	s.mu.RUnlock()
	return &singleCursor{s: snap, keys: ks}
}

type singleCursor struct {
	s   *SingleVersion
	keys []string
	pos int
}

func (c *singleCursor) Next() (store.Entry, bool) {
	if c.pos >= len(c.keys) {
		return store.Entry{}, false
	}
	ks := c.keys[c.pos]
	c.pos++
	c.s.mu.RLock()
	v := c.s.values[ks]
	c.s.mu.RUnlock()
	return store.Entry{Key: key.EncodedKey(ks), Value: v}, true
}

func (c *singleCursor) Close() {}

// CDCStore is the in-memory store.CDCStore implementation: an ordered map
// keyed by commit version.
type CDCStore struct {
	mu      sync.RWMutex
	entries *btree.BTreeG[cdcItem]
}

type cdcItem struct {
	version store.Version
	entry   store.CDCEntry
}

func cdcLess(a, b cdcItem) bool { return a.version < b.version }

func NewCDCStore() *CDCStore {
	return &CDCStore{entries: btree.NewG(16, cdcLess)}
}

func (c *CDCStore) Append(entry store.CDCEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.ReplaceOrInsert(cdcItem{version: entry.Version, entry: entry})
	return nil
}

func (c *CDCStore) Get(version store.Version) (store.CDCEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.entries.Get(cdcItem{version: version})
	return item.entry, ok
}

func (c *CDCStore) Range(start, end store.Version) store.Cursor {
	c.mu.RLock()
	var items []store.CDCEntry
	c.entries.AscendRange(cdcItem{version: start}, cdcItem{version: end}, func(it cdcItem) bool {
		items = append(items, it.entry)
		return true
	})
	c.mu.RUnlock()
	return &cdcCursor{items: items}
}

func (c *CDCStore) Count(version store.Version) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.entries.Get(cdcItem{version: version})
	if !ok {
		return 0
	}
	return len(item.entry.Changes)
}

func (c *CDCStore) Scan(batchSize int) store.Cursor {
	c.mu.RLock()
	var items []store.CDCEntry
	c.entries.Ascend(func(it cdcItem) bool {
		items = append(items, it.entry)
		return true
	})
	c.mu.RUnlock()
	return &cdcCursor{items: items, batchSize: batchSize}
}

type cdcCursor struct {
	items     []store.CDCEntry
	pos       int
	batchSize int
}

func (c *cdcCursor) Next() (store.Entry, bool) {
	if c.pos >= len(c.items) {
		return store.Entry{}, false
	}
	e := c.items[c.pos]
	c.pos++
	return store.Entry{Version: e.Version}, true
}

func (c *cdcCursor) Close() {}

// Entries exposes the decoded CDC entries directly, since store.Entry cannot
// carry the full CDCEntry shape; the cdc package consumes this instead of
// the generic Cursor when it needs full records.
func (c *cdcCursor) Entries() []store.CDCEntry { return c.items }
