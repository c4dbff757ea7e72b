// Package mat implements the materialized catalog (spec §3.6): an in-memory
// projection of the persisted catalog, keyed by id, versioned by commit
// version. Readers at version V see the highest recorded version <= V.
// Modeled as per-entity concurrent maps so readers at different snapshots
// do not contend (spec §5 "Shared resources"), generalizing the teacher's
// Watcher/Watchers schema-snapshot-with-refresh idiom
// (internal/types/types.go) into a versioned snapshot-at-V read path.
package mat

import (
	"sort"
	"sync"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// versioned pairs a value with the commit version it became visible at, or
// marks it tombstoned (deleted) at that version.
type versioned[T any] struct {
	version   store.Version
	value     T
	tombstone bool
}

// history is the per-id version-indexed slice, append-only and kept sorted
// by version.
type history[T any] struct {
	mu       sync.RWMutex
	versions []versioned[T]
}

func (h *history[T]) publish(version store.Version, value T, tombstone bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versions = append(h.versions, versioned[T]{version: version, value: value, tombstone: tombstone})
}

func (h *history[T]) at(asOf store.Version) (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var zero T
	idx := sort.Search(len(h.versions), func(i int) bool { return h.versions[i].version > asOf }) - 1
	if idx < 0 {
		return zero, false
	}
	v := h.versions[idx]
	if v.tombstone {
		return zero, false
	}
	return v.value, true
}

// entityMap is a concurrent map from id to that entity's version history.
type entityMap[T any] struct {
	mu   sync.RWMutex
	byID map[uint64]*history[T]
}

func newEntityMap[T any]() *entityMap[T] {
	return &entityMap[T]{byID: make(map[uint64]*history[T])}
}

func (m *entityMap[T]) historyFor(id uint64) *history[T] {
	m.mu.RLock()
	h, ok := m.byID[id]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.byID[id]; ok {
		return h
	}
	h = &history[T]{}
	m.byID[id] = h
	return h
}

func (m *entityMap[T]) publish(id uint64, version store.Version, value T, tombstone bool) {
	m.historyFor(id).publish(version, value, tombstone)
}

func (m *entityMap[T]) at(id uint64, asOf store.Version) (T, bool) {
	m.mu.RLock()
	h, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return h.at(asOf)
}

func (m *entityMap[T]) all(asOf store.Version) []T {
	m.mu.RLock()
	ids := make([]uint64, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []T
	for _, id := range ids {
		if v, ok := m.at(id, asOf); ok {
			out = append(out, v)
		}
	}
	return out
}

// Catalog is the full materialized projection, one entityMap per entity
// kind named in spec §3.5.
type Catalog struct {
	Namespaces   *entityMap[catalog.Namespace]
	Tables       *entityMap[catalog.Table]
	Views        *entityMap[catalog.View]
	Dictionaries *entityMap[catalog.Dictionary]
	Flows        *entityMap[catalog.Flow]
	FlowNodes    *entityMap[catalog.FlowNode]
	FlowEdges    *entityMap[catalog.FlowEdge]
	Policies     *entityMap[catalog.Policy]
	Users        *entityMap[catalog.User]
}

// New constructs an empty materialized catalog.
func New() *Catalog {
	return &Catalog{
		Namespaces:   newEntityMap[catalog.Namespace](),
		Tables:       newEntityMap[catalog.Table](),
		Views:        newEntityMap[catalog.View](),
		Dictionaries: newEntityMap[catalog.Dictionary](),
		Flows:        newEntityMap[catalog.Flow](),
		FlowNodes:    newEntityMap[catalog.FlowNode](),
		FlowEdges:    newEntityMap[catalog.FlowEdge](),
		Policies:     newEntityMap[catalog.Policy](),
		Users:        newEntityMap[catalog.User](),
	}
}

// NamespaceAt returns the namespace visible at asOf, if any.
func (c *Catalog) NamespaceAt(id uint64, asOf store.Version) (catalog.Namespace, bool) {
	return c.Namespaces.at(id, asOf)
}

// TableAt returns the table visible at asOf, if any.
func (c *Catalog) TableAt(id uint64, asOf store.Version) (catalog.Table, bool) {
	return c.Tables.at(id, asOf)
}

// TablesAt returns every table visible at asOf, ordered by id.
func (c *Catalog) TablesAt(asOf store.Version) []catalog.Table { return c.Tables.all(asOf) }

// ViewAt returns the view visible at asOf, if any.
func (c *Catalog) ViewAt(id uint64, asOf store.Version) (catalog.View, bool) {
	return c.Views.at(id, asOf)
}

// ViewsAt returns every view visible at asOf, ordered by id.
func (c *Catalog) ViewsAt(asOf store.Version) []catalog.View { return c.Views.all(asOf) }

// FlowAt returns the flow visible at asOf, if any.
func (c *Catalog) FlowAt(id uint64, asOf store.Version) (catalog.Flow, bool) {
	return c.Flows.at(id, asOf)
}

// FlowsAt returns every flow visible at asOf, ordered by id.
func (c *Catalog) FlowsAt(asOf store.Version) []catalog.Flow { return c.Flows.all(asOf) }

// FlowNodesAt returns every flow node visible at asOf, ordered by id.
func (c *Catalog) FlowNodesAt(asOf store.Version) []catalog.FlowNode { return c.FlowNodes.all(asOf) }

// FlowEdgesAt returns every flow edge visible at asOf, ordered by id.
func (c *Catalog) FlowEdgesAt(asOf store.Version) []catalog.FlowEdge { return c.FlowEdges.all(asOf) }

// UsersAt returns every user visible at asOf, ordered by id.
func (c *Catalog) UsersAt(asOf store.Version) []catalog.User { return c.Users.all(asOf) }

// NamespacesAt returns every namespace visible at asOf, ordered by id.
func (c *Catalog) NamespacesAt(asOf store.Version) []catalog.Namespace { return c.Namespaces.all(asOf) }

// PoliciesAt returns every policy visible at asOf, ordered by id.
func (c *Catalog) PoliciesAt(asOf store.Version) []catalog.Policy { return c.Policies.all(asOf) }

// The Publish* methods apply one Admin transaction's tracked catalog changes to the
// materialized catalog at the new commit version (spec §3.6 "On successful
// commit of an admin transaction, the oracle publishes the recorded changes
// to the materialized catalog under the new version"). Decoding from the
// persisted encoding is the caller's responsibility (it has the Store and
// the committed transaction's snapshot reads at hand); they take
// already-decoded entities.
func (c *Catalog) PublishNamespace(version store.Version, n catalog.Namespace, tombstone bool) {
	c.Namespaces.publish(n.ID, version, n, tombstone)
}

func (c *Catalog) PublishTable(version store.Version, t catalog.Table, tombstone bool) {
	c.Tables.publish(t.ID, version, t, tombstone)
}

func (c *Catalog) PublishView(version store.Version, v catalog.View, tombstone bool) {
	c.Views.publish(v.ID, version, v, tombstone)
}

func (c *Catalog) PublishDictionary(version store.Version, d catalog.Dictionary, tombstone bool) {
	c.Dictionaries.publish(d.ID, version, d, tombstone)
}

func (c *Catalog) PublishFlow(version store.Version, f catalog.Flow, tombstone bool) {
	c.Flows.publish(f.ID, version, f, tombstone)
}

func (c *Catalog) PublishFlowNode(version store.Version, n catalog.FlowNode, tombstone bool) {
	c.FlowNodes.publish(n.ID, version, n, tombstone)
}

func (c *Catalog) PublishFlowEdge(version store.Version, e catalog.FlowEdge, tombstone bool) {
	c.FlowEdges.publish(e.ID, version, e, tombstone)
}

func (c *Catalog) PublishPolicy(version store.Version, p catalog.Policy, tombstone bool) {
	c.Policies.publish(p.ID, version, p, tombstone)
}

func (c *Catalog) PublishUser(version store.Version, u catalog.User, tombstone bool) {
	c.Users.publish(u.ID, version, u, tombstone)
}
