package catalog

import (
	"encoding/binary"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// Store persists catalog entities as encoded rows keyed by internal/core/key
// object keys, mutated exclusively through an Admin transaction so every
// change shares the oracle's commit protocol and is tracked for publication
// to the materialized catalog (spec §3.5 "Lifecycle").
type Store struct {
	sequences store.SingleVersion
}

// NewStore wraps the single-version backend used for id allocation.
func NewStore(sequences store.SingleVersion) *Store {
	return &Store{sequences: sequences}
}

// NextID allocates the next id for a given object kind's id sequence.
func (s *Store) NextID(kind key.Kind) uint64 {
	seqKey := key.ObjectKey{ObjKind: key.KindSequence, ID: uint64(kind)}.Encode()
	v, ok := s.sequences.Get(seqKey)
	var next uint64 = 1
	if ok {
		next = binary.BigEndian.Uint64(v) + 1
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	_ = s.sequences.Commit([]store.Delta{store.SetDelta(seqKey, buf[:])})
	return next
}

func objectKey(kind key.Kind, id uint64) key.EncodedKey {
	return key.ObjectKey{ObjKind: kind, ID: id}.Encode()
}

func nameKey(kind key.Kind, namespace uint64, name string) key.EncodedKey {
	return key.NameIndexKey{ObjKind: kind, Namespace: namespace, Name: name}.Encode()
}

// CreateNamespace allocates an id, checks name uniqueness within the parent,
// and stages the write plus a catalog-change record.
func (s *Store) CreateNamespace(tx *txn.Admin, name string, parentID uint64) (Namespace, error) {
	if _, exists := tx.Get(nameKey(key.KindNamespace, parentID, name)); exists {
		return Namespace{}, &cerrors.CatalogAlreadyExists{Kind: cerrors.KindNamespace, Name: name}
	}
	n := Namespace{ID: s.NextID(key.KindNamespace), Name: name, ParentID: parentID}
	tx.Set(objectKey(key.KindNamespace, n.ID), EncodeNamespace(n))
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, n.ID)
	tx.Set(nameKey(key.KindNamespace, parentID, name), idBuf)
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "namespace", ID: n.ID})
	return n, nil
}

func (s *Store) GetNamespace(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (Namespace, bool) {
	v, ok := q.Get(objectKey(key.KindNamespace, id))
	if !ok {
		return Namespace{}, false
	}
	return DecodeNamespace(v), true
}

// CreateTable allocates an id for the table and each of its columns and its
// primary key, checks name uniqueness, and stages the writes. pkPositions
// indexes columns (post-assignment) rather than taking already-known column
// ids, since a column's id is only allocated here.
func (s *Store) CreateTable(tx *txn.Admin, namespaceID uint64, name string, columns []ColumnDef, pkPositions []int) (Table, error) {
	if _, exists := tx.Get(nameKey(key.KindTable, namespaceID, name)); exists {
		return Table{}, &cerrors.CatalogAlreadyExists{Kind: cerrors.KindTable, Name: name}
	}
	for i := range columns {
		columns[i].ID = s.NextID(key.KindColumn)
		columns[i].Index = i
	}
	pkColumnIDs := make([]uint64, len(pkPositions))
	for i, pos := range pkPositions {
		pkColumnIDs[i] = columns[pos].ID
	}
	t := Table{
		ID:          s.NextID(key.KindTable),
		Name:        name,
		NamespaceID: namespaceID,
		Columns:     columns,
		PrimaryKey:  PrimaryKey{ID: s.NextID(key.KindPrimaryKey), ColumnIDs: pkColumnIDs},
	}
	tx.Set(objectKey(key.KindTable, t.ID), EncodeTable(t))
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, t.ID)
	tx.Set(nameKey(key.KindTable, namespaceID, name), idBuf)
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "table", ID: t.ID})
	return t, nil
}

func (s *Store) GetTable(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (Table, bool) {
	v, ok := q.Get(objectKey(key.KindTable, id))
	if !ok {
		return Table{}, false
	}
	return DecodeTable(v), true
}

// UpdateTableColumns persists a table whose column list changed (ALTER
// TABLE ADD/DROP/RENAME COLUMN), keyed by its existing id.
func (s *Store) UpdateTableColumns(tx *txn.Admin, t Table) error {
	tx.Set(objectKey(key.KindTable, t.ID), EncodeTable(t))
	tx.Track(txn.CatalogChange{Kind: "update", Entity: "table", ID: t.ID})
	return nil
}

// DropTable removes a table, refusing if any view/flow still depends on it
// (spec's CatalogInUse scenario), identified by the caller-supplied
// dependents list (resolved against the materialized catalog).
func (s *Store) DropTable(tx *txn.Admin, t Table, dependents []string) error {
	if len(dependents) > 0 {
		return &cerrors.CatalogInUse{Kind: cerrors.KindTable, Name: t.Name, Dependents: dependents}
	}
	tx.Remove(objectKey(key.KindTable, t.ID))
	tx.Remove(nameKey(key.KindTable, t.NamespaceID, t.Name))
	tx.Track(txn.CatalogChange{Kind: "delete", Entity: "table", ID: t.ID})
	return nil
}

// CreateView mirrors CreateTable's pkPositions-over-ids convention (see its
// doc comment): positions index columns post-assignment.
func (s *Store) CreateView(tx *txn.Admin, namespaceID uint64, name string, kind ViewKind, columns []ColumnDef, pkPositions []int, flowID uint64) (View, error) {
	if _, exists := tx.Get(nameKey(key.KindView, namespaceID, name)); exists {
		return View{}, &cerrors.CatalogAlreadyExists{Kind: cerrors.KindView, Name: name}
	}
	for i := range columns {
		columns[i].ID = s.NextID(key.KindColumn)
		columns[i].Index = i
	}
	pkColumnIDs := make([]uint64, len(pkPositions))
	for i, pos := range pkPositions {
		pkColumnIDs[i] = columns[pos].ID
	}
	v := View{
		ID:          s.NextID(key.KindView),
		Name:        name,
		NamespaceID: namespaceID,
		Kind:        kind,
		Columns:     columns,
		PrimaryKey:  PrimaryKey{ID: s.NextID(key.KindPrimaryKey), ColumnIDs: pkColumnIDs},
		FlowID:      flowID,
	}
	tx.Set(objectKey(key.KindView, v.ID), EncodeView(v))
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, v.ID)
	tx.Set(nameKey(key.KindView, namespaceID, name), idBuf)
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "view", ID: v.ID})
	return v, nil
}

func (s *Store) GetView(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (View, bool) {
	v, ok := q.Get(objectKey(key.KindView, id))
	if !ok {
		return View{}, false
	}
	return DecodeView(v), true
}

func (s *Store) CreateFlow(tx *txn.Admin, namespaceID uint64, name string) (Flow, error) {
	if _, exists := tx.Get(nameKey(key.KindFlow, namespaceID, name)); exists {
		return Flow{}, &cerrors.CatalogAlreadyExists{Kind: cerrors.KindFlow, Name: name}
	}
	f := Flow{ID: s.NextID(key.KindFlow), Name: name, NamespaceID: namespaceID, Status: FlowActive}
	tx.Set(objectKey(key.KindFlow, f.ID), EncodeFlow(f))
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, f.ID)
	tx.Set(nameKey(key.KindFlow, namespaceID, name), idBuf)
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "flow", ID: f.ID})
	return f, nil
}

func (s *Store) GetFlow(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (Flow, bool) {
	v, ok := q.Get(objectKey(key.KindFlow, id))
	if !ok {
		return Flow{}, false
	}
	return DecodeFlow(v), true
}

// DropFlow removes a flow and its nodes/edges. Callers must Refresh the flow
// runtime after commit so the dropped flow stops processing immediately.
func (s *Store) DropFlow(tx *txn.Admin, f Flow, nodes []FlowNode, edges []FlowEdge) error {
	for _, e := range edges {
		tx.Remove(objectKey(key.KindFlowEdge, e.ID))
		tx.Track(txn.CatalogChange{Kind: "delete", Entity: "flow_edge", ID: e.ID})
	}
	for _, n := range nodes {
		tx.Remove(objectKey(key.KindFlowNode, n.ID))
		tx.Track(txn.CatalogChange{Kind: "delete", Entity: "flow_node", ID: n.ID})
	}
	tx.Remove(objectKey(key.KindFlow, f.ID))
	tx.Remove(nameKey(key.KindFlow, f.NamespaceID, f.Name))
	tx.Track(txn.CatalogChange{Kind: "delete", Entity: "flow", ID: f.ID})
	return nil
}

// SetFlowStatus updates a flow's status (e.g. Active -> Failed on a fatal
// operator error, spec §4.8.3).
func (s *Store) SetFlowStatus(tx *txn.Admin, f Flow, status FlowStatus) Flow {
	f.Status = status
	tx.Set(objectKey(key.KindFlow, f.ID), EncodeFlow(f))
	tx.Track(txn.CatalogChange{Kind: "update", Entity: "flow", ID: f.ID})
	return f
}

func (s *Store) AddFlowNode(tx *txn.Admin, flowID uint64, kind FlowNodeKind, config []byte) FlowNode {
	n := FlowNode{ID: s.NextID(key.KindFlowNode), FlowID: flowID, Kind: kind, Config: config}
	tx.Set(objectKey(key.KindFlowNode, n.ID), EncodeFlowNode(n))
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "flow_node", ID: n.ID})
	return n
}

func (s *Store) GetFlowNode(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (FlowNode, bool) {
	v, ok := q.Get(objectKey(key.KindFlowNode, id))
	if !ok {
		return FlowNode{}, false
	}
	return DecodeFlowNode(v), true
}

func (s *Store) AddFlowEdge(tx *txn.Admin, flowID, sourceID, targetID uint64) FlowEdge {
	e := FlowEdge{ID: s.NextID(key.KindFlowEdge), FlowID: flowID, SourceID: sourceID, TargetID: targetID}
	tx.Set(objectKey(key.KindFlowEdge, e.ID), EncodeFlowEdge(e))
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "flow_edge", ID: e.ID})
	return e
}

func (s *Store) CreateDictionary(tx *txn.Admin, namespaceID uint64, name string, valueKind, idKind value.Kind) Dictionary {
	d := Dictionary{ID: s.NextID(key.KindDictionary), NamespaceID: namespaceID, Name: name, ValueKind: valueKind, IDKind: idKind}
	tx.Set(objectKey(key.KindDictionary, d.ID), EncodeDictionary(d))
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "dictionary", ID: d.ID})
	return d
}

func (s *Store) CreatePolicy(tx *txn.Admin, target PolicyTarget, scope uint64, body []byte) Policy {
	p := Policy{ID: s.NextID(key.KindPolicy), Target: target, Scope: scope, Body: body}
	tx.Set(objectKey(key.KindPolicy, p.ID), EncodePolicy(p))
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "policy", ID: p.ID})
	return p
}

func (s *Store) GetFlowEdge(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (FlowEdge, bool) {
	v, ok := q.Get(objectKey(key.KindFlowEdge, id))
	if !ok {
		return FlowEdge{}, false
	}
	return DecodeFlowEdge(v), true
}

func (s *Store) GetDictionary(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (Dictionary, bool) {
	v, ok := q.Get(objectKey(key.KindDictionary, id))
	if !ok {
		return Dictionary{}, false
	}
	return DecodeDictionary(v), true
}

func (s *Store) GetPolicy(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (Policy, bool) {
	v, ok := q.Get(objectKey(key.KindPolicy, id))
	if !ok {
		return Policy{}, false
	}
	return DecodePolicy(v), true
}

func (s *Store) GetUser(q interface{ Get(key.EncodedKey) ([]byte, bool) }, id uint64) (User, bool) {
	v, ok := q.Get(objectKey(key.KindUser, id))
	if !ok {
		return User{}, false
	}
	return DecodeUser(v), true
}

// scanner is the read-only contract Scan* needs from a transaction.
type scanner interface {
	Scan(start, end key.EncodedKey) store.Cursor
}

func scanKind(q scanner, kind key.Kind) store.Cursor {
	start := key.ObjectKey{ObjKind: kind, ID: 0}.Encode()
	end := key.ObjectKey{ObjKind: kind + 1, ID: 0}.Encode()
	return q.Scan(start, end)
}

// ScanNamespaces returns every currently-live namespace, for catalog
// hydration at startup.
func (s *Store) ScanNamespaces(q scanner) []Namespace {
	c := scanKind(q, key.KindNamespace)
	defer c.Close()
	var out []Namespace
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeNamespace(e.Value))
	}
	return out
}

// ScanTables returns every currently-live table.
func (s *Store) ScanTables(q scanner) []Table {
	c := scanKind(q, key.KindTable)
	defer c.Close()
	var out []Table
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeTable(e.Value))
	}
	return out
}

// ScanViews returns every currently-live view.
func (s *Store) ScanViews(q scanner) []View {
	c := scanKind(q, key.KindView)
	defer c.Close()
	var out []View
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeView(e.Value))
	}
	return out
}

// ScanDictionaries returns every currently-live dictionary.
func (s *Store) ScanDictionaries(q scanner) []Dictionary {
	c := scanKind(q, key.KindDictionary)
	defer c.Close()
	var out []Dictionary
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeDictionary(e.Value))
	}
	return out
}

// ScanFlows returns every currently-live flow.
func (s *Store) ScanFlows(q scanner) []Flow {
	c := scanKind(q, key.KindFlow)
	defer c.Close()
	var out []Flow
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeFlow(e.Value))
	}
	return out
}

// ScanFlowNodes returns every currently-live flow node.
func (s *Store) ScanFlowNodes(q scanner) []FlowNode {
	c := scanKind(q, key.KindFlowNode)
	defer c.Close()
	var out []FlowNode
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeFlowNode(e.Value))
	}
	return out
}

// ScanFlowEdges returns every currently-live flow edge.
func (s *Store) ScanFlowEdges(q scanner) []FlowEdge {
	c := scanKind(q, key.KindFlowEdge)
	defer c.Close()
	var out []FlowEdge
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeFlowEdge(e.Value))
	}
	return out
}

// ScanPolicies returns every currently-live policy.
func (s *Store) ScanPolicies(q scanner) []Policy {
	c := scanKind(q, key.KindPolicy)
	defer c.Close()
	var out []Policy
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodePolicy(e.Value))
	}
	return out
}

// ScanUsers returns every currently-live user.
func (s *Store) ScanUsers(q scanner) []User {
	c := scanKind(q, key.KindUser)
	defer c.Close()
	var out []User
	for e, ok := c.Next(); ok; e, ok = c.Next() {
		out = append(out, DecodeUser(e.Value))
	}
	return out
}

func (s *Store) CreateUser(tx *txn.Admin, name string) (User, error) {
	if _, exists := tx.Get(nameKey(key.KindUser, 0, name)); exists {
		return User{}, &cerrors.CatalogAlreadyExists{Kind: cerrors.KindUser, Name: name}
	}
	u := User{ID: s.NextID(key.KindUser), Name: name}
	tx.Set(objectKey(key.KindUser, u.ID), EncodeUser(u))
	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, u.ID)
	tx.Set(nameKey(key.KindUser, 0, name), idBuf)
	tx.Track(txn.CatalogChange{Kind: "create", Entity: "user", ID: u.ID})
	return u, nil
}
