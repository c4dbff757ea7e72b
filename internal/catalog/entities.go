// Package catalog implements persisted schema objects (spec §3.5): one
// encoded row per entity, keyed via internal/core/key's object/name-index
// key kinds, read and written through an Admin transaction so that catalog
// mutation shares the oracle's commit protocol. internal/catalog/mat holds
// the in-memory materialized projection (spec §3.6).
package catalog

import (
	"fmt"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// FlowStatus tracks a flow's runtime health (spec §3.5 Flow).
type FlowStatus uint8

const (
	FlowActive FlowStatus = iota
	FlowPaused
	FlowFailed
)

// Namespace groups tables, views, flows, and dictionaries (spec §3.5).
type Namespace struct {
	ID       uint64
	Name     string
	ParentID uint64 // 0 = root
}

// ColumnDef describes one column of a table or view.
type ColumnDef struct {
	ID             uint64
	Name           string
	Kind           value.Kind
	Constraint     Constraint
	Index          int
	AutoIncrement  bool
	DictionaryID   uint64 // 0 if not dictionary-encoded
}

// Constraint mirrors row.Constraint at the catalog level (kept distinct so
// the catalog package does not depend on row's offset/size bookkeeping).
type Constraint struct {
	MaxBytes     uint32
	Precision    uint8
	Scale        uint8
	HasPrecision bool
}

// Table is a DML target and CDC source (spec §3.5).
type Table struct {
	ID          uint64
	Name        string
	NamespaceID uint64
	Columns     []ColumnDef
	PrimaryKey  PrimaryKey
}

// RowNamespaceForTable and RowNamespaceForView name the key.RowKey
// PKNamespace a table or view's rows are stored under, scoped by the
// owning catalog namespace so two namespaces can each hold a table/view of
// the same name without their rows colliding on disk.
func RowNamespaceForTable(namespaceID uint64) string {
	return fmt.Sprintf("table_ns_%d", namespaceID)
}

func RowNamespaceForView(namespaceID uint64) string {
	return fmt.Sprintf("view_ns_%d", namespaceID)
}

// ViewKind distinguishes deferred (flow-maintained) from transactional
// (inline-updated) views.
type ViewKind uint8

const (
	ViewDeferred ViewKind = iota
	ViewTransactional
)

// View is a table-shaped entity maintained either by the flow engine
// (deferred) or inline on source writes (transactional).
type View struct {
	ID          uint64
	Name        string
	NamespaceID uint64
	Kind        ViewKind
	Columns     []ColumnDef
	PrimaryKey  PrimaryKey
	FlowID      uint64 // 0 unless Kind == ViewDeferred
}

// Dictionary interns repeated values under compact ids (spec §3.5).
type Dictionary struct {
	ID          uint64
	NamespaceID uint64
	Name        string
	ValueKind   value.Kind
	IDKind      value.Kind
}

// PrimaryKey is an ordered list of column ids attached to a table or view.
type PrimaryKey struct {
	ID        uint64
	ColumnIDs []uint64
}

// FlowNodeKind enumerates DAG vertex types (spec §4.8.1).
type FlowNodeKind uint8

const (
	NodeSourceTable FlowNodeKind = iota
	NodeSourceView
	NodeSourceRingBuffer
	NodeSourceInline
	NodeFilter
	NodeMap
	NodeExtend
	NodeJoin
	NodeAggregate
	NodeUnion
	NodeSort
	NodeTake
	NodeDistinct
	NodeApply
	NodeWindow
	NodeSinkView
)

// Stateful reports whether a node kind maintains persistent operator state
// (spec §4.8.1: "Join, Aggregate, Sort, Take, Distinct, Window").
func (k FlowNodeKind) Stateful() bool {
	switch k {
	case NodeJoin, NodeAggregate, NodeSort, NodeTake, NodeDistinct, NodeWindow:
		return true
	default:
		return false
	}
}

// Flow is a compiled DAG maintaining one or more deferred views (spec §3.5).
type Flow struct {
	ID          uint64
	Name        string
	NamespaceID uint64
	Status      FlowStatus
}

// FlowNode is one DAG vertex.
type FlowNode struct {
	ID     uint64
	FlowID uint64
	Kind   FlowNodeKind
	// Config carries node-kind-specific parameters (filter predicate,
	// aggregate spec, join keys, ...), owned by internal/flow.
	Config []byte
}

// FlowEdge is one DAG edge, source -> target.
type FlowEdge struct {
	ID       uint64
	FlowID   uint64
	SourceID uint64
	TargetID uint64
}

// PolicyTarget discriminates what a Policy governs. Two historically-named
// policy tables (a "security policy" table and a separate "policy" table)
// collapse into this one entity with a Target discriminator — an Open
// Question in the originating specification, resolved here as the spec's
// own suggested resolution.
type PolicyTarget uint8

const (
	PolicySession PolicyTarget = iota
	PolicyStatement
	PolicyFeature
)

// Policy governs sessions, statements, or features (spec §3.5).
type Policy struct {
	ID     uint64
	Target PolicyTarget
	Scope  uint64 // namespace/table/user id the policy applies to, 0 = global
	Body   []byte // operation-specific policy body, opaque to the catalog
}

type User struct {
	ID   uint64
	Name string
}

type Role struct {
	ID   uint64
	Name string
}

type UserRole struct {
	ID     uint64
	UserID uint64
	RoleID uint64
}

type UserAuthentication struct {
	ID     uint64
	UserID uint64
	Method string
	Secret []byte
}
