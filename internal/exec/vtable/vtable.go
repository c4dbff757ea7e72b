// Package vtable implements the system virtual tables (spec §4.6): stateless
// generators that read catalog lists at the current snapshot and emit a
// single batch. Each virtual table is identified by an ID declared in this
// package; VirtualScan dispatches on the id.
package vtable

import (
	"sort"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/catalog/mat"
	"github.com/reifydb/reifydb-sub032/internal/cdc"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// ID names a system virtual table (spec §4.6's list).
type ID uint8

const (
	Namespaces ID = iota
	Tables
	Views
	Flows
	FlowEdges
	FlowNodes
	Users
	PrimaryKeys
	PrimaryKeyColumns
	Types
	CdcConsumers
	PolicyOperations
	VirtualTables
)

// Generator produces one batch for a virtual table id at a given snapshot.
type Generator func(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns

// Generators maps each virtual table id to its stateless generator.
var Generators = map[ID]Generator{
	Namespaces:        generateNamespaces,
	Tables:            generateTables,
	Views:             generateViews,
	Flows:             generateFlows,
	FlowEdges:         generateFlowEdges,
	FlowNodes:         generateFlowNodes,
	Users:             generateUsers,
	PrimaryKeys:       generatePrimaryKeys,
	PrimaryKeyColumns: generatePrimaryKeyColumns,
	Types:             generateTypes,
	CdcConsumers:      generateCdcConsumers,
	PolicyOperations:  generatePolicyOperations,
	VirtualTables:     generateVirtualTables,
}

var namespaceHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "name", Kind: value.KindUtf8},
	{Name: "parent_id", Kind: value.KindUint8},
}

func generateNamespaces(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(namespaceHeaders)
	for _, n := range cat.NamespacesAt(asOf) {
		out.AppendRow(n.ID, []value.Value{
			{Kind: value.KindUint8, Uint: n.ID, Defined: true},
			{Kind: value.KindUtf8, Str: n.Name, Defined: true},
			{Kind: value.KindUint8, Uint: n.ParentID, Defined: true},
		})
	}
	return out
}

var tableHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "name", Kind: value.KindUtf8},
	{Name: "namespace_id", Kind: value.KindUint8},
	{Name: "column_count", Kind: value.KindUint8},
}

func generateTables(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(tableHeaders)
	for _, t := range cat.TablesAt(asOf) {
		out.AppendRow(t.ID, []value.Value{
			{Kind: value.KindUint8, Uint: t.ID, Defined: true},
			{Kind: value.KindUtf8, Str: t.Name, Defined: true},
			{Kind: value.KindUint8, Uint: t.NamespaceID, Defined: true},
			{Kind: value.KindUint8, Uint: uint64(len(t.Columns)), Defined: true},
		})
	}
	return out
}

var viewHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "name", Kind: value.KindUtf8},
	{Name: "namespace_id", Kind: value.KindUint8},
	{Name: "kind", Kind: value.KindUint1},
	{Name: "flow_id", Kind: value.KindUint8},
}

func generateViews(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(viewHeaders)
	for _, v := range cat.ViewsAt(asOf) {
		out.AppendRow(v.ID, []value.Value{
			{Kind: value.KindUint8, Uint: v.ID, Defined: true},
			{Kind: value.KindUtf8, Str: v.Name, Defined: true},
			{Kind: value.KindUint8, Uint: v.NamespaceID, Defined: true},
			{Kind: value.KindUint1, Uint: uint64(v.Kind), Defined: true},
			{Kind: value.KindUint8, Uint: v.FlowID, Defined: true},
		})
	}
	return out
}

var flowHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "name", Kind: value.KindUtf8},
	{Name: "namespace_id", Kind: value.KindUint8},
	{Name: "status", Kind: value.KindUint1},
}

func generateFlows(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(flowHeaders)
	for _, f := range cat.FlowsAt(asOf) {
		out.AppendRow(f.ID, []value.Value{
			{Kind: value.KindUint8, Uint: f.ID, Defined: true},
			{Kind: value.KindUtf8, Str: f.Name, Defined: true},
			{Kind: value.KindUint8, Uint: f.NamespaceID, Defined: true},
			{Kind: value.KindUint1, Uint: uint64(f.Status), Defined: true},
		})
	}
	return out
}

var flowEdgeHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "flow_id", Kind: value.KindUint8},
	{Name: "source_id", Kind: value.KindUint8},
	{Name: "target_id", Kind: value.KindUint8},
}

func generateFlowEdges(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(flowEdgeHeaders)
	for _, e := range cat.FlowEdgesAt(asOf) {
		out.AppendRow(e.ID, []value.Value{
			{Kind: value.KindUint8, Uint: e.ID, Defined: true},
			{Kind: value.KindUint8, Uint: e.FlowID, Defined: true},
			{Kind: value.KindUint8, Uint: e.SourceID, Defined: true},
			{Kind: value.KindUint8, Uint: e.TargetID, Defined: true},
		})
	}
	return out
}

var flowNodeHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "flow_id", Kind: value.KindUint8},
	{Name: "kind", Kind: value.KindUint1},
}

func generateFlowNodes(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(flowNodeHeaders)
	for _, n := range cat.FlowNodesAt(asOf) {
		out.AppendRow(n.ID, []value.Value{
			{Kind: value.KindUint8, Uint: n.ID, Defined: true},
			{Kind: value.KindUint8, Uint: n.FlowID, Defined: true},
			{Kind: value.KindUint1, Uint: uint64(n.Kind), Defined: true},
		})
	}
	return out
}

var userHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "name", Kind: value.KindUtf8},
}

func generateUsers(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(userHeaders)
	for _, u := range cat.UsersAt(asOf) {
		out.AppendRow(u.ID, []value.Value{
			{Kind: value.KindUint8, Uint: u.ID, Defined: true},
			{Kind: value.KindUtf8, Str: u.Name, Defined: true},
		})
	}
	return out
}

// primaryKeyEntityKind discriminates which catalog entity a primary_keys row
// belongs to, since tables and views each carry their own PrimaryKey.
const (
	pkEntityTable uint64 = iota
	pkEntityView
)

var primaryKeyHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "entity_kind", Kind: value.KindUint1},
	{Name: "entity_id", Kind: value.KindUint8},
	{Name: "column_count", Kind: value.KindUint8},
}

// generatePrimaryKeys lists every declared primary key across tables and
// views (spec §4.6 system.primary_keys).
func generatePrimaryKeys(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(primaryKeyHeaders)
	for _, t := range cat.TablesAt(asOf) {
		if len(t.PrimaryKey.ColumnIDs) == 0 {
			continue
		}
		out.AppendRow(t.PrimaryKey.ID, []value.Value{
			{Kind: value.KindUint8, Uint: t.PrimaryKey.ID, Defined: true},
			{Kind: value.KindUint1, Uint: pkEntityTable, Defined: true},
			{Kind: value.KindUint8, Uint: t.ID, Defined: true},
			{Kind: value.KindUint8, Uint: uint64(len(t.PrimaryKey.ColumnIDs)), Defined: true},
		})
	}
	for _, v := range cat.ViewsAt(asOf) {
		if len(v.PrimaryKey.ColumnIDs) == 0 {
			continue
		}
		out.AppendRow(v.PrimaryKey.ID, []value.Value{
			{Kind: value.KindUint8, Uint: v.PrimaryKey.ID, Defined: true},
			{Kind: value.KindUint1, Uint: pkEntityView, Defined: true},
			{Kind: value.KindUint8, Uint: v.ID, Defined: true},
			{Kind: value.KindUint8, Uint: uint64(len(v.PrimaryKey.ColumnIDs)), Defined: true},
		})
	}
	return out
}

var primaryKeyColumnHeaders = []exec.ColumnHeader{
	{Name: "primary_key_id", Kind: value.KindUint8},
	{Name: "column_id", Kind: value.KindUint8},
	{Name: "position", Kind: value.KindUint8},
}

// generatePrimaryKeyColumns lists each primary key's column ids in
// declaration order (spec §4.6 system.primary_key_columns).
func generatePrimaryKeyColumns(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(primaryKeyColumnHeaders)
	row := uint64(0)
	appendPK := func(pk catalog.PrimaryKey) {
		for pos, colID := range pk.ColumnIDs {
			out.AppendRow(row, []value.Value{
				{Kind: value.KindUint8, Uint: pk.ID, Defined: true},
				{Kind: value.KindUint8, Uint: colID, Defined: true},
				{Kind: value.KindUint8, Uint: uint64(pos), Defined: true},
			})
			row++
		}
	}
	for _, t := range cat.TablesAt(asOf) {
		appendPK(t.PrimaryKey)
	}
	for _, v := range cat.ViewsAt(asOf) {
		appendPK(v.PrimaryKey)
	}
	return out
}

var typeHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint1},
	{Name: "name", Kind: value.KindUtf8},
}

// allKinds enumerates the typed value universe (spec §3.1) in declaration
// order, for system.types.
var allKinds = []value.Kind{
	value.KindBoolean,
	value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8, value.KindInt16,
	value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8, value.KindUint16,
	value.KindFloat4, value.KindFloat8, value.KindDecimal,
	value.KindInt, value.KindUint,
	value.KindUtf8, value.KindBlob,
	value.KindDate, value.KindDateTime, value.KindTime, value.KindInterval,
	value.KindUuid4, value.KindUuid7,
	value.KindIdentityId, value.KindDictionaryId, value.KindRowNumber,
}

// generateTypes lists the scalar type universe (spec §4.6 system.types).
func generateTypes(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(typeHeaders)
	for i, k := range allKinds {
		out.AppendRow(uint64(i), []value.Value{
			{Kind: value.KindUint1, Uint: uint64(k), Defined: true},
			{Kind: value.KindUtf8, Str: k.String(), Defined: true},
		})
	}
	return out
}

var policyOperationHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint8},
	{Name: "target", Kind: value.KindUint1},
	{Name: "scope", Kind: value.KindUint8},
	{Name: "body_size", Kind: value.KindUint8},
}

// generatePolicyOperations lists every declared policy, keyed the way
// catalog.Policy already discriminates session/statement/feature targets
// (spec §4.6 system.policy_operations).
func generatePolicyOperations(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(policyOperationHeaders)
	for _, p := range cat.PoliciesAt(asOf) {
		out.AppendRow(p.ID, []value.Value{
			{Kind: value.KindUint8, Uint: p.ID, Defined: true},
			{Kind: value.KindUint1, Uint: uint64(p.Target), Defined: true},
			{Kind: value.KindUint8, Uint: p.Scope, Defined: true},
			{Kind: value.KindUint8, Uint: uint64(len(p.Body)), Defined: true},
		})
	}
	return out
}

var virtualTableHeaders = []exec.ColumnHeader{
	{Name: "id", Kind: value.KindUint1},
	{Name: "name", Kind: value.KindUtf8},
}

// virtualTableNames names every ID this package declares, in declaration
// order, for system.virtual_tables to list itself.
var virtualTableNames = map[ID]string{
	Namespaces:        "namespaces",
	Tables:            "tables",
	Views:             "views",
	Flows:             "flows",
	FlowEdges:         "flow_edges",
	FlowNodes:         "flow_nodes",
	Users:             "users",
	PrimaryKeys:       "primary_keys",
	PrimaryKeyColumns: "primary_key_columns",
	Types:             "types",
	CdcConsumers:      "cdc_consumers",
	PolicyOperations:  "policy_operations",
	VirtualTables:     "virtual_tables",
}

// generateVirtualTables lists every virtual table this package knows how to
// generate (spec §4.6 system.virtual_tables), including itself.
func generateVirtualTables(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(virtualTableHeaders)
	ids := make([]ID, 0, len(virtualTableNames))
	for id := range virtualTableNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out.AppendRow(uint64(id), []value.Value{
			{Kind: value.KindUint1, Uint: uint64(id), Defined: true},
			{Kind: value.KindUtf8, Str: virtualTableNames[id], Defined: true},
		})
	}
	return out
}

var cdcConsumerHeaders = []exec.ColumnHeader{
	{Name: "consumer_id", Kind: value.KindUtf8},
	{Name: "checkpoint", Kind: value.KindUint8},
}

// knownConsumers lists the consumer ids system.cdc_consumers reports on;
// the flow engine's reserved id is always present.
var knownConsumers = []string{cdc.FlowConsumerID}

func generateCdcConsumers(cat *mat.Catalog, log *cdc.Log, asOf store.Version) *exec.Columns {
	out := exec.NewColumns(cdcConsumerHeaders)
	for i, id := range knownConsumers {
		out.AppendRow(uint64(i), []value.Value{
			{Kind: value.KindUtf8, Str: id, Defined: true},
			{Kind: value.KindUint8, Uint: uint64(log.Checkpoint(id)), Defined: true},
		})
	}
	return out
}
