package flow

import (
	"sort"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// compiledNode pairs a runtime Node with the catalog metadata it was built
// from, plus its topological fan-in/fan-out.
type compiledNode struct {
	id        uint64
	kind      catalog.FlowNodeKind
	node      Node
	inbound   []uint64 // source node ids, ordered; index is this node's "input" ordinal
	outbound  []uint64
	sourceCfg SourceTableConfig // set only for NodeSourceTable nodes
}

// Graph is one compiled flow: a DAG of operators ready to process CDC-
// sourced diffs (spec §4.8 "A flow compiles to a DAG of operators").
type Graph struct {
	FlowID uint64
	nodes  map[uint64]*compiledNode
	order  []uint64 // topological order

	// sourceTables maps a source table's row-key scope to the node ids
	// that consume it, so the runtime can route a CDC change without
	// scanning every node.
	sourceTables map[string][]uint64
	sinkViews    map[uint64]uint64 // node id -> view id

	// sourceSchemas holds each NodeSourceTable node's row schema,
	// resolved by the caller (Runtime.Refresh, which has catalog
	// access) and set via SetSourceSchema. Used to decode raw CDC row
	// bytes into Rows before a change enters the DAG.
	sourceSchemas map[uint64]*row.Schema
}

// SetSourceSchema records the row schema a NodeSourceTable node's incoming
// CDC changes should be decoded with.
func (g *Graph) SetSourceSchema(nodeID uint64, schema *row.Schema) {
	if g.sourceSchemas == nil {
		g.sourceSchemas = make(map[uint64]*row.Schema)
	}
	g.sourceSchemas[nodeID] = schema
}

// SourceSchema returns the schema previously set for a source node, if any.
func (g *Graph) SourceSchema(nodeID uint64) (*row.Schema, bool) {
	s, ok := g.sourceSchemas[nodeID]
	return s, ok
}

// Compile builds a Graph for one flow from its catalog-declared nodes and
// edges at the given snapshot (spec §4.8 "compiled once per flow version").
func Compile(flowID uint64, flowNodes []catalog.FlowNode, flowEdges []catalog.FlowEdge,
	eval *expr.Evaluator, state store.SingleVersion) (*Graph, error) {

	g := &Graph{
		FlowID:       flowID,
		nodes:        make(map[uint64]*compiledNode),
		sourceTables: make(map[string][]uint64),
		sinkViews:    make(map[uint64]uint64),
	}

	for _, fn := range flowNodes {
		n, err := buildNode(fn, eval, state)
		if err != nil {
			return nil, err
		}
		cn := &compiledNode{id: fn.ID, kind: fn.Kind, node: n}
		g.nodes[fn.ID] = cn
		switch fn.Kind {
		case catalog.NodeSourceTable:
			cfg := DecodeSourceTableConfig(fn.Config)
			cn.sourceCfg = cfg
			scope := cfg.PKNamespace + "\x00" + cfg.PKName
			g.sourceTables[scope] = append(g.sourceTables[scope], fn.ID)
		case catalog.NodeSinkView:
			cfg := DecodeSinkViewConfig(fn.Config)
			g.sinkViews[fn.ID] = cfg.ViewID
		}
	}

	for _, fe := range flowEdges {
		src, ok := g.nodes[fe.SourceID]
		if !ok {
			return nil, cerrors.Internal("flow edge references unknown source node")
		}
		dst, ok := g.nodes[fe.TargetID]
		if !ok {
			return nil, cerrors.Internal("flow edge references unknown target node")
		}
		src.outbound = append(src.outbound, dst.id)
		dst.inbound = append(dst.inbound, src.id)
	}

	order, err := topoSort(g.nodes)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoSort runs Kahn's algorithm, breaking ties by node id for
// deterministic dispatch order across runs.
func topoSort(nodes map[uint64]*compiledNode) ([]uint64, error) {
	indegree := make(map[uint64]int, len(nodes))
	for id, n := range nodes {
		indegree[id] = len(n.inbound)
	}
	var ready []uint64
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	var order []uint64
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, out := range nodes[id].outbound {
			indegree[out]--
			if indegree[out] == 0 {
				ready = append(ready, out)
			}
		}
	}
	if len(order) != len(nodes) {
		return nil, cerrors.Internal("flow graph contains a cycle")
	}
	return order, nil
}

func buildNode(fn catalog.FlowNode, eval *expr.Evaluator, state store.SingleVersion) (Node, error) {
	switch fn.Kind {
	case catalog.NodeSourceTable, catalog.NodeSourceView, catalog.NodeSourceRingBuffer, catalog.NodeSourceInline:
		return unionNode{}, nil // sources just relay what the runtime hands them
	case catalog.NodeFilter:
		cfg := DecodeFilterConfig(fn.Config)
		return &filterNode{pred: cfg.Predicate, eval: eval}, nil
	case catalog.NodeMap:
		cfg := DecodeProjectConfig(fn.Config)
		return &projectNode{names: cfg.Names, exprs: cfg.Exprs, eval: eval, extend: false}, nil
	case catalog.NodeExtend:
		cfg := DecodeProjectConfig(fn.Config)
		return &projectNode{names: cfg.Names, exprs: cfg.Exprs, eval: eval, extend: true}, nil
	case catalog.NodeUnion:
		return unionNode{}, nil
	case catalog.NodeApply:
		cfg := DecodeApplyConfig(fn.Config)
		return &applyNode{column: cfg.Column, expr: cfg.Expr, eval: eval}, nil
	case catalog.NodeDistinct:
		cfg := DecodeDistinctConfig(fn.Config)
		return &distinctNode{exprs: cfg.Exprs, eval: eval, state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeTake:
		cfg := DecodeTakeConfig(fn.Config)
		return &takeNode{n: cfg.N, state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeAggregate:
		cfg := DecodeAggregateConfig(fn.Config)
		aggs := make([]aggSpec, len(cfg.AggName))
		for i := range aggs {
			aggs[i] = aggSpec{name: cfg.AggName[i], fn: cfg.AggFunc[i], arg: cfg.AggArg[i]}
		}
		return &aggregateNode{byNames: cfg.ByNames, byExprs: cfg.ByExprs, aggs: aggs, eval: eval,
			state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeJoin:
		cfg := DecodeJoinConfig(fn.Config)
		return &joinNode{kind: joinKind(cfg.Kind), leftKeys: cfg.LeftKeys, rightKeys: cfg.RightKeys,
			eval: eval, state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeSort:
		cfg := DecodeSortConfig(fn.Config)
		keys := make([]sortKey, len(cfg.ColumnNames))
		for i, name := range cfg.ColumnNames {
			keys[i] = sortKey{column: name, descending: cfg.Descending[i]}
		}
		return &sortNode{keys: keys, state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeWindow:
		// Windowed aggregation reuses the same persisted-accumulator
		// machinery as Aggregate, compiled from an AggregateConfig; no
		// window boundary is applied, so groups accumulate over every row.
		cfg := DecodeAggregateConfig(fn.Config)
		aggs := make([]aggSpec, len(cfg.AggName))
		for i := range aggs {
			aggs[i] = aggSpec{name: cfg.AggName[i], fn: cfg.AggFunc[i], arg: cfg.AggArg[i]}
		}
		return &aggregateNode{byNames: cfg.ByNames, byExprs: cfg.ByExprs, aggs: aggs, eval: eval,
			state: state, flowID: fn.FlowID, nodeID: fn.ID}, nil
	case catalog.NodeSinkView:
		return unionNode{}, nil // the runtime materializes sink output directly; no transform needed
	default:
		return nil, cerrors.Internal("unknown flow node kind: " + kindName(fn.Kind))
	}
}
