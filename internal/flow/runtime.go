package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/catalog/mat"
	"github.com/reifydb/reifydb-sub032/internal/cdc"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/keycode"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/oracle"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// Runtime drives every active flow from the CDC log (spec §4.8.2): it
// polls the log past the flow consumer's checkpoint, routes each commit's
// changes into the matching flows' source nodes, dispatches through each
// flow's compiled DAG in topological order, materializes sink-view output,
// and advances the shared checkpoint once every flow has processed a
// commit. Grounded on the teacher's resolver.readInto/process poll-
// accumulate-flush loop (internal/source/cdc/resolver.go); BackupPolling's
// timer-driven retry becomes PollInterval here.
type Runtime struct {
	Log          *cdc.Log
	Backend      store.MultiVersion
	NodeState    store.SingleVersion
	Catalog      *mat.Catalog
	CatalogStore *catalog.Store
	Oracle       *oracle.Oracle
	PollInterval time.Duration

	graphs map[uint64]*Graph
}

// NewRuntime constructs an idle Runtime; call Refresh before Run to compile
// the currently-active flows.
func NewRuntime(l *cdc.Log, backend store.MultiVersion, nodeState store.SingleVersion,
	cat *mat.Catalog, catStore *catalog.Store, ora *oracle.Oracle, pollInterval time.Duration) *Runtime {
	return &Runtime{
		Log: l, Backend: backend, NodeState: nodeState, Catalog: cat, CatalogStore: catStore,
		Oracle: ora, PollInterval: pollInterval, graphs: make(map[uint64]*Graph),
	}
}

// Refresh (re)compiles every active flow's DAG at the given snapshot. It
// must be called after any DDL change to a flow (CREATE/DROP FLOW) and at
// startup.
func (r *Runtime) Refresh(asOf store.Version) error {
	graphs := make(map[uint64]*Graph)
	for _, f := range r.Catalog.FlowsAt(asOf) {
		if f.Status != catalog.FlowActive {
			continue
		}
		nodes := r.Catalog.FlowNodesAt(asOf)
		edges := r.Catalog.FlowEdgesAt(asOf)
		var myNodes []catalog.FlowNode
		for _, n := range nodes {
			if n.FlowID == f.ID {
				myNodes = append(myNodes, n)
			}
		}
		var myEdges []catalog.FlowEdge
		for _, e := range edges {
			if e.FlowID == f.ID {
				myEdges = append(myEdges, e)
			}
		}
		eval := &expr.Evaluator{}
		g, err := Compile(f.ID, myNodes, myEdges, eval, r.NodeState)
		if err != nil {
			log.WithError(err).WithField("flow", f.Name).Warn("failed to compile flow, skipping it")
			continue
		}
		for _, n := range myNodes {
			if n.Kind != catalog.NodeSourceTable {
				continue
			}
			cfg := DecodeSourceTableConfig(n.Config)
			if tbl, ok := r.Catalog.TableAt(cfg.TableID, asOf); ok {
				g.SetSourceSchema(n.ID, rowSchemaOf(tbl.Columns))
			}
		}
		graphs[f.ID] = g
	}
	r.graphs = graphs
	return nil
}

// Run polls the CDC log past the flow consumer's checkpoint until ctx is
// canceled (spec §4.8.2's runtime loop).
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.tick(ctx); err != nil {
			log.WithError(err).Warn("flow runtime tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runtime) tick(ctx context.Context) error {
	timer := prometheus.NewTimer(pollDurations)
	defer timer.ObserveDuration()

	checkpoint := r.Log.Checkpoint(cdc.FlowConsumerID)
	records := r.Log.Range(checkpoint+1, checkpoint+1+1000)
	if len(records) == 0 {
		return nil
	}

	var g errgroup.Group
	for flowID, graph := range r.graphs {
		flowID, graph := flowID, graph
		g.Go(func() error {
			return r.isolate(flowID, func() error {
				for _, rec := range records {
					if err := r.dispatch(flowID, graph, rec); err != nil {
						return err
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		pollErrors.Inc()
		return err
	}

	last := records[len(records)-1].Version
	return r.Log.AdvanceCheckpoint(cdc.FlowConsumerID, last)
}

// isolate wraps one flow's dispatch in a fatal-error boundary: an error
// marks the flow Failed rather than aborting every other flow, mirroring
// the teacher's chaos.go decorator-over-interface isolation shape
// (internal/source/logical/chaos.go's WithChaos wrapping a Dialect).
func (r *Runtime) isolate(flowID uint64, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	dispatchFailures.WithLabelValues(fmt.Sprintf("%d", flowID)).Inc()
	log.WithError(err).WithField("flow_id", flowID).Error("flow dispatch failed, marking failed")
	if f, ok := r.Catalog.FlowAt(flowID, r.Log.Checkpoint(cdc.FlowConsumerID)); ok {
		admin := txn.BeginAdmin(r.Oracle, r.Backend, r.Log)
		r.CatalogStore.SetFlowStatus(admin, f, catalog.FlowFailed)
		if _, commitErr := admin.Commit(); commitErr != nil {
			log.WithError(commitErr).WithField("flow_id", flowID).Error("failed to persist flow-failed status")
		}
	}
	return nil
}

// dispatch routes one CDC record's changes into the graph's matching
// source nodes and runs the topological pass.
func (r *Runtime) dispatch(flowID uint64, g *Graph, rec cdc.Record) error {
	timer := prometheus.NewTimer(dispatchDurations.WithLabelValues(fmt.Sprintf("%d", flowID)))
	defer timer.ObserveDuration()

	inbox := make(map[uint64]Diff)
	for _, change := range uniqueByKey(rec.Changes) {
		scope, ok := tableScopeOf(change.Key)
		if !ok {
			continue
		}
		nodeIDs := g.sourceTables[scope]
		if len(nodeIDs) == 0 {
			continue
		}
		for _, id := range nodeIDs {
			schema, _ := g.SourceSchema(id)
			fc, err := toFlowChange(change, schema)
			if err != nil {
				return err
			}
			inbox[id] = append(inbox[id], fc)
		}
	}
	if len(inbox) == 0 {
		return nil
	}

	for _, id := range g.order {
		cn := g.nodes[id]
		in := inbox[id]
		if len(in) == 0 {
			continue
		}
		input := 0
		for i, src := range cn.inbound {
			if _, has := inbox[src]; has {
				input = i
			}
		}
		out, err := cn.node.Apply(input, in)
		if err != nil {
			return fmt.Errorf("node %d (%s): %w", id, kindName(cn.kind), err)
		}
		if viewID, isSink := g.sinkViews[id]; isSink {
			if err := r.materialize(viewID, rec.Version, out); err != nil {
				return err
			}
			continue
		}
		for _, dst := range cn.outbound {
			inbox[dst] = append(inbox[dst], out...)
		}
	}
	return nil
}

// materialize writes a sink node's emitted diff into the backend as rows
// under the view's row-key space, at the same commit version as the
// source change (spec §4.8 "Deferred views materialize incrementally").
func (r *Runtime) materialize(viewID uint64, version store.Version, diff Diff) error {
	if len(diff) == 0 {
		return nil
	}
	view, ok := r.Catalog.ViewAt(viewID, version)
	if !ok {
		return nil
	}
	pkNamespace := catalog.RowNamespaceForView(view.NamespaceID)
	var deltas []store.Delta
	for _, c := range diff {
		rk := key.RowKey{PKNamespace: pkNamespace, PKName: view.Name, Value: c.Key}.Encode()
		switch c.Kind {
		case Insert, Update:
			deltas = append(deltas, store.SetDelta(rk, c.After.Bytes()))
		case Remove:
			deltas = append(deltas, store.RemoveDelta(rk))
		}
	}
	return r.Backend.Commit(deltas, version)
}

// tableScopeOf recovers a CDC change's source scope string
// ("pkNamespace\x00pkName") from its encoded row key, matching how
// Graph.sourceTables indexes source-table nodes. Only row keys
// (key.KindRow) carry a recognizable scope; catalog/CDC-internal keys are
// ignored here. Mirrors key.RowKey.Encode's own layout exactly (kind byte,
// then two keycode-length-prefixed strings).
func tableScopeOf(k key.EncodedKey) (scope string, ok bool) {
	if len(k) == 0 || key.Kind(k[0]) != key.KindRow {
		return "", false
	}
	defer func() {
		if recover() != nil {
			scope, ok = "", false
		}
	}()
	rest := []byte(k[1:])
	ns, rest := keycode.GetString(rest)
	name, _ := keycode.GetString(rest)
	return ns + "\x00" + name, true
}

// toFlowChange decodes a CDC change's pre/post row bytes against the
// consuming source node's schema (resolved by Runtime.Refresh from the
// owning table's current columns).
func toFlowChange(c cdc.Change, schema *row.Schema) (Change, error) {
	fc := Change{Key: []byte(c.Key)}
	switch c.Kind {
	case cdc.Insert:
		fc.Kind = Insert
		fc.After = decodeRow(schema, c.Post)
	case cdc.Update:
		fc.Kind = Update
		fc.Before = decodeRow(schema, c.Pre)
		fc.After = decodeRow(schema, c.Post)
	case cdc.Delete:
		fc.Kind = Remove
		fc.Before = decodeRow(schema, c.Pre)
	}
	return fc, nil
}

func decodeRow(schema *row.Schema, buf []byte) *row.Row {
	if buf == nil {
		return nil
	}
	return row.Wrap(schema, buf)
}

// uniqueByKey keeps one change per distinct row key, the one with the
// highest sequence number, so a row touched twice within the same commit
// only flows through the graph once. Grounded on the teacher's
// msort.UniqueByKey last-one-wins compaction.
func uniqueByKey(changes []cdc.Change) []cdc.Change {
	seenIdx := make(map[string]int, len(changes))
	dest := len(changes)
	for src := len(changes) - 1; src >= 0; src-- {
		k := string(changes[src].Key)
		if curIdx, found := seenIdx[k]; found {
			if changes[src].Sequence > changes[curIdx].Sequence {
				changes[curIdx] = changes[src]
			}
		} else {
			dest--
			seenIdx[k] = dest
			changes[dest] = changes[src]
		}
	}
	return changes[dest:]
}
