package boot

import (
	"github.com/pkg/errors"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/exec"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/flow"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// compileFlow walks a parsed pipeline and lays it out as a chain of
// catalog.FlowNode/FlowEdge rows, the persisted form flow.Compile later reads
// back into a runnable Graph (spec §4.8.1). Node configs carry only the
// expressions and names the parser already produced; a node's output column
// *kinds* are never needed here — a deferred view's declared column list
// (already validated by toCatalogColumns) is the schema the runtime attaches
// at flow.Runtime.Refresh via SetSourceSchema, not something this compiler
// infers stage by stage.
func (e *Engine) compileFlow(tx *txn.Admin, flowID uint64, pipeline *ast.Pipeline, sinkView catalog.View) error {
	var currentID uint64
	for i, stage := range pipeline.Stages {
		switch s := stage.(type) {
		case *ast.FromStage:
			if currentID != 0 {
				return errors.New("boot: FROM may only appear as the first pipeline stage")
			}
			id, err := e.addSourceNode(tx, flowID, s.Namespace, s.Name)
			if err != nil {
				return err
			}
			currentID = id

		case *ast.FilterStage:
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeFilter,
				flow.EncodeFilterConfig(flow.FilterConfig{Predicate: s.Predicate}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		case *ast.MapStage:
			kind := catalog.NodeMap
			if s.Extend {
				kind = catalog.NodeExtend
			}
			id := e.CatalogStore.AddFlowNode(tx, flowID, kind,
				flow.EncodeProjectConfig(flow.ProjectConfig{Names: s.Names, Exprs: s.Exprs}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		case *ast.TakeStage:
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeTake,
				flow.EncodeTakeConfig(flow.TakeConfig{N: s.N}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		case *ast.SortStage:
			names := make([]string, len(s.Columns))
			desc := make([]bool, len(s.Columns))
			for i, c := range s.Columns {
				names[i] = c.Name
				desc[i] = c.Desc
			}
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeSort,
				flow.EncodeSortConfig(flow.SortConfig{ColumnNames: names, Descending: desc}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		case *ast.JoinStage:
			if currentID == 0 {
				return errors.New("boot: JOIN requires a preceding source")
			}
			rightID, err := e.addSourceNode(tx, flowID, s.Namespace, s.Name)
			if err != nil {
				return err
			}
			jk, err := joinKindByte(s.Kind)
			if err != nil {
				return err
			}
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeJoin,
				flow.EncodeJoinConfig(flow.JoinConfig{Kind: jk, LeftKeys: s.LeftKeys, RightKeys: s.RightKeys}))
			// Edge insertion order fixes inbound ordinal: left first, then
			// right, matching exec.Join's Left/Right and flow/graph.go's
			// Compile (inbound[0] is left, inbound[1] is right).
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			e.CatalogStore.AddFlowEdge(tx, flowID, rightID, id.ID)
			currentID = id.ID

		case *ast.AggregateStage:
			aggName := make([]string, len(s.Aggs))
			aggFunc := make([]byte, len(s.Aggs))
			aggArg, err := collectAggArgs(s.Aggs, aggName, aggFunc)
			if err != nil {
				return err
			}
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeAggregate,
				flow.EncodeAggregateConfig(flow.AggregateConfig{
					ByNames: s.ByNames, ByExprs: s.By,
					AggName: aggName, AggFunc: aggFunc, AggArg: aggArg,
				}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		case *ast.ApplyStage:
			id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeApply,
				flow.EncodeApplyConfig(flow.ApplyConfig{Column: s.Column, Expr: s.Expr}))
			e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
			currentID = id.ID

		default:
			return errors.Errorf("boot: pipeline stage %d (%T) is not yet supported in a materialized flow", i, stage)
		}
	}

	if sinkView.ID != 0 {
		if currentID == 0 {
			return errors.New("boot: a materialized view's pipeline must start with FROM")
		}
		id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeSinkView,
			flow.EncodeSinkViewConfig(flow.SinkViewConfig{ViewID: sinkView.ID}))
		e.CatalogStore.AddFlowEdge(tx, flowID, currentID, id.ID)
	}
	return nil
}

// addSourceNode resolves a FROM/JOIN source by namespace+name and adds the
// matching NodeSourceTable/NodeSourceView flow node.
func (e *Engine) addSourceNode(tx *txn.Admin, flowID uint64, ns, name string) (uint64, error) {
	asOf := tx.Version()
	if t, err := e.resolveTable(asOf, ns, name); err == nil {
		id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeSourceTable,
			flow.EncodeSourceTableConfig(flow.SourceTableConfig{
				TableID:     t.ID,
				PKNamespace: catalog.RowNamespaceForTable(t.NamespaceID),
				PKName:      t.Name,
			}))
		return id.ID, nil
	}
	if v, err := e.resolveView(asOf, ns, name); err == nil {
		id := e.CatalogStore.AddFlowNode(tx, flowID, catalog.NodeSourceView,
			flow.EncodeSourceTableConfig(flow.SourceTableConfig{
				TableID:     v.ID,
				PKNamespace: catalog.RowNamespaceForView(v.NamespaceID),
				PKName:      v.Name,
			}))
		return id.ID, nil
	}
	return 0, errors.Errorf("boot: %s.%s is neither a table nor a view", ns, name)
}

// joinKindByte maps the parser's join-kind keyword to exec.JoinKind's wire
// byte, the same encoding flow.JoinConfig carries.
func joinKindByte(kind string) (byte, error) {
	switch kind {
	case "inner":
		return byte(exec.JoinInner), nil
	case "left":
		return byte(exec.JoinLeft), nil
	case "right":
		return byte(exec.JoinRight), nil
	case "full", "outer":
		return byte(exec.JoinOuter), nil
	default:
		return 0, errors.Errorf("boot: unknown join kind %q", kind)
	}
}

// aggFuncByte maps an aggregate function keyword to exec.AggFunc's wire byte.
func aggFuncByte(name string) (byte, error) {
	switch name {
	case "count":
		return byte(exec.AggCount), nil
	case "sum":
		return byte(exec.AggSum), nil
	case "min":
		return byte(exec.AggMin), nil
	case "max":
		return byte(exec.AggMax), nil
	default:
		return 0, errors.Errorf("boot: unknown aggregate function %q", name)
	}
}

// collectAggArgs mirrors AggregateStage.Aggs into the parallel name/func/arg
// slices flow.AggregateConfig stores, filling aggName and aggFunc in place
// and returning the per-aggregate argument expressions.
func collectAggArgs(aggs []ast.AggExpr, aggName []string, aggFunc []byte) ([]*expr.Expr, error) {
	args := make([]*expr.Expr, len(aggs))
	for i, a := range aggs {
		aggName[i] = a.Name
		b, err := aggFuncByte(a.Func)
		if err != nil {
			return nil, err
		}
		aggFunc[i] = b
		args[i] = a.Arg
	}
	return args, nil
}
