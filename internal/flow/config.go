package flow

import (
	"encoding/binary"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
)

// FlowNode.Config is a small, fixed, internal Go shape (never a DDL-driven
// format), so it's hand-encoded the same way internal/catalog/codec.go and
// internal/exec/expr/codec.go encode their own shapes.

func putString(buf []byte, s string) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}

func getString(buf []byte) (string, []byte) {
	n := binary.BigEndian.Uint32(buf[:4])
	rest := buf[4:]
	return string(rest[:n]), rest[n:]
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func getUint64(buf []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(buf[:8]), buf[8:]
}

func putExprList(buf []byte, list []*expr.Expr) []byte {
	buf = putUint64(buf, uint64(len(list)))
	for _, e := range list {
		ebuf := expr.EncodeExpr(e)
		buf = putUint64(buf, uint64(len(ebuf)))
		buf = append(buf, ebuf...)
	}
	return buf
}

func getExprList(buf []byte) ([]*expr.Expr, []byte) {
	n, rest := getUint64(buf)
	out := make([]*expr.Expr, 0, n)
	for i := uint64(0); i < n; i++ {
		l, r := getUint64(rest)
		rest = r
		e, _ := expr.DecodeExpr(rest[:l])
		rest = rest[l:]
		out = append(out, e)
	}
	return out, rest
}

// SourceTableConfig names the table a NodeSourceTable reads from, by its
// row key's primary-key identity (internal/core/key.RowKey's scoping
// fields), letting the runtime recognize which CDC changes belong to it.
type SourceTableConfig struct {
	TableID     uint64
	PKNamespace string
	PKName      string
}

func EncodeSourceTableConfig(c SourceTableConfig) []byte {
	buf := putUint64(nil, c.TableID)
	buf = putString(buf, c.PKNamespace)
	buf = putString(buf, c.PKName)
	return buf
}

func DecodeSourceTableConfig(buf []byte) SourceTableConfig {
	id, rest := getUint64(buf)
	ns, rest := getString(rest)
	name, _ := getString(rest)
	return SourceTableConfig{TableID: id, PKNamespace: ns, PKName: name}
}

// FilterConfig holds NodeFilter's predicate.
type FilterConfig struct {
	Predicate *expr.Expr
}

func EncodeFilterConfig(c FilterConfig) []byte { return expr.EncodeExpr(c.Predicate) }
func DecodeFilterConfig(buf []byte) FilterConfig {
	e, _ := expr.DecodeExpr(buf)
	return FilterConfig{Predicate: e}
}

// ProjectConfig holds NodeMap/NodeExtend's output expressions and names.
type ProjectConfig struct {
	Names []string
	Exprs []*expr.Expr
}

func EncodeProjectConfig(c ProjectConfig) []byte {
	buf := putUint64(nil, uint64(len(c.Names)))
	for _, n := range c.Names {
		buf = putString(buf, n)
	}
	buf = putExprList(buf, c.Exprs)
	return buf
}

func DecodeProjectConfig(buf []byte) ProjectConfig {
	n, rest := getUint64(buf)
	names := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		var s string
		s, rest = getString(rest)
		names = append(names, s)
	}
	exprs, _ := getExprList(rest)
	return ProjectConfig{Names: names, Exprs: exprs}
}

// JoinConfig holds NodeJoin's key expressions and join kind.
type JoinConfig struct {
	Kind      byte // mirrors exec.JoinKind
	LeftKeys  []*expr.Expr
	RightKeys []*expr.Expr
}

func EncodeJoinConfig(c JoinConfig) []byte {
	buf := []byte{c.Kind}
	buf = putExprList(buf, c.LeftKeys)
	buf = putExprList(buf, c.RightKeys)
	return buf
}

func DecodeJoinConfig(buf []byte) JoinConfig {
	kind := buf[0]
	left, rest := getExprList(buf[1:])
	right, _ := getExprList(rest)
	return JoinConfig{Kind: kind, LeftKeys: left, RightKeys: right}
}

// AggregateConfig holds NodeAggregate's group-by keys and per-output
// aggregate specs (function + argument expression).
type AggregateConfig struct {
	ByNames []string
	ByExprs []*expr.Expr
	AggName []string
	AggFunc []byte // mirrors exec.AggFunc
	AggArg  []*expr.Expr
}

func EncodeAggregateConfig(c AggregateConfig) []byte {
	buf := putUint64(nil, uint64(len(c.ByNames)))
	for _, n := range c.ByNames {
		buf = putString(buf, n)
	}
	buf = putExprList(buf, c.ByExprs)
	buf = putUint64(buf, uint64(len(c.AggName)))
	for _, n := range c.AggName {
		buf = putString(buf, n)
	}
	buf = append(buf, c.AggFunc...)
	buf = putExprList(buf, c.AggArg)
	return buf
}

func DecodeAggregateConfig(buf []byte) AggregateConfig {
	n, rest := getUint64(buf)
	byNames := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		var s string
		s, rest = getString(rest)
		byNames = append(byNames, s)
	}
	byExprs, rest := getExprList(rest)
	m, rest := getUint64(rest)
	aggNames := make([]string, 0, m)
	for i := uint64(0); i < m; i++ {
		var s string
		s, rest = getString(rest)
		aggNames = append(aggNames, s)
	}
	aggFunc := append([]byte(nil), rest[:m]...)
	rest = rest[m:]
	aggArg, _ := getExprList(rest)
	return AggregateConfig{ByNames: byNames, ByExprs: byExprs, AggName: aggNames, AggFunc: aggFunc, AggArg: aggArg}
}

// DistinctConfig holds NodeDistinct's dedup key expressions (nil = whole row).
type DistinctConfig struct {
	Exprs []*expr.Expr
}

func EncodeDistinctConfig(c DistinctConfig) []byte { return putExprList(nil, c.Exprs) }
func DecodeDistinctConfig(buf []byte) DistinctConfig {
	e, _ := getExprList(buf)
	return DistinctConfig{Exprs: e}
}

// TakeConfig holds NodeTake's row limit.
type TakeConfig struct{ N int }

func EncodeTakeConfig(c TakeConfig) []byte     { return putUint64(nil, uint64(c.N)) }
func DecodeTakeConfig(buf []byte) TakeConfig   { n, _ := getUint64(buf); return TakeConfig{N: int(n)} }

// SortConfig holds NodeSort's ordering keys.
type SortConfig struct {
	ColumnNames []string
	Descending  []bool
}

func EncodeSortConfig(c SortConfig) []byte {
	buf := putUint64(nil, uint64(len(c.ColumnNames)))
	for i, n := range c.ColumnNames {
		buf = putString(buf, n)
		if c.Descending[i] {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func DecodeSortConfig(buf []byte) SortConfig {
	n, rest := getUint64(buf)
	names := make([]string, 0, n)
	desc := make([]bool, 0, n)
	for i := uint64(0); i < n; i++ {
		var s string
		s, rest = getString(rest)
		names = append(names, s)
		desc = append(desc, rest[0] != 0)
		rest = rest[1:]
	}
	return SortConfig{ColumnNames: names, Descending: desc}
}

// ApplyConfig holds NodeApply's single-column transform.
type ApplyConfig struct {
	Column string
	Expr   *expr.Expr
}

func EncodeApplyConfig(c ApplyConfig) []byte {
	buf := putString(nil, c.Column)
	return append(buf, expr.EncodeExpr(c.Expr)...)
}

func DecodeApplyConfig(buf []byte) ApplyConfig {
	col, rest := getString(buf)
	e, _ := expr.DecodeExpr(rest)
	return ApplyConfig{Column: col, Expr: e}
}

// SinkViewConfig names the view a NodeSinkView node materializes into.
type SinkViewConfig struct {
	ViewID uint64
}

func EncodeSinkViewConfig(c SinkViewConfig) []byte { return putUint64(nil, c.ViewID) }
func DecodeSinkViewConfig(buf []byte) SinkViewConfig {
	n, _ := getUint64(buf)
	return SinkViewConfig{ViewID: n}
}

// kindName is used in diagnostics.
func kindName(k catalog.FlowNodeKind) string {
	switch k {
	case catalog.NodeSourceTable:
		return "source_table"
	case catalog.NodeSourceView:
		return "source_view"
	case catalog.NodeSourceRingBuffer:
		return "source_ring_buffer"
	case catalog.NodeSourceInline:
		return "source_inline"
	case catalog.NodeFilter:
		return "filter"
	case catalog.NodeMap:
		return "map"
	case catalog.NodeExtend:
		return "extend"
	case catalog.NodeJoin:
		return "join"
	case catalog.NodeAggregate:
		return "aggregate"
	case catalog.NodeUnion:
		return "union"
	case catalog.NodeSort:
		return "sort"
	case catalog.NodeTake:
		return "take"
	case catalog.NodeDistinct:
		return "distinct"
	case catalog.NodeApply:
		return "apply"
	case catalog.NodeWindow:
		return "window"
	case catalog.NodeSinkView:
		return "sink_view"
	default:
		return "unknown"
	}
}
