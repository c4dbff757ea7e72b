package flow

import (
	"encoding/binary"

	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// joinKind mirrors exec.JoinKind (spec §4.6/§4.8: "Join(type, left_keys,
// right_keys)").
type joinKind byte

const (
	joinInner joinKind = iota
	joinLeft
	joinRight
	joinOuter
)

// joinNode maintains a persisted row set per join key per side, so a row
// arriving on either side can be matched against everything already seen
// on the other side (spec §4.8.1 "Join ... maintains persistent operator
// state").
type joinNode struct {
	kind      joinKind
	leftKeys  []*expr.Expr
	rightKeys []*expr.Expr
	eval      *expr.Evaluator
	state     store.SingleVersion
	flowID    uint64
	nodeID    uint64

	leftSchema, rightSchema *row.Schema
}

func (n *joinNode) sideKey(side byte, tk string) key.EncodedKey {
	return stateKey(n.flowID, n.nodeID, append([]byte{side}, []byte(tk)...))
}

func (n *joinNode) load(side byte, tk string) []*row.Row {
	b, ok := n.state.Get(n.sideKey(side, tk))
	if !ok {
		return nil
	}
	sch := n.rightSchema
	if side == 0 {
		sch = n.leftSchema
	}
	var rows []*row.Row
	rest := b
	for len(rest) > 0 {
		l := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		rows = append(rows, row.Wrap(sch, append([]byte(nil), rest[:l]...)))
		rest = rest[l:]
	}
	return rows
}

func (n *joinNode) save(side byte, tk string, rows []*row.Row) store.Delta {
	var buf []byte
	for _, r := range rows {
		b := r.Bytes()
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(b)))
		buf = append(buf, lb[:]...)
		buf = append(buf, b...)
	}
	return store.SetDelta(n.sideKey(side, tk), buf)
}

func removeRowBytes(rows []*row.Row, target []byte) ([]*row.Row, bool) {
	for i, r := range rows {
		if string(r.Bytes()) == string(target) {
			return append(rows[:i], rows[i+1:]...), true
		}
	}
	return rows, false
}

func combineRows(left, right *row.Row) *row.Row {
	fields := make([]row.Field, 0)
	if left != nil {
		fields = append(fields, left.Schema().Fields...)
	}
	if right != nil {
		fields = append(fields, right.Schema().Fields...)
	}
	sch := row.NewSchema(fields)
	out := sch.Allocate()
	idx := 0
	if left != nil {
		for i := range left.Schema().Fields {
			out.SetValue(idx, left.GetValue(i))
			idx++
		}
	}
	if right != nil {
		for i := range right.Schema().Fields {
			out.SetValue(idx, right.GetValue(i))
			idx++
		}
	}
	return out
}

// probeInsert handles one row inserted on `side` (0=left, 1=right): persist
// it, look up the opposite side's matching rows, and emit combined Insert
// changes.
func (n *joinNode) probeInsert(side byte, r *row.Row) (Diff, error) {
	var keys []*expr.Expr
	if side == 0 {
		keys = n.leftKeys
	} else {
		keys = n.rightKeys
	}
	tk, _, err := evalTuple(n.eval, r, keys)
	if err != nil {
		return nil, err
	}
	own := n.load(side, tk)
	own = append(own, r)
	other := n.load(1-side, tk)

	var out Diff
	if len(other) == 0 {
		if (side == 0 && (n.kind == joinLeft || n.kind == joinOuter)) ||
			(side == 1 && (n.kind == joinRight || n.kind == joinOuter)) {
			var combined *row.Row
			if side == 0 {
				combined = combineRows(r, nil)
			} else {
				combined = combineRows(nil, r)
			}
			out = append(out, Change{Kind: Insert, After: combined})
		}
	}
	for _, o := range other {
		var combined *row.Row
		if side == 0 {
			combined = combineRows(r, o)
		} else {
			combined = combineRows(o, r)
		}
		out = append(out, Change{Kind: Insert, After: combined})
	}
	if err := n.state.Commit([]store.Delta{n.save(side, tk, own)}); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *joinNode) probeRemove(side byte, r *row.Row) (Diff, error) {
	var keys []*expr.Expr
	if side == 0 {
		keys = n.leftKeys
	} else {
		keys = n.rightKeys
	}
	tk, _, err := evalTuple(n.eval, r, keys)
	if err != nil {
		return nil, err
	}
	own := n.load(side, tk)
	own, _ = removeRowBytes(own, r.Bytes())
	other := n.load(1-side, tk)

	var out Diff
	for _, o := range other {
		var combined *row.Row
		if side == 0 {
			combined = combineRows(r, o)
		} else {
			combined = combineRows(o, r)
		}
		out = append(out, Change{Kind: Remove, Before: combined})
	}
	if len(other) == 0 {
		if (side == 0 && (n.kind == joinLeft || n.kind == joinOuter)) ||
			(side == 1 && (n.kind == joinRight || n.kind == joinOuter)) {
			var combined *row.Row
			if side == 0 {
				combined = combineRows(r, nil)
			} else {
				combined = combineRows(nil, r)
			}
			out = append(out, Change{Kind: Remove, Before: combined})
		}
	}
	if err := n.state.Commit([]store.Delta{n.save(side, tk, own)}); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply dispatches on input (0 = left edge, 1 = right edge) since Join is
// the DAG's one genuinely two-input node.
func (n *joinNode) Apply(input int, d Diff) (Diff, error) {
	side := byte(input)
	if n.leftSchema == nil && side == 0 && len(d) > 0 {
		if d[0].After != nil {
			n.leftSchema = d[0].After.Schema()
		} else if d[0].Before != nil {
			n.leftSchema = d[0].Before.Schema()
		}
	}
	if n.rightSchema == nil && side == 1 && len(d) > 0 {
		if d[0].After != nil {
			n.rightSchema = d[0].After.Schema()
		} else if d[0].Before != nil {
			n.rightSchema = d[0].Before.Schema()
		}
	}

	var out Diff
	for _, c := range d {
		switch c.Kind {
		case Insert:
			sub, err := n.probeInsert(side, c.After)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		case Remove:
			sub, err := n.probeRemove(side, c.Before)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		case Update:
			sub, err := n.probeRemove(side, c.Before)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			sub, err = n.probeInsert(side, c.After)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}
