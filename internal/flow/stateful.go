package flow

import (
	"encoding/binary"
	"strings"

	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// Stateful nodes persist their running state under a FlowNodeStateKey
// scoped by (flow id, node id), so the flow survives process restarts
// (spec §4.8.1 "Join, Aggregate, Sort, Take, Distinct, Window ... maintain
// persistent operator state").

func stateKey(flowID, nodeID uint64, sub []byte) key.EncodedKey {
	return key.FlowNodeStateKey{FlowID: flowID, NodeID: nodeID, SubKey: sub}.Encode()
}

func tupleKey(vals []value.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\x00")
}

func evalTuple(ev *expr.Evaluator, r *row.Row, exprs []*expr.Expr) (string, []value.Value, error) {
	vals := make([]value.Value, len(exprs))
	for i, e := range exprs {
		v, err := evalOne(ev, r, e)
		if err != nil {
			return "", nil, err
		}
		vals[i] = v
	}
	return tupleKey(vals), vals, nil
}

// --- Distinct --------------------------------------------------------------

// distinctNode suppresses repeat tuples by keeping a persisted reference
// count per key; only the transition 0->1 (resp. 1->0) propagates.
type distinctNode struct {
	exprs  []*expr.Expr
	eval   *expr.Evaluator
	state  store.SingleVersion
	flowID uint64
	nodeID uint64
}

func (n *distinctNode) refKey(tk string) key.EncodedKey {
	return stateKey(n.flowID, n.nodeID, []byte(tk))
}

func (n *distinctNode) ref(tk string) int64 {
	b, ok := n.state.Get(n.refKey(tk))
	if !ok {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (n *distinctNode) setRef(tk string, v int64) store.Delta {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return store.SetDelta(n.refKey(tk), buf[:])
}

func (n *distinctNode) keyOf(r *row.Row) (string, error) {
	if len(n.exprs) == 0 {
		vals := make([]value.Value, len(r.Schema().Fields))
		for i := range vals {
			vals[i] = r.GetValue(i)
		}
		return tupleKey(vals), nil
	}
	tk, _, err := evalTuple(n.eval, r, n.exprs)
	return tk, err
}

func (n *distinctNode) Apply(input int, d Diff) (Diff, error) {
	out := make(Diff, 0, len(d))
	var deltas []store.Delta
	emit := func(kind ChangeKind, c Change, r *row.Row) {
		nc := Change{Kind: kind, Key: c.Key}
		if kind == Remove {
			nc.Before = r
		} else {
			nc.After = r
		}
		out = append(out, nc)
	}
	for _, c := range d {
		switch c.Kind {
		case Insert:
			tk, err := n.keyOf(c.After)
			if err != nil {
				return nil, err
			}
			cur := n.ref(tk)
			deltas = append(deltas, n.setRef(tk, cur+1))
			if cur == 0 {
				emit(Insert, c, c.After)
			}
		case Remove:
			tk, err := n.keyOf(c.Before)
			if err != nil {
				return nil, err
			}
			cur := n.ref(tk)
			if cur <= 0 {
				continue
			}
			deltas = append(deltas, n.setRef(tk, cur-1))
			if cur == 1 {
				emit(Remove, c, c.Before)
			}
		case Update:
			btk, err := n.keyOf(c.Before)
			if err != nil {
				return nil, err
			}
			atk, err := n.keyOf(c.After)
			if err != nil {
				return nil, err
			}
			if btk == atk {
				continue
			}
			bcur := n.ref(btk)
			if bcur > 0 {
				deltas = append(deltas, n.setRef(btk, bcur-1))
				if bcur == 1 {
					emit(Remove, c, c.Before)
				}
			}
			acur := n.ref(atk)
			deltas = append(deltas, n.setRef(atk, acur+1))
			if acur == 0 {
				emit(Insert, c, c.After)
			}
		}
		// Commit per change so a later change in the same diff sees the
		// updated count.
		if len(deltas) > 0 {
			if err := n.state.Commit(deltas); err != nil {
				return nil, err
			}
			deltas = nil
		}
	}
	return out, nil
}

// --- Take --------------------------------------------------------------

// takeNode caps the number of rows passed downstream at N, tracked by a
// single persisted counter.
type takeNode struct {
	n      int
	state  store.SingleVersion
	flowID uint64
	nodeID uint64
}

func (n *takeNode) countKey() key.EncodedKey { return stateKey(n.flowID, n.nodeID, []byte("count")) }

func (n *takeNode) count() int64 {
	b, ok := n.state.Get(n.countKey())
	if !ok {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (n *takeNode) setCount(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return n.state.Commit([]store.Delta{store.SetDelta(n.countKey(), buf[:])})
}

func (n *takeNode) Apply(input int, d Diff) (Diff, error) {
	cur := n.count()
	out := make(Diff, 0, len(d))
	for _, c := range d {
		switch c.Kind {
		case Insert:
			if cur >= int64(n.n) {
				continue
			}
			cur++
			out = append(out, c)
		case Remove:
			if cur > 0 {
				cur--
			}
			out = append(out, c)
		case Update:
			out = append(out, c)
		}
	}
	if err := n.setCount(cur); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Aggregate ------------------------------------------------------------

type aggSpec struct {
	name string
	fn   byte // mirrors exec.AggFunc
	arg  *expr.Expr
	kind value.Kind
}

// aggState is the persisted per-group accumulator.
type aggState struct {
	count int64
	sum   float64
	min   value.Value
	max   value.Value
	have  bool
}

func encodeAggState(s aggState) []byte {
	buf := make([]byte, 0, 32)
	var cb [8]byte
	binary.BigEndian.PutUint64(cb[:], uint64(s.count))
	buf = append(buf, cb[:]...)
	binary.BigEndian.PutUint64(cb[:], uint64(int64(s.sum*1e6)))
	buf = append(buf, cb[:]...)
	if s.have {
		buf = append(buf, 1)
		lit := expr.EncodeLiteral(s.min)
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(lit)))
		buf = append(buf, lb[:]...)
		buf = append(buf, lit...)
		lit = expr.EncodeLiteral(s.max)
		binary.BigEndian.PutUint32(lb[:], uint32(len(lit)))
		buf = append(buf, lb[:]...)
		buf = append(buf, lit...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeAggState(buf []byte) aggState {
	var s aggState
	s.count = int64(binary.BigEndian.Uint64(buf[:8]))
	s.sum = float64(int64(binary.BigEndian.Uint64(buf[8:16]))) / 1e6
	rest := buf[16:]
	s.have = rest[0] != 0
	rest = rest[1:]
	if s.have {
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		s.min, rest = expr.DecodeLiteral(rest[:n])
		rest = buf[16+1+4+int(n):]
		n = binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		s.max, _ = expr.DecodeLiteral(rest[:n])
	}
	return s
}

func (s *aggState) observe(fn byte, v value.Value) {
	s.count++
	if !v.Defined {
		return
	}
	switch fn {
	case 1: // AggSum
		if v.Kind == value.KindFloat4 || v.Kind == value.KindFloat8 {
			s.sum += v.Float
		} else {
			s.sum += float64(v.Int)
		}
	case 2: // AggMin
		if !s.have || value.Compare(v, s.min) < 0 {
			s.min = v
			s.have = true
		}
	case 3: // AggMax
		if !s.have || value.Compare(v, s.max) > 0 {
			s.max = v
			s.have = true
		}
	}
}

func (s *aggState) unobserve(fn byte) {
	if s.count > 0 {
		s.count--
	}
	// Sum cannot be un-added without the original value; for AggSum with a
	// defined value, applyOne subtracts that value itself instead of calling
	// unobserve. Min/Max retraction would need a full rescan, which this
	// incremental accumulator does not do: a removed extreme value stays in
	// place until an observed value beats it.
}

func (s *aggState) result(fn byte, kind value.Kind) value.Value {
	switch fn {
	case 0: // AggCount
		return value.Value{Kind: kind, Int: s.count, Defined: true}
	case 1: // AggSum
		if kind == value.KindFloat4 || kind == value.KindFloat8 {
			return value.Value{Kind: kind, Float: s.sum, Defined: true}
		}
		return value.Value{Kind: kind, Int: int64(s.sum), Defined: true}
	case 2, 3:
		if !s.have {
			return value.Undefined(kind)
		}
		if fn == 2 {
			return s.min
		}
		return s.max
	default:
		return value.Undefined(kind)
	}
}

// aggregateNode maintains one persisted accumulator per group key and
// emits the group's updated row whenever its output changes (spec §4.8.3).
type aggregateNode struct {
	byNames []string
	byExprs []*expr.Expr
	aggs    []aggSpec
	eval    *expr.Evaluator
	state   store.SingleVersion
	flowID  uint64
	nodeID  uint64
}

func (n *aggregateNode) groupKey(gk string) key.EncodedKey {
	return stateKey(n.flowID, n.nodeID, []byte(gk))
}

func (n *aggregateNode) load(gk string) []aggState {
	states := make([]aggState, len(n.aggs))
	b, ok := n.state.Get(n.groupKey(gk))
	if !ok {
		return states
	}
	rest := b
	for i := range states {
		l := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		states[i] = decodeAggState(rest[:l])
		rest = rest[l:]
	}
	return states
}

func (n *aggregateNode) save(gk string, states []aggState) store.Delta {
	var buf []byte
	for _, s := range states {
		enc := encodeAggState(s)
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(enc)))
		buf = append(buf, lb[:]...)
		buf = append(buf, enc...)
	}
	return store.SetDelta(n.groupKey(gk), buf)
}

func (n *aggregateNode) resultRow(keyVals []value.Value, states []aggState) *row.Row {
	fields := make([]row.Field, 0, len(n.byNames)+len(n.aggs))
	for i, name := range n.byNames {
		fields = append(fields, row.Field{Name: name, Kind: keyVals[i].Kind})
	}
	for _, a := range n.aggs {
		fields = append(fields, row.Field{Name: a.name, Kind: a.kind})
	}
	schema := row.NewSchema(fields)
	out := schema.Allocate()
	idx := 0
	for _, v := range keyVals {
		out.SetValue(idx, v)
		idx++
	}
	for i, a := range n.aggs {
		out.SetValue(idx, states[i].result(a.fn, a.kind))
		idx++
	}
	return out
}

func (n *aggregateNode) applyOne(r *row.Row, sign int) (string, []value.Value, []aggState, bool, error) {
	gk, keyVals, err := evalTuple(n.eval, r, n.byExprs)
	if err != nil {
		return "", nil, nil, false, err
	}
	states := n.load(gk)
	existed := false
	for _, s := range states {
		if s.count > 0 {
			existed = true
			break
		}
	}
	for i, a := range n.aggs {
		var v value.Value
		if a.arg != nil {
			v, err = evalOne(n.eval, r, a.arg)
			if err != nil {
				return "", nil, nil, false, err
			}
		} else {
			v = value.Value{Defined: true}
		}
		if sign > 0 {
			states[i].observe(a.fn, v)
		} else {
			if a.fn == 1 && v.Defined { // AggSum: subtract the actual value
				if v.Kind == value.KindFloat4 || v.Kind == value.KindFloat8 {
					states[i].sum -= v.Float
				} else {
					states[i].sum -= float64(v.Int)
				}
				if states[i].count > 0 {
					states[i].count--
				}
			} else {
				states[i].unobserve(a.fn)
			}
		}
	}
	return gk, keyVals, states, existed, nil
}

func (n *aggregateNode) Apply(input int, d Diff) (Diff, error) {
	out := make(Diff, 0, len(d))
	process := func(r *row.Row, sign int) error {
		gk, keyVals, states, existed, err := n.applyOne(r, sign)
		if err != nil {
			return err
		}
		// Commit per change so the next change of the same group loads
		// this one's accumulator.
		if err := n.state.Commit([]store.Delta{n.save(gk, states)}); err != nil {
			return err
		}
		stillActive := false
		for _, s := range states {
			if s.count > 0 {
				stillActive = true
				break
			}
		}
		newRow := n.resultRow(keyVals, states)
		switch {
		case !existed && stillActive:
			out = append(out, Change{Kind: Insert, Key: []byte(gk), After: newRow})
		case existed && !stillActive:
			out = append(out, Change{Kind: Remove, Key: []byte(gk), Before: newRow})
		case existed && stillActive:
			out = append(out, Change{Kind: Update, Key: []byte(gk), After: newRow})
		}
		return nil
	}
	for _, c := range d {
		switch c.Kind {
		case Insert:
			if err := process(c.After, 1); err != nil {
				return nil, err
			}
		case Remove:
			if err := process(c.Before, -1); err != nil {
				return nil, err
			}
		case Update:
			if err := process(c.Before, -1); err != nil {
				return nil, err
			}
			if err := process(c.After, 1); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
