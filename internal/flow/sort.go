package flow

import (
	"encoding/binary"
	"sort"

	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// sortKey names one ordering column and its direction.
type sortKey struct {
	column     string
	descending bool
}

// sortNode maintains the full persisted membership set and re-emits it in
// order on every change. Incremental order maintenance (inserting a row at
// its sorted position without a full re-materialization) is future work;
// this keeps the persisted view correctly ordered at the cost of resending
// the whole set on every triggering change, acceptable for the view sizes
// this engine targets.
type sortNode struct {
	keys   []sortKey
	state  store.SingleVersion
	flowID uint64
	nodeID uint64
	schema *row.Schema
}

func (n *sortNode) membersKey() []byte { return []byte(stateKey(n.flowID, n.nodeID, []byte("members"))) }

type member struct {
	key []byte
	row *row.Row
}

func (n *sortNode) load() []member {
	b, ok := n.state.Get(n.membersKey())
	if !ok || n.schema == nil {
		return nil
	}
	var out []member
	rest := b
	for len(rest) > 0 {
		kl := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		k := append([]byte(nil), rest[:kl]...)
		rest = rest[kl:]
		rl := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		rbuf := append([]byte(nil), rest[:rl]...)
		rest = rest[rl:]
		out = append(out, member{key: k, row: row.Wrap(n.schema, rbuf)})
	}
	return out
}

func (n *sortNode) save(members []member) store.Delta {
	var buf []byte
	var lb [4]byte
	for _, m := range members {
		binary.BigEndian.PutUint32(lb[:], uint32(len(m.key)))
		buf = append(buf, lb[:]...)
		buf = append(buf, m.key...)
		rb := m.row.Bytes()
		binary.BigEndian.PutUint32(lb[:], uint32(len(rb)))
		buf = append(buf, lb[:]...)
		buf = append(buf, rb...)
	}
	return store.SetDelta(n.membersKey(), buf)
}

func (n *sortNode) order(members []member) {
	sort.SliceStable(members, func(i, j int) bool {
		for _, k := range n.keys {
			ci, _ := rowBatch{members[i].row}.ColumnByName(k.column)
			cj, _ := rowBatch{members[j].row}.ColumnByName(k.column)
			if ci < 0 || cj < 0 {
				continue
			}
			a := members[i].row.GetValue(ci)
			b := members[j].row.GetValue(cj)
			c := value.Compare(a, b)
			if c == 0 {
				continue
			}
			if k.descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func (n *sortNode) Apply(input int, d Diff) (Diff, error) {
	for _, c := range d {
		r := c.After
		if r == nil {
			r = c.Before
		}
		if r != nil {
			n.schema = r.Schema()
			break
		}
	}
	members := n.load()
	var out Diff
	for _, m := range members {
		out = append(out, Change{Kind: Remove, Key: m.key, Before: m.row})
	}
	for _, c := range d {
		switch c.Kind {
		case Insert:
			members = append(members, member{key: c.Key, row: c.After})
		case Remove:
			for i, m := range members {
				if string(m.key) == string(c.Key) {
					members = append(members[:i], members[i+1:]...)
					break
				}
			}
		case Update:
			for i, m := range members {
				if string(m.key) == string(c.Key) {
					members[i].row = c.After
					break
				}
			}
		}
	}
	n.order(members)
	for _, m := range members {
		out = append(out, Change{Kind: Insert, Key: m.key, After: m.row})
	}
	if err := n.state.Commit([]store.Delta{n.save(members)}); err != nil {
		return nil, err
	}
	return out, nil
}
