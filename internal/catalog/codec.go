package catalog

import (
	"encoding/binary"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
)

// The catalog's own entities are small, fixed-shape structs (unlike user
// data rows, whose schema is dynamic and driven by DDL) so they are encoded
// directly with encoding/binary rather than through internal/core/row's
// dynamic-schema machinery — see DESIGN.md ecosystem-justification note.

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

func putBytes(buf, b []byte) []byte {
	buf = putUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func getBytes(buf []byte) ([]byte, []byte) {
	n, rest := getUint64(buf)
	return rest[:n], rest[n:]
}

func encodeColumn(c ColumnDef) []byte {
	buf := putUint64(nil, c.ID)
	buf = putString(buf, c.Name)
	buf = append(buf, byte(c.Kind))
	buf = append(buf, byte(c.Constraint.Precision), byte(c.Constraint.Scale), boolByte(c.Constraint.HasPrecision))
	buf = putUint64(buf, uint64(c.Constraint.MaxBytes))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(c.Index))
	buf = append(buf, idx[:]...)
	buf = append(buf, boolByte(c.AutoIncrement))
	buf = putUint64(buf, c.DictionaryID)
	return buf
}

func decodeColumn(buf []byte) (ColumnDef, []byte) {
	var c ColumnDef
	c.ID, buf = getUint64(buf)
	c.Name, buf = getString(buf)
	c.Kind = value.Kind(buf[0])
	buf = buf[1:]
	c.Constraint.Precision = buf[0]
	c.Constraint.Scale = buf[1]
	c.Constraint.HasPrecision = buf[2] != 0
	buf = buf[3:]
	var maxBytes uint64
	maxBytes, buf = getUint64(buf)
	c.Constraint.MaxBytes = uint32(maxBytes)
	c.Index = int(binary.BigEndian.Uint32(buf[:4]))
	buf = buf[4:]
	c.AutoIncrement = buf[0] != 0
	buf = buf[1:]
	c.DictionaryID, buf = getUint64(buf)
	return c, buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func EncodeNamespace(n Namespace) []byte {
	buf := putUint64(nil, n.ID)
	buf = putString(buf, n.Name)
	buf = putUint64(buf, n.ParentID)
	return buf
}

func DecodeNamespace(buf []byte) Namespace {
	var n Namespace
	n.ID, buf = getUint64(buf)
	n.Name, buf = getString(buf)
	n.ParentID, _ = getUint64(buf)
	return n
}

func EncodePrimaryKey(pk PrimaryKey) []byte {
	buf := putUint64(nil, pk.ID)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(pk.ColumnIDs)))
	buf = append(buf, n[:]...)
	for _, id := range pk.ColumnIDs {
		buf = putUint64(buf, id)
	}
	return buf
}

func DecodePrimaryKey(buf []byte) PrimaryKey {
	var pk PrimaryKey
	pk.ID, buf = getUint64(buf)
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	pk.ColumnIDs = make([]uint64, n)
	for i := range pk.ColumnIDs {
		pk.ColumnIDs[i], buf = getUint64(buf)
	}
	return pk
}

func EncodeTable(t Table) []byte {
	buf := putUint64(nil, t.ID)
	buf = putString(buf, t.Name)
	buf = putUint64(buf, t.NamespaceID)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(t.Columns)))
	buf = append(buf, n[:]...)
	for _, c := range t.Columns {
		buf = append(buf, encodeColumn(c)...)
	}
	buf = append(buf, EncodePrimaryKey(t.PrimaryKey)...)
	return buf
}

func DecodeTable(buf []byte) Table {
	var t Table
	t.ID, buf = getUint64(buf)
	t.Name, buf = getString(buf)
	t.NamespaceID, buf = getUint64(buf)
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	t.Columns = make([]ColumnDef, n)
	for i := range t.Columns {
		t.Columns[i], buf = decodeColumn(buf)
	}
	t.PrimaryKey = DecodePrimaryKey(buf)
	return t
}

func EncodeView(v View) []byte {
	buf := putUint64(nil, v.ID)
	buf = putString(buf, v.Name)
	buf = putUint64(buf, v.NamespaceID)
	buf = append(buf, byte(v.Kind))
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v.Columns)))
	buf = append(buf, n[:]...)
	for _, c := range v.Columns {
		buf = append(buf, encodeColumn(c)...)
	}
	buf = append(buf, EncodePrimaryKey(v.PrimaryKey)...)
	buf = putUint64(buf, v.FlowID)
	return buf
}

func DecodeView(buf []byte) View {
	var v View
	v.ID, buf = getUint64(buf)
	v.Name, buf = getString(buf)
	v.NamespaceID, buf = getUint64(buf)
	v.Kind = ViewKind(buf[0])
	buf = buf[1:]
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	v.Columns = make([]ColumnDef, n)
	for i := range v.Columns {
		v.Columns[i], buf = decodeColumn(buf)
	}
	// PrimaryKey consumes a variable prefix; re-derive its length by
	// decoding it directly off the remaining buffer.
	v.PrimaryKey = DecodePrimaryKey(buf)
	// Recompute offset to read FlowID: re-encode PK to know its length.
	consumed := len(EncodePrimaryKey(v.PrimaryKey))
	v.FlowID, _ = getUint64(buf[consumed:])
	return v
}

func EncodeDictionary(d Dictionary) []byte {
	buf := putUint64(nil, d.ID)
	buf = putUint64(buf, d.NamespaceID)
	buf = putString(buf, d.Name)
	buf = append(buf, byte(d.ValueKind), byte(d.IDKind))
	return buf
}

func DecodeDictionary(buf []byte) Dictionary {
	var d Dictionary
	d.ID, buf = getUint64(buf)
	d.NamespaceID, buf = getUint64(buf)
	d.Name, buf = getString(buf)
	d.ValueKind = value.Kind(buf[0])
	d.IDKind = value.Kind(buf[1])
	return d
}

func EncodeFlow(f Flow) []byte {
	buf := putUint64(nil, f.ID)
	buf = putString(buf, f.Name)
	buf = putUint64(buf, f.NamespaceID)
	buf = append(buf, byte(f.Status))
	return buf
}

func DecodeFlow(buf []byte) Flow {
	var f Flow
	f.ID, buf = getUint64(buf)
	f.Name, buf = getString(buf)
	f.NamespaceID, buf = getUint64(buf)
	f.Status = FlowStatus(buf[0])
	return f
}

func EncodeFlowNode(n FlowNode) []byte {
	buf := putUint64(nil, n.ID)
	buf = putUint64(buf, n.FlowID)
	buf = append(buf, byte(n.Kind))
	buf = putBytes(buf, n.Config)
	return buf
}

func DecodeFlowNode(buf []byte) FlowNode {
	var n FlowNode
	n.ID, buf = getUint64(buf)
	n.FlowID, buf = getUint64(buf)
	n.Kind = FlowNodeKind(buf[0])
	buf = buf[1:]
	n.Config, _ = getBytes(buf)
	return n
}

func EncodeFlowEdge(e FlowEdge) []byte {
	buf := putUint64(nil, e.ID)
	buf = putUint64(buf, e.FlowID)
	buf = putUint64(buf, e.SourceID)
	buf = putUint64(buf, e.TargetID)
	return buf
}

func DecodeFlowEdge(buf []byte) FlowEdge {
	var e FlowEdge
	e.ID, buf = getUint64(buf)
	e.FlowID, buf = getUint64(buf)
	e.SourceID, buf = getUint64(buf)
	e.TargetID, _ = getUint64(buf)
	return e
}

func EncodePolicy(p Policy) []byte {
	buf := putUint64(nil, p.ID)
	buf = append(buf, byte(p.Target))
	buf = putUint64(buf, p.Scope)
	buf = putBytes(buf, p.Body)
	return buf
}

func DecodePolicy(buf []byte) Policy {
	var p Policy
	p.ID, buf = getUint64(buf)
	p.Target = PolicyTarget(buf[0])
	buf = buf[1:]
	p.Scope, buf = getUint64(buf)
	p.Body, _ = getBytes(buf)
	return p
}

func EncodeUser(u User) []byte {
	buf := putUint64(nil, u.ID)
	return putString(buf, u.Name)
}

func DecodeUser(buf []byte) User {
	var u User
	u.ID, buf = getUint64(buf)
	u.Name, _ = getString(buf)
	return u
}
