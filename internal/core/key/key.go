// Package key defines the encoded-key kinds used by storage, the catalog,
// the CDC log, and the flow engine (spec §3.3, §6.2).
package key

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/reifydb/reifydb-sub032/internal/core/keycode"
)

// Kind is the first byte of every encoded key. 0x00 and 0xFF are reserved
// for range terminators; unrelated kinds must never overlap in their
// full-scan ranges.
type Kind uint8

const (
	KindReservedLow Kind = 0x00

	KindNamespace Kind = 0x01
	KindTable     Kind = 0x02
	KindView      Kind = 0x03
	KindColumn    Kind = 0x04
	KindPrimaryKey Kind = 0x05
	KindDictionary Kind = 0x06
	KindDictionaryEntry Kind = 0x07
	KindSequence  Kind = 0x08
	KindFlow      Kind = 0x09
	KindFlowNode  Kind = 0x0A
	KindFlowEdge  Kind = 0x0B
	KindPolicy    Kind = 0x0C
	KindUser      Kind = 0x0D
	KindRole      Kind = 0x0E
	KindUserRole  Kind = 0x0F
	KindUserAuth  Kind = 0x10

	KindRow Kind = 0x20 // user data row, keyed by (pk_namespace, pk_name, pk_value_bytes)

	KindCdcEvent         Kind = 0x30
	KindCdcConsumer      Kind = 0x31
	KindFlowNodeState    Kind = 0x32

	KindReservedHigh Kind = 0xFF
)

// EncodedKey is an opaque, order-preserving byte key.
type EncodedKey []byte

// Compare orders two encoded keys by their raw bytes, which is the ordering
// every backend's range scan must honor.
func Compare(a, b EncodedKey) int { return bytes.Compare(a, b) }

// EncodableKey is implemented by every concrete key kind.
type EncodableKey interface {
	Kind() Kind
	Encode() EncodedKey
}

// FullScan returns the half-open range [kind|..., kind+1|...) covering every
// key of the given kind, relying on the kind byte as a prefix.
func FullScan(k Kind) (start, end EncodedKey) {
	start = EncodedKey{byte(k)}
	if k == KindReservedHigh {
		end = EncodedKey{0xFF, 0xFF}
	} else {
		end = EncodedKey{byte(k) + 1}
	}
	return start, end
}

// --- catalog object keys -------------------------------------------------

// ObjectKey addresses a single catalog entity by (kind, id). Namespace,
// Table, View, Column, PrimaryKey, Dictionary, Flow, FlowNode, FlowEdge,
// Policy, User, Role, UserRole, UserAuthentication all use this shape; the
// Kind field picks the key-space.
type ObjectKey struct {
	ObjKind Kind
	ID      uint64
}

func (k ObjectKey) Kind() Kind { return k.ObjKind }

func (k ObjectKey) Encode() EncodedKey {
	buf := make([]byte, 0, 9)
	buf = keycode.PutUint8(buf, byte(k.ObjKind))
	buf = keycode.PutUint64(buf, k.ID)
	return EncodedKey(buf)
}

func DecodeObjectKey(buf EncodedKey) (ObjectKey, bool) {
	if len(buf) != 9 {
		return ObjectKey{}, false
	}
	kindByte, rest := keycode.GetUint8(buf)
	id, _ := keycode.GetUint64(rest)
	return ObjectKey{ObjKind: Kind(kindByte), ID: id}, true
}

// NameIndexKey addresses a catalog entity by its (namespace, name) for
// uniqueness checks and name->id lookup, within a given kind's key-space.
type NameIndexKey struct {
	ObjKind   Kind
	Namespace uint64
	Name      string
}

func (k NameIndexKey) Kind() Kind { return k.ObjKind }

func (k NameIndexKey) Encode() EncodedKey {
	buf := make([]byte, 0, 1+8+4+len(k.Name))
	buf = keycode.PutUint8(buf, byte(k.ObjKind))
	buf = keycode.PutUint64(buf, k.Namespace)
	buf = keycode.PutString(buf, k.Name)
	return EncodedKey(buf)
}

// --- row key --------------------------------------------------------------

// RowKey addresses a single user-data row keyed by its primary key value,
// scoped by the primary key's owning namespace name and pk name (spec §6.4).
type RowKey struct {
	PKNamespace string
	PKName      string
	Value       []byte // pre-encoded primary key tuple, keycode-ordered
}

func (k RowKey) Kind() Kind { return KindRow }

func (k RowKey) Encode() EncodedKey {
	buf := make([]byte, 0, 1+4+len(k.PKNamespace)+4+len(k.PKName)+len(k.Value))
	buf = keycode.PutUint8(buf, byte(KindRow))
	buf = keycode.PutString(buf, k.PKNamespace)
	buf = keycode.PutString(buf, k.PKName)
	buf = append(buf, k.Value...)
	return EncodedKey(buf)
}

// TableRowRange returns the [start, end) bounds covering every row keyed
// under the given primary key's namespace/name, for a full table scan.
func TableRowRange(pkNamespace, pkName string) (start, end EncodedKey) {
	prefix := RowKey{PKNamespace: pkNamespace, PKName: pkName}.Encode()
	return prefix, PrefixEnd(prefix)
}

// PrefixEnd returns the smallest key that sorts strictly after every key
// with the given prefix, by incrementing the last byte that is not already
// 0xFF and truncating everything after it. A prefix of all 0xFF bytes (or
// empty) has no finite end; callers in that situation should scan to the
// end of the keyspace instead.
func PrefixEnd(prefix []byte) EncodedKey {
	end := append(EncodedKey(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] == 0xFF {
			end = end[:i]
			continue
		}
		end[i]++
		return end[:i+1]
	}
	return nil
}

// --- CDC keys ---------------------------------------------------------

// CdcEventKey addresses one change within a commit's CDC entry, per spec
// §4.5/§6.4 ("CDC entries keyed by commit version + sequence"). Grounded on
// original_source's reifydb-core/interface/key/cdc.rs CdcEventKey.
type CdcEventKey struct {
	Version  uint64
	Sequence uint16
}

func (k CdcEventKey) Kind() Kind { return KindCdcEvent }

func (k CdcEventKey) Encode() EncodedKey {
	buf := make([]byte, 0, 11)
	buf = keycode.PutUint8(buf, byte(KindCdcEvent))
	buf = keycode.PutUint64(buf, k.Version)
	buf = keycode.PutUint16(buf, k.Sequence)
	return EncodedKey(buf)
}

func DecodeCdcEventKey(buf EncodedKey) (CdcEventKey, bool) {
	if len(buf) != 11 {
		return CdcEventKey{}, false
	}
	kindByte, rest := keycode.GetUint8(buf)
	if Kind(kindByte) != KindCdcEvent {
		return CdcEventKey{}, false
	}
	version, rest := keycode.GetUint64(rest)
	seq, _ := keycode.GetUint16(rest)
	return CdcEventKey{Version: version, Sequence: seq}, true
}

// CdcConsumerKey addresses a named CDC consumer's checkpoint.
type CdcConsumerKey struct {
	ConsumerID string
}

func (k CdcConsumerKey) Kind() Kind { return KindCdcConsumer }

func (k CdcConsumerKey) Encode() EncodedKey {
	buf := make([]byte, 0, 1+4+len(k.ConsumerID))
	buf = keycode.PutUint8(buf, byte(KindCdcConsumer))
	buf = keycode.PutString(buf, k.ConsumerID)
	return EncodedKey(buf)
}

// --- flow-node state key ---------------------------------------------------

// FlowNodeStateKey addresses a stateful operator's persistent state, scoped
// by (flow id, node id) plus an operator-specific sub-key (spec §4.8.1,
// §6.4).
type FlowNodeStateKey struct {
	FlowID uint64
	NodeID uint64
	SubKey []byte
}

func (k FlowNodeStateKey) Kind() Kind { return KindFlowNodeState }

func (k FlowNodeStateKey) Encode() EncodedKey {
	buf := make([]byte, 0, 1+8+8+len(k.SubKey))
	buf = keycode.PutUint8(buf, byte(KindFlowNodeState))
	buf = keycode.PutUint64(buf, k.FlowID)
	buf = keycode.PutUint64(buf, k.NodeID)
	buf = append(buf, k.SubKey...)
	return EncodedKey(buf)
}

// DictionaryEntryKey interns a value under a dictionary, mapping
// (dictionary id, value bytes) -> dictionary id (spec §3.5 Dictionary).
type DictionaryEntryKey struct {
	DictionaryID uint64
	Value        []byte
}

func (k DictionaryEntryKey) Kind() Kind { return KindDictionaryEntry }

func (k DictionaryEntryKey) Encode() EncodedKey {
	buf := make([]byte, 0, 1+8+len(k.Value))
	buf = keycode.PutUint8(buf, byte(KindDictionaryEntry))
	buf = keycode.PutUint64(buf, k.DictionaryID)
	buf = append(buf, k.Value...)
	return EncodedKey(buf)
}

// NewUUID7 is a thin wrapper kept here so callers needn't import
// google/uuid directly when minting TransactionIds (spec §4.5).
func NewUUID7() (uuid.UUID, error) { return uuid.NewV7() }
