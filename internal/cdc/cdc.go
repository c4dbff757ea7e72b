// Package cdc implements the change-data-capture log (spec §4.5): one
// Record per commit grouping all changes, durable consumer checkpoints, and
// range/scan iteration in (version ASC, sequence ASC) order. Record mirrors
// the teacher's types.Mutation in shape (Key, pre/post payloads, a
// timestamp) but is commit-grouped rather than per-row; checkpoints follow
// the teacher's resolver.sql.mark / Record "advance if greater" pattern
// (internal/source/cdc/resolver.go), reimplemented against the keyed store
// instead of a SQL table.
package cdc

import (
	"encoding/binary"

	"github.com/google/uuid"
	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// ChangeKind discriminates the three mutation shapes a CDC change can carry.
type ChangeKind byte

const (
	Insert ChangeKind = iota
	Update
	Delete
)

// Change is one row-level mutation within a commit's CDC entry.
type Change struct {
	Sequence uint16 // 1-based, assigned in production order
	Kind     ChangeKind
	Key      key.EncodedKey
	Pre      []byte // present for Update, Delete
	Post     []byte // present for Insert, Update
}

// Record is one commit's CDC entry: every change produced by that commit,
// appended atomically with the data writes (spec §4.5).
type Record struct {
	Version     store.Version
	TimestampMs uint64
	Transaction uuid.UUID
	Changes     []Change
}

// maxChangesPerTransaction is the 16-bit sequence ceiling (spec §4.5
// "a transaction MUST NOT exceed 65535 changes").
const maxChangesPerTransaction = 65535

// Builder accumulates changes for one in-flight commit, assigning sequence
// numbers in production order and rejecting the 65536th change.
type Builder struct {
	version     store.Version
	timestampMs uint64
	transaction uuid.UUID
	changes     []Change
}

// NewBuilder starts accumulating a commit's CDC entry.
func NewBuilder(version store.Version, timestampMs uint64, transaction uuid.UUID) *Builder {
	return &Builder{version: version, timestampMs: timestampMs, transaction: transaction}
}

func (b *Builder) append(kind ChangeKind, k key.EncodedKey, pre, post []byte) error {
	if len(b.changes) >= maxChangesPerTransaction {
		return &cerrors.SequenceExhausted{Type: cerrors.SequenceCDCOrdinal}
	}
	b.changes = append(b.changes, Change{
		Sequence: uint16(len(b.changes) + 1),
		Kind:     kind,
		Key:      k,
		Pre:      pre,
		Post:     post,
	})
	return nil
}

// AppendInsert records a key that was absent, now present with post.
func (b *Builder) AppendInsert(k key.EncodedKey, post []byte) error {
	return b.append(Insert, k, nil, post)
}

// AppendUpdate records a key present with pre, now present with post.
func (b *Builder) AppendUpdate(k key.EncodedKey, pre, post []byte) error {
	return b.append(Update, k, pre, post)
}

// AppendDelete records a key present with pre, now absent.
func (b *Builder) AppendDelete(k key.EncodedKey, pre []byte) error {
	return b.append(Delete, k, pre, nil)
}

// Build finalizes the accumulated changes into a Record.
func (b *Builder) Build() Record {
	return Record{Version: b.version, TimestampMs: b.timestampMs, Transaction: b.transaction, Changes: b.changes}
}

// Log is the durable, append-only CDC log plus per-consumer checkpoints.
type Log struct {
	entries     store.CDCStore
	checkpoints store.SingleVersion
}

// NewLog wraps a CDC backend and a single-version checkpoint backend.
func NewLog(entries store.CDCStore, checkpoints store.SingleVersion) *Log {
	return &Log{entries: entries, checkpoints: checkpoints}
}

func toStoreEntry(r Record) store.CDCEntry {
	changes := make([]store.CDCChange, len(r.Changes))
	for i, c := range r.Changes {
		changes[i] = store.CDCChange{Sequence: c.Sequence, Kind: byte(c.Kind), Key: c.Key, Pre: c.Pre, Post: c.Post}
	}
	return store.CDCEntry{Version: r.Version, TimestampMs: r.TimestampMs, Transaction: r.Transaction, Changes: changes}
}

func fromStoreEntry(e store.CDCEntry) Record {
	changes := make([]Change, len(e.Changes))
	for i, c := range e.Changes {
		changes[i] = Change{Sequence: c.Sequence, Kind: ChangeKind(c.Kind), Key: c.Key, Pre: c.Pre, Post: c.Post}
	}
	return Record{Version: e.Version, TimestampMs: e.TimestampMs, Transaction: e.Transaction, Changes: changes}
}

// Append durably records one commit's CDC entry.
func (l *Log) Append(r Record) error {
	return cerrors.Backend(l.entries.Append(toStoreEntry(r)))
}

// Get returns the CDC record for a single commit version.
func (l *Log) Get(version store.Version) (Record, bool) {
	e, ok := l.entries.Get(version)
	if !ok {
		return Record{}, false
	}
	return fromStoreEntry(e), true
}

// entriesOf adapts a store.Cursor that actually carries *store.CDCEntry
// payloads (memory/bolt backends expose this via an Entries() escape hatch)
// into a []Record in (version ASC, sequence ASC) order.
func entriesOf(c store.Cursor) []Record {
	type withEntries interface{ Entries() []store.CDCEntry }
	we, ok := c.(withEntries)
	if !ok {
		return nil
	}
	raw := we.Entries()
	records := make([]Record, len(raw))
	for i, e := range raw {
		records[i] = fromStoreEntry(e)
	}
	return records
}

// Range returns every CDC record with version in [start, end).
func (l *Log) Range(start, end store.Version) []Record {
	return entriesOf(l.entries.Range(start, end))
}

// Scan returns CDC records in commit order, in batches of batchSize.
func (l *Log) Scan(batchSize int) []Record {
	return entriesOf(l.entries.Scan(batchSize))
}

// Count returns the number of changes in the commit at version.
func (l *Log) Count(version store.Version) int { return l.entries.Count(version) }

// checkpointKey addresses a named consumer's persisted checkpoint.
func checkpointKey(consumerID string) key.EncodedKey {
	return key.CdcConsumerKey{ConsumerID: consumerID}.Encode()
}

// Checkpoint returns the last processed version for consumerID, or 0 if the
// consumer has never advanced.
func (l *Log) Checkpoint(consumerID string) store.Version {
	v, ok := l.checkpoints.Get(checkpointKey(consumerID))
	if !ok {
		return 0
	}
	return store.Version(binary.BigEndian.Uint64(v))
}

// AdvanceCheckpoint records consumerID's checkpoint as newVersion, but only
// if newVersion is greater than the currently stored value — the
// "insert if greater" idempotent pattern grounded in resolver.go's Mark/
// Record SQL upsert.
func (l *Log) AdvanceCheckpoint(consumerID string, newVersion store.Version) error {
	current := l.Checkpoint(consumerID)
	if newVersion <= current {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(newVersion))
	return cerrors.Backend(l.checkpoints.Commit([]store.Delta{
		store.SetDelta(checkpointKey(consumerID), buf[:]),
	}))
}

// FlowConsumerID is the flow engine's reserved CDC consumer identity (spec
// §4.5 "consumer_id = __FLOW_CONSUMER").
const FlowConsumerID = "__FLOW_CONSUMER"
