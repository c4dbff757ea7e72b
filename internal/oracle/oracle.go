// Package oracle implements the multi-version oracle (spec §4.3): commit
// version allocation, snapshot-isolation conflict detection via committed
// windows, and window garbage collection. Grounded directly on spec §4.3;
// MAX_WINDOWS and the window-index-then-window-map removal ordering follow
// original_source's crates/transaction/src/multi/transaction/oracle_cleanup.rs.
package oracle

import (
	"sort"
	"sync"

	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// MaxWindows bounds the number of retained committed windows (spec §4.3
// "keep at most N (e.g. 50)"), taken from original_source's
// oracle_cleanup.rs MAX_WINDOWS constant.
const MaxWindows = 50

// CommittedWindow records the set of keys a single commit modified.
type CommittedWindow struct {
	Version store.Version
	Keys    map[string]struct{}
}

// TestHook is invoked between the version bump (step 1) and the conflict
// check / apply (step 3) of Commit, solely to let tests exercise
// interleavings. Production code never sets it. Mirrors original_source's
// set_oracle_test_hook / OracleTestHookGuard, reimplemented as a plain
// restore closure since Go has no RAII.
type TestHook func(newVersion store.Version)

// Oracle allocates commit versions and enforces snapshot-isolation
// serializability with write-conflict detection (spec §4.3).
type Oracle struct {
	mu sync.Mutex

	nextVersion store.Version
	windows     map[store.Version]*CommittedWindow
	keyIndex    map[string]map[store.Version]struct{}
	active      map[uint64]store.Version // reader id -> snapshot
	nextReader  uint64

	testHook TestHook
}

// New constructs an oracle starting at version 0 (no commits yet).
func New() *Oracle {
	return &Oracle{
		windows:  make(map[store.Version]*CommittedWindow),
		keyIndex: make(map[string]map[store.Version]struct{}),
		active:   make(map[uint64]store.Version),
	}
}

// SetTestHook installs h and returns a restore closure that reinstates the
// previous hook (nil to disable). Only tests should call this.
func (o *Oracle) SetTestHook(h TestHook) (restore func()) {
	o.mu.Lock()
	prev := o.testHook
	o.testHook = h
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		o.testHook = prev
		o.mu.Unlock()
	}
}

// ReaderHandle identifies a registered active-reader snapshot, released via
// Drop when the holding transaction ends.
type ReaderHandle struct {
	id       uint64
	Snapshot store.Version
}

// BeginCommand implements the begin-command protocol (spec §4.3 steps 1-3):
// read the current version as snapshot with no increment, register the
// reader, return the handle.
func (o *Oracle) BeginCommand() ReaderHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := o.nextVersion
	o.nextReader++
	id := o.nextReader
	o.active[id] = snapshot
	return ReaderHandle{id: id, Snapshot: snapshot}
}

// Drop releases a reader's snapshot registration (commit, rollback, or drop
// of an uncommitted transaction all call this exactly once).
func (o *Oracle) Drop(h ReaderHandle) {
	o.mu.Lock()
	delete(o.active, h.id)
	o.mu.Unlock()
}

// Commit runs the full commit protocol for a command transaction holding
// snapshot h.Snapshot, read set readSet, and write set writeSet. On success
// it returns the new commit version; on conflict it returns a write-conflict
// error and the transaction must be treated as aborted.
func (o *Oracle) Commit(h ReaderHandle, readSet, writeSet []key.EncodedKey) (store.Version, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	newVersion := o.nextVersion + 1
	o.nextVersion = newVersion

	if o.testHook != nil {
		o.testHook(newVersion)
	}

	// Conflict check: for each key in the read set, any window strictly
	// after the transaction's snapshot and at-or-before the new version
	// conflicts (write-skew prevention).
	for _, k := range readSet {
		ks := string(k)
		versions, ok := o.keyIndex[ks]
		if !ok {
			continue
		}
		for v := range versions {
			if v > h.Snapshot && v < newVersion {
				return 0, &cerrors.WriteConflict{Key: string(k)}
			}
		}
	}

	window := &CommittedWindow{Version: newVersion, Keys: make(map[string]struct{}, len(writeSet))}
	for _, k := range writeSet {
		ks := string(k)
		window.Keys[ks] = struct{}{}
		if o.keyIndex[ks] == nil {
			o.keyIndex[ks] = make(map[store.Version]struct{})
		}
		o.keyIndex[ks][newVersion] = struct{}{}
	}
	o.windows[newVersion] = window

	delete(o.active, h.id)

	o.collectLocked()

	return newVersion, nil
}

// oldestActiveLocked returns the oldest active reader snapshot, or the
// current version if there are no active readers (caller holds o.mu).
func (o *Oracle) oldestActiveLocked() store.Version {
	oldest := o.nextVersion
	for _, snap := range o.active {
		if snap < oldest {
			oldest = snap
		}
	}
	return oldest
}

// collectLocked garbage-collects windows beyond MaxWindows, but only those
// no active reader could still conflict-check against (spec §4.3 "Window
// retention"). The key index is updated before the window map, so a reader
// never observes a dangling key entry with no backing window.
func (o *Oracle) collectLocked() {
	if len(o.windows) <= MaxWindows {
		return
	}
	floor := o.oldestActiveLocked()

	versions := make([]store.Version, 0, len(o.windows))
	for v := range o.windows {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	excess := len(versions) - MaxWindows
	for i := 0; i < excess; i++ {
		v := versions[i]
		if v >= floor {
			break
		}
		w := o.windows[v]
		for ks := range w.Keys {
			delete(o.keyIndex[ks], v)
			if len(o.keyIndex[ks]) == 0 {
				delete(o.keyIndex, ks)
			}
		}
		delete(o.windows, v)
	}
}

// CurrentVersion returns the latest allocated commit version.
func (o *Oracle) CurrentVersion() store.Version {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nextVersion
}
