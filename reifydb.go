// Package reifydb is the embeddable engine's public entry point: open a
// database, run RQL statements against it, read back typed columnar
// results. Everything else — storage, catalog, transactions, the
// columnar executor, the flow runtime, RQL parsing — lives under
// internal/ and is reached only through this package.
package reifydb

import (
	"time"

	"github.com/reifydb/reifydb-sub032/internal/boot"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec"
)

// Config configures a DB (spec §1 "the engine embeds directly into a host
// process; there is no separate server binary to run").
type Config struct {
	// DataDir holds the engine's persisted files. Ignored when InMemory
	// is set.
	DataDir string
	// InMemory runs the engine against a throwaway in-memory backend,
	// discarding every write on Close.
	InMemory bool
	// FlowPollInterval controls how often materialized views re-check the
	// CDC log for unconsumed commits. Defaults to 50ms when zero.
	FlowPollInterval time.Duration
}

// DB is one open instance of the engine.
type DB struct {
	engine *boot.Engine
}

// Open starts an engine per cfg: it opens (or creates) the backing store,
// hydrates the catalog, compiles every active materialized view's flow
// graph, and starts the flow runtime's background poll loop.
func Open(cfg Config) (*DB, error) {
	bootCfg := boot.Config{
		DataDir:          cfg.DataDir,
		InMemory:         cfg.InMemory,
		FlowPollInterval: cfg.FlowPollInterval,
	}
	if bootCfg.FlowPollInterval == 0 {
		bootCfg.FlowPollInterval = 50 * time.Millisecond
	}
	e, err := boot.Open(bootCfg)
	if err != nil {
		return nil, err
	}
	return &DB{engine: e}, nil
}

// Close stops the flow runtime and releases the backing store's file
// handles.
func (db *DB) Close() error { return db.engine.Close() }

// Row is one query result row as a name-keyed projection, the
// host-friendly counterpart to the columnar Columns batch Execute's
// Result carries internally.
type Row map[string]any

// Result is one statement's outcome. Rows is empty for DDL/DML statements.
type Result struct {
	Rows []Row
}

// Execute runs one or more semicolon-separated RQL statements (spec §6.3)
// against the database and returns one Result per statement, in order.
func (db *DB) Execute(rql string) ([]Result, error) {
	raw, err := db.engine.Execute(rql)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(raw))
	for i, r := range raw {
		out[i] = Result{Rows: toRows(r.Rows)}
	}
	return out, nil
}

func toRows(cols *exec.Columns) []Row {
	if cols == nil || cols.Len == 0 {
		return nil
	}
	rows := make([]Row, cols.Len)
	for i := 0; i < cols.Len; i++ {
		row := make(Row, len(cols.Cols))
		for _, c := range cols.Cols {
			row[c.Name] = nativeValue(c.Values[i])
		}
		rows[i] = row
	}
	return rows
}

// nativeValue unboxes a value.Value into the plain Go type a host program
// would reach for (bool, an integer/float kind, string, []byte, ...),
// falling back to value.Value.String() for kinds with no single obvious
// native representation (dates, intervals, arbitrary-precision numbers).
func nativeValue(v value.Value) any {
	if !v.Defined {
		return nil
	}
	switch v.Kind {
	case value.KindBoolean:
		return v.Bool
	case value.KindInt1, value.KindInt2, value.KindInt4, value.KindInt8, value.KindInt16:
		return v.Int
	case value.KindUint1, value.KindUint2, value.KindUint4, value.KindUint8, value.KindUint16,
		value.KindIdentityId, value.KindDictionaryId, value.KindRowNumber:
		return v.Uint
	case value.KindFloat4, value.KindFloat8:
		return v.Float
	case value.KindUtf8:
		return v.Str
	case value.KindBlob:
		return v.Bytes
	case value.KindUuid4, value.KindUuid7:
		return v.UUID
	default:
		return v.String()
	}
}
