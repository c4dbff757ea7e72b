package boot

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bbolt "go.etcd.io/bbolt"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/catalog/mat"
	"github.com/reifydb/reifydb-sub032/internal/cdc"
	"github.com/reifydb/reifydb-sub032/internal/flow"
	"github.com/reifydb/reifydb-sub032/internal/oracle"
	"github.com/reifydb/reifydb-sub032/internal/store"
	"github.com/reifydb/reifydb-sub032/internal/store/bolt"
	"github.com/reifydb/reifydb-sub032/internal/store/memory"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

// Engine holds every layer the statement executor needs: the multi-version
// backend, the catalog store and its materialized projection, the oracle,
// and the flow runtime. Grounded on the teacher's provider.go construction
// shape (one Provide* function per layer, composed by hand rather than by
// `wire`).
type Engine struct {
	Backend      store.MultiVersion
	Sequences    store.SingleVersion
	NodeState    store.SingleVersion
	CDCEntries   store.CDCStore
	Oracle       *oracle.Oracle
	CatalogStore *catalog.Store
	Catalog      *mat.Catalog
	Log          *cdc.Log
	Runtime      *flow.Runtime

	closeDB func() error
	cancel  context.CancelFunc
}

// Open constructs an Engine per cfg, hydrates the materialized catalog
// from the persisted catalog store, and starts the flow runtime's poll
// loop in the background.
func Open(cfg Config) (*Engine, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}

	backend, sequences, nodeState, cdcEntries, closeDB, err := provideBackend(cfg)
	if err != nil {
		return nil, err
	}

	ora := oracle.New()
	catStore := catalog.NewStore(sequences)
	cat := mat.New()
	cdcLog := cdc.NewLog(cdcEntries, nodeState)

	e := &Engine{
		Backend:      backend,
		Sequences:    sequences,
		NodeState:    nodeState,
		CDCEntries:   cdcEntries,
		Oracle:       ora,
		CatalogStore: catStore,
		Catalog:      cat,
		Log:          cdcLog,
		closeDB:      closeDB,
	}

	if err := e.hydrateCatalog(); err != nil {
		closeDB()
		return nil, err
	}

	e.Runtime = flow.NewRuntime(cdcLog, backend, nodeState, cat, catStore, ora, cfg.FlowPollInterval)
	startQ := txn.BeginQuery(ora, backend)
	asOf := startQ.Version()
	startQ.Commit()
	if err := e.Runtime.Refresh(asOf); err != nil {
		closeDB()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() {
		if err := e.Runtime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("flow runtime stopped")
		}
	}()

	return e, nil
}

// Close stops the flow runtime and releases the backend's file handles.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.closeDB != nil {
		return e.closeDB()
	}
	return nil
}

func provideBackend(cfg Config) (store.MultiVersion, store.SingleVersion, store.SingleVersion, store.CDCStore, func() error, error) {
	if cfg.InMemory {
		return memory.NewMultiVersion(nil), memory.NewSingleVersion(), memory.NewSingleVersion(),
			memory.NewCDCStore(), func() error { return nil }, nil
	}

	db, err := bbolt.Open(filepath.Join(cfg.DataDir, "engine.db"), 0600, nil)
	if err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, "could not open database file")
	}
	backend, err := bolt.OpenMultiVersion(db, "rows")
	if err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, "could not open rows bucket")
	}
	sequences, err := bolt.OpenSingleVersion(db, "sequences")
	if err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, "could not open sequences bucket")
	}
	nodeState, err := bolt.OpenSingleVersion(db, "node_state")
	if err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, "could not open node_state bucket")
	}
	cdcEntries, err := bolt.OpenCDCStore(db, "cdc")
	if err != nil {
		return nil, nil, nil, nil, nil, errors.Wrap(err, "could not open cdc bucket")
	}
	return backend, sequences, nodeState, cdcEntries, db.Close, nil
}

// hydrateCatalog replays every currently-live catalog entity into the
// materialized projection at startup, since mat.Catalog only tracks
// entities Publish*'d during this process's lifetime.
func (e *Engine) hydrateCatalog() error {
	q := txn.BeginQuery(e.Oracle, e.Backend)
	defer q.Commit()
	asOf := q.Version()

	for _, n := range e.CatalogStore.ScanNamespaces(q) {
		e.Catalog.PublishNamespace(asOf, n, false)
	}
	for _, t := range e.CatalogStore.ScanTables(q) {
		e.Catalog.PublishTable(asOf, t, false)
	}
	for _, v := range e.CatalogStore.ScanViews(q) {
		e.Catalog.PublishView(asOf, v, false)
	}
	for _, d := range e.CatalogStore.ScanDictionaries(q) {
		e.Catalog.PublishDictionary(asOf, d, false)
	}
	for _, f := range e.CatalogStore.ScanFlows(q) {
		e.Catalog.PublishFlow(asOf, f, false)
	}
	for _, n := range e.CatalogStore.ScanFlowNodes(q) {
		e.Catalog.PublishFlowNode(asOf, n, false)
	}
	for _, edge := range e.CatalogStore.ScanFlowEdges(q) {
		e.Catalog.PublishFlowEdge(asOf, edge, false)
	}
	for _, p := range e.CatalogStore.ScanPolicies(q) {
		e.Catalog.PublishPolicy(asOf, p, false)
	}
	for _, u := range e.CatalogStore.ScanUsers(q) {
		e.Catalog.PublishUser(asOf, u, false)
	}
	return nil
}

// publishChanges replays one Admin transaction's tracked catalog changes
// into the materialized catalog after a successful commit, then refreshes
// the flow runtime if the change touched a flow so new/dropped flows take
// effect on the very next poll tick.
func (e *Engine) publishChanges(admin *txn.Admin, version store.Version) error {
	touchedFlow := false
	for _, c := range admin.Changes() {
		tombstone := c.Kind == "delete"
		switch c.Entity {
		case "namespace":
			if n, ok := e.CatalogStore.GetNamespace(admin, c.ID); ok || tombstone {
				e.Catalog.PublishNamespace(version, n, tombstone)
			}
		case "table":
			if t, ok := e.CatalogStore.GetTable(admin, c.ID); ok || tombstone {
				e.Catalog.PublishTable(version, t, tombstone)
			}
		case "view":
			if v, ok := e.CatalogStore.GetView(admin, c.ID); ok || tombstone {
				e.Catalog.PublishView(version, v, tombstone)
			}
		case "flow":
			if f, ok := e.CatalogStore.GetFlow(admin, c.ID); ok || tombstone {
				e.Catalog.PublishFlow(version, f, tombstone)
			}
			touchedFlow = true
		case "flow_node":
			if n, ok := e.CatalogStore.GetFlowNode(admin, c.ID); ok || tombstone {
				e.Catalog.PublishFlowNode(version, n, tombstone)
			}
			touchedFlow = true
		case "flow_edge":
			if edge, ok := e.CatalogStore.GetFlowEdge(admin, c.ID); ok || tombstone {
				e.Catalog.PublishFlowEdge(version, edge, tombstone)
			}
			touchedFlow = true
		case "dictionary":
			if d, ok := e.CatalogStore.GetDictionary(admin, c.ID); ok || tombstone {
				e.Catalog.PublishDictionary(version, d, tombstone)
			}
		case "policy":
			if p, ok := e.CatalogStore.GetPolicy(admin, c.ID); ok || tombstone {
				e.Catalog.PublishPolicy(version, p, tombstone)
			}
		case "user":
			if u, ok := e.CatalogStore.GetUser(admin, c.ID); ok || tombstone {
				e.Catalog.PublishUser(version, u, tombstone)
			}
		}
	}
	if touchedFlow {
		return e.Runtime.Refresh(version)
	}
	return nil
}
