package boot

import (
	"github.com/reifydb/reifydb-sub032/internal/catalog"
	cerrors "github.com/reifydb/reifydb-sub032/internal/core/errors"
	"github.com/reifydb/reifydb-sub032/internal/store"
)

// resolveNamespace finds a namespace by its (root-scoped) name in the
// materialized catalog. RQL names are single-segment, so every namespace is
// treated as a direct child of the root (ParentID 0).
func (e *Engine) resolveNamespace(asOf store.Version, name string) (catalog.Namespace, error) {
	for _, n := range e.Catalog.NamespacesAt(asOf) {
		if n.Name == name {
			return n, nil
		}
	}
	return catalog.Namespace{}, &cerrors.CatalogNotFound{Kind: cerrors.KindNamespace, Name: name}
}

// resolveTable finds a table by namespace+name.
func (e *Engine) resolveTable(asOf store.Version, ns, name string) (catalog.Table, error) {
	n, err := e.resolveNamespace(asOf, ns)
	if err != nil {
		return catalog.Table{}, err
	}
	for _, t := range e.Catalog.TablesAt(asOf) {
		if t.NamespaceID == n.ID && t.Name == name {
			return t, nil
		}
	}
	return catalog.Table{}, &cerrors.CatalogNotFound{Kind: cerrors.KindTable, Name: ns + "." + name}
}

// resolveView finds a view by namespace+name.
func (e *Engine) resolveView(asOf store.Version, ns, name string) (catalog.View, error) {
	n, err := e.resolveNamespace(asOf, ns)
	if err != nil {
		return catalog.View{}, err
	}
	for _, v := range e.Catalog.ViewsAt(asOf) {
		if v.NamespaceID == n.ID && v.Name == name {
			return v, nil
		}
	}
	return catalog.View{}, &cerrors.CatalogNotFound{Kind: cerrors.KindView, Name: ns + "." + name}
}

// resolveFlow finds a flow by namespace+name.
func (e *Engine) resolveFlow(asOf store.Version, ns, name string) (catalog.Flow, error) {
	n, err := e.resolveNamespace(asOf, ns)
	if err != nil {
		return catalog.Flow{}, err
	}
	for _, f := range e.Catalog.FlowsAt(asOf) {
		if f.NamespaceID == n.ID && f.Name == name {
			return f, nil
		}
	}
	return catalog.Flow{}, &cerrors.CatalogNotFound{Kind: cerrors.KindFlow, Name: ns + "." + name}
}

// resolveFromSource resolves a FROM stage's source, which may be a table or
// a view.
func (e *Engine) resolveFromSource(asOf store.Version, ns, name string) (cols []catalog.ColumnDef, pkNamespace, pkName string, err error) {
	if t, tErr := e.resolveTable(asOf, ns, name); tErr == nil {
		return t.Columns, catalog.RowNamespaceForTable(t.NamespaceID), t.Name, nil
	}
	if v, vErr := e.resolveView(asOf, ns, name); vErr == nil {
		return v.Columns, catalog.RowNamespaceForView(v.NamespaceID), v.Name, nil
	}
	return nil, "", "", &cerrors.CatalogNotFound{Kind: cerrors.KindTable, Name: ns + "." + name}
}

// columnIndex finds a column's position within a table/view's column list.
func columnIndex(cols []catalog.ColumnDef, name string) (int, bool) {
	for i, c := range cols {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}
