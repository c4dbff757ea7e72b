package boot

import (
	"github.com/pkg/errors"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/core/key"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/flow"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/txn"
)

func rowSchemaFor(cols []catalog.ColumnDef) *row.Schema { return flow.RowSchemaOf(cols) }

// rowBatch is the smallest expr.Batch that can back a single decoded row: it
// lets INSERT/UPDATE/DELETE evaluate value expressions (literals, column
// refs against the row being updated, WHERE predicates) without going
// through the columnar executor's exec.Columns.
type rowBatch struct {
	cols []catalog.ColumnDef
	vals []value.Value
}

func (b rowBatch) ColumnByName(name string) (int, bool) {
	for i, c := range b.cols {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (b rowBatch) ColumnValues(i int) []value.Value { return []value.Value{b.vals[i]} }
func (b rowBatch) Length() int                      { return 1 }

func evalOne(ev *expr.Evaluator, b expr.Batch, e *expr.Expr) (value.Value, error) {
	vs, err := ev.Evaluate(b, e)
	if err != nil {
		return value.Value{}, err
	}
	if len(vs) == 0 {
		return value.Value{}, errors.New("boot: expression produced no value")
	}
	return vs[0], nil
}

// execDML dispatches one row-mutating statement against a Command
// transaction it opens, commits, and publishes itself (a DML statement
// never changes the catalog, but CDC consumers still need the commit
// recorded).
func (e *Engine) execDML(stmt ast.Statement) error {
	tx := txn.BeginCommand(e.Oracle, e.Backend, e.Log)
	if err := e.applyDML(tx, stmt); err != nil {
		tx.Rollback()
		return err
	}
	_, err := tx.Commit()
	return err
}

func (e *Engine) applyDML(tx *txn.Command, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Insert:
		return e.applyInsert(tx, s)
	case *ast.Update:
		return e.applyUpdate(tx, s)
	case *ast.Delete:
		return e.applyDelete(tx, s)
	default:
		return errors.Errorf("boot: %T is not a DML statement", stmt)
	}
}

func (e *Engine) applyInsert(tx *txn.Command, s *ast.Insert) error {
	t, err := e.resolveTable(tx.Version(), s.Namespace, s.Table)
	if err != nil {
		return err
	}
	schema := rowSchemaFor(t.Columns)
	ev := &expr.Evaluator{}
	pkNamespace := catalog.RowNamespaceForTable(t.NamespaceID)

	for _, ir := range s.Rows {
		vals := make([]value.Value, len(t.Columns))
		for i := range vals {
			vals[i] = value.Undefined(t.Columns[i].Kind)
		}
		empty := rowBatch{}
		for i, colName := range ir.Columns {
			idx, ok := columnIndex(t.Columns, colName)
			if !ok {
				return errors.Errorf("boot: column %q does not exist on %s.%s", colName, s.Namespace, s.Table)
			}
			v, err := evalOne(ev, empty, ir.Values[i])
			if err != nil {
				return err
			}
			vals[idx] = v
		}

		r := schema.Allocate()
		for i, v := range vals {
			r.SetValue(i, v)
		}

		pkValue, err := catalog.EncodeRowKeyValue(t.Columns, t.PrimaryKey, vals)
		if err != nil {
			return err
		}
		rk := key.RowKey{PKNamespace: pkNamespace, PKName: t.Name, Value: pkValue}.Encode()
		tx.Set(rk, r.Bytes())
	}
	return nil
}

func (e *Engine) applyUpdate(tx *txn.Command, s *ast.Update) error {
	t, err := e.resolveTable(tx.Version(), s.Namespace, s.Table)
	if err != nil {
		return err
	}
	schema := rowSchemaFor(t.Columns)
	ev := &expr.Evaluator{}
	pkNamespace := catalog.RowNamespaceForTable(t.NamespaceID)
	start, end := key.TableRowRange(pkNamespace, t.Name)

	cur := tx.Scan(start, end)
	defer cur.Close()

	type rewrite struct {
		oldKey key.EncodedKey
		newKey key.EncodedKey
		bytes  []byte
	}
	var pending []rewrite

	for {
		entry, ok := cur.Next()
		if !ok {
			break
		}
		r := row.Wrap(schema, entry.Value)
		vals := make([]value.Value, len(t.Columns))
		for i := range vals {
			vals[i] = r.GetValue(i)
		}
		b := rowBatch{cols: t.Columns, vals: vals}

		if s.Where != nil {
			keep, err := evalOne(ev, b, s.Where)
			if err != nil {
				return err
			}
			if !keep.Defined || !keep.Bool {
				continue
			}
		}

		for _, a := range s.Assignments {
			idx, ok := columnIndex(t.Columns, a.Column)
			if !ok {
				return errors.Errorf("boot: column %q does not exist on %s.%s", a.Column, s.Namespace, s.Table)
			}
			v, err := evalOne(ev, b, a.Value)
			if err != nil {
				return err
			}
			vals[idx] = v
		}

		out := schema.Allocate()
		for i, v := range vals {
			out.SetValue(i, v)
		}
		pkValue, err := catalog.EncodeRowKeyValue(t.Columns, t.PrimaryKey, vals)
		if err != nil {
			return err
		}
		newKey := key.RowKey{PKNamespace: pkNamespace, PKName: t.Name, Value: pkValue}.Encode()
		pending = append(pending, rewrite{oldKey: entry.Key, newKey: newKey, bytes: out.Bytes()})
	}

	for _, p := range pending {
		if string(p.oldKey) != string(p.newKey) {
			tx.Remove(p.oldKey)
		}
		tx.Set(p.newKey, p.bytes)
	}
	return nil
}

func (e *Engine) applyDelete(tx *txn.Command, s *ast.Delete) error {
	t, err := e.resolveTable(tx.Version(), s.Namespace, s.Table)
	if err != nil {
		return err
	}
	schema := rowSchemaFor(t.Columns)
	ev := &expr.Evaluator{}
	pkNamespace := catalog.RowNamespaceForTable(t.NamespaceID)
	start, end := key.TableRowRange(pkNamespace, t.Name)

	cur := tx.Scan(start, end)
	defer cur.Close()

	var toRemove []key.EncodedKey
	for {
		entry, ok := cur.Next()
		if !ok {
			break
		}
		if s.Where == nil {
			toRemove = append(toRemove, entry.Key)
			continue
		}
		r := row.Wrap(schema, entry.Value)
		vals := make([]value.Value, len(t.Columns))
		for i := range vals {
			vals[i] = r.GetValue(i)
		}
		keep, err := evalOne(ev, rowBatch{cols: t.Columns, vals: vals}, s.Where)
		if err != nil {
			return err
		}
		if keep.Defined && keep.Bool {
			toRemove = append(toRemove, entry.Key)
		}
	}
	for _, k := range toRemove {
		tx.Remove(k)
	}
	return nil
}
