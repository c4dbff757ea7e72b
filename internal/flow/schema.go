package flow

import (
	"sort"

	"github.com/reifydb/reifydb-sub032/internal/catalog"
	"github.com/reifydb/reifydb-sub032/internal/core/row"
)

// rowSchemaOf converts a catalog table/view's column declarations into a
// row.Schema, ordering by ColumnDef.Index so the schema's field order
// matches the original DDL order regardless of map iteration.
func rowSchemaOf(cols []catalog.ColumnDef) *row.Schema {
	ordered := append([]catalog.ColumnDef(nil), cols...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	fields := make([]row.Field, len(ordered))
	for i, c := range ordered {
		fields[i] = row.Field{
			Name: c.Name,
			Kind: c.Kind,
			Constraint: row.Constraint{
				MaxBytes:     c.Constraint.MaxBytes,
				Precision:    c.Constraint.Precision,
				Scale:        c.Constraint.Scale,
				HasPrecision: c.Constraint.HasPrecision,
			},
		}
	}
	return row.NewSchema(fields)
}

// RowSchemaOf is the exported form of rowSchemaOf, used by the engine's
// statement executor to build row schemas outside the flow package.
func RowSchemaOf(cols []catalog.ColumnDef) *row.Schema { return rowSchemaOf(cols) }
