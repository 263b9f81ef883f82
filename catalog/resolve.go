package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugr-lab/substrait-go/relation"
)

// Lookup resolves a table name. One part names a table in DefaultSchema;
// two parts are schema and table.
func Lookup(ctx context.Context, cat Catalog, names ...string) (Table, error) {
	schemaName, tableName := DefaultSchema, ""
	switch len(names) {
	case 1:
		tableName = names[0]
	case 2:
		schemaName, tableName = names[0], names[1]
	default:
		return nil, fmt.Errorf("%w: table name %q must have one or two parts", ErrNotFound, strings.Join(names, "."))
	}

	schema, err := cat.Schema(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schemaName, err)
	}
	if schema == nil {
		return nil, fmt.Errorf("%w: schema %s", ErrNotFound, schemaName)
	}
	table, err := schema.Table(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("table %s.%s: %w", schemaName, tableName, err)
	}
	if table == nil {
		return nil, fmt.Errorf("%w: table %s.%s", ErrNotFound, schemaName, tableName)
	}
	return table, nil
}

// NamedScan resolves names in cat and builds a scan of the table. The scan
// keeps the names as given.
func NamedScan(ctx context.Context, cat Catalog, names []string, opts ...relation.Option) (*relation.NamedScan, error) {
	table, err := Lookup(ctx, cat, names...)
	if err != nil {
		return nil, err
	}
	schema, err := SchemaFromArrow(table.ArrowSchema())
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", strings.Join(names, "."), err)
	}
	return relation.NewNamedScan(names, schema, opts...)
}
