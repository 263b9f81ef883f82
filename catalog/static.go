package catalog

import (
	"context"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
)

// staticCatalog is an immutable catalog built by Builder.
type staticCatalog struct {
	schemas map[string]*staticSchema
}

func (c *staticCatalog) Schemas(ctx context.Context) ([]Schema, error) {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Schema, 0, len(names))
	for _, name := range names {
		result = append(result, c.schemas[name])
	}
	return result, nil
}

func (c *staticCatalog) Schema(ctx context.Context, name string) (Schema, error) {
	schema, ok := c.schemas[name]
	if !ok {
		return nil, nil
	}
	return schema, nil
}

type staticSchema struct {
	name    string
	comment string
	tables  map[string]Table
}

func (s *staticSchema) Name() string    { return s.name }
func (s *staticSchema) Comment() string { return s.comment }

func (s *staticSchema) Tables(ctx context.Context) ([]Table, error) {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Table, 0, len(names))
	for _, name := range names {
		result = append(result, s.tables[name])
	}
	return result, nil
}

func (s *staticSchema) Table(ctx context.Context, name string) (Table, error) {
	table, ok := s.tables[name]
	if !ok {
		return nil, nil
	}
	return table, nil
}

// StaticTable is an immutable table implementation.
type StaticTable struct {
	name    string
	comment string
	schema  *arrow.Schema
}

// NewStaticTable creates a table with a fixed schema.
func NewStaticTable(name, comment string, schema *arrow.Schema) *StaticTable {
	return &StaticTable{name: name, comment: comment, schema: schema}
}

func (t *StaticTable) Name() string               { return t.name }
func (t *StaticTable) Comment() string            { return t.comment }
func (t *StaticTable) ArrowSchema() *arrow.Schema { return t.schema }
