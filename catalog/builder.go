package catalog

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// TableDef defines a table with a fixed schema.
type TableDef struct {
	// Name is the table name.
	// REQUIRED: MUST be non-empty and unique within schema.
	Name string

	// Comment is optional table documentation.
	Comment string

	// Schema describes the table columns.
	// REQUIRED: MUST NOT be nil.
	Schema *arrow.Schema
}

// Builder builds static catalogs using a fluent API.
// Not thread-safe - use only during initialization.
type Builder struct {
	schemas []*schemaDef
	built   bool
}

type schemaDef struct {
	name    string
	comment string
	tables  []Table
}

// NewBuilder creates an empty catalog builder.
//
// Example:
//
//	cat, err := catalog.NewBuilder().
//	    Schema("main").
//	        Table(catalog.TableDef{Name: "orders", Schema: ordersSchema}).
//	    Schema("staging").
//	        Table(catalog.TableDef{Name: "events", Schema: eventsSchema}).
//	    Build()
func NewBuilder() *Builder {
	return &Builder{}
}

// Schema starts defining a new schema.
func (b *Builder) Schema(name string) *SchemaBuilder {
	def := &schemaDef{name: name}
	b.schemas = append(b.schemas, def)
	return &SchemaBuilder{def: def, parent: b}
}

// Build finalizes the catalog. It can only be called once.
func (b *Builder) Build() (Catalog, error) {
	if b.built {
		return nil, fmt.Errorf("catalog already built")
	}

	cat := &staticCatalog{schemas: make(map[string]*staticSchema, len(b.schemas))}
	for _, def := range b.schemas {
		if def.name == "" {
			return nil, fmt.Errorf("schema name cannot be empty")
		}
		if _, dup := cat.schemas[def.name]; dup {
			return nil, fmt.Errorf("duplicate schema name: %s", def.name)
		}

		tables := make(map[string]Table, len(def.tables))
		for _, t := range def.tables {
			if t.Name() == "" {
				return nil, fmt.Errorf("table name cannot be empty in schema %s", def.name)
			}
			if _, dup := tables[t.Name()]; dup {
				return nil, fmt.Errorf("duplicate table name %s in schema %s", t.Name(), def.name)
			}
			if t.ArrowSchema() == nil {
				return nil, fmt.Errorf("table %s.%s has nil schema", def.name, t.Name())
			}
			tables[t.Name()] = t
		}
		cat.schemas[def.name] = &staticSchema{name: def.name, comment: def.comment, tables: tables}
	}

	b.built = true
	return cat, nil
}

// SchemaBuilder builds a schema within a catalog.
type SchemaBuilder struct {
	def    *schemaDef
	parent *Builder
}

// Comment sets optional schema documentation.
func (sb *SchemaBuilder) Comment(comment string) *SchemaBuilder {
	sb.def.comment = comment
	return sb
}

// Table adds a table with a fixed schema.
func (sb *SchemaBuilder) Table(def TableDef) *SchemaBuilder {
	sb.def.tables = append(sb.def.tables, NewStaticTable(def.Name, def.Comment, def.Schema))
	return sb
}

// CustomTable adds a caller-implemented table.
func (sb *SchemaBuilder) CustomTable(t Table) *SchemaBuilder {
	sb.def.tables = append(sb.def.tables, t)
	return sb
}

// Schema starts a new schema definition.
func (sb *SchemaBuilder) Schema(name string) *SchemaBuilder {
	return sb.parent.Schema(name)
}

// Build finalizes the catalog.
func (sb *SchemaBuilder) Build() (Catalog, error) {
	return sb.parent.Build()
}
