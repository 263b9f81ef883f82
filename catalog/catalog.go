// Package catalog resolves table names to schemas for building plans.
//
// A Catalog is a two-level namespace of schemas and tables, each table
// described by an Arrow schema. NamedScan turns a resolved table into a
// relation.NamedScan; the type bridge in this package converts between
// Arrow schemas and the plan type model.
//
// All interfaces are goroutine-safe and support context-based cancellation.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound indicates a schema or table lookup failed.
var ErrNotFound = errors.New("catalog entity not found")

// DefaultSchema is used when a name does not qualify its schema.
const DefaultSchema = "main"

// Catalog represents the top-level metadata container.
// All methods MUST be goroutine-safe.
type Catalog interface {
	// Schemas returns all schemas visible in this catalog.
	// Context may contain auth info for permission-based filtering.
	Schemas(ctx context.Context) ([]Schema, error)

	// Schema returns a specific schema by name.
	// Returns (nil, nil) if schema doesn't exist (not an error).
	Schema(ctx context.Context, name string) (Schema, error)
}

// Schema represents a database schema containing tables.
// Implementations MUST be goroutine-safe.
type Schema interface {
	// Name returns the schema name (e.g., "main").
	Name() string

	// Comment returns optional schema documentation.
	Comment() string

	// Tables returns all tables in this schema.
	Tables(ctx context.Context) ([]Table, error)

	// Table returns a specific table by name.
	// Returns (nil, nil) if table doesn't exist (not an error).
	Table(ctx context.Context, name string) (Table, error)
}
