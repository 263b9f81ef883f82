package catalog

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Table is a named relation with a fixed schema.
// Implementations MUST be goroutine-safe.
type Table interface {
	// Name returns the table name (e.g., "orders").
	Name() string

	// Comment returns optional table documentation.
	Comment() string

	// ArrowSchema returns the columns of the table.
	// MUST return a non-nil schema.
	ArrowSchema() *arrow.Schema
}
