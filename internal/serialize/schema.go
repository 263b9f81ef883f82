package serialize

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// SerializeSchema writes schema as an Arrow IPC stream without record batches.
func SerializeSchema(schema *arrow.Schema, allocator memory.Allocator) ([]byte, error) {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(allocator))

	// Close writes the schema message and the end-of-stream marker.
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close IPC writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DeserializeSchema reads the schema of an Arrow IPC stream.
func DeserializeSchema(data []byte, allocator memory.Allocator) (*arrow.Schema, error) {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to read IPC schema: %w", err)
	}
	defer reader.Release()

	return reader.Schema(), nil
}
