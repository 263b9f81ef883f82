package serialize

import (
	"bytes"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

func TestCompressRoundTrip(t *testing.T) {
	c, err := NewCompressor()
	if err != nil {
		t.Fatalf("NewCompressor failed: %v", err)
	}
	defer c.Close()

	d, err := NewDecompressor(0)
	if err != nil {
		t.Fatalf("NewDecompressor failed: %v", err)
	}
	defer d.Close()

	data := bytes.Repeat([]byte("relation "), 200)
	compressed := c.Compress(data)

	if !IsCompressed(compressed) {
		t.Fatal("Expected compressed data to start with zstd magic")
	}
	if len(compressed) >= len(data) {
		t.Errorf("Expected compression to shrink %d bytes, got %d", len(data), len(compressed))
	}

	out, err := d.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("Expected decompressed data to equal input")
	}
}

func TestIsCompressed(t *testing.T) {
	if IsCompressed([]byte{0x84, 0xa9}) {
		t.Error("Expected msgpack map not to be detected as zstd")
	}
	if IsCompressed(nil) {
		t.Error("Expected empty data not to be detected as zstd")
	}
}

func TestDecompressGarbage(t *testing.T) {
	d, err := NewDecompressor(0)
	if err != nil {
		t.Fatalf("NewDecompressor failed: %v", err)
	}
	defer d.Close()

	if _, err := d.Decompress(append([]byte{0x28, 0xB5, 0x2F, 0xFD}, 0xff, 0xff)); err == nil {
		t.Error("Expected error for truncated frame")
	}
}

func TestCompressConcurrent(t *testing.T) {
	c, err := NewCompressor()
	if err != nil {
		t.Fatalf("NewCompressor failed: %v", err)
	}
	defer c.Close()

	data := bytes.Repeat([]byte("abc"), 1000)
	want := c.Compress(data)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := c.Compress(data); !bytes.Equal(got, want) {
				t.Error("Expected identical compressed output")
			}
		}()
	}
	wg.Wait()
}

func TestSchemaRoundTrip(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true,
			Metadata: arrow.NewMetadata([]string{"substrait.type"}, []string{"varchar<10>"})},
	}, nil)

	data, err := SerializeSchema(schema, nil)
	if err != nil {
		t.Fatalf("SerializeSchema failed: %v", err)
	}

	out, err := DeserializeSchema(data, nil)
	if err != nil {
		t.Fatalf("DeserializeSchema failed: %v", err)
	}
	if !out.Equal(schema) {
		t.Errorf("Expected schema %s, got %s", schema, out)
	}
	if v, ok := out.Field(1).Metadata.GetValue("substrait.type"); !ok || v != "varchar<10>" {
		t.Errorf("Expected field metadata 'varchar<10>', got '%s'", v)
	}
}
