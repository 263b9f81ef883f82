// Package serialize frames encoded plans and schemas for transport:
// ZStandard compression of plan envelopes and Arrow IPC encoding of schemas.
package serialize

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every ZStandard frame (0xFD2FB528, little-endian).
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// IsCompressed reports whether data starts with a ZStandard frame.
// MessagePack plans never start with these bytes: a plan is a map, so its
// first byte is a fixmap or map16/map32 marker.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Compressor handles ZStandard compression of plan envelopes.
// Create once and reuse to eliminate allocations.
type Compressor struct {
	encoder *zstd.Encoder
}

// NewCompressor creates a reusable ZStandard compressor.
// Uses SpeedDefault (level 3) for balanced compression ratio and speed.
// Caller must call Close() when done to release resources.
func NewCompressor() (*Compressor, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	return &Compressor{
		encoder: encoder,
	}, nil
}

// Compress compresses data into a single ZStandard frame.
// Safe for concurrent use from multiple goroutines.
func (c *Compressor) Compress(data []byte) []byte {
	// EncodeAll is goroutine-safe
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2+len(zstdMagic)))
}

// Close releases compressor resources.
func (c *Compressor) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}

// Decompressor handles ZStandard decompression.
// Create once and reuse to eliminate allocations.
type Decompressor struct {
	decoder *zstd.Decoder
}

// NewDecompressor creates a reusable ZStandard decompressor. maxSize bounds
// the decompressed size of one envelope; 0 keeps the library default.
// Caller must call Close() when done to release resources.
func NewDecompressor(maxSize uint64) (*Decompressor, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxSize > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(maxSize))
	}
	decoder, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Decompressor{
		decoder: decoder,
	}, nil
}

// Decompress decompresses ZStandard data.
// Safe for concurrent use from multiple goroutines.
func (d *Decompressor) Decompress(compressed []byte) ([]byte, error) {
	// DecodeAll is goroutine-safe
	decompressed, err := d.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}

	return decompressed, nil
}

// Close releases decompressor resources.
func (d *Decompressor) Close() {
	if d.decoder != nil {
		d.decoder.Close()
	}
}
