package substrait

import (
	"fmt"
	"log/slog"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/substrait-go/codec"
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/internal/serialize"
	"github.com/hugr-lab/substrait-go/plan"
)

// Codec marshals plans to envelopes and back. A Codec is safe for
// concurrent use; create one and reuse it to share the zstd state.
type Codec struct {
	compression  Compression
	collection   *extensions.Collection
	decoder      *codec.Decoder
	compressor   *serialize.Compressor
	decompressor *serialize.Decompressor
	logger       *slog.Logger
}

// NewCodec validates config and prepares a Codec.
// Caller must call Close() when done to release resources.
func NewCodec(config Config) (*Codec, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	collection := config.Collection
	if collection == nil {
		var err error
		if collection, err = extensions.DefaultCollection(); err != nil {
			return nil, fmt.Errorf("%w: default signature library: %v", ErrInvalidConfig, err)
		}
	}
	logger := config.logger()

	compressor, err := serialize.NewCompressor()
	if err != nil {
		return nil, err
	}
	decompressor, err := serialize.NewDecompressor(config.MaxDecompressedSize)
	if err != nil {
		compressor.Close()
		return nil, err
	}

	return &Codec{
		compression: config.Compression,
		collection:  collection,
		decoder: &codec.Decoder{
			Collection: collection,
			Extensions: config.Extensions,
			Logger:     logger,
		},
		compressor:   compressor,
		decompressor: decompressor,
		logger:       logger,
	}, nil
}

// Collection returns the signature library the codec resolves against.
func (c *Codec) Collection() *extensions.Collection {
	return c.collection
}

// Registry returns a function registry over the codec's library, for
// building plans the codec can decode.
func (c *Codec) Registry(opts ...extensions.RegistryOption) *extensions.Registry {
	return extensions.NewRegistry(c.collection, append([]extensions.RegistryOption{extensions.WithLogger(c.logger)}, opts...)...)
}

// Marshal encodes p to a Substrait protobuf plan, compressed when configured.
// Equal plans marshal to equal bytes.
func (c *Codec) Marshal(p *plan.Plan) ([]byte, error) {
	w, err := codec.Encode(p)
	if err != nil {
		return nil, err
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	if c.compression != CompressionZstd {
		c.logger.Debug("Marshaled plan", "bytes", len(data), "compression", c.compression)
		return data, nil
	}

	compressed := c.compressor.Compress(data)
	c.logger.Debug("Marshaled plan",
		"bytes", len(data),
		"compressed_bytes", len(compressed),
		"compression", c.compression,
	)
	return compressed, nil
}

// Unmarshal decodes an envelope produced by Marshal. Compressed input is
// detected by its frame header regardless of the configured compression.
func (c *Codec) Unmarshal(data []byte) (*plan.Plan, error) {
	if serialize.IsCompressed(data) {
		raw, err := c.decompressor.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errdefs.ErrDecodeIntegrity, err)
		}
		c.logger.Debug("Decompressed plan envelope", "compressed_bytes", len(data), "bytes", len(raw))
		data = raw
	}

	var w pb.Plan
	if err := proto.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", errdefs.ErrDecodeIntegrity, err)
	}
	return c.decoder.Decode(&w)
}

// Close releases the zstd encoder and decoder.
func (c *Codec) Close() error {
	c.decompressor.Close()
	return c.compressor.Close()
}

// Marshal encodes p with a one-shot codec built from config.
func Marshal(p *plan.Plan, config Config) ([]byte, error) {
	c, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Marshal(p)
}

// Unmarshal decodes data with a one-shot codec built from config.
func Unmarshal(data []byte, config Config) (*plan.Plan, error) {
	c, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Unmarshal(data)
}
