package substrait

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/substrait-go/auth"
	"github.com/hugr-lab/substrait-go/codec"
	"github.com/hugr-lab/substrait-go/extensions"
)

// Compression selects the envelope framing of marshaled plans.
type Compression int

const (
	// CompressionNone writes bare MessagePack.
	CompressionNone Compression = iota
	// CompressionZstd wraps the MessagePack bytes in one ZStandard frame.
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Config contains configuration for marshaling and unmarshaling plans.
type Config struct {
	// Collection is the signature library used to resolve declared functions.
	// OPTIONAL: Uses extensions.DefaultCollection() if nil.
	Collection *extensions.Collection

	// Extensions decodes opaque extension payloads.
	// OPTIONAL: Uses codec.DefaultExtensionDecoder if nil, which drops
	// optimization payloads and rejects enhancements and details.
	Extensions codec.ExtensionDecoder

	// Compression of marshaled plans. Unmarshal detects the framing itself.
	// OPTIONAL: Defaults to CompressionNone.
	Compression Compression

	// MaxDecompressedSize bounds the decompressed size of one envelope.
	// OPTIONAL: If 0, uses the zstd library default.
	MaxDecompressedSize uint64

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level
}

// ServerConfig contains configuration for the plan exchange gRPC service.
type ServerConfig struct {
	Config

	// Auth provides authentication logic.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	Auth auth.Authenticator

	// Allocator for Arrow IPC schema encoding.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int
}

// Standard errors returned by the substrait package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnauthorized indicates authentication failed.
	// Return this from Authenticator.Authenticate() for invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")
)

// validateConfig checks that Config fields are valid.
func validateConfig(config Config) error {
	if config.Compression != CompressionNone && config.Compression != CompressionZstd {
		return fmt.Errorf("unknown compression %s", config.Compression)
	}
	return nil
}

// validateServerConfig checks that ServerConfig fields are valid.
func validateServerConfig(config ServerConfig) error {
	if err := validateConfig(config.Config); err != nil {
		return err
	}
	if config.MaxMessageSize < 0 {
		return fmt.Errorf("max message size must not be negative, got %d", config.MaxMessageSize)
	}
	return nil
}

// logger returns the configured logger, building one at LogLevel when
// none is set.
func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel == nil {
		return slog.Default()
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: *c.LogLevel,
	})
	return slog.New(handler)
}
