package substrait_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/grpc"

	substrait "github.com/hugr-lab/substrait-go"
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/internal/serialize"
	"github.com/hugr-lab/substrait-go/plan"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func newCodec(t testing.TB, config substrait.Config) *substrait.Codec {
	t.Helper()
	c, err := substrait.NewCodec(config)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

// salesPlan doubles the amount of selected sales.
func salesPlan(t testing.TB, c *substrait.Codec) *plan.Plan {
	t.Helper()
	reg := c.Registry()
	schema := must(types.NewNamedStruct(
		[]string{"id", "amount", "region"},
		types.R.Struct(types.R.I64(), types.R.I64(), types.R.Str()),
	))
	sales := must(relation.NewNamedScan([]string{"sales"}, schema))
	fields := sales.DerivedRecordType()

	positive := must(expr.ResolveScalar(reg, "equal",
		must(expr.NewFieldRef(fields, 0)), expr.NewI64(1, false)))
	filter := must(relation.NewFilter(sales, positive))
	project := must(relation.NewProject(filter, []expr.Expression{
		must(expr.ResolveScalar(reg, "add",
			must(expr.NewFieldRef(fields, 1)), must(expr.NewFieldRef(fields, 1)))),
	}))
	root := must(plan.NewRoot(project, []string{"doubled"}))
	return must(plan.New([]plan.Rel{plan.RootOf(root)}, nil))
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, compression := range []substrait.Compression{substrait.CompressionNone, substrait.CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			c := newCodec(t, substrait.Config{Compression: compression})
			defer c.Close()

			p := salesPlan(t, c)
			data, err := c.Marshal(p)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if got := serialize.IsCompressed(data); got != (compression == substrait.CompressionZstd) {
				t.Errorf("Expected compressed=%v, got %v", compression == substrait.CompressionZstd, got)
			}

			back, err := c.Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !back.Equal(p) {
				t.Errorf("Expected equal plan after round trip, got:\n%s", plan.Explain(back))
			}
		})
	}
}

func TestUnmarshalDetectsCompression(t *testing.T) {
	zc := newCodec(t, substrait.Config{Compression: substrait.CompressionZstd})
	defer zc.Close()
	plain := newCodec(t, substrait.Config{})
	defer plain.Close()

	p := salesPlan(t, zc)
	data, err := zc.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := plain.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal of compressed envelope with uncompressed codec failed: %v", err)
	}
	if !back.Equal(p) {
		t.Error("Expected equal plan")
	}
}

func TestPackageMarshal(t *testing.T) {
	c := newCodec(t, substrait.Config{})
	defer c.Close()
	p := salesPlan(t, c)

	data, err := substrait.Marshal(p, substrait.Config{Compression: substrait.CompressionZstd})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := substrait.Unmarshal(data, substrait.Config{})
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Equal(p) {
		t.Error("Expected equal plan")
	}
}

func TestUnmarshalIntegrity(t *testing.T) {
	c := newCodec(t, substrait.Config{})
	defer c.Close()

	tests := map[string][]byte{
		"garbage":         {0xc1, 0x01},
		"truncated frame": {0x28, 0xb5, 0x2f, 0xfd, 0x00},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Unmarshal(data)
			if !errors.Is(err, errdefs.ErrDecodeIntegrity) {
				t.Errorf("Expected ErrDecodeIntegrity, got %v", err)
			}
		})
	}
}

func TestUnmarshalUnknownFunction(t *testing.T) {
	c := newCodec(t, substrait.Config{})
	defer c.Close()
	data, err := c.Marshal(salesPlan(t, c))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	empty, err := extensions.NewCollection()
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}
	_, err = substrait.Unmarshal(data, substrait.Config{Collection: empty})
	if !errors.Is(err, errdefs.ErrResolution) {
		t.Errorf("Expected ErrResolution for undeclared function, got %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := substrait.NewCodec(substrait.Config{Compression: substrait.Compression(7)})
	if !errors.Is(err, substrait.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	_, err = substrait.NewServer(grpc.NewServer(), substrait.ServerConfig{MaxMessageSize: -1})
	if !errors.Is(err, substrait.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newCodec(t, substrait.Config{Logger: logger})
	defer c.Close()

	if _, err := c.Marshal(salesPlan(t, c)); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Marshaled plan") {
		t.Errorf("Expected debug log for marshal, got %q", buf.String())
	}
}

func TestServerOptions(t *testing.T) {
	if opts := substrait.ServerOptions(substrait.ServerConfig{}); len(opts) != 0 {
		t.Errorf("Expected no options for empty config, got %d", len(opts))
	}
	opts := substrait.ServerOptions(substrait.ServerConfig{Auth: substrait.NoAuth(), MaxMessageSize: 1 << 20})
	if len(opts) != 4 {
		t.Errorf("Expected 4 options, got %d", len(opts))
	}
}
