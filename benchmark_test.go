package substrait_test

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	substrait "github.com/hugr-lab/substrait-go"
	"github.com/hugr-lab/substrait-go/catalog"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/internal/serialize"
	"github.com/hugr-lab/substrait-go/plan"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

// chainPlan stacks depth filters over one scan.
func chainPlan(b *testing.B, c *substrait.Codec, depth int) *plan.Plan {
	b.Helper()
	reg := c.Registry()
	schema := must(types.NewNamedStruct(
		[]string{"id", "value"},
		types.R.Struct(types.R.I64(), types.N.FP64()),
	))
	var rel relation.Relation = must(relation.NewNamedScan([]string{"data"}, schema))
	for i := 0; i < depth; i++ {
		fields := rel.DerivedRecordType()
		cond := must(expr.ResolveScalar(reg, "equal",
			must(expr.NewFieldRef(fields, 0)), expr.NewI64(int64(i), false)))
		rel = must(relation.NewFilter(rel, cond))
	}
	root := must(plan.NewRoot(rel, []string{"id", "value"}))
	return must(plan.New([]plan.Rel{plan.RootOf(root)}, nil))
}

// BenchmarkMarshal benchmarks plan encoding with and without compression.
func BenchmarkMarshal(b *testing.B) {
	for _, compression := range []substrait.Compression{substrait.CompressionNone, substrait.CompressionZstd} {
		for _, depth := range []int{1, 10, 100} {
			b.Run(fmt.Sprintf("%s/depth_%d", compression, depth), func(b *testing.B) {
				c := newCodec(b, substrait.Config{Compression: compression})
				defer c.Close()
				p := chainPlan(b, c, depth)

				b.ResetTimer()
				b.ReportAllocs()

				var size int
				for i := 0; i < b.N; i++ {
					data, err := c.Marshal(p)
					if err != nil {
						b.Fatalf("Marshal failed: %v", err)
					}
					size = len(data)
				}

				b.StopTimer()
				b.ReportMetric(float64(size), "bytes")
			})
		}
	}
}

// BenchmarkUnmarshal benchmarks decoding, including resolution and
// re-validation of every node.
func BenchmarkUnmarshal(b *testing.B) {
	for _, depth := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("depth_%d", depth), func(b *testing.B) {
			c := newCodec(b, substrait.Config{Compression: substrait.CompressionZstd})
			defer c.Close()
			data, err := c.Marshal(chainPlan(b, c, depth))
			if err != nil {
				b.Fatalf("Marshal failed: %v", err)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := c.Unmarshal(data); err != nil {
					b.Fatalf("Unmarshal failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkSchemaSerialization benchmarks converting a root schema to an
// Arrow IPC schema message.
func BenchmarkSchemaSerialization(b *testing.B) {
	names := make([]string, 0, 50)
	fields := make([]types.Type, 0, 50)
	for i := 0; i < 50; i++ {
		names = append(names, fmt.Sprintf("col_%d", i))
		switch i % 3 {
		case 0:
			fields = append(fields, types.R.I64())
		case 1:
			fields = append(fields, types.N.Str())
		default:
			fields = append(fields, types.R.FP64())
		}
	}
	ns := must(types.NewNamedStruct(names, types.R.Struct(fields...)))
	allocator := memory.DefaultAllocator

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		as, err := catalog.SchemaToArrow(ns)
		if err != nil {
			b.Fatalf("SchemaToArrow failed: %v", err)
		}
		if _, err := serialize.SerializeSchema(as, allocator); err != nil {
			b.Fatalf("SerializeSchema failed: %v", err)
		}
	}
}
