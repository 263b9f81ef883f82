package codec

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	extpb "github.com/substrait-io/substrait-protobuf/go/substraitpb/extensions"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/internal/recovery"
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

func collection(t *testing.T) *extensions.Collection {
	t.Helper()
	c, err := extensions.DefaultCollection()
	if err != nil {
		t.Fatalf("DefaultCollection failed: %v", err)
	}
	return c
}

func ordersScan(t *testing.T, opts ...relation.Option) *relation.NamedScan {
	t.Helper()
	schema := must(types.NewNamedStruct(
		[]string{"id", "amount", "region", "flag"},
		types.R.Struct(types.R.I64(), types.N.FP64(), types.R.Str(), types.R.Boolean()),
	))
	return must(relation.NewNamedScan([]string{"orders"}, schema, opts...))
}

func customersScan(t *testing.T) *relation.NamedScan {
	t.Helper()
	schema := must(types.NewNamedStruct([]string{"cid", "name"}, types.R.Struct(types.R.I64(), types.R.Str())))
	return must(relation.NewNamedScan([]string{"customers"}, schema))
}

func ref(fields []types.Type, path ...int32) *expr.FieldReference {
	return must(expr.NewFieldRef(fields, path...))
}

// encodeBytes encodes p down to deterministic protobuf bytes.
func encodeBytes(t *testing.T, p *plan.Plan) []byte {
	t.Helper()
	w, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(w)
	if err != nil {
		t.Fatalf("proto marshal failed: %v", err)
	}
	return data
}

func decodeBytes(t *testing.T, data []byte, dec *Decoder) (*plan.Plan, error) {
	t.Helper()
	var w pb.Plan
	if err := proto.Unmarshal(data, &w); err != nil {
		t.Fatalf("proto unmarshal failed: %v", err)
	}
	return dec.Decode(&w)
}

func roundTrip(t *testing.T, p *plan.Plan, dec *Decoder) (*plan.Plan, error) {
	t.Helper()
	return decodeBytes(t, encodeBytes(t, p), dec)
}

func singlePlan(t *testing.T, rel relation.Relation) *plan.Plan {
	t.Helper()
	return must(plan.New([]plan.Rel{plan.RelOf(rel)}, nil))
}

func TestLiteralRoundTrip(t *testing.T) {
	lits := []expr.Literal{
		expr.NewBool(true, false),
		expr.NewBool(false, true),
		expr.NewI8(-8, true),
		expr.NewI16(1600, false),
		expr.NewI32(-32, false),
		expr.NewI64(math.MaxInt64, false),
		expr.NewFP32(1.5, false),
		expr.NewFP64(-2.25, true),
		expr.NewString("héllo", false),
		expr.NewBinary([]byte{0, 1, 2}, false),
		expr.NewTimestamp(1_700_000_000_000_000, false),
		expr.NewTimestampTZ(1_700_000_000_000_001, true),
		expr.NewDate(19000, false),
		expr.NewTime(3_600_000_000, false),
		expr.NewIntervalYear(1, 11, false),
		expr.NewIntervalDay(3, 59, 999, true),
		expr.NewUUID(uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"), false),
		must(expr.NewFixedChar("abc", false)),
		must(expr.NewVarChar("ab", 10, true)),
		must(expr.NewFixedBinary([]byte{9, 8, 7, 6}, false)),
		must(expr.NewDecimalFromString("10.00", 10, 2, false)),
		must(expr.NewDecimalFromString("-123.456", 38, 3, true)),
		expr.NewStruct([]expr.Literal{expr.NewI32(1, false), expr.NewString("x", true)}, false),
		must(expr.NewList([]expr.Literal{expr.NewI64(1, false), expr.NewI64(2, true)}, false)),
		must(expr.NewMap([]expr.MapEntry{
			{Key: expr.NewString("k", false), Value: expr.NewFP64(1, false)},
		}, true)),
		expr.NewNull(types.Must(types.R.Decimal(12, 4))),
		expr.NewNull(types.R.List(types.N.I32())),
		expr.NewEmptyList(types.R.List(types.N.Str())),
		expr.NewEmptyMap(types.N.Map(types.R.Str(), types.N.I64())),
	}

	e := &encoder{anchors: extensions.NewCollector()}
	for _, lit := range lits {
		w, err := e.literal(lit)
		if err != nil {
			t.Fatalf("literal %s: encode failed: %v", lit.Type(), err)
		}
		data, err := proto.Marshal(w)
		if err != nil {
			t.Fatalf("literal %s: proto marshal failed: %v", lit.Type(), err)
		}
		var back pb.Expression_Literal
		if err := proto.Unmarshal(data, &back); err != nil {
			t.Fatalf("literal %s: proto unmarshal failed: %v", lit.Type(), err)
		}
		got, err := decodeLiteral(&back)
		if err != nil {
			t.Fatalf("literal %s: decode failed: %v", lit.Type(), err)
		}
		if !got.Equal(lit) {
			t.Errorf("Expected literal %s to round trip, got %s", expr.Format(lit), expr.Format(got))
		}
		if !got.Type().Equal(lit.Type()) {
			t.Errorf("Expected type %s, got %s", lit.Type(), got.Type())
		}
	}
}

func TestDecimalExactBytes(t *testing.T) {
	lit := must(expr.NewDecimalFromString("10.00", 10, 2, false))
	if want := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x03, 0xE8}; !bytes.Equal(lit.Bytes(), want) {
		t.Errorf("Expected big-endian bytes %x, got %x", want, lit.Bytes())
	}

	w, err := (&encoder{anchors: extensions.NewCollector()}).literal(lit)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	dec := w.GetDecimal()
	want := []byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(dec.GetValue(), want) {
		t.Errorf("Expected little-endian bytes %x, got %x", want, dec.GetValue())
	}
	if dec.GetPrecision() != 10 || dec.GetScale() != 2 {
		t.Errorf("Expected decimal<10,2>, got decimal<%d,%d>", dec.GetPrecision(), dec.GetScale())
	}

	neg := must(expr.NewDecimalFromString("-1", 38, 0, false))
	w, err = (&encoder{anchors: extensions.NewCollector()}).literal(neg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(w.GetDecimal().GetValue(), bytes.Repeat([]byte{0xFF}, 16)) {
		t.Errorf("Expected all-ones two's complement for -1, got %x", w.GetDecimal().GetValue())
	}
}

func TestIntervalPrecision(t *testing.T) {
	day := func(precision int32, subseconds int64) *pb.Expression_Literal {
		return &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_IntervalDayToSecond_{
			IntervalDayToSecond: &pb.Expression_Literal_IntervalDayToSecond{
				Days:          1,
				Seconds:       2,
				PrecisionMode: &pb.Expression_Literal_IntervalDayToSecond_Precision{Precision: precision},
				Subseconds:    subseconds,
			},
		}}
	}
	legacy := &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_IntervalDayToSecond_{
		IntervalDayToSecond: &pb.Expression_Literal_IntervalDayToSecond{
			Days:          1,
			Seconds:       2,
			PrecisionMode: &pb.Expression_Literal_IntervalDayToSecond_Microseconds{Microseconds: 7},
		},
	}}

	tests := []struct {
		name   string
		lit    *pb.Expression_Literal
		micros int32
	}{
		{"microseconds", day(6, 250), 250},
		{"milliseconds", day(3, 5), 5000},
		{"nanoseconds", day(9, 123_456_000), 123_456},
		{"legacy microseconds", legacy, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeLiteral(tt.lit)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			iv := got.(*expr.IntervalDayLiteral)
			if iv.Days != 1 || iv.Seconds != 2 || iv.Microseconds != tt.micros {
				t.Errorf("Expected 1d 2s %dus, got %dd %ds %dus", tt.micros, iv.Days, iv.Seconds, iv.Microseconds)
			}
		})
	}

	if _, err := decodeLiteral(day(9, 1)); !errors.Is(err, errdefs.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for sub-microsecond digits, got %v", err)
	}
	if _, err := decodeLiteral(day(12, 1)); !errors.Is(err, errdefs.ErrDecodeIntegrity) {
		t.Errorf("Expected ErrDecodeIntegrity for precision 12, got %v", err)
	}
}

func TestLiteralDecodeIntegrity(t *testing.T) {
	tests := []struct {
		name string
		lit  *pb.Expression_Literal
	}{
		{"missing", nil},
		{"no case", &pb.Expression_Literal{}},
		{"i8 overflow", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I8{I8: 300}}},
		{"short decimal", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Decimal_{
			Decimal: &pb.Expression_Literal_Decimal{Value: []byte{1}, Precision: 10, Scale: 2},
		}}},
		{"bad uuid", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Uuid{Uuid: []byte{1, 2, 3}}}},
		{"varchar too long", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_VarChar_{
			VarChar: &pb.Expression_Literal_VarChar{Value: "abcdef", Length: 3},
		}}},
		{"empty list without element", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_EmptyList{
			EmptyList: &pb.Type_List{Nullability: pb.Type_NULLABILITY_REQUIRED},
		}}},
		{"unspecified nullability", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_Null{
			Null: &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{}}},
		}}},
		{"subseconds without precision", &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_IntervalDayToSecond_{
			IntervalDayToSecond: &pb.Expression_Literal_IntervalDayToSecond{Subseconds: 5},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeLiteral(tt.lit)
			if !errors.Is(err, errdefs.ErrDecodeIntegrity) {
				t.Errorf("Expected ErrDecodeIntegrity, got %v", err)
			}
		})
	}
}

// kitchenSink builds a plan that uses every relation kind and most
// expression kinds.
func kitchenSink(t *testing.T) *plan.Plan {
	t.Helper()
	c := collection(t)
	reg := extensions.NewRegistry(c)

	orders := ordersScan(t)
	customers := customersScan(t)
	of := orders.DerivedRecordType()
	cf := customers.DerivedRecordType()

	// Filter -> Aggregate -> Sort -> Fetch, rooted.
	isEU := must(expr.ResolveScalar(reg, "equal", ref(of, 2), expr.NewString("EU", false)))
	filter := must(relation.NewFilter(orders, isEU))
	count := must(expr.ResolveAggregate(reg, "count"))
	sum := must(expr.ResolveAggregate(reg, "sum", ref(of, 1)))
	agg := must(relation.NewAggregate(filter,
		[]relation.Grouping{{Expressions: []expr.Expression{ref(of, 2)}}},
		[]relation.Measure{{Function: sum}, {Function: count, Filter: ref(of, 3)}},
	))
	af := agg.DerivedRecordType()
	sorted := must(relation.NewSort(agg, []expr.SortField{{Expr: ref(af, 2), Direction: expr.SortDescNullsLast}}))
	limit := int64(10)
	fetch := must(relation.NewFetch(sorted, 5, &limit, relation.WithRemap(0, 2)))
	root := must(plan.NewRoot(fetch, []string{"region", "orders"}))

	// Correlated EXISTS with an outer reference.
	outer := must(expr.NewOuterReference(1, of, expr.StructFieldSegment{Field: 0}))
	inner := must(relation.NewFilter(customers, must(expr.ResolveScalar(reg, "equal", ref(cf, 0), outer))))
	exists := must(expr.NewSetPredicate(expr.SetPredicateExists, inner))
	correlated := must(relation.NewFilter(orders, exists))

	// Window, IN and scalar subqueries in a projection.
	window := must(expr.ResolveWindow(reg, "row_number", expr.WindowSpec{
		Partitions: []expr.Expression{ref(of, 2)},
		Sorts:      []expr.SortField{{Expr: ref(of, 0), Direction: expr.SortAscNullsFirst}},
		Lower:      expr.UnboundedPreceding(),
		Upper:      expr.CurrentRow(),
		BoundsType: expr.BoundsRows,
	}))
	ids := must(relation.NewProject(customers, []expr.Expression{ref(cf, 0)}))
	in := must(expr.NewInPredicate([]expr.Expression{ref(of, 0)}, ids))
	scalar := must(expr.NewScalarSubquery(ids))
	project := must(relation.NewProject(orders, []expr.Expression{ref(of, 0), window, in, scalar}))

	// Left join with a post-join filter over the nullable right side.
	cond := must(expr.ResolveScalar(reg, "equal", ref(append(append([]types.Type{}, of...), cf...), 0),
		ref(append(append([]types.Type{}, of...), cf...), 4)))
	bare := must(relation.NewJoin(orders, customers, relation.JoinLeft, nil, nil))
	post := must(expr.ResolveScalar(reg, "is_null", ref(bare.DerivedRecordType(), 5)))
	join := must(relation.NewJoin(orders, customers, relation.JoinLeft, cond, post))

	cross := must(relation.NewCross(orders, customers))
	set := must(relation.NewSet(relation.SetOpUnionAll, []relation.Relation{orders, ordersScan(t)}))
	expand := must(relation.NewExpand(customers, []relation.ExpandField{
		relation.SwitchingField{Duplicates: []expr.Expression{ref(cf, 1), expr.NewString("all", false)}},
		relation.ConsistentField{Expr: ref(cf, 0)},
	}))

	// Virtual table with conditionals and a cast.
	vschema := must(types.NewNamedStruct([]string{"a", "b"}, types.R.Struct(types.R.I32(), types.N.Str())))
	values := must(relation.NewVirtualTableScan(vschema, []*expr.StructLiteral{
		expr.NewStruct([]expr.Literal{expr.NewI32(1, false), expr.NewString("x", false)}, false),
		expr.NewStruct([]expr.Literal{expr.NewI32(2, false), expr.NewNull(types.R.Str())}, false),
	}))
	vf := values.DerivedRecordType()
	isOne := must(expr.ResolveScalar(reg, "equal", ref(vf, 0), expr.NewI32(1, false)))
	ifThen := must(expr.NewIfThen([]expr.IfClause{{If: isOne, Then: expr.NewString("one", false)}}, ref(vf, 1)))
	sw := must(expr.NewSwitch(ref(vf, 0),
		[]expr.SwitchClause{{Value: expr.NewI32(1, false), Then: expr.NewString("one", false)}},
		expr.NewString("other", false)))
	sol := must(expr.NewSingularOrList(ref(vf, 0), []expr.Expression{expr.NewI32(1, false), expr.NewI32(2, false)}))
	mol := must(expr.NewMultiOrList([]expr.Expression{ref(vf, 0), ref(vf, 1)},
		[][]expr.Expression{{expr.NewI32(1, false), expr.NewString("x", false)}}))
	cast := must(expr.NewCast(ref(vf, 0), types.R.I64(), expr.FailureReturnNull))
	tuple := expr.NewStruct([]expr.Literal{expr.NewI32(7, false), expr.NewString("y", false)}, false)
	field := must(expr.NewExpressionReference(tuple, expr.StructFieldSegment{Field: 1}))
	conditionals := must(relation.NewProject(values, []expr.Expression{ifThen, sw, sol, mol, cast, field}))

	empty := must(relation.NewEmptyScan(vschema))

	return must(plan.New([]plan.Rel{
		plan.RootOf(root),
		plan.RelOf(correlated),
		plan.RelOf(project),
		plan.RelOf(join),
		plan.RelOf(cross),
		plan.RelOf(set),
		plan.RelOf(expand),
		plan.RelOf(conditionals),
		plan.RelOf(empty),
	}, nil))
}

func TestPlanRoundTrip(t *testing.T) {
	p := kitchenSink(t)
	dec := &Decoder{Collection: collection(t)}

	got, err := roundTrip(t, p, dec)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !got.Equal(p) {
		t.Errorf("Expected decoded plan to equal original.\nwant:\n%s\ngot:\n%s", plan.Explain(p), plan.Explain(got))
	}

	root := got.Roots()[0]
	if names := strings.Join(root.Names, ","); names != "region,orders" {
		t.Errorf("Expected root names 'region,orders', got '%s'", names)
	}
	want := []types.Type{types.R.Str(), types.R.I64()}
	if !types.EqualTypes(root.Input.RecordType(), want) {
		t.Errorf("Expected root record type %v, got %v", want, root.Input.RecordType())
	}
	if _, ok := got.Relations[8].Input().(*relation.EmptyScan); !ok {
		t.Errorf("Expected empty scan, got %T", got.Relations[8].Input())
	}
}

func TestAnchorTable(t *testing.T) {
	reg := extensions.NewRegistry(collection(t))
	values := must(relation.NewVirtualTableScan(
		must(types.NewNamedStruct([]string{"a"}, types.R.Struct(types.R.I32()))),
		[]*expr.StructLiteral{expr.NewStruct([]expr.Literal{expr.NewI32(1, false)}, false)},
	))
	f := values.DerivedRecordType()
	add := must(expr.ResolveScalar(reg, "add", ref(f, 0), ref(f, 0)))
	eq := must(expr.ResolveScalar(reg, "equal", ref(f, 0), ref(f, 0)))
	add2 := must(expr.ResolveScalar(reg, "add", ref(f, 0), expr.NewI32(2, false)))
	p := singlePlan(t, must(relation.NewProject(values, []expr.Expression{add, eq, add2})))

	w, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(w.Extensions) != 2 {
		t.Fatalf("Expected 2 function declarations, got %d", len(w.Extensions))
	}
	first, second := w.Extensions[0].GetExtensionFunction(), w.Extensions[1].GetExtensionFunction()
	if first.GetFunctionAnchor() != 0 || first.GetName() != "add:i32_i32" {
		t.Errorf("Expected anchor 0 'add:i32_i32', got %d '%s'", first.GetFunctionAnchor(), first.GetName())
	}
	if second.GetFunctionAnchor() != 1 || !strings.HasPrefix(second.GetName(), "equal:") {
		t.Errorf("Expected anchor 1 'equal:...', got %d '%s'", second.GetFunctionAnchor(), second.GetName())
	}
	if len(w.ExtensionUris) != 2 || w.ExtensionUris[0].ExtensionUriAnchor != 0 || w.ExtensionUris[1].ExtensionUriAnchor != 1 {
		t.Errorf("Expected URI anchors 0 and 1, got %v", w.ExtensionUris)
	}
	if first.GetExtensionUriReference() == second.GetExtensionUriReference() {
		t.Errorf("Expected add and equal to come from different URIs")
	}
	exprs := w.Relations[0].GetRel().GetProject().GetExpressions()
	if ref := exprs[2].GetScalarFunction().GetFunctionReference(); ref != 0 {
		t.Errorf("Expected second add to reuse anchor 0, got %d", ref)
	}
	if w.GetVersion().GetProducer() != Producer {
		t.Errorf("Expected producer %q, got %q", Producer, w.GetVersion().GetProducer())
	}
}

func TestEncodeDeterministic(t *testing.T) {
	p := kitchenSink(t)
	want := encodeBytes(t, p)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			w, err := Encode(p)
			if err != nil {
				return err
			}
			data, err := proto.MarshalOptions{Deterministic: true}.Marshal(w)
			if err != nil {
				return err
			}
			if !bytes.Equal(data, want) {
				return errors.New("encoded bytes differ")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent encode: %v", err)
	}
}

func TestIdempotence(t *testing.T) {
	hint := must(relation.NewPayload(wrapperspb.String("use index")))
	p := singlePlan(t, ordersScan(t, relation.WithAdvancedExtension(&relation.AdvancedExtension{Optimization: hint})))
	dec := &Decoder{Collection: collection(t)}

	once, err := roundTrip(t, p, dec)
	if err != nil {
		t.Fatalf("first round trip failed: %v", err)
	}
	twice, err := roundTrip(t, once, dec)
	if err != nil {
		t.Fatalf("second round trip failed: %v", err)
	}
	if !twice.Equal(once) {
		t.Error("Expected decode(encode(x)) to be idempotent")
	}
	if !bytes.Equal(encodeBytes(t, once), encodeBytes(t, twice)) {
		t.Error("Expected identical bytes after the second round trip")
	}
}

// hintDecoder understands enhancement payloads and nothing else.
type hintDecoder struct {
	DefaultExtensionDecoder
}

func (hintDecoder) DecodeEnhancement(a *anypb.Any) (relation.Payload, error) {
	return relation.AnyPayload{Any: a}, nil
}

func TestExtensionAsymmetry(t *testing.T) {
	hint := must(relation.NewPayload(wrapperspb.String("hint")))
	dec := &Decoder{Collection: collection(t)}

	t.Run("optimization is dropped", func(t *testing.T) {
		p := singlePlan(t, ordersScan(t, relation.WithAdvancedExtension(&relation.AdvancedExtension{Optimization: hint})))
		got, err := roundTrip(t, p, dec)
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if got.EqualRelations(p) {
			t.Error("Expected relations to differ after dropping the optimization")
		}
		if got.Relations[0].Input().AdvancedExtension() != nil {
			t.Error("Expected no advanced extension after decode")
		}
	})

	t.Run("enhancement fails", func(t *testing.T) {
		p := singlePlan(t, ordersScan(t, relation.WithAdvancedExtension(&relation.AdvancedExtension{Enhancement: hint})))
		_, err := roundTrip(t, p, dec)
		if !errors.Is(err, errdefs.ErrUnhandledEnhancement) {
			t.Fatalf("Expected ErrUnhandledEnhancement, got %v", err)
		}
		if !strings.Contains(err.Error(), "relation 0") {
			t.Errorf("Expected error path to name relation 0, got '%s'", err)
		}
	})

	t.Run("plan level enhancement", func(t *testing.T) {
		p := must(plan.New([]plan.Rel{plan.RelOf(ordersScan(t))}, &relation.AdvancedExtension{Enhancement: hint}))
		if _, err := roundTrip(t, p, dec); !errors.Is(err, errdefs.ErrUnhandledEnhancement) {
			t.Fatalf("Expected ErrUnhandledEnhancement, got %v", err)
		}
	})

	t.Run("custom decoder keeps enhancement", func(t *testing.T) {
		p := singlePlan(t, ordersScan(t, relation.WithAdvancedExtension(&relation.AdvancedExtension{Enhancement: hint})))
		got, err := roundTrip(t, p, &Decoder{Collection: collection(t), Extensions: hintDecoder{}})
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if !got.Equal(p) {
			t.Error("Expected enhancement to survive with a custom decoder")
		}
	})
}

// countDetail is a leaf producing n i64 columns.
type countDetail struct {
	n int64
}

func (d countDetail) ToAny() (*anypb.Any, error) { return anypb.New(wrapperspb.Int64(d.n)) }

func (d countDetail) DeriveRecordType() ([]types.Type, error) {
	out := make([]types.Type, d.n)
	for i := range out {
		out[i] = types.R.I64()
	}
	return out, nil
}

// passDetail forwards its input's record type.
type passDetail struct{}

func (passDetail) ToAny() (*anypb.Any, error) { return anypb.New(wrapperspb.String("pass")) }

func (passDetail) DeriveRecordType(input relation.Relation) ([]types.Type, error) {
	return input.RecordType(), nil
}

type detailDecoder struct {
	DefaultExtensionDecoder
}

func (detailDecoder) DecodeLeafDetail(a *anypb.Any) (relation.LeafDetail, error) {
	var v wrapperspb.Int64Value
	if err := a.UnmarshalTo(&v); err != nil {
		return nil, err
	}
	return countDetail{n: v.GetValue()}, nil
}

func (detailDecoder) DecodeSingleDetail(*anypb.Any, relation.Relation) (relation.SingleDetail, error) {
	panic("detail decoder bug")
}

func TestExtensionRelations(t *testing.T) {
	leaf := must(relation.NewExtensionLeaf(countDetail{n: 3}, relation.WithRemap(2)))
	p := singlePlan(t, leaf)

	if _, err := roundTrip(t, p, &Decoder{}); !errors.Is(err, errdefs.ErrUnsupported) {
		t.Fatalf("Expected ErrUnsupported with the default decoder, got %v", err)
	}

	got, err := roundTrip(t, p, &Decoder{Extensions: detailDecoder{}})
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !got.Equal(p) {
		t.Error("Expected extension leaf to round trip")
	}

	single := singlePlan(t, must(relation.NewExtensionSingle(leaf, passDetail{})))
	_, err = roundTrip(t, single, &Decoder{Extensions: detailDecoder{}})
	if !errors.Is(err, recovery.ErrPanic) {
		t.Fatalf("Expected recovered panic, got %v", err)
	}
}

func TestWindowBoundRoundTrip(t *testing.T) {
	reg := extensions.NewRegistry(collection(t))
	orders := ordersScan(t)
	dec := &Decoder{Collection: collection(t)}

	tests := []struct {
		name         string
		lower, upper expr.WindowBound
	}{
		{"current row", expr.CurrentRow(), expr.CurrentRow()},
		{"preceding", expr.PrecedingBound(3), expr.CurrentRow()},
		{"following", expr.CurrentRow(), expr.FollowingBound(2)},
		{"unbounded preceding", expr.UnboundedPreceding(), expr.PrecedingBound(0)},
		{"unbounded following", expr.FollowingBound(1), expr.UnboundedFollowing()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := must(expr.ResolveWindow(reg, "rank", expr.WindowSpec{
				Lower:      tt.lower,
				Upper:      tt.upper,
				BoundsType: expr.BoundsRange,
			}))
			p := singlePlan(t, must(relation.NewProject(orders, []expr.Expression{fn})))
			got, err := roundTrip(t, p, dec)
			if err != nil {
				t.Fatalf("round trip failed: %v", err)
			}
			back := got.Relations[0].Input().(*relation.Project).Expressions[0].(*expr.WindowFunction)
			if back.Lower != tt.lower || back.Upper != tt.upper {
				t.Errorf("Expected bounds %s..%s, got %s..%s", tt.lower, tt.upper, back.Lower, back.Upper)
			}
		})
	}
}

func TestDecodeIntegrity(t *testing.T) {
	reg := extensions.NewRegistry(collection(t))
	orders := ordersScan(t)
	of := orders.DerivedRecordType()
	add := must(expr.ResolveScalar(reg, "add", ref(of, 0), ref(of, 0)))
	project := must(relation.NewProject(orders, []expr.Expression{add}))
	limit := int64(1)
	fetch := must(relation.NewFetch(project, 0, &limit))
	base := singlePlan(t, fetch)

	fetchOf := func(w *pb.Plan) *pb.FetchRel { return w.Relations[0].GetRel().GetFetch() }
	projectOf := func(w *pb.Plan) *pb.ProjectRel { return fetchOf(w).GetInput().GetProject() }
	addOf := func(w *pb.Plan) *pb.Expression_ScalarFunction {
		return projectOf(w).GetExpressions()[0].GetScalarFunction()
	}
	schemaOf := func(w *pb.Plan) *pb.Type_Struct {
		return projectOf(w).GetInput().GetRead().GetBaseSchema().GetStruct()
	}

	tests := []struct {
		name   string
		mutate func(w *pb.Plan)
		want   error
	}{
		{"unknown function anchor", func(w *pb.Plan) {
			addOf(w).FunctionReference = 42
		}, errdefs.ErrDecodeIntegrity},
		{"unknown URI anchor", func(w *pb.Plan) {
			w.Extensions[0].GetExtensionFunction().ExtensionUriReference = 7
		}, errdefs.ErrDecodeIntegrity},
		{"declaration without mapping", func(w *pb.Plan) {
			w.Extensions[0].MappingType = nil
		}, errdefs.ErrDecodeIntegrity},
		{"output type mismatch", func(w *pb.Plan) {
			addOf(w).OutputType = &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{Nullability: pb.Type_NULLABILITY_REQUIRED}}}
		}, errdefs.ErrDecodeIntegrity},
		{"negative offset", func(w *pb.Plan) {
			fetchOf(w).OffsetMode = &pb.FetchRel_Offset{Offset: -1}
		}, errdefs.ErrDecodeIntegrity},
		{"negative count", func(w *pb.Plan) {
			fetchOf(w).CountMode = &pb.FetchRel_Count{Count: -2}
		}, errdefs.ErrDecodeIntegrity},
		{"computed count", func(w *pb.Plan) {
			fetchOf(w).CountMode = &pb.FetchRel_CountExpr{CountExpr: projectOf(w).GetExpressions()[0]}
		}, errdefs.ErrUnsupported},
		{"relation without case", func(w *pb.Plan) {
			w.Relations[0].GetRel().RelType = nil
		}, errdefs.ErrDecodeIntegrity},
		{"plan relation without case", func(w *pb.Plan) {
			w.Relations[0].RelType = nil
		}, errdefs.ErrDecodeIntegrity},
		{"missing common", func(w *pb.Plan) {
			fetchOf(w).Common = nil
		}, errdefs.ErrDecodeIntegrity},
		{"missing output mapping", func(w *pb.Plan) {
			fetchOf(w).Common.EmitKind = nil
		}, errdefs.ErrDecodeIntegrity},
		{"remap out of range", func(w *pb.Plan) {
			fetchOf(w).Common.EmitKind = &pb.RelCommon_Emit_{Emit: &pb.RelCommon_Emit{OutputMapping: []int32{5}}}
		}, errdefs.ErrDecodeIntegrity},
		{"unspecified nullability", func(w *pb.Plan) {
			schemaOf(w).Nullability = pb.Type_NULLABILITY_UNSPECIFIED
		}, errdefs.ErrDecodeIntegrity},
		{"type without kind", func(w *pb.Plan) {
			schemaOf(w).Types[0].Kind = nil
		}, errdefs.ErrDecodeIntegrity},
		{"user defined type", func(w *pb.Plan) {
			schemaOf(w).Types[0].Kind = &pb.Type_UserDefined_{UserDefined: &pb.Type_UserDefined{
				TypeReference: 1,
				Nullability:   pb.Type_NULLABILITY_REQUIRED,
			}}
		}, errdefs.ErrUnsupported},
		{"pushed down filter", func(w *pb.Plan) {
			projectOf(w).GetInput().GetRead().Filter = projectOf(w).GetExpressions()[0]
		}, errdefs.ErrUnsupported},
		{"unknown signature", func(w *pb.Plan) {
			w.Extensions[0].GetExtensionFunction().Name = "add:i32_i32_i32"
		}, errdefs.ErrResolution},
		{"argument without case", func(w *pb.Plan) {
			addOf(w).Arguments[1].ArgType = nil
		}, errdefs.ErrDecodeIntegrity},
		{"outer reference without enclosing query", func(w *pb.Plan) {
			sel := addOf(w).Arguments[0].GetValue().GetSelection()
			sel.RootType = &pb.Expression_FieldReference_OuterReference_{
				OuterReference: &pb.Expression_FieldReference_OuterReference{StepsOut: 1},
			}
		}, errdefs.ErrDecodeIntegrity},
		{"reference without root", func(w *pb.Plan) {
			addOf(w).Arguments[0].GetValue().GetSelection().RootType = nil
		}, errdefs.ErrDecodeIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Encode(base)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			tt.mutate(w)
			_, err = (&Decoder{Collection: collection(t)}).Decode(w)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeErrorPath(t *testing.T) {
	reg := extensions.NewRegistry(collection(t))
	orders := ordersScan(t)
	cond := must(expr.ResolveScalar(reg, "equal", ref(orders.DerivedRecordType(), 0), expr.NewI64(1, false)))
	p := must(plan.New([]plan.Rel{
		plan.RelOf(orders),
		plan.RelOf(must(relation.NewFilter(orders, cond))),
	}, nil))

	w, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	w.Relations[1].GetRel().GetFilter().GetCondition().GetScalarFunction().FunctionReference = 9

	_, err = (&Decoder{Collection: collection(t)}).Decode(w)
	var anchorErr errdefs.AnchorError
	if !errors.As(err, &anchorErr) || anchorErr.Anchor != 9 {
		t.Fatalf("Expected AnchorError for anchor 9, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "relation 1: filter: condition: ") {
		t.Errorf("Expected path context, got '%s'", err)
	}
}

func TestFetchCountModes(t *testing.T) {
	orders := ordersScan(t)
	dec := &Decoder{Collection: collection(t)}

	all := singlePlan(t, must(relation.NewFetch(orders, 2, nil)))
	w, err := Encode(all)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if w.Relations[0].GetRel().GetFetch().GetCountMode() != nil {
		t.Errorf("Expected no count for a fetch of all rows, got %v", w.Relations[0].GetRel().GetFetch().GetCountMode())
	}

	tests := []struct {
		name   string
		mutate func(f *pb.FetchRel)
		offset int64
		count  *int64
	}{
		{"missing count", func(f *pb.FetchRel) {}, 2, nil},
		{"count of minus one", func(f *pb.FetchRel) { f.CountMode = &pb.FetchRel_Count{Count: -1} }, 2, nil},
		{"literal count", func(f *pb.FetchRel) {
			f.CountMode = &pb.FetchRel_CountExpr{CountExpr: &pb.Expression{RexType: &pb.Expression_Literal_{
				Literal: &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I64{I64: 4}},
			}}}
		}, 2, func() *int64 { c := int64(4); return &c }()},
		{"literal offset", func(f *pb.FetchRel) {
			f.OffsetMode = &pb.FetchRel_OffsetExpr{OffsetExpr: &pb.Expression{RexType: &pb.Expression_Literal_{
				Literal: &pb.Expression_Literal{LiteralType: &pb.Expression_Literal_I32{I32: 7}},
			}}}
		}, 7, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Encode(all)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			tt.mutate(w.Relations[0].GetRel().GetFetch())
			got, err := dec.Decode(w)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			f := got.Relations[0].Input().(*relation.Fetch)
			if f.Offset != tt.offset {
				t.Errorf("Expected offset %d, got %d", tt.offset, f.Offset)
			}
			switch {
			case tt.count == nil && f.Count != nil:
				t.Errorf("Expected all rows, got count %d", *f.Count)
			case tt.count != nil && (f.Count == nil || *f.Count != *tt.count):
				t.Errorf("Expected count %d, got %v", *tt.count, f.Count)
			}
		})
	}
}

func TestWindowBoundPosition(t *testing.T) {
	reg := extensions.NewRegistry(collection(t))
	orders := ordersScan(t)

	tests := []struct {
		name         string
		lower, upper expr.WindowBound
	}{
		{"unbounded following as lower", expr.UnboundedFollowing(), expr.CurrentRow()},
		{"unbounded preceding as upper", expr.CurrentRow(), expr.UnboundedPreceding()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := must(expr.ResolveWindow(reg, "rank", expr.WindowSpec{
				Lower:      tt.lower,
				Upper:      tt.upper,
				BoundsType: expr.BoundsRows,
			}))
			p := singlePlan(t, must(relation.NewProject(orders, []expr.Expression{fn})))
			if _, err := Encode(p); !errors.Is(err, errdefs.ErrUnsupported) {
				t.Errorf("Expected ErrUnsupported, got %v", err)
			}
		})
	}

	fn := must(expr.ResolveWindow(reg, "rank", expr.WindowSpec{
		Lower:      expr.UnboundedPreceding(),
		Upper:      expr.UnboundedFollowing(),
		BoundsType: expr.BoundsRows,
	}))
	w, err := Encode(singlePlan(t, must(relation.NewProject(orders, []expr.Expression{fn}))))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	win := w.Relations[0].GetRel().GetProject().GetExpressions()[0].GetWindowFunction()
	if win.GetLowerBound().GetUnbounded() == nil || win.GetUpperBound().GetUnbounded() == nil {
		t.Errorf("Expected unbounded on both ends, got %v..%v", win.GetLowerBound(), win.GetUpperBound())
	}

	win.LowerBound = nil
	if _, err := (&Decoder{Collection: collection(t)}).Decode(w); !errors.Is(err, errdefs.ErrDecodeIntegrity) {
		t.Errorf("Expected ErrDecodeIntegrity for a missing bound, got %v", err)
	}
}

// keepDecoder keeps optimization payloads.
type keepDecoder struct {
	DefaultExtensionDecoder
}

func (keepDecoder) DecodeOptimization(a *anypb.Any) (relation.Payload, error) {
	return relation.AnyPayload{Any: a}, nil
}

func TestOptimizationPayloads(t *testing.T) {
	hint := must(relation.NewPayload(wrapperspb.String("hint")))
	p := must(plan.New([]plan.Rel{plan.RelOf(ordersScan(t))}, &relation.AdvancedExtension{Optimization: hint}))

	w, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if n := len(w.GetAdvancedExtensions().GetOptimization()); n != 1 {
		t.Fatalf("Expected 1 optimization payload, got %d", n)
	}

	got, err := (&Decoder{Collection: collection(t), Extensions: keepDecoder{}}).Decode(w)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Equal(p) {
		t.Error("Expected the optimization to survive with a keeping decoder")
	}

	extra := must(anypb.New(wrapperspb.String("second")))
	w.AdvancedExtensions.Optimization = append(w.AdvancedExtensions.Optimization, extra)
	if _, err := (&Decoder{Collection: collection(t)}).Decode(w); err != nil {
		t.Errorf("Expected dropped optimizations to decode, got %v", err)
	}
	_, err = (&Decoder{Collection: collection(t), Extensions: keepDecoder{}}).Decode(w)
	if !errors.Is(err, errdefs.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for two kept optimizations, got %v", err)
	}
}

func TestTypeDeclarationsSkipped(t *testing.T) {
	w, err := Encode(singlePlan(t, ordersScan(t)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	w.ExtensionUris = append(w.ExtensionUris, &extpb.SimpleExtensionURI{ExtensionUriAnchor: 3, Uri: "urn:example:geo"})
	w.Extensions = append(w.Extensions, &extpb.SimpleExtensionDeclaration{
		MappingType: &extpb.SimpleExtensionDeclaration_ExtensionType_{
			ExtensionType: &extpb.SimpleExtensionDeclaration_ExtensionType{
				ExtensionUriReference: 3,
				TypeAnchor:            1,
				Name:                  "point",
			},
		},
	})
	if _, err := (&Decoder{Collection: collection(t)}).Decode(w); err != nil {
		t.Errorf("Expected unused type declarations to be skipped, got %v", err)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, errdefs.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for nil plan, got %v", err)
	}

	schema := must(types.NewNamedStruct([]string{"a"}, types.R.Struct(types.R.I32())))
	row := expr.NewStruct([]expr.Literal{expr.NewI32(1, false)}, true)
	vt := must(relation.NewVirtualTableScan(schema, []*expr.StructLiteral{row}))
	if _, err := Encode(singlePlan(t, vt)); !errors.Is(err, errdefs.ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for nullable row, got %v", err)
	}
}
