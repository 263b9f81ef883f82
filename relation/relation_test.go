package relation

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/types"
)

func scan(t *testing.T, name string, names []string, fields ...types.Type) *NamedScan {
	t.Helper()
	schema, err := types.NewNamedStruct(names, types.R.Struct(fields...))
	if err != nil {
		t.Fatalf("NewNamedStruct failed: %v", err)
	}
	s, err := NewNamedScan([]string{name}, schema)
	if err != nil {
		t.Fatalf("NewNamedScan failed: %v", err)
	}
	return s
}

func ref(t *testing.T, rel Relation, field int32) *expr.FieldReference {
	t.Helper()
	r, err := expr.NewFieldRef(rel.DerivedRecordType(), field)
	if err != nil {
		t.Fatalf("NewFieldRef failed: %v", err)
	}
	return r
}

func registry(t *testing.T) *extensions.Registry {
	t.Helper()
	c, err := extensions.DefaultCollection()
	if err != nil {
		t.Fatalf("DefaultCollection failed: %v", err)
	}
	return extensions.NewRegistry(c)
}

func payload(t *testing.T, s string) AnyPayload {
	t.Helper()
	p, err := NewPayload(wrapperspb.String(s))
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}
	return p
}

func TestJoinNullability(t *testing.T) {
	left := scan(t, "l", []string{"a", "b"}, types.R.I32(), types.N.Str())
	right := scan(t, "r", []string{"c"}, types.R.I64())

	tests := []struct {
		jt   JoinType
		want []types.Type
	}{
		{JoinInner, []types.Type{types.R.I32(), types.N.Str(), types.R.I64()}},
		{JoinLeft, []types.Type{types.R.I32(), types.N.Str(), types.N.I64()}},
		{JoinRight, []types.Type{types.N.I32(), types.N.Str(), types.R.I64()}},
		{JoinOuter, []types.Type{types.N.I32(), types.N.Str(), types.N.I64()}},
		{JoinSemi, []types.Type{types.R.I32(), types.N.Str(), types.R.I64()}},
		{JoinAnti, []types.Type{types.R.I32(), types.N.Str(), types.R.I64()}},
		{JoinUnknown, []types.Type{types.R.I32(), types.N.Str(), types.R.I64()}},
	}
	for _, tt := range tests {
		t.Run(tt.jt.String(), func(t *testing.T) {
			j, err := NewJoin(left, right, tt.jt, expr.NewBool(true, false), nil)
			if err != nil {
				t.Fatalf("NewJoin failed: %v", err)
			}
			if !types.EqualTypes(j.RecordType(), tt.want) {
				t.Errorf("Expected %s, got %s", FormatRecord(tt.want), FormatRecord(j.RecordType()))
			}
		})
	}

	if _, err := NewJoin(left, right, JoinInner, expr.NewI32(1, false), nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected non-boolean condition to fail, got %v", err)
	}
	if _, err := NewJoin(left, right, JoinInner, nil, expr.NewString("x", false)); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected non-boolean post-join filter to fail, got %v", err)
	}
	if _, err := NewJoin(left, right, JoinType(7), nil, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected invalid join type to fail, got %v", err)
	}

	cross, err := NewCross(left, right)
	if err != nil {
		t.Fatalf("NewCross failed: %v", err)
	}
	if !types.EqualTypes(cross.RecordType(), tests[0].want) {
		t.Errorf("Expected cross to match inner join, got %s", FormatRecord(cross.RecordType()))
	}
}

func TestAggregateRemap(t *testing.T) {
	reg := registry(t)
	src := scan(t, "t", []string{"a", "b", "c", "d"}, types.R.I32(), types.R.FP32(), types.R.Str(), types.R.Boolean())
	count, err := expr.ResolveAggregate(reg, "count")
	if err != nil {
		t.Fatalf("ResolveAggregate failed: %v", err)
	}
	groupings := []Grouping{{Expressions: []expr.Expression{ref(t, src, 0), ref(t, src, 2)}}}
	measures := []Measure{{Function: count}}

	agg, err := NewAggregate(src, groupings, measures, WithRemap(1, 2))
	if err != nil {
		t.Fatalf("NewAggregate failed: %v", err)
	}
	derived := []types.Type{types.R.I32(), types.R.Str(), types.R.I64()}
	if !types.EqualTypes(agg.DerivedRecordType(), derived) {
		t.Errorf("Expected derived %s, got %s", FormatRecord(derived), FormatRecord(agg.DerivedRecordType()))
	}
	visible := []types.Type{types.R.Str(), types.R.I64()}
	if !types.EqualTypes(agg.RecordType(), visible) {
		t.Errorf("Expected visible %s, got %s", FormatRecord(visible), FormatRecord(agg.RecordType()))
	}

	// Parents address the un-remapped fields.
	f, err := NewFilter(agg, expr.NewBool(true, false))
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	if !types.EqualTypes(f.RecordType(), derived) {
		t.Errorf("Expected filter over aggregate to see %s, got %s", FormatRecord(derived), FormatRecord(f.RecordType()))
	}

	if _, err := NewAggregate(src, groupings, measures, WithRemap(3)); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected out-of-range remap to fail, got %v", err)
	}
	if _, err := NewAggregate(src, nil, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected empty aggregate to fail, got %v", err)
	}

	dup, err := NewProject(src, []expr.Expression{ref(t, src, 0)}, WithRemap(0, 0))
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	if got := dup.RecordType(); len(got) != 2 || !got[0].Equal(types.R.I32()) || !got[1].Equal(types.R.I32()) {
		t.Errorf("Expected duplicated column, got %s", FormatRecord(got))
	}
}

func TestSingleInputDerivation(t *testing.T) {
	src := scan(t, "t", []string{"a", "b"}, types.R.I32(), types.N.Str())

	p, err := NewProject(src, []expr.Expression{ref(t, src, 1), expr.NewI64(1, false)})
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	if !types.EqualTypes(p.RecordType(), []types.Type{types.N.Str(), types.R.I64()}) {
		t.Errorf("Unexpected project type %s", FormatRecord(p.RecordType()))
	}

	s, err := NewSort(src, []expr.SortField{{Expr: ref(t, src, 0), Direction: expr.SortDescNullsLast}})
	if err != nil {
		t.Fatalf("NewSort failed: %v", err)
	}
	count := int64(10)
	fe, err := NewFetch(s, 5, &count)
	if err != nil {
		t.Fatalf("NewFetch failed: %v", err)
	}
	if !types.EqualTypes(fe.RecordType(), src.RecordType()) {
		t.Errorf("Expected fetch to pass input type through, got %s", FormatRecord(fe.RecordType()))
	}
	count = 99
	if *fe.Count != 10 {
		t.Errorf("Expected fetch to copy its count, got %d", *fe.Count)
	}
	neg := int64(-1)
	if _, err := NewFetch(src, 0, &neg); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected negative count to fail, got %v", err)
	}
	if _, err := NewFetch(src, -1, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected negative offset to fail, got %v", err)
	}
	if _, err := NewFilter(src, ref(t, src, 0)); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected non-boolean filter to fail, got %v", err)
	}

	ex, err := NewExpand(src, []ExpandField{
		ConsistentField{Expr: ref(t, src, 0)},
		SwitchingField{Duplicates: []expr.Expression{ref(t, src, 1), expr.NewNull(types.R.Str())}},
	})
	if err != nil {
		t.Fatalf("NewExpand failed: %v", err)
	}
	want := []types.Type{types.R.I32(), types.N.Str(), types.R.I64()}
	if !types.EqualTypes(ex.RecordType(), want) {
		t.Errorf("Expected %s, got %s", FormatRecord(want), FormatRecord(ex.RecordType()))
	}
	if _, err := NewExpand(src, []ExpandField{SwitchingField{}}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected empty switching field to fail, got %v", err)
	}
	if _, err := NewExpand(src, []ExpandField{SwitchingField{Duplicates: []expr.Expression{ref(t, src, 0), ref(t, src, 1)}}}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected mismatched duplicates to fail, got %v", err)
	}
}

func TestSet(t *testing.T) {
	a := scan(t, "a", []string{"x", "y"}, types.R.I32(), types.R.Str())
	b := scan(t, "b", []string{"x", "y"}, types.N.I32(), types.R.Str())
	c := scan(t, "c", []string{"x"}, types.R.I32())

	s, err := NewSet(SetOpUnionAll, []Relation{a, b})
	if err != nil {
		t.Fatalf("NewSet failed: %v", err)
	}
	if !types.EqualTypes(s.RecordType(), a.RecordType()) {
		t.Errorf("Expected first input's type, got %s", FormatRecord(s.RecordType()))
	}
	if _, err := NewSet(SetOpUnionAll, []Relation{a}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected single-input set to fail, got %v", err)
	}
	if _, err := NewSet(SetOpMinusPrimary, []Relation{a, c}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected arity mismatch to fail, got %v", err)
	}
}

func TestVirtualTable(t *testing.T) {
	schema, err := types.NewNamedStruct([]string{"id", "name"}, types.R.Struct(types.R.I64(), types.N.Str()))
	if err != nil {
		t.Fatalf("NewNamedStruct failed: %v", err)
	}
	rows := []*expr.StructLiteral{
		expr.NewStruct([]expr.Literal{expr.NewI64(1, false), expr.NewString("a", false)}, false),
		expr.NewStruct([]expr.Literal{expr.NewI64(2, false), expr.NewNull(types.R.Str())}, false),
	}
	vt, err := NewVirtualTableScan(schema, rows)
	if err != nil {
		t.Fatalf("NewVirtualTableScan failed: %v", err)
	}
	if !types.EqualTypes(vt.RecordType(), schema.Fields()) {
		t.Errorf("Expected schema fields, got %s", FormatRecord(vt.RecordType()))
	}

	bad := []*expr.StructLiteral{expr.NewStruct([]expr.Literal{expr.NewNull(types.R.I64()), expr.NewString("a", false)}, false)}
	if _, err := NewVirtualTableScan(schema, bad); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected null in required column to fail, got %v", err)
	}
	short := []*expr.StructLiteral{expr.NewStruct([]expr.Literal{expr.NewI64(1, false)}, false)}
	if _, err := NewVirtualTableScan(schema, short); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected short row to fail, got %v", err)
	}
	if _, err := NewVirtualTableScan(schema, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected empty virtual table to fail, got %v", err)
	}
}

func TestScanSchemaValidation(t *testing.T) {
	// A literal schema skips NewNamedStruct; the constructors still check it.
	nested := types.NamedStruct{
		Names:  []string{"id", "address"},
		Struct: types.R.Struct(types.R.I64(), types.R.Struct(types.R.Str(), types.N.Str())),
	}
	if _, err := NewNamedScan([]string{"people"}, nested); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction from NewNamedScan, got %v", err)
	}
	if _, err := NewEmptyScan(nested); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction from NewEmptyScan, got %v", err)
	}
	flat := types.NamedStruct{Names: []string{"id", "extra"}, Struct: types.R.Struct(types.R.I64())}
	rows := []*expr.StructLiteral{expr.NewStruct([]expr.Literal{expr.NewI64(1, false)}, false)}
	if _, err := NewVirtualTableScan(flat, rows); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction from NewVirtualTableScan, got %v", err)
	}

	nested.Names = []string{"id", "address", "street", "city"}
	if _, err := NewNamedScan([]string{"people"}, nested); err != nil {
		t.Errorf("Expected depth-first names to pass, got %v", err)
	}
}

type leafDetail struct {
	fields []types.Type
}

func (d leafDetail) ToAny() (*anypb.Any, error) {
	return anypb.New(wrapperspb.Int32(int32(len(d.fields))))
}

func (d leafDetail) DeriveRecordType() ([]types.Type, error) { return d.fields, nil }

type dropLastDetail struct{}

func (dropLastDetail) ToAny() (*anypb.Any, error) { return anypb.New(wrapperspb.String("drop_last")) }

func (dropLastDetail) DeriveRecordType(input Relation) ([]types.Type, error) {
	rt := input.DerivedRecordType()
	if len(rt) == 0 {
		return nil, errdefs.Constructionf("drop_last needs a column")
	}
	return rt[:len(rt)-1], nil
}

func TestExtensionRelations(t *testing.T) {
	leaf, err := NewExtensionLeaf(leafDetail{fields: []types.Type{types.R.I32(), types.R.Date()}})
	if err != nil {
		t.Fatalf("NewExtensionLeaf failed: %v", err)
	}
	single, err := NewExtensionSingle(leaf, dropLastDetail{})
	if err != nil {
		t.Fatalf("NewExtensionSingle failed: %v", err)
	}
	if !types.EqualTypes(single.RecordType(), []types.Type{types.R.I32()}) {
		t.Errorf("Expected (i32), got %s", FormatRecord(single.RecordType()))
	}
	other, _ := NewExtensionLeaf(leafDetail{fields: []types.Type{types.R.I32()}})
	if leaf.Equal(other) {
		t.Error("Expected leaves with different details to differ")
	}
	empty, _ := NewExtensionLeaf(leafDetail{})
	if _, err := NewExtensionSingle(empty, dropLastDetail{}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected detail derivation error, got %v", err)
	}
}

func TestAdvancedExtensionEquality(t *testing.T) {
	a := scan(t, "t", []string{"a"}, types.R.I32())
	withOpt, err := NewFilter(a, expr.NewBool(true, false),
		WithAdvancedExtension(&AdvancedExtension{Optimization: payload(t, "hint")}))
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	plain, _ := NewFilter(a, expr.NewBool(true, false))
	same, _ := NewFilter(a, expr.NewBool(true, false),
		WithAdvancedExtension(&AdvancedExtension{Optimization: payload(t, "hint")}))
	emptyExt, _ := NewFilter(a, expr.NewBool(true, false), WithAdvancedExtension(&AdvancedExtension{}))

	if withOpt.Equal(plain) {
		t.Error("Expected optimization payload to affect equality")
	}
	if !withOpt.Equal(same) {
		t.Error("Expected equal payloads to compare equal")
	}
	if !plain.Equal(emptyExt) {
		t.Error("Expected an empty extension to equal none")
	}
	if emptyExt.AdvancedExtension() != nil {
		t.Error("Expected empty extension to be dropped")
	}
}

func TestTransformList(t *testing.T) {
	items := []string{"a", "b", "c"}
	out, changed, err := TransformList(items, func(s string) (string, bool, error) {
		return s, false, nil
	})
	if err != nil || changed || out != nil {
		t.Fatalf("Expected no-change sentinel, got %v, %v, %v", out, changed, err)
	}

	out, changed, err = TransformList(items, func(s string) (string, bool, error) {
		if s == "b" {
			return "B", true, nil
		}
		return s, false, nil
	})
	if err != nil || !changed {
		t.Fatalf("Expected change, got %v, %v", changed, err)
	}
	if strings.Join(out, "") != "aBc" {
		t.Errorf("Expected aBc, got %v", out)
	}
	if items[1] != "b" {
		t.Error("Expected original slice untouched")
	}

	boom := errors.New("boom")
	if _, _, err := TransformList(items, func(string) (string, bool, error) { return "", false, boom }); !errors.Is(err, boom) {
		t.Errorf("Expected error to propagate, got %v", err)
	}
}

func TestTransformBottomUp(t *testing.T) {
	left := scan(t, "l", []string{"a"}, types.R.I32())
	right := scan(t, "r", []string{"b"}, types.R.I64())
	join, err := NewJoin(left, right, JoinInner, nil, nil)
	if err != nil {
		t.Fatalf("NewJoin failed: %v", err)
	}
	root, err := NewFetch(join, 0, nil)
	if err != nil {
		t.Fatalf("NewFetch failed: %v", err)
	}

	same, changed, err := TransformBottomUp(root, func(r Relation) (Relation, bool, error) { return r, false, nil })
	if err != nil || changed || same != Relation(root) {
		t.Fatalf("Expected the original tree back, got changed=%v err=%v", changed, err)
	}

	// Make the right side nullable by swapping in a nullable scan.
	nullable := scan(t, "r2", []string{"b"}, types.N.I64())
	out, changed, err := TransformBottomUp(root, func(r Relation) (Relation, bool, error) {
		if s, ok := r.(*NamedScan); ok && s.Names[0] == "r" {
			return nullable, true, nil
		}
		return r, false, nil
	})
	if err != nil || !changed {
		t.Fatalf("Expected change, got %v, %v", changed, err)
	}
	f := out.(*Fetch)
	j := f.Input.(*Join)
	if j.Left != Relation(left) {
		t.Error("Expected untouched left input to be shared")
	}
	if !types.EqualTypes(f.RecordType(), []types.Type{types.R.I32(), types.N.I64()}) {
		t.Errorf("Expected re-derived type, got %s", FormatRecord(f.RecordType()))
	}
	if !types.EqualTypes(root.RecordType(), []types.Type{types.R.I32(), types.R.I64()}) {
		t.Error("Expected original tree unchanged")
	}
}

func TestExplain(t *testing.T) {
	src := scan(t, "orders", []string{"id", "total"}, types.R.I64(), types.N.FP64())
	f, err := NewFilter(src, expr.NewBool(true, false), WithRemap(1))
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	got := Explain(f)
	want := "Filter[true] -> (fp64?) remap[1]\n  NamedScan[orders] -> (i64, fp64?)\n"
	if got != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, got)
	}
}
