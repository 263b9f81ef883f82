package types

import (
	"errors"
	"testing"

	"github.com/hugr-lab/substrait-go/errdefs"
)

func TestEqualityIncludesNullability(t *testing.T) {
	if R.I32().Equal(N.I32()) {
		t.Error("Expected i32 and i32? to differ")
	}
	if !R.I32().Equal(N.I32().WithNullability(false)) {
		t.Error("Expected i32? made required to equal i32")
	}
	if R.I32().Equal(R.I64()) {
		t.Error("Expected i32 and i64 to differ")
	}
	d1 := Must(R.Decimal(10, 2))
	d2 := Must(R.Decimal(10, 3))
	if d1.Equal(d2) {
		t.Error("Expected decimal<10,2> and decimal<10,3> to differ")
	}
	s1 := N.Struct(R.I32(), N.Str())
	s2 := N.Struct(R.I32(), N.Str())
	if !s1.Equal(s2) {
		t.Error("Expected identical structs to be equal")
	}
	if s1.Equal(R.Struct(R.I32(), N.Str())) {
		t.Error("Expected struct nullability to matter")
	}
	if R.List(R.I32()).Equal(R.List(N.I32())) {
		t.Error("Expected list element nullability to matter")
	}
	if !R.Map(R.Str(), N.I64()).Equal(R.Map(R.Str(), N.I64())) {
		t.Error("Expected identical maps to be equal")
	}
}

func TestAsNullableIsPure(t *testing.T) {
	orig := R.Struct(R.I32())
	n := AsNullable(orig)
	if orig.IsNullable {
		t.Fatal("AsNullable mutated the original type")
	}
	if !n.Nullable() {
		t.Fatal("Expected nullable result")
	}
	if !AsRequired(n).Equal(orig) {
		t.Errorf("Expected round trip to required, got %s", AsRequired(n))
	}
}

func TestInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"precision 0", func() error { _, err := R.Decimal(0, 0); return err }()},
		{"precision 39", func() error { _, err := R.Decimal(39, 0); return err }()},
		{"scale above precision", func() error { _, err := R.Decimal(5, 6); return err }()},
		{"negative scale", func() error { _, err := R.Decimal(5, -1); return err }()},
		{"negative fixedchar", func() error { _, err := R.FixedChar(-1); return err }()},
		{"zero varchar", func() error { _, err := R.VarChar(0); return err }()},
		{"negative fixedbinary", func() error { _, err := R.FixedBinary(-3); return err }()},
		{"primitive with params", func() error { _, err := R.Primitive(TypeIDDecimal); return err }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, errdefs.ErrConstruction) {
				t.Errorf("Expected ErrConstruction, got %v", tt.err)
			}
		})
	}
	if _, err := R.Decimal(38, 38); err != nil {
		t.Errorf("Expected decimal<38,38> to be valid, got %v", err)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{R.I32(), "i32"},
		{N.Str(), "string?"},
		{Must(N.Decimal(10, 2)), "decimal?<10,2>"},
		{Must(R.FixedChar(5)), "fixedchar<5>"},
		{Must(N.VarChar(12)), "varchar?<12>"},
		{Must(R.FixedBinary(16)), "fixedbinary<16>"},
		{R.Struct(R.I32(), N.Str()), "struct<i32,string?>"},
		{N.List(R.Date()), "list?<date>"},
		{R.Map(R.Str(), N.TimestampTZ()), "map<string,timestamp_tz?>"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestShortNames(t *testing.T) {
	if got := TypeIDString.ShortName(); got != "str" {
		t.Errorf("Expected str, got %s", got)
	}
	if got := TypeIDDecimal.ShortName(); got != "dec" {
		t.Errorf("Expected dec, got %s", got)
	}
	id, ok := IDFromShortName("vbin")
	if !ok || id != TypeIDBinary {
		t.Errorf("Expected binary for vbin, got %s", id)
	}
	id, ok = IDFromShortName("timestamp_tz")
	if !ok || id != TypeIDTimestampTZ {
		t.Errorf("Expected timestamp_tz, got %s", id)
	}
	if _, ok := IDFromShortName("nope"); ok {
		t.Error("Expected unknown short name to fail")
	}
}

func TestNamedStruct(t *testing.T) {
	st := R.Struct(R.I32(), N.Struct(R.Str(), R.I64()), R.List(R.Struct(R.Boolean())))
	if got := CountNames(st); got != 6 {
		t.Fatalf("Expected 6 names, got %d", got)
	}
	ns, err := NewNamedStruct([]string{"id", "addr", "street", "zip", "tags", "flag"}, st)
	if err != nil {
		t.Fatalf("NewNamedStruct failed: %v", err)
	}
	top := ns.TopLevelNames()
	if len(top) != 3 || top[0] != "id" || top[1] != "addr" || top[2] != "tags" {
		t.Errorf("Unexpected top-level names %v", top)
	}
	if _, err := NewNamedStruct([]string{"id"}, st); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction for short name list, got %v", err)
	}
}
