package plan

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

func scan(t *testing.T, name string, fields ...types.Type) *relation.NamedScan {
	t.Helper()
	names := make([]string, types.CountFieldNames(fields))
	for i := range names {
		names[i] = name + "_" + string(rune('a'+i))
	}
	schema, err := types.NewNamedStruct(names, types.R.Struct(fields...))
	if err != nil {
		t.Fatalf("NewNamedStruct failed: %v", err)
	}
	s, err := relation.NewNamedScan([]string{name}, schema)
	if err != nil {
		t.Fatalf("NewNamedScan failed: %v", err)
	}
	return s
}

func TestNewRoot(t *testing.T) {
	s := scan(t, "t", types.R.I32(), types.R.Struct(types.R.Str(), types.N.I64()))
	if len(s.Schema.Names) != 4 {
		t.Fatalf("Expected 4 depth-first scan names, got %v", s.Schema.Names)
	}

	// Nested struct fields need names too.
	if _, err := NewRoot(s, []string{"a", "b"}); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction for missing nested names, got %v", err)
	}
	root, err := NewRoot(s, []string{"a", "b", "b1", "b2"})
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	schema := root.Schema()
	if !types.EqualTypes(schema.Fields(), s.RecordType()) {
		t.Errorf("Expected schema fields %v, got %v", s.RecordType(), schema.Fields())
	}
	if _, err := NewRoot(nil, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction for nil input, got %v", err)
	}
}

func TestRootNamesCoverRemappedOutput(t *testing.T) {
	schema, err := types.NewNamedStruct([]string{"a", "b", "c"}, types.R.Struct(types.R.I32(), types.R.Str(), types.R.I64()))
	if err != nil {
		t.Fatalf("NewNamedStruct failed: %v", err)
	}
	s, err := relation.NewNamedScan([]string{"t"}, schema, relation.WithRemap(2))
	if err != nil {
		t.Fatalf("NewNamedScan failed: %v", err)
	}
	if _, err := NewRoot(s, []string{"c"}); err != nil {
		t.Errorf("Expected one name to cover the remapped output, got %v", err)
	}
}

func TestPlanEquality(t *testing.T) {
	a := scan(t, "a", types.R.I32())
	b := scan(t, "b", types.R.I32())
	hint, err := relation.NewPayload(wrapperspb.String("hint"))
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	p1, err := New([]Rel{RelOf(a), RelOf(b)}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p2, err := New([]Rel{RelOf(a), RelOf(b)}, &relation.AdvancedExtension{Optimization: hint})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !p1.EqualRelations(p2) {
		t.Error("Expected relations to be equal")
	}
	if p1.Equal(p2) {
		t.Error("Expected plans with different extensions to differ")
	}

	p3, err := New([]Rel{RelOf(b), RelOf(a)}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p1.Equal(p3) {
		t.Error("Expected relation order to matter")
	}

	root, err := NewRoot(a, []string{"x"})
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	if RootOf(root).Equal(RelOf(a)) {
		t.Error("Expected a root to differ from a bare relation")
	}

	empty, err := New([]Rel{RelOf(a)}, &relation.AdvancedExtension{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if empty.AdvancedExtension != nil {
		t.Error("Expected an empty extension to be dropped")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction for empty plan, got %v", err)
	}
	if _, err := New([]Rel{{}}, nil); !errors.Is(err, errdefs.ErrConstruction) {
		t.Errorf("Expected ErrConstruction for empty entry, got %v", err)
	}
}

func TestRootsAndExplain(t *testing.T) {
	a := scan(t, "orders", types.R.I64())
	root, err := NewRoot(a, []string{"id"})
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	p, err := New([]Rel{RelOf(a), RootOf(root)}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if roots := p.Roots(); len(roots) != 1 || roots[0] != root {
		t.Fatalf("Expected one root, got %v", roots)
	}

	out := Explain(p)
	if !strings.Contains(out, "Root[id]\n  NamedScan[orders]") {
		t.Errorf("Expected indented root in explain output, got:\n%s", out)
	}
	if !strings.HasPrefix(out, "NamedScan[orders]") {
		t.Errorf("Expected bare relation first, got:\n%s", out)
	}
}
