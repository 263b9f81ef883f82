package expr

import (
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// ReferenceSegment is one step of a field reference path.
type ReferenceSegment interface {
	segmentMarker()
}

// StructFieldSegment selects a struct field by position.
type StructFieldSegment struct {
	Field int32
}

// ListElementSegment selects a list element by position.
type ListElementSegment struct {
	Offset int32
}

// MapKeySegment selects a map value by key.
type MapKeySegment struct {
	Key Literal
}

func (StructFieldSegment) segmentMarker() {}
func (ListElementSegment) segmentMarker() {}
func (MapKeySegment) segmentMarker()      {}

func equalSegment(a, b ReferenceSegment) bool {
	switch a := a.(type) {
	case StructFieldSegment:
		o, ok := b.(StructFieldSegment)
		return ok && o == a
	case ListElementSegment:
		o, ok := b.(ListElementSegment)
		return ok && o == a
	case MapKeySegment:
		o, ok := b.(MapKeySegment)
		return ok && a.Key.Equal(o.Key)
	}
	return false
}

// RootKind identifies what a field reference is resolved against.
type RootKind int

const (
	// RootReference addresses the input record of the enclosing relation.
	RootReference RootKind = iota
	// OuterReference addresses the input record of an enclosing query, Steps levels out.
	OuterReference
	// ExpressionRoot addresses the value of another expression.
	ExpressionRoot
)

// FieldReference walks a chain of segments from its root.
type FieldReference struct {
	exprNode
	Segments []ReferenceSegment
	Root     RootKind
	// OuterSteps is the number of subquery boundaries crossed (OuterReference only).
	OuterSteps uint32
	// RootExpr is the expression whose value is addressed (ExpressionRoot only).
	RootExpr Expression
	typ      types.Type
}

// NewFieldRef references fields of the current input record. path is a
// sequence of struct field positions.
func NewFieldRef(input []types.Type, path ...int32) (*FieldReference, error) {
	segs := make([]ReferenceSegment, len(path))
	for i, p := range path {
		segs[i] = StructFieldSegment{Field: p}
	}
	return NewRootReference(input, segs...)
}

// NewRootReference references the current input record.
func NewRootReference(input []types.Type, segments ...ReferenceSegment) (*FieldReference, error) {
	t, err := walkSegments(types.StructType{Fields: input}, segments)
	if err != nil {
		return nil, err
	}
	return &FieldReference{Segments: segments, Root: RootReference, typ: t}, nil
}

// NewOuterReference references the input record of an enclosing query. The
// caller supplies that record's field types.
func NewOuterReference(steps uint32, outer []types.Type, segments ...ReferenceSegment) (*FieldReference, error) {
	if steps == 0 {
		return nil, errdefs.Constructionf("outer reference needs at least one step")
	}
	t, err := walkSegments(types.StructType{Fields: outer}, segments)
	if err != nil {
		return nil, err
	}
	return &FieldReference{Segments: segments, Root: OuterReference, OuterSteps: steps, typ: t}, nil
}

// NewExpressionReference references into the value of root.
func NewExpressionReference(root Expression, segments ...ReferenceSegment) (*FieldReference, error) {
	if root == nil {
		return nil, errdefs.Constructionf("expression reference without root")
	}
	t, err := walkSegments(root.Type(), segments)
	if err != nil {
		return nil, err
	}
	return &FieldReference{Segments: segments, Root: ExpressionRoot, RootExpr: root, typ: t}, nil
}

// walkSegments follows segments from t. A nullable container along the way
// makes the result nullable.
func walkSegments(t types.Type, segments []ReferenceSegment) (types.Type, error) {
	if len(segments) == 0 {
		return nil, errdefs.Constructionf("field reference has no segments")
	}
	nullable := false
	cur := t
	for i, seg := range segments {
		nullable = nullable || cur.Nullable()
		switch seg := seg.(type) {
		case StructFieldSegment:
			st, ok := cur.(types.StructType)
			if !ok {
				return nil, errdefs.Constructionf("segment %d: struct field on %s", i, cur)
			}
			if seg.Field < 0 || int(seg.Field) >= len(st.Fields) {
				return nil, errdefs.Constructionf("segment %d: field %d out of range [0,%d)", i, seg.Field, len(st.Fields))
			}
			cur = st.Fields[seg.Field]
		case ListElementSegment:
			lt, ok := cur.(types.ListType)
			if !ok {
				return nil, errdefs.Constructionf("segment %d: list element on %s", i, cur)
			}
			if seg.Offset < 0 {
				return nil, errdefs.Constructionf("segment %d: negative list offset %d", i, seg.Offset)
			}
			cur = lt.Element
		case MapKeySegment:
			mt, ok := cur.(types.MapType)
			if !ok {
				return nil, errdefs.Constructionf("segment %d: map key on %s", i, cur)
			}
			if seg.Key == nil || !types.EqualIgnoringNullability(seg.Key.Type(), mt.Key) {
				return nil, errdefs.Constructionf("segment %d: map key literal does not match %s", i, mt.Key)
			}
			cur = mt.Value
		default:
			return nil, errdefs.Unsupportedf("reference segment %T", seg)
		}
	}
	if nullable {
		cur = types.AsNullable(cur)
	}
	return cur, nil
}

func (f *FieldReference) Type() types.Type { return f.typ }

// Field returns the first struct position and true when the reference is a
// plain root field access (a single struct field segment).
func (f *FieldReference) Field() (int32, bool) {
	if f.Root != RootReference || len(f.Segments) != 1 {
		return 0, false
	}
	s, ok := f.Segments[0].(StructFieldSegment)
	return s.Field, ok
}

func (f *FieldReference) Equal(other Expression) bool {
	o, ok := other.(*FieldReference)
	if !ok || o.Root != f.Root || o.OuterSteps != f.OuterSteps || len(o.Segments) != len(f.Segments) {
		return false
	}
	if !equalExpr(f.RootExpr, o.RootExpr) || !f.typ.Equal(o.typ) {
		return false
	}
	for i := range f.Segments {
		if !equalSegment(f.Segments[i], o.Segments[i]) {
			return false
		}
	}
	return true
}
