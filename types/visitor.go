package types

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/substrait-go/errdefs"
)

// Visitor handles each type variant. The wire encoder and the string form are
// both implemented as visitors.
type Visitor[R any] interface {
	VisitPrimitive(t PrimitiveType) (R, error)
	VisitFixedChar(t FixedCharType) (R, error)
	VisitVarChar(t VarCharType) (R, error)
	VisitFixedBinary(t FixedBinaryType) (R, error)
	VisitDecimal(t DecimalType) (R, error)
	VisitStruct(t StructType) (R, error)
	VisitList(t ListType) (R, error)
	VisitMap(t MapType) (R, error)
}

// Visit dispatches t to the matching Visitor method.
func Visit[R any](t Type, v Visitor[R]) (R, error) {
	switch t := t.(type) {
	case PrimitiveType:
		return v.VisitPrimitive(t)
	case FixedCharType:
		return v.VisitFixedChar(t)
	case VarCharType:
		return v.VisitVarChar(t)
	case FixedBinaryType:
		return v.VisitFixedBinary(t)
	case DecimalType:
		return v.VisitDecimal(t)
	case StructType:
		return v.VisitStruct(t)
	case ListType:
		return v.VisitList(t)
	case MapType:
		return v.VisitMap(t)
	}
	var zero R
	return zero, errdefs.Unsupportedf("type %T", t)
}

type stringVisitor struct{}

func nullMark(nullable bool) string {
	if nullable {
		return "?"
	}
	return ""
}

func (stringVisitor) VisitPrimitive(t PrimitiveType) (string, error) {
	return string(t.TypeID) + nullMark(t.IsNullable), nil
}

func (stringVisitor) VisitFixedChar(t FixedCharType) (string, error) {
	return fmt.Sprintf("fixedchar%s<%d>", nullMark(t.IsNullable), t.Length), nil
}

func (stringVisitor) VisitVarChar(t VarCharType) (string, error) {
	return fmt.Sprintf("varchar%s<%d>", nullMark(t.IsNullable), t.Length), nil
}

func (stringVisitor) VisitFixedBinary(t FixedBinaryType) (string, error) {
	return fmt.Sprintf("fixedbinary%s<%d>", nullMark(t.IsNullable), t.Length), nil
}

func (stringVisitor) VisitDecimal(t DecimalType) (string, error) {
	return fmt.Sprintf("decimal%s<%d,%d>", nullMark(t.IsNullable), t.Precision, t.Scale), nil
}

func (s stringVisitor) VisitStruct(t StructType) (string, error) {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		p, err := Visit[string](f, s)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	return "struct" + nullMark(t.IsNullable) + "<" + strings.Join(parts, ",") + ">", nil
}

func (s stringVisitor) VisitList(t ListType) (string, error) {
	elem, err := Visit[string](t.Element, s)
	if err != nil {
		return "", err
	}
	return "list" + nullMark(t.IsNullable) + "<" + elem + ">", nil
}

func (s stringVisitor) VisitMap(t MapType) (string, error) {
	k, err := Visit[string](t.Key, s)
	if err != nil {
		return "", err
	}
	v, err := Visit[string](t.Value, s)
	if err != nil {
		return "", err
	}
	return "map" + nullMark(t.IsNullable) + "<" + k + "," + v + ">", nil
}
