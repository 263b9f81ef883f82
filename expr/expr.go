// Package expr defines the expression IR: literals, field references, function
// invocations, conditionals and subquery predicates.
//
// Every expression exposes exactly one derived Type. Nodes are immutable once
// constructed; constructors validate their inputs and return errors wrapping
// errdefs.ErrConstruction.
package expr

import (
	"github.com/hugr-lab/substrait-go/types"
)

// FunctionArg is one argument of a function invocation: a value Expression,
// a bare TypeArg or an EnumArg.
type FunctionArg interface {
	// functionArgMarker prevents external implementation.
	functionArgMarker()
}

// Expression is the interface implemented by all expression types.
// Use a type switch to access specific expression data.
type Expression interface {
	FunctionArg

	// Type returns the derived type of the expression.
	Type() types.Type

	// Equal reports structural equality.
	Equal(other Expression) bool

	// expressionMarker prevents external implementation.
	expressionMarker()
}

// Relation is the view of a relation tree needed by subquery expressions.
// The relation package's nodes implement it.
type Relation interface {
	// RecordType returns the visible (remapped) output field types.
	RecordType() []types.Type

	// Equal reports structural equality of two relation trees.
	Equal(other Relation) bool
}

type exprNode struct{}

func (exprNode) functionArgMarker() {}
func (exprNode) expressionMarker()  {}

// TypeArg passes a bare type as a function argument.
type TypeArg struct {
	Type types.Type
}

func (TypeArg) functionArgMarker() {}

// EnumArg passes an enum token as a function argument.
type EnumArg struct {
	Value string
}

func (EnumArg) functionArgMarker() {}

// EqualArgs compares two argument lists.
func EqualArgs(a, b []FunctionArg) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalArg(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalArg(a, b FunctionArg) bool {
	switch a := a.(type) {
	case TypeArg:
		o, ok := b.(TypeArg)
		return ok && a.Type.Equal(o.Type)
	case EnumArg:
		o, ok := b.(EnumArg)
		return ok && a.Value == o.Value
	case Expression:
		o, ok := b.(Expression)
		return ok && a.Equal(o)
	}
	return false
}

// EqualExprs compares two expression lists.
func EqualExprs(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalExpr(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalExpr(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func equalRel(a, b Relation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// TypesOf returns the types of exprs.
func TypesOf(exprs []Expression) []types.Type {
	out := make([]types.Type, len(exprs))
	for i, e := range exprs {
		out[i] = e.Type()
	}
	return out
}

// SortDirection orders a sort key.
type SortDirection int32

const (
	SortUnspecified    SortDirection = 0
	SortAscNullsFirst  SortDirection = 1
	SortAscNullsLast   SortDirection = 2
	SortDescNullsFirst SortDirection = 3
	SortDescNullsLast  SortDirection = 4
	SortClustered      SortDirection = 5
)

func (d SortDirection) String() string {
	switch d {
	case SortAscNullsFirst:
		return "ASC NULLS FIRST"
	case SortAscNullsLast:
		return "ASC NULLS LAST"
	case SortDescNullsFirst:
		return "DESC NULLS FIRST"
	case SortDescNullsLast:
		return "DESC NULLS LAST"
	case SortClustered:
		return "CLUSTERED"
	}
	return "UNSPECIFIED"
}

// SortField is one sort key.
type SortField struct {
	Expr      Expression
	Direction SortDirection
}

// Equal compares two sort keys.
func (s SortField) Equal(o SortField) bool {
	return s.Direction == o.Direction && equalExpr(s.Expr, o.Expr)
}

// EqualSorts compares two sort key lists.
func EqualSorts(a, b []SortField) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
