package expr

import (
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// SetPredicateOp is the test applied to a subquery's rows.
type SetPredicateOp int32

const (
	SetPredicateUnspecified SetPredicateOp = 0
	SetPredicateExists      SetPredicateOp = 1
	SetPredicateUnique      SetPredicateOp = 2
)

func (op SetPredicateOp) String() string {
	switch op {
	case SetPredicateExists:
		return "EXISTS"
	case SetPredicateUnique:
		return "UNIQUE"
	}
	return "UNSPECIFIED"
}

// SetPredicate is EXISTS or UNIQUE over a subquery.
type SetPredicate struct {
	exprNode
	Op     SetPredicateOp
	Tuples Relation
}

func NewSetPredicate(op SetPredicateOp, tuples Relation) (*SetPredicate, error) {
	if tuples == nil {
		return nil, errdefs.Constructionf("set predicate without subquery")
	}
	if op < SetPredicateUnspecified || op > SetPredicateUnique {
		return nil, errdefs.Constructionf("invalid set predicate op %d", op)
	}
	return &SetPredicate{Op: op, Tuples: tuples}, nil
}

func (p *SetPredicate) Type() types.Type { return types.R.Boolean() }

func (p *SetPredicate) Equal(other Expression) bool {
	o, ok := other.(*SetPredicate)
	return ok && o.Op == p.Op && equalRel(p.Tuples, o.Tuples)
}

// ScalarSubquery yields the single column of a subquery that returns at most
// one row. Its type is that column's type, made nullable.
type ScalarSubquery struct {
	exprNode
	Input Relation
}

func NewScalarSubquery(input Relation) (*ScalarSubquery, error) {
	if input == nil {
		return nil, errdefs.Constructionf("scalar subquery without input")
	}
	if n := len(input.RecordType()); n != 1 {
		return nil, errdefs.Constructionf("scalar subquery must return one column, got %d", n)
	}
	return &ScalarSubquery{Input: input}, nil
}

func (s *ScalarSubquery) Type() types.Type {
	return types.AsNullable(s.Input.RecordType()[0])
}

func (s *ScalarSubquery) Equal(other Expression) bool {
	o, ok := other.(*ScalarSubquery)
	return ok && equalRel(s.Input, o.Input)
}

// InPredicate tests whether the Needles tuple occurs in the Haystack subquery.
type InPredicate struct {
	exprNode
	Needles  []Expression
	Haystack Relation
}

func NewInPredicate(needles []Expression, haystack Relation) (*InPredicate, error) {
	if len(needles) == 0 || haystack == nil {
		return nil, errdefs.Constructionf("in predicate needs needles and a haystack")
	}
	rt := haystack.RecordType()
	if len(rt) != len(needles) {
		return nil, errdefs.Constructionf("in predicate has %d needles for %d haystack columns", len(needles), len(rt))
	}
	for i, n := range needles {
		if !types.EqualIgnoringNullability(n.Type(), rt[i]) {
			return nil, errdefs.Constructionf("needle %d is %s, haystack column is %s", i, n.Type(), rt[i])
		}
	}
	return &InPredicate{Needles: needles, Haystack: haystack}, nil
}

func (p *InPredicate) Type() types.Type { return types.R.Boolean() }

func (p *InPredicate) Equal(other Expression) bool {
	o, ok := other.(*InPredicate)
	return ok && EqualExprs(p.Needles, o.Needles) && equalRel(p.Haystack, o.Haystack)
}
