package relation

import (
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// JoinType selects which unmatched rows a join keeps.
type JoinType int32

const (
	JoinUnknown JoinType = 0
	JoinInner   JoinType = 1
	JoinOuter   JoinType = 2
	JoinLeft    JoinType = 3
	JoinRight   JoinType = 4
	JoinSemi    JoinType = 5
	JoinAnti    JoinType = 6
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "INNER"
	case JoinOuter:
		return "OUTER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinSemi:
		return "SEMI"
	case JoinAnti:
		return "ANTI"
	}
	return "UNKNOWN"
}

// nullableSides reports which side's fields a join of type t makes nullable.
func (t JoinType) nullableSides() (left, right bool) {
	switch t {
	case JoinOuter:
		return true, true
	case JoinLeft:
		return false, true
	case JoinRight:
		return true, false
	}
	return false, false
}

// Join combines Left and Right rows matching Condition. PostJoinFilter is
// applied to the joined rows.
type Join struct {
	common
	Left           Relation
	Right          Relation
	Type           JoinType
	Condition      expr.Expression
	PostJoinFilter expr.Expression
}

// NewJoin derives left ++ right. For RIGHT and OUTER joins every left field
// becomes nullable; for LEFT and OUTER joins every right field does.
// condition and postJoinFilter may be nil.
func NewJoin(left, right Relation, jt JoinType, condition, postJoinFilter expr.Expression, opts ...Option) (*Join, error) {
	if left == nil || right == nil {
		return nil, errdefs.Constructionf("join needs two inputs")
	}
	if jt < JoinUnknown || jt > JoinAnti {
		return nil, errdefs.Constructionf("invalid join type %d", jt)
	}
	if err := requireBoolean("join condition", condition); err != nil {
		return nil, err
	}
	if err := requireBoolean("post-join filter", postJoinFilter); err != nil {
		return nil, err
	}
	j := &Join{Left: left, Right: right, Type: jt, Condition: condition, PostJoinFilter: postJoinFilter}
	nl, nr := jt.nullableSides()
	derived := make([]types.Type, 0, len(left.DerivedRecordType())+len(right.DerivedRecordType()))
	derived = appendSide(derived, left.DerivedRecordType(), nl)
	derived = appendSide(derived, right.DerivedRecordType(), nr)
	if err := j.init(derived, opts); err != nil {
		return nil, err
	}
	return j, nil
}

func appendSide(dst, side []types.Type, nullable bool) []types.Type {
	for _, t := range side {
		if nullable {
			t = types.AsNullable(t)
		}
		dst = append(dst, t)
	}
	return dst
}

func (j *Join) Inputs() []Relation { return []Relation{j.Left, j.Right} }

func (j *Join) withInputs(in []Relation) (Relation, error) {
	return NewJoin(in[0], in[1], j.Type, j.Condition, j.PostJoinFilter, j.options()...)
}

func (j *Join) Equal(other expr.Relation) bool {
	o, ok := other.(*Join)
	return ok && j.Type == o.Type && equalOptExpr(j.Condition, o.Condition) &&
		equalOptExpr(j.PostJoinFilter, o.PostJoinFilter) && Equal(j.Left, o.Left) && Equal(j.Right, o.Right) &&
		j.equalCommon(&o.common)
}

// Cross is the cartesian product of Left and Right.
type Cross struct {
	common
	Left  Relation
	Right Relation
}

func NewCross(left, right Relation, opts ...Option) (*Cross, error) {
	if left == nil || right == nil {
		return nil, errdefs.Constructionf("cross needs two inputs")
	}
	derived := make([]types.Type, 0, len(left.DerivedRecordType())+len(right.DerivedRecordType()))
	derived = append(derived, left.DerivedRecordType()...)
	derived = append(derived, right.DerivedRecordType()...)
	c := &Cross{Left: left, Right: right}
	if err := c.init(derived, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cross) Inputs() []Relation { return []Relation{c.Left, c.Right} }

func (c *Cross) withInputs(in []Relation) (Relation, error) {
	return NewCross(in[0], in[1], c.options()...)
}

func (c *Cross) Equal(other expr.Relation) bool {
	o, ok := other.(*Cross)
	return ok && Equal(c.Left, o.Left) && Equal(c.Right, o.Right) && c.equalCommon(&o.common)
}

// SetOp is the set operation of a Set relation.
type SetOp int32

const (
	SetOpUnknown              SetOp = 0
	SetOpMinusPrimary         SetOp = 1
	SetOpMinusMultiset        SetOp = 2
	SetOpIntersectionPrimary  SetOp = 3
	SetOpIntersectionMultiset SetOp = 4
	SetOpUnionDistinct        SetOp = 5
	SetOpUnionAll             SetOp = 6
)

func (op SetOp) String() string {
	switch op {
	case SetOpMinusPrimary:
		return "MINUS_PRIMARY"
	case SetOpMinusMultiset:
		return "MINUS_MULTISET"
	case SetOpIntersectionPrimary:
		return "INTERSECTION_PRIMARY"
	case SetOpIntersectionMultiset:
		return "INTERSECTION_MULTISET"
	case SetOpUnionDistinct:
		return "UNION_DISTINCT"
	case SetOpUnionAll:
		return "UNION_ALL"
	}
	return "UNKNOWN"
}

// Set combines two or more inputs of equal arity. Its record type is the
// first input's.
type Set struct {
	common
	Op        SetOp
	SetInputs []Relation
}

func NewSet(op SetOp, inputs []Relation, opts ...Option) (*Set, error) {
	if op < SetOpUnknown || op > SetOpUnionAll {
		return nil, errdefs.Constructionf("invalid set op %d", op)
	}
	if len(inputs) < 2 {
		return nil, errdefs.Constructionf("set needs at least two inputs, got %d", len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return nil, errdefs.Constructionf("set input %d is nil", i)
		}
	}
	width := len(inputs[0].DerivedRecordType())
	for i, in := range inputs[1:] {
		if n := len(in.DerivedRecordType()); n != width {
			return nil, errdefs.Constructionf("set input %d has %d fields, input 0 has %d", i+1, n, width)
		}
	}
	s := &Set{Op: op, SetInputs: inputs}
	if err := s.init(inputs[0].DerivedRecordType(), opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) Inputs() []Relation { return s.SetInputs }

func (s *Set) withInputs(in []Relation) (Relation, error) {
	return NewSet(s.Op, in, s.options()...)
}

func (s *Set) Equal(other expr.Relation) bool {
	o, ok := other.(*Set)
	return ok && s.Op == o.Op && equalRels(s.SetInputs, o.SetInputs) && s.equalCommon(&o.common)
}
