package expr

import (
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// FailureBehavior selects what a cast does with values it cannot convert.
type FailureBehavior int32

const (
	FailureUnspecified    FailureBehavior = 0
	FailureReturnNull     FailureBehavior = 1
	FailureThrowException FailureBehavior = 2
)

// Cast converts Input to Target.
type Cast struct {
	exprNode
	Input           Expression
	Target          types.Type
	FailureBehavior FailureBehavior
}

func NewCast(input Expression, target types.Type, fb FailureBehavior) (*Cast, error) {
	if input == nil || target == nil {
		return nil, errdefs.Constructionf("cast needs an input and a target type")
	}
	if fb < FailureUnspecified || fb > FailureThrowException {
		return nil, errdefs.Constructionf("invalid cast failure behavior %d", fb)
	}
	return &Cast{Input: input, Target: target, FailureBehavior: fb}, nil
}

func (c *Cast) Type() types.Type { return c.Target }

func (c *Cast) Equal(other Expression) bool {
	o, ok := other.(*Cast)
	return ok && o.FailureBehavior == c.FailureBehavior && o.Target.Equal(c.Target) && c.Input.Equal(o.Input)
}

func isBoolean(t types.Type) bool {
	return t != nil && t.ID() == types.TypeIDBoolean
}

// IfClause is one condition/result pair of an IfThen.
type IfClause struct {
	If   Expression
	Then Expression
}

// IfThen evaluates conditions in order and yields the first matching result,
// or Else. Its type is the type of Else.
type IfThen struct {
	exprNode
	Clauses []IfClause
	Else    Expression
}

func NewIfThen(clauses []IfClause, els Expression) (*IfThen, error) {
	if len(clauses) == 0 {
		return nil, errdefs.Constructionf("if-then needs at least one clause")
	}
	if els == nil {
		return nil, errdefs.Constructionf("if-then needs an else branch")
	}
	for i, c := range clauses {
		if c.If == nil || c.Then == nil {
			return nil, errdefs.Constructionf("if-then clause %d is incomplete", i)
		}
		if !isBoolean(c.If.Type()) {
			return nil, errdefs.Constructionf("if-then clause %d condition is %s, expected boolean", i, c.If.Type())
		}
		if !types.EqualIgnoringNullability(c.Then.Type(), els.Type()) {
			return nil, errdefs.Constructionf("if-then clause %d yields %s, else yields %s", i, c.Then.Type(), els.Type())
		}
	}
	return &IfThen{Clauses: clauses, Else: els}, nil
}

func (e *IfThen) Type() types.Type { return e.Else.Type() }

func (e *IfThen) Equal(other Expression) bool {
	o, ok := other.(*IfThen)
	if !ok || len(o.Clauses) != len(e.Clauses) || !e.Else.Equal(o.Else) {
		return false
	}
	for i := range e.Clauses {
		if !e.Clauses[i].If.Equal(o.Clauses[i].If) || !e.Clauses[i].Then.Equal(o.Clauses[i].Then) {
			return false
		}
	}
	return true
}

// SwitchClause matches one literal value.
type SwitchClause struct {
	Value Literal
	Then  Expression
}

// Switch compares Match against each clause value and yields the first
// matching result, or Default. Its type is the type of Default.
type Switch struct {
	exprNode
	Match   Expression
	Clauses []SwitchClause
	Default Expression
}

func NewSwitch(match Expression, clauses []SwitchClause, def Expression) (*Switch, error) {
	if match == nil || def == nil {
		return nil, errdefs.Constructionf("switch needs a match expression and a default")
	}
	if len(clauses) == 0 {
		return nil, errdefs.Constructionf("switch needs at least one clause")
	}
	for i, c := range clauses {
		if c.Value == nil || c.Then == nil {
			return nil, errdefs.Constructionf("switch clause %d is incomplete", i)
		}
		if !types.EqualIgnoringNullability(c.Value.Type(), match.Type()) {
			return nil, errdefs.Constructionf("switch clause %d value is %s, match is %s", i, c.Value.Type(), match.Type())
		}
		if !types.EqualIgnoringNullability(c.Then.Type(), def.Type()) {
			return nil, errdefs.Constructionf("switch clause %d yields %s, default yields %s", i, c.Then.Type(), def.Type())
		}
	}
	return &Switch{Match: match, Clauses: clauses, Default: def}, nil
}

func (s *Switch) Type() types.Type { return s.Default.Type() }

func (s *Switch) Equal(other Expression) bool {
	o, ok := other.(*Switch)
	if !ok || len(o.Clauses) != len(s.Clauses) || !s.Match.Equal(o.Match) || !s.Default.Equal(o.Default) {
		return false
	}
	for i := range s.Clauses {
		if !s.Clauses[i].Value.Equal(o.Clauses[i].Value) || !s.Clauses[i].Then.Equal(o.Clauses[i].Then) {
			return false
		}
	}
	return true
}

// SingularOrList tests whether Value equals any of Options.
type SingularOrList struct {
	exprNode
	Value   Expression
	Options []Expression
}

func NewSingularOrList(value Expression, options []Expression) (*SingularOrList, error) {
	if value == nil || len(options) == 0 {
		return nil, errdefs.Constructionf("singular-or-list needs a value and options")
	}
	for i, o := range options {
		if !types.EqualIgnoringNullability(o.Type(), value.Type()) {
			return nil, errdefs.Constructionf("option %d is %s, value is %s", i, o.Type(), value.Type())
		}
	}
	return &SingularOrList{Value: value, Options: options}, nil
}

func (e *SingularOrList) Type() types.Type {
	nullable := e.Value.Type().Nullable()
	for _, o := range e.Options {
		nullable = nullable || o.Type().Nullable()
	}
	return types.Creator{Nullable: nullable}.Boolean()
}

func (e *SingularOrList) Equal(other Expression) bool {
	o, ok := other.(*SingularOrList)
	return ok && e.Value.Equal(o.Value) && EqualExprs(e.Options, o.Options)
}

// MultiOrList tests whether the tuple Values equals any of the Options tuples.
type MultiOrList struct {
	exprNode
	Values  []Expression
	Options [][]Expression
}

func NewMultiOrList(values []Expression, options [][]Expression) (*MultiOrList, error) {
	if len(values) == 0 || len(options) == 0 {
		return nil, errdefs.Constructionf("multi-or-list needs values and options")
	}
	for i, rec := range options {
		if len(rec) != len(values) {
			return nil, errdefs.Constructionf("option %d has %d fields, expected %d", i, len(rec), len(values))
		}
		for j, f := range rec {
			if !types.EqualIgnoringNullability(f.Type(), values[j].Type()) {
				return nil, errdefs.Constructionf("option %d field %d is %s, expected %s", i, j, f.Type(), values[j].Type())
			}
		}
	}
	return &MultiOrList{Values: values, Options: options}, nil
}

func (e *MultiOrList) Type() types.Type {
	nullable := false
	for _, v := range e.Values {
		nullable = nullable || v.Type().Nullable()
	}
	for _, rec := range e.Options {
		for _, f := range rec {
			nullable = nullable || f.Type().Nullable()
		}
	}
	return types.Creator{Nullable: nullable}.Boolean()
}

func (e *MultiOrList) Equal(other Expression) bool {
	o, ok := other.(*MultiOrList)
	if !ok || !EqualExprs(e.Values, o.Values) || len(e.Options) != len(o.Options) {
		return false
	}
	for i := range e.Options {
		if !EqualExprs(e.Options[i], o.Options[i]) {
			return false
		}
	}
	return true
}
