package relation

import (
	"slices"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// Filter keeps the input rows for which Condition is true.
type Filter struct {
	common
	Input     Relation
	Condition expr.Expression
}

func NewFilter(input Relation, condition expr.Expression, opts ...Option) (*Filter, error) {
	if err := requireInput("filter", input); err != nil {
		return nil, err
	}
	if condition == nil {
		return nil, errdefs.Constructionf("filter without condition")
	}
	if err := requireBoolean("filter condition", condition); err != nil {
		return nil, err
	}
	f := &Filter{Input: input, Condition: condition}
	if err := f.init(input.DerivedRecordType(), opts); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) Inputs() []Relation { return []Relation{f.Input} }

func (f *Filter) withInputs(in []Relation) (Relation, error) {
	return NewFilter(in[0], f.Condition, f.options()...)
}

func (f *Filter) Equal(other expr.Relation) bool {
	o, ok := other.(*Filter)
	return ok && f.Condition.Equal(o.Condition) && Equal(f.Input, o.Input) && f.equalCommon(&o.common)
}

// Project computes one output field per expression.
type Project struct {
	common
	Input       Relation
	Expressions []expr.Expression
}

func NewProject(input Relation, exprs []expr.Expression, opts ...Option) (*Project, error) {
	if err := requireInput("project", input); err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, errdefs.Constructionf("project without expressions")
	}
	p := &Project{Input: input, Expressions: exprs}
	if err := p.init(expr.TypesOf(exprs), opts); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) Inputs() []Relation { return []Relation{p.Input} }

func (p *Project) withInputs(in []Relation) (Relation, error) {
	return NewProject(in[0], p.Expressions, p.options()...)
}

func (p *Project) Equal(other expr.Relation) bool {
	o, ok := other.(*Project)
	return ok && expr.EqualExprs(p.Expressions, o.Expressions) && Equal(p.Input, o.Input) && p.equalCommon(&o.common)
}

// Sort orders the input rows.
type Sort struct {
	common
	Input Relation
	Sorts []expr.SortField
}

func NewSort(input Relation, sorts []expr.SortField, opts ...Option) (*Sort, error) {
	if err := requireInput("sort", input); err != nil {
		return nil, err
	}
	if len(sorts) == 0 {
		return nil, errdefs.Constructionf("sort without sort fields")
	}
	for i, sf := range sorts {
		if sf.Expr == nil {
			return nil, errdefs.Constructionf("sort field %d without expression", i)
		}
		if sf.Direction < expr.SortUnspecified || sf.Direction > expr.SortClustered {
			return nil, errdefs.Constructionf("sort field %d has invalid direction %d", i, sf.Direction)
		}
	}
	s := &Sort{Input: input, Sorts: sorts}
	if err := s.init(input.DerivedRecordType(), opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sort) Inputs() []Relation { return []Relation{s.Input} }

func (s *Sort) withInputs(in []Relation) (Relation, error) {
	return NewSort(in[0], s.Sorts, s.options()...)
}

func (s *Sort) Equal(other expr.Relation) bool {
	o, ok := other.(*Sort)
	return ok && expr.EqualSorts(s.Sorts, o.Sorts) && Equal(s.Input, o.Input) && s.equalCommon(&o.common)
}

// Fetch skips Offset rows and returns at most Count rows, or all remaining
// rows when Count is nil.
type Fetch struct {
	common
	Input  Relation
	Offset int64
	Count  *int64
}

func NewFetch(input Relation, offset int64, count *int64, opts ...Option) (*Fetch, error) {
	if err := requireInput("fetch", input); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, errdefs.Constructionf("fetch offset %d is negative", offset)
	}
	if count != nil && *count < 0 {
		return nil, errdefs.Constructionf("fetch count %d is negative", *count)
	}
	f := &Fetch{Input: input, Offset: offset}
	if count != nil {
		c := *count
		f.Count = &c
	}
	if err := f.init(input.DerivedRecordType(), opts); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fetch) Inputs() []Relation { return []Relation{f.Input} }

func (f *Fetch) withInputs(in []Relation) (Relation, error) {
	return NewFetch(in[0], f.Offset, f.Count, f.options()...)
}

func (f *Fetch) Equal(other expr.Relation) bool {
	o, ok := other.(*Fetch)
	if !ok || f.Offset != o.Offset || (f.Count == nil) != (o.Count == nil) {
		return false
	}
	if f.Count != nil && *f.Count != *o.Count {
		return false
	}
	return Equal(f.Input, o.Input) && f.equalCommon(&o.common)
}

// Grouping is one grouping set of an Aggregate.
type Grouping struct {
	Expressions []expr.Expression
}

// Measure is one aggregate output, optionally restricted by a filter applied
// before aggregation.
type Measure struct {
	Function *expr.AggregateFunction
	Filter   expr.Expression
}

// Aggregate groups its input and computes measures per group. The record
// type is the grouping expressions, groupings concatenated in order,
// followed by the measure outputs.
type Aggregate struct {
	common
	Input     Relation
	Groupings []Grouping
	Measures  []Measure
}

func NewAggregate(input Relation, groupings []Grouping, measures []Measure, opts ...Option) (*Aggregate, error) {
	if err := requireInput("aggregate", input); err != nil {
		return nil, err
	}
	if len(groupings) == 0 && len(measures) == 0 {
		return nil, errdefs.Constructionf("aggregate needs at least one grouping or measure")
	}
	var derived []types.Type
	for _, g := range groupings {
		derived = append(derived, expr.TypesOf(g.Expressions)...)
	}
	for i, m := range measures {
		if m.Function == nil {
			return nil, errdefs.Constructionf("measure %d without function", i)
		}
		if err := requireBoolean("measure filter", m.Filter); err != nil {
			return nil, err
		}
		derived = append(derived, m.Function.Type())
	}
	a := &Aggregate{Input: input, Groupings: groupings, Measures: measures}
	if err := a.init(derived, opts); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Aggregate) Inputs() []Relation { return []Relation{a.Input} }

func (a *Aggregate) withInputs(in []Relation) (Relation, error) {
	return NewAggregate(in[0], a.Groupings, a.Measures, a.options()...)
}

func (a *Aggregate) Equal(other expr.Relation) bool {
	o, ok := other.(*Aggregate)
	if !ok || len(a.Groupings) != len(o.Groupings) || len(a.Measures) != len(o.Measures) {
		return false
	}
	for i := range a.Groupings {
		if !expr.EqualExprs(a.Groupings[i].Expressions, o.Groupings[i].Expressions) {
			return false
		}
	}
	for i := range a.Measures {
		if !a.Measures[i].Function.Equal(o.Measures[i].Function) || !equalOptExpr(a.Measures[i].Filter, o.Measures[i].Filter) {
			return false
		}
	}
	return Equal(a.Input, o.Input) && a.equalCommon(&o.common)
}

// ExpandField is one output field definition of an Expand.
type ExpandField interface {
	Type() types.Type
	equalField(other ExpandField) bool
}

// ConsistentField produces the same expression for every duplicate row.
type ConsistentField struct {
	Expr expr.Expression
}

func (f ConsistentField) Type() types.Type { return f.Expr.Type() }

func (f ConsistentField) equalField(other ExpandField) bool {
	o, ok := other.(ConsistentField)
	return ok && f.Expr.Equal(o.Expr)
}

// SwitchingField produces Duplicates[i] for the i-th duplicate row.
type SwitchingField struct {
	Duplicates []expr.Expression
}

func (f SwitchingField) Type() types.Type { return f.Duplicates[0].Type() }

func (f SwitchingField) equalField(other ExpandField) bool {
	o, ok := other.(SwitchingField)
	return ok && expr.EqualExprs(f.Duplicates, o.Duplicates)
}

// Expand duplicates each input row. Its record type is the input's with a
// required i64 column appended that holds the duplicate index.
type Expand struct {
	common
	Input  Relation
	Fields []ExpandField
}

func NewExpand(input Relation, fields []ExpandField, opts ...Option) (*Expand, error) {
	if err := requireInput("expand", input); err != nil {
		return nil, err
	}
	for i, f := range fields {
		switch f := f.(type) {
		case ConsistentField:
			if f.Expr == nil {
				return nil, errdefs.Constructionf("expand field %d without expression", i)
			}
		case SwitchingField:
			if len(f.Duplicates) == 0 {
				return nil, errdefs.Constructionf("expand switching field %d has no duplicates", i)
			}
			for j, d := range f.Duplicates[1:] {
				if !types.EqualIgnoringNullability(d.Type(), f.Duplicates[0].Type()) {
					return nil, errdefs.Constructionf("expand switching field %d duplicate %d is %s, expected %s",
						i, j+1, d.Type(), f.Duplicates[0].Type())
				}
			}
		default:
			return nil, errdefs.Constructionf("expand field %d has unknown kind %T", i, f)
		}
	}
	derived := append(slices.Clone(input.DerivedRecordType()), types.R.I64())
	e := &Expand{Input: input, Fields: fields}
	if err := e.init(derived, opts); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Expand) Inputs() []Relation { return []Relation{e.Input} }

func (e *Expand) withInputs(in []Relation) (Relation, error) {
	return NewExpand(in[0], e.Fields, e.options()...)
}

func (e *Expand) Equal(other expr.Relation) bool {
	o, ok := other.(*Expand)
	if !ok || len(e.Fields) != len(o.Fields) {
		return false
	}
	for i := range e.Fields {
		if !e.Fields[i].equalField(o.Fields[i]) {
			return false
		}
	}
	return Equal(e.Input, o.Input) && e.equalCommon(&o.common)
}
