package expr

import (
	"fmt"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/types"
)

// FunctionOption is an optional named setting of an invocation, e.g. overflow
// handling, with preferences in priority order.
type FunctionOption struct {
	Name       string
	Preference []string
}

func equalOptions(a, b []FunctionOption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || len(a[i].Preference) != len(b[i].Preference) {
			return false
		}
		for j := range a[i].Preference {
			if a[i].Preference[j] != b[i].Preference[j] {
				return false
			}
		}
	}
	return true
}

// ResolutionArgs converts call arguments to the registry's argument view.
func ResolutionArgs(args []FunctionArg) ([]extensions.Arg, error) {
	out := make([]extensions.Arg, len(args))
	for i, a := range args {
		switch a := a.(type) {
		case TypeArg:
			out[i] = extensions.TypeArg(a.Type)
		case EnumArg:
			out[i] = extensions.EnumArg(a.Value)
		case Expression:
			out[i] = extensions.ValueArg(a.Type())
		default:
			return nil, errdefs.Unsupportedf("function argument %T", a)
		}
	}
	return out, nil
}

func bindOutput(v *extensions.Variant, kind extensions.FunctionKind, args []FunctionArg, intermediate bool) (types.Type, error) {
	if v == nil {
		return nil, errdefs.Constructionf("function invocation without variant")
	}
	if v.Kind != kind {
		return nil, errdefs.Constructionf("%s is a %s function, expected %s", v.CompoundName(), v.Kind, kind)
	}
	rargs, err := ResolutionArgs(args)
	if err != nil {
		return nil, err
	}
	if intermediate {
		return v.IntermediateType(rargs)
	}
	return v.OutputType(rargs)
}

// ScalarFunction invokes a scalar function variant.
type ScalarFunction struct {
	exprNode
	Variant *extensions.Variant
	Args    []FunctionArg
	Options []FunctionOption
	output  types.Type
}

// NewScalarFunction binds args to v and derives the output type.
func NewScalarFunction(v *extensions.Variant, args []FunctionArg, opts ...FunctionOption) (*ScalarFunction, error) {
	out, err := bindOutput(v, extensions.KindScalar, args, false)
	if err != nil {
		return nil, err
	}
	return &ScalarFunction{Variant: v, Args: args, Options: opts, output: out}, nil
}

// ResolveScalar resolves name against reg for args and builds the invocation.
func ResolveScalar(reg *extensions.Registry, name string, args ...FunctionArg) (*ScalarFunction, error) {
	rargs, err := ResolutionArgs(args)
	if err != nil {
		return nil, err
	}
	v, err := reg.Resolve(extensions.KindScalar, name, rargs)
	if err != nil {
		return nil, err
	}
	return NewScalarFunction(v, args)
}

func (f *ScalarFunction) Type() types.Type { return f.output }

func (f *ScalarFunction) Equal(other Expression) bool {
	o, ok := other.(*ScalarFunction)
	return ok && o.Variant.Key() == f.Variant.Key() && o.output.Equal(f.output) &&
		EqualArgs(o.Args, f.Args) && equalOptions(o.Options, f.Options)
}

// AggregationPhase describes which part of a decomposed aggregation an
// invocation performs.
type AggregationPhase int32

const (
	PhaseUnspecified                AggregationPhase = 0
	PhaseInitialToIntermediate      AggregationPhase = 1
	PhaseIntermediateToIntermediate AggregationPhase = 2
	PhaseInitialToResult            AggregationPhase = 3
	PhaseIntermediateToResult       AggregationPhase = 4
)

func (p AggregationPhase) String() string {
	switch p {
	case PhaseInitialToIntermediate:
		return "INITIAL_TO_INTERMEDIATE"
	case PhaseIntermediateToIntermediate:
		return "INTERMEDIATE_TO_INTERMEDIATE"
	case PhaseInitialToResult:
		return "INITIAL_TO_RESULT"
	case PhaseIntermediateToResult:
		return "INTERMEDIATE_TO_RESULT"
	}
	return "UNSPECIFIED"
}

// ProducesIntermediate reports whether the phase outputs the intermediate type.
func (p AggregationPhase) ProducesIntermediate() bool {
	return p == PhaseInitialToIntermediate || p == PhaseIntermediateToIntermediate
}

// AggregationInvocation selects all or distinct input values.
type AggregationInvocation int32

const (
	InvocationUnspecified AggregationInvocation = 0
	InvocationAll         AggregationInvocation = 1
	InvocationDistinct    AggregationInvocation = 2
)

func (i AggregationInvocation) String() string {
	switch i {
	case InvocationAll:
		return "ALL"
	case InvocationDistinct:
		return "DISTINCT"
	}
	return "UNSPECIFIED"
}

// AggregateFunction invokes an aggregate variant. It is a measure of an
// Aggregate relation and not an Expression on its own.
type AggregateFunction struct {
	Variant    *extensions.Variant
	Args       []FunctionArg
	Options    []FunctionOption
	Phase      AggregationPhase
	Invocation AggregationInvocation
	Sorts      []SortField
	output     types.Type
}

// NewAggregateFunction binds args (the initial input values) to v. The output
// is the intermediate type for phases that produce it and the return type otherwise.
func NewAggregateFunction(v *extensions.Variant, args []FunctionArg, phase AggregationPhase,
	invocation AggregationInvocation, sorts []SortField, opts ...FunctionOption) (*AggregateFunction, error) {
	if phase < PhaseUnspecified || phase > PhaseIntermediateToResult {
		return nil, errdefs.Constructionf("invalid aggregation phase %d", phase)
	}
	if invocation < InvocationUnspecified || invocation > InvocationDistinct {
		return nil, errdefs.Constructionf("invalid aggregation invocation %d", invocation)
	}
	out, err := bindOutput(v, extensions.KindAggregate, args, phase.ProducesIntermediate())
	if err != nil {
		return nil, err
	}
	return &AggregateFunction{
		Variant:    v,
		Args:       args,
		Options:    opts,
		Phase:      phase,
		Invocation: invocation,
		Sorts:      sorts,
		output:     out,
	}, nil
}

// ResolveAggregate resolves name against reg and builds an INITIAL_TO_RESULT
// invocation over all values.
func ResolveAggregate(reg *extensions.Registry, name string, args ...FunctionArg) (*AggregateFunction, error) {
	rargs, err := ResolutionArgs(args)
	if err != nil {
		return nil, err
	}
	v, err := reg.Resolve(extensions.KindAggregate, name, rargs)
	if err != nil {
		return nil, err
	}
	return NewAggregateFunction(v, args, PhaseInitialToResult, InvocationAll, nil)
}

// Type returns the measure's output type.
func (f *AggregateFunction) Type() types.Type { return f.output }

// Equal compares two aggregate invocations.
func (f *AggregateFunction) Equal(o *AggregateFunction) bool {
	if f == nil || o == nil {
		return f == o
	}
	return o.Variant.Key() == f.Variant.Key() && o.Phase == f.Phase && o.Invocation == f.Invocation &&
		o.output.Equal(f.output) && EqualArgs(o.Args, f.Args) && EqualSorts(o.Sorts, f.Sorts) &&
		equalOptions(o.Options, f.Options)
}

// BoundKind is the shape of a window frame bound.
type BoundKind int

const (
	BoundCurrentRow BoundKind = iota
	BoundBounded
	BoundUnbounded
)

// BoundDirection places a bound before or after the current row.
type BoundDirection int

const (
	Preceding BoundDirection = iota
	Following
)

// WindowBound is one end of a window frame. Offset is meaningful only for
// BoundBounded; Direction is ignored for BoundCurrentRow.
type WindowBound struct {
	Kind      BoundKind
	Direction BoundDirection
	Offset    int64
}

func CurrentRow() WindowBound { return WindowBound{Kind: BoundCurrentRow} }

func PrecedingBound(offset int64) WindowBound {
	return WindowBound{Kind: BoundBounded, Direction: Preceding, Offset: offset}
}

func FollowingBound(offset int64) WindowBound {
	return WindowBound{Kind: BoundBounded, Direction: Following, Offset: offset}
}

func UnboundedPreceding() WindowBound {
	return WindowBound{Kind: BoundUnbounded, Direction: Preceding}
}

func UnboundedFollowing() WindowBound {
	return WindowBound{Kind: BoundUnbounded, Direction: Following}
}

func (b WindowBound) String() string {
	dir := "PRECEDING"
	if b.Direction == Following {
		dir = "FOLLOWING"
	}
	switch b.Kind {
	case BoundCurrentRow:
		return "CURRENT ROW"
	case BoundUnbounded:
		return "UNBOUNDED " + dir
	}
	return fmt.Sprintf("%d %s", b.Offset, dir)
}

func (b WindowBound) validate() error {
	switch b.Kind {
	case BoundCurrentRow:
		return nil
	case BoundBounded, BoundUnbounded:
		if b.Direction != Preceding && b.Direction != Following {
			return errdefs.Constructionf("invalid window bound direction %d", b.Direction)
		}
		if b.Kind == BoundBounded && b.Offset < 0 {
			return errdefs.Constructionf("negative window bound offset %d", b.Offset)
		}
		return nil
	}
	return errdefs.Constructionf("invalid window bound kind %d", b.Kind)
}

// normalized drops fields that do not apply to the bound kind.
func (b WindowBound) normalized() WindowBound {
	switch b.Kind {
	case BoundCurrentRow:
		return WindowBound{Kind: BoundCurrentRow}
	case BoundUnbounded:
		b.Offset = 0
	}
	return b
}

// BoundsType selects row- or range-based frames.
type BoundsType int32

const (
	BoundsUnspecified BoundsType = 0
	BoundsRows        BoundsType = 1
	BoundsRange       BoundsType = 2
)

// WindowFunction invokes an aggregate or window variant over a frame.
type WindowFunction struct {
	exprNode
	Variant    *extensions.Variant
	Args       []FunctionArg
	Options    []FunctionOption
	Phase      AggregationPhase
	Invocation AggregationInvocation
	Partitions []Expression
	Sorts      []SortField
	Lower      WindowBound
	Upper      WindowBound
	BoundsType BoundsType
	output     types.Type
}

// WindowSpec groups the frame parameters of a window invocation.
type WindowSpec struct {
	Phase      AggregationPhase
	Invocation AggregationInvocation
	Partitions []Expression
	Sorts      []SortField
	Lower      WindowBound
	Upper      WindowBound
	BoundsType BoundsType
}

// NewWindowFunction binds args to v, which must be a window or aggregate variant.
func NewWindowFunction(v *extensions.Variant, args []FunctionArg, spec WindowSpec, opts ...FunctionOption) (*WindowFunction, error) {
	if v == nil {
		return nil, errdefs.Constructionf("window invocation without variant")
	}
	kind := extensions.KindWindow
	if v.Kind == extensions.KindAggregate {
		kind = extensions.KindAggregate
	}
	if err := spec.Lower.validate(); err != nil {
		return nil, fmt.Errorf("lower bound: %w", err)
	}
	if err := spec.Upper.validate(); err != nil {
		return nil, fmt.Errorf("upper bound: %w", err)
	}
	if spec.BoundsType < BoundsUnspecified || spec.BoundsType > BoundsRange {
		return nil, errdefs.Constructionf("invalid bounds type %d", spec.BoundsType)
	}
	out, err := bindOutput(v, kind, args, spec.Phase.ProducesIntermediate())
	if err != nil {
		return nil, err
	}
	return &WindowFunction{
		Variant:    v,
		Args:       args,
		Options:    opts,
		Phase:      spec.Phase,
		Invocation: spec.Invocation,
		Partitions: spec.Partitions,
		Sorts:      spec.Sorts,
		Lower:      spec.Lower.normalized(),
		Upper:      spec.Upper.normalized(),
		BoundsType: spec.BoundsType,
		output:     out,
	}, nil
}

// ResolveWindow resolves name as a window function, falling back to an
// aggregate of the same name.
func ResolveWindow(reg *extensions.Registry, name string, spec WindowSpec, args ...FunctionArg) (*WindowFunction, error) {
	rargs, err := ResolutionArgs(args)
	if err != nil {
		return nil, err
	}
	v, err := reg.Resolve(extensions.KindWindow, name, rargs)
	if err != nil {
		var aggErr error
		if v, aggErr = reg.Resolve(extensions.KindAggregate, name, rargs); aggErr != nil {
			return nil, err
		}
	}
	return NewWindowFunction(v, args, spec)
}

func (f *WindowFunction) Type() types.Type { return f.output }

func (f *WindowFunction) Equal(other Expression) bool {
	o, ok := other.(*WindowFunction)
	return ok && o.Variant.Key() == f.Variant.Key() && o.Phase == f.Phase && o.Invocation == f.Invocation &&
		o.Lower == f.Lower && o.Upper == f.Upper && o.BoundsType == f.BoundsType && o.output.Equal(f.output) &&
		EqualArgs(o.Args, f.Args) && EqualExprs(o.Partitions, f.Partitions) && EqualSorts(o.Sorts, f.Sorts) &&
		equalOptions(o.Options, f.Options)
}
