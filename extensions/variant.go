// Package extensions resolves named function calls against a signature library,
// interns resolved variants to compact integer anchors for encoding and maps
// anchors back to variants when decoding.
package extensions

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// FunctionKind separates scalar, aggregate and window functions.
type FunctionKind int

const (
	KindScalar FunctionKind = iota
	KindAggregate
	KindWindow
)

func (k FunctionKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindAggregate:
		return "aggregate"
	case KindWindow:
		return "window"
	}
	return fmt.Sprintf("FunctionKind(%d)", int(k))
}

// ArgKind identifies which branch of the argument union a parameter accepts.
type ArgKind int

const (
	ArgValue ArgKind = iota
	ArgType
	ArgEnum
)

// NullabilityHandling controls how a variant's output nullability is computed.
type NullabilityHandling string

const (
	// NullabilityMirror makes the output nullable if any value argument is nullable.
	NullabilityMirror NullabilityHandling = "MIRROR"
	// NullabilityDeclared uses the nullability written in the return type.
	NullabilityDeclared NullabilityHandling = "DECLARED_OUTPUT"
	// NullabilityDiscrete uses the declared nullability; arguments are matched exactly.
	NullabilityDiscrete NullabilityHandling = "DISCRETE"
)

// Param is one declared argument of a variant.
type Param struct {
	Name string
	Kind ArgKind
	// Pattern constrains value and type arguments.
	Pattern TypePattern
	// Options lists accepted tokens of an enum argument.
	Options []string
}

// Variadic allows the last declared parameter to repeat between Min and Max
// times. Max 0 means unbounded.
type Variadic struct {
	Min int
	Max int
	// Inconsistent lets each repetition bind wildcards independently.
	Inconsistent bool
}

// Key identifies a variant across libraries.
type Key struct {
	URI  string
	Name string // compound name, e.g. "add:i32_i32"
}

func (k Key) String() string { return k.URI + "#" + k.Name }

// Variant is one concrete overload of a function in a signature library.
type Variant struct {
	URI         string
	Name        string
	Description string
	Kind        FunctionKind
	Params      []Param
	Variadic    *Variadic
	Nullability NullabilityHandling
	// Return computes the output type.
	Return ReturnRule
	// Intermediate is the partial-aggregation type of an aggregate variant.
	Intermediate ReturnRule
	// Options are optional named settings, e.g. overflow handling.
	Options map[string][]string
	// Decomposable is NONE, ONE or MANY for aggregates.
	Decomposable string
	// WindowType is STREAMING or PARTITION for window functions.
	WindowType string
}

// Signature returns the argument part of the compound name.
func (v *Variant) Signature() string {
	parts := make([]string, len(v.Params))
	for i, p := range v.Params {
		switch p.Kind {
		case ArgEnum:
			parts[i] = "req"
		default:
			parts[i] = p.Pattern.ShortName()
		}
	}
	return strings.Join(parts, "_")
}

// CompoundName returns "name:sig".
func (v *Variant) CompoundName() string {
	return v.Name + ":" + v.Signature()
}

// Key returns the variant's identity.
func (v *Variant) Key() Key {
	return Key{URI: v.URI, Name: v.CompoundName()}
}

func (v *Variant) String() string {
	return v.Key().String()
}

// Arg is the resolution view of a call argument.
type Arg struct {
	Kind ArgKind
	// Type is the value type of a value argument or the bare type of a type argument.
	Type types.Type
	// Enum is the token of an enum argument.
	Enum string
}

// ValueArg returns a value argument of type t.
func ValueArg(t types.Type) Arg { return Arg{Kind: ArgValue, Type: t} }

// TypeArg returns a bare type argument.
func TypeArg(t types.Type) Arg { return Arg{Kind: ArgType, Type: t} }

// EnumArg returns an enum token argument.
func EnumArg(token string) Arg { return Arg{Kind: ArgEnum, Enum: token} }

// Bind matches args against the declared parameters and returns the bindings.
func (v *Variant) Bind(args []Arg) (Bindings, error) {
	b := newBindings()
	n := len(v.Params)
	if v.Variadic == nil {
		if len(args) != n {
			return b, errdefs.Resolutionf("%s takes %d arguments, got %d", v.CompoundName(), n, len(args))
		}
	} else {
		if n == 0 {
			return b, errdefs.Resolutionf("%s is variadic without parameters", v.CompoundName())
		}
		reps := len(args) - (n - 1)
		if reps < v.Variadic.Min || (v.Variadic.Max > 0 && reps > v.Variadic.Max) {
			return b, errdefs.Resolutionf("%s takes %d..%d repetitions of its last argument, got %d",
				v.CompoundName(), v.Variadic.Min, v.Variadic.Max, reps)
		}
	}
	for i, a := range args {
		pi := i
		if pi >= n {
			pi = n - 1
		}
		p := v.Params[pi]
		target := b
		if v.Variadic != nil && v.Variadic.Inconsistent && pi == n-1 {
			target = b.clone()
		}
		if err := matchParam(p, a, target); err != nil {
			return b, fmt.Errorf("%s argument %d: %w", v.CompoundName(), i, err)
		}
	}
	return b, nil
}

func matchParam(p Param, a Arg, b Bindings) error {
	if p.Kind != a.Kind {
		return errdefs.Resolutionf("expected %s argument", argKindName(p.Kind))
	}
	switch p.Kind {
	case ArgEnum:
		if len(p.Options) == 0 {
			return nil
		}
		for _, o := range p.Options {
			if strings.EqualFold(o, a.Enum) {
				return nil
			}
		}
		return errdefs.Resolutionf("enum %q not in %v", a.Enum, p.Options)
	default:
		if a.Type == nil {
			return errdefs.Resolutionf("argument has no type")
		}
		if !p.Pattern.Match(a.Type, b) {
			return errdefs.Resolutionf("type %s does not match %s", a.Type, p.Pattern)
		}
	}
	return nil
}

func argKindName(k ArgKind) string {
	switch k {
	case ArgType:
		return "type"
	case ArgEnum:
		return "enum"
	}
	return "value"
}

// Matches reports whether args bind to the variant.
func (v *Variant) Matches(args []Arg) bool {
	_, err := v.Bind(args)
	return err == nil
}

// OutputType computes the result type for args, applying the nullability rule.
func (v *Variant) OutputType(args []Arg) (types.Type, error) {
	return v.derive(v.Return, args)
}

// IntermediateType computes the partial-aggregation type for args.
func (v *Variant) IntermediateType(args []Arg) (types.Type, error) {
	if v.Intermediate == nil {
		return nil, errdefs.Resolutionf("%s declares no intermediate type", v.CompoundName())
	}
	return v.derive(v.Intermediate, args)
}

func (v *Variant) derive(rule ReturnRule, args []Arg) (types.Type, error) {
	if rule == nil {
		return nil, errdefs.Resolutionf("%s declares no return type", v.CompoundName())
	}
	b, err := v.Bind(args)
	if err != nil {
		return nil, err
	}
	t, err := rule.ReturnType(args, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	if v.Nullability == NullabilityMirror || v.Nullability == "" {
		nullable := false
		for _, a := range args {
			if a.Kind == ArgValue && a.Type.Nullable() {
				nullable = true
				break
			}
		}
		t = t.WithNullability(nullable)
	}
	return t, nil
}

// ReturnRule computes a variant's output type from the call arguments and the
// bindings established while matching them.
type ReturnRule interface {
	ReturnType(args []Arg, b Bindings) (types.Type, error)
}

// FixedReturn always yields Type.
type FixedReturn struct {
	Type types.Type
}

func (r FixedReturn) ReturnType([]Arg, Bindings) (types.Type, error) { return r.Type, nil }

// ReturnFunc adapts a function to ReturnRule.
type ReturnFunc func(args []Arg, b Bindings) (types.Type, error)

func (f ReturnFunc) ReturnType(args []Arg, b Bindings) (types.Type, error) { return f(args, b) }

// PatternReturn evaluates a type pattern, optionally after a derivation
// program of integer assignments ("scale = max(S1,S2)").
type PatternReturn struct {
	Program []Assignment
	Pattern TypePattern
}

func (r PatternReturn) ReturnType(_ []Arg, b Bindings) (types.Type, error) {
	if len(r.Program) > 0 {
		b = b.clone()
		for _, a := range r.Program {
			val, err := a.Expr.eval(b.Values)
			if err != nil {
				return nil, fmt.Errorf("evaluating %s: %w", a.Name, err)
			}
			b.Values[a.Name] = val
		}
	}
	return r.Pattern.Evaluate(b)
}

// ParseReturn parses a return declaration: a type pattern, or a multi-line
// derivation program whose last line is the type pattern.
func ParseReturn(src string) (PatternReturn, error) {
	lines := strings.Split(strings.TrimSpace(src), "\n")
	var r PatternReturn
	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, err := parseAssignment(line)
		if err != nil {
			return PatternReturn{}, err
		}
		r.Program = append(r.Program, a)
	}
	p, err := ParsePattern(lines[len(lines)-1])
	if err != nil {
		return PatternReturn{}, err
	}
	r.Pattern = p
	return r, nil
}
