package extensions

import (
	"log/slog"
	"strings"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// TieBreaker narrows a list of matching variants. It returns the surviving
// candidates; resolution succeeds when exactly one survives.
type TieBreaker func(name string, args []Arg, candidates []*Variant) []*Variant

// Registry resolves calls against a Collection.
type Registry struct {
	collection *Collection
	tieBreaker TieBreaker
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTieBreaker sets the rule applied when several variants match.
// Without one, ambiguous calls fail.
func WithTieBreaker(tb TieBreaker) RegistryOption {
	return func(r *Registry) { r.tieBreaker = tb }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates a registry over c.
func NewRegistry(c *Collection, opts ...RegistryOption) *Registry {
	r := &Registry{collection: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collection returns the underlying signature library.
func (r *Registry) Collection() *Collection {
	return r.collection
}

// Resolve finds the unique variant of kind named name accepting args.
func (r *Registry) Resolve(kind FunctionKind, name string, args []Arg) (*Variant, error) {
	return r.ResolveWith(r.tieBreaker, kind, name, args)
}

// ResolveWith is Resolve with a call-specific tie-breaker.
func (r *Registry) ResolveWith(tb TieBreaker, kind FunctionKind, name string, args []Arg) (*Variant, error) {
	candidates := r.collection.Candidates(kind, name)
	if len(candidates) == 0 {
		return nil, errdefs.Resolutionf("no %s function named %q", kind, name)
	}
	var matched []*Variant
	for _, v := range candidates {
		if v.Matches(args) {
			matched = append(matched, v)
		}
	}
	if len(matched) == 0 {
		return nil, errdefs.Resolutionf("no variant of %s %q accepts (%s)", kind, name, describeArgs(args))
	}
	if len(matched) > 1 && tb != nil {
		matched = tb(name, args, matched)
	}
	switch len(matched) {
	case 0:
		return nil, errdefs.Resolutionf("tie-break rejected every variant of %q", name)
	case 1:
		r.logger.Debug("Resolved function", "name", name, "variant", matched[0].CompoundName(), "uri", matched[0].URI)
		return matched[0], nil
	}
	names := make([]string, len(matched))
	for i, v := range matched {
		names[i] = v.Key().String()
	}
	return nil, errdefs.Resolutionf("ambiguous call %q(%s): %s", name, describeArgs(args), strings.Join(names, ", "))
}

func describeArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch a.Kind {
		case ArgEnum:
			parts[i] = "enum " + a.Enum
		case ArgType:
			parts[i] = "type " + a.Type.String()
		default:
			parts[i] = a.Type.String()
		}
	}
	return strings.Join(parts, ", ")
}

// PreferExact keeps the candidates with the fewest non-concrete parameters.
func PreferExact(_ string, _ []Arg, candidates []*Variant) []*Variant {
	best := -1
	var out []*Variant
	for _, v := range candidates {
		loose := 0
		for _, p := range v.Params {
			if p.Kind != ArgEnum && !p.Pattern.IsConcrete() {
				loose++
			}
		}
		switch {
		case best < 0 || loose < best:
			best = loose
			out = []*Variant{v}
		case loose == best:
			out = append(out, v)
		}
	}
	return out
}

// ReturnTypeIn keeps the candidates whose output type equals want, ignoring nullability.
func ReturnTypeIn(want types.Type) TieBreaker {
	return func(_ string, args []Arg, candidates []*Variant) []*Variant {
		var out []*Variant
		for _, v := range candidates {
			t, err := v.OutputType(args)
			if err == nil && types.EqualIgnoringNullability(t, want) {
				out = append(out, v)
			}
		}
		return out
	}
}

// PreferURI keeps the candidates from uri when any exist.
func PreferURI(uri string) TieBreaker {
	return func(_ string, _ []Arg, candidates []*Variant) []*Variant {
		var out []*Variant
		for _, v := range candidates {
			if v.URI == uri {
				out = append(out, v)
			}
		}
		if len(out) == 0 {
			return candidates
		}
		return out
	}
}

// Chain applies tie-breakers in order until one candidate remains.
func Chain(tbs ...TieBreaker) TieBreaker {
	return func(name string, args []Arg, candidates []*Variant) []*Variant {
		for _, tb := range tbs {
			if len(candidates) <= 1 {
				break
			}
			candidates = tb(name, args, candidates)
		}
		return candidates
	}
}
