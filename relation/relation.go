// Package relation defines the relation IR: a tree of relational operators,
// each deriving its output record type from its inputs and parameters.
//
// Nodes are built bottom-up through constructors that validate their inputs
// and derive the record type eagerly. A node never changes after construction;
// rewrites produce new nodes through TransformList and TransformInputs.
//
// Every node may carry a Remap and an AdvancedExtension. A remap only affects
// the visible record type (RecordType); expressions that consume a relation
// as input always address its derived, un-remapped fields.
package relation

import (
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// Relation is implemented by all relation nodes.
// Use a type switch to access node specific data.
type Relation interface {
	expr.Relation

	// DerivedRecordType returns the output field types before the remap is
	// applied. The returned slice must not be modified.
	DerivedRecordType() []types.Type

	// Remap returns the output remap, or nil.
	Remap() *Remap

	// AdvancedExtension returns the attached extension payloads, or nil.
	AdvancedExtension() *AdvancedExtension

	// Inputs returns the direct child relations in order.
	Inputs() []Relation

	// withInputs rebuilds the node over new inputs with the same parameters.
	withInputs(inputs []Relation) (Relation, error)
}

// Remap selects the visible output fields by position in the derived record
// type. Duplicates, reordering and subsets are all legal.
type Remap struct {
	Indices []int32
}

// Apply indexes fields by the remap.
func (r *Remap) Apply(fields []types.Type) []types.Type {
	out := make([]types.Type, len(r.Indices))
	for i, idx := range r.Indices {
		out[i] = fields[idx]
	}
	return out
}

func (r *Remap) validate(n int) error {
	for i, idx := range r.Indices {
		if idx < 0 || int(idx) >= n {
			return errdefs.Constructionf("remap index %d is %d, out of range [0,%d)", i, idx, n)
		}
	}
	return nil
}

func equalRemap(a, b *Remap) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return slices.Equal(a.Indices, b.Indices)
}

// Payload is an opaque extension payload that owns its wire form.
type Payload interface {
	ToAny() (*anypb.Any, error)
}

// AnyPayload carries an already packed payload.
type AnyPayload struct {
	Any *anypb.Any
}

func (p AnyPayload) ToAny() (*anypb.Any, error) { return p.Any, nil }

// NewPayload packs m into an AnyPayload.
func NewPayload(m proto.Message) (AnyPayload, error) {
	a, err := anypb.New(m)
	if err != nil {
		return AnyPayload{}, errdefs.Constructionf("pack payload: %v", err)
	}
	return AnyPayload{Any: a}, nil
}

// AdvancedExtension attaches opaque payloads to a relation or plan.
// An Optimization may be ignored by a consumer; an Enhancement alters
// semantics and must be understood.
type AdvancedExtension struct {
	Optimization Payload
	Enhancement  Payload
}

// IsEmpty reports whether neither payload is set.
func (e *AdvancedExtension) IsEmpty() bool {
	return e == nil || (e.Optimization == nil && e.Enhancement == nil)
}

// EqualAdvancedExtensions compares payloads by their packed form.
func EqualAdvancedExtensions(a, b *AdvancedExtension) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() && b.IsEmpty()
	}
	return equalPayload(a.Optimization, b.Optimization) && equalPayload(a.Enhancement, b.Enhancement)
}

func equalPayload(a, b Payload) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	pa, err := a.ToAny()
	if err != nil {
		return false
	}
	pb, err := b.ToAny()
	if err != nil {
		return false
	}
	return proto.Equal(pa, pb)
}

// Option sets a common property of a relation node.
type Option func(*common)

// WithRemap sets the output remap.
func WithRemap(indices ...int32) Option {
	return func(c *common) {
		c.remap = &Remap{Indices: slices.Clone(indices)}
	}
}

// WithAdvancedExtension attaches extension payloads. An empty extension is
// treated as absent.
func WithAdvancedExtension(ext *AdvancedExtension) Option {
	return func(c *common) {
		if ext.IsEmpty() {
			c.ext = nil
			return
		}
		c.ext = ext
	}
}

// common holds the properties shared by all nodes.
type common struct {
	derived []types.Type
	remap   *Remap
	ext     *AdvancedExtension
}

func (c *common) init(derived []types.Type, opts []Option) error {
	c.derived = derived
	for _, opt := range opts {
		opt(c)
	}
	if c.remap != nil {
		return c.remap.validate(len(derived))
	}
	return nil
}

// options reproduces the remap and extension of c.
func (c *common) options() []Option {
	var opts []Option
	if c.remap != nil {
		opts = append(opts, WithRemap(c.remap.Indices...))
	}
	if c.ext != nil {
		opts = append(opts, WithAdvancedExtension(c.ext))
	}
	return opts
}

func (c *common) DerivedRecordType() []types.Type { return c.derived }

func (c *common) RecordType() []types.Type {
	if c.remap == nil {
		return c.derived
	}
	return c.remap.Apply(c.derived)
}

func (c *common) Remap() *Remap { return c.remap }

func (c *common) AdvancedExtension() *AdvancedExtension { return c.ext }

func (c *common) equalCommon(o *common) bool {
	return equalRemap(c.remap, o.remap) && EqualAdvancedExtensions(c.ext, o.ext) &&
		types.EqualTypes(c.derived, o.derived)
}

// Equal compares two relation trees, or reports false if either is nil.
func Equal(a, b Relation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func equalRels(a, b []Relation) bool {
	return slices.EqualFunc(a, b, Equal)
}

func equalOptExpr(a, b expr.Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func requireBoolean(what string, e expr.Expression) error {
	if e == nil {
		return nil
	}
	if t := e.Type(); t.ID() != types.TypeIDBoolean {
		return errdefs.Constructionf("%s is %s, expected boolean", what, t)
	}
	return nil
}

func requireInput(what string, input Relation) error {
	if input == nil {
		return errdefs.Constructionf("%s without input", what)
	}
	return nil
}
