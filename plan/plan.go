// Package plan assembles relation trees into a complete, exchangeable plan.
package plan

import (
	"slices"
	"strings"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

// Rel is one top-level entry of a plan: either a bare relation or a root
// that names its output columns.
type Rel struct {
	rel  relation.Relation
	root *Root
}

// Root is a relation whose visible output fields are named depth-first.
type Root struct {
	Input relation.Relation
	Names []string
}

// NewRoot validates that names cover the visible record type of input,
// including the fields of nested structs.
func NewRoot(input relation.Relation, names []string) (*Root, error) {
	if input == nil {
		return nil, errdefs.Constructionf("plan root without input")
	}
	if want := types.CountFieldNames(input.RecordType()); want != len(names) {
		return nil, errdefs.Constructionf("plan root has %d names for %d (nested) fields", len(names), want)
	}
	return &Root{Input: input, Names: slices.Clone(names)}, nil
}

// Schema returns the root's visible output as a named struct.
func (r *Root) Schema() types.NamedStruct {
	return types.NamedStruct{Names: r.Names, Struct: types.R.Struct(r.Input.RecordType()...)}
}

// RelOf wraps a bare relation.
func RelOf(rel relation.Relation) Rel { return Rel{rel: rel} }

// RootOf wraps a root.
func RootOf(root *Root) Rel { return Rel{root: root} }

// Relation returns the bare relation, or nil for a root.
func (r Rel) Relation() relation.Relation { return r.rel }

// Root returns the root, or nil for a bare relation.
func (r Rel) Root() *Root { return r.root }

// Input returns the relation tree of either kind.
func (r Rel) Input() relation.Relation {
	if r.root != nil {
		return r.root.Input
	}
	return r.rel
}

// Equal compares two plan entries.
func (r Rel) Equal(o Rel) bool {
	if (r.root == nil) != (o.root == nil) {
		return false
	}
	if r.root != nil {
		return slices.Equal(r.root.Names, o.root.Names) && relation.Equal(r.root.Input, o.root.Input)
	}
	return relation.Equal(r.rel, o.rel)
}

// Plan is an ordered set of relation trees plus plan-level extension payloads.
type Plan struct {
	Relations         []Rel
	AdvancedExtension *relation.AdvancedExtension
}

// New validates that every entry carries a relation.
func New(rels []Rel, ext *relation.AdvancedExtension) (*Plan, error) {
	if len(rels) == 0 {
		return nil, errdefs.Constructionf("plan without relations")
	}
	for i, r := range rels {
		if r.Input() == nil {
			return nil, errdefs.Constructionf("plan relation %d is empty", i)
		}
	}
	if ext.IsEmpty() {
		ext = nil
	}
	return &Plan{Relations: rels, AdvancedExtension: ext}, nil
}

// Roots returns the root entries in order.
func (p *Plan) Roots() []*Root {
	var out []*Root
	for _, r := range p.Relations {
		if r.root != nil {
			out = append(out, r.root)
		}
	}
	return out
}

// EqualRelations compares the relation entries of two plans, ignoring
// plan-level extensions.
func (p *Plan) EqualRelations(o *Plan) bool {
	return slices.EqualFunc(p.Relations, o.Relations, Rel.Equal)
}

// Equal compares two plans including plan-level extensions.
func (p *Plan) Equal(o *Plan) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.EqualRelations(o) && relation.EqualAdvancedExtensions(p.AdvancedExtension, o.AdvancedExtension)
}

// Explain renders every entry of the plan.
func Explain(p *Plan) string {
	var sb strings.Builder
	for i, r := range p.Relations {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if root := r.root; root != nil {
			sb.WriteString("Root[" + strings.Join(root.Names, ", ") + "]\n")
			for _, line := range strings.SplitAfter(relation.Explain(root.Input), "\n") {
				if line != "" {
					sb.WriteString("  " + line)
				}
			}
			continue
		}
		sb.WriteString(relation.Explain(r.rel))
	}
	return sb.String()
}
