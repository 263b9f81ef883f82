package relation

import (
	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// LeafDetail defines a user extension relation without inputs.
type LeafDetail interface {
	Payload
	DeriveRecordType() ([]types.Type, error)
}

// SingleDetail defines a user extension relation with one input.
type SingleDetail interface {
	Payload
	DeriveRecordType(input Relation) ([]types.Type, error)
}

// MultiDetail defines a user extension relation with any number of inputs.
type MultiDetail interface {
	Payload
	DeriveRecordType(inputs []Relation) ([]types.Type, error)
}

// ExtensionLeaf is a source relation defined by its detail.
type ExtensionLeaf struct {
	common
	Detail LeafDetail
}

func NewExtensionLeaf(detail LeafDetail, opts ...Option) (*ExtensionLeaf, error) {
	if detail == nil {
		return nil, errdefs.Constructionf("extension leaf without detail")
	}
	derived, err := detail.DeriveRecordType()
	if err != nil {
		return nil, err
	}
	r := &ExtensionLeaf{Detail: detail}
	if err := r.init(derived, opts); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExtensionLeaf) Inputs() []Relation { return nil }

func (r *ExtensionLeaf) withInputs([]Relation) (Relation, error) { return r, nil }

func (r *ExtensionLeaf) Equal(other expr.Relation) bool {
	o, ok := other.(*ExtensionLeaf)
	return ok && equalPayload(r.Detail, o.Detail) && r.equalCommon(&o.common)
}

// ExtensionSingle transforms one input as defined by its detail.
type ExtensionSingle struct {
	common
	Input  Relation
	Detail SingleDetail
}

func NewExtensionSingle(input Relation, detail SingleDetail, opts ...Option) (*ExtensionSingle, error) {
	if err := requireInput("extension single", input); err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, errdefs.Constructionf("extension single without detail")
	}
	derived, err := detail.DeriveRecordType(input)
	if err != nil {
		return nil, err
	}
	r := &ExtensionSingle{Input: input, Detail: detail}
	if err := r.init(derived, opts); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExtensionSingle) Inputs() []Relation { return []Relation{r.Input} }

func (r *ExtensionSingle) withInputs(in []Relation) (Relation, error) {
	return NewExtensionSingle(in[0], r.Detail, r.options()...)
}

func (r *ExtensionSingle) Equal(other expr.Relation) bool {
	o, ok := other.(*ExtensionSingle)
	return ok && equalPayload(r.Detail, o.Detail) && Equal(r.Input, o.Input) && r.equalCommon(&o.common)
}

// ExtensionMulti combines its inputs as defined by its detail.
type ExtensionMulti struct {
	common
	MultiInputs []Relation
	Detail      MultiDetail
}

func NewExtensionMulti(inputs []Relation, detail MultiDetail, opts ...Option) (*ExtensionMulti, error) {
	if detail == nil {
		return nil, errdefs.Constructionf("extension multi without detail")
	}
	for i, in := range inputs {
		if in == nil {
			return nil, errdefs.Constructionf("extension multi input %d is nil", i)
		}
	}
	derived, err := detail.DeriveRecordType(inputs)
	if err != nil {
		return nil, err
	}
	r := &ExtensionMulti{MultiInputs: inputs, Detail: detail}
	if err := r.init(derived, opts); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExtensionMulti) Inputs() []Relation { return r.MultiInputs }

func (r *ExtensionMulti) withInputs(in []Relation) (Relation, error) {
	return NewExtensionMulti(in, r.Detail, r.options()...)
}

func (r *ExtensionMulti) Equal(other expr.Relation) bool {
	o, ok := other.(*ExtensionMulti)
	return ok && equalPayload(r.Detail, o.Detail) && equalRels(r.MultiInputs, o.MultiInputs) && r.equalCommon(&o.common)
}
