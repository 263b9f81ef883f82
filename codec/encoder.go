// Package codec converts between the plan IR and Substrait protobuf plans
// (github.com/substrait-io/substrait-protobuf/go/substraitpb).
//
// Encoding interns every function variant into a fresh extensions.Collector,
// so a plan's anchor table depends only on the plan. Decoding builds an
// extensions.Directory from the anchor table first, then reconstructs the
// relations bottom-up through the IR constructors, re-deriving every type.
package codec

import (
	"fmt"
	"slices"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	extpb "github.com/substrait-io/substrait-protobuf/go/substraitpb/extensions"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/plan"
	"github.com/hugr-lab/substrait-go/relation"
)

// Producer names this library in the version of every encoded plan.
const Producer = "substrait-go"

// encoder holds the state of one encode pass.
type encoder struct {
	anchors *extensions.Collector
}

// Encode converts p to a Substrait protobuf plan.
func Encode(p *plan.Plan) (*pb.Plan, error) {
	if p == nil {
		return nil, errdefs.Unsupportedf("nil plan")
	}
	e := &encoder{anchors: extensions.NewCollector()}

	out := &pb.Plan{
		Version:   &pb.Version{Producer: Producer},
		Relations: make([]*pb.PlanRel, len(p.Relations)),
	}
	for i, r := range p.Relations {
		pr, err := e.planRel(r)
		if err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
		out.Relations[i] = pr
	}
	ext, err := encodeExtension(p.AdvancedExtension)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	out.AdvancedExtensions = ext

	for _, u := range e.anchors.URIs() {
		out.ExtensionUris = append(out.ExtensionUris, &extpb.SimpleExtensionURI{
			ExtensionUriAnchor: u.Anchor,
			Uri:                u.URI,
		})
	}
	for _, f := range e.anchors.Functions() {
		out.Extensions = append(out.Extensions, &extpb.SimpleExtensionDeclaration{
			MappingType: &extpb.SimpleExtensionDeclaration_ExtensionFunction_{
				ExtensionFunction: &extpb.SimpleExtensionDeclaration_ExtensionFunction{
					ExtensionUriReference: f.URIAnchor,
					FunctionAnchor:        f.Anchor,
					Name:                  f.Name,
				},
			},
		})
	}
	return out, nil
}

func (e *encoder) planRel(r plan.Rel) (*pb.PlanRel, error) {
	if root := r.Root(); root != nil {
		in, err := e.rel(root.Input)
		if err != nil {
			return nil, fmt.Errorf("root: %w", err)
		}
		return &pb.PlanRel{RelType: &pb.PlanRel_Root{Root: &pb.RelRoot{Input: in, Names: slices.Clone(root.Names)}}}, nil
	}
	in, err := e.rel(r.Relation())
	if err != nil {
		return nil, err
	}
	return &pb.PlanRel{RelType: &pb.PlanRel_Rel{Rel: in}}, nil
}

func encodeAny(p relation.Payload) (*anypb.Any, error) {
	if p == nil {
		return nil, nil
	}
	a, err := p.ToAny()
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errdefs.Unsupportedf("payload %T packed to nil", p)
	}
	return &anypb.Any{TypeUrl: a.GetTypeUrl(), Value: slices.Clone(a.GetValue())}, nil
}

func encodeExtension(ext *relation.AdvancedExtension) (*extpb.AdvancedExtension, error) {
	if ext.IsEmpty() {
		return nil, nil
	}
	out := &extpb.AdvancedExtension{}
	opt, err := encodeAny(ext.Optimization)
	if err != nil {
		return nil, fmt.Errorf("optimization: %w", err)
	}
	if opt != nil {
		out.Optimization = []*anypb.Any{opt}
	}
	if out.Enhancement, err = encodeAny(ext.Enhancement); err != nil {
		return nil, fmt.Errorf("enhancement: %w", err)
	}
	return out, nil
}

func encodeCommon(r relation.Relation) (*pb.RelCommon, error) {
	c := &pb.RelCommon{}
	if remap := r.Remap(); remap != nil {
		c.EmitKind = &pb.RelCommon_Emit_{Emit: &pb.RelCommon_Emit{OutputMapping: slices.Clone(remap.Indices)}}
	} else {
		c.EmitKind = &pb.RelCommon_Direct_{Direct: &pb.RelCommon_Direct{}}
	}
	ext, err := encodeExtension(r.AdvancedExtension())
	if err != nil {
		return nil, err
	}
	c.AdvancedExtension = ext
	return c, nil
}

func (e *encoder) rels(rs []relation.Relation) ([]*pb.Rel, error) {
	out := make([]*pb.Rel, len(rs))
	for i, r := range rs {
		w, err := e.rel(r)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

func read(r *pb.ReadRel) *pb.Rel { return &pb.Rel{RelType: &pb.Rel_Read{Read: r}} }

func (e *encoder) rel(r relation.Relation) (*pb.Rel, error) {
	if r == nil {
		return nil, errdefs.Unsupportedf("nil relation")
	}
	common, err := encodeCommon(r)
	if err != nil {
		return nil, err
	}

	switch r := r.(type) {
	case *relation.NamedScan:
		schema, err := EncodeNamedStruct(r.Schema)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return read(&pb.ReadRel{
			Common:     common,
			BaseSchema: schema,
			ReadType:   &pb.ReadRel_NamedTable_{NamedTable: &pb.ReadRel_NamedTable{Names: slices.Clone(r.Names)}},
		}), nil

	case *relation.EmptyScan:
		schema, err := EncodeNamedStruct(r.Schema)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return read(&pb.ReadRel{
			Common:     common,
			BaseSchema: schema,
			ReadType:   &pb.ReadRel_VirtualTable_{VirtualTable: &pb.ReadRel_VirtualTable{}},
		}), nil

	case *relation.VirtualTableScan:
		schema, err := EncodeNamedStruct(r.Schema)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		rows := make([]*pb.Expression_Literal_Struct, len(r.Rows))
		for i, row := range r.Rows {
			if row.Type().Nullable() {
				return nil, errdefs.Unsupportedf("read: virtual table row %d is nullable", i)
			}
			fields, err := e.literals(row.Fields)
			if err != nil {
				return nil, fmt.Errorf("read: row %d: %w", i, err)
			}
			rows[i] = &pb.Expression_Literal_Struct{Fields: fields}
		}
		return read(&pb.ReadRel{
			Common:     common,
			BaseSchema: schema,
			ReadType:   &pb.ReadRel_VirtualTable_{VirtualTable: &pb.ReadRel_VirtualTable{Values: rows}},
		}), nil

	case *relation.ExtensionTable:
		schema, err := EncodeNamedStruct(r.Schema)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		detail, err := encodeAny(r.Detail)
		if err != nil {
			return nil, fmt.Errorf("read: detail: %w", err)
		}
		return read(&pb.ReadRel{
			Common:     common,
			BaseSchema: schema,
			ReadType:   &pb.ReadRel_ExtensionTable_{ExtensionTable: &pb.ReadRel_ExtensionTable{Detail: detail}},
		}), nil

	case *relation.Filter:
		in, err := e.rel(r.Input)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		cond, err := e.expr(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("filter: condition: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_Filter{Filter: &pb.FilterRel{Common: common, Input: in, Condition: cond}}}, nil

	case *relation.Fetch:
		in, err := e.rel(r.Input)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		w := &pb.FetchRel{
			Common:     common,
			Input:      in,
			OffsetMode: &pb.FetchRel_Offset{Offset: r.Offset},
		}
		if r.Count != nil {
			w.CountMode = &pb.FetchRel_Count{Count: *r.Count}
		}
		return &pb.Rel{RelType: &pb.Rel_Fetch{Fetch: w}}, nil

	case *relation.Aggregate:
		return e.aggregate(r, common)

	case *relation.Sort:
		in, err := e.rel(r.Input)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		sorts, err := e.sorts(r.Sorts)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_Sort{Sort: &pb.SortRel{Common: common, Input: in, Sorts: sorts}}}, nil

	case *relation.Join:
		return e.join(r, common)

	case *relation.Project:
		in, err := e.rel(r.Input)
		if err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
		exprs, err := e.exprs(r.Expressions)
		if err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_Project{Project: &pb.ProjectRel{Common: common, Input: in, Expressions: exprs}}}, nil

	case *relation.Set:
		ins, err := e.rels(r.SetInputs)
		if err != nil {
			return nil, fmt.Errorf("set: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_Set{Set: &pb.SetRel{Common: common, Inputs: ins, Op: pb.SetRel_SetOp(r.Op)}}}, nil

	case *relation.Cross:
		left, err := e.rel(r.Left)
		if err != nil {
			return nil, fmt.Errorf("cross: left: %w", err)
		}
		right, err := e.rel(r.Right)
		if err != nil {
			return nil, fmt.Errorf("cross: right: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_Cross{Cross: &pb.CrossRel{Common: common, Left: left, Right: right}}}, nil

	case *relation.Expand:
		return e.expand(r, common)

	case *relation.ExtensionLeaf:
		detail, err := encodeAny(r.Detail)
		if err != nil {
			return nil, fmt.Errorf("extension leaf: detail: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_ExtensionLeaf{ExtensionLeaf: &pb.ExtensionLeafRel{Common: common, Detail: detail}}}, nil

	case *relation.ExtensionSingle:
		in, err := e.rel(r.Input)
		if err != nil {
			return nil, fmt.Errorf("extension single: %w", err)
		}
		detail, err := encodeAny(r.Detail)
		if err != nil {
			return nil, fmt.Errorf("extension single: detail: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_ExtensionSingle{ExtensionSingle: &pb.ExtensionSingleRel{
			Common: common,
			Input:  in,
			Detail: detail,
		}}}, nil

	case *relation.ExtensionMulti:
		ins, err := e.rels(r.MultiInputs)
		if err != nil {
			return nil, fmt.Errorf("extension multi: %w", err)
		}
		detail, err := encodeAny(r.Detail)
		if err != nil {
			return nil, fmt.Errorf("extension multi: detail: %w", err)
		}
		return &pb.Rel{RelType: &pb.Rel_ExtensionMulti{ExtensionMulti: &pb.ExtensionMultiRel{
			Common: common,
			Inputs: ins,
			Detail: detail,
		}}}, nil
	}
	return nil, errdefs.Unsupportedf("relation %T", r)
}

func (e *encoder) aggregate(r *relation.Aggregate, common *pb.RelCommon) (*pb.Rel, error) {
	in, err := e.rel(r.Input)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	w := &pb.AggregateRel{Common: common, Input: in}
	for i, g := range r.Groupings {
		exprs, err := e.exprs(g.Expressions)
		if err != nil {
			return nil, fmt.Errorf("aggregate: grouping %d: %w", i, err)
		}
		w.Groupings = append(w.Groupings, &pb.AggregateRel_Grouping{GroupingExpressions: exprs})
	}
	for i, m := range r.Measures {
		fn, err := e.aggregateFunction(m.Function)
		if err != nil {
			return nil, fmt.Errorf("aggregate: measure %d: %w", i, err)
		}
		wm := &pb.AggregateRel_Measure{Measure: fn}
		if m.Filter != nil {
			if wm.Filter, err = e.expr(m.Filter); err != nil {
				return nil, fmt.Errorf("aggregate: measure %d: filter: %w", i, err)
			}
		}
		w.Measures = append(w.Measures, wm)
	}
	return &pb.Rel{RelType: &pb.Rel_Aggregate{Aggregate: w}}, nil
}

func (e *encoder) join(r *relation.Join, common *pb.RelCommon) (*pb.Rel, error) {
	left, err := e.rel(r.Left)
	if err != nil {
		return nil, fmt.Errorf("join: left: %w", err)
	}
	right, err := e.rel(r.Right)
	if err != nil {
		return nil, fmt.Errorf("join: right: %w", err)
	}
	w := &pb.JoinRel{Common: common, Left: left, Right: right, Type: pb.JoinRel_JoinType(r.Type)}
	if r.Condition != nil {
		if w.Expression, err = e.expr(r.Condition); err != nil {
			return nil, fmt.Errorf("join: condition: %w", err)
		}
	}
	if r.PostJoinFilter != nil {
		if w.PostJoinFilter, err = e.expr(r.PostJoinFilter); err != nil {
			return nil, fmt.Errorf("join: post-join filter: %w", err)
		}
	}
	return &pb.Rel{RelType: &pb.Rel_Join{Join: w}}, nil
}

func (e *encoder) expand(r *relation.Expand, common *pb.RelCommon) (*pb.Rel, error) {
	in, err := e.rel(r.Input)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	fields := make([]*pb.ExpandRel_ExpandField, len(r.Fields))
	for i, f := range r.Fields {
		switch f := f.(type) {
		case relation.ConsistentField:
			x, err := e.expr(f.Expr)
			if err != nil {
				return nil, fmt.Errorf("expand: field %d: %w", i, err)
			}
			fields[i] = &pb.ExpandRel_ExpandField{FieldType: &pb.ExpandRel_ExpandField_ConsistentField{ConsistentField: x}}
		case relation.SwitchingField:
			dups, err := e.exprs(f.Duplicates)
			if err != nil {
				return nil, fmt.Errorf("expand: field %d: %w", i, err)
			}
			fields[i] = &pb.ExpandRel_ExpandField{FieldType: &pb.ExpandRel_ExpandField_SwitchingField{
				SwitchingField: &pb.ExpandRel_SwitchingField{Duplicates: dups},
			}}
		default:
			return nil, errdefs.Unsupportedf("expand: field %d kind %T", i, f)
		}
	}
	return &pb.Rel{RelType: &pb.Rel_Expand{Expand: &pb.ExpandRel{Common: common, Input: in, Fields: fields}}}, nil
}

// subquery encodes the relation of a subquery expression.
func (e *encoder) subquery(r expr.Relation) (*pb.Rel, error) {
	rel, ok := r.(relation.Relation)
	if !ok {
		return nil, errdefs.Unsupportedf("subquery relation %T", r)
	}
	return e.rel(rel)
}
