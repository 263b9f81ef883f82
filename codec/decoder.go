package codec

import (
	"errors"
	"fmt"
	"log/slog"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	extpb "github.com/substrait-io/substrait-protobuf/go/substraitpb/extensions"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/extensions"
	"github.com/hugr-lab/substrait-go/internal/recovery"
	"github.com/hugr-lab/substrait-go/plan"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

// Decoder reconstructs plans from protobuf messages. A Decoder is safe for
// concurrent use; each Decode call keeps its own anchor directory.
type Decoder struct {
	// Collection resolves the plan's function declarations.
	// REQUIRED when the plan declares functions.
	Collection *extensions.Collection

	// Extensions decodes opaque payloads.
	// OPTIONAL: defaults to DefaultExtensionDecoder.
	Extensions ExtensionDecoder

	// Logger for debug output and recovered panics.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger
}

// decoder holds the state of one decode pass.
type decoder struct {
	dir    *extensions.Directory
	ext    ExtensionDecoder
	logger *slog.Logger
	// outer holds the input record types of the enclosing queries, innermost last.
	outer [][]types.Type
}

// Decode converts w back to a plan.
func (d *Decoder) Decode(w *pb.Plan) (*plan.Plan, error) {
	if w == nil {
		return nil, errdefs.Integrityf("nil plan")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ext := d.Extensions
	if ext == nil {
		ext = DefaultExtensionDecoder{Logger: logger}
	}

	uris := make([]extensions.URIEntry, len(w.ExtensionUris))
	for i, u := range w.ExtensionUris {
		if u == nil {
			return nil, errdefs.Integrityf("extension uri %d is empty", i)
		}
		uris[i] = extensions.URIEntry{Anchor: u.ExtensionUriAnchor, URI: u.Uri}
	}
	funcs := make([]extensions.FunctionEntry, 0, len(w.Extensions))
	for i, decl := range w.Extensions {
		switch m := decl.GetMappingType().(type) {
		case *extpb.SimpleExtensionDeclaration_ExtensionFunction_:
			f := m.ExtensionFunction
			funcs = append(funcs, extensions.FunctionEntry{
				Anchor:    f.GetFunctionAnchor(),
				URIAnchor: f.GetExtensionUriReference(),
				Name:      f.GetName(),
			})
		case nil:
			return nil, errdefs.Integrityf("extension declaration %d sets no mapping", i)
		default:
			// Type declarations only matter once a type refers to them,
			// which DecodeType rejects.
			logger.Debug("Skipping extension declaration", "index", i, "kind", fmt.Sprintf("%T", m))
		}
	}
	dir, err := extensions.NewDirectory(uris, funcs, d.Collection)
	if err != nil {
		return nil, fmt.Errorf("extension declarations: %w", err)
	}

	s := &decoder{dir: dir, ext: ext, logger: logger}
	rels := make([]plan.Rel, len(w.Relations))
	for i, pr := range w.Relations {
		r, err := s.planRel(pr)
		if err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
		rels[i] = r
	}
	pext, err := s.extension(w.AdvancedExtensions)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	p, err := plan.New(rels, pext)
	if err != nil {
		return nil, asIntegrity(err)
	}

	logger.Debug("Decoded plan",
		"relations", len(rels),
		"functions", dir.Len(),
	)
	return p, nil
}

func (d *decoder) planRel(w *pb.PlanRel) (plan.Rel, error) {
	switch t := w.GetRelType().(type) {
	case *pb.PlanRel_Root:
		if t.Root == nil {
			return plan.Rel{}, errdefs.Integrityf("empty root")
		}
		in, err := d.rel(t.Root.Input)
		if err != nil {
			return plan.Rel{}, fmt.Errorf("root: %w", err)
		}
		root, err := plan.NewRoot(in, t.Root.Names)
		if err != nil {
			return plan.Rel{}, asIntegrity(err)
		}
		return plan.RootOf(root), nil
	case *pb.PlanRel_Rel:
		r, err := d.rel(t.Rel)
		if err != nil {
			return plan.Rel{}, err
		}
		return plan.RelOf(r), nil
	}
	return plan.Rel{}, errdefs.Integrityf("plan relation sets no case")
}

// asIntegrity reclassifies IR construction failures of decoded data.
func asIntegrity(err error) error {
	if err != nil && errors.Is(err, errdefs.ErrConstruction) && !errors.Is(err, errdefs.ErrDecodeIntegrity) {
		return fmt.Errorf("%w: %w", errdefs.ErrDecodeIntegrity, err)
	}
	return err
}

// extension decodes an advanced extension. Only one optimization payload fits
// the IR, so more than one surviving the extension decoder is unsupported.
func (d *decoder) extension(w *extpb.AdvancedExtension) (*relation.AdvancedExtension, error) {
	if w == nil {
		return nil, nil
	}
	ext := &relation.AdvancedExtension{}
	for i, a := range w.Optimization {
		if a == nil {
			continue
		}
		p, err := recovery.RecoverToValue(d.logger, "DecodeOptimization", func() (relation.Payload, error) {
			return d.ext.DecodeOptimization(a)
		})
		if err != nil {
			return nil, fmt.Errorf("optimization %d: %w", i, err)
		}
		if p == nil {
			continue
		}
		if ext.Optimization != nil {
			return nil, errdefs.Unsupportedf("more than one optimization payload")
		}
		ext.Optimization = p
	}
	if w.Enhancement != nil {
		p, err := recovery.RecoverToValue(d.logger, "DecodeEnhancement", func() (relation.Payload, error) {
			return d.ext.DecodeEnhancement(w.Enhancement)
		})
		if err != nil {
			return nil, fmt.Errorf("enhancement: %w", err)
		}
		ext.Enhancement = p
	}
	if ext.IsEmpty() {
		return nil, nil
	}
	return ext, nil
}

func (d *decoder) options(c *pb.RelCommon) ([]relation.Option, error) {
	if c == nil {
		return nil, errdefs.Integrityf("missing relation common")
	}
	var opts []relation.Option
	switch k := c.EmitKind.(type) {
	case *pb.RelCommon_Direct_:
	case *pb.RelCommon_Emit_:
		opts = append(opts, relation.WithRemap(k.Emit.GetOutputMapping()...))
	case nil:
		return nil, errdefs.Integrityf("output mapping sets no case")
	default:
		return nil, errdefs.Unsupportedf("output mapping %T", k)
	}
	ext, err := d.extension(c.AdvancedExtension)
	if err != nil {
		return nil, err
	}
	if ext != nil {
		opts = append(opts, relation.WithAdvancedExtension(ext))
	}
	return opts, nil
}

func (d *decoder) input(w *pb.Rel) (relation.Relation, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing input")
	}
	return d.rel(w)
}

func (d *decoder) inputs(ws []*pb.Rel) ([]relation.Relation, error) {
	out := make([]relation.Relation, len(ws))
	for i, w := range ws {
		r, err := d.input(w)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func (d *decoder) rel(w *pb.Rel) (relation.Relation, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing relation")
	}

	var (
		r    relation.Relation
		err  error
		name string
	)
	switch t := w.RelType.(type) {
	case *pb.Rel_Read:
		name = "read"
		r, err = d.read(t.Read)
	case *pb.Rel_Filter:
		name = "filter"
		r, err = d.filter(t.Filter)
	case *pb.Rel_Fetch:
		name = "fetch"
		r, err = d.fetch(t.Fetch)
	case *pb.Rel_Aggregate:
		name = "aggregate"
		r, err = d.aggregate(t.Aggregate)
	case *pb.Rel_Sort:
		name = "sort"
		r, err = d.sort(t.Sort)
	case *pb.Rel_Join:
		name = "join"
		r, err = d.join(t.Join)
	case *pb.Rel_Project:
		name = "project"
		r, err = d.project(t.Project)
	case *pb.Rel_Set:
		name = "set"
		r, err = d.set(t.Set)
	case *pb.Rel_Cross:
		name = "cross"
		r, err = d.cross(t.Cross)
	case *pb.Rel_Expand:
		name = "expand"
		r, err = d.expand(t.Expand)
	case *pb.Rel_ExtensionLeaf:
		name = "extension leaf"
		r, err = d.extensionLeaf(t.ExtensionLeaf)
	case *pb.Rel_ExtensionSingle:
		name = "extension single"
		r, err = d.extensionSingle(t.ExtensionSingle)
	case *pb.Rel_ExtensionMulti:
		name = "extension multi"
		r, err = d.extensionMulti(t.ExtensionMulti)
	case nil:
		return nil, errdefs.Integrityf("relation sets no case")
	default:
		return nil, errdefs.Unsupportedf("relation %T", t)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, asIntegrity(err))
	}
	return r, nil
}

func (d *decoder) read(w *pb.ReadRel) (relation.Relation, error) {
	if w == nil {
		return nil, errdefs.Integrityf("empty read")
	}
	opts, err := d.options(w.Common)
	if err != nil {
		return nil, err
	}
	if w.Filter != nil || w.BestEffortFilter != nil || w.Projection != nil {
		return nil, errdefs.Unsupportedf("read with pushed down filter or projection")
	}
	schema, err := DecodeNamedStruct(w.BaseSchema)
	if err != nil {
		return nil, fmt.Errorf("base schema: %w", err)
	}

	switch t := w.ReadType.(type) {
	case *pb.ReadRel_NamedTable_:
		return relation.NewNamedScan(t.NamedTable.GetNames(), schema, opts...)

	case *pb.ReadRel_VirtualTable_:
		values := t.VirtualTable.GetValues()
		if len(values) == 0 {
			return relation.NewEmptyScan(schema, opts...)
		}
		rows := make([]*expr.StructLiteral, len(values))
		for i, v := range values {
			fields, err := decodeLiterals(v.GetFields())
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			rows[i] = expr.NewStruct(fields, false)
		}
		return relation.NewVirtualTableScan(schema, rows, opts...)

	case *pb.ReadRel_ExtensionTable_:
		if t.ExtensionTable.GetDetail() == nil {
			return nil, errdefs.Integrityf("extension table without detail")
		}
		detail, err := recovery.RecoverToValue(d.logger, "DecodeTableDetail", func() (relation.TableDetail, error) {
			return d.ext.DecodeTableDetail(t.ExtensionTable.Detail)
		})
		if err != nil {
			return nil, fmt.Errorf("detail: %w", err)
		}
		tab, err := relation.NewExtensionTable(detail, opts...)
		if err != nil {
			return nil, err
		}
		if !tab.Schema.Equal(schema) {
			return nil, errdefs.Integrityf("extension table derives %s, base schema is %s", tab.Schema.Struct, schema.Struct)
		}
		return tab, nil

	case nil:
		return nil, errdefs.Integrityf("read type sets no case")
	}
	return nil, errdefs.Unsupportedf("read type %T", w.ReadType)
}

func (d *decoder) filter(w *pb.FilterRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	cond, err := d.expr(w.GetCondition(), in.DerivedRecordType())
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	return relation.NewFilter(in, cond, opts...)
}

// fetchValue reads an offset or count given as an expression. Only integer
// literals are accepted.
func fetchValue(what string, w *pb.Expression) (int64, error) {
	l := w.GetLiteral()
	switch v := l.GetLiteralType().(type) {
	case *pb.Expression_Literal_I64:
		return v.I64, nil
	case *pb.Expression_Literal_I32:
		return int64(v.I32), nil
	}
	return 0, errdefs.Unsupportedf("%s that is not an integer literal", what)
}

func (d *decoder) fetch(w *pb.FetchRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}

	var offset int64
	switch m := w.GetOffsetMode().(type) {
	case *pb.FetchRel_Offset:
		offset = m.Offset
	case *pb.FetchRel_OffsetExpr:
		if offset, err = fetchValue("offset", m.OffsetExpr); err != nil {
			return nil, err
		}
	}

	// A missing count and a count of -1 both mean all rows.
	var count *int64
	c := int64(-1)
	switch m := w.GetCountMode().(type) {
	case *pb.FetchRel_Count:
		c = m.Count
	case *pb.FetchRel_CountExpr:
		if c, err = fetchValue("count", m.CountExpr); err != nil {
			return nil, err
		}
	}
	switch {
	case c < -1:
		return nil, errdefs.Integrityf("fetch count %d is negative", c)
	case c >= 0:
		count = &c
	}
	return relation.NewFetch(in, offset, count, opts...)
}

func (d *decoder) aggregate(w *pb.AggregateRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	fields := in.DerivedRecordType()

	groupings := make([]relation.Grouping, len(w.GetGroupings()))
	for i, g := range w.GetGroupings() {
		exprs, err := d.exprs(g.GetGroupingExpressions(), fields)
		if err != nil {
			return nil, fmt.Errorf("grouping %d: %w", i, err)
		}
		groupings[i] = relation.Grouping{Expressions: exprs}
	}
	measures := make([]relation.Measure, len(w.GetMeasures()))
	for i, m := range w.GetMeasures() {
		fn, err := d.aggregateFunction(m.GetMeasure(), fields)
		if err != nil {
			return nil, fmt.Errorf("measure %d: %w", i, err)
		}
		measures[i] = relation.Measure{Function: fn}
		if m.GetFilter() != nil {
			if measures[i].Filter, err = d.expr(m.GetFilter(), fields); err != nil {
				return nil, fmt.Errorf("measure %d: filter: %w", i, err)
			}
		}
	}
	return relation.NewAggregate(in, groupings, measures, opts...)
}

func (d *decoder) sort(w *pb.SortRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	sorts, err := d.sorts(w.GetSorts(), in.DerivedRecordType())
	if err != nil {
		return nil, err
	}
	return relation.NewSort(in, sorts, opts...)
}

func (d *decoder) join(w *pb.JoinRel) (relation.Relation, error) {
	left, err := d.input(w.GetLeft())
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := d.input(w.GetRight())
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	jt := relation.JoinType(w.GetType())

	// The post-join filter addresses the joined record, nullability included.
	bare, err := relation.NewJoin(left, right, jt, nil, nil)
	if err != nil {
		return nil, err
	}
	var cond, post expr.Expression
	if w.GetExpression() != nil {
		combined := append(append([]types.Type{}, left.DerivedRecordType()...), right.DerivedRecordType()...)
		if cond, err = d.expr(w.GetExpression(), combined); err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
	}
	if w.GetPostJoinFilter() != nil {
		if post, err = d.expr(w.GetPostJoinFilter(), bare.DerivedRecordType()); err != nil {
			return nil, fmt.Errorf("post-join filter: %w", err)
		}
	}
	return relation.NewJoin(left, right, jt, cond, post, opts...)
}

func (d *decoder) project(w *pb.ProjectRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	exprs, err := d.exprs(w.GetExpressions(), in.DerivedRecordType())
	if err != nil {
		return nil, err
	}
	return relation.NewProject(in, exprs, opts...)
}

func (d *decoder) set(w *pb.SetRel) (relation.Relation, error) {
	ins, err := d.inputs(w.GetInputs())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	return relation.NewSet(relation.SetOp(w.GetOp()), ins, opts...)
}

func (d *decoder) cross(w *pb.CrossRel) (relation.Relation, error) {
	left, err := d.input(w.GetLeft())
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := d.input(w.GetRight())
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	return relation.NewCross(left, right, opts...)
}

func (d *decoder) expand(w *pb.ExpandRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	fields := make([]relation.ExpandField, len(w.GetFields()))
	for i, f := range w.GetFields() {
		switch t := f.GetFieldType().(type) {
		case *pb.ExpandRel_ExpandField_ConsistentField:
			x, err := d.expr(t.ConsistentField, in.DerivedRecordType())
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			fields[i] = relation.ConsistentField{Expr: x}
		case *pb.ExpandRel_ExpandField_SwitchingField:
			dups, err := d.exprs(t.SwitchingField.GetDuplicates(), in.DerivedRecordType())
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			fields[i] = relation.SwitchingField{Duplicates: dups}
		default:
			return nil, errdefs.Integrityf("expand field %d sets no case", i)
		}
	}
	return relation.NewExpand(in, fields, opts...)
}

func (d *decoder) extensionLeaf(w *pb.ExtensionLeafRel) (relation.Relation, error) {
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	if w.GetDetail() == nil {
		return nil, errdefs.Integrityf("missing detail")
	}
	detail, err := recovery.RecoverToValue(d.logger, "DecodeLeafDetail", func() (relation.LeafDetail, error) {
		return d.ext.DecodeLeafDetail(w.GetDetail())
	})
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	return relation.NewExtensionLeaf(detail, opts...)
}

func (d *decoder) extensionSingle(w *pb.ExtensionSingleRel) (relation.Relation, error) {
	in, err := d.input(w.GetInput())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	if w.GetDetail() == nil {
		return nil, errdefs.Integrityf("missing detail")
	}
	detail, err := recovery.RecoverToValue(d.logger, "DecodeSingleDetail", func() (relation.SingleDetail, error) {
		return d.ext.DecodeSingleDetail(w.GetDetail(), in)
	})
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	return relation.NewExtensionSingle(in, detail, opts...)
}

func (d *decoder) extensionMulti(w *pb.ExtensionMultiRel) (relation.Relation, error) {
	ins, err := d.inputs(w.GetInputs())
	if err != nil {
		return nil, err
	}
	opts, err := d.options(w.GetCommon())
	if err != nil {
		return nil, err
	}
	if w.GetDetail() == nil {
		return nil, errdefs.Integrityf("missing detail")
	}
	detail, err := recovery.RecoverToValue(d.logger, "DecodeMultiDetail", func() (relation.MultiDetail, error) {
		return d.ext.DecodeMultiDetail(w.GetDetail(), ins)
	})
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	return relation.NewExtensionMulti(ins, detail, opts...)
}
