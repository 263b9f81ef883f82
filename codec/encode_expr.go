package codec

import (
	"fmt"
	"slices"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// microsecondPrecision is the sub-second precision of day-second intervals.
const microsecondPrecision = 6

func literalExpr(l *pb.Expression_Literal) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Literal_{Literal: l}}
}

func (e *encoder) exprs(xs []expr.Expression) ([]*pb.Expression, error) {
	out := make([]*pb.Expression, len(xs))
	for i, x := range xs {
		w, err := e.expr(x)
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

func (e *encoder) expr(x expr.Expression) (*pb.Expression, error) {
	switch x := x.(type) {
	case nil:
		return nil, errdefs.Unsupportedf("nil expression")

	case expr.Literal:
		l, err := e.literal(x)
		if err != nil {
			return nil, err
		}
		return literalExpr(l), nil

	case *expr.FieldReference:
		ref, err := e.fieldRef(x)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_Selection{Selection: ref}}, nil

	case *expr.ScalarFunction:
		args, err := e.args(x.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x.Variant.CompoundName(), err)
		}
		out, err := EncodeType(x.Type())
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_ScalarFunction_{ScalarFunction: &pb.Expression_ScalarFunction{
			FunctionReference: e.anchors.FunctionAnchor(x.Variant),
			Arguments:         args,
			Options:           encodeOptions(x.Options),
			OutputType:        out,
		}}}, nil

	case *expr.WindowFunction:
		return e.windowFunction(x)

	case *expr.IfThen:
		w := &pb.Expression_IfThen{Ifs: make([]*pb.Expression_IfThen_IfClause, len(x.Clauses))}
		for i, c := range x.Clauses {
			cond, err := e.expr(c.If)
			if err != nil {
				return nil, fmt.Errorf("if %d: %w", i, err)
			}
			then, err := e.expr(c.Then)
			if err != nil {
				return nil, fmt.Errorf("then %d: %w", i, err)
			}
			w.Ifs[i] = &pb.Expression_IfThen_IfClause{If: cond, Then: then}
		}
		els, err := e.expr(x.Else)
		if err != nil {
			return nil, fmt.Errorf("else: %w", err)
		}
		w.Else = els
		return &pb.Expression{RexType: &pb.Expression_IfThen_{IfThen: w}}, nil

	case *expr.Switch:
		match, err := e.expr(x.Match)
		if err != nil {
			return nil, fmt.Errorf("switch match: %w", err)
		}
		w := &pb.Expression_SwitchExpression{
			Match: match,
			Ifs:   make([]*pb.Expression_SwitchExpression_IfValue, len(x.Clauses)),
		}
		for i, c := range x.Clauses {
			v, err := e.literal(c.Value)
			if err != nil {
				return nil, fmt.Errorf("switch case %d: %w", i, err)
			}
			then, err := e.expr(c.Then)
			if err != nil {
				return nil, fmt.Errorf("switch case %d: %w", i, err)
			}
			w.Ifs[i] = &pb.Expression_SwitchExpression_IfValue{If: v, Then: then}
		}
		if w.Else, err = e.expr(x.Default); err != nil {
			return nil, fmt.Errorf("switch default: %w", err)
		}
		return &pb.Expression{RexType: &pb.Expression_SwitchExpression_{SwitchExpression: w}}, nil

	case *expr.SingularOrList:
		v, err := e.expr(x.Value)
		if err != nil {
			return nil, err
		}
		opts, err := e.exprs(x.Options)
		if err != nil {
			return nil, err
		}
		return &pb.Expression{RexType: &pb.Expression_SingularOrList_{SingularOrList: &pb.Expression_SingularOrList{
			Value:   v,
			Options: opts,
		}}}, nil

	case *expr.MultiOrList:
		vals, err := e.exprs(x.Values)
		if err != nil {
			return nil, err
		}
		recs := make([]*pb.Expression_MultiOrList_Record, len(x.Options))
		for i, rec := range x.Options {
			fields, err := e.exprs(rec)
			if err != nil {
				return nil, fmt.Errorf("option %d: %w", i, err)
			}
			recs[i] = &pb.Expression_MultiOrList_Record{Fields: fields}
		}
		return &pb.Expression{RexType: &pb.Expression_MultiOrList_{MultiOrList: &pb.Expression_MultiOrList{
			Value:   vals,
			Options: recs,
		}}}, nil

	case *expr.Cast:
		t, err := EncodeType(x.Target)
		if err != nil {
			return nil, err
		}
		in, err := e.expr(x.Input)
		if err != nil {
			return nil, fmt.Errorf("cast: %w", err)
		}
		return &pb.Expression{RexType: &pb.Expression_Cast_{Cast: &pb.Expression_Cast{
			Type:            t,
			Input:           in,
			FailureBehavior: pb.Expression_Cast_FailureBehavior(x.FailureBehavior),
		}}}, nil

	case *expr.ScalarSubquery:
		rel, err := e.subquery(x.Input)
		if err != nil {
			return nil, fmt.Errorf("scalar subquery: %w", err)
		}
		return subquery(&pb.Expression_Subquery{SubqueryType: &pb.Expression_Subquery_Scalar_{
			Scalar: &pb.Expression_Subquery_Scalar{Input: rel},
		}}), nil

	case *expr.InPredicate:
		needles, err := e.exprs(x.Needles)
		if err != nil {
			return nil, fmt.Errorf("in predicate: %w", err)
		}
		rel, err := e.subquery(x.Haystack)
		if err != nil {
			return nil, fmt.Errorf("in predicate: %w", err)
		}
		return subquery(&pb.Expression_Subquery{SubqueryType: &pb.Expression_Subquery_InPredicate_{
			InPredicate: &pb.Expression_Subquery_InPredicate{Needles: needles, Haystack: rel},
		}}), nil

	case *expr.SetPredicate:
		rel, err := e.subquery(x.Tuples)
		if err != nil {
			return nil, fmt.Errorf("set predicate: %w", err)
		}
		return subquery(&pb.Expression_Subquery{SubqueryType: &pb.Expression_Subquery_SetPredicate_{
			SetPredicate: &pb.Expression_Subquery_SetPredicate{
				PredicateOp: pb.Expression_Subquery_SetPredicate_PredicateOp(x.Op),
				Tuples:      rel,
			},
		}}), nil
	}
	return nil, errdefs.Unsupportedf("expression %T", x)
}

func subquery(s *pb.Expression_Subquery) *pb.Expression {
	return &pb.Expression{RexType: &pb.Expression_Subquery_{Subquery: s}}
}

func (e *encoder) fieldRef(x *expr.FieldReference) (*pb.Expression_FieldReference, error) {
	if len(x.Segments) == 0 {
		return nil, errdefs.Unsupportedf("field reference without segments")
	}
	// Build the chain from the innermost segment outwards.
	var child *pb.Expression_ReferenceSegment
	for i := len(x.Segments) - 1; i >= 0; i-- {
		seg := &pb.Expression_ReferenceSegment{}
		switch s := x.Segments[i].(type) {
		case expr.StructFieldSegment:
			seg.ReferenceType = &pb.Expression_ReferenceSegment_StructField_{
				StructField: &pb.Expression_ReferenceSegment_StructField{Field: s.Field, Child: child},
			}
		case expr.ListElementSegment:
			seg.ReferenceType = &pb.Expression_ReferenceSegment_ListElement_{
				ListElement: &pb.Expression_ReferenceSegment_ListElement{Offset: s.Offset, Child: child},
			}
		case expr.MapKeySegment:
			key, err := e.literal(s.Key)
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			seg.ReferenceType = &pb.Expression_ReferenceSegment_MapKey_{
				MapKey: &pb.Expression_ReferenceSegment_MapKey{MapKey: key, Child: child},
			}
		default:
			return nil, errdefs.Unsupportedf("reference segment %T", s)
		}
		child = seg
	}

	ref := &pb.Expression_FieldReference{
		ReferenceType: &pb.Expression_FieldReference_DirectReference{DirectReference: child},
	}
	switch x.Root {
	case expr.RootReference:
		ref.RootType = &pb.Expression_FieldReference_RootReference_{
			RootReference: &pb.Expression_FieldReference_RootReference{},
		}
	case expr.OuterReference:
		ref.RootType = &pb.Expression_FieldReference_OuterReference_{
			OuterReference: &pb.Expression_FieldReference_OuterReference{StepsOut: x.OuterSteps},
		}
	case expr.ExpressionRoot:
		root, err := e.expr(x.RootExpr)
		if err != nil {
			return nil, fmt.Errorf("reference root: %w", err)
		}
		ref.RootType = &pb.Expression_FieldReference_Expression{Expression: root}
	default:
		return nil, errdefs.Unsupportedf("reference root kind %d", x.Root)
	}
	return ref, nil
}

func (e *encoder) args(args []expr.FunctionArg) ([]*pb.FunctionArgument, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]*pb.FunctionArgument, len(args))
	for i, a := range args {
		switch a := a.(type) {
		case expr.EnumArg:
			out[i] = &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Enum{Enum: a.Value}}
		case expr.TypeArg:
			t, err := EncodeType(a.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Type{Type: t}}
		case expr.Expression:
			v, err := e.expr(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = &pb.FunctionArgument{ArgType: &pb.FunctionArgument_Value{Value: v}}
		default:
			return nil, errdefs.Unsupportedf("argument %d kind %T", i, a)
		}
	}
	return out, nil
}

func encodeOptions(opts []expr.FunctionOption) []*pb.FunctionOption {
	if len(opts) == 0 {
		return nil
	}
	out := make([]*pb.FunctionOption, len(opts))
	for i, o := range opts {
		out[i] = &pb.FunctionOption{Name: o.Name, Preference: slices.Clone(o.Preference)}
	}
	return out
}

func (e *encoder) sorts(sorts []expr.SortField) ([]*pb.SortField, error) {
	if len(sorts) == 0 {
		return nil, nil
	}
	out := make([]*pb.SortField, len(sorts))
	for i, s := range sorts {
		x, err := e.expr(s.Expr)
		if err != nil {
			return nil, fmt.Errorf("sort %d: %w", i, err)
		}
		out[i] = &pb.SortField{
			Expr:     x,
			SortKind: &pb.SortField_Direction{Direction: pb.SortField_SortDirection(s.Direction)},
		}
	}
	return out, nil
}

func (e *encoder) aggregateFunction(f *expr.AggregateFunction) (*pb.AggregateFunction, error) {
	if f == nil {
		return nil, errdefs.Unsupportedf("nil aggregate function")
	}
	args, err := e.args(f.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Variant.CompoundName(), err)
	}
	sorts, err := e.sorts(f.Sorts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Variant.CompoundName(), err)
	}
	out, err := EncodeType(f.Type())
	if err != nil {
		return nil, err
	}
	return &pb.AggregateFunction{
		FunctionReference: e.anchors.FunctionAnchor(f.Variant),
		Arguments:         args,
		Options:           encodeOptions(f.Options),
		OutputType:        out,
		Phase:             pb.AggregationPhase(f.Phase),
		Sorts:             sorts,
		Invocation:        pb.AggregateFunction_AggregationInvocation(f.Invocation),
	}, nil
}

func (e *encoder) windowFunction(f *expr.WindowFunction) (*pb.Expression, error) {
	name := f.Variant.CompoundName()
	args, err := e.args(f.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	sorts, err := e.sorts(f.Sorts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	parts, err := e.exprs(f.Partitions)
	if err != nil {
		return nil, fmt.Errorf("%s: partition: %w", name, err)
	}
	if len(parts) == 0 {
		parts = nil
	}
	out, err := EncodeType(f.Type())
	if err != nil {
		return nil, err
	}
	lower, err := encodeBound(f.Lower, expr.Preceding)
	if err != nil {
		return nil, fmt.Errorf("%s: lower bound: %w", name, err)
	}
	upper, err := encodeBound(f.Upper, expr.Following)
	if err != nil {
		return nil, fmt.Errorf("%s: upper bound: %w", name, err)
	}
	return &pb.Expression{RexType: &pb.Expression_WindowFunction_{WindowFunction: &pb.Expression_WindowFunction{
		FunctionReference: e.anchors.FunctionAnchor(f.Variant),
		Arguments:         args,
		Options:           encodeOptions(f.Options),
		OutputType:        out,
		Phase:             pb.AggregationPhase(f.Phase),
		Sorts:             sorts,
		Invocation:        pb.AggregateFunction_AggregationInvocation(f.Invocation),
		Partitions:        parts,
		BoundsType:        pb.Expression_WindowFunction_BoundsType(f.BoundsType),
		LowerBound:        lower,
		UpperBound:        upper,
	}}}, nil
}

// encodeBound writes one frame end. An unbounded end takes its direction from
// its position, so only UNBOUNDED PRECEDING fits the lower bound and only
// UNBOUNDED FOLLOWING fits the upper one.
func encodeBound(b expr.WindowBound, unbounded expr.BoundDirection) (*pb.Expression_WindowFunction_Bound, error) {
	switch b.Kind {
	case expr.BoundCurrentRow:
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_CurrentRow_{
			CurrentRow: &pb.Expression_WindowFunction_Bound_CurrentRow{},
		}}, nil
	case expr.BoundUnbounded:
		if b.Direction != unbounded {
			return nil, errdefs.Unsupportedf("%s in this position", b)
		}
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Unbounded_{
			Unbounded: &pb.Expression_WindowFunction_Bound_Unbounded{},
		}}, nil
	}
	if b.Direction == expr.Following {
		return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Following_{
			Following: &pb.Expression_WindowFunction_Bound_Following{Offset: b.Offset},
		}}, nil
	}
	return &pb.Expression_WindowFunction_Bound{Kind: &pb.Expression_WindowFunction_Bound_Preceding_{
		Preceding: &pb.Expression_WindowFunction_Bound_Preceding{Offset: b.Offset},
	}}, nil
}

func (e *encoder) literals(ls []expr.Literal) ([]*pb.Expression_Literal, error) {
	out := make([]*pb.Expression_Literal, len(ls))
	for i, l := range ls {
		w, err := e.literal(l)
		if err != nil {
			return nil, fmt.Errorf("literal %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// reverse16 flips between the big-endian IR form and the little-endian
// protobuf form of a decimal.
func reverse16(b []byte) []byte {
	out := slices.Clone(b)
	slices.Reverse(out)
	return out
}

func (e *encoder) literal(l expr.Literal) (*pb.Expression_Literal, error) {
	if l == nil {
		return nil, errdefs.Unsupportedf("nil literal")
	}
	w := &pb.Expression_Literal{Nullable: l.Type().Nullable()}
	id := l.Type().ID()

	switch l := l.(type) {
	case *expr.PrimitiveLiteral[bool]:
		w.LiteralType = &pb.Expression_Literal_Boolean{Boolean: l.Value}
	case *expr.PrimitiveLiteral[int8]:
		w.LiteralType = &pb.Expression_Literal_I8{I8: int32(l.Value)}
	case *expr.PrimitiveLiteral[int16]:
		w.LiteralType = &pb.Expression_Literal_I16{I16: int32(l.Value)}
	case *expr.PrimitiveLiteral[int32]:
		switch id {
		case types.TypeIDI32:
			w.LiteralType = &pb.Expression_Literal_I32{I32: l.Value}
		case types.TypeIDDate:
			w.LiteralType = &pb.Expression_Literal_Date{Date: l.Value}
		default:
			return nil, errdefs.Unsupportedf("int32 literal of type %s", id)
		}
	case *expr.PrimitiveLiteral[int64]:
		switch id {
		case types.TypeIDI64:
			w.LiteralType = &pb.Expression_Literal_I64{I64: l.Value}
		case types.TypeIDTime:
			w.LiteralType = &pb.Expression_Literal_Time{Time: l.Value}
		case types.TypeIDTimestamp:
			w.LiteralType = &pb.Expression_Literal_Timestamp{Timestamp: l.Value}
		case types.TypeIDTimestampTZ:
			w.LiteralType = &pb.Expression_Literal_TimestampTz{TimestampTz: l.Value}
		default:
			return nil, errdefs.Unsupportedf("int64 literal of type %s", id)
		}
	case *expr.PrimitiveLiteral[float32]:
		w.LiteralType = &pb.Expression_Literal_Fp32{Fp32: l.Value}
	case *expr.PrimitiveLiteral[float64]:
		w.LiteralType = &pb.Expression_Literal_Fp64{Fp64: l.Value}
	case *expr.PrimitiveLiteral[string]:
		w.LiteralType = &pb.Expression_Literal_String_{String_: l.Value}
	case *expr.BinaryLiteral:
		w.LiteralType = &pb.Expression_Literal_Binary{Binary: slices.Clone(l.Value)}
	case *expr.UUIDLiteral:
		w.LiteralType = &pb.Expression_Literal_Uuid{Uuid: slices.Clone(l.Value[:])}
	case *expr.IntervalYearLiteral:
		w.LiteralType = &pb.Expression_Literal_IntervalYearToMonth_{
			IntervalYearToMonth: &pb.Expression_Literal_IntervalYearToMonth{Years: l.Years, Months: l.Months},
		}
	case *expr.IntervalDayLiteral:
		w.LiteralType = &pb.Expression_Literal_IntervalDayToSecond_{
			IntervalDayToSecond: &pb.Expression_Literal_IntervalDayToSecond{
				Days:          l.Days,
				Seconds:       l.Seconds,
				PrecisionMode: &pb.Expression_Literal_IntervalDayToSecond_Precision{Precision: microsecondPrecision},
				Subseconds:    int64(l.Microseconds),
			},
		}
	case *expr.FixedCharLiteral:
		w.LiteralType = &pb.Expression_Literal_FixedChar{FixedChar: l.Value}
	case *expr.VarCharLiteral:
		w.LiteralType = &pb.Expression_Literal_VarChar_{VarChar: &pb.Expression_Literal_VarChar{
			Value:  l.Value,
			Length: uint32(l.Type().(types.VarCharType).Length),
		}}
	case *expr.FixedBinaryLiteral:
		w.LiteralType = &pb.Expression_Literal_FixedBinary{FixedBinary: slices.Clone(l.Value)}
	case *expr.DecimalLiteral:
		dt := l.Type().(types.DecimalType)
		w.LiteralType = &pb.Expression_Literal_Decimal_{Decimal: &pb.Expression_Literal_Decimal{
			Value:     reverse16(l.Bytes()),
			Precision: dt.Precision,
			Scale:     dt.Scale,
		}}
	case *expr.StructLiteral:
		fields, err := e.literals(l.Fields)
		if err != nil {
			return nil, fmt.Errorf("struct: %w", err)
		}
		w.LiteralType = &pb.Expression_Literal_Struct_{Struct: &pb.Expression_Literal_Struct{Fields: fields}}
	case *expr.ListLiteral:
		vals, err := e.literals(l.Values)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		w.LiteralType = &pb.Expression_Literal_List_{List: &pb.Expression_Literal_List{Values: vals}}
	case *expr.MapLiteral:
		kvs := make([]*pb.Expression_Literal_Map_KeyValue, len(l.Entries))
		for i, entry := range l.Entries {
			k, err := e.literal(entry.Key)
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			v, err := e.literal(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			kvs[i] = &pb.Expression_Literal_Map_KeyValue{Key: k, Value: v}
		}
		w.LiteralType = &pb.Expression_Literal_Map_{Map: &pb.Expression_Literal_Map{KeyValues: kvs}}
	case *expr.NullLiteral:
		t, err := EncodeType(l.Type())
		if err != nil {
			return nil, err
		}
		w.LiteralType = &pb.Expression_Literal_Null{Null: t}
	case *expr.EmptyListLiteral:
		lt, err := encodeList(l.Type().(types.ListType))
		if err != nil {
			return nil, err
		}
		w.LiteralType = &pb.Expression_Literal_EmptyList{EmptyList: lt}
	case *expr.EmptyMapLiteral:
		mt, err := encodeMap(l.Type().(types.MapType))
		if err != nil {
			return nil, err
		}
		w.LiteralType = &pb.Expression_Literal_EmptyMap{EmptyMap: mt}
	default:
		return nil, errdefs.Unsupportedf("literal %T", l)
	}
	return w, nil
}
