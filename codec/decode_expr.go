package codec

import (
	"fmt"
	"math"
	"slices"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/relation"
	"github.com/hugr-lab/substrait-go/types"
)

func (d *decoder) exprs(ws []*pb.Expression, input []types.Type) ([]expr.Expression, error) {
	out := make([]expr.Expression, len(ws))
	for i, w := range ws {
		x, err := d.expr(w, input)
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

// expr decodes w against the record type of the relation it is evaluated on.
func (d *decoder) expr(w *pb.Expression, input []types.Type) (expr.Expression, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing expression")
	}

	var (
		x   expr.Expression
		err error
	)
	switch t := w.RexType.(type) {
	case *pb.Expression_Literal_:
		x, err = decodeLiteral(t.Literal)
	case *pb.Expression_Selection:
		x, err = d.fieldRef(t.Selection, input)
	case *pb.Expression_ScalarFunction_:
		x, err = d.scalarFunction(t.ScalarFunction, input)
	case *pb.Expression_WindowFunction_:
		x, err = d.windowFunction(t.WindowFunction, input)
	case *pb.Expression_IfThen_:
		x, err = d.ifThen(t.IfThen, input)
	case *pb.Expression_SwitchExpression_:
		x, err = d.switchExpr(t.SwitchExpression, input)
	case *pb.Expression_SingularOrList_:
		x, err = d.singularOrList(t.SingularOrList, input)
	case *pb.Expression_MultiOrList_:
		x, err = d.multiOrList(t.MultiOrList, input)
	case *pb.Expression_Cast_:
		x, err = d.cast(t.Cast, input)
	case *pb.Expression_Subquery_:
		x, err = d.subquery(t.Subquery, input)
	case nil:
		return nil, errdefs.Integrityf("expression sets no case")
	default:
		return nil, errdefs.Unsupportedf("expression %T", t)
	}
	if err != nil {
		return nil, asIntegrity(err)
	}
	return x, nil
}

func (d *decoder) fieldRef(w *pb.Expression_FieldReference, input []types.Type) (expr.Expression, error) {
	direct, ok := w.GetReferenceType().(*pb.Expression_FieldReference_DirectReference)
	if !ok {
		if w.GetReferenceType() == nil {
			return nil, errdefs.Integrityf("field reference sets no case")
		}
		return nil, errdefs.Unsupportedf("masked field reference")
	}

	var segs []expr.ReferenceSegment
	for seg := direct.DirectReference; seg != nil; {
		switch s := seg.ReferenceType.(type) {
		case *pb.Expression_ReferenceSegment_StructField_:
			segs = append(segs, expr.StructFieldSegment{Field: s.StructField.GetField()})
			seg = s.StructField.GetChild()
		case *pb.Expression_ReferenceSegment_ListElement_:
			segs = append(segs, expr.ListElementSegment{Offset: s.ListElement.GetOffset()})
			seg = s.ListElement.GetChild()
		case *pb.Expression_ReferenceSegment_MapKey_:
			key, err := decodeLiteral(s.MapKey.GetMapKey())
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			segs = append(segs, expr.MapKeySegment{Key: key})
			seg = s.MapKey.GetChild()
		default:
			return nil, errdefs.Integrityf("reference segment sets no case")
		}
	}

	switch r := w.RootType.(type) {
	case *pb.Expression_FieldReference_RootReference_:
		return expr.NewRootReference(input, segs...)
	case *pb.Expression_FieldReference_OuterReference_:
		steps := r.OuterReference.GetStepsOut()
		if steps == 0 || int(steps) > len(d.outer) {
			return nil, errdefs.Integrityf("outer reference %d steps out from depth %d", steps, len(d.outer))
		}
		return expr.NewOuterReference(steps, d.outer[len(d.outer)-int(steps)], segs...)
	case *pb.Expression_FieldReference_Expression:
		root, err := d.expr(r.Expression, input)
		if err != nil {
			return nil, fmt.Errorf("reference root: %w", err)
		}
		return expr.NewExpressionReference(root, segs...)
	}
	return nil, errdefs.Integrityf("reference root sets no case")
}

func (d *decoder) args(ws []*pb.FunctionArgument, input []types.Type) ([]expr.FunctionArg, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]expr.FunctionArg, len(ws))
	for i, w := range ws {
		switch a := w.GetArgType().(type) {
		case *pb.FunctionArgument_Enum:
			out[i] = expr.EnumArg{Value: a.Enum}
		case *pb.FunctionArgument_Type:
			t, err := DecodeType(a.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = expr.TypeArg{Type: t}
		case *pb.FunctionArgument_Value:
			x, err := d.expr(a.Value, input)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = x
		default:
			return nil, errdefs.Integrityf("argument %d sets no case", i)
		}
	}
	return out, nil
}

func decodeOptions(ws []*pb.FunctionOption) []expr.FunctionOption {
	if len(ws) == 0 {
		return nil
	}
	out := make([]expr.FunctionOption, len(ws))
	for i, w := range ws {
		out[i] = expr.FunctionOption{Name: w.GetName(), Preference: slices.Clone(w.GetPreference())}
	}
	return out
}

func (d *decoder) sorts(ws []*pb.SortField, input []types.Type) ([]expr.SortField, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]expr.SortField, len(ws))
	for i, w := range ws {
		kind, ok := w.GetSortKind().(*pb.SortField_Direction)
		if !ok {
			if w.GetSortKind() == nil {
				return nil, errdefs.Integrityf("sort %d sets no sort kind", i)
			}
			return nil, errdefs.Unsupportedf("sort %d: comparison function reference", i)
		}
		dir := expr.SortDirection(kind.Direction)
		if dir < expr.SortUnspecified || dir > expr.SortClustered {
			return nil, errdefs.Integrityf("sort %d: invalid direction %d", i, kind.Direction)
		}
		x, err := d.expr(w.GetExpr(), input)
		if err != nil {
			return nil, fmt.Errorf("sort %d: %w", i, err)
		}
		out[i] = expr.SortField{Expr: x, Direction: dir}
	}
	return out, nil
}

// checkOutput compares the encoded output type of a call with the one derived on decode.
func checkOutput(name string, derived types.Type, encoded *pb.Type) error {
	want, err := DecodeType(encoded)
	if err != nil {
		return fmt.Errorf("%s: output type: %w", name, err)
	}
	if !want.Equal(derived) {
		return errdefs.Integrityf("%s: encoded output type %s, derived %s", name, want, derived)
	}
	return nil
}

func (d *decoder) scalarFunction(w *pb.Expression_ScalarFunction, input []types.Type) (expr.Expression, error) {
	v, err := d.dir.Function(w.GetFunctionReference())
	if err != nil {
		return nil, err
	}
	args, err := d.args(w.GetArguments(), input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	f, err := expr.NewScalarFunction(v, args, decodeOptions(w.GetOptions())...)
	if err != nil {
		return nil, err
	}
	if err := checkOutput(v.CompoundName(), f.Type(), w.GetOutputType()); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) aggregateFunction(w *pb.AggregateFunction, input []types.Type) (*expr.AggregateFunction, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing aggregate function")
	}
	v, err := d.dir.Function(w.FunctionReference)
	if err != nil {
		return nil, err
	}
	args, err := d.args(w.Arguments, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	sorts, err := d.sorts(w.Sorts, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	f, err := expr.NewAggregateFunction(v, args, expr.AggregationPhase(w.Phase),
		expr.AggregationInvocation(w.Invocation), sorts, decodeOptions(w.Options)...)
	if err != nil {
		return nil, asIntegrity(err)
	}
	if err := checkOutput(v.CompoundName(), f.Type(), w.OutputType); err != nil {
		return nil, err
	}
	return f, nil
}

func (d *decoder) windowFunction(w *pb.Expression_WindowFunction, input []types.Type) (expr.Expression, error) {
	v, err := d.dir.Function(w.GetFunctionReference())
	if err != nil {
		return nil, err
	}
	args, err := d.args(w.GetArguments(), input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	spec := expr.WindowSpec{
		Phase:      expr.AggregationPhase(w.GetPhase()),
		Invocation: expr.AggregationInvocation(w.GetInvocation()),
		BoundsType: expr.BoundsType(w.GetBoundsType()),
	}
	if spec.Sorts, err = d.sorts(w.GetSorts(), input); err != nil {
		return nil, fmt.Errorf("%s: %w", v.CompoundName(), err)
	}
	if len(w.GetPartitions()) > 0 {
		if spec.Partitions, err = d.exprs(w.GetPartitions(), input); err != nil {
			return nil, fmt.Errorf("%s: partition: %w", v.CompoundName(), err)
		}
	}
	if spec.Lower, err = decodeBound(w.GetLowerBound(), expr.Preceding); err != nil {
		return nil, fmt.Errorf("%s: lower bound: %w", v.CompoundName(), err)
	}
	if spec.Upper, err = decodeBound(w.GetUpperBound(), expr.Following); err != nil {
		return nil, fmt.Errorf("%s: upper bound: %w", v.CompoundName(), err)
	}
	f, err := expr.NewWindowFunction(v, args, spec, decodeOptions(w.GetOptions())...)
	if err != nil {
		return nil, err
	}
	if err := checkOutput(v.CompoundName(), f.Type(), w.GetOutputType()); err != nil {
		return nil, err
	}
	return f, nil
}

// decodeBound reads one frame end. An unbounded end points away from the
// current row: preceding for the lower bound, following for the upper one.
func decodeBound(w *pb.Expression_WindowFunction_Bound, unbounded expr.BoundDirection) (expr.WindowBound, error) {
	switch k := w.GetKind().(type) {
	case *pb.Expression_WindowFunction_Bound_CurrentRow_:
		return expr.CurrentRow(), nil
	case *pb.Expression_WindowFunction_Bound_Unbounded_:
		return expr.WindowBound{Kind: expr.BoundUnbounded, Direction: unbounded}, nil
	case *pb.Expression_WindowFunction_Bound_Preceding_:
		off := k.Preceding.GetOffset()
		if off < 0 {
			return expr.WindowBound{}, errdefs.Integrityf("negative bound offset %d", off)
		}
		return expr.PrecedingBound(off), nil
	case *pb.Expression_WindowFunction_Bound_Following_:
		off := k.Following.GetOffset()
		if off < 0 {
			return expr.WindowBound{}, errdefs.Integrityf("negative bound offset %d", off)
		}
		return expr.FollowingBound(off), nil
	}
	return expr.WindowBound{}, errdefs.Integrityf("bound sets no case")
}

func (d *decoder) ifThen(w *pb.Expression_IfThen, input []types.Type) (expr.Expression, error) {
	clauses := make([]expr.IfClause, len(w.GetIfs()))
	for i, c := range w.GetIfs() {
		cond, err := d.expr(c.GetIf(), input)
		if err != nil {
			return nil, fmt.Errorf("if %d: %w", i, err)
		}
		then, err := d.expr(c.GetThen(), input)
		if err != nil {
			return nil, fmt.Errorf("then %d: %w", i, err)
		}
		clauses[i] = expr.IfClause{If: cond, Then: then}
	}
	els, err := d.expr(w.GetElse(), input)
	if err != nil {
		return nil, fmt.Errorf("else: %w", err)
	}
	return expr.NewIfThen(clauses, els)
}

func (d *decoder) switchExpr(w *pb.Expression_SwitchExpression, input []types.Type) (expr.Expression, error) {
	match, err := d.expr(w.GetMatch(), input)
	if err != nil {
		return nil, fmt.Errorf("switch match: %w", err)
	}
	clauses := make([]expr.SwitchClause, len(w.GetIfs()))
	for i, c := range w.GetIfs() {
		v, err := decodeLiteral(c.GetIf())
		if err != nil {
			return nil, fmt.Errorf("switch case %d: %w", i, err)
		}
		then, err := d.expr(c.GetThen(), input)
		if err != nil {
			return nil, fmt.Errorf("switch case %d: %w", i, err)
		}
		clauses[i] = expr.SwitchClause{Value: v, Then: then}
	}
	def, err := d.expr(w.GetElse(), input)
	if err != nil {
		return nil, fmt.Errorf("switch default: %w", err)
	}
	return expr.NewSwitch(match, clauses, def)
}

func (d *decoder) singularOrList(w *pb.Expression_SingularOrList, input []types.Type) (expr.Expression, error) {
	v, err := d.expr(w.GetValue(), input)
	if err != nil {
		return nil, err
	}
	opts, err := d.exprs(w.GetOptions(), input)
	if err != nil {
		return nil, err
	}
	return expr.NewSingularOrList(v, opts)
}

func (d *decoder) multiOrList(w *pb.Expression_MultiOrList, input []types.Type) (expr.Expression, error) {
	vals, err := d.exprs(w.GetValue(), input)
	if err != nil {
		return nil, err
	}
	opts := make([][]expr.Expression, len(w.GetOptions()))
	for i, rec := range w.GetOptions() {
		if opts[i], err = d.exprs(rec.GetFields(), input); err != nil {
			return nil, fmt.Errorf("option %d: %w", i, err)
		}
	}
	return expr.NewMultiOrList(vals, opts)
}

func (d *decoder) cast(w *pb.Expression_Cast, input []types.Type) (expr.Expression, error) {
	t, err := DecodeType(w.GetType())
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	in, err := d.expr(w.GetInput(), input)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	return expr.NewCast(in, t, expr.FailureBehavior(w.GetFailureBehavior()))
}

// nested decodes the relation of a subquery with input pushed as the
// record addressed by outer references one step out.
func (d *decoder) nested(w *pb.Rel, input []types.Type) (relation.Relation, error) {
	if w == nil {
		return nil, errdefs.Integrityf("subquery without relation")
	}
	d.outer = append(d.outer, input)
	defer func() { d.outer = d.outer[:len(d.outer)-1] }()
	return d.rel(w)
}

func (d *decoder) subquery(w *pb.Expression_Subquery, input []types.Type) (expr.Expression, error) {
	switch s := w.GetSubqueryType().(type) {
	case *pb.Expression_Subquery_Scalar_:
		rel, err := d.nested(s.Scalar.GetInput(), input)
		if err != nil {
			return nil, fmt.Errorf("scalar subquery: %w", err)
		}
		return expr.NewScalarSubquery(rel)
	case *pb.Expression_Subquery_InPredicate_:
		needles, err := d.exprs(s.InPredicate.GetNeedles(), input)
		if err != nil {
			return nil, fmt.Errorf("in predicate: %w", err)
		}
		rel, err := d.nested(s.InPredicate.GetHaystack(), input)
		if err != nil {
			return nil, fmt.Errorf("in predicate: %w", err)
		}
		return expr.NewInPredicate(needles, rel)
	case *pb.Expression_Subquery_SetPredicate_:
		rel, err := d.nested(s.SetPredicate.GetTuples(), input)
		if err != nil {
			return nil, fmt.Errorf("set predicate: %w", err)
		}
		return expr.NewSetPredicate(expr.SetPredicateOp(s.SetPredicate.GetPredicateOp()), rel)
	case nil:
		return nil, errdefs.Integrityf("subquery sets no case")
	}
	return nil, errdefs.Unsupportedf("subquery %T", w.GetSubqueryType())
}

func decodeLiterals(ws []*pb.Expression_Literal) ([]expr.Literal, error) {
	out := make([]expr.Literal, len(ws))
	for i, w := range ws {
		l, err := decodeLiteral(w)
		if err != nil {
			return nil, fmt.Errorf("literal %d: %w", i, err)
		}
		out[i] = l
	}
	return out, nil
}

// subsecondMicros scales the sub-second part of a day-second interval to
// microseconds. Finer precisions must not lose digits.
func subsecondMicros(w *pb.Expression_Literal_IntervalDayToSecond) (int32, error) {
	var micros int64
	switch p := w.GetPrecisionMode().(type) {
	case *pb.Expression_Literal_IntervalDayToSecond_Microseconds:
		micros = int64(p.Microseconds)
	case *pb.Expression_Literal_IntervalDayToSecond_Precision:
		prec := p.Precision
		if prec < 0 || prec > 9 {
			return 0, errdefs.Integrityf("interval precision %d out of range", prec)
		}
		micros = w.GetSubseconds()
		for ; prec < microsecondPrecision; prec++ {
			micros *= 10
		}
		for ; prec > microsecondPrecision; prec-- {
			if micros%10 != 0 {
				return 0, errdefs.Unsupportedf("interval subseconds %d at precision %d", w.GetSubseconds(), p.Precision)
			}
			micros /= 10
		}
	case nil:
		if w.GetSubseconds() != 0 {
			return 0, errdefs.Integrityf("interval subseconds without precision")
		}
	}
	if micros < math.MinInt32 || micros > math.MaxInt32 {
		return 0, errdefs.Integrityf("interval microseconds %d out of range", micros)
	}
	return int32(micros), nil
}

func decodeLiteral(w *pb.Expression_Literal) (expr.Literal, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing literal")
	}
	n := w.Nullable

	switch v := w.LiteralType.(type) {
	case *pb.Expression_Literal_Boolean:
		return expr.NewBool(v.Boolean, n), nil
	case *pb.Expression_Literal_I8:
		if v.I8 < math.MinInt8 || v.I8 > math.MaxInt8 {
			return nil, errdefs.Integrityf("i8 literal %d out of range", v.I8)
		}
		return expr.NewI8(int8(v.I8), n), nil
	case *pb.Expression_Literal_I16:
		if v.I16 < math.MinInt16 || v.I16 > math.MaxInt16 {
			return nil, errdefs.Integrityf("i16 literal %d out of range", v.I16)
		}
		return expr.NewI16(int16(v.I16), n), nil
	case *pb.Expression_Literal_I32:
		return expr.NewI32(v.I32, n), nil
	case *pb.Expression_Literal_I64:
		return expr.NewI64(v.I64, n), nil
	case *pb.Expression_Literal_Fp32:
		return expr.NewFP32(v.Fp32, n), nil
	case *pb.Expression_Literal_Fp64:
		return expr.NewFP64(v.Fp64, n), nil
	case *pb.Expression_Literal_String_:
		return expr.NewString(v.String_, n), nil
	case *pb.Expression_Literal_Binary:
		return expr.NewBinary(slices.Clone(v.Binary), n), nil
	case *pb.Expression_Literal_Timestamp:
		return expr.NewTimestamp(v.Timestamp, n), nil
	case *pb.Expression_Literal_TimestampTz:
		return expr.NewTimestampTZ(v.TimestampTz, n), nil
	case *pb.Expression_Literal_Date:
		return expr.NewDate(v.Date, n), nil
	case *pb.Expression_Literal_Time:
		return expr.NewTime(v.Time, n), nil
	case *pb.Expression_Literal_IntervalYearToMonth_:
		iv := v.IntervalYearToMonth
		return expr.NewIntervalYear(iv.GetYears(), iv.GetMonths(), n), nil
	case *pb.Expression_Literal_IntervalDayToSecond_:
		iv := v.IntervalDayToSecond
		micros, err := subsecondMicros(iv)
		if err != nil {
			return nil, err
		}
		return expr.NewIntervalDay(iv.GetDays(), iv.GetSeconds(), micros, n), nil
	case *pb.Expression_Literal_Uuid:
		return literal(expr.NewUUIDFromBytes(v.Uuid, n))
	case *pb.Expression_Literal_FixedChar:
		return literal(expr.NewFixedChar(v.FixedChar, n))
	case *pb.Expression_Literal_VarChar_:
		vc := v.VarChar
		if vc.GetLength() > math.MaxInt32 {
			return nil, errdefs.Integrityf("varchar length %d out of range", vc.GetLength())
		}
		return literal(expr.NewVarChar(vc.GetValue(), int32(vc.GetLength()), n))
	case *pb.Expression_Literal_FixedBinary:
		return literal(expr.NewFixedBinary(slices.Clone(v.FixedBinary), n))
	case *pb.Expression_Literal_Decimal_:
		dec := v.Decimal
		return literal(expr.NewDecimalFromBytes(reverse16(dec.GetValue()), dec.GetPrecision(), dec.GetScale(), n))
	case *pb.Expression_Literal_Struct_:
		fields, err := decodeLiterals(v.Struct.GetFields())
		if err != nil {
			return nil, fmt.Errorf("struct: %w", err)
		}
		return expr.NewStruct(fields, n), nil
	case *pb.Expression_Literal_List_:
		vals, err := decodeLiterals(v.List.GetValues())
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		return literal(expr.NewList(vals, n))
	case *pb.Expression_Literal_Map_:
		kvs := v.Map.GetKeyValues()
		entries := make([]expr.MapEntry, len(kvs))
		for i, kv := range kvs {
			k, err := decodeLiteral(kv.GetKey())
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			val, err := decodeLiteral(kv.GetValue())
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			entries[i] = expr.MapEntry{Key: k, Value: val}
		}
		return literal(expr.NewMap(entries, n))
	case *pb.Expression_Literal_Null:
		t, err := DecodeType(v.Null)
		if err != nil {
			return nil, fmt.Errorf("null: %w", err)
		}
		return expr.NewNull(t), nil
	case *pb.Expression_Literal_EmptyList:
		lt, err := decodeList(v.EmptyList)
		if err != nil {
			return nil, fmt.Errorf("empty list: %w", err)
		}
		return expr.NewEmptyList(lt), nil
	case *pb.Expression_Literal_EmptyMap:
		mt, err := decodeMap(v.EmptyMap)
		if err != nil {
			return nil, fmt.Errorf("empty map: %w", err)
		}
		return expr.NewEmptyMap(mt), nil
	case nil:
		return nil, errdefs.Integrityf("literal sets no case")
	}
	return nil, errdefs.Unsupportedf("literal %T", w.LiteralType)
}

// literal adapts a literal constructor result, reclassifying its failure.
func literal[L expr.Literal](l L, err error) (expr.Literal, error) {
	if err != nil {
		return nil, asIntegrity(err)
	}
	return l, nil
}
