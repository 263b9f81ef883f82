package expr

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Format renders e in a compact diagnostic form, e.g. "add:i32_i32($0, 1)".
func Format(e Expression) string {
	switch e := e.(type) {
	case *NullLiteral:
		return "null:" + e.Type().String()
	case *PrimitiveLiteral[bool]:
		return strconv.FormatBool(e.Value)
	case *PrimitiveLiteral[int8]:
		return strconv.Itoa(int(e.Value)) + ":i8"
	case *PrimitiveLiteral[int16]:
		return strconv.Itoa(int(e.Value)) + ":i16"
	case *PrimitiveLiteral[int32]:
		return strconv.FormatInt(int64(e.Value), 10) + ":" + string(e.typ.TypeID)
	case *PrimitiveLiteral[int64]:
		return strconv.FormatInt(e.Value, 10) + ":" + string(e.typ.TypeID)
	case *PrimitiveLiteral[float32]:
		return strconv.FormatFloat(float64(e.Value), 'g', -1, 32) + ":fp32"
	case *PrimitiveLiteral[float64]:
		return strconv.FormatFloat(e.Value, 'g', -1, 64) + ":fp64"
	case *PrimitiveLiteral[string]:
		return strconv.Quote(e.Value)
	case *BinaryLiteral:
		return "x'" + hex.EncodeToString(e.Value) + "'"
	case *FixedBinaryLiteral:
		return "x'" + hex.EncodeToString(e.Value) + "'"
	case *UUIDLiteral:
		return "uuid'" + e.Value.String() + "'"
	case *FixedCharLiteral:
		return strconv.Quote(e.Value) + ":" + e.typ.String()
	case *VarCharLiteral:
		return strconv.Quote(e.Value) + ":" + e.typ.String()
	case *DecimalLiteral:
		return e.String() + ":" + e.typ.String()
	case *IntervalYearLiteral:
		return fmt.Sprintf("interval '%d-%d' year to month", e.Years, e.Months)
	case *IntervalDayLiteral:
		return fmt.Sprintf("interval '%d %d.%06d' day to second", e.Days, e.Seconds, e.Microseconds)
	case *StructLiteral:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = Format(f)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *ListLiteral:
		parts := make([]string, len(e.Values))
		for i, v := range e.Values {
			parts[i] = Format(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *EmptyListLiteral:
		return "[]:" + e.typ.String()
	case *MapLiteral:
		parts := make([]string, len(e.Entries))
		for i, en := range e.Entries {
			parts[i] = Format(en.Key) + ": " + Format(en.Value)
		}
		return "map{" + strings.Join(parts, ", ") + "}"
	case *EmptyMapLiteral:
		return "map{}:" + e.typ.String()
	case *FieldReference:
		return formatFieldRef(e)
	case *ScalarFunction:
		return e.Variant.CompoundName() + "(" + FormatArgs(e.Args) + ")"
	case *WindowFunction:
		var sb strings.Builder
		sb.WriteString(e.Variant.CompoundName() + "(" + FormatArgs(e.Args) + ") OVER (")
		if len(e.Partitions) > 0 {
			parts := make([]string, len(e.Partitions))
			for i, p := range e.Partitions {
				parts[i] = Format(p)
			}
			sb.WriteString("PARTITION BY " + strings.Join(parts, ", ") + " ")
		}
		if len(e.Sorts) > 0 {
			sb.WriteString("ORDER BY " + FormatSorts(e.Sorts) + " ")
		}
		sb.WriteString("BETWEEN " + e.Lower.String() + " AND " + e.Upper.String() + ")")
		return sb.String()
	case *Cast:
		return "cast(" + Format(e.Input) + " AS " + e.Target.String() + ")"
	case *IfThen:
		var sb strings.Builder
		sb.WriteString("if(")
		for _, c := range e.Clauses {
			sb.WriteString(Format(c.If) + " THEN " + Format(c.Then) + ", ")
		}
		sb.WriteString("ELSE " + Format(e.Else) + ")")
		return sb.String()
	case *Switch:
		var sb strings.Builder
		sb.WriteString("switch(" + Format(e.Match) + ", ")
		for _, c := range e.Clauses {
			sb.WriteString(Format(c.Value) + " THEN " + Format(c.Then) + ", ")
		}
		sb.WriteString("ELSE " + Format(e.Default) + ")")
		return sb.String()
	case *SingularOrList:
		parts := make([]string, len(e.Options))
		for i, o := range e.Options {
			parts[i] = Format(o)
		}
		return Format(e.Value) + " IN (" + strings.Join(parts, ", ") + ")"
	case *MultiOrList:
		vals := make([]string, len(e.Values))
		for i, v := range e.Values {
			vals[i] = Format(v)
		}
		recs := make([]string, len(e.Options))
		for i, rec := range e.Options {
			fs := make([]string, len(rec))
			for j, f := range rec {
				fs[j] = Format(f)
			}
			recs[i] = "(" + strings.Join(fs, ", ") + ")"
		}
		return "(" + strings.Join(vals, ", ") + ") IN (" + strings.Join(recs, ", ") + ")"
	case *SetPredicate:
		return e.Op.String() + "(subquery)"
	case *ScalarSubquery:
		return "(scalar subquery)"
	case *InPredicate:
		parts := make([]string, len(e.Needles))
		for i, n := range e.Needles {
			parts[i] = Format(n)
		}
		return "(" + strings.Join(parts, ", ") + ") IN (subquery)"
	}
	return fmt.Sprintf("%T", e)
}

// FormatArgs renders a function argument list.
func FormatArgs(args []FunctionArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch a := a.(type) {
		case TypeArg:
			parts[i] = "type " + a.Type.String()
		case EnumArg:
			parts[i] = a.Value
		case Expression:
			parts[i] = Format(a)
		}
	}
	return strings.Join(parts, ", ")
}

// FormatSorts renders a sort key list.
func FormatSorts(sorts []SortField) string {
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		parts[i] = Format(s.Expr) + " " + s.Direction.String()
	}
	return strings.Join(parts, ", ")
}

// FormatAggregate renders an aggregate measure.
func FormatAggregate(f *AggregateFunction) string {
	var sb strings.Builder
	sb.WriteString(f.Variant.CompoundName() + "(")
	if f.Invocation == InvocationDistinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(FormatArgs(f.Args))
	if len(f.Sorts) > 0 {
		sb.WriteString(" ORDER BY " + FormatSorts(f.Sorts))
	}
	sb.WriteString(")")
	if f.Phase != PhaseInitialToResult && f.Phase != PhaseUnspecified {
		sb.WriteString("[" + f.Phase.String() + "]")
	}
	return sb.String()
}

func formatFieldRef(f *FieldReference) string {
	var sb strings.Builder
	switch f.Root {
	case OuterReference:
		sb.WriteString("outer" + strconv.Itoa(int(f.OuterSteps)))
	case ExpressionRoot:
		sb.WriteString("(" + Format(f.RootExpr) + ")")
	}
	for i, seg := range f.Segments {
		switch seg := seg.(type) {
		case StructFieldSegment:
			if i == 0 && f.Root == RootReference {
				sb.WriteString("$" + strconv.Itoa(int(seg.Field)))
			} else {
				sb.WriteString("." + strconv.Itoa(int(seg.Field)))
			}
		case ListElementSegment:
			sb.WriteString("[" + strconv.Itoa(int(seg.Offset)) + "]")
		case MapKeySegment:
			sb.WriteString("[" + Format(seg.Key) + "]")
		}
	}
	return sb.String()
}
