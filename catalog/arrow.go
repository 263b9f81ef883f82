package catalog

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// Field metadata keys carrying types Arrow has no native equivalent for.
const (
	MetadataType   = "substrait.type"
	MetadataLength = "substrait.length"
)

// SchemaToArrow converts a named schema to an Arrow schema. Nested struct
// fields take their names from ns in depth-first order.
func SchemaToArrow(ns types.NamedStruct) (*arrow.Schema, error) {
	names := &nameCursor{names: ns.Names}
	fields := make([]arrow.Field, len(ns.Struct.Fields))
	for i, t := range ns.Struct.Fields {
		f, err := names.field(t)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	if names.pos != len(ns.Names) {
		return nil, errdefs.Constructionf("schema has %d names, types use %d", len(ns.Names), names.pos)
	}
	return arrow.NewSchema(fields, nil), nil
}

// SchemaFromArrow converts an Arrow schema to a named schema.
func SchemaFromArrow(s *arrow.Schema) (types.NamedStruct, error) {
	if s == nil {
		return types.NamedStruct{}, errdefs.Constructionf("nil arrow schema")
	}
	var names []string
	fields := make([]types.Type, s.NumFields())
	for i, f := range s.Fields() {
		t, err := fieldFromArrow(f, &names)
		if err != nil {
			return types.NamedStruct{}, err
		}
		fields[i] = t
	}
	return types.NewNamedStruct(names, types.R.Struct(fields...))
}

// TypeToArrow converts a single type. Struct fields get positional names
// ("f0", "f1", ...).
func TypeToArrow(t types.Type) (arrow.Field, error) {
	f, err := (&nameCursor{}).field(t)
	if err != nil {
		return arrow.Field{}, err
	}
	f.Name = ""
	return f, nil
}

// TypeFromArrow converts the type of a single Arrow field, including the
// field's nullability and type metadata.
func TypeFromArrow(f arrow.Field) (types.Type, error) {
	var names []string
	return fieldFromArrow(f, &names)
}

// nameCursor hands out depth-first field names. Without names it
// generates positional ones.
type nameCursor struct {
	names []string
	pos   int
}

func (c *nameCursor) next() string {
	defer func() { c.pos++ }()
	if c.names == nil {
		return "f" + strconv.Itoa(c.pos)
	}
	if c.pos < len(c.names) {
		return c.names[c.pos]
	}
	return ""
}

func (c *nameCursor) field(t types.Type) (arrow.Field, error) {
	name := c.next()
	dt, md, err := c.dataType(t)
	if err != nil {
		return arrow.Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	return arrow.Field{Name: name, Type: dt, Nullable: t.Nullable(), Metadata: md}, nil
}

func typeMetadata(id types.TypeID, length int32) arrow.Metadata {
	if length == 0 {
		return arrow.NewMetadata([]string{MetadataType}, []string{string(id)})
	}
	return arrow.NewMetadata(
		[]string{MetadataType, MetadataLength},
		[]string{string(id), strconv.Itoa(int(length))},
	)
}

func (c *nameCursor) dataType(t types.Type) (arrow.DataType, arrow.Metadata, error) {
	var none arrow.Metadata
	switch t := t.(type) {
	case types.PrimitiveType:
		switch t.ID() {
		case types.TypeIDBoolean:
			return arrow.FixedWidthTypes.Boolean, none, nil
		case types.TypeIDI8:
			return arrow.PrimitiveTypes.Int8, none, nil
		case types.TypeIDI16:
			return arrow.PrimitiveTypes.Int16, none, nil
		case types.TypeIDI32:
			return arrow.PrimitiveTypes.Int32, none, nil
		case types.TypeIDI64:
			return arrow.PrimitiveTypes.Int64, none, nil
		case types.TypeIDFP32:
			return arrow.PrimitiveTypes.Float32, none, nil
		case types.TypeIDFP64:
			return arrow.PrimitiveTypes.Float64, none, nil
		case types.TypeIDString:
			return arrow.BinaryTypes.String, none, nil
		case types.TypeIDBinary:
			return arrow.BinaryTypes.Binary, none, nil
		case types.TypeIDTimestamp:
			return &arrow.TimestampType{Unit: arrow.Microsecond}, none, nil
		case types.TypeIDTimestampTZ:
			return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, none, nil
		case types.TypeIDDate:
			return arrow.FixedWidthTypes.Date32, none, nil
		case types.TypeIDTime:
			return arrow.FixedWidthTypes.Time64us, none, nil
		case types.TypeIDIntervalYear:
			return arrow.FixedWidthTypes.MonthInterval, none, nil
		case types.TypeIDIntervalDay:
			return arrow.FixedWidthTypes.DayTimeInterval, none, nil
		case types.TypeIDUUID:
			return &arrow.FixedSizeBinaryType{ByteWidth: 16}, typeMetadata(types.TypeIDUUID, 0), nil
		}
	case types.FixedCharType:
		return arrow.BinaryTypes.String, typeMetadata(types.TypeIDFixedChar, t.Length), nil
	case types.VarCharType:
		return arrow.BinaryTypes.String, typeMetadata(types.TypeIDVarChar, t.Length), nil
	case types.FixedBinaryType:
		return &arrow.FixedSizeBinaryType{ByteWidth: int(t.Length)}, none, nil
	case types.DecimalType:
		return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}, none, nil
	case types.StructType:
		fields := make([]arrow.Field, len(t.Fields))
		for i, ft := range t.Fields {
			f, err := c.field(ft)
			if err != nil {
				return nil, none, err
			}
			fields[i] = f
		}
		return arrow.StructOf(fields...), none, nil
	case types.ListType:
		dt, md, err := c.dataType(t.Element)
		if err != nil {
			return nil, none, fmt.Errorf("list element: %w", err)
		}
		return arrow.ListOfField(arrow.Field{Name: "item", Type: dt, Nullable: t.Element.Nullable(), Metadata: md}), none, nil
	case types.MapType:
		if t.Key.Nullable() {
			return nil, none, errdefs.Unsupportedf("arrow map with nullable key %s", t.Key)
		}
		kt, kmd, err := c.dataType(t.Key)
		if err != nil {
			return nil, none, fmt.Errorf("map key: %w", err)
		}
		vt, vmd, err := c.dataType(t.Value)
		if err != nil {
			return nil, none, fmt.Errorf("map value: %w", err)
		}
		if kmd.Len() > 0 || vmd.Len() > 0 {
			return nil, none, errdefs.Unsupportedf("arrow map over %s", t)
		}
		mt := arrow.MapOf(kt, vt)
		mt.SetItemNullable(t.Value.Nullable())
		return mt, none, nil
	}
	return nil, none, errdefs.Unsupportedf("type %s has no arrow equivalent", t)
}

// fieldFromArrow converts f, appending f's name and any nested struct
// field names to names in depth-first order.
func fieldFromArrow(f arrow.Field, names *[]string) (types.Type, error) {
	*names = append(*names, f.Name)
	t, err := typeFromArrow(f.Type, f.Metadata, f.Nullable, names)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return t, nil
}

func metadataType(md arrow.Metadata) (types.TypeID, int32, error) {
	idx := md.FindKey(MetadataType)
	if idx < 0 {
		return "", 0, nil
	}
	id := types.TypeID(md.Values()[idx])
	var length int32
	if li := md.FindKey(MetadataLength); li >= 0 {
		n, err := strconv.ParseInt(md.Values()[li], 10, 32)
		if err != nil {
			return "", 0, errdefs.Constructionf("invalid %s metadata %q", MetadataLength, md.Values()[li])
		}
		length = int32(n)
	}
	return id, length, nil
}

func typeFromArrow(dt arrow.DataType, md arrow.Metadata, nullable bool, names *[]string) (types.Type, error) {
	c := types.Creator{Nullable: nullable}
	override, length, err := metadataType(md)
	if err != nil {
		return nil, err
	}

	switch dt := dt.(type) {
	case *arrow.BooleanType:
		return c.Boolean(), nil
	case *arrow.Int8Type:
		return c.I8(), nil
	case *arrow.Int16Type:
		return c.I16(), nil
	case *arrow.Int32Type:
		return c.I32(), nil
	case *arrow.Int64Type:
		return c.I64(), nil
	case *arrow.Float32Type:
		return c.FP32(), nil
	case *arrow.Float64Type:
		return c.FP64(), nil
	case *arrow.StringType, *arrow.LargeStringType:
		switch override {
		case types.TypeIDFixedChar:
			return c.FixedChar(length)
		case types.TypeIDVarChar:
			return c.VarChar(length)
		}
		return c.Str(), nil
	case *arrow.BinaryType, *arrow.LargeBinaryType:
		return c.Binary(), nil
	case *arrow.FixedSizeBinaryType:
		if override == types.TypeIDUUID && dt.ByteWidth == 16 {
			return c.UUID(), nil
		}
		return c.FixedBinary(int32(dt.ByteWidth))
	case *arrow.TimestampType:
		if dt.TimeZone != "" {
			return c.TimestampTZ(), nil
		}
		return c.Timestamp(), nil
	case *arrow.Date32Type:
		return c.Date(), nil
	case *arrow.Time64Type:
		return c.Time(), nil
	case *arrow.MonthIntervalType:
		return c.IntervalYear(), nil
	case *arrow.DayTimeIntervalType:
		return c.IntervalDay(), nil
	case *arrow.Decimal128Type:
		return c.Decimal(dt.Precision, dt.Scale)
	case *arrow.StructType:
		fields := make([]types.Type, dt.NumFields())
		for i, f := range dt.Fields() {
			ft, err := fieldFromArrow(f, names)
			if err != nil {
				return nil, err
			}
			fields[i] = ft
		}
		return c.Struct(fields...), nil
	case *arrow.MapType:
		kf, vf := dt.KeyField(), dt.ItemField()
		k, err := typeFromArrow(kf.Type, kf.Metadata, kf.Nullable, names)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		v, err := typeFromArrow(vf.Type, vf.Metadata, vf.Nullable, names)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return c.Map(k, v), nil
	case *arrow.ListType:
		ef := dt.ElemField()
		elem, err := typeFromArrow(ef.Type, ef.Metadata, ef.Nullable, names)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return c.List(elem), nil
	}
	return nil, errdefs.Unsupportedf("arrow type %s", dt)
}
