package codec

import (
	"fmt"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

func nullability(nullable bool) pb.Type_Nullability {
	if nullable {
		return pb.Type_NULLABILITY_NULLABLE
	}
	return pb.Type_NULLABILITY_REQUIRED
}

// typeEncoder writes types through the type visitor.
type typeEncoder struct{}

func (typeEncoder) VisitPrimitive(t types.PrimitiveType) (*pb.Type, error) {
	n := nullability(t.IsNullable)
	switch t.TypeID {
	case types.TypeIDBoolean:
		return &pb.Type{Kind: &pb.Type_Bool{Bool: &pb.Type_Boolean{Nullability: n}}}, nil
	case types.TypeIDI8:
		return &pb.Type{Kind: &pb.Type_I8_{I8: &pb.Type_I8{Nullability: n}}}, nil
	case types.TypeIDI16:
		return &pb.Type{Kind: &pb.Type_I16_{I16: &pb.Type_I16{Nullability: n}}}, nil
	case types.TypeIDI32:
		return &pb.Type{Kind: &pb.Type_I32_{I32: &pb.Type_I32{Nullability: n}}}, nil
	case types.TypeIDI64:
		return &pb.Type{Kind: &pb.Type_I64_{I64: &pb.Type_I64{Nullability: n}}}, nil
	case types.TypeIDFP32:
		return &pb.Type{Kind: &pb.Type_Fp32{Fp32: &pb.Type_FP32{Nullability: n}}}, nil
	case types.TypeIDFP64:
		return &pb.Type{Kind: &pb.Type_Fp64{Fp64: &pb.Type_FP64{Nullability: n}}}, nil
	case types.TypeIDString:
		return &pb.Type{Kind: &pb.Type_String_{String_: &pb.Type_String{Nullability: n}}}, nil
	case types.TypeIDBinary:
		return &pb.Type{Kind: &pb.Type_Binary_{Binary: &pb.Type_Binary{Nullability: n}}}, nil
	case types.TypeIDTimestamp:
		return &pb.Type{Kind: &pb.Type_Timestamp_{Timestamp: &pb.Type_Timestamp{Nullability: n}}}, nil
	case types.TypeIDTimestampTZ:
		return &pb.Type{Kind: &pb.Type_TimestampTz{TimestampTz: &pb.Type_TimestampTZ{Nullability: n}}}, nil
	case types.TypeIDDate:
		return &pb.Type{Kind: &pb.Type_Date_{Date: &pb.Type_Date{Nullability: n}}}, nil
	case types.TypeIDTime:
		return &pb.Type{Kind: &pb.Type_Time_{Time: &pb.Type_Time{Nullability: n}}}, nil
	case types.TypeIDIntervalYear:
		return &pb.Type{Kind: &pb.Type_IntervalYear_{IntervalYear: &pb.Type_IntervalYear{Nullability: n}}}, nil
	case types.TypeIDIntervalDay:
		return &pb.Type{Kind: &pb.Type_IntervalDay_{IntervalDay: &pb.Type_IntervalDay{Nullability: n}}}, nil
	case types.TypeIDUUID:
		return &pb.Type{Kind: &pb.Type_Uuid{Uuid: &pb.Type_UUID{Nullability: n}}}, nil
	}
	return nil, errdefs.Unsupportedf("primitive type %s", t.TypeID)
}

func (typeEncoder) VisitFixedChar(t types.FixedCharType) (*pb.Type, error) {
	return &pb.Type{Kind: &pb.Type_FixedChar_{FixedChar: &pb.Type_FixedChar{
		Length:      t.Length,
		Nullability: nullability(t.IsNullable),
	}}}, nil
}

func (typeEncoder) VisitVarChar(t types.VarCharType) (*pb.Type, error) {
	return &pb.Type{Kind: &pb.Type_Varchar{Varchar: &pb.Type_VarChar{
		Length:      t.Length,
		Nullability: nullability(t.IsNullable),
	}}}, nil
}

func (typeEncoder) VisitFixedBinary(t types.FixedBinaryType) (*pb.Type, error) {
	return &pb.Type{Kind: &pb.Type_FixedBinary_{FixedBinary: &pb.Type_FixedBinary{
		Length:      t.Length,
		Nullability: nullability(t.IsNullable),
	}}}, nil
}

func (typeEncoder) VisitDecimal(t types.DecimalType) (*pb.Type, error) {
	return &pb.Type{Kind: &pb.Type_Decimal_{Decimal: &pb.Type_Decimal{
		Precision:   t.Precision,
		Scale:       t.Scale,
		Nullability: nullability(t.IsNullable),
	}}}, nil
}

func (typeEncoder) VisitStruct(t types.StructType) (*pb.Type, error) {
	st, err := encodeStruct(t)
	if err != nil {
		return nil, err
	}
	return &pb.Type{Kind: &pb.Type_Struct_{Struct: st}}, nil
}

func (typeEncoder) VisitList(t types.ListType) (*pb.Type, error) {
	lt, err := encodeList(t)
	if err != nil {
		return nil, err
	}
	return &pb.Type{Kind: &pb.Type_List_{List: lt}}, nil
}

func (typeEncoder) VisitMap(t types.MapType) (*pb.Type, error) {
	mt, err := encodeMap(t)
	if err != nil {
		return nil, err
	}
	return &pb.Type{Kind: &pb.Type_Map_{Map: mt}}, nil
}

func encodeStruct(t types.StructType) (*pb.Type_Struct, error) {
	fields, err := encodeTypes(t.Fields)
	if err != nil {
		return nil, err
	}
	return &pb.Type_Struct{Types: fields, Nullability: nullability(t.IsNullable)}, nil
}

func encodeList(t types.ListType) (*pb.Type_List, error) {
	elem, err := EncodeType(t.Element)
	if err != nil {
		return nil, fmt.Errorf("list element: %w", err)
	}
	return &pb.Type_List{Type: elem, Nullability: nullability(t.IsNullable)}, nil
}

func encodeMap(t types.MapType) (*pb.Type_Map, error) {
	key, err := EncodeType(t.Key)
	if err != nil {
		return nil, fmt.Errorf("map key: %w", err)
	}
	value, err := EncodeType(t.Value)
	if err != nil {
		return nil, fmt.Errorf("map value: %w", err)
	}
	return &pb.Type_Map{Key: key, Value: value, Nullability: nullability(t.IsNullable)}, nil
}

// EncodeType converts t to its Substrait protobuf form.
func EncodeType(t types.Type) (*pb.Type, error) {
	if t == nil {
		return nil, errdefs.Unsupportedf("nil type")
	}
	return types.Visit[*pb.Type](t, typeEncoder{})
}

func encodeTypes(ts []types.Type) ([]*pb.Type, error) {
	out := make([]*pb.Type, len(ts))
	for i, t := range ts {
		w, err := EncodeType(t)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// nullabilityMessage is implemented by every generated type message.
type nullabilityMessage interface {
	GetNullability() pb.Type_Nullability
}

func creator(what string, m nullabilityMessage) (types.Creator, error) {
	switch m.GetNullability() {
	case pb.Type_NULLABILITY_NULLABLE:
		return types.N, nil
	case pb.Type_NULLABILITY_REQUIRED:
		return types.R, nil
	}
	return types.Creator{}, errdefs.Integrityf("%s type has unspecified nullability", what)
}

// DecodeType converts a protobuf type back, validating its parameters.
func DecodeType(w *pb.Type) (types.Type, error) {
	if w == nil {
		return nil, errdefs.Integrityf("missing type")
	}
	switch k := w.Kind.(type) {
	case nil:
		return nil, errdefs.Integrityf("type without kind")
	case *pb.Type_Bool:
		return primitive("boolean", k.Bool, types.TypeIDBoolean)
	case *pb.Type_I8_:
		return primitive("i8", k.I8, types.TypeIDI8)
	case *pb.Type_I16_:
		return primitive("i16", k.I16, types.TypeIDI16)
	case *pb.Type_I32_:
		return primitive("i32", k.I32, types.TypeIDI32)
	case *pb.Type_I64_:
		return primitive("i64", k.I64, types.TypeIDI64)
	case *pb.Type_Fp32:
		return primitive("fp32", k.Fp32, types.TypeIDFP32)
	case *pb.Type_Fp64:
		return primitive("fp64", k.Fp64, types.TypeIDFP64)
	case *pb.Type_String_:
		return primitive("string", k.String_, types.TypeIDString)
	case *pb.Type_Binary_:
		return primitive("binary", k.Binary, types.TypeIDBinary)
	case *pb.Type_Timestamp_:
		return primitive("timestamp", k.Timestamp, types.TypeIDTimestamp)
	case *pb.Type_TimestampTz:
		return primitive("timestamp_tz", k.TimestampTz, types.TypeIDTimestampTZ)
	case *pb.Type_Date_:
		return primitive("date", k.Date, types.TypeIDDate)
	case *pb.Type_Time_:
		return primitive("time", k.Time, types.TypeIDTime)
	case *pb.Type_IntervalYear_:
		return primitive("interval_year", k.IntervalYear, types.TypeIDIntervalYear)
	case *pb.Type_IntervalDay_:
		return primitive("interval_day", k.IntervalDay, types.TypeIDIntervalDay)
	case *pb.Type_Uuid:
		return primitive("uuid", k.Uuid, types.TypeIDUUID)
	case *pb.Type_FixedChar_:
		c, err := creator("fixedchar", k.FixedChar)
		if err != nil {
			return nil, err
		}
		return integrity(c.FixedChar(k.FixedChar.GetLength()))
	case *pb.Type_Varchar:
		c, err := creator("varchar", k.Varchar)
		if err != nil {
			return nil, err
		}
		return integrity(c.VarChar(k.Varchar.GetLength()))
	case *pb.Type_FixedBinary_:
		c, err := creator("fixedbinary", k.FixedBinary)
		if err != nil {
			return nil, err
		}
		return integrity(c.FixedBinary(k.FixedBinary.GetLength()))
	case *pb.Type_Decimal_:
		c, err := creator("decimal", k.Decimal)
		if err != nil {
			return nil, err
		}
		return integrity(c.Decimal(k.Decimal.GetPrecision(), k.Decimal.GetScale()))
	case *pb.Type_Struct_:
		return decodeStruct(k.Struct)
	case *pb.Type_List_:
		return decodeList(k.List)
	case *pb.Type_Map_:
		return decodeMap(k.Map)
	}
	return nil, errdefs.Unsupportedf("type kind %T", w.Kind)
}

func primitive(what string, m nullabilityMessage, id types.TypeID) (types.Type, error) {
	c, err := creator(what, m)
	if err != nil {
		return nil, err
	}
	return integrity(c.Primitive(id))
}

func decodeStruct(w *pb.Type_Struct) (types.StructType, error) {
	if w == nil {
		return types.StructType{}, errdefs.Integrityf("missing struct type")
	}
	c, err := creator("struct", w)
	if err != nil {
		return types.StructType{}, err
	}
	fields, err := decodeTypes(w.GetTypes())
	if err != nil {
		return types.StructType{}, err
	}
	return c.Struct(fields...), nil
}

func decodeList(w *pb.Type_List) (types.ListType, error) {
	if w == nil {
		return types.ListType{}, errdefs.Integrityf("missing list type")
	}
	c, err := creator("list", w)
	if err != nil {
		return types.ListType{}, err
	}
	if w.GetType() == nil {
		return types.ListType{}, errdefs.Integrityf("list type without element")
	}
	elem, err := DecodeType(w.GetType())
	if err != nil {
		return types.ListType{}, fmt.Errorf("list element: %w", err)
	}
	return c.List(elem), nil
}

func decodeMap(w *pb.Type_Map) (types.MapType, error) {
	if w == nil {
		return types.MapType{}, errdefs.Integrityf("missing map type")
	}
	c, err := creator("map", w)
	if err != nil {
		return types.MapType{}, err
	}
	if w.GetKey() == nil || w.GetValue() == nil {
		return types.MapType{}, errdefs.Integrityf("map type without key or value")
	}
	key, err := DecodeType(w.GetKey())
	if err != nil {
		return types.MapType{}, fmt.Errorf("map key: %w", err)
	}
	value, err := DecodeType(w.GetValue())
	if err != nil {
		return types.MapType{}, fmt.Errorf("map value: %w", err)
	}
	return c.Map(key, value), nil
}

// integrity reclassifies a construction failure of decoded data.
func integrity[T types.Type](t T, err error) (types.Type, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDecodeIntegrity, err)
	}
	return t, nil
}

func decodeTypes(ws []*pb.Type) ([]types.Type, error) {
	out := make([]types.Type, len(ws))
	for i, w := range ws {
		t, err := DecodeType(w)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// EncodeNamedStruct converts a schema to its protobuf form.
func EncodeNamedStruct(ns types.NamedStruct) (*pb.NamedStruct, error) {
	st, err := encodeStruct(ns.Struct)
	if err != nil {
		return nil, err
	}
	return &pb.NamedStruct{Names: ns.Names, Struct: st}, nil
}

// DecodeNamedStruct converts a protobuf schema back and checks the name count.
func DecodeNamedStruct(w *pb.NamedStruct) (types.NamedStruct, error) {
	if w == nil {
		return types.NamedStruct{}, errdefs.Integrityf("missing schema")
	}
	st, err := decodeStruct(w.GetStruct())
	if err != nil {
		return types.NamedStruct{}, err
	}
	ns, err := types.NewNamedStruct(w.GetNames(), st)
	if err != nil {
		return types.NamedStruct{}, fmt.Errorf("%w: %v", errdefs.ErrDecodeIntegrity, err)
	}
	return ns, nil
}
