package types

import (
	"github.com/hugr-lab/substrait-go/errdefs"
)

// MaxDecimalPrecision is the largest precision a decimal may declare.
const MaxDecimalPrecision = 38

// Creator builds types with a fixed nullability.
type Creator struct {
	Nullable bool
}

var (
	// R creates required (non-nullable) types.
	R = Creator{Nullable: false}
	// N creates nullable types.
	N = Creator{Nullable: true}
)

func (c Creator) primitive(id TypeID) PrimitiveType {
	return PrimitiveType{TypeID: id, IsNullable: c.Nullable}
}

func (c Creator) Boolean() PrimitiveType      { return c.primitive(TypeIDBoolean) }
func (c Creator) I8() PrimitiveType           { return c.primitive(TypeIDI8) }
func (c Creator) I16() PrimitiveType          { return c.primitive(TypeIDI16) }
func (c Creator) I32() PrimitiveType          { return c.primitive(TypeIDI32) }
func (c Creator) I64() PrimitiveType          { return c.primitive(TypeIDI64) }
func (c Creator) FP32() PrimitiveType         { return c.primitive(TypeIDFP32) }
func (c Creator) FP64() PrimitiveType         { return c.primitive(TypeIDFP64) }
func (c Creator) Str() PrimitiveType          { return c.primitive(TypeIDString) }
func (c Creator) Binary() PrimitiveType       { return c.primitive(TypeIDBinary) }
func (c Creator) Timestamp() PrimitiveType    { return c.primitive(TypeIDTimestamp) }
func (c Creator) TimestampTZ() PrimitiveType  { return c.primitive(TypeIDTimestampTZ) }
func (c Creator) Date() PrimitiveType         { return c.primitive(TypeIDDate) }
func (c Creator) Time() PrimitiveType         { return c.primitive(TypeIDTime) }
func (c Creator) IntervalYear() PrimitiveType { return c.primitive(TypeIDIntervalYear) }
func (c Creator) IntervalDay() PrimitiveType  { return c.primitive(TypeIDIntervalDay) }
func (c Creator) UUID() PrimitiveType         { return c.primitive(TypeIDUUID) }

// Primitive returns the parameterless variant id.
func (c Creator) Primitive(id TypeID) (PrimitiveType, error) {
	if !id.IsPrimitive() {
		return PrimitiveType{}, errdefs.Constructionf("%s is not a primitive type", id)
	}
	return c.primitive(id), nil
}

// FixedChar returns fixedchar(length). Length must be positive.
func (c Creator) FixedChar(length int32) (FixedCharType, error) {
	if length <= 0 {
		return FixedCharType{}, errdefs.Constructionf("fixedchar length must be positive, got %d", length)
	}
	return FixedCharType{Length: length, IsNullable: c.Nullable}, nil
}

// VarChar returns varchar(length). Length must be positive.
func (c Creator) VarChar(length int32) (VarCharType, error) {
	if length <= 0 {
		return VarCharType{}, errdefs.Constructionf("varchar length must be positive, got %d", length)
	}
	return VarCharType{Length: length, IsNullable: c.Nullable}, nil
}

// FixedBinary returns fixedbinary(length). Length must be positive.
func (c Creator) FixedBinary(length int32) (FixedBinaryType, error) {
	if length <= 0 {
		return FixedBinaryType{}, errdefs.Constructionf("fixedbinary length must be positive, got %d", length)
	}
	return FixedBinaryType{Length: length, IsNullable: c.Nullable}, nil
}

// Decimal returns decimal(precision, scale) with 1 <= precision <= 38 and 0 <= scale <= precision.
func (c Creator) Decimal(precision, scale int32) (DecimalType, error) {
	if precision < 1 || precision > MaxDecimalPrecision {
		return DecimalType{}, errdefs.Constructionf("decimal precision %d out of range [1,%d]", precision, MaxDecimalPrecision)
	}
	if scale < 0 || scale > precision {
		return DecimalType{}, errdefs.Constructionf("decimal scale %d out of range [0,%d]", scale, precision)
	}
	return DecimalType{Precision: precision, Scale: scale, IsNullable: c.Nullable}, nil
}

// Struct returns a struct of the given fields.
func (c Creator) Struct(fields ...Type) StructType {
	return StructType{Fields: fields, IsNullable: c.Nullable}
}

// List returns list(element).
func (c Creator) List(element Type) ListType {
	return ListType{Element: element, IsNullable: c.Nullable}
}

// Map returns map(key, value).
func (c Creator) Map(key, value Type) MapType {
	return MapType{Key: key, Value: value, IsNullable: c.Nullable}
}

// Must panics if err is non-nil. Intended for literal type declarations in tests
// and package-level variables.
func Must[T Type](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}
