package expr

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/google/uuid"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/types"
)

// Literal is a constant expression. Nested literals (list, map, struct) are
// composed only of literals.
type Literal interface {
	Expression
	literalMarker()
}

type literalNode struct{ exprNode }

func (literalNode) literalMarker() {}

// PrimitiveValue lists the Go representations of fixed-width primitive literals.
type PrimitiveValue interface {
	~bool | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64 | ~string
}

// PrimitiveLiteral is a literal of a parameterless type. Temporal values use
// integer encodings: date as days since epoch (int32), time, timestamp and
// timestamp_tz as microseconds (int64).
type PrimitiveLiteral[T PrimitiveValue] struct {
	literalNode
	Value T
	typ   types.PrimitiveType
}

func (l *PrimitiveLiteral[T]) Type() types.Type { return l.typ }

func (l *PrimitiveLiteral[T]) Equal(other Expression) bool {
	o, ok := other.(*PrimitiveLiteral[T])
	return ok && o.typ == l.typ && o.Value == l.Value
}

func newPrimitive[T PrimitiveValue](v T, id types.TypeID, nullable bool) *PrimitiveLiteral[T] {
	return &PrimitiveLiteral[T]{Value: v, typ: types.PrimitiveType{TypeID: id, IsNullable: nullable}}
}

func NewBool(v bool, nullable bool) *PrimitiveLiteral[bool] {
	return newPrimitive(v, types.TypeIDBoolean, nullable)
}

func NewI8(v int8, nullable bool) *PrimitiveLiteral[int8] {
	return newPrimitive(v, types.TypeIDI8, nullable)
}

func NewI16(v int16, nullable bool) *PrimitiveLiteral[int16] {
	return newPrimitive(v, types.TypeIDI16, nullable)
}

func NewI32(v int32, nullable bool) *PrimitiveLiteral[int32] {
	return newPrimitive(v, types.TypeIDI32, nullable)
}

func NewI64(v int64, nullable bool) *PrimitiveLiteral[int64] {
	return newPrimitive(v, types.TypeIDI64, nullable)
}

func NewFP32(v float32, nullable bool) *PrimitiveLiteral[float32] {
	return newPrimitive(v, types.TypeIDFP32, nullable)
}

func NewFP64(v float64, nullable bool) *PrimitiveLiteral[float64] {
	return newPrimitive(v, types.TypeIDFP64, nullable)
}

func NewString(v string, nullable bool) *PrimitiveLiteral[string] {
	return newPrimitive(v, types.TypeIDString, nullable)
}

// NewDate takes days since the Unix epoch.
func NewDate(days int32, nullable bool) *PrimitiveLiteral[int32] {
	return newPrimitive(days, types.TypeIDDate, nullable)
}

// NewTime takes microseconds since midnight.
func NewTime(micros int64, nullable bool) *PrimitiveLiteral[int64] {
	return newPrimitive(micros, types.TypeIDTime, nullable)
}

// NewTimestamp takes microseconds since the Unix epoch.
func NewTimestamp(micros int64, nullable bool) *PrimitiveLiteral[int64] {
	return newPrimitive(micros, types.TypeIDTimestamp, nullable)
}

// NewTimestampTZ takes microseconds since the Unix epoch in UTC.
func NewTimestampTZ(micros int64, nullable bool) *PrimitiveLiteral[int64] {
	return newPrimitive(micros, types.TypeIDTimestampTZ, nullable)
}

// BinaryLiteral is a variable-length byte string.
type BinaryLiteral struct {
	literalNode
	Value    []byte
	nullable bool
}

func NewBinary(v []byte, nullable bool) *BinaryLiteral {
	return &BinaryLiteral{Value: v, nullable: nullable}
}

func (l *BinaryLiteral) Type() types.Type {
	return types.PrimitiveType{TypeID: types.TypeIDBinary, IsNullable: l.nullable}
}

func (l *BinaryLiteral) Equal(other Expression) bool {
	o, ok := other.(*BinaryLiteral)
	return ok && o.nullable == l.nullable && bytes.Equal(o.Value, l.Value)
}

// UUIDLiteral is a 16-byte UUID.
type UUIDLiteral struct {
	literalNode
	Value    uuid.UUID
	nullable bool
}

func NewUUID(v uuid.UUID, nullable bool) *UUIDLiteral {
	return &UUIDLiteral{Value: v, nullable: nullable}
}

// NewUUIDFromBytes fails unless b is exactly 16 bytes.
func NewUUIDFromBytes(b []byte, nullable bool) (*UUIDLiteral, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, errdefs.Constructionf("uuid literal: %v", err)
	}
	return NewUUID(u, nullable), nil
}

func (l *UUIDLiteral) Type() types.Type {
	return types.PrimitiveType{TypeID: types.TypeIDUUID, IsNullable: l.nullable}
}

func (l *UUIDLiteral) Equal(other Expression) bool {
	o, ok := other.(*UUIDLiteral)
	return ok && o.nullable == l.nullable && o.Value == l.Value
}

// IntervalYearLiteral is a year-month interval.
type IntervalYearLiteral struct {
	literalNode
	Years    int32
	Months   int32
	nullable bool
}

func NewIntervalYear(years, months int32, nullable bool) *IntervalYearLiteral {
	return &IntervalYearLiteral{Years: years, Months: months, nullable: nullable}
}

func (l *IntervalYearLiteral) Type() types.Type {
	return types.PrimitiveType{TypeID: types.TypeIDIntervalYear, IsNullable: l.nullable}
}

func (l *IntervalYearLiteral) Equal(other Expression) bool {
	o, ok := other.(*IntervalYearLiteral)
	return ok && *o == *l
}

// IntervalDayLiteral is a day-time interval.
type IntervalDayLiteral struct {
	literalNode
	Days         int32
	Seconds      int32
	Microseconds int32
	nullable     bool
}

func NewIntervalDay(days, seconds, micros int32, nullable bool) *IntervalDayLiteral {
	return &IntervalDayLiteral{Days: days, Seconds: seconds, Microseconds: micros, nullable: nullable}
}

func (l *IntervalDayLiteral) Type() types.Type {
	return types.PrimitiveType{TypeID: types.TypeIDIntervalDay, IsNullable: l.nullable}
}

func (l *IntervalDayLiteral) Equal(other Expression) bool {
	o, ok := other.(*IntervalDayLiteral)
	return ok && *o == *l
}

// FixedCharLiteral is a string of exactly the declared length in characters.
type FixedCharLiteral struct {
	literalNode
	Value string
	typ   types.FixedCharType
}

// NewFixedChar derives the length from v.
func NewFixedChar(v string, nullable bool) (*FixedCharLiteral, error) {
	t, err := types.Creator{Nullable: nullable}.FixedChar(int32(utf8.RuneCountInString(v)))
	if err != nil {
		return nil, err
	}
	return &FixedCharLiteral{Value: v, typ: t}, nil
}

// NewFixedCharOfType fails unless v has exactly t.Length characters.
func NewFixedCharOfType(v string, t types.FixedCharType) (*FixedCharLiteral, error) {
	if n := utf8.RuneCountInString(v); int32(n) != t.Length {
		return nil, errdefs.Constructionf("fixedchar<%d> value has %d characters", t.Length, n)
	}
	return &FixedCharLiteral{Value: v, typ: t}, nil
}

func (l *FixedCharLiteral) Type() types.Type { return l.typ }

func (l *FixedCharLiteral) Equal(other Expression) bool {
	o, ok := other.(*FixedCharLiteral)
	return ok && *o == *l
}

// VarCharLiteral is a string of at most the declared length in characters.
type VarCharLiteral struct {
	literalNode
	Value string
	typ   types.VarCharType
}

// NewVarChar fails if v is longer than length characters.
func NewVarChar(v string, length int32, nullable bool) (*VarCharLiteral, error) {
	t, err := types.Creator{Nullable: nullable}.VarChar(length)
	if err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(v); int32(n) > length {
		return nil, errdefs.Constructionf("varchar<%d> value has %d characters", length, n)
	}
	return &VarCharLiteral{Value: v, typ: t}, nil
}

func (l *VarCharLiteral) Type() types.Type { return l.typ }

func (l *VarCharLiteral) Equal(other Expression) bool {
	o, ok := other.(*VarCharLiteral)
	return ok && *o == *l
}

// FixedBinaryLiteral is a byte string of exactly the declared length.
type FixedBinaryLiteral struct {
	literalNode
	Value []byte
	typ   types.FixedBinaryType
}

// NewFixedBinary derives the length from v.
func NewFixedBinary(v []byte, nullable bool) (*FixedBinaryLiteral, error) {
	t, err := types.Creator{Nullable: nullable}.FixedBinary(int32(len(v)))
	if err != nil {
		return nil, err
	}
	return &FixedBinaryLiteral{Value: v, typ: t}, nil
}

// NewFixedBinaryOfType fails unless v has exactly t.Length bytes.
func NewFixedBinaryOfType(v []byte, t types.FixedBinaryType) (*FixedBinaryLiteral, error) {
	if int32(len(v)) != t.Length {
		return nil, errdefs.Constructionf("fixedbinary<%d> value has %d bytes", t.Length, len(v))
	}
	return &FixedBinaryLiteral{Value: v, typ: t}, nil
}

func (l *FixedBinaryLiteral) Type() types.Type { return l.typ }

func (l *FixedBinaryLiteral) Equal(other Expression) bool {
	o, ok := other.(*FixedBinaryLiteral)
	return ok && o.typ == l.typ && bytes.Equal(o.Value, l.Value)
}

// DecimalLiteral holds the exact unscaled value of a decimal.
type DecimalLiteral struct {
	literalNode
	Value decimal128.Num
	typ   types.DecimalType
}

// NewDecimal fails if the unscaled value does not fit the precision.
func NewDecimal(v decimal128.Num, precision, scale int32, nullable bool) (*DecimalLiteral, error) {
	t, err := types.Creator{Nullable: nullable}.Decimal(precision, scale)
	if err != nil {
		return nil, err
	}
	if !v.FitsInPrecision(precision) {
		return nil, errdefs.Constructionf("decimal value %s does not fit precision %d", v.ToString(scale), precision)
	}
	return &DecimalLiteral{Value: v, typ: t}, nil
}

// NewDecimalFromString parses a decimal such as "10.00" at the given precision and scale.
func NewDecimalFromString(s string, precision, scale int32, nullable bool) (*DecimalLiteral, error) {
	v, err := decimal128.FromString(s, precision, scale)
	if err != nil {
		return nil, errdefs.Constructionf("decimal literal %q: %v", s, err)
	}
	return NewDecimal(v, precision, scale, nullable)
}

// NewDecimalFromBytes decodes a 16-byte big-endian two's-complement unscaled value.
func NewDecimalFromBytes(b []byte, precision, scale int32, nullable bool) (*DecimalLiteral, error) {
	if len(b) != 16 {
		return nil, errdefs.Constructionf("decimal value must be 16 bytes, got %d", len(b))
	}
	hi := int64(binary.BigEndian.Uint64(b[:8]))
	lo := binary.BigEndian.Uint64(b[8:])
	return NewDecimal(decimal128.New(hi, lo), precision, scale, nullable)
}

// Bytes returns the 16-byte big-endian two's-complement unscaled value.
func (l *DecimalLiteral) Bytes() []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[:8], uint64(l.Value.HighBits()))
	binary.BigEndian.PutUint64(out[8:], l.Value.LowBits())
	return out
}

// BigInt returns the unscaled value.
func (l *DecimalLiteral) BigInt() *big.Int {
	return l.Value.BigInt()
}

func (l *DecimalLiteral) String() string {
	return l.Value.ToString(l.typ.Scale)
}

func (l *DecimalLiteral) Type() types.Type { return l.typ }

func (l *DecimalLiteral) Equal(other Expression) bool {
	o, ok := other.(*DecimalLiteral)
	return ok && *o == *l
}

// NullLiteral is a typed null. Its type is always nullable.
type NullLiteral struct {
	literalNode
	typ types.Type
}

func NewNull(t types.Type) *NullLiteral {
	return &NullLiteral{typ: types.AsNullable(t)}
}

func (l *NullLiteral) Type() types.Type { return l.typ }

func (l *NullLiteral) Equal(other Expression) bool {
	o, ok := other.(*NullLiteral)
	return ok && o.typ.Equal(l.typ)
}

// StructLiteral is a struct value of literal fields.
type StructLiteral struct {
	literalNode
	Fields   []Literal
	nullable bool
}

func NewStruct(fields []Literal, nullable bool) *StructLiteral {
	return &StructLiteral{Fields: fields, nullable: nullable}
}

func (l *StructLiteral) Type() types.Type {
	ft := make([]types.Type, len(l.Fields))
	for i, f := range l.Fields {
		ft[i] = f.Type()
	}
	return types.StructType{Fields: ft, IsNullable: l.nullable}
}

func (l *StructLiteral) Equal(other Expression) bool {
	o, ok := other.(*StructLiteral)
	return ok && o.nullable == l.nullable && equalLiterals(o.Fields, l.Fields)
}

// ListLiteral is a non-empty list value. All elements share one type, modulo
// nullability; the element type is nullable if any element is.
type ListLiteral struct {
	literalNode
	Values   []Literal
	elem     types.Type
	nullable bool
}

// NewList fails for an empty list (use NewEmptyList) or mixed element types.
func NewList(values []Literal, nullable bool) (*ListLiteral, error) {
	elem, err := commonType("list element", values)
	if err != nil {
		return nil, err
	}
	return &ListLiteral{Values: values, elem: elem, nullable: nullable}, nil
}

func (l *ListLiteral) Type() types.Type {
	return types.ListType{Element: l.elem, IsNullable: l.nullable}
}

func (l *ListLiteral) Equal(other Expression) bool {
	o, ok := other.(*ListLiteral)
	return ok && o.nullable == l.nullable && equalLiterals(o.Values, l.Values)
}

// EmptyListLiteral is an empty list with an explicit type.
type EmptyListLiteral struct {
	literalNode
	typ types.ListType
}

func NewEmptyList(t types.ListType) *EmptyListLiteral {
	return &EmptyListLiteral{typ: t}
}

func (l *EmptyListLiteral) Type() types.Type { return l.typ }

func (l *EmptyListLiteral) Equal(other Expression) bool {
	o, ok := other.(*EmptyListLiteral)
	return ok && o.typ.Equal(l.typ)
}

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   Literal
	Value Literal
}

// MapLiteral is a non-empty map value.
type MapLiteral struct {
	literalNode
	Entries  []MapEntry
	key      types.Type
	value    types.Type
	nullable bool
}

// NewMap fails for an empty map (use NewEmptyMap) or mixed key or value types.
func NewMap(entries []MapEntry, nullable bool) (*MapLiteral, error) {
	keys := make([]Literal, len(entries))
	vals := make([]Literal, len(entries))
	for i, e := range entries {
		keys[i], vals[i] = e.Key, e.Value
	}
	kt, err := commonType("map key", keys)
	if err != nil {
		return nil, err
	}
	vt, err := commonType("map value", vals)
	if err != nil {
		return nil, err
	}
	return &MapLiteral{Entries: entries, key: kt, value: vt, nullable: nullable}, nil
}

func (l *MapLiteral) Type() types.Type {
	return types.MapType{Key: l.key, Value: l.value, IsNullable: l.nullable}
}

func (l *MapLiteral) Equal(other Expression) bool {
	o, ok := other.(*MapLiteral)
	if !ok || o.nullable != l.nullable || len(o.Entries) != len(l.Entries) {
		return false
	}
	for i := range l.Entries {
		if !l.Entries[i].Key.Equal(o.Entries[i].Key) || !l.Entries[i].Value.Equal(o.Entries[i].Value) {
			return false
		}
	}
	return true
}

// EmptyMapLiteral is an empty map with an explicit type.
type EmptyMapLiteral struct {
	literalNode
	typ types.MapType
}

func NewEmptyMap(t types.MapType) *EmptyMapLiteral {
	return &EmptyMapLiteral{typ: t}
}

func (l *EmptyMapLiteral) Type() types.Type { return l.typ }

func (l *EmptyMapLiteral) Equal(other Expression) bool {
	o, ok := other.(*EmptyMapLiteral)
	return ok && o.typ.Equal(l.typ)
}

func commonType(what string, values []Literal) (types.Type, error) {
	if len(values) == 0 {
		return nil, errdefs.Constructionf("%s list is empty", what)
	}
	t := values[0].Type()
	nullable := t.Nullable()
	for i, v := range values[1:] {
		if !types.EqualIgnoringNullability(t, v.Type()) {
			return nil, errdefs.Constructionf("%s %d has type %s, expected %s", what, i+1, v.Type(), t)
		}
		nullable = nullable || v.Type().Nullable()
	}
	return t.WithNullability(nullable), nil
}

func equalLiterals(a, b []Literal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
