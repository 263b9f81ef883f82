// Package types defines the scalar and parameterized data types of the plan IR.
//
// Every type carries a nullability flag. Two types are equal only if they are
// the same variant with the same parameters and the same nullability.
package types

import (
	"fmt"
)

// TypeID identifies a type variant.
type TypeID string

const (
	TypeIDBoolean      TypeID = "boolean"
	TypeIDI8           TypeID = "i8"
	TypeIDI16          TypeID = "i16"
	TypeIDI32          TypeID = "i32"
	TypeIDI64          TypeID = "i64"
	TypeIDFP32         TypeID = "fp32"
	TypeIDFP64         TypeID = "fp64"
	TypeIDString       TypeID = "string"
	TypeIDBinary       TypeID = "binary"
	TypeIDTimestamp    TypeID = "timestamp"
	TypeIDTimestampTZ  TypeID = "timestamp_tz"
	TypeIDDate         TypeID = "date"
	TypeIDTime         TypeID = "time"
	TypeIDIntervalYear TypeID = "interval_year"
	TypeIDIntervalDay  TypeID = "interval_day"
	TypeIDUUID         TypeID = "uuid"
	TypeIDFixedChar    TypeID = "fixedchar"
	TypeIDVarChar      TypeID = "varchar"
	TypeIDFixedBinary  TypeID = "fixedbinary"
	TypeIDDecimal      TypeID = "decimal"
	TypeIDStruct       TypeID = "struct"
	TypeIDList         TypeID = "list"
	TypeIDMap          TypeID = "map"
)

// shortNames holds the abbreviations used in compound function signatures
// such as "add:i32_i32".
var shortNames = map[TypeID]string{
	TypeIDBoolean:      "bool",
	TypeIDI8:           "i8",
	TypeIDI16:          "i16",
	TypeIDI32:          "i32",
	TypeIDI64:          "i64",
	TypeIDFP32:         "fp32",
	TypeIDFP64:         "fp64",
	TypeIDString:       "str",
	TypeIDBinary:       "vbin",
	TypeIDTimestamp:    "ts",
	TypeIDTimestampTZ:  "tstz",
	TypeIDDate:         "date",
	TypeIDTime:         "time",
	TypeIDIntervalYear: "iyear",
	TypeIDIntervalDay:  "iday",
	TypeIDUUID:         "uuid",
	TypeIDFixedChar:    "fchar",
	TypeIDVarChar:      "vchar",
	TypeIDFixedBinary:  "fbin",
	TypeIDDecimal:      "dec",
	TypeIDStruct:       "struct",
	TypeIDList:         "list",
	TypeIDMap:          "map",
}

// ShortName returns the signature abbreviation of a type variant.
func (id TypeID) ShortName() string {
	if s, ok := shortNames[id]; ok {
		return s
	}
	return string(id)
}

// IDFromShortName maps a signature abbreviation (or a full variant name) back to a TypeID.
func IDFromShortName(s string) (TypeID, bool) {
	for id, short := range shortNames {
		if short == s || string(id) == s {
			return id, true
		}
	}
	return "", false
}

// IsPrimitive reports whether the variant takes no parameters.
func (id TypeID) IsPrimitive() bool {
	switch id {
	case TypeIDFixedChar, TypeIDVarChar, TypeIDFixedBinary, TypeIDDecimal,
		TypeIDStruct, TypeIDList, TypeIDMap:
		return false
	}
	_, ok := shortNames[id]
	return ok
}

// Type is implemented by all type variants.
// Use a type switch or Visit to access variant parameters.
type Type interface {
	// ID returns the variant identifier.
	ID() TypeID

	// Nullable reports whether values of this type may be null.
	Nullable() bool

	// WithNullability returns a copy of the type with the given nullability.
	WithNullability(nullable bool) Type

	// Equal reports structural equality including nullability.
	Equal(other Type) bool

	// String returns a diagnostic form such as "decimal?<10,2>".
	String() string

	// typeMarker prevents implementations outside this package.
	typeMarker()
}

// AsNullable returns t with nullability forced on.
func AsNullable(t Type) Type {
	if t.Nullable() {
		return t
	}
	return t.WithNullability(true)
}

// AsRequired returns t with nullability forced off.
func AsRequired(t Type) Type {
	if !t.Nullable() {
		return t
	}
	return t.WithNullability(false)
}

// EqualIgnoringNullability compares two types with the top-level nullability erased.
func EqualIgnoringNullability(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.WithNullability(false).Equal(b.WithNullability(false))
}

// EqualTypes compares two type lists element by element.
func EqualTypes(a, b []Type) bool {
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

// PrimitiveType is any of the parameterless variants.
type PrimitiveType struct {
	TypeID     TypeID
	IsNullable bool
}

func (t PrimitiveType) ID() TypeID     { return t.TypeID }
func (t PrimitiveType) Nullable() bool { return t.IsNullable }
func (PrimitiveType) typeMarker()      {}

func (t PrimitiveType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

func (t PrimitiveType) Equal(other Type) bool {
	o, ok := other.(PrimitiveType)
	return ok && o == t
}

func (t PrimitiveType) String() string { return typeString(t) }

// FixedCharType is a character string of exactly Length characters.
type FixedCharType struct {
	Length     int32
	IsNullable bool
}

func (FixedCharType) ID() TypeID       { return TypeIDFixedChar }
func (t FixedCharType) Nullable() bool { return t.IsNullable }
func (FixedCharType) typeMarker()      {}
func (t FixedCharType) String() string { return typeString(t) }
func (t FixedCharType) Equal(o Type) bool {
	v, ok := o.(FixedCharType)
	return ok && v == t
}

func (t FixedCharType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

// VarCharType is a character string of at most Length characters.
type VarCharType struct {
	Length     int32
	IsNullable bool
}

func (VarCharType) ID() TypeID       { return TypeIDVarChar }
func (t VarCharType) Nullable() bool { return t.IsNullable }
func (VarCharType) typeMarker()      {}
func (t VarCharType) String() string { return typeString(t) }
func (t VarCharType) Equal(o Type) bool {
	v, ok := o.(VarCharType)
	return ok && v == t
}

func (t VarCharType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

// FixedBinaryType is a byte string of exactly Length bytes.
type FixedBinaryType struct {
	Length     int32
	IsNullable bool
}

func (FixedBinaryType) ID() TypeID       { return TypeIDFixedBinary }
func (t FixedBinaryType) Nullable() bool { return t.IsNullable }
func (FixedBinaryType) typeMarker()      {}
func (t FixedBinaryType) String() string { return typeString(t) }
func (t FixedBinaryType) Equal(o Type) bool {
	v, ok := o.(FixedBinaryType)
	return ok && v == t
}

func (t FixedBinaryType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

// DecimalType is an exact numeric with Precision total digits, Scale of them fractional.
type DecimalType struct {
	Precision  int32
	Scale      int32
	IsNullable bool
}

func (DecimalType) ID() TypeID       { return TypeIDDecimal }
func (t DecimalType) Nullable() bool { return t.IsNullable }
func (DecimalType) typeMarker()      {}
func (t DecimalType) String() string { return typeString(t) }
func (t DecimalType) Equal(o Type) bool {
	v, ok := o.(DecimalType)
	return ok && v == t
}

func (t DecimalType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

// StructType is an ordered list of unnamed fields.
type StructType struct {
	Fields     []Type
	IsNullable bool
}

func (StructType) ID() TypeID       { return TypeIDStruct }
func (t StructType) Nullable() bool { return t.IsNullable }
func (StructType) typeMarker()      {}
func (t StructType) String() string { return typeString(t) }

func (t StructType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

func (t StructType) Equal(other Type) bool {
	o, ok := other.(StructType)
	if !ok || o.IsNullable != t.IsNullable {
		return false
	}
	return EqualTypes(t.Fields, o.Fields)
}

// ListType is a variable-length sequence of Element.
type ListType struct {
	Element    Type
	IsNullable bool
}

func (ListType) ID() TypeID       { return TypeIDList }
func (t ListType) Nullable() bool { return t.IsNullable }
func (ListType) typeMarker()      {}
func (t ListType) String() string { return typeString(t) }

func (t ListType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

func (t ListType) Equal(other Type) bool {
	o, ok := other.(ListType)
	return ok && o.IsNullable == t.IsNullable && t.Element.Equal(o.Element)
}

// MapType is an unordered association from Key to Value.
type MapType struct {
	Key        Type
	Value      Type
	IsNullable bool
}

func (MapType) ID() TypeID       { return TypeIDMap }
func (t MapType) Nullable() bool { return t.IsNullable }
func (MapType) typeMarker()      {}
func (t MapType) String() string { return typeString(t) }

func (t MapType) WithNullability(nullable bool) Type {
	t.IsNullable = nullable
	return t
}

func (t MapType) Equal(other Type) bool {
	o, ok := other.(MapType)
	return ok && o.IsNullable == t.IsNullable && t.Key.Equal(o.Key) && t.Value.Equal(o.Value)
}

// typeString renders t through the string visitor; it cannot fail for well-formed types.
func typeString(t Type) string {
	s, err := Visit[string](t, stringVisitor{})
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return s
}
