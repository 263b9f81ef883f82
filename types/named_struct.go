package types

import (
	"github.com/hugr-lab/substrait-go/errdefs"
)

// NamedStruct is a record schema: a required struct plus field names listed
// depth-first, including the fields of nested structs.
type NamedStruct struct {
	Names  []string
	Struct StructType
}

// NewNamedStruct validates that names cover every field depth-first.
func NewNamedStruct(names []string, st StructType) (NamedStruct, error) {
	ns := NamedStruct{Names: names, Struct: st}
	if err := ns.Validate(); err != nil {
		return NamedStruct{}, err
	}
	return ns, nil
}

// Validate checks a schema built as a struct literal the way NewNamedStruct does.
func (ns NamedStruct) Validate() error {
	if want := CountNames(ns.Struct); want != len(ns.Names) {
		return errdefs.Constructionf("schema has %d names for %d (nested) fields", len(ns.Names), want)
	}
	return nil
}

// Fields returns the top-level field types.
func (ns NamedStruct) Fields() []Type {
	return ns.Struct.Fields
}

// TopLevelNames returns the name of each top-level field, skipping nested names.
func (ns NamedStruct) TopLevelNames() []string {
	out := make([]string, 0, len(ns.Struct.Fields))
	i := 0
	for _, f := range ns.Struct.Fields {
		if i < len(ns.Names) {
			out = append(out, ns.Names[i])
		}
		i += 1 + countNested(f)
	}
	return out
}

// Equal compares names and struct type.
func (ns NamedStruct) Equal(other NamedStruct) bool {
	if len(ns.Names) != len(other.Names) {
		return false
	}
	for i := range ns.Names {
		if ns.Names[i] != other.Names[i] {
			return false
		}
	}
	return ns.Struct.Equal(other.Struct)
}

// CountNames returns the number of names a schema over st must carry.
func CountNames(st StructType) int {
	n := 0
	for _, f := range st.Fields {
		n += 1 + countNested(f)
	}
	return n
}

// CountFieldNames returns the names needed for a flat list of top-level field types.
func CountFieldNames(fields []Type) int {
	return CountNames(StructType{Fields: fields})
}

func countNested(t Type) int {
	switch t := t.(type) {
	case StructType:
		return CountNames(t)
	case ListType:
		return countNested(t.Element)
	case MapType:
		return countNested(t.Key) + countNested(t.Value)
	}
	return 0
}
