package relation

import (
	"slices"

	"github.com/hugr-lab/substrait-go/errdefs"
	"github.com/hugr-lab/substrait-go/expr"
	"github.com/hugr-lab/substrait-go/types"
)

// NamedScan reads a table identified by a qualified name.
type NamedScan struct {
	common
	Names  []string
	Schema types.NamedStruct
}

func NewNamedScan(names []string, schema types.NamedStruct, opts ...Option) (*NamedScan, error) {
	if len(names) == 0 {
		return nil, errdefs.Constructionf("named scan without table name")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	s := &NamedScan{Names: slices.Clone(names), Schema: schema}
	if err := s.init(schema.Fields(), opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *NamedScan) Inputs() []Relation { return nil }

func (s *NamedScan) withInputs([]Relation) (Relation, error) { return s, nil }

func (s *NamedScan) Equal(other expr.Relation) bool {
	o, ok := other.(*NamedScan)
	return ok && slices.Equal(s.Names, o.Names) && s.Schema.Equal(o.Schema) && s.equalCommon(&o.common)
}

// EmptyScan produces no rows of its declared schema.
type EmptyScan struct {
	common
	Schema types.NamedStruct
}

func NewEmptyScan(schema types.NamedStruct, opts ...Option) (*EmptyScan, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	s := &EmptyScan{Schema: schema}
	if err := s.init(schema.Fields(), opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EmptyScan) Inputs() []Relation { return nil }

func (s *EmptyScan) withInputs([]Relation) (Relation, error) { return s, nil }

func (s *EmptyScan) Equal(other expr.Relation) bool {
	o, ok := other.(*EmptyScan)
	return ok && s.Schema.Equal(o.Schema) && s.equalCommon(&o.common)
}

// VirtualTableScan produces inline literal rows. Use EmptyScan for zero rows.
type VirtualTableScan struct {
	common
	Schema types.NamedStruct
	Rows   []*expr.StructLiteral
}

// NewVirtualTableScan checks every row against the schema: same width,
// same field types modulo nullability, and no nullable value in a required
// column.
func NewVirtualTableScan(schema types.NamedStruct, rows []*expr.StructLiteral, opts ...Option) (*VirtualTableScan, error) {
	if len(rows) == 0 {
		return nil, errdefs.Constructionf("virtual table without rows")
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	fields := schema.Fields()
	for i, row := range rows {
		if row == nil || len(row.Fields) != len(fields) {
			return nil, errdefs.Constructionf("virtual table row %d does not have %d fields", i, len(fields))
		}
		for j, f := range row.Fields {
			t := f.Type()
			if !types.EqualIgnoringNullability(t, fields[j]) || (t.Nullable() && !fields[j].Nullable()) {
				return nil, errdefs.Constructionf("virtual table row %d field %d is %s, column is %s", i, j, t, fields[j])
			}
		}
	}
	s := &VirtualTableScan{Schema: schema, Rows: rows}
	if err := s.init(fields, opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *VirtualTableScan) Inputs() []Relation { return nil }

func (s *VirtualTableScan) withInputs([]Relation) (Relation, error) { return s, nil }

func (s *VirtualTableScan) Equal(other expr.Relation) bool {
	o, ok := other.(*VirtualTableScan)
	if !ok || !s.Schema.Equal(o.Schema) || len(s.Rows) != len(o.Rows) || !s.equalCommon(&o.common) {
		return false
	}
	for i := range s.Rows {
		if !s.Rows[i].Equal(o.Rows[i]) {
			return false
		}
	}
	return true
}

// TableDetail describes the source of an ExtensionTable.
type TableDetail interface {
	Payload
	DeriveSchema() (types.NamedStruct, error)
}

// ExtensionTable reads from a source described by a user-defined detail.
type ExtensionTable struct {
	common
	Detail TableDetail
	Schema types.NamedStruct
}

func NewExtensionTable(detail TableDetail, opts ...Option) (*ExtensionTable, error) {
	if detail == nil {
		return nil, errdefs.Constructionf("extension table without detail")
	}
	schema, err := detail.DeriveSchema()
	if err != nil {
		return nil, err
	}
	s := &ExtensionTable{Detail: detail, Schema: schema}
	if err := s.init(schema.Fields(), opts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ExtensionTable) Inputs() []Relation { return nil }

func (s *ExtensionTable) withInputs([]Relation) (Relation, error) { return s, nil }

func (s *ExtensionTable) Equal(other expr.Relation) bool {
	o, ok := other.(*ExtensionTable)
	return ok && equalPayload(s.Detail, o.Detail) && s.Schema.Equal(o.Schema) && s.equalCommon(&o.common)
}
