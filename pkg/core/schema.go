package core

import (
	"hash/crc32"

	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// FieldMeta describes one attribute of a table.
type FieldMeta struct {
	Name    string         `json:"name"`
	Type    types.AttrType `json:"type"`
	Len     int            `json:"len"`
	FieldID int            `json:"field_id"`
}

// TableMeta describes a table: its attributes in field-id order and the page
// layout its heap uses.
type TableMeta struct {
	Name          string            `json:"name"`
	Fields        []FieldMeta       `json:"fields"`
	StorageFormat pax.StorageFormat `json:"storage_format"`
	IsView        bool              `json:"is_view,omitempty"`
}

// FileID identifies this table's heap in shared log entries. Derived from
// the name so it stays stable across restarts.
func (m *TableMeta) FileID() int32 {
	return int32(crc32.ChecksumIEEE([]byte(m.Name)))
}

// FieldNum returns the number of attributes.
func (m *TableMeta) FieldNum() int { return len(m.Fields) }

// Field returns the attribute at field-id position i.
func (m *TableMeta) Field(i int) *FieldMeta { return &m.Fields[i] }

// FieldByName resolves an attribute by name.
func (m *TableMeta) FieldByName(name string) (*FieldMeta, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// RecordSize returns the unaligned on-page record width.
func (m *TableMeta) RecordSize() int {
	size := 0
	for _, f := range m.Fields {
		size += f.Len
	}
	return size
}

// FieldSpecs projects the metadata slice the page layer consumes.
func (m *TableMeta) FieldSpecs() []pax.FieldSpec {
	specs := make([]pax.FieldSpec, len(m.Fields))
	for i, f := range m.Fields {
		specs[i] = pax.FieldSpec{Type: f.Type, Len: f.Len}
	}
	return specs
}

// Validate checks the metadata invariants: dense field ids and positive
// widths.
func (m *TableMeta) Validate() error {
	if m.Name == "" {
		return rc.New(rc.InvalidArgument, "table name is empty")
	}
	if len(m.Fields) == 0 {
		return rc.Errorf(rc.SchemaFieldMissing, "table %s has no fields", m.Name)
	}
	for i, f := range m.Fields {
		if f.FieldID != i {
			return rc.Errorf(rc.Internal, "table %s: field %s id %d at position %d", m.Name, f.Name, f.FieldID, i)
		}
		width := f.Len
		if fixed := f.Type.FixedLen(); fixed != 0 && width != fixed {
			return rc.Errorf(rc.SchemaFieldTypeMismatch, "table %s: field %s width %d, want %d", m.Name, f.Name, width, fixed)
		}
		if width <= 0 {
			return rc.Errorf(rc.SchemaFieldTypeMismatch, "table %s: field %s has no width", m.Name, f.Name)
		}
	}
	return nil
}

// AttrInfo is the schema element handed in by DDL paths: a name, a type and a
// declared length (meaningful for chars).
type AttrInfo struct {
	Name string         `json:"name"`
	Type types.AttrType `json:"type"`
	Len  int            `json:"len"`
}

// NewTableMeta builds and validates metadata from attribute declarations.
func NewTableMeta(name string, attrs []AttrInfo, format pax.StorageFormat) (*TableMeta, error) {
	meta := &TableMeta{Name: name, StorageFormat: format}
	for i, attr := range attrs {
		width := attr.Len
		if fixed := attr.Type.FixedLen(); fixed != 0 {
			width = fixed
		}
		meta.Fields = append(meta.Fields, FieldMeta{
			Name:    attr.Name,
			Type:    attr.Type,
			Len:     width,
			FieldID: i,
		})
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}
