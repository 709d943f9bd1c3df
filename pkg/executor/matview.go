package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/rc"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// CreateMaterializedViewVec pipes its child's output into a new PAX table.
// The view's schema is inferred from the first chunk; when the child is empty
// the columns fall back to 4-byte ints under the same names. The operator
// itself produces no visible tuples.
type CreateMaterializedViewVec struct {
	child       PhysicalOperator
	viewName    string
	sourceTable string
	colNames    []string
}

// NewCreateMaterializedViewVec builds the operator. colNames supply the view's
// attribute names, one per child output column.
func NewCreateMaterializedViewVec(child PhysicalOperator, viewName, sourceTable string,
	colNames []string) *CreateMaterializedViewVec {
	return &CreateMaterializedViewVec{
		child:       child,
		viewName:    viewName,
		sourceTable: sourceTable,
		colNames:    colNames,
	}
}

// Open runs the whole pipe: infer the schema, create the table, insert every
// chunk.
func (m *CreateMaterializedViewVec) Open(ctx *Context) error {
	if err := m.child.Open(ctx); err != nil {
		return err
	}
	first := chunk.NewChunk()
	err := m.child.Next(first)
	if err != nil && !rc.IsEOF(err) {
		return err
	}

	attrs := make([]core.AttrInfo, len(m.colNames))
	if rc.IsEOF(err) {
		for i, name := range m.colNames {
			attrs[i] = core.AttrInfo{Name: name, Type: types.Ints, Len: 4}
		}
	} else {
		if first.ColumnNum() != len(m.colNames) {
			return rc.Errorf(rc.Internal, "view %s: %d names for %d columns", m.viewName, len(m.colNames), first.ColumnNum())
		}
		for i, name := range m.colNames {
			attrs[i] = core.AttrInfo{
				Name: name,
				Type: first.Column(i).AttrType(),
				Len:  first.Column(i).AttrLen(),
			}
		}
	}

	table, createErr := ctx.DB.CreateTable(m.viewName, attrs, pax.FormatPAX)
	if createErr != nil {
		return createErr
	}
	if rc.IsEOF(err) {
		return nil
	}

	first.ViewName = m.viewName
	first.SourceTable = m.sourceTable
	if err := table.InsertChunk(first); err != nil {
		return err
	}
	input := chunk.NewChunk()
	for {
		input.Reset()
		err := m.child.Next(input)
		if rc.IsEOF(err) {
			return nil
		}
		if err != nil {
			return err
		}
		input.ViewName = m.viewName
		input.SourceTable = m.sourceTable
		if err := table.InsertChunk(input); err != nil {
			return err
		}
	}
}

// Next reports end-of-stream; the pipe ran during Open.
func (m *CreateMaterializedViewVec) Next(ck *chunk.Chunk) error { return rc.EOF() }

// Close forwards to the child.
func (m *CreateMaterializedViewVec) Close() error { return m.child.Close() }
