package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/expr"
)

// ProjectVec materializes one output column per expression over each input
// chunk.
type ProjectVec struct {
	child PhysicalOperator
	exprs []expr.Expression
	names []string
	input *chunk.Chunk
}

// NewProjectVec builds a projection; names supply the output header.
func NewProjectVec(child PhysicalOperator, exprs []expr.Expression, names []string) *ProjectVec {
	return &ProjectVec{child: child, exprs: exprs, names: names, input: chunk.NewChunk()}
}

// Names returns the output column headers.
func (p *ProjectVec) Names() []string { return p.names }

// Exprs returns the projected expressions.
func (p *ProjectVec) Exprs() []expr.Expression { return p.exprs }

// Open forwards to the child.
func (p *ProjectVec) Open(ctx *Context) error { return p.child.Open(ctx) }

// Next evaluates every expression over the child's next chunk.
func (p *ProjectVec) Next(ck *chunk.Chunk) error {
	p.input.Reset()
	if err := p.child.Next(p.input); err != nil {
		return err
	}
	ck.Reset()
	for i, e := range p.exprs {
		col := &chunk.Column{}
		if err := e.GetColumn(p.input, col); err != nil {
			return err
		}
		ck.AddColumn(col, i)
	}
	return nil
}

// Close forwards to the child.
func (p *ProjectVec) Close() error { return p.child.Close() }
