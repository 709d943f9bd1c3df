package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// LimitVec forwards at most n rows, truncating the last forwarded chunk.
type LimitVec struct {
	child PhysicalOperator
	n     int
}

// NewLimitVec builds the operator.
func NewLimitVec(child PhysicalOperator, n int) *LimitVec {
	return &LimitVec{child: child, n: n}
}

// Open forwards to the child.
func (l *LimitVec) Open(ctx *Context) error { return l.child.Open(ctx) }

// Next passes chunks through until the budget runs out.
func (l *LimitVec) Next(ck *chunk.Chunk) error {
	if l.n == 0 {
		return rc.EOF()
	}
	if err := l.child.Next(ck); err != nil {
		return err
	}
	if l.n >= ck.Rows() {
		l.n -= ck.Rows()
		return nil
	}
	for i := 0; i < ck.ColumnNum(); i++ {
		ck.Column(i).Limit(l.n)
	}
	l.n = 0
	return nil
}

// Close forwards to the child.
func (l *LimitVec) Close() error { return l.child.Close() }
