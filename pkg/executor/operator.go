package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/chunk"
	"github.com/matteoser/PiemonteDB/pkg/core"
)

// Context carries what operators need at runtime. One context serves one
// statement; operators run single-threaded within it.
type Context struct {
	DB *core.Database
}

// PhysicalOperator is the lifecycle every vectorized operator implements:
// Open once, Next until RECORD_EOF, Close always. Each operator owns its
// children and forwards the lifecycle to them.
type PhysicalOperator interface {
	Open(ctx *Context) error
	Next(ck *chunk.Chunk) error
	Close() error
}
