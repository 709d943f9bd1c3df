// Package plan defines the resolved logical operator tree the core executes.
// Building these trees from SQL text is the Planner's job and stays outside
// the execution core; the frontend is handed a Planner and forwards whatever
// it produces.
package plan

import "github.com/matteoser/PiemonteDB/pkg/expr"

// Node is one logical operator.
type Node interface {
	node()
}

// TableScan reads a base table, optionally with pushed-down predicates.
type TableScan struct {
	Table      string
	Predicates []expr.Expression
}

// Filter drops rows failing its predicates.
type Filter struct {
	Child      Node
	Predicates []expr.Expression
}

// Project computes one output column per expression.
type Project struct {
	Child Node
	Exprs []expr.Expression
	Names []string
}

// GroupBy aggregates over grouping expressions.
type GroupBy struct {
	Child      Node
	GroupExprs []expr.Expression
	Aggregates []*expr.AggregateExpr
}

// OrderBy sorts by its expressions with a per-column direction.
type OrderBy struct {
	Child      Node
	OrderExprs []expr.Expression
	Asc        []bool
}

// Limit forwards at most N rows.
type Limit struct {
	Child Node
	N     int
}

// CreateMaterializedView pipes the child's output into a new PAX table.
type CreateMaterializedView struct {
	Name        string
	SourceTable string
	Child       Node
}

// LoadData bulk-loads a delimited file into a table.
type LoadData struct {
	Table      string
	File       string
	Terminated byte
	Enclosed   byte
}

func (*TableScan) node()              {}
func (*Filter) node()                 {}
func (*Project) node()                {}
func (*GroupBy) node()                {}
func (*OrderBy) node()                {}
func (*Limit) node()                  {}
func (*CreateMaterializedView) node() {}
func (*LoadData) node()               {}

// Planner resolves one SQL statement into a logical tree. Implementations
// live outside the core.
type Planner interface {
	Plan(sql string) (Node, error)
}
