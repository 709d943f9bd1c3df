package executor

import (
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/expr"
	"github.com/matteoser/PiemonteDB/pkg/plan"
	"github.com/matteoser/PiemonteDB/pkg/rc"
)

// Generate lowers a logical tree into vectorized physical operators. Along
// the way it pushes filter predicates into table scans, rewrites
// order-by-count-desc-limit over a group-by into the fused top-N operator,
// and binds expressions above a group-by to the positions the group-by
// produces.
func Generate(db *core.Database, node plan.Node) (PhysicalOperator, error) {
	switch n := node.(type) {
	case *plan.TableScan:
		return generateScan(db, n, nil)

	case *plan.Filter:
		if scan, ok := n.Child.(*plan.TableScan); ok {
			return generateScan(db, scan, n.Predicates)
		}
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		return NewFilterVec(child, n.Predicates), nil

	case *plan.Project:
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		if gb := groupByBelow(n.Child); gb != nil {
			bindToGroupBy(n.Exprs, gb)
		}
		return NewProjectVec(child, n.Exprs, n.Names), nil

	case *plan.GroupBy:
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		return NewGroupByVec(child, n.GroupExprs, n.Aggregates), nil

	case *plan.OrderBy:
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		if gb := groupByBelow(n.Child); gb != nil {
			bindToGroupBy(n.OrderExprs, gb)
		}
		return NewOrderByVec(child, n.OrderExprs, n.Asc), nil

	case *plan.Limit:
		if orderBy, ok := n.Child.(*plan.OrderBy); ok {
			if fused, err := tryFuseTopN(db, orderBy, n.N); fused != nil || err != nil {
				return fused, err
			}
			child, err := Generate(db, orderBy.Child)
			if err != nil {
				return nil, err
			}
			if gb := groupByBelow(orderBy.Child); gb != nil {
				bindToGroupBy(orderBy.OrderExprs, gb)
			}
			return NewOrderByLimitVec(child, orderBy.OrderExprs, orderBy.Asc, n.N), nil
		}
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		return NewLimitVec(child, n.N), nil

	case *plan.CreateMaterializedView:
		child, err := Generate(db, n.Child)
		if err != nil {
			return nil, err
		}
		names := outputNames(n.Child)
		return NewCreateMaterializedViewVec(child, n.Name, n.SourceTable, names), nil

	case *plan.LoadData:
		return nil, rc.New(rc.Internal, "load data is executed by the frontend, not the operator tree")
	}
	return nil, rc.Errorf(rc.Unimplemented, "logical operator %T", node)
}

func generateScan(db *core.Database, n *plan.TableScan, pushed []expr.Expression) (PhysicalOperator, error) {
	table, ok := db.FindTable(n.Table)
	if !ok {
		return nil, rc.Errorf(rc.RecordNotExist, "table %s does not exist", n.Table)
	}
	scan := NewTableScanVec(table, nil)
	predicates := append([]expr.Expression{}, n.Predicates...)
	predicates = append(predicates, pushed...)
	scan.SetPredicates(predicates)
	return scan, nil
}

// groupByBelow finds the group-by whose output shape flows through node, if
// any; order-by and limit preserve column positions.
func groupByBelow(node plan.Node) *plan.GroupBy {
	switch n := node.(type) {
	case *plan.GroupBy:
		return n
	case *plan.OrderBy:
		return groupByBelow(n.Child)
	case *plan.Limit:
		return groupByBelow(n.Child)
	}
	return nil
}

// bindToGroupBy points field and aggregate expressions at the output
// positions a group-by produces: keys first, aggregates after.
func bindToGroupBy(exprs []expr.Expression, gb *plan.GroupBy) {
	for _, e := range exprs {
		switch typed := e.(type) {
		case *expr.AggregateExpr:
			for i, a := range gb.Aggregates {
				if a == typed {
					typed.Pos = len(gb.GroupExprs) + i
					break
				}
			}
		case *expr.FieldExpr:
			for i, g := range gb.GroupExprs {
				if field, ok := g.(*expr.FieldExpr); ok && field.FieldID == typed.FieldID {
					typed.Pos = i
					break
				}
			}
		}
	}
}

// tryFuseTopN recognizes limit(order by count desc(group by ...)) and builds
// the fused operator. It returns (nil, nil) when the pattern or the key shape
// does not fit, letting the caller fall back to the generic pipeline.
func tryFuseTopN(db *core.Database, orderBy *plan.OrderBy, n int) (PhysicalOperator, error) {
	gb, ok := orderBy.Child.(*plan.GroupBy)
	if !ok {
		return nil, nil
	}
	if len(orderBy.OrderExprs) != 1 || orderBy.Asc[0] {
		return nil, nil
	}
	agg, ok := orderBy.OrderExprs[0].(*expr.AggregateExpr)
	if !ok || agg.Kind != expr.AggrCount {
		return nil, nil
	}
	found := false
	for _, a := range gb.Aggregates {
		if a == agg {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}
	child, err := Generate(db, gb.Child)
	if err != nil {
		return nil, err
	}
	fused, err := NewGroupByTopNVec(child, gb.GroupExprs, gb.Aggregates, n)
	if err != nil {
		// Key shape outside the specialized table; use the generic pipeline.
		return nil, nil
	}
	return fused, nil
}

// outputNames derives attribute names for a materialized view from the plan
// below it.
func outputNames(node plan.Node) []string {
	if project, ok := node.(*plan.Project); ok {
		return project.Names
	}
	return nil
}

// OutputSchema walks the physical tree for the projection headers the
// frontend prints.
func OutputSchema(op PhysicalOperator) []string {
	switch typed := op.(type) {
	case *ProjectVec:
		return typed.Names()
	case *FilterVec:
		return OutputSchema(typed.child)
	case *LimitVec:
		return OutputSchema(typed.child)
	case *OrderByVec:
		return OutputSchema(typed.child)
	case *OrderByLimitVec:
		return OutputSchema(typed.child)
	}
	return nil
}
