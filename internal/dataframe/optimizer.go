package dataframe

import (
	"slices"

	"github.com/paveg/gibbon/internal/config"
	"github.com/paveg/gibbon/internal/expr"
	"github.com/paveg/gibbon/internal/series"
)

// OptimizationRule rewrites a plan. Apply must not modify its argument; it
// returns the rewritten plan and whether anything changed.
type OptimizationRule interface {
	Name() string
	Apply(nodes []PlanNode, schemas []series.Schema) ([]PlanNode, bool)
}

// OptimizeResult is the outcome of one optimization run.
type OptimizeResult struct {
	Nodes  []PlanNode
	Rules  []string // names of rules in the order they fired
	Passes int
}

// QueryOptimizer applies rewrite rules until none fires or the pass bound is hit.
type QueryOptimizer struct {
	rules     []OptimizationRule
	maxPasses int
}

// NewQueryOptimizer creates an optimizer with the rules enabled in cfg.
func NewQueryOptimizer(cfg config.Config) *QueryOptimizer {
	var rules []OptimizationRule
	if cfg.FilterFusion {
		rules = append(rules, &FilterFusionRule{})
	}
	if cfg.PredicatePushdown {
		rules = append(rules, &PredicatePushdownRule{})
	}
	if cfg.ProjectionPruning {
		rules = append(rules, &ProjectionPruningRule{})
	}
	return &QueryOptimizer{
		rules:     rules,
		maxPasses: max(cfg.MaxOptimizerPasses, 1),
	}
}

// Optimize rewrites a resolved plan. A plan that fails to resolve is
// returned unchanged; execution reports the error.
func (qo *QueryOptimizer) Optimize(nodes []PlanNode) OptimizeResult {
	result := OptimizeResult{Nodes: nodes}
	if len(qo.rules) == 0 {
		return result
	}
	for result.Passes < qo.maxPasses {
		result.Passes++
		changed := false
		for _, rule := range qo.rules {
			schemas, err := planSchemas(result.Nodes)
			if err != nil {
				return result
			}
			next, ok := rule.Apply(result.Nodes, schemas)
			if ok {
				result.Nodes = next
				result.Rules = append(result.Rules, rule.Name())
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result
}

// FilterFusionRule merges two adjacent filters into one filter on (a AND b).
// The later predicate then sees rows the earlier one used to remove, so the
// rule only fires when that predicate cannot fail. Numeric predicates are
// left alone because AND needs bool operands.
type FilterFusionRule struct{}

func (r *FilterFusionRule) Name() string { return "FilterFusion" }

func (r *FilterFusionRule) Apply(nodes []PlanNode, schemas []series.Schema) ([]PlanNode, bool) {
	for i := 1; i+1 < len(nodes); i++ {
		first, ok := nodes[i].(*FilterNode)
		if !ok {
			continue
		}
		second, ok := nodes[i+1].(*FilterNode)
		if !ok {
			continue
		}
		input := schemas[i-1]
		if !isBoolPredicate(first.predicate, input) || !isBoolPredicate(second.predicate, input) {
			continue
		}
		if expr.IsFallible(second.predicate, input) {
			continue
		}
		fused := &FilterNode{predicate: expr.And(first.predicate, second.predicate)}
		out := make([]PlanNode, 0, len(nodes)-1)
		out = append(out, nodes[:i]...)
		out = append(out, fused)
		out = append(out, nodes[i+2:]...)
		return out, true
	}
	return nodes, false
}

func isBoolPredicate(e expr.Expr, schema series.Schema) bool {
	field, err := expr.Resolve(e, schema)
	return err == nil && field.Dtype == series.Bool
}

// PredicatePushdownRule moves a filter one step toward the scan when the
// result and the set of failing rows stay the same. It never crosses a Limit
// or another Filter.
type PredicatePushdownRule struct{}

func (r *PredicatePushdownRule) Name() string { return "PredicatePushdown" }

func (r *PredicatePushdownRule) Apply(nodes []PlanNode, schemas []series.Schema) ([]PlanNode, bool) {
	for i := 2; i < len(nodes); i++ {
		filter, ok := nodes[i].(*FilterNode)
		if !ok {
			continue
		}
		// schemas[i-2] is the input of the node the filter would cross.
		if !canPushPast(filter, nodes[i-1], schemas[i-2]) {
			continue
		}
		out := slices.Clone(nodes)
		out[i-1], out[i] = out[i], out[i-1]
		return out, true
	}
	return nodes, false
}

func canPushPast(filter *FilterNode, node PlanNode, input series.Schema) bool {
	refs := expr.Columns(filter.predicate)
	switch n := node.(type) {
	case *WithColumnsNode:
		// Window values depend on every row of the partition.
		if n.hasWindow() || anyFallible(n.exprs, input) {
			return false
		}
		outputs := outputNames(n.exprs)
		for _, ref := range refs {
			if slices.Contains(outputs, ref) {
				return false
			}
		}
		return true

	case *SortNode:
		// A failing row would be reported at its pre-sort position.
		return !expr.IsFallible(filter.predicate, input)

	case *ProjectNode:
		// Pure column selections stay put so pruning and pushdown cannot
		// keep swapping the same two nodes.
		if n.passThrough() || anyFallible(n.exprs, input) {
			return false
		}
		for _, ref := range refs {
			if !passesThrough(n.exprs, ref) {
				return false
			}
		}
		return true

	case *GroupByAggNode:
		if len(n.keys) == 0 || anyFallible(n.aggs, input) || expr.IsFallible(filter.predicate, input) {
			return false
		}
		for _, ref := range refs {
			if !slices.Contains(n.keys, ref) {
				return false
			}
		}
		return true
	}
	return false
}

// passesThrough reports whether name is produced by an unaliased reference
// to the input column of the same name.
func passesThrough(exprs []expr.Expr, name string) bool {
	for _, e := range exprs {
		if col, ok := e.(*expr.ColumnExpr); ok && col.Name() == name {
			return true
		}
	}
	return false
}

// ProjectionPruningRule drops computed columns nothing downstream reads and
// narrows the scan to the source columns the plan needs. Outputs that can
// fail are kept so pruning never hides an error.
type ProjectionPruningRule struct{}

func (r *ProjectionPruningRule) Name() string { return "ProjectionPruning" }

func (r *ProjectionPruningRule) Apply(nodes []PlanNode, schemas []series.Schema) ([]PlanNode, bool) {
	out := slices.Clone(nodes)
	changed := false

	last := len(out) - 1
	required := make(map[string]bool)
	for _, name := range schemas[last].Names() {
		required[name] = true
	}

	for i := last; i >= 1; i-- {
		switch n := out[i].(type) {
		case *FilterNode:
			addAll(required, expr.Columns(n.predicate))
		case *SortNode:
			for _, k := range n.keys {
				required[k.Column] = true
			}
		case *ProjectNode:
			if i == 1 && n.passThrough() {
				// Handled below as the scan projection.
				continue
			}
			clear(required)
			for _, e := range n.exprs {
				addAll(required, expr.Columns(e))
			}
		case *GroupByAggNode:
			clear(required)
			addAll(required, n.keys)
			for _, e := range n.aggs {
				addAll(required, expr.Columns(e))
			}
		case *WithColumnsNode:
			input := schemas[i-1]
			kept := make([]expr.Expr, 0, len(n.exprs))
			for _, e := range n.exprs {
				if required[expr.OutputName(e)] || expr.IsFallible(e, input) {
					kept = append(kept, e)
				}
			}
			for _, name := range outputNames(n.exprs) {
				delete(required, name)
			}
			for _, e := range kept {
				addAll(required, expr.Columns(e))
			}
			if len(kept) < len(n.exprs) {
				changed = true
				if len(kept) == 0 {
					out = slices.Delete(out, i, i+1)
				} else {
					out[i] = &WithColumnsNode{exprs: kept}
				}
			}
		}
	}

	if scan, ok := r.scanProjection(out, schemas[0], required); ok {
		if len(out) > 1 && isPassThroughProject(out[1]) {
			out[1] = scan
		} else {
			out = slices.Insert(out, 1, PlanNode(scan))
		}
		changed = true
	}

	if !changed {
		return nodes, false
	}
	return out, true
}

// scanProjection returns the pass-through projection that should follow the
// scan, or false when the current plan already reads no more than it needs.
func (r *ProjectionPruningRule) scanProjection(nodes []PlanNode, source series.Schema, required map[string]bool) (*ProjectNode, bool) {
	var current []string
	if len(nodes) > 1 && isPassThroughProject(nodes[1]) {
		// An existing selection keeps its own column order.
		current = outputNames(nodes[1].(*ProjectNode).exprs)
		if len(nodes) == 2 {
			return nil, false
		}
	} else {
		current = source.Names()
	}

	var needed []string
	for _, name := range current {
		if required[name] {
			needed = append(needed, name)
		}
	}
	// A frame without columns has no rows, so at least one column stays.
	if len(needed) == 0 || len(needed) == len(current) {
		return nil, false
	}

	exprs := make([]expr.Expr, len(needed))
	for i, name := range needed {
		exprs[i] = expr.Col(name)
	}
	return &ProjectNode{exprs: exprs}, true
}

func isPassThroughProject(node PlanNode) bool {
	p, ok := node.(*ProjectNode)
	return ok && p.passThrough()
}

func addAll(set map[string]bool, names []string) {
	for _, name := range names {
		set[name] = true
	}
}
