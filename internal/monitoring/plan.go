package monitoring

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// PlanNode represents a single step of an optimized plan.
type PlanNode struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Schema      []string `json:"schema,omitempty"`
}

// QueryPlan is a rendered plan: the steps as written, the steps after
// optimization and the rules that fired.
type QueryPlan struct {
	Original   []PlanNode `json:"original"`
	Operations []PlanNode `json:"operations"`
	Rules      []string   `json:"rules,omitempty"`
	Passes     int        `json:"passes"`
}

// PlanBuilder helps construct query plans.
type PlanBuilder struct {
	plan QueryPlan
}

// NewPlanBuilder creates a new plan builder.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{}
}

// AddOriginal records a step of the plan as written.
func (pb *PlanBuilder) AddOriginal(opType, description string) *PlanBuilder {
	pb.plan.Original = append(pb.plan.Original, PlanNode{Type: opType, Description: description})
	return pb
}

// AddOperation records a step of the optimized plan.
func (pb *PlanBuilder) AddOperation(opType, description string, schema []string) *PlanBuilder {
	pb.plan.Operations = append(pb.plan.Operations, PlanNode{
		Type:        opType,
		Description: description,
		Schema:      schema,
	})
	return pb
}

// AddRule records that an optimizer rule rewrote the plan.
func (pb *PlanBuilder) AddRule(name string) *PlanBuilder {
	pb.plan.Rules = append(pb.plan.Rules, name)
	return pb
}

// SetPasses records how many optimizer passes ran.
func (pb *PlanBuilder) SetPasses(n int) *PlanBuilder {
	pb.plan.Passes = n
	return pb
}

// Build constructs and returns the final query plan.
func (pb *PlanBuilder) Build() QueryPlan {
	return pb.plan
}

// ToJSON converts the query plan to JSON format.
func (qp *QueryPlan) ToJSON() ([]byte, error) {
	return json.MarshalIndent(qp, "", "  ")
}

// FromJSON creates a query plan from JSON data.
func (qp *QueryPlan) FromJSON(data []byte) error {
	return json.Unmarshal(data, qp)
}

// GetOperationCount returns the number of optimized steps.
func (qp *QueryPlan) GetOperationCount() int {
	return len(qp.Operations)
}

// String renders the optimized plan one step per line, source last.
func (qp *QueryPlan) String() string {
	var b strings.Builder
	for i := len(qp.Operations) - 1; i >= 0; i-- {
		depth := len(qp.Operations) - 1 - i
		op := qp.Operations[i]
		fmt.Fprintf(&b, "%s%s %s\n", strings.Repeat("  ", depth), op.Type, op.Description)
	}
	if len(qp.Rules) > 0 {
		fmt.Fprintf(&b, "optimizations: %s (%d passes)\n", strings.Join(qp.Rules, ", "), qp.Passes)
	}
	return b.String()
}
