package pipeline

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/paveg/gibbon/internal/anonymize"
	"github.com/paveg/gibbon/internal/dataframe"
	"github.com/paveg/gibbon/internal/expr"
)

// Build converts the configured tree into an expression.
func (s ExprSpec) Build() (expr.Expr, error) {
	e, err := s.build()
	if err != nil {
		return nil, err
	}
	if s.As == "" {
		return e, nil
	}
	switch x := e.(type) {
	case *expr.AggregationExpr:
		return x.As(s.As), nil
	case *expr.WindowExpr:
		return x.As(s.As), nil
	}
	return expr.Alias(e, s.As), nil
}

func (s ExprSpec) build() (expr.Expr, error) {
	set := 0
	for _, ok := range []bool{s.Col != "", s.Lit != nil, s.Op != "", s.Agg != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("expression needs exactly one of col, lit, op or agg, got %d", set)
	}
	if len(s.Over) > 0 && s.Agg == "" {
		return nil, fmt.Errorf("over applies only to aggregations")
	}

	switch {
	case s.Col != "":
		return expr.Col(s.Col), nil
	case s.Lit != nil:
		v, err := literal(s.Lit)
		if err != nil {
			return nil, err
		}
		return expr.Lit(v), nil
	case s.Op != "":
		op, err := expr.ParseBinaryOp(s.Op)
		if err != nil {
			return nil, err
		}
		if s.Left == nil || s.Right == nil {
			return nil, fmt.Errorf("operator %s needs left and right operands", op)
		}
		left, err := s.Left.Build()
		if err != nil {
			return nil, fmt.Errorf("left of %s: %w", op, err)
		}
		right, err := s.Right.Build()
		if err != nil {
			return nil, fmt.Errorf("right of %s: %w", op, err)
		}
		return expr.Binary(op, left, right), nil
	default:
		aggType, err := expr.ParseAggregation(s.Agg)
		if err != nil {
			return nil, err
		}
		if s.Of == nil {
			return nil, fmt.Errorf("aggregation %s needs an input (of)", aggType)
		}
		input, err := s.Of.Build()
		if err != nil {
			return nil, fmt.Errorf("input of %s: %w", aggType, err)
		}
		agg := expr.Agg(aggType, input)
		if len(s.Over) > 0 {
			return agg.Over(s.Over...), nil
		}
		return agg, nil
	}
}

// literal narrows decoded YAML and JSON scalars to the engine's literal kinds.
func literal(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64, float64, string, bool:
		return x, nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("literal %d overflows int64", x)
		}
		return int64(x), nil
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	}
	return nil, fmt.Errorf("unsupported literal %v of type %T", v, v)
}

// Plan appends the configured steps to a lazy scan of df: filters,
// transform steps, group-by, sort, limit and the final projection.
func (c Config) Plan(df *dataframe.DataFrame) (*dataframe.LazyFrame, error) {
	lf := df.Lazy().WithConfig(c.EngineConfig())

	for i, f := range c.Filters {
		e, err := f.Build()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		lf = lf.Filter(e)
	}

	for i, step := range c.Transforms {
		exprs, err := buildAll(step)
		if err != nil {
			return nil, fmt.Errorf("transform step %d: %w", i, err)
		}
		lf = lf.WithColumns(exprs...)
	}

	if c.GroupBy != nil {
		aggs, err := buildAll(c.GroupBy.Aggs)
		if err != nil {
			return nil, fmt.Errorf("group_by: %w", err)
		}
		lf = lf.GroupBy(c.GroupBy.Keys...).Agg(aggs...)
	}

	if len(c.Sort) > 0 {
		keys := make([]dataframe.SortKey, len(c.Sort))
		for i, s := range c.Sort {
			keys[i] = dataframe.SortKey{Column: s.Column, Descending: s.Descending}
		}
		lf = lf.SortBy(keys...)
	}

	if c.Limit != nil {
		lf = lf.Limit(*c.Limit)
	}

	if len(c.Select) > 0 {
		lf = lf.Select(c.Select...)
	}

	if err := lf.Err(); err != nil {
		return nil, err
	}
	return lf, nil
}

func buildAll(specs []ExprSpec) ([]expr.Expr, error) {
	exprs := make([]expr.Expr, len(specs))
	for i, s := range specs {
		e, err := s.Build()
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", i, err)
		}
		exprs[i] = e
	}
	return exprs, nil
}

// Rules builds every configured anonymization rule.
func (c Config) Rules() ([]anonymize.Rule, error) {
	rules := make([]anonymize.Rule, 0, len(c.Anonymization))
	for i, spec := range c.Anonymization {
		rule, err := spec.Rule()
		if err != nil {
			return nil, fmt.Errorf("anonymization rule %d (%s): %w", i, spec.Column, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// presetKinds maps each preset to the rule type it implies.
var presetKinds = map[string]string{
	"name":    "pseudonymize",
	"email":   "pseudonymize",
	"phone":   "mask",
	"ssn":     "mask",
	"address": "redact",
	"salary":  "bucketize",
}

var kindAliases = map[string]string{
	"hash":   "pseudonymize",
	"bucket": "bucketize",
}

// Rule converts the configured rule into an anonymization rule.
func (r RuleSpec) Rule() (anonymize.Rule, error) {
	if r.Column == "" {
		return nil, fmt.Errorf("rule has no column")
	}
	preset := strings.ToLower(r.Preset)
	kind := strings.ToLower(r.Type)
	if kind == "" {
		kind = presetKinds[preset]
	}
	if canonical, ok := kindAliases[kind]; ok {
		kind = canonical
	}
	if implied, ok := presetKinds[preset]; preset != "" && (!ok || implied != kind) {
		return nil, fmt.Errorf("preset %q does not apply to %q rules", r.Preset, kind)
	}

	switch kind {
	case "pseudonymize":
		return r.pseudonymize(preset)
	case "mask":
		m := anonymize.Mask{Column: r.Column, Pattern: r.Pattern, Rename: r.As}
		if m.Pattern == "" {
			switch preset {
			case "phone":
				m.Pattern = anonymize.PhoneMask
			case "ssn":
				m.Pattern = anonymize.SSNMask
			default:
				return nil, fmt.Errorf("mask needs a pattern or a preset")
			}
		}
		return m, nil
	case "redact":
		return anonymize.Redact{Column: r.Column, Constant: r.Constant, Rename: r.As}, nil
	case "bucketize":
		b := anonymize.Bucketize{Column: r.Column}
		if preset == "salary" {
			b = anonymize.SalaryBuckets(r.Column)
		}
		if r.Floor != "" {
			b.Floor = r.Floor
		}
		if len(r.Boundaries) > 0 {
			b.Boundaries = r.Boundaries
		}
		if len(b.Boundaries) == 0 {
			return nil, fmt.Errorf("bucketize needs boundaries or a preset")
		}
		return b.As(r.As), nil
	case "":
		return nil, fmt.Errorf("rule has no type")
	}
	return nil, fmt.Errorf("unknown rule type %q", r.Type)
}

func (r RuleSpec) pseudonymize(preset string) (anonymize.Rule, error) {
	salt := r.Salt
	if salt == "" && r.SaltEnv != "" {
		salt = os.Getenv(r.SaltEnv)
		if salt == "" {
			return nil, fmt.Errorf("salt variable %s is empty", r.SaltEnv)
		}
	}

	p := anonymize.Pseudonymize{Column: r.Column}
	switch preset {
	case "name":
		p = anonymize.NamePseudonym(r.Column, salt)
	case "email":
		p = anonymize.EmailPseudonym(r.Column, salt)
	}
	p.Salt = salt
	if r.Prefix != "" {
		p.Prefix = r.Prefix
	}
	if r.Suffix != "" {
		p.Suffix = r.Suffix
	}
	if r.Length != 0 {
		p.Length = r.Length
	}
	p.Normalize = p.Normalize || r.Normalize
	return p.As(r.As), nil
}
