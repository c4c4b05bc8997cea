package reorder

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"pharmstock/internal/core/apperror"
)

// Filter is a compiled CEL predicate over recommendation fields. It lets
// operators narrow a run ("priority == 'CRITICAL'", "estimated_cost < 500.0")
// without code changes.
type Filter struct {
	expr    string
	program cel.Program
}

// filterEnv declares the variables a filter expression may reference.
func filterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("priority", cel.StringType),
		cel.Variable("abc_class", cel.StringType),
		cel.Variable("days_of_supply", cel.DoubleType),
		cel.Variable("current_stock", cel.DoubleType),
		cel.Variable("recommended_qty", cel.IntType),
		cel.Variable("estimated_cost", cel.DoubleType),
	)
}

// CompileFilter parses and type-checks a filter expression. The expression
// must evaluate to a boolean.
func CompileFilter(expr string) (*Filter, error) {
	env, err := filterEnv()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build filter environment: %w", err))
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation("invalid filter expression").
			WithDetail("expression", expr).
			WithDetail("error", issues.Err().Error())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperror.NewValidation("filter expression must evaluate to a boolean").
			WithDetail("expression", expr).
			WithDetail("type", ast.OutputType().String())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build filter program: %w", err))
	}
	return &Filter{expr: expr, program: program}, nil
}

// Expression returns the source expression.
func (f *Filter) Expression() string {
	return f.expr
}

// Matches evaluates the filter against a single recommendation.
func (f *Filter) Matches(rec Recommendation) (bool, error) {
	cost, _ := rec.EstimatedCost.Float64()
	out, _, err := f.program.Eval(map[string]any{
		"priority":        string(rec.Priority),
		"abc_class":       string(rec.ABCClass),
		"days_of_supply":  rec.DaysOfSupply,
		"current_stock":   rec.CurrentStock.Float64(),
		"recommended_qty": rec.RecommendedQty,
		"estimated_cost":  cost,
	})
	if err != nil {
		return false, apperror.NewValidation("filter evaluation failed").
			WithDetail("expression", f.expr).
			WithDetail("error", err.Error())
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewValidation("filter did not return a boolean").
			WithDetail("expression", f.expr)
	}
	return matched, nil
}

// Apply keeps the recommendations matching the filter, preserving order.
func (f *Filter) Apply(recs []Recommendation) ([]Recommendation, error) {
	kept := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		ok, err := f.Matches(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}
