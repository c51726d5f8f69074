package expression

import (
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/leadmill/leadmill/pkg/models"
)

// ExprEngine compiles and caches expr-lang programs for free-form
// condition expressions. Unlike structured conditions, a broken expr
// program is an error, not a false result: these are authored by hand
// and a failure is a bug that must surface.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine creates an engine with an empty program cache.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{cache: make(map[string]*vm.Program)}
}

// Evaluate runs an expression against a lead record plus trigger data and
// returns its boolean result. The injected now is exposed as `now` in the
// environment so expressions stay deterministic under test.
func (e *ExprEngine) Evaluate(expression string, record models.LeadRecord, data map[string]any, now time.Time) (bool, error) {
	env := map[string]any{
		"lead":    map[string]any(record),
		"trigger": data,
		"now":     now,
	}

	program, err := e.program(expression)
	if err != nil {
		return false, fmt.Errorf("compile expression: %w", err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("run expression: %w", err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expression, output)
	}

	return result, nil
}

func (e *ExprEngine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok = e.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, err
	}

	e.cache[expression] = program

	return program, nil
}

// Evaluator routes condition specs to the structured evaluator or the
// expr engine, depending on the condition's language.
type Evaluator struct {
	exprs *ExprEngine
}

func NewEvaluator() *Evaluator {
	return &Evaluator{exprs: NewExprEngine()}
}

// Evaluate evaluates a condition spec against a lead record. Structured
// specs never fail; expr specs may return an evaluation error.
func (e *Evaluator) Evaluate(spec *models.ConditionSpec, record models.LeadRecord, data map[string]any, now time.Time) (bool, error) {
	if spec == nil {
		return true, nil
	}

	switch spec.Language {
	case models.LanguageStructured, "":
		if spec.Group == nil {
			return true, nil
		}

		return EvaluateGroup(spec.Group, record, now), nil
	case models.LanguageExpr:
		return e.exprs.Evaluate(spec.Expression, record, data, now)
	default:
		return false, fmt.Errorf("unknown condition language %q", string(spec.Language))
	}
}
