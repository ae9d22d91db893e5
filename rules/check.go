package rules

import (
	"fmt"
	"time"

	"github.com/goliatone/go-mutable/internal/hydrate"
)

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithEvaluator selects the engine. A nil evaluator keeps the expr default.
func WithEvaluator(evaluator Evaluator) CheckerOption {
	return func(c *Checker) {
		if evaluator != nil {
			c.evaluator = evaluator
		}
	}
}

// WithLogger attaches an evaluation logger.
func WithLogger(logger EvaluatorLogger) CheckerOption {
	return func(c *Checker) {
		if logger == nil {
			c.logger = noopEvaluatorLogger{}
			return
		}
		c.logger = logger
	}
}

// Checker evaluates boolean guards against value snapshots.
type Checker struct {
	evaluator Evaluator
	logger    EvaluatorLogger
}

// NewChecker builds a Checker backed by the expr engine unless another
// evaluator is supplied.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{logger: noopEvaluatorLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.evaluator == nil {
		c.evaluator = NewExprEvaluator()
	}
	return c
}

// Engine reports the name of the configured evaluator.
func (c *Checker) Engine() string {
	return EngineName(c.evaluator)
}

// Check evaluates expr with ctx.Snapshot reduced to JSON shapes. The guard
// passes only when the expression yields boolean true.
func (c *Checker) Check(ctx RuleContext, expr string) (bool, error) {
	engine := c.Engine()
	if expr == "" {
		return false, wrapEvaluatorError(engine, ErrEmptyExpression)
	}
	snapshot, err := hydrate.Normalize(ctx.Snapshot)
	if err != nil {
		return false, wrapEvaluationError(engine, expr, ctx.attributeLabel(), err)
	}
	ctx.Snapshot = snapshot

	start := time.Now()
	value, evalErr := c.evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)

	passed := false
	if evalErr == nil {
		result, ok := value.(bool)
		if !ok {
			evalErr = fmt.Errorf("%w: got %T", ErrNotBoolean, value)
		}
		passed = result
	}
	evalErr = wrapEvaluationError(engine, expr, ctx.attributeLabel(), evalErr)
	c.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:    engine,
		Expr:      expr,
		Attribute: ctx.attributeLabel(),
		Result:    value,
		Duration:  duration,
		Err:       evalErr,
	})
	if evalErr != nil {
		return false, evalErr
	}
	return passed, nil
}

// EngineName reports "expr", "cel", "js" for the built-in evaluators and
// "custom" otherwise.
func EngineName(e Evaluator) string {
	if named, ok := e.(interface{ engine() string }); ok {
		return named.engine()
	}
	if e == nil {
		return "unknown"
	}
	return "custom"
}
