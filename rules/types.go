package rules

import (
	"sort"
	"strings"
	"time"
)

// RuleContext carries the inputs exposed to a guard expression.
//
// Map snapshots expose their keys as top-level variables and every snapshot
// is bound to `value`. Engine builtins win over snapshot keys with the same
// name: under expr a key called `count`, `len` or `filter` still resolves to
// the builtin function. Read such keys through `value`, as in `value.count`,
// or with the path helpers from PathFunctions.
type RuleContext struct {
	// Snapshot is the decoerced value under test.
	Snapshot  any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Attribute string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) attributeLabel() string {
	if ctx.Attribute != "" {
		return ctx.Attribute
	}
	return "unknown"
}

// bindings returns every variable visible to an expression. Snapshot keys
// never shadow the reserved names.
func (ctx RuleContext) bindings() map[string]any {
	ctx = ctx.withDefaults()
	env := map[string]any{}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			env[key] = value
		}
	}
	env["now"] = *ctx.Now
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	env["value"] = ctx.Snapshot
	env["attribute"] = ctx.Attribute
	return env
}

func bindingKey(expression string, env map[string]any) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)
	return expression + "\x00" + strings.Join(names, ",")
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
