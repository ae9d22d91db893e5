//go:build !js_eval

package rules

// NewJSEvaluator is unavailable without the js_eval build tag and returns nil.
func NewJSEvaluator(...EngineOption) Evaluator {
	return nil
}

// JSAvailable reports whether the binary was built with the JS engine.
func JSAvailable() bool {
	return false
}
