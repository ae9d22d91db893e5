package rules

// EngineOption configures the built-in evaluators. The same options apply to
// the expr, CEL and JS engines.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache reuses compiled programs across evaluations. Keys are
// prefixed with the engine name so one cache can serve several engines.
func WithProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctions exposes the helpers in registry to expressions. The registry
// is copied; later registrations are not seen by the evaluator.
func WithFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg engineConfig) cacheGet(engine, key string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(engine + ":" + key)
}

func (cfg engineConfig) cacheSet(engine, key string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(engine+":"+key, program)
	}
}
