package persist

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-mutable/pkg/activity"
	"github.com/goliatone/go-mutable/rules"
)

// Option configures a Session.
type Option func(*sessionConfig)

type guard struct {
	attribute string
	expr      string
}

type sessionConfig struct {
	logger    FlushLogger
	hooks     activity.Hooks
	channel   string
	actorID   string
	tenantID  string
	validate  *validator.Validate
	evaluator rules.Evaluator
	checker   *rules.Checker
	guards    []guard
	clock     func() time.Time
	defaults  bool
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		logger:   noopFlushLogger{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger records every flushed attribute.
func WithLogger(logger FlushLogger) Option {
	return func(cfg *sessionConfig) {
		if logger == nil {
			cfg.logger = noopFlushLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks emits created/updated/deleted events after each write.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *sessionConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *sessionConfig) {
		cfg.channel = channel
	}
}

// WithActor stamps emitted events with the acting user and tenant.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *sessionConfig) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithValidator replaces the struct validator. Nil disables tag validation;
// values implementing Validate() error are still checked.
func WithValidator(v *validator.Validate) Option {
	return func(cfg *sessionConfig) {
		cfg.validate = v
	}
}

// WithGuard adds a boolean expression every flushed value of attribute must
// satisfy. An empty attribute applies the guard to all attributes.
func WithGuard(attribute, expr string) Option {
	return func(cfg *sessionConfig) {
		cfg.guards = append(cfg.guards, guard{attribute: attribute, expr: expr})
	}
}

// WithEvaluator selects the engine used for guards. Defaults to expr.
func WithEvaluator(evaluator rules.Evaluator) Option {
	return func(cfg *sessionConfig) {
		cfg.evaluator = evaluator
	}
}

// WithChecker supplies a preconfigured guard checker. It takes precedence
// over WithEvaluator.
func WithChecker(checker *rules.Checker) Option {
	return func(cfg *sessionConfig) {
		cfg.checker = checker
	}
}

// WithClock overrides the time source used for UpdatedAt and guard `now`.
func WithClock(clock func() time.Time) Option {
	return func(cfg *sessionConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithDefault resets nil columns to their empty value when they are
// attached, mirroring a column default.
func WithDefault() Option {
	return func(cfg *sessionConfig) {
		cfg.defaults = true
	}
}
