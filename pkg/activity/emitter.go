package activity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "mutable"

// Config controls activity emission defaults. ActorID and TenantID fill in
// events whose input leaves them empty. Clock stamps events without a time.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
	Clock    func() time.Time
}

// Emitter turns persisted attribute changes into events for its hooks.
type Emitter struct {
	hooks    Hooks
	enabled  bool
	channel  string
	actorID  string
	tenantID string
	clock    func() time.Time
}

// NewEmitter constructs an emitter from hooks and configuration. Nil hooks
// are dropped.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	var kept Hooks
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Emitter{
		hooks:    kept,
		enabled:  cfg.Enabled && len(kept) > 0,
		channel:  channel,
		actorID:  strings.TrimSpace(cfg.ActorID),
		tenantID: strings.TrimSpace(cfg.TenantID),
		clock:    clock,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Change builds the event for a created, updated or deleted attribute and
// forwards it. Unknown verbs are rejected even when emission is disabled.
func (e *Emitter) Change(ctx context.Context, verb string, input ChangeInput) error {
	var build func(ChangeInput) Event
	switch verb {
	case VerbCreated:
		build = BuildCreatedEvent
	case VerbUpdated:
		build = BuildUpdatedEvent
	case VerbDeleted:
		build = BuildDeletedEvent
	default:
		return fmt.Errorf("activity: unknown change verb %q", verb)
	}
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(input.ActorID) == "" {
		input.ActorID = e.actorID
	}
	if strings.TrimSpace(input.TenantID) == "" {
		input.TenantID = e.tenantID
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = e.clock()
	}
	return e.Emit(ctx, build(input))
}

// Emit forwards a prepared event, applying the default channel when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}
