package activity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// Event describes one persisted change of a tracked attribute. IDs are
// strings so call sites do not depend on a UUID type.
type Event struct {
	Verb     string
	ActorID  string
	UserID   string
	TenantID string
	// ObjectType and ObjectID name the entity that owns the attribute.
	ObjectType string
	ObjectID   string
	Attribute  string
	// Paths lists where the attribute changed, in mutable.Describe notation.
	// The empty path stands for the whole value. Creates and deletes carry
	// no paths.
	Paths      []string
	Revision   Revision
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Revision identifies the stored revision an event refers to.
type Revision struct {
	SnapshotID   string
	ETag         string
	PreviousETag string
	Codec        string
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and forwards it to every hook. Events that do
// not name a verb, an entity and an attribute are dropped. Hook errors are
// joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !Routable(normalized) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Routable reports whether a normalized event identifies the attribute it
// describes.
func Routable(event Event) bool {
	return event.Verb != "" && event.ObjectType != "" && event.ObjectID != "" && event.Attribute != ""
}

// NormalizeEvent trims identifiers, sorts and dedupes paths, copies metadata
// and defaults the timestamp.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.TrimSpace(event.Verb)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.UserID = strings.TrimSpace(event.UserID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Attribute = strings.TrimSpace(event.Attribute)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Revision = Revision{
		SnapshotID:   strings.TrimSpace(event.Revision.SnapshotID),
		ETag:         strings.TrimSpace(event.Revision.ETag),
		PreviousETag: strings.TrimSpace(event.Revision.PreviousETag),
		Codec:        strings.TrimSpace(event.Revision.Codec),
	}
	normalized.Paths = nil
	if len(event.Paths) > 0 {
		normalized.Paths = slices.Compact(slices.Sorted(slices.Values(event.Paths)))
	}
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
