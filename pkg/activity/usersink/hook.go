// Package usersink forwards attribute change events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-mutable/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

var _ activity.ActivityHook = Hook{}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
// Identity fields that are not UUIDs are kept under Data so they are not lost.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if !activity.Routable(normalized) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := normalized.Metadata
	put := func(key string, value any) {
		if data == nil {
			data = map[string]any{}
		}
		data[key] = value
	}
	identity := func(key, raw string) uuid.UUID {
		id, ok := parseUUID(raw)
		if !ok && raw != "" {
			put(key, raw)
		}
		return id
	}

	record := usertypes.ActivityRecord{
		ActorID:    identity("actor_ref", normalized.ActorID),
		UserID:     identity("user_ref", normalized.UserID),
		TenantID:   identity("tenant_ref", normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	put("attribute", normalized.Attribute)
	if len(normalized.Paths) > 0 {
		put("paths", normalized.Paths)
	}
	revision := normalized.Revision
	for key, value := range map[string]string{
		"snapshot_id":   revision.SnapshotID,
		"etag":          revision.ETag,
		"previous_etag": revision.PreviousETag,
		"codec":         revision.Codec,
	} {
		if value != "" {
			put(key, value)
		}
	}
	record.Data = data

	return h.Sink.Log(ctx, record)
}

func parseUUID(input string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
