package activity

import (
	"strings"
	"time"
)

// Verbs emitted for persisted attribute changes.
const (
	VerbCreated = "mutable.created"
	VerbUpdated = "mutable.updated"
	VerbDeleted = "mutable.deleted"
)

// DefaultObjectType names the entity of changes that do not carry one.
const DefaultObjectType = "mutable"

// ChangeInput describes one persisted attribute revision.
type ChangeInput struct {
	ActorID      string
	UserID       string
	TenantID     string
	Entity       string
	ID           string
	Attribute    string
	Paths        []string
	SnapshotID   string
	ETag         string
	PreviousETag string
	Codec        string
	Channel      string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// BuildCreatedEvent describes the first write of an attribute.
func BuildCreatedEvent(input ChangeInput) Event {
	input.Paths = nil
	input.PreviousETag = ""
	return buildChangeEvent(VerbCreated, input)
}

// BuildUpdatedEvent describes a write that replaced a stored revision.
func BuildUpdatedEvent(input ChangeInput) Event {
	return buildChangeEvent(VerbUpdated, input)
}

// BuildDeletedEvent describes the removal of a stored attribute.
func BuildDeletedEvent(input ChangeInput) Event {
	input.Paths = nil
	return buildChangeEvent(VerbDeleted, input)
}

func buildChangeEvent(verb string, input ChangeInput) Event {
	objectType := strings.TrimSpace(input.Entity)
	if objectType == "" {
		objectType = DefaultObjectType
	}
	objectID := strings.TrimSpace(input.ID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}

	return Event{
		Verb:       verb,
		ActorID:    input.ActorID,
		UserID:     input.UserID,
		TenantID:   input.TenantID,
		ObjectType: objectType,
		ObjectID:   objectID,
		Attribute:  input.Attribute,
		Paths:      append([]string(nil), input.Paths...),
		Revision: Revision{
			SnapshotID:   input.SnapshotID,
			ETag:         input.ETag,
			PreviousETag: input.PreviousETag,
			Codec:        input.Codec,
		},
		Channel:    input.Channel,
		Metadata:   cloneMap(input.Metadata),
		OccurredAt: input.OccurredAt,
	}
}
