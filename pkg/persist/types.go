package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrETagMismatch     = errors.New("persist: etag mismatch")
	ErrNotFound         = errors.New("persist: not found")
	ErrInvalidRef       = errors.New("persist: invalid ref")
	ErrAlreadyAttached  = errors.New("persist: already attached")
	ErrNotAttached      = errors.New("persist: not attached")
	ErrGuardRejected    = errors.New("persist: guard rejected value")
	ErrValidationFailed = errors.New("persist: validation failed")
)

// Ref identifies one stored attribute of one entity.
type Ref struct {
	Entity    string
	ID        string
	Attribute string
}

// Identifier returns the canonical storage key `entity/id/attribute`.
func (r Ref) Identifier() (string, error) {
	parts := []string{r.Entity, r.ID, r.Attribute}
	names := []string{"entity", "id", "attribute"}
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", fmt.Errorf("%w: missing %s", ErrInvalidRef, names[i])
		}
		if strings.Contains(part, "/") {
			return "", fmt.Errorf("%w: %s %q contains '/'", ErrInvalidRef, names[i], part)
		}
	}
	return strings.Join(parts, "/"), nil
}

func (r Ref) String() string {
	return r.Entity + "/" + r.ID + "/" + r.Attribute
}

// Meta is storage-owned metadata used for audit and optimistic concurrency.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Codec      string            `json:"codec,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes the encoded form of one attribute.
//
// Save compares meta.ETag with the stored ETag: an empty ETag expects no
// stored record, anything else must match. The returned Meta carries the new
// SnapshotID and ETag.
type Store interface {
	Load(ctx context.Context, ref Ref) (data []byte, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, data []byte, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

// ETag derives a content address for data.
func ETag(data []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, data).String()
}

// NextMeta checks the optimistic concurrency precondition and returns the
// metadata for a new revision. Store implementations share it so they agree
// on ETag semantics.
func NextMeta(current Meta, exists bool, expected Meta, data []byte) (Meta, error) {
	switch {
	case exists && expected.ETag != current.ETag:
		return Meta{}, fmt.Errorf("%w: have %q, want %q", ErrETagMismatch, current.ETag, expected.ETag)
	case !exists && expected.ETag != "":
		return Meta{}, fmt.Errorf("%w: no stored revision for %q", ErrETagMismatch, expected.ETag)
	}
	next := cloneMeta(expected)
	next.SnapshotID = uuid.NewString()
	next.ETag = ETag(data)
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	return next, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
