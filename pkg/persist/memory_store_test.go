package persist

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		ref     Ref
		want    string
		wantErr bool
	}{
		{ref: Ref{Entity: "user_account", ID: "7", Attribute: "addresses"}, want: "user_account/7/addresses"},
		{ref: Ref{Entity: "user_account", ID: "7"}, wantErr: true},
		{ref: Ref{Entity: " ", ID: "7", Attribute: "a"}, wantErr: true},
		{ref: Ref{Entity: "user", ID: "7/8", Attribute: "a"}, wantErr: true},
	}
	for _, tc := range cases {
		got, err := tc.ref.Identifier()
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidRef) {
				t.Fatalf("%+v: expected ErrInvalidRef, got %v", tc.ref, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%+v: got %q (%v), want %q", tc.ref, got, err, tc.want)
		}
	}
}

func TestMemoryStoreRevisions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ref := Ref{Entity: "doc", ID: "1", Attribute: "body"}

	if _, _, ok, err := store.Load(ctx, ref); ok || err != nil {
		t.Fatalf("expected missing record, got ok=%v err=%v", ok, err)
	}

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first, err := store.Save(ctx, ref, []byte(`{"a":1}`), Meta{Codec: "json", UpdatedAt: at, Extra: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.SnapshotID == "" || first.ETag != ETag([]byte(`{"a":1}`)) || !first.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected meta: %+v", first)
	}

	if _, err := store.Save(ctx, ref, []byte(`{}`), Meta{}); !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected create over existing record to fail, got %v", err)
	}
	if _, err := store.Save(ctx, ref, []byte(`{}`), Meta{ETag: "stale"}); !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected stale etag to fail, got %v", err)
	}
	second, err := store.Save(ctx, ref, []byte(`{"a":2}`), Meta{ETag: first.ETag})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if second.ETag == first.ETag || second.SnapshotID == first.SnapshotID {
		t.Fatalf("expected new revision, got %+v", second)
	}

	data, meta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(data) != `{"a":2}` || meta.ETag != second.ETag {
		t.Fatalf("unexpected record %s %+v", data, meta)
	}
	data[0] = 'x'
	again, _, _, _ := store.Load(ctx, ref)
	if string(again) != `{"a":2}` {
		t.Fatalf("loaded data must not alias stored bytes")
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
	if _, err := store.Save(ctx, ref, []byte(`{}`), Meta{ETag: second.ETag}); !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected update of deleted record to fail, got %v", err)
	}
}

func TestNextMetaClonesExtra(t *testing.T) {
	extra := map[string]string{"k": "v"}
	next, err := NextMeta(Meta{}, false, Meta{Extra: extra}, nil)
	if err != nil {
		t.Fatalf("next meta: %v", err)
	}
	next.Extra["k"] = "changed"
	if extra["k"] != "v" {
		t.Fatalf("expected extra to be copied")
	}
	if next.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt default")
	}
}
