package activity

import (
	"context"
	"errors"
	"slices"
	"testing"
)

var (
	errSinkDown    = errors.New("sink down")
	errAuditFailed = errors.New("audit failed")
)

func TestNormalizeEventTrimsSortsAndClones(t *testing.T) {
	meta := map[string]any{"source": "import"}
	paths := []string{"home.street", "", "emails[1]", "home.street"}
	evt := Event{
		Verb:       " mutable.updated ",
		ActorID:    " actor ",
		ObjectType: " user_account ",
		ObjectID:   " 42 ",
		Attribute:  " addresses ",
		Paths:      paths,
		Revision:   Revision{ETag: " e2 ", PreviousETag: " e1 "},
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != VerbUpdated || got.ObjectType != "user_account" || got.ObjectID != "42" || got.Attribute != "addresses" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.Revision.ETag != "e2" || got.Revision.PreviousETag != "e1" {
		t.Fatalf("unexpected revision: %+v", got.Revision)
	}
	if want := []string{"", "emails[1]", "home.street"}; !slices.Equal(got.Paths, want) {
		t.Fatalf("expected paths %v, got %v", want, got.Paths)
	}
	if paths[0] != "home.street" {
		t.Fatalf("expected input paths untouched: %v", paths)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["source"] = "changed"
	if meta["source"] != "import" {
		t.Fatalf("expected original metadata untouched: %+v", meta)
	}
}

func TestHooksNotifyDropsEventsWithoutAttribute(t *testing.T) {
	recorder := &Recorder{}
	hooks := Hooks{recorder}

	for _, evt := range []Event{
		{},
		{Verb: VerbUpdated, ObjectType: "doc", ObjectID: "1"},
		{Verb: VerbUpdated, ObjectType: "doc", ObjectID: "1", Attribute: "  "},
	} {
		if err := hooks.Notify(context.Background(), evt); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if recorder.Len() != 0 {
		t.Fatalf("expected no events recorded, got %v", recorder.Events())
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	recorder := &Recorder{}
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		recorder,
		HookFunc(func(context.Context, Event) error { return errSinkDown }),
		nil,
		HookFunc(func(context.Context, Event) error { return errAuditFailed }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbUpdated, ObjectType: "user_account", ObjectID: "1", Attribute: "addresses"})
	if !errors.Is(err, errSinkDown) || !errors.Is(err, errAuditFailed) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if recorder.Len() != 1 {
		t.Fatalf("expected event to be recorded once, got %d", recorder.Len())
	}
}

func TestRecorderQueries(t *testing.T) {
	recorder := &Recorder{Err: errSinkDown}
	ctx := context.Background()

	if _, ok := recorder.Last(); ok {
		t.Fatalf("expected empty recorder")
	}
	if err := recorder.Notify(ctx, Event{Verb: VerbCreated, ObjectType: "doc", ObjectID: "1", Attribute: "tags"}); !errors.Is(err, errSinkDown) {
		t.Fatalf("expected configured error, got %v", err)
	}
	_ = recorder.Notify(ctx, Event{Verb: VerbUpdated, ObjectType: "doc", ObjectID: "1", Attribute: "meta"})
	_ = recorder.Notify(ctx, Event{Verb: VerbDeleted, ObjectType: "doc", ObjectID: "1", Attribute: "tags"})

	if want := []string{VerbCreated, VerbUpdated, VerbDeleted}; !slices.Equal(recorder.Verbs(), want) {
		t.Fatalf("expected verbs %v, got %v", want, recorder.Verbs())
	}
	if tags := recorder.Attribute("doc", "1", "tags"); len(tags) != 2 || tags[1].Verb != VerbDeleted {
		t.Fatalf("unexpected attribute history: %+v", tags)
	}
	last, _ := recorder.Last()
	if last.Verb != VerbDeleted {
		t.Fatalf("unexpected last event: %+v", last)
	}
	events := recorder.Events()
	events[0].Verb = "changed"
	if recorder.Verbs()[0] != VerbCreated {
		t.Fatalf("expected Events to return a copy")
	}
	recorder.Reset()
	if recorder.Len() != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
