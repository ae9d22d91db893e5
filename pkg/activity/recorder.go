package activity

import (
	"context"
	"sync"
)

// Recorder is an ActivityHook that keeps every event it receives, for tests
// and for callers that forward events in batches.
type Recorder struct {
	// Err is returned from every Notify call when set.
	Err error

	mu     sync.Mutex
	events []Event
}

var _ ActivityHook = (*Recorder)(nil)

func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NormalizeEvent(event))
	return r.Err
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent event.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Verbs lists the verbs of the recorded events in arrival order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, len(r.events))
	for i, event := range r.events {
		verbs[i] = event.Verb
	}
	return verbs
}

// Attribute returns the recorded events for one attribute of one entity.
func (r *Recorder) Attribute(objectType, objectID, attribute string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, event := range r.events {
		if event.ObjectType == objectType && event.ObjectID == objectID && event.Attribute == attribute {
			out = append(out, event)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
