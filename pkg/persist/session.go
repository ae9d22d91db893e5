package persist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	mutable "github.com/goliatone/go-mutable"
	"github.com/goliatone/go-mutable/pkg/activity"
	"github.com/goliatone/go-mutable/rules"
)

// Session is a unit of work over tracked columns. Attached columns report
// in-place mutation through their dirty hook; Flush writes every dirty column
// back to the Store in attach order.
type Session struct {
	store   Store
	cfg     sessionConfig
	emitter *activity.Emitter

	mu      sync.Mutex
	entries map[string]*entry
	order   []*entry
}

type entry struct {
	ref      Ref
	key      string
	column   mutable.Column
	snapshot any
	stored   bool
	meta     Meta
	flagged  atomic.Bool
}

func (e *entry) markDirty() {
	e.flagged.Store(true)
}

// dirty reports a pending insert, a fired hook, or a value that no longer
// equals the last persisted snapshot.
func (e *entry) dirty() bool {
	return !e.stored || e.flagged.Load() || !e.column.Equal(e.snapshot)
}

// NewSession builds a Session writing to store.
func NewSession(store Store, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("persist: store is required")
	}
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.checker == nil && len(cfg.guards) > 0 {
		cfg.checker = rules.NewChecker(rules.WithEvaluator(cfg.evaluator))
	}
	for _, g := range cfg.guards {
		if g.expr == "" {
			return nil, fmt.Errorf("persist: guard for %q: %w", g.attribute, rules.ErrEmptyExpression)
		}
	}
	return &Session{
		store: store,
		cfg:   cfg,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Enabled:  true,
			Channel:  cfg.channel,
			ActorID:  cfg.actorID,
			TenantID: cfg.tenantID,
			Clock:    cfg.clock,
		}),
		entries: map[string]*entry{},
	}, nil
}

// Attach registers a new column that has no stored revision yet. It is
// written on the next Flush.
func (s *Session) Attach(ref Ref, column mutable.Column) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if column == nil {
		return fmt.Errorf("persist: attach %s: column is nil", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, key)
	}
	if s.cfg.defaults && column.IsNil() {
		if err := column.Reset(); err != nil {
			return fmt.Errorf("persist: attach %s: %w", key, err)
		}
	}
	s.track(&entry{ref: ref, key: key, column: column})
	return nil
}

// Load decodes the stored revision for ref into column and attaches it.
func (s *Session) Load(ctx context.Context, ref Ref, column mutable.Column) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if column == nil {
		return Meta{}, fmt.Errorf("persist: load %s: column is nil", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return Meta{}, fmt.Errorf("%w: %s", ErrAlreadyAttached, key)
	}
	data, meta, ok, err := s.store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("persist: load %s: %w", key, err)
	}
	if !ok {
		return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if meta.Codec != "" && meta.Codec != column.CodecName() {
		return Meta{}, fmt.Errorf("persist: load %s: stored as %s, column uses %s", key, meta.Codec, column.CodecName())
	}
	if err := column.Decode(data); err != nil {
		return Meta{}, fmt.Errorf("persist: load %s: %w", key, err)
	}
	s.track(&entry{ref: ref, key: key, column: column, stored: true, meta: meta})
	return cloneMeta(meta), nil
}

func (s *Session) track(e *entry) {
	e.snapshot = e.column.Snapshot()
	e.column.Bind(mutable.DirtyHookFunc(e.markDirty))
	s.entries[e.key] = e
	s.order = append(s.order, e)
}

// Detach unbinds the column for ref and forgets it. Pending changes are
// dropped.
func (s *Session) Detach(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return err
	}
	s.forget(e)
	return nil
}

func (s *Session) forget(e *entry) {
	e.column.Bind(nil)
	delete(s.entries, e.key)
	for i, candidate := range s.order {
		if candidate == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Session) lookup(ref Ref) (*entry, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, err
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, key)
	}
	return e, nil
}

// Column returns the column attached for ref.
func (s *Session) Column(ref Ref) (mutable.Column, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return nil, false
	}
	return e.column, true
}

// Meta returns the metadata of the last stored revision for ref.
func (s *Session) Meta(ref Ref) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return Meta{}, err
	}
	return cloneMeta(e.meta), nil
}

// Flag marks ref as modified regardless of its content.
func (s *Session) Flag(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return err
	}
	e.markDirty()
	return nil
}

// IsDirty reports whether ref would be written by Flush.
func (s *Session) IsDirty(ref Ref) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return false, err
	}
	return e.dirty(), nil
}

// Dirty lists the refs Flush would write, in attach order.
func (s *Session) Dirty() []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []Ref
	for _, e := range s.order {
		if e.dirty() {
			refs = append(refs, e.ref)
		}
	}
	return refs
}

// Flush writes every dirty column. It stops at the first failure; columns
// written before it stay written.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.order {
		if !e.dirty() {
			continue
		}
		if err := s.flush(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) flush(ctx context.Context, e *entry) error {
	begin := time.Now()
	now := s.cfg.clock()
	verb := activity.VerbUpdated
	if !e.stored {
		verb = activity.VerbCreated
	}
	event := FlushEvent{Ref: e.ref, Verb: verb, Codec: e.column.CodecName()}
	fail := func(err error) error {
		event.Err = err
		event.Duration = time.Since(begin)
		s.cfg.logger.LogFlush(event)
		return fmt.Errorf("persist: flush %s: %w", e.key, err)
	}

	snapshot := e.column.Snapshot()
	if !e.column.IsNil() {
		if err := s.validate(snapshot); err != nil {
			return fail(err)
		}
	}
	if err := s.checkGuards(e.ref, snapshot, now); err != nil {
		return fail(err)
	}
	data, err := e.column.Encode()
	if err != nil {
		return fail(err)
	}
	event.Bytes = len(data)
	if e.stored {
		event.Paths = mutable.Diff(e.snapshot, snapshot)
	}
	previous := e.meta.ETag

	next, err := s.store.Save(ctx, e.ref, data, Meta{
		ETag:      e.meta.ETag,
		UpdatedAt: now,
		Codec:     e.column.CodecName(),
		Extra:     e.meta.Extra,
	})
	if err != nil {
		return fail(err)
	}
	e.meta = next
	e.stored = true
	e.snapshot = snapshot
	e.flagged.Store(false)

	event.SnapshotID = next.SnapshotID
	event.ETag = next.ETag
	event.Duration = time.Since(begin)
	s.cfg.logger.LogFlush(event)

	if err := s.emit(ctx, verb, e.ref, next, previous, event.Paths); err != nil {
		return fmt.Errorf("persist: activity for %s: %w", e.key, err)
	}
	return nil
}

// Delete removes the stored revision for ref and detaches it.
func (s *Session) Delete(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(ref)
	if err != nil {
		return err
	}
	if e.stored {
		if err := s.store.Delete(ctx, ref); err != nil {
			return fmt.Errorf("persist: delete %s: %w", e.key, err)
		}
	}
	s.forget(e)
	if !e.stored {
		return nil
	}
	return s.emit(ctx, activity.VerbDeleted, ref, Meta{SnapshotID: e.meta.SnapshotID, Codec: e.meta.Codec}, e.meta.ETag, nil)
}

// Discard rolls every attached column back to its last persisted snapshot.
// Columns that were never stored are detached.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, e := range append([]*entry(nil), s.order...) {
		if !e.stored {
			s.forget(e)
			continue
		}
		if !e.dirty() {
			continue
		}
		if err := e.column.Set(e.snapshot); err != nil {
			errs = append(errs, fmt.Errorf("persist: discard %s: %w", e.key, err))
			continue
		}
		e.snapshot = e.column.Snapshot()
		e.flagged.Store(false)
	}
	return errors.Join(errs...)
}

func (s *Session) validate(value any) error {
	if value == nil {
		return nil
	}
	if err := callValidate(value); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if s.cfg.validate == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := s.cfg.validate.Struct(rv.Interface()); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}

type validatable interface {
	Validate() error
}

// callValidate runs Validate on value, or on a pointer to a copy of it when
// the method has a pointer receiver.
func callValidate(value any) error {
	if v, ok := value.(validatable); ok {
		return v.Validate()
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Struct {
		return nil
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	if v, ok := ptr.Interface().(validatable); ok {
		return v.Validate()
	}
	return nil
}

func (s *Session) checkGuards(ref Ref, snapshot any, now time.Time) error {
	for _, g := range s.cfg.guards {
		if g.attribute != "" && g.attribute != ref.Attribute {
			continue
		}
		ok, err := s.cfg.checker.Check(rules.RuleContext{
			Snapshot:  snapshot,
			Now:       &now,
			Attribute: ref.Attribute,
			Metadata:  map[string]any{"entity": ref.Entity, "id": ref.ID},
		}, g.expr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrGuardRejected, g.expr)
		}
	}
	return nil
}

func (s *Session) emit(ctx context.Context, verb string, ref Ref, meta Meta, previous string, paths []string) error {
	return s.emitter.Change(ctx, verb, activity.ChangeInput{
		Entity:       ref.Entity,
		ID:           ref.ID,
		Attribute:    ref.Attribute,
		Paths:        paths,
		SnapshotID:   meta.SnapshotID,
		ETag:         meta.ETag,
		PreviousETag: previous,
		Codec:        meta.Codec,
		OccurredAt:   meta.UpdatedAt,
	})
}
