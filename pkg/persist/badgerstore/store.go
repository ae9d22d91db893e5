// Package badgerstore implements persist.Store on an embedded BadgerDB.
//
// Each attribute is kept under two keys sharing its Ref.Identifier(): the
// encoded value and its JSON metadata. Save checks the ETag and writes both
// keys in one transaction, so concurrent writers surface either
// persist.ErrETagMismatch or badger.ErrConflict.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-mutable/pkg/persist"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	InMemory   bool
	SyncWrites bool

	// Prefix namespaces every key written by the store.
	Prefix string

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// DefaultConfig returns durable settings for on-disk use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		Prefix:     "mutable/",
	}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
		Prefix:   "mutable/",
	}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a persist.Store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	prefix string
	owned  bool
}

var _ persist.Store = (*Store)(nil)

// Open opens a database with cfg and returns a Store that closes it on Close.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	store := New(db, cfg.Prefix)
	store.owned = true
	return store, nil
}

// New wraps an already open database. Close leaves db open.
func New(db *badger.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

// Close closes the database when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) keys(ref persist.Ref) (data, meta []byte, err error) {
	id, err := ref.Identifier()
	if err != nil {
		return nil, nil, err
	}
	return []byte(s.prefix + "data/" + id), []byte(s.prefix + "meta/" + id), nil
}

func (s *Store) Load(ctx context.Context, ref persist.Ref) ([]byte, persist.Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, persist.Meta{}, false, err
	}
	dataKey, metaKey, err := s.keys(ref)
	if err != nil {
		return nil, persist.Meta{}, false, err
	}

	var (
		data []byte
		meta persist.Meta
		ok   bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
		var found bool
		var err error
		meta, found, err = readMeta(txn, metaKey)
		if err != nil || !found {
			return err
		}
		item, err := txn.Get(dataKey)
		if err != nil {
			return fmt.Errorf("badgerstore: read %s: %w", dataKey, err)
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	return data, meta, ok, nil
}

func (s *Store) Save(ctx context.Context, ref persist.Ref, data []byte, meta persist.Meta) (persist.Meta, error) {
	if err := ctx.Err(); err != nil {
		return persist.Meta{}, err
	}
	dataKey, metaKey, err := s.keys(ref)
	if err != nil {
		return persist.Meta{}, err
	}

	var next persist.Meta
	err = s.db.Update(func(txn *badger.Txn) error {
		current, exists, err := readMeta(txn, metaKey)
		if err != nil {
			return err
		}
		next, err = persist.NextMeta(current, exists, meta, data)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("badgerstore: encode meta: %w", err)
		}
		if err := txn.Set(dataKey, append([]byte(nil), data...)); err != nil {
			return err
		}
		return txn.Set(metaKey, encoded)
	})
	if err != nil {
		return persist.Meta{}, err
	}
	return next, nil
}

func (s *Store) Delete(ctx context.Context, ref persist.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dataKey, metaKey, err := s.keys(ref)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(dataKey); err != nil {
			return err
		}
		return txn.Delete(metaKey)
	})
}

// Refs lists every stored ref for entity, in key order. An empty entity lists
// everything.
func (s *Store) Refs(ctx context.Context, entity string) ([]persist.Ref, error) {
	prefix := []byte(s.prefix + "meta/")
	if entity != "" {
		prefix = append(prefix, entity+"/"...)
	}
	var refs []persist.Ref
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref, ok := parseRef(string(it.Item().Key()[len(s.prefix+"meta/"):]))
			if ok {
				refs = append(refs, ref)
			}
		}
		return nil
	})
	return refs, err
}

// RunGC triggers a value log garbage collection pass. It reports false when
// there was nothing to rewrite.
func (s *Store) RunGC(ratio float64) (bool, error) {
	err := s.db.RunValueLogGC(ratio)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite):
		return false, nil
	default:
		return false, err
	}
}

func readMeta(txn *badger.Txn, key []byte) (persist.Meta, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return persist.Meta{}, false, nil
	}
	if err != nil {
		return persist.Meta{}, false, fmt.Errorf("badgerstore: read %s: %w", key, err)
	}
	var meta persist.Meta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return persist.Meta{}, false, fmt.Errorf("badgerstore: decode meta %s: %w", key, err)
	}
	return meta, true, nil
}

func parseRef(id string) (persist.Ref, bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return persist.Ref{}, false
	}
	return persist.Ref{Entity: parts[0], ID: parts[1], Attribute: parts[2]}, true
}
