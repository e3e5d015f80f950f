// Package prefs keeps the session flag, the logged-in profile, and the
// theme preference in an embedded badger store.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"daybook/internal/core"
	"daybook/internal/notify"

	badger "github.com/dgraph-io/badger/v2"
)

var (
	keyLoggedIn = []byte("is_logged_in")
	keyProfile  = []byte("profile")
	keyTheme    = []byte("theme_mode")
)

var (
	valTrue  = []byte{1}
	valFalse = []byte{0}
)

// Store reads and writes preferences. An on-disk store opens badger for
// each operation and closes it right after, so the directory lock is held
// only while a read or write runs and several processes can share one
// preferences directory. An in-memory store keeps its database open.
type Store struct {
	mu      sync.Mutex
	opts    badger.Options
	db      *badger.DB
	changes *notify.Broadcaster
}

const (
	lockRetries = 40
	lockBackoff = 25 * time.Millisecond
)

// Open checks that the store under dir can be opened, creating it if
// needed.
func Open(dir string) (*Store, error) {
	// A handful of tiny keys; badger's defaults size files for bulk data.
	opts := badger.DefaultOptions(dir).
		WithMaxTableSize(8 << 20).
		WithValueLogFileSize(16 << 20).
		WithLogger(newBadgerLogger(slog.Default()))
	s := &Store{opts: opts, changes: notify.NewBroadcaster()}
	if err := s.with(func(*badger.DB) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithMaxTableSize(4 << 20).
		WithLogger(newBadgerLogger(slog.Default()))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open preferences store: %w", err)
	}
	return &Store{opts: opts, db: db, changes: notify.NewBroadcaster()}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// with runs fn against an open database. Operations in this process are
// serialized; a directory locked by another process is retried briefly.
func (s *Store) with(fn func(*badger.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.InMemory {
		if s.db == nil {
			return errors.New("preferences store is closed")
		}
		return fn(s.db)
	}

	db, err := openLocked(s.opts)
	if err != nil {
		return err
	}
	err = fn(db)
	if cerr := db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close preferences store: %w", cerr)
	}
	return err
}

func openLocked(opts badger.Options) (*badger.DB, error) {
	for attempt := 0; ; attempt++ {
		db, err := badger.Open(opts)
		if err == nil {
			return db, nil
		}
		if !isLockError(err) || attempt >= lockRetries {
			return nil, fmt.Errorf("open preferences store: %w", err)
		}
		time.Sleep(lockBackoff)
	}
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	var val []byte
	err := s.with(func(db *badger.DB) error {
		return db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			val, err = item.ValueCopy(nil)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	return s.with(func(db *badger.DB) error {
		return db.Update(fn)
	})
}

func (s *Store) getBool(key []byte) (bool, error) {
	val, found, err := s.get(key)
	if err != nil || !found {
		return false, err
	}
	return len(val) == 1 && val[0] == 1, nil
}

func (s *Store) IsLoggedIn(ctx context.Context) (bool, error) {
	return s.getBool(keyLoggedIn)
}

// SetProfile records p and marks the session logged in, in one write.
func (s *Store) SetProfile(ctx context.Context, p core.Profile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	err = s.update(func(txn *badger.Txn) error {
		if err := txn.Set(keyProfile, payload); err != nil {
			return err
		}
		return txn.Set(keyLoggedIn, valTrue)
	})
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.changes.Notify()
	slog.InfoContext(ctx, "Profile saved", "username", p.Username)
	return nil
}

// Profile returns the stored profile, or an empty one when none is stored.
func (s *Store) Profile(ctx context.Context) (core.Profile, error) {
	val, found, err := s.get(keyProfile)
	if err != nil || !found {
		return core.Profile{}, err
	}
	var p core.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable profile", "error", err)
		return core.Profile{}, nil
	}
	return p, nil
}

// ClearProfile logs the session out. The theme choice survives.
func (s *Store) ClearProfile(ctx context.Context) error {
	err := s.update(func(txn *badger.Txn) error {
		if err := txn.Delete(keyProfile); err != nil {
			return err
		}
		return txn.Set(keyLoggedIn, valFalse)
	})
	if err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	s.changes.Notify()
	slog.InfoContext(ctx, "Profile cleared")
	return nil
}

func (s *Store) DarkTheme(ctx context.Context) (bool, error) {
	return s.getBool(keyTheme)
}

func (s *Store) SetDarkTheme(ctx context.Context, dark bool) error {
	val := valFalse
	if dark {
		val = valTrue
	}
	err := s.update(func(txn *badger.Txn) error {
		return txn.Set(keyTheme, val)
	})
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	s.changes.Notify()
	slog.DebugContext(ctx, "Theme saved", "dark", dark)
	return nil
}

// WatchDarkTheme emits the current theme flag, then every change to it,
// until ctx is done. Read failures are passed through.
func (s *Store) WatchDarkTheme(ctx context.Context) <-chan notify.Result[bool] {
	src := notify.Watch(ctx, s.changes, "theme", s.DarkTheme)
	out := make(chan notify.Result[bool], 1)
	go func() {
		defer close(out)
		known := false
		var last bool
		for r := range src {
			if r.Err == nil {
				if known && r.Value == last {
					continue
				}
				known, last = true, r.Value
			} else {
				known = false
			}
			select {
			case <-out:
			default:
			}
			out <- r
		}
	}()
	return out
}
