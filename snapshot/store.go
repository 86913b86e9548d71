// Package snapshot keeps the latest known-good price snapshot in memory
// and in a JSON file.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angas/spotprice-go/normalize"
	"github.com/angas/spotprice-go/types"
)

type Listener func(s types.Snapshot)

// Store holds exactly one snapshot. Readers get either the old or the new
// snapshot in full, replacing is a single pointer swap.
type Store struct {
	logger  *slog.Logger
	path    string
	loc     *time.Location
	current atomic.Pointer[types.Snapshot]

	fileMu sync.Mutex // one file write at a time

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New creates a store persisting to path. An empty path keeps the
// snapshot in memory only.
func New(path string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		logger: slog.Default().With(slog.String("module", "snapshot")),
		path:   path,
		loc:    loc,
	}
}

func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Store) Path() string {
	return s.path
}

// Subscribe registers fn to be called after every replace.
func (s *Store) Subscribe(fn Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Replace makes snap the visible snapshot and notifies listeners.
func (s *Store) Replace(snap types.Snapshot) {
	snap = snap.In(s.loc)
	s.current.Store(&snap)
	s.notify(snap)
}

// replaceIfNewer swaps in snap only when it was fetched after the visible
// snapshot. Listeners are not called when nothing changed.
func (s *Store) replaceIfNewer(snap types.Snapshot) bool {
	snap = snap.In(s.loc)
	for {
		curr := s.current.Load()
		if curr != nil && !snap.FetchedAt.After(curr.FetchedAt) {
			return false
		}
		if s.current.CompareAndSwap(curr, &snap) {
			s.notify(snap)
			return true
		}
	}
}

func (s *Store) notify(snap types.Snapshot) {
	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Current returns the latest snapshot or types.ErrNotYetFetched.
func (s *Store) Current() (types.Snapshot, error) {
	p := s.current.Load()
	if p == nil {
		return types.Snapshot{}, types.ErrNotYetFetched
	}
	return *p, nil
}

// Persist writes the current snapshot to disk. The file is written to a
// temporary sibling and renamed, a crash never leaves a truncated file.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}
	snap, err := s.Current()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &types.StoreFailure{Op: "encode", Path: s.path, Err: err}
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return &types.StoreFailure{Op: "write", Path: s.path, Err: err}
	}

	s.logger.Debug("snapshot persisted", slog.String("path", s.path), slog.Int("windows", len(snap.Windows)))
	return nil
}

// Load reads the persisted snapshot and makes it visible. A missing file
// returns types.ErrNotYetFetched, an unreadable one a *types.StoreFailure;
// in both cases the store is left untouched.
func (s *Store) Load() error {
	snap, err := s.read()
	if err != nil {
		return err
	}
	s.Replace(snap)
	s.logger.Info("snapshot loaded from disk",
		slog.String("path", s.path),
		slog.Time("fetchedAt", snap.FetchedAt),
		slog.Int("windows", len(snap.Windows)))
	return nil
}

func (s *Store) read() (types.Snapshot, error) {
	if s.path == "" {
		return types.Snapshot{}, types.ErrNotYetFetched
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.Snapshot{}, types.ErrNotYetFetched
	}
	if err != nil {
		return types.Snapshot{}, &types.StoreFailure{Op: "read", Path: s.path, Err: err}
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.Snapshot{}, &types.StoreFailure{Op: "decode", Path: s.path, Err: err}
	}
	if err := normalize.Validate(snap); err != nil {
		return types.Snapshot{}, &types.StoreFailure{Op: "validate", Path: s.path, Err: err}
	}

	return snap.In(s.loc), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
