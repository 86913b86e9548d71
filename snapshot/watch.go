package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/angas/spotprice-go/types"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the snapshot when another process replaces the file with
// a newer one. A file fetched at or before the visible snapshot is
// ignored, so our own writes and late events never roll back. Watch
// returns once the watcher is running.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create snapshot watcher: %w", err)
	}

	// Watching the directory survives the rename that replaces the file.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				s.reloadIfChanged()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("error watching snapshot file", slog.Any("error", err))
			}
		}
	}()

	return nil
}

func (s *Store) reloadIfChanged() {
	snap, err := s.read()
	if err != nil {
		if !errors.Is(err, types.ErrNotYetFetched) {
			s.logger.Warn("ignoring unreadable snapshot file", slog.Any("error", err))
		}
		return
	}

	// Our own writes and files older than memory are not reloaded.
	if !s.replaceIfNewer(snap) {
		return
	}
	s.logger.Info("snapshot reloaded after external change", slog.Time("fetchedAt", snap.FetchedAt))
}
