package settings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the store whenever the settings file is edited on disk. It
// watches the parent directory because editors and our own writes replace
// the file by rename. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Info("Watching settings file", zap.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("Settings reload failed, keeping previous values",
					zap.String("path", s.path),
					zap.Error(err))
				continue
			}
			s.log.Info("Settings reloaded", zap.String("path", s.path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Settings watcher error", zap.Error(err))
		}
	}
}
