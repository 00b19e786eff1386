package station

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the inputs file at path and reloads it whenever it changes,
// until ctx is canceled. The parent directory is watched so that editors that
// replace the file by renaming are handled. A file that fails to parse is
// logged and the previous state is kept.
func (s *Station) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	logger = logger.With("component", "station")
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve inputs path: %w", err)
	}
	if err := s.LoadFile(abs); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching inputs", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.LoadFile(abs); err != nil {
				logger.Warn("inputs reload failed", "error", err)
				continue
			}
			st := s.State()
			logger.Debug("inputs reloaded", "enabled", st.Enabled, "buttons", len(st.Buttons))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify error", "error", err)
		}
	}
}
