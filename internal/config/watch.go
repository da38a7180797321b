package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/artur282/PortSlayer/internal/logging"
)

// Watch reloads path whenever it is written or created and sends
// each good configuration on the returned channel. A file that fails to
// load is logged and skipped. The channel closes when ctx is done.
//
// The parent directory is watched so editors that save by rename are seen.
// It is created if missing so a config written later is still picked up.
func Watch(ctx context.Context, path string, logger *log.Logger) (<-chan *Config, error) {
	logger = logging.OrDiscard(logger)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan *Config, 1)
	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(e, path) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed, keeping previous settings", "path", path, "err", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				select {
				case <-out:
				default:
				}
				out <- cfg
			}
		}
	}()
	return out, nil
}

func relevant(e fsnotify.Event, path string) bool {
	if filepath.Clean(e.Name) != filepath.Clean(path) {
		return false
	}
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create)
}
