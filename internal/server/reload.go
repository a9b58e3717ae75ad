package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches the policy file and swaps in a freshly validated
// bundle on change. A write that fails to parse or validate leaves the
// active bundle alone.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	logger  *slog.Logger
}

// NewReloader creates a file watcher for the server's policy path.
// Returns an error when the path is unset or unwatchable.
func NewReloader(server *Server, logger *slog.Logger) (*Reloader, error) {
	if server.cfg.PolicyPath == "" {
		return nil, fmt.Errorf("no policy path to watch")
	}
	if _, err := os.Stat(server.cfg.PolicyPath); err != nil {
		return nil, fmt.Errorf("policy path not watchable: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(server.cfg.PolicyPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", server.cfg.PolicyPath, err)
	}

	return &Reloader{watcher: watcher, server: server, logger: logger}, nil
}

// Run watches for file changes and reloads policy. Blocks until ctx is
// cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after the last write before reloading.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := r.server.ReloadPolicy(); err != nil {
						r.logger.Warn("hot-reload failed", "error", err)
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}
