package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches the config file and swaps Live on every valid change.
// An invalid file leaves the previous configuration in place.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	live     *Live
	log      *log.Logger
	debounce time.Duration
	// OnReload is called after a successful swap, mainly for tests.
	OnReload func(Config)
}

func NewReloader(path string, live *Live, logger *log.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}
	return &Reloader{
		watcher:  watcher,
		path:     filepath.Clean(path),
		live:     live,
		log:      logger,
		debounce: 250 * time.Millisecond,
	}, nil
}

// Run blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

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
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.printf("config watcher error: %v", err)
		}
	}
}

func (r *Reloader) reload() {
	c, err := Load(r.path)
	if err != nil {
		r.printf("config reload failed path=%s err=%v", r.path, err)
		return
	}
	r.live.Store(c)
	r.printf("config reloaded path=%s fingerprint_max_age=%ds search_max_range=%d",
		r.path, c.Police.FingerprintMaxAge, c.Police.SearchMaxRange)
	if r.OnReload != nil {
		r.OnReload(c)
	}
}

func (r *Reloader) printf(format string, args ...any) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}
