package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/bnema/chfctl/internal/backup"
)

// DefaultDebounce coalesces bursts such as a payload plus its sidecar
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the files touched since the last call
type ChangeFunc func(files []string)

// Watcher reports changes to the character repository
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *log.Logger
}

// New creates a watcher for dir. A zero debounce uses DefaultDebounce.
func New(dir string, debounce time.Duration, logger *log.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, log: logger}
}

// Run watches the repository root (not subfolders) until ctx is done,
// calling onChange once per quiet period with the .chf and .json files
// that changed. onChange runs on the watcher goroutine.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.Info("Watching character directory", "path", w.dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !Relevant(name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.log.Debug("Repository change", "file", name, "op", event.Op.String())
			pending[name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			files := make([]string, 0, len(pending))
			for name := range pending {
				files = append(files, name)
			}
			clear(pending)
			slices.Sort(files)
			onChange(files)
		}
	}
}

// Relevant reports whether a filename is a character payload or sidecar
func Relevant(name string) bool {
	return !strings.HasPrefix(name, ".") && backup.IsBackupFile(name)
}
