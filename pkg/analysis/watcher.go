package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fumiya-kume/reposcan/internal/types"
	"github.com/fumiya-kume/reposcan/pkg/errors"
	"github.com/fumiya-kume/reposcan/pkg/logger"
)

// DefaultWatchDebounce is how long a burst of changes must settle before re-profiling
const DefaultWatchDebounce = 500 * time.Millisecond

// ProfileHandler receives every profile a TreeWatcher produces
type ProfileHandler func(profile *types.ProjectLanguageProfile, err error)

// TreeWatcher re-profiles a source tree whenever files in it change
type TreeWatcher struct {
	analyzer *Analyzer
	debounce time.Duration
	logger   logger.LoggerInterface
}

// NewTreeWatcher creates a watcher driving analyzer
func NewTreeWatcher(analyzer *Analyzer, debounce time.Duration, log logger.LoggerInterface) *TreeWatcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &TreeWatcher{
		analyzer: analyzer,
		debounce: debounce,
		logger:   logger.Component(log, "watch"),
	}
}

// Watch profiles root once, then again after each settled burst of file
// changes, until ctx is canceled. Ignored and hidden directories are not
// watched.
func (w *TreeWatcher) Watch(ctx context.Context, root string, handle ProfileHandler) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return errors.NotFoundError("project path", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewError(errors.ErrorTypeFileSystem).
			WithMessage("failed to create file watcher").
			WithCause(err).
			Build()
	}
	defer watcher.Close() //nolint:errcheck // closing on exit

	w.addTree(watcher, root)
	w.logger.Info("Watching %s for changes", root)
	w.profile(ctx, root, handle)

	var settle <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if watchIgnored(root, event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(watcher, event.Name)
				}
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			// Debounce rapid changes
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			settle = timer.C

		case <-settle:
			settle = nil
			w.logger.Debug("Tree changed, re-profiling %s", root)
			w.analyzer.Invalidate(root)
			w.profile(ctx, root, handle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error (error: %v)", err)
		}
	}
}

func (w *TreeWatcher) profile(ctx context.Context, root string, handle ProfileHandler) {
	profile, err := w.analyzer.IdentifyLanguage(ctx, root)
	if ctx.Err() != nil {
		return
	}
	handle(profile, err)
}

// addTree watches dir and every directory below it that profiling would visit
func (w *TreeWatcher) addTree(watcher *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (ignoredDirectories[d.Name()] || isHidden(d.Name())) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			w.logger.Debug("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// watchIgnored reports whether path lies in a directory profiling skips
func watchIgnored(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if ignoredDirectories[part] || (part != "." && isHidden(part)) {
			return true
		}
	}
	return false
}
