// Package watcher reports which directories changed on disk, coalescing
// bursts of file events into one notification.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the coalescing window used when none is given.
const DefaultDebounce = 200 * time.Millisecond

// Watcher wraps an fsnotify watcher. fsnotify is not recursive, so every
// directory of interest is added individually; directories created later
// are added as they appear.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	skip     func(path string) bool
	changes  chan []string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher and starts its event loop. skip, if non-nil, is
// consulted before a directory is watched.
func New(debounce time.Duration, skip func(path string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fw,
		debounce: debounce,
		skip:     skip,
		changes:  make(chan []string, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// SkipHidden is a skip function that ignores dot-directories.
func SkipHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Add watches dir and, recursively, its subdirectories.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skip != nil && w.skip(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			log.Printf("warning: not watching %s: %v", path, err)
		}
		return nil
	})
}

// Changes delivers sorted, de-duplicated lists of directories whose
// contents changed. The channel is closed by Close.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.changes)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.skip == nil || !w.skip(event.Name) {
						_ = w.Add(event.Name)
					}
				}
			}
			pending[filepath.Dir(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("warning: watcher: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			dirs := make([]string, 0, len(pending))
			for dir := range pending {
				dirs = append(dirs, dir)
			}
			slices.Sort(dirs)
			select {
			case w.changes <- dirs:
				clear(pending)
			case <-w.ctx.Done():
				return
			default:
				// Receiver is behind; keep accumulating and retry.
				timer.Reset(w.debounce)
			}
		}
	}
}
