// This file implements the BackgroundWorker, which reloads changed
// directories off the UI goroutine.
package ui

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vanderheijden86/indextree/pkg/loader"
	"github.com/vanderheijden86/indextree/pkg/watcher"
)

// listingCacheSize bounds how many directory fingerprints are remembered.
// An evicted directory is simply sent again on its next change.
const listingCacheSize = 4096

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is reading changed directories.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "watch", "load"
	Dir     string    // Directory being processed, if any
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures so far
}

func (e WorkerError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("%s %s failed: %v (retries: %d)", e.Phase, e.Dir, e.Cause, e.Retries)
	}
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// DirChange carries the fresh one-level listing of a directory.
type DirChange struct {
	Dir      string
	Children []entryElement
}

// ReloadMsg is sent to the UI when changed directories have been read.
// Changes are ordered parents first.
type ReloadMsg struct {
	Changes []DirChange
}

// ReloadErrorMsg is sent to the UI when a reload fails.
type ReloadErrorMsg struct {
	Err         error
	Recoverable bool // True if we expect to recover on next file change
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	Roots         []string // Directories to watch recursively
	Scan          loader.ScanOptions
	DebounceDelay time.Duration
	Send          func(tea.Msg) // Usually (*tea.Program).Send
}

// BackgroundWorker owns the file watcher, coalesces change bursts, and
// reads changed directories off the UI goroutine.
type BackgroundWorker struct {
	roots []string
	scan  loader.ScanOptions
	send  func(tea.Msg)

	mu      sync.RWMutex
	state   WorkerState
	started bool
	pending map[string]struct{}        // Dirs that changed while processing
	hashes  *lru.Cache[string, uint64] // Listing hash per dir, for dedup

	lastError  *WorkerError
	errorCount int

	watcher *watcher.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBackgroundWorker creates a worker watching cfg.Roots.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = watcher.DefaultDebounce
	}
	hashes, err := lru.New[string, uint64](listingCacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &BackgroundWorker{
		scan:    cfg.Scan,
		send:    cfg.Send,
		state:   WorkerIdle,
		pending: make(map[string]struct{}),
		hashes:  hashes,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			cancel()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}

	if len(w.roots) > 0 {
		skip := func(path string) bool {
			base := filepath.Base(path)
			return base == ".git" || (!cfg.Scan.ShowHidden && strings.HasPrefix(base, "."))
		}
		fw, err := watcher.New(cfg.DebounceDelay, skip)
		if err != nil {
			cancel()
			return nil, err
		}
		for _, root := range w.roots {
			if err := fw.Add(root); err != nil {
				_ = fw.Close()
				cancel()
				return nil, &WorkerError{Phase: "watch", Dir: root, Cause: err, Time: time.Now()}
			}
		}
		w.watcher = fw
	}
	return w, nil
}

// Start begins processing file changes in the background. It is
// idempotent.
func (w *BackgroundWorker) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher == nil {
		close(w.done)
		return
	}
	go w.processLoop()
}

// Stop halts the worker and closes the watcher. It is idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent error (nil if the last reload succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// TriggerRefresh reloads dirs now, or every root when none are given.
func (w *BackgroundWorker) TriggerRefresh(dirs ...string) {
	if len(dirs) == 0 {
		dirs = w.roots
	}
	go w.process(dirs)
}

func (w *BackgroundWorker) processLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case dirs, ok := <-w.watcher.Changes():
			if !ok {
				return
			}
			w.process(dirs)
		}
	}
}

// process reads dirs and sends the listings that changed. A call that
// arrives while another is running queues its dirs for that run.
func (w *BackgroundWorker) process(dirs []string) {
	w.mu.Lock()
	for _, d := range dirs {
		w.pending[d] = struct{}{}
	}
	if w.state != WorkerIdle {
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.state == WorkerStopped {
			w.mu.Unlock()
			return
		}
		if len(w.pending) == 0 {
			w.state = WorkerIdle
			w.mu.Unlock()
			return
		}
		batch := make([]string, 0, len(w.pending))
		for d := range w.pending {
			batch = append(batch, d)
		}
		clear(w.pending)
		w.mu.Unlock()

		w.reload(batch)
	}
}

func (w *BackgroundWorker) reload(dirs []string) {
	start := time.Now()
	slices.Sort(dirs) // Parents sort before their children

	var changes []DirChange
	for _, dir := range dirs {
		var children []entryElement
		werr := w.safeCompute("load", dir, func() error {
			var err error
			children, err = loader.ReadDirEntries(dir, w.scan)
			return err
		})
		if werr != nil {
			if errors.Is(werr.Cause, fs.ErrNotExist) {
				// Removed; the parent's listing drops it.
				w.forget(dir)
				continue
			}
			log.Printf("warning: reload %s: %v", dir, werr)
			w.recordError(werr)
			w.notify(ReloadErrorMsg{Err: werr, Recoverable: true})
			continue
		}

		hash := listingHash(children)
		if prev, ok := w.hashes.Peek(dir); ok && prev == hash {
			continue
		}
		w.hashes.Add(dir, hash)
		changes = append(changes, DirChange{Dir: dir, Children: children})
	}

	if len(changes) == 0 {
		return
	}
	w.recordError(nil)
	log.Printf("reload: %d of %d directories changed (%v)", len(changes), len(dirs), time.Since(start))
	w.notify(ReloadMsg{Changes: changes})
}

func (w *BackgroundWorker) forget(dir string) {
	w.hashes.Remove(dir)
}

func (w *BackgroundWorker) notify(msg tea.Msg) {
	if w.send != nil {
		w.send(msg)
	}
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase, dir string, fn func() error) (result *WorkerError) {
	defer func() {
		if r := recover(); r != nil {
			result = &WorkerError{
				Phase: phase,
				Dir:   dir,
				Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
				Time:  time.Now(),
			}
		}
	}()
	if err := fn(); err != nil {
		return &WorkerError{Phase: phase, Dir: dir, Cause: err, Time: time.Now()}
	}
	return nil
}

// recordError tracks an error and updates error state.
func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// listingHash fingerprints a directory listing so unchanged reloads are
// dropped before they reach the UI.
func listingHash(children []entryElement) uint64 {
	h := fnv.New64a()
	for _, c := range children {
		e := c.Element
		fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\n", e.Name, e.Kind, e.Size, e.ModTime.UnixNano())
	}
	return h.Sum64()
}
