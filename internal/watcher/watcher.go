// Package watcher feeds the engine from the filesystem: it turns settled
// file writes under a workspace root into file actions and publishes
// context snapshots (current file, recent files, git branch) as a context
// provider.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"foresight/internal/logging"
	"foresight/internal/types"
)

// Bounded list of recently touched files carried in context snapshots.
const recentFileLimit = 10

// LearnFunc receives one action per settled file event.
type LearnFunc func(types.Action)

// Watcher observes a workspace root and acts as a context provider.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	root        string
	learn       LearnFunc
	ignoreDirs  map[string]bool
	debounceMap map[string]time.Time
	debounceDur time.Duration

	currentFile string
	recentFiles []string
	branch      string

	updates    chan types.Context
	inferences chan types.InferenceUpdate

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	stats Stats
}

// Stats tracks watcher activity for debugging.
type Stats struct {
	FilesSettled  int
	DirsWatched   int
	BranchChanges int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// New creates a watcher over root. Events settle for debounce before they
// become actions; directories named in ignoreDirs are never descended
// into.
func New(root string, debounce time.Duration, ignoreDirs []string, learn LearnFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignored[d] = true
	}

	return &Watcher{
		watcher:     fsw,
		root:        root,
		learn:       learn,
		ignoreDirs:  ignored,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		updates:     make(chan types.Context, 16),
		inferences:  make(chan types.InferenceUpdate, 4),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Updates implements types.ContextProvider.
func (w *Watcher) Updates() <-chan types.Context { return w.updates }

// Inferences implements types.ContextProvider.
func (w *Watcher) Inferences() <-chan types.InferenceUpdate { return w.inferences }

// Start walks the root registering directory watches and begins the event
// loop. Non-blocking; it starts the loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.refreshBranch()

	go w.run(ctx)
	logging.Watcher("Watching %s (debounce %v)", w.root, w.debounceDur)
	return nil
}

// Stop halts the event loop, waits for it to drain, and closes the
// provider channels.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatcherError("Error closing fsnotify watcher: %v", err)
	}
	close(w.updates)
	close(w.inferences)
	logging.Watcher("Watcher stopped")
}

// Statistics returns a copy of the watcher's counters.
func (w *Watcher) Statistics() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// addTree registers root and every non-ignored directory beneath it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (w.ignoreDirs[name] || strings.HasPrefix(name, ".")) {
			if name == ".git" {
				// Watch only .git itself so HEAD changes surface.
				if err := w.watcher.Add(path); err == nil {
					w.mu.Lock()
					w.stats.DirsWatched++
					w.mu.Unlock()
				}
			}
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WatcherError("Could not watch %s: %v", path, err)
			return nil
		}
		w.mu.Lock()
		w.stats.DirsWatched++
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	settleTicker := time.NewTicker(100 * time.Millisecond)
	defer settleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatcherError("fsnotify error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-settleTicker.C:
			w.processSettled()
		}
	}
}

// handleEvent records a file write for debounced processing and reacts to
// branch and directory changes immediately.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if filepath.Base(event.Name) == "HEAD" && strings.Contains(event.Name, ".git") {
		if w.refreshBranch() {
			w.publishContext()
		}
		return
	}
	if w.ignored(event.Name) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			_ = w.addTree(event.Name)
		}
		return
	}

	logging.WatcherDebug("Event %s on %s", event.Op, event.Name)
	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.mu.Unlock()
}

// processSettled turns events older than the debounce window into file
// actions and an updated context snapshot.
func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.fileTouched(path)
	}
}

func (w *Watcher) fileTouched(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}

	w.mu.Lock()
	previous := w.currentFile
	w.currentFile = rel
	w.recentFiles = prependUnique(w.recentFiles, rel, recentFileLimit)
	branch := w.branch
	w.stats.FilesSettled++
	w.mu.Unlock()

	actionCtx := map[string]any{}
	if previous != "" {
		actionCtx["previousFile"] = previous
	}
	if branch != "" {
		actionCtx["branch"] = branch
	}

	logging.WatcherDebug("File settled: %s (previous %s)", rel, previous)
	if w.learn != nil {
		w.learn(types.Action{Type: types.ActionFile, Value: rel, Context: actionCtx})
	}
	w.publishContext()
}

// publishContext sends the current snapshot without blocking; a full
// channel drops the update, the next one supersedes it anyway.
func (w *Watcher) publishContext() {
	w.mu.RLock()
	snapshot := types.Context{
		CurrentFile: w.currentFile,
		Branch:      w.branch,
		RecentFiles: append([]string(nil), w.recentFiles...),
	}
	w.mu.RUnlock()

	select {
	case w.updates <- snapshot:
	default:
	}
}

// refreshBranch re-reads .git/HEAD, returning true when the branch
// changed.
func (w *Watcher) refreshBranch() bool {
	data, err := os.ReadFile(filepath.Join(w.root, ".git", "HEAD"))
	if err != nil {
		return false
	}
	head := strings.TrimSpace(string(data))
	branch := head
	if after, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		branch = after
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if branch == w.branch {
		return false
	}
	w.branch = branch
	w.stats.BranchChanges++
	logging.Watcher("Branch changed to %s", branch)
	return true
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignoreDirs[part] || (part != "." && strings.HasPrefix(part, ".")) {
			return true
		}
	}
	return false
}

func prependUnique(list []string, value string, limit int) []string {
	out := make([]string, 0, limit)
	out = append(out, value)
	for _, v := range list {
		if v == value {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
