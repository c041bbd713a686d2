// Package watcher runs one fsnotify-backed task per monitored folder,
// matching new and changed files against the pattern registry and handing
// matches to the executor, plus the supervisor that starts, staggers, and
// stops the whole set.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/filewatchd/internal/executor"
	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
)

// debounceWindow is the fixed whole-batch settle time: events arriving
// within this window of the first unhandled event are processed together
// as one batch, rather than one timer per file.
const debounceWindow = 500 * time.Millisecond

// errorRetryDelay is how long a task waits after a non-fatal watcher error
// before resuming its read loop.
const errorRetryDelay = 1 * time.Second

// Stopper reports the daemon's single latched shutdown signal.
type Stopper interface {
	Stopped() bool
	Done() <-chan struct{}
}

// Stats is a point-in-time read of one folder task's counters.
type Stats struct {
	FolderPath     string
	Active         bool
	FilesDetected  int64
	FilesProcessed int64
}

// FolderWatcher is the per-folder task: it scans once at startup, then
// watches for creates and writes, matching each candidate filename
// against every rule registered for its folder.
type FolderWatcher struct {
	folderKey   string // normalized, see registry.Normalize
	folderPath  string // as declared in config -- real filesystem path
	ruleIndices []int

	registry *registry.Registry
	ledger   *ledger.Ledger
	executor *executor.Executor
	metrics  *metrics.Metrics
	stop     Stopper

	exited chan struct{}

	active         atomic.Bool
	stopRequested  atomic.Bool
	filesDetected  atomic.Int64
	filesProcessed atomic.Int64

	fsWatcher atomic.Pointer[fsnotify.Watcher]
}

// New builds a FolderWatcher for one normalized folder key.
func New(folderKey, folderPath string, ruleIndices []int, reg *registry.Registry, led *ledger.Ledger, ex *executor.Executor, m *metrics.Metrics, stop Stopper) *FolderWatcher {
	return &FolderWatcher{
		folderKey:   folderKey,
		folderPath:  folderPath,
		ruleIndices: ruleIndices,
		registry:    reg,
		ledger:      led,
		executor:    ex,
		metrics:     m,
		stop:        stop,
		exited:      make(chan struct{}),
	}
}

// FolderPath returns the task's real (non-normalized) monitored path.
func (w *FolderWatcher) FolderPath() string { return w.folderPath }

// Stats returns a snapshot of this task's counters, for the HTTP endpoint.
func (w *FolderWatcher) Stats() Stats {
	return Stats{
		FolderPath:     w.folderPath,
		Active:         w.active.Load(),
		FilesDetected:  w.filesDetected.Load(),
		FilesProcessed: w.filesProcessed.Load(),
	}
}

// RequestStop asks the task to exit its read loop as soon as possible, by
// closing its fsnotify handle -- which unblocks a blocked Events read even
// though the task's own select also watches the global stop signal.
func (w *FolderWatcher) RequestStop() {
	w.stopRequested.Store(true)
	if fw := w.fsWatcher.Load(); fw != nil {
		_ = fw.Close()
	}
}

// InitialScan processes every already-present matching file not already in
// the ledger, in filename order (as os.ReadDir returns them). Called once, synchronously, before
// the task's change loop starts.
func (w *FolderWatcher) InitialScan() {
	entries, err := os.ReadDir(w.folderPath)
	if err != nil {
		slog.Error("initial scan failed", "folder", w.folderPath, "error", err)
		return
	}

	for _, e := range entries {
		if w.stop.Stopped() || w.stopRequested.Load() {
			return
		}
		if e.IsDir() {
			continue
		}
		w.handleCandidate(e.Name(), filepath.Join(w.folderPath, e.Name()))
	}
}

// RunChangeLoop watches the folder for creates and writes until the global
// stop signal fires or RequestStop closes the watch handle. Intended to
// run in its own goroutine, one per folder, after InitialScan.
func (w *FolderWatcher) RunChangeLoop() {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("create watcher failed", "folder", w.folderPath, "error", err)
		return
	}
	defer fsw.Close()

	if err := fsw.Add(w.folderPath); err != nil {
		slog.Error("watch folder failed", "folder", w.folderPath, "error", err)
		return
	}
	w.fsWatcher.Store(fsw)

	if w.stop.Stopped() || w.stopRequested.Load() {
		return
	}

	w.active.Store(true)
	defer w.active.Store(false)

	var batch []fsnotify.Event
	fire := make(chan struct{}, 1)
	var timer *time.Timer

	slog.Info("folder watch active", "folder", w.folderPath, "rules", len(w.ruleIndices))

	for {
		select {
		case <-w.stop.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.filesDetected.Add(1)
			batch = append(batch, event)
			if timer == nil {
				timer = time.AfterFunc(debounceWindow, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			}

		case <-fire:
			pending := batch
			batch = nil
			timer = nil
			for _, event := range pending {
				if w.stop.Stopped() || w.stopRequested.Load() {
					return
				}
				w.handleCandidate(filepath.Base(event.Name), event.Name)
			}

		case werr, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watch error", "folder", w.folderPath, "error", werr)
			w.metrics.RecordError()
			select {
			case <-w.stop.Done():
				return
			case <-time.After(errorRetryDelay):
			}
		}
	}
}

// handleCandidate matches one filename against the folder's rules, in
// declaration order, running the command for each rule that matches and
// has not already processed this exact path.
func (w *FolderWatcher) handleCandidate(name, path string) {
	matches := w.registry.Matches(name, w.folderPath)
	if len(matches) == 0 {
		return
	}
	if w.ledger.Contains(path) {
		return
	}

	rules := w.registry.Rules()
	processedOnce := false
	for _, idx := range matches {
		if w.stop.Stopped() {
			return
		}
		rule := rules[idx]
		w.metrics.RecordMatch(rule.Name)

		result := w.executor.Execute(executor.Request{
			CommandPath: rule.CommandPath,
			FilePath:    path,
			RuleName:    rule.Name,
		})

		switch result {
		case executor.ResultOK, executor.ResultTimeoutOK:
			if !processedOnce {
				processedOnce = true
				w.filesProcessed.Add(1)
			}
		case executor.ResultCancelled:
			return
		}
	}
}
