package watcher

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ppiankov/filewatchd/internal/executor"
	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
)

// startStagger, perTaskStopBudget, and overallStopBudget are vars (not
// const) so tests can shrink them instead of waiting out the real budgets.
var (
	// startStagger is the gap between successive folder task starts, so a
	// registry with many folders doesn't open every fsnotify handle in
	// the same instant.
	startStagger = 500 * time.Millisecond

	// perTaskStopBudget is how long StopAll waits for a single task to
	// exit before counting it as an orphan and moving on.
	perTaskStopBudget = 1 * time.Second

	// overallStopBudget is StopAll's wall-clock ceiling across every
	// task, regardless of how many folders are registered.
	overallStopBudget = 3 * time.Second
)

// Supervisor owns one FolderWatcher per distinct monitored folder and
// starts, staggers, and stops them as a set.
type Supervisor struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	executor *executor.Executor
	metrics  *metrics.Metrics
	stop     Stopper

	mu       sync.Mutex
	watchers []*FolderWatcher
	wg       sync.WaitGroup
}

// NewSupervisor builds a Supervisor over every folder in reg.
func NewSupervisor(reg *registry.Registry, led *ledger.Ledger, ex *executor.Executor, m *metrics.Metrics, stop Stopper) *Supervisor {
	return &Supervisor{registry: reg, ledger: led, executor: ex, metrics: m, stop: stop}
}

// StartAll creates and starts a FolderWatcher for every distinct folder in
// the registry, in declaration order, staggering task starts by
// startStagger. A folder that cannot be created is logged and skipped; a
// folder that cannot be read or watched still gets a task, which logs the
// error and exits. Neither prevents the other folders from starting.
func (s *Supervisor) StartAll() {
	folders := s.registry.Folders()
	for i, folderKey := range folders {
		folderPath := s.registry.OriginalFolder(folderKey)
		if err := os.MkdirAll(folderPath, 0o755); err != nil {
			slog.Error("folder inaccessible, skipping", "folder", folderPath, "error", err)
			continue
		}

		ruleIndices := s.registry.RuleIndicesForFolder(folderKey)
		w := New(folderKey, folderPath, ruleIndices, s.registry, s.ledger, s.executor, s.metrics, s.stop)
		w.InitialScan()

		s.mu.Lock()
		s.watchers = append(s.watchers, w)
		s.mu.Unlock()

		s.wg.Add(1)
		go func(fw *FolderWatcher) {
			defer s.wg.Done()
			defer close(fw.exited)
			fw.RunChangeLoop()
		}(w)

		if i < len(folders)-1 {
			time.Sleep(startStagger)
		}
	}
}

// ActiveCount reports how many folder tasks are currently in their change
// loop -- satisfies metrics.ActiveCounter for the refresher.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.watchers {
		if w.active.Load() {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of every folder task, in start order.
func (s *Supervisor) Stats() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stats, len(s.watchers))
	for i, w := range s.watchers {
		out[i] = w.Stats()
	}
	return out
}

// StopAll requests every task stop, then waits up to perTaskStopBudget per
// task and overallStopBudget in total before giving up and returning.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	watchers := make([]*FolderWatcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w.RequestStop()
	}

	deadline := time.Now().Add(overallStopBudget)
	orphans := 0
	for _, w := range watchers {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			orphans++
			continue
		}
		budget := perTaskStopBudget
		if remaining < budget {
			budget = remaining
		}
		select {
		case <-w.exited:
		case <-time.After(budget):
			orphans++
		}
	}
	if orphans > 0 {
		slog.Warn("watchers did not stop within budget", "orphans", orphans)
	}
}
