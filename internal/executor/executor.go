// Package executor implements the command-execution pipeline: file
// readiness gating, detached child-process spawn, bounded wait, and
// ledger update.
package executor

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/metrics"
)

// Result is the outcome of one Execute call.
type Result string

const (
	ResultOK               Result = "ok"
	ResultCancelled        Result = "cancelled"
	ResultCommandMissing   Result = "command-missing"
	ResultAlreadyProcessed Result = "already-processed"
	ResultVanished         Result = "vanished"
	ResultBusy             Result = "busy"
	ResultTimeoutOK        Result = "timeout-ok"
	ResultWaitError        Result = "wait-error"
)

// readinessPollInterval, readinessTimeout, execWaitCeiling, and
// postRunSettle are vars (not const) so tests can shrink them instead of
// sleeping the full 20s/45s/1s in CI.
var (
	readinessPollInterval = 250 * time.Millisecond
	readinessTimeout      = 20 * time.Second

	execWaitCeiling = 45 * time.Second
	postRunSettle   = 1 * time.Second
)

// Stopper reports the daemon's single latched shutdown signal.
type Stopper interface {
	Stopped() bool
	Done() <-chan struct{}
}

// Request is one matched (command, file, rule) triple ready for execution.
type Request struct {
	CommandPath string
	FilePath    string
	RuleName    string
}

// Executor runs Request values against a shared ledger and metrics set.
type Executor struct {
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics
	Stop    Stopper
}

// Execute runs the readiness-gate-then-spawn pipeline for one matched
// file. It never panics and never returns a Go error: every failure mode
// is expressed as a Result plus, where applicable, an incremented error
// counter.
func (e *Executor) Execute(req Request) Result {
	if e.Stop.Stopped() {
		return ResultCancelled
	}

	info, err := os.Stat(req.CommandPath)
	if err != nil || info.IsDir() {
		slog.Error("command missing", "command", req.CommandPath, "file", req.FilePath)
		e.Metrics.RecordError()
		return ResultCommandMissing
	}

	if e.Ledger.Contains(req.FilePath) {
		return ResultAlreadyProcessed
	}

	readyResult := e.waitUntilReady(req.FilePath)
	if readyResult != "" {
		if readyResult == ResultBusy {
			e.Metrics.RecordError()
		}
		return readyResult
	}

	start := time.Now()
	result := e.spawnAndWait(req)
	elapsed := time.Since(start)

	switch result {
	case ResultOK, ResultTimeoutOK:
		e.Metrics.RecordDuration(elapsed)
		if err := e.Ledger.Mark(req.FilePath); err != nil {
			slog.Error("ledger write failed", "file", req.FilePath, "error", err)
		}
		e.Metrics.RecordExecution(req.RuleName)
		e.Metrics.RecordProcessed()
	case ResultWaitError:
		e.Metrics.RecordError()
	}

	if result != ResultCancelled && !e.Stop.Stopped() {
		time.Sleep(postRunSettle)
	}
	return result
}

// waitUntilReady polls for up to readinessTimeout for req to become
// exclusively openable for read. Returns "" when ready, else the Result
// to return immediately (vanished, busy, or cancelled).
func (e *Executor) waitUntilReady(path string) Result {
	deadline := time.Now().Add(readinessTimeout)
	for {
		if e.Stop.Stopped() {
			return ResultCancelled
		}

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return ResultVanished
			}
			return ResultVanished
		}
		if info.IsDir() {
			return ResultVanished
		}

		if fileReady(path) {
			return ""
		}

		if time.Now().After(deadline) {
			return ResultBusy
		}

		select {
		case <-e.Stop.Done():
			return ResultCancelled
		case <-time.After(readinessPollInterval):
		}
	}
}

// fileReady reports whether path can be opened for read with no other
// process holding a conflicting exclusive lock: an advisory,
// immediately-released exclusive flock probe (see DESIGN.md).
func fileReady(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return false
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return true
}

// spawnAndWait starts the child detached and waits for it with a 45s
// ceiling, also aborting early if the stop signal fires mid-wait. Every
// log line it writes carries a per-execution ID so a single run's spawn
// failure, exit, wait error, or timeout can be correlated in the log file;
// the ledger-write failure line logged by Execute does not carry it.
func (e *Executor) spawnAndWait(req Request) Result {
	execID := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, req.CommandPath, req.FilePath)
	setupProcessGroup(cmd)
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		slog.Error("spawn failed", "execution_id", execID, "command", req.CommandPath, "file", req.FilePath, "error", err)
		return ResultWaitError
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(execWaitCeiling)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				slog.Info("command exited", "execution_id", execID, "command", req.CommandPath, "file", req.FilePath, "exit_code", exitErr.ExitCode())
				return ResultOK
			}
			slog.Error("wait error", "execution_id", execID, "command", req.CommandPath, "file", req.FilePath, "error", err)
			return ResultWaitError
		}
		slog.Info("command exited", "execution_id", execID, "command", req.CommandPath, "file", req.FilePath, "exit_code", 0)
		return ResultOK

	case <-timer.C:
		slog.Warn("command timed out, marking processed anyway", "execution_id", execID, "command", req.CommandPath, "file", req.FilePath, "timeout", execWaitCeiling)
		cancel()
		<-done
		return ResultTimeoutOK

	case <-e.Stop.Done():
		cancel()
		<-done
		return ResultCancelled
	}
}
