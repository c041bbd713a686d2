package executor

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/metrics"
)

// fakeStop implements Stopper for tests that never stop unless told to.
type fakeStop struct {
	done chan struct{}
}

func newFakeStop() *fakeStop { return &fakeStop{done: make(chan struct{})} }

func (f *fakeStop) Stopped() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeStop) Done() <-chan struct{} { return f.done }

func newExecutor(t *testing.T, stop Stopper) (*Executor, *ledger.Ledger, *metrics.Metrics) {
	t.Helper()
	l, err := ledger.Load(filepath.Join(t.TempDir(), "processed.db"))
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	return &Executor{Ledger: l, Metrics: m, Stop: stop}, l, m
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "handler.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecute_BasicMatch(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "alpha.txt")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.txt")
	script := writeScript(t, dir, `echo "$1" > `+out+`
`)

	ex, l, m := newExecutor(t, newFakeStop())
	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultOK {
		t.Fatalf("Execute = %q, want ok", result)
	}
	if !l.Contains(target) {
		t.Error("expected ledger to contain target after successful execution")
	}
	if m.Snapshot().CommandsExecuted != 1 {
		t.Errorf("CommandsExecuted = %d, want 1", m.Snapshot().CommandsExecuted)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected handler to have run: %v", err)
	}
	if string(data) != target+"\n" {
		t.Errorf("handler argument = %q, want %q", string(data), target)
	}
}

func TestExecute_AlreadyProcessed(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "beta.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "exit 0\n")

	ex, l, _ := newExecutor(t, newFakeStop())
	if err := l.Mark(target); err != nil {
		t.Fatal(err)
	}

	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultAlreadyProcessed {
		t.Fatalf("Execute = %q, want already-processed", result)
	}
}

func TestExecute_CommandMissing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gamma.txt")
	os.WriteFile(target, []byte("x"), 0o644)

	ex, l, m := newExecutor(t, newFakeStop())
	result := ex.Execute(Request{CommandPath: filepath.Join(dir, "nope"), FilePath: target, RuleName: "P1"})
	if result != ResultCommandMissing {
		t.Fatalf("Execute = %q, want command-missing", result)
	}
	if l.Contains(target) {
		t.Error("ledger must not gain an entry on command-missing")
	}
	if m.Snapshot().ErrorsCount != 1 {
		t.Errorf("ErrorsCount = %d, want 1", m.Snapshot().ErrorsCount)
	}
}

func TestExecute_CancelledWhenStopAlreadySet(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "delta.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "exit 0\n")

	stop := newFakeStop()
	close(stop.done)
	ex, l, _ := newExecutor(t, stop)

	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultCancelled {
		t.Fatalf("Execute = %q, want cancelled", result)
	}
	if l.Contains(target) {
		t.Error("ledger must not gain an entry when cancelled before spawn")
	}
}

func TestExecute_Vanished(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "never-existed.txt")
	script := writeScript(t, dir, "exit 0\n")

	ex, _, _ := newExecutor(t, newFakeStop())
	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultVanished {
		t.Fatalf("Execute = %q, want vanished", result)
	}
}

func TestExecute_TimeoutMarksProcessed(t *testing.T) {
	origCeiling, origSettle := execWaitCeiling, postRunSettle
	execWaitCeiling = 50 * time.Millisecond
	postRunSettle = 10 * time.Millisecond
	defer func() { execWaitCeiling, postRunSettle = origCeiling, origSettle }()

	dir := t.TempDir()
	target := filepath.Join(dir, "hung.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "sleep 5\n")

	ex, l, m := newExecutor(t, newFakeStop())
	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultTimeoutOK {
		t.Fatalf("Execute = %q, want timeout-ok", result)
	}
	if !l.Contains(target) {
		t.Error("a timed-out execution must still mark the file processed")
	}
	if m.Snapshot().CommandsExecuted != 1 {
		t.Errorf("CommandsExecuted = %d, want 1", m.Snapshot().CommandsExecuted)
	}
}

// lockExclusive opens path and takes an exclusive flock on the returned
// file's own open-file-description, so a second open of the same path
// (as fileReady performs) observes it as busy until the file is closed.
func lockExclusive(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		t.Fatalf("flock: %v", err)
	}
	return f
}

func TestExecute_BusyFileNeverBecomesReady(t *testing.T) {
	origTimeout, origPoll := readinessTimeout, readinessPollInterval
	readinessTimeout = 50 * time.Millisecond
	readinessPollInterval = 10 * time.Millisecond
	defer func() { readinessTimeout, readinessPollInterval = origTimeout, origPoll }()

	dir := t.TempDir()
	target := filepath.Join(dir, "zeta.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "exit 0\n")

	holder := lockExclusive(t, target)
	defer holder.Close()

	ex, l, m := newExecutor(t, newFakeStop())
	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultBusy {
		t.Fatalf("Execute = %q, want busy", result)
	}
	if l.Contains(target) {
		t.Error("ledger must not gain an entry for a file that never became ready")
	}
	if m.Snapshot().ErrorsCount != 1 {
		t.Errorf("ErrorsCount = %d, want 1", m.Snapshot().ErrorsCount)
	}
}

func TestExecute_StopDuringReadinessGateReturnsCancelledPromptly(t *testing.T) {
	origTimeout, origPoll := readinessTimeout, readinessPollInterval
	readinessTimeout = 5 * time.Second
	readinessPollInterval = 250 * time.Millisecond
	defer func() { readinessTimeout, readinessPollInterval = origTimeout, origPoll }()

	dir := t.TempDir()
	target := filepath.Join(dir, "eta.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "exit 0\n")

	holder := lockExclusive(t, target)
	defer holder.Close()

	stop := newFakeStop()
	ex, l, _ := newExecutor(t, stop)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(stop.done)
	}()

	start := time.Now()
	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	elapsed := time.Since(start)

	if result != ResultCancelled {
		t.Fatalf("Execute = %q, want cancelled", result)
	}
	if elapsed > readinessPollInterval+100*time.Millisecond {
		t.Errorf("stop during readiness gate took %v to return, want at most one poll interval plus 100ms", elapsed)
	}
	if l.Contains(target) {
		t.Error("ledger must not gain an entry when cancelled during the readiness gate")
	}
}

func TestExecute_StopDuringExecutionDoesNotMark(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "epsilon.txt")
	os.WriteFile(target, []byte("x"), 0o644)
	script := writeScript(t, dir, "sleep 5\n")

	stop := newFakeStop()
	ex, l, _ := newExecutor(t, stop)

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(stop.done)
	}()

	result := ex.Execute(Request{CommandPath: script, FilePath: target, RuleName: "P1"})
	if result != ResultCancelled {
		t.Fatalf("Execute = %q, want cancelled", result)
	}
	if l.Contains(target) {
		t.Error("ledger must not gain an entry for a handler killed mid-execution")
	}
}
