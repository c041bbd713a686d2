package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/filewatchd/internal/metrics"
)

func TestNew_WritesToPrimaryLogAndRing(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "filewatchd.log")
	detailed := filepath.Join(dir, "filewatchd-detail.log")

	m := metrics.New()
	logger, closeFn, err := New(primary, detailed, false, false, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	logger.Info("folder watch active", "folder", `C:\in`)

	data, err := os.ReadFile(primary)
	if err != nil {
		t.Fatalf("read primary log: %v", err)
	}
	if !strings.Contains(string(data), "folder watch active") {
		t.Errorf("primary log missing expected message, got %q", string(data))
	}

	if _, err := os.Stat(detailed); err == nil {
		t.Error("detailed log file should not exist when DetailedLogging is false")
	}

	activity := m.RecentActivity()
	if len(activity) != 1 || activity[0].Message != "folder watch active" {
		t.Errorf("RecentActivity = %+v, want one entry with the logged message", activity)
	}
}

func TestNew_DetailedLoggingWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "filewatchd.log")
	detailed := filepath.Join(dir, "filewatchd-detail.log")

	m := metrics.New()
	logger, closeFn, err := New(primary, detailed, true, true, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	logger.Debug("readiness poll", "path", "/tmp/x.csv")

	data, err := os.ReadFile(detailed)
	if err != nil {
		t.Fatalf("read detailed log: %v", err)
	}
	if !strings.Contains(string(data), "readiness poll") {
		t.Errorf("detailed log missing debug message, got %q", string(data))
	}

	primaryData, err := os.ReadFile(primary)
	if err != nil {
		t.Fatalf("read primary log: %v", err)
	}
	if !strings.Contains(string(primaryData), "readiness poll") {
		t.Errorf("primary log missing debug message with verbose on, got %q", string(primaryData))
	}
}

func TestNew_VerboseFalseSuppressesDebug(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "filewatchd.log")
	detailed := filepath.Join(dir, "filewatchd-detail.log")

	m := metrics.New()
	logger, closeFn, err := New(primary, detailed, false, false, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	logger.Debug("should not appear")
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Error("logger should not be enabled for Debug when verbose is false")
	}

	data, _ := os.ReadFile(primary)
	if strings.Contains(string(data), "should not appear") {
		t.Error("primary log recorded a Debug message below its configured level")
	}
}
