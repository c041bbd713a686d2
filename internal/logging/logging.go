// Package logging wires the daemon's structured logger to its primary log
// file, an optional detailed log file, the console, and the in-memory
// recent-activity ring, the way the daemon's CLI root command installs a
// single slog.Handler at startup.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/filewatchd/internal/metrics"
)

// ringRecorder receives one formatted line per logged record. Metrics
// implements this; kept as an interface so logging does not otherwise
// depend on the metrics package's internals.
type ringRecorder interface {
	Log(message string)
}

// fanoutHandler forwards every record to a primary handler, optionally a
// detailed handler, and the metrics activity ring.
type fanoutHandler struct {
	primary  slog.Handler
	detailed slog.Handler // nil when DetailedLogging is off
	ring     ringRecorder
}

// New builds the daemon's logger. primaryPath is always written to (plus
// stderr); detailedPath additionally receives every record, with attributes, when
// detailed is true. verbose raises the minimum level to Debug, matching
// the --verbose flag.
func New(primaryPath, detailedPath string, detailed, verbose bool, ring *metrics.Metrics) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	primaryFile, err := openLogFile(primaryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open primary log: %w", err)
	}

	primaryWriter := io.MultiWriter(os.Stderr, primaryFile)
	primary := slog.NewTextHandler(primaryWriter, &slog.HandlerOptions{Level: level})

	var detailedHandler slog.Handler
	var detailedFile *os.File
	if detailed {
		detailedFile, err = openLogFile(detailedPath)
		if err != nil {
			_ = primaryFile.Close()
			return nil, nil, fmt.Errorf("open detailed log: %w", err)
		}
		detailedHandler = slog.NewTextHandler(detailedFile, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	}

	h := &fanoutHandler{primary: primary, detailed: detailedHandler, ring: ring}
	closeFn := func() error {
		err := primaryFile.Close()
		if detailedFile != nil {
			if derr := detailedFile.Close(); err == nil {
				err = derr
			}
		}
		return err
	}
	return slog.New(h), closeFn, nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.detailed != nil && h.detailed.Enabled(ctx, level) {
		return true
	}
	return h.primary.Enabled(ctx, level)
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	if h.detailed != nil && h.detailed.Enabled(ctx, r.Level) {
		if err := h.detailed.Handle(ctx, r); err != nil {
			return err
		}
	}
	if h.ring != nil {
		h.ring.Log(r.Message)
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &fanoutHandler{primary: h.primary.WithAttrs(attrs), ring: h.ring}
	if h.detailed != nil {
		out.detailed = h.detailed.WithAttrs(attrs)
	}
	return out
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	out := &fanoutHandler{primary: h.primary.WithGroup(name), ring: h.ring}
	if h.detailed != nil {
		out.detailed = h.detailed.WithGroup(name)
	}
	return out
}
