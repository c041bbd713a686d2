// Package daemon wires every component -- config, registry, ledger,
// metrics, executor, watcher supervisor, HTTP endpoint -- into the
// service lifecycle: config first, then registry, then the supervisor
// and its folder tasks, with the HTTP endpoint and metrics refresher
// running alongside, torn down in reverse dependency order on stop.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/filewatchd/internal/config"
	"github.com/ppiankov/filewatchd/internal/executor"
	"github.com/ppiankov/filewatchd/internal/httpapi"
	"github.com/ppiankov/filewatchd/internal/ledger"
	"github.com/ppiankov/filewatchd/internal/logging"
	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
	"github.com/ppiankov/filewatchd/internal/shutdown"
	"github.com/ppiankov/filewatchd/internal/watcher"
)

// supervisorStopBudget bounds the wait for all folder watchers to stop.
// The HTTP endpoint's own 2s shutdown budget lives in httpapi.Server.Stop.
// refresherStopBudget bounds the wait for the metrics refresher to stop.
const (
	supervisorStopBudget = 3 * time.Second
	refresherStopBudget  = 1 * time.Second
)

// Service owns every long-lived component for one daemon run.
type Service struct {
	settings config.Settings

	registry   *registry.Registry
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	executor   *executor.Executor
	supervisor *watcher.Supervisor
	refresher  *metrics.Refresher
	httpServer *httpapi.Server

	stop     *shutdown.Coordinator
	closeLog func() error
	pidPath  string
}

// New loads configuration from configPath and assembles every component,
// without starting any of them -- Run does that.
func New(configPath string, verbose bool) (*Service, error) {
	settings, rawRules, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	m := metrics.New()
	logger, closeLog, err := logging.New(settings.LogFile, settings.DetailedLogFile, settings.DetailedLogging, verbose, m)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	slog.SetDefault(logger)

	reg, err := registry.Load(settings, rawRules)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("load pattern registry: %w", err)
	}

	led, err := ledger.Load(settings.ProcessedFilesDB)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	stop := shutdown.New()
	ex := &executor.Executor{Ledger: led, Metrics: m, Stop: stop}
	sup := watcher.NewSupervisor(reg, led, ex, m, stop)
	refresher := metrics.NewRefresher(m, sup, os.Getpid())

	var httpSrv *httpapi.Server
	if settings.WebServerEnabled {
		httpSrv = httpapi.New(reg, m, sup)
	}

	pidPath := filepath.Join(filepath.Dir(settings.ProcessedFilesDB), "filewatchd.pid")

	return &Service{
		settings:   settings,
		registry:   reg,
		ledger:     led,
		metrics:    m,
		executor:   ex,
		supervisor: sup,
		refresher:  refresher,
		httpServer: httpSrv,
		stop:       stop,
		closeLog:   closeLog,
		pidPath:    pidPath,
	}, nil
}

// Stop latches the shutdown signal, same as a console interrupt. Exported
// so an external caller (a host-lifecycle stop hook, or a test) can trigger
// an orderly shutdown programmatically.
func (s *Service) Stop() { s.stop.Stop() }

// Run blocks until the shutdown signal fires (console interrupt, or a
// host-lifecycle hook calling Stop), then runs the ordered shutdown
// sequence and returns. It returns an error at once, without starting
// anything, if another live instance holds the PID lock.
func (s *Service) Run() error {
	if err := acquirePIDLock(s.pidPath); err != nil {
		return err
	}
	defer releasePIDLock(s.pidPath)

	slog.Info("filewatchd starting",
		"folders", len(s.registry.Folders()),
		"patterns", len(s.registry.Rules()),
		"web_server_enabled", s.settings.WebServerEnabled,
	)

	s.supervisor.StartAll()

	if s.httpServer != nil {
		addr, err := s.httpServer.Start(s.settings.WebServerPort)
		if err != nil {
			slog.Error("metrics endpoint failed to start", "error", err)
		} else {
			slog.Info("metrics endpoint listening", "addr", addr)
		}
	}

	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		s.refresher.Run(refresherCtx)
	}()

	<-s.stop.Done()
	return s.shutdown(refresherCancel, refresherDone)
}

// shutdown stops every component in order -- HTTP endpoint, watcher
// supervisor, metrics refresher, then ledger save and log close -- each
// step budgeted so a stuck component cannot block the whole sequence past
// its own allotment.
func (s *Service) shutdown(refresherCancel context.CancelFunc, refresherDone <-chan struct{}) error {
	slog.Info("filewatchd stopping")

	if s.httpServer != nil {
		if err := s.httpServer.Stop(); err != nil {
			slog.Error("metrics endpoint stop error", "error", err)
		}
	}

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		s.supervisor.StopAll()
	}()
	select {
	case <-supervisorDone:
	case <-time.After(supervisorStopBudget + 500*time.Millisecond):
		slog.Warn("watcher supervisor did not stop within its overall budget")
	}

	refresherCancel()
	select {
	case <-refresherDone:
	case <-time.After(refresherStopBudget):
		slog.Warn("metrics refresher did not stop within budget")
	}

	if err := s.ledger.Save(); err != nil {
		slog.Error("final ledger save failed", "error", err)
	}

	slog.Info("filewatchd stopped")
	if s.closeLog != nil {
		return s.closeLog()
	}
	return nil
}
