package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core"
	"github.com/searchktools/static-server/core/codec"
	"github.com/searchktools/static-server/core/observability"
)

// drainGrace is added to the idle timeout when waiting for sessions on
// shutdown.
const drainGrace = time.Second

// App is the application instance: one engine, its log sink and metrics
type App struct {
	cfg     *config.Config
	logger  *observability.Logger
	monitor *observability.PerformanceMonitor
	engine  *core.Engine
}

// New creates an application instance, opening the log file if one is
// configured.
func New(cfg *config.Config) (*App, error) {
	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := observability.OpenLogger(cfg.LogFile, level)
	if err != nil {
		return nil, err
	}
	return NewWithLogger(cfg, logger), nil
}

// NewWithLogger creates an application instance logging to logger
func NewWithLogger(cfg *config.Config, logger *observability.Logger) *App {
	monitor := observability.NewPerformanceMonitor()
	engine := core.NewEngine(cfg,
		core.WithLogger(logger),
		core.WithMonitor(monitor),
	)

	return &App{
		cfg:     cfg,
		logger:  logger,
		monitor: monitor,
		engine:  engine,
	}
}

// Engine returns the underlying engine
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Serve(ctx)
}

// Serve listens on the configured port and serves until ctx is done or
// accepting fails. A bind failure or a fatal accept error is returned;
// a clean shutdown returns nil.
func (a *App) Serve(ctx context.Context) error {
	defer a.logger.Close()

	ln, err := a.engine.Listen(a.cfg.Addr())
	if err != nil {
		a.logger.Errorf("Server startup failed: %v", err)
		return err
	}
	a.logger.Infof("Static server starting on port %d [%s]", a.cfg.Port, a.cfg.Env)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.engine.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		a.dumpStats()
		return err

	case <-ctx.Done():
		a.logger.Infof("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.IdleTimeout+drainGrace)
	defer cancel()

	shutdownErr := a.engine.Shutdown(shutdownCtx)
	if err := <-serveErr; err != nil && !errors.Is(err, core.ErrServerClosed) {
		a.logger.Errorf("Serve: %v", err)
	}
	if shutdownErr != nil {
		a.logger.Warnf("%v", shutdownErr)
	}

	a.dumpStats()
	a.logger.Infof("Server stopped")
	return nil
}

func (a *App) dumpStats() {
	if a.cfg.StatsFile == "" {
		return
	}
	if err := WriteStats(a.cfg.StatsFile, a.engine.Snapshot()); err != nil {
		a.logger.Errorf("Writing stats: %v", err)
		return
	}
	a.logger.Infof("Stats written to %s", a.cfg.StatsFile)
}

// WriteStats encodes snapshot with the codec matching path and writes it
func WriteStats(path string, snapshot map[string]any) error {
	c := codec.ForFile(path)
	data, err := c.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", c.Name(), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
