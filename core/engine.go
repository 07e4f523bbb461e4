package core

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core/middleware"
	"github.com/searchktools/static-server/core/observability"
	"github.com/searchktools/static-server/core/pools"
	"github.com/searchktools/static-server/core/router"
	"github.com/searchktools/static-server/core/static"
)

// Engine owns the listening socket and starts one session per accepted
// connection.
type Engine struct {
	cfg      *config.Config
	router   *router.Router
	logger   *observability.Logger
	monitor  *observability.PerformanceMonitor
	resolver *static.Resolver
	fs       static.FileSystem

	supervisor  *pools.Supervisor
	bytePool    *pools.BytePool
	sessionPool *pools.ConnectionPool

	mu           sync.Mutex
	listener     net.Listener
	shuttingDown atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the log sink. The default discards everything.
func WithLogger(l *observability.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMonitor sets the metrics collector
func WithMonitor(m *observability.PerformanceMonitor) Option {
	return func(e *Engine) { e.monitor = m }
}

// WithFileSystem replaces the OS filesystem used for static content
func WithFileSystem(fs static.FileSystem) Option {
	return func(e *Engine) { e.fs = fs }
}

// NewEngine creates a new engine instance
func NewEngine(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		supervisor: pools.NewSupervisor(),
		bytePool:   pools.NewBytePool(RecvBufferSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = observability.Discard()
	}
	if e.monitor == nil {
		e.monitor = observability.NewPerformanceMonitor()
	}

	e.resolver = static.NewResolver(cfg.Serving, e.fs)
	e.router = router.New(cfg.Serving, e.resolver, middleware.Metrics(e.monitor))

	e.sessionPool = pools.NewConnectionPool(func() any {
		return newSession(e)
	})

	return e
}

// Monitor returns the engine's metrics collector
func (e *Engine) Monitor() *observability.PerformanceMonitor {
	return e.monitor
}

// Listen opens the TCP listening socket for addr, with SO_REUSEPORT when
// the config asks for it
func (e *Engine) Listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl(e.cfg.ReusePort)}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Run listens on addr and serves until Shutdown or a fatal accept error
func (e *Engine) Run(addr string) error {
	ln, err := e.Listen(addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve accepts connections on ln. Each one is handed to its own session
// goroutine and never waited on here.
//
// Serve returns ErrServerClosed after Shutdown. Any other accept failure is
// returned as is, and the caller is expected to exit.
func (e *Engine) Serve(ln net.Listener) error {
	e.mu.Lock()
	if e.shuttingDown.Load() {
		e.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	e.listener = ln
	e.mu.Unlock()

	e.logger.Infof("🚀 Listening on %s, serving %s (idle timeout %v, max %d requests per connection)",
		ln.Addr(), e.cfg.Serving, e.cfg.IdleTimeout, e.cfg.MaxRequests)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.shuttingDown.Load() {
				return ErrServerClosed
			}
			e.logger.Errorf("Accept error: %v", err)
			return fmt.Errorf("accept: %w", err)
		}

		e.startSession(conn)
	}
}

func (e *Engine) startSession(conn net.Conn) {
	s := e.sessionPool.Get().(*Session)
	s.attach(conn)
	e.monitor.ConnectionOpened()
	e.logger.Infof("Client connected: %s", s.peer)

	started := e.supervisor.Go(func() {
		s.Run()
		e.sessionPool.Put(s)
	})
	if !started {
		s.close()
		e.sessionPool.Put(s)
	}
}

// Addr returns the listener address, or nil before Serve
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Shutdown stops accepting connections and waits for running sessions to
// end on their own, or for ctx to expire. Sessions are not interrupted;
// each ends within one idle timeout of its last request.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.shuttingDown.Store(true)
	ln := e.listener
	e.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil {
			e.logger.Warnf("closing listener: %v", err)
		}
	}
	e.supervisor.Close()

	active := e.supervisor.Stats().Active
	if active > 0 {
		e.logger.Infof("Waiting for %d active connection(s)", active)
	}

	start := time.Now()
	if err := e.supervisor.Wait(ctx); err != nil {
		return fmt.Errorf("shutdown: %d connection(s) still active after %v: %w",
			e.supervisor.Stats().Active, time.Since(start).Round(time.Millisecond), err)
	}
	return nil
}
