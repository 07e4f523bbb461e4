package pools

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task represents a unit of work
type Task func()

// Supervisor runs every task on its own goroutine and keeps count of them.
// There is no cap on concurrent tasks and no task is awaited on its own;
// tracking exists for statistics and for draining on shutdown.
type Supervisor struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	// Statistics
	stats struct {
		started   atomic.Uint64
		completed atomic.Uint64
		rejected  atomic.Uint64
	}
}

// NewSupervisor creates an open supervisor
func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Go starts task on a new goroutine. It returns false, without running
// task, once Close has been called.
func (s *Supervisor) Go(task Task) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.stats.rejected.Add(1)
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.stats.started.Add(1)
	go func() {
		defer func() {
			s.stats.completed.Add(1)
			s.wg.Done()
		}()
		task()
	}()

	return true
}

// Close stops the supervisor from accepting tasks. Running tasks are
// left alone.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every started task has returned or ctx is done.
// It should be called after Close.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns supervisor statistics
func (s *Supervisor) Stats() SupervisorStats {
	started := s.stats.started.Load()
	completed := s.stats.completed.Load()
	return SupervisorStats{
		Started:   started,
		Completed: completed,
		Active:    started - completed,
		Rejected:  s.stats.rejected.Load(),
	}
}

// SupervisorStats contains supervisor statistics
type SupervisorStats struct {
	Started   uint64
	Completed uint64
	Active    uint64
	Rejected  uint64
}
