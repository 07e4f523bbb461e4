package pools

import (
	"sync"
	"sync/atomic"
)

// ConnectionPool manages per-connection object pooling
type ConnectionPool struct {
	pool sync.Pool
	gets atomic.Uint64
	puts atomic.Uint64
}

// Poolable objects are reset before they go back to the pool
type Poolable interface {
	Reset()
}

// NewConnectionPool creates a new connection pool
func NewConnectionPool(newFunc func() any) *ConnectionPool {
	cp := &ConnectionPool{}
	cp.pool.New = newFunc
	return cp
}

// Get retrieves an object from the pool
func (cp *ConnectionPool) Get() any {
	cp.gets.Add(1)
	return cp.pool.Get()
}

// Put resets obj and returns it to the pool
func (cp *ConnectionPool) Put(obj any) {
	if poolable, ok := obj.(Poolable); ok {
		poolable.Reset()
	}
	cp.puts.Add(1)
	cp.pool.Put(obj)
}

// Stats returns pool statistics. hitRate is the share of Gets that were
// matched by an earlier Put.
func (cp *ConnectionPool) Stats() (gets, puts uint64, hitRate float64) {
	g := cp.gets.Load()
	p := cp.puts.Load()

	if g > 0 {
		hitRate = float64(p) / float64(g)
		if hitRate > 1 {
			hitRate = 1
		}
	}

	return g, p, hitRate
}
