package pools

import (
	"sync"
	"sync/atomic"
)

// BytePool recycles fixed-size receive buffers.
// Every buffer it hands out has exactly the pool's size.
type BytePool struct {
	pool sync.Pool
	size int

	gets atomic.Uint64
	puts atomic.Uint64
}

// NewBytePool creates a pool of size-byte buffers
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Size returns the length of the buffers handed out
func (bp *BytePool) Size() int {
	return bp.size
}

// Get returns a buffer of Size bytes
func (bp *BytePool) Get() []byte {
	bp.gets.Add(1)
	bufp := bp.pool.Get().(*[]byte)
	return (*bufp)[:bp.size]
}

// Put returns a buffer to the pool. Buffers of a foreign size are left
// to the GC.
func (bp *BytePool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	bp.puts.Add(1)
	buf = buf[:bp.size]
	bp.pool.Put(&buf)
}

// Stats returns the number of Get and Put calls
func (bp *BytePool) Stats() (gets, puts uint64) {
	return bp.gets.Load(), bp.puts.Load()
}
