package pools

import (
	"sync"
	"sync/atomic"
)

// Header buffer sizes
const (
	SmallBufferSize = 256  // status line and a handful of headers
	LargeBufferSize = 2048 // anything longer
)

// BufferPool hands out append buffers for response header blocks
type BufferPool struct {
	small sync.Pool
	large sync.Pool

	smallHits atomic.Uint64
	largeHits atomic.Uint64
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, SmallBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, LargeBufferSize)
				return &buf
			},
		},
	}
}

// Get acquires an empty buffer with room for at least estimatedSize bytes
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	if estimatedSize <= SmallBufferSize {
		bp.smallHits.Add(1)
		return bp.small.Get().(*[]byte)
	}
	bp.largeHits.Add(1)
	return bp.large.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers that grew past the large
// tier are dropped.
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	*buf = (*buf)[:0]

	switch c := cap(*buf); {
	case c < SmallBufferSize:
	case c < LargeBufferSize:
		bp.small.Put(buf)
	case c <= 4*LargeBufferSize:
		bp.large.Put(buf)
	}
}

// Stats returns buffer pool statistics
func (bp *BufferPool) Stats() BufferStats {
	return BufferStats{
		SmallHits: bp.smallHits.Load(),
		LargeHits: bp.largeHits.Load(),
	}
}

// BufferStats contains buffer pool statistics
type BufferStats struct {
	SmallHits uint64
	LargeHits uint64
}

var globalBufferPool = NewBufferPool()

// AcquireBuffer gets a buffer from the global pool
func AcquireBuffer(estimatedSize int) *[]byte {
	return globalBufferPool.Get(estimatedSize)
}

// ReleaseBuffer returns a buffer to the global pool
func ReleaseBuffer(buf *[]byte) {
	globalBufferPool.Put(buf)
}

// GetBufferStats returns statistics for the global buffer pool
func GetBufferStats() BufferStats {
	return globalBufferPool.Stats()
}
