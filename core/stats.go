package core

import (
	"github.com/searchktools/static-server/core/pools"
)

// Stats is the engine's view of its pools and sessions
type Stats struct {
	Sessions      pools.SupervisorStats `json:"sessions"`
	SessionPool   PoolStats             `json:"session_pool"`
	RecvBuffers   PoolStats             `json:"recv_buffers"`
	HeaderBuffers pools.BufferStats     `json:"header_buffers"`
}

// PoolStats are Get/Put counters of one pool
type PoolStats struct {
	Gets    uint64  `json:"gets"`
	Puts    uint64  `json:"puts"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns statistics for sessions and memory pools
func (e *Engine) Stats() Stats {
	stats := Stats{
		Sessions:      e.supervisor.Stats(),
		HeaderBuffers: pools.GetBufferStats(),
	}

	gets, puts, hitRate := e.sessionPool.Stats()
	stats.SessionPool = PoolStats{Gets: gets, Puts: puts, HitRate: hitRate}

	gets, puts = e.bytePool.Stats()
	stats.RecvBuffers = PoolStats{Gets: gets, Puts: puts}
	if gets > 0 {
		stats.RecvBuffers.HitRate = float64(puts) / float64(gets)
	}

	return stats
}

// Snapshot merges request metrics and engine statistics into one generic
// map, ready for a codec.
func (e *Engine) Snapshot() map[string]any {
	snap := e.monitor.Snapshot().Map()

	s := e.Stats()
	snap["sessions"] = map[string]any{
		"started":   float64(s.Sessions.Started),
		"completed": float64(s.Sessions.Completed),
		"active":    float64(s.Sessions.Active),
		"rejected":  float64(s.Sessions.Rejected),
	}
	snap["pools"] = map[string]any{
		"session_hit_rate":    s.SessionPool.HitRate,
		"recv_buffer_gets":    float64(s.RecvBuffers.Gets),
		"recv_buffer_puts":    float64(s.RecvBuffers.Puts),
		"header_buffer_small": float64(s.HeaderBuffers.SmallHits),
		"header_buffer_large": float64(s.HeaderBuffers.LargeHits),
	}
	return snap
}
