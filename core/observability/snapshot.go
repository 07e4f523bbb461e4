package observability

import (
	"sort"
	"time"
)

// Snapshot is a point-in-time copy of the monitor's counters
type Snapshot struct {
	Uptime        time.Duration
	TotalRequests uint64
	AvgDuration   time.Duration
	BytesSent     uint64

	ConnectionsOpened uint64
	ConnectionsClosed uint64
	IdleTimeouts      uint64
	BadRequests       uint64
	WriteErrors       uint64

	Routes      []RouteSnapshot
	Bottlenecks []Bottleneck
}

// RouteSnapshot holds one route's counters
type RouteSnapshot struct {
	Name        string
	Count       uint64
	Errors      uint64
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	Buckets     [10]uint64
}

// Snapshot copies the current counters. Routes are sorted by name.
func (pm *PerformanceMonitor) Snapshot() Snapshot {
	s := Snapshot{
		Uptime:            time.Since(pm.startedAt),
		TotalRequests:     pm.global.totalRequests.Load(),
		BytesSent:         pm.global.bytesSent.Load(),
		ConnectionsOpened: pm.conns.opened.Load(),
		ConnectionsClosed: pm.conns.closed.Load(),
		IdleTimeouts:      pm.conns.idleTimeouts.Load(),
		BadRequests:       pm.conns.badRequests.Load(),
		WriteErrors:       pm.conns.writeErrors.Load(),
	}
	if s.TotalRequests > 0 {
		s.AvgDuration = time.Duration(pm.global.totalDuration.Load() / s.TotalRequests)
	}

	pm.handlers.Range(func(key, value any) bool {
		m := value.(*HandlerMetrics)
		r := RouteSnapshot{
			Name:        m.Name,
			Count:       m.Count.Load(),
			Errors:      m.Errors.Load(),
			MaxDuration: time.Duration(m.MaxDuration.Load()),
		}
		if min := m.MinDuration.Load(); min != noMin {
			r.MinDuration = time.Duration(min)
		}
		if r.Count > 0 {
			r.AvgDuration = time.Duration(m.TotalDuration.Load() / r.Count)
		}
		for i := range m.latencyBuckets {
			r.Buckets[i] = m.latencyBuckets[i].Load()
		}
		s.Routes = append(s.Routes, r)
		return true
	})
	sort.Slice(s.Routes, func(i, j int) bool { return s.Routes[i].Name < s.Routes[j].Name })

	s.Bottlenecks = pm.detectBottlenecks()
	return s
}

// Route returns the snapshot for one route
func (s Snapshot) Route(name string) (RouteSnapshot, bool) {
	for _, r := range s.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return RouteSnapshot{}, false
}

// Map converts the snapshot into nested generic values, the shape that
// encoding/json and structpb both accept. Durations are in seconds.
func (s Snapshot) Map() map[string]any {
	routes := make([]any, 0, len(s.Routes))
	for _, r := range s.Routes {
		buckets := make([]any, len(r.Buckets))
		for i, b := range r.Buckets {
			buckets[i] = float64(b)
		}
		routes = append(routes, map[string]any{
			"name":         r.Name,
			"count":        float64(r.Count),
			"errors":       float64(r.Errors),
			"avg_seconds":  r.AvgDuration.Seconds(),
			"min_seconds":  r.MinDuration.Seconds(),
			"max_seconds":  r.MaxDuration.Seconds(),
			"latency_hist": buckets,
		})
	}

	bottlenecks := make([]any, 0, len(s.Bottlenecks))
	for _, b := range s.Bottlenecks {
		bottlenecks = append(bottlenecks, map[string]any{
			"type":     b.Type,
			"location": b.Location,
			"severity": float64(b.Severity),
			"impact":   b.Impact,
			"details":  b.Details,
		})
	}

	return map[string]any{
		"uptime_seconds": s.Uptime.Seconds(),
		"requests":       float64(s.TotalRequests),
		"avg_seconds":    s.AvgDuration.Seconds(),
		"bytes_sent":     float64(s.BytesSent),
		"connections": map[string]any{
			"opened":        float64(s.ConnectionsOpened),
			"closed":        float64(s.ConnectionsClosed),
			"idle_timeouts": float64(s.IdleTimeouts),
			"bad_requests":  float64(s.BadRequests),
			"write_errors":  float64(s.WriteErrors),
		},
		"routes":      routes,
		"bottlenecks": bottlenecks,
	}
}
