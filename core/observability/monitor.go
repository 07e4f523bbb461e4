package observability

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMonitor collects per-route request metrics and connection
// lifecycle counters. All methods are safe for concurrent use.
type PerformanceMonitor struct {
	enabled  atomic.Bool
	handlers sync.Map
	global   struct {
		totalRequests atomic.Uint64
		totalDuration atomic.Uint64
		bytesSent     atomic.Uint64
	}
	conns struct {
		opened       atomic.Uint64
		closed       atomic.Uint64
		idleTimeouts atomic.Uint64
		badRequests  atomic.Uint64
		writeErrors  atomic.Uint64
	}
	startedAt time.Time
}

// HandlerMetrics stores per-route metrics
type HandlerMetrics struct {
	Name           string
	Count          atomic.Uint64
	Errors         atomic.Uint64
	TotalDuration  atomic.Uint64
	MinDuration    atomic.Uint64
	MaxDuration    atomic.Uint64
	latencyBuckets [10]atomic.Uint64
}

// noMin marks a route that has not recorded a duration yet
const noMin = math.MaxUint64

func newHandlerMetrics(name string) *HandlerMetrics {
	m := &HandlerMetrics{Name: name}
	m.MinDuration.Store(noMin)
	return m
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type     string
	Location string
	Severity int
	Impact   float64
	Details  string
}

// Upper bounds of the latency buckets; the last bucket is unbounded
var bucketBounds = [9]time.Duration{
	100 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// NewPerformanceMonitor creates an enabled monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{startedAt: time.Now()}
	pm.enabled.Store(true)
	return pm
}

// SetEnabled turns recording on or off
func (pm *PerformanceMonitor) SetEnabled(on bool) {
	pm.enabled.Store(on)
}

// RecordRequest records one handled request
func (pm *PerformanceMonitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if !pm.enabled.Load() {
		return
	}

	val, ok := pm.handlers.Load(route)
	if !ok {
		val, _ = pm.handlers.LoadOrStore(route, newHandlerMetrics(route))
	}
	metrics := val.(*HandlerMetrics)

	metrics.Count.Add(1)
	if isError {
		metrics.Errors.Add(1)
	}

	durationNs := uint64(duration.Nanoseconds())
	metrics.TotalDuration.Add(durationNs)
	pm.updateMinMax(metrics, durationNs)
	metrics.latencyBuckets[bucketIndex(duration)].Add(1)

	pm.global.totalRequests.Add(1)
	pm.global.totalDuration.Add(durationNs)
}

// RecordBytes adds to the bytes-sent counter
func (pm *PerformanceMonitor) RecordBytes(n int) {
	if n > 0 && pm.enabled.Load() {
		pm.global.bytesSent.Add(uint64(n))
	}
}

// ConnectionOpened counts an accepted connection
func (pm *PerformanceMonitor) ConnectionOpened() { pm.conns.opened.Add(1) }

// ConnectionClosed counts a finished session
func (pm *PerformanceMonitor) ConnectionClosed() { pm.conns.closed.Add(1) }

// IdleTimeout counts a session ended by its idle deadline
func (pm *PerformanceMonitor) IdleTimeout() { pm.conns.idleTimeouts.Add(1) }

// BadRequest counts an unparseable request
func (pm *PerformanceMonitor) BadRequest() { pm.conns.badRequests.Add(1) }

// WriteError counts a failed response transmission
func (pm *PerformanceMonitor) WriteError() { pm.conns.writeErrors.Add(1) }

func (pm *PerformanceMonitor) updateMinMax(m *HandlerMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

func bucketIndex(d time.Duration) int {
	for i, bound := range bucketBounds {
		if d < bound {
			return i
		}
	}
	return len(bucketBounds)
}

func (pm *PerformanceMonitor) detectBottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	pm.handlers.Range(func(key, value any) bool {
		m := value.(*HandlerMetrics)
		count := m.Count.Load()
		if count == 0 {
			return true
		}

		avgDuration := time.Duration(m.TotalDuration.Load() / count)
		if avgDuration > 100*time.Millisecond {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "latency",
				Location: m.Name,
				Severity: 8,
				Impact:   100.0,
				Details:  fmt.Sprintf("High latency (%v avg)", avgDuration),
			})
		}

		errors := m.Errors.Load()
		if errors > 0 && float64(errors)/float64(count) > 0.05 {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "errors",
				Location: m.Name,
				Severity: 10,
				Impact:   float64(errors) / float64(count) * 100,
				Details:  fmt.Sprintf("%.1f%% error rate", float64(errors)/float64(count)*100),
			})
		}

		return true
	})

	sort.Slice(bottlenecks, func(i, j int) bool {
		if bottlenecks[i].Location != bottlenecks[j].Location {
			return bottlenecks[i].Location < bottlenecks[j].Location
		}
		return bottlenecks[i].Type < bottlenecks[j].Type
	})
	return bottlenecks
}

// StartTrace starts timing. It returns 0 while the monitor is disabled.
func (pm *PerformanceMonitor) StartTrace() int64 {
	if !pm.enabled.Load() {
		return 0
	}
	return time.Now().UnixNano()
}

// EndTrace ends timing and records
func (pm *PerformanceMonitor) EndTrace(route string, startTime int64, isError bool) {
	if startTime == 0 {
		return
	}
	duration := time.Duration(time.Now().UnixNano() - startTime)
	pm.RecordRequest(route, duration, isError)
}
