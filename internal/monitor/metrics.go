// Package monitor tracks pipeline health: counters and latency histograms
// fed from the event bus and the execution path, exposed as a JSON snapshot.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks overall system performance.
type SystemMetrics struct {
	// Latency histograms
	CycleLatency  *LatencyHistogram
	SignalLatency *LatencyHistogram
	StoreLatency  *LatencyHistogram

	// Counters
	ticksProcessed  uint64
	candlesClosed   uint64
	signalsFired    uint64
	ordersSubmitted uint64
	riskDenials     uint64
	errorsCount     uint64

	startedAt time.Time
}

// LatencyHistogram keeps the most recent samples in a fixed ring and
// computes percentile stats lazily, only when samples changed since the
// last read.
type LatencyHistogram struct {
	mu     sync.Mutex
	ring   []float64
	next   int
	filled bool
	dirty  bool
	cached LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		CycleLatency:  NewLatencyHistogram(1000),
		SignalLatency: NewLatencyHistogram(1000),
		StoreLatency:  NewLatencyHistogram(1000),
		startedAt:     time.Now(),
	}
}

// NewLatencyHistogram creates a histogram retaining the last size samples.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		ring:  make([]float64, size),
		dirty: true,
	}
}

// Record adds a latency sample in milliseconds, evicting the oldest
// sample once the ring is full.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = latencyMs
	h.next++
	if h.next == len(h.ring) {
		h.next = 0
		h.filled = true
	}
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d) / float64(time.Millisecond))
}

// Stats returns min, max, avg, p50, p95, p99 over the retained window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cached
	}

	n := h.next
	if h.filled {
		n = len(h.ring)
	}
	if n == 0 {
		return LatencyStats{}
	}

	sorted := append([]float64(nil), h.ring[:n]...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Count: n,
	}
	h.dirty = false

	return h.cached
}

func percentile(sorted []float64, q float64) float64 {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementTicks increments the processed tick counter.
func (m *SystemMetrics) IncrementTicks() {
	atomic.AddUint64(&m.ticksProcessed, 1)
}

// IncrementCandles increments the closed candle counter.
func (m *SystemMetrics) IncrementCandles() {
	atomic.AddUint64(&m.candlesClosed, 1)
}

// IncrementSignals increments the fired signal counter.
func (m *SystemMetrics) IncrementSignals() {
	atomic.AddUint64(&m.signalsFired, 1)
}

// IncrementOrders increments the submitted order counter.
func (m *SystemMetrics) IncrementOrders() {
	atomic.AddUint64(&m.ordersSubmitted, 1)
}

// IncrementRiskDenials increments the risk denial counter.
func (m *SystemMetrics) IncrementRiskDenials() {
	atomic.AddUint64(&m.riskDenials, 1)
}

// IncrementErrors increments the error counter.
func (m *SystemMetrics) IncrementErrors() {
	atomic.AddUint64(&m.errorsCount, 1)
}

// MetricsSnapshot is a point-in-time metrics view.
type MetricsSnapshot struct {
	CycleLatency    LatencyStats `json:"cycle_latency"`
	SignalLatency   LatencyStats `json:"signal_latency"`
	StoreLatency    LatencyStats `json:"store_latency"`
	TicksProcessed  uint64       `json:"ticks_processed"`
	CandlesClosed   uint64       `json:"candles_closed"`
	SignalsFired    uint64       `json:"signals_fired"`
	OrdersSubmitted uint64       `json:"orders_submitted"`
	RiskDenials     uint64       `json:"risk_denials"`
	ErrorsCount     uint64       `json:"errors_count"`
	GoroutineCount  int          `json:"goroutine_count"`
	HeapAlloc       uint64       `json:"heap_alloc_bytes"`
	HeapSys         uint64       `json:"heap_sys_bytes"`
	UptimeSeconds   float64      `json:"uptime_seconds"`
	Timestamp       time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		CycleLatency:    m.CycleLatency.Stats(),
		SignalLatency:   m.SignalLatency.Stats(),
		StoreLatency:    m.StoreLatency.Stats(),
		TicksProcessed:  atomic.LoadUint64(&m.ticksProcessed),
		CandlesClosed:   atomic.LoadUint64(&m.candlesClosed),
		SignalsFired:    atomic.LoadUint64(&m.signalsFired),
		OrdersSubmitted: atomic.LoadUint64(&m.ordersSubmitted),
		RiskDenials:     atomic.LoadUint64(&m.riskDenials),
		ErrorsCount:     atomic.LoadUint64(&m.errorsCount),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		HeapSys:         memStats.HeapSys,
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		Timestamp:       time.Now(),
	}
}

// Timer measures one operation and records it into a histogram on Stop.
type Timer struct {
	start time.Time
	hist  *LatencyHistogram
}

// NewTimer starts a timer against the given histogram. A nil histogram is
// allowed; Stop then only reports the elapsed time.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), hist: h}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.hist != nil {
		t.hist.RecordDuration(elapsed)
	}
	return elapsed
}
