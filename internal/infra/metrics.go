package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	requestsSent     atomic.Uint64
	requestErrors    atomic.Uint64
	ordersPlaced     atomic.Uint64
	ordersCanceled   atomic.Uint64
	streamEvents     atomic.Uint64
	streamReconnects atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	streamConnected atomic.Int32 // 1 = connected, 0 = down
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordRequest records one REST request attempt with its latency.
func (m *Metrics) RecordRequest(latencyNs int64) {
	m.requestsSent.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRequestError records a failed REST request.
func (m *Metrics) RecordRequestError() {
	m.requestErrors.Add(1)
}

// RecordOrderPlaced records a successfully placed order.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderCanceled records a successfully canceled order.
func (m *Metrics) RecordOrderCanceled() {
	m.ordersCanceled.Add(1)
}

// RecordStreamEvent records one consumed user-data stream event.
func (m *Metrics) RecordStreamEvent() {
	m.streamEvents.Add(1)
}

// RecordStreamReconnect records a user-data stream reconnect attempt.
func (m *Metrics) RecordStreamReconnect() {
	m.streamReconnects.Add(1)
}

// SetStreamConnected sets the user-data stream gauge.
func (m *Metrics) SetStreamConnected(connected bool) {
	if connected {
		m.streamConnected.Store(1)
	} else {
		m.streamConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	RequestsSent     uint64
	RequestErrors    uint64
	OrdersPlaced     uint64
	OrdersCanceled   uint64
	StreamEvents     uint64
	StreamReconnects uint64
	AvgLatencyNs     int64
	StreamConnected  bool
	Timestamp        time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		RequestsSent:     m.requestsSent.Load(),
		RequestErrors:    m.requestErrors.Load(),
		OrdersPlaced:     m.ordersPlaced.Load(),
		OrdersCanceled:   m.ordersCanceled.Load(),
		StreamEvents:     m.streamEvents.Load(),
		StreamReconnects: m.streamReconnects.Load(),
		AvgLatencyNs:     avgLatency,
		StreamConnected:  m.streamConnected.Load() == 1,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.requestsSent.Store(0)
	m.requestErrors.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersCanceled.Store(0)
	m.streamEvents.Store(0)
	m.streamReconnects.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.streamConnected.Store(0)
}
