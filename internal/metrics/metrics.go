// Package metrics implements upload.Metrics on top of atomic counters
// and exposes them to Prometheus via a prometheus.Collector, so scraping
// never contends with the hot request path.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counter events from an upload.UploadEngine.
type Metrics struct {
	requestsTotal map[string]*uint64
	errorsTotal   *errorsTotalMap

	bytesReceived   uint64
	uploadsCreated  uint64
	uploadsFinished uint64
	uploadsSkipped  uint64
}

// New creates a Metrics ready to be passed to upload.WithMetrics and
// wrapped in a Collector for registration with Prometheus.
func New() *Metrics {
	requestsTotal := make(map[string]*uint64)
	for _, name := range []string{"pre-request", "chunk", "status"} {
		var v uint64
		requestsTotal[name] = &v
	}

	return &Metrics{
		requestsTotal: requestsTotal,
		errorsTotal:   newErrorsTotalMap(),
	}
}

func (m *Metrics) RequestReceived(handler string) {
	if v, ok := m.requestsTotal[handler]; ok {
		atomic.AddUint64(v, 1)
	}
}

func (m *Metrics) ErrorOccurred(code string) {
	atomic.AddUint64(m.errorsTotal.pointerFor(code), 1)
}

func (m *Metrics) BytesReceived(n int64) {
	if n > 0 {
		atomic.AddUint64(&m.bytesReceived, uint64(n))
	}
}

func (m *Metrics) UploadCreated()  { atomic.AddUint64(&m.uploadsCreated, 1) }
func (m *Metrics) UploadFinished() { atomic.AddUint64(&m.uploadsFinished, 1) }
func (m *Metrics) UploadSkipped()  { atomic.AddUint64(&m.uploadsSkipped, 1) }

// errorsTotalMap lazily creates one counter per error code the first
// time it is seen, the same pattern tusd uses to avoid pre-declaring
// every possible (status, message) pair.
type errorsTotalMap struct {
	mutex  sync.RWMutex
	byCode map[string]*uint64
}

func newErrorsTotalMap() *errorsTotalMap {
	return &errorsTotalMap{byCode: make(map[string]*uint64)}
}

func (m *errorsTotalMap) pointerFor(code string) *uint64 {
	m.mutex.RLock()
	v, ok := m.byCode[code]
	m.mutex.RUnlock()
	if ok {
		return v
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if v, ok := m.byCode[code]; ok {
		return v
	}
	v = new(uint64)
	m.byCode[code] = v
	return v
}

func (m *errorsTotalMap) load() map[string]*uint64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]*uint64, len(m.byCode))
	for k, v := range m.byCode {
		out[k] = v
	}
	return out
}

var (
	requestsTotalDesc = prometheus.NewDesc(
		"collector_upload_requests_total",
		"Total number of requests served per handler.",
		[]string{"handler"}, nil)
	errorsTotalDesc = prometheus.NewDesc(
		"collector_upload_errors_total",
		"Total number of errors per error code.",
		[]string{"code"}, nil)
	bytesReceivedDesc = prometheus.NewDesc(
		"collector_upload_bytes_received",
		"Number of bytes received for uploads.",
		nil, nil)
	uploadsCreatedDesc = prometheus.NewDesc(
		"collector_upload_uploads_created",
		"Number of created uploads.",
		nil, nil)
	uploadsFinishedDesc = prometheus.NewDesc(
		"collector_upload_uploads_finished",
		"Number of finished uploads.",
		nil, nil)
	uploadsSkippedDesc = prometheus.NewDesc(
		"collector_upload_uploads_skipped",
		"Number of uploads the server deliberately refused.",
		nil, nil)
)

// Collector adapts Metrics to prometheus.Collector.
type Collector struct {
	metrics *Metrics
}

// NewCollector wraps m for registration with prometheus.MustRegister.
func NewCollector(m *Metrics) Collector {
	return Collector{metrics: m}
}

func (Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- requestsTotalDesc
	descs <- errorsTotalDesc
	descs <- bytesReceivedDesc
	descs <- uploadsCreatedDesc
	descs <- uploadsFinishedDesc
	descs <- uploadsSkippedDesc
}

func (c Collector) Collect(out chan<- prometheus.Metric) {
	for handler, v := range c.metrics.requestsTotal {
		out <- prometheus.MustNewConstMetric(requestsTotalDesc, prometheus.CounterValue, float64(atomic.LoadUint64(v)), handler)
	}

	for code, v := range c.metrics.errorsTotal.load() {
		out <- prometheus.MustNewConstMetric(errorsTotalDesc, prometheus.CounterValue, float64(atomic.LoadUint64(v)), code)
	}

	out <- prometheus.MustNewConstMetric(bytesReceivedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.metrics.bytesReceived)))
	out <- prometheus.MustNewConstMetric(uploadsCreatedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.metrics.uploadsCreated)))
	out <- prometheus.MustNewConstMetric(uploadsFinishedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.metrics.uploadsFinished)))
	out <- prometheus.MustNewConstMetric(uploadsSkippedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.metrics.uploadsSkipped)))
}
