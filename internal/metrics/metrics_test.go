package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	a := assert.New(t)

	m := New()
	m.RequestReceived("chunk")
	m.RequestReceived("chunk")
	m.ErrorOccurred("ERR_CONFLICT")
	m.BytesReceived(128)
	m.UploadCreated()
	m.UploadFinished()
	m.UploadSkipped()

	a.EqualValues(2, *m.requestsTotal["chunk"])
	a.EqualValues(1, *m.errorsTotal.pointerFor("ERR_CONFLICT"))
	a.EqualValues(128, m.bytesReceived)
	a.EqualValues(1, m.uploadsCreated)
	a.EqualValues(1, m.uploadsFinished)
	a.EqualValues(1, m.uploadsSkipped)
}

func TestCollectorDescribeAndCollect(t *testing.T) {
	a := assert.New(t)

	m := New()
	m.BytesReceived(64)
	collector := NewCollector(m)

	descs := make(chan *prometheus.Desc, 16)
	collector.Describe(descs)
	close(descs)
	count := 0
	for range descs {
		count++
	}
	a.Equal(6, count)

	metricsCh := make(chan prometheus.Metric, 16)
	go func() {
		collector.Collect(metricsCh)
		close(metricsCh)
	}()
	seen := 0
	for range metricsCh {
		seen++
	}
	a.Greater(seen, 0)
}
