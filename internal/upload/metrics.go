package upload

// Metrics receives counter events from the engine as requests are
// handled. A concrete implementation (see internal/metrics) typically
// backs these with Prometheus counters; the engine itself only depends
// on this small interface so it never imports a metrics library directly.
type Metrics interface {
	RequestReceived(handler string)
	ErrorOccurred(code string)
	BytesReceived(n int64)
	UploadCreated()
	UploadFinished()
	UploadSkipped()
}

// noopMetrics discards every event. It is the engine's default so that
// callers who don't care about metrics don't have to provide a fake.
type noopMetrics struct{}

func (noopMetrics) RequestReceived(string) {}
func (noopMetrics) ErrorOccurred(string)   {}
func (noopMetrics) BytesReceived(int64)    {}
func (noopMetrics) UploadCreated()         {}
func (noopMetrics) UploadFinished()        {}
func (noopMetrics) UploadSkipped()         {}
