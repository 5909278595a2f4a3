package upload

import "context"

// Notifier is told about every upload that reaches durable completion.
// A concrete implementation (see internal/notify) typically delivers
// this as a webhook; the engine never blocks a response on it finishing.
type Notifier interface {
	NotifyUploadFinished(ctx context.Context, user string, id Identifier, byteSize int64)
}

// WithNotifier attaches a Notifier invoked in a background goroutine
// whenever an upload completes. The default is to notify no one.
func WithNotifier(n Notifier) EngineOption {
	return func(e *UploadEngine) { e.notifier = n }
}

type noopNotifier struct{}

func (noopNotifier) NotifyUploadFinished(context.Context, string, Identifier, int64) {}
