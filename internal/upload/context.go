package upload

import (
	"context"
	"log/slog"
	"net/http"
)

// requestContext wraps the request's context.Context together with the
// concrete request/response pair and a logger that accumulates fields as
// the request is understood (session id, identifiers, ...).
//
// Go's net/http already provides the back-pressure the protocol needs:
// reading the request body is a synchronous, pull-based operation, so a
// handler that is waiting on a storage call (isStored, bytesUploaded,
// store, clean) simply has not called Read yet and the body sits
// un-consumed on the wire. There is no separate pause/resume step to
// orchestrate, unlike in an event-loop based HTTP stack.
type requestContext struct {
	context.Context

	res http.ResponseWriter
	req *http.Request

	cancel context.CancelCauseFunc

	log *slog.Logger
}

func (e *UploadEngine) newContext(w http.ResponseWriter, r *http.Request) *requestContext {
	ctx, cancel := context.WithCancelCause(r.Context())

	return &requestContext{
		Context: ctx,
		res:     w,
		req:     r,
		cancel:  cancel,
		log:     e.logger.With("method", r.Method, "path", r.URL.Path),
	}
}
