package upload

import (
	"maps"
	"net/http"
	"strconv"
)

// HTTPHeader is a small map of header name to value used for responses
// built up incrementally by the handlers before being written out.
type HTTPHeader map[string]string

// HTTPResponse contains the status, body and headers the engine wants to
// send in reply to a request. MergeWith layers one response over
// another; the handlers in this package build each response in one step
// and do not call it.
type HTTPResponse struct {
	StatusCode int
	Body       string
	Header     HTTPHeader
}

// writeTo writes resp into w.
func (resp HTTPResponse) writeTo(w http.ResponseWriter) {
	headers := w.Header()
	for key, value := range resp.Header {
		headers.Set(key, value)
	}

	if len(resp.Body) > 0 {
		headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	} else {
		headers.Set("Content-Length", "0")
	}

	w.WriteHeader(resp.StatusCode)

	if len(resp.Body) > 0 {
		w.Write([]byte(resp.Body))
	}
}

// MergeWith returns a copy of resp, where non-default values from other
// overwrite resp's values. Headers are merged key-by-key.
func (resp HTTPResponse) MergeWith(other HTTPResponse) HTTPResponse {
	merged := resp

	if other.StatusCode != 0 {
		merged.StatusCode = other.StatusCode
	}
	if len(other.Body) > 0 {
		merged.Body = other.Body
	}

	merged.Header = make(HTTPHeader, len(resp.Header)+len(other.Header))
	maps.Copy(merged.Header, resp.Header)
	maps.Copy(merged.Header, other.Header)

	return merged
}
