package upload

import (
	"net/http"
	"net/url"
	"path"
)

// buildLocation builds the Location URI for a freshly bound session. The
// URI embeds sessionId as a path suffix on the request path, so that a
// later chunk/status PUT against it resolves back to the same session
// without any further lookup. The scheme respects X-Forwarded-Proto (set
// by a reverse proxy terminating TLS in front of this engine); any
// uploadType=resumable query parameter used to select the pre-request
// handler is stripped, all other query parameters are preserved.
// basePath, if non-empty, is prepended to the path: a reverse proxy that
// mounts this engine under a prefix typically strips that prefix with
// http.StripPrefix before the request reaches here, so it must be added
// back for the Location to resolve through the proxy.
func buildLocation(r *http.Request, basePath, sessionID string) string {
	u := *r.URL
	u.Path = path.Join(basePath, r.URL.Path, sessionID)

	q := u.Query()
	q.Del("uploadType")
	u.RawQuery = q.Encode()

	if r.Host == "" {
		return u.String()
	}

	abs := url.URL{
		Scheme:   scheme(r),
		Host:     r.Host,
		Path:     u.Path,
		RawQuery: u.RawQuery,
	}
	return abs.String()
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// sessionIDFromPath extracts the trailing path segment set by
// buildLocation, i.e. everything after the last slash.
func sessionIDFromPath(urlPath string) string {
	return path.Base(urlPath)
}
