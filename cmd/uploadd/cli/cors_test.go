package cli

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func passthrough(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusPreconditionFailed)
}

func TestCorsPreflightRequest(t *testing.T) {
	a := assert.New(t)
	h := cors(DefaultCorsConfig, http.HandlerFunc(passthrough))

	req := httptest.NewRequest(http.MethodOptions, "http://example.com/measurements", nil)
	req.Header.Set("Origin", "https://tus.io")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	a.Equal(http.StatusOK, rec.Code)
	a.Equal("https://tus.io", rec.Header().Get("Access-Control-Allow-Origin"))
	a.Equal("Origin", rec.Header().Get("Vary"))
	a.Equal(DefaultCorsConfig.AllowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	a.Equal(DefaultCorsConfig.AllowHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
	a.Equal(DefaultCorsConfig.MaxAge, rec.Header().Get("Access-Control-Max-Age"))
	a.Equal("", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCorsActualRequest(t *testing.T) {
	a := assert.New(t)
	h := cors(DefaultCorsConfig, http.HandlerFunc(passthrough))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/measurements", nil)
	req.Header.Set("Origin", "https://tus.io")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	a.Equal(http.StatusPreconditionFailed, rec.Code)
	a.Equal("https://tus.io", rec.Header().Get("Access-Control-Allow-Origin"))
	a.Equal(DefaultCorsConfig.ExposeHeaders, rec.Header().Get("Access-Control-Expose-Headers"))
	a.Equal("", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCorsRejectsDisallowedOrigin(t *testing.T) {
	cfg := DefaultCorsConfig
	cfg.AllowOrigin = regexp.MustCompile(`^https://tus\.io$`)
	h := cors(cfg, http.HandlerFunc(passthrough))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/measurements", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsDisabledSkipsAllHeaders(t *testing.T) {
	cfg := DefaultCorsConfig
	cfg.Disable = true
	h := cors(cfg, http.HandlerFunc(passthrough))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/measurements", nil)
	req.Header.Set("Origin", "https://tus.io")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsNoOriginHeaderPassesThrough(t *testing.T) {
	h := cors(DefaultCorsConfig, http.HandlerFunc(passthrough))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/measurements", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
}
