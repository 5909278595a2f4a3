package upload

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPResponseWriteTo(t *testing.T) {
	a := assert.New(t)

	resp := HTTPResponse{
		StatusCode: 201,
		Body:       "hello",
		Header:     HTTPHeader{"X-Test": "1"},
	}

	rec := httptest.NewRecorder()
	resp.writeTo(rec)

	a.Equal(201, rec.Code)
	a.Equal("hello", rec.Body.String())
	a.Equal("1", rec.Header().Get("X-Test"))
	a.Equal("5", rec.Header().Get("Content-Length"))
}

func TestHTTPResponseWriteToEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	HTTPResponse{StatusCode: 308}.writeTo(rec)

	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Equal(t, "", rec.Body.String())
}

func TestHTTPResponseMergeWith(t *testing.T) {
	a := assert.New(t)

	base := HTTPResponse{StatusCode: 200, Header: HTTPHeader{"A": "1"}}
	other := HTTPResponse{StatusCode: 409, Header: HTTPHeader{"B": "2"}}

	merged := base.MergeWith(other)
	a.Equal(409, merged.StatusCode)
	a.Equal("1", merged.Header["A"])
	a.Equal("2", merged.Header["B"])
}
