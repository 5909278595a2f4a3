package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensortrace/collector-upload/internal/upload"
)

func TestNotifyDeliversEvent(t *testing.T) {
	a := assert.New(t)

	var received CompletionEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, 0, time.Millisecond, time.Second)

	id := upload.Identifier{DeviceID: "11111111-1111-1111-1111-111111111111", MeasurementID: "1"}
	err := webhook.Notify(context.Background(), CompletionEvent{
		User:       "user-1",
		Identifier: id,
		ByteSize:   1024,
		FinishedAt: time.Now(),
	})
	a.NoError(err)
	a.Equal("user-1", received.User)
	a.Equal(id, received.Identifier)
	a.EqualValues(1024, received.ByteSize)
}

func TestNotifyNonOKStatus(t *testing.T) {
	a := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, 0, time.Millisecond, time.Second)
	err := webhook.Notify(context.Background(), CompletionEvent{})
	a.Error(err)
}

func TestNotifyUploadFinishedDoesNotPanicOnFailure(t *testing.T) {
	webhook := NewWebhook("http://127.0.0.1:0", 0, time.Millisecond, 10*time.Millisecond)
	webhook.NotifyUploadFinished(context.Background(), "user-1", upload.Identifier{}, 10)
}
