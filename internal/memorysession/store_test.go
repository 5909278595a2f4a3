package memorysession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sensortrace/collector-upload/internal/upload"
)

func TestNewSessionAndGet(t *testing.T) {
	a := assert.New(t)

	store := New(time.Minute)
	id, err := store.NewSession(upload.Session{Total: 42})
	a.NoError(err)
	a.NotEmpty(id)

	sess, err := store.Get(id)
	a.NoError(err)
	a.EqualValues(42, sess.Total)
	a.Equal(id, sess.ID)
}

func TestGetUnknownSession(t *testing.T) {
	a := assert.New(t)

	store := New(time.Minute)
	_, err := store.Get("does-not-exist")
	a.Error(err)
}

func TestSessionExpiry(t *testing.T) {
	a := assert.New(t)

	store := New(time.Millisecond)
	id, err := store.NewSession(upload.Session{})
	a.NoError(err)

	time.Sleep(5 * time.Millisecond)

	_, err = store.Get(id)
	a.Error(err)
}

func TestPutAndRemove(t *testing.T) {
	a := assert.New(t)

	store := New(time.Minute)
	id, err := store.NewSession(upload.Session{})
	a.NoError(err)

	sess, err := store.Get(id)
	a.NoError(err)
	sess.UploadPath = "path-1"
	a.NoError(store.Put(id, sess))

	sess, err = store.Get(id)
	a.NoError(err)
	a.Equal("path-1", sess.UploadPath)

	a.NoError(store.Remove(id))
	_, err = store.Get(id)
	a.Error(err)
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	a := assert.New(t)

	store := New(time.Millisecond)
	_, err := store.NewSession(upload.Session{})
	a.NoError(err)

	liveStore := New(time.Hour)
	liveID, err := liveStore.NewSession(upload.Session{})
	a.NoError(err)

	time.Sleep(5 * time.Millisecond)

	a.Equal(1, store.Sweep())
	a.Equal(0, liveStore.Sweep())

	_, err = liveStore.Get(liveID)
	a.NoError(err)
}
