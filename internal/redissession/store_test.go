package redissession

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/sensortrace/collector-upload/internal/upload"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, time.Minute, "collector-upload:session", nil)
}

func TestNewSessionAndGet(t *testing.T) {
	a := assert.New(t)

	store := newTestStore(t)
	id, err := store.NewSession(upload.Session{Total: 100})
	a.NoError(err)
	a.NotEmpty(id)

	sess, err := store.Get(id)
	a.NoError(err)
	a.EqualValues(100, sess.Total)
	a.Equal(id, sess.ID)
}

func TestGetUnknownSession(t *testing.T) {
	a := assert.New(t)

	store := newTestStore(t)
	_, err := store.Get("does-not-exist")
	a.Error(err)
}

func TestPutAndRemove(t *testing.T) {
	a := assert.New(t)

	store := newTestStore(t)
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

func TestSessionExpiresWithTTL(t *testing.T) {
	a := assert.New(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := New(client, time.Second, "collector-upload:session", nil)

	id, err := store.NewSession(upload.Session{})
	a.NoError(err)

	mr.FastForward(2 * time.Second)

	_, err = store.Get(id)
	a.Error(err)
}
