// Package memorysession provides an in-memory SessionStore. Sessions
// only exist as long as this object is kept in reference and are erased
// if the process exits, which makes this store suitable for a
// single-process deployment but not for a fleet behind a load balancer
// (see internal/redissession for that case).
package memorysession

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sensortrace/collector-upload/internal/upload"
)

// Store is an in-memory upload.SessionStore. Entries expire lazily: a
// Get past a session's TTL behaves as if the session were never created.
// Run also sweeps expired entries on an interval so a long-idle server
// does not accumulate abandoned sessions.
type Store struct {
	ttl   time.Duration
	mutex sync.RWMutex
	byID  map[string]entry
}

type entry struct {
	sess    upload.Session
	expires time.Time
}

// New creates a Store whose sessions expire ttl after creation.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl:  ttl,
		byID: make(map[string]entry),
	}
}

func (s *Store) NewSession(sess upload.Session) (string, error) {
	id := uuid.NewString()
	sess.ID = id
	sess.CreatedAt = time.Now()

	s.mutex.Lock()
	s.byID[id] = entry{sess: sess, expires: sess.CreatedAt.Add(s.ttl)}
	s.mutex.Unlock()

	return id, nil
}

func (s *Store) Get(id string) (upload.Session, error) {
	s.mutex.RLock()
	e, ok := s.byID[id]
	s.mutex.RUnlock()

	if !ok || time.Now().After(e.expires) {
		return upload.Session{}, upload.ErrSessionExpired
	}
	return e.sess, nil
}

func (s *Store) Put(id string, sess upload.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return upload.ErrSessionExpired
	}
	e.sess = sess
	s.byID[id] = e
	return nil
}

func (s *Store) Remove(id string) error {
	s.mutex.Lock()
	delete(s.byID, id)
	s.mutex.Unlock()
	return nil
}

// Sweep deletes every session whose TTL has elapsed and reports how many
// were removed. A caller typically runs this on a ticker.
func (s *Store) Sweep() int {
	now := time.Now()
	removed := 0

	s.mutex.Lock()
	for id, e := range s.byID {
		if now.After(e.expires) {
			delete(s.byID, id)
			removed++
		}
	}
	s.mutex.Unlock()

	return removed
}

// Run sweeps expired sessions on every tick of interval until ctx-like
// stop channel is closed. It is meant to be launched with `go`.
func (s *Store) Run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
