// Package redissession provides a SessionStore backed by Redis, so that
// a pre-request handled by one server process and a later chunk request
// handled by another (behind a load balancer) see the same session
// state. Unlike the single-process internal/memorysession, expiry is
// enforced by Redis itself via a key TTL rather than a lazy check.
package redissession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sensortrace/collector-upload/internal/upload"
)

// Store is an upload.SessionStore backed by a Redis key per session,
// JSON-encoded, with the key's TTL enforcing expiry.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// New creates a Store using client, keying every session under
// "<prefix>:<sessionId>" with the given TTL refreshed on every write.
func New(client *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *Store) NewSession(sess upload.Session) (string, error) {
	id := uuid.NewString()
	sess.ID = id
	sess.CreatedAt = time.Now()

	if err := s.write(context.Background(), id, sess); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Get(id string) (upload.Session, error) {
	ctx := context.Background()
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return upload.Session{}, upload.ErrSessionExpired
	}
	if err != nil {
		return upload.Session{}, fmt.Errorf("redissession: get: %w", err)
	}

	var sess upload.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return upload.Session{}, fmt.Errorf("redissession: decoding session: %w", err)
	}
	return sess, nil
}

func (s *Store) Put(id string, sess upload.Session) error {
	return s.write(context.Background(), id, sess)
}

func (s *Store) Remove(id string) error {
	if err := s.client.Del(context.Background(), s.key(id)).Err(); err != nil {
		return fmt.Errorf("redissession: del: %w", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, id string, sess upload.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redissession: encoding session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		s.logger.Error("failed to write session", "sessionId", id, "error", err)
		return fmt.Errorf("redissession: set: %w", err)
	}
	return nil
}
