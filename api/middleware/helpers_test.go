package middleware

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
)

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Level: zerolog.DebugLevel, Output: buf})
}

type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	getErr   error
	setErr   error
	writeErr error
	// beforeWrite runs ahead of every Set or Del, outside the lock.
	beforeWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.values[key] = value.(string)
	return nil
}

func (s *fakeStore) Del(_ context.Context, keys ...string) error {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *fakeStore) IdempotencyKey(scope, id string) string {
	return "il:idempotency:" + scope + ":" + id
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
