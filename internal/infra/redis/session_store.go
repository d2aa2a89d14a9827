package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Attempts themselves stay in a local map; a websocket connection owns
//     its attempt for its whole life, so there is nothing to share.
//   - Redis marks attempt liveness (attempt:{id}, refreshed on access) and
//     keeps a per-kind integrity tally (attempt:{id}:integrity) that other
//     instances and dashboards can read.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *app.Session) error {
	if err := s.client.Set(ctx, s.key(session.ID()), session.QuizID(), s.ttl).Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, attemptID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[attemptID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		// best-effort liveness refresh
		_ = s.client.Expire(ctx, s.key(attemptID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(ctx context.Context, attemptID string) {
	s.mu.Lock()
	delete(s.sessions, attemptID)
	s.mu.Unlock()
	_ = s.client.Del(ctx, s.key(attemptID), s.integrityKey(attemptID)).Err()
}

// CountIntegrity increments the shared tally for kind.
func (s *SessionStore) CountIntegrity(ctx context.Context, attemptID string, kind domain.IntegrityKind) error {
	key := s.integrityKey(attemptID)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, string(kind), 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IntegrityTally returns the per-kind counts recorded for an attempt.
func (s *SessionStore) IntegrityTally(ctx context.Context, attemptID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.integrityKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for kind, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[kind] = n
	}
	return out, nil
}

func (s *SessionStore) key(attemptID string) string {
	return "attempt:" + attemptID
}

func (s *SessionStore) integrityKey(attemptID string) string {
	return "attempt:" + attemptID + ":integrity"
}
