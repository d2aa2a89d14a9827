package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"quizgen-service/internal/domain"
)

// QuestionSetLoader fetches a saved question set from a backing store (e.g., document DB).
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuestionSetRepository caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored verbatim in the canonical JSON shape: SET quiz:{quizID}:questions <json> EX ttl
type QuestionSetRepository struct {
	client *redis.Client
	loader QuestionSetLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionSetRepository(client *redis.Client, loader QuestionSetLoader, ttl time.Duration, log zerolog.Logger) *QuestionSetRepository {
	return &QuestionSetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With().Str("component", "question_cache").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error) {
	if qs, ok := r.cached(ctx, quizID); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := r.cached(ctx, quizID); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestionSet(ctx, quizID)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(qs)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, r.key(quizID), raw, r.ttlWithJitter()).Err(); err != nil {
			// The set is still usable; the next start simply misses again.
			r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("cache write failed")
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.Question)), nil
}

// Invalidate drops a cached set.
func (r *QuestionSetRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuestionSetRepository) cached(ctx context.Context, quizID string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("cache read failed")
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("discarding corrupt cache entry")
		return nil, false
	}
	return qs, true
}

func (r *QuestionSetRepository) key(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
