package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizgen-service/internal/domain"
)

// QuestionSetLoader fetches a saved question set from a backing store (e.g., document DB).
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuestionSetRepository caches question sets with TTL to avoid repeated DB hits.
type QuestionSetRepository struct {
	loader QuestionSetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSetRepository(loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// GetQuestionSet returns a copy of the cached set, loading it once per
// expiry no matter how many attempts start concurrently.
func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error) {
	if qs, ok := r.cached(quizID); ok {
		return cloneQuestions(qs), nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if qs, ok := r.cached(quizID); ok {
			return qs, nil
		}

		qs, err := r.loader.LoadQuestionSet(ctx, quizID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedSet{
			questions: qs,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.Question)), nil
}

// Invalidate drops a cached set.
func (r *QuestionSetRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
}

func (r *QuestionSetRepository) cached(quizID string) ([]domain.Question, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return entry.questions, true
	}
	return nil, false
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
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
