package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizgen-service/internal/domain"
)

// DocumentStore keeps saved drafts and results in memory (useful for tests/demos).
type DocumentStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	quizzes map[string]storedQuiz
	codes   map[string]string
	results map[string][]domain.Result
}

type storedQuiz struct {
	ownerID    string
	draft      domain.AssessmentDraft
	accessCode string
	createdAt  time.Time
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		now:     time.Now,
		quizzes: make(map[string]storedQuiz),
		codes:   make(map[string]string),
		results: make(map[string][]domain.Result),
	}
}

// Put seeds a draft under a fixed id without an access code.
func (s *DocumentStore) Put(id string, draft domain.AssessmentDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[id] = storedQuiz{draft: draft.Clone(), createdAt: s.now()}
}

func (s *DocumentStore) SaveDraft(_ context.Context, ownerID string, draft domain.AssessmentDraft, accessCode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[accessCode]; taken {
		return "", domain.ErrAccessCodeTaken
	}
	id := uuid.NewString()
	s.quizzes[id] = storedQuiz{
		ownerID:    ownerID,
		draft:      draft.Clone(),
		accessCode: accessCode,
		createdAt:  s.now(),
	}
	s.codes[accessCode] = id
	return id, nil
}

func (s *DocumentStore) LoadQuestionSet(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return quiz.draft.Clone().Questions, nil
}

func (s *DocumentStore) SaveAttemptResult(_ context.Context, quizID, _ string, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.results[quizID] = append(s.results[quizID], result.Clone())
	return nil
}

func (s *DocumentStore) FindByAccessCode(_ context.Context, code string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return "", domain.ErrQuizNotFound
	}
	return id, nil
}

// Results returns the results stored for a quiz in submission order.
func (s *DocumentStore) Results(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	out := make([]domain.Result, len(s.results[quizID]))
	for i, r := range s.results[quizID] {
		out[i] = r.Clone()
	}
	return out, nil
}
