package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizgen-service/internal/domain"
)

// SessionRepository abstracts where live attempt sessions are held (in-memory, Redis, etc).
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, attemptID string) (*Session, bool)
	Delete(ctx context.Context, attemptID string)
}

// IntegrityCounter is implemented by session stores that also keep a shared
// per-attempt tally of integrity signals.
type IntegrityCounter interface {
	CountIntegrity(ctx context.Context, attemptID string, kind domain.IntegrityKind) error
}

// QuestionSetRepository loads the question set of a saved assessment (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error)
}

// ResultRecorder persists a submitted result.
type ResultRecorder interface {
	SaveAttemptResult(ctx context.Context, quizID, learnerID string, result domain.Result) error
}

// AttemptService runs assessment attempts on behalf of connected learners.
type AttemptService struct {
	sessions  SessionRepository
	questions QuestionSetRepository
	results   ResultRecorder
	monitor   *Monitor
	newID     func() string
	now       func() time.Time
	log       zerolog.Logger
}

func NewAttemptService(sessions SessionRepository, questions QuestionSetRepository, results ResultRecorder, monitor *Monitor, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		sessions:  sessions,
		questions: questions,
		results:   results,
		monitor:   monitor,
		newID:     uuid.NewString,
		now:       time.Now,
		log:       log.With().Str("component", "attempts").Logger(),
	}
}

// Start begins a brand-new attempt. Retakes call Start again; earlier
// attempts are never reopened.
func (s *AttemptService) Start(ctx context.Context, quizID, learnerID string) (AttemptView, error) {
	questions, err := s.questions.GetQuestionSet(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	attempt, err := NewAttemptWithClock(s.newID(), quizID, learnerID, questions, s.now)
	if err != nil {
		return AttemptView{}, err
	}
	session := NewSession(attempt)
	if err := s.sessions.Create(ctx, session); err != nil {
		return AttemptView{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info().
		Str("attempt_id", attempt.ID()).
		Str("quiz_id", quizID).
		Str("learner_id", learnerID).
		Int("questions", attempt.QuestionCount()).
		Msg("attempt started")
	s.monitor.Publish(MonitorEvent{
		Type:      EventStarted,
		QuizID:    quizID,
		AttemptID: attempt.ID(),
		LearnerID: learnerID,
		At:        s.now(),
	})
	return session.View(), nil
}

// View returns the current state of an attempt.
func (s *AttemptService) View(ctx context.Context, attemptID string) (AttemptView, error) {
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	return session.View(), nil
}

func (s *AttemptService) SelectAnswer(ctx context.Context, attemptID string, index int, value string) (AttemptView, error) {
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	return session.do(func(a *Attempt) error { return a.SelectAnswer(index, value) })
}

func (s *AttemptService) Navigate(ctx context.Context, attemptID string, index int) (AttemptView, error) {
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	return session.do(func(a *Attempt) error { return a.Navigate(index) })
}

// EnterReview moves the attempt to review and returns the unanswered count
// so the caller can warn the learner.
func (s *AttemptService) EnterReview(ctx context.Context, attemptID string) (AttemptView, int, error) {
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return AttemptView{}, 0, err
	}
	var unanswered int
	view, err := session.do(func(a *Attempt) error {
		n, err := a.EnterReview()
		unanswered = n
		return err
	})
	return view, unanswered, err
}

// RecordIntegritySignal tallies a focus-loss event and returns the running count.
// An empty kind counts as a tab switch.
func (s *AttemptService) RecordIntegritySignal(ctx context.Context, attemptID string, kind domain.IntegrityKind) (int, error) {
	if kind == "" {
		kind = domain.TabSwitch
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedIntegrityKind, kind)
	}
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return 0, err
	}

	session.mu.Lock()
	before := session.attempt.IntegrityCount()
	count := session.attempt.RecordIntegritySignal(kind)
	quizID, learnerID := session.attempt.QuizID(), session.attempt.LearnerID()
	session.mu.Unlock()

	if count == before {
		return count, nil
	}
	if counter, ok := s.sessions.(IntegrityCounter); ok {
		if err := counter.CountIntegrity(ctx, attemptID, kind); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("integrity tally failed")
		}
	}
	s.log.Info().
		Str("attempt_id", attemptID).
		Str("kind", string(kind)).
		Int("count", count).
		Msg("integrity signal")
	s.monitor.Publish(MonitorEvent{
		Type:             EventIntegrity,
		QuizID:           quizID,
		AttemptID:        attemptID,
		LearnerID:        learnerID,
		Kind:             string(kind),
		IntegritySignals: count,
		At:               s.now(),
	})
	return count, nil
}

// Submit scores the attempt and persists the result exactly once. Repeated
// calls return the same result; a failed save is retried by the next call.
func (s *AttemptService) Submit(ctx context.Context, attemptID string) (domain.Result, error) {
	session, err := s.session(ctx, attemptID)
	if err != nil {
		return domain.Result{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	result, first := session.attempt.Submit()
	if first {
		s.log.Info().
			Str("attempt_id", attemptID).
			Str("score", result.Score()).
			Int("integrity_signals", result.IntegritySignals).
			Msg("attempt submitted")
	}
	if session.persisted {
		return result, nil
	}
	if err := s.results.SaveAttemptResult(ctx, result.QuizID, result.LearnerID, result); err != nil {
		return result, fmt.Errorf("save attempt result: %w", err)
	}
	session.persisted = true

	s.monitor.Publish(MonitorEvent{
		Type:             EventSubmitted,
		QuizID:           result.QuizID,
		AttemptID:        attemptID,
		LearnerID:        result.LearnerID,
		IntegritySignals: result.IntegritySignals,
		Score:            result.Score(),
		Percentage:       result.Percentage,
		At:               s.now(),
	})
	return result, nil
}

// Abandon discards the attempt. Nothing is persisted for unsubmitted attempts.
func (s *AttemptService) Abandon(ctx context.Context, attemptID string) {
	session, ok := s.sessions.Get(ctx, attemptID)
	if !ok {
		return
	}
	session.mu.Lock()
	status := session.attempt.Status()
	session.mu.Unlock()
	if status != StatusSubmitted {
		s.log.Info().Str("attempt_id", attemptID).Msg("attempt abandoned")
	}
	s.sessions.Delete(ctx, attemptID)
}

func (s *AttemptService) session(ctx context.Context, attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(ctx, attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return session, nil
}

// Session is one live attempt guarded for use from a connection's goroutines.
type Session struct {
	mu        sync.Mutex
	attempt   *Attempt
	persisted bool
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(attempt *Attempt) *Session {
	return &Session{attempt: attempt}
}

func (s *Session) ID() string {
	return s.attempt.ID()
}

func (s *Session) QuizID() string {
	return s.attempt.QuizID()
}

// View snapshots the attempt under the session lock.
func (s *Session) View() AttemptView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.View()
}

func (s *Session) do(fn func(a *Attempt) error) (AttemptView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.attempt); err != nil {
		return AttemptView{}, err
	}
	return s.attempt.View(), nil
}
