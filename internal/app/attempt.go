package app

import (
	"time"

	"quizgen-service/internal/domain"
)

// AttemptStatus is the lifecycle state of one attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusReviewing  AttemptStatus = "reviewing"
	StatusSubmitted  AttemptStatus = "submitted"
)

// Attempt is the state of one learner taking one assessment. It is owned by
// a single session and is not safe for concurrent use.
type Attempt struct {
	id        string
	quizID    string
	learnerID string
	questions []domain.Question
	now       func() time.Time
	startedAt time.Time

	status  AttemptStatus
	current int
	answers map[int]string
	signals []domain.IntegritySignal
	result  *domain.Result
}

// AttemptView is a read-only snapshot for rendering the attempt.
type AttemptView struct {
	AttemptID        string          `json:"attemptId"`
	QuizID           string          `json:"quizId"`
	Status           AttemptStatus   `json:"status"`
	CurrentIndex     int             `json:"currentIndex"`
	QuestionCount    int             `json:"questionCount"`
	Question         AttemptQuestion `json:"question"`
	Answers          map[int]string  `json:"answers"`
	Unanswered       int             `json:"unanswered"`
	IntegritySignals int             `json:"integritySignals"`
	StartedAt        time.Time       `json:"startedAt"`
}

// AttemptQuestion is a question as shown to the learner, without its answer.
type AttemptQuestion struct {
	Type    domain.QuestionType `json:"type"`
	Prompt  string              `json:"prompt"`
	Options []string            `json:"options"`
}

// NewAttempt starts an attempt over a copy of questions.
func NewAttempt(id, quizID, learnerID string, questions []domain.Question) (*Attempt, error) {
	return NewAttemptWithClock(id, quizID, learnerID, questions, time.Now)
}

// NewAttemptWithClock allows deterministic timestamps in tests.
func NewAttemptWithClock(id, quizID, learnerID string, questions []domain.Question, now func() time.Time) (*Attempt, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	qs := make([]domain.Question, len(questions))
	for i, q := range questions {
		qs[i] = q.Clone()
	}
	return &Attempt{
		id:        id,
		quizID:    quizID,
		learnerID: learnerID,
		questions: qs,
		now:       now,
		startedAt: now(),
		status:    StatusInProgress,
		answers:   make(map[int]string),
	}, nil
}

func (a *Attempt) ID() string { return a.id }
func (a *Attempt) QuizID() string { return a.quizID }
func (a *Attempt) LearnerID() string { return a.learnerID }
func (a *Attempt) Status() AttemptStatus { return a.status }
func (a *Attempt) CurrentIndex() int { return a.current }
func (a *Attempt) IntegrityCount() int { return len(a.signals) }
func (a *Attempt) QuestionCount() int { return len(a.questions) }

// SelectAnswer stores value for question i, replacing any earlier answer.
// The value is not checked against the options; scoring decides correctness.
func (a *Attempt) SelectAnswer(i int, value string) error {
	if a.status == StatusSubmitted {
		return domain.ErrAttemptSubmitted
	}
	if !a.inRange(i) {
		return domain.ErrQuestionIndexOutOfRange
	}
	a.answers[i] = value
	return nil
}

// Navigate moves to question i. Unanswered questions may be skipped freely.
func (a *Attempt) Navigate(i int) error {
	if !a.inRange(i) {
		return domain.ErrQuestionIndexOutOfRange
	}
	a.current = i
	return nil
}

// EnterReview moves to the review state and reports how many questions are
// still unanswered. Missing answers never block the transition.
func (a *Attempt) EnterReview() (int, error) {
	if a.status == StatusSubmitted {
		return 0, domain.ErrAttemptSubmitted
	}
	a.status = StatusReviewing
	return a.Unanswered(), nil
}

// Unanswered counts questions with no stored answer.
func (a *Attempt) Unanswered() int {
	n := 0
	for i := range a.questions {
		if _, ok := a.answers[i]; !ok {
			n++
		}
	}
	return n
}

// RecordIntegritySignal notes that the learner left the assessment view and
// returns the running count. It only warns; the attempt continues.
// Signals arriving after submission are ignored.
func (a *Attempt) RecordIntegritySignal(kind domain.IntegrityKind) int {
	if a.status == StatusSubmitted {
		return len(a.signals)
	}
	if kind == "" {
		kind = domain.TabSwitch
	}
	a.signals = append(a.signals, domain.IntegritySignal{Kind: kind, RecordedAt: a.now()})
	return len(a.signals)
}

// IntegritySignals returns a copy of the recorded signals.
func (a *Attempt) IntegritySignals() []domain.IntegritySignal {
	out := make([]domain.IntegritySignal, len(a.signals))
	copy(out, a.signals)
	return out
}

// Submit scores the attempt once. Later calls return the same result and
// report first as false.
func (a *Attempt) Submit() (result domain.Result, first bool) {
	if a.result != nil {
		return a.result.Clone(), false
	}
	r := score(a.questions, a.answers)
	r.AttemptID = a.id
	r.QuizID = a.quizID
	r.LearnerID = a.learnerID
	r.IntegritySignals = len(a.signals)
	r.SubmittedAt = a.now()
	a.result = &r
	a.status = StatusSubmitted
	return r.Clone(), true
}

// Result returns the result once submitted.
func (a *Attempt) Result() (domain.Result, bool) {
	if a.result == nil {
		return domain.Result{}, false
	}
	return a.result.Clone(), true
}

// View snapshots the attempt for the learner.
func (a *Attempt) View() AttemptView {
	q := a.questions[a.current]
	answers := make(map[int]string, len(a.answers))
	for k, v := range a.answers {
		answers[k] = v
	}
	return AttemptView{
		AttemptID:     a.id,
		QuizID:        a.quizID,
		Status:        a.status,
		CurrentIndex:  a.current,
		QuestionCount: len(a.questions),
		Question: AttemptQuestion{
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: append([]string{}, q.Options...),
		},
		Answers:          answers,
		Unanswered:       a.Unanswered(),
		IntegritySignals: len(a.signals),
		StartedAt:        a.startedAt,
	}
}

func (a *Attempt) inRange(i int) bool {
	return i >= 0 && i < len(a.questions)
}

// score compares every stored answer to the correct answer by exact,
// case-sensitive string equality. Unanswered questions are never correct.
func score(questions []domain.Question, answers map[int]string) domain.Result {
	r := domain.Result{
		Total:   len(questions),
		Details: make([]domain.QuestionResult, 0, len(questions)),
		Answers: make(map[int]string, len(answers)),
	}
	for i, q := range questions {
		answer, answered := answers[i]
		correct := answered && answer == q.CorrectAnswer
		if correct {
			r.Correct++
		}
		shown := answer
		if !answered {
			shown = domain.NotAnswered
		} else {
			r.Answers[i] = answer
		}
		r.Details = append(r.Details, domain.QuestionResult{
			Index:         i,
			Prompt:        q.Prompt,
			Answer:        shown,
			Answered:      answered,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
			Explanation:   q.Explanation,
		})
	}
	if r.Total > 0 {
		r.Percentage = float64(r.Correct) * 100 / float64(r.Total)
	}
	return r
}
