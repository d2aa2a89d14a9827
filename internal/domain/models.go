package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuestionType discriminates the canonical question shapes.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillInBlank    QuestionType = "fill_in_blank"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FillInBlank:
		return true
	}
	return false
}

// Difficulty is passed through to the generation service untouched.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// TrueFalseOptions returns a fresh copy of the fixed true/false option list.
func TrueFalseOptions() []string {
	return []string{AnswerTrue, AnswerFalse}
}

// BlankOptions returns the four-empty-option multiple choice template.
func BlankOptions() []string {
	return []string{"", "", "", ""}
}

// Question is the canonical question every component reads or writes.
type Question struct {
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Clone returns a deep copy so callers never share option slices.
func (q Question) Clone() Question {
	out := q
	out.Options = make([]string, len(q.Options))
	copy(out.Options, q.Options)
	return out
}

// Validate checks the per-type invariants and returns the first violation.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question text is required")
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("must have at least 2 options")
		}
		seen := make(map[string]struct{}, len(q.Options))
		for i, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("option %d is blank", i+1)
			}
			if _, dup := seen[opt]; dup {
				return fmt.Errorf("option %q is duplicated", opt)
			}
			seen[opt] = struct{}{}
		}
		if q.CorrectAnswer == "" {
			return fmt.Errorf("a correct answer must be selected")
		}
		if !containsString(q.Options, q.CorrectAnswer) {
			return fmt.Errorf("correct answer must be one of the options")
		}
	case TrueFalse:
		if len(q.Options) != 2 || q.Options[0] != AnswerTrue || q.Options[1] != AnswerFalse {
			return fmt.Errorf("true/false options must be exactly True and False")
		}
		if q.CorrectAnswer != AnswerTrue && q.CorrectAnswer != AnswerFalse {
			return fmt.Errorf("correct answer must be True or False")
		}
	case FillInBlank:
		if len(q.Options) != 0 {
			return fmt.Errorf("fill in the blank questions take no options")
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("a reference answer is required")
		}
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// AssessmentDraft is a question set being prepared by an educator.
type AssessmentDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// Clone deep-copies the draft.
func (d AssessmentDraft) Clone() AssessmentDraft {
	out := d
	out.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// GenerationParams are forwarded to the generation service as flat fields.
type GenerationParams struct {
	QuestionCount int          `json:"questionCount" validate:"required,min=1,max=100"`
	Difficulty    Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	QuestionType  QuestionType `json:"questionType" validate:"required,oneof=multiple_choice true_false fill_in_blank"`
	// Title and Description override the filename-derived defaults when set.
	Title       string `json:"title,omitempty" validate:"max=200"`
	Description string `json:"description,omitempty" validate:"max=1000"`
}

// IntegrityKind names the host event that signalled the learner left the assessment.
type IntegrityKind string

const (
	TabSwitch        IntegrityKind = "tab_switch"
	WindowBlur       IntegrityKind = "window_blur"
	FullscreenExit   IntegrityKind = "fullscreen_exit"
	VisibilityHidden IntegrityKind = "visibility_hidden"
)

// Valid reports whether k is one of the known integrity kinds.
func (k IntegrityKind) Valid() bool {
	switch k {
	case TabSwitch, WindowBlur, FullscreenExit, VisibilityHidden:
		return true
	}
	return false
}

// IntegritySignal is one recorded focus-loss event.
type IntegritySignal struct {
	Kind       IntegrityKind `json:"kind"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// NotAnswered is shown in place of the learner's answer for skipped questions.
const NotAnswered = "not answered"

// QuestionResult is the scored outcome for a single question.
type QuestionResult struct {
	Index         int    `json:"index"`
	Prompt        string `json:"prompt"`
	Answer        string `json:"answer"`
	Answered      bool   `json:"answered"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation,omitempty"`
}

// Result is the immutable outcome of a submitted attempt.
type Result struct {
	AttemptID        string           `json:"attemptId"`
	QuizID           string           `json:"quizId"`
	LearnerID        string           `json:"learnerId"`
	Correct          int              `json:"correct"`
	Total            int              `json:"total"`
	Percentage       float64          `json:"percentage"`
	IntegritySignals int              `json:"integritySignals"`
	Details          []QuestionResult `json:"details"`
	Answers          map[int]string   `json:"answers"`
	SubmittedAt      time.Time        `json:"submittedAt"`
}

// Score formats the result as "correct/total".
func (r Result) Score() string {
	return fmt.Sprintf("%d/%d", r.Correct, r.Total)
}

// Clone deep-copies the result.
func (r Result) Clone() Result {
	out := r
	out.Details = make([]QuestionResult, len(r.Details))
	copy(out.Details, r.Details)
	out.Answers = make(map[int]string, len(r.Answers))
	for k, v := range r.Answers {
		out.Answers[k] = v
	}
	return out
}

// SavedQuiz identifies a persisted draft.
type SavedQuiz struct {
	ID         string `json:"id"`
	AccessCode string `json:"accessCode"`
}
