package app

import (
	"fmt"
	"strings"

	"quizgen-service/internal/domain"
)

// QuestionField names an editable text field of a question.
type QuestionField string

const (
	FieldPrompt        QuestionField = "prompt"
	FieldCorrectAnswer QuestionField = "correctAnswer"
	FieldExplanation   QuestionField = "explanation"
)

// Editor holds one mutable draft. It is not safe for concurrent use.
type Editor struct {
	draft domain.AssessmentDraft
}

// NewEditor copies draft so later edits never leak into the caller's value.
func NewEditor(draft domain.AssessmentDraft) *Editor {
	d := draft.Clone()
	if d.Questions == nil {
		d.Questions = []domain.Question{}
	}
	return &Editor{draft: d}
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() domain.AssessmentDraft {
	return e.draft.Clone()
}

func (e *Editor) Len() int { return len(e.draft.Questions) }

func (e *Editor) SetTitle(title string) { e.draft.Title = title }

func (e *Editor) SetDescription(description string) { e.draft.Description = description }

// UpdateField overwrites one text field of question i.
func (e *Editor) UpdateField(i int, field QuestionField, value string) error {
	q, err := e.question(i)
	if err != nil {
		return err
	}
	switch field {
	case FieldPrompt:
		q.Prompt = value
	case FieldCorrectAnswer:
		q.CorrectAnswer = value
	case FieldExplanation:
		q.Explanation = value
	default:
		return fmt.Errorf("unknown question field %q", field)
	}
	return nil
}

// ReplaceOption sets option j of question i. True/false and fill in the
// blank questions have fixed option lists and reject edits.
func (e *Editor) ReplaceOption(i, j int, value string) error {
	q, err := e.question(i)
	if err != nil {
		return err
	}
	if q.Type != domain.MultipleChoice {
		return fmt.Errorf("%s questions have fixed options", q.Type)
	}
	if j < 0 || j >= len(q.Options) {
		return domain.ErrOptionIndexOutOfRange
	}
	q.Options[j] = value
	return nil
}

// AppendQuestion adds a blank question of type t and returns its index.
func (e *Editor) AppendQuestion(t domain.QuestionType) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("unsupported question type %q", t)
	}
	q := domain.Question{Type: t}
	switch t {
	case domain.MultipleChoice:
		q.Options = domain.BlankOptions()
	case domain.TrueFalse:
		q.Options = domain.TrueFalseOptions()
	default:
		q.Options = []string{}
	}
	e.draft.Questions = append(e.draft.Questions, q)
	return len(e.draft.Questions) - 1, nil
}

// DeleteQuestion removes question i, shifting later questions down.
func (e *Editor) DeleteQuestion(i int) error {
	if _, err := e.question(i); err != nil {
		return err
	}
	e.draft.Questions = append(e.draft.Questions[:i], e.draft.Questions[i+1:]...)
	return nil
}

// ChangeType retypes question i. Options and the correct answer are reset
// to whatever still makes sense for the new type.
func (e *Editor) ChangeType(i int, t domain.QuestionType) error {
	q, err := e.question(i)
	if err != nil {
		return err
	}
	if !t.Valid() {
		return fmt.Errorf("unsupported question type %q", t)
	}
	if q.Type == t {
		return nil
	}

	switch t {
	case domain.TrueFalse:
		q.Options = domain.TrueFalseOptions()
		if q.CorrectAnswer != domain.AnswerTrue && q.CorrectAnswer != domain.AnswerFalse {
			q.CorrectAnswer = ""
		}
	case domain.FillInBlank:
		q.Options = []string{}
	case domain.MultipleChoice:
		var kept []string
		// The fixed True/False pair is not user content and is never carried over.
		if q.Type != domain.TrueFalse {
			for _, opt := range q.Options {
				if strings.TrimSpace(opt) != "" {
					kept = append(kept, opt)
				}
			}
		}
		if len(kept) == 0 {
			kept = domain.BlankOptions()
		}
		q.Options = kept
		if !containsOption(kept, q.CorrectAnswer) {
			q.CorrectAnswer = ""
		}
	}
	q.Type = t
	return nil
}

// Validate stops at the first problem that must block saving.
func (e *Editor) Validate() error {
	if strings.TrimSpace(e.draft.Title) == "" {
		return &domain.ValidationError{Reason: "please enter a quiz title"}
	}
	if len(e.draft.Questions) == 0 {
		return &domain.ValidationError{Reason: "please add at least one question"}
	}
	for i, q := range e.draft.Questions {
		if reason := editorReason(q); reason != "" {
			return &domain.ValidationError{Index: i + 1, Reason: reason}
		}
	}
	return nil
}

// editorReason phrases the first broken rule for the person editing.
func editorReason(q domain.Question) string {
	if strings.TrimSpace(q.Prompt) == "" {
		return "please enter a question"
	}
	switch q.Type {
	case domain.MultipleChoice:
		if len(q.Options) < 2 {
			return "please provide at least two options"
		}
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return "please fill in all options"
			}
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return "please select a correct answer"
		}
		if !containsOption(q.Options, q.CorrectAnswer) {
			return "correct answer must be one of the options"
		}
	case domain.TrueFalse:
		if q.CorrectAnswer != domain.AnswerTrue && q.CorrectAnswer != domain.AnswerFalse {
			return "correct answer must be True or False"
		}
	case domain.FillInBlank:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return "please enter the expected answer"
		}
	default:
		return fmt.Sprintf("unsupported question type %q", q.Type)
	}
	// Anything left is a structural problem the rules above do not phrase.
	if err := q.Validate(); err != nil {
		return err.Error()
	}
	return ""
}

func (e *Editor) question(i int) (*domain.Question, error) {
	if i < 0 || i >= len(e.draft.Questions) {
		return nil, domain.ErrQuestionIndexOutOfRange
	}
	return &e.draft.Questions[i], nil
}

func containsOption(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
