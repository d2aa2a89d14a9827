package normalize

import (
	"strings"

	"quizgen-service/internal/domain"
)

// retype decides a question's type from its free-text hint, ignoring any
// claim the source makes about the payload as a whole.
func retype(hint string, requested domain.QuestionType) domain.QuestionType {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch {
	case h == "":
		return requested
	case strings.Contains(h, "fill") || strings.Contains(h, "blank"):
		return domain.FillInBlank
	case strings.Contains(h, "true") || strings.Contains(h, "false") || h == "tf" || h == "t/f":
		return domain.TrueFalse
	case strings.Contains(h, "mcq"):
		return domain.MultipleChoice
	}
	return requested
}

// shape enforces the per-type option and answer layout.
func shape(raw rawQuestion, t domain.QuestionType) domain.Question {
	q := domain.Question{
		Type:          t,
		Prompt:        raw.prompt,
		CorrectAnswer: raw.answer,
		Explanation:   raw.explanation,
	}
	switch t {
	case domain.TrueFalse:
		q.Options = domain.TrueFalseOptions()
		switch strings.ToLower(raw.answer) {
		case "true":
			q.CorrectAnswer = domain.AnswerTrue
		case "false":
			q.CorrectAnswer = domain.AnswerFalse
		}
	case domain.FillInBlank:
		q.Options = []string{}
	default:
		if len(raw.options) == 0 && !raw.optionsSent {
			q.Options = domain.BlankOptions()
		} else {
			q.Options = append([]string(nil), raw.options...)
		}
	}
	return q
}

// isPlaceholder reports a multiple choice question that only has the blank
// template because the source sent no options at all.
func isPlaceholder(q domain.Question) bool {
	if q.Type != domain.MultipleChoice || strings.TrimSpace(q.Prompt) == "" {
		return false
	}
	for _, opt := range q.Options {
		if opt != "" {
			return false
		}
	}
	return len(q.Options) == len(domain.BlankOptions())
}
