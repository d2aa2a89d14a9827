package app_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

func sampleDraft() domain.AssessmentDraft {
	return domain.AssessmentDraft{
		Title: "Cells",
		Questions: []domain.Question{
			{Type: domain.MultipleChoice, Prompt: "Powerhouse of the cell?", Options: []string{"Nucleus", "Mitochondria"}, CorrectAnswer: "Mitochondria"},
			{Type: domain.TrueFalse, Prompt: "Plants have cell walls", Options: domain.TrueFalseOptions(), CorrectAnswer: "True"},
			{Type: domain.FillInBlank, Prompt: "DNA is stored in the ___", Options: []string{}, CorrectAnswer: "nucleus"},
		},
	}
}

func TestEditorValidDraftPasses(t *testing.T) {
	require.NoError(t, app.NewEditor(sampleDraft()).Validate())
}

func TestEditorDoesNotAliasInput(t *testing.T) {
	draft := sampleDraft()
	ed := app.NewEditor(draft)
	require.NoError(t, ed.ReplaceOption(0, 0, "Ribosome"))
	assert.Equal(t, "Nucleus", draft.Questions[0].Options[0])

	out := ed.Draft()
	out.Questions[0].Options[0] = "changed"
	assert.Equal(t, "Ribosome", ed.Draft().Questions[0].Options[0])
}

func TestEditorRetypeRoundTripRestoresBlankTemplate(t *testing.T) {
	ed := app.NewEditor(sampleDraft())

	require.NoError(t, ed.ChangeType(0, domain.TrueFalse))
	q := ed.Draft().Questions[0]
	assert.Equal(t, []string{"True", "False"}, q.Options)
	assert.Empty(t, q.CorrectAnswer)

	require.NoError(t, ed.ChangeType(0, domain.MultipleChoice))
	q = ed.Draft().Questions[0]
	assert.Equal(t, []string{"", "", "", ""}, q.Options)
	assert.Empty(t, q.CorrectAnswer)

	err := ed.Validate()
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "please fill in all options", verr.Reason)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))

	for j, opt := range []string{"Nucleus", "Mitochondria", "Golgi", "Vacuole"} {
		require.NoError(t, ed.ReplaceOption(0, j, opt))
	}
	require.NoError(t, ed.UpdateField(0, app.FieldCorrectAnswer, "Mitochondria"))
	assert.NoError(t, ed.Validate())
}

func TestEditorRetypeKeepsUsableState(t *testing.T) {
	ed := app.NewEditor(sampleDraft())

	// A true/false answer survives the switch to true/false.
	require.NoError(t, ed.UpdateField(2, app.FieldCorrectAnswer, "False"))
	require.NoError(t, ed.ChangeType(2, domain.TrueFalse))
	assert.Equal(t, "False", ed.Draft().Questions[2].CorrectAnswer)

	// Multiple choice options with a matching answer survive a round trip through fill in the blank.
	require.NoError(t, ed.ChangeType(0, domain.FillInBlank))
	q := ed.Draft().Questions[0]
	assert.Empty(t, q.Options)
	assert.Equal(t, "Mitochondria", q.CorrectAnswer)

	require.NoError(t, ed.ChangeType(0, domain.MultipleChoice))
	q = ed.Draft().Questions[0]
	assert.Equal(t, []string{"", "", "", ""}, q.Options)
	assert.Empty(t, q.CorrectAnswer)
}

func TestEditorValidationIsFailFast(t *testing.T) {
	draft := sampleDraft()
	draft.Questions[1].CorrectAnswer = "true"
	draft.Questions[2].CorrectAnswer = "  "
	err := app.NewEditor(draft).Validate()

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Index)
	assert.Equal(t, "correct answer must be True or False", verr.Reason)
}

func TestEditorValidationReasons(t *testing.T) {
	cases := map[string]struct {
		mutate func(*domain.AssessmentDraft)
		index  int
		reason string
	}{
		"blank title": {
			mutate: func(d *domain.AssessmentDraft) { d.Title = "   " },
			reason: "please enter a quiz title",
		},
		"no questions": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions = nil },
			reason: "please add at least one question",
		},
		"blank prompt": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions[0].Prompt = " " },
			index:  1,
			reason: "please enter a question",
		},
		"one option": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions[0].Options = []string{"Mitochondria"} },
			index:  1,
			reason: "please provide at least two options",
		},
		"answer not an option": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions[0].CorrectAnswer = "mitochondria" },
			index:  1,
			reason: "correct answer must be one of the options",
		},
		"missing answer": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions[0].CorrectAnswer = "" },
			index:  1,
			reason: "please select a correct answer",
		},
		"blank fill answer": {
			mutate: func(d *domain.AssessmentDraft) { d.Questions[2].CorrectAnswer = "" },
			index:  3,
			reason: "please enter the expected answer",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			draft := sampleDraft()
			tc.mutate(&draft)
			err := app.NewEditor(draft).Validate()
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.index, verr.Index)
			assert.Equal(t, tc.reason, verr.Reason)
		})
	}
}

func TestEditorQuestionOperations(t *testing.T) {
	ed := app.NewEditor(sampleDraft())

	idx, err := ed.AppendQuestion(domain.MultipleChoice)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, []string{"", "", "", ""}, ed.Draft().Questions[3].Options)

	idx, err = ed.AppendQuestion(domain.TrueFalse)
	require.NoError(t, err)
	assert.Equal(t, []string{"True", "False"}, ed.Draft().Questions[idx].Options)

	_, err = ed.AppendQuestion("essay")
	assert.Error(t, err)

	require.NoError(t, ed.DeleteQuestion(0))
	assert.Equal(t, 4, ed.Len())
	assert.Equal(t, "Plants have cell walls", ed.Draft().Questions[0].Prompt)

	assert.ErrorIs(t, ed.DeleteQuestion(10), domain.ErrQuestionIndexOutOfRange)
	assert.Error(t, ed.ReplaceOption(0, 0, "Maybe"), "true/false options are fixed")
	assert.ErrorIs(t, ed.ReplaceOption(2, 9, "x"), domain.ErrOptionIndexOutOfRange)
	assert.Error(t, ed.UpdateField(0, "points", "3"))

	require.NoError(t, ed.UpdateField(0, app.FieldExplanation, "Cellulose"))
	assert.Equal(t, "Cellulose", ed.Draft().Questions[0].Explanation)
}
