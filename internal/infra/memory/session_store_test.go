package memory

import (
	"context"
	"testing"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	attempt, err := app.NewAttempt("attempt-1", "quiz-1", "learner-1", sampleQuestions())
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	if err := store.Create(ctx, app.NewSession(attempt)); err != nil {
		t.Fatalf("create: %v", err)
	}
	session, ok := store.Get(ctx, "attempt-1")
	if !ok {
		t.Fatalf("expected session present")
	}
	if session.QuizID() != "quiz-1" {
		t.Fatalf("unexpected quiz id %s", session.QuizID())
	}

	store.Delete(ctx, "attempt-1")
	if _, ok := store.Get(ctx, "attempt-1"); ok {
		t.Fatalf("expected session removed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Type:          domain.MultipleChoice,
			Prompt:        "What is 2 + 2?",
			Options:       []string{"3", "4"},
			CorrectAnswer: "4",
		},
	}
}
