package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quizgen-service/internal/app"
	"quizgen-service/internal/domain"
	"quizgen-service/internal/infra/memory"
)

func TestAttemptFlowPersistsOnce(t *testing.T) {
	ctx := context.Background()
	service, store, sessions := newTestService()

	view, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if view.QuestionCount != 3 || view.Status != app.StatusInProgress {
		t.Fatalf("unexpected initial view %+v", view)
	}

	if _, err := service.SelectAnswer(ctx, view.AttemptID, 0, "4"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if _, err := service.Navigate(ctx, view.AttemptID, 2); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, view.AttemptID, 2, "Paris"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	_, unanswered, err := service.EnterReview(ctx, view.AttemptID)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if unanswered != 1 {
		t.Fatalf("expected 1 unanswered, got %d", unanswered)
	}

	first, err := service.Submit(ctx, view.AttemptID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if first.Score() != "2/3" {
		t.Fatalf("expected 2/3, got %s", first.Score())
	}
	second, err := service.Submit(ctx, view.AttemptID)
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if second.Score() != first.Score() || !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Fatalf("second submit changed the result")
	}
	if got := storedResults(t, store); got != 1 {
		t.Fatalf("expected result persisted once, got %d", got)
	}

	service.Abandon(ctx, view.AttemptID)
	if sessions.Len() != 0 {
		t.Fatalf("expected session discarded")
	}
	if _, err := service.View(ctx, view.AttemptID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestRetakeStartsFreshAttempt(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	first, _ := service.Start(ctx, "quiz-1", "u1")
	_, _ = service.SelectAnswer(ctx, first.AttemptID, 0, "4")
	if _, err := service.Submit(ctx, first.AttemptID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	retake, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("retake failed: %v", err)
	}
	if retake.AttemptID == first.AttemptID {
		t.Fatalf("retake reused attempt id")
	}
	if len(retake.Answers) != 0 || retake.Status != app.StatusInProgress {
		t.Fatalf("retake should start clean, got %+v", retake)
	}
}

func TestStartUnknownQuiz(t *testing.T) {
	service, _, _ := newTestService()
	if _, err := service.Start(context.Background(), "missing", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestSubmitRetriesFailedSave(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	store.Put("quiz-1", domain.AssessmentDraft{Title: "Sample", Questions: threeQuestions()})
	flaky := &flakyRecorder{fail: 1, next: store}
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuestionSetRepository(store, time.Minute), flaky, nil, zerolog.Nop())

	view, _ := service.Start(ctx, "quiz-1", "u1")
	if _, err := service.Submit(ctx, view.AttemptID); err == nil {
		t.Fatalf("expected save failure")
	}
	if _, err := service.Submit(ctx, view.AttemptID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if _, err := service.Submit(ctx, view.AttemptID); err != nil {
		t.Fatalf("third submit failed: %v", err)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected 2 save calls, got %d", flaky.calls)
	}
	if got := storedResults(t, store); got != 1 {
		t.Fatalf("expected one stored result, got %d", got)
	}
}

func TestMonitorReceivesIntegrityAndSubmission(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	store.Put("quiz-1", domain.AssessmentDraft{Title: "Sample", Questions: threeQuestions()})
	monitor := app.NewMonitor()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuestionSetRepository(store, time.Minute), store, monitor, zerolog.Nop())

	events, cancel := monitor.Subscribe("quiz-1")
	defer cancel()

	view, _ := service.Start(ctx, "quiz-1", "u1")
	expectEvent(t, events, app.EventStarted)

	count, err := service.RecordIntegritySignal(ctx, view.AttemptID, domain.TabSwitch)
	if err != nil || count != 1 {
		t.Fatalf("integrity signal: count=%d err=%v", count, err)
	}
	ev := expectEvent(t, events, app.EventIntegrity)
	if ev.Kind != string(domain.TabSwitch) || ev.IntegritySignals != 1 {
		t.Fatalf("unexpected integrity event %+v", ev)
	}

	if _, err := service.Submit(ctx, view.AttemptID); err != nil {
		t.Fatalf("submit failed after integrity signal: %v", err)
	}
	ev = expectEvent(t, events, app.EventSubmitted)
	if ev.Score != "0/3" || ev.IntegritySignals != 1 {
		t.Fatalf("unexpected submitted event %+v", ev)
	}

	// Signals after submission are ignored and not broadcast.
	if count, _ := service.RecordIntegritySignal(ctx, view.AttemptID, domain.WindowBlur); count != 1 {
		t.Fatalf("expected count to stay at 1, got %d", count)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestIntegritySignalKinds(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()
	view, err := service.Start(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := service.RecordIntegritySignal(ctx, view.AttemptID, "screenshot"); !errors.Is(err, domain.ErrUnsupportedIntegrityKind) {
		t.Fatalf("expected ErrUnsupportedIntegrityKind, got %v", err)
	}
	count, err := service.RecordIntegritySignal(ctx, view.AttemptID, "")
	if err != nil || count != 1 {
		t.Fatalf("empty kind should count as a tab switch: count=%d err=%v", count, err)
	}
	count, err = service.RecordIntegritySignal(ctx, view.AttemptID, domain.FullscreenExit)
	if err != nil || count != 2 {
		t.Fatalf("fullscreen exit: count=%d err=%v", count, err)
	}
}

func expectEvent(t *testing.T, events <-chan app.MonitorEvent, want app.MonitorEventType) app.MonitorEvent {
	t.Helper()
	select {
	case ev := <-events:
		if ev.Type != want {
			t.Fatalf("expected %s event, got %s", want, ev.Type)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s event", want)
	}
	return app.MonitorEvent{}
}

type flakyRecorder struct {
	fail  int
	calls int
	next  app.ResultRecorder
}

func (r *flakyRecorder) SaveAttemptResult(ctx context.Context, quizID, learnerID string, result domain.Result) error {
	r.calls++
	if r.calls <= r.fail {
		return errors.New("database unavailable")
	}
	return r.next.SaveAttemptResult(ctx, quizID, learnerID, result)
}

func storedResults(t *testing.T, store *memory.DocumentStore) int {
	t.Helper()
	results, err := store.Results(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	return len(results)
}

func newTestService() (*app.AttemptService, *memory.DocumentStore, *memory.SessionStore) {
	store := memory.NewDocumentStore()
	store.Put("quiz-1", domain.AssessmentDraft{Title: "Sample", Questions: threeQuestions()})
	questions := memory.NewQuestionSetRepository(store, time.Minute)
	sessions := memory.NewSessionStore()
	service := app.NewAttemptService(sessions, questions, store, app.NewMonitor(), zerolog.Nop())
	return service, store, sessions
}
