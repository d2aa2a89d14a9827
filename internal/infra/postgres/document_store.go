package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizgen-service/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// DocumentStore keeps drafts and results in Postgres. Questions are stored as
// JSONB in their canonical shape.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) SaveDraft(ctx context.Context, ownerID string, draft domain.AssessmentDraft, accessCode string) (string, error) {
	raw, err := json.Marshal(draft.Questions)
	if err != nil {
		return "", fmt.Errorf("marshal questions: %w", err)
	}
	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, owner_id, title, description, access_code, questions)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, ownerID, draft.Title, draft.Description, accessCode, raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrAccessCodeTaken
		}
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return id, nil
}

func (s *DocumentStore) LoadQuestionSet(ctx context.Context, quizID string) ([]domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT questions FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal question set: %w", err)
	}
	return questions, nil
}

// SaveAttemptResult stores one row per attempt; a repeated save of the same
// attempt is ignored.
func (s *DocumentStore) SaveAttemptResult(ctx context.Context, quizID, learnerID string, result domain.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO scores (quiz_id, learner_id, attempt_id, score, correct, total, percentage, integrity_signals, result, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		quizID, learnerID, result.AttemptID, result.Score(), result.Correct, result.Total,
		result.Percentage, result.IntegritySignals, raw, result.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.ErrQuizNotFound
		}
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

func (s *DocumentStore) FindByAccessCode(ctx context.Context, code string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM quizzes WHERE access_code=$1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrQuizNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find by access code: %w", err)
	}
	return id, nil
}

// Results returns the stored results for a quiz, oldest first. An unknown
// quiz is ErrQuizNotFound, a quiz without results is an empty list.
func (s *DocumentStore) Results(ctx context.Context, quizID string) ([]domain.Result, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quizzes WHERE id=$1)`, quizID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return nil, domain.ErrQuizNotFound
	}

	rows, err := s.pool.Query(ctx, `SELECT result FROM scores WHERE quiz_id=$1 ORDER BY submitted_at, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	out := []domain.Result{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		var r domain.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
