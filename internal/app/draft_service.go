package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"quizgen-service/internal/domain"
)

const (
	accessCodeDigits   = 6
	accessCodeAttempts = 5
)

// DraftStore persists validated drafts and resolves access codes.
type DraftStore interface {
	SaveDraft(ctx context.Context, ownerID string, draft domain.AssessmentDraft, accessCode string) (string, error)
	FindByAccessCode(ctx context.Context, code string) (string, error)
}

// DraftService hands validated drafts to the document store.
type DraftService struct {
	store   DraftStore
	newCode func() (string, error)
	log     zerolog.Logger
}

func NewDraftService(store DraftStore, log zerolog.Logger) *DraftService {
	return &DraftService{
		store:   store,
		newCode: newAccessCode,
		log:     log.With().Str("component", "drafts").Logger(),
	}
}

// Save validates draft with the editor rules and stores it under a fresh
// access code. A *domain.ValidationError blocks the save.
func (s *DraftService) Save(ctx context.Context, ownerID string, draft domain.AssessmentDraft) (domain.SavedQuiz, error) {
	editor := NewEditor(draft)
	if err := editor.Validate(); err != nil {
		return domain.SavedQuiz{}, err
	}
	clean := editor.Draft()
	clean.Title = strings.TrimSpace(clean.Title)

	for i := 0; i < accessCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return domain.SavedQuiz{}, fmt.Errorf("generate access code: %w", err)
		}
		id, err := s.store.SaveDraft(ctx, ownerID, clean, code)
		if errors.Is(err, domain.ErrAccessCodeTaken) {
			s.log.Debug().Str("access_code", code).Msg("access code collision")
			continue
		}
		if err != nil {
			return domain.SavedQuiz{}, fmt.Errorf("save draft: %w", err)
		}
		s.log.Info().
			Str("quiz_id", id).
			Str("owner_id", ownerID).
			Int("questions", len(clean.Questions)).
			Msg("draft saved")
		return domain.SavedQuiz{ID: id, AccessCode: code}, nil
	}
	return domain.SavedQuiz{}, domain.ErrAccessCodeTaken
}

// ResolveAccessCode returns the quiz id assigned to code.
func (s *DraftService) ResolveAccessCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != accessCodeDigits {
		return "", domain.ErrQuizNotFound
	}
	return s.store.FindByAccessCode(ctx, code)
}

func newAccessCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", accessCodeDigits, n.Int64()), nil
}
