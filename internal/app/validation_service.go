package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"docexplorer/internal/model"
	"docexplorer/internal/repository"
)

var ErrAlreadyValidated = errors.New("research note already validated")

// ValidationService moves notes from pending to validated. A note is pending
// until someone records a verdict on it.
type ValidationService struct {
	repo NoteRepository
	now  func() time.Time
}

type ValidateInput struct {
	NoteID    string
	Validator string
	IsValid   bool
	Feedback  string
}

func NewValidationService(repo NoteRepository) *ValidationService {
	return &ValidationService{repo: repo, now: time.Now}
}

func (s *ValidationService) ListPending(ctx context.Context, documentID string) ([]model.ResearchNote, error) {
	return s.repo.List(ctx, repository.NoteFilter{DocumentID: documentID, Pending: true})
}

func (s *ValidationService) ListValidated(ctx context.Context, documentID string) ([]model.ResearchNote, error) {
	return s.repo.List(ctx, repository.NoteFilter{DocumentID: documentID, Validated: true})
}

func (s *ValidationService) Validate(ctx context.Context, input ValidateInput) (*model.ResearchNote, error) {
	validator := strings.TrimSpace(input.Validator)
	if input.NoteID == "" || validator == "" {
		return nil, ErrInvalidInput
	}
	note, err := s.repo.GetByID(ctx, input.NoteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	if note.ValidatedAt != nil {
		return nil, ErrAlreadyValidated
	}

	at := s.now().UTC()
	feedback := strings.TrimSpace(input.Feedback)
	if err := s.repo.Validate(ctx, note.ID, validator, feedback, input.IsValid, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	note.Verified = input.IsValid
	note.Validator = validator
	note.Feedback = feedback
	note.ValidatedAt = &at
	return note, nil
}
