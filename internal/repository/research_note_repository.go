package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"docexplorer/internal/model"
)

// ErrNotFound is returned by mutations that matched no row.
var ErrNotFound = errors.New("record not found")

type ResearchNoteRepository struct {
	db *gorm.DB
}

func NewResearchNoteRepository(db *gorm.DB) *ResearchNoteRepository {
	return &ResearchNoteRepository{db: db}
}

// NoteFilter narrows note listings. Zero values mean "any".
type NoteFilter struct {
	DocumentID   string
	VerifiedOnly bool
	Pending      bool
	Validated    bool
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

// Save inserts or fully updates a note; the worker relies on this to make
// redelivered messages idempotent.
func (r *ResearchNoteRepository) Save(ctx context.Context, note *model.ResearchNote) error {
	if err := r.db.WithContext(ctx).Save(note).Error; err != nil {
		return fmt.Errorf("save research note failed: %w", err)
	}
	return nil
}

func (r *ResearchNoteRepository) GetByID(ctx context.Context, id string) (*model.ResearchNote, error) {
	var note model.ResearchNote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research note failed: %w", err)
	}
	return &note, nil
}

func (r *ResearchNoteRepository) List(ctx context.Context, f NoteFilter) ([]model.ResearchNote, error) {
	q := r.db.WithContext(ctx).Model(&model.ResearchNote{})
	if f.DocumentID != "" {
		q = q.Where("document_id = ?", f.DocumentID)
	}
	if f.VerifiedOnly {
		q = q.Where("verified = ?", true)
	}
	if f.Pending {
		q = q.Where("validated_at IS NULL")
	}
	if f.Validated {
		q = q.Where("validated_at IS NOT NULL")
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("created_at <= ?", *f.Until)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var list []model.ResearchNote
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list research notes failed: %w", err)
	}
	return list, nil
}

func (r *ResearchNoteRepository) UpdateContent(ctx context.Context, id, content string) error {
	res := r.db.WithContext(ctx).Model(&model.ResearchNote{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return fmt.Errorf("update research note failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ResearchNoteRepository) Validate(ctx context.Context, id, validator, feedback string, valid bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.ResearchNote{}).Where("id = ?", id).Updates(map[string]interface{}{
		"verified":     valid,
		"validator":    validator,
		"feedback":     feedback,
		"validated_at": at,
	})
	if res.Error != nil {
		return fmt.Errorf("validate research note failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ResearchNoteRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ResearchNote{})
	if res.Error != nil {
		return fmt.Errorf("delete research note failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DocumentIDs lists every document that has at least one note.
func (r *ResearchNoteRepository) DocumentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.ResearchNote{}).Distinct().Pluck("document_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list note document ids failed: %w", err)
	}
	return ids, nil
}
