package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docexplorer/internal/model"
)

type SummaryRepository struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Create(ctx context.Context, s *model.DocumentSummary) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create document summary failed: %w", err)
	}
	return nil
}

func (r *SummaryRepository) Latest(ctx context.Context, documentID, kind string) (*model.DocumentSummary, error) {
	var s model.DocumentSummary
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND kind = ?", documentID, kind).
		Order("created_at DESC, id DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest summary failed: %w", err)
	}
	return &s, nil
}
