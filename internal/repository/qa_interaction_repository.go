package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docexplorer/internal/model"
)

type QAInteractionRepository struct {
	db *gorm.DB
}

func NewQAInteractionRepository(db *gorm.DB) *QAInteractionRepository {
	return &QAInteractionRepository{db: db}
}

func (r *QAInteractionRepository) Create(ctx context.Context, qa *model.QAInteraction) error {
	if err := r.db.WithContext(ctx).Create(qa).Error; err != nil {
		return fmt.Errorf("create qa interaction failed: %w", err)
	}
	return nil
}

// ListByDocument returns the newest interactions first, up to limit (0 = all).
func (r *QAInteractionRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]model.QAInteraction, error) {
	q := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []model.QAInteraction
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list qa interactions failed: %w", err)
	}
	return list, nil
}
