package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docexplorer/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create report failed: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*model.Report, error) {
	var report model.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report failed: %w", err)
	}
	return &report, nil
}

func (r *ReportRepository) ListByDocument(ctx context.Context, documentID string) ([]model.Report, error) {
	var list []model.Report
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list reports failed: %w", err)
	}
	return list, nil
}
