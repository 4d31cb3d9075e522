package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yakunote/internal/model"
)

const previewColumns = "id, summary, url, created_at"

// SummaryRepository stores summaries in a SQL database through gorm.
type SummaryRepository struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Create(ctx context.Context, summary *model.Summary) error {
	if strings.TrimSpace(summary.ID) == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(summary).Error; err != nil {
		return storageErr("create summary", err)
	}
	return nil
}

func (r *SummaryRepository) ListByUser(ctx context.Context, userID string, skip, limit int) ([]model.SummaryPreview, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Summary{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, storageErr("count summaries", err)
	}

	previews := make([]model.SummaryPreview, 0, limit)
	err := base.
		Select(previewColumns).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&previews).Error
	if err != nil {
		return nil, 0, storageErr("list summaries", err)
	}
	return previews, total, nil
}

func (r *SummaryRepository) GetByID(ctx context.Context, id string) (*model.Summary, error) {
	var summary model.Summary
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get summary", err)
	}
	return &summary, nil
}

func (r *SummaryRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Summary{})
	if result.Error != nil {
		return 0, storageErr("delete summary", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *SummaryRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return storageErr("get sql db", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storageErr("ping database", err)
	}
	return nil
}

// AutoMigrate creates or updates the summaries table.
func (r *SummaryRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&model.Summary{}); err != nil {
		return storageErr("auto migrate summaries", err)
	}
	return nil
}
