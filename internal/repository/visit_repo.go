package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// VisitRepository 推广访问仓储
type VisitRepository struct {
	db *gorm.DB
}

// NewVisitRepository 创建推广访问仓储
func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Create 创建访问记录
func (r *VisitRepository) Create(ctx context.Context, visit *models.Visit) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

// GetByID 根据 ID 获取访问记录
func (r *VisitRepository) GetByID(ctx context.Context, id int64) (*models.Visit, error) {
	var visit models.Visit
	err := r.db.WithContext(ctx).First(&visit, id).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// GetLatestByVisitor 获取某访客对指定推广员的最近一次访问
func (r *VisitRepository) GetLatestByVisitor(ctx context.Context, affiliateID int64, visitorKey string) (*models.Visit, error) {
	var visit models.Visit
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND visitor_key = ?", affiliateID, visitorKey).
		Order("id DESC").
		First(&visit).Error
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

// MarkConverted 将访问标记为已转化
func (r *VisitRepository) MarkConverted(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Visit{}).
		Where("id = ?", id).
		Update("converted", true).Error
}

// ListByAffiliate 获取推广员的访问记录列表
func (r *VisitRepository) ListByAffiliate(ctx context.Context, affiliateID int64, offset, limit int) ([]*models.Visit, int64, error) {
	var visits []*models.Visit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Visit{}).Where("affiliate_id = ?", affiliateID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&visits).Error; err != nil {
		return nil, 0, err
	}

	return visits, total, nil
}

// CountByAffiliate 统计推广员的访问总数
func (r *VisitRepository) CountByAffiliate(ctx context.Context, affiliateID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Visit{}).
		Where("affiliate_id = ?", affiliateID).
		Count(&count).Error
	return count, err
}

// CountByAffiliateSince 统计推广员指定时间后的访问数
func (r *VisitRepository) CountByAffiliateSince(ctx context.Context, affiliateID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Visit{}).
		Where("affiliate_id = ? AND created_at >= ?", affiliateID, since).
		Count(&count).Error
	return count, err
}

// CountConvertedByAffiliate 统计推广员已转化的访问数
func (r *VisitRepository) CountConvertedByAffiliate(ctx context.Context, affiliateID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Visit{}).
		Where("affiliate_id = ? AND converted = ?", affiliateID, true).
		Count(&count).Error
	return count, err
}

// DailyCounts 按天统计推广员访问量
func (r *VisitRepository) DailyCounts(ctx context.Context, affiliateID int64, start, end time.Time) (map[string]int64, error) {
	type row struct {
		Day   string `gorm:"column:day"`
		Count int64  `gorm:"column:count"`
	}

	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Visit{}).
		Select("DATE(created_at) as day, COUNT(*) as count").
		Where("affiliate_id = ? AND created_at >= ? AND created_at <= ?", affiliateID, start, end).
		Group("DATE(created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Day] = r.Count
	}
	return result, nil
}
