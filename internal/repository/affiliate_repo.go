// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// AffiliateRepository 推广员仓储
type AffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广员仓储
func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// Create 创建推广员
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

// GetByID 根据 ID 获取推广员
func (r *AffiliateRepository) GetByID(ctx context.Context, id int64) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByIDWithUser 根据 ID 获取推广员（包含用户关联）
func (r *AffiliateRepository) GetByIDWithUser(ctx context.Context, id int64) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Preload("User").First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByUserID 根据用户 ID 获取推广员
func (r *AffiliateRepository) GetByUserID(ctx context.Context, userID int64) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByCode 根据推广码获取推广员
func (r *AffiliateRepository) GetByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// ExistsCode 检查推广码是否已被占用
func (r *AffiliateRepository) ExistsCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// Update 更新推广员
func (r *AffiliateRepository) Update(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Save(affiliate).Error
}

// UpdateStatus 更新推广员状态
func (r *AffiliateRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Approve 审核通过推广员申请
func (r *AffiliateRepository) Approve(ctx context.Context, id int64, adminID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ? AND status = ?", id, models.AffiliateStatusPending).
		Updates(map[string]interface{}{
			"status":      models.AffiliateStatusActive,
			"approved_at": now,
			"approved_by": adminID,
		}).Error
}

// Reject 拒绝推广员申请
func (r *AffiliateRepository) Reject(ctx context.Context, id int64, adminID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ? AND status = ?", id, models.AffiliateStatusPending).
		Updates(map[string]interface{}{
			"status":      models.AffiliateStatusRejected,
			"approved_at": now,
			"approved_by": adminID,
		}).Error
}

// UpdateCommissionRate 更新佣金比例
// 仅影响之后创建的归因记录，已有记录的快照比例不变
func (r *AffiliateRepository) UpdateCommissionRate(ctx context.Context, id int64, rate float64) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("commission_rate", rate).Error
}

// UpdatePayout 更新提现方式与账号
func (r *AffiliateRepository) UpdatePayout(ctx context.Context, id int64, method, account string) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payout_method":  method,
			"payout_account": account,
		}).Error
}

// List 获取推广员列表
func (r *AffiliateRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Affiliate, int64, error) {
	var affiliates []*models.Affiliate
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Affiliate{})

	// 应用过滤条件
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if code, ok := filters["code"].(string); ok && code != "" {
		query = query.Where("code = ?", code)
	}
	if startTime, ok := filters["start_time"].(time.Time); ok {
		query = query.Where("created_at >= ?", startTime)
	}
	if endTime, ok := filters["end_time"].(time.Time); ok {
		query = query.Where("created_at <= ?", endTime)
	}

	// 统计总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 查询列表
	if err := query.
		Preload("User").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&affiliates).Error; err != nil {
		return nil, 0, err
	}

	return affiliates, total, nil
}

// ListActive 获取所有正常状态的推广员
func (r *AffiliateRepository) ListActive(ctx context.Context) ([]*models.Affiliate, error) {
	var affiliates []*models.Affiliate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AffiliateStatusActive).
		Order("id ASC").
		Find(&affiliates).Error
	return affiliates, err
}

// CountByStatus 按状态统计推广员数量
func (r *AffiliateRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// TopByEarnings 按累计收益排名获取推广员
func (r *AffiliateRepository) TopByEarnings(ctx context.Context, limit int) ([]*models.Affiliate, error) {
	var affiliates []*models.Affiliate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AffiliateStatusActive).
		Order("total_earnings DESC, id ASC").
		Limit(limit).
		Find(&affiliates).Error
	return affiliates, err
}

// TopByReferrals 按归因数量排名获取推广员
func (r *AffiliateRepository) TopByReferrals(ctx context.Context, limit int) ([]*models.Affiliate, error) {
	var affiliates []*models.Affiliate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AffiliateStatusActive).
		Order("total_referrals DESC, id ASC").
		Limit(limit).
		Find(&affiliates).Error
	return affiliates, err
}
