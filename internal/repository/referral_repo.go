package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// ReferralRepository 归因记录仓储
type ReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository 创建归因记录仓储
func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create 创建归因记录
// (affiliate_id, order_no) 存在唯一约束，并发重复创建会返回 gorm.ErrDuplicatedKey
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

// GetByID 根据 ID 获取归因记录
func (r *ReferralRepository) GetByID(ctx context.Context, id int64) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).First(&referral, id).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// GetByIDWithAffiliate 根据 ID 获取归因记录（包含推广员关联）
func (r *ReferralRepository) GetByIDWithAffiliate(ctx context.Context, id int64) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).Preload("Affiliate").First(&referral, id).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// GetByOrder 根据推广员与订单号获取归因记录
func (r *ReferralRepository) GetByOrder(ctx context.Context, affiliateID int64, orderNo string) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND order_no = ?", affiliateID, orderNo).
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// ListByAffiliate 获取推广员的归因记录列表
func (r *ReferralRepository) ListByAffiliate(ctx context.Context, affiliateID int64, status string, offset, limit int) ([]*models.Referral, int64, error) {
	var referrals []*models.Referral
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Referral{}).Where("affiliate_id = ?", affiliateID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&referrals).Error; err != nil {
		return nil, 0, err
	}

	return referrals, total, nil
}

// List 获取归因记录列表
func (r *ReferralRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Referral, int64, error) {
	var referrals []*models.Referral
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Referral{})

	// 应用过滤条件
	if affiliateID, ok := filters["affiliate_id"].(int64); ok && affiliateID > 0 {
		query = query.Where("affiliate_id = ?", affiliateID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if conversionType, ok := filters["conversion_type"].(string); ok && conversionType != "" {
		query = query.Where("conversion_type = ?", conversionType)
	}
	if orderNo, ok := filters["order_no"].(string); ok && orderNo != "" {
		query = query.Where("order_no = ?", orderNo)
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
		Preload("Affiliate").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&referrals).Error; err != nil {
		return nil, 0, err
	}

	return referrals, total, nil
}

// GetPendingList 获取待审核归因记录列表
func (r *ReferralRepository) GetPendingList(ctx context.Context, offset, limit int) ([]*models.Referral, int64, error) {
	var referrals []*models.Referral
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Referral{}).Where("status = ?", models.ReferralStatusPending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Affiliate").
		Order("id ASC"). // 按时间先后顺序
		Offset(offset).
		Limit(limit).
		Find(&referrals).Error; err != nil {
		return nil, 0, err
	}

	return referrals, total, nil
}

// CountByAffiliate 统计推广员的归因记录数
func (r *ReferralRepository) CountByAffiliate(ctx context.Context, affiliateID int64, statuses ...string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Referral{}).Where("affiliate_id = ?", affiliateID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Count(&count).Error
	return count, err
}

// SumCommissionByAffiliate 按状态汇总推广员的佣金金额
func (r *ReferralRepository) SumCommissionByAffiliate(ctx context.Context, affiliateID int64, statuses []string) (float64, error) {
	var sum float64
	query := r.db.WithContext(ctx).Model(&models.Referral{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("affiliate_id = ?", affiliateID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Scan(&sum).Error
	return sum, err
}

// CountByStatus 按状态统计归因记录数量
func (r *ReferralRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Referral{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// GetStatsByAffiliate 获取推广员的归因统计
func (r *ReferralRepository) GetStatsByAffiliate(ctx context.Context, affiliateID int64) (map[string]interface{}, error) {
	type stats struct {
		TotalCount     int64   `gorm:"column:total_count"`
		PendingCount   int64   `gorm:"column:pending_count"`
		ApprovedCount  int64   `gorm:"column:approved_count"`
		PaidCount      int64   `gorm:"column:paid_count"`
		RejectedCount  int64   `gorm:"column:rejected_count"`
		PendingAmount  float64 `gorm:"column:pending_amount"`
		ApprovedAmount float64 `gorm:"column:approved_amount"`
		PaidAmount     float64 `gorm:"column:paid_amount"`
	}

	var s stats
	err := r.db.WithContext(ctx).Model(&models.Referral{}).
		Select(`
			COUNT(*) as total_count,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending_count,
			COUNT(CASE WHEN status = 'approved' THEN 1 END) as approved_count,
			COUNT(CASE WHEN status = 'paid' THEN 1 END) as paid_count,
			COUNT(CASE WHEN status = 'rejected' THEN 1 END) as rejected_count,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN commission_amount ELSE 0 END), 0) as pending_amount,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN commission_amount ELSE 0 END), 0) as approved_amount,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN commission_amount ELSE 0 END), 0) as paid_amount
		`).
		Where("affiliate_id = ?", affiliateID).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_count":     s.TotalCount,
		"pending_count":   s.PendingCount,
		"approved_count":  s.ApprovedCount,
		"paid_count":      s.PaidCount,
		"rejected_count":  s.RejectedCount,
		"pending_amount":  s.PendingAmount,
		"approved_amount": s.ApprovedAmount,
		"paid_amount":     s.PaidAmount,
	}, nil
}

// AffiliateRank 时段排行聚合行
type AffiliateRank struct {
	AffiliateID int64   `gorm:"column:affiliate_id" json:"affiliate_id"`
	Code        string  `gorm:"column:code" json:"code"`
	Earnings    float64 `gorm:"column:earnings" json:"earnings"`
	Referrals   int64   `gorm:"column:referrals" json:"referrals"`
}

// RankSince 按时段聚合推广员排行
// 收益只累计 approved/paid 的佣金，归因数统计全部记录
func (r *ReferralRepository) RankSince(ctx context.Context, since time.Time, byEarnings bool, limit int) ([]*AffiliateRank, error) {
	order := "referrals DESC, affiliate_id ASC"
	if byEarnings {
		order = "earnings DESC, affiliate_id ASC"
	}

	var rows []*AffiliateRank
	err := r.db.WithContext(ctx).Model(&models.Referral{}).
		Select(`
			referrals.affiliate_id as affiliate_id,
			affiliates.code as code,
			COALESCE(SUM(CASE WHEN referrals.status IN ('approved', 'paid') THEN referrals.commission_amount ELSE 0 END), 0) as earnings,
			COUNT(*) as referrals
		`).
		Joins("JOIN affiliates ON affiliates.id = referrals.affiliate_id").
		Where("referrals.created_at >= ?", since).
		Where("affiliates.status = ?", models.AffiliateStatusActive).
		Group("referrals.affiliate_id, affiliates.code").
		Order(order).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
