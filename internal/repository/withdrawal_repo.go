package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/models"
)

// WithdrawalRepository 提现仓储
type WithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓储
func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create 创建提现记录
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

// GetByID 根据 ID 获取提现记录
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).First(&withdrawal, id).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// GetByIDWithRelations 根据 ID 获取提现记录（包含关联）
func (r *WithdrawalRepository) GetByIDWithRelations(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).
		Preload("Affiliate").
		Preload("Operator").
		First(&withdrawal, id).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// GetByWithdrawalNo 根据提现单号获取记录
func (r *WithdrawalRepository) GetByWithdrawalNo(ctx context.Context, withdrawalNo string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&withdrawal).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// ListByAffiliate 获取推广员的提现记录列表
func (r *WithdrawalRepository) ListByAffiliate(ctx context.Context, affiliateID int64, offset, limit int) ([]*models.Withdrawal, int64, error) {
	var withdrawals []*models.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("affiliate_id = ?", affiliateID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// List 获取提现记录列表
func (r *WithdrawalRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Withdrawal, int64, error) {
	var withdrawals []*models.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{})

	// 应用过滤条件
	if affiliateID, ok := filters["affiliate_id"].(int64); ok && affiliateID > 0 {
		query = query.Where("affiliate_id = ?", affiliateID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if method, ok := filters["payout_method"].(string); ok && method != "" {
		query = query.Where("payout_method = ?", method)
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
		Preload("Operator").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// GetPendingList 获取待处理提现列表
func (r *WithdrawalRepository) GetPendingList(ctx context.Context, offset, limit int) ([]*models.Withdrawal, int64, error) {
	var withdrawals []*models.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("status = ?", models.WithdrawalStatusPending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Affiliate").
		Order("id ASC"). // 按时间先后顺序
		Offset(offset).
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// MarkProcessing 标记为打款中
func (r *WithdrawalRepository) MarkProcessing(ctx context.Context, id int64, operatorID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusProcessing,
			"operator_id":  operatorID,
			"processed_at": now,
		}).Error
}

// SumByAffiliate 按状态汇总推广员的提现金额
func (r *WithdrawalRepository) SumByAffiliate(ctx context.Context, affiliateID int64, statuses []string) (float64, error) {
	var sum float64
	query := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("affiliate_id = ?", affiliateID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Scan(&sum).Error
	return sum, err
}

// CountInFlightByAffiliate 统计推广员在途（待处理/打款中）的提现数量
func (r *WithdrawalRepository) CountInFlightByAffiliate(ctx context.Context, affiliateID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("affiliate_id = ? AND status IN ?", affiliateID, []string{
			models.WithdrawalStatusPending,
			models.WithdrawalStatusProcessing,
		}).
		Count(&count).Error
	return count, err
}

// CountByStatus 按状态统计提现数量
func (r *WithdrawalRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// GetStatsByAffiliate 获取推广员的提现统计
func (r *WithdrawalRepository) GetStatsByAffiliate(ctx context.Context, affiliateID int64) (map[string]interface{}, error) {
	type stats struct {
		TotalAmount     float64 `gorm:"column:total_amount"`
		CompletedAmount float64 `gorm:"column:completed_amount"`
		InFlightAmount  float64 `gorm:"column:in_flight_amount"`
		TotalCount      int64   `gorm:"column:total_count"`
		CompletedCount  int64   `gorm:"column:completed_count"`
	}

	var s stats
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select(`
			COALESCE(SUM(amount), 0) as total_amount,
			COALESCE(SUM(CASE WHEN status = 'completed' THEN amount ELSE 0 END), 0) as completed_amount,
			COALESCE(SUM(CASE WHEN status IN ('pending', 'processing') THEN amount ELSE 0 END), 0) as in_flight_amount,
			COUNT(*) as total_count,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed_count
		`).
		Where("affiliate_id = ?", affiliateID).
		Scan(&s).Error
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_amount":     s.TotalAmount,
		"completed_amount": s.CompletedAmount,
		"in_flight_amount": s.InFlightAmount,
		"total_count":      s.TotalCount,
		"completed_count":  s.CompletedCount,
	}, nil
}

// ExistsWithdrawalNo 检查提现单号是否存在
func (r *WithdrawalRepository) ExistsWithdrawalNo(ctx context.Context, withdrawalNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).Where("withdrawal_no = ?", withdrawalNo).Count(&count).Error
	return count > 0, err
}
