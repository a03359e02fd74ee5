package affiliate

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// StatsService 推广员统计聚合服务
// 派生统计（total_earnings/total_referrals/total_visits）采用全量重算而非增量计数：
// 增量计数在并发部分失败下会漂移，按推广员粒度的重算成本低且可自愈。
// 重算必须发生在触发它的写事务内部，读者不会看到状态已变而统计未变的窗口
type StatsService struct {
	affiliateRepo  *repository.AffiliateRepository
	referralRepo   *repository.ReferralRepository
	visitRepo      *repository.VisitRepository
	withdrawalRepo *repository.WithdrawalRepository
	db             *gorm.DB
}

// NewStatsService 创建统计聚合服务
func NewStatsService(
	affiliateRepo *repository.AffiliateRepository,
	referralRepo *repository.ReferralRepository,
	visitRepo *repository.VisitRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	db *gorm.DB,
) *StatsService {
	return &StatsService{
		affiliateRepo:  affiliateRepo,
		referralRepo:   referralRepo,
		visitRepo:      visitRepo,
		withdrawalRepo: withdrawalRepo,
		db:             db,
	}
}

// RecomputeTx 在调用方事务内重算推广员的派生统计
// total_earnings = sum(approved/paid 佣金) − sum(completed 提现)
func (s *StatsService) RecomputeTx(tx *gorm.DB, affiliateID int64) error {
	var totalReferrals int64
	if err := tx.Model(&models.Referral{}).
		Where("affiliate_id = ?", affiliateID).
		Count(&totalReferrals).Error; err != nil {
		return err
	}

	var totalVisits int64
	if err := tx.Model(&models.Visit{}).
		Where("affiliate_id = ?", affiliateID).
		Count(&totalVisits).Error; err != nil {
		return err
	}

	var earned float64
	if err := tx.Model(&models.Referral{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("affiliate_id = ? AND status IN ?", affiliateID, []string{
			models.ReferralStatusApproved,
			models.ReferralStatusPaid,
		}).
		Scan(&earned).Error; err != nil {
		return err
	}

	var withdrawn float64
	if err := tx.Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("affiliate_id = ? AND status = ?", affiliateID, models.WithdrawalStatusCompleted).
		Scan(&withdrawn).Error; err != nil {
		return err
	}

	totalEarnings := utils.Round2(earned - withdrawn)
	if totalEarnings < 0 {
		// 提现处理器在余额校验下不应出现负值
		logger.GetLogger().Warn("推广员收益重算为负，已钳制为零",
			logger.AffiliateID(affiliateID),
			logger.Amount(totalEarnings),
		)
		totalEarnings = 0
	}

	return tx.Model(&models.Affiliate{}).
		Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"total_earnings":  totalEarnings,
			"total_referrals": totalReferrals,
			"total_visits":    totalVisits,
		}).Error
}

// Recompute 在独立事务中重算派生统计
// 周期性自愈任务使用，正常写路径走 RecomputeTx
func (s *StatsService) Recompute(ctx context.Context, affiliateID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.RecomputeTx(tx, affiliateID)
	})
}

// AuditAll 对所有正常状态的推广员重算统计
// 返回重算的推广员数量
func (s *StatsService) AuditAll(ctx context.Context) (int, error) {
	affiliates, err := s.affiliateRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	audited := 0
	for _, a := range affiliates {
		if err := s.Recompute(ctx, a.ID); err != nil {
			logger.GetLogger().Error("统计自愈重算失败",
				logger.AffiliateID(a.ID),
				logger.Err(err),
			)
			continue
		}
		audited++
	}
	return audited, nil
}

// Overview 推广员统计总览
type Overview struct {
	TotalEarnings  float64 `json:"total_earnings"`   // 可提现余额（已扣除完成提现）
	PendingAmount  float64 `json:"pending_amount"`   // 待审核佣金
	ApprovedAmount float64 `json:"approved_amount"`  // 已通过未结算佣金
	PaidAmount     float64 `json:"paid_amount"`      // 已结算佣金
	TotalReferrals int64   `json:"total_referrals"`  // 归因总数
	TotalVisits    int64   `json:"total_visits"`     // 访问总数
	ConvertedCount int64   `json:"converted_count"`  // 已转化访问数
	ConversionRate float64 `json:"conversion_rate"`  // 转化率（百分比）
	TodayVisits    int64   `json:"today_visits"`     // 今日访问
	MonthVisits    int64   `json:"month_visits"`     // 本月访问
	InFlightAmount float64 `json:"in_flight_amount"` // 在途提现金额
}

// GetOverview 获取推广员统计总览
func (s *StatsService) GetOverview(ctx context.Context, affiliateID int64) (*Overview, error) {
	affiliate, err := s.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	referralStats, err := s.referralRepo.GetStatsByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	converted, err := s.visitRepo.CountConvertedByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	todayVisits, err := s.visitRepo.CountByAffiliateSince(ctx, affiliateID, todayStart)
	if err != nil {
		return nil, err
	}
	monthVisits, err := s.visitRepo.CountByAffiliateSince(ctx, affiliateID, monthStart)
	if err != nil {
		return nil, err
	}

	withdrawalStats, err := s.withdrawalRepo.GetStatsByAffiliate(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		TotalEarnings:  affiliate.TotalEarnings,
		PendingAmount:  referralStats["pending_amount"].(float64),
		ApprovedAmount: referralStats["approved_amount"].(float64),
		PaidAmount:     referralStats["paid_amount"].(float64),
		TotalReferrals: affiliate.TotalReferrals,
		TotalVisits:    affiliate.TotalVisits,
		ConvertedCount: converted,
		TodayVisits:    todayVisits,
		MonthVisits:    monthVisits,
		InFlightAmount: withdrawalStats["in_flight_amount"].(float64),
	}
	if affiliate.TotalVisits > 0 {
		overview.ConversionRate = utils.Round2(float64(converted) / float64(affiliate.TotalVisits) * 100)
	}

	return overview, nil
}

// DailyVisits 按天访问量
func (s *StatsService) DailyVisits(ctx context.Context, affiliateID int64, days int) (map[string]int64, error) {
	if days <= 0 {
		days = 7
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	return s.visitRepo.DailyCounts(ctx, affiliateID, start, end)
}
