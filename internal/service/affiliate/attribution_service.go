package affiliate

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// AttributionService 归因网关
// 把推广链接的访问记录为 Visit，把完成的订单归因为 Referral，
// 并保证同一 (推广员, 订单号) 至多产生一条归因记录
type AttributionService struct {
	affiliateRepo *repository.AffiliateRepository
	visitRepo     *repository.VisitRepository
	referralRepo  *repository.ReferralRepository
	stats         *StatsService
	db            *gorm.DB
}

// NewAttributionService 创建归因网关
func NewAttributionService(
	affiliateRepo *repository.AffiliateRepository,
	visitRepo *repository.VisitRepository,
	referralRepo *repository.ReferralRepository,
	stats *StatsService,
	db *gorm.DB,
) *AttributionService {
	return &AttributionService{
		affiliateRepo: affiliateRepo,
		visitRepo:     visitRepo,
		referralRepo:  referralRepo,
		stats:         stats,
		db:            db,
	}
}

// RecordVisitRequest 访问记录请求
type RecordVisitRequest struct {
	Code        string `json:"code"`
	VisitorKey  string `json:"visitor_key,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UserAgent   string `json:"-"`
	Country     string `json:"-"`
}

// RecordVisit 记录一次推广链接访问
// 推广码无效或推广员非正常状态时记录为无归属访问而非报错，
// 访问埋点永远不能阻塞访问者的正常浏览
func (s *AttributionService) RecordVisit(ctx context.Context, req *RecordVisitRequest) (*models.Visit, error) {
	visit := &models.Visit{
		Code:        req.Code,
		VisitorKey:  req.VisitorKey,
		LandingPage: req.LandingPage,
		Referrer:    req.Referrer,
		Device:      parseDevice(req.UserAgent),
		Browser:     parseBrowser(req.UserAgent),
		Country:     req.Country,
	}
	if visit.VisitorKey == "" {
		visit.VisitorKey = uuid.NewString()
	}

	affiliate, err := s.affiliateRepo.GetByCode(ctx, req.Code)
	if err == nil && affiliate.Status == models.AffiliateStatusActive {
		visit.AffiliateID = &affiliate.ID
	}

	if err := s.visitRepo.Create(ctx, visit); err != nil {
		logger.GetLogger().Error("访问记录写入失败",
			logger.Code(req.Code),
			logger.Err(err),
		)
		return nil, err
	}

	metrics.GetMetrics().RecordVisit(visit.Device)

	if visit.AffiliateID != nil {
		// 访问总数的重算是尽力而为，失败不影响记录本身
		if err := s.stats.Recompute(ctx, *visit.AffiliateID); err != nil {
			logger.GetLogger().Warn("访问统计重算失败",
				logger.AffiliateID(*visit.AffiliateID),
				logger.Err(err),
			)
		}
	}

	return visit, nil
}

// AttributeRequest 归因请求
type AttributeRequest struct {
	Code           string  `json:"code" binding:"required"`
	OrderNo        string  `json:"order_no" binding:"required"`
	OrderAmount    float64 `json:"order_amount" binding:"required"`
	ConversionType string  `json:"conversion_type" binding:"required"`
	VisitorKey     string  `json:"visitor_key,omitempty"`
}

// Attribute 把完成的订单归因到推广员
// 幂等：同一 (推广员, 订单号) 重复归因返回已有记录本身，调用方超时重试是安全的。
// 佣金比例在此刻从推广员档案读取并冻结到归因记录上
func (s *AttributionService) Attribute(ctx context.Context, req *AttributeRequest) (*models.Referral, error) {
	if req.OrderAmount <= 0 {
		return nil, errors.ErrInvalidOrderAmount
	}
	if !isValidConversionType(req.ConversionType) {
		return nil, errors.ErrInvalidConversion
	}

	affiliate, err := s.affiliateRepo.GetByCode(ctx, req.Code)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnknownAffiliate
		}
		return nil, err
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return nil, errors.ErrAffiliateNotActive
	}

	// 幂等快路径
	if existing, err := s.referralRepo.GetByOrder(ctx, affiliate.ID, req.OrderNo); err == nil {
		return existing, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rate, amount := ComputeCommission(req.OrderAmount, affiliate.CommissionRate)
	referral := &models.Referral{
		AffiliateID:      affiliate.ID,
		OrderNo:          req.OrderNo,
		OrderAmount:      req.OrderAmount,
		CommissionRate:   rate,
		CommissionAmount: amount,
		ConversionType:   req.ConversionType,
		Status:           models.ReferralStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(referral).Error; err != nil {
			return err
		}

		// 标记最近一次匹配的未转化访问：
		// 带 visitor_key 时限定到该访客；调用方无法透传访客标识时，
		// 回退到该推广员最近一次未转化的访问，避免转化率统计系统性偏低
		query := tx.Where("affiliate_id = ? AND converted = ?", affiliate.ID, false)
		if req.VisitorKey != "" {
			query = query.Where("visitor_key = ?", req.VisitorKey)
		}
		var visit models.Visit
		if err := query.Order("id DESC").First(&visit).Error; err == nil {
			if err := tx.Model(&models.Visit{}).
				Where("id = ?", visit.ID).
				Update("converted", true).Error; err != nil {
				return err
			}
		} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return s.stats.RecomputeTx(tx, affiliate.ID)
	})
	if err != nil {
		// 唯一约束兜底：并发重复归因时事务整体回滚，改为返回先到者的记录
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return s.referralRepo.GetByOrder(ctx, affiliate.ID, req.OrderNo)
		}
		return nil, err
	}

	metrics.GetMetrics().RecordConversion(req.ConversionType, models.ReferralStatusPending)
	metrics.GetMetrics().RecordCommission(models.ReferralStatusPending, amount)

	return referral, nil
}

func isValidConversionType(t string) bool {
	switch t {
	case models.ConversionTypeSignup, models.ConversionTypePurchase, models.ConversionTypeSubscription:
		return true
	}
	return false
}

// parseDevice 按 User-Agent 粗分设备类型
func parseDevice(userAgent string) string {
	if userAgent == "" {
		return models.DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

// parseBrowser 按 User-Agent 粗分浏览器
func parseBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "micromessenger"):
		return "wechat"
	case strings.Contains(ua, "edg/"):
		return "edge"
	case strings.Contains(ua, "chrome"):
		return "chrome"
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "safari"):
		return "safari"
	case ua == "":
		return ""
	default:
		return "other"
	}
}
