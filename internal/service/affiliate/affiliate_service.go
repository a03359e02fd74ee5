package affiliate

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 推广码生成参数
const (
	codeLength      = 8
	codeMaxAttempts = 10
)

// AffiliateService 推广员注册与档案服务
type AffiliateService struct {
	affiliateRepo *repository.AffiliateRepository
	userRepo      *repository.UserRepository
	aes           *crypto.AES
	defaultRate   float64
}

// NewAffiliateService 创建推广员服务
func NewAffiliateService(
	affiliateRepo *repository.AffiliateRepository,
	userRepo *repository.UserRepository,
	aes *crypto.AES,
	defaultRate float64,
) *AffiliateService {
	return &AffiliateService{
		affiliateRepo: affiliateRepo,
		userRepo:      userRepo,
		aes:           aes,
		defaultRate:   defaultRate,
	}
}

// ApplyRequest 申请成为推广员请求
type ApplyRequest struct {
	UserID int64   `json:"user_id"`
	Code   *string `json:"code,omitempty"` // 自定义推广码，可选
}

// Apply 申请成为推广员
// 推广码未指定时自动生成，申请后进入待审核状态
func (s *AffiliateService) Apply(ctx context.Context, req *ApplyRequest) (*models.Affiliate, error) {
	if _, err := s.userRepo.GetByID(ctx, req.UserID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound.WithMessage("用户不存在")
		}
		return nil, err
	}

	if _, err := s.affiliateRepo.GetByUserID(ctx, req.UserID); err == nil {
		return nil, errors.ErrAffiliateExists
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var code string
	if req.Code != nil && *req.Code != "" {
		if !utils.ValidateReferralCode(*req.Code) {
			return nil, errors.ErrInvalidParams.WithMessage("推广码格式不正确")
		}
		exists, err := s.affiliateRepo.ExistsCode(ctx, *req.Code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.ErrAlreadyExists.WithMessage("推广码已被占用")
		}
		code = *req.Code
	} else {
		generated, err := s.generateCode(ctx)
		if err != nil {
			return nil, err
		}
		code = generated
	}

	affiliate := &models.Affiliate{
		UserID:         req.UserID,
		Code:           code,
		CommissionRate: s.defaultRate,
		Status:         models.AffiliateStatusPending,
	}
	if err := s.affiliateRepo.Create(ctx, affiliate); err != nil {
		return nil, err
	}
	return affiliate, nil
}

// generateCode 生成唯一推广码
func (s *AffiliateService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeMaxAttempts; i++ {
		code := utils.GenerateReferralCode(codeLength)
		exists, err := s.affiliateRepo.ExistsCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.ErrCodeGenerateFailed
}

// Approve 审核通过推广员申请
func (s *AffiliateService) Approve(ctx context.Context, id, adminID int64) error {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAffiliateNotFound
		}
		return err
	}
	if affiliate.Status != models.AffiliateStatusPending {
		return errors.ErrAffiliateStatus.WithMessage("该申请已处理")
	}
	return s.affiliateRepo.Approve(ctx, id, adminID)
}

// Reject 拒绝推广员申请
func (s *AffiliateService) Reject(ctx context.Context, id, adminID int64) error {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAffiliateNotFound
		}
		return err
	}
	if affiliate.Status != models.AffiliateStatusPending {
		return errors.ErrAffiliateStatus.WithMessage("该申请已处理")
	}
	return s.affiliateRepo.Reject(ctx, id, adminID)
}

// Suspend 停用推广员
func (s *AffiliateService) Suspend(ctx context.Context, id int64) error {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAffiliateNotFound
		}
		return err
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return errors.ErrAffiliateStatus
	}
	return s.affiliateRepo.UpdateStatus(ctx, id, models.AffiliateStatusSuspended)
}

// Resume 恢复已停用的推广员
func (s *AffiliateService) Resume(ctx context.Context, id int64) error {
	affiliate, err := s.affiliateRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAffiliateNotFound
		}
		return err
	}
	if affiliate.Status != models.AffiliateStatusSuspended {
		return errors.ErrAffiliateStatus
	}
	return s.affiliateRepo.UpdateStatus(ctx, id, models.AffiliateStatusActive)
}

// UpdateRate 调整推广员佣金比例
// 只影响之后创建的归因记录，已有记录的快照比例与金额不变
func (s *AffiliateService) UpdateRate(ctx context.Context, id int64, ratePercent float64) error {
	if err := ValidateRate(ratePercent); err != nil {
		return err
	}
	if _, err := s.affiliateRepo.GetByID(ctx, id); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrAffiliateNotFound
		}
		return err
	}
	return s.affiliateRepo.UpdateCommissionRate(ctx, id, ratePercent)
}

// UpdatePayout 更新提现方式与收款账号
// 收款账号 AES 加密存储
func (s *AffiliateService) UpdatePayout(ctx context.Context, id int64, method, account string) error {
	if !isValidPayoutMethod(method) {
		return errors.ErrInvalidPayoutMethod
	}
	if account == "" {
		return errors.ErrInvalidParams.WithMessage("收款账号不能为空")
	}
	encrypted, err := s.aes.Encrypt(account)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	return s.affiliateRepo.UpdatePayout(ctx, id, method, encrypted)
}

// GetByUserID 获取用户的推广员档案
func (s *AffiliateService) GetByUserID(ctx context.Context, userID int64) (*models.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByUserID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrAffiliateNotFound.WithMessage("您还不是推广员")
		}
		return nil, err
	}
	return affiliate, nil
}

// GetByID 根据 ID 获取推广员（含用户信息）
func (s *AffiliateService) GetByID(ctx context.Context, id int64) (*models.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByIDWithUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// GetByCode 根据推广码获取推广员
func (s *AffiliateService) GetByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	affiliate, err := s.affiliateRepo.GetByCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnknownAffiliate
		}
		return nil, err
	}
	return affiliate, nil
}

// List 获取推广员列表
func (s *AffiliateService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Affiliate, int64, error) {
	return s.affiliateRepo.List(ctx, offset, limit, filters)
}

// MaskedPayoutAccount 解密并脱敏收款账号用于展示
func (s *AffiliateService) MaskedPayoutAccount(affiliate *models.Affiliate) string {
	if affiliate.PayoutAccount == nil || *affiliate.PayoutAccount == "" {
		return ""
	}
	plain, err := s.aes.Decrypt(*affiliate.PayoutAccount)
	if err != nil {
		return ""
	}
	return crypto.MaskBankCard(plain)
}

func isValidPayoutMethod(method string) bool {
	switch method {
	case models.PayoutMethodWechat, models.PayoutMethodAlipay, models.PayoutMethodBank:
		return true
	}
	return false
}
