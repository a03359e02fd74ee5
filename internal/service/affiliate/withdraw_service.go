package affiliate

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/models"
	"github.com/dumeirei/affiliate-backend/internal/repository"
)

// 提现默认配置
const (
	DefaultMinWithdrawAmount  = 10.0
	DefaultMaxPendingWithdraw = 5
	withdrawalNoPrefix        = "W"
)

// legalWithdrawalTransitions 提现状态机的合法边
// pending→processing|failed，processing→completed|failed
var legalWithdrawalTransitions = map[string][]string{
	models.WithdrawalStatusPending:    {models.WithdrawalStatusProcessing, models.WithdrawalStatusFailed},
	models.WithdrawalStatusProcessing: {models.WithdrawalStatusCompleted, models.WithdrawalStatusFailed},
}

// WithdrawService 提现处理器
// 提现状态的唯一写入方，也是推广员收益唯一允许的扣减路径。
// 余额校验把在途（pending/processing）提现预留在可用余额之外，
// 两个并发申请不可能同时通过对同一笔资金的校验
type WithdrawService struct {
	withdrawalRepo *repository.WithdrawalRepository
	affiliateRepo  *repository.AffiliateRepository
	stats          *StatsService
	authz          Authorizer
	notifier       Notifier
	aes            *crypto.AES
	db             *gorm.DB
	minAmount      float64
	maxPending     int
}

// NewWithdrawService 创建提现处理器
func NewWithdrawService(
	withdrawalRepo *repository.WithdrawalRepository,
	affiliateRepo *repository.AffiliateRepository,
	stats *StatsService,
	authz Authorizer,
	notifier Notifier,
	aes *crypto.AES,
	db *gorm.DB,
) *WithdrawService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &WithdrawService{
		withdrawalRepo: withdrawalRepo,
		affiliateRepo:  affiliateRepo,
		stats:          stats,
		authz:          authz,
		notifier:       notifier,
		aes:            aes,
		db:             db,
		minAmount:      DefaultMinWithdrawAmount,
		maxPending:     DefaultMaxPendingWithdraw,
	}
}

// SetConfig 设置提现限额配置
func (s *WithdrawService) SetConfig(minAmount float64, maxPending int) {
	if minAmount > 0 {
		s.minAmount = minAmount
	}
	if maxPending > 0 {
		s.maxPending = maxPending
	}
}

// ApplyWithdrawRequest 提现申请
type ApplyWithdrawRequest struct {
	AffiliateID   int64   `json:"-"`
	Amount        float64 `json:"amount" binding:"required"`
	PayoutMethod  string  `json:"payout_method" binding:"required"`
	PayoutAccount string  `json:"payout_account" binding:"required"`
}

// Apply 申请提现
// 可用余额 = total_earnings − 在途提现金额；校验与插入在持有推广员行锁的
// 同一事务内完成，同一推广员的并发申请被串行化
func (s *WithdrawService) Apply(ctx context.Context, req *ApplyWithdrawRequest) (*models.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, errors.ErrInvalidParams.WithMessage("提现金额无效")
	}
	if !isValidPayoutMethod(req.PayoutMethod) {
		return nil, errors.ErrInvalidPayoutMethod
	}
	if req.Amount < s.minAmount {
		return nil, errors.ErrBelowMinimum.WithMessage(
			fmt.Sprintf("最低提现金额为 %s 元", utils.FormatMoney(s.minAmount)))
	}
	if req.PayoutAccount == "" {
		return nil, errors.ErrInvalidParams.WithMessage("收款账号不能为空")
	}

	encrypted, err := s.aes.Encrypt(req.PayoutAccount)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	withdrawal := &models.Withdrawal{
		WithdrawalNo:  utils.GenerateWithdrawalNo(withdrawalNoPrefix),
		AffiliateID:   req.AffiliateID,
		Amount:        req.Amount,
		PayoutMethod:  req.PayoutMethod,
		PayoutAccount: encrypted,
		Status:        models.WithdrawalStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var affiliate models.Affiliate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&affiliate, req.AffiliateID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrAffiliateNotFound
			}
			return err
		}
		if affiliate.Status != models.AffiliateStatusActive {
			return errors.ErrAffiliateNotActive
		}

		var inFlightCount int64
		if err := tx.Model(&models.Withdrawal{}).
			Where("affiliate_id = ? AND status IN ?", req.AffiliateID, []string{
				models.WithdrawalStatusPending,
				models.WithdrawalStatusProcessing,
			}).
			Count(&inFlightCount).Error; err != nil {
			return err
		}
		if int(inFlightCount) >= s.maxPending {
			return errors.ErrTooManyPending
		}

		var inFlightAmount float64
		if err := tx.Model(&models.Withdrawal{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("affiliate_id = ? AND status IN ?", req.AffiliateID, []string{
				models.WithdrawalStatusPending,
				models.WithdrawalStatusProcessing,
			}).
			Scan(&inFlightAmount).Error; err != nil {
			return err
		}

		available := utils.Round2(affiliate.TotalEarnings - inFlightAmount)
		if req.Amount > available {
			return errors.ErrInsufficientBalance.WithMessage(
				fmt.Sprintf("可提现余额不足，当前可提现 %s 元", utils.FormatMoney(available)))
		}

		return tx.Create(withdrawal).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.GetMetrics().RecordWithdrawal(models.WithdrawalStatusPending)
	s.notifyStatus(withdrawal.AffiliateID, withdrawal.WithdrawalNo, withdrawal.Status)

	return withdrawal, nil
}

// ProcessRequest 提现处理请求
type ProcessRequest struct {
	WithdrawalID   int64   `json:"withdrawal_id"`
	NewStatus      string  `json:"new_status" binding:"required"`
	TransactionRef *string `json:"transaction_ref,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	ActorID        int64   `json:"-"`
}

// Process 推进提现状态
// 仅管理员可调用。完成时在持有推广员行锁的同一事务内写状态并重算统计
// （重算扣减已完成提现），对终态提现的再次完成返回 InvalidTransition，
// 这正是防止重复打款的机制本身
func (s *WithdrawService) Process(ctx context.Context, req *ProcessRequest) (*models.Withdrawal, error) {
	if err := s.authz.CanProcessWithdrawal(ctx, req.ActorID); err != nil {
		return nil, err
	}
	if !isWithdrawalStatus(req.NewStatus) {
		return nil, errors.ErrInvalidParams.WithMessage("无效的目标状态")
	}

	var withdrawal models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁推广员行再锁提现行，保证余额不变式跨行一致
		if err := tx.First(&withdrawal, req.WithdrawalID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrWithdrawalNotFound
			}
			return err
		}

		var affiliate models.Affiliate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&affiliate, withdrawal.AffiliateID).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdrawal, req.WithdrawalID).Error; err != nil {
			return err
		}

		if !isLegalWithdrawalTransition(withdrawal.Status, req.NewStatus) {
			return errors.ErrInvalidTransition
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":      req.NewStatus,
			"operator_id": req.ActorID,
		}
		switch req.NewStatus {
		case models.WithdrawalStatusProcessing:
			updates["processed_at"] = now
		case models.WithdrawalStatusCompleted:
			if req.TransactionRef == nil || *req.TransactionRef == "" {
				return errors.ErrInvalidParams.WithMessage("完成提现必须提供交易流水号")
			}
			updates["transaction_ref"] = *req.TransactionRef
			updates["completed_at"] = now
		case models.WithdrawalStatusFailed:
			updates["processed_at"] = now
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}

		// 状态条件兜底：并发竞争者在锁释放后观察到的是已变更的状态
		result := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", withdrawal.ID, withdrawal.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.ErrInvalidTransition
		}

		withdrawal.Status = req.NewStatus
		withdrawal.OperatorID = &req.ActorID
		if req.TransactionRef != nil {
			withdrawal.TransactionRef = req.TransactionRef
		}
		if req.Notes != nil {
			withdrawal.Notes = req.Notes
		}
		switch req.NewStatus {
		case models.WithdrawalStatusProcessing, models.WithdrawalStatusFailed:
			withdrawal.ProcessedAt = &now
		case models.WithdrawalStatusCompleted:
			withdrawal.CompletedAt = &now
		}

		// 完成扣减余额；失败只是释放预留，余额不变但统计重算无害
		return s.stats.RecomputeTx(tx, withdrawal.AffiliateID)
	})
	if err != nil {
		return nil, err
	}

	metrics.GetMetrics().RecordWithdrawal(withdrawal.Status)
	s.notifyStatus(withdrawal.AffiliateID, withdrawal.WithdrawalNo, withdrawal.Status)

	return &withdrawal, nil
}

// notifyStatus 提现状态变更通知，失败只记日志
func (s *WithdrawService) notifyStatus(affiliateID int64, withdrawalNo, status string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.GetLogger().Error("提现通知发送异常",
					logger.WithdrawalNo(withdrawalNo),
				)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.notifier.NotifyWithdrawalStatus(ctx, affiliateID, withdrawalNo, status)
	}()
}

// GetByID 获取提现详情
func (s *WithdrawService) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.GetByIDWithRelations(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrWithdrawalNotFound
		}
		return nil, err
	}
	return withdrawal, nil
}

// ListByAffiliate 获取推广员的提现记录
func (s *WithdrawService) ListByAffiliate(ctx context.Context, affiliateID int64, offset, limit int) ([]*models.Withdrawal, int64, error) {
	return s.withdrawalRepo.ListByAffiliate(ctx, affiliateID, offset, limit)
}

// List 获取提现列表
func (s *WithdrawService) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Withdrawal, int64, error) {
	return s.withdrawalRepo.List(ctx, offset, limit, filters)
}

// GetPendingList 获取待处理提现队列
func (s *WithdrawService) GetPendingList(ctx context.Context, offset, limit int) ([]*models.Withdrawal, int64, error) {
	return s.withdrawalRepo.GetPendingList(ctx, offset, limit)
}

// GetConfig 获取提现配置
func (s *WithdrawService) GetConfig() map[string]interface{} {
	return map[string]interface{}{
		"min_amount":      s.minAmount,
		"max_pending":     s.maxPending,
		"support_methods": []string{models.PayoutMethodWechat, models.PayoutMethodAlipay, models.PayoutMethodBank},
	}
}

func isWithdrawalStatus(status string) bool {
	switch status {
	case models.WithdrawalStatusPending, models.WithdrawalStatusProcessing,
		models.WithdrawalStatusCompleted, models.WithdrawalStatusFailed:
		return true
	}
	return false
}

func isLegalWithdrawalTransition(from, to string) bool {
	for _, allowed := range legalWithdrawalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
