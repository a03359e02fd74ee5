// Package notify 推广员通知服务
// 把账本里的状态变化翻译成对推广员的短信通知。
// 通知是尽力而为的：任何失败只记日志，绝不影响账本本身
package notify

import (
	"context"

	"github.com/dumeirei/affiliate-backend/internal/common/logger"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/pkg/sms"
)

// 提现状态的通知文案
var withdrawalStatusText = map[string]string{
	"pending":    "已受理",
	"processing": "打款中",
	"completed":  "已到账",
	"failed":     "打款失败",
}

// SMSNotifier 短信通知器
type SMSNotifier struct {
	sender        sms.Sender
	affiliateRepo *repository.AffiliateRepository
	userRepo      *repository.UserRepository
}

// NewSMSNotifier 创建短信通知器
func NewSMSNotifier(sender sms.Sender, affiliateRepo *repository.AffiliateRepository, userRepo *repository.UserRepository) *SMSNotifier {
	return &SMSNotifier{
		sender:        sender,
		affiliateRepo: affiliateRepo,
		userRepo:      userRepo,
	}
}

// NotifyReferralApproved 佣金审核通过通知
func (n *SMSNotifier) NotifyReferralApproved(ctx context.Context, affiliateID int64, orderNo string, amount float64) {
	phone, ok := n.lookupPhone(ctx, affiliateID)
	if !ok {
		return
	}

	err := n.sender.SendNotification(ctx, phone, sms.TemplateCodeCommission, map[string]string{
		"order_no": orderNo,
		"amount":   utils.FormatMoney(amount),
	})
	if err != nil {
		logger.GetLogger().Warn("佣金通知发送失败",
			logger.AffiliateID(affiliateID),
			logger.Err(err),
		)
	}
}

// NotifyWithdrawalStatus 提现状态变更通知
func (n *SMSNotifier) NotifyWithdrawalStatus(ctx context.Context, affiliateID int64, withdrawalNo, status string) {
	phone, ok := n.lookupPhone(ctx, affiliateID)
	if !ok {
		return
	}

	text, ok := withdrawalStatusText[status]
	if !ok {
		text = status
	}

	err := n.sender.SendNotification(ctx, phone, sms.TemplateCodeWithdrawal, map[string]string{
		"withdrawal_no": withdrawalNo,
		"status":        text,
	})
	if err != nil {
		logger.GetLogger().Warn("提现通知发送失败",
			logger.AffiliateID(affiliateID),
			logger.Err(err),
		)
	}
}

// lookupPhone 查找推广员绑定的手机号，未绑定时放弃通知
func (n *SMSNotifier) lookupPhone(ctx context.Context, affiliateID int64) (string, bool) {
	affiliate, err := n.affiliateRepo.GetByID(ctx, affiliateID)
	if err != nil {
		logger.GetLogger().Warn("通知目标查找失败",
			logger.AffiliateID(affiliateID),
			logger.Err(err),
		)
		return "", false
	}

	user, err := n.userRepo.GetByID(ctx, affiliate.UserID)
	if err != nil {
		logger.GetLogger().Warn("通知用户查找失败",
			logger.AffiliateID(affiliateID),
			logger.Err(err),
		)
		return "", false
	}
	if user.Phone == nil || *user.Phone == "" {
		return "", false
	}
	return *user.Phone, true
}
