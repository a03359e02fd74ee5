package affiliate

import (
	"context"
)

// Authorizer 能力校验接口
// 归因审核与提现处理是仅管理员可执行的操作，账本本身不维护角色模型，
// 只通过该接口向外询问调用者是否具备对应能力
type Authorizer interface {
	// CanReviewReferral 调用者是否可以审核归因记录
	CanReviewReferral(ctx context.Context, actorID int64) error
	// CanProcessWithdrawal 调用者是否可以处理提现
	CanProcessWithdrawal(ctx context.Context, actorID int64) error
	// OwnsAffiliate 调用者是否为指定推广员的归属用户
	OwnsAffiliate(ctx context.Context, actorID, affiliateID int64) error
}

// Notifier 通知接口
// 通知失败只记日志不回滚账本事务
type Notifier interface {
	// NotifyReferralApproved 佣金审核通过通知
	NotifyReferralApproved(ctx context.Context, affiliateID int64, orderNo string, amount float64)
	// NotifyWithdrawalStatus 提现状态变更通知
	NotifyWithdrawalStatus(ctx context.Context, affiliateID int64, withdrawalNo, status string)
}

// NopNotifier 空通知实现
type NopNotifier struct{}

// NotifyReferralApproved 空实现
func (NopNotifier) NotifyReferralApproved(ctx context.Context, affiliateID int64, orderNo string, amount float64) {
}

// NotifyWithdrawalStatus 空实现
func (NopNotifier) NotifyWithdrawalStatus(ctx context.Context, affiliateID int64, withdrawalNo, status string) {
}
