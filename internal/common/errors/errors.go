// Package errors 定义业务错误码和错误处理
package errors

import (
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按错误码比较
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrOperationFailed = New(1009, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = New(2003, "权限不足")
	ErrAccountDisabled  = New(2004, "账号已禁用")
	ErrPasswordError    = New(2005, "密码错误")
)

// 推广员错误码 (3000-3999)
var (
	ErrAffiliateNotFound  = New(3000, "推广员不存在")
	ErrAffiliateExists    = New(3001, "您已经是推广员了")
	ErrUnknownAffiliate   = New(3002, "推广码无效")
	ErrAffiliateNotActive = New(3003, "推广员尚未通过审核或已停用")
	ErrCodeGenerateFailed = New(3004, "生成推广码失败，请重试")
	ErrAffiliateStatus    = New(3005, "推广员状态异常")
	ErrInvalidRate        = New(3006, "无效的佣金比例")
)

// 归因/佣金错误码 (4000-4999)
var (
	ErrReferralNotFound   = New(4000, "归因记录不存在")
	ErrInvalidTransition  = New(4001, "非法的状态流转")
	ErrInvalidOrderAmount = New(4002, "订单金额无效")
	ErrInvalidConversion  = New(4003, "无效的转化类型")
)

// 提现错误码 (5000-5999)
var (
	ErrWithdrawalNotFound  = New(5000, "提现记录不存在")
	ErrBelowMinimum        = New(5001, "提现金额低于最低限额")
	ErrInsufficientBalance = New(5002, "可提现余额不足")
	ErrInvalidPayoutMethod = New(5003, "无效的提现方式")
	ErrWithdrawalStatus    = New(5004, "提现状态异常")
	ErrTooManyPending      = New(5005, "待处理的提现申请过多，请等待处理后再申请")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
