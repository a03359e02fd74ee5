package models

import (
	"time"
)

// Affiliate 推广员模型
// 推广员的派生统计字段（total_earnings/total_referrals/total_visits）
// 永远可以从 Referral/Visit/Withdrawal 记录重算得出，统计服务是唯一写入方
type Affiliate struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64      `gorm:"uniqueIndex;not null" json:"user_id"`
	Code           string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	CommissionRate float64    `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalEarnings  float64    `gorm:"type:decimal(12,2);not null;default:0" json:"total_earnings"`
	TotalReferrals int64      `gorm:"not null;default:0" json:"total_referrals"`
	TotalVisits    int64      `gorm:"not null;default:0" json:"total_visits"`
	PayoutMethod   *string    `gorm:"type:varchar(20)" json:"payout_method,omitempty"`
	PayoutAccount  *string    `gorm:"type:varchar(255)" json:"-"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	ApprovedBy     *int64     `json:"approved_by,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 表名
func (Affiliate) TableName() string {
	return "affiliates"
}

// AffiliateStatus 推广员状态
const (
	AffiliateStatusPending   = "pending"   // 待审核
	AffiliateStatusActive    = "active"    // 正常
	AffiliateStatusSuspended = "suspended" // 已停用
	AffiliateStatusRejected  = "rejected"  // 已拒绝
)

// Visit 推广链接访问记录
// 仅追加写入，converted 标记在归因成功时设置一次，其余字段不再变更
type Visit struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AffiliateID *int64    `gorm:"index" json:"affiliate_id,omitempty"`
	Code        string    `gorm:"type:varchar(20);index;not null" json:"code"`
	VisitorKey  string    `gorm:"type:varchar(64);index" json:"visitor_key"`
	LandingPage string    `gorm:"type:varchar(512)" json:"landing_page"`
	Referrer    string    `gorm:"type:varchar(512)" json:"referrer"`
	Device      string    `gorm:"type:varchar(20)" json:"device"`
	Browser     string    `gorm:"type:varchar(50)" json:"browser"`
	Country     string    `gorm:"type:varchar(2)" json:"country"`
	Converted   bool      `gorm:"not null;default:false" json:"converted"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Visit) TableName() string {
	return "affiliate_visits"
}

// DeviceType 访问设备类型
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// Referral 归因记录
// (affiliate_id, order_no) 唯一，归因幂等依赖该约束兜底
// commission_rate/commission_amount 在创建时冻结，之后只允许修改 status 和 review_notes
type Referral struct {
	ID               int64      `gorm:"primaryKey;autoIncrement;" json:"id"`
	AffiliateID      int64      `gorm:"uniqueIndex:uk_affiliate_order;not null" json:"affiliate_id"`
	OrderNo          string     `gorm:"type:varchar(64);uniqueIndex:uk_affiliate_order;not null" json:"order_no"`
	OrderAmount      float64    `gorm:"type:decimal(12,2);not null" json:"order_amount"`
	CommissionRate   float64    `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	CommissionAmount float64    `gorm:"type:decimal(12,2);not null" json:"commission_amount"`
	ConversionType   string     `gorm:"type:varchar(20);not null" json:"conversion_type"`
	Status           string     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	ReviewNotes      *string    `gorm:"type:varchar(512)" json:"review_notes,omitempty"`
	ReviewedBy       *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

// TableName 表名
func (Referral) TableName() string {
	return "referrals"
}

// ReferralStatus 归因记录状态
const (
	ReferralStatusPending  = "pending"  // 待审核
	ReferralStatusApproved = "approved" // 已通过
	ReferralStatusRejected = "rejected" // 已拒绝
	ReferralStatusPaid     = "paid"     // 已结算
)

// ConversionType 转化类型
const (
	ConversionTypeSignup       = "signup"       // 注册转化
	ConversionTypePurchase     = "purchase"     // 购买转化
	ConversionTypeSubscription = "subscription" // 订阅转化
)

// Withdrawal 提现记录
type Withdrawal struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	AffiliateID    int64      `gorm:"index;not null" json:"affiliate_id"`
	Amount         float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	PayoutMethod   string     `gorm:"type:varchar(20);not null" json:"payout_method"`
	PayoutAccount  string     `gorm:"type:varchar(255)" json:"-"`
	Status         string     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	TransactionRef *string    `gorm:"type:varchar(64)" json:"transaction_ref,omitempty"`
	Notes          *string    `gorm:"type:varchar(512)" json:"notes,omitempty"`
	OperatorID     *int64     `json:"operator_id,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
	Operator  *Admin     `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
}

// TableName 表名
func (Withdrawal) TableName() string {
	return "withdrawals"
}

// WithdrawalStatus 提现状态
const (
	WithdrawalStatusPending    = "pending"    // 待处理
	WithdrawalStatusProcessing = "processing" // 打款中
	WithdrawalStatusCompleted  = "completed"  // 已完成
	WithdrawalStatusFailed     = "failed"     // 已失败
)

// PayoutMethod 提现方式
const (
	PayoutMethodWechat = "wechat" // 微信
	PayoutMethodAlipay = "alipay" // 支付宝
	PayoutMethodBank   = "bank"   // 银行卡
)
