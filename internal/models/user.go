// Package models 定义数据模型
package models

import (
	"time"
)

// User 用户模型
// 推广员归属的账户主体，身份信息由外部账户系统维护，这里只保留引擎需要的字段
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone     *string   `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	Email     *string   `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	Nickname  string    `gorm:"type:varchar(50);not null;default:''" json:"nickname"`
	Status    int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserStatus 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusActive   = 1 // 正常
)
