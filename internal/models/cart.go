package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart 购物车表
type Cart struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                      // 主键
	UserID      uint           `gorm:"index;not null" json:"user_id"`                             // 用户ID
	Status      string         `gorm:"index;not null;default:'pending'" json:"status"`            // 支付状态（pending/succeeded/failed）
	Currency    string         `gorm:"not null" json:"currency"`                                  // 基准币种
	TotalAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 合计金额（派生缓存，随条目变更重算）
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	// 关联：购物车独占其条目，随购物车一并删除；支付记录至多一条
	Items   []LineItem `gorm:"foreignKey:CartID" json:"items,omitempty"`   // 购物车条目
	Payment *Payment   `gorm:"foreignKey:CartID" json:"payment,omitempty"` // 支付记录
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}
