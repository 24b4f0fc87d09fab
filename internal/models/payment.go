package models

import (
	"time"
)

// Payment 支付记录（追加写审计记录，创建后不再更新）
type Payment struct {
	ID         uint      `gorm:"primarykey" json:"id"`                      // 主键
	CartID     uint      `gorm:"uniqueIndex;not null" json:"cart_id"`       // 购物车ID（每车至多一条）
	ChargeID   string    `gorm:"index" json:"charge_id"`                    // 网关扣款流水号
	CustomerID string    `json:"customer_id"`                               // 网关客户ID
	Amount     Money     `gorm:"type:decimal(20,2);not null" json:"amount"` // 扣款金额（基准币种）
	Currency   string    `gorm:"not null" json:"currency"`                  // 币种
	Status     string    `gorm:"index;not null" json:"status"`              // 支付状态
	ReceiptURL string    `gorm:"type:text" json:"receipt_url"`              // 回执链接
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                   // 创建时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
