package models

import (
	"time"

	"gorm.io/gorm"
)

// LineItem 购物车条目表
// 说明：不保留加购时的价格快照，结算金额以商品当前价格为准。
type LineItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`                                         // 主键
	CartID    uint           `gorm:"not null;uniqueIndex:idx_line_cart_product" json:"cart_id"`    // 购物车ID
	ProductID uint           `gorm:"not null;uniqueIndex:idx_line_cart_product" json:"product_id"` // 商品ID
	Quantity  int            `gorm:"not null" json:"quantity"`                                     // 数量（正整数）
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (LineItem) TableName() string {
	return "line_items"
}
