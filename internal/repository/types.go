package repository

import "time"

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	CategoryID uint
	OnlyActive bool
}

// PaymentListFilter 查询支付列表的过滤条件
type PaymentListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	CartID      uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// StockLevel 商品库存水位
type StockLevel struct {
	ProductID uint
	Name      string
	Stock     int
}
