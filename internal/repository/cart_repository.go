package repository

import (
	"errors"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.Cart, error)
	GetOpenByUser(userID uint) (*models.Cart, error)
	GetLatestByUser(userID uint) (*models.Cart, error)
	Create(cart *models.Cart) error
	UpsertLineItem(item *models.LineItem) error
	DeleteLineItem(cartID, productID uint) error
	UpdateTotal(cartID uint, total models.Money) error
	MarkStatus(cartID uint, fromStatus, toStatus string) (int64, error)
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// GetByID 根据 ID 获取购物车（含条目、商品与支付记录）
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	var cart models.Cart
	query := r.db.Preload("Items").Preload("Items.Product").Preload("Payment")
	if err := query.First(&cart, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetOpenByUser 获取用户当前未支付的购物车
func (r *GormCartRepository) GetOpenByUser(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.Preload("Items").Preload("Items.Product").
		Where("user_id = ? AND status = ?", userID, constants.CartStatusPending).
		Order("id desc").
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetLatestByUser 获取用户最近一辆购物车，不限支付状态
func (r *GormCartRepository) GetLatestByUser(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.Preload("Items").Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("id desc").
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	return r.db.Create(cart).Error
}

// UpsertLineItem 新增或覆盖购物车条目
func (r *GormCartRepository) UpsertLineItem(item *models.LineItem) error {
	if item == nil {
		return nil
	}
	var existing models.LineItem
	err := r.db.Where("cart_id = ? AND product_id = ?", item.CartID, item.ProductID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(item).Error
	}
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"quantity":   item.Quantity,
		"updated_at": item.UpdatedAt,
	}
	return r.db.Model(&existing).Updates(updates).Error
}

// DeleteLineItem 删除购物车条目。
// 物理删除，软删除残留会占用 (cart_id, product_id) 唯一索引，阻碍重新加购。
func (r *GormCartRepository) DeleteLineItem(cartID, productID uint) error {
	return r.db.Unscoped().Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.LineItem{}).Error
}

// UpdateTotal 写入购物车合计金额
func (r *GormCartRepository) UpdateTotal(cartID uint, total models.Money) error {
	return r.db.Model(&models.Cart{}).Where("id = ?", cartID).Update("total_amount", total).Error
}

// MarkStatus 条件更新购物车状态（仅当当前状态匹配时生效，返回影响行数）
func (r *GormCartRepository) MarkStatus(cartID uint, fromStatus, toStatus string) (int64, error) {
	if cartID == 0 {
		return 0, errors.New("invalid cart id")
	}
	result := r.db.Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
