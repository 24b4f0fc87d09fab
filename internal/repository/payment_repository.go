package repository

import (
	"errors"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付记录数据访问接口
// 支付记录为追加写审计数据，不提供更新操作。
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByCartID(cartID uint) (*models.Payment, error)
	ExistsSucceededByCartID(cartID uint) (bool, error)
	List(filter PaymentListFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByCartID 根据购物车 ID 获取支付记录
func (r *GormPaymentRepository) GetByCartID(cartID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("cart_id = ?", cartID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ExistsSucceededByCartID 判断购物车是否已有成功支付记录
func (r *GormPaymentRepository) ExistsSucceededByCartID(cartID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Payment{}).
		Where("cart_id = ? AND status = ?", cartID, constants.PaymentStatusSucceeded).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 查询支付记录列表。
// 关联 carts 后 payments 字段一律带表名限定，避免同名列歧义。
func (r *GormPaymentRepository) List(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})
	if filter.UserID > 0 {
		query = query.Joins("JOIN carts ON carts.id = payments.cart_id").
			Where("carts.user_id = ?", filter.UserID)
	}
	if filter.CartID > 0 {
		query = query.Where("payments.cart_id = ?", filter.CartID)
	}
	if filter.Status != "" {
		query = query.Where("payments.status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("payments.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("payments.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var payments []models.Payment
	if err := query.Order("payments.id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
