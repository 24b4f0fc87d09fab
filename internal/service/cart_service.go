package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

// UpsertLineItemInput 购物车条目更新输入
type UpsertLineItemInput struct {
	UserID    uint
	ProductID uint
	Quantity  int
}

// CartService 购物车服务。
// 同一购物车的写操作经 lockFor 串行执行，结算期间条目不会被并发改写。
type CartService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	paymentRepo  repository.PaymentRepository
	baseCurrency string

	cartLocks sync.Map
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, paymentRepo repository.PaymentRepository, baseCurrency string) *CartService {
	if baseCurrency == "" {
		baseCurrency = constants.DefaultBaseCurrency
	}
	return &CartService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		baseCurrency: baseCurrency,
	}
}

// GetOrCreateOpenCart 获取用户当前未支付购物车，不存在时创建空车。
// 每个用户同一时刻至多一辆未支付购物车。
func (s *CartService) GetOrCreateOpenCart(userID uint) (*models.Cart, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	cart, err := s.cartRepo.GetOpenByUser(userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{
		UserID:   userID,
		Status:   constants.CartStatusPending,
		Currency: s.baseCurrency,
	}
	if err := s.cartRepo.Create(cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpsertLineItem 写入购物车条目。数量为 0 删除条目，负数拒绝。
// 写入后重算购物车合计并返回最新购物车。
func (s *CartService) UpsertLineItem(input UpsertLineItemInput) (*models.Cart, error) {
	if input.UserID == 0 || input.ProductID == 0 {
		return nil, fmt.Errorf("%w: user id and product id are required", ErrInvalidInput)
	}
	if input.Quantity < 0 {
		return nil, ErrQuantityInvalid
	}

	cart, err := s.GetOrCreateOpenCart(input.UserID)
	if err != nil {
		return nil, err
	}

	lock := s.lockFor(cart.ID)
	lock.Lock()
	defer lock.Unlock()

	paid, err := s.IsPaid(cart.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrCartAlreadyPaid
	}

	if input.Quantity == 0 {
		if err := s.cartRepo.DeleteLineItem(cart.ID, input.ProductID); err != nil {
			return nil, err
		}
		return s.refreshCart(cart.ID)
	}

	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotAvailable
	}

	item := &models.LineItem{
		CartID:    cart.ID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		UpdatedAt: time.Now(),
	}
	if err := s.cartRepo.UpsertLineItem(item); err != nil {
		return nil, err
	}
	return s.refreshCart(cart.ID)
}

// RemoveLineItem 删除购物车条目并重算合计
func (s *CartService) RemoveLineItem(userID, productID uint) (*models.Cart, error) {
	return s.UpsertLineItem(UpsertLineItemInput{UserID: userID, ProductID: productID, Quantity: 0})
}

// RecomputeTotal 按商品实时单价重算合计并落库。
// 购物车条目不做价格快照，合计始终反映当前标价。
func (s *CartService) RecomputeTotal(cart *models.Cart) (models.Money, error) {
	if cart == nil {
		return models.Money{}, ErrCartNotFound
	}
	total := decimal.Zero
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			continue
		}
		product := item.Product
		if product == nil || product.ID == 0 {
			p, err := s.productRepo.GetByID(item.ProductID)
			if err != nil {
				return models.Money{}, err
			}
			product = p
		}
		if product == nil {
			continue
		}
		line := product.PriceAmount.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	amount := models.NewMoneyFromDecimal(total)
	if err := s.cartRepo.UpdateTotal(cart.ID, amount); err != nil {
		return models.Money{}, err
	}
	cart.TotalAmount = amount
	return amount, nil
}

// IsPaid 判断购物车是否已支付成功
func (s *CartService) IsPaid(cartID uint) (bool, error) {
	if cartID == 0 {
		return false, ErrCartNotFound
	}
	return s.paymentRepo.ExistsSucceededByCartID(cartID)
}

// RecordPayment 在同一事务内写入支付记录并翻转购物车状态。
// 支付记录为追加写，购物车状态仅允许 pending 到 succeeded 的单向迁移。
func (s *CartService) RecordPayment(record *models.Payment) error {
	if record == nil || record.CartID == 0 {
		return fmt.Errorf("%w: payment record is required", ErrInvalidInput)
	}
	return models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		affected, err := s.cartRepo.WithTx(tx).MarkStatus(record.CartID, constants.CartStatusPending, constants.CartStatusSucceeded)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrCartAlreadyPaid
		}
		return nil
	})
}

// PaymentHistory 分页查询用户的支付记录
func (s *CartService) PaymentHistory(userID uint, page, pageSize int) ([]models.Payment, int64, error) {
	if userID == 0 {
		return nil, 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.paymentRepo.List(repository.PaymentListFilter{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	})
}

// lockFor 返回指定购物车的串行化互斥锁，结算编排共用同一把锁。
func (s *CartService) lockFor(cartID uint) *sync.Mutex {
	actual, _ := s.cartLocks.LoadOrStore(cartID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (s *CartService) refreshCart(cartID uint) (*models.Cart, error) {
	cart, err := s.cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if _, err := s.RecomputeTotal(cart); err != nil {
		return nil, err
	}
	return cart, nil
}
