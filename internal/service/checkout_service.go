package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/payment"
	"github.com/lumen-shop/internal/queue"
	"github.com/lumen-shop/internal/repository"
)

// nowFunc 便于测试固定时间
var nowFunc = time.Now

// CheckoutState 结算流程阶段
type CheckoutState string

const (
	StateValidating     CheckoutState = "validating"
	StateReservingStock CheckoutState = "reserving_stock"
	StateCharging       CheckoutState = "charging"
	StatePersisting     CheckoutState = "persisting"
	StateCompleted      CheckoutState = "completed"
)

// CheckoutInput 结算输入
type CheckoutInput struct {
	UserID uint
	Card   payment.Card
}

// CheckoutResult 结算结果
type CheckoutResult struct {
	CartID      uint         `json:"cart_id"`
	ChargeID    string       `json:"charge_id"`
	Amount      models.Money `json:"amount"`
	Currency    string       `json:"currency"`
	ReceiptURL  string       `json:"receipt_url,omitempty"`
	AlreadyPaid bool         `json:"already_paid"`
}

// CheckoutService 结算编排服务。
// 流程阶段固定为 validating、reserving_stock、charging、persisting、completed，
// 同一购物车的结算请求串行执行。
type CheckoutService struct {
	userService       *UserService
	cartService       *CartService
	inventoryService  *InventoryService
	gateway           payment.Gateway
	queueClient       *queue.Client
	lowStockThreshold int
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	userService *UserService,
	cartService *CartService,
	inventoryService *InventoryService,
	gateway payment.Gateway,
	queueClient *queue.Client,
	lowStockThreshold int,
) *CheckoutService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = constants.DefaultLowStockThreshold
	}
	return &CheckoutService{
		userService:       userService,
		cartService:       cartService,
		inventoryService:  inventoryService,
		gateway:           gateway,
		queueClient:       queueClient,
		lowStockThreshold: lowStockThreshold,
	}
}

// Checkout 执行一次结算。
// 已支付购物车直接返回既有结果；网关扣款失败时释放已预占库存；
// 扣款成功但入账失败时返回 ErrChargedButUnrecorded，不回滚任何状态。
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	status, err := s.userService.AccountStatusOf(input.UserID)
	if err != nil {
		return nil, err
	}
	switch status.Kind {
	case AccountNotFound:
		return nil, ErrUserNotFound
	case AccountLocked:
		return nil, ErrUserLocked
	}

	// 结算不创建购物车，取用户最近一辆；已支付且无新购物车时走幂等短路
	cart, err := s.cartService.cartRepo.GetLatestByUser(input.UserID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartEmpty
	}

	// 与购物车写操作共用同一把锁，结算期间条目不会被并发改写
	lock := s.cartService.lockFor(cart.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.checkoutLocked(ctx, cart.ID, input)
}

func (s *CheckoutService) checkoutLocked(ctx context.Context, cartID uint, input CheckoutInput) (*CheckoutResult, error) {
	logger.Infow("结算开始", "cart_id", cartID, "state", string(StateValidating))

	// 锁内复查支付状态，串行队列里排在后面的重复请求在此短路
	paid, err := s.cartService.IsPaid(cartID)
	if err != nil {
		return nil, err
	}
	if paid {
		return s.alreadyPaidResult(cartID)
	}

	cart, err := s.cartService.cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.UserID != input.UserID {
		return nil, ErrCartNotFound
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	if err := payment.ValidateCard(input.Card, nowFunc()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	total, err := s.cartService.RecomputeTotal(cart)
	if err != nil {
		return nil, err
	}
	if total.MinorUnits() <= 0 {
		return nil, ErrCartEmpty
	}

	reserveItems := make([]ReserveItem, 0, len(cart.Items))
	productIDs := make([]uint, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			continue
		}
		reserveItems = append(reserveItems, ReserveItem{ProductID: item.ProductID, Quantity: item.Quantity})
		productIDs = append(productIDs, item.ProductID)
	}
	if len(reserveItems) == 0 {
		return nil, ErrCartEmpty
	}

	// 加车之后商品可能已下架，预占前整车复核
	products, err := s.cartService.productRepo.GetByIDs(productIDs)
	if err != nil {
		return nil, err
	}
	active := make(map[uint]bool, len(products))
	for _, p := range products {
		active[p.ID] = p.IsActive
	}
	for _, id := range productIDs {
		if !active[id] {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotAvailable, id)
		}
	}

	logger.Infow("结算预占库存", "cart_id", cartID, "state", string(StateReservingStock), "items", len(reserveItems))
	levels, err := s.inventoryService.ReserveAll(reserveItems)
	if err != nil {
		return nil, err
	}

	logger.Infow("结算发起扣款", "cart_id", cartID, "state", string(StateCharging), "amount", total.String(), "currency", cart.Currency)
	chargeResult, err := s.gateway.Charge(ctx, payment.ChargeInput{
		AmountMinor: total.MinorUnits(),
		Currency:    cart.Currency,
		Card:        input.Card,
		Reference:   fmt.Sprintf("cart-%d", cartID),
		Description: fmt.Sprintf("lumen-shop cart %d", cartID),
	})
	if err != nil {
		if releaseErr := s.inventoryService.ReleaseAll(reserveItems); releaseErr != nil {
			logger.Errorw("扣款失败后库存释放失败，需人工核对",
				"cart_id", cartID,
				"charge_error", err.Error(),
				"release_error", releaseErr.Error(),
			)
		}
		if isCardValidationError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}

	logger.Infow("结算入账", "cart_id", cartID, "state", string(StatePersisting), "charge_id", chargeResult.ChargeID)
	record := &models.Payment{
		CartID:     cartID,
		ChargeID:   chargeResult.ChargeID,
		CustomerID: chargeResult.CustomerID,
		Amount:     total,
		Currency:   cart.Currency,
		Status:     payment.ChargeStatusSucceeded,
		ReceiptURL: chargeResult.ReceiptURL,
	}
	if err := s.cartService.RecordPayment(record); err != nil {
		logger.Errorw("扣款成功但入账失败，资金已扣需人工对账",
			"cart_id", cartID,
			"charge_id", chargeResult.ChargeID,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: charge_id=%s", ErrChargedButUnrecorded, chargeResult.ChargeID)
	}

	logger.Infow("结算完成", "cart_id", cartID, "state", string(StateCompleted), "charge_id", chargeResult.ChargeID)
	s.publishEvents(cart, total, chargeResult.ChargeID, levels)

	return &CheckoutResult{
		CartID:     cartID,
		ChargeID:   chargeResult.ChargeID,
		Amount:     total,
		Currency:   cart.Currency,
		ReceiptURL: chargeResult.ReceiptURL,
	}, nil
}

// publishEvents 投递支付成功与低库存事件。
// 低库存判断使用预占事务内读出的水位。事件失败只记日志，不影响结算结果。
func (s *CheckoutService) publishEvents(cart *models.Cart, total models.Money, chargeID string, levels []repository.StockLevel) {
	if err := s.queueClient.EnqueuePaymentSucceeded(queue.PaymentSucceededPayload{
		CartID:   cart.ID,
		UserID:   cart.UserID,
		ChargeID: chargeID,
		Amount:   total.String(),
		Currency: cart.Currency,
	}); err != nil {
		logger.Warnw("支付成功事件投递失败", "cart_id", cart.ID, "error", err.Error())
	}

	for _, level := range s.lowStockLevels(levels) {
		if err := s.queueClient.EnqueueLowStock(queue.LowStockPayload{
			ProductID:   level.ProductID,
			ProductName: level.Name,
			Stock:       level.Stock,
			Threshold:   s.lowStockThreshold,
		}); err != nil {
			logger.Warnw("低库存事件投递失败", "product_id", level.ProductID, "error", err.Error())
		}
	}
}

// lowStockLevels 筛选不高于告警阈值的库存水位，恰好等于阈值也触发
func (s *CheckoutService) lowStockLevels(levels []repository.StockLevel) []repository.StockLevel {
	var low []repository.StockLevel
	for _, level := range levels {
		if level.Stock <= s.lowStockThreshold {
			low = append(low, level)
		}
	}
	return low
}

func (s *CheckoutService) alreadyPaidResult(cartID uint) (*CheckoutResult, error) {
	record, err := s.cartService.paymentRepo.GetByCartID(cartID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrCartAlreadyPaid
	}
	return &CheckoutResult{
		CartID:      cartID,
		ChargeID:    record.ChargeID,
		Amount:      record.Amount,
		Currency:    record.Currency,
		ReceiptURL:  record.ReceiptURL,
		AlreadyPaid: true,
	}, nil
}

func isCardValidationError(err error) bool {
	return errors.Is(err, payment.ErrCardNumberInvalid) ||
		errors.Is(err, payment.ErrCardCVVInvalid) ||
		errors.Is(err, payment.ErrCardExpiryInvalid) ||
		errors.Is(err, payment.ErrCardExpired)
}
