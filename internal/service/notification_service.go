package service

import (
	"strings"

	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

// PaymentSucceededNotice 支付成功通知内容
type PaymentSucceededNotice struct {
	CartID   uint
	UserID   uint
	ChargeID string
	Amount   string
	Currency string
}

// LowStockNotice 低库存告警内容
type LowStockNotice struct {
	ProductID   uint
	ProductName string
	Stock       int
	Threshold   int
}

// NotificationService 通知服务。
// 买家通知仅投递到已验证的邮箱，低库存告警投递给配置的运营人员。
type NotificationService struct {
	userRepo     repository.UserRepository
	userService  *UserService
	adminUserIDs []uint
}

// NewNotificationService 创建通知服务
func NewNotificationService(userRepo repository.UserRepository, userService *UserService, adminUserIDs []uint) *NotificationService {
	return &NotificationService{userRepo: userRepo, userService: userService, adminUserIDs: adminUserIDs}
}

// ReceiptReceiver 解析支付成功通知的收件地址。
// 邮箱为空或未通过验证时不投递，返回 false。
func (s *NotificationService) ReceiptReceiver(user *models.User) (string, bool) {
	if user == nil {
		return "", false
	}
	receiver := strings.TrimSpace(user.Email)
	if receiver == "" {
		return "", false
	}
	verified, err := s.userService.IsVerified(user, VerifiedFieldEmail)
	if err != nil || !verified {
		return "", false
	}
	return receiver, true
}

// NotifyPaymentSucceeded 向买家发送支付成功通知
func (s *NotificationService) NotifyPaymentSucceeded(notice PaymentSucceededNotice) error {
	user, err := s.userRepo.GetByID(notice.UserID)
	if err != nil {
		return err
	}
	receiver, ok := s.ReceiptReceiver(user)
	if !ok {
		logger.Debugw("支付成功通知跳过，收件邮箱为空或未验证", "cart_id", notice.CartID, "user_id", notice.UserID)
		return nil
	}
	logger.Infow("支付成功通知已发出",
		"receiver", receiver,
		"cart_id", notice.CartID,
		"charge_id", notice.ChargeID,
		"amount", notice.Amount,
		"currency", notice.Currency,
	)
	return nil
}

// NotifyLowStock 向运营人员发送低库存告警
func (s *NotificationService) NotifyLowStock(notice LowStockNotice) error {
	receivers := make([]string, 0, len(s.adminUserIDs))
	for _, id := range s.adminUserIDs {
		user, err := s.userRepo.GetByID(id)
		if err != nil {
			return err
		}
		if user == nil || strings.TrimSpace(user.Email) == "" {
			continue
		}
		receivers = append(receivers, strings.TrimSpace(user.Email))
	}
	logger.Warnw("低库存告警",
		"product_id", notice.ProductID,
		"product_name", notice.ProductName,
		"stock", notice.Stock,
		"threshold", notice.Threshold,
		"receivers", receivers,
	)
	return nil
}
