package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/lumen-shop/internal/constants"
)

const (
	// TaskPaymentSucceededNotify 支付成功通知任务
	TaskPaymentSucceededNotify = constants.TaskPaymentSucceededNotify
	// TaskLowStockNotify 低库存告警任务
	TaskLowStockNotify = constants.TaskLowStockNotify
)

// PaymentSucceededPayload 支付成功通知任务载荷
type PaymentSucceededPayload struct {
	CartID   uint   `json:"cart_id"`
	UserID   uint   `json:"user_id"`
	ChargeID string `json:"charge_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// LowStockPayload 低库存告警任务载荷
type LowStockPayload struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Stock       int    `json:"stock"`
	Threshold   int    `json:"threshold"`
}

// NewPaymentSucceededTask 创建支付成功通知任务
func NewPaymentSucceededTask(payload PaymentSucceededPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSucceededNotify, body), nil
}

// NewLowStockTask 创建低库存告警任务
func NewLowStockTask(payload LowStockPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockNotify, body), nil
}
