package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/provider"
	"github.com/lumen-shop/internal/queue"
	"github.com/lumen-shop/internal/service"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentSucceededNotify, c.handlePaymentSucceeded)
	mux.HandleFunc(queue.TaskLowStockNotify, c.handleLowStock)
}

func (c *Consumer) handlePaymentSucceeded(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.PaymentSucceededPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_succeeded_unmarshal_failed", "error", err)
		return err
	}
	if payload.CartID == 0 {
		logger.Debugw("worker_payment_succeeded_skip_invalid_payload", "cart_id", payload.CartID)
		return nil
	}
	return c.NotificationService.NotifyPaymentSucceeded(service.PaymentSucceededNotice{
		CartID:   payload.CartID,
		UserID:   payload.UserID,
		ChargeID: payload.ChargeID,
		Amount:   payload.Amount,
		Currency: payload.Currency,
	})
}

func (c *Consumer) handleLowStock(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.LowStockPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_low_stock_unmarshal_failed", "error", err)
		return err
	}
	if payload.ProductID == 0 {
		logger.Debugw("worker_low_stock_skip_invalid_payload", "product_id", payload.ProductID)
		return nil
	}
	return c.NotificationService.NotifyLowStock(service.LowStockNotice{
		ProductID:   payload.ProductID,
		ProductName: payload.ProductName,
		Stock:       payload.Stock,
		Threshold:   payload.Threshold,
	})
}
