package payment

import (
	"context"
	"errors"
)

// 扣款结果状态常量
const (
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusFailed    = "failed"
)

var (
	ErrCardNumberInvalid = errors.New("card number must be 16 digits")
	ErrCardCVVInvalid    = errors.New("card cvv must be 3 digits")
	ErrCardExpiryInvalid = errors.New("card expiry is invalid")
	ErrCardExpired       = errors.New("card is expired")
)

// Card 持卡人卡面信息
type Card struct {
	HolderName  string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// ChargeInput 扣款请求
type ChargeInput struct {
	AmountMinor int64  // 最小货币单位金额（分）
	Currency    string // 币种代码
	Card        Card
	Reference   string // 商户侧流水参考号
	Description string
}

// ChargeResult 扣款返回
type ChargeResult struct {
	ChargeID   string
	Status     string
	ReceiptURL string
	CustomerID string
}

// Gateway 支付网关适配器接口
// 适配器本身不做重试；同一笔编排事务内扣款至多发起一次。
type Gateway interface {
	Charge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
}
