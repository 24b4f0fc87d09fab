package service

import "errors"

// 业务错误按类别划分：参数校验、状态冲突、库存容量、网关失败、致命不可恢复。
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserLocked         = errors.New("user is locked")

	ErrProductNotFound     = errors.New("product not found")
	ErrProductNotAvailable = errors.New("product not available")

	ErrCartNotFound    = errors.New("cart not found")
	ErrCartEmpty       = errors.New("cart is empty")
	ErrCartAlreadyPaid = errors.New("cart already paid")
	ErrQuantityInvalid = errors.New("quantity must not be negative")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrPaymentDeclined = errors.New("payment declined")

	// ErrChargedButUnrecorded 表示扣款已成功但本地入账失败。
	// 资金已离开买家账户，禁止自动回滚库存或重试扣款，需人工对账。
	ErrChargedButUnrecorded = errors.New("charge succeeded but payment not recorded")

	ErrRateUnavailable = errors.New("exchange rate unavailable")
)
