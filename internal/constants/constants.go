package constants

// 购物车状态常量
const (
	CartStatusPending   = "pending"
	CartStatusSucceeded = "succeeded"
	CartStatusFailed    = "failed"
)

// 支付状态常量
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// 用户账号状态常量
const (
	UserStatusActive = "active"
	UserStatusLocked = "locked"
)

// 队列任务类型常量
const (
	TaskPaymentSucceededNotify = "notify:payment_succeeded"
	TaskLowStockNotify         = "notify:low_stock"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 结算默认值常量
const (
	// DefaultLowStockThreshold 低库存告警阈值（剩余数量不高于该值时触发）
	DefaultLowStockThreshold = 10
	// DefaultBaseCurrency 商户基准币种（网关实际扣款币种）
	DefaultBaseCurrency = "USD"
	// DefaultRateCacheTTLSeconds 汇率缓存有效期（秒）
	DefaultRateCacheTTLSeconds = 3600
)
