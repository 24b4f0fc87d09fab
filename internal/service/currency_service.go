package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumen-shop/internal/cache"
	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/exchange"
	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/models"
)

// cachedRate 汇率缓存条目
type cachedRate struct {
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CurrencyService 币种换算服务。
// 换算结果仅用于展示，下单与扣款始终使用基准币种金额。
type CurrencyService struct {
	fetcher exchange.RateFetcher
	ttl     time.Duration

	mu    sync.RWMutex
	rates map[string]cachedRate
}

// NewCurrencyService 创建币种换算服务
func NewCurrencyService(fetcher exchange.RateFetcher, ttl time.Duration) *CurrencyService {
	if ttl <= 0 {
		ttl = time.Duration(constants.DefaultRateCacheTTLSeconds) * time.Second
	}
	return &CurrencyService{
		fetcher: fetcher,
		ttl:     ttl,
		rates:   make(map[string]cachedRate),
	}
}

// GetRate 获取汇率。命中未过期缓存时直接返回；
// 过期后重新拉取，拉取失败时在两倍 TTL 的降级窗口内沿用过期缓存值，
// 超出窗口或完全无缓存则报错。
func (s *CurrencyService) GetRate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error) {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == "" || to == "" {
		return decimal.Zero, fmt.Errorf("%w: currency code is required", ErrInvalidInput)
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := from + "/" + to
	now := time.Now()

	if entry, ok := s.lookup(ctx, key); ok && now.Sub(entry.FetchedAt) < s.ttl {
		return entry.Rate, nil
	}

	rate, err := s.fetcher.GetLatestRate(ctx, from, to)
	if err != nil {
		// 降级窗口与 Redis 保留期一致，超过两倍 TTL 的旧值不再使用
		if entry, ok := s.lookup(ctx, key); ok && now.Sub(entry.FetchedAt) < s.ttl*2 {
			logger.Warnw("汇率刷新失败，沿用过期缓存",
				"pair", key,
				"fetched_at", entry.FetchedAt,
				"error", err.Error(),
			)
			return entry.Rate, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, key)
	}

	s.store(ctx, key, cachedRate{Rate: rate, FetchedAt: now})
	return rate, nil
}

// Convert 将基准币种金额换算为目标币种展示金额（2 位小数，四舍五入远离零）
func (s *CurrencyService) Convert(ctx context.Context, amount models.Money, fromCurrency, toCurrency string) (models.Money, error) {
	rate, err := s.GetRate(ctx, fromCurrency, toCurrency)
	if err != nil {
		return models.Money{}, err
	}
	return models.NewMoneyFromDecimal(amount.Decimal.Mul(rate)), nil
}

func (s *CurrencyService) lookup(ctx context.Context, key string) (cachedRate, bool) {
	s.mu.RLock()
	entry, ok := s.rates[key]
	s.mu.RUnlock()
	if ok {
		return entry, true
	}
	// 本地没有时尝试 Redis，跨进程共享刷新结果
	var remote cachedRate
	hit, err := cache.GetJSON(ctx, "rate:"+key, &remote)
	if err != nil || !hit {
		return cachedRate{}, false
	}
	s.mu.Lock()
	s.rates[key] = remote
	s.mu.Unlock()
	return remote, true
}

func (s *CurrencyService) store(ctx context.Context, key string, entry cachedRate) {
	s.mu.Lock()
	s.rates[key] = entry
	s.mu.Unlock()
	// Redis 里保留两倍 TTL，过期后仍可作为降级数据使用
	if err := cache.SetJSON(ctx, "rate:"+key, entry, s.ttl*2); err != nil {
		logger.Warnw("汇率缓存写入失败", "pair", key, "error", err.Error())
	}
}
