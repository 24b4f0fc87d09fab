package payment

import (
	"strconv"
	"strings"
	"time"
)

// ValidateCard 本地校验卡面信息，避免无效请求打到外部网关。
// 过期判断以到期月份最后一天（UTC）为准。
func ValidateCard(card Card, now time.Time) error {
	number := strings.TrimSpace(card.Number)
	if len(number) != 16 || !isDigits(number) {
		return ErrCardNumberInvalid
	}
	cvv := strings.TrimSpace(card.CVV)
	if len(cvv) != 3 || !isDigits(cvv) {
		return ErrCardCVVInvalid
	}

	month, err := strconv.Atoi(strings.TrimSpace(card.ExpiryMonth))
	if err != nil || month < 1 || month > 12 {
		return ErrCardExpiryInvalid
	}
	year, err := strconv.Atoi(strings.TrimSpace(card.ExpiryYear))
	if err != nil || year < 1000 || year > 9999 {
		return ErrCardExpiryInvalid
	}

	// time.Date 的 day=0 归一化为上个月最后一天
	lastDay := time.Date(year, time.Month(month)+1, 0, 23, 59, 59, 0, time.UTC)
	if now.UTC().After(lastDay) {
		return ErrCardExpired
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
