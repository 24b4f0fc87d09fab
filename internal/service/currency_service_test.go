package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumen-shop/internal/models"
)

type fakeRateFetcher struct {
	rate    decimal.Decimal
	err     error
	fetches int
}

func (f *fakeRateFetcher) GetLatestRate(_ context.Context, _, _ string) (decimal.Decimal, error) {
	f.fetches++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

func TestGetRateCachesWithinTTL(t *testing.T) {
	fetcher := &fakeRateFetcher{rate: decimal.NewFromFloat(0.92)}
	svc := NewCurrencyService(fetcher, time.Hour)

	first, err := svc.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("get rate failed: %v", err)
	}
	second, err := svc.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("get rate failed: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("rates should match: %s vs %s", first, second)
	}
	if fetcher.fetches != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", fetcher.fetches)
	}
}

func TestGetRateRefetchesAfterTTL(t *testing.T) {
	fetcher := &fakeRateFetcher{rate: decimal.NewFromFloat(0.92)}
	svc := NewCurrencyService(fetcher, 10*time.Millisecond)

	if _, err := svc.GetRate(context.Background(), "USD", "EUR"); err != nil {
		t.Fatalf("get rate failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	fetcher.rate = decimal.NewFromFloat(0.95)
	rate, err := svc.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("get rate failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.95)) {
		t.Fatalf("expected refreshed rate 0.95, got %s", rate)
	}
	if fetcher.fetches != 2 {
		t.Fatalf("expected 2 upstream fetches, got %d", fetcher.fetches)
	}
}

func TestGetRateFallsBackToStaleOnError(t *testing.T) {
	fetcher := &fakeRateFetcher{rate: decimal.NewFromFloat(0.92)}
	svc := NewCurrencyService(fetcher, 50*time.Millisecond)

	if _, err := svc.GetRate(context.Background(), "USD", "EUR"); err != nil {
		t.Fatalf("get rate failed: %v", err)
	}

	// 过期但仍在两倍 TTL 的降级窗口内，沿用旧值
	time.Sleep(60 * time.Millisecond)
	fetcher.err = errors.New("upstream down")
	rate, err := svc.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.92)) {
		t.Fatalf("expected stale rate 0.92, got %s", rate)
	}

	// 超出降级窗口后不再使用旧值
	time.Sleep(60 * time.Millisecond)
	if _, err := svc.GetRate(context.Background(), "USD", "EUR"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable past the fallback window, got %v", err)
	}
}

func TestGetRateErrorsWithoutAnyCache(t *testing.T) {
	fetcher := &fakeRateFetcher{err: errors.New("upstream down")}
	svc := NewCurrencyService(fetcher, time.Hour)

	_, err := svc.GetRate(context.Background(), "USD", "EUR")
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestGetRateSameCurrencyIsIdentity(t *testing.T) {
	fetcher := &fakeRateFetcher{rate: decimal.NewFromFloat(0.92)}
	svc := NewCurrencyService(fetcher, time.Hour)

	rate, err := svc.GetRate(context.Background(), "usd", "USD")
	if err != nil {
		t.Fatalf("get rate failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", rate)
	}
	if fetcher.fetches != 0 {
		t.Fatalf("identity conversion must not hit upstream")
	}
}

func TestConvertRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
		want   string
	}{
		{"10.00", "0.9215", "9.22"},   // 9.215 -> 9.22
		{"1.00", "0.005", "0.01"},     // 0.005 -> 0.01
		{"33.33", "1.5", "50.00"},     // 49.995 -> 50.00
		{"100.00", "7.2499", "724.99"},
	}
	for _, tc := range cases {
		rate, err := decimal.NewFromString(tc.rate)
		if err != nil {
			t.Fatalf("bad rate %s: %v", tc.rate, err)
		}
		fetcher := &fakeRateFetcher{rate: rate}
		svc := NewCurrencyService(fetcher, time.Hour)
		amount, err := models.NewMoneyFromString(tc.amount)
		if err != nil {
			t.Fatalf("bad amount %s: %v", tc.amount, err)
		}
		got, err := svc.Convert(context.Background(), amount, "USD", "EUR")
		if err != nil {
			t.Fatalf("convert failed: %v", err)
		}
		if got.String() != tc.want {
			t.Fatalf("convert %s * %s: expected %s, got %s", tc.amount, tc.rate, tc.want, got.String())
		}
	}
}
